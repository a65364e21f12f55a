package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TokenPulse/internal/domain/models"
	"TokenPulse/pkg/metrics"
)

// gatedRunner blocks every run until release is closed and records start order.
type gatedRunner struct {
	mu      sync.Mutex
	started []string
	release chan struct{}
	ctxErrs int
}

func newGatedRunner() *gatedRunner { return &gatedRunner{release: make(chan struct{})} }

func (r *gatedRunner) Run(ctx context.Context, req *models.AnalysisRequest) *models.Outcome {
	r.mu.Lock()
	r.started = append(r.started, req.RequestID)
	r.mu.Unlock()
	select {
	case <-r.release:
	case <-ctx.Done():
		r.mu.Lock()
		r.ctxErrs++
		r.mu.Unlock()
	}
	return &models.Outcome{Status: models.StatusReady, RequestID: req.RequestID}
}

func (r *gatedRunner) order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.started...)
}

func TestDispatcherBoundsInFlightAndQueuesFIFO(t *testing.T) {
	runner := newGatedRunner()
	d := NewDispatcher(runner, &recordingPublisher{}, 2, metrics.Nop{}, nil)

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, d.Submit(request(id, true, "BTC")))
	}
	require.Eventually(t, func() bool { return len(runner.order()) == 2 }, time.Second, 5*time.Millisecond)

	inFlight, queued := d.Stats()
	assert.Equal(t, 2, inFlight)
	assert.Equal(t, 2, queued)

	close(runner.release)
	require.NoError(t, d.Stop(context.Background()))

	order := runner.order()
	require.Len(t, order, 4)
	assert.ElementsMatch(t, []string{"a", "b"}, order[:2])
	assert.ElementsMatch(t, []string{"c", "d"}, order[2:])

	inFlight, queued = d.Stats()
	assert.Zero(t, inFlight)
	assert.Zero(t, queued)
}

func TestDispatcherSingleWorkerKeepsSubmissionOrder(t *testing.T) {
	runner := newGatedRunner()
	d := NewDispatcher(runner, &recordingPublisher{}, 1, metrics.Nop{}, nil)

	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		require.NoError(t, d.Submit(request(id, true, "BTC")))
	}
	close(runner.release)
	require.NoError(t, d.Stop(context.Background()))
	assert.Equal(t, ids, runner.order())
}

func TestDispatcherRefusesInFlightDuplicates(t *testing.T) {
	runner := newGatedRunner()
	d := NewDispatcher(runner, &recordingPublisher{}, 1, metrics.Nop{}, nil)

	require.NoError(t, d.Submit(request("a", true, "BTC")))
	require.NoError(t, d.Submit(request("b", true, "BTC")))
	assert.ErrorIs(t, d.Submit(request("a", true, "BTC")), models.ErrDuplicateRequest)
	assert.ErrorIs(t, d.Submit(request("b", true, "BTC")), models.ErrDuplicateRequest)

	close(runner.release)
	require.NoError(t, d.Stop(context.Background()))
	assert.ErrorIs(t, d.Submit(request("c", true, "BTC")), models.ErrShuttingDown)
}

func TestDispatcherAllowsResubmitAfterCompletion(t *testing.T) {
	runner := newGatedRunner()
	close(runner.release)
	d := NewDispatcher(runner, &recordingPublisher{}, 1, metrics.Nop{}, nil)

	require.NoError(t, d.Submit(request("a", true, "BTC")))
	require.Eventually(t, func() bool {
		n, q := d.Stats()
		return n == 0 && q == 0
	}, time.Second, 5*time.Millisecond)
	assert.NoError(t, d.Submit(request("a", true, "BTC")))
	require.NoError(t, d.Stop(context.Background()))
}

func TestDispatcherStopDeadlineAbandonsQueued(t *testing.T) {
	runner := newGatedRunner()
	pub := &recordingPublisher{}
	d := NewDispatcher(runner, pub, 1, metrics.Nop{}, nil)

	require.NoError(t, d.Submit(request("running", true, "BTC")))
	require.NoError(t, d.Submit(request("queued-1", true, "BTC")))
	require.NoError(t, d.Submit(request("queued-2", true, "BTC")))
	require.Eventually(t, func() bool { return len(runner.order()) == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := d.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	abandoned := pub.outcomes()
	require.Len(t, abandoned, 2)
	for i, id := range []string{"queued-1", "queued-2"} {
		assert.Equal(t, id, abandoned[i].RequestID)
		assert.Equal(t, models.StatusError, abandoned[i].Status)
		assert.Equal(t, models.KindShutdown, abandoned[i].ErrorKind)
		assert.True(t, abandoned[i].IsRetryable())
	}
	assert.Equal(t, []string{"running"}, runner.order())
	assert.Equal(t, 1, runner.ctxErrs)
}
