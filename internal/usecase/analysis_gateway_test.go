package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TokenPulse/internal/domain/models"
	"TokenPulse/internal/services/fixtures"
	"TokenPulse/pkg/cache"
	pkgkafka "TokenPulse/pkg/kafka"
	"TokenPulse/pkg/metrics"
)

type fakeSubmitter struct {
	mu   sync.Mutex
	reqs []*models.AnalysisRequest
	err  error
}

func (f *fakeSubmitter) Submit(req *models.AnalysisRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.reqs = append(f.reqs, req)
	return nil
}

func newTestGateway(sub Submitter, pub OutcomePublisher) (*AnalysisGateway, *cache.MemoryCache) {
	mem := cache.NewMemoryCache()
	g := NewAnalysisGateway("analysis.requests", mem, time.Minute, sub, pub,
		[]string{"BTC", "ETH", "SOL"}, metrics.Nop{}, nil)
	return g, mem
}

func TestGatewayHandleAcceptsAndNormalizes(t *testing.T) {
	sub := &fakeSubmitter{}
	g, mem := newTestGateway(sub, &recordingPublisher{})
	defer mem.Close()

	err := g.Handle(context.Background(), []byte(`{"request_id":"r1","tokens":["$btc","ETH/USDT","usdt","BTC"],"mock_mode":true}`))
	require.NoError(t, err)
	require.Len(t, sub.reqs, 1)

	req := sub.reqs[0]
	assert.Equal(t, []string{"BTC", "ETH"}, req.Tokens)
	assert.Equal(t, models.AnalysisQuick, req.AnalysisType)
	assert.Equal(t, "1d", req.Timeframe)
	assert.Equal(t, models.CoinSourceRequest, req.CoinSource)
	assert.True(t, req.MockMode)
	assert.Equal(t, "analysis.requests", g.Topic())
}

func TestGatewayResolvesCoinsFromMessagesAndDefaults(t *testing.T) {
	sub := &fakeSubmitter{}
	g, mem := newTestGateway(sub, &recordingPublisher{})
	defer mem.Close()

	req, err := g.Admit(context.Background(), &models.AnalysisRequest{
		RequestID: "r2",
		Messages:  []string{"what about $PEPE and solana today?"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"PEPE", "SOL"}, req.Tokens)
	assert.Equal(t, models.CoinSourceExtracted, req.CoinSource)

	req, err = g.Admit(context.Background(), &models.AnalysisRequest{RequestID: "r3", Messages: []string{"gm"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC", "ETH", "SOL"}, req.Tokens)
	assert.Equal(t, models.CoinSourceDefault, req.CoinSource)
}

func TestGatewayDuplicateIgnored(t *testing.T) {
	sub := &fakeSubmitter{}
	g, mem := newTestGateway(sub, &recordingPublisher{})
	defer mem.Close()

	raw := []byte(`{"request_id":"dup","tokens":["BTC"]}`)
	require.NoError(t, g.Handle(context.Background(), raw))
	require.NoError(t, g.Handle(context.Background(), raw))
	assert.Len(t, sub.reqs, 1)

	_, err := g.Admit(context.Background(), &models.AnalysisRequest{RequestID: "dup", Tokens: []string{"ETH"}})
	assert.ErrorIs(t, err, models.ErrDuplicateRequest)
}

func TestGatewayRejectionWithIDPublishesError(t *testing.T) {
	sub := &fakeSubmitter{}
	pub := &recordingPublisher{}
	g, mem := newTestGateway(sub, pub)
	defer mem.Close()

	err := g.Handle(context.Background(), []byte(`{"request_id":"bad","tokens":["BTC"],"analysis_type":"deep","timeframe":"7h"}`))
	require.NoError(t, err)
	assert.Empty(t, sub.reqs)

	out := pub.outcomes()
	require.Len(t, out, 1)
	assert.Equal(t, "bad", out[0].RequestID)
	assert.Equal(t, models.StatusError, out[0].Status)
	assert.Equal(t, models.KindValidation, out[0].ErrorKind)
	assert.False(t, out[0].IsRetryable())
	assert.Contains(t, out[0].Cause, "analysis_type")
}

func TestGatewayRejectionWithoutIDIsPermanent(t *testing.T) {
	pub := &recordingPublisher{}
	g, mem := newTestGateway(&fakeSubmitter{}, pub)
	defer mem.Close()

	err := g.Handle(context.Background(), []byte(`{"tokens":["BTC"]}`))
	require.Error(t, err)
	assert.True(t, pkgkafka.IsPermanent(err))

	err = g.Handle(context.Background(), []byte(`{not json`))
	require.Error(t, err)
	assert.True(t, pkgkafka.IsPermanent(err))
	assert.Empty(t, pub.outcomes())
}

func TestGatewayMalformedFieldKeepsRequestID(t *testing.T) {
	pub := &recordingPublisher{}
	g, mem := newTestGateway(&fakeSubmitter{}, pub)
	defer mem.Close()

	require.NoError(t, g.Handle(context.Background(), []byte(`{"request_id":"typed","tokens":"BTC"}`)))
	out := pub.outcomes()
	require.Len(t, out, 1)
	assert.Equal(t, "typed", out[0].RequestID)
	assert.Equal(t, models.KindValidation, out[0].ErrorKind)
}

func TestGatewayShutdownReleasesDedup(t *testing.T) {
	sub := &fakeSubmitter{err: models.ErrShuttingDown}
	g, mem := newTestGateway(sub, &recordingPublisher{})
	defer mem.Close()

	raw := []byte(`{"request_id":"late","tokens":["BTC"]}`)
	err := g.Handle(context.Background(), raw)
	assert.ErrorIs(t, err, models.ErrShuttingDown)
	assert.False(t, pkgkafka.IsPermanent(err))

	exists, err := mem.Exists(context.Background(), cache.Key("analysis", "seen", "late"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGatewayRejectionReusingAdmittedIDIgnored(t *testing.T) {
	sub := &fakeSubmitter{}
	pub := &recordingPublisher{}
	g, mem := newTestGateway(sub, pub)
	defer mem.Close()

	require.NoError(t, g.Handle(context.Background(), []byte(`{"request_id":"r1","tokens":["BTC"]}`)))
	require.NoError(t, g.Handle(context.Background(), []byte(`{"request_id":"r1","tokens":["BTC"],"timeframe":"7x"}`)))

	assert.Len(t, sub.reqs, 1)
	assert.Empty(t, pub.outcomes())
}

func TestGatewayInFlightRequestKeepsOutcomeAfterConflictingRejection(t *testing.T) {
	market := newGatedMarket()
	live := Collaborators{Market: market, News: fixtures.NewNews(), Inference: fixtures.NewInference()}
	cfg := testEngineConfig()
	cfg.MarketTimeout = 5 * time.Second
	sink := &memorySink{}
	g, d, mem := newPipeline(live, sink, cfg)
	defer mem.Close()

	ctx := context.Background()
	require.NoError(t, g.Handle(ctx, []byte(`{"request_id":"r1","tokens":["BTC"]}`)))
	select {
	case <-market.started:
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached the market stage")
	}

	require.NoError(t, g.Handle(ctx, []byte(`{"request_id":"r1","tokens":["BTC"],"timeframe":"7x"}`)))
	assert.Empty(t, sink.outcomes())

	close(market.release)
	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(stopCtx))

	out := sink.outcomes()
	require.Len(t, out, 1)
	assert.Equal(t, "r1", out[0].RequestID)
	assert.Equal(t, models.StatusReady, out[0].Status)
}

func TestGatewayUnprintableRequestIDIsPermanent(t *testing.T) {
	pub := &recordingPublisher{}
	g, mem := newTestGateway(&fakeSubmitter{}, pub)
	defer mem.Close()

	long := strings.Repeat("x", 200)
	for _, raw := range []string{
		`{"request_id":"` + long + `","tokens":"BTC"}`,
		`{"request_id":"a\u0007b","tokens":"BTC"}`,
	} {
		err := g.Handle(context.Background(), []byte(raw))
		require.Error(t, err)
		assert.True(t, pkgkafka.IsPermanent(err))
	}
	assert.Empty(t, pub.outcomes())
}

func TestGatewayResendAdmittedAfterUndeliverableOutcome(t *testing.T) {
	sink := &memorySink{fail: errors.New("broker down")}
	g, d, mem := newPipeline(mockCollaborators(), sink, testEngineConfig())
	defer mem.Close()

	ctx := context.Background()
	raw := []byte(`{"request_id":"r9","tokens":["BTC"],"mock_mode":true}`)
	require.NoError(t, g.Handle(ctx, raw))

	idle := func() bool {
		running, queued := d.Stats()
		return running == 0 && queued == 0
	}
	require.Eventually(t, func() bool { return sink.attempts() >= 3 && idle() }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, sink.outcomes())

	sink.setFail(nil)
	require.NoError(t, g.Handle(ctx, raw))
	require.Eventually(t, func() bool { return len(sink.outcomes()) == 1 && idle() }, 2*time.Second, 5*time.Millisecond)

	out := sink.outcomes()
	assert.Equal(t, "r9", out[0].RequestID)
	assert.Equal(t, models.StatusReady, out[0].Status)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, d.Stop(stopCtx))
}
