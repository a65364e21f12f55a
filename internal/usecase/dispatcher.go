package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"TokenPulse/internal/domain/models"
	"TokenPulse/internal/domain/repository"
	applogger "TokenPulse/pkg/logger"
)

// Runner executes one request to its terminal outcome.
type Runner interface {
	Run(ctx context.Context, req *models.AnalysisRequest) *models.Outcome
}

// Dispatcher bounds concurrent executions. Excess requests wait in FIFO order
// and a request_id that is queued or running is refused.
type Dispatcher struct {
	runner    Runner
	publisher OutcomePublisher
	metrics   repository.Metrics
	log       *applogger.Logger
	max       int

	mu      sync.Mutex
	queue   []*models.AnalysisRequest
	active  map[string]struct{}
	running int
	closed  bool
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

func NewDispatcher(runner Runner, publisher OutcomePublisher, maxInFlight int, metrics repository.Metrics, log *applogger.Logger) *Dispatcher {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	if log == nil {
		log = applogger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		runner:    runner,
		publisher: publisher,
		metrics:   metrics,
		log:       log,
		max:       maxInFlight,
		active:    make(map[string]struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Submit queues req. It returns ErrDuplicateRequest when the id is already
// queued or running and ErrShuttingDown once Stop has been called.
func (d *Dispatcher) Submit(req *models.AnalysisRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return models.ErrShuttingDown
	}
	if _, ok := d.active[req.RequestID]; ok {
		return models.ErrDuplicateRequest
	}
	d.active[req.RequestID] = struct{}{}

	if d.running < d.max {
		d.running++
		d.wg.Add(1)
		go d.work(req)
	} else {
		d.queue = append(d.queue, req)
	}
	d.publishStatsLocked()
	return nil
}

// work runs req, then keeps pulling from the queue until it is empty.
func (d *Dispatcher) work(req *models.AnalysisRequest) {
	defer d.wg.Done()
	for req != nil {
		d.runner.Run(d.ctx, req)

		d.mu.Lock()
		delete(d.active, req.RequestID)
		req = nil
		if len(d.queue) > 0 {
			req = d.queue[0]
			d.queue[0] = nil
			d.queue = d.queue[1:]
		} else {
			d.running--
		}
		d.publishStatsLocked()
		d.mu.Unlock()
	}
}

// Stats returns the number of running and queued requests.
func (d *Dispatcher) Stats() (inFlight, queued int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running, len(d.queue)
}

// Stop refuses new work and waits for queued and running requests. Requests still
// queued when ctx expires get a retryable shutdown outcome; running ones are cancelled.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
	}

	d.mu.Lock()
	left := d.queue
	d.queue = nil
	for _, req := range left {
		delete(d.active, req.RequestID)
	}
	d.publishStatsLocked()
	d.mu.Unlock()

	for _, req := range left {
		d.abandon(req)
	}
	d.log.Warn("dispatcher drain deadline reached",
		applogger.Int("abandoned", len(left)),
	)
	d.cancel()
	<-done
	return ctx.Err()
}

func (d *Dispatcher) abandon(req *models.AnalysisRequest) {
	pctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out := models.NewErrorOutcome(req.RequestID, models.ErrShuttingDown)
	if err := d.publisher.Publish(pctx, out); err != nil && !errors.Is(err, models.ErrPublishConflict) {
		d.log.Error("publish shutdown outcome failed",
			applogger.String("request_id", req.RequestID),
			applogger.Error(err),
		)
		_ = d.publisher.Release(pctx, req.RequestID)
	}
	d.metrics.RecordOutcome(string(out.Status))
}

func (d *Dispatcher) publishStatsLocked() {
	d.metrics.SetInFlight(d.running)
	d.metrics.SetQueued(len(d.queue))
}
