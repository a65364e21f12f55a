package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"TokenPulse/internal/domain/models"
	"TokenPulse/internal/domain/repository"
	"TokenPulse/internal/services/analysis"
	"TokenPulse/internal/services/fixtures"
	"TokenPulse/pkg/cache"
	"TokenPulse/pkg/metrics"
)

// memorySink collects written outcomes. Writes fail with fail while it is set,
// or for the next failures writes when that is positive.
type memorySink struct {
	mu       sync.Mutex
	out      []*models.Outcome
	fail     error
	failures int
	writes   int
}

func (s *memorySink) Write(_ context.Context, o *models.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.fail != nil {
		return s.fail
	}
	if s.failures > 0 {
		s.failures--
		return errors.New("broker unavailable")
	}
	s.out = append(s.out, o)
	return nil
}

func (s *memorySink) setFail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *memorySink) attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *memorySink) Close() error { return nil }

func (s *memorySink) outcomes() []*models.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.Outcome(nil), s.out...)
}

type memoryAudit struct {
	mu  sync.Mutex
	ids []string
}

func (a *memoryAudit) Record(_ context.Context, o *models.Outcome) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids = append(a.ids, o.RequestID)
	return nil
}

func (a *memoryAudit) Health(context.Context) error { return nil }

// recordingPublisher skips the guard and just records.
type recordingPublisher struct {
	mu  sync.Mutex
	out []*models.Outcome
}

func (p *recordingPublisher) Publish(_ context.Context, o *models.Outcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out = append(p.out, o)
	return nil
}

func (p *recordingPublisher) Release(context.Context, string) error { return nil }

func (p *recordingPublisher) outcomes() []*models.Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*models.Outcome(nil), p.out...)
}

// scriptedInference fails summary calls with summaryErr and delegates everything else to the fixtures.
type scriptedInference struct {
	summaryErr   error
	summaryCalls int32
}

func (s *scriptedInference) Generate(ctx context.Context, prompt string, pc models.PromptContext) (string, error) {
	if pc.Task == models.TaskSummary {
		atomic.AddInt32(&s.summaryCalls, 1)
		if s.summaryErr != nil {
			return "", s.summaryErr
		}
	}
	return fixtures.NewInference().Generate(ctx, prompt, pc)
}

type failingMarket struct{}

func (failingMarket) FetchCandles(context.Context, string, repository.Timeframe) ([]models.Candle, error) {
	return nil, models.RateLimited("binance", errors.New("429"))
}

type failingNews struct{}

func (failingNews) FetchArticles(context.Context, string) ([]models.Article, error) {
	return nil, errors.New("dns failure")
}

// countingMarket tracks the peak number of concurrent fetches.
type countingMarket struct {
	cur, peak int32
}

func (c *countingMarket) FetchCandles(ctx context.Context, token string, tf repository.Timeframe) ([]models.Candle, error) {
	n := atomic.AddInt32(&c.cur, 1)
	for {
		p := atomic.LoadInt32(&c.peak)
		if n <= p || atomic.CompareAndSwapInt32(&c.peak, p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	atomic.AddInt32(&c.cur, -1)
	return fixtures.NewMarket().FetchCandles(ctx, token, tf)
}

// stalledMarket never answers; fetches end when their context does.
type stalledMarket struct{}

func (stalledMarket) FetchCandles(ctx context.Context, _ string, _ repository.Timeframe) ([]models.Candle, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// gatedMarket holds every fetch until release is closed.
type gatedMarket struct {
	started chan struct{}
	release chan struct{}
}

func newGatedMarket() *gatedMarket {
	return &gatedMarket{started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (m *gatedMarket) FetchCandles(ctx context.Context, token string, tf repository.Timeframe) ([]models.Candle, error) {
	select {
	case m.started <- struct{}{}:
	default:
	}
	select {
	case <-m.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return fixtures.NewMarket().FetchCandles(ctx, token, tf)
}

func mockCollaborators() Collaborators {
	return Collaborators{
		Market:    fixtures.NewMarket(),
		News:      fixtures.NewNews(),
		Inference: fixtures.NewInference(),
	}
}

func testEngineConfig() EngineConfig {
	return EngineConfig{
		MarketTimeout:      time.Second,
		NewsTimeout:        time.Second,
		InferenceTimeout:   time.Second,
		AggregationRetries: 3,
		RetryBackoffMin:    time.Millisecond,
		RetryBackoffMax:    2 * time.Millisecond,
		MaxParallelTokens:  5,
		Location:           time.UTC,
	}
}

func newTestEngine(live Collaborators, pub OutcomePublisher, cfg EngineConfig) *AnalysisEngine {
	return NewAnalysisEngine(live, mockCollaborators(),
		analysis.NewTechnicalNode(), analysis.NewSentimentNode(),
		pub, metrics.Nop{}, nil, cfg)
}

func newGuardedPublisher(sink *memorySink) (*ResultPublisher, *cache.MemoryCache) {
	mem := cache.NewMemoryCache()
	return NewResultPublisher(mem, sink, nil, time.Hour, metrics.Nop{}, nil), mem
}

// newPipeline wires gateway, dispatcher, engine and guarded publisher over one cache.
func newPipeline(live Collaborators, sink *memorySink, cfg EngineConfig) (*AnalysisGateway, *Dispatcher, *cache.MemoryCache) {
	mem := cache.NewMemoryCache()
	pub := NewResultPublisher(mem, sink, nil, time.Hour, metrics.Nop{}, nil)
	engine := newTestEngine(live, pub, cfg)
	d := NewDispatcher(engine, pub, 2, metrics.Nop{}, nil)
	g := NewAnalysisGateway("analysis.requests", mem, time.Minute, d, pub,
		[]string{"BTC", "ETH", "SOL"}, metrics.Nop{}, nil)
	return g, d, mem
}

func request(id string, mock bool, tokens ...string) *models.AnalysisRequest {
	return &models.AnalysisRequest{
		RequestID:    id,
		Tokens:       tokens,
		AnalysisType: models.AnalysisQuick,
		Timeframe:    "1d",
		MockMode:     mock,
		CoinSource:   models.CoinSourceRequest,
	}
}
