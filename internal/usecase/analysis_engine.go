package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"TokenPulse/internal/domain/models"
	"TokenPulse/internal/domain/repository"
	"TokenPulse/internal/domain/service"
	"TokenPulse/internal/services/analysis"
	applogger "TokenPulse/pkg/logger"
	"TokenPulse/pkg/util"
)

var errEmptySummary = errors.New("empty summary")

// Collaborators is one set of outbound dependencies. The engine holds a live
// set and a fixture set and picks per request.
type Collaborators struct {
	Market    repository.MarketData
	News      repository.NewsSource
	Inference repository.Inference
}

// OutcomePublisher delivers terminal outcomes. Release gives up on a request
// whose outcome could not be delivered so a resend of it is admitted again.
type OutcomePublisher interface {
	Publish(ctx context.Context, o *models.Outcome) error
	Release(ctx context.Context, requestID string) error
}

type EngineConfig struct {
	MarketTimeout      time.Duration
	NewsTimeout        time.Duration
	InferenceTimeout   time.Duration
	AggregationRetries int
	PublishRetries     int
	RetryBackoffMin    time.Duration
	RetryBackoffMax    time.Duration
	MaxParallelTokens  int
	Location           *time.Location
}

func (c *EngineConfig) normalize() {
	if c.MarketTimeout <= 0 {
		c.MarketTimeout = 10 * time.Second
	}
	if c.NewsTimeout <= 0 {
		c.NewsTimeout = 10 * time.Second
	}
	if c.InferenceTimeout <= 0 {
		c.InferenceTimeout = 30 * time.Second
	}
	if c.AggregationRetries < 1 {
		c.AggregationRetries = 1
	}
	if c.PublishRetries < 1 {
		c.PublishRetries = 3
	}
	if c.MaxParallelTokens < 1 {
		c.MaxParallelTokens = 5
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
}

// AnalysisEngine runs the fixed workflow: ingest, analyze, aggregate, publish.
type AnalysisEngine struct {
	live      Collaborators
	mock      Collaborators
	technical service.TechnicalAnalyzer
	sentiment service.SentimentAnalyzer
	publisher OutcomePublisher
	metrics   repository.Metrics
	log       *applogger.Logger
	cfg       EngineConfig
	now       func() time.Time
}

func NewAnalysisEngine(
	live, mock Collaborators,
	technical service.TechnicalAnalyzer,
	sentiment service.SentimentAnalyzer,
	publisher OutcomePublisher,
	metrics repository.Metrics,
	log *applogger.Logger,
	cfg EngineConfig,
) *AnalysisEngine {
	cfg.normalize()
	if log == nil {
		log = applogger.Nop()
	}
	return &AnalysisEngine{
		live:      live,
		mock:      mock,
		technical: technical,
		sentiment: sentiment,
		publisher: publisher,
		metrics:   metrics,
		log:       log,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run executes req and publishes exactly one terminal outcome for it.
func (e *AnalysisEngine) Run(ctx context.Context, req *models.AnalysisRequest) *models.Outcome {
	st, report, err := e.execute(ctx, req)

	var out *models.Outcome
	if err != nil {
		id := ""
		if req != nil {
			id = req.RequestID
		}
		out = models.NewErrorOutcome(id, err)
	} else {
		out = models.NewReadyOutcome(req, report, analysis.FormatReply(report, req.CoinSource, e.cfg.Location))
	}

	e.deliver(ctx, out)

	if st != nil {
		final := PhasePublishedSuccess
		if err != nil {
			final = PhasePublishedError
		}
		if terr := st.advance(final); terr != nil {
			e.log.Warn("state transition rejected", applogger.String("request_id", out.RequestID), applogger.Error(terr))
		}
		e.metrics.RecordLatency("request_seconds", time.Since(st.startedAt).Seconds())
	}
	e.metrics.RecordOutcome(string(out.Status))
	return out
}

// Execute runs the workflow without publishing.
func (e *AnalysisEngine) Execute(ctx context.Context, req *models.AnalysisRequest) (*models.AnalysisReport, error) {
	_, report, err := e.execute(ctx, req)
	return report, err
}

func (e *AnalysisEngine) execute(ctx context.Context, req *models.AnalysisRequest) (*requestState, *models.AnalysisReport, error) {
	st, err := newRequestState(req, e.now())
	if err != nil {
		e.log.Warn("request initialization failed", applogger.Error(err))
		return nil, nil, err
	}
	log := e.log.With(applogger.String("request_id", req.RequestID))

	collab := e.live
	if req.MockMode {
		collab = e.mock
	}
	inf := &requestInference{inner: collab.Inference, requestID: req.RequestID, tokens: req.Tokens}

	e.stage(st, PhaseIngesting, func() { e.ingest(ctx, st, collab) })
	e.stage(st, PhaseAnalyzing, func() { e.analyze(ctx, st, inf) })
	if err := st.advance(PhaseAggregating); err != nil {
		return st, nil, err
	}

	start := time.Now()
	report := st.report(e.now())
	summary, err := e.summarize(ctx, inf, report)
	e.metrics.RecordStage(models.StageAggregation, time.Since(start).Seconds())
	if err != nil {
		e.metrics.RecordStageError(models.StageAggregation, models.KindAggregationFailure)
		log.Error("aggregation failed", applogger.Error(err))
		return st, nil, err
	}
	report.OverallSummary = summary
	for _, tok := range report.Tokens {
		e.metrics.RecordRecommendation(string(report.Recommendations[tok]))
	}

	log.Info("analysis complete",
		applogger.Strings("tokens", report.Tokens),
		applogger.String("analysis_type", string(report.AnalysisType)),
		applogger.Int("errors", len(report.Errors)),
		applogger.Duration("elapsed", time.Since(st.startedAt)),
	)
	return st, report, nil
}

func (e *AnalysisEngine) stage(st *requestState, phase Phase, fn func()) {
	if err := st.advance(phase); err != nil {
		e.log.Warn("state transition rejected", applogger.String("request_id", st.req.RequestID), applogger.Error(err))
		return
	}
	start := time.Now()
	fn()
	e.metrics.RecordStage(string(phase), time.Since(start).Seconds())
}

type ingestResult struct {
	idx       int
	snap      *models.MarketSnapshot
	digest    *models.NewsDigest
	marketErr error
	newsErr   error
}

// ingest fetches market data and news for every token, at most MaxParallelTokens at a time.
func (e *AnalysisEngine) ingest(ctx context.Context, st *requestState, c Collaborators) {
	tokens := st.req.Tokens
	tf := repository.NormalizeTimeframe(st.req.Timeframe)
	results := make(chan ingestResult, len(tokens))
	sem := make(chan struct{}, e.cfg.MaxParallelTokens)

	for i, tok := range tokens {
		go func(i int, tok string) {
			sem <- struct{}{}
			defer func() { <-sem }()

			res := ingestResult{idx: i}
			done := make(chan struct{})
			go func() {
				defer close(done)
				res.digest, res.newsErr = e.fetchNews(ctx, c.News, tok)
			}()
			res.snap, res.marketErr = e.fetchMarket(ctx, c.Market, tok, tf)
			<-done
			results <- res
		}(i, tok)
	}

	collected := make([]ingestResult, len(tokens))
	for range tokens {
		r := <-results
		collected[r.idx] = r
	}
	for i, tok := range tokens {
		r := collected[i]
		st.setMarket(tok, r.snap)
		st.setNews(tok, r.digest)
		if r.marketErr != nil {
			e.stageError(st, models.StageMarket, tok, r.marketErr)
		}
		if r.newsErr != nil {
			e.stageError(st, models.StageNews, tok, r.newsErr)
		}
	}
}

func (e *AnalysisEngine) fetchMarket(ctx context.Context, md repository.MarketData, tok string, tf repository.Timeframe) (*models.MarketSnapshot, error) {
	snap := &models.MarketSnapshot{Token: tok, Timeframe: string(tf), Availability: models.AvailabilityUnavailable}
	cctx, cancel := context.WithTimeout(ctx, e.cfg.MarketTimeout)
	defer cancel()

	candles, err := md.FetchCandles(cctx, tok, tf)
	snap.FetchedAt = e.now()
	if err != nil {
		err = models.AsSourceError(models.StageMarket, err)
		snap.Cause = err.Error()
		return snap, err
	}
	if len(candles) == 0 {
		snap.Cause = "no candles"
		return snap, models.Unavailable(models.StageMarket, errors.New("no candles returned"))
	}
	snap.Candles = candles
	snap.Availability = models.AvailabilityAvailable
	return snap, nil
}

func (e *AnalysisEngine) fetchNews(ctx context.Context, ns repository.NewsSource, tok string) (*models.NewsDigest, error) {
	d := &models.NewsDigest{Token: tok, Availability: models.AvailabilityUnavailable}
	cctx, cancel := context.WithTimeout(ctx, e.cfg.NewsTimeout)
	defer cancel()

	articles, err := ns.FetchArticles(cctx, tok)
	d.FetchedAt = e.now()
	if err != nil {
		err = models.AsSourceError(models.StageNews, err)
		d.Cause = err.Error()
		return d, err
	}
	d.Articles = articles
	d.Availability = models.AvailabilityAvailable
	return d, nil
}

type analyzeResult struct {
	idx       int
	technical *models.TechnicalSignal
	sentiment *models.SentimentScore
	techErr   error
	sentErr   error
}

// analyze runs the technical and sentiment nodes for every token.
func (e *AnalysisEngine) analyze(ctx context.Context, st *requestState, inf repository.Inference) {
	tokens := st.req.Tokens
	mode := st.req.AnalysisType
	results := make(chan analyzeResult, len(tokens))
	sem := make(chan struct{}, e.cfg.MaxParallelTokens)

	for i, tok := range tokens {
		snap, digest := st.market[tok], st.news[tok]
		go func(i int) {
			sem <- struct{}{}
			defer func() { <-sem }()

			res := analyzeResult{idx: i}
			done := make(chan struct{})
			go func() {
				defer close(done)
				if !digest.IsAvailable() || len(digest.Articles) == 0 {
					return
				}
				cctx, cancel := context.WithTimeout(ctx, e.cfg.InferenceTimeout)
				defer cancel()
				res.sentiment, res.sentErr = e.sentiment.Analyze(cctx, inf, mode, digest)
			}()
			if snap.IsAvailable() {
				cctx, cancel := context.WithTimeout(ctx, e.cfg.InferenceTimeout)
				res.technical, res.techErr = e.technical.Analyze(cctx, inf, mode, snap)
				cancel()
			}
			<-done
			results <- res
		}(i)
	}

	collected := make([]analyzeResult, len(tokens))
	for range tokens {
		r := <-results
		collected[r.idx] = r
	}
	for i, tok := range tokens {
		r := collected[i]
		st.setTechnical(tok, r.technical)
		st.setSentiment(tok, r.sentiment)
		if r.techErr != nil {
			e.stageError(st, models.StageTechnical, tok, r.techErr)
		}
		if r.sentErr != nil {
			e.stageError(st, models.StageSentiment, tok, r.sentErr)
		}
	}
}

func (e *AnalysisEngine) stageError(st *requestState, stage, tok string, err error) {
	se := models.NewStageError(stage, tok, err)
	st.addError(se)
	e.metrics.RecordStageError(stage, se.Kind)
	e.log.Warn("stage degraded",
		applogger.String("request_id", st.req.RequestID),
		applogger.String("stage", stage),
		applogger.String("token", tok),
		applogger.String("kind", se.Kind),
		applogger.Error(err),
	)
}

// summarize makes the one call that can fail a request. Invalid prompts are not retried.
func (e *AnalysisEngine) summarize(ctx context.Context, inf repository.Inference, report *models.AnalysisReport) (string, error) {
	prompt := analysis.BuildSummaryPrompt(report)
	pc := models.PromptContext{
		Task:   models.TaskSummary,
		Tokens: report.Tokens,
		System: analysis.SummarySystemPrompt,
	}

	for attempt := 1; ; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, e.cfg.InferenceTimeout)
		text, err := inf.Generate(cctx, prompt, pc)
		cancel()
		if err == nil {
			if s := strings.TrimSpace(text); s != "" {
				return s, nil
			}
			err = models.Unavailable("inference", errEmptySummary)
		}

		if errors.Is(err, models.ErrInvalidPrompt) || attempt >= e.cfg.AggregationRetries {
			return "", models.AggregationFailure(attempt, err)
		}
		delay := util.BackoffWithJitter(e.cfg.RetryBackoffMin, e.cfg.RetryBackoffMax, attempt)
		e.log.Warn("summary attempt failed, retrying",
			applogger.String("request_id", report.RequestID),
			applogger.Int("attempt", attempt),
			applogger.Duration("backoff", delay),
			applogger.Error(err),
		)
		if serr := util.Sleep(ctx, delay); serr != nil {
			return "", models.AggregationFailure(attempt, err)
		}
	}
}

// deliver publishes out, retrying sink failures with backoff. When every attempt
// fails the request is released so the caller can resend it.
func (e *AnalysisEngine) deliver(ctx context.Context, out *models.Outcome) {
	ctx = context.WithoutCancel(ctx)
	var err error
	for attempt := 1; attempt <= e.cfg.PublishRetries; attempt++ {
		err = e.publisher.Publish(ctx, out)
		if err == nil || errors.Is(err, models.ErrPublishConflict) || errors.Is(err, models.ErrValidation) {
			return
		}
		if attempt == e.cfg.PublishRetries {
			break
		}
		delay := util.BackoffWithJitter(e.cfg.RetryBackoffMin, e.cfg.RetryBackoffMax, attempt)
		e.log.Warn("publish outcome failed, retrying",
			applogger.String("request_id", out.RequestID),
			applogger.Int("attempt", attempt),
			applogger.Duration("backoff", delay),
			applogger.Error(err),
		)
		_ = util.Sleep(ctx, delay)
	}

	e.metrics.RecordError("undeliverable")
	e.log.Error("outcome undeliverable, releasing request",
		applogger.String("request_id", out.RequestID),
		applogger.String("status", string(out.Status)),
		applogger.Int("attempts", e.cfg.PublishRetries),
		applogger.Error(err),
	)
	if rerr := e.publisher.Release(ctx, out.RequestID); rerr != nil {
		e.log.Error("release request failed", applogger.String("request_id", out.RequestID), applogger.Error(rerr))
	}
}

// requestInference stamps request context onto every prompt.
type requestInference struct {
	inner     repository.Inference
	requestID string
	tokens    []string
}

func (r *requestInference) Generate(ctx context.Context, prompt string, pc models.PromptContext) (string, error) {
	pc.RequestID = r.requestID
	if len(pc.Tokens) == 0 {
		pc.Tokens = r.tokens
	}
	text, err := r.inner.Generate(ctx, prompt, pc)
	return text, models.AsSourceError("inference", err)
}
