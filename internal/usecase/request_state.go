package usecase

import (
	"fmt"
	"time"

	"TokenPulse/internal/domain/models"
	"TokenPulse/internal/services/analysis"
	"TokenPulse/internal/services/indicators"
)

// Phase is a request's position in the workflow.
type Phase string

const (
	PhaseReceived         Phase = "received"
	PhaseIngesting        Phase = "ingesting"
	PhaseAnalyzing        Phase = "analyzing"
	PhaseAggregating      Phase = "aggregating"
	PhasePublishedSuccess Phase = "published-success"
	PhasePublishedError   Phase = "published-error"
)

// IsTerminal reports whether no further transitions are allowed.
func (p Phase) IsTerminal() bool {
	return p == PhasePublishedSuccess || p == PhasePublishedError
}

var nextPhases = map[Phase][]Phase{
	PhaseReceived:    {PhaseIngesting},
	PhaseIngesting:   {PhaseAnalyzing},
	PhaseAnalyzing:   {PhaseAggregating},
	PhaseAggregating: {PhasePublishedSuccess, PhasePublishedError},
}

// requestState is owned by the engine goroutine running the request.
// Per-token slots are written once each; workers hand results back over channels.
type requestState struct {
	req       *models.AnalysisRequest
	phase     Phase
	history   []Phase
	market    map[string]*models.MarketSnapshot
	news      map[string]*models.NewsDigest
	technical map[string]*models.TechnicalSignal
	sentiment map[string]*models.SentimentScore
	written   map[string]struct{}
	errors    []models.StageError
	startedAt time.Time
}

func newRequestState(req *models.AnalysisRequest, now time.Time) (*requestState, error) {
	switch {
	case req == nil:
		return nil, fmt.Errorf("%w: nil request", models.ErrValidation)
	case req.RequestID == "":
		return nil, fmt.Errorf("%w: missing request_id", models.ErrValidation)
	case len(req.Tokens) == 0:
		return nil, fmt.Errorf("%w: request %s has no tokens", models.ErrValidation, req.RequestID)
	}
	n := len(req.Tokens)
	return &requestState{
		req:       req,
		phase:     PhaseReceived,
		history:   []Phase{PhaseReceived},
		market:    make(map[string]*models.MarketSnapshot, n),
		news:      make(map[string]*models.NewsDigest, n),
		technical: make(map[string]*models.TechnicalSignal, n),
		sentiment: make(map[string]*models.SentimentScore, n),
		written:   make(map[string]struct{}, 4*n),
		startedAt: now,
	}, nil
}

// advance moves to next, rejecting skips and anything after a terminal phase.
func (s *requestState) advance(next Phase) error {
	for _, allowed := range nextPhases[s.phase] {
		if allowed == next {
			s.phase = next
			s.history = append(s.history, next)
			return nil
		}
	}
	return fmt.Errorf("invalid transition %s -> %s", s.phase, next)
}

func (s *requestState) once(stage, token string) bool {
	key := stage + "/" + token
	if _, ok := s.written[key]; ok {
		return false
	}
	s.written[key] = struct{}{}
	return true
}

func (s *requestState) setMarket(token string, snap *models.MarketSnapshot) {
	if s.once(models.StageMarket, token) {
		s.market[token] = snap
	}
}

func (s *requestState) setNews(token string, d *models.NewsDigest) {
	if s.once(models.StageNews, token) {
		s.news[token] = d
	}
}

func (s *requestState) setTechnical(token string, sig *models.TechnicalSignal) {
	if s.once(models.StageTechnical, token) {
		s.technical[token] = sig
	}
}

func (s *requestState) setSentiment(token string, sc *models.SentimentScore) {
	if s.once(models.StageSentiment, token) {
		s.sentiment[token] = sc
	}
}

func (s *requestState) addError(e models.StageError) {
	s.errors = append(s.errors, e)
}

// report assembles everything but the overall summary.
func (s *requestState) report(now time.Time) *models.AnalysisReport {
	r := &models.AnalysisReport{
		RequestID:       s.req.RequestID,
		Tokens:          append([]string(nil), s.req.Tokens...),
		AnalysisType:    s.req.AnalysisType,
		Timeframe:       s.req.Timeframe,
		Signals:         make(map[string]models.TokenSignals, len(s.req.Tokens)),
		Recommendations: make(map[string]models.Recommendation, len(s.req.Tokens)),
		Market:          make(map[string]models.MarketSummary),
		Errors:          append([]models.StageError{}, s.errors...),
		GeneratedAt:     now,
	}
	for _, tok := range s.req.Tokens {
		sig := models.TokenSignals{Technical: s.technical[tok], Sentiment: s.sentiment[tok]}
		r.Signals[tok] = sig
		r.Recommendations[tok] = analysis.Recommend(sig.Technical, sig.Sentiment)
		if snap := s.market[tok]; snap.IsAvailable() {
			closes := indicators.Closes(snap.Candles)
			last := snap.Candles[len(snap.Candles)-1]
			r.Market[tok] = models.MarketSummary{
				LastPrice: last.Close,
				ChangePct: indicators.PctChange(closes),
				Candles:   len(snap.Candles),
				AsOf:      last.OpenTime,
			}
		}
	}
	return r
}
