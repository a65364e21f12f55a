package repository

import (
	"context"

	"TokenPulse/internal/domain/models"
)

// MarketData fetches OHLCV candles for a token.
type MarketData interface {
	FetchCandles(ctx context.Context, token string, timeframe Timeframe) ([]models.Candle, error)
}

// NewsSource fetches recent articles mentioning a token.
type NewsSource interface {
	FetchArticles(ctx context.Context, token string) ([]models.Article, error)
}

// Inference generates text from a prompt.
type Inference interface {
	Generate(ctx context.Context, prompt string, pc models.PromptContext) (string, error)
}

// OutcomeSink writes a terminal outcome to the result channel.
type OutcomeSink interface {
	Write(ctx context.Context, o *models.Outcome) error
	Close() error
}

// OutcomeAudit records terminal outcome metadata.
type OutcomeAudit interface {
	Record(ctx context.Context, o *models.Outcome) error
	Health(ctx context.Context) error
}

type Metrics interface {
	RecordRequest(result string)
	RecordStage(stage string, seconds float64)
	RecordStageError(stage, kind string)
	RecordOutcome(status string)
	RecordRecommendation(rec string)
	SetInFlight(n int)
	SetQueued(n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
