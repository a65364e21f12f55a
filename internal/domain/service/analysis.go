package service

import (
	"context"

	"TokenPulse/internal/domain/models"
	"TokenPulse/internal/domain/repository"
)

// TechnicalAnalyzer derives a TechnicalSignal from one token's market snapshot.
// A nil signal with an error means absent; a signal with an error means it degraded to a fallback.
type TechnicalAnalyzer interface {
	Analyze(ctx context.Context, inf repository.Inference, mode models.AnalysisType, snap *models.MarketSnapshot) (*models.TechnicalSignal, error)
}

// SentimentAnalyzer derives a SentimentScore from one token's news digest, with the same error contract.
type SentimentAnalyzer interface {
	Analyze(ctx context.Context, inf repository.Inference, mode models.AnalysisType, digest *models.NewsDigest) (*models.SentimentScore, error)
}
