package analysis

import "TokenPulse/internal/domain/models"

// PolarityThreshold is the sentiment magnitude required to confirm a trend.
const PolarityThreshold = 0.2

// Recommend combines the two stage signals. It is a pure function of its inputs.
func Recommend(tech *models.TechnicalSignal, sent *models.SentimentScore) models.Recommendation {
	if tech == nil && sent == nil {
		return models.InsufficientData
	}
	if tech == nil || sent == nil {
		return models.Hold
	}
	switch {
	case tech.Trend == models.Bullish && sent.Polarity > PolarityThreshold:
		return models.Buy
	case tech.Trend == models.Bearish && sent.Polarity < -PolarityThreshold:
		return models.Sell
	default:
		return models.Hold
	}
}
