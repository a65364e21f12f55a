package models

import "math"

type Trend string

const (
	Bullish Trend = "bullish"
	Bearish Trend = "bearish"
	Neutral Trend = "neutral"
)

// TechnicalSignal is the technical stage result for one token.
type TechnicalSignal struct {
	Token      string             `json:"token"`
	Trend      Trend              `json:"trend"`
	Rationale  string             `json:"rationale"`
	Confidence float64            `json:"confidence"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
}

// SentimentScore is the sentiment stage result for one token. Polarity is in [-1, 1].
type SentimentScore struct {
	Token      string  `json:"token"`
	Polarity   float64 `json:"polarity"`
	Rationale  string  `json:"rationale"`
	Confidence float64 `json:"confidence"`
	Articles   int     `json:"articles"`
}

// TokenSignals pairs the per-token stage outputs; nil means absent.
type TokenSignals struct {
	Technical *TechnicalSignal `json:"technical"`
	Sentiment *SentimentScore  `json:"sentiment"`
}

type Recommendation string

const (
	Buy              Recommendation = "buy"
	Hold             Recommendation = "hold"
	Sell             Recommendation = "sell"
	InsufficientData Recommendation = "insufficient-data"
)

// Clamp01 bounds v to [0, 1].
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ClampPolarity bounds v to [-1, 1].
func ClampPolarity(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
