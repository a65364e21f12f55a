package models

import "time"

// Stage names used in stage errors and metrics.
const (
	StageMarket      = "market"
	StageNews        = "news"
	StageTechnical   = "technical"
	StageSentiment   = "sentiment"
	StageAggregation = "aggregation"
)

// StageError records a degraded stage. Token is empty for request-wide stages.
type StageError struct {
	Stage     string `json:"stage"`
	Token     string `json:"token,omitempty"`
	Cause     string `json:"cause"`
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable"`
}

// NewStageError builds a StageError from a collaborator or node failure.
func NewStageError(stage, token string, err error) StageError {
	kind, retryable := Classify(err)
	return StageError{
		Stage:     stage,
		Token:     token,
		Cause:     err.Error(),
		Kind:      kind,
		Retryable: retryable,
	}
}

type AnalysisReport struct {
	RequestID       string                    `json:"request_id"`
	Tokens          []string                  `json:"tokens"`
	AnalysisType    AnalysisType              `json:"analysis_type"`
	Timeframe       string                    `json:"timeframe"`
	Signals         map[string]TokenSignals   `json:"signals"`
	Recommendations map[string]Recommendation `json:"recommendations"`
	Market          map[string]MarketSummary  `json:"market,omitempty"`
	OverallSummary  string                    `json:"overall_summary"`
	Errors          []StageError              `json:"errors"`
	GeneratedAt     time.Time                 `json:"generated_at"`
}
