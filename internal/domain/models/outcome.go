package models

import "time"

type OutcomeStatus string

const (
	StatusReady OutcomeStatus = "analysis_ready"
	StatusError OutcomeStatus = "analysis_error"
)

// Outcome is the terminal message published for a request.
type Outcome struct {
	Status       OutcomeStatus   `json:"status"`
	RequestID    string          `json:"request_id"`
	Report       *AnalysisReport `json:"report,omitempty"`
	FinalSummary string          `json:"final_summary,omitempty"`
	Coins        []string        `json:"coins,omitempty"`
	CoinSource   string          `json:"coin_source,omitempty"`
	Reply        string          `json:"reply,omitempty"`
	Cause        string          `json:"cause,omitempty"`
	ErrorKind    string          `json:"error_kind,omitempty"`
	Retryable    *bool           `json:"retryable,omitempty"`
	PublishedAt  time.Time       `json:"published_at"`
}

// NewReadyOutcome wraps a completed report.
func NewReadyOutcome(req *AnalysisRequest, report *AnalysisReport, reply string) *Outcome {
	return &Outcome{
		Status:       StatusReady,
		RequestID:    report.RequestID,
		Report:       report,
		FinalSummary: report.OverallSummary,
		Coins:        append([]string(nil), report.Tokens...),
		CoinSource:   req.CoinSource,
		Reply:        reply,
	}
}

// NewErrorOutcome builds an error payload; retryable follows the error taxonomy.
func NewErrorOutcome(requestID string, err error) *Outcome {
	kind, retryable := Classify(err)
	return &Outcome{
		Status:    StatusError,
		RequestID: requestID,
		Cause:     err.Error(),
		ErrorKind: kind,
		Retryable: &retryable,
	}
}

// IsRetryable reports the retryable flag of an error outcome.
func (o *Outcome) IsRetryable() bool {
	return o != nil && o.Retryable != nil && *o.Retryable
}
