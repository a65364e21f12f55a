package models

// Inbound analysis request. Shared by the Kafka gateway and the HTTP submit endpoint.

// AnalysisType selects how much of the analysis is delegated to the inference client.
type AnalysisType string

const (
	AnalysisQuick         AnalysisType = "quick"
	AnalysisComprehensive AnalysisType = "comprehensive"
)

// Coin source values recorded on accepted requests.
const (
	CoinSourceRequest   = "request"
	CoinSourceExtracted = "extracted"
	CoinSourceDefault   = "default"
)

// MaxTokensPerRequest bounds the fan-out of a single request.
const MaxTokensPerRequest = 20

type AnalysisRequest struct {
	RequestID    string       `json:"request_id" validate:"required,max=128,printascii"`
	Tokens       []string     `json:"tokens" validate:"required,min=1,max=20,dive,min=2,max=10,alphanum,uppercase"`
	AnalysisType AnalysisType `json:"analysis_type" default:"quick" validate:"oneof=quick comprehensive"`
	Timeframe    string       `json:"timeframe" default:"1d" validate:"oneof=1m 3m 5m 15m 30m 1h 2h 4h 6h 8h 12h 1d 3d 1w 1M"`
	MockMode     bool         `json:"mock_mode"`
	Messages     []string     `json:"messages,omitempty" validate:"max=200"`
	CoinSource   string       `json:"coin_source,omitempty"`
}

// Clone returns a deep copy so an accepted request can't be mutated by its submitter.
func (r *AnalysisRequest) Clone() *AnalysisRequest {
	if r == nil {
		return nil
	}
	c := *r
	c.Tokens = append([]string(nil), r.Tokens...)
	if r.Messages != nil {
		c.Messages = append([]string(nil), r.Messages...)
	}
	return &c
}

// FieldViolation describes a single failed validation rule.
type FieldViolation struct {
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RejectedRequest is returned by the gateway for payloads that never enter the engine.
type RejectedRequest struct {
	RequestID  string           `json:"request_id,omitempty"`
	Reason     string           `json:"reason"`
	Violations []FieldViolation `json:"violations,omitempty"`
}

func (r *RejectedRequest) Error() string {
	if len(r.Violations) == 0 {
		return "rejected: " + r.Reason
	}
	return "rejected: " + r.Reason + ": " + r.Violations[0].Message
}

func (r *RejectedRequest) Unwrap() error { return ErrValidation }
