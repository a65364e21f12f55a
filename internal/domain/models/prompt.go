package models

// PromptTask identifies what an inference call is for.
type PromptTask string

const (
	TaskTechnicalRationale PromptTask = "technical_rationale"
	TaskTechnicalAnalysis  PromptTask = "technical_analysis"
	TaskSentimentRationale PromptTask = "sentiment_rationale"
	TaskSentimentAnalysis  PromptTask = "sentiment_analysis"
	TaskSummary            PromptTask = "summary"
)

// PromptContext travels with a prompt to the inference client.
type PromptContext struct {
	Task      PromptTask
	RequestID string
	Token     string
	Tokens    []string
	System    string
	// JSON asks the client for a JSON-only response.
	JSON bool
}
