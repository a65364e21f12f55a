package fixtures

import (
	"context"
	"fmt"
	"strings"

	"TokenPulse/internal/domain/models"
)

// Inference answers every prompt with deterministic text keyed by task and token.
type Inference struct{}

func NewInference() *Inference { return &Inference{} }

func (Inference) Generate(ctx context.Context, prompt string, pc models.PromptContext) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", models.Unavailable(source, err)
	}
	switch pc.Task {
	case models.TaskTechnicalRationale:
		return fmt.Sprintf("%s indicators read %s over the sampled window.", pc.Token, mockTrend(pc.Token)), nil
	case models.TaskSentimentRationale:
		return fmt.Sprintf("%s headlines carry a %s tone.", pc.Token, mockTone(pc.Token)), nil
	case models.TaskTechnicalAnalysis:
		conf := 0.5
		if mockTrend(pc.Token) != models.Neutral {
			conf = 0.8
		}
		return fmt.Sprintf(`{"trend":"%s","confidence":%.1f,"rationale":"%s fixture trend."}`, mockTrend(pc.Token), conf, pc.Token), nil
	case models.TaskSentimentAnalysis:
		return fmt.Sprintf(`{"polarity":%.1f,"confidence":0.7,"rationale":"%s fixture tone."}`, mockPolarity(pc.Token), pc.Token), nil
	case models.TaskSummary:
		return fmt.Sprintf("Mock summary for %s.", strings.Join(pc.Tokens, ", ")), nil
	default:
		return "", models.InvalidPrompt(source, fmt.Errorf("unknown task %q", pc.Task))
	}
}

func mockTrend(token string) models.Trend {
	switch token {
	case "BTC":
		return models.Bullish
	case "SOL":
		return models.Bearish
	default:
		return models.Neutral
	}
}

func mockPolarity(token string) float64 {
	switch token {
	case "BTC":
		return 0.7
	case "SOL":
		return -0.6
	default:
		return 0
	}
}

func mockTone(token string) string {
	switch mockPolarity(token) {
	case 0:
		return "neutral"
	case 0.7:
		return "positive"
	default:
		return "negative"
	}
}
