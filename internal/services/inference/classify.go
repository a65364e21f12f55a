package inference

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"TokenPulse/internal/domain/models"
)

// Classify maps a Gemini client error onto the error taxonomy:
// 429/RESOURCE_EXHAUSTED is a rate limit, 400/INVALID_ARGUMENT an invalid prompt,
// anything else an unavailable source.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return models.Unavailable(providerName, err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429 || apiErr.Status == "RESOURCE_EXHAUSTED":
			return models.RateLimited(providerName, err)
		case apiErr.Code == 400 || apiErr.Status == "INVALID_ARGUMENT":
			return models.InvalidPrompt(providerName, err)
		}
		return models.Unavailable(providerName, err)
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED"):
		return models.RateLimited(providerName, err)
	case strings.Contains(msg, "400") || strings.Contains(msg, "INVALID_ARGUMENT"):
		return models.InvalidPrompt(providerName, err)
	default:
		return models.Unavailable(providerName, err)
	}
}
