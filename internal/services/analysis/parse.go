package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"TokenPulse/internal/domain/models"
)

var errNoJSON = errors.New("no JSON object in model output")

// stripFences removes a surrounding markdown code fence.
func stripFences(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = t[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "```"))
}

// extractJSON returns the outermost {...} object in text.
func extractJSON(text string) ([]byte, error) {
	t := stripFences(text)
	start := strings.IndexByte(t, '{')
	end := strings.LastIndexByte(t, '}')
	if start < 0 || end <= start {
		return nil, errNoJSON
	}
	return []byte(t[start : end+1]), nil
}

type technicalJSON struct {
	Trend      string   `json:"trend"`
	Confidence *float64 `json:"confidence"`
	Rationale  string   `json:"rationale"`
}

func parseTechnical(text string) (*models.TechnicalSignal, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}
	var v technicalJSON
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode technical: %w", err)
	}
	trend := models.Trend(strings.ToLower(strings.TrimSpace(v.Trend)))
	switch trend {
	case models.Bullish, models.Bearish, models.Neutral:
	default:
		return nil, fmt.Errorf("unknown trend %q", v.Trend)
	}
	if v.Confidence == nil {
		return nil, errors.New("missing confidence")
	}
	return &models.TechnicalSignal{
		Trend:      trend,
		Confidence: models.Clamp01(*v.Confidence),
		Rationale:  cleanRationale(v.Rationale),
	}, nil
}

type sentimentJSON struct {
	Polarity   *float64 `json:"polarity"`
	Confidence *float64 `json:"confidence"`
	Rationale  string   `json:"rationale"`
}

func parseSentiment(text string) (*models.SentimentScore, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}
	var v sentimentJSON
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode sentiment: %w", err)
	}
	if v.Polarity == nil || v.Confidence == nil {
		return nil, errors.New("missing polarity or confidence")
	}
	return &models.SentimentScore{
		Polarity:   models.ClampPolarity(*v.Polarity),
		Confidence: models.Clamp01(*v.Confidence),
		Rationale:  cleanRationale(v.Rationale),
	}, nil
}
