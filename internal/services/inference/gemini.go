// Package inference implements repository.Inference on the Gemini API.
package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"TokenPulse/internal/domain/models"
	svcmetrics "TokenPulse/internal/service/metrics"
	"TokenPulse/internal/service/ratelimit"
	applogger "TokenPulse/pkg/logger"
)

const (
	providerName = "gemini"
	DefaultModel = "gemini-2.5-flash"
)

var errEmptyResponse = errors.New("no content generated")

type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
	limiter     *ratelimit.Limiter
	log         *applogger.Logger
}

type Option func(*Gemini)

func WithModel(model string) Option {
	return func(g *Gemini) {
		if model != "" {
			g.model = model
		}
	}
}

func WithTemperature(t float32) Option {
	return func(g *Gemini) { g.temperature = t }
}

func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(g *Gemini) { g.limiter = l }
}

func WithLogger(l *applogger.Logger) Option {
	return func(g *Gemini) {
		if l != nil {
			g.log = l
		}
	}
}

func NewGemini(ctx context.Context, apiKey string, opts ...Option) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g := &Gemini{
		client:      client,
		model:       DefaultModel,
		temperature: 0.3,
		log:         applogger.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate sends one prompt. Failures are returned as *models.SourceError.
func (g *Gemini) Generate(ctx context.Context, prompt string, pc models.PromptContext) (text string, err error) {
	start := time.Now()
	defer func() {
		kind, _ := models.Classify(err)
		svcmetrics.Observe(providerName, string(pc.Task), start, kind)
	}()

	if strings.TrimSpace(prompt) == "" {
		return "", models.InvalidPrompt(providerName, errors.New("empty prompt"))
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx, providerName); err != nil {
			return "", models.Unavailable(providerName, err)
		}
	}

	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr(g.temperature)}
	if pc.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(pc.System, genai.RoleUser)
	}
	if pc.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	g.log.Debug("gemini generate",
		applogger.String("model", g.model),
		applogger.String("task", string(pc.Task)),
		applogger.String("request_id", pc.RequestID),
		applogger.String("token", pc.Token),
		applogger.Int("prompt_len", len(prompt)),
	)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", Classify(err)
	}
	text, err = extractText(resp)
	if err != nil {
		return "", models.Unavailable(providerName, err)
	}
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errEmptyResponse
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", errEmptyResponse
	}
	return b.String(), nil
}

// Disabled stands in for Gemini when no API key is configured. Mock requests
// still run; live requests degrade with source_unavailable.
type Disabled struct{}

func (Disabled) Generate(context.Context, string, models.PromptContext) (string, error) {
	return "", models.Unavailable(providerName, errors.New("gemini api key not configured"))
}
