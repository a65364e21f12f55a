package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"TokenPulse/internal/domain/models"
	"TokenPulse/internal/domain/repository"
	"TokenPulse/internal/services/coins"
	"TokenPulse/pkg/cache"
	xhttp "TokenPulse/pkg/http"
	pkgkafka "TokenPulse/pkg/kafka"
	applogger "TokenPulse/pkg/logger"
)

// Submitter accepts validated requests for execution.
type Submitter interface {
	Submit(req *models.AnalysisRequest) error
}

// AnalysisGateway validates inbound requests, de-duplicates them and hands them to the dispatcher.
type AnalysisGateway struct {
	topic        string
	dedup        cache.Service
	dedupWindow  time.Duration
	dispatcher   Submitter
	publisher    OutcomePublisher
	defaultCoins []string
	metrics      repository.Metrics
	log          *applogger.Logger
}

func NewAnalysisGateway(
	topic string,
	dedup cache.Service,
	dedupWindow time.Duration,
	dispatcher Submitter,
	publisher OutcomePublisher,
	defaultCoins []string,
	metrics repository.Metrics,
	log *applogger.Logger,
) *AnalysisGateway {
	if log == nil {
		log = applogger.Nop()
	}
	if dedupWindow <= 0 {
		dedupWindow = 10 * time.Minute
	}
	return &AnalysisGateway{
		topic:        topic,
		dedup:        dedup,
		dedupWindow:  dedupWindow,
		dispatcher:   dispatcher,
		publisher:    publisher,
		defaultCoins: defaultCoins,
		metrics:      metrics,
		log:          log,
	}
}

func (g *AnalysisGateway) Topic() string { return g.topic }

func seenKey(requestID string) string {
	return cache.Key("analysis", "seen", requestID)
}

// Handle consumes one request message. Duplicates are acknowledged. Rejections that
// carry a request_id are answered with an error outcome; ones that don't are permanent
// failures for the consumer's dead-letter topic.
func (g *AnalysisGateway) Handle(ctx context.Context, raw []byte) error {
	req, err := g.Accept(ctx, raw)
	if err == nil {
		_, err = g.Admit(ctx, req)
	}
	if err == nil {
		return nil
	}

	var rejected *models.RejectedRequest
	switch {
	case errors.Is(err, models.ErrDuplicateRequest):
		g.log.Info("duplicate request ignored", applogger.String("request_id", req.RequestID))
		return nil
	case errors.As(err, &rejected):
		if rejected.RequestID == "" {
			return pkgkafka.Permanent(err)
		}
		// the rejection consumes the id; an admitted request with it keeps its own outcome
		ok, lerr := g.dedup.TryLock(ctx, seenKey(rejected.RequestID), g.dedupWindow)
		if lerr != nil {
			g.metrics.RecordError("dedup")
			return fmt.Errorf("dedup check %s: %w", rejected.RequestID, lerr)
		}
		if !ok {
			g.metrics.RecordRequest("duplicate")
			g.log.Info("rejected payload reuses a known request_id, ignored",
				applogger.String("request_id", rejected.RequestID),
			)
			return nil
		}
		perr := g.publisher.Publish(ctx, models.NewErrorOutcome(rejected.RequestID, err))
		if perr != nil && !errors.Is(perr, models.ErrPublishConflict) {
			return fmt.Errorf("publish rejection: %w", perr)
		}
		return nil
	default:
		return err
	}
}

// Accept decodes a raw payload. Malformed JSON is rejected, keeping the request_id if it can be read.
func (g *AnalysisGateway) Accept(_ context.Context, raw []byte) (*models.AnalysisRequest, error) {
	var req models.AnalysisRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		var idOnly struct {
			RequestID string `json:"request_id"`
		}
		_ = json.Unmarshal(raw, &idOnly)
		g.metrics.RecordRequest("malformed")
		return nil, &models.RejectedRequest{
			RequestID: printableID(idOnly.RequestID),
			Reason:    "malformed payload",
			Violations: []models.FieldViolation{{
				Code:    "ERR_MALFORMED",
				Message: err.Error(),
			}},
		}
	}
	return &req, nil
}

// Admit normalizes, validates and de-duplicates req, then submits it. It returns the
// accepted copy and does not wait for execution.
func (g *AnalysisGateway) Admit(ctx context.Context, in *models.AnalysisRequest) (*models.AnalysisRequest, error) {
	if in == nil {
		return nil, &models.RejectedRequest{Reason: "empty request"}
	}
	req := in.Clone()
	req.Tokens, req.CoinSource = coins.Resolve(req.Tokens, req.Messages, g.defaultCoins)

	if err := xhttp.ApplyDefaults(req); err != nil {
		return nil, &models.RejectedRequest{RequestID: req.RequestID, Reason: "defaults", Violations: []models.FieldViolation{{Code: "ERR_DEFAULTS", Message: err.Error()}}}
	}
	if verrs := xhttp.ValidateStruct(ctx, req); len(verrs) > 0 {
		g.metrics.RecordRequest("rejected")
		rej := &models.RejectedRequest{RequestID: printableID(req.RequestID), Reason: "invalid request"}
		for _, v := range verrs {
			rej.Violations = append(rej.Violations, models.FieldViolation{Field: v.Field, Code: v.Code, Message: v.Message})
		}
		g.log.Warn("request rejected",
			applogger.String("request_id", req.RequestID),
			applogger.Any("violations", rej.Violations),
		)
		return nil, rej
	}

	key := seenKey(req.RequestID)
	ok, err := g.dedup.TryLock(ctx, key, g.dedupWindow)
	if err != nil {
		g.metrics.RecordError("dedup")
		return nil, fmt.Errorf("dedup check %s: %w", req.RequestID, err)
	}
	if !ok {
		g.metrics.RecordRequest("duplicate")
		return nil, fmt.Errorf("%w: %s", models.ErrDuplicateRequest, req.RequestID)
	}

	if err := g.dispatcher.Submit(req); err != nil {
		// hand the key back: a running request still owns the id, or a restart redelivers it
		if errors.Is(err, models.ErrShuttingDown) || errors.Is(err, models.ErrDuplicateRequest) {
			_ = g.dedup.Unlock(context.WithoutCancel(ctx), key)
		}
		if errors.Is(err, models.ErrDuplicateRequest) {
			g.metrics.RecordRequest("duplicate")
		}
		return nil, fmt.Errorf("submit %s: %w", req.RequestID, err)
	}

	g.metrics.RecordRequest("accepted")
	g.log.Info("request accepted",
		applogger.String("request_id", req.RequestID),
		applogger.Strings("tokens", req.Tokens),
		applogger.String("coin_source", req.CoinSource),
		applogger.String("analysis_type", string(req.AnalysisType)),
		applogger.Bool("mock_mode", req.MockMode),
	)
	return req, nil
}

// printableID drops ids that could not be used as a Kafka key or cache key.
func printableID(id string) string {
	if id == "" || len(id) > 128 {
		return ""
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x20 || id[i] > 0x7e {
			return ""
		}
	}
	return id
}

var _ pkgkafka.MessageHandler = (*AnalysisGateway)(nil)
