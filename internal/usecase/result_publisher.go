package usecase

import (
	"context"
	"fmt"
	"time"

	"TokenPulse/internal/domain/models"
	"TokenPulse/internal/domain/repository"
	"TokenPulse/pkg/cache"
	applogger "TokenPulse/pkg/logger"
)

// ResultPublisher writes at most one terminal outcome per request_id.
type ResultPublisher struct {
	guard    cache.Service
	sink     repository.OutcomeSink
	audit    repository.OutcomeAudit
	guardTTL time.Duration
	metrics  repository.Metrics
	log      *applogger.Logger
	now      func() time.Time
}

// NewResultPublisher builds a publisher. audit may be nil.
func NewResultPublisher(guard cache.Service, sink repository.OutcomeSink, audit repository.OutcomeAudit, guardTTL time.Duration, metrics repository.Metrics, log *applogger.Logger) *ResultPublisher {
	if guardTTL <= 0 {
		guardTTL = 24 * time.Hour
	}
	if log == nil {
		log = applogger.Nop()
	}
	return &ResultPublisher{
		guard:    guard,
		sink:     sink,
		audit:    audit,
		guardTTL: guardTTL,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

func publishedKey(requestID string) string {
	return cache.Key("analysis", "published", requestID)
}

// Release drops the admission key for requestID so the gateway accepts a resend.
// The publish guard is already free after a failed write.
func (p *ResultPublisher) Release(ctx context.Context, requestID string) error {
	if requestID == "" {
		return nil
	}
	return p.guard.Unlock(context.WithoutCancel(ctx), seenKey(requestID))
}

// Publish claims the request's publish guard and writes o to the sink. A second
// attempt for the same request returns ErrPublishConflict without writing.
func (p *ResultPublisher) Publish(ctx context.Context, o *models.Outcome) error {
	if o == nil || o.RequestID == "" {
		return fmt.Errorf("%w: outcome without request_id", models.ErrValidation)
	}
	// the outcome must go out even when the request context is already cancelled
	ctx = context.WithoutCancel(ctx)
	key := publishedKey(o.RequestID)

	ok, err := p.guard.TryLock(ctx, key, p.guardTTL)
	if err != nil {
		p.metrics.RecordError("publish_guard")
		return fmt.Errorf("publish guard %s: %w", o.RequestID, err)
	}
	if !ok {
		p.metrics.RecordError("publish_conflict")
		p.log.Warn("duplicate terminal outcome suppressed",
			applogger.String("request_id", o.RequestID),
			applogger.String("status", string(o.Status)),
		)
		return fmt.Errorf("%w: %s", models.ErrPublishConflict, o.RequestID)
	}

	o.PublishedAt = p.now().UTC()
	start := time.Now()
	if err := p.sink.Write(ctx, o); err != nil {
		if uerr := p.guard.Unlock(ctx, key); uerr != nil {
			p.log.Error("release publish guard failed", applogger.String("request_id", o.RequestID), applogger.Error(uerr))
		}
		p.metrics.RecordError("publish_write")
		return fmt.Errorf("write outcome %s: %w", o.RequestID, err)
	}
	p.metrics.RecordLatency("publish_seconds", time.Since(start).Seconds())

	if p.audit != nil {
		if err := p.audit.Record(ctx, o); err != nil {
			p.metrics.RecordError("audit_write")
			p.log.Warn("outcome audit failed", applogger.String("request_id", o.RequestID), applogger.Error(err))
		}
	}

	p.log.Info("outcome published",
		applogger.String("request_id", o.RequestID),
		applogger.String("status", string(o.Status)),
		applogger.String("error_kind", o.ErrorKind),
	)
	return nil
}
