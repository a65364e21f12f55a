package repository

import (
	"context"
	"fmt"

	"TokenPulse/internal/domain/models"
	domrepo "TokenPulse/internal/domain/repository"
)

// headerWriter is the part of pkg/kafka.Producer the sink needs.
type headerWriter interface {
	PublishWithHeaders(ctx context.Context, topic string, key []byte, value interface{}, headers map[string]string) error
	Close() error
}

// KafkaOutcomeSink writes outcomes to the result topic keyed by request_id.
type KafkaOutcomeSink struct {
	w     headerWriter
	topic string
}

func NewKafkaOutcomeSink(w headerWriter, topic string) *KafkaOutcomeSink {
	return &KafkaOutcomeSink{w: w, topic: topic}
}

func (s *KafkaOutcomeSink) Write(ctx context.Context, o *models.Outcome) error {
	headers := map[string]string{
		"request_id": o.RequestID,
		"status":     string(o.Status),
	}
	if err := s.w.PublishWithHeaders(ctx, s.topic, []byte(o.RequestID), o, headers); err != nil {
		return fmt.Errorf("kafka write %s: %w", s.topic, err)
	}
	return nil
}

func (s *KafkaOutcomeSink) Close() error { return s.w.Close() }

var _ domrepo.OutcomeSink = (*KafkaOutcomeSink)(nil)
