package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	batches [][]AggregatedLogEntry
	topics  []string
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestCollectorAggregatesDuplicatesAndFlushesOnClose(t *testing.T) {
	pub := &capturePublisher{}
	log := Nop()
	log.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "errors", Publisher: pub})

	for i := 0; i < 3; i++ {
		log.Error("market fetch failed", String("token", "ETH"), Error(errors.New("boom")))
	}
	log.Error("publish failed", String("request_id", "r1"))
	log.RemoveCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	assert.Equal(t, []string{"errors"}, pub.topics)

	counts := map[string]int{}
	for _, e := range pub.batches[0] {
		counts[e.Message] = e.Count
	}
	assert.Equal(t, 3, counts["market fetch failed"])
	assert.Equal(t, 1, counts["publish failed"])
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Topic: "errors", Publisher: pub})
	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")
	c.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	assert.Len(t, pub.batches[0], 2)
}

func TestWithCarriesCollector(t *testing.T) {
	pub := &capturePublisher{}
	log := Nop()
	log.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Topic: "errors", Publisher: pub})
	child := log.With(String("request_id", "r-9"))
	child.Error("stage failed")
	child.Info("ignored by collector")
	log.RemoveCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "stage failed", pub.batches[0][0].Message)
}
