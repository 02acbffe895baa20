// Package events publishes world-advancement milestones to external
// consumers over Kafka. It is a side-channel fan-out, not part of the
// advance hot path: a publish failure is logged and otherwise ignored.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/MrWong99/playwright-engine/internal/conductor"
)

// ActCompletedEvent is the wire payload published when an act finishes.
type ActCompletedEvent struct {
	WorldID     string    `json:"world_id"`
	ActNumber   int       `json:"act_number"`
	WorldEvents []string  `json:"world_events"`
	Timestamp   time.Time `json:"timestamp"`
}

// KafkaPublisher publishes act-completion events to a configured topic.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewKafkaPublisher constructs a publisher writing to topic across brokers.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	return &KafkaPublisher{writer: writer, logger: logger}
}

// PublishActCompleted writes an ActCompletedEvent for ev, which must have
// Type conductor.EventActCompleted. Errors are logged, never returned to the
// advance loop.
func (p *KafkaPublisher) PublishActCompleted(ctx context.Context, worldID string, ev conductor.Event) error {
	payload, err := json.Marshal(ActCompletedEvent{
		WorldID:     worldID,
		ActNumber:   ev.ActNumber,
		WorldEvents: ev.WorldEvents,
		Timestamp:   time.Now(),
	})
	if err != nil {
		p.logger.Warn("events: marshal act-completed payload failed", "world_id", worldID, "err", err)
		return err
	}

	msg := kafka.Message{Key: []byte(worldID), Value: payload, Time: time.Now()}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("events: kafka publish failed", "world_id", worldID, "err", err)
		return err
	}
	return nil
}

// Close shuts down the underlying Kafka writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
