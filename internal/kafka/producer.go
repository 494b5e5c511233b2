package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"ms-eventsync/internal/config"
	"ms-eventsync/internal/logger"
)

// Producer notifies downstream consumers (the dashboard UI among them)
// that cached data changed, so they refresh without polling. In mock mode
// events are only logged.
type Producer struct {
	writer *kafka.Writer
	cfg    config.KafkaConfig
	logger *logger.Logger
}

func NewProducer(cfg config.KafkaConfig, log *logger.Logger) *Producer {
	p := &Producer{cfg: cfg, logger: log}
	if cfg.Enabled && !cfg.MockMode {
		p.writer = &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Balancer: &kafka.LeastBytes{},
		}
	}
	return p
}

type syncCompletedEvent struct {
	Strategy  string    `json:"strategy"`
	Events    int       `json:"events"`
	Timestamp time.Time `json:"timestamp"`
}

type attendeesUpdatedEvent struct {
	EventID   int64     `json:"event_id"`
	Total     int       `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// PublishSyncCompleted emits one message per finished sync invocation.
func (p *Producer) PublishSyncCompleted(strategy string, events int) error {
	value, err := json.Marshal(syncCompletedEvent{
		Strategy:  strategy,
		Events:    events,
		Timestamp: time.Now(),
	})
	if err != nil {
		return err
	}
	return p.publish(p.cfg.Topics.SyncCompleted, strategy, value)
}

// PublishAttendeesUpdated emits a per-event occupancy change signal.
func (p *Producer) PublishAttendeesUpdated(eventID int64, total int) error {
	value, err := json.Marshal(attendeesUpdatedEvent{
		EventID:   eventID,
		Total:     total,
		Timestamp: time.Now(),
	})
	if err != nil {
		return err
	}
	return p.publish(p.cfg.Topics.AttendeesUpdated, fmt.Sprintf("%d", eventID), value)
}

func (p *Producer) publish(topic, key string, value []byte) error {
	if !p.cfg.Enabled {
		return nil
	}
	if p.cfg.MockMode || p.writer == nil {
		p.logger.LogKafka("MOCK", topic, string(value))
		return nil
	}

	err := p.writer.WriteMessages(context.Background(), kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	p.logger.LogKafka("PUBLISH", topic, string(value))
	return nil
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
