package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/reputation-engine/internal/config"
	"github.com/reputation-engine/internal/domain"
)

// EventNotificationCreated is the type of events published for new notifications
const EventNotificationCreated = "notification.created"

// NotificationEvent is the message handed to the delivery pipeline
type NotificationEvent struct {
	Type         string              `json:"type"`
	Notification domain.Notification `json:"notification"`
	PublishedAt  time.Time           `json:"published_at"`
}

// Publisher publishes notification events to Kafka
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewPublisher connects a synchronous producer to the configured brokers
func NewPublisher(cfg *config.KafkaConfig, logger *slog.Logger) (*Publisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating producer: %w", err)
	}
	return NewPublisherWithProducer(producer, cfg.NotificationsTopic, logger), nil
}

// NewPublisherWithProducer wraps an existing producer
func NewPublisherWithProducer(producer sarama.SyncProducer, topic string, logger *slog.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// PublishNotification sends a notification.created event keyed by user
func (p *Publisher) PublishNotification(ctx context.Context, n domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(NotificationEvent{
		Type:         EventNotificationCreated,
		Notification: n,
		PublishedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding notification event: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(n.UserID),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		return fmt.Errorf("publishing notification %s: %w", n.ID, err)
	}

	p.logger.Debug("published notification event",
		"notification_id", n.ID,
		"partition", partition,
		"offset", offset,
	)
	return nil
}

// Close flushes and closes the producer
func (p *Publisher) Close() error {
	return p.producer.Close()
}
