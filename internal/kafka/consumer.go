package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff/v4"

	"github.com/reputation-engine/internal/config"
	"github.com/reputation-engine/internal/domain"
)

// PointsHandler applies point events to the score ledger
type PointsHandler interface {
	AddPoints(ctx context.Context, userID, reason string, amount int64) (*domain.ScoreView, error)
}

// Consumer consumes point events from Kafka
type Consumer struct {
	config        *config.KafkaConfig
	handler       PointsHandler
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	newBackOff    func() backoff.BackOff
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan bool
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, handler PointsHandler, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}

	newBackOff := func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(cfg.ApplyRetries))
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:        cfg,
		handler:       handler,
		logger:        logger,
		consumerGroup: consumerGroup,
		newBackOff:    newBackOff,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan bool),
	}, nil
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.PointsTopic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{
				consumer: c,
				ready:    c.ready,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.PointsTopic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}

			if c.ctx.Err() != nil {
				return
			}

			c.ready = make(chan bool)
		}
	}()

	<-c.ready
	c.logger.Info("Kafka consumer ready")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ready    chan bool
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// pendingEvent is a decoded event awaiting its offset mark
type pendingEvent struct {
	event   domain.PointEvent
	message *sarama.ConsumerMessage
}

// ConsumeClaim processes messages from a topic partition. Offsets are marked
// only once their event is applied or rejected. A batch that cannot be
// applied ends the claim with the failed and later messages unmarked, so
// they are redelivered on the next session.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	cfg := h.consumer.config
	logger := h.consumer.logger
	batch := make([]pendingEvent, 0, cfg.BatchSize)
	batchTimer := time.NewTimer(cfg.BatchTimeout)
	defer batchTimer.Stop()

	processBatch := func() error {
		if len(batch) == 0 {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		events := make([]domain.PointEvent, len(batch))
		for i, p := range batch {
			events[i] = p.event
		}
		settled, err := applyBatch(ctx, h.consumer.handler, events, h.consumer.newBackOff, logger)
		for _, p := range batch[:settled] {
			session.MarkMessage(p.message, "")
		}
		logger.Debug("processed batch", "settled", settled, "unsettled", len(batch)-settled)

		batch = batch[:0]
		if err != nil {
			logger.Error("stopping claim for redelivery",
				"partition", claim.Partition(),
				"error", err,
			)
		}
		return err
	}

	for {
		select {
		case <-session.Context().Done():
			return processBatch()

		case <-batchTimer.C:
			if err := processBatch(); err != nil {
				return err
			}
			batchTimer.Reset(cfg.BatchTimeout)

		case message, ok := <-claim.Messages():
			if !ok {
				return processBatch()
			}

			event, err := decodePointEvent(message.Value)
			if err != nil {
				logger.Warn("dropping point event",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				if err := processBatch(); err != nil {
					return err
				}
				session.MarkMessage(message, "")
				continue
			}

			batch = append(batch, pendingEvent{event: event, message: message})

			if len(batch) >= cfg.BatchSize {
				if err := processBatch(); err != nil {
					return err
				}
				batchTimer.Reset(cfg.BatchTimeout)
			}
		}
	}
}

// decodePointEvent parses and checks a point event payload
func decodePointEvent(value []byte) (domain.PointEvent, error) {
	var event domain.PointEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return event, fmt.Errorf("decoding point event: %w", err)
	}
	event.UserID = strings.TrimSpace(event.UserID)
	event.Reason = strings.TrimSpace(event.Reason)

	switch {
	case event.UserID == "":
		return event, fmt.Errorf("%w: missing user_id", domain.ErrInvalidRequest)
	case event.Reason == "":
		return event, domain.ErrInvalidReason
	case event.Amount == 0:
		return event, domain.ErrInvalidAmount
	}
	return event, nil
}

// applyBatch applies events in order and returns how many leading events are
// settled. Transient failures are retried with a fresh policy from newBackOff.
// Events the ledger rejects are logged and skipped. The first event that still
// fails after retries stops the batch and its error is returned.
func applyBatch(
	ctx context.Context,
	handler PointsHandler,
	batch []domain.PointEvent,
	newBackOff func() backoff.BackOff,
	logger *slog.Logger,
) (int, error) {
	for i, event := range batch {
		operation := func() error {
			_, err := handler.AddPoints(ctx, event.UserID, event.Reason, event.Amount)
			if err != nil && isRejected(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		notify := func(err error, wait time.Duration) {
			logger.Warn("retrying point event",
				"user_id", event.UserID,
				"error", err,
				"retry_in", wait,
			)
		}

		err := backoff.RetryNotify(operation, backoff.WithContext(newBackOff(), ctx), notify)
		switch {
		case err == nil:
		case isRejected(err):
			logger.Warn("skipping rejected point event",
				"user_id", event.UserID,
				"amount", event.Amount,
				"error", err,
			)
		default:
			return i, fmt.Errorf("applying point event for %s: %w", event.UserID, err)
		}
	}
	return len(batch), nil
}

// isRejected reports whether err is final for the event regardless of retries
func isRejected(err error) bool {
	return domain.IsValidationError(err) || domain.IsNotFoundError(err)
}
