package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/reputation-engine/internal/domain"
	"github.com/reputation-engine/internal/metrics"
)

// NotificationService records notifications for external delivery
type NotificationService struct {
	store     NotificationStore
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(store NotificationStore, m *metrics.Metrics, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		store:   store,
		metrics: m,
		logger:  logger,
	}
}

// SetPublisher sets the producer that forwards new notifications to the
// delivery pipeline
func (s *NotificationService) SetPublisher(p EventPublisher) {
	s.publisher = p
}

// Enqueue persists a PENDING notification and publishes it
func (s *NotificationService) Enqueue(ctx context.Context, req domain.NotificationRequest) (*domain.Notification, error) {
	channel := req.Channel
	if channel == "" {
		channel = domain.ChannelPush
	}

	n := domain.Notification{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Channel:   channel,
		Title:     req.Title,
		Message:   req.Message,
		Status:    domain.NotificationPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.InsertNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("inserting notification: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishNotification(ctx, n); err != nil {
			s.metrics.SideEffectFailed("notification_publish")
			s.logger.Warn("failed to publish notification",
				"notification_id", n.ID,
				"error", err,
			)
		}
	}
	return &n, nil
}

// ListForUser returns the user's notifications, newest first
func (s *NotificationService) ListForUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	notifications, err := s.store.ListNotifications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return notifications, nil
}

// UpdateStatus records a delivery outcome reported by the delivery service
func (s *NotificationService) UpdateStatus(ctx context.Context, id string, status domain.NotificationStatus) (*domain.Notification, error) {
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	n, err := s.store.UpdateNotificationStatus(ctx, id, status, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("updating notification status: %w", err)
	}
	return n, nil
}
