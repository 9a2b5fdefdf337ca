package domain

import "time"

// Channel is the delivery channel of a notification
type Channel string

const (
	ChannelEmail   Channel = "EMAIL"
	ChannelPush    Channel = "PUSH"
	ChannelSMS     Channel = "SMS"
	ChannelWebhook Channel = "WEBHOOK"
)

// NotificationStatus tracks delivery, which happens outside the engine
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "PENDING"
	NotificationSent    NotificationStatus = "SENT"
	NotificationFailed  NotificationStatus = "FAILED"
)

// Valid reports whether s is a known status
func (s NotificationStatus) Valid() bool {
	switch s {
	case NotificationPending, NotificationSent, NotificationFailed:
		return true
	}
	return false
}

// Notification is a message queued for a user
type Notification struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	Channel   Channel            `json:"channel"`
	Title     string             `json:"title"`
	Message   string             `json:"message"`
	Status    NotificationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	SentAt    *time.Time         `json:"sent_at,omitempty"`
}

// NotificationRequest represents a request to queue a notification
type NotificationRequest struct {
	UserID  string
	Channel Channel
	Title   string
	Message string
}

// UpdateNotificationStatusRequest is the body of a delivery status update
type UpdateNotificationStatusRequest struct {
	Status NotificationStatus `json:"status" validate:"required,oneof=PENDING SENT FAILED"`
}
