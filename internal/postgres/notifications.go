package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/reputation-engine/internal/domain"
)

const notificationColumns = `id, user_id, channel, title, message, status, created_at, sent_at`

// InsertNotification persists a queued notification
func (r *Repository) InsertNotification(ctx context.Context, n domain.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, channel, title, message, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		n.ID,
		n.UserID,
		string(n.Channel),
		n.Title,
		n.Message,
		string(n.Status),
		n.CreatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

// ListNotifications returns the user's notifications, newest first
func (r *Repository) ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	notifications := []domain.Notification{}
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Channel, &n.Title, &n.Message, &n.Status, &n.CreatedAt, &n.SentAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// UpdateNotificationStatus sets the delivery status. SentAt is stamped when
// the status becomes SENT.
func (r *Repository) UpdateNotificationStatus(ctx context.Context, id string, status domain.NotificationStatus, at time.Time) (*domain.Notification, error) {
	query := `
		UPDATE notifications SET
			status = $2,
			sent_at = CASE WHEN $2 = 'SENT' THEN $3 ELSE sent_at END
		WHERE id = $1
		RETURNING ` + notificationColumns
	var n domain.Notification
	err := r.pool.QueryRow(ctx, query, id, string(status), at).Scan(
		&n.ID, &n.UserID, &n.Channel, &n.Title, &n.Message, &n.Status, &n.CreatedAt, &n.SentAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("updating notification status: %w", err)
	}
	return &n, nil
}
