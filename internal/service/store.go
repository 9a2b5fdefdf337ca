package service

import (
	"context"
	"time"

	"github.com/reputation-engine/internal/domain"
)

// The store interfaces below are satisfied by both *postgres.Repository and
// *memstore.Store.

// LedgerStore persists scores and their reason history. AddPoints returns the
// new total with up to recent reasons as of the same update.
type LedgerStore interface {
	AddPoints(ctx context.Context, userID, reason string, amount int64, at time.Time, recent int) (*domain.ScoreView, error)
	GetPoints(ctx context.Context, userID string) (int64, error)
	ListReasons(ctx context.Context, userID string, limit, offset int) ([]domain.ScoreReason, error)
	TopScores(ctx context.Context, n int) ([]domain.StandingEntry, error)
}

// UserLookup resolves users by ID
type UserLookup interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// BadgeStore persists badge definitions and awards
type BadgeStore interface {
	UserLookup
	CreateBadge(ctx context.Context, badge domain.Badge) error
	EnsureBadge(ctx context.Context, badge domain.Badge) (bool, error)
	GetBadge(ctx context.Context, badgeID string) (*domain.Badge, error)
	GetBadgeByName(ctx context.Context, name string) (*domain.Badge, error)
	ListBadges(ctx context.Context) ([]domain.Badge, error)
	InsertAward(ctx context.Context, award domain.BadgeAward) error
	ListUserBadges(ctx context.Context, userID string) ([]domain.UserBadge, error)
}

// CandidateStore answers the population queries of badge rules
type CandidateStore interface {
	MatchThresholds(ctx context.Context, population domain.Population, thresholds []domain.Threshold) ([]string, error)
	TopScores(ctx context.Context, n int) ([]domain.StandingEntry, error)
}

// TutorStore reads tutor ranking inputs and maintains tutor profiles
type TutorStore interface {
	ListTutorCandidates(ctx context.Context) ([]domain.TutorCandidate, error)
	UpsertTutorProfile(ctx context.Context, userID string, update domain.TutorProfileUpdate, at time.Time) (*domain.TutorProfile, error)
}

// UserStore persists users and their activity stats
type UserStore interface {
	UserLookup
	CreateUser(ctx context.Context, user domain.User) error
	ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error)
	GetStats(ctx context.Context, userID string) (*domain.UserStats, error)
	IncrementStats(ctx context.Context, userID string, inc domain.StatsIncrement, at time.Time) (*domain.UserStats, error)
}

// AuditStore persists audit records
type AuditStore interface {
	InsertAudit(ctx context.Context, rec domain.AuditRecord) error
	ListAudit(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, int64, error)
}

// NotificationStore persists notifications
type NotificationStore interface {
	InsertNotification(ctx context.Context, n domain.Notification) error
	ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error)
	UpdateNotificationStatus(ctx context.Context, id string, status domain.NotificationStatus, at time.Time) (*domain.Notification, error)
}

// Store is the full persistence surface used by cmd/server
type Store interface {
	LedgerStore
	BadgeStore
	CandidateStore
	TutorStore
	UserStore
	AuditStore
	NotificationStore
	AllPoints(ctx context.Context) ([]domain.PointsSnapshot, error)
	Ping(ctx context.Context) error
}

// Auditor records audit entries without failing the caller
type Auditor interface {
	Record(ctx context.Context, rec domain.AuditRecord)
}

// Notifier queues a notification for a user
type Notifier interface {
	Enqueue(ctx context.Context, req domain.NotificationRequest) (*domain.Notification, error)
}

// StandingsMirror is a secondary, read-optimised copy of point totals.
// SetPoints ignores a revision older than the one already mirrored.
type StandingsMirror interface {
	SetPoints(ctx context.Context, userID string, total, revision int64) error
	TopN(ctx context.Context, n int) ([]domain.StandingEntry, error)
}

// Broadcaster pushes live updates to subscribed clients
type Broadcaster interface {
	BroadcastPointsUpdated(userID string, total int64, reason domain.ScoreReason)
	BroadcastBadgeAwarded(userID string, award domain.BadgeAward, badgeName string)
}

// EventPublisher forwards created notifications to the delivery pipeline
type EventPublisher interface {
	PublishNotification(ctx context.Context, n domain.Notification) error
}
