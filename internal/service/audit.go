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

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 500
)

type actorKey struct{}

type actor struct {
	userID string
	ip     string
}

// WithActor attaches the acting user and client address to ctx for audit records
func WithActor(ctx context.Context, userID, ip string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{userID: userID, ip: ip})
}

func actorFrom(ctx context.Context) actor {
	a, _ := ctx.Value(actorKey{}).(actor)
	return a
}

// AuditService appends and queries the audit log
type AuditService struct {
	store   AuditStore
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(store AuditStore, m *metrics.Metrics, logger *slog.Logger) *AuditService {
	return &AuditService{
		store:   store,
		metrics: m,
		logger:  logger,
	}
}

// Record persists rec. Failures are logged and never returned.
func (s *AuditService) Record(ctx context.Context, rec domain.AuditRecord) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	a := actorFrom(ctx)
	if rec.ActorUserID == "" {
		rec.ActorUserID = a.userID
	}
	if rec.IPAddress == "" {
		rec.IPAddress = a.ip
	}

	if err := s.store.InsertAudit(ctx, rec); err != nil {
		s.metrics.SideEffectFailed("audit")
		s.logger.Warn("failed to record audit entry",
			"action", rec.Action,
			"resource_type", rec.ResourceType,
			"resource_id", rec.ResourceID,
			"error", err,
		)
	}
}

// List returns the records matching filter and the total match count
func (s *AuditService) List(ctx context.Context, filter domain.AuditFilter) (*domain.AuditPage, error) {
	if filter.Offset < 0 {
		return nil, domain.ErrInvalidLimit
	}
	limit, err := clampLimit(filter.Limit, defaultAuditLimit, maxAuditLimit)
	if err != nil {
		return nil, err
	}
	filter.Limit = limit

	records, total, err := s.store.ListAudit(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing audit records: %w", err)
	}

	return &domain.AuditPage{
		Records: records,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
