package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reputation-engine/internal/domain"
	"github.com/reputation-engine/internal/metrics"
)

const grantNotificationTitle = "Nueva insignia otorgada"

// AwardService manages badge definitions and grants badges to users
type AwardService struct {
	store    BadgeStore
	notifier Notifier
	audit    Auditor
	hub      Broadcaster
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewAwardService creates a new award service
func NewAwardService(
	store BadgeStore,
	notifier Notifier,
	audit Auditor,
	m *metrics.Metrics,
	logger *slog.Logger,
) *AwardService {
	return &AwardService{
		store:    store,
		notifier: notifier,
		audit:    audit,
		metrics:  m,
		logger:   logger,
	}
}

// SetHub sets the live update broadcaster
func (s *AwardService) SetHub(hub Broadcaster) {
	s.hub = hub
}

// Grant awards badgeID to userID. A user already holding the badge yields
// GrantOutcomeAlreadyGranted and no error. The award row is committed before
// the notification and audit entry, and their failure never undoes it.
func (s *AwardService) Grant(ctx context.Context, userID, badgeID, reason string) (domain.GrantResult, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return domain.GrantResult{}, fmt.Errorf("getting user: %w", err)
	}
	badge, err := s.store.GetBadge(ctx, badgeID)
	if err != nil {
		return domain.GrantResult{}, fmt.Errorf("getting badge: %w", err)
	}

	award := domain.BadgeAward{
		ID:        uuid.NewString(),
		UserID:    userID,
		BadgeID:   badgeID,
		AwardedAt: time.Now().UTC(),
		Reason:    strings.TrimSpace(reason),
	}
	if err := s.store.InsertAward(ctx, award); err != nil {
		if errors.Is(err, domain.ErrAwardExists) {
			s.metrics.GrantAttempt(badge.Name, string(domain.GrantOutcomeAlreadyGranted))
			return domain.GrantResult{Outcome: domain.GrantOutcomeAlreadyGranted}, nil
		}
		return domain.GrantResult{}, fmt.Errorf("inserting award: %w", err)
	}

	s.metrics.GrantAttempt(badge.Name, string(domain.GrantOutcomeGranted))
	s.afterGrant(ctx, award, badge)

	return domain.GrantResult{
		Outcome: domain.GrantOutcomeGranted,
		Award:   &award,
	}, nil
}

// afterGrant runs the best-effort side effects of a committed award
func (s *AwardService) afterGrant(ctx context.Context, award domain.BadgeAward, badge *domain.Badge) {
	if s.notifier != nil {
		_, err := s.notifier.Enqueue(ctx, domain.NotificationRequest{
			UserID:  award.UserID,
			Channel: domain.ChannelPush,
			Title:   grantNotificationTitle,
			Message: fmt.Sprintf("Has recibido la insignia \"%s\"!", badge.Name),
		})
		if err != nil {
			s.metrics.SideEffectFailed("notification")
			s.logger.Warn("failed to notify badge award",
				"user_id", award.UserID,
				"badge_id", award.BadgeID,
				"error", err,
			)
		}
	}

	if s.audit != nil {
		s.audit.Record(ctx, domain.AuditRecord{
			Action:       domain.AuditBadgeAwarded,
			ResourceType: "badge_award",
			ResourceID:   award.ID,
			Metadata: map[string]interface{}{
				"user_id":    award.UserID,
				"badge_id":   award.BadgeID,
				"badge_name": badge.Name,
				"reason":     award.Reason,
			},
		})
	}

	if s.hub != nil {
		s.hub.BroadcastBadgeAwarded(award.UserID, award, badge.Name)
	}
}

// CreateBadge defines a new badge. A duplicate name yields ErrBadgeExists.
func (s *AwardService) CreateBadge(ctx context.Context, req domain.CreateBadgeRequest) (*domain.Badge, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || strings.TrimSpace(req.Description) == "" || strings.TrimSpace(req.Criteria) == "" {
		return nil, domain.ErrInvalidRequest
	}

	badge := domain.Badge{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Criteria:    req.Criteria,
		IconURL:     req.IconURL,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateBadge(ctx, badge); err != nil {
		return nil, fmt.Errorf("creating badge: %w", err)
	}

	if s.audit != nil {
		s.audit.Record(ctx, domain.AuditRecord{
			Action:       domain.AuditBadgeCreated,
			ResourceType: "badge",
			ResourceID:   badge.ID,
			Metadata:     map[string]interface{}{"name": badge.Name},
		})
	}

	s.logger.Info("badge created", "badge_id", badge.ID, "name", badge.Name)
	return &badge, nil
}

// EnsureDefaultBadges installs the seed badges that are not present yet
func (s *AwardService) EnsureDefaultBadges(ctx context.Context) error {
	for _, req := range domain.DefaultBadges() {
		created, err := s.store.EnsureBadge(ctx, domain.Badge{
			ID:          uuid.NewString(),
			Name:        req.Name,
			Description: req.Description,
			Criteria:    req.Criteria,
			IconURL:     req.IconURL,
			CreatedAt:   time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("ensuring badge %q: %w", req.Name, err)
		}
		if created {
			s.logger.Info("installed default badge", "name", req.Name)
		}
	}
	return nil
}

// ListBadges returns every badge with its award count
func (s *AwardService) ListBadges(ctx context.Context) ([]domain.Badge, error) {
	badges, err := s.store.ListBadges(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing badges: %w", err)
	}
	if badges == nil {
		badges = []domain.Badge{}
	}
	return badges, nil
}

// ListUserBadges returns the badges held by a user, newest award first
func (s *AwardService) ListUserBadges(ctx context.Context, userID string) ([]domain.UserBadge, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	badges, err := s.store.ListUserBadges(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing user badges: %w", err)
	}
	return badges, nil
}
