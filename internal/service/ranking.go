package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/reputation-engine/internal/config"
	"github.com/reputation-engine/internal/domain"
	"github.com/reputation-engine/internal/metrics"
	"github.com/reputation-engine/internal/ranking"
)

// RankingService computes the tutor ranking and maintains tutor profiles.
// Rankings are recomputed on every call.
type RankingService struct {
	store    TutorStore
	audit    Auditor
	validate *validator.Validate
	metrics  *metrics.Metrics
	config   *config.RankingConfig
	logger   *slog.Logger
}

// NewRankingService creates a new ranking service
func NewRankingService(
	store TutorStore,
	audit Auditor,
	m *metrics.Metrics,
	cfg *config.RankingConfig,
	logger *slog.Logger,
) *RankingService {
	return &RankingService{
		store:    store,
		audit:    audit,
		validate: validator.New(),
		metrics:  m,
		config:   cfg,
		logger:   logger,
	}
}

// Rank returns at most limit tutors ordered by ranking score. A zero limit
// means the configured default; limits above the maximum are clamped.
func (s *RankingService) Rank(ctx context.Context, limit int, subject string) ([]domain.TutorRankEntry, error) {
	limit, err := clampLimit(limit, s.config.DefaultLimit, s.config.MaxLimit)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	candidates, err := s.store.ListTutorCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tutor candidates: %w", err)
	}

	entries := ranking.Rank(candidates, limit, strings.TrimSpace(subject))
	s.metrics.RankingComputed(time.Since(start))
	return entries, nil
}

// UpdateTutorProfile creates or partially updates a tutor's ranking profile
func (s *RankingService) UpdateTutorProfile(ctx context.Context, userID string, update domain.TutorProfileUpdate) (*domain.TutorProfile, error) {
	if err := s.validate.Struct(update); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidProfile, err)
	}

	profile, err := s.store.UpsertTutorProfile(ctx, userID, update, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("upserting tutor profile: %w", err)
	}

	if s.audit != nil {
		s.audit.Record(ctx, domain.AuditRecord{
			Action:       domain.AuditTutorProfileUpdated,
			ResourceType: "tutor_profile",
			ResourceID:   userID,
		})
	}
	return profile, nil
}
