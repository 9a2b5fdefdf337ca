package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/reputation-engine/internal/config"
	"github.com/reputation-engine/internal/domain"
	"github.com/reputation-engine/internal/metrics"
)

const (
	defaultStandingsLimit = 10
	maxStandingsLimit     = 100
)

// LedgerService provides business logic for the score ledger
type LedgerService struct {
	store     LedgerStore
	audit     Auditor
	standings StandingsMirror
	hub       Broadcaster
	metrics   *metrics.Metrics
	config    *config.LedgerConfig
	logger    *slog.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	store LedgerStore,
	audit Auditor,
	m *metrics.Metrics,
	cfg *config.LedgerConfig,
	logger *slog.Logger,
) *LedgerService {
	return &LedgerService{
		store:   store,
		audit:   audit,
		metrics: m,
		config:  cfg,
		logger:  logger,
	}
}

// SetStandings sets the Redis standings mirror
func (s *LedgerService) SetStandings(standings StandingsMirror) {
	s.standings = standings
}

// SetHub sets the live update broadcaster
func (s *LedgerService) SetHub(hub Broadcaster) {
	s.hub = hub
}

// AddPoints credits (or, for a negative amount, debits) the user's ledger and
// returns the new total with the most recent reasons
func (s *LedgerService) AddPoints(ctx context.Context, userID, reason string, amount int64) (*domain.ScoreView, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.ErrInvalidReason
	}
	if amount == 0 {
		return nil, domain.ErrInvalidAmount
	}

	now := time.Now().UTC()
	view, err := s.store.AddPoints(ctx, userID, reason, amount, now, s.config.RecentReasons)
	if err != nil {
		return nil, fmt.Errorf("adding points: %w", err)
	}

	s.metrics.PointsAdded(amount)
	s.afterAddPoints(ctx, view, domain.ScoreReason{
		UserID:    userID,
		Reason:    reason,
		Amount:    amount,
		CreatedAt: now,
	})
	return view, nil
}

// afterAddPoints runs the best-effort side effects of a committed update
func (s *LedgerService) afterAddPoints(ctx context.Context, view *domain.ScoreView, sr domain.ScoreReason) {
	userID, total := view.UserID, view.Total
	if s.audit != nil {
		s.audit.Record(ctx, domain.AuditRecord{
			Action:       domain.AuditPointsAdded,
			ResourceType: "score",
			ResourceID:   userID,
			Metadata: map[string]interface{}{
				"reason": sr.Reason,
				"amount": sr.Amount,
				"total":  total,
			},
		})
	}

	if s.standings != nil {
		if err := s.standings.SetPoints(ctx, userID, total, view.Revision); err != nil {
			s.metrics.SideEffectFailed("standings")
			s.logger.Warn("failed to update standings mirror",
				"user_id", userID,
				"error", err,
			)
		}
	}

	if s.hub != nil {
		s.hub.BroadcastPointsUpdated(userID, total, sr)
	}
}

// GetScore returns the user's total and reason history, newest first
func (s *LedgerService) GetScore(ctx context.Context, userID string) (*domain.ScoreView, error) {
	total, err := s.store.GetPoints(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting points: %w", err)
	}

	reasons, err := s.store.ListReasons(ctx, userID, s.config.HistoryPageSize, 0)
	if err != nil {
		return nil, fmt.Errorf("listing reasons: %w", err)
	}

	return &domain.ScoreView{
		UserID:  userID,
		Total:   total,
		Reasons: reasons,
	}, nil
}

// Standings returns the top users by points, ties broken by user ID. The Redis
// mirror answers when it holds a full page; otherwise the authoritative store
// does, which covers an empty or partially synced mirror.
func (s *LedgerService) Standings(ctx context.Context, limit int) ([]domain.StandingEntry, error) {
	limit, err := clampLimit(limit, defaultStandingsLimit, maxStandingsLimit)
	if err != nil {
		return nil, err
	}

	if s.standings != nil {
		entries, err := s.standings.TopN(ctx, limit)
		switch {
		case err != nil:
			s.logger.Warn("standings mirror unavailable, reading store", "error", err)
		case len(entries) == limit:
			return entries, nil
		default:
			s.logger.Debug("standings mirror short, reading store",
				"mirrored", len(entries),
				"limit", limit,
			)
		}
	}

	entries, err := s.store.TopScores(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("getting top scores: %w", err)
	}
	return entries, nil
}
