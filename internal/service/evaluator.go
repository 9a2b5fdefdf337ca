package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/reputation-engine/internal/domain"
	"github.com/reputation-engine/internal/metrics"
)

// Granter grants a badge to a user
type Granter interface {
	Grant(ctx context.Context, userID, badgeID, reason string) (domain.GrantResult, error)
}

// BadgeFinder resolves a badge by name
type BadgeFinder interface {
	GetBadgeByName(ctx context.Context, name string) (*domain.Badge, error)
}

// Evaluator runs badge rules over their populations and grants the matching
// badges. Runs are idempotent: a second run grants nothing new.
type Evaluator struct {
	badges     BadgeFinder
	candidates CandidateStore
	granter    Granter
	rules      []domain.Rule
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewEvaluator creates an evaluator for rules, run in the given order
func NewEvaluator(
	badges BadgeFinder,
	candidates CandidateStore,
	granter Granter,
	rules []domain.Rule,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Evaluator {
	return &Evaluator{
		badges:     badges,
		candidates: candidates,
		granter:    granter,
		rules:      rules,
		metrics:    m,
		logger:     logger,
	}
}

// Evaluate runs every rule. A rule whose badge or population cannot be read
// counts zero and does not stop the others.
func (e *Evaluator) Evaluate(ctx context.Context, trigger string) domain.EvaluationResult {
	start := time.Now()
	result := domain.EvaluationResult{Rules: make([]domain.RuleResult, 0, len(e.rules))}

	for _, rule := range e.rules {
		rr := e.evaluateRule(ctx, rule)
		result.Rules = append(result.Rules, rr)
		result.TotalGranted += rr.Granted
	}

	e.metrics.EvaluatorRun(trigger, time.Since(start))
	e.logger.Info("badge evaluation completed",
		"trigger", trigger,
		"granted", result.TotalGranted,
		"duration", time.Since(start),
	)
	return result
}

func (e *Evaluator) evaluateRule(ctx context.Context, rule domain.Rule) domain.RuleResult {
	rr := domain.RuleResult{Rule: rule.Key, Badge: rule.BadgeName}

	badge, err := e.badges.GetBadgeByName(ctx, rule.BadgeName)
	if err != nil {
		e.logger.Warn("skipping rule, badge unavailable",
			"rule", rule.Key,
			"badge", rule.BadgeName,
			"error", err,
		)
		rr.Skipped = true
		return rr
	}

	userIDs, err := e.selectCandidates(ctx, rule.Selector)
	if err != nil {
		e.logger.Error("skipping rule, candidate query failed",
			"rule", rule.Key,
			"error", err,
		)
		rr.Skipped = true
		return rr
	}
	rr.Candidates = len(userIDs)

	for _, userID := range userIDs {
		res, err := e.granter.Grant(ctx, userID, badge.ID, rule.Reason)
		if err != nil {
			if !domain.IsNotFoundError(err) {
				e.logger.Error("failed to grant badge",
					"rule", rule.Key,
					"user_id", userID,
					"error", err,
				)
			}
			continue
		}
		if res.Granted() {
			rr.Granted++
		}
	}
	return rr
}

func (e *Evaluator) selectCandidates(ctx context.Context, sel domain.Selector) ([]string, error) {
	switch s := sel.(type) {
	case domain.MinThresholds:
		return e.candidates.MatchThresholds(ctx, s.Population, s.Thresholds)
	case domain.TopN:
		if s.N <= 0 {
			return nil, nil
		}
		top, err := e.candidates.TopScores(ctx, s.N)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(top))
		for i, entry := range top {
			ids[i] = entry.UserID
		}
		return ids, nil
	default:
		return nil, fmt.Errorf("unsupported selector %T", sel)
	}
}
