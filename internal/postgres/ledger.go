package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/reputation-engine/internal/domain"
)

// AddPoints increments the user's score, appends the reason and reads back up
// to recent reasons in one transaction. The score row stays locked until
// commit, so the returned history matches the returned total.
func (r *Repository) AddPoints(ctx context.Context, userID, reason string, amount int64, at time.Time, recent int) (*domain.ScoreView, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	view := &domain.ScoreView{UserID: userID, Reasons: []domain.ScoreReason{}}
	err = tx.QueryRow(ctx, `
		UPDATE scores
		SET points = points + $2, updated_at = $3
		WHERE user_id = $1
		RETURNING points
	`, userID, amount, at).Scan(&view.Total)
	if err != nil {
		if IsNoRows(err) {
			return nil, domain.ErrScoreNotFound
		}
		return nil, fmt.Errorf("adding points: %w", err)
	}

	var reasonID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO score_reasons (user_id, reason, amount, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, userID, reason, amount, at).Scan(&reasonID)
	if err != nil {
		return nil, fmt.Errorf("appending reason: %w", err)
	}
	view.Revision = reasonID

	if recent > 0 {
		rows, err := tx.Query(ctx, `
			SELECT id, user_id, reason, amount, created_at
			FROM score_reasons
			WHERE user_id = $1 AND id <= $2
			ORDER BY created_at DESC, id DESC
			LIMIT $3
		`, userID, reasonID, recent)
		if err != nil {
			return nil, fmt.Errorf("listing recent reasons: %w", err)
		}
		view.Reasons, err = scanReasons(rows, recent)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing points: %w", err)
	}
	return view, nil
}

// GetPoints returns the user's current total
func (r *Repository) GetPoints(ctx context.Context, userID string) (int64, error) {
	query := `SELECT points FROM scores WHERE user_id = $1`
	var total int64
	err := r.pool.QueryRow(ctx, query, userID).Scan(&total)
	if err != nil {
		if IsNoRows(err) {
			return 0, domain.ErrScoreNotFound
		}
		return 0, fmt.Errorf("getting points: %w", err)
	}
	return total, nil
}

// ListReasons returns the user's point history, newest first
func (r *Repository) ListReasons(ctx context.Context, userID string, limit, offset int) ([]domain.ScoreReason, error) {
	query := `
		SELECT id, user_id, reason, amount, created_at
		FROM score_reasons
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing reasons: %w", err)
	}
	return scanReasons(rows, limit)
}

func scanReasons(rows pgx.Rows, capacity int) ([]domain.ScoreReason, error) {
	defer rows.Close()

	reasons := make([]domain.ScoreReason, 0, capacity)
	for rows.Next() {
		var sr domain.ScoreReason
		if err := rows.Scan(&sr.ID, &sr.UserID, &sr.Reason, &sr.Amount, &sr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning reason: %w", err)
		}
		reasons = append(reasons, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reasons: %w", err)
	}
	return reasons, nil
}

// TopScores returns the n highest scores, ties broken by user ID ascending
func (r *Repository) TopScores(ctx context.Context, n int) ([]domain.StandingEntry, error) {
	query := `
		SELECT user_id, points
		FROM scores
		ORDER BY points DESC, user_id ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("getting top scores: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.StandingEntry, 0, n)
	for rows.Next() {
		entry := domain.StandingEntry{Rank: int64(len(entries) + 1)}
		if err := rows.Scan(&entry.UserID, &entry.Points); err != nil {
			return nil, fmt.Errorf("scanning score: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scores: %w", err)
	}
	return entries, nil
}

// AllPoints returns every user's total together with the ID of the reason
// that produced it
func (r *Repository) AllPoints(ctx context.Context) ([]domain.PointsSnapshot, error) {
	query := `
		SELECT s.user_id, s.points, COALESCE(MAX(sr.id), 0)
		FROM scores s
		LEFT JOIN score_reasons sr ON sr.user_id = s.user_id
		GROUP BY s.user_id, s.points
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("getting all points: %w", err)
	}
	defer rows.Close()

	var snapshot []domain.PointsSnapshot
	for rows.Next() {
		var p domain.PointsSnapshot
		if err := rows.Scan(&p.UserID, &p.Points, &p.Revision); err != nil {
			return nil, fmt.Errorf("scanning points: %w", err)
		}
		snapshot = append(snapshot, p)
	}
	return snapshot, rows.Err()
}
