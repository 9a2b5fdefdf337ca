package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/reputation-engine/internal/domain"
)

// CreateUser inserts a user together with its score and stats rows
func (r *Repository) CreateUser(ctx context.Context, user domain.User) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, email, name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.Email, user.Name, string(user.Role), user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	batch := &pgx.Batch{}
	batch.Queue(`INSERT INTO scores (user_id, points, updated_at) VALUES ($1, 0, $2)`, user.ID, user.CreatedAt)
	batch.Queue(`INSERT INTO user_stats (user_id, last_updated) VALUES ($1, $2)`, user.ID, user.CreatedAt)
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("creating score and stats: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID
func (r *Repository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT id, email, name, role, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var u domain.User
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}

// ListUsers returns users, newest first. An empty role lists everyone.
func (r *Repository) ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error) {
	query := `
		SELECT id, email, name, role, created_at, updated_at
		FROM users
		WHERE $1::text = '' OR role = $1
		ORDER BY created_at DESC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, string(role))
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

const statsColumns = `user_id, total_study_hours, materials_uploaded, avg_likes, sessions_completed, goals_completed, last_updated`

// GetStats retrieves the user's activity aggregate
func (r *Repository) GetStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	query := `SELECT ` + statsColumns + ` FROM user_stats WHERE user_id = $1`
	var s domain.UserStats
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&s.UserID, &s.TotalStudyHours, &s.MaterialsUploaded, &s.AvgLikes,
		&s.SessionsCompleted, &s.GoalsCompleted, &s.LastUpdated,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, domain.ErrStatsNotFound
		}
		return nil, fmt.Errorf("getting stats: %w", err)
	}
	return &s, nil
}

// IncrementStats adds the increments to the user's counters in place
func (r *Repository) IncrementStats(ctx context.Context, userID string, inc domain.StatsIncrement, at time.Time) (*domain.UserStats, error) {
	query := `
		UPDATE user_stats SET
			total_study_hours = total_study_hours + $2,
			materials_uploaded = materials_uploaded + $3,
			sessions_completed = sessions_completed + $4,
			goals_completed = goals_completed + $5,
			avg_likes = COALESCE($6, avg_likes),
			last_updated = $7
		WHERE user_id = $1
		RETURNING ` + statsColumns
	var s domain.UserStats
	err := r.pool.QueryRow(ctx, query,
		userID,
		inc.StudyHours,
		inc.MaterialsUploaded,
		inc.SessionsCompleted,
		inc.GoalsCompleted,
		inc.AvgLikes,
		at,
	).Scan(
		&s.UserID, &s.TotalStudyHours, &s.MaterialsUploaded, &s.AvgLikes,
		&s.SessionsCompleted, &s.GoalsCompleted, &s.LastUpdated,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, domain.ErrStatsNotFound
		}
		return nil, fmt.Errorf("incrementing stats: %w", err)
	}
	return &s, nil
}
