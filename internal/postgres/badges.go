package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/reputation-engine/internal/domain"
)

// CreateBadge inserts a badge definition. A duplicate name yields ErrBadgeExists.
func (r *Repository) CreateBadge(ctx context.Context, badge domain.Badge) error {
	query := `
		INSERT INTO badges (id, name, description, criteria, icon_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		badge.ID,
		badge.Name,
		badge.Description,
		badge.Criteria,
		badge.IconURL,
		badge.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return domain.ErrBadgeExists
		}
		return fmt.Errorf("creating badge: %w", err)
	}
	return nil
}

// EnsureBadge inserts the badge unless one with the same name exists.
// It reports whether a row was created.
func (r *Repository) EnsureBadge(ctx context.Context, badge domain.Badge) (bool, error) {
	query := `
		INSERT INTO badges (id, name, description, criteria, icon_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		badge.ID,
		badge.Name,
		badge.Description,
		badge.Criteria,
		badge.IconURL,
		badge.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("ensuring badge: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

const badgeColumns = `b.id, b.name, b.description, b.criteria, b.icon_url, b.created_at`

// GetBadge retrieves a badge by ID
func (r *Repository) GetBadge(ctx context.Context, badgeID string) (*domain.Badge, error) {
	query := `SELECT ` + badgeColumns + ` FROM badges b WHERE b.id = $1`
	var b domain.Badge
	err := r.pool.QueryRow(ctx, query, badgeID).Scan(
		&b.ID, &b.Name, &b.Description, &b.Criteria, &b.IconURL, &b.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, domain.ErrBadgeNotFound
		}
		return nil, fmt.Errorf("getting badge: %w", err)
	}
	return &b, nil
}

// GetBadgeByName retrieves a badge by its unique name
func (r *Repository) GetBadgeByName(ctx context.Context, name string) (*domain.Badge, error) {
	query := `SELECT ` + badgeColumns + ` FROM badges b WHERE b.name = $1`
	var b domain.Badge
	err := r.pool.QueryRow(ctx, query, name).Scan(
		&b.ID, &b.Name, &b.Description, &b.Criteria, &b.IconURL, &b.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, domain.ErrBadgeNotFound
		}
		return nil, fmt.Errorf("getting badge by name: %w", err)
	}
	return &b, nil
}

// ListBadges returns every badge with the number of users holding it
func (r *Repository) ListBadges(ctx context.Context) ([]domain.Badge, error) {
	query := `
		SELECT ` + badgeColumns + `, COUNT(a.id)
		FROM badges b
		LEFT JOIN badge_awards a ON a.badge_id = b.id
		GROUP BY b.id
		ORDER BY b.created_at ASC, b.name ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing badges: %w", err)
	}
	defer rows.Close()

	var badges []domain.Badge
	for rows.Next() {
		var b domain.Badge
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.Criteria, &b.IconURL, &b.CreatedAt, &b.AwardCount); err != nil {
			return nil, fmt.Errorf("scanning badge: %w", err)
		}
		badges = append(badges, b)
	}
	return badges, rows.Err()
}

// InsertAward persists an award. The (user_id, badge_id) unique constraint
// is the only guard against double grants: a violation yields ErrAwardExists.
func (r *Repository) InsertAward(ctx context.Context, award domain.BadgeAward) error {
	query := `
		INSERT INTO badge_awards (id, user_id, badge_id, awarded_at, reason)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		award.ID,
		award.UserID,
		award.BadgeID,
		award.AwardedAt,
		award.Reason,
	)
	if err != nil {
		switch {
		case IsUniqueViolation(err):
			return domain.ErrAwardExists
		case IsForeignKeyViolation(err):
			// user or badge deleted between lookup and insert
			if strings.Contains(constraintName(err), "badge_id") {
				return domain.ErrBadgeNotFound
			}
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("inserting award: %w", err)
	}
	return nil
}

// ListUserBadges returns the user's awards joined with their badges, newest first
func (r *Repository) ListUserBadges(ctx context.Context, userID string) ([]domain.UserBadge, error) {
	query := `
		SELECT b.id, b.name, b.description, b.icon_url, a.awarded_at, a.reason
		FROM badge_awards a
		JOIN badges b ON b.id = a.badge_id
		WHERE a.user_id = $1
		ORDER BY a.awarded_at DESC, b.name ASC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing user badges: %w", err)
	}
	defer rows.Close()

	badges := []domain.UserBadge{}
	for rows.Next() {
		var ub domain.UserBadge
		if err := rows.Scan(&ub.BadgeID, &ub.Name, &ub.Description, &ub.IconURL, &ub.AwardedAt, &ub.Reason); err != nil {
			return nil, fmt.Errorf("scanning user badge: %w", err)
		}
		badges = append(badges, ub)
	}
	return badges, rows.Err()
}
