package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/reputation-engine/internal/domain"
)

// ListTutorCandidates returns every TUTOR with a profile, joined with its score if any
func (r *Repository) ListTutorCandidates(ctx context.Context) ([]domain.TutorCandidate, error) {
	query := `
		SELECT u.id, u.name, u.email, s.points,
			   t.avg_rating, t.total_ratings, t.response_time_seconds,
			   t.sessions_last_month, t.subjects, t.availability_score, t.updated_at
		FROM users u
		JOIN tutor_profiles t ON t.user_id = u.id
		LEFT JOIN scores s ON s.user_id = u.id
		WHERE u.role = 'TUTOR'
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing tutor candidates: %w", err)
	}
	defer rows.Close()

	var candidates []domain.TutorCandidate
	for rows.Next() {
		var c domain.TutorCandidate
		p := &c.Profile
		err := rows.Scan(
			&c.UserID, &c.Name, &c.Email, &c.Points,
			&p.AvgRating, &p.TotalRatings, &p.ResponseTimeSeconds,
			&p.SessionsLastMonth, &p.Subjects, &p.AvailabilityScore, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning tutor candidate: %w", err)
		}
		p.UserID = c.UserID
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// UpsertTutorProfile creates the profile or merges the non-nil fields of
// update into it
func (r *Repository) UpsertTutorProfile(ctx context.Context, userID string, update domain.TutorProfileUpdate, at time.Time) (*domain.TutorProfile, error) {
	query := `
		INSERT INTO tutor_profiles (
			user_id, avg_rating, total_ratings, response_time_seconds,
			sessions_last_month, subjects, availability_score, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6::text[], '{}'), $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			avg_rating = COALESCE($2, tutor_profiles.avg_rating),
			total_ratings = COALESCE($3, tutor_profiles.total_ratings),
			response_time_seconds = COALESCE($4, tutor_profiles.response_time_seconds),
			sessions_last_month = COALESCE($5, tutor_profiles.sessions_last_month),
			subjects = COALESCE($6::text[], tutor_profiles.subjects),
			availability_score = COALESCE($7, tutor_profiles.availability_score),
			updated_at = $8
		RETURNING user_id, avg_rating, total_ratings, response_time_seconds,
			sessions_last_month, subjects, availability_score, updated_at
	`
	var p domain.TutorProfile
	err := r.pool.QueryRow(ctx, query,
		userID,
		update.AvgRating,
		update.TotalRatings,
		update.ResponseTimeSeconds,
		update.SessionsLastMonth,
		update.Subjects,
		update.AvailabilityScore,
		at,
	).Scan(
		&p.UserID, &p.AvgRating, &p.TotalRatings, &p.ResponseTimeSeconds,
		&p.SessionsLastMonth, &p.Subjects, &p.AvailabilityScore, &p.UpdatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("upserting tutor profile: %w", err)
	}
	return &p, nil
}
