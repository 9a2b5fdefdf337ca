package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/reputation-engine/internal/domain"
)

// populationTables maps a rule population to its table
var populationTables = map[domain.Population]string{
	domain.PopulationTutorProfiles: "tutor_profiles",
	domain.PopulationUserStats:     "user_stats",
}

// fieldColumns maps rule fields to columns. Only these names ever reach SQL.
var fieldColumns = map[domain.Field]string{
	domain.FieldAvgRating:         "avg_rating",
	domain.FieldTotalRatings:      "total_ratings",
	domain.FieldSessionsLastMonth: "sessions_last_month",
	domain.FieldResponseTime:      "response_time_seconds",
	domain.FieldAvailabilityScore: "availability_score",
	domain.FieldMaterialsUploaded: "materials_uploaded",
	domain.FieldAvgLikes:          "avg_likes",
	domain.FieldSessionsCompleted: "sessions_completed",
	domain.FieldTotalStudyHours:   "total_study_hours",
	domain.FieldGoalsCompleted:    "goals_completed",
}

// MatchThresholds returns the user IDs in population meeting every threshold.
// NULL columns never match.
func (r *Repository) MatchThresholds(ctx context.Context, population domain.Population, thresholds []domain.Threshold) ([]string, error) {
	table, ok := populationTables[population]
	if !ok {
		return nil, fmt.Errorf("unknown population %q", population)
	}

	conditions := make([]string, 0, len(thresholds))
	args := make([]interface{}, 0, len(thresholds))
	for _, t := range thresholds {
		column, ok := fieldColumns[t.Field]
		if !ok || !population.Supports(t.Field) {
			return nil, fmt.Errorf("field %q not available on %s", t.Field, population)
		}
		args = append(args, t.Min)
		conditions = append(conditions, fmt.Sprintf("%s >= $%d", column, len(args)))
	}

	query := `SELECT user_id FROM ` + table
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY user_id ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("matching thresholds: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, rows.Err()
}
