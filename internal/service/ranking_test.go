package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reputation-engine/internal/domain"
)

func TestRank_OnlyTutorsWithProfiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tutor := f.createUser(t, "tutor", domain.RoleTutor)
	f.createUser(t, "noprofile", domain.RoleTutor)
	student := f.createUser(t, "student", domain.RoleStudent)

	_, err := f.ranking.UpdateTutorProfile(ctx, tutor.ID, domain.TutorProfileUpdate{AvgRating: f64(4)})
	require.NoError(t, err)
	_, err = f.ranking.UpdateTutorProfile(ctx, student.ID, domain.TutorProfileUpdate{AvgRating: f64(5)})
	require.NoError(t, err)

	entries, err := f.ranking.Rank(ctx, 0, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, tutor.ID, entries[0].UserID)
	assert.Equal(t, "tutor", entries[0].Name)
	assert.Equal(t, "tutor@example.com", entries[0].Email)
}

func TestRank_Formula(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tutor := f.createUser(t, "juan", domain.RoleTutor)

	_, err := f.ledger.AddPoints(ctx, tutor.ID, "seed", 100)
	require.NoError(t, err)
	_, err = f.ranking.UpdateTutorProfile(ctx, tutor.ID, domain.TutorProfileUpdate{
		AvgRating:           f64(4.0),
		ResponseTimeSeconds: f64(20),
		AvailabilityScore:   f64(0.5),
		Subjects:            []string{"Matemáticas", "Física"},
	})
	require.NoError(t, err)

	withSubject, err := f.ranking.Rank(ctx, 10, "Matemáticas")
	require.NoError(t, err)
	require.Len(t, withSubject, 1)
	assert.InDelta(t, 1278.0, withSubject[0].RankingScore, 1e-9)

	without, err := f.ranking.Rank(ctx, 10, "")
	require.NoError(t, err)
	assert.InDelta(t, 978.0, without[0].RankingScore, 1e-9)
}

func TestRank_LimitPolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 120; i++ {
		u := f.createUser(t, fmt.Sprintf("tutor%03d", i), domain.RoleTutor)
		_, err := f.ranking.UpdateTutorProfile(ctx, u.ID, domain.TutorProfileUpdate{AvgRating: f64(float64(i%6) * 0.8)})
		require.NoError(t, err)
	}

	_, err := f.ranking.Rank(ctx, -1, "")
	assert.ErrorIs(t, err, domain.ErrInvalidLimit)
	assert.True(t, domain.IsValidationError(err))

	entries, err := f.ranking.Rank(ctx, 0, "")
	require.NoError(t, err)
	assert.Len(t, entries, 10)

	entries, err = f.ranking.Rank(ctx, 1000, "")
	require.NoError(t, err)
	assert.Len(t, entries, 100)

	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		assert.True(t, prev.RankingScore > cur.RankingScore ||
			(prev.RankingScore == cur.RankingScore && prev.UserID < cur.UserID))
	}
}

func TestUpdateTutorProfile_MergeKeepsUnspecifiedFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tutor := f.createUser(t, "juan", domain.RoleTutor)

	_, err := f.ranking.UpdateTutorProfile(ctx, tutor.ID, domain.TutorProfileUpdate{
		AvgRating: f64(4.5),
		Subjects:  []string{"Historia"},
	})
	require.NoError(t, err)

	p, err := f.ranking.UpdateTutorProfile(ctx, tutor.ID, domain.TutorProfileUpdate{
		SessionsLastMonth: i64(12),
	})
	require.NoError(t, err)

	require.NotNil(t, p.AvgRating)
	assert.Equal(t, 4.5, *p.AvgRating)
	assert.Equal(t, []string{"Historia"}, p.Subjects)
	require.NotNil(t, p.SessionsLastMonth)
	assert.Equal(t, int64(12), *p.SessionsLastMonth)
	assert.Nil(t, p.ResponseTimeSeconds)

	assert.Len(t, f.auditActions(t, domain.AuditTutorProfileUpdated), 2)
}

func TestUpdateTutorProfile_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tutor := f.createUser(t, "juan", domain.RoleTutor)

	cases := []domain.TutorProfileUpdate{
		{AvgRating: f64(5.1)},
		{AvgRating: f64(-1)},
		{AvailabilityScore: f64(1.5)},
		{TotalRatings: i64(-3)},
		{ResponseTimeSeconds: f64(-0.1)},
		{SessionsLastMonth: i64(-1)},
	}
	for _, update := range cases {
		_, err := f.ranking.UpdateTutorProfile(ctx, tutor.ID, update)
		assert.ErrorIs(t, err, domain.ErrInvalidProfile)
	}

	bounds := domain.TutorProfileUpdate{AvgRating: f64(5), AvailabilityScore: f64(1), TotalRatings: i64(0)}
	profile, err := f.ranking.UpdateTutorProfile(ctx, tutor.ID, bounds)
	require.NoError(t, err)
	assert.Equal(t, 5.0, *profile.AvgRating)

	_, err = f.ranking.UpdateTutorProfile(ctx, "ghost", domain.TutorProfileUpdate{AvgRating: f64(3)})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
