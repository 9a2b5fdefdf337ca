package memstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reputation-engine/internal/domain"
	"github.com/reputation-engine/internal/service"
)

var _ service.Store = (*Store)(nil)

func seedUser(t *testing.T, s *Store, id string, role domain.Role) {
	t.Helper()
	now := time.Now()
	require.NoError(t, s.CreateUser(context.Background(), domain.User{
		ID:        id,
		Email:     id + "@example.com",
		Name:      id,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s := New()
	seedUser(t, s, "u1", domain.RoleStudent)

	err := s.CreateUser(context.Background(), domain.User{ID: "u2", Email: "u1@example.com"})
	assert.ErrorIs(t, err, domain.ErrUserExists)
}

func TestAddPoints_ConcurrentIncrementsSum(t *testing.T) {
	s := New()
	seedUser(t, s, "u1", domain.RoleStudent)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.AddPoints(ctx, "u1", fmt.Sprintf("r%d", i), 2, time.Now(), 0)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	total, err := s.GetPoints(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), total)

	reasons, err := s.ListReasons(ctx, "u1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, reasons, 50)
}

func TestAddPoints_ViewMatchesTotal(t *testing.T) {
	s := New()
	seedUser(t, s, "u1", domain.RoleStudent)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			view, err := s.AddPoints(ctx, "u1", fmt.Sprintf("r%d", i), 3, time.Now(), 100)
			if !assert.NoError(t, err) {
				return
			}
			var sum int64
			for _, r := range view.Reasons {
				sum += r.Amount
			}
			assert.Equal(t, view.Total, sum)
		}(i)
	}
	wg.Wait()

	view, err := s.AddPoints(ctx, "u1", "last", 1, time.Now(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(61), view.Total)
	require.Len(t, view.Reasons, 5)
	assert.Equal(t, "last", view.Reasons[0].Reason)
}

func TestAddPoints_UnknownUser(t *testing.T) {
	_, err := New().AddPoints(context.Background(), "ghost", "x", 1, time.Now(), 0)
	assert.ErrorIs(t, err, domain.ErrScoreNotFound)
}

func TestInsertAward_Unique(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedUser(t, s, "u1", domain.RoleStudent)
	require.NoError(t, s.CreateBadge(ctx, domain.Badge{ID: "b1", Name: "Badge"}))

	var wg sync.WaitGroup
	results := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results <- s.InsertAward(ctx, domain.BadgeAward{
				ID:      fmt.Sprintf("a%d", i),
				UserID:  "u1",
				BadgeID: "b1",
			})
		}(i)
	}
	wg.Wait()
	close(results)

	var ok, conflicts int
	for err := range results {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, domain.ErrAwardExists)
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 19, conflicts)
}

func TestMatchThresholds_NullNeverMatches(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedUser(t, s, "t1", domain.RoleTutor)
	seedUser(t, s, "t2", domain.RoleTutor)

	rating := 4.9
	sessions := int64(25)
	_, err := s.UpsertTutorProfile(ctx, "t1", domain.TutorProfileUpdate{AvgRating: &rating, SessionsLastMonth: &sessions}, time.Now())
	require.NoError(t, err)
	_, err = s.UpsertTutorProfile(ctx, "t2", domain.TutorProfileUpdate{AvgRating: &rating}, time.Now())
	require.NoError(t, err)

	ids, err := s.MatchThresholds(ctx, domain.PopulationTutorProfiles, []domain.Threshold{
		{Field: domain.FieldAvgRating, Min: 4.8},
		{Field: domain.FieldSessionsLastMonth, Min: 20},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, ids)
}

func TestMatchThresholds_RejectsForeignField(t *testing.T) {
	_, err := New().MatchThresholds(context.Background(), domain.PopulationUserStats, []domain.Threshold{
		{Field: domain.FieldAvgRating, Min: 1},
	})
	assert.Error(t, err)
}

func TestTopScores_TieBreak(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b", "d"} {
		seedUser(t, s, id, domain.RoleStudent)
		_, err := s.AddPoints(ctx, id, "seed", 10, time.Now(), 0)
		require.NoError(t, err)
	}
	_, err := s.AddPoints(ctx, "d", "bonus", 5, time.Now(), 0)
	require.NoError(t, err)

	top, err := s.TopScores(ctx, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "d", top[0].UserID)
	assert.Equal(t, "a", top[1].UserID)
	assert.Equal(t, "b", top[2].UserID)
	assert.Equal(t, int64(3), top[2].Rank)
}

func TestUpdateNotificationStatus_StampsSentAt(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedUser(t, s, "u1", domain.RoleStudent)
	require.NoError(t, s.InsertNotification(ctx, domain.Notification{ID: "n1", UserID: "u1", Status: domain.NotificationPending}))

	n, err := s.UpdateNotificationStatus(ctx, "n1", domain.NotificationSent, time.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationSent, n.Status)
	assert.NotNil(t, n.SentAt)

	_, err = s.UpdateNotificationStatus(ctx, "missing", domain.NotificationSent, time.Now())
	assert.ErrorIs(t, err, domain.ErrNotificationNotFound)
}
