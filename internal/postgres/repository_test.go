package postgres

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reputation-engine/internal/config"
	"github.com/reputation-engine/internal/domain"
	"github.com/reputation-engine/internal/service"
)

var _ service.Store = (*Repository)(nil)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// newTestRepository connects to POSTGRES_TEST_HOST and skips the test when it
// is unset. Every table is truncated first.
func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	host := os.Getenv("POSTGRES_TEST_HOST")
	if host == "" {
		t.Skip("POSTGRES_TEST_HOST not set")
	}

	cfg := config.DefaultConfig().Postgres
	cfg.Host = host
	cfg.User = envOr("POSTGRES_TEST_USER", "postgres")
	cfg.Password = envOr("POSTGRES_TEST_PASSWORD", "postgres")
	cfg.Database = envOr("POSTGRES_TEST_DB", "reputation_test")

	ctx := context.Background()
	repo, err := NewRepository(ctx, &cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	require.NoError(t, repo.RunMigrations(ctx))
	_, err = repo.Pool().Exec(ctx, `TRUNCATE users, badges, audit_logs CASCADE`)
	require.NoError(t, err)
	return repo
}

func createUser(t *testing.T, repo *Repository, name string, role domain.Role) domain.User {
	t.Helper()
	now := time.Now().UTC()
	u := domain.User{ID: uuid.NewString(), Email: name + "@example.com", Name: name, Role: role, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.CreateUser(context.Background(), u))
	return u
}

func TestRepository_UsersAndLedger(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	u := createUser(t, repo, "ana", domain.RoleStudent)

	dup := u
	dup.ID = uuid.NewString()
	assert.ErrorIs(t, repo.CreateUser(ctx, dup), domain.ErrUserExists)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			view, err := repo.AddPoints(ctx, u.ID, fmt.Sprintf("r%d", i), 5, time.Now(), 100)
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

	total, err := repo.GetPoints(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), total)

	reasons, err := repo.ListReasons(ctx, u.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, reasons, 10)

	_, err = repo.AddPoints(ctx, "ghost", "x", 1, time.Now(), 0)
	assert.ErrorIs(t, err, domain.ErrScoreNotFound)
}

func TestRepository_AwardUniqueness(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	u := createUser(t, repo, "ana", domain.RoleStudent)
	badge := domain.Badge{ID: uuid.NewString(), Name: "Mentor del Mes", Description: "d", Criteria: "c", CreatedAt: time.Now()}
	require.NoError(t, repo.CreateBadge(ctx, badge))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, dupes int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.InsertAward(ctx, domain.BadgeAward{ID: uuid.NewString(), UserID: u.ID, BadgeID: badge.ID, AwardedAt: time.Now()})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, domain.ErrAwardExists):
				dupes++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, 9, dupes)

	err := repo.InsertAward(ctx, domain.BadgeAward{ID: uuid.NewString(), UserID: u.ID, BadgeID: "missing", AwardedAt: time.Now()})
	assert.ErrorIs(t, err, domain.ErrBadgeNotFound)
	err = repo.InsertAward(ctx, domain.BadgeAward{ID: uuid.NewString(), UserID: "ghost", BadgeID: badge.ID, AwardedAt: time.Now()})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestRepository_MatchThresholdsSkipsNulls(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	rated := createUser(t, repo, "rated", domain.RoleTutor)
	unrated := createUser(t, repo, "unrated", domain.RoleTutor)

	rating, sessions := 4.9, int64(30)
	_, err := repo.UpsertTutorProfile(ctx, rated.ID, domain.TutorProfileUpdate{AvgRating: &rating, SessionsLastMonth: &sessions}, time.Now())
	require.NoError(t, err)
	_, err = repo.UpsertTutorProfile(ctx, unrated.ID, domain.TutorProfileUpdate{SessionsLastMonth: &sessions}, time.Now())
	require.NoError(t, err)

	ids, err := repo.MatchThresholds(ctx, domain.PopulationTutorProfiles, []domain.Threshold{
		{Field: domain.FieldAvgRating, Min: 4.8},
		{Field: domain.FieldSessionsLastMonth, Min: 20},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{rated.ID}, ids)
}

func TestRepository_TopScoresTieBreak(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	a := createUser(t, repo, "a", domain.RoleStudent)
	b := createUser(t, repo, "b", domain.RoleStudent)
	for _, u := range []domain.User{a, b} {
		_, err := repo.AddPoints(ctx, u.ID, "seed", 10, time.Now(), 0)
		require.NoError(t, err)
	}

	top, err := repo.TopScores(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Less(t, top[0].UserID, top[1].UserID)
	assert.Equal(t, int64(1), top[0].Rank)
}

func TestRepository_AuditActionFilterIsLiteral(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, action := range []string{domain.AuditPointsAdded, "POINTSXADDED"} {
		require.NoError(t, repo.InsertAudit(ctx, domain.AuditRecord{
			ID:           uuid.NewString(),
			Action:       action,
			ResourceType: "score",
			ResourceID:   "u1",
			CreatedAt:    time.Now(),
		}))
	}

	records, total, err := repo.ListAudit(ctx, domain.AuditFilter{Action: "points_added", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, records, 1)
	assert.Equal(t, domain.AuditPointsAdded, records[0].Action)

	_, total, err = repo.ListAudit(ctx, domain.AuditFilter{Action: "%", Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
}
