package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reputation-engine/internal/config"
	"github.com/reputation-engine/internal/domain"
	"github.com/reputation-engine/internal/memstore"
)

func TestAddPoints_ReturnsTotalAndRecentReasons(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "ana", domain.RoleStudent)
	ctx := context.Background()

	_, err := f.ledger.AddPoints(ctx, u.ID, "Sesión completada", 10)
	require.NoError(t, err)
	view, err := f.ledger.AddPoints(ctx, u.ID, "Material subido", 5)
	require.NoError(t, err)

	assert.Equal(t, int64(15), view.Total)
	require.Len(t, view.Reasons, 2)
	assert.Equal(t, "Material subido", view.Reasons[0].Reason)
	assert.Equal(t, "Sesión completada", view.Reasons[1].Reason)
}

func TestAddPoints_RecentReasonsBounded(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "ana", domain.RoleStudent)

	var view *domain.ScoreView
	var err error
	for i := 0; i < 15; i++ {
		view, err = f.ledger.AddPoints(context.Background(), u.ID, fmt.Sprintf("r%d", i), 1)
		require.NoError(t, err)
	}

	assert.Equal(t, int64(15), view.Total)
	assert.Len(t, view.Reasons, 10)
	assert.Equal(t, "r14", view.Reasons[0].Reason)
}

// interleavingStore credits another update for the same user right after
// each AddPoints commits, before the caller sees the result
type interleavingStore struct {
	*memstore.Store
	once sync.Once
}

func (s *interleavingStore) AddPoints(ctx context.Context, userID, reason string, amount int64, at time.Time, recent int) (*domain.ScoreView, error) {
	view, err := s.Store.AddPoints(ctx, userID, reason, amount, at, recent)
	s.once.Do(func() {
		_, err = s.Store.AddPoints(ctx, userID, "concurrent", 1000, time.Now(), recent)
	})
	return view, err
}

func TestAddPoints_ReasonsMatchReturnedTotal(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "ana", domain.RoleStudent)
	ctx := context.Background()

	cfg := config.DefaultConfig()
	ledger := NewLedgerService(&interleavingStore{Store: f.store}, nil, nil, &cfg.Ledger, testLogger())

	view, err := ledger.AddPoints(ctx, u.ID, "mine", 5)
	require.NoError(t, err)

	assert.Equal(t, int64(5), view.Total)
	require.Len(t, view.Reasons, 1)
	assert.Equal(t, "mine", view.Reasons[0].Reason)

	score, err := f.ledger.GetScore(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1005), score.Total)
}

func TestAddPoints_Validation(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "ana", domain.RoleStudent)
	ctx := context.Background()

	_, err := f.ledger.AddPoints(ctx, u.ID, "nothing", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.ledger.AddPoints(ctx, u.ID, "   ", 5)
	assert.ErrorIs(t, err, domain.ErrInvalidReason)

	view, err := f.ledger.GetScore(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), view.Total)
	assert.Empty(t, view.Reasons)
}

func TestAddPoints_NegativeAmountAllowed(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "ana", domain.RoleStudent)
	ctx := context.Background()

	_, err := f.ledger.AddPoints(ctx, u.ID, "bonus", 20)
	require.NoError(t, err)
	view, err := f.ledger.AddPoints(ctx, u.ID, "penalización", -7)
	require.NoError(t, err)

	assert.Equal(t, int64(13), view.Total)
}

func TestAddPoints_UnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.AddPoints(context.Background(), "ghost", "x", 1)
	assert.ErrorIs(t, err, domain.ErrScoreNotFound)
	assert.True(t, domain.IsNotFoundError(err))
}

func TestAddPoints_ConcurrentTotalEqualsSumOfReasons(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "ana", domain.RoleStudent)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			amount := int64(i%5 + 1)
			if i%7 == 0 {
				amount = -amount
			}
			_, err := f.ledger.AddPoints(ctx, u.ID, fmt.Sprintf("op-%d", i), amount)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	total, err := f.store.GetPoints(ctx, u.ID)
	require.NoError(t, err)
	reasons, err := f.store.ListReasons(ctx, u.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, reasons, 40)

	var sum int64
	for _, r := range reasons {
		sum += r.Amount
	}
	assert.Equal(t, sum, total)
}

func TestAddPoints_SideEffects(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "ana", domain.RoleStudent)
	mirror := &fakeMirror{}
	hub := &recordingHub{}
	f.ledger.SetStandings(mirror)
	f.ledger.SetHub(hub)

	_, err := f.ledger.AddPoints(context.Background(), u.ID, "Sesión", 12)
	require.NoError(t, err)

	_, err = f.ledger.AddPoints(context.Background(), u.ID, "Material", 3)
	require.NoError(t, err)

	assert.Equal(t, int64(15), mirror.points[u.ID])
	assert.Positive(t, mirror.revisions[u.ID])
	assert.Equal(t, []int64{12, 15}, hub.points)
	assert.Len(t, f.auditActions(t, domain.AuditPointsAdded), 2)
}

func TestAddPoints_MirrorFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "ana", domain.RoleStudent)
	f.ledger.SetStandings(&fakeMirror{fail: true})

	view, err := f.ledger.AddPoints(context.Background(), u.ID, "Sesión", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), view.Total)
}

func TestStandings_FallsBackToStore(t *testing.T) {
	f := newFixture(t)
	a := f.createUser(t, "ana", domain.RoleStudent)
	ctx := context.Background()
	_, err := f.ledger.AddPoints(ctx, a.ID, "x", 4)
	require.NoError(t, err)

	f.ledger.SetStandings(&fakeMirror{fail: true})
	entries, err := f.ledger.Standings(ctx, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, a.ID, entries[0].UserID)

	f.ledger.SetStandings(&fakeMirror{})
	entries, err = f.ledger.Standings(ctx, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, a.ID, entries[0].UserID)
	assert.Equal(t, int64(4), entries[0].Points)

	_, err = f.ledger.Standings(ctx, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidLimit)
}

func TestStandings_ShortMirrorReadsStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for name, pts := range map[string]int64{"ana": 10, "luis": 10, "eva": 30} {
		u := f.createUser(t, name, domain.RoleStudent)
		_, err := f.ledger.AddPoints(ctx, u.ID, "seed", pts)
		require.NoError(t, err)
	}

	want, err := f.store.TopScores(ctx, 3)
	require.NoError(t, err)

	f.ledger.SetStandings(&fakeMirror{entries: want[:1]})
	entries, err := f.ledger.Standings(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, want, entries)
}

func TestStandings_FullMirrorAnswers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mirrored := []domain.StandingEntry{{Rank: 1, UserID: "from-mirror", Points: 7}}
	f.ledger.SetStandings(&fakeMirror{entries: mirrored})

	entries, err := f.ledger.Standings(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, mirrored, entries)
}
