package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reputation-engine/internal/config"
	"github.com/reputation-engine/internal/domain"
	"github.com/reputation-engine/internal/memstore"
)

var errBoom = errors.New("boom")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture wires every service over one in-memory store
type fixture struct {
	store         *memstore.Store
	audit         *AuditService
	notifications *NotificationService
	ledger        *LedgerService
	awards        *AwardService
	ranking       *RankingService
	users         *UserService
	evaluator     *Evaluator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.DefaultConfig()
	store := memstore.New()
	logger := testLogger()

	audit := NewAuditService(store, nil, logger)
	notifications := NewNotificationService(store, nil, logger)
	awards := NewAwardService(store, notifications, audit, nil, logger)
	require.NoError(t, awards.EnsureDefaultBadges(context.Background()))

	return &fixture{
		store:         store,
		audit:         audit,
		notifications: notifications,
		ledger:        NewLedgerService(store, audit, nil, &cfg.Ledger, logger),
		awards:        awards,
		ranking:       NewRankingService(store, audit, nil, &cfg.Ranking, logger),
		users:         NewUserService(store, audit, logger),
		evaluator:     NewEvaluator(store, store, awards, domain.DefaultRules(), nil, logger),
	}
}

func (f *fixture) createUser(t *testing.T, name string, role domain.Role) *domain.User {
	t.Helper()
	u, err := f.users.CreateUser(context.Background(), domain.CreateUserRequest{
		Email: name + "@example.com",
		Name:  name,
		Role:  role,
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) badge(t *testing.T, name string) *domain.Badge {
	t.Helper()
	b, err := f.store.GetBadgeByName(context.Background(), name)
	require.NoError(t, err)
	return b
}

func (f *fixture) auditActions(t *testing.T, action string) []domain.AuditRecord {
	t.Helper()
	page, err := f.audit.List(context.Background(), domain.AuditFilter{Action: action})
	require.NoError(t, err)
	return page.Records
}

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

// failingNotifier always fails to enqueue
type failingNotifier struct{}

func (failingNotifier) Enqueue(context.Context, domain.NotificationRequest) (*domain.Notification, error) {
	return nil, errBoom
}

// failingAuditStore rejects every insert
type failingAuditStore struct{}

func (failingAuditStore) InsertAudit(context.Context, domain.AuditRecord) error { return errBoom }
func (failingAuditStore) ListAudit(context.Context, domain.AuditFilter) ([]domain.AuditRecord, int64, error) {
	return nil, 0, errBoom
}

// fakeMirror is a StandingsMirror that can be told to fail. TopN serves
// entries as configured, independent of what SetPoints recorded.
type fakeMirror struct {
	mu        sync.Mutex
	points    map[string]int64
	revisions map[string]int64
	entries   []domain.StandingEntry
	fail      bool
}

func (m *fakeMirror) SetPoints(_ context.Context, userID string, total, revision int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errBoom
	}
	if m.points == nil {
		m.points = make(map[string]int64)
		m.revisions = make(map[string]int64)
	}
	if current, ok := m.revisions[userID]; ok && revision < current {
		return nil
	}
	m.points[userID] = total
	m.revisions[userID] = revision
	return nil
}

func (m *fakeMirror) TopN(_ context.Context, n int) ([]domain.StandingEntry, error) {
	if m.fail {
		return nil, errBoom
	}
	if len(m.entries) > n {
		return m.entries[:n], nil
	}
	return m.entries, nil
}

// recordingHub captures broadcasts
type recordingHub struct {
	mu     sync.Mutex
	points []int64
	badges []string
}

func (h *recordingHub) BroadcastPointsUpdated(_ string, total int64, _ domain.ScoreReason) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.points = append(h.points, total)
}

func (h *recordingHub) BroadcastBadgeAwarded(_ string, _ domain.BadgeAward, badgeName string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.badges = append(h.badges, badgeName)
}
