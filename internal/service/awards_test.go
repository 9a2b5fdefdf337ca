package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reputation-engine/internal/domain"
)

func TestGrant_CreatesAwardNotificationAndAudit(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "ana", domain.RoleTutor)
	b := f.badge(t, "Principiante")
	hub := &recordingHub{}
	f.awards.SetHub(hub)
	ctx := context.Background()

	res, err := f.awards.Grant(ctx, u.ID, b.ID, "manual")
	require.NoError(t, err)
	assert.True(t, res.Granted())
	require.NotNil(t, res.Award)
	assert.Equal(t, b.ID, res.Award.BadgeID)

	notifications, err := f.notifications.ListForUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, domain.ChannelPush, notifications[0].Channel)
	assert.Equal(t, domain.NotificationPending, notifications[0].Status)
	assert.Equal(t, "Nueva insignia otorgada", notifications[0].Title)
	assert.Equal(t, `Has recibido la insignia "Principiante"!`, notifications[0].Message)

	assert.Len(t, f.auditActions(t, domain.AuditBadgeAwarded), 1)
	assert.Equal(t, []string{"Principiante"}, hub.badges)

	badges, err := f.awards.ListUserBadges(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, badges, 1)
	assert.Equal(t, "Principiante", badges[0].Name)
}

func TestGrant_SecondGrantIsAlreadyGranted(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "ana", domain.RoleStudent)
	b := f.badge(t, "Principiante")
	ctx := context.Background()

	first, err := f.awards.Grant(ctx, u.ID, b.ID, "")
	require.NoError(t, err)
	second, err := f.awards.Grant(ctx, u.ID, b.ID, "")
	require.NoError(t, err)

	assert.Equal(t, domain.GrantOutcomeGranted, first.Outcome)
	assert.Equal(t, domain.GrantOutcomeAlreadyGranted, second.Outcome)
	assert.Nil(t, second.Award)

	notifications, err := f.notifications.ListForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, notifications, 1)
}

func TestGrant_ConcurrentExactlyOneSucceeds(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "ana", domain.RoleStudent)
	b := f.badge(t, "Mentor del Mes")
	ctx := context.Background()

	const n = 25
	outcomes := make([]domain.GrantOutcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.awards.Grant(ctx, u.ID, b.ID, "race")
			assert.NoError(t, err)
			outcomes[i] = res.Outcome
		}(i)
	}
	wg.Wait()

	var granted, already int
	for _, o := range outcomes {
		switch o {
		case domain.GrantOutcomeGranted:
			granted++
		case domain.GrantOutcomeAlreadyGranted:
			already++
		}
	}
	assert.Equal(t, 1, granted)
	assert.Equal(t, n-1, already)

	badges, err := f.awards.ListUserBadges(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, badges, 1)
}

func TestGrant_NotFound(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "ana", domain.RoleStudent)
	b := f.badge(t, "Principiante")
	ctx := context.Background()

	_, err := f.awards.Grant(ctx, "ghost", b.ID, "")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = f.awards.Grant(ctx, u.ID, "missing-badge", "")
	assert.ErrorIs(t, err, domain.ErrBadgeNotFound)
}

func TestGrant_NotificationFailureKeepsAward(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "ana", domain.RoleStudent)
	b := f.badge(t, "Principiante")
	awards := NewAwardService(f.store, failingNotifier{}, f.audit, nil, testLogger())

	res, err := awards.Grant(context.Background(), u.ID, b.ID, "")
	require.NoError(t, err)
	assert.True(t, res.Granted())
	assert.Len(t, f.auditActions(t, domain.AuditBadgeAwarded), 1)
}

func TestGrant_AuditFailureKeepsAward(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "ana", domain.RoleStudent)
	b := f.badge(t, "Principiante")
	audit := NewAuditService(failingAuditStore{}, nil, testLogger())
	awards := NewAwardService(f.store, f.notifications, audit, nil, testLogger())

	res, err := awards.Grant(context.Background(), u.ID, b.ID, "")
	require.NoError(t, err)
	assert.True(t, res.Granted())

	badges, err := awards.ListUserBadges(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Len(t, badges, 1)
}

func TestCreateBadge_DuplicateName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := domain.CreateBadgeRequest{Name: "Nocturno", Description: "Estudia de noche", Criteria: "{}"}

	b, err := f.awards.CreateBadge(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "Nocturno", b.Name)
	assert.Len(t, f.auditActions(t, domain.AuditBadgeCreated), 1)

	_, err = f.awards.CreateBadge(ctx, req)
	assert.ErrorIs(t, err, domain.ErrBadgeExists)
	assert.True(t, domain.IsConflictError(err))

	_, err = f.awards.CreateBadge(ctx, domain.CreateBadgeRequest{Name: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestEnsureDefaultBadges_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.awards.EnsureDefaultBadges(ctx))

	badges, err := f.awards.ListBadges(ctx)
	require.NoError(t, err)
	assert.Len(t, badges, len(domain.DefaultBadges()))
}

func TestListBadges_AwardCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.badge(t, "Principiante")
	for _, name := range []string{"ana", "luis"} {
		u := f.createUser(t, name, domain.RoleStudent)
		_, err := f.awards.Grant(ctx, u.ID, b.ID, "")
		require.NoError(t, err)
	}

	badges, err := f.awards.ListBadges(ctx)
	require.NoError(t, err)
	for _, badge := range badges {
		if badge.Name == "Principiante" {
			assert.Equal(t, int64(2), badge.AwardCount)
		} else {
			assert.Zero(t, badge.AwardCount)
		}
	}
}
