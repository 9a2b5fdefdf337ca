package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reputation-engine/internal/domain"
)

// seedEvaluation creates two qualifying tutors, one non-qualifying tutor,
// one active collaborator and a spread of points
func seedEvaluation(t *testing.T, f *fixture) map[string]*domain.User {
	t.Helper()
	ctx := context.Background()
	users := map[string]*domain.User{
		"star":   f.createUser(t, "star", domain.RoleTutor),
		"solid":  f.createUser(t, "solid", domain.RoleTutor),
		"casual": f.createUser(t, "casual", domain.RoleTutor),
		"writer": f.createUser(t, "writer", domain.RoleStudent),
		"reader": f.createUser(t, "reader", domain.RoleStudent),
	}

	_, err := f.ranking.UpdateTutorProfile(ctx, users["star"].ID, domain.TutorProfileUpdate{AvgRating: f64(4.9), SessionsLastMonth: i64(25)})
	require.NoError(t, err)
	_, err = f.ranking.UpdateTutorProfile(ctx, users["solid"].ID, domain.TutorProfileUpdate{AvgRating: f64(4.8), SessionsLastMonth: i64(20)})
	require.NoError(t, err)
	_, err = f.ranking.UpdateTutorProfile(ctx, users["casual"].ID, domain.TutorProfileUpdate{AvgRating: f64(5.0), SessionsLastMonth: i64(19)})
	require.NoError(t, err)

	_, err = f.users.IncrementStats(ctx, users["writer"].ID, domain.StatsIncrement{MaterialsUploaded: 12, AvgLikes: f64(6)})
	require.NoError(t, err)
	_, err = f.users.IncrementStats(ctx, users["reader"].ID, domain.StatsIncrement{MaterialsUploaded: 30, AvgLikes: f64(4.9)})
	require.NoError(t, err)

	points := map[string]int64{"star": 50, "solid": 80, "casual": 10, "writer": 80, "reader": 5}
	for name, p := range points {
		_, err := f.ledger.AddPoints(ctx, users[name].ID, "seed", p)
		require.NoError(t, err)
	}
	return users
}

func TestEvaluate_GrantsPerRule(t *testing.T) {
	f := newFixture(t)
	users := seedEvaluation(t, f)

	result := f.evaluator.Evaluate(context.Background(), "manual")

	assert.Equal(t, 2, result.Granted(domain.RuleTutorDestacado))
	assert.Equal(t, 1, result.Granted(domain.RuleColaboradorActivo))
	assert.Equal(t, 3, result.Granted(domain.RuleMentorDelMes))
	assert.Equal(t, 6, result.TotalGranted)

	holders := func(badge string) []string {
		var ids []string
		for name, u := range users {
			badges, err := f.awards.ListUserBadges(context.Background(), u.ID)
			require.NoError(t, err)
			for _, b := range badges {
				if b.Name == badge {
					ids = append(ids, name)
				}
			}
		}
		return ids
	}
	assert.ElementsMatch(t, []string{"star", "solid"}, holders("Tutor Destacado"))
	assert.ElementsMatch(t, []string{"writer"}, holders("Colaborador Activo"))
	assert.ElementsMatch(t, []string{"solid", "writer", "star"}, holders("Mentor del Mes"))
}

func TestEvaluate_SecondRunGrantsNothing(t *testing.T) {
	f := newFixture(t)
	seedEvaluation(t, f)
	ctx := context.Background()

	first := f.evaluator.Evaluate(ctx, "manual")
	second := f.evaluator.Evaluate(ctx, "manual")

	assert.Equal(t, 6, first.TotalGranted)
	assert.Zero(t, second.TotalGranted)
	for _, rr := range second.Rules {
		assert.Zero(t, rr.Granted, rr.Rule)
		assert.False(t, rr.Skipped, rr.Rule)
	}
}

func TestEvaluate_ConcurrentRunsGrantOnce(t *testing.T) {
	f := newFixture(t)
	seedEvaluation(t, f)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]domain.EvaluationResult, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.evaluator.Evaluate(ctx, "scheduled")
		}(i)
	}
	wg.Wait()

	var total int
	for _, r := range results {
		total += r.TotalGranted
	}
	assert.Equal(t, 6, total)
}

func TestEvaluate_MentorDelMesTieBreak(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := make([]string, 0, 4)
	for _, name := range []string{"a", "b", "c", "d"} {
		u := f.createUser(t, name, domain.RoleStudent)
		_, err := f.ledger.AddPoints(ctx, u.ID, "seed", 100)
		require.NoError(t, err)
		ids = append(ids, u.ID)
	}

	result := f.evaluator.Evaluate(ctx, "manual")
	assert.Equal(t, 3, result.Granted(domain.RuleMentorDelMes))

	top, err := f.store.TopScores(ctx, 3)
	require.NoError(t, err)
	winners := map[string]bool{}
	for _, e := range top {
		winners[e.UserID] = true
	}
	for _, id := range ids {
		badges, err := f.awards.ListUserBadges(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, winners[id], len(badges) == 1, id)
	}
}

func TestEvaluate_MissingBadgeSkipsOnlyThatRule(t *testing.T) {
	f := newFixture(t)
	seedEvaluation(t, f)
	rules := append(domain.DefaultRules(), domain.Rule{
		Key:       "ghost_rule",
		BadgeName: "Does Not Exist",
		Selector:  domain.TopN{N: 1},
	})
	evaluator := NewEvaluator(f.store, f.store, f.awards, rules, nil, testLogger())

	result := evaluator.Evaluate(context.Background(), "manual")

	assert.Equal(t, 6, result.TotalGranted)
	require.Len(t, result.Rules, 4)
	assert.True(t, result.Rules[3].Skipped)
	assert.Zero(t, result.Rules[3].Granted)
}

// brokenCandidates fails threshold queries but serves top scores
type brokenCandidates struct {
	CandidateStore
}

func (brokenCandidates) MatchThresholds(context.Context, domain.Population, []domain.Threshold) ([]string, error) {
	return nil, errBoom
}

func TestEvaluate_CandidateErrorSkipsRule(t *testing.T) {
	f := newFixture(t)
	seedEvaluation(t, f)
	evaluator := NewEvaluator(f.store, brokenCandidates{f.store}, f.awards, domain.DefaultRules(), nil, testLogger())

	result := evaluator.Evaluate(context.Background(), "manual")

	assert.Zero(t, result.Granted(domain.RuleTutorDestacado))
	assert.Zero(t, result.Granted(domain.RuleColaboradorActivo))
	assert.Equal(t, 3, result.Granted(domain.RuleMentorDelMes))
}
