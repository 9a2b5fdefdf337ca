// Package ranking computes the composite tutor ranking. It is a pure function
// of its inputs; callers load the candidates and own freshness.
package ranking

import (
	"sort"

	"github.com/reputation-engine/internal/domain"
)

// Signal names a ranking input
type Signal string

const (
	SignalPoints       Signal = "points"
	SignalAvgRating    Signal = "avg_rating"
	SignalResponseTime Signal = "response_time_seconds"
	SignalSubjectMatch Signal = "subject_match"
	SignalAvailability Signal = "availability_score"
)

// Defaults is the value used for each signal when the underlying field is absent.
// A missing response time counts as slow, not as unknown.
var Defaults = map[Signal]float64{
	SignalPoints:       0,
	SignalAvgRating:    0,
	SignalResponseTime: 999,
	SignalAvailability: 0,
}

// Weights applied to each signal
var Weights = map[Signal]float64{
	SignalPoints:       0.3,
	SignalAvgRating:    200,
	SignalResponseTime: 0.1,
	SignalSubjectMatch: 300,
	SignalAvailability: 100,
}

// responseCeiling is subtracted from so that faster responses score higher
const responseCeiling = 1000

// DefaultLimit is used when the caller passes a zero limit
const DefaultLimit = 10

// Score returns the composite ranking score for one set of signal values
func Score(points, avgRating, responseTime, subjectMatch, availability float64) float64 {
	return points*Weights[SignalPoints] +
		avgRating*Weights[SignalAvgRating] +
		(responseCeiling-responseTime)*Weights[SignalResponseTime] +
		subjectMatch*Weights[SignalSubjectMatch] +
		availability*Weights[SignalAvailability]
}

// Entry builds a rank entry for a candidate, applying the defaults table
func Entry(c domain.TutorCandidate, subject string) domain.TutorRankEntry {
	p := c.Profile

	points := int64(Defaults[SignalPoints])
	if c.Points != nil {
		points = *c.Points
	}
	avgRating := floatOr(p.AvgRating, Defaults[SignalAvgRating])
	responseTime := floatOr(p.ResponseTimeSeconds, Defaults[SignalResponseTime])
	availability := floatOr(p.AvailabilityScore, Defaults[SignalAvailability])

	var subjectMatch float64
	if subject != "" && p.HasSubject(subject) {
		subjectMatch = 1
	}

	subjects := p.Subjects
	if subjects == nil {
		subjects = []string{}
	}

	return domain.TutorRankEntry{
		UserID:              c.UserID,
		Name:                c.Name,
		Email:               c.Email,
		Points:              points,
		AvgRating:           avgRating,
		TotalRatings:        intOr(p.TotalRatings, 0),
		ResponseTimeSeconds: responseTime,
		Subjects:            subjects,
		AvailabilityScore:   availability,
		SessionsLastMonth:   intOr(p.SessionsLastMonth, 0),
		RankingScore:        Score(float64(points), avgRating, responseTime, subjectMatch, availability),
	}
}

// Rank scores every candidate and returns at most limit entries ordered by
// score descending, ties broken by user ID ascending. A non-positive limit
// means DefaultLimit.
func Rank(candidates []domain.TutorCandidate, limit int, subject string) []domain.TutorRankEntry {
	if limit <= 0 {
		limit = DefaultLimit
	}

	entries := make([]domain.TutorRankEntry, 0, len(candidates))
	for _, c := range candidates {
		entries = append(entries, Entry(c, subject))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].RankingScore != entries[j].RankingScore {
			return entries[i].RankingScore > entries[j].RankingScore
		}
		return entries[i].UserID < entries[j].UserID
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int64, def int64) int64 {
	if v == nil {
		return def
	}
	return *v
}
