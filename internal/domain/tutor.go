package domain

import "time"

// TutorProfile holds the signals used to rank a tutor. Numeric fields are nil
// when the rating workflow has not supplied them yet.
type TutorProfile struct {
	UserID              string    `json:"user_id"`
	AvgRating           *float64  `json:"avg_rating,omitempty"`
	TotalRatings        *int64    `json:"total_ratings,omitempty"`
	ResponseTimeSeconds *float64  `json:"response_time_seconds,omitempty"`
	SessionsLastMonth   *int64    `json:"sessions_last_month,omitempty"`
	Subjects            []string  `json:"subjects"`
	AvailabilityScore   *float64  `json:"availability_score,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// HasSubject reports whether the tutor teaches subject
func (p *TutorProfile) HasSubject(subject string) bool {
	for _, s := range p.Subjects {
		if s == subject {
			return true
		}
	}
	return false
}

// TutorProfileUpdate carries the fields to merge into a profile. Nil fields
// keep their current value.
type TutorProfileUpdate struct {
	AvgRating           *float64 `json:"avg_rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	TotalRatings        *int64   `json:"total_ratings,omitempty" validate:"omitempty,gte=0"`
	ResponseTimeSeconds *float64 `json:"response_time_seconds,omitempty" validate:"omitempty,gte=0"`
	SessionsLastMonth   *int64   `json:"sessions_last_month,omitempty" validate:"omitempty,gte=0"`
	Subjects            []string `json:"subjects,omitempty"`
	AvailabilityScore   *float64 `json:"availability_score,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// Apply merges the update into p
func (u TutorProfileUpdate) Apply(p *TutorProfile) {
	if u.AvgRating != nil {
		v := *u.AvgRating
		p.AvgRating = &v
	}
	if u.TotalRatings != nil {
		v := *u.TotalRatings
		p.TotalRatings = &v
	}
	if u.ResponseTimeSeconds != nil {
		v := *u.ResponseTimeSeconds
		p.ResponseTimeSeconds = &v
	}
	if u.SessionsLastMonth != nil {
		v := *u.SessionsLastMonth
		p.SessionsLastMonth = &v
	}
	if u.Subjects != nil {
		p.Subjects = append([]string(nil), u.Subjects...)
	}
	if u.AvailabilityScore != nil {
		v := *u.AvailabilityScore
		p.AvailabilityScore = &v
	}
}

// TutorCandidate is a tutor joined with its profile and, if present, its score
type TutorCandidate struct {
	UserID  string
	Name    string
	Email   string
	Points  *int64
	Profile TutorProfile
}

// TutorRankEntry is one row of the tutor ranking
type TutorRankEntry struct {
	UserID              string   `json:"user_id"`
	Name                string   `json:"name"`
	Email               string   `json:"email"`
	Points              int64    `json:"points"`
	AvgRating           float64  `json:"avg_rating"`
	TotalRatings        int64    `json:"total_ratings"`
	ResponseTimeSeconds float64  `json:"response_time_seconds"`
	Subjects            []string `json:"subjects"`
	AvailabilityScore   float64  `json:"availability_score"`
	SessionsLastMonth   int64    `json:"sessions_last_month"`
	RankingScore        float64  `json:"ranking_score"`
}
