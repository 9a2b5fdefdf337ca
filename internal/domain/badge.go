package domain

import "time"

// Badge is a named achievement. Criteria is descriptive metadata; eligibility
// is decided by the Rule bound to the badge name.
type Badge struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Criteria    string    `json:"criteria"`
	IconURL     string    `json:"icon_url,omitempty"`
	AwardCount  int64     `json:"award_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateBadgeRequest represents a request to define a new badge
type CreateBadgeRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"required"`
	Criteria    string `json:"criteria" validate:"required"`
	IconURL     string `json:"icon_url,omitempty"`
}

// BadgeAward records that a user received a badge. At most one exists per
// (UserID, BadgeID).
type BadgeAward struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	BadgeID   string    `json:"badge_id"`
	AwardedAt time.Time `json:"awarded_at"`
	Reason    string    `json:"reason,omitempty"`
}

// UserBadge is an award joined with its badge definition
type UserBadge struct {
	BadgeID     string    `json:"badge_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IconURL     string    `json:"icon_url,omitempty"`
	AwardedAt   time.Time `json:"awarded_at"`
	Reason      string    `json:"reason,omitempty"`
}

// GrantRequest represents a manual badge grant
type GrantRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	BadgeID string `json:"badge_id" validate:"required"`
	Reason  string `json:"reason,omitempty"`
}

// GrantOutcome tells whether a grant created a new award
type GrantOutcome string

const (
	GrantOutcomeGranted        GrantOutcome = "granted"
	GrantOutcomeAlreadyGranted GrantOutcome = "already_granted"
)

// GrantResult is the result of a grant attempt
type GrantResult struct {
	Outcome GrantOutcome `json:"outcome"`
	Award   *BadgeAward  `json:"award,omitempty"`
}

// Granted reports whether the grant created the award
func (r GrantResult) Granted() bool {
	return r.Outcome == GrantOutcomeGranted
}
