package domain

import "time"

// ScoreReason is one immutable entry of a user's point history
type ScoreReason struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Reason    string    `json:"reason"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// ScoreView is the ledger state returned to callers. Reasons are newest first.
// Revision is the ID of the reason that produced Total.
type ScoreView struct {
	UserID   string        `json:"user_id"`
	Total    int64         `json:"total_points"`
	Reasons  []ScoreReason `json:"reasons"`
	Revision int64         `json:"-"`
}

// AddPointsRequest represents a request to credit or debit a user's ledger
type AddPointsRequest struct {
	Reason string `json:"reason" validate:"required"`
	Amount int64  `json:"amount" validate:"required"`
}

// PointEvent is a ledger mutation delivered through the message bus
type PointEvent struct {
	UserID   string                 `json:"user_id"`
	Reason   string                 `json:"reason"`
	Amount   int64                  `json:"amount"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// PointsSnapshot is a user's total as of the reason with ID Revision.
// Revision is 0 for a user without history.
type PointsSnapshot struct {
	UserID   string
	Points   int64
	Revision int64
}

// StandingEntry is one row of the points standings mirror
type StandingEntry struct {
	Rank   int64  `json:"rank"`
	UserID string `json:"user_id"`
	Points int64  `json:"points"`
}
