package domain

import "time"

// Role represents what a user does on the platform
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleTutor   Role = "TUTOR"
	RoleAdmin   Role = "ADMIN"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTutor, RoleAdmin:
		return true
	}
	return false
}

// User represents a registered user
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateUserRequest represents a request to register a user
type CreateUserRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required,min=1,max=255"`
	Role  Role   `json:"role,omitempty"`
}

// UserStats is the activity aggregate consulted by badge rules
type UserStats struct {
	UserID            string    `json:"user_id"`
	TotalStudyHours   float64   `json:"total_study_hours"`
	MaterialsUploaded int64     `json:"materials_uploaded"`
	AvgLikes          float64   `json:"avg_likes"`
	SessionsCompleted int64     `json:"sessions_completed"`
	GoalsCompleted    int64     `json:"goals_completed"`
	LastUpdated       time.Time `json:"last_updated"`
}

// StatsIncrement carries counter increments for UserStats.
// AvgLikes replaces the current value when set.
type StatsIncrement struct {
	StudyHours        float64  `json:"study_hours,omitempty" validate:"gte=0"`
	MaterialsUploaded int64    `json:"materials_uploaded,omitempty" validate:"gte=0"`
	SessionsCompleted int64    `json:"sessions_completed,omitempty" validate:"gte=0"`
	GoalsCompleted    int64    `json:"goals_completed,omitempty" validate:"gte=0"`
	AvgLikes          *float64 `json:"avg_likes,omitempty" validate:"omitempty,gte=0"`
}

