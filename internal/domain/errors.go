package domain

import "errors"

// Domain errors
var (
	// Not found
	ErrUserNotFound         = errors.New("user not found")
	ErrScoreNotFound        = errors.New("score not found for user")
	ErrBadgeNotFound        = errors.New("badge not found")
	ErrStatsNotFound        = errors.New("user stats not found")
	ErrNotificationNotFound = errors.New("notification not found")

	// Conflict
	ErrAwardExists = errors.New("badge already awarded to user")
	ErrBadgeExists = errors.New("badge with this name already exists")
	ErrUserExists  = errors.New("user with this email already exists")

	// Validation
	ErrInvalidAmount  = errors.New("amount must be a non-zero integer")
	ErrInvalidReason  = errors.New("reason must not be empty")
	ErrInvalidLimit   = errors.New("limit must not be negative")
	ErrInvalidProfile = errors.New("invalid tutor profile values")
	ErrInvalidStats   = errors.New("invalid stats increment")
	ErrInvalidRole    = errors.New("invalid user role")
	ErrInvalidStatus  = errors.New("invalid notification status")
	ErrInvalidRequest = errors.New("invalid request")

	ErrInternalError = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrScoreNotFound) ||
		errors.Is(err, ErrBadgeNotFound) ||
		errors.Is(err, ErrStatsNotFound) ||
		errors.Is(err, ErrNotificationNotFound)
}

// IsConflictError checks if an error reports a uniqueness conflict
func IsConflictError(err error) bool {
	return errors.Is(err, ErrAwardExists) ||
		errors.Is(err, ErrBadgeExists) ||
		errors.Is(err, ErrUserExists)
}

// IsValidationError checks if an error reports malformed input
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidReason) ||
		errors.Is(err, ErrInvalidLimit) ||
		errors.Is(err, ErrInvalidProfile) ||
		errors.Is(err, ErrInvalidStats) ||
		errors.Is(err, ErrInvalidRole) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidRequest)
}
