package service

import "github.com/reputation-engine/internal/domain"

// clampLimit rejects negative limits, maps 0 to def and caps at max
func clampLimit(limit, def, max int) (int, error) {
	if limit < 0 {
		return 0, domain.ErrInvalidLimit
	}
	if limit == 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return limit, nil
}
