package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reputation-engine/internal/domain"
)

// CreateUser registers a user
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	user, err := h.svc.Users.CreateUser(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "create user", err)
		return
	}
	h.writeCreated(w, user)
}

// ListUsers returns users, optionally filtered by ?role=
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.Users.ListUsers(r.Context(), domain.Role(r.URL.Query().Get("role")))
	if err != nil {
		h.writeServiceError(w, "list users", err)
		return
	}
	h.writeSuccess(w, users)
}

// GetUser returns a user by ID
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Users.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, "get user", err)
		return
	}
	h.writeSuccess(w, user)
}

// GetScore returns the user's total and recent reasons
func (h *Handler) GetScore(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Ledger.GetScore(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, "get score", err)
		return
	}
	h.writeSuccess(w, view)
}

// AddPoints credits or debits the user's ledger
func (h *Handler) AddPoints(w http.ResponseWriter, r *http.Request) {
	var req domain.AddPointsRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	view, err := h.svc.Ledger.AddPoints(r.Context(), chi.URLParam(r, "userID"), req.Reason, req.Amount)
	if err != nil {
		h.writeServiceError(w, "add points", err)
		return
	}
	h.writeSuccess(w, view)
}

// ListUserBadges returns the badges a user holds
func (h *Handler) ListUserBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := h.svc.Awards.ListUserBadges(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, "list user badges", err)
		return
	}
	h.writeSuccess(w, badges)
}

// GetStats returns the user's activity stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Users.GetStats(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, "get stats", err)
		return
	}
	h.writeSuccess(w, stats)
}

// IncrementStats adds to the user's activity counters
func (h *Handler) IncrementStats(w http.ResponseWriter, r *http.Request) {
	var inc domain.StatsIncrement
	if err := h.decode(r, &inc); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	stats, err := h.svc.Users.IncrementStats(r.Context(), chi.URLParam(r, "userID"), inc)
	if err != nil {
		h.writeServiceError(w, "increment stats", err)
		return
	}
	h.writeSuccess(w, stats)
}

// ListNotifications returns the notifications queued for a user
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.svc.Notifications.ListForUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, "list notifications", err)
		return
	}
	h.writeSuccess(w, notifications)
}

// RankTutors returns tutors ordered by ranking score
func (h *Handler) RankTutors(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	entries, err := h.svc.Ranking.Rank(r.Context(), limit, r.URL.Query().Get("subject"))
	if err != nil {
		h.writeServiceError(w, "rank tutors", err)
		return
	}
	h.writeSuccess(w, entries)
}

// UpdateTutorProfile merges ranking inputs into a tutor's profile
func (h *Handler) UpdateTutorProfile(w http.ResponseWriter, r *http.Request) {
	var update domain.TutorProfileUpdate
	if err := h.decode(r, &update); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	profile, err := h.svc.Ranking.UpdateTutorProfile(r.Context(), chi.URLParam(r, "userID"), update)
	if err != nil {
		h.writeServiceError(w, "update tutor profile", err)
		return
	}
	h.writeSuccess(w, profile)
}

// GetStandings returns the top users by points
func (h *Handler) GetStandings(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	entries, err := h.svc.Ledger.Standings(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, "get standings", err)
		return
	}
	h.writeSuccess(w, entries)
}

// ListBadges returns the badge catalogue
func (h *Handler) ListBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := h.svc.Awards.ListBadges(r.Context())
	if err != nil {
		h.writeServiceError(w, "list badges", err)
		return
	}
	h.writeSuccess(w, badges)
}
