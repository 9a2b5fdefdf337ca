package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reputation-engine/internal/domain"
)

// CreateBadge adds a badge definition
func (h *Handler) CreateBadge(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateBadgeRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	badge, err := h.svc.Awards.CreateBadge(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "create badge", err)
		return
	}
	h.writeCreated(w, badge)
}

// GrantBadge awards a badge by hand. A repeat grant answers 409 with the
// outcome in the body.
func (h *Handler) GrantBadge(w http.ResponseWriter, r *http.Request) {
	var req domain.GrantRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.svc.Awards.Grant(r.Context(), req.UserID, req.BadgeID, req.Reason)
	if err != nil {
		h.writeServiceError(w, "grant badge", err)
		return
	}
	if !result.Granted() {
		h.writeJSON(w, http.StatusConflict, APIResponse{
			Success: false,
			Data:    result,
			Error:   domain.ErrAwardExists.Error(),
		})
		return
	}
	h.writeCreated(w, result)
}

// EvaluateBadges runs every badge rule now
func (h *Handler) EvaluateBadges(w http.ResponseWriter, r *http.Request) {
	result := h.svc.Evaluator.Evaluate(r.Context(), "manual")
	h.writeSuccess(w, result)
}

// CreateAdmin registers an administrator
func (h *Handler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	admin, err := h.svc.Users.CreateAdmin(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "create admin", err)
		return
	}
	h.writeCreated(w, admin)
}

// ListAdmins returns every administrator
func (h *Handler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.svc.Users.ListUsers(r.Context(), domain.RoleAdmin)
	if err != nil {
		h.writeServiceError(w, "list admins", err)
		return
	}
	h.writeSuccess(w, admins)
}

// ListAudit queries the audit log
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.AuditFilter{
		ActorUserID:  q.Get("actor_user_id"),
		Action:       q.Get("action"),
		ResourceType: q.Get("resource_type"),
		ResourceID:   q.Get("resource_id"),
	}

	var err error
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset"); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if filter.From, err = queryTime(r, "from"); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if filter.To, err = queryTime(r, "to"); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	page, err := h.svc.Audit.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, "list audit", err)
		return
	}
	h.writeSuccess(w, page)
}

// UpdateNotificationStatus records the delivery outcome of a notification
func (h *Handler) UpdateNotificationStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateNotificationStatusRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	n, err := h.svc.Notifications.UpdateStatus(r.Context(), chi.URLParam(r, "notificationID"), req.Status)
	if err != nil {
		h.writeServiceError(w, "update notification status", err)
		return
	}
	h.writeSuccess(w, n)
}
