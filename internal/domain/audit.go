package domain

import "time"

// Audit actions recorded by the engine
const (
	AuditBadgeAwarded        = "BADGE_AWARDED"
	AuditBadgeCreated        = "BADGE_CREATED"
	AuditPointsAdded         = "POINTS_ADDED"
	AuditTutorProfileUpdated = "TUTOR_PROFILE_UPDATED"
	AuditAdminCreated        = "ADMIN_CREATED"
)

// AuditRecord is an append-only audit log entry
type AuditRecord struct {
	ID           string                 `json:"id"`
	Action       string                 `json:"action"`
	ActorUserID  string                 `json:"actor_user_id,omitempty"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   string                 `json:"resource_id"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// AuditFilter narrows an audit query. Action matches as a case-insensitive substring.
type AuditFilter struct {
	ActorUserID  string
	Action       string
	ResourceType string
	ResourceID   string
	From         time.Time
	To           time.Time
	Limit        int
	Offset       int
}

// AuditPage is a page of audit records plus the total match count
type AuditPage struct {
	Records []AuditRecord `json:"data"`
	Total   int64         `json:"total"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
}
