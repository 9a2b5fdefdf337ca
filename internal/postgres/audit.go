package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/reputation-engine/internal/domain"
)

// InsertAudit appends an audit record
func (r *Repository) InsertAudit(ctx context.Context, rec domain.AuditRecord) error {
	var metadataJSON []byte
	var err error
	if rec.Metadata != nil {
		metadataJSON, err = json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_logs (id, action, actor_user_id, resource_type, resource_id, metadata, ip_address, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''), $8)
	`
	_, err = r.pool.Exec(ctx, query,
		rec.ID,
		rec.Action,
		rec.ActorUserID,
		rec.ResourceType,
		rec.ResourceID,
		metadataJSON,
		rec.IPAddress,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audit record: %w", err)
	}
	return nil
}

// ListAudit returns the records matching filter, newest first, plus the total
// number of matches ignoring limit and offset
func (r *Repository) ListAudit(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, int64, error) {
	var conditions []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.ActorUserID != "" {
		add("actor_user_id = $%d", filter.ActorUserID)
	}
	if filter.Action != "" {
		add("position(lower($%d) in lower(action)) > 0", filter.Action)
	}
	if filter.ResourceType != "" {
		add("resource_type = $%d", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		add("resource_id = $%d", filter.ResourceID)
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at <= $%d", filter.To)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting audit records: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, action, COALESCE(actor_user_id, ''), resource_type, resource_id,
			   metadata, COALESCE(ip_address, ''), created_at
		FROM audit_logs%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing audit records: %w", err)
	}
	defer rows.Close()

	records := []domain.AuditRecord{}
	for rows.Next() {
		var rec domain.AuditRecord
		var metadataJSON []byte
		err := rows.Scan(
			&rec.ID, &rec.Action, &rec.ActorUserID, &rec.ResourceType, &rec.ResourceID,
			&metadataJSON, &rec.IPAddress, &rec.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning audit record: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &rec.Metadata); err != nil {
				return nil, 0, fmt.Errorf("unmarshaling metadata: %w", err)
			}
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}
