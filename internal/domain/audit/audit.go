package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"elms/internal/platform/querier"
	"elms/internal/platform/requestctx"
)

const (
	ActionLeaveSubmitted     = "leave.submitted"
	ActionLeaveLevelApproved = "leave.level_approved"
	ActionLeaveApproved      = "leave.approved"
	ActionLeaveRejected      = "leave.rejected"
	ActionLeaveCancelled     = "leave.cancelled"
	ActionLeaveTypeCreated   = "leave_type.created"
	ActionLeaveTypeUpdated   = "leave_type.updated"
	ActionSettingsUpdated    = "settings.updated"
	ActionUserCreated        = "user.created"
	ActionUserUpdated        = "user.updated"
	ActionDepartmentCreated  = "department.created"
	ActionDepartmentHeadSet  = "department.head_set"
	ActionLogin              = "auth.login"
	ActionMFAChanged         = "auth.mfa_changed"
)

type Entry struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Details    json.RawMessage `json:"details,omitempty"`
	IPAddress  string          `json:"ipAddress"`
	UserAgent  string          `json:"userAgent"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// NewEntry builds an entry and fills the client address from the request context.
func NewEntry(ctx context.Context, userID, action, entityType, entityID string, details any) (Entry, error) {
	raw := json.RawMessage(`{}`)
	if details != nil {
		payload, err := json.Marshal(details)
		if err != nil {
			return Entry{}, fmt.Errorf("marshal audit details: %w", err)
		}
		raw = payload
	}
	client := requestctx.GetClient(ctx)
	return Entry{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    raw,
		IPAddress:  client.IP,
		UserAgent:  client.UserAgent,
	}, nil
}

type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	UserID     string
	From       time.Time
	To         time.Time
}

// Store writes through whatever querier it holds, so a Store bound to a
// transaction commits or rolls back together with the change it documents.
type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) Record(ctx context.Context, entry Entry) error {
	details := entry.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}
	_, err := s.DB.Exec(ctx, `
    INSERT INTO audit_logs (user_id, action, entity_type, entity_id, details, ip_address, user_agent)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
  `, nullIfEmpty(entry.UserID), entry.Action, entry.EntityType, entry.EntityID, []byte(details), entry.IPAddress, entry.UserAgent)
	return err
}

func (s *Store) Count(ctx context.Context, filter Filter) (int, error) {
	query, args := buildQuery("SELECT COUNT(1)", filter)
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) List(ctx context.Context, filter Filter, limit, offset int) ([]Entry, error) {
	query, args := buildQuery(`
    SELECT id, COALESCE(user_id::text, ''), action, entity_type, entity_id, details, ip_address, user_agent, created_at`, filter)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var details []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID, &details, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Details = details
		out = append(out, e)
	}
	return out, rows.Err()
}

func buildQuery(prefix string, filter Filter) (string, []any) {
	query := prefix + " FROM audit_logs WHERE 1=1"
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		query += fmt.Sprintf(clause, len(args))
	}
	if filter.Action != "" {
		add(" AND action = $%d", filter.Action)
	}
	if filter.EntityType != "" {
		add(" AND entity_type = $%d", filter.EntityType)
	}
	if filter.EntityID != "" {
		add(" AND entity_id = $%d", filter.EntityID)
	}
	if filter.UserID != "" {
		add(" AND user_id::text = $%d", filter.UserID)
	}
	if !filter.From.IsZero() {
		add(" AND created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add(" AND created_at < $%d", filter.To)
	}
	return query, args
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
