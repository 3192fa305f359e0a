package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elms/internal/platform/requestctx"
)

func TestNewEntryCapturesClient(t *testing.T) {
	ctx := requestctx.WithClient(context.Background(), requestctx.Client{IP: "203.0.113.9", UserAgent: "curl/8"})

	entry, err := NewEntry(ctx, "u1", ActionLeaveApproved, "leave_application", "a1", map[string]any{"level": 2})
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.9", entry.IPAddress)
	assert.Equal(t, "curl/8", entry.UserAgent)
	assert.JSONEq(t, `{"level":2}`, string(entry.Details))
}

func TestNewEntryWithoutDetails(t *testing.T) {
	entry, err := NewEntry(context.Background(), "", ActionLogin, "user", "u1", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(entry.Details))
	assert.Empty(t, entry.IPAddress)
}

func TestBuildQueryFilters(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	query, args := buildQuery("SELECT COUNT(1)", Filter{
		Action:     ActionLeaveRejected,
		EntityType: "leave_application",
		UserID:     "u1",
		From:       from,
	})
	assert.Equal(t, "SELECT COUNT(1) FROM audit_logs WHERE 1=1 AND action = $1 AND entity_type = $2 AND user_id::text = $3 AND created_at >= $4", query)
	assert.Equal(t, []any{ActionLeaveRejected, "leave_application", "u1", from}, args)
}
