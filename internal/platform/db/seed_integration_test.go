package db

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"elms/internal/domain/auth"
	"elms/internal/platform/config"
)

func TestSeedIsIdempotent(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if strings.TrimSpace(dbURL) == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	require.NoError(t, Migrate(dbURL, zap.NewNop()))
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	cfg := config.Config{
		SeedAdminEmail:    "Admin-" + uuid.NewString()[:8] + "@Example.com",
		SeedAdminPassword: "ChangeMe123!",
	}
	require.NoError(t, Seed(ctx, pool, cfg, zap.NewNop()))
	require.NoError(t, Seed(ctx, pool, cfg, zap.NewNop()))

	var count int
	var hash, role string
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*), max(password_hash), max(role) FROM users WHERE email = $1`,
		strings.ToLower(cfg.SeedAdminEmail)).Scan(&count, &hash, &role))
	assert.Equal(t, 1, count)
	assert.Equal(t, "admin", role)
	assert.NoError(t, auth.CheckPassword(hash, cfg.SeedAdminPassword))

	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM leave_types WHERE name = ANY($1)`,
		[]string{"Annual Leave", "Sick Leave", "Casual Leave"}).Scan(&count))
	assert.Equal(t, 3, count)

	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM system_settings WHERE key = 'leave_approval_levels'`).Scan(&count))
	assert.Equal(t, 1, count)
}
