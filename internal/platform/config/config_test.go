package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		DatabaseURL:        "postgres://localhost/elms",
		JWTSecret:          "secret",
		JWTTTL:             time.Hour,
		MaxBodyBytes:       4096,
		RateLimitPerMinute: 10,
		AttachmentDir:      "data",
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.DatabaseURL = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.JWTSecret = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.EmailEnabled = true
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.RateLimitPerMinute = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateProduction(t *testing.T) {
	cfg := validConfig()
	cfg.Environment = "production"
	assert.Error(t, cfg.Validate(), "short jwt secret must fail in production")

	cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
	cfg.DataEncryptionKey = "key"
	assert.NoError(t, cfg.Validate())

	cfg.RunSeed = true
	assert.Error(t, cfg.Validate(), "seed without password must fail in production")
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("KAFKA_BROKERS=a:9092, b:9092\nOUTBOX_INTERVAL=2s\n"), 0o600))
	for _, key := range []string{"KAFKA_BROKERS", "OUTBOX_INTERVAL", "APP_ADDR"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	t.Setenv("REDIS_DB", "3")

	cfg := Load(path)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 2*time.Second, cfg.OutboxInterval)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, ":8080", cfg.Addr)
}
