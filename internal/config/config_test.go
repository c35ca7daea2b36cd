package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 7, cfg.Drafts.MaxAgeDays)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "services.yaml")
	raw := `
server:
  addr: ":9090"
drafts:
  max_age_days: 14
  sweep_schedule: "30 2 * * *"
rate_limit:
  requests_per_second: 5
  burst: 10
cors:
  allowed_origins:
    - "fravik.oslobygg.no"
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 14, cfg.Drafts.MaxAgeDays)
	assert.Equal(t, "30 2 * * *", cfg.Drafts.SweepSchedule)
	assert.Equal(t, 5, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
	assert.Equal(t, []string{"fravik.oslobygg.no"}, cfg.CORS.AllowedOrigins)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("FRAVIK_ADDR", ":7070")
	t.Setenv("DRAFT_MAX_AGE_DAYS", "3")

	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.Drafts.MaxAgeDays)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "services.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o600))

	_, err := LoadFromPath(path)
	assert.Error(t, err)
}
