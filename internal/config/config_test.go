package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencivic/sdcrs/internal/config"
	"github.com/opencivic/sdcrs/pkg/domain"
	"github.com/opencivic/sdcrs/pkg/workflow"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "dj", cfg.TenantID)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`http_addr: ":9090"
log_level: debug
tenant_id: mc
redis:
  enabled: true
  addr: "redis:6379"
  db: 2
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "mc", cfg.TenantID)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadWorkflow_EmptyPathGivesDefaults(t *testing.T) {
	cfg, err := config.LoadWorkflow("")
	require.NoError(t, err)

	assert.Equal(t, workflow.DefaultPayoutAmount, cfg.PayoutAmount)
	assert.Equal(t, workflow.DefaultMaxPayoutRetries, cfg.MaxPayoutRetries)
}

func TestLoadWorkflow_OverridesMergeWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow.yaml")
	content := []byte(`payout_amount: 750
max_payout_retries: 5
slas:
  pendingValidation: 10m
  assigned: 48h
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := config.LoadWorkflow(path)
	require.NoError(t, err)

	assert.Equal(t, int64(750), cfg.PayoutAmount)
	assert.Equal(t, 5, cfg.MaxPayoutRetries)
	assert.Equal(t, 10*time.Minute, cfg.SLAs[domain.StatePendingValidation])
	assert.Equal(t, 48*time.Hour, cfg.SLAs[domain.StateAssigned])
	// Untouched states keep the default deadline.
	assert.Equal(t, 4*time.Hour, cfg.SLAs[domain.StatePendingVerification])
}

func TestLoadWorkflow_RejectsUnknownState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow.yaml")
	content := []byte(`slas:
  notAState: 10m
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	_, err := config.LoadWorkflow(path)
	assert.Error(t, err)
}

func TestLoadWorkflow_RejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow.yaml")
	content := []byte(`slas:
  assigned: soon
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	_, err := config.LoadWorkflow(path)
	assert.Error(t, err)
}
