package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestNewDefaultsWithMemoryStore(t *testing.T) {
	t.Setenv("STORE", "memory")

	cfg, err := New(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.Tickets.ReservationTimeout)
	assert.Equal(t, time.Minute, cfg.Tickets.SweepInterval)
	assert.Equal(t, 500, cfg.Tickets.SweepBatchSize)
	assert.Equal(t, 30*time.Minute, cfg.Tickets.PaymentTimeout)
	assert.Equal(t, 2*time.Hour, cfg.Tickets.CheckInWindow)
	assert.True(t, cfg.Redis.Enabled)
}

func TestNewReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte(
		"STORE=memory\nRESERVATION_TIMEOUT=5m\nPAYMENT_TIMEOUT=0\nREDIS_ENABLED=false\nSERVER_PORT=9000\n",
	), 0o600))
	t.Cleanup(func() {
		for _, k := range []string{"STORE", "RESERVATION_TIMEOUT", "PAYMENT_TIMEOUT", "REDIS_ENABLED", "SERVER_PORT"} {
			os.Unsetenv(k)
		}
	})

	cfg, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Tickets.ReservationTimeout)
	assert.Zero(t, cfg.Tickets.PaymentTimeout)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestNewRequiresPostgresCredentials(t *testing.T) {
	t.Setenv("STORE", "postgres")
	t.Setenv("POSTGRES_USER", "")

	_, err := New(missingEnvFile(t))
	assert.ErrorContains(t, err, "POSTGRES_USER")
}

func TestNewRejectsBadValues(t *testing.T) {
	t.Setenv("STORE", "memory")
	t.Setenv("SWEEP_INTERVAL", "soon")

	_, err := New(missingEnvFile(t))
	assert.ErrorContains(t, err, "SWEEP_INTERVAL")
}

func TestNewRejectsUnknownStore(t *testing.T) {
	t.Setenv("STORE", "sqlite")

	_, err := New(missingEnvFile(t))
	assert.ErrorContains(t, err, "STORE")
}

func TestLoadGateways(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateways.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
gateways:
  - kind: sandbox
    name: Sandbox
    secret: s1
  - kind: sandbox
    name: card
    secret: s2
    base_url: https://pay.example/card
`), 0o600))

	gws, err := LoadGateways(path)
	require.NoError(t, err)
	require.Len(t, gws, 2)
	assert.Equal(t, "sandbox", gws[0].Name)
	assert.Equal(t, "https://pay.example/card", gws[1].BaseURL)
}

func TestLoadGatewaysRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateways.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
gateways:
  - kind: sandbox
  - kind: sandbox
`), 0o600))

	_, err := LoadGateways(path)
	assert.ErrorContains(t, err, "duplicate")
}

func TestGatewaysFromSandboxSecret(t *testing.T) {
	t.Setenv("STORE", "memory")
	t.Setenv("GATEWAYS_FILE", "")
	t.Setenv("SANDBOX_SECRET", "dev")

	cfg, err := New(missingEnvFile(t))
	require.NoError(t, err)
	require.Len(t, cfg.Gateways, 1)
	assert.Equal(t, "sandbox", cfg.Gateways[0].Kind)
}
