package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, 3002, cfg.PublicPort)
	assert.Equal(t, 3003, cfg.InternalPort)
	assert.Equal(t, DriverSQLite, cfg.DatabaseDriver)
	assert.NotContains(t, cfg.DatabaseURL, "cache=shared")
	assert.Equal(t, RelayLocal, cfg.RelayTransport)
	assert.Equal(t, 5*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 10*time.Second, cfg.HeartbeatTimeout)
	assert.Equal(t, 5*time.Second, cfg.SweepInterval)
	assert.Equal(t, int64(65536), cfg.MaxMessageSize)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoadFromOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"ENV":               "development",
		"RELAY_TRANSPORT":   "HTTP",
		"HUB_URL":           "http://hub:3003/",
		"DATABASE_DRIVER":   "postgres",
		"DATABASE_URL":      "postgres://localhost/banya",
		"NOTIFY_TIMEOUT_MS": "250",
		"POLICY_FILE":       "/etc/banya/policy.rego",
	})
	require.NoError(t, err)

	assert.Equal(t, RelayHTTP, cfg.RelayTransport)
	assert.Equal(t, "http://hub:3003", cfg.HubURL)
	assert.Equal(t, DriverPostgres, cfg.DatabaseDriver)
	assert.Equal(t, 250*time.Millisecond, cfg.NotifyTimeout)
	assert.Equal(t, "/etc/banya/policy.rego", cfg.PolicyFile)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"heartbeat ratio", map[string]string{"WS_HEARTBEAT_TIMEOUT_MS": "9000"}},
		{"http relay without hub", map[string]string{"RELAY_TRANSPORT": "http"}},
		{"redis relay without addr", map[string]string{"RELAY_TRANSPORT": "redis"}},
		{"unknown relay", map[string]string{"RELAY_TRANSPORT": "carrier-pigeon"}},
		{"unknown driver", map[string]string{"DATABASE_DRIVER": "mysql"}},
		{"same ports", map[string]string{"PUBLIC_PORT": "8080", "INTERNAL_PORT": "8080"}},
		{"bad int", map[string]string{"PUBLIC_PORT": "eighty"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.vars)
			assert.Error(t, err)
		})
	}
}
