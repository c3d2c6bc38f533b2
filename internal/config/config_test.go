package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conf.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, 512, cfg.Node.Channels)
	assert.Equal(t, 6454, cfg.Node.Port)
	assert.True(t, cfg.Node.Unicast)
	assert.True(t, cfg.Node.IgnoreLocalData)
	assert.Equal(t, time.Second, cfg.Node.RetryInterval.Duration)
	assert.Equal(t, 2*time.Second, cfg.Node.ProbeTimeout.Duration)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, "artnet", cfg.MQTT.TopicPrefix)
	assert.Empty(t, cfg.Metrics.Listen)
}

func TestNewConfig_Overrides(t *testing.T) {
	body := `
[logger]
log-level = "debug"

[node]
subnet = 3
net = 10
unicast = false
channels = 1024
broadcast = "10.0.0.255"
retry-interval = "250ms"

[mqtt]
enabled = true
server = "broker.local"
qos = 1
poll-interval = "100ms"

[metrics]
listen = ":9101"
`
	cfg, err := NewConfig(writeConfig(t, body))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, 3, cfg.Node.Subnet)
	assert.Equal(t, 10, cfg.Node.Net)
	assert.False(t, cfg.Node.Unicast)
	assert.True(t, cfg.Node.IgnoreLocalData, "untouched keys keep their defaults")
	assert.Equal(t, 1024, cfg.Node.Channels)
	assert.Equal(t, "10.0.0.255", cfg.Node.Broadcast)
	assert.Equal(t, 250*time.Millisecond, cfg.Node.RetryInterval.Duration)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "broker.local", cfg.MQTT.Host)
	assert.Equal(t, byte(1), cfg.MQTT.Qos)
	assert.Equal(t, 100*time.Millisecond, cfg.MQTT.PollInterval.Duration)
	assert.Equal(t, ":9101", cfg.Metrics.Listen)
}

func TestNewConfig_BadDuration(t *testing.T) {
	_, err := NewConfig(writeConfig(t, "[node]\nretry-interval = \"soon\"\n"))
	assert.Error(t, err)
}

func TestNewConfig_MissingFile(t *testing.T) {
	cfg, err := NewConfig(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 6454, cfg.Node.Port)
}
