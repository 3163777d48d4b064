package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBindsAllInterfacesTCPOnly(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "0.0.0.0", cfg.MQTT.Listener.TCP.Host)
	assert.Equal(t, 1883, cfg.MQTT.Listener.TCP.Port)
	assert.Empty(t, cfg.MQTT.Listener.TCPTLS.Host)
	assert.Empty(t, cfg.MQTT.Listener.WS.Host)
	assert.Empty(t, cfg.MQTT.Listener.WSS.Host)
	assert.Equal(t, 5*time.Second, cfg.MQTT.Settings.ResendInterval)
}

func TestLoadYAMLOverridesOnlyNamedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broker.yaml")
	body := `
mqtt:
  listener:
    tcp:
      host: 127.0.0.1
      port: 11883
    ws:
      host: 0.0.0.0
      port: 8083
      path: /mqtt
  settings:
    keep_alive: 120
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadYAML(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.MQTT.Listener.TCP.Host)
	assert.Equal(t, 11883, cfg.MQTT.Listener.TCP.Port)
	assert.Equal(t, "0.0.0.0", cfg.MQTT.Listener.WS.Host)
	assert.Equal(t, "/mqtt", cfg.MQTT.Listener.WS.Path)
	assert.EqualValues(t, 120, cfg.MQTT.Settings.KeepAlive)
	// Untouched by the file, so the default survives.
	assert.Equal(t, 65535, cfg.MQTT.Settings.MaxTopicLength)
}

func TestLoadYAMLMissingFileReturnsError(t *testing.T) {
	_, err := LoadYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
