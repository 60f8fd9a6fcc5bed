package vxdash

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfigFromReader(bytes.NewBufferString(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, 500*time.Millisecond, cfg.Serial.Retention.Duration)
	assert.Equal(t, "RaceBox Micro", cfg.BLE.NamePrefix)
}

func TestLoadConfigOverrides(t *testing.T) {
	config := `
forward_interval = "50ms"

[serial]
device = "/dev/ttyUSB1"
retention = "2s"

[ble]
enabled = false

[udp]
server = "10.0.0.2"
port = 9000

[mqtt]
broker = "tcp://localhost:1883"
`
	cfg, err := LoadConfigFromReader(bytes.NewBufferString(config))
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, cfg.ForwardInterval.Duration)
	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Device)
	assert.Equal(t, 2*time.Second, cfg.Serial.Retention.Duration)
	assert.Equal(t, time.Second, cfg.Serial.ReconnectDelay.Duration, "unset keys keep defaults")
	assert.False(t, cfg.BLE.Enabled)
	assert.Equal(t, "10.0.0.2", cfg.UDP.Server)
	assert.Equal(t, 9000, cfg.UDP.Port)
	assert.Equal(t, "vxdash/telemetry", cfg.MQTT.Topic)
}

func TestLoadConfigInvalid(t *testing.T) {
	for name, config := range map[string]string{
		"bad duration":  "[serial]\nretention = \"soon\"",
		"zero baud":     "[serial]\nbaud_rate = 0",
		"no prefix":     "[ble]\nname_prefix = \"\"",
		"udp port":      "[udp]\nserver = \"host\"\nport = 70000",
		"zero interval": "forward_interval = \"0s\"",
		"not toml":      "[serial",
	} {
		_, err := LoadConfigFromReader(bytes.NewBufferString(config))
		assert.Error(t, err, name)
	}
}

func TestDisabledLinksSkipValidation(t *testing.T) {
	cfg, err := LoadConfigFromReader(bytes.NewBufferString("[serial]\nenabled = false\nbaud_rate = 0"))
	require.NoError(t, err)
	assert.False(t, cfg.Serial.Enabled)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
