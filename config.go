package vxdash

import (
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/vx220/vxdash/forwarder"
	"github.com/vx220/vxdash/racebox"
)

// Duration is a time.Duration read from a TOML string such as "250ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", text)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type SerialConfig struct {
	Enabled        bool     `toml:"enabled"`
	Device         string   `toml:"device"`
	BaudRate       int      `toml:"baud_rate"`
	ReadTimeout    Duration `toml:"read_timeout"`
	ReconnectDelay Duration `toml:"reconnect_delay"`
	// Retention is how long the last good sample is kept before it is
	// published again while no new frame arrives.
	Retention Duration `toml:"retention"`
}

type BLEConfig struct {
	Enabled            bool   `toml:"enabled"`
	Adapter            string `toml:"adapter"`
	NamePrefix         string `toml:"name_prefix"`
	ServiceUUID        string `toml:"service_uuid"`
	CharacteristicUUID string `toml:"characteristic_uuid"`
}

// ControlConfig locates the control socket. An empty Address disables it.
type ControlConfig struct {
	Network string `toml:"network"`
	Address string `toml:"address"`
}

type Config struct {
	ForwardInterval Duration `toml:"forward_interval"`

	Serial  SerialConfig         `toml:"serial"`
	BLE     BLEConfig            `toml:"ble"`
	Control ControlConfig        `toml:"control"`
	UDP     forwarder.UDPConfig  `toml:"udp"`
	MQTT    forwarder.MQTTConfig `toml:"mqtt"`
}

func DefaultConfig() *Config {
	return &Config{
		ForwardInterval: Duration{100 * time.Millisecond},
		Serial: SerialConfig{
			Enabled:        true,
			Device:         "/dev/ttyAMA0",
			BaudRate:       115200,
			ReadTimeout:    Duration{100 * time.Millisecond},
			ReconnectDelay: Duration{time.Second},
			Retention:      Duration{500 * time.Millisecond},
		},
		BLE: BLEConfig{
			Enabled:            true,
			Adapter:            "hci0",
			NamePrefix:         racebox.NamePrefix,
			ServiceUUID:        racebox.ServiceUUID,
			CharacteristicUUID: racebox.TXCharUUID,
		},
		Control: ControlConfig{
			Network: "unix",
			Address: "/tmp/vxdash.sock",
		},
		MQTT: forwarder.MQTTConfig{
			Topic:    "vxdash/telemetry",
			ClientID: "vxdash",
		},
	}
}

// LoadConfig reads path over the defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		cfg := DefaultConfig()
		return cfg, cfg.Validate()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open file %s", path)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read config reader")
	}
	cfg := DefaultConfig()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, errors.Wrap(err, "unable to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ForwardInterval.Duration <= 0 {
		return errors.New("forward_interval must be positive")
	}
	if c.Serial.Enabled {
		if c.Serial.Device == "" {
			return errors.New("serial.device is required")
		}
		if c.Serial.BaudRate <= 0 {
			return errors.Errorf("serial.baud_rate %d must be positive", c.Serial.BaudRate)
		}
		for name, d := range map[string]Duration{
			"read_timeout":    c.Serial.ReadTimeout,
			"reconnect_delay": c.Serial.ReconnectDelay,
			"retention":       c.Serial.Retention,
		} {
			if d.Duration <= 0 {
				return errors.Errorf("serial.%s must be positive", name)
			}
		}
	}
	if c.BLE.Enabled {
		if c.BLE.NamePrefix == "" {
			return errors.New("ble.name_prefix is required")
		}
		if c.BLE.ServiceUUID == "" || c.BLE.CharacteristicUUID == "" {
			return errors.New("ble.service_uuid and ble.characteristic_uuid are required")
		}
	}
	if c.UDP.Server != "" && (c.UDP.Port <= 0 || c.UDP.Port > 65535) {
		return errors.Errorf("udp.port %d out of range", c.UDP.Port)
	}
	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		return errors.New("mqtt.topic is required")
	}
	return nil
}
