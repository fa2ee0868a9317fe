// Package config holds the persisted settings of the hce-card tool.
package config

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/gregLibert/hce-card/pkg/bridge"
	"github.com/gregLibert/hce-card/pkg/emv"
	"github.com/gregLibert/hce-card/pkg/hce"
)

type BridgeMode string

const (
	BridgeTCP    BridgeMode = "tcp"
	BridgeSerial BridgeMode = "serial"
)

const DefaultListenAddr = "127.0.0.1:7816"

type CardConfig struct {
	Number string `json:"number"`
}

type LoggingConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

type BridgeConfig struct {
	Mode       BridgeMode `json:"mode"`
	Listen     string     `json:"listen"`
	SerialPort string     `json:"serial_port"`
	SerialBaud int        `json:"serial_baud"`
}

// ReaderConfig selects the PC/SC reader. An empty name picks the first
// reader with a card present.
type ReaderConfig struct {
	Name string `json:"name"`
}

// JournalConfig locates the exchange journal. An empty path disables it.
type JournalConfig struct {
	Path string `json:"path"`
}

// Config is the root configuration.
type Config struct {
	Card    CardConfig    `json:"card"`
	Logging LoggingConfig `json:"logging"`
	Bridge  BridgeConfig  `json:"bridge"`
	Reader  ReaderConfig  `json:"reader"`
	Journal JournalConfig `json:"journal"`
}

func Default() Config {
	return Config{
		Card: CardConfig{
			Number: emv.DefaultCardNumber,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Development: true,
		},
		Bridge: BridgeConfig{
			Mode:       BridgeTCP,
			Listen:     DefaultListenAddr,
			SerialBaud: bridge.DefaultBaudRate,
		},
	}
}

// Load reads path over the defaults. A missing file yields Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	// #nosec G304 -- path comes from the command line.
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return Config{}, errors.Wrap(err, "read config")
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config json")
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

func (c *Config) FillMissingDefaults() {
	if c.Card.Number == "" {
		c.Card.Number = emv.DefaultCardNumber
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if c.Bridge.Mode == "" {
		c.Bridge.Mode = BridgeTCP
	}
	if c.Bridge.Listen == "" {
		c.Bridge.Listen = DefaultListenAddr
	}
	if c.Bridge.SerialBaud <= 0 {
		c.Bridge.SerialBaud = bridge.DefaultBaudRate
	}
}

func (c Config) Validate() error {
	if err := hce.ValidateCardNumber(c.Card.Number); err != nil {
		return errors.Wrap(err, "card")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("unknown log level: %q", c.Logging.Level)
	}

	switch c.Bridge.Mode {
	case BridgeTCP:
		if _, _, err := net.SplitHostPort(c.Bridge.Listen); err != nil {
			return errors.Wrap(err, "bridge listen address")
		}
	case BridgeSerial:
		if strings.TrimSpace(c.Bridge.SerialPort) == "" {
			return errors.New("serial port is required")
		}
		if c.Bridge.SerialBaud <= 0 {
			return errors.New("serial baud must be positive")
		}
	default:
		return errors.Errorf("unknown bridge mode: %s", c.Bridge.Mode)
	}

	return nil
}

// Save validates cfg and writes it to path atomically.
func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.Wrap(err, "create config dir")
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode config")
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return errors.Wrap(err, "write temp config")
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrap(err, "rename temp config")
	}

	return nil
}
