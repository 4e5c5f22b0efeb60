// Package config holds the YAML configuration shared by boardd and the
// viewer.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/itohio/hallboard/pkg/mux"
)

// Config represents the application configuration.
type Config struct {
	Serial  SerialConfig   `yaml:"serial"`
	Board   BoardConfig    `yaml:"board"`
	Pins    PinsConfig     `yaml:"pins"`
	Storage StorageConfig  `yaml:"storage"`
	MQTT    MQTTConfig     `yaml:"mqtt"`
	Journal JournalConfig  `yaml:"journal"`
	Log     LogConfig      `yaml:"log"`
	Mock    mux.MockConfig `yaml:"mock"`
}

// SerialConfig contains serial port configuration. boardd serves commands on
// it, the viewer connects to a board through it.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// BoardConfig contains scan parameters.
type BoardConfig struct {
	Settle       time.Duration `yaml:"settle"`        // per-column settle delay, at least 10ms
	ScanInterval time.Duration `yaml:"scan_interval"` // time between scan loop iterations
	ColumnOrder  []int         `yaml:"column_order"`  // multiplexer address per column
}

// Order returns the validated column order.
func (b BoardConfig) Order() ([]uint8, error) {
	order := make([]uint8, len(b.ColumnOrder))
	for i, addr := range b.ColumnOrder {
		if addr < 0 || addr >= 1<<mux.AddressBits {
			return nil, fmt.Errorf("%w: address %d", mux.ErrInvalidOrder, addr)
		}
		order[i] = uint8(addr)
	}
	if err := mux.ValidateOrder(order); err != nil {
		return nil, err
	}
	return order, nil
}

// PinsConfig names the host pins used by boardd.
type PinsConfig struct {
	Address      []string `yaml:"address"` // A, B, C address lines
	Inhibit      string   `yaml:"inhibit"` // empty when INH is tied low
	ADCBus       string   `yaml:"adc_bus"` // I2C bus name, empty for the first bus
	ADCAddresses []uint16 `yaml:"adc_addresses"`
}

// Storage backends.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageEEPROM = "eeprom"
)

// StorageConfig selects where calibration and settings persist.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`    // file backend
	Bus     string `yaml:"bus"`     // eeprom backend I2C bus
	Address uint16 `yaml:"address"` // eeprom backend device address
	Size    int    `yaml:"size"`
}

// MQTTConfig contains occupancy publishing configuration.
type MQTTConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Broker   string        `yaml:"broker"`
	Topic    string        `yaml:"topic"`
	ClientID string        `yaml:"client_id"` // random when empty
	QoS      byte          `yaml:"qos"`
	Retain   bool          `yaml:"retain"`
	Timeout  time.Duration `yaml:"timeout"`
}

// JournalConfig contains the occupancy journal configuration.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port: "/dev/ttyACM0",
			Baud: 115200,
		},
		Board: BoardConfig{
			Settle:       mux.MinSettle,
			ScanInterval: 200 * time.Millisecond,
			ColumnOrder:  []int{2, 1, 0, 3, 5, 7, 6, 4},
		},
		Pins: PinsConfig{
			Address:      []string{"GPIO17", "GPIO27", "GPIO22"},
			Inhibit:      "GPIO23",
			ADCAddresses: []uint16{0x48, 0x49},
		},
		Storage: StorageConfig{
			Backend: StorageFile,
			Path:    "hallboard.nv",
			Address: 0x50,
			Size:    4096,
		},
		MQTT: MQTTConfig{
			Broker:  "tcp://localhost:1883",
			Topic:   "hallboard/occupancy",
			QoS:     1,
			Timeout: 5 * time.Second,
		},
		Journal: JournalConfig{
			Path: "hallboard.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Mock: mux.DefaultMockConfig(),
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks values that have no sensible fallback.
func (c *Config) Validate() error {
	if _, err := c.Board.Order(); err != nil {
		return fmt.Errorf("board.column_order: %w", err)
	}
	if len(c.Pins.Address) != mux.AddressBits {
		return fmt.Errorf("pins.address: need %d lines, got %d", mux.AddressBits, len(c.Pins.Address))
	}
	switch c.Storage.Backend {
	case StorageMemory, StorageFile, StorageEEPROM:
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos: must be 0..2, got %d", c.MQTT.QoS)
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = def.Serial.Baud
	}

	if c.Board.Settle < mux.MinSettle {
		c.Board.Settle = mux.MinSettle
	}
	if c.Board.ScanInterval == 0 {
		c.Board.ScanInterval = def.Board.ScanInterval
	}
	if len(c.Board.ColumnOrder) == 0 {
		c.Board.ColumnOrder = def.Board.ColumnOrder
	}

	if len(c.Pins.Address) == 0 {
		c.Pins.Address = def.Pins.Address
	}
	if len(c.Pins.ADCAddresses) == 0 {
		c.Pins.ADCAddresses = def.Pins.ADCAddresses
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = def.Storage.Backend
	}
	if c.Storage.Path == "" {
		c.Storage.Path = def.Storage.Path
	}
	if c.Storage.Address == 0 {
		c.Storage.Address = def.Storage.Address
	}
	if c.Storage.Size == 0 {
		c.Storage.Size = def.Storage.Size
	}

	if c.MQTT.Broker == "" {
		c.MQTT.Broker = def.MQTT.Broker
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = def.MQTT.Topic
	}
	if c.MQTT.Timeout == 0 {
		c.MQTT.Timeout = def.MQTT.Timeout
	}

	if c.Journal.Path == "" {
		c.Journal.Path = def.Journal.Path
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}

	if c.Mock.Spread == 0 {
		c.Mock.Spread = def.Mock.Spread
	}
}
