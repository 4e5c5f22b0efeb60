package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/hallboard/pkg/mux"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.Baud)
	assert.Equal(t, mux.MinSettle, cfg.Board.Settle)
	assert.Equal(t, 200*time.Millisecond, cfg.Board.ScanInterval)
	assert.Equal(t, StorageFile, cfg.Storage.Backend)
	assert.Equal(t, uint16(0x50), cfg.Storage.Address)
	assert.Equal(t, []uint16{0x48, 0x49}, cfg.Pins.ADCAddresses)
	assert.Len(t, cfg.Mock.Pieces, 32)
	assert.NoError(t, cfg.Validate())

	order, err := cfg.Board.Order()
	require.NoError(t, err)
	assert.Equal(t, mux.DefaultColumnOrder[:], order)
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, `
serial:
  port: "/dev/ttyUSB1"
  baud: 57600

board:
  settle: 15ms
  scan_interval: 1s
  column_order: [0, 1, 2, 3, 4, 5, 6, 7]

pins:
  address: [GPIO5, GPIO6, GPIO13]
  inhibit: ""
  adc_addresses: [0x4a, 0x4b]

storage:
  backend: eeprom
  bus: "1"
  address: 0x51

mqtt:
  enabled: true
  broker: tcp://broker:1883
  qos: 2

journal:
  enabled: true
  path: /var/lib/hallboard/journal.db

log:
  level: debug

mock:
  baseline: 400
  piece_field: 300
  noise_level: 0
  pieces: [e4, d5]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Port)
	assert.Equal(t, 57600, cfg.Serial.Baud)
	assert.Equal(t, 15*time.Millisecond, cfg.Board.Settle)
	assert.Equal(t, time.Second, cfg.Board.ScanInterval)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, cfg.Board.ColumnOrder)
	assert.Equal(t, []string{"GPIO5", "GPIO6", "GPIO13"}, cfg.Pins.Address)
	assert.Empty(t, cfg.Pins.Inhibit)
	assert.Equal(t, []uint16{0x4a, 0x4b}, cfg.Pins.ADCAddresses)
	assert.Equal(t, StorageEEPROM, cfg.Storage.Backend)
	assert.Equal(t, uint16(0x51), cfg.Storage.Address)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, byte(2), cfg.MQTT.QoS)
	assert.Equal(t, "hallboard/occupancy", cfg.MQTT.Topic) // default
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, float64(400), cfg.Mock.Baseline)
	assert.Equal(t, []string{"e4", "d5"}, cfg.Mock.Pieces)
	assert.Equal(t, float64(0.35), cfg.Mock.Spread) // default
}

func TestLoad_InvalidYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, "invalid: yaml: content: ["))
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"repeated column", "board:\n  column_order: [0, 0, 1, 2, 3, 4, 5, 6]\n"},
		{"column out of range", "board:\n  column_order: [0, 1, 2, 3, 4, 5, 6, 300]\n"},
		{"short address bus", "pins:\n  address: [GPIO1, GPIO2]\n"},
		{"unknown storage", "storage:\n  backend: floppy\n"},
		{"bad qos", "mqtt:\n  qos: 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestLoad_PartialYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
board:
  settle: 2ms
`))
	require.NoError(t, err)

	// settle is raised to the hardware minimum, the rest is default
	assert.Equal(t, mux.MinSettle, cfg.Board.Settle)
	assert.Equal(t, []int{2, 1, 0, 3, 5, 7, 6, 4}, cfg.Board.ColumnOrder)
	assert.Equal(t, StorageFile, cfg.Storage.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Serial.Port = "/dev/ttyUSB0"
	cfg.Board.ScanInterval = 50 * time.Millisecond
	cfg.Mock.Pieces = []string{"a1"}

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", loaded.Serial.Port)
	assert.Equal(t, 50*time.Millisecond, loaded.Board.ScanInterval)
	assert.Equal(t, []string{"a1"}, loaded.Mock.Pieces)
	assert.Equal(t, cfg, loaded)
}
