// Package settings persists the two controller settings next to the
// calibration regions. Every change is written immediately.
package settings

import (
	"errors"
	"fmt"

	"github.com/itohio/hallboard/pkg/calib"
	"github.com/itohio/hallboard/pkg/detect"
	"github.com/itohio/hallboard/pkg/nvm"
)

var (
	ErrInvalidSettingKey   = errors.New("invalid setting key")
	ErrInvalidSettingValue = errors.New("invalid setting value")
)

// Key names a setting.
type Key uint8

const (
	// AutoLoad loads all calibration from storage at boot (0 or 1).
	AutoLoad Key = iota
	// Method selects the detection method (0..3).
	Method
)

var keyNames = [...]string{"autoload", "method"}

func (k Key) String() string {
	if int(k) < len(keyNames) {
		return keyNames[k]
	}
	return fmt.Sprintf("key(%d)", uint8(k))
}

// ParseKey accepts "autoload" or "method".
func ParseKey(s string) (Key, error) {
	for i, name := range keyNames {
		if s == name {
			return Key(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSettingKey, s)
}

// Keys lists all settings.
func Keys() []Key { return []Key{AutoLoad, Method} }

// Byte offsets inside the device.
const (
	AutoLoadOffset = calib.SettingsOffset
	MethodOffset   = calib.SettingsOffset + 1
)

// Settings are the persisted controller settings.
type Settings struct {
	AutoLoad bool
	Method   detect.Method
}

// Store keeps the settings in memory and on the device.
type Store struct {
	dev     nvm.Device
	current Settings
}

// New creates a store bound to dev. Call Load to read persisted values.
func New(dev nvm.Device) *Store {
	return &Store{dev: dev}
}

// Load reads both settings. Bytes outside the valid range, such as erased
// storage, load as the zero value.
func (s *Store) Load() (Settings, error) {
	auto, err := s.dev.Load(AutoLoadOffset)
	if err != nil {
		return s.current, fmt.Errorf("failed to read autoload setting: %w", err)
	}
	method, err := s.dev.Load(MethodOffset)
	if err != nil {
		return s.current, fmt.Errorf("failed to read method setting: %w", err)
	}

	loaded := Settings{AutoLoad: auto == 1}
	if m := detect.Method(method); m.Valid() {
		loaded.Method = m
	}
	s.current = loaded
	return loaded, nil
}

// Current returns the in-memory settings.
func (s *Store) Current() Settings {
	return s.current
}

// Get returns the numeric value of a setting.
func (s *Store) Get(k Key) (int, error) {
	switch k {
	case AutoLoad:
		if s.current.AutoLoad {
			return 1, nil
		}
		return 0, nil
	case Method:
		return int(s.current.Method), nil
	}
	return 0, fmt.Errorf("%w: %s", ErrInvalidSettingKey, k)
}

// Set validates and persists a setting. Rejected values change nothing.
func (s *Store) Set(k Key, v int) error {
	var (
		offset int
		next   = s.current
	)
	switch k {
	case AutoLoad:
		if v != 0 && v != 1 {
			return fmt.Errorf("%w: autoload must be 0 or 1, got %d", ErrInvalidSettingValue, v)
		}
		offset = AutoLoadOffset
		next.AutoLoad = v == 1
	case Method:
		if v < 0 || v > int(detect.CheckEither) {
			return fmt.Errorf("%w: method must be 0..%d, got %d", ErrInvalidSettingValue, detect.CheckEither, v)
		}
		offset = MethodOffset
		next.Method = detect.Method(v)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidSettingKey, k)
	}

	if _, err := nvm.Update(s.dev, offset, byte(v)); err != nil {
		return fmt.Errorf("failed to persist %s: %w", k, err)
	}
	s.current = next
	return nil
}
