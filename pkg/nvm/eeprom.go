package nvm

import (
	"fmt"
	"time"
)

const (
	// DefaultEEPROMAddr is the I2C address of a 24LCxx with A0..A2 tied low.
	DefaultEEPROMAddr = 0x50
	// DefaultEEPROMSize matches a 24LC32 (4 KiB).
	DefaultEEPROMSize = 4096
	// DefaultWriteCycle is the worst case internal write time of a 24LCxx.
	DefaultWriteCycle = 5 * time.Millisecond
)

// Bus is the I2C transaction primitive. periph.io i2c.Bus and TinyGo
// machine.I2C both satisfy it.
type Bus interface {
	Tx(addr uint16, w, r []byte) error
}

// EEPROM is a 24LCxx serial EEPROM with 16-bit memory addressing.
type EEPROM struct {
	bus        Bus
	addr       uint16
	size       int
	writeCycle time.Duration
	sleep      func(time.Duration)
}

// NewEEPROM creates an EEPROM device. Zero addr and size select the defaults.
func NewEEPROM(bus Bus, addr uint16, size int) *EEPROM {
	if addr == 0 {
		addr = DefaultEEPROMAddr
	}
	if size == 0 {
		size = DefaultEEPROMSize
	}
	return &EEPROM{
		bus:        bus,
		addr:       addr,
		size:       size,
		writeCycle: DefaultWriteCycle,
		sleep:      time.Sleep,
	}
}

// Size returns the capacity in bytes.
func (e *EEPROM) Size() int { return e.size }

// Load performs a random read of one byte.
func (e *EEPROM) Load(addr int) (byte, error) {
	if err := checkRange(addr, e.size); err != nil {
		return 0, err
	}
	var r [1]byte
	if err := e.bus.Tx(e.addr, []byte{byte(addr >> 8), byte(addr)}, r[:]); err != nil {
		return 0, fmt.Errorf("eeprom read at %d: %w", addr, err)
	}
	return r[0], nil
}

// Store performs a byte write and waits out the internal write cycle.
func (e *EEPROM) Store(addr int, b byte) error {
	if err := checkRange(addr, e.size); err != nil {
		return err
	}
	if err := e.bus.Tx(e.addr, []byte{byte(addr >> 8), byte(addr), b}, nil); err != nil {
		return fmt.Errorf("eeprom write at %d: %w", addr, err)
	}
	e.sleep(e.writeCycle)
	return nil
}
