// Package nvm provides byte-addressable non-volatile storage devices.
//
// Devices only store bytes; the meaning of each address is defined by the
// packages that lay their data out on a device (see calib and settings).
// Every write of persisted data goes through Update, which skips the physical
// write when the stored byte already matches: the media have a finite write
// cycle budget.
package nvm

import (
	"errors"
	"fmt"
)

// ErrOutOfRange is returned for an address outside the device.
var ErrOutOfRange = errors.New("address out of range")

// Device is a byte-addressable non-volatile store.
type Device interface {
	// Size returns the capacity in bytes.
	Size() int
	// Load reads the byte at addr.
	Load(addr int) (byte, error)
	// Store physically writes the byte at addr.
	Store(addr int, b byte) error
}

var (
	_ Device = (*Memory)(nil)
	_ Device = (*File)(nil)
	_ Device = (*EEPROM)(nil)
)

// Update writes b at addr only if the stored byte differs. It reports whether
// a physical write happened.
func Update(dev Device, addr int, b byte) (bool, error) {
	cur, err := dev.Load(addr)
	if err != nil {
		return false, err
	}
	if cur == b {
		return false, nil
	}
	if err := dev.Store(addr, b); err != nil {
		return false, err
	}
	return true, nil
}

func checkRange(addr, size int) error {
	if addr < 0 || addr >= size {
		return fmt.Errorf("%w: %d (size %d)", ErrOutOfRange, addr, size)
	}
	return nil
}
