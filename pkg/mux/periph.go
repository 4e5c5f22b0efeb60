//go:build !tinygo

package mux

import (
	"fmt"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"

	"github.com/itohio/hallboard/pkg/board"
)

var _ Port = (*PeriphPort)(nil)

// PeriphPort drives the multiplexers from a host with periph.io: three GPIO
// address lines, an optional active-high inhibit line and one analog input
// per row (typically ADS1115 channels).
type PeriphPort struct {
	address [AddressBits]gpio.PinOut
	inhibit gpio.PinOut
	rows    [board.Rows]analog.PinADC
}

// NewPeriphPort configures the address lines low and enables the
// multiplexers. inhibit may be nil when the INH pins are tied to ground.
func NewPeriphPort(address [AddressBits]gpio.PinOut, inhibit gpio.PinOut, rows [board.Rows]analog.PinADC) (*PeriphPort, error) {
	for i, pin := range address {
		if pin == nil {
			return nil, fmt.Errorf("address line %d not configured", i)
		}
		if err := pin.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("failed to configure address line %s: %w", pin, err)
		}
	}
	for i, pin := range rows {
		if pin == nil {
			return nil, fmt.Errorf("row %d analog input not configured", i)
		}
	}
	if inhibit != nil {
		if err := inhibit.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("failed to enable multiplexers on %s: %w", inhibit, err)
		}
	}
	return &PeriphPort{address: address, inhibit: inhibit, rows: rows}, nil
}

// Select drives the address bus, bit 0 on the first line.
func (p *PeriphPort) Select(addr uint8) error {
	for bit, pin := range p.address {
		if err := pin.Out(gpio.Level(addr&(1<<bit) != 0)); err != nil {
			return fmt.Errorf("%s: %w", pin, err)
		}
	}
	return nil
}

// Read samples a row input and rescales it to the 10-bit reading domain.
func (p *PeriphPort) Read(row int) (uint16, error) {
	if row < 0 || row >= board.Rows {
		return 0, fmt.Errorf("%w: row %d", board.ErrInvalidCoordinate, row)
	}
	pin := p.rows[row]
	s, err := pin.Read()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", pin, err)
	}
	lo, hi := pin.Range()
	return Scale(s.Raw, lo.Raw, hi.Raw), nil
}

// Halt disables the multiplexers.
func (p *PeriphPort) Halt() error {
	if p.inhibit == nil {
		return nil
	}
	return p.inhibit.Out(gpio.High)
}

// Scale maps raw within [lo, hi] linearly onto [0, board.MaxReading],
// clamping values outside the range.
func Scale(raw, lo, hi int32) uint16 {
	if hi <= lo {
		return 0
	}
	raw = max(lo, min(raw, hi))
	span := int64(hi) - int64(lo)
	v := ((int64(raw)-int64(lo))*int64(board.MaxReading) + span/2) / span
	return uint16(v)
}
