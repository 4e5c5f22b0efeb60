// Package mux scans the Hall sensor matrix through the analog multiplexers.
//
// Each board row is wired to one 8-channel multiplexer whose common pin goes
// to an ADC input. All multiplexers share a 3-bit address bus that selects
// the column. A scan walks the 8 columns, waits for the multiplexer outputs
// to settle and samples the 8 row channels.
package mux

import (
	"errors"
	"fmt"
	"time"

	"github.com/itohio/hallboard/pkg/board"
)

const (
	// AddressBits is the width of the column address bus.
	AddressBits = 3
	// MinSettle is the shortest settle delay after changing the address.
	MinSettle = 10 * time.Millisecond
)

// DefaultColumnOrder maps a board column to the multiplexer address that
// selects it on the reference wiring.
var DefaultColumnOrder = [board.Cols]uint8{2, 1, 0, 3, 5, 7, 6, 4}

// ErrInvalidOrder is returned for a column order that is not a permutation
// of the 8 addresses.
var ErrInvalidOrder = errors.New("column order must be a permutation of 0..7")

// Port is the hardware behind a scan.
type Port interface {
	// Select drives the address bus.
	Select(addr uint8) error
	// Read samples a row channel and returns a value in [0, board.MaxReading].
	Read(row int) (uint16, error)
}

var _ Port = (*Mock)(nil)

// Scanner performs full matrix scans over a Port.
type Scanner struct {
	port   Port
	settle time.Duration
	order  [board.Cols]uint8
	sleep  func(time.Duration)
}

// NewScanner creates a scanner. A settle delay below MinSettle is raised to
// MinSettle. An empty order selects DefaultColumnOrder.
func NewScanner(port Port, settle time.Duration, order []uint8) (*Scanner, error) {
	if settle < MinSettle {
		settle = MinSettle
	}

	s := &Scanner{
		port:   port,
		settle: settle,
		order:  DefaultColumnOrder,
		sleep:  time.Sleep,
	}
	if len(order) > 0 {
		if err := ValidateOrder(order); err != nil {
			return nil, err
		}
		copy(s.order[:], order)
	}
	return s, nil
}

// ValidateOrder checks that order maps the 8 columns to 8 distinct addresses.
func ValidateOrder(order []uint8) error {
	if len(order) != board.Cols {
		return fmt.Errorf("%w: got %d entries", ErrInvalidOrder, len(order))
	}
	var seen uint8
	for _, addr := range order {
		if addr >= board.Cols {
			return fmt.Errorf("%w: address %d", ErrInvalidOrder, addr)
		}
		if seen&(1<<addr) != 0 {
			return fmt.Errorf("%w: address %d repeated", ErrInvalidOrder, addr)
		}
		seen |= 1 << addr
	}
	return nil
}

// Order returns the column to address mapping.
func (s *Scanner) Order() [board.Cols]uint8 { return s.order }

// Settle returns the per-column settle delay.
func (s *Scanner) Settle() time.Duration { return s.settle }

// Duration returns the minimum time a full scan takes.
func (s *Scanner) Duration() time.Duration { return board.Cols * s.settle }

// Scan reads the whole matrix into dst. The settle delay is a hardware wait
// and always elapses in full. On a port error dst is left unchanged.
func (s *Scanner) Scan(dst *board.Matrix) error {
	var m board.Matrix
	for col := range board.Cols {
		addr := s.order[col]
		if err := s.port.Select(addr); err != nil {
			return fmt.Errorf("failed to select column %d (address %d): %w", col, addr, err)
		}
		s.sleep(s.settle)
		for row := range board.Rows {
			v, err := s.port.Read(row)
			if err != nil {
				return fmt.Errorf("failed to read row %d column %d: %w", row, col, err)
			}
			m[row][col] = min(v, board.MaxReading)
		}
	}
	*dst = m
	return nil
}
