// Package board defines the 8x8 sensor grid types shared by acquisition,
// calibration and classification.
package board

import (
	"errors"
	"math/bits"
	"strings"
)

const (
	// Rows is the number of board rows (one analog multiplexer per row).
	Rows = 8
	// Cols is the number of board columns (one multiplexer address per column).
	Cols = 8
	// Cells is the number of squares on the board.
	Cells = Rows * Cols

	// MaxReading is the largest raw value of the 10-bit ADC domain.
	MaxReading uint16 = 1023

	// All is the wildcard coordinate: every row, every column, or both.
	All uint8 = 255
)

// ErrInvalidCoordinate is returned for a row or column outside [0,8) that is
// not the All wildcard.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Matrix holds one value per square, indexed [row][col].
type Matrix [Rows][Cols]uint16

// Fill sets every cell to v.
func (m *Matrix) Fill(v uint16) {
	for row := range Rows {
		for col := range Cols {
			m[row][col] = v
		}
	}
}

// Bitmap is the board occupancy state. Bit row*Cols+col is set when the
// square is occupied. The bit order is a wire contract.
type Bitmap uint64

// Index returns the bit index of a square.
func Index(row, col int) int {
	return row*Cols + col
}

// Set marks a square as occupied.
func (b *Bitmap) Set(row, col int) {
	*b |= 1 << uint(Index(row, col))
}

// Clear marks a square as empty.
func (b *Bitmap) Clear(row, col int) {
	*b &^= 1 << uint(Index(row, col))
}

// Occupied reports whether a square is occupied.
func (b Bitmap) Occupied(row, col int) bool {
	return b&(1<<uint(Index(row, col))) != 0
}

// Count returns the number of occupied squares.
func (b Bitmap) Count() int {
	return bits.OnesCount64(uint64(b))
}

// Diff returns the squares that became occupied (placed) and the squares that
// became empty (lifted) going from prev to b.
func (b Bitmap) Diff(prev Bitmap) (placed, lifted Bitmap) {
	return b &^ prev, prev &^ b
}

// String renders the bitmap as 8 lines, row 0 first, '1' for occupied.
func (b Bitmap) String() string {
	var sb strings.Builder
	for row := range Rows {
		for col := range Cols {
			if b.Occupied(row, col) {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('.')
			}
		}
		if row < Rows-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// Square is a single board coordinate.
type Square struct {
	Row int
	Col int
}

// Squares lists the set squares of b in bit order.
func (b Bitmap) Squares() []Square {
	result := make([]Square, 0, b.Count())
	for v := uint64(b); v != 0; v &= v - 1 {
		i := bits.TrailingZeros64(v)
		result = append(result, Square{Row: i / Cols, Col: i % Cols})
	}
	return result
}
