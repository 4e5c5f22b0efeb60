// Package detect classifies board squares as occupied or empty from raw Hall
// sensor readings and per-square calibration bands.
package detect

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/itohio/hallboard/pkg/board"
	"github.com/itohio/hallboard/pkg/calib"
)

// ErrInvalidMethod is returned for a detection method outside 0..3.
var ErrInvalidMethod = errors.New("invalid detection method")

// Method selects how band membership maps to occupancy. The numeric values
// are persisted and used on the command line.
type Method uint8

const (
	// CheckBoth requires the reading to be inside both bands. Only reachable
	// when the bands overlap.
	CheckBoth Method = iota
	// CheckNotEmpty treats anything outside the empty band as occupied.
	CheckNotEmpty
	// CheckPresent requires the reading to be inside the present band.
	CheckPresent
	// CheckEither accepts outside-empty or inside-present.
	CheckEither
)

var methodNames = [...]string{"both", "notempty", "present", "either"}

// Valid reports whether m is one of the four methods.
func (m Method) Valid() bool {
	return m <= CheckEither
}

func (m Method) String() string {
	if !m.Valid() {
		return "method(" + strconv.Itoa(int(m)) + ")"
	}
	return methodNames[m]
}

// ParseMethod accepts a method number (0..3) or name.
func ParseMethod(s string) (Method, error) {
	for i, name := range methodNames {
		if s == name {
			return Method(i), nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > int(CheckEither) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMethod, s)
	}
	return Method(n), nil
}

// Band is an inclusive range of raw readings.
type Band struct {
	Min uint16
	Max uint16
}

// BandOf returns [value-margin, value+margin]. Callers are expected to keep
// margin <= value; when they don't the lower bound saturates at 0.
func BandOf(value, margin uint16) Band {
	b := Band{Max: value + margin}
	if margin <= value {
		b.Min = value - margin
	}
	return b
}

// Contains reports whether raw lies within the band, bounds included.
func (b Band) Contains(raw uint16) bool {
	return raw >= b.Min && raw <= b.Max
}

// Decide applies the detection method to the band memberships of one square.
func Decide(m Method, isEmpty, isPresent bool) bool {
	switch m {
	case CheckBoth:
		return isEmpty && isPresent
	case CheckNotEmpty:
		return !isEmpty
	case CheckPresent:
		return isPresent
	case CheckEither:
		return !isEmpty || isPresent
	}
	return false
}

// SymbolFor places raw on the five-way partition of the reading range. It
// assumes the empty band lies below the present band; when calibration breaks
// that assumption the symbol is still defined but only informative.
func SymbolFor(raw uint16, empty, present Band) board.Symbol {
	switch {
	case raw < empty.Min:
		return board.BelowEmpty
	case empty.Contains(raw):
		return board.InEmpty
	case present.Contains(raw):
		return board.InPresent
	case raw > present.Max:
		return board.AbovePresent
	}
	return board.Between
}

// Classify computes the occupancy bitmap and the debug grid for a full raw
// matrix. Occupancy always follows Decide; the debug grid never feeds back.
func Classify(raw *board.Matrix, t *calib.Table, m Method) (board.Bitmap, board.DebugGrid) {
	var (
		bitmap board.Bitmap
		debug  board.DebugGrid
	)
	for row := range board.Rows {
		for col := range board.Cols {
			empty := BandOf(t.Empty[row][col], t.EmptyMargin[row][col])
			present := BandOf(t.Present[row][col], t.PresentMargin[row][col])
			v := raw[row][col]

			if Decide(m, empty.Contains(v), present.Contains(v)) {
				bitmap.Set(row, col)
			}
			debug[row][col] = SymbolFor(v, empty, present)
		}
	}
	return bitmap, debug
}
