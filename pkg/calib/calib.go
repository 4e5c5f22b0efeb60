// Package calib holds the per-square calibration matrices, the operator
// facing get/set operations on them, and their non-volatile layout.
package calib

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/itohio/hallboard/pkg/board"
)

// ErrInvalidKind is returned for an unknown calibration kind, or AllKinds
// where a single matrix is required.
var ErrInvalidKind = errors.New("invalid calibration kind")

// Kind selects one of the four calibration matrices. The order is the
// persisted region order.
type Kind uint8

const (
	Present Kind = iota
	Empty
	PresentMargin
	EmptyMargin

	// AllKinds addresses the four matrices at once (save and load only).
	AllKinds Kind = 0xFF
)

// NumKinds is the number of calibration matrices.
const NumKinds = 4

var kindNames = [NumKinds]string{"present", "empty", "presentMargin", "emptyMargin"}

// Kinds returns the four matrices in persisted order.
func Kinds() []Kind {
	return []Kind{Present, Empty, PresentMargin, EmptyMargin}
}

// Valid reports whether k addresses a single matrix.
func (k Kind) Valid() bool {
	return k < NumKinds
}

func (k Kind) String() string {
	switch {
	case k == AllKinds:
		return "all"
	case k.Valid():
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind accepts a kind name or "all".
func ParseKind(s string) (Kind, error) {
	if s == "all" {
		return AllKinds, nil
	}
	for i, name := range kindNames {
		if s == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// Table is the full calibration: a reference value and a half-width margin
// for both the present and the empty state of every square.
type Table struct {
	Present       board.Matrix
	Empty         board.Matrix
	PresentMargin board.Matrix
	EmptyMargin   board.Matrix
}

// Matrix returns the matrix for a single kind.
func (t *Table) Matrix(k Kind) (*board.Matrix, error) {
	switch k {
	case Present:
		return &t.Present, nil
	case Empty:
		return &t.Empty, nil
	case PresentMargin:
		return &t.PresentMargin, nil
	case EmptyMargin:
		return &t.EmptyMargin, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidKind, k)
}

// Clamp limits v to the raw reading domain. Negative values become 0.
func Clamp(v int) uint16 {
	switch {
	case v < 0:
		return 0
	case v > int(board.MaxReading):
		return board.MaxReading
	}
	return uint16(v)
}
