package calib

import (
	"fmt"

	"github.com/itohio/hallboard/pkg/board"
)

// Source is the value written by Set: either a literal or the live reading
// of each addressed square.
type Source struct {
	current bool
	value   int
}

// Current copies the live reading of every addressed square.
var Current = Source{current: true}

// Literal writes v, clamped to [0, board.MaxReading].
func Literal(v int) Source {
	return Source{value: v}
}

// IsCurrent reports whether the source is the live reading.
func (s Source) IsCurrent() bool { return s.current }

// Value returns the clamped literal value.
func (s Source) Value() uint16 { return Clamp(s.value) }

func (s Source) String() string {
	if s.current {
		return "current"
	}
	return fmt.Sprint(s.Value())
}

// Entry is one addressed square and its calibration value.
type Entry struct {
	Row   int
	Col   int
	Value uint16
}

// Store is the in-memory calibration. It is not safe for concurrent use; the
// controller serializes access.
type Store struct {
	table Table
}

// NewStore creates a zeroed store.
func NewStore() *Store {
	return &Store{}
}

// Table returns the backing table.
func (s *Store) Table() *Table {
	return &s.table
}

// Get returns the addressed values in row-major order.
func (s *Store) Get(k Kind, scope board.Scope) ([]Entry, error) {
	m, err := s.table.Matrix(k)
	if err != nil {
		return nil, err
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	cells := scope.Cells()
	result := make([]Entry, len(cells))
	for i, sq := range cells {
		result[i] = Entry{Row: sq.Row, Col: sq.Col, Value: m[sq.Row][sq.Col]}
	}
	return result, nil
}

// Set writes src into every addressed square. Kind and scope are validated
// before anything is written. live is only read for the Current source.
func (s *Store) Set(k Kind, scope board.Scope, src Source, live *board.Matrix) error {
	m, err := s.table.Matrix(k)
	if err != nil {
		return err
	}
	if err := scope.Validate(); err != nil {
		return err
	}
	if src.current && live == nil {
		return fmt.Errorf("no live reading to copy into %s", k)
	}

	for _, sq := range scope.Cells() {
		if src.current {
			m[sq.Row][sq.Col] = min(live[sq.Row][sq.Col], board.MaxReading)
		} else {
			m[sq.Row][sq.Col] = src.Value()
		}
	}
	return nil
}

// Reset zeroes one matrix, or all of them for AllKinds.
func (s *Store) Reset(k Kind) error {
	if k == AllKinds {
		s.table = Table{}
		return nil
	}
	m, err := s.table.Matrix(k)
	if err != nil {
		return err
	}
	*m = board.Matrix{}
	return nil
}
