package board

import "fmt"

// Scope addresses a set of squares for calibration access: a single cell, a
// whole row (Col == All), a whole column (Row == All) or the whole board.
type Scope struct {
	Row uint8
	Col uint8
}

// Cell addresses a single square.
func Cell(row, col uint8) Scope { return Scope{Row: row, Col: col} }

// Row addresses every column of a row.
func Row(row uint8) Scope { return Scope{Row: row, Col: All} }

// Column addresses every row of a column.
func Column(col uint8) Scope { return Scope{Row: All, Col: col} }

// Everything addresses the whole board.
func Everything() Scope { return Scope{Row: All, Col: All} }

// Validate checks both coordinates.
func (s Scope) Validate() error {
	if s.Row >= Rows && s.Row != All {
		return fmt.Errorf("%w: row %d", ErrInvalidCoordinate, s.Row)
	}
	if s.Col >= Cols && s.Col != All {
		return fmt.Errorf("%w: col %d", ErrInvalidCoordinate, s.Col)
	}
	return nil
}

// Cells returns the addressed squares in row-major order. The scope must be
// valid.
func (s Scope) Cells() []Square {
	rows := span(s.Row, Rows)
	cols := span(s.Col, Cols)
	result := make([]Square, 0, len(rows)*len(cols))
	for _, row := range rows {
		for _, col := range cols {
			result = append(result, Square{Row: row, Col: col})
		}
	}
	return result
}

func (s Scope) String() string {
	return coord(s.Row) + " " + coord(s.Col)
}

func span(c uint8, n int) []int {
	if c == All {
		result := make([]int, n)
		for i := range n {
			result[i] = i
		}
		return result
	}
	return []int{int(c)}
}

func coord(c uint8) string {
	if c == All {
		return "all"
	}
	return fmt.Sprint(c)
}

// String returns the algebraic name of the square: file a..h is the column,
// rank 1..8 is the row plus one.
func (s Square) String() string {
	if s.Row < 0 || s.Row >= Rows || s.Col < 0 || s.Col >= Cols {
		return fmt.Sprintf("(%d,%d)", s.Row, s.Col)
	}
	return string([]byte{byte('a' + s.Col), byte('1' + s.Row)})
}

// ParseSquare parses an algebraic square name such as "e4".
func ParseSquare(name string) (Square, error) {
	if len(name) != 2 || name[0] < 'a' || name[0] > 'h' || name[1] < '1' || name[1] > '8' {
		return Square{}, fmt.Errorf("%w: square %q", ErrInvalidCoordinate, name)
	}
	return Square{Row: int(name[1] - '1'), Col: int(name[0] - 'a')}, nil
}
