package board

import "strings"

// Symbol is the per-square diagnostic mark. It partitions the raw value range
// relative to the empty and present bands and is informative only.
type Symbol byte

const (
	BelowEmpty   Symbol = '-' // below the empty band
	InEmpty      Symbol = '.' // inside the empty band
	Between      Symbol = '?' // between the bands, or unclassifiable
	InPresent    Symbol = '0' // inside the present band
	AbovePresent Symbol = 'X' // above the present band
)

// Valid reports whether s is one of the five diagnostic symbols.
func (s Symbol) Valid() bool {
	switch s {
	case BelowEmpty, InEmpty, Between, InPresent, AbovePresent:
		return true
	}
	return false
}

// DebugGrid holds one symbol per square.
type DebugGrid [Rows][Cols]Symbol

// String renders the grid as 8 lines of symbols.
func (g *DebugGrid) String() string {
	var sb strings.Builder
	for row := range Rows {
		for col := range Cols {
			sb.WriteByte(byte(g[row][col]))
		}
		if row < Rows-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
