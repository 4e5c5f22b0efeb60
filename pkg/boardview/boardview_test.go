package boardview

import (
	"testing"

	"fyne.io/fyne/v2"
	"github.com/stretchr/testify/assert"

	"github.com/itohio/hallboard/pkg/board"
)

func TestSquareAt(t *testing.T) {
	size := fyne.NewSize(8*40+labelSpace, 8*40+labelSpace)

	tests := []struct {
		name string
		pos  fyne.Position
		want board.Square
		ok   bool
	}{
		{"a8 top left", fyne.NewPos(labelSpace+1, 1), board.Square{Row: 7, Col: 0}, true},
		{"h1 bottom right", fyne.NewPos(labelSpace+8*40-1, 8*40-1), board.Square{Row: 0, Col: 7}, true},
		{"e4", fyne.NewPos(labelSpace+4*40+20, 4*40+20), board.Square{Row: 3, Col: 4}, true},
		{"rank labels", fyne.NewPos(5, 100), board.Square{}, false},
		{"file labels", fyne.NewPos(100, 8*40+5), board.Square{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SquareAt(size, tt.pos)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}

	_, ok := SquareAt(fyne.NewSize(0, 0), fyne.NewPos(1, 1))
	assert.False(t, ok)
}

func TestSquareColor(t *testing.T) {
	assert.Equal(t, darkSquare, SquareColor(0, 0))
	assert.Equal(t, lightSquare, SquareColor(0, 1))
	assert.Equal(t, darkSquare, SquareColor(7, 7))
}

func TestHeatColor(t *testing.T) {
	cold := HeatColor(0)
	hot := HeatColor(board.MaxReading)
	assert.Equal(t, uint8(0), cold.R)
	assert.Equal(t, uint8(255), cold.B)
	assert.Equal(t, uint8(255), hot.R)
	assert.Equal(t, uint8(0), hot.B)
	assert.Greater(t, HeatColor(512).G, uint8(150))
}

func TestCell(t *testing.T) {
	var f board.Frame
	f.Bitmap.Set(3, 4)
	f.Raw[3][4] = 901
	f.Debug[3][4] = board.InPresent
	f.Debug[0][0] = board.BelowEmpty

	_, text := Cell(Occupancy, &f, 3, 4)
	assert.Equal(t, "●", text)
	_, text = Cell(Occupancy, &f, 0, 0)
	assert.Empty(t, text)

	c, text := Cell(Raw, &f, 3, 4)
	assert.Equal(t, "901", text)
	assert.Equal(t, HeatColor(901), c)

	c, text = Cell(Debug, &f, 3, 4)
	assert.Equal(t, "0", text)
	assert.Equal(t, symbolColors[board.InPresent], c)
	c, text = Cell(Debug, &f, 0, 0)
	assert.Equal(t, "-", text)
	assert.Equal(t, symbolColors[board.BelowEmpty], c)
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "Raw", Raw.String())
	assert.Equal(t, "Mode(9)", Mode(9).String())
	assert.Len(t, Modes(), 3)
}
