// Package boardview is a Fyne widget that draws the board: occupancy,
// raw readings as a heat map, or the classifier debug symbols.
package boardview

import (
	"image/color"
	"strconv"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	"github.com/chewxy/math32"

	"github.com/itohio/hallboard/pkg/board"
)

// Mode selects what each square shows.
type Mode int

const (
	Occupancy Mode = iota
	Raw
	Debug
)

var modeNames = [...]string{"Occupancy", "Raw", "Debug"}

func (m Mode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "Mode(" + strconv.Itoa(int(m)) + ")"
}

// Modes lists the display modes in menu order.
func Modes() []Mode { return []Mode{Occupancy, Raw, Debug} }

// labelSpace is the width of the rank labels and the height of the file
// labels.
const labelSpace = float32(18)

var (
	lightSquare = color.NRGBA{R: 0xee, G: 0xdd, B: 0xbb, A: 0xff}
	darkSquare  = color.NRGBA{R: 0xb5, G: 0x88, B: 0x63, A: 0xff}
	pieceColor  = color.NRGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}
	labelColor  = color.NRGBA{R: 0x96, G: 0x96, B: 0x96, A: 0xff}
)

var symbolColors = map[board.Symbol]color.NRGBA{
	board.BelowEmpty:   {R: 0x30, G: 0x60, B: 0xc0, A: 0xff},
	board.InEmpty:      {R: 0x50, G: 0xa0, B: 0x50, A: 0xff},
	board.Between:      {R: 0xe0, G: 0xc0, B: 0x20, A: 0xff},
	board.InPresent:    {R: 0xd0, G: 0x50, B: 0x30, A: 0xff},
	board.AbovePresent: {R: 0x90, G: 0x10, B: 0x90, A: 0xff},
}

// BoardWidget displays the latest frame.
type BoardWidget struct {
	widget.BaseWidget

	mu       sync.RWMutex
	frame    board.Frame
	hasFrame bool
	mode     Mode
	selected *board.Square
	onTapped func(board.Square)
}

// New creates a board widget. onTapped, which may be nil, receives the
// square under a tap.
func New(onTapped func(board.Square)) *BoardWidget {
	w := &BoardWidget{onTapped: onTapped}
	w.ExtendBaseWidget(w)
	return w
}

// SetFrame shows f. Call it on the Fyne goroutine (fyne.Do).
func (w *BoardWidget) SetFrame(f board.Frame) {
	w.mu.Lock()
	w.frame = f
	w.hasFrame = true
	w.mu.Unlock()
	w.Refresh()
}

// Frame returns the displayed frame.
func (w *BoardWidget) Frame() (board.Frame, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.frame, w.hasFrame
}

// SetMode changes the display mode.
func (w *BoardWidget) SetMode(m Mode) {
	w.mu.Lock()
	w.mode = m
	w.mu.Unlock()
	w.Refresh()
}

// Select highlights a square; nil clears the highlight.
func (w *BoardWidget) Select(sq *board.Square) {
	w.mu.Lock()
	w.selected = sq
	w.mu.Unlock()
	w.Refresh()
}

// Tapped implements fyne.Tappable.
func (w *BoardWidget) Tapped(ev *fyne.PointEvent) {
	sq, ok := SquareAt(w.Size(), ev.Position)
	if !ok || w.onTapped == nil {
		return
	}
	w.onTapped(sq)
}

// CreateRenderer creates the widget renderer.
func (w *BoardWidget) CreateRenderer() fyne.WidgetRenderer {
	r := &boardRenderer{w: w}
	for row := range board.Rows {
		for col := range board.Cols {
			r.cells[row][col] = canvas.NewRectangle(SquareColor(row, col))
			r.texts[row][col] = canvas.NewText("", pieceColor)
			r.texts[row][col].Alignment = fyne.TextAlignCenter
			r.objects = append(r.objects, r.cells[row][col], r.texts[row][col])
		}
	}
	for i := range board.Rows {
		r.ranks[i] = canvas.NewText(strconv.Itoa(i+1), labelColor)
		r.files[i] = canvas.NewText(string(rune('a'+i)), labelColor)
		r.ranks[i].TextSize = 11
		r.files[i].TextSize = 11
		r.objects = append(r.objects, r.ranks[i], r.files[i])
	}
	r.highlight = canvas.NewRectangle(color.Transparent)
	r.highlight.StrokeColor = color.NRGBA{R: 0x20, G: 0x90, B: 0xff, A: 0xff}
	r.highlight.StrokeWidth = 3
	r.highlight.Hide()
	r.objects = append(r.objects, r.highlight)
	r.Refresh()
	return r
}

// CellSize returns the side of one square for a widget of the given size.
func CellSize(size fyne.Size) float32 {
	side := min(size.Width, size.Height) - labelSpace
	if side <= 0 {
		return 0
	}
	return side / board.Cols
}

// SquareAt maps a position inside the widget to a square. Rank 8 is drawn
// at the top and file a on the left.
func SquareAt(size fyne.Size, pos fyne.Position) (board.Square, bool) {
	cell := CellSize(size)
	if cell == 0 {
		return board.Square{}, false
	}
	x := pos.X - labelSpace
	if x < 0 || pos.Y < 0 {
		return board.Square{}, false
	}
	col := int(x / cell)
	fromTop := int(pos.Y / cell)
	if col >= board.Cols || fromTop >= board.Rows {
		return board.Square{}, false
	}
	return board.Square{Row: board.Rows - 1 - fromTop, Col: col}, true
}

// SquareColor is the plain board color of a square; a1 is dark.
func SquareColor(row, col int) color.NRGBA {
	if (row+col)%2 == 0 {
		return darkSquare
	}
	return lightSquare
}

// HeatColor maps a reading onto a blue to red ramp.
func HeatColor(v uint16) color.NRGBA {
	t := math32.Min(float32(v)/float32(board.MaxReading), 1)
	return color.NRGBA{
		R: uint8(math32.Round(255 * t)),
		G: uint8(math32.Round(255 * (1 - math32.Abs(2*t-1)) * 0.8)),
		B: uint8(math32.Round(255 * (1 - t))),
		A: 0xff,
	}
}

// Cell returns the fill color and label of a square in mode m.
func Cell(m Mode, f *board.Frame, row, col int) (color.NRGBA, string) {
	switch m {
	case Raw:
		v := f.Raw[row][col]
		return HeatColor(v), strconv.Itoa(int(v))
	case Debug:
		s := f.Debug[row][col]
		c, ok := symbolColors[s]
		if !ok {
			c = SquareColor(row, col)
		}
		return c, string(rune(s))
	}
	if f.Bitmap.Occupied(row, col) {
		return SquareColor(row, col), "●"
	}
	return SquareColor(row, col), ""
}
