package boardview

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"github.com/itohio/hallboard/pkg/board"
)

// boardRenderer renders the board widget.
type boardRenderer struct {
	w *BoardWidget

	cells     [board.Rows][board.Cols]*canvas.Rectangle
	texts     [board.Rows][board.Cols]*canvas.Text
	ranks     [board.Rows]*canvas.Text
	files     [board.Cols]*canvas.Text
	highlight *canvas.Rectangle

	objects []fyne.CanvasObject
}

// MinSize returns the minimum size of the widget.
func (r *boardRenderer) MinSize() fyne.Size {
	return fyne.NewSize(8*32+labelSpace, 8*32+labelSpace)
}

// Layout places squares with rank 8 on top.
func (r *boardRenderer) Layout(size fyne.Size) {
	cell := CellSize(size)
	for row := range board.Rows {
		y := float32(board.Rows-1-row) * cell
		for col := range board.Cols {
			x := labelSpace + float32(col)*cell
			r.cells[row][col].Move(fyne.NewPos(x, y))
			r.cells[row][col].Resize(fyne.NewSize(cell, cell))
			r.texts[row][col].TextSize = max(cell/3, 8)
			r.texts[row][col].Move(fyne.NewPos(x, y+cell/2-r.texts[row][col].TextSize*0.7))
			r.texts[row][col].Resize(fyne.NewSize(cell, r.texts[row][col].TextSize))
		}
		r.ranks[row].Move(fyne.NewPos(4, y+cell/2-7))
	}
	for col := range board.Cols {
		r.files[col].Move(fyne.NewPos(labelSpace+float32(col)*cell+cell/2-3, board.Rows*cell+2))
	}
	r.layoutHighlight(cell)
}

func (r *boardRenderer) layoutHighlight(cell float32) {
	r.w.mu.RLock()
	sel := r.w.selected
	r.w.mu.RUnlock()

	if sel == nil {
		r.highlight.Hide()
		return
	}
	r.highlight.Move(fyne.NewPos(labelSpace+float32(sel.Col)*cell, float32(board.Rows-1-sel.Row)*cell))
	r.highlight.Resize(fyne.NewSize(cell, cell))
	r.highlight.Show()
}

// Refresh recolors the squares from the current frame.
func (r *boardRenderer) Refresh() {
	r.w.mu.RLock()
	f := r.w.frame
	has := r.w.hasFrame
	mode := r.w.mode
	r.w.mu.RUnlock()

	for row := range board.Rows {
		for col := range board.Cols {
			fill, text := SquareColor(row, col), ""
			if has {
				fill, text = Cell(mode, &f, row, col)
			}
			r.cells[row][col].FillColor = fill
			r.texts[row][col].Text = text
			r.cells[row][col].Refresh()
			r.texts[row][col].Refresh()
		}
	}
	r.layoutHighlight(CellSize(r.w.Size()))
	r.highlight.Refresh()
}

func (r *boardRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *boardRenderer) Destroy() {}
