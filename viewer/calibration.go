package main

import (
	"fmt"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/hallboard/pkg/board"
	"github.com/itohio/hallboard/pkg/calib"
)

const defaultMargin = 40

// showCalibrationDialog displays the calibration workflow: capture the empty
// board, capture the board full of pieces, set margins, then save.
func showCalibrationDialog(state *appState) {
	output := widget.NewLabel("")
	output.Wrapping = fyne.TextWrapWord

	run := func(lines ...string) {
		var sb strings.Builder
		for _, line := range lines {
			body, err := state.command(line)
			fmt.Fprintf(&sb, "> %s\n", line)
			for _, l := range body {
				fmt.Fprintln(&sb, l)
			}
			if err != nil {
				fmt.Fprintln(&sb, err)
				break
			}
		}
		text := sb.String()
		fyne.Do(func() { output.SetText(text) })
	}

	marginEntry := widget.NewEntry()
	marginEntry.SetText(strconv.Itoa(defaultMargin))

	captureEmpty := widget.NewButton("Capture Empty Board", func() {
		go run("calib set empty all all current")
	})
	capturePresent := widget.NewButton("Capture Occupied Board", func() {
		go run("calib set present all all current")
	})
	setMargins := widget.NewButton("Set Margins", func() {
		margin, err := strconv.Atoi(marginEntry.Text)
		if err != nil {
			dialog.ShowError(fmt.Errorf("invalid margin: %w", err), state.window)
			return
		}
		go run(
			fmt.Sprintf("calib set presentMargin all all %d", margin),
			fmt.Sprintf("calib set emptyMargin all all %d", margin),
		)
	})
	save := widget.NewButton("Save All", func() { go run("calib save all") })
	load := widget.NewButton("Load All", func() { go run("calib load all") })

	kinds := make([]string, 0, calib.NumKinds)
	for _, k := range calib.Kinds() {
		kinds = append(kinds, k.String())
	}
	kindSelect := widget.NewSelect(kinds, nil)
	kindSelect.SetSelected(calib.Present.String())

	files := []string{"all", "a", "b", "c", "d", "e", "f", "g", "h"}
	ranks := []string{"all", "1", "2", "3", "4", "5", "6", "7", "8"}
	fileSelect := widget.NewSelect(files, nil)
	fileSelect.SetSelected("all")
	rankSelect := widget.NewSelect(ranks, nil)
	rankSelect.SetSelected("all")

	valueEntry := widget.NewEntry()
	valueEntry.SetPlaceHolder("current")

	cellForm := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Kind", Widget: kindSelect},
			{Text: "File", Widget: fileSelect},
			{Text: "Rank", Widget: rankSelect},
			{Text: "Value", Widget: valueEntry},
		},
		SubmitText: "Set",
		OnSubmit: func() {
			value := strings.TrimSpace(valueEntry.Text)
			if value == "" {
				value = "current"
			}
			scope := scopeOf(fileSelect.SelectedIndex(), rankSelect.SelectedIndex())
			go run(
				fmt.Sprintf("calib set %s %s %s", kindSelect.Selected, scope, value),
				fmt.Sprintf("calib get %s %s", kindSelect.Selected, scope),
			)
		},
	}

	content := container.NewBorder(
		container.NewVBox(
			container.NewGridWithColumns(2, captureEmpty, capturePresent),
			container.NewBorder(nil, nil, widget.NewLabel("Margin"), setMargins, marginEntry),
			container.NewGridWithColumns(2, save, load),
			widget.NewSeparator(),
			cellForm,
		),
		nil, nil, nil,
		container.NewVScroll(output),
	)

	d := dialog.NewCustom("Calibration", "Close", content, state.window)
	d.Resize(fyne.NewSize(520, 620))
	d.Show()
}

// scopeOf converts select indexes (0 = all) into a calibration scope.
func scopeOf(fileIdx, rankIdx int) board.Scope {
	scope := board.Everything()
	if fileIdx > 0 {
		scope.Col = uint8(fileIdx - 1)
	}
	if rankIdx > 0 {
		scope.Row = uint8(rankIdx - 1)
	}
	return scope
}

// squareSummary describes the calibration of one square, e.g.
// "e4: present 900±10, empty 100±10".
func squareSummary(state *appState, sq board.Square) string {
	scope := board.Cell(uint8(sq.Row), uint8(sq.Col))
	values := make(map[calib.Kind]string, calib.NumKinds)
	for _, k := range calib.Kinds() {
		body, err := state.command(fmt.Sprintf("calib get %s %s", k, scope))
		if err != nil {
			return fmt.Sprintf("%s: %v", sq, err)
		}
		for _, line := range body {
			if fields := strings.Fields(line); len(fields) == 4 && fields[0] == k.String() {
				values[k] = fields[3]
			}
		}
	}
	return fmt.Sprintf("%s: present %s±%s, empty %s±%s", sq,
		values[calib.Present], values[calib.PresentMargin],
		values[calib.Empty], values[calib.EmptyMargin])
}
