package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/hallboard/pkg/detect"
	"github.com/itohio/hallboard/pkg/link"
	"github.com/itohio/hallboard/pkg/settings"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createSerialTab(state),
		createDetectionTab(state),
		createScanTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 450))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 450))
	d.Show()
}

func (s *appState) saveConfig() {
	if err := s.cfg.Save(s.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), s.window)
	}
}

// reconnect restarts the connection if one is open.
func (s *appState) reconnect() {
	if dev := s.currentDevice(); dev != nil && dev.IsConnected() {
		s.disconnect()
		s.connectBtn.SetIcon(theme.LoginIcon())
		s.calibBtn.Disable()
		handleConnect(s)
	}
}

// createSerialTab creates the Serial configuration tab.
func createSerialTab(state *appState) *container.TabItem {
	ports, err := link.Ports()
	portOptions := []string{}
	portMap := make(map[string]string) // display name to port name

	if err != nil {
		state.log.Warn().Err(err).Msg("failed to list serial ports")
	}
	for _, port := range ports {
		displayName := port.Name
		if port.Description != "" && port.Description != port.Name {
			displayName = fmt.Sprintf("%s (%s)", port.Name, port.Description)
		}
		portOptions = append(portOptions, displayName)
		portMap[displayName] = port.Name
	}

	currentPort := state.cfg.Serial.Port
	currentDisplay := currentPort
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == currentPort {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && currentPort != "" {
		portOptions = append(portOptions, currentPort)
		portMap[currentPort] = currentPort
	}

	portSelect := widget.NewSelect(portOptions, nil)
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}

	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(state.cfg.Serial.Baud))

	mockCheck := widget.NewCheck("Simulated board", nil)
	mockCheck.SetChecked(state.useMock)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
			{Text: "Source", Widget: mockCheck},
		},
		OnSubmit: func() {
			changed := state.useMock != mockCheck.Checked
			state.useMock = mockCheck.Checked

			if portSelect.Selected != "" {
				selectedPort := portMap[portSelect.Selected]
				if selectedPort == "" {
					selectedPort = portSelect.Selected
				}
				changed = changed || state.cfg.Serial.Port != selectedPort
				state.cfg.Serial.Port = selectedPort
			}
			if baud, err := strconv.Atoi(baudEntry.Text); err == nil && baud > 0 {
				changed = changed || state.cfg.Serial.Baud != baud
				state.cfg.Serial.Baud = baud
			}
			state.saveConfig()
			if changed {
				state.reconnect()
			}
		},
	}

	return container.NewTabItem("Serial", form)
}

// createDetectionTab creates the tab for the settings persisted on the
// board itself. Values are read from and written to the connected board.
func createDetectionTab(state *appState) *container.TabItem {
	methods := make([]string, 0, 4)
	for m := detect.CheckBoth; m <= detect.CheckEither; m++ {
		methods = append(methods, m.String())
	}
	methodSelect := widget.NewSelect(methods, nil)
	autoLoadCheck := widget.NewCheck("Load calibration at boot", nil)
	info := widget.NewLabel("")

	if state.currentDevice() == nil {
		info.SetText("connect to a board to edit its settings")
		methodSelect.Disable()
		autoLoadCheck.Disable()
	} else {
		if v, err := state.readSetting(settings.Method); err == nil {
			methodSelect.SetSelected(detect.Method(v).String())
		}
		if v, err := state.readSetting(settings.AutoLoad); err == nil {
			autoLoadCheck.SetChecked(v != 0)
		}
	}

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Detection Method", Widget: methodSelect},
			{Text: "Auto Load", Widget: autoLoadCheck},
			{Text: "", Widget: info},
		},
		OnSubmit: func() {
			if state.currentDevice() == nil {
				return
			}
			if m, err := detect.ParseMethod(methodSelect.Selected); err == nil {
				if err := state.writeSetting(settings.Method, int(m)); err != nil {
					dialog.ShowError(err, state.window)
					return
				}
			}
			autoLoad := 0
			if autoLoadCheck.Checked {
				autoLoad = 1
			}
			if err := state.writeSetting(settings.AutoLoad, autoLoad); err != nil {
				dialog.ShowError(err, state.window)
				return
			}
			info.SetText("saved to board")
		},
	}

	return container.NewTabItem("Detection", form)
}

// readSetting queries one persisted setting; the response line is
// "<key> <value> [<name>]".
func (s *appState) readSetting(k settings.Key) (int, error) {
	body, err := s.command("setting get " + k.String())
	if err != nil {
		return 0, err
	}
	for _, line := range body {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == k.String() {
			return strconv.Atoi(fields[1])
		}
	}
	return 0, fmt.Errorf("no value for setting %s", k)
}

func (s *appState) writeSetting(k settings.Key, v int) error {
	_, err := s.command(fmt.Sprintf("setting set %s %d", k, v))
	return err
}

// createScanTab creates the frame polling tab.
func createScanTab(state *appState) *container.TabItem {
	intervalEntry := widget.NewEntry()
	intervalEntry.SetText(state.cfg.Board.ScanInterval.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Poll Interval", Widget: intervalEntry},
		},
		OnSubmit: func() {
			if d, err := time.ParseDuration(intervalEntry.Text); err == nil && d > 0 {
				state.cfg.Board.ScanInterval = d
			}
			state.saveConfig()
			state.reconnect()
		},
	}

	return container.NewTabItem("Scan", form)
}

// createMockTab creates the simulated board tab.
func createMockTab(state *appState) *container.TabItem {
	mock := &state.cfg.Mock
	entries := []struct {
		label string
		value *float64
	}{
		{"Baseline", &mock.Baseline},
		{"Piece Field", &mock.PieceField},
		{"Spread", &mock.Spread},
		{"Noise Level", &mock.NoiseLevel},
		{"Sensor Variation", &mock.Variation},
	}

	form := &widget.Form{}
	widgets := make([]*widget.Entry, len(entries))
	for i, e := range entries {
		widgets[i] = widget.NewEntry()
		widgets[i].SetText(strconv.FormatFloat(*e.value, 'f', -1, 64))
		form.Append(e.label, widgets[i])
	}
	form.OnSubmit = func() {
		for i, e := range entries {
			if v, err := strconv.ParseFloat(widgets[i].Text, 64); err == nil {
				*e.value = v
			}
		}
		state.saveConfig()
		if state.useMock {
			state.reconnect()
		}
	}

	return container.NewTabItem("Mock", form)
}
