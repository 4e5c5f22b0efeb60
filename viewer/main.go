package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"

	"github.com/itohio/hallboard/pkg/board"
	"github.com/itohio/hallboard/pkg/boardview"
	"github.com/itohio/hallboard/pkg/calib"
	"github.com/itohio/hallboard/pkg/config"
	"github.com/itohio/hallboard/pkg/detect"
	"github.com/itohio/hallboard/pkg/link"
	"github.com/itohio/hallboard/pkg/nvm"
)

const commandTimeout = 5 * time.Second

func main() {
	var (
		portFlag   = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag   = flag.Bool("mock", false, "Use a simulated board instead of the serial port")
		pollFlag   = flag.Duration("poll", 0, "Frame poll interval (overrides board.scan_interval)")
	)
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).With().Timestamp().Logger()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		log = log.Level(level)
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *pollFlag > 0 {
		cfg.Board.ScanInterval = *pollFlag
	}

	application := app.NewWithID("com.itohio.hallboard")
	window := application.NewWindow("Hall Board")
	window.Resize(fyne.NewSize(720, 800))
	window.CenterOnScreen()

	state := &appState{
		cfg:        cfg,
		configPath: *configFlag,
		window:     window,
		useMock:    *mockFlag,
		log:        log,
		status:     widget.NewLabel("disconnected"),
		detail:     widget.NewLabel(""),
	}
	state.boardWidget = boardview.New(state.handleSquareTapped)

	window.SetContent(container.NewBorder(
		createToolbar(state),
		container.NewVBox(state.detail, state.status),
		nil,
		nil,
		state.boardWidget,
	))
	window.SetOnClosed(func() { state.disconnect() })
	window.ShowAndRun()
}

// appState holds the application state.
type appState struct {
	cfg         *config.Config
	configPath  string
	window      fyne.Window
	boardWidget *boardview.BoardWidget
	status      *widget.Label // latest frame
	detail      *widget.Label // tapped square
	connectBtn  *widget.Button
	calibBtn    *widget.Button
	useMock     bool
	log         zerolog.Logger

	mu       sync.Mutex
	device   link.Device
	mock     *link.Mock // set when device is simulated
	nvFile   *nvm.File
	consumer chan struct{}
}

// createToolbar creates the toolbar: connect, settings, calibration and the
// display mode selector.
func createToolbar(state *appState) fyne.CanvasObject {
	state.connectBtn = widget.NewButtonWithIcon("", theme.LoginIcon(), func() {
		handleConnect(state)
	})

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	state.calibBtn = widget.NewButtonWithIcon("Calibrate", theme.DocumentSaveIcon(), func() {
		showCalibrationDialog(state)
	})
	state.calibBtn.Disable()

	modes := make([]string, 0, len(boardview.Modes()))
	for _, m := range boardview.Modes() {
		modes = append(modes, m.String())
	}
	modeSelect := widget.NewSelect(modes, func(selected string) {
		for _, m := range boardview.Modes() {
			if m.String() == selected {
				state.boardWidget.SetMode(m)
			}
		}
	})
	modeSelect.SetSelected(boardview.Occupancy.String())

	return container.NewBorder(
		nil,
		nil,
		container.NewHBox(state.connectBtn, settingsBtn, state.calibBtn),
		modeSelect,
		nil,
	)
}

func (s *appState) currentDevice() link.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// command runs one command line on the connected board.
func (s *appState) command(line string) ([]string, error) {
	dev := s.currentDevice()
	if dev == nil {
		return nil, link.ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	body, err := dev.Command(ctx, line)
	if err != nil {
		s.log.Warn().Err(err).Str("command", line).Msg("command failed")
	}
	return body, err
}

// handleConnect toggles the connection.
func handleConnect(state *appState) {
	if dev := state.currentDevice(); dev != nil && dev.IsConnected() {
		state.disconnect()
		state.status.SetText("disconnected")
		state.connectBtn.SetIcon(theme.LoginIcon())
		state.calibBtn.Disable()
		return
	}

	var (
		device link.Device
		mock   *link.Mock
	)
	if state.useMock {
		m, err := state.newMock()
		if err != nil {
			dialog.ShowError(fmt.Errorf("failed to create simulated board: %w", err), state.window)
			return
		}
		device, mock = m, m
	} else {
		device = link.NewSerial(state.cfg.Serial.Port, state.cfg.Serial.Baud, state.cfg.Board.ScanInterval, state.log)
	}

	if err := device.Connect(); err != nil {
		dialog.ShowError(fmt.Errorf("failed to connect: %w", err), state.window)
		return
	}

	done := make(chan struct{})
	state.mu.Lock()
	state.device = device
	state.mock = mock
	state.consumer = done
	state.mu.Unlock()

	go state.consumeFrames(device.Frames(), done)
	state.connectBtn.SetIcon(theme.LogoutIcon())
	state.calibBtn.Enable()
	if mock != nil {
		state.detail.SetText("simulated board: tap a square to place or lift a piece")
	} else {
		state.detail.SetText("connected to " + state.cfg.Serial.Port + ": tap a square to inspect its calibration")
	}
}

// disconnect closes the device and waits for the frame consumer.
func (s *appState) disconnect() {
	s.mu.Lock()
	dev, done := s.device, s.consumer
	s.device, s.mock, s.consumer = nil, nil, nil
	s.mu.Unlock()

	if dev == nil {
		return
	}
	if err := dev.Close(); err != nil {
		s.log.Warn().Err(err).Msg("close failed")
	}
	<-done

	if s.nvFile != nil {
		if err := s.nvFile.Close(); err != nil {
			s.log.Warn().Err(err).Msg("failed to close storage file")
		}
		s.nvFile = nil
	}
}

// newMock creates a simulated board. With file storage configured its
// calibration persists in the same image file boardd uses.
func (s *appState) newMock() (*link.Mock, error) {
	var dev nvm.Device
	if s.cfg.Storage.Backend == config.StorageFile {
		f, err := nvm.OpenFile(s.cfg.Storage.Path, calib.LayoutSize)
		if err != nil {
			return nil, err
		}
		s.nvFile = f
		dev = f
	}
	m, err := link.NewMock(&s.cfg.Mock, s.cfg.Board.ScanInterval, dev, s.log)
	if err != nil && s.nvFile != nil {
		s.nvFile.Close()
		s.nvFile = nil
	}
	return m, err
}

// consumeFrames updates the widget with every frame until the channel is
// closed.
func (s *appState) consumeFrames(frames <-chan board.Frame, done chan struct{}) {
	defer close(done)
	for f := range frames {
		fyne.Do(func() {
			s.boardWidget.SetFrame(f)
			s.status.SetText(describeFrame(&f))
		})
	}
}

func describeFrame(f *board.Frame) string {
	occupied := f.Bitmap.Squares()
	names := make([]string, len(occupied))
	for i, sq := range occupied {
		names[i] = sq.String()
	}
	return fmt.Sprintf("%s  method %s  %d occupied: %s",
		f.Time.Format(time.TimeOnly), detect.Method(f.Method), len(occupied), strings.Join(names, " "))
}

// handleSquareTapped toggles a piece on the simulated board, or selects the
// square for calibration on a real one.
func (s *appState) handleSquareTapped(sq board.Square) {
	s.mu.Lock()
	mock := s.mock
	s.mu.Unlock()

	if mock != nil {
		sim := mock.Board()
		if sim.Pieces().Occupied(sq.Row, sq.Col) {
			sim.Lift(sq.Row, sq.Col)
		} else {
			sim.Place(sq.Row, sq.Col)
		}
		return
	}

	s.boardWidget.Select(&sq)
	go func() {
		text := squareSummary(s, sq)
		fyne.Do(func() { s.detail.SetText(text) })
	}()
}
