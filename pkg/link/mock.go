package link

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/itohio/hallboard/pkg/board"
	"github.com/itohio/hallboard/pkg/calib"
	"github.com/itohio/hallboard/pkg/command"
	"github.com/itohio/hallboard/pkg/controller"
	"github.com/itohio/hallboard/pkg/mux"
	"github.com/itohio/hallboard/pkg/nvm"
)

// Mock runs a simulated board in process: a mux.Mock behind a real
// scanner, controller and command handler.
type Mock struct {
	interval time.Duration
	log      zerolog.Logger
	sim      *mux.Mock
	ctrl     *controller.Controller
	handler  *command.Handler

	mu        sync.RWMutex
	frames    chan board.Frame
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool
}

// NewMock creates a simulated board scanning every interval while
// connected. dev may be nil for volatile storage.
func NewMock(cfg *mux.MockConfig, interval time.Duration, dev nvm.Device, log zerolog.Logger) (*Mock, error) {
	sim, err := mux.NewMock(cfg, nil)
	if err != nil {
		return nil, err
	}
	scanner, err := mux.NewScanner(sim, mux.MinSettle, nil)
	if err != nil {
		return nil, err
	}
	if dev == nil {
		dev = nvm.NewMemory(calib.LayoutSize)
	}

	ctrl := controller.New(scanner, dev)
	if _, err := ctrl.Boot(); err != nil {
		return nil, fmt.Errorf("failed to boot simulated board: %w", err)
	}

	m := &Mock{
		interval: interval,
		log:      log.With().Str("device", "mock").Logger(),
		sim:      sim,
		ctrl:     ctrl,
		handler:  command.NewHandler(ctrl),
	}
	ctrl.OnFrame(m.deliver)
	return m, nil
}

// Board returns the simulated sensor matrix for placing and lifting pieces.
func (m *Mock) Board() *mux.Mock {
	return m.sim
}

// Connect starts the scan loop.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.frames = make(chan board.Frame, DefaultBufferSize)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.connected = true

	if m.interval > 0 {
		go func(done chan struct{}) {
			defer close(done)
			_ = m.ctrl.Run(ctx, m.interval, func(err error) {
				m.log.Warn().Err(err).Msg("scan failed")
			})
		}(m.done)
	} else {
		close(m.done)
	}
	return nil
}

// Close stops the scan loop and closes the frames channel.
func (m *Mock) Close() error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return nil
	}
	m.connected = false
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done

	m.mu.Lock()
	close(m.frames)
	m.mu.Unlock()
	return nil
}

// Frames returns the frames channel of the current connection.
func (m *Mock) Frames() <-chan board.Frame {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.frames
}

// IsConnected returns whether the scan loop is running.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Command executes line on the simulated board.
func (m *Mock) Command(ctx context.Context, line string) ([]string, error) {
	if !m.IsConnected() {
		return nil, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	_ = m.handler.ExecuteLine(&out, line)

	var body []string
	for _, l := range strings.Split(strings.TrimRight(out.String(), "\n"), "\n") {
		if end, err := statusLine(l); end {
			return body, err
		}
		if board.IsFrameLine(l) {
			if f, err := board.ParseFrame(l); err == nil {
				m.deliver(f)
				continue
			}
		}
		body = append(body, l)
	}
	return body, nil
}

func (m *Mock) deliver(f board.Frame) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.connected {
		return
	}
	select {
	case m.frames <- f:
	default:
		m.log.Debug().Msg("frames channel full, dropping frame")
	}
}
