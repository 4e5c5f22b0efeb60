package link

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"

	"github.com/itohio/hallboard/pkg/board"
)

// responseBufferSize holds the longest response, a full-board calib get.
const responseBufferSize = 4 * board.Cells

// Serial talks to a board over a serial port using the command protocol.
type Serial struct {
	port     string
	baudRate int
	poll     time.Duration
	log      zerolog.Logger
	open     func() (io.ReadWriteCloser, error)

	mu        sync.RWMutex
	conn      io.ReadWriteCloser
	frames    chan board.Frame
	responses chan string
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool

	// one command in flight at a time
	cmdMu sync.Mutex
	// status lines still owed by cancelled commands on staleFor
	stale    int
	staleFor chan string
}

// NewSerial creates a serial link. When poll is positive a frame command is
// sent every poll interval while connected.
func NewSerial(port string, baudRate int, poll time.Duration, log zerolog.Logger) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}

	s := &Serial{
		port:     port,
		baudRate: baudRate,
		poll:     poll,
		log:      log.With().Str("port", port).Logger(),
	}
	s.open = func() (io.ReadWriteCloser, error) {
		return serial.Open(s.port, &serial.Mode{BaudRate: s.baudRate})
	}
	return s
}

// Connect opens the port and starts reading.
func (s *Serial) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return fmt.Errorf("already connected")
	}

	conn, err := s.open()
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.port, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.conn = conn
	s.frames = make(chan board.Frame, DefaultBufferSize)
	s.responses = make(chan string, responseBufferSize)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.connected = true

	go s.readLines(ctx, conn, s.frames, s.responses, s.done)
	if s.poll > 0 {
		go s.pollFrames(ctx)
	}

	s.log.Info().Int("baud", s.baudRate).Msg("connected")
	return nil
}

// Close closes the port and waits for the reader to stop.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}

	s.cancel()
	err := s.conn.Close()
	<-s.done

	s.conn = nil
	s.connected = false
	s.log.Info().Msg("disconnected")

	if err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}

// Frames returns the frames channel of the current connection.
func (s *Serial) Frames() <-chan board.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames
}

// IsConnected returns whether the port is open.
func (s *Serial) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Command sends line and collects the response.
func (s *Serial) Command(ctx context.Context, line string) ([]string, error) {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	s.mu.RLock()
	conn, responses, done, connected := s.conn, s.responses, s.done, s.connected
	s.mu.RUnlock()
	if !connected {
		return nil, ErrNotConnected
	}

	if err := s.skipStale(ctx, responses, done); err != nil {
		return nil, err
	}

	if _, err := io.WriteString(conn, line+"\n"); err != nil {
		return nil, fmt.Errorf("failed to send %q: %w", line, err)
	}

	var body []string
	for {
		select {
		case <-ctx.Done():
			s.stale++
			return body, ctx.Err()
		case <-done:
			return body, ErrClosed
		case l := <-responses:
			if end, err := statusLine(l); end {
				return body, err
			}
			body = append(body, l)
		}
	}
}

// skipStale consumes the rest of the responses of cancelled commands, up to
// their status lines, then drops output nobody waited for. Must be called
// with cmdMu held.
func (s *Serial) skipStale(ctx context.Context, responses chan string, done chan struct{}) error {
	if s.staleFor != responses {
		s.stale, s.staleFor = 0, responses
	}

	for s.stale > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return ErrClosed
		case l := <-responses:
			if end, _ := statusLine(l); end {
				s.stale--
			}
		}
	}

	for len(responses) > 0 {
		<-responses
	}
	return nil
}

// readLines splits incoming lines into frames and response lines. It owns
// and closes frames.
func (s *Serial) readLines(ctx context.Context, r io.Reader, frames chan<- board.Frame, responses chan<- string, done chan<- struct{}) {
	defer close(done)
	defer close(frames)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if board.IsFrameLine(line) {
			f, err := board.ParseFrame(line)
			if err != nil {
				s.log.Warn().Err(err).Msg("failed to parse frame")
				continue
			}
			select {
			case frames <- f:
			default:
				s.log.Debug().Msg("frames channel full, dropping frame")
			}
			continue
		}

		select {
		case responses <- line:
		case <-ctx.Done():
			return
		default:
			s.log.Warn().Str("line", line).Msg("unsolicited output dropped")
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		s.log.Error().Err(err).Msg("failed to read from serial port")
	}
}

func (s *Serial) pollFrames(ctx context.Context) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cmdCtx, cancel := context.WithTimeout(ctx, 2*s.poll+time.Second)
			_, err := s.Command(cmdCtx, "frame")
			cancel()
			if err != nil && ctx.Err() == nil {
				s.log.Warn().Err(err).Msg("frame poll failed")
			}
		}
	}
}
