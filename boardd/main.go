// Command boardd runs the board on a host: it scans the sensor matrix, serves
// the command interface on a serial port or stdin and optionally publishes
// occupancy changes to MQTT and a sqlite journal.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"

	"github.com/itohio/hallboard/pkg/board"
	"github.com/itohio/hallboard/pkg/command"
	"github.com/itohio/hallboard/pkg/config"
	"github.com/itohio/hallboard/pkg/controller"
	"github.com/itohio/hallboard/pkg/journal"
	"github.com/itohio/hallboard/pkg/mux"
	"github.com/itohio/hallboard/pkg/publish"
	"github.com/itohio/hallboard/pkg/stream"
)

func main() {
	var (
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		portFlag   = flag.String("p", "", "Serial port to serve commands on (overrides serial.port)")
		stdioFlag  = flag.Bool("stdio", false, "Serve commands on stdin/stdout instead of the serial port")
		mockFlag   = flag.Bool("mock", false, "Scan a simulated board instead of the hardware")
		levelFlag  = flag.String("log-level", "", "Log level (overrides log.level)")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		boot := bootLogger(false)
		boot.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *levelFlag != "" {
		cfg.Log.Level = *levelFlag
	}

	log := bootLogger(cfg.Log.JSON)
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		log = log.Level(level)
	} else {
		log.Warn().Str("level", cfg.Log.Level).Msg("unknown log level")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *mockFlag, *stdioFlag, log); err != nil {
		log.Fatal().Err(err).Msg("boardd failed")
	}
}

func bootLogger(json bool) zerolog.Logger {
	if json {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).With().Timestamp().Logger()
}

func run(ctx context.Context, cfg *config.Config, mock, stdio bool, log zerolog.Logger) error {
	order, err := cfg.Board.Order()
	if err != nil {
		return err
	}

	hw := &hardware{log: log}
	defer hw.Close()

	var port mux.Port
	if mock {
		port, err = mux.NewMock(&cfg.Mock, order)
		log.Info().Msg("scanning simulated board")
	} else {
		port, err = hw.openPort(&cfg.Pins)
	}
	if err != nil {
		return err
	}

	scanner, err := mux.NewScanner(port, cfg.Board.Settle, order)
	if err != nil {
		return err
	}

	dev, err := hw.openStorage(&cfg.Storage)
	if err != nil {
		return err
	}

	ctrl := controller.New(scanner, dev)
	s, err := ctrl.Boot()
	if err != nil {
		return err
	}
	log.Info().Bool("autoload", s.AutoLoad).Stringer("method", s.Method).Str("storage", cfg.Storage.Backend).Msg("board ready")

	sinks, err := startSinks(cfg, ctrl, log)
	if err != nil {
		return err
	}
	defer sinks.Close()

	go serve(ctx, cfg, stdio, command.NewHandler(ctrl), log)

	err = ctrl.Run(ctx, cfg.Board.ScanInterval, func(err error) {
		log.Error().Err(err).Msg("scan failed")
	})
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("shutting down")
		return nil
	}
	return err
}

// serve runs command sessions until ctx is done. A serial session that ends
// with an error is reopened after a second.
func serve(ctx context.Context, cfg *config.Config, stdio bool, h *command.Handler, log zerolog.Logger) {
	if stdio || cfg.Serial.Port == "" {
		log.Info().Msg("serving commands on stdin")
		if err := h.Serve(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("stdin session failed")
		}
		return
	}

	for ctx.Err() == nil {
		rw, err := serial.Open(cfg.Serial.Port, &serial.Mode{BaudRate: cfg.Serial.Baud})
		if err != nil {
			log.Error().Err(err).Str("port", cfg.Serial.Port).Msg("failed to open serial port")
		} else {
			log.Info().Str("port", cfg.Serial.Port).Int("baud", cfg.Serial.Baud).Msg("serving commands")
			err = serveSession(ctx, h, rw)
			if err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("serial session ended")
			}
		}

		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
	}
}

// serveSession runs one session and closes rw when ctx is done so a blocked
// read returns.
func serveSession(ctx context.Context, h *command.Handler, rw io.ReadWriteCloser) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		rw.Close()
	}()
	return h.Serve(ctx, rw, rw)
}

// sinks receives the frames of the scan loop and feeds the change consumers.
type sinks struct {
	frames  chan board.Frame
	done    chan struct{}
	closers []io.Closer
	log     zerolog.Logger
}

// startSinks connects the enabled consumers. Frames are dropped when the
// pipeline is behind so the scan loop never blocks.
func startSinks(cfg *config.Config, ctrl *controller.Controller, log zerolog.Logger) (*sinks, error) {
	s := &sinks{done: make(chan struct{}), log: log}

	var consumers []func(<-chan stream.Change)
	if cfg.MQTT.Enabled {
		p, err := publish.Connect(cfg.MQTT, log)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, p)
		consumers = append(consumers, p.Run)
	}
	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path, "boardd", log)
		if err != nil {
			s.closeAll()
			return nil, err
		}
		log.Info().Str("path", cfg.Journal.Path).Str("session", j.SessionID()).Msg("journal opened")
		s.closers = append(s.closers, j)
		consumers = append(consumers, j.Run)
	}
	if len(consumers) == 0 {
		close(s.done)
		return s, nil
	}

	s.frames = make(chan board.Frame, stream.DefaultBufferSize)
	outs := stream.Tee(stream.NewConverter(stream.DefaultBufferSize)(s.frames), len(consumers), stream.DefaultBufferSize)

	remaining := make(chan struct{}, len(consumers))
	for i, consume := range consumers {
		go func() {
			consume(outs[i])
			remaining <- struct{}{}
		}()
	}
	go func() {
		for range consumers {
			<-remaining
		}
		close(s.done)
	}()

	ctrl.OnFrame(func(f board.Frame) {
		select {
		case s.frames <- f:
		default:
			log.Debug().Msg("change pipeline busy, frame dropped")
		}
	})
	return s, nil
}

// Close drains the pipeline and closes the consumers. The scan loop must
// have stopped.
func (s *sinks) Close() error {
	if s.frames != nil {
		close(s.frames)
	}
	<-s.done
	s.closeAll()
	return nil
}

func (s *sinks) closeAll() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.log.Warn().Err(err).Msg("close failed")
		}
	}
}
