package main

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"

	"github.com/itohio/hallboard/pkg/board"
	"github.com/itohio/hallboard/pkg/calib"
	"github.com/itohio/hallboard/pkg/config"
	"github.com/itohio/hallboard/pkg/mux"
	"github.com/itohio/hallboard/pkg/nvm"
)

// Sensor supply and conversion rate of the row inputs.
const (
	sensorSupply = 5 * physic.Volt
	sampleRate   = 860 * physic.Hertz
)

var adcChannels = [...]ads1x15.Channel{ads1x15.Channel0, ads1x15.Channel1, ads1x15.Channel2, ads1x15.Channel3}

// hardware owns the host resources opened by boardd.
type hardware struct {
	log     zerolog.Logger
	inited  bool
	buses   map[string]i2c.BusCloser
	port    *mux.PeriphPort
	closers []io.Closer
}

func (h *hardware) init() error {
	if h.inited {
		return nil
	}
	state, err := host.Init()
	if err != nil {
		return fmt.Errorf("failed to initialize periph host: %w", err)
	}
	for _, d := range state.Loaded {
		h.log.Debug().Str("driver", d.String()).Msg("periph driver loaded")
	}
	h.inited = true
	return nil
}

// bus opens an I2C bus once; an empty name selects the first bus.
func (h *hardware) bus(name string) (i2c.Bus, error) {
	if err := h.init(); err != nil {
		return nil, err
	}
	if b, ok := h.buses[name]; ok {
		return b, nil
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %q: %w", name, err)
	}
	if h.buses == nil {
		h.buses = make(map[string]i2c.BusCloser)
	}
	h.buses[name] = b
	return b, nil
}

// openPort configures the address lines and two ADS1115 converters, four
// rows each.
func (h *hardware) openPort(cfg *config.PinsConfig) (*mux.PeriphPort, error) {
	if err := h.init(); err != nil {
		return nil, err
	}
	if len(cfg.Address) != mux.AddressBits {
		return nil, fmt.Errorf("expected %d address pins, got %d", mux.AddressBits, len(cfg.Address))
	}
	if len(cfg.ADCAddresses)*len(adcChannels) != board.Rows {
		return nil, fmt.Errorf("expected %d ADS1115 addresses, got %d", board.Rows/len(adcChannels), len(cfg.ADCAddresses))
	}

	var address [mux.AddressBits]gpio.PinOut
	for i, name := range cfg.Address {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("unknown address pin %q", name)
		}
		address[i] = p
	}

	var inhibit gpio.PinOut
	if cfg.Inhibit != "" {
		p := gpioreg.ByName(cfg.Inhibit)
		if p == nil {
			return nil, fmt.Errorf("unknown inhibit pin %q", cfg.Inhibit)
		}
		inhibit = p
	}

	bus, err := h.bus(cfg.ADCBus)
	if err != nil {
		return nil, err
	}

	var rows [board.Rows]analog.PinADC
	for i, addr := range cfg.ADCAddresses {
		adc, err := ads1x15.NewADS1115(bus, &ads1x15.Opts{I2cAddress: addr})
		if err != nil {
			return nil, fmt.Errorf("failed to open ADS1115 at %#x: %w", addr, err)
		}
		for j, ch := range adcChannels {
			pin, err := adc.PinForChannel(ch, sensorSupply, sampleRate, ads1x15.BestQuality)
			if err != nil {
				return nil, fmt.Errorf("failed to configure ADS1115 %#x channel %d: %w", addr, j, err)
			}
			rows[i*len(adcChannels)+j] = pin
			h.closers = append(h.closers, haltCloser{pin})
		}
	}

	port, err := mux.NewPeriphPort(address, inhibit, rows)
	if err != nil {
		return nil, err
	}
	h.port = port
	h.log.Info().Strs("address", cfg.Address).Str("inhibit", cfg.Inhibit).Msg("multiplexers configured")
	return port, nil
}

// openStorage opens the configured non-volatile device.
func (h *hardware) openStorage(cfg *config.StorageConfig) (nvm.Device, error) {
	size := max(cfg.Size, calib.LayoutSize)
	switch cfg.Backend {
	case config.StorageMemory:
		h.log.Warn().Msg("calibration is not persisted with memory storage")
		return nvm.NewMemory(size), nil
	case config.StorageFile:
		f, err := nvm.OpenFile(cfg.Path, size)
		if err != nil {
			return nil, err
		}
		h.closers = append(h.closers, f)
		return f, nil
	case config.StorageEEPROM:
		bus, err := h.bus(cfg.Bus)
		if err != nil {
			return nil, err
		}
		return nvm.NewEEPROM(bus, cfg.Address, cfg.Size), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Close halts the multiplexers and releases everything that was opened.
func (h *hardware) Close() error {
	if h.port != nil {
		if err := h.port.Halt(); err != nil {
			h.log.Warn().Err(err).Msg("failed to halt multiplexers")
		}
	}
	for _, c := range h.closers {
		if err := c.Close(); err != nil {
			h.log.Warn().Err(err).Msg("close failed")
		}
	}
	for name, b := range h.buses {
		if err := b.Close(); err != nil {
			h.log.Warn().Err(err).Str("bus", name).Msg("failed to close I2C bus")
		}
	}
	return nil
}

type haltCloser struct {
	p interface{ Halt() error }
}

func (c haltCloser) Close() error { return c.p.Halt() }
