// Package controller owns the board state: calibration, settings and the
// last raw scan. All operations are serialized by one mutex so a command
// session and the scan loop can share a controller.
package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/itohio/hallboard/pkg/board"
	"github.com/itohio/hallboard/pkg/calib"
	"github.com/itohio/hallboard/pkg/detect"
	"github.com/itohio/hallboard/pkg/nvm"
	"github.com/itohio/hallboard/pkg/settings"
)

// Scanner fills a matrix with one full scan.
type Scanner interface {
	Scan(dst *board.Matrix) error
}

// FrameFunc receives every frame produced by the scan loop.
type FrameFunc func(board.Frame)

// Controller binds a scanner and a storage device.
type Controller struct {
	scanner  Scanner
	dev      nvm.Device
	now      func() time.Time
	calib    *calib.Store
	settings *settings.Store

	mu      sync.Mutex
	raw     board.Matrix
	scanned bool
	last    board.Frame

	cbMu     sync.Mutex
	onFrames []FrameFunc
}

// New creates a controller. Call Boot before use to load persisted state.
func New(scanner Scanner, dev nvm.Device) *Controller {
	return &Controller{
		scanner:  scanner,
		dev:      dev,
		now:      time.Now,
		calib:    calib.NewStore(),
		settings: settings.New(dev),
	}
}

// Boot loads the settings and, when auto-load is enabled, all calibration.
func (c *Controller) Boot() (settings.Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.settings.Load()
	if err != nil {
		return s, err
	}
	if s.AutoLoad {
		if _, err := calib.Load(c.dev, c.calib.Table(), calib.AllKinds, nil); err != nil {
			return s, fmt.Errorf("failed to auto-load calibration: %w", err)
		}
	}
	return s, nil
}

// ScanAndClassify performs one scan and classifies it with the configured
// method. On a scan error the previous raw matrix is kept.
func (c *Controller) ScanAndClassify() (board.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scanLocked()
}

func (c *Controller) scanLocked() (board.Frame, error) {
	if err := c.scanner.Scan(&c.raw); err != nil {
		return c.last, fmt.Errorf("scan failed: %w", err)
	}
	c.scanned = true

	method := c.settings.Current().Method
	bitmap, debug := detect.Classify(&c.raw, c.calib.Table(), method)
	c.last = board.Frame{
		Time:   c.now(),
		Method: uint8(method),
		Bitmap: bitmap,
		Raw:    c.raw,
		Debug:  debug,
	}
	return c.last, nil
}

// Last returns the most recent frame and whether a scan has happened.
func (c *Controller) Last() (board.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.scanned
}

// Calibration returns the addressed calibration values.
func (c *Controller) Calibration(k calib.Kind, scope board.Scope) ([]calib.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calib.Get(k, scope)
}

// Table returns a copy of the whole calibration table.
func (c *Controller) Table() calib.Table {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.calib.Table()
}

// SetCalibration writes src into the addressed squares. The Current source
// uses the last scan, scanning once if there is none yet.
func (c *Controller) SetCalibration(k calib.Kind, scope board.Scope, src calib.Source) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if src.IsCurrent() && !c.scanned {
		if !k.Valid() {
			return fmt.Errorf("%w: %s", calib.ErrInvalidKind, k)
		}
		if err := scope.Validate(); err != nil {
			return err
		}
		if _, err := c.scanLocked(); err != nil {
			return err
		}
	}
	return c.calib.Set(k, scope, src, &c.raw)
}

// SaveCalibration persists one matrix or all of them.
func (c *Controller) SaveCalibration(k calib.Kind, progress calib.ProgressFunc) (calib.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return calib.Save(c.dev, c.calib.Table(), k, progress)
}

// LoadCalibration restores one matrix or all of them.
func (c *Controller) LoadCalibration(k calib.Kind, progress calib.ProgressFunc) (calib.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return calib.Load(c.dev, c.calib.Table(), k, progress)
}

// Setting returns the numeric value of a setting.
func (c *Controller) Setting(k settings.Key) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings.Get(k)
}

// Settings returns all settings.
func (c *Controller) Settings() settings.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings.Current()
}

// SetSetting validates and persists a setting.
func (c *Controller) SetSetting(k settings.Key, v int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings.Set(k, v)
}

// OnFrame registers a callback for frames produced by Run.
func (c *Controller) OnFrame(fn FrameFunc) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.onFrames = append(c.onFrames, fn)
}

// Run scans every interval until ctx is done. Scan errors are passed to
// onError, which may be nil, and the loop continues.
func (c *Controller) Run(ctx context.Context, interval time.Duration, onError func(error)) error {
	if interval <= 0 {
		return fmt.Errorf("invalid scan interval %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		frame, err := c.ScanAndClassify()
		if err != nil {
			if onError != nil {
				onError(err)
			}
		} else {
			c.notify(frame)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Controller) notify(f board.Frame) {
	c.cbMu.Lock()
	callbacks := append([]FrameFunc(nil), c.onFrames...)
	c.cbMu.Unlock()

	for _, fn := range callbacks {
		fn(f)
	}
}
