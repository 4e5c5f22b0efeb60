package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/hallboard/pkg/board"
	"github.com/itohio/hallboard/pkg/calib"
	"github.com/itohio/hallboard/pkg/detect"
	"github.com/itohio/hallboard/pkg/mux"
	"github.com/itohio/hallboard/pkg/nvm"
	"github.com/itohio/hallboard/pkg/settings"
)

type fakeScanner struct {
	mu    sync.Mutex
	raw   board.Matrix
	err   error
	scans int
}

func (f *fakeScanner) Scan(dst *board.Matrix) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++
	if f.err != nil {
		return f.err
	}
	*dst = f.raw
	return nil
}

func (f *fakeScanner) fill(v uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw.Fill(v)
}

func newController(t *testing.T) (*Controller, *fakeScanner, *nvm.Memory) {
	t.Helper()
	sc := &fakeScanner{}
	mem := nvm.NewMemory(calib.LayoutSize)
	c := New(sc, mem)
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	_, err := c.Boot()
	require.NoError(t, err)
	return c, sc, mem
}

func calibrate(t *testing.T, c *Controller, present, empty, margin int) {
	t.Helper()
	all := board.Everything()
	require.NoError(t, c.SetCalibration(calib.Present, all, calib.Literal(present)))
	require.NoError(t, c.SetCalibration(calib.Empty, all, calib.Literal(empty)))
	require.NoError(t, c.SetCalibration(calib.PresentMargin, all, calib.Literal(margin)))
	require.NoError(t, c.SetCalibration(calib.EmptyMargin, all, calib.Literal(margin)))
}

func TestBoot_ErasedStorage(t *testing.T) {
	c, _, _ := newController(t)

	s := c.Settings()
	assert.False(t, s.AutoLoad)
	assert.Equal(t, detect.CheckBoth, s.Method)
	assert.Equal(t, calib.Table{}, c.Table())
}

func TestBoot_AutoLoad(t *testing.T) {
	c, _, mem := newController(t)
	calibrate(t, c, 900, 100, 10)
	_, err := c.SaveCalibration(calib.AllKinds, nil)
	require.NoError(t, err)
	require.NoError(t, c.SetSetting(settings.AutoLoad, 1))
	require.NoError(t, c.SetSetting(settings.Method, int(detect.CheckPresent)))

	rebooted := New(&fakeScanner{}, mem)
	s, err := rebooted.Boot()
	require.NoError(t, err)
	assert.True(t, s.AutoLoad)
	assert.Equal(t, detect.CheckPresent, s.Method)
	assert.Equal(t, c.Table(), rebooted.Table())

	// without auto-load the table stays zeroed
	require.NoError(t, c.SetSetting(settings.AutoLoad, 0))
	rebooted = New(&fakeScanner{}, mem)
	_, err = rebooted.Boot()
	require.NoError(t, err)
	assert.Equal(t, calib.Table{}, rebooted.Table())
}

func TestScanAndClassify_AllZeroRaw(t *testing.T) {
	c, _, _ := newController(t)
	calibrate(t, c, 900, 100, 10)
	require.NoError(t, c.SetSetting(settings.Method, int(detect.CheckPresent)))

	f, err := c.ScanAndClassify()
	require.NoError(t, err)
	assert.Equal(t, board.Bitmap(0), f.Bitmap)
	assert.Equal(t, uint8(detect.CheckPresent), f.Method)
	assert.Equal(t, time.Unix(1700000000, 0), f.Time)
	for row := range board.Rows {
		for col := range board.Cols {
			assert.Equal(t, board.BelowEmpty, f.Debug[row][col])
		}
	}
}

func TestScanAndClassify_MethodFlip(t *testing.T) {
	c, sc, _ := newController(t)
	calibrate(t, c, 900, 100, 10)
	sc.fill(500)

	f, err := c.ScanAndClassify()
	require.NoError(t, err)
	assert.Zero(t, f.Bitmap.Count(), "CheckBoth needs the reading in both bands")

	require.NoError(t, c.SetSetting(settings.Method, int(detect.CheckEither)))
	f, err = c.ScanAndClassify()
	require.NoError(t, err)
	assert.Equal(t, board.Cells, f.Bitmap.Count())
	assert.Equal(t, board.Between, f.Debug[4][4])
}

func TestScanAndClassify_ErrorKeepsLastFrame(t *testing.T) {
	c, sc, _ := newController(t)
	sc.fill(321)
	first, err := c.ScanAndClassify()
	require.NoError(t, err)

	sc.err = errors.New("adc timeout")
	got, err := c.ScanAndClassify()
	require.Error(t, err)
	assert.Equal(t, first, got)

	last, ok := c.Last()
	assert.True(t, ok)
	assert.Equal(t, uint16(321), last.Raw[7][7])
}

func TestSetCalibration_CurrentScansOnce(t *testing.T) {
	c, sc, _ := newController(t)
	sc.fill(640)

	require.NoError(t, c.SetCalibration(calib.Empty, board.Row(2), calib.Current))
	assert.Equal(t, 1, sc.scans)

	entries, err := c.Calibration(calib.Empty, board.Row(2))
	require.NoError(t, err)
	require.Len(t, entries, board.Cols)
	for _, e := range entries {
		assert.Equal(t, uint16(640), e.Value)
	}

	// a second Current reuses the existing scan
	sc.fill(100)
	require.NoError(t, c.SetCalibration(calib.Present, board.Cell(0, 0), calib.Current))
	assert.Equal(t, 1, sc.scans)
	entries, err = c.Calibration(calib.Present, board.Cell(0, 0))
	require.NoError(t, err)
	assert.Equal(t, uint16(640), entries[0].Value)
}

func TestSetCalibration_InvalidRequestDoesNotScan(t *testing.T) {
	c, sc, _ := newController(t)

	err := c.SetCalibration(calib.Kind(9), board.Everything(), calib.Current)
	assert.ErrorIs(t, err, calib.ErrInvalidKind)
	err = c.SetCalibration(calib.Empty, board.Cell(8, 0), calib.Current)
	assert.ErrorIs(t, err, board.ErrInvalidCoordinate)
	assert.Zero(t, sc.scans)
}

func TestSaveCalibration_UnchangedWritesNothing(t *testing.T) {
	c, _, mem := newController(t)
	calibrate(t, c, 900, 100, 10)

	r, err := c.SaveCalibration(calib.AllKinds, nil)
	require.NoError(t, err)
	assert.Equal(t, calib.NumKinds*calib.RegionSize, r.Bytes)
	assert.Positive(t, r.Written)

	mem.ResetCounters()
	r, err = c.SaveCalibration(calib.AllKinds, nil)
	require.NoError(t, err)
	assert.Zero(t, r.Written)
	assert.Zero(t, mem.Writes)
}

func TestLoadCalibration_RestoresSaved(t *testing.T) {
	c, _, _ := newController(t)
	calibrate(t, c, 900, 100, 10)
	saved := c.Table()
	_, err := c.SaveCalibration(calib.AllKinds, nil)
	require.NoError(t, err)

	calibrate(t, c, 0, 0, 0)
	var steps []calib.Kind
	_, err = c.LoadCalibration(calib.AllKinds, func(p calib.Progress) { steps = append(steps, p.Kind) })
	require.NoError(t, err)
	assert.Equal(t, saved, c.Table())
	assert.Equal(t, calib.Kinds(), steps)
}

func TestSetting_Rejected(t *testing.T) {
	c, _, _ := newController(t)

	assert.ErrorIs(t, c.SetSetting(settings.Method, 4), settings.ErrInvalidSettingValue)
	v, err := c.Setting(settings.Method)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestRun_NotifiesFrames(t *testing.T) {
	c, sc, _ := newController(t)
	sc.fill(10)

	frames := make(chan board.Frame, 16)
	c.OnFrame(func(f board.Frame) {
		select {
		case frames <- f:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, time.Millisecond, nil) }()

	select {
	case f := <-frames:
		assert.Equal(t, uint16(10), f.Raw[0][0])
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRun_ReportsErrors(t *testing.T) {
	c, sc, _ := newController(t)
	sc.err = errors.New("bus error")

	errs := make(chan error, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = c.Run(ctx, time.Millisecond, func(err error) {
			select {
			case errs <- err:
			default:
			}
		})
	}()

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "bus error")
	case <-time.After(time.Second):
		t.Fatal("no error reported")
	}
}

func TestRun_InvalidInterval(t *testing.T) {
	c, _, _ := newController(t)
	assert.Error(t, c.Run(context.Background(), 0, nil))
}

func TestController_MockBoardCalibration(t *testing.T) {
	cfg := mux.DefaultMockConfig()
	cfg.NoiseLevel = 0
	cfg.Pieces = nil
	sim, err := mux.NewMock(&cfg, nil)
	require.NoError(t, err)
	scanner, err := mux.NewScanner(sim, mux.MinSettle, nil)
	require.NoError(t, err)

	c := New(scanner, nvm.NewMemory(calib.LayoutSize))
	_, err = c.Boot()
	require.NoError(t, err)

	all := board.Everything()
	_, err = c.ScanAndClassify()
	require.NoError(t, err)
	require.NoError(t, c.SetCalibration(calib.Empty, all, calib.Current))

	for row := range board.Rows {
		for col := range board.Cols {
			sim.Place(row, col)
		}
	}
	_, err = c.ScanAndClassify()
	require.NoError(t, err)
	require.NoError(t, c.SetCalibration(calib.Present, all, calib.Current))
	require.NoError(t, c.SetCalibration(calib.PresentMargin, all, calib.Literal(40)))
	require.NoError(t, c.SetCalibration(calib.EmptyMargin, all, calib.Literal(40)))
	require.NoError(t, c.SetSetting(settings.Method, int(detect.CheckEither)))

	sim.SetPieces(0)
	sim.Place(1, 4)
	sim.Place(6, 3)
	f, err := c.ScanAndClassify()
	require.NoError(t, err)
	assert.Equal(t, sim.Pieces(), f.Bitmap)
}
