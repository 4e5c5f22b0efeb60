package calib

import (
	"fmt"

	"github.com/itohio/hallboard/pkg/board"
	"github.com/itohio/hallboard/pkg/nvm"
)

// Non-volatile layout. Changing the region order or the board dimensions
// invalidates stored calibration and must bump LayoutVersion.
const (
	LayoutVersion = 1

	// RegionSize is the size of one matrix: a big-endian uint16 per square,
	// row-major.
	RegionSize = board.Cells * 2

	// SettingsOffset is where the settings region starts, right after the
	// four calibration regions.
	SettingsOffset = NumKinds * RegionSize
	// SettingsSize is the size of the settings region.
	SettingsSize = 2

	// LayoutSize is the minimum device size.
	LayoutSize = SettingsOffset + SettingsSize
)

// RegionOffset returns the first byte of the matrix region for k.
func RegionOffset(k Kind) (int, error) {
	if !k.Valid() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidKind, k)
	}
	return int(k) * RegionSize, nil
}

// Result counts the bytes covered by a save or load and, for saves, the
// bytes that were physically written.
type Result struct {
	Bytes   int
	Written int
}

func (r *Result) add(o Result) {
	r.Bytes += o.Bytes
	r.Written += o.Written
}

// Progress is reported after each matrix of a save or load. Total is
// cumulative.
type Progress struct {
	Step  int // 1-based
	Steps int
	Kind  Kind
	Total Result
}

// ProgressFunc receives progress updates; nil is allowed.
type ProgressFunc func(Progress)

// Save writes one matrix, or all four in region order for AllKinds, using
// change-aware writes.
func Save(dev nvm.Device, t *Table, k Kind, progress ProgressFunc) (Result, error) {
	return each(dev, k, progress, func(k Kind, off int) (Result, error) {
		m, err := t.Matrix(k)
		if err != nil {
			return Result{}, err
		}
		return saveMatrix(dev, off, m)
	})
}

// Load reads one matrix, or all four in region order for AllKinds. A matrix
// is only replaced once its whole region has been read. Values are clamped to
// the reading domain so erased cells load as board.MaxReading.
func Load(dev nvm.Device, t *Table, k Kind, progress ProgressFunc) (Result, error) {
	return each(dev, k, progress, func(k Kind, off int) (Result, error) {
		m, err := t.Matrix(k)
		if err != nil {
			return Result{}, err
		}
		return loadMatrix(dev, off, m)
	})
}

func each(dev nvm.Device, k Kind, progress ProgressFunc, fn func(Kind, int) (Result, error)) (Result, error) {
	if dev.Size() < LayoutSize {
		return Result{}, fmt.Errorf("storage too small: %d bytes, layout needs %d", dev.Size(), LayoutSize)
	}

	kinds := []Kind{k}
	if k == AllKinds {
		kinds = Kinds()
	}

	var total Result
	for i, k := range kinds {
		off, err := RegionOffset(k)
		if err != nil {
			return total, err
		}
		r, err := fn(k, off)
		total.add(r)
		if err != nil {
			return total, fmt.Errorf("%s region: %w", k, err)
		}
		if progress != nil {
			progress(Progress{Step: i + 1, Steps: len(kinds), Kind: k, Total: total})
		}
	}
	return total, nil
}

func saveMatrix(dev nvm.Device, off int, m *board.Matrix) (Result, error) {
	var r Result
	for row := range board.Rows {
		for col := range board.Cols {
			v := m[row][col]
			addr := off + board.Index(row, col)*2
			for i, b := range [2]byte{byte(v >> 8), byte(v)} {
				written, err := nvm.Update(dev, addr+i, b)
				if err != nil {
					return r, err
				}
				r.Bytes++
				if written {
					r.Written++
				}
			}
		}
	}
	return r, nil
}

func loadMatrix(dev nvm.Device, off int, m *board.Matrix) (Result, error) {
	var (
		r   Result
		tmp board.Matrix
	)
	for row := range board.Rows {
		for col := range board.Cols {
			addr := off + board.Index(row, col)*2
			hi, err := dev.Load(addr)
			if err != nil {
				return r, err
			}
			lo, err := dev.Load(addr + 1)
			if err != nil {
				return r, err
			}
			r.Bytes += 2
			tmp[row][col] = min(uint16(hi)<<8|uint16(lo), board.MaxReading)
		}
	}
	*m = tmp
	return r, nil
}
