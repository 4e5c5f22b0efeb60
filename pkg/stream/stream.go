// Package stream turns a stream of frames into a stream of occupancy
// changes.
package stream

import (
	"sync"
	"time"

	"github.com/itohio/hallboard/pkg/board"
)

// DefaultBufferSize is used when a non-positive buffer size is given.
const DefaultBufferSize = 16

// Change is an occupancy change between two consecutive distinct bitmaps.
type Change struct {
	Time   time.Time
	Method uint8
	Bitmap board.Bitmap
	Placed board.Bitmap
	Lifted board.Bitmap
	// Initial marks the first observed position, where Placed holds every
	// occupied square.
	Initial bool
}

// Tracker compares consecutive bitmaps.
type Tracker struct {
	prev board.Bitmap
	seen bool
}

// Observe returns the change caused by f, if any. The first frame always
// yields an initial change.
func (t *Tracker) Observe(f board.Frame) (Change, bool) {
	if t.seen && f.Bitmap == t.prev {
		return Change{}, false
	}

	c := Change{Time: f.Time, Method: f.Method, Bitmap: f.Bitmap, Initial: !t.seen}
	c.Placed, c.Lifted = f.Bitmap.Diff(t.prev)
	t.prev = f.Bitmap
	t.seen = true
	return c, true
}

// Reset forgets the previous bitmap.
func (t *Tracker) Reset() {
	*t = Tracker{}
}

// Converter transforms a frame channel into a change channel.
type Converter func(in <-chan board.Frame) <-chan Change

// DropTimeout is how long a converter waits for a stalled consumer before
// holding the change back.
const DropTimeout = time.Second

// NewConverter creates a converter. The output is closed once the input is
// closed. A change the consumer does not take within DropTimeout is held
// back and merged into the next one, so the consumer still sees the net
// placed and lifted squares.
func NewConverter(bufSize int) Converter {
	return newConverter(bufSize, DropTimeout)
}

func newConverter(bufSize int, timeout time.Duration) Converter {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	return func(in <-chan board.Frame) <-chan Change {
		out := make(chan Change, bufSize)

		go func() {
			defer close(out)

			var (
				tracker Tracker
				pending Change
				held    bool
			)
			timer := time.NewTimer(timeout)
			timer.Stop()

			send := func() {
				if !pending.Initial && pending.Placed == 0 && pending.Lifted == 0 {
					held = false
					return
				}
				timer.Reset(timeout)
				select {
				case out <- pending:
					held = false
				case <-timer.C:
				}
				timer.Stop()
			}

			for f := range in {
				if c, ok := tracker.Observe(f); ok {
					if held {
						c = pending.Merge(c)
					}
					pending, held = c, true
				}
				if held {
					send()
				}
			}
			if held {
				send()
			}
		}()

		return out
	}
}

// Merge combines c with the change that followed it into one change from the
// position before c to the position after next.
func (c Change) Merge(next Change) Change {
	before := c.Bitmap&^c.Placed | c.Lifted
	next.Placed, next.Lifted = next.Bitmap.Diff(before)
	next.Initial = c.Initial
	return next
}

// Tee copies every change to n outputs. All outputs are closed when the
// input is closed. Each output is written in turn, so a stalled consumer
// delays the others.
func Tee(in <-chan Change, n, bufSize int) []<-chan Change {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	outs := make([]chan Change, n)
	result := make([]<-chan Change, n)
	for i := range outs {
		outs[i] = make(chan Change, bufSize)
		result[i] = outs[i]
	}

	go func() {
		defer func() {
			for _, out := range outs {
				close(out)
			}
		}()
		for c := range in {
			for _, out := range outs {
				out <- c
			}
		}
	}()

	return result
}

// Consume runs fn for every change on each channel and returns when all of
// them are closed.
func Consume(fn func(Change), ins ...<-chan Change) {
	var wg sync.WaitGroup
	for _, in := range ins {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range in {
				fn(c)
			}
		}()
	}
	wg.Wait()
}
