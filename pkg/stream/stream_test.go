package stream

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/hallboard/pkg/board"
)

func frame(sec int64, squares ...board.Square) board.Frame {
	f := board.Frame{Time: time.Unix(sec, 0), Method: 3}
	for _, sq := range squares {
		f.Bitmap.Set(sq.Row, sq.Col)
	}
	return f
}

func TestTracker_Observe(t *testing.T) {
	var tr Tracker
	e2 := board.Square{Row: 1, Col: 4}
	e4 := board.Square{Row: 3, Col: 4}

	c, ok := tr.Observe(frame(1, e2))
	require.True(t, ok)
	assert.True(t, c.Initial)
	assert.Equal(t, []board.Square{e2}, c.Placed.Squares())
	assert.Zero(t, c.Lifted)

	_, ok = tr.Observe(frame(2, e2))
	assert.False(t, ok, "unchanged bitmap")

	c, ok = tr.Observe(frame(3, e4))
	require.True(t, ok)
	assert.False(t, c.Initial)
	assert.Equal(t, time.Unix(3, 0), c.Time)
	assert.Equal(t, uint8(3), c.Method)
	assert.Equal(t, []board.Square{e4}, c.Placed.Squares())
	assert.Equal(t, []board.Square{e2}, c.Lifted.Squares())

	tr.Reset()
	c, ok = tr.Observe(frame(4, e4))
	require.True(t, ok)
	assert.True(t, c.Initial)
}

func TestTracker_EmptyFirstFrame(t *testing.T) {
	var tr Tracker
	c, ok := tr.Observe(frame(1))
	require.True(t, ok)
	assert.True(t, c.Initial)
	assert.Zero(t, c.Placed)
}

// TestConverter_GracefulShutdown tests that the converter closes its output
// when the input is closed.
func TestConverter_GracefulShutdown(t *testing.T) {
	in := make(chan board.Frame, 8)
	out := NewConverter(4)(in)

	in <- frame(1)
	in <- frame(2)
	in <- frame(3, board.Square{Row: 0, Col: 0})
	in <- frame(4, board.Square{Row: 0, Col: 0})
	close(in)

	var got []Change
	done := make(chan struct{})
	go func() {
		defer close(done)
		for c := range out {
			got = append(got, c)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("output channel did not close")
	}
	require.Len(t, got, 2)
	assert.True(t, got[0].Initial)
	assert.Equal(t, 1, got[1].Placed.Count())
}

func TestChange_Merge(t *testing.T) {
	a1 := board.Square{Row: 0, Col: 0}
	b1 := board.Square{Row: 0, Col: 1}
	c1 := board.Square{Row: 0, Col: 2}

	var tr Tracker
	_, _ = tr.Observe(frame(1, a1))
	first, ok := tr.Observe(frame(2, a1, b1))
	require.True(t, ok)
	second, ok := tr.Observe(frame(3, b1, c1))
	require.True(t, ok)

	m := first.Merge(second)
	assert.Equal(t, time.Unix(3, 0), m.Time)
	assert.Equal(t, []board.Square{b1, c1}, m.Bitmap.Squares())
	assert.Equal(t, []board.Square{b1, c1}, m.Placed.Squares())
	assert.Equal(t, []board.Square{a1}, m.Lifted.Squares())
	assert.False(t, m.Initial)
}

func TestConverter_StalledConsumerKeepsSquares(t *testing.T) {
	in := make(chan board.Frame)
	out := newConverter(1, 20*time.Millisecond)(in)

	a1 := board.Square{Row: 0, Col: 0}
	b1 := board.Square{Row: 0, Col: 1}
	c1 := board.Square{Row: 0, Col: 2}

	in <- frame(1, a1)         // fills the output buffer
	in <- frame(2, a1, b1)     // held back
	in <- frame(3, a1, b1, c1) // merged with the held change

	select {
	case c := <-out:
		assert.True(t, c.Initial)
	case <-time.After(time.Second):
		t.Fatal("no initial change")
	}

	in <- frame(4, a1, b1, c1) // unchanged, flushes the held change
	select {
	case c := <-out:
		assert.False(t, c.Initial)
		assert.Equal(t, []board.Square{b1, c1}, c.Placed.Squares())
		assert.Zero(t, c.Lifted)
	case <-time.After(time.Second):
		t.Fatal("held change lost")
	}

	close(in)
	for range out {
		t.Fatal("unexpected change")
	}
}

func TestTee(t *testing.T) {
	in := make(chan Change)
	outs := Tee(in, 3, 0)
	require.Len(t, outs, 3)

	go func() {
		for i := range 5 {
			in <- Change{Bitmap: board.Bitmap(i)}
		}
		close(in)
	}()

	var (
		mu    sync.Mutex
		count int
	)
	Consume(func(Change) {
		mu.Lock()
		count++
		mu.Unlock()
	}, outs...)
	assert.Equal(t, 15, count)
}
