package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/hallboard/pkg/board"
	"github.com/itohio/hallboard/pkg/stream"
)

func openMemory(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(":memory:", "test", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func at(sec int64) time.Time { return time.Unix(1700000000+sec, 0) }

func TestOpen_Session(t *testing.T) {
	j := openMemory(t)
	_, err := uuid.Parse(j.SessionID())
	assert.NoError(t, err)

	sessions, err := j.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, j.SessionID(), sessions[0].ID)
	assert.Equal(t, "test", sessions[0].Source)
	assert.Zero(t, sessions[0].Changes)
}

func TestRecord_Changes(t *testing.T) {
	j := openMemory(t)
	ctx := context.Background()

	full := board.Bitmap(^uint64(0))
	want := []stream.Change{
		{Time: at(1), Method: 3, Bitmap: full, Placed: full, Initial: true},
		{Time: at(2), Method: 3, Bitmap: full &^ 1, Lifted: 1},
		{Time: at(3), Method: 2, Bitmap: full, Placed: 1},
	}
	for _, c := range want {
		require.NoError(t, j.Record(c))
	}

	got, err := j.Changes(ctx, "", at(0), at(10))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = j.Changes(ctx, "", at(2), at(2))
	require.NoError(t, err)
	assert.Equal(t, want[1:2], got)

	got, err = j.Changes(ctx, "other", at(0), at(10))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPosition(t *testing.T) {
	j := openMemory(t)
	ctx := context.Background()

	_, ok, err := j.Position(ctx, "", at(5))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, j.Record(stream.Change{Time: at(1), Bitmap: 0xff, Initial: true}))
	require.NoError(t, j.Record(stream.Change{Time: at(4), Bitmap: 0xfe}))

	pos, ok, err := j.Position(ctx, "", at(3))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, board.Bitmap(0xff), pos)

	pos, _, err = j.Position(ctx, "", at(4))
	require.NoError(t, err)
	assert.Equal(t, board.Bitmap(0xfe), pos)
}

func TestRun(t *testing.T) {
	j := openMemory(t)
	in := make(chan stream.Change, 4)
	for i := range 4 {
		in <- stream.Change{Time: at(int64(i)), Bitmap: board.Bitmap(i)}
	}
	close(in)
	j.Run(in)

	sessions, err := j.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 4, sessions[0].Changes)
}

func TestOpen_FileKeepsSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	first, err := Open(path, "boardd", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, first.Record(stream.Change{Time: at(1), Bitmap: 3, Initial: true}))
	require.NoError(t, first.Close())

	second, err := Open(path, "boardd", zerolog.Nop())
	require.NoError(t, err)
	defer second.Close()
	assert.NotEqual(t, first.SessionID(), second.SessionID())

	sessions, err := second.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	got, err := second.Changes(context.Background(), first.SessionID(), at(0), at(10))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, board.Bitmap(3), got[0].Bitmap)
}
