package calib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/hallboard/pkg/board"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"present", Present, false},
		{"empty", Empty, false},
		{"presentMargin", PresentMargin, false},
		{"emptyMargin", EmptyMargin, false},
		{"all", AllKinds, false},
		{"Present", 0, true},
		{"margin", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, uint16(0), Clamp(-5))
	assert.Equal(t, uint16(0), Clamp(0))
	assert.Equal(t, uint16(512), Clamp(512))
	assert.Equal(t, uint16(1023), Clamp(1023))
	assert.Equal(t, uint16(1023), Clamp(2000))
}

func TestStore_SetColumnScope(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Set(Present, board.Column(3), Literal(500), nil))

	m := &s.Table().Present
	for row := range board.Rows {
		for col := range board.Cols {
			if col == 3 {
				assert.Equal(t, uint16(500), m[row][col], "row %d col %d", row, col)
			} else {
				assert.Zero(t, m[row][col], "row %d col %d", row, col)
			}
		}
	}
	assert.Equal(t, board.Matrix{}, s.Table().Empty, "other kinds untouched")
}

func TestStore_SetRowAndBoardScope(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Set(Empty, board.Everything(), Literal(100), nil))
	require.NoError(t, s.Set(Empty, board.Row(6), Literal(120), nil))

	entries, err := s.Get(Empty, board.Everything())
	require.NoError(t, err)
	require.Len(t, entries, board.Cells)
	for _, e := range entries {
		if e.Row == 6 {
			assert.Equal(t, uint16(120), e.Value)
		} else {
			assert.Equal(t, uint16(100), e.Value)
		}
	}
}

func TestStore_SetClamps(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.Set(PresentMargin, board.Cell(1, 1), Literal(2000), nil))
	entries, err := s.Get(PresentMargin, board.Cell(1, 1))
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Row: 1, Col: 1, Value: 1023}}, entries)

	require.NoError(t, s.Set(PresentMargin, board.Cell(1, 1), Literal(-5), nil))
	entries, err = s.Get(PresentMargin, board.Cell(1, 1))
	require.NoError(t, err)
	assert.Equal(t, uint16(0), entries[0].Value)
}

func TestStore_SetCurrent(t *testing.T) {
	var live board.Matrix
	for row := range board.Rows {
		for col := range board.Cols {
			live[row][col] = uint16(row*10 + col)
		}
	}

	s := NewStore()
	require.NoError(t, s.Set(Empty, board.Row(2), Current, &live))

	m := &s.Table().Empty
	for col := range board.Cols {
		assert.Equal(t, uint16(20+col), m[2][col])
		assert.Zero(t, m[3][col])
	}

	assert.Error(t, s.Set(Empty, board.Row(2), Current, nil))
}

func TestStore_InvalidRequestsWriteNothing(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Set(Present, board.Everything(), Literal(7), nil))
	before := *s.Table()

	err := s.Set(Present, board.Scope{Row: 9, Col: board.All}, Literal(1), nil)
	assert.ErrorIs(t, err, board.ErrInvalidCoordinate)

	err = s.Set(AllKinds, board.Everything(), Literal(1), nil)
	assert.ErrorIs(t, err, ErrInvalidKind)

	err = s.Set(Kind(9), board.Cell(0, 0), Literal(1), nil)
	assert.ErrorIs(t, err, ErrInvalidKind)

	_, err = s.Get(Present, board.Cell(0, 8))
	assert.ErrorIs(t, err, board.ErrInvalidCoordinate)

	assert.Equal(t, before, *s.Table())
}

func TestStore_Reset(t *testing.T) {
	s := NewStore()
	for _, k := range Kinds() {
		require.NoError(t, s.Set(k, board.Everything(), Literal(9), nil))
	}

	require.NoError(t, s.Reset(Empty))
	assert.Equal(t, board.Matrix{}, s.Table().Empty)
	assert.NotEqual(t, board.Matrix{}, s.Table().Present)

	require.NoError(t, s.Reset(AllKinds))
	assert.Equal(t, Table{}, *s.Table())

	assert.ErrorIs(t, s.Reset(Kind(7)), ErrInvalidKind)
}
