package mux

import (
	"fmt"
	"sync"

	"github.com/chewxy/math32"

	"github.com/itohio/hallboard/pkg/board"
)

// MockConfig parameterizes the simulated board.
type MockConfig struct {
	Baseline   float64  `yaml:"baseline"`    // reading of an empty square
	PieceField float64  `yaml:"piece_field"` // reading increase with a magnet right above the sensor
	Spread     float64  `yaml:"spread"`      // field fall-off distance in squares
	NoiseLevel float64  `yaml:"noise_level"` // peak noise in counts
	Variation  float64  `yaml:"variation"`   // peak sensor-to-sensor offset in counts
	Pieces     []string `yaml:"pieces"`      // initially occupied squares, e.g. "e2"
}

// DefaultMockConfig returns a board with the standard opening position.
func DefaultMockConfig() MockConfig {
	pieces := make([]string, 0, 32)
	for _, rank := range []byte{'1', '2', '7', '8'} {
		for file := byte('a'); file <= 'h'; file++ {
			pieces = append(pieces, string([]byte{file, rank}))
		}
	}
	return MockConfig{
		Baseline:   512,
		PieceField: 380,
		Spread:     0.35,
		NoiseLevel: 3,
		Variation:  12,
		Pieces:     pieces,
	}
}

// Mock simulates the sensor matrix behind the multiplexers.
type Mock struct {
	cfg MockConfig

	mu       sync.Mutex
	order    [board.Cols]uint8
	column   int
	selected bool
	pieces   board.Bitmap
	reads    uint32

	// ring of the last board.Cols addresses driven
	recent  [board.Cols]uint8
	selects int
}

// NewMock creates a simulated board wired with the given column order (nil
// selects DefaultColumnOrder). A nil config selects DefaultMockConfig.
func NewMock(cfg *MockConfig, order []uint8) (*Mock, error) {
	if cfg == nil {
		def := DefaultMockConfig()
		cfg = &def
	}

	m := &Mock{cfg: *cfg, order: DefaultColumnOrder}
	if len(order) > 0 {
		if err := ValidateOrder(order); err != nil {
			return nil, err
		}
		copy(m.order[:], order)
	}

	for _, name := range cfg.Pieces {
		sq, err := board.ParseSquare(name)
		if err != nil {
			return nil, fmt.Errorf("mock pieces: %w", err)
		}
		m.pieces.Set(sq.Row, sq.Col)
	}
	return m, nil
}

// Select latches the address and resolves it to the wired column.
func (m *Mock) Select(addr uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.recent[m.selects%board.Cols] = addr
	m.selects++
	for col, a := range m.order {
		if a == addr {
			m.column = col
			m.selected = true
			return nil
		}
	}
	return fmt.Errorf("address %d not wired", addr)
}

// Selections returns the addresses driven by the last board.Cols selects,
// oldest first.
func (m *Mock) Selections() []uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := min(m.selects, board.Cols)
	result := make([]uint8, n)
	for i := range result {
		result[i] = m.recent[(m.selects-n+i)%board.Cols]
	}
	return result
}

// Read returns the simulated reading of the selected column.
func (m *Mock) Read(row int) (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if row < 0 || row >= board.Rows {
		return 0, fmt.Errorf("%w: row %d", board.ErrInvalidCoordinate, row)
	}
	if !m.selected {
		return 0, fmt.Errorf("no column selected")
	}
	m.reads++
	return m.reading(row, m.column), nil
}

// Place puts a piece on a square.
func (m *Mock) Place(row, col int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pieces.Set(row, col)
}

// Lift removes a piece from a square.
func (m *Mock) Lift(row, col int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pieces.Clear(row, col)
}

// SetPieces replaces the whole position.
func (m *Mock) SetPieces(b board.Bitmap) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pieces = b
}

// Pieces returns the simulated position.
func (m *Mock) Pieces() board.Bitmap {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pieces
}

// Reading returns the noiseless reading of a square for the current position.
func (m *Mock) Reading(row, col int) uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clampReading(m.field(row, col) + m.offset(row, col))
}

// reading must be called with mu held.
func (m *Mock) reading(row, col int) uint16 {
	// Deterministic pseudo noise, bounded by NoiseLevel
	phase := float32(m.reads)
	noise := (math32.Sin(phase*0.7) + math32.Cos(phase*1.3)) * 0.5 * float32(m.cfg.NoiseLevel)
	return clampReading(m.field(row, col) + m.offset(row, col) + noise)
}

// field sums the contribution of every piece with a gaussian fall-off.
func (m *Mock) field(row, col int) float32 {
	v := float32(m.cfg.Baseline)
	spread := float32(m.cfg.Spread)
	if spread <= 0 {
		spread = 0.01
	}
	for _, sq := range m.pieces.Squares() {
		dr := float32(sq.Row - row)
		dc := float32(sq.Col - col)
		d2 := dr*dr + dc*dc
		v += float32(m.cfg.PieceField) * math32.Exp(-d2/(spread*spread))
	}
	return v
}

// offset is the fixed per-sensor deviation from the nominal baseline.
func (m *Mock) offset(row, col int) float32 {
	k := float32((row*7+col*13)%17-8) / 8
	return k * float32(m.cfg.Variation)
}

func clampReading(v float32) uint16 {
	v = math32.Round(v)
	if v < 0 {
		return 0
	}
	if v > float32(board.MaxReading) {
		return board.MaxReading
	}
	return uint16(v)
}
