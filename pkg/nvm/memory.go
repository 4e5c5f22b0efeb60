package nvm

// Erased is the value of a byte that has never been written.
const Erased byte = 0xFF

// Memory is a RAM-backed device that counts physical accesses. It stands in
// for an EEPROM in tests and in mock mode.
type Memory struct {
	data []byte

	Reads  int // number of Load calls
	Writes int // number of Store calls
}

// NewMemory creates an erased device of the given size.
func NewMemory(size int) *Memory {
	data := make([]byte, size)
	for i := range data {
		data[i] = Erased
	}
	return &Memory{data: data}
}

// Size returns the capacity in bytes.
func (m *Memory) Size() int { return len(m.data) }

// Load reads the byte at addr.
func (m *Memory) Load(addr int) (byte, error) {
	if err := checkRange(addr, len(m.data)); err != nil {
		return 0, err
	}
	m.Reads++
	return m.data[addr], nil
}

// Store writes the byte at addr.
func (m *Memory) Store(addr int, b byte) error {
	if err := checkRange(addr, len(m.data)); err != nil {
		return err
	}
	m.Writes++
	m.data[addr] = b
	return nil
}

// ResetCounters zeroes the access counters.
func (m *Memory) ResetCounters() {
	m.Reads = 0
	m.Writes = 0
}
