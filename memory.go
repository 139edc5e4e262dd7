package wasmo

import "encoding/binary"

// PageSize is the wasm linear memory allocation unit.
const PageSize = 65536

// Memory is a module's linear memory. It is owned by its Module and mutated
// only by the currently running activation and by host functions holding the
// module for the duration of a call. Every access is bounds checked.
type Memory struct {
	data   []byte
	max    uint32
	hasMax bool
}

func newMemory(lim limits) *Memory {
	return &Memory{
		data:   make([]byte, int(lim.min)*PageSize),
		max:    lim.max,
		hasMax: lim.hasMax,
	}
}

// Size returns the current page count.
func (m *Memory) Size() uint32 {
	return uint32(len(m.data) / PageSize)
}

// ByteLen returns the current length in bytes.
func (m *Memory) ByteLen() int {
	return len(m.data)
}

// Data exposes the backing byte slice without copying. The slice is
// invalidated by Grow.
func (m *Memory) Data() []byte {
	return m.data
}

// Grow extends the memory by delta pages and returns the previous page
// count, or -1 when the maximum would be exceeded.
func (m *Memory) Grow(delta uint32) int32 {
	old := m.Size()
	next := uint64(old) + uint64(delta)
	if next > 65536 || (m.hasMax && next > uint64(m.max)) {
		return -1
	}
	grown := make([]byte, int(next)*PageSize)
	copy(grown, m.data)
	m.data = grown
	return int32(old)
}

func (m *Memory) check(addr uint64, size int) error {
	if addr+uint64(size) > uint64(len(m.data)) {
		return ErrOutOfBounds
	}
	return nil
}

// ReadBytes borrows n bytes starting at addr. The slice aliases the linear
// memory; it is invalidated by Grow.
func (m *Memory) ReadBytes(addr uint32, n int) ([]byte, error) {
	if err := m.check(uint64(addr), n); err != nil {
		return nil, err
	}
	return m.data[addr : int(addr)+n], nil
}

// WriteBytes copies b into memory at addr.
func (m *Memory) WriteBytes(addr uint32, b []byte) error {
	if err := m.check(uint64(addr), len(b)); err != nil {
		return err
	}
	copy(m.data[addr:], b)
	return nil
}

// ReadU32 reads a little-endian u32 at addr. Host-facing counterpart of the
// interpreter's load path.
func (m *Memory) ReadU32(addr uint32) (uint32, error) {
	return m.loadU32(uint64(addr))
}

func (m *Memory) loadU8(addr uint64) (byte, error) {
	if err := m.check(addr, 1); err != nil {
		return 0, err
	}
	return m.data[addr], nil
}

func (m *Memory) loadU16(addr uint64) (uint16, error) {
	if err := m.check(addr, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.data[addr:]), nil
}

func (m *Memory) loadU32(addr uint64) (uint32, error) {
	if err := m.check(addr, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.data[addr:]), nil
}

func (m *Memory) loadU64(addr uint64) (uint64, error) {
	if err := m.check(addr, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.data[addr:]), nil
}

func (m *Memory) storeU8(addr uint64, v byte) error {
	if err := m.check(addr, 1); err != nil {
		return err
	}
	m.data[addr] = v
	return nil
}

func (m *Memory) storeU16(addr uint64, v uint16) error {
	if err := m.check(addr, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.data[addr:], v)
	return nil
}

func (m *Memory) storeU32(addr uint64, v uint32) error {
	if err := m.check(addr, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.data[addr:], v)
	return nil
}

func (m *Memory) storeU64(addr uint64, v uint64) error {
	if err := m.check(addr, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.data[addr:], v)
	return nil
}
