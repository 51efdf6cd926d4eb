package flashdev

import (
	"bytes"

	"github.com/moffa90/go-flashloader/internal/syncutil"
)

// Memory is a RAM-backed NOR flash model.
//
// Memory is safe for concurrent use.
type Memory struct {
	geo  Geometry
	data []byte
	mu   syncutil.RWMutex
}

// NewMemory returns a fully erased device with the given geometry.
// It panics if the geometry is invalid.
func NewMemory(geo Geometry) *Memory {
	if err := geo.Validate(); err != nil {
		panic("flashdev: " + err.Error())
	}
	return &Memory{
		geo:  geo,
		data: bytes.Repeat([]byte{Erased}, geo.Capacity),
	}
}

// Geometry implements Device.
func (m *Memory) Geometry() Geometry {
	return m.geo
}

// EraseSector implements Device.
func (m *Memory) EraseSector(index int) error {
	start, end, err := checkSector(m.geo, index)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := start; i < end; i++ {
		m.data[i] = Erased
	}
	return nil
}

// Program implements Device. Bits already cleared stay cleared.
func (m *Memory) Program(data []byte, addr int) error {
	if err := checkRange("program", m.geo, addr, len(data)); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, b := range data {
		m.data[addr+i] &= b
	}
	return nil
}

// Read implements Device.
func (m *Memory) Read(dst []byte, addr int) error {
	if err := checkRange("read", m.geo, addr, len(dst)); err != nil {
		return err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	copy(dst, m.data[addr:addr+len(dst)])
	return nil
}
