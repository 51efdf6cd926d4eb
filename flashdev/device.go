// Package flashdev defines the non-volatile memory driver interface used by
// the loader and provides two drivers for it.
//
// Memory keeps the device contents in RAM and is what tests and the loopback
// example use. File persists the same contents into an image file through an
// afero.Fs, which lets the loader daemon run on a host without real flash.
//
// Both drivers model NOR flash such as the W25Q family: erased bytes read
// 0xFF, programming can only clear bits, and only whole sectors can be erased.
package flashdev

import "fmt"

// Erased is the value of every byte in an erased sector.
const Erased = 0xFF

// Geometry describes the fixed layout of a device.
type Geometry struct {
	// SectorSize is the erase granularity in bytes
	SectorSize int

	// Capacity is the total size of the linear address space in bytes
	Capacity int
}

// W25Q128 is the geometry of a 16 MiB Winbond W25Q128 with 4 KiB sectors.
var W25Q128 = Geometry{SectorSize: 4096, Capacity: 16 << 20}

// Sectors returns the number of erasable sectors.
func (g Geometry) Sectors() int {
	if g.SectorSize <= 0 {
		return 0
	}
	return g.Capacity / g.SectorSize
}

// Validate checks that the geometry describes a usable device.
func (g Geometry) Validate() error {
	if g.SectorSize <= 0 {
		return fmt.Errorf("sector size must be positive, got %d", g.SectorSize)
	}
	if g.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive, got %d", g.Capacity)
	}
	if g.Capacity%g.SectorSize != 0 {
		return fmt.Errorf("capacity %d is not a multiple of sector size %d", g.Capacity, g.SectorSize)
	}
	return nil
}

// Contains reports whether [addr, addr+n) lies inside the device.
func (g Geometry) Contains(addr, n int) bool {
	return addr >= 0 && n >= 0 && addr <= g.Capacity && n <= g.Capacity-addr
}

// Device is the driver for an external non-volatile memory.
type Device interface {
	// Geometry reports the fixed sector size and capacity
	Geometry() Geometry

	// EraseSector sets every byte of sector index to Erased
	EraseSector(index int) error

	// Program writes data starting at addr
	Program(data []byte, addr int) error

	// Read fills dst with the bytes starting at addr
	Read(dst []byte, addr int) error
}

// RangeError reports a request outside the device address space.
type RangeError struct {
	Op       string
	Addr     int
	Length   int
	Capacity int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: range %d+%d is outside device capacity %d", e.Op, e.Addr, e.Length, e.Capacity)
}

// checkRange validates a byte range against g.
func checkRange(op string, g Geometry, addr, n int) error {
	if !g.Contains(addr, n) {
		return &RangeError{Op: op, Addr: addr, Length: n, Capacity: g.Capacity}
	}
	return nil
}

// checkSector validates a sector index against g and returns its byte range.
func checkSector(g Geometry, index int) (start, end int, err error) {
	if index < 0 || index >= g.Sectors() {
		return 0, 0, &RangeError{Op: "erase", Addr: index * g.SectorSize, Length: g.SectorSize, Capacity: g.Capacity}
	}
	start = index * g.SectorSize
	return start, start + g.SectorSize, nil
}
