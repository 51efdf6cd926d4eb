package loader

import "github.com/moffa90/go-flashloader/flashdev"

// Flash tracks the working address into a device and forwards erase,
// program and read requests to its driver.
//
// Requests are checked against the device geometry before the driver is
// called. Driver failures come back as *DeviceError and are never retried.
type Flash struct {
	dev    flashdev.Device
	geo    flashdev.Geometry
	cursor int
}

func newFlash(dev flashdev.Device) *Flash {
	return &Flash{dev: dev, geo: dev.Geometry()}
}

// Seek moves the working address.
func (f *Flash) Seek(addr int) {
	f.cursor = addr
}

// Cursor returns the working address.
func (f *Flash) Cursor() int {
	return f.cursor
}

// Geometry returns the device geometry.
func (f *Flash) Geometry() flashdev.Geometry {
	return f.geo
}

// EraseSector erases one sector by index.
func (f *Flash) EraseSector(index int) error {
	if index < 0 || index >= f.geo.Sectors() {
		return &BoundsError{Op: "erase", Offset: index, Length: 1, Limit: f.geo.Sectors()}
	}
	if err := f.dev.EraseSector(index); err != nil {
		return &DeviceError{Op: "erase", Addr: index * f.geo.SectorSize, Err: err}
	}
	return nil
}

// Program writes data at the working address. The working address is not
// advanced. Empty data is a no-op.
func (f *Flash) Program(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if !f.geo.Contains(f.cursor, len(data)) {
		return &BoundsError{Op: "program", Offset: f.cursor, Length: len(data), Limit: f.geo.Capacity}
	}
	if err := f.dev.Program(data, f.cursor); err != nil {
		return &DeviceError{Op: "program", Addr: f.cursor, Err: err}
	}
	return nil
}

// ReadAt reads n bytes starting at addr. It does not use or move the
// working address.
func (f *Flash) ReadAt(addr, n int) ([]byte, error) {
	if !f.geo.Contains(addr, n) {
		return nil, &BoundsError{Op: "read", Offset: addr, Length: n, Limit: f.geo.Capacity}
	}
	out := make([]byte, n)
	if err := f.dev.Read(out, addr); err != nil {
		return nil, &DeviceError{Op: "read", Addr: addr, Err: err}
	}
	return out, nil
}
