package flashdev

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/moffa90/go-flashloader/internal/syncutil"
	"github.com/spf13/afero"
)

// File is a NOR flash model persisted in an image file.
//
// File is safe for concurrent use.
type File struct {
	geo  Geometry
	f    afero.File
	path string
	mu   syncutil.Mutex
}

// OpenFile opens or creates the image at path on fs.
// A new or short file is padded with erased bytes up to the device capacity;
// existing contents are kept.
func OpenFile(fs afero.Fs, path string, geo Geometry) (*File, error) {
	if err := geo.Validate(); err != nil {
		return nil, fmt.Errorf("invalid geometry: %w", err)
	}

	f, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat image %s: %w", path, err)
	}

	if size := int(info.Size()); size < geo.Capacity {
		pad := bytes.Repeat([]byte{Erased}, geo.Capacity-size)
		if _, err := f.WriteAt(pad, int64(size)); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to pad image %s: %w", path, err)
		}
	}

	return &File{geo: geo, f: f, path: path}, nil
}

// Path returns the image file path.
func (d *File) Path() string {
	return d.path
}

// Geometry implements Device.
func (d *File) Geometry() Geometry {
	return d.geo
}

// EraseSector implements Device.
func (d *File) EraseSector(index int) error {
	start, end, err := checkSector(d.geo, index)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.f.WriteAt(bytes.Repeat([]byte{Erased}, end-start), int64(start)); err != nil {
		return fmt.Errorf("erase sector %d: %w", index, err)
	}
	return nil
}

// Program implements Device. Bits already cleared stay cleared.
func (d *File) Program(data []byte, addr int) error {
	if err := checkRange("program", d.geo, addr, len(data)); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	cur := make([]byte, len(data))
	if err := readAt(d.f, cur, addr); err != nil {
		return fmt.Errorf("program at %d: %w", addr, err)
	}
	for i, b := range data {
		cur[i] &= b
	}
	if _, err := d.f.WriteAt(cur, int64(addr)); err != nil {
		return fmt.Errorf("program at %d: %w", addr, err)
	}
	return nil
}

// Read implements Device.
func (d *File) Read(dst []byte, addr int) error {
	if err := checkRange("read", d.geo, addr, len(dst)); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := readAt(d.f, dst, addr); err != nil {
		return fmt.Errorf("read at %d: %w", addr, err)
	}
	return nil
}

// Sync flushes the image to stable storage.
func (d *File) Sync() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.f.Sync(); err != nil {
		return fmt.Errorf("failed to sync image %s: %w", d.path, err)
	}
	return nil
}

// Close closes the image file.
func (d *File) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.f.Close(); err != nil {
		return fmt.Errorf("failed to close image %s: %w", d.path, err)
	}
	return nil
}

// readAt fills p from offset off. A full read that ends on the last byte of
// the file may legitimately report io.EOF.
func readAt(f afero.File, p []byte, off int) error {
	n, err := f.ReadAt(p, int64(off))
	if err != nil && !(errors.Is(err, io.EOF) && n == len(p)) {
		return err
	}
	return nil
}
