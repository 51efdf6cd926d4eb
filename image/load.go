package image

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ParseBinary reads a raw binary image placed at base.
func ParseBinary(r io.Reader, base int) (*Image, error) {
	if base < 0 {
		return nil, fmt.Errorf("base address must not be negative, got %d", base)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	img := &Image{}
	if len(data) > 0 {
		img.Segments = []Segment{{Addr: base, Data: data}}
	}
	return img, nil
}

// IsIntelHex reports whether path names an Intel HEX file by extension.
func IsIntelHex(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hex", ".ihex", ".ihx":
		return true
	default:
		return false
	}
}

// Load reads an image file from fs. Intel HEX files carry their own
// addresses; any other file is loaded as raw binary at base.
func Load(fs afero.Fs, path string, base int) (*Image, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if IsIntelHex(path) {
		return ParseIntelHex(f)
	}
	return ParseBinary(f, base)
}
