package image

import (
	"fmt"
	"sort"
)

// Image is a sparse firmware image.
type Image struct {
	// Segments are the contiguous data runs, sorted by address and never
	// overlapping
	Segments []Segment
}

// Segment is a contiguous run of bytes.
type Segment struct {
	// Addr is the address of the first byte
	Addr int

	// Data is the segment contents
	Data []byte
}

// End returns the address one past the last byte.
func (s Segment) End() int {
	return s.Addr + len(s.Data)
}

// Size returns the number of data bytes in the image.
func (img *Image) Size() int {
	n := 0
	for _, s := range img.Segments {
		n += len(s.Data)
	}
	return n
}

// Bounds returns the lowest address and one past the highest address
// covered by the image. An empty image returns 0, 0.
func (img *Image) Bounds() (start, end int) {
	if len(img.Segments) == 0 {
		return 0, 0
	}
	return img.Segments[0].Addr, img.Segments[len(img.Segments)-1].End()
}

// Flatten returns the image as one contiguous block starting at the lowest
// address. Gaps between segments are filled with fill.
func (img *Image) Flatten(fill byte) (base int, data []byte) {
	start, end := img.Bounds()
	data = make([]byte, end-start)
	for i := range data {
		data[i] = fill
	}
	for _, s := range img.Segments {
		copy(data[s.Addr-start:], s.Data)
	}
	return start, data
}

// add inserts data at addr, joining it to an adjacent segment when possible.
func (img *Image) add(addr int, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	end := addr + len(data)
	for _, s := range img.Segments {
		if addr < s.End() && s.Addr < end {
			return fmt.Errorf("data at 0x%X overlaps segment 0x%X-0x%X", addr, s.Addr, s.End())
		}
	}

	if n := len(img.Segments); n > 0 && img.Segments[n-1].End() == addr {
		img.Segments[n-1].Data = append(img.Segments[n-1].Data, data...)
		return nil
	}

	img.Segments = append(img.Segments, Segment{Addr: addr, Data: append([]byte(nil), data...)})
	return nil
}

// normalize sorts segments and merges the ones that touch.
func (img *Image) normalize() {
	sort.Slice(img.Segments, func(i, j int) bool {
		return img.Segments[i].Addr < img.Segments[j].Addr
	})

	merged := img.Segments[:0]
	for _, s := range img.Segments {
		if n := len(merged); n > 0 && merged[n-1].End() == s.Addr {
			merged[n-1].Data = append(merged[n-1].Data, s.Data...)
			continue
		}
		merged = append(merged, s)
	}
	img.Segments = merged
}
