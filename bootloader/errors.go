package bootloader

import (
	"errors"
	"fmt"
)

// ErrEmptyImage is returned when an image has no data to program.
var ErrEmptyImage = errors.New("image contains no data")

// ImageRangeError indicates that an image does not fit in the device.
type ImageRangeError struct {
	Start    int
	End      int
	Capacity int
}

func (e *ImageRangeError) Error() string {
	return fmt.Sprintf("image range 0x%X-0x%X is outside device capacity 0x%X",
		e.Start, e.End, e.Capacity)
}
