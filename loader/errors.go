package loader

import (
	"errors"
	"fmt"
)

// ErrNotListening is returned by Wait when no session has been started.
var ErrNotListening = errors.New("loader: not listening")

// ErrSessionReset is returned to a waiter whose session was replaced by a
// new BeginListening call before it finished.
var ErrSessionReset = errors.New("loader: session reset before completion")

// BoundsError reports a staging or flash access outside its address space.
type BoundsError struct {
	// Op is the operation that was refused
	Op string

	// Offset is the requested start (a sector index for erase)
	Offset int

	// Length is the requested size
	Length int

	// Limit is the size of the address space
	Limit int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("%s: range %d+%d exceeds limit %d", e.Op, e.Offset, e.Length, e.Limit)
}

// DeviceError wraps a failure returned by the flash driver.
type DeviceError struct {
	Op   string
	Addr int
	Err  error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s at 0x%X: %v", e.Op, e.Addr, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// IsDeviceError returns true if the error is a DeviceError.
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}
