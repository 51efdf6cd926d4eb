package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Port is the subset of serial.Port used by the loader daemon.
type Port interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
	SetReadTimeout(t time.Duration) error
}

// PortFactory opens a serial port.
type PortFactory func(path string, mode *serial.Mode) (Port, error)

// DefaultPortFactory opens real serial ports through go.bug.st/serial.
func DefaultPortFactory(path string, mode *serial.Mode) (Port, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	return port, nil
}

// OpenSerial opens path at baud with 8N1 framing. A nil factory means
// DefaultPortFactory.
func OpenSerial(path string, baud int, factory PortFactory) (Port, error) {
	if path == "" {
		return nil, fmt.Errorf("serial port path cannot be empty")
	}
	if baud <= 0 {
		return nil, fmt.Errorf("baud rate must be positive, got %d", baud)
	}
	if factory == nil {
		factory = DefaultPortFactory
	}

	port, err := factory(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return port, nil
}

// ListPorts returns the names of the serial ports present on the system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}
