package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// ErrShortBuffer is returned by DecodeHex when the source or destination
// cannot hold the requested number of bytes.
var ErrShortBuffer = errors.New("hex: buffer too short")

// ProtocolError represents a line the device refused with a NACK.
type ProtocolError struct {
	// Operation is the command that failed
	Operation string

	// Line is the command line that was sent, terminator included
	Line []byte
}

func (e *ProtocolError) Error() string {
	line := strings.TrimRight(string(e.Line), "\r\n")
	if len(line) > 32 {
		line = line[:32] + "..."
	}
	return fmt.Sprintf("%s failed: device replied %s to %q", e.Operation, ResponseNack, line)
}

// IsProtocolError returns true if the error is a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// HexDigitError reports a character outside '0'-'9' and 'A'-'F' in a hex payload.
type HexDigitError struct {
	// Offset is the index of the character in the source
	Offset int

	// Char is the offending character
	Char byte
}

func (e *HexDigitError) Error() string {
	return fmt.Sprintf("hex: invalid digit %q at offset %d", e.Char, e.Offset)
}

// UnexpectedResponseError reports device output that is neither ACK nor NACK.
type UnexpectedResponseError struct {
	Got string
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unexpected response %q", e.Got)
}
