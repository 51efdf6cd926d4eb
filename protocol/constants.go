package protocol

// Opcodes, one per command line.
const (
	// OpSetStageAddr sets the staging buffer working address
	OpSetStageAddr = 's'

	// OpWriteStage writes hex-encoded bytes at the staging working address
	OpWriteStage = 'w'

	// OpSetFlashAddr sets the flash working address
	OpSetFlashAddr = 'S'

	// OpEraseSector erases one flash sector
	OpEraseSector = 'X'

	// OpProgram copies bytes from the start of the staging buffer into flash
	OpProgram = 'M'

	// OpDone ends the programming session
	OpDone = 'Z'
)

// Line terminators. Either one ends a line; neither is part of it.
const (
	LineFeed       = '\n'
	CarriageReturn = '\r'
)

// Reply tokens.
const (
	// AckToken tells the host to proceed with the next line
	AckToken = "loader_rx_cplt\n"

	// NackToken tells the host to abort or retransmit the last line
	NackToken = "loader_rx_fail\n"

	// AckFrame is the exact byte sequence written for an ACK (token plus NUL)
	AckFrame = AckToken + "\x00"

	// NackFrame is the exact byte sequence written for a NACK (token plus NUL)
	NackFrame = NackToken + "\x00"
)

// Buffer sizes used by the reference firmware.
const (
	// DefaultRxCapacity is the receive line buffer size in bytes.
	// A line plus its terminator must not exceed it.
	DefaultRxCapacity = 4096

	// DefaultStageCapacity is the staging buffer size in bytes
	DefaultStageCapacity = 1024

	// MinRxCapacity is the smallest receive buffer that can carry a
	// one-byte write line ("w" + two digits + terminator).
	MinRxCapacity = 4
)

// IsTerminator reports whether b ends a line.
func IsTerminator(b byte) bool {
	return b == LineFeed || b == CarriageReturn
}

// MaxLineContent returns the longest line (terminator excluded) a receive
// buffer of rxCap bytes accepts without overflowing.
func MaxLineContent(rxCap int) int {
	return rxCap - 1
}

// MaxWritePayload returns how many bytes a single write line can carry
// for a receive buffer of rxCap bytes.
func MaxWritePayload(rxCap int) int {
	if rxCap < MinRxCapacity {
		return 0
	}
	return (MaxLineContent(rxCap) - 1) / 2
}
