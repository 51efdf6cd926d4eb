package protocol

import (
	"fmt"
	"math"
	"strconv"
)

// MaxOperand is the largest decimal operand the device accepts. Larger
// values fail its 32-bit parse and the whole line is ignored.
const MaxOperand = math.MaxInt32

// BuildSetStageAddrCmd constructs a Set Stage Address command line.
// The address is the staging buffer offset that the next write lands on.
//
// Line structure:
//
//	s<decimal>\n
func BuildSetStageAddrCmd(addr int) ([]byte, error) {
	if addr < 0 {
		return nil, fmt.Errorf("stage address must not be negative, got %d", addr)
	}
	return buildNumericCmd(OpSetStageAddr, "stage address", addr)
}

// BuildWriteStageCmd constructs a Write Stage command line.
// The data is hex-encoded and written at the current staging address.
// The line must fit in a receive buffer of rxCap bytes.
//
// Line structure:
//
//	w<HEXHEX...>\n
func BuildWriteStageCmd(data []byte, rxCap int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("data cannot be empty")
	}
	if limit := MaxWritePayload(rxCap); len(data) > limit {
		return nil, fmt.Errorf("data length %d exceeds maximum %d bytes per line", len(data), limit)
	}

	line := make([]byte, 0, 2+2*len(data))
	line = append(line, OpWriteStage)
	line = AppendHex(line, data)
	line = append(line, LineFeed)

	return line, nil
}

// BuildSetFlashAddrCmd constructs a Set Flash Address command line.
// The address is where the next program operation starts in flash.
//
// Line structure:
//
//	S<decimal>\n
func BuildSetFlashAddrCmd(addr int) ([]byte, error) {
	if addr < 0 {
		return nil, fmt.Errorf("flash address must not be negative, got %d", addr)
	}
	return buildNumericCmd(OpSetFlashAddr, "flash address", addr)
}

// BuildEraseSectorCmd constructs an Erase Sector command line.
//
// Line structure:
//
//	X<decimal>\n
func BuildEraseSectorCmd(sector int) ([]byte, error) {
	if sector < 0 {
		return nil, fmt.Errorf("sector must not be negative, got %d", sector)
	}
	return buildNumericCmd(OpEraseSector, "sector", sector)
}

// BuildProgramCmd constructs a Program command line.
// The device copies length bytes from the start of its staging buffer
// into flash at the flash working address.
//
// Line structure:
//
//	M<decimal>\n
func BuildProgramCmd(length int) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("program length must be positive, got %d", length)
	}
	return buildNumericCmd(OpProgram, "program length", length)
}

// BuildDoneCmd constructs the Done command line that ends the session.
//
// Line structure:
//
//	Z\n
func BuildDoneCmd() ([]byte, error) {
	return []byte{OpDone, LineFeed}, nil
}

func buildNumericCmd(op byte, what string, n int) ([]byte, error) {
	if n > MaxOperand {
		return nil, fmt.Errorf("%s %d exceeds maximum %d", what, n, MaxOperand)
	}

	line := make([]byte, 0, 12)
	line = append(line, op)
	line = strconv.AppendInt(line, int64(n), 10)
	return append(line, LineFeed), nil
}
