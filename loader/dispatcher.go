package loader

import (
	"errors"
	"strconv"

	"github.com/moffa90/go-flashloader/protocol"
)

// Dispatch decodes one line and applies it to the session.
//
// line[0] is the opcode and line[1:] the operand text. Empty lines,
// unknown opcodes and numeric operands that do not parse are ignored. A
// write with a non-hex digit is malformed. Bounds and driver failures are
// reported in Result.Err with StatusFailed. Z moves the session to StateDone.
func (s *Session) Dispatch(line []byte) Result {
	if len(line) == 0 {
		return Result{Status: StatusIgnored}
	}

	op, operand := line[0], line[1:]
	res := Result{Opcode: op, Status: StatusApplied}

	switch op {
	case protocol.OpSetStageAddr:
		n, ok := parseDecimal(operand)
		if !ok {
			return ignored(op)
		}
		s.stage.Seek(n)

	case protocol.OpWriteStage:
		if _, err := s.stage.WriteHex(operand); err != nil {
			res.Err = err
			res.Status = StatusFailed
			var digitErr *protocol.HexDigitError
			if errors.As(err, &digitErr) {
				res.Status = StatusMalformed
			}
		}

	case protocol.OpSetFlashAddr:
		n, ok := parseDecimal(operand)
		if !ok {
			return ignored(op)
		}
		s.flash.Seek(n)

	case protocol.OpEraseSector:
		n, ok := parseDecimal(operand)
		if !ok {
			return ignored(op)
		}
		if err := s.flash.EraseSector(n); err != nil {
			res.Err, res.Status = err, StatusFailed
		}

	case protocol.OpProgram:
		n, ok := parseDecimal(operand)
		if !ok {
			return ignored(op)
		}
		if err := s.program(n); err != nil {
			res.Err, res.Status = err, StatusFailed
		}

	case protocol.OpDone:
		s.state = StateDone
		res.Status = StatusDone

	default:
		return ignored(op)
	}

	return res
}

func (s *Session) program(n int) error {
	data, err := s.stage.Window(n)
	if err != nil {
		return err
	}
	return s.flash.Program(data)
}

func ignored(op byte) Result {
	return Result{Opcode: op, Status: StatusIgnored}
}

// parseDecimal reads a leading decimal integer the way scanf's %d does:
// leading white space is skipped, an optional sign is accepted, at least one
// digit is required and anything after the digits is ignored. Values that do
// not fit in 32 bits are rejected.
func parseDecimal(b []byte) (int, bool) {
	i := 0
	for i < len(b) && isSpace(b[i]) {
		i++
	}

	start := i
	if i < len(b) && (b[i] == '+' || b[i] == '-') {
		i++
	}

	digits := i
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
	}
	if i == digits {
		return 0, false
	}

	n, err := strconv.ParseInt(string(b[start:i]), 10, 32)
	if err != nil {
		return 0, false
	}
	return int(n), true
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
