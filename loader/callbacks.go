package loader

// Status is the outcome of one line, richer than the ACK/NACK on the wire.
type Status uint8

const (
	// StatusApplied means the command ran and changed state
	StatusApplied Status = iota + 1

	// StatusIgnored covers empty lines, unknown opcodes and unparsable
	// numeric operands; nothing changed
	StatusIgnored

	// StatusMalformed means the operand text was invalid; answered with NACK
	StatusMalformed

	// StatusFailed means the command was refused by a bounds check or the
	// device driver; still answered with ACK
	StatusFailed

	// StatusDone means the line ended the session
	StatusDone

	// StatusOverflow means the line exceeded the receive buffer and was dropped
	StatusOverflow
)

func (s Status) String() string {
	switch s {
	case StatusApplied:
		return "applied"
	case StatusIgnored:
		return "ignored"
	case StatusMalformed:
		return "malformed"
	case StatusFailed:
		return "failed"
	case StatusDone:
		return "done"
	case StatusOverflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// Result describes what Dispatch did with a line.
type Result struct {
	// Opcode is the first byte of the line, zero for an empty line
	Opcode byte

	// Status is the outcome
	Status Status

	// Err is set for StatusMalformed and StatusFailed
	Err error
}

// LineEvent is passed to LineCallback once per line.
type LineEvent struct {
	// Session is the serial of the session that received the line
	Session uint32

	// Line is the line content without terminator. It aliases the receive
	// buffer and is only valid during the callback. Nil for overflowed lines.
	Line []byte

	// Result is the dispatch outcome
	Result Result

	// Action is the reply sent for the line
	Action Action
}

// LineCallback observes every line handled by a session. It runs in the
// byte handling path and must return quickly.
type LineCallback func(LineEvent)
