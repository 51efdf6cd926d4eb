package loader

import "github.com/moffa90/go-flashloader/protocol"

// Action tells the transport what to send after a byte was handled.
type Action uint8

const (
	// ActionNone means nothing is sent
	ActionNone Action = iota

	// ActionAck means the ACK token is sent
	ActionAck

	// ActionNack means the NACK token is sent
	ActionNack
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionAck:
		return protocol.ResponseAck.String()
	case ActionNack:
		return protocol.ResponseNack.String()
	default:
		return "unknown"
	}
}

// Frame returns the bytes to transmit for a, nil for ActionNone.
func (a Action) Frame() []byte {
	switch a {
	case ActionAck:
		return []byte(protocol.AckFrame)
	case ActionNack:
		return []byte(protocol.NackFrame)
	default:
		return nil
	}
}

// OnByte feeds one received byte to the line assembler.
//
// A terminator completes the line: it is dispatched and answered with ACK,
// or NACK if its operand was malformed. A line that filled the receive
// buffer is dropped, and its terminator is answered with NACK. Terminators
// are never stored. Bytes received outside StateListening are ignored.
func (s *Session) OnByte(b byte) Action {
	if s.state != StateListening {
		return ActionNone
	}

	if protocol.IsTerminator(b) {
		return s.endLine()
	}

	if s.overflow {
		return ActionNone
	}

	s.rx[s.rxCursor] = b
	s.rxCursor++
	if s.rxCursor == len(s.rx) {
		s.overflow = true
		s.rxCursor = 0
		s.log.Warn().Uint32("session", s.serial).Int("capacity", len(s.rx)).Msg("receive buffer overflow, discarding to end of line")
	}

	return ActionNone
}

func (s *Session) endLine() Action {
	if s.overflow {
		s.overflow = false
		s.rxCursor = 0
		s.notify(nil, Result{Status: StatusOverflow}, ActionNack)
		return ActionNack
	}

	line := s.rx[:s.rxCursor]
	s.rxCursor = 0

	res := s.Dispatch(line)
	act := ActionAck
	if res.Status == StatusMalformed {
		act = ActionNack
	}

	s.notify(line, res, act)
	return act
}

func (s *Session) notify(line []byte, res Result, act Action) {
	ev := s.log.Debug()
	if res.Err != nil {
		ev = s.log.Warn().Err(res.Err)
	}
	ev.Uint32("session", s.serial).
		Str("opcode", opcodeName(res.Opcode)).
		Stringer("status", res.Status).
		Stringer("reply", act).
		Int("length", len(line)).
		Msg("line handled")

	if s.onLine != nil {
		s.onLine(LineEvent{Session: s.serial, Line: line, Result: res, Action: act})
	}
}

func opcodeName(op byte) string {
	if op == 0 {
		return ""
	}
	return string(rune(op))
}
