package protocol

// Response is a device reply to one command line.
type Response uint8

const (
	// ResponseAck means the line was framed and dispatched
	ResponseAck Response = iota + 1

	// ResponseNack means the line was too long or malformed and was dropped
	ResponseNack
)

func (r Response) String() string {
	switch r {
	case ResponseAck:
		return "ACK"
	case ResponseNack:
		return "NACK"
	default:
		return "unknown"
	}
}
