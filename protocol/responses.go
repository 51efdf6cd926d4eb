package protocol

import (
	"bufio"
	"bytes"
	"fmt"
)

// maxResponseLen bounds how much ReadResponse consumes while looking for a
// token terminator.
const maxResponseLen = 64

// ParseResponse identifies a reply token.
// The token may carry its trailing NUL or not.
//
// Returns ResponseAck or ResponseNack, or an error for anything else.
func ParseResponse(token []byte) (Response, error) {
	token = bytes.TrimRight(token, "\x00")

	switch string(token) {
	case AckToken:
		return ResponseAck, nil
	case NackToken:
		return ResponseNack, nil
	default:
		return 0, &UnexpectedResponseError{Got: string(token)}
	}
}

// ReadResponse reads one reply token from r.
//
// NUL bytes before the token are skipped: they are the padding that follows
// every token on the wire, left over from the previous reply.
func ReadResponse(r *bufio.Reader) (Response, error) {
	token := make([]byte, 0, len(AckToken))

	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("read response: %w", err)
		}

		if b == 0x00 && len(token) == 0 {
			continue
		}

		token = append(token, b)
		if b == LineFeed {
			return ParseResponse(token)
		}

		if len(token) >= maxResponseLen {
			return 0, &UnexpectedResponseError{Got: string(token)}
		}
	}
}
