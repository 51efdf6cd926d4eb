package loader

import "github.com/moffa90/go-flashloader/protocol"

// Staging is the RAM workspace the host fills before committing it to flash.
//
// Writes land at the working address set by Seek. The working address is
// never advanced by a write; the host moves it explicitly.
type Staging struct {
	buf    []byte
	cursor int
}

func newStaging(capacity int) *Staging {
	return &Staging{buf: make([]byte, capacity)}
}

// Seek moves the working address. Any value is accepted; range checks
// happen when the address is used.
func (s *Staging) Seek(off int) {
	s.cursor = off
}

// Cursor returns the working address.
func (s *Staging) Cursor() int {
	return s.cursor
}

// Cap returns the buffer capacity in bytes.
func (s *Staging) Cap() int {
	return len(s.buf)
}

// WriteHex decodes len(src)/2 bytes from the digit pairs in src to the
// working address. A trailing odd digit is dropped. The digits are checked
// before the range, and nothing is written on either error.
func (s *Staging) WriteHex(src []byte) (int, error) {
	n := len(src) / 2
	if err := protocol.ValidateHex(src[:2*n]); err != nil {
		return 0, err
	}
	dst, err := s.span("write", n)
	if err != nil {
		return 0, err
	}
	if err := protocol.DecodeHex(dst, src, n); err != nil {
		return 0, err
	}
	return n, nil
}

// Write copies p to the working address.
func (s *Staging) Write(p []byte) (int, error) {
	dst, err := s.span("write", len(p))
	if err != nil {
		return 0, err
	}
	return copy(dst, p), nil
}

// Window returns the first n bytes of the buffer, the range a program
// command commits to flash. The slice aliases the buffer.
func (s *Staging) Window(n int) ([]byte, error) {
	if n < 0 || n > len(s.buf) {
		return nil, &BoundsError{Op: "program", Offset: 0, Length: n, Limit: len(s.buf)}
	}
	return s.buf[:n], nil
}

// Snapshot returns a copy of the whole buffer.
func (s *Staging) Snapshot() []byte {
	out := make([]byte, len(s.buf))
	copy(out, s.buf)
	return out
}

func (s *Staging) span(op string, n int) ([]byte, error) {
	if s.cursor < 0 || s.cursor > len(s.buf) || n > len(s.buf)-s.cursor {
		return nil, &BoundsError{Op: op, Offset: s.cursor, Length: n, Limit: len(s.buf)}
	}
	return s.buf[s.cursor : s.cursor+n], nil
}
