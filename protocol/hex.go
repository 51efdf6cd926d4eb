package protocol

// hexDigits is the encoding alphabet. Only uppercase digits are produced and
// accepted, matching the reference firmware's decoder.
const hexDigits = "0123456789ABCDEF"

// invalidNibble marks characters outside the alphabet in nibbleOf.
const invalidNibble = 0xFF

// nibbleOf maps an ASCII character to its 4-bit value.
func nibbleOf(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return 10 + c - 'A'
	default:
		return invalidNibble
	}
}

// DecodeHex decodes count bytes from the digit pairs in src into dst.
//
// For each i in [0, count) it combines src[2i] (high nibble) and src[2i+1]
// (low nibble) into dst[i]. It never touches memory outside the supplied
// slices: if src holds fewer than 2*count digits or dst fewer than count
// bytes it returns ErrShortBuffer. The whole input range is validated before
// anything is written, so a *HexDigitError leaves dst unchanged.
func DecodeHex(dst, src []byte, count int) error {
	if count < 0 || count > len(dst) || 2*count > len(src) {
		return ErrShortBuffer
	}

	if err := ValidateHex(src[:2*count]); err != nil {
		return err
	}

	for i := 0; i < count; i++ {
		hi := nibbleOf(src[2*i])
		lo := nibbleOf(src[2*i+1])
		dst[i] = hi<<4 | lo
	}

	return nil
}

// ValidateHex reports the first character of src that is not an uppercase
// hex digit.
func ValidateHex(src []byte) error {
	for i, c := range src {
		if nibbleOf(c) == invalidNibble {
			return &HexDigitError{Offset: i, Char: c}
		}
	}
	return nil
}

// AppendHex appends the uppercase digit pairs for src to dst.
func AppendHex(dst, src []byte) []byte {
	for _, b := range src {
		dst = append(dst, hexDigits[b>>4], hexDigits[b&0x0F])
	}
	return dst
}

// EncodeHex returns the uppercase digit pairs for src.
func EncodeHex(src []byte) []byte {
	return AppendHex(make([]byte, 0, 2*len(src)), src)
}
