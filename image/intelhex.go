package image

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// Intel HEX record types.
const (
	RecordData                   = 0x00
	RecordEOF                    = 0x01
	RecordExtendedSegmentAddress = 0x02
	RecordStartSegmentAddress    = 0x03
	RecordExtendedLinearAddress  = 0x04
	RecordStartLinearAddress     = 0x05
)

// recordHeaderLength is byte count, address and type: 4 bytes.
const recordHeaderLength = 4

// ParseIntelHex parses an Intel HEX stream.
//
// Data records are placed at their address plus the current extended
// segment or linear base. Start address records are accepted and ignored.
// Parsing stops at the end-of-file record, which is required.
//
// Example:
//
//	img, err := image.ParseIntelHex(strings.NewReader(":01000000AB54\n:00000001FF\n"))
func ParseIntelHex(r io.Reader) (*Image, error) {
	scanner := bufio.NewScanner(r)
	img := &Image{}
	base := 0
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		rec, err := parseRecord(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		switch rec.kind {
		case RecordData:
			if err := img.add(base+rec.addr, rec.data); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
		case RecordEOF:
			img.normalize()
			return img, nil
		case RecordExtendedSegmentAddress:
			if len(rec.data) != 2 {
				return nil, fmt.Errorf("line %d: extended segment address needs 2 bytes, got %d", lineNum, len(rec.data))
			}
			base = (int(rec.data[0])<<8 | int(rec.data[1])) << 4
		case RecordExtendedLinearAddress:
			if len(rec.data) != 2 {
				return nil, fmt.Errorf("line %d: extended linear address needs 2 bytes, got %d", lineNum, len(rec.data))
			}
			base = (int(rec.data[0])<<8 | int(rec.data[1])) << 16
		case RecordStartSegmentAddress, RecordStartLinearAddress:
		default:
			return nil, fmt.Errorf("line %d: unknown record type 0x%02X", lineNum, rec.kind)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return nil, fmt.Errorf("missing end-of-file record")
}

type record struct {
	kind byte
	addr int
	data []byte
}

// parseRecord decodes one line.
//
// Record format:
//
//	:[Count(1)][Address(2, big-endian)][Type(1)][Data(Count)][Checksum(1)]
func parseRecord(line string) (*record, error) {
	if line[0] != ':' {
		return nil, fmt.Errorf("record must start with ':'")
	}

	raw, err := hex.DecodeString(line[1:])
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}
	if len(raw) < recordHeaderLength+1 {
		return nil, fmt.Errorf("record too short: got %d bytes, minimum is %d", len(raw), recordHeaderLength+1)
	}

	count := int(raw[0])
	if want := recordHeaderLength + count + 1; len(raw) != want {
		return nil, fmt.Errorf("record length mismatch: got %d bytes, expected %d", len(raw), want)
	}

	checksum := raw[len(raw)-1]
	if calc := calculateChecksum(raw[:len(raw)-1]); calc != checksum {
		return nil, fmt.Errorf("checksum mismatch: got 0x%02X, expected 0x%02X", checksum, calc)
	}

	return &record{
		kind: raw[3],
		addr: int(raw[1])<<8 | int(raw[2]),
		data: raw[recordHeaderLength : recordHeaderLength+count],
	}, nil
}

// calculateChecksum returns the two's complement of the byte sum.
func calculateChecksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return ^sum + 1
}

// AppendIntelHex appends img encoded as Intel HEX with records of at most
// recordSize data bytes, ending with an EOF record.
func AppendIntelHex(dst []byte, img *Image, recordSize int) []byte {
	if recordSize <= 0 || recordSize > 0xFF {
		recordSize = 16
	}

	upper := -1
	for _, s := range img.Segments {
		for off := 0; off < len(s.Data); {
			addr := s.Addr + off
			if hi := addr >> 16; hi != upper {
				dst = appendRecord(dst, RecordExtendedLinearAddress, 0, []byte{byte(hi >> 8), byte(hi)})
				upper = hi
			}

			n := min(recordSize, len(s.Data)-off, 0x10000-addr&0xFFFF)
			dst = appendRecord(dst, RecordData, addr&0xFFFF, s.Data[off:off+n])
			off += n
		}
	}
	return appendRecord(dst, RecordEOF, 0, nil)
}

func appendRecord(dst []byte, kind byte, addr int, data []byte) []byte {
	raw := make([]byte, 0, recordHeaderLength+len(data)+1)
	raw = append(raw, byte(len(data)), byte(addr>>8), byte(addr), kind)
	raw = append(raw, data...)
	raw = append(raw, calculateChecksum(raw))

	dst = append(dst, ':')
	dst = append(dst, strings.ToUpper(hex.EncodeToString(raw))...)
	return append(dst, '\n')
}
