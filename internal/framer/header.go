// Package framer implements C2 plus the outer file/command-block framing
// spec.md places "out of scope" only as a full protobuf codec — the raw
// block layout itself (file header, command blocks, inner message framer)
// is load-bearing plumbing every other component sits behind, so it lives
// here rather than being left unwritten.
package framer

import (
	"bufio"
	"fmt"
	"io"
	"math"
)

// Magic is the fixed 8-byte file signature every demo opens with.
const Magic = "HL2DEMO\x00"

const headerFixedStringBytes = 260

// Header is the fixed-size file header (§6).
type Header struct {
	Magic              string
	Protocol           int32
	NetworkProtocol    int32
	ServerName         string
	ClientName         string
	MapName            string
	GameDirectory      string
	PlaybackTime       float32
	PlaybackTicks      int32
	PlaybackFrames     int32
	SignonLength       int32
}

// ErrNotDemoFile is returned when the leading magic bytes don't match.
var ErrNotDemoFile = fmt.Errorf("framer: not a demo file (bad magic)")

// ReadHeader reads and validates the fixed-size file header from r.
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, 8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("framer: read magic: %w", err)
	}
	if string(buf) != Magic {
		return nil, ErrNotDemoFile
	}

	h := &Header{Magic: Magic}
	var err error
	if h.Protocol, err = readInt32(r); err != nil {
		return nil, err
	}
	if h.NetworkProtocol, err = readInt32(r); err != nil {
		return nil, err
	}
	if h.ServerName, err = readFixedString(r, headerFixedStringBytes); err != nil {
		return nil, err
	}
	if h.ClientName, err = readFixedString(r, headerFixedStringBytes); err != nil {
		return nil, err
	}
	if h.MapName, err = readFixedString(r, headerFixedStringBytes); err != nil {
		return nil, err
	}
	if h.GameDirectory, err = readFixedString(r, headerFixedStringBytes); err != nil {
		return nil, err
	}
	if h.PlaybackTime, err = readFloat32(r); err != nil {
		return nil, err
	}
	if h.PlaybackTicks, err = readInt32(r); err != nil {
		return nil, err
	}
	if h.PlaybackFrames, err = readInt32(r); err != nil {
		return nil, err
	}
	if h.SignonLength, err = readInt32(r); err != nil {
		return nil, err
	}
	return h, nil
}

func readInt32(r io.Reader) (int32, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, fmt.Errorf("framer: read int32: %w", err)
	}
	return int32(uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24), nil
}

func readFloat32(r io.Reader) (float32, error) {
	v, err := readInt32(r)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(v)), nil
}

func readFixedString(r io.Reader, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("framer: read fixed string: %w", err)
	}
	end := 0
	for end < len(buf) && buf[end] != 0 {
		end++
	}
	return string(buf[:end]), nil
}

// BufferedReader wraps a file in a bufio.Reader sized to the recording's
// typical block granularity, matching the teacher's own buffered-read
// style for its replay file.
func BufferedReader(r io.Reader) *bufio.Reader {
	return bufio.NewReaderSize(r, 64*1024)
}
