package framer

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func appendFixedString(buf []byte, s string) []byte {
	field := make([]byte, headerFixedStringBytes)
	copy(field, s)
	return append(buf, field...)
}

func buildHeaderBytes(magic string) []byte {
	var buf []byte
	buf = append(buf, magic...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(4))  // Protocol
	buf = binary.LittleEndian.AppendUint32(buf, uint32(24)) // NetworkProtocol
	buf = appendFixedString(buf, "127.0.0.1:27015")
	buf = appendFixedString(buf, "GOTV Demo")
	buf = appendFixedString(buf, "de_mirage")
	buf = appendFixedString(buf, "csgo")
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(128.5))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(2048)) // PlaybackTicks
	buf = binary.LittleEndian.AppendUint32(buf, uint32(4096)) // PlaybackFrames
	buf = binary.LittleEndian.AppendUint32(buf, uint32(500))  // SignonLength
	return buf
}

func TestReadHeaderParsesAllFields(t *testing.T) {
	buf := buildHeaderBytes(Magic)
	h, err := ReadHeader(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.MapName != "de_mirage" || h.GameDirectory != "csgo" {
		t.Fatalf("got %+v", h)
	}
	if h.PlaybackTicks != 2048 || h.PlaybackFrames != 4096 || h.SignonLength != 500 {
		t.Fatalf("got %+v", h)
	}
	if h.PlaybackTime != 128.5 {
		t.Fatalf("got PlaybackTime=%v", h.PlaybackTime)
	}
}

func TestReadHeaderRejectsBadMagic(t *testing.T) {
	buf := buildHeaderBytes("BADMAGIC")
	if _, err := ReadHeader(bytes.NewReader(buf)); err != ErrNotDemoFile {
		t.Fatalf("got %v, want ErrNotDemoFile", err)
	}
}

func TestReadHeaderRejectsTruncatedInput(t *testing.T) {
	buf := buildHeaderBytes(Magic)
	buf = buf[:len(buf)-20]
	if _, err := ReadHeader(bytes.NewReader(buf)); err == nil {
		t.Fatal("expected an error for a truncated header")
	}
}
