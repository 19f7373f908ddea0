package framer

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/icza/demo/internal/wire"
)

func buildPacketCommand(tick int32, payload []byte) []byte {
	var buf []byte
	buf = append(buf, CmdPacket, 0, 0, 0, 0, 0) // cmd + tick placeholder + slot
	binary.LittleEndian.PutUint32(buf[1:5], uint32(tick))
	buf = append(buf, make([]byte, democmdinfoSize)...)
	buf = append(buf, make([]byte, 8)...) // sequence info
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(payload)))
	buf = append(buf, payload...)
	return buf
}

func TestReadCommandPacketRoundTrip(t *testing.T) {
	payload := []byte{0xAA, 0xBB, 0xCC}
	buf := buildPacketCommand(77, payload)

	cmd, err := ReadCommand(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Cmd != CmdPacket || cmd.Tick != 77 {
		t.Fatalf("got %+v", cmd)
	}
	if !bytes.Equal(cmd.Payload, payload) {
		t.Fatalf("got payload %x, want %x", cmd.Payload, payload)
	}
}

func TestReadCommandStopReturnsImmediately(t *testing.T) {
	buf := []byte{CmdStop, 0, 0, 0, 0, 0}
	cmd, err := ReadCommand(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Cmd != CmdStop {
		t.Fatalf("got %+v", cmd)
	}
}

func TestReadCommandRejectsNegativeBlockLength(t *testing.T) {
	var buf []byte
	buf = append(buf, CmdConsoleCmd, 0, 0, 0, 0, 0)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(-1)))

	_, err := ReadCommand(bytes.NewReader(buf))
	if err == nil {
		t.Fatal("expected an error for a negative block length")
	}
}

func TestReadCommandUnknownCodeIsError(t *testing.T) {
	buf := []byte{99, 0, 0, 0, 0, 0}
	if _, err := ReadCommand(bytes.NewReader(buf)); err == nil {
		t.Fatal("expected an error for an unrecognized command code")
	}
}

func buildVarint(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			break
		}
	}
	return out
}

func TestMessagesSplitsCmdSizePayloadTriples(t *testing.T) {
	var payload []byte
	payload = append(payload, buildVarint(uint32(wire.SvcServerInfo))...)
	payload = append(payload, buildVarint(3)...)
	payload = append(payload, []byte{1, 2, 3}...)
	payload = append(payload, buildVarint(uint32(wire.SvcPacketEntities))...)
	payload = append(payload, buildVarint(2)...)
	payload = append(payload, []byte{4, 5}...)

	msgs, err := Messages(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Opcode != wire.SvcServerInfo || !bytes.Equal(msgs[0].Payload, []byte{1, 2, 3}) {
		t.Fatalf("got %+v", msgs[0])
	}
	if msgs[1].Opcode != wire.SvcPacketEntities ||!bytes.Equal(msgs[1].Payload, []byte{4, 5}) {
		t.Fatalf("got %+v", msgs[1])
	}
}

func TestMessagesRejectsOverrunSize(t *testing.T) {
	var payload []byte
	payload = append(payload, buildVarint(uint32(wire.SvcServerInfo))...)
	payload = append(payload, buildVarint(10)...) // claims 10 bytes, none follow
	if _, err := Messages(payload); err == nil {
		t.Fatal("expected an error for a message size overrunning the block")
	}
}
