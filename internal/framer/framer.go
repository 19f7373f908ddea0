package framer

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/icza/demo/internal/bitread"
)

// Command codes for the outer command-block stream (§6).
const (
	CmdSignon      = 1
	CmdPacket      = 2
	CmdSyncTick    = 3
	CmdConsoleCmd  = 4
	CmdUserCmd     = 5
	CmdDataTables  = 6
	CmdStop        = 7
	CmdCustomData  = 8
	CmdStringTables = 9
)

// democmdinfoSize is the fixed size of the per-packet command-info blob
// (view/split-screen camera state) that precedes a signon/packet block's
// sequence info and raw payload.
const democmdinfoSize = 152

// ErrCorruptFraming is returned when a framed block's declared length runs
// past the available input.
var ErrCorruptFraming = fmt.Errorf("framer: corrupt framing")

// Command is one decoded outer command block.
type Command struct {
	Cmd        byte
	Tick       int32
	PlayerSlot byte
	// Payload is the block's raw bytes: for packet/signon this is the
	// length-prefixed wire-message blob after democmdinfo + sequence info;
	// for consolecmd/usercmd/datatables/customdata/stringtables it is the
	// block's own length-prefixed raw bytes (usercmd's leading i32 is read
	// and discarded, so it is not part of Payload).
	Payload []byte
}

// ReadCommand reads one outer command block. io.EOF is returned only when
// the stream ends cleanly at a block boundary; a Cmd == CmdStop block is
// the recording's own logical end-of-file marker and still returns a
// (possibly empty) Command, not io.EOF.
func ReadCommand(r io.Reader) (*Command, error) {
	hdr := make([]byte, 6)
	if _, err := io.ReadFull(r, hdr); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("framer: truncated command header: %w", err)
		}
		return nil, err
	}
	c := &Command{
		Cmd:        hdr[0],
		Tick:       int32(binary.LittleEndian.Uint32(hdr[1:5])),
		PlayerSlot: hdr[5],
	}

	switch c.Cmd {
	case CmdStop:
		return c, nil

	case CmdSyncTick:
		return c, nil

	case CmdSignon, CmdPacket:
		if _, err := io.CopyN(discard{}, r, democmdinfoSize); err != nil {
			return nil, fmt.Errorf("framer: democmdinfo: %w", err)
		}
		seq := make([]byte, 8)
		if _, err := io.ReadFull(r, seq); err != nil {
			return nil, fmt.Errorf("framer: sequence info: %w", err)
		}
		payload, err := readLengthPrefixed(r)
		if err != nil {
			return nil, err
		}
		c.Payload = payload
		return c, nil

	case CmdUserCmd:
		lead := make([]byte, 4)
		if _, err := io.ReadFull(r, lead); err != nil {
			return nil, fmt.Errorf("framer: usercmd sequence: %w", err)
		}
		payload, err := readLengthPrefixed(r)
		if err != nil {
			return nil, err
		}
		c.Payload = payload
		return c, nil

	case CmdConsoleCmd, CmdDataTables, CmdCustomData, CmdStringTables:
		payload, err := readLengthPrefixed(r)
		if err != nil {
			return nil, err
		}
		c.Payload = payload
		return c, nil

	default:
		return nil, fmt.Errorf("framer: unknown command code %d", c.Cmd)
	}
}

func readLengthPrefixed(r io.Reader) ([]byte, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, fmt.Errorf("framer: block length: %w", err)
	}
	n := int32(binary.LittleEndian.Uint32(lenBuf))
	if n < 0 {
		return nil, fmt.Errorf("%w: negative block length %d", ErrCorruptFraming, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("framer: block body (%d bytes): %w", n, err)
	}
	return buf, nil
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// Message is one decoded inner (NET_*/SVC_*) message inside a
// signon/packet block's payload.
type Message struct {
	Opcode  uint32
	Payload []byte
}

// Messages iterates a packet block's payload, reading (cmd:varint32,
// size:varint32, payload:size-bytes) triples until the entire payload has
// been consumed, per §4.2. A size that would overrun the payload is fatal
// (ErrCorruptFraming); an unknown opcode is still surfaced to the caller
// so the dispatcher can decide to skip it, but the cursor always advances
// exactly `size` bytes regardless.
func Messages(payload []byte) ([]Message, error) {
	r := bitread.New(payload)
	totalBits := len(payload) * 8
	var out []Message

	for r.BitsRead() < totalBits {
		cmd, err := r.ReadVarUint32()
		if err != nil {
			return nil, fmt.Errorf("framer: message cmd: %w", err)
		}
		size, err := r.ReadVarUint32()
		if err != nil {
			return nil, fmt.Errorf("framer: message size: %w", err)
		}
		if r.BitsRead()+int(size)*8 > totalBits {
			return nil, fmt.Errorf("%w: message size %d overruns block", ErrCorruptFraming, size)
		}
		buf := make([]byte, size)
		if err := r.ReadBytes(buf); err != nil {
			return nil, err
		}
		out = append(out, Message{Opcode: cmd, Payload: buf})
	}
	return out, nil
}
