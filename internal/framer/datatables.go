package framer

import (
	"fmt"

	"github.com/icza/demo/internal/bitread"
	"github.com/icza/demo/internal/sendtable"
)

const classInfoStringMax = 256

// ParseDataTables decodes a CmdDataTables block: a sequence of
// (cmd:varint32-discarded, size:varint32, SendTable-payload) triples
// identical in shape to the inner message framer's own framing, followed
// by the terminating is_end SendTable message, followed in turn by the
// plain (not protobuf) server-class table: a 16-bit count and, for each
// entry, (class_id:u16, name:string, dt_name:string).
func ParseDataTables(payload []byte, store *sendtable.Store) error {
	r := bitread.New(payload)

	for {
		if _, err := r.ReadVarUint32(); err != nil { // outer sequence number, unused
			return fmt.Errorf("framer: datatables: %w", err)
		}
		size, err := r.ReadVarUint32()
		if err != nil {
			return fmt.Errorf("framer: datatables: %w", err)
		}
		buf := make([]byte, size)
		if err := r.ReadBytes(buf); err != nil {
			return fmt.Errorf("framer: datatables: sendtable payload: %w", err)
		}

		isEnd, err := store.IngestSendTable(buf)
		if err != nil {
			return err
		}
		if isEnd {
			break
		}
	}

	nClasses, err := r.ReadUBits(16)
	if err != nil {
		return fmt.Errorf("framer: datatables: class count: %w", err)
	}
	for i := uint32(0); i < nClasses; i++ {
		classID, err := r.ReadUBits(16)
		if err != nil {
			return fmt.Errorf("framer: datatables: class id: %w", err)
		}
		name, err := r.ReadString(classInfoStringMax)
		if err != nil {
			return fmt.Errorf("framer: datatables: class name: %w", err)
		}
		dtName, err := r.ReadString(classInfoStringMax)
		if err != nil {
			return fmt.Errorf("framer: datatables: dt name: %w", err)
		}
		if err := store.IngestClassInfo(int32(classID), name, dtName); err != nil {
			return err
		}
	}

	if err := store.FlattenAll(); err != nil {
		return fmt.Errorf("framer: datatables: flatten: %w", err)
	}
	return nil
}
