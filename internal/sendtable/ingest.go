package sendtable

import (
	"fmt"

	"github.com/icza/demo/internal/wire"
)

// CSVCMsg_SendTable field numbers (per original_source/src/demofiledump.cpp's
// dump of the SendTable message).
const (
	fieldIsEnd      = 1
	fieldNetTableName = 2
	fieldProps      = 3
	fieldNeedsDecoder = 4
)

// CSVCMsg_SendTable.sendprop_t field numbers.
const (
	propFieldType         = 1
	propFieldVarName      = 2
	propFieldFlags        = 3
	propFieldPriority     = 4
	propFieldDtName       = 5
	propFieldNumElements  = 6
	propFieldLowValue     = 7
	propFieldHighValue    = 8
	propFieldNumBits      = 9
)

// IngestSendTable decodes a single SvcSendTable payload and, unless it is
// the boundary "is_end" marker, registers the table it carries.
//
// Returns isEnd=true when this message is the terminator that ends the
// SendTable stream (payload carries is_end=true and no table).
func (s *Store) IngestSendTable(payload []byte) (isEnd bool, err error) {
	msg, err := wire.Parse(payload)
	if err != nil {
		return false, fmt.Errorf("sendtable: ingest: %w", err)
	}
	if end, ok := msg.Bool(fieldIsEnd); ok && end {
		return true, nil
	}

	name, _ := msg.String(fieldNetTableName)
	t := &Table{Name: name}

	for _, raw := range msg.Repeated(fieldProps) {
		pmsg, err := wire.Parse(raw)
		if err != nil {
			return false, fmt.Errorf("sendtable: ingest %q: prop: %w", name, err)
		}
		d := &Descriptor{DTName: name}
		if v, ok := pmsg.Int32(propFieldType); ok {
			d.Type = WireType(v)
		}
		d.VarName, _ = pmsg.String(propFieldVarName)
		if v, ok := pmsg.Varint(propFieldFlags); ok {
			d.Flags = Flags(v)
		}
		if v, ok := pmsg.Int32(propFieldPriority); ok {
			d.Priority = v
		}
		dtName, _ := pmsg.String(propFieldDtName)
		if d.Flags.Has(FlagExclude) {
			d.DTName = dtName // an EXCLUDE prop names the table of the prop it excludes
		}
		if v, ok := pmsg.Int32(propFieldNumElements); ok {
			d.ElementCount = v
		}
		if v, ok := pmsg.Float32(propFieldLowValue); ok {
			d.LowValue = v
		}
		if v, ok := pmsg.Float32(propFieldHighValue); ok {
			d.HighValue = v
		}
		if v, ok := pmsg.Int32(propFieldNumBits); ok {
			d.NumBits = v
		}

		if d.Type == DataTable {
			if sub, ok := s.Tables[dtName]; ok {
				d.DTTable = sub
			}
			d.VarName = dtName // DataTable props carry the sub-table name as their identity
		}

		t.Props = append(t.Props, d)
	}

	s.AddTable(t)
	return false, nil
}

// IngestClassInfo binds one (class_id, name, dt_name) triple in the store.
// The 16-bit server-class count header and the triples themselves, the
// simple fixed-layout block the engine writes directly after the SendTable
// terminator (per original_source/src/demofiledump.cpp's class-info dump),
// are read by framer.ParseDataTables.
func (s *Store) IngestClassInfo(classID int32, name, dtName string) error {
	return s.BindClass(classID, name, dtName)
}
