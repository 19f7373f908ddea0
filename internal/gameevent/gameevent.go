// Package gameevent implements C8: binding a GameEventList's descriptors
// to each subsequent GameEvent message's numeric event id, decoding typed
// key/value pairs in descriptor order.
package gameevent

import (
	"fmt"

	"github.com/icza/demo/internal/wire"
)

// KeyType is the closed set of typed game-event value kinds.
type KeyType int32

const (
	KeyString KeyType = 1
	KeyFloat  KeyType = 2
	KeyLong   KeyType = 3
	KeyShort  KeyType = 4
	KeyByte   KeyType = 5
	KeyBool   KeyType = 6
	KeyUint64 KeyType = 7
)

// KeyDescriptor names and types one event key.
type KeyDescriptor struct {
	Name string
	Type KeyType
}

// EventDescriptor is one bound entry of the GameEventList.
type EventDescriptor struct {
	ID   int32
	Name string
	Keys []KeyDescriptor
}

// KeyValue is one decoded key/value pair of an emitted event, in
// descriptor order.
type KeyValue struct {
	Name   string
	Type   KeyType
	String string
	Float  float32
	Long   int32
	Short  int16
	Byte   byte
	Bool   bool
	Uint64 uint64
}

// Event is a normalized, bound game event.
type Event struct {
	Type   string
	Tick   int32
	Values []KeyValue
}

// Store holds the GameEventList binding for a recording.
type Store struct {
	byID map[int32]*EventDescriptor
}

// NewStore returns an empty Store.
func NewStore() *Store { return &Store{byID: map[int32]*EventDescriptor{}} }

// CSVCMsg_GameEventList field numbers.
const (
	fieldDescriptors = 1
)

// CSVCMsg_GameEventListDescriptorT field numbers.
const (
	descFieldEventID = 1
	descFieldName    = 2
	descFieldKeys    = 3
)

// descriptor key_t field numbers.
const (
	keyFieldType = 1
	keyFieldName = 2
)

// IngestGameEventList decodes a GameEventList payload and binds every
// descriptor it carries.
func (s *Store) IngestGameEventList(payload []byte) error {
	msg, err := wire.Parse(payload)
	if err != nil {
		return fmt.Errorf("gameevent: list: %w", err)
	}
	for _, raw := range msg.Repeated(fieldDescriptors) {
		dmsg, err := wire.Parse(raw)
		if err != nil {
			return fmt.Errorf("gameevent: descriptor: %w", err)
		}
		id, _ := dmsg.Int32(descFieldEventID)
		name, _ := dmsg.String(descFieldName)
		d := &EventDescriptor{ID: id, Name: name}
		for _, krow := range dmsg.Repeated(descFieldKeys) {
			kmsg, err := wire.Parse(krow)
			if err != nil {
				return fmt.Errorf("gameevent: descriptor %q key: %w", name, err)
			}
			kt, _ := kmsg.Int32(keyFieldType)
			kn, _ := kmsg.String(keyFieldName)
			d.Keys = append(d.Keys, KeyDescriptor{Name: kn, Type: KeyType(kt)})
		}
		s.byID[id] = d
	}
	return nil
}

// CSVCMsg_GameEvent field numbers.
const (
	eventFieldEventID = 1
	eventFieldKeys    = 2
)

// CSVCMsg_GameEvent key_t value field numbers (a sum type: exactly one of
// these is present per key, selected by the bound descriptor's type).
const (
	valFieldString = 1
	valFieldFloat  = 2
	valFieldLong   = 3
	valFieldShort  = 4
	valFieldByte   = 5
	valFieldBool   = 6
	valFieldUint64 = 7
)

// Bind decodes a GameEvent payload against the bound descriptor,
// producing a normalized Event. Unknown event ids are skipped (returns
// nil, nil).
func (s *Store) Bind(payload []byte, tick int32) (*Event, error) {
	msg, err := wire.Parse(payload)
	if err != nil {
		return nil, fmt.Errorf("gameevent: event: %w", err)
	}
	id, _ := msg.Int32(eventFieldEventID)
	desc, ok := s.byID[id]
	if !ok {
		return nil, nil
	}

	rawKeys := msg.Repeated(eventFieldKeys)
	ev := &Event{Type: desc.Name, Tick: tick}
	for i, kd := range desc.Keys {
		if i >= len(rawKeys) {
			break
		}
		kmsg, err := wire.Parse(rawKeys[i])
		if err != nil {
			return nil, fmt.Errorf("gameevent: %s key %s: %w", desc.Name, kd.Name, err)
		}
		kv := KeyValue{Name: kd.Name, Type: kd.Type}
		switch kd.Type {
		case KeyString:
			kv.String, _ = kmsg.String(valFieldString)
		case KeyFloat:
			kv.Float, _ = kmsg.Float32(valFieldFloat)
		case KeyLong:
			kv.Long, _ = kmsg.Int32(valFieldLong)
		case KeyShort:
			v, _ := kmsg.Int32(valFieldShort)
			kv.Short = int16(v)
		case KeyByte:
			v, _ := kmsg.Int32(valFieldByte)
			kv.Byte = byte(v)
		case KeyBool:
			kv.Bool, _ = kmsg.Bool(valFieldBool)
		case KeyUint64:
			kv.Uint64, _ = kmsg.Varint(valFieldUint64)
		}
		ev.Values = append(ev.Values, kv)
	}
	return ev, nil
}

// Get returns the bound descriptor for a numeric event id, if any.
func (s *Store) Get(id int32) (*EventDescriptor, bool) {
	d, ok := s.byID[id]
	return d, ok
}

// Value looks up a key by name within a bound event.
func (e *Event) Value(name string) (KeyValue, bool) {
	for _, kv := range e.Values {
		if kv.Name == name {
			return kv, true
		}
	}
	return KeyValue{}, false
}
