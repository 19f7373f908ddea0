// Package entities implements C7: the sparse live-entity registry and the
// PacketEntities delta-compressed presence-vector protocol (enter, leave,
// delta, preserve).
package entities

import (
	"fmt"

	"github.com/icza/demo/internal/bitread"
	"github.com/icza/demo/internal/propdecode"
	"github.com/icza/demo/internal/sendtable"
)

// MaxEdicts bounds the sparse entity-id space.
const MaxEdicts = 2048

// SerialBits is the width of the per-entity serial field read on enter.
const SerialBits = 10

// runawayStepCap guards ReadFieldIndex against a malformed stream looping
// forever; exceeding it is fatal (§7 RunawayFieldIndex).
const runawayStepCap = 20000

// fieldIndexEnd is the sentinel ReadFieldIndex raw value meaning
// "no more fields".
const fieldIndexEnd = 0xFFF

// ErrRunawayFieldIndex is returned when a single entity's field-index loop
// exceeds the step cap.
var ErrRunawayFieldIndex = fmt.Errorf("entities: runaway field index")

// ErrPropertyDecode is returned when a decoded field index has no matching
// descriptor in the flattened property list for the entity's class — the
// property loop itself is still bit-cursor-consistent up to that point, so
// the caller may abandon just the current packet rather than the run.
var ErrPropertyDecode = fmt.Errorf("entities: property decode")

// Entity is one live networked object: identity is ID; (ClassID, Serial)
// changes only on re-creation.
type Entity struct {
	ID      int32
	ClassID int32
	Serial  int32
	Props   map[int]propdecode.Value
}

// SelectivePolicy lets the semantic layer elect to decode only a narrow
// subset of properties while the bit cursor still advances identically
// either way.
type SelectivePolicy interface {
	// Keep reports whether the decoded value for (classID, fieldIndex)
	// should be retained. Returning false still requires Decode to run in
	// skip mode, never to be omitted.
	Keep(classID int32, fieldIndex int) bool
}

// Registry is the sparse live-entity map.
type Registry struct {
	byID  map[int32]*Entity
	store *sendtable.Store
}

// New returns an empty Registry bound to a flattened send-table store.
func New(store *sendtable.Store) *Registry {
	return &Registry{byID: map[int32]*Entity{}, store: store}
}

// Get looks up a live entity by id.
func (r *Registry) Get(id int32) (*Entity, bool) {
	e, ok := r.byID[id]
	return e, ok
}

// All returns every live entity; iteration order is unspecified.
func (r *Registry) All() map[int32]*Entity { return r.byID }

const (
	flagLeavePVS = 1 << iota
	flagDelete
	flagEnterPVS
)

// PropObserver is notified immediately after each non-skipped property
// decode, so the semantic layer can derive score_changed/game_restart
// events without this package needing to know anything about them.
type PropObserver func(e *Entity, fieldIndex int, varName string, value propdecode.Value)

// ApplyPacketEntities decodes one PacketEntities payload's entity records
// and applies them to the registry. isDelta distinguishes a delta update
// (PRESERVE legal) from a full baseline (PRESERVE illegal — a PRESERVE
// record on a full update makes this function return an error, §4.6).
// observe may be nil.
func (r *Registry) ApplyPacketEntities(bits *bitread.Reader, updatedEntries int, isDelta bool, policy SelectivePolicy, observe PropObserver) error {
	headerBase := int32(-1)

	for i := 0; i < updatedEntries; i++ {
		delta, err := bits.ReadUBitVar()
		if err != nil {
			return fmt.Errorf("entities: read header delta: %w", err)
		}
		newEntity := headerBase + 1 + int32(delta)
		headerBase = newEntity

		leave, err := bits.ReadBit()
		if err != nil {
			return err
		}
		var flags uint32
		if leave != 0 {
			del, err := bits.ReadBit()
			if err != nil {
				return err
			}
			flags = flagLeavePVS
			if del != 0 {
				flags |= flagDelete
			}
		} else {
			enter, err := bits.ReadBit()
			if err != nil {
				return err
			}
			if enter != 0 {
				flags = flagEnterPVS
			}
		}

		switch {
		case flags&flagLeavePVS != 0 && flags&flagDelete != 0:
			delete(r.byID, newEntity)

		case flags&flagLeavePVS != 0:
			// PVS exit only: no registry change.

		case flags&flagEnterPVS != 0:
			classID, err := bits.ReadUBits(r.store.ServerClassBits)
			if err != nil {
				return err
			}
			serial, err := bits.ReadUBits(SerialBits)
			if err != nil {
				return err
			}
			e := &Entity{ID: newEntity, ClassID: int32(classID), Serial: int32(serial), Props: map[int]propdecode.Value{}}
			r.byID[newEntity] = e
			if err := r.decodeEntityProps(bits, e, policy, observe); err != nil {
				return fmt.Errorf("entities: enter %d: %w", newEntity, err)
			}

		default:
			if !isDelta {
				return fmt.Errorf("entities: PRESERVE illegal on a full update (entity %d)", newEntity)
			}
			e, ok := r.byID[newEntity]
			if !ok {
				return fmt.Errorf("entities: delta update for unknown entity %d", newEntity)
			}
			if err := r.decodeEntityProps(bits, e, policy, observe); err != nil {
				return fmt.Errorf("entities: delta %d: %w", newEntity, err)
			}
		}
	}
	return nil
}

func (r *Registry) decodeEntityProps(bits *bitread.Reader, e *Entity, policy SelectivePolicy, observe PropObserver) error {
	newWayBit, err := bits.ReadBit()
	if err != nil {
		return err
	}
	newWay := newWayBit != 0

	flat := r.store.Flat[e.ClassID]

	fieldIndex := -1
	for step := 0; ; step++ {
		if step >= runawayStepCap {
			return ErrRunawayFieldIndex
		}
		next, err := ReadFieldIndex(bits, fieldIndex, newWay)
		if err != nil {
			return err
		}
		if next < 0 {
			return nil
		}
		fieldIndex = next

		if fieldIndex < 0 || fieldIndex >= len(flat) {
			return fmt.Errorf("propdecode: field index %d out of range for class %d (%d props): %w", fieldIndex, e.ClassID, len(flat), ErrPropertyDecode)
		}
		prop := &flat[fieldIndex]

		skip := policy != nil && !policy.Keep(e.ClassID, fieldIndex)
		v, err := propdecode.Decode(bits, prop, skip)
		if err != nil {
			return fmt.Errorf("propdecode: class %d field %d (%s): %w", e.ClassID, fieldIndex, prop.VarName, err)
		}
		if !skip {
			e.Props[fieldIndex] = v
			if observe != nil {
				observe(e, fieldIndex, prop.VarName, v)
			}
		}
	}
}

// ReadFieldIndex reads one field-index delta off bits, returning -1 at the
// end-of-fields sentinel. last is the previously returned index (-1
// before the first call).
func ReadFieldIndex(bits *bitread.Reader, last int, newWay bool) (int, error) {
	if newWay {
		b, err := bits.ReadBit()
		if err != nil {
			return 0, err
		}
		if b != 0 {
			return last + 1, nil
		}
	}

	var ret uint32
	var err error
	if newWay {
		b, err2 := bits.ReadBit()
		if err2 != nil {
			return 0, err2
		}
		if b != 0 {
			ret, err = bits.ReadUBits(3)
		} else {
			ret, err = bits.ReadUBits(7)
			if err == nil {
				ret, err = extendFieldIndex(bits, ret)
			}
		}
	} else {
		ret, err = bits.ReadUBits(7)
		if err == nil {
			ret, err = extendFieldIndex(bits, ret)
		}
	}
	if err != nil {
		return 0, err
	}

	if ret == fieldIndexEnd {
		return -1, nil
	}
	return last + 1 + int(ret), nil
}

// extendFieldIndex inspects the top two bits of a raw 7-bit field-index
// read and, per §4.6, extends it with 2/4/7 more bits depending on which
// pattern they match.
func extendFieldIndex(bits *bitread.Reader, ret uint32) (uint32, error) {
	switch ret & 0x60 {
	case 0x20: // 0b01
		extra, err := bits.ReadUBits(2)
		if err != nil {
			return 0, err
		}
		ret = (ret &^ 0x60) | (extra << 5)
	case 0x40: // 0b10
		extra, err := bits.ReadUBits(4)
		if err != nil {
			return 0, err
		}
		ret = (ret &^ 0x60) | (extra << 5)
	case 0x60: // 0b11
		extra, err := bits.ReadUBits(7)
		if err != nil {
			return 0, err
		}
		ret = (ret &^ 0x60) | (extra << 5)
	}
	return ret, nil
}
