// Package sendtable holds the raw hierarchical send-table schema (C3) and
// the flattening algorithm that turns it into, per server class, the flat
// priority-ordered property vector the rest of the decoder addresses by
// index (C4).
package sendtable

import "fmt"

// WireType is the closed set of property encodings a send-table leaf can
// carry.
type WireType int32

const (
	Int WireType = iota
	Float
	Vector
	VectorXY
	String
	Array
	DataTable
	Int64
)

func (t WireType) String() string {
	switch t {
	case Int:
		return "Int"
	case Float:
		return "Float"
	case Vector:
		return "Vector"
	case VectorXY:
		return "VectorXY"
	case String:
		return "String"
	case Array:
		return "Array"
	case DataTable:
		return "DataTable"
	case Int64:
		return "Int64"
	default:
		return fmt.Sprintf("WireType(%d)", int32(t))
	}
}

// Flags is a bitset of per-property encoding hints.
type Flags uint32

const (
	FlagUnsigned Flags = 1 << iota
	FlagCoord
	FlagNoScale
	FlagRoundDown
	FlagRoundUp
	FlagNormal
	FlagExclude
	FlagXYZE
	FlagInsideArray
	FlagProxyAlwaysYes
	FlagChangesOften
	FlagVarInt
	FlagCollapsible
	FlagCellCoord
	FlagCellCoordLowPrecision
	FlagCellCoordIntegral
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Priority 64 is the sentinel "often changes" bucket: the flattener funnels
// every CHANGES_OFTEN-flagged property into it regardless of the
// descriptor's own nominal priority.
const ChangesOftenPriority = 64

// Descriptor is one leaf (or, before flattening, non-leaf) send-table
// property record.
type Descriptor struct {
	VarName     string
	DTName      string // containing table's net-table name; for an EXCLUDE prop, the excluded prop's table
	Type        WireType
	Flags       Flags
	LowValue    float32
	HighValue   float32
	NumBits     int32
	Priority    int32
	ElementCount int32 // Array only
	// elemPtr is the element descriptor an Array property absorbs (always
	// the immediately preceding non-array leaf at gather time), tracked by
	// pointer during gathering since gather order and final flattened
	// order differ once the priority sort runs. ElemIdx is the resolved
	// index into the final flattened vector, computed once sorting is
	// done, so the decoder itself only ever sees arena indices.
	elemPtr *Descriptor
	ElemIdx int32
	// DTTable is non-nil for Type == DataTable: the sub-table this
	// property points into.
	DTTable *Table
}

// Table is the raw schema of one net-table, as ingested from a SendTable
// message: an ordered list of properties, each possibly pointing at a
// nested DataTable.
type Table struct {
	Name  string
	Props []*Descriptor
}

// ServerClass binds a numeric class id to its name and root send-table.
type ServerClass struct {
	ClassID int32
	Name    string
	DTName  string
	Table   *Table
}

// FlatProp is one entry of a flattened per-class property vector: the
// leaf descriptor plus the element descriptor it needs if it is itself an
// Array (held by pointer here; its index into the same flattened vector
// is Descriptor.ElemIdx).
type FlatProp struct {
	*Descriptor
	ArrayElemProp *Descriptor
}

// Store holds every ingested net-table and server-class binding for the
// recording's lifetime, plus the flattened output and the few per-class
// indices the semantic layer needs (m_vecOrigin offsets, well-known class
// ids).
type Store struct {
	Tables       map[string]*Table
	ClassesByID  map[int32]*ServerClass
	Flat         map[int32][]FlatProp
	ServerClassBits uint

	PlayerClassID     int32
	TeamClassID       int32
	GameRulesClassID  int32
	OriginPropIdx     int32 // m_vecOrigin index into player class's flat vector
	OriginZPropIdx    int32 // m_vecOrigin[2] index
}

// NewStore returns an empty Store ready to accept ingested tables.
func NewStore() *Store {
	return &Store{
		Tables:            map[string]*Table{},
		ClassesByID:       map[int32]*ServerClass{},
		Flat:              map[int32][]FlatProp{},
		PlayerClassID:     -1,
		TeamClassID:       -1,
		GameRulesClassID:  -1,
		OriginPropIdx:     -1,
		OriginZPropIdx:    -1,
	}
}

// AddTable registers a raw ingested net-table, keyed by its name.
func (s *Store) AddTable(t *Table) {
	s.Tables[t.Name] = t
}

// BindClass records a server_class_id -> (name, dt_name) binding, resolving
// the DataTable pointer from already-ingested tables.
func (s *Store) BindClass(classID int32, name, dtName string) error {
	t, ok := s.Tables[dtName]
	if !ok {
		return fmt.Errorf("sendtable: class %d (%s) references unknown table %q", classID, name, dtName)
	}
	sc := &ServerClass{ClassID: classID, Name: name, DTName: dtName, Table: t}
	s.ClassesByID[classID] = sc

	switch dtName {
	case "DT_CSPlayer":
		s.PlayerClassID = classID
	case "DT_CSTeam":
		s.TeamClassID = classID
	case "DT_CSGameRulesProxy":
		s.GameRulesClassID = classID
	}
	return nil
}
