// Package output implements C10: the two emission modes, a line-oriented
// textual trace and a single aggregated structured document.
package output

import (
	"encoding/json"

	"github.com/icza/demo/internal/semantic"
)

// EventDoc is the JSON-facing shape of one semantic.Event: Fields is
// flattened alongside type/tick rather than nested, matching the
// original's flat per-event object tree.
type EventDoc struct {
	Type   string
	Tick   int32
	Fields map[string]any
}

// MarshalJSON flattens Type, Tick and Fields into one JSON object.
func (e EventDoc) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(e.Fields)+2)
	for k, v := range e.Fields {
		obj[k] = v
	}
	obj["type"] = e.Type
	obj["tick"] = e.Tick
	return json.Marshal(obj)
}

func fromSemanticEvent(ev semantic.Event) EventDoc {
	return EventDoc{Type: ev.Type, Tick: ev.Tick, Fields: ev.Fields}
}

// Match is the single aggregated structured document, built once and
// written after end-of-recording (§4.9, §3 "Supplemented features").
type Match struct {
	Map         string            `json:"map"`
	TickRate    float32           `json:"tickrate"`
	ServerName  string            `json:"servername"`
	Events      []EventDoc        `json:"events"`
	PlayerNames map[string]string `json:"player_names"`
	GOTVBots    []string          `json:"gotv_bots"`
	MMRankUpdate map[string]any   `json:"mm_rank_update"`
	PlayerSlots map[string]int    `json:"player_slots"`
}

// NewMatch returns an empty Match with its maps initialized.
func NewMatch() *Match {
	return &Match{
		PlayerNames:  map[string]string{},
		MMRankUpdate: map[string]any{},
		PlayerSlots:  map[string]int{},
	}
}

// AddEvent appends one semantic event to the document in stream order.
func (m *Match) AddEvent(ev semantic.Event) {
	m.Events = append(m.Events, fromSemanticEvent(ev))
}
