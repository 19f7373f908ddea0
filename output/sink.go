package output

import (
	"encoding/json"
	"io"

	"github.com/icza/demo/internal/semantic"
)

// Sink receives the emitted event stream and, for the structured-document
// mode, the final aggregate fields, and is responsible for producing the
// chosen output format. The pipeline calls Event for every emitted
// semantic.Event in stream order and Finish exactly once at end-of-recording.
type Sink interface {
	Event(ev semantic.Event) error
	Finish(meta MatchMeta) error
}

// MatchMeta is the handful of header/side-table fields the structured
// document needs but that don't arrive as part of the normalized event
// stream itself.
type MatchMeta struct {
	Map          string
	TickRate     float32
	ServerName   string
	PlayerNames  map[string]string
	GOTVBots     []string
	MMRankUpdate map[string]any
	PlayerSlots  map[string]int
}

// JSONSink accumulates the whole recording into one Match and writes it
// as a single JSON document on Finish, matching the teacher's
// encoding/json + SetIndent pattern.
type JSONSink struct {
	w      io.Writer
	pretty bool
	match  *Match
}

// NewJSONSink returns a JSONSink writing to w. When pretty is set, the
// final document is indented (teacher's --pretty-json analog).
func NewJSONSink(w io.Writer, pretty bool) *JSONSink {
	return &JSONSink{w: w, pretty: pretty, match: NewMatch()}
}

func (s *JSONSink) Event(ev semantic.Event) error {
	s.match.AddEvent(ev)
	return nil
}

func (s *JSONSink) Finish(meta MatchMeta) error {
	s.match.Map = meta.Map
	s.match.TickRate = meta.TickRate
	s.match.ServerName = meta.ServerName
	if meta.PlayerNames != nil {
		s.match.PlayerNames = meta.PlayerNames
	}
	s.match.GOTVBots = meta.GOTVBots
	if meta.MMRankUpdate != nil {
		s.match.MMRankUpdate = meta.MMRankUpdate
	}
	if meta.PlayerSlots != nil {
		s.match.PlayerSlots = meta.PlayerSlots
	}

	enc := json.NewEncoder(s.w)
	if s.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(s.match)
}
