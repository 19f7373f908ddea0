// Package demo parses Counter-Strike: Global Offensive .dem recordings,
// reconstructing game state from the send-table/entity/string-table wire
// protocol and emitting a normalized event stream.
package demo

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/icza/demo/internal/bitread"
	"github.com/icza/demo/internal/entities"
	"github.com/icza/demo/internal/framer"
	"github.com/icza/demo/internal/gameevent"
	"github.com/icza/demo/internal/players"
	"github.com/icza/demo/internal/propdecode"
	"github.com/icza/demo/internal/semantic"
	"github.com/icza/demo/internal/sendtable"
	"github.com/icza/demo/internal/strtable"
	"github.com/icza/demo/internal/wire"
	"github.com/icza/demo/output"
)

// Config controls both the semantic layer's derived-state behavior and
// which message classes are traced for debugging.
type Config struct {
	semantic.Config

	ExtraPlayerInfo    bool
	DumpStringTables   bool
	DumpDataTables     bool
	DumpPacketEntities bool
	DumpNetMessages    bool

	// Logger receives structured diagnostics for the run. The zero value
	// (zerolog.Nop()) is silent.
	Logger zerolog.Logger
}

// ParseFile opens name, parses it against cfg, and streams the result into
// sink.
func ParseFile(name string, cfg Config, sink output.Sink) (err error) {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return Parse(f, cfg, sink)
}

// Parse reads one recording from r, parses it against cfg, and streams the
// result into sink.
func Parse(r io.Reader, cfg Config, sink output.Sink) (err error) {
	return parseProtected(r, cfg, sink)
}

// parseProtected calls parse but recovers any panic into ErrParsing,
// logging the stack the way the teacher's own parseProtected does, just
// through the structured logger rather than the standard log package.
func parseProtected(r io.Reader, cfg Config, sink output.Sink) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			cfg.Logger.Error().
				Interface("panic", rec).
				Str("stack", string(buf[:n])).
				Msg("demo: recovered from panic while parsing")
			err = ErrParsing
		}
	}()
	return parse(r, cfg, sink)
}

// session bundles every registry the wire dispatch loop needs, so the
// per-opcode handlers stay free functions taking one argument instead of a
// dozen.
type session struct {
	store    *sendtable.Store
	entities *entities.Registry
	players  *players.Registry
	events   *gameevent.Store
	sem      *semantic.Session

	tables   map[int32]*strtable.Table
	userinfo *strtable.Table
	sink     output.Sink
	cfg      Config
	log      zerolog.Logger
	meta     output.MatchMeta
}

func parse(r io.Reader, cfg Config, sink output.Sink) error {
	br := framer.BufferedReader(r)

	header, err := framer.ReadHeader(br)
	if err != nil {
		return err
	}

	s := &session{
		store:    sendtable.NewStore(),
		players:  players.New(),
		events:   gameevent.NewStore(),
		tables:   map[int32]*strtable.Table{},
		sink:     sink,
		cfg:      cfg,
		log:      cfg.Logger,
		meta:     output.MatchMeta{Map: header.MapName, ServerName: header.ServerName, PlayerNames: map[string]string{}, PlayerSlots: map[string]int{}},
	}
	s.entities = entities.New(s.store)

	s.log.Debug().Str("map", header.MapName).Int32("ticks", header.PlaybackTicks).Msg("demo: parsing header")

readLoop:
	for {
		cmd, err := framer.ReadCommand(br)
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}

		if s.sem != nil {
			s.sem.CurrentTick = cmd.Tick
		}

		switch cmd.Cmd {
		case framer.CmdStop:
			break readLoop

		case framer.CmdDataTables:
			if cfg.DumpDataTables {
				s.log.Debug().Int("bytes", len(cmd.Payload)).Msg("demo: datatables block")
			}
			if err := framer.ParseDataTables(cmd.Payload, s.store); err != nil {
				return err
			}
			// The schema is only complete once every send table and class
			// binding has been ingested: the semantic session and entity
			// registry both need it settled before the first packet arrives.
			s.sem = semantic.NewSession(s.store, s.entities, s.players, s.events, cfg.Config)

		case framer.CmdStringTables:
			if cfg.DumpStringTables {
				s.log.Debug().Int("bytes", len(cmd.Payload)).Msg("demo: full string-tables snapshot (unparsed)")
			}

		case framer.CmdSignon, framer.CmdPacket:
			// dispatchMessages already recovers every non-fatal error kind
			// per message; whatever it returns here is fatal (§7).
			if err := s.dispatchMessages(cmd.Payload); err != nil {
				return err
			}

		case framer.CmdSyncTick, framer.CmdConsoleCmd, framer.CmdUserCmd, framer.CmdCustomData:
			// Framed past but not interpreted: none of C1-C10 need these.
		}
	}

	s.meta.GOTVBots = s.gotvBots()
	for _, p := range s.players.Slots() {
		if p == nil {
			continue
		}
		s.meta.PlayerNames[fmt.Sprint(players.Xuid(p))] = p.Name
		if cfg.ExtraPlayerInfo {
			s.meta.PlayerSlots[p.Name] = int(p.UserID)
		}
	}
	return sink.Finish(s.meta)
}

func (s *session) gotvBots() []string {
	var out []string
	for _, p := range s.players.Slots() {
		if p != nil && p.IsHLTV {
			out = append(out, p.Name)
		}
	}
	return out
}

func (s *session) emit(evs []semantic.Event) error {
	for _, ev := range evs {
		if err := s.sink.Event(ev); err != nil {
			return err
		}
	}
	return nil
}

// isFatal reports whether err belongs to one of the three fatal error
// kinds (§7: CorruptFraming, RunawayFieldIndex, I/O failure). Every other
// recognized kind (Truncated, UnsupportedEncoding, PropertyDecodeError) is
// scoped to the unit that produced it and lets parsing continue.
func isFatal(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, framer.ErrCorruptFraming),
		errors.Is(err, entities.ErrRunawayFieldIndex):
		return true
	case errors.Is(err, bitread.ErrTruncated),
		errors.Is(err, strtable.ErrUnsupportedEncoding),
		errors.Is(err, entities.ErrPropertyDecode):
		return false
	}
	// Anything unrecognized (including real I/O errors surfacing through
	// the reader) is treated as fatal: §7 only carves out the three
	// explicitly-scoped kinds above.
	return true
}

func (s *session) dispatchMessages(payload []byte) error {
	msgs, err := framer.Messages(payload)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		if s.cfg.DumpNetMessages {
			s.log.Debug().Str("opcode", wire.OpcodeName(m.Opcode)).Int("bytes", len(m.Payload)).Msg("demo: net message")
		}
		if err := s.dispatchMessage(m); err != nil {
			if isFatal(err) {
				return err
			}
			// UnsupportedEncoding scopes to the one string-table update
			// that carried it; Truncated/PropertyDecodeError scope to the
			// one message whose bit cursor went bad. Either way the next
			// message in this packet is still framed independently
			// (framer.Messages already split the payload), so move on.
			s.log.Warn().Err(err).Str("opcode", wire.OpcodeName(m.Opcode)).Msg("demo: abandoning message")
		}
	}
	return nil
}

func (s *session) dispatchMessage(m framer.Message) error {
	switch m.Opcode {
	case wire.SvcServerInfo:
		return s.handleServerInfo(m.Payload)
	case wire.SvcCreateStringTable:
		return s.handleCreateStringTable(m.Payload)
	case wire.SvcUpdateStringTable:
		return s.handleUpdateStringTable(m.Payload)
	case wire.SvcPacketEntities:
		return s.handlePacketEntities(m.Payload)
	case wire.SvcGameEventList:
		return s.events.IngestGameEventList(m.Payload)
	case wire.SvcGameEvent:
		return s.handleGameEvent(m.Payload)
	default:
		return nil
	}
}

// CSVCMsg_ServerInfo field numbers (tick_interval and map_name are the
// only two fields the semantic layer needs out of this message).
const (
	serverInfoFieldTickInterval = 14
	serverInfoFieldMapName      = 16
)

func (s *session) handleServerInfo(payload []byte) error {
	msg, err := wire.Parse(payload)
	if err != nil {
		return fmt.Errorf("demo: server info: %w", err)
	}
	if v, ok := msg.Float32(serverInfoFieldTickInterval); ok {
		if v > 0 {
			s.meta.TickRate = 1 / v
		}
		if s.sem != nil {
			s.sem.TickInterval = v
		}
	}
	if name, ok := msg.String(serverInfoFieldMapName); ok && name != "" {
		s.meta.Map = name
	}
	return nil
}

func (s *session) handleCreateStringTable(payload []byte) error {
	msg, err := strtable.ParseCreateStringTable(payload)
	if err != nil {
		return err
	}
	isUserInfo := msg.Name == "userinfo"
	t := strtable.NewTable(msg.Name, int(msg.MaxEntries), msg.UserDataFixedSize, int(msg.UserDataSizeBits), int(msg.UserDataSize), isUserInfo, s.players)
	tableID := int32(len(s.tables))
	s.tables[tableID] = t
	if isUserInfo {
		s.userinfo = t
	}
	if len(msg.StringData) == 0 {
		return nil
	}
	if err := t.ApplyUpdate(msg.StringData, int(msg.NumEntries)); err != nil {
		return fmt.Errorf("demo: create string table %q: %w", msg.Name, err)
	}
	return nil
}

func (s *session) handleUpdateStringTable(payload []byte) error {
	msg, err := strtable.ParseUpdateStringTable(payload)
	if err != nil {
		return err
	}
	t, ok := s.tables[msg.TableID]
	if !ok {
		return fmt.Errorf("demo: update for unknown string table id %d", msg.TableID)
	}
	if err := t.ApplyUpdate(msg.StringData, int(msg.NumChangedEntries)); err != nil {
		return fmt.Errorf("demo: update string table %d: %w", msg.TableID, err)
	}
	return nil
}

// CSVCMsg_PacketEntities field numbers.
const (
	packetEntitiesFieldUpdatedEntries = 2
	packetEntitiesFieldIsDelta        = 3
	packetEntitiesFieldEntityData     = 8
)

func (s *session) handlePacketEntities(payload []byte) error {
	msg, err := wire.Parse(payload)
	if err != nil {
		return fmt.Errorf("demo: packet entities: %w", err)
	}
	updated, _ := msg.Int32(packetEntitiesFieldUpdatedEntries)
	isDelta, _ := msg.Bool(packetEntitiesFieldIsDelta)
	data, _ := msg.Bytes(packetEntitiesFieldEntityData)

	var policy entities.SelectivePolicy
	if s.sem != nil {
		policy = s.sem
	}

	bits := bitread.New(data)
	var pending []semantic.Event
	observe := func(e *entities.Entity, fieldIndex int, varName string, v propdecode.Value) {
		if s.sem == nil {
			return
		}
		pending = append(pending, s.sem.ObserveEntityUpdate(e, fieldIndex, varName, v)...)
	}

	err = s.entities.ApplyPacketEntities(bits, int(updated), isDelta, policy, observe)
	if err != nil {
		return fmt.Errorf("demo: packet entities: %w", err)
	}
	if s.cfg.DumpPacketEntities {
		s.log.Debug().Int32("updated", updated).Bool("delta", isDelta).Msg("demo: packet entities")
	}
	return s.emit(pending)
}

func (s *session) handleGameEvent(payload []byte) error {
	tick := int32(0)
	if s.sem != nil {
		tick = s.sem.CurrentTick
	}
	ev, err := s.events.Bind(payload, tick)
	if err != nil {
		return err
	}
	if ev == nil || s.sem == nil {
		return nil
	}
	return s.emit(s.sem.ProcessGameEvent(ev))
}
