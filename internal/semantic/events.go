package semantic

import (
	"github.com/icza/demo/internal/gameevent"
	"github.com/icza/demo/internal/players"
	"github.com/icza/demo/internal/propdecode"
)

func vector3From(x, y, z float32) propdecode.Vector3 {
	return propdecode.Vector3{X: x, Y: y, Z: z}
}

// creditKeys are the game-event keys that carry a transient userid needing
// substitution per §4.7.
var creditKeys = map[string]bool{"userid": true, "attacker": true, "assister": true}

// ProcessGameEvent binds, enriches and (conditionally) emits one decoded
// GameEvent. It always runs the derived-state side effects (jump tracking,
// smoke bookkeeping, score snapshot, bot takeover, match-start) regardless
// of whether the resulting Event passes the current emission filter,
// mirroring the original's "always update internal state, only sometimes
// push to events[]" structure.
func (s *Session) ProcessGameEvent(ev *gameevent.Event) []Event {
	if ev == nil {
		return nil
	}
	if ev.Type == "player_footstep" && s.Config.SuppressFootstepEvents {
		return nil
	}

	if handled, out := s.handleConnectDisconnect(ev); handled {
		return out
	}

	if ev.Type == "round_announce_match_start" {
		s.HandleMatchStart()
	}

	fields := map[string]any{}
	for _, kv := range ev.Values {
		fields[kv.Name] = rawValue(kv)
	}

	switch ev.Type {
	case "player_jump":
		if uid, ok := ev.Value("userid"); ok {
			s.HandleJump(int32(uid.Short))
		}
	case "smokegrenade_detonate":
		s.handleSmokeDetonateEvent(ev, fields)
	case "smokegrenade_expired":
		if eid, ok := ev.Value("entityid"); ok {
			s.HandleSmokeExpired(eid.Long)
		}
	case "bot_takeover":
		s.handleBotTakeoverEvent(ev)
	case "round_start":
		s.HandleRoundStart()
	}

	if ev.Type == "player_death" {
		if !s.Config.DumpDeaths || !s.AllowDeathReport() {
			return nil
		}
		attacker, _ := ev.Value("attacker")
		victim, _ := ev.Value("userid")
		s.AnnotateDeath(fields, int32(attacker.Short), int32(victim.Short))
	}

	for _, kv := range ev.Values {
		if creditKeys[kv.Name] {
			fields[kv.Name] = s.ResolveCredit(ev.Type, kv.Name, int32(kv.Short))
		}
	}

	if !s.Config.DumpGameEvents || !s.shouldEmit(ev.Type) {
		return nil
	}
	return []Event{{Type: ev.Type, Tick: ev.Tick, Fields: fields}}
}

func (s *Session) handleSmokeDetonateEvent(ev *gameevent.Event, fields map[string]any) {
	eid, _ := ev.Value("entityid")
	x, _ := ev.Value("x")
	y, _ := ev.Value("y")
	z, _ := ev.Value("z")
	p := vector3From(x.Float, y.Float, z.Float)
	s.HandleSmokeDetonate(eid.Long, p)
}

func (s *Session) handleBotTakeoverEvent(ev *gameevent.Event) {
	userID, ok1 := ev.Value("userid")
	botID, ok2 := ev.Value("botid")
	if !ok1 || !ok2 {
		return
	}
	info, ok := s.Players.ByUserID(int32(userID.Short))
	if !ok {
		return
	}
	s.HandleBotTakeover(info.Xuid, int32(botID.Long))
}

// handleConnectDisconnect mirrors HandlePlayerConnectDisconnectEvents: the
// authoritative player-info join path is the userinfo string table, but
// bots never appear there, and a connect/disconnect event is the only
// place bot identities are ever created. Real players are added here too
// as a fallback, and an existing slot's name is replaced in place when it
// differs. Returns handled=true when the event was a connect/disconnect
// (the original never forwards these through the generic event path).
func (s *Session) handleConnectDisconnect(ev *gameevent.Event) (handled bool, out []Event) {
	switch ev.Type {
	case "player_connect", "player_connect_full":
		userID, _ := ev.Value("userid")
		name, _ := ev.Value("name")
		networkID, _ := ev.Value("networkid")
		bot, _ := ev.Value("bot")

		info := &players.Info{
			UserID: int32(userID.Short),
			Name:   name.String,
			GUID:   networkID.String,
			IsBot:  bot.Bool,
		}
		if info.IsBot {
			info.Xuid = uint64(info.UserID)
		} else if xuid, ok := players.GUIDToXuid(info.GUID); ok {
			info.Xuid = xuid
		}

		if existing, ok := s.Players.ByUserID(info.UserID); ok {
			for i, slotInfo := range s.Players.Slots() {
				if slotInfo == existing {
					s.Players.Put(i, info)
					break
				}
			}
		} else {
			s.Players.Put(len(s.Players.Slots()), info)
		}
		return true, nil

	case "player_disconnect":
		return true, nil
	}
	return false, nil
}

func rawValue(kv gameevent.KeyValue) any {
	switch kv.Type {
	case gameevent.KeyString:
		return kv.String
	case gameevent.KeyFloat:
		return kv.Float
	case gameevent.KeyLong:
		return kv.Long
	case gameevent.KeyShort:
		return kv.Short
	case gameevent.KeyByte:
		return kv.Byte
	case gameevent.KeyBool:
		return kv.Bool
	case gameevent.KeyUint64:
		return kv.Uint64
	default:
		return nil
	}
}
