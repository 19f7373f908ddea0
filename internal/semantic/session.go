// Package semantic implements C9: the single mutable Session that owns
// every derived-state sub-registry (team scores, jump timestamps, active
// smokes, bot takeover, match-start gate) and emits the normalized event
// stream, including the events with no direct wire counterpart
// (score_changed, game_restart).
package semantic

import (
	"math"

	"github.com/icza/demo/internal/entities"
	"github.com/icza/demo/internal/gameevent"
	"github.com/icza/demo/internal/players"
	"github.com/icza/demo/internal/propdecode"
	"github.com/icza/demo/internal/sendtable"
)

// Config is the subset of the CLI's flag surface (§6) that changes
// semantic-layer behavior, as opposed to pure output formatting.
type Config struct {
	OnlyHsboxEvents       bool
	SuppressFootstepEvents bool
	SuppressWarmupDeaths  bool
	DumpGameEvents        bool
	DumpDeaths            bool
}

// jumpDurationSeconds is the post-jump window (§4.8) within which a kill
// is annotated with the shooter's jump delta.
const jumpDurationSeconds = 0.75

const (
	crouchHeight = 50
	standHeight  = 72
	smokeRadius  = 140
	smokeHeight  = 130
)

// hsboxEvents is the allow-list applied when OnlyHsboxEvents is set: every
// other event type is computed (for its side effects on derived state) but
// not emitted.
var hsboxEvents = map[string]bool{
	"player_death":            true,
	"round_start":             true,
	"round_end":               true,
	"player_spawn":            true,
	"game_restart":            true,
	"score_changed":           true,
	"player_hurt":             true,
	"bomb_defused":            true,
	"player_disconnected":     true,
	"round_officially_ended":  true,
}

// Event is a normalized, emitted event: the C10 sink consumes these
// generically, keyed by Type.
type Event struct {
	Type   string
	Tick   int32
	Fields map[string]any
}

// Session is the single mutable owner of every derived sub-registry; every
// component that needs mutable cross-packet state reaches it through here
// rather than through package-level globals.
type Session struct {
	Store    *sendtable.Store
	Entities *entities.Registry
	Players  *players.Registry
	Events   *gameevent.Store

	Config Config

	CurrentTick  int32
	TickInterval float32

	teamSlotBySerial map[int32]int32 // team entity serial -> {2,3}
	teamScore        map[int32]int32 // team slot -> score
	scoreSnapshot    [2]int32        // [T, CT] at last round_start

	lastJumpTick map[int32]int32 // userid -> tick
	smokes       map[int32]propdecode.Vector3 // grenade entity id -> point

	botTakeover map[uint64]int32 // human xuid -> bot userid

	matchStarted bool
}

// NewSession wires a fresh Session against the already-flattened schema
// store and empty registries for one recording.
func NewSession(store *sendtable.Store, reg *entities.Registry, playerReg *players.Registry, evStore *gameevent.Store, cfg Config) *Session {
	return &Session{
		Store:            store,
		Entities:         reg,
		Players:          playerReg,
		Events:           evStore,
		Config:           cfg,
		teamSlotBySerial: map[int32]int32{},
		teamScore:        map[int32]int32{2: 0, 3: 0},
		lastJumpTick:     map[int32]int32{},
		smokes:           map[int32]propdecode.Vector3{},
		botTakeover:      map[uint64]int32{},
	}
}

// Keep implements entities.SelectivePolicy: in OnlyHsboxEvents mode, only
// team/gamerules property updates and the player class's origin
// coordinates are retained; everything else is still decoded (bit cursor
// parity) but discarded.
func (s *Session) Keep(classID int32, fieldIndex int) bool {
	if !s.Config.OnlyHsboxEvents {
		return true
	}
	switch classID {
	case s.Store.TeamClassID, s.Store.GameRulesClassID:
		return true
	case s.Store.PlayerClassID:
		return int32(fieldIndex) == s.Store.OriginPropIdx || int32(fieldIndex) == s.Store.OriginZPropIdx
	default:
		return false
	}
}

// shouldEmit reports whether an event of the given type should be added
// to the output stream under the current OnlyHsboxEvents configuration.
func (s *Session) shouldEmit(eventType string) bool {
	if !s.Config.OnlyHsboxEvents {
		return true
	}
	return hsboxEvents[eventType]
}

// ObserveEntityUpdate inspects one decoded property update on a live
// entity and derives score_changed / game_restart synthetic events, and
// maintains the team-slot-by-serial map. Called from the root package's
// PacketEntities observer immediately after C7 stores a non-skipped
// property value; skipped properties are not observed.
func (s *Session) ObserveEntityUpdate(e *entities.Entity, fieldIndex int, varName string, value propdecode.Value) []Event {
	switch e.ClassID {
	case s.Store.TeamClassID:
		return s.observeTeamProp(e.Serial, varName, value)
	case s.Store.GameRulesClassID:
		return s.observeGameRulesProp(varName, value)
	}
	return nil
}

func (s *Session) observeTeamProp(serial int32, varName string, value propdecode.Value) []Event {
	if varName == "m_iTeamNum" {
		if value.Int32 == 2 || value.Int32 == 3 {
			s.teamSlotBySerial[serial] = value.Int32
		}
		return nil
	}
	if varName != "m_scoreTotal" {
		return nil
	}
	slot, ok := s.teamSlotBySerial[serial]
	if !ok {
		return nil
	}
	changed := s.updateTeamScore(slot, value.Int32)
	if !changed {
		return nil
	}
	ev := Event{
		Type: "score_changed",
		Tick: s.CurrentTick,
		Fields: map[string]any{
			"score": [2]int32{s.teamScore[2], s.teamScore[3]},
		},
	}
	if !s.shouldEmit(ev.Type) {
		return nil
	}
	return []Event{ev}
}

// updateTeamScore applies §3's side-swap guard: a value below both
// round-start snapshot entries is a side-swap artifact and is dropped
// silently (not just unemitted — the score itself is not updated).
func (s *Session) updateTeamScore(slot int32, val int32) bool {
	if val < s.scoreSnapshot[0] && val < s.scoreSnapshot[1] {
		return false
	}
	if s.teamScore[slot] == val {
		return false
	}
	s.teamScore[slot] = val
	return true
}

func (s *Session) observeGameRulesProp(varName string, value propdecode.Value) []Event {
	if varName != "m_bGameRestart" || value.Int32 == 0 {
		return nil
	}
	ev := Event{Type: "game_restart", Tick: s.CurrentTick, Fields: map[string]any{}}
	if !s.shouldEmit(ev.Type) {
		return nil
	}
	return []Event{ev}
}

// FindPlayerEntityIndex resolves a transient userid to the networked
// entity id that carries that player's origin property, via the
// player-info vector's dense slot (mirrors the original's linear scan:
// entity index is slot + 1, 0 being the world entity).
func (s *Session) FindPlayerEntityIndex(userID int32) (int32, bool) {
	info, ok := s.Players.ByUserID(userID)
	if !ok {
		return 0, false
	}
	for i, slotInfo := range s.Players.Slots() {
		if slotInfo == info {
			return int32(i) + 1, true
		}
	}
	return 0, false
}

func (s *Session) playerOrigin(userID int32) (propdecode.Vector3, bool) {
	entIdx, ok := s.FindPlayerEntityIndex(userID)
	if !ok {
		return propdecode.Vector3{}, false
	}
	e, ok := s.Entities.Get(entIdx)
	if !ok {
		return propdecode.Vector3{}, false
	}
	xy, hasXY := e.Props[int(s.Store.OriginPropIdx)]
	z, hasZ := e.Props[int(s.Store.OriginZPropIdx)]
	if !hasXY {
		return propdecode.Vector3{}, false
	}
	pos := propdecode.Vector3{X: xy.Vector3.X, Y: xy.Vector3.Y}
	if xy.Kind == propdecode.KindVector2 {
		pos = propdecode.Vector3{X: xy.Vector2.X, Y: xy.Vector2.Y}
	}
	if hasZ {
		pos.Z = z.Float
	}
	return pos, true
}

// HandleJump records a player_jump tick for later kill-attribution.
func (s *Session) HandleJump(userID int32) {
	s.lastJumpTick[userID] = s.CurrentTick
}

// HandleSmokeDetonate records an active smoke.
func (s *Session) HandleSmokeDetonate(entityID int32, p propdecode.Vector3) {
	s.smokes[entityID] = p
}

// HandleSmokeExpired forgets a smoke.
func (s *Session) HandleSmokeExpired(entityID int32) {
	delete(s.smokes, entityID)
}

// HandleBotTakeover records a human-xuid-to-bot-userid credit route.
func (s *Session) HandleBotTakeover(humanXuid uint64, botUserID int32) {
	s.botTakeover[humanXuid] = botUserID
}

// HandleRoundStart snapshots the current scores and clears the
// bot-takeover map and active smokes (§4.8).
func (s *Session) HandleRoundStart() {
	s.scoreSnapshot = [2]int32{s.teamScore[2], s.teamScore[3]}
	s.botTakeover = map[uint64]int32{}
	s.smokes = map[int32]propdecode.Vector3{}
}

// ResolveCredit implements the player-info enrichment rule of §4.7: for a
// non-bot player, substitute the stable xuid for the transient userid;
// while an active takeover is in effect for that xuid, credit instead
// flows to the bot's userid, except for the assister key and spawn
// bookkeeping which stay with the human.
func (s *Session) ResolveCredit(eventType, keyName string, userID int32) int64 {
	info, ok := s.Players.ByUserID(userID)
	if !ok || info.IsBot {
		return int64(userID)
	}
	xuid := info.Xuid
	if botUserID, taken := s.botTakeover[xuid]; taken {
		exempt := eventType == "bot_takeover" || eventType == "player_spawn" ||
			(eventType == "player_death" && keyName == "assister")
		if !exempt {
			return int64(botUserID)
		}
	}
	return int64(xuid)
}

// MatchStarted reports whether round_announce_match_start has been
// observed yet.
func (s *Session) MatchStarted() bool { return s.matchStarted }

// HandleMatchStart records that round_announce_match_start has occurred.
func (s *Session) HandleMatchStart() { s.matchStarted = true }

// AllowDeathReport implements the MatchStart gate (§4.8): death events are
// suppressed pre-match-start only when SuppressWarmupDeaths is set.
func (s *Session) AllowDeathReport() bool {
	return !s.Config.SuppressWarmupDeaths || s.matchStarted
}

// AnnotateDeath attaches jump/position/smoke-occlusion fields to a
// player_death event per §4.8, given the already-resolved attacker and
// victim userids (pre-credit-substitution transient ids, since jump
// tracking and position lookup both key off userid, not xuid).
func (s *Session) AnnotateDeath(fields map[string]any, attackerUserID, victimUserID int32) {
	if s.TickInterval > 0 {
		if jumpTick, ok := s.lastJumpTick[attackerUserID]; ok {
			window := int32(jumpDurationSeconds / float64(s.TickInterval))
			if jumpTick >= s.CurrentTick-window {
				fields["jump"] = s.CurrentTick - jumpTick
			}
		}
	}

	attackerPos, okA := s.playerOrigin(attackerUserID)
	victimPos, okV := s.playerOrigin(victimUserID)
	if !okA || !okV {
		return
	}
	fields["attacker_pos"] = attackerPos
	fields["victim_pos"] = victimPos

	smokes := s.intersectingSmokes(attackerPos, victimPos)
	if len(smokes) > 0 {
		fields["smoke"] = smokes
	}
}

// intersectingSmokes implements the smoke occlusion test of §4.8: a smoke
// is credited only when BOTH the foot-to-foot and foot-to-head sightlines
// from the shooter's eye position intersect its capped cylinder.
func (s *Session) intersectingSmokes(shooterFoot, victimFoot propdecode.Vector3) []propdecode.Vector3 {
	eye := propdecode.Vector3{X: shooterFoot.X, Y: shooterFoot.Y, Z: shooterFoot.Z + crouchHeight}
	head := propdecode.Vector3{X: victimFoot.X, Y: victimFoot.Y, Z: victimFoot.Z + standHeight}

	var out []propdecode.Vector3
	for _, center := range s.smokes {
		if segmentIntersectsCylinder(eye, victimFoot, center, smokeRadius, smokeHeight) &&
			segmentIntersectsCylinder(eye, head, center, smokeRadius, smokeHeight) {
			out = append(out, center)
		}
	}
	return out
}

// segmentIntersectsCylinder tests whether the segment a->b intersects the
// vertical capped cylinder of the given radius and height based at
// center. This is a standard ray-vs-capped-cylinder test: solve the
// quadratic for the infinite-cylinder intersection in XY, then clamp the
// resulting parametric interval to the segment and the cylinder's Z
// extent.
func segmentIntersectsCylinder(a, b, center propdecode.Vector3, radius, height float32) bool {
	dx, dy := b.X-a.X, b.Y-a.Y
	fx, fy := a.X-center.X, a.Y-center.Y

	aa := float64(dx*dx + dy*dy)
	bb := float64(2 * (fx*dx + fy*dy))
	cc := float64(fx*fx+fy*fy) - float64(radius*radius)

	tMin, tMax := 0.0, 1.0

	if aa < 1e-9 {
		// The segment is vertical in XY: either it's inside the circle for
		// its entire length, or it never is.
		if cc > 0 {
			return false
		}
	} else {
		disc := bb*bb - 4*aa*cc
		if disc < 0 {
			return false
		}
		sqrtDisc := math.Sqrt(disc)
		t0 := (-bb - sqrtDisc) / (2 * aa)
		t1 := (-bb + sqrtDisc) / (2 * aa)
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tMax || t1 < tMin {
			return false
		}
		if t0 > tMin {
			tMin = t0
		}
		if t1 < tMax {
			tMax = t1
		}
	}

	// Clamp to the cylinder's Z extent (base at center.Z, cap at
	// center.Z+height) by intersecting the valid-t interval with the
	// t-range over which the segment's Z stays within [center.Z, center.Z+height].
	dz := float64(b.Z - a.Z)
	z0 := float64(a.Z - center.Z)
	if dz == 0 {
		if z0 < 0 || z0 > float64(height) {
			return false
		}
		return tMin <= tMax
	}
	tzLo := (0 - z0) / dz
	tzHi := (float64(height) - z0) / dz
	if tzLo > tzHi {
		tzLo, tzHi = tzHi, tzLo
	}
	if tzLo > tMin {
		tMin = tzLo
	}
	if tzHi < tMax {
		tMax = tzHi
	}
	return tMin <= tMax
}
