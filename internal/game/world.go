package game

import (
	"fmt"

	"github.com/rs/zerolog"
)

// World is the simulation context handed to every component call. It owns
// all mutable state of one simulation; there are no package-level singletons.
type World struct {
	Tick    int
	Time    float64
	Tuning  *Tuning
	Terrain Terrain
	Nav     *NavGrid
	Units   *UnitArena
	Squads  *SquadRoster
	Physics *PhysicsWorld
	Mission *Mission // nil for sandbox simulations
	Log     zerolog.Logger
	SimLog  *SimLog

	events        []Event
	orderFailures []*OrderUnreachableError
	deaths        map[Side]int
	metrics       *simMetrics
}

func newWorld(t *Tuning, terrain Terrain, log zerolog.Logger, simLog *SimLog) *World {
	w := &World{
		Tuning:  t,
		Terrain: terrain,
		Nav:     NewNavGrid(terrain, t.NavCellSize, t.UnitRadius),
		Units:   NewUnitArena(),
		Squads:  NewSquadRoster(),
		Log:     log,
		SimLog:  simLog,
		deaths:  make(map[Side]int),
	}
	w.Physics = NewPhysicsWorld(t, terrain.Bounds())
	return w
}

// Deaths is the number of units of a side killed so far.
func (w *World) Deaths(side Side) int { return w.deaths[side] }

// emit records a presentation event for this tick's snapshot.
func (w *World) emit(e Event) {
	e.Tick = w.Tick
	w.events = append(w.events, e)
}

// SquadSpec describes a squad to instantiate.
type SquadSpec struct {
	Type      string
	Name      string
	Position  Vec2
	Size      int
	Group     string
	Formation FormationType
	Facing    float64
}

// SpawnSquad creates the units of spec in formation around its position and
// registers the squad.
func (w *World) SpawnSquad(spec SquadSpec, side Side) (*Squad, error) {
	types, err := ComposeSquad(spec.Type, spec.Size)
	if err != nil {
		return nil, err
	}
	return w.SpawnSquadOf(spec, side, types)
}

// SpawnSquadOf is SpawnSquad with an explicit unit type per member.
func (w *World) SpawnSquadOf(spec SquadSpec, side Side, types []*UnitType) (*Squad, error) {
	if len(types) == 0 {
		return nil, fmt.Errorf("squad %q: no members", spec.Name)
	}
	if !spec.Position.IsFinite() {
		return nil, fmt.Errorf("squad %q: non-finite position", spec.Name)
	}
	sqID := w.Squads.nextID
	offs := formationOffsets(spec.Formation, len(types), w.Tuning.SlotSpacing)
	ids := make([]UnitID, 0, len(types))
	for i, t := range types {
		pos := SlotWorld(spec.Position, spec.Facing, offs[i][0], offs[i][1])
		if !w.Terrain.Walkable(pos) {
			pos = spec.Position
		}
		u := w.Units.Spawn(t, side, sqID, pos)
		u.facing = spec.Facing
		ids = append(ids, u.id)
	}
	sq := w.Squads.Create(spec.Name, side, spec.Type, ids, spec.Formation)
	sq.Group = spec.Group
	sq.Facing = spec.Facing
	sq.AnchorPos = spec.Position
	if a := w.Units.Unit(sq.Anchor); a != nil {
		sq.AnchorPos = a.pos
	}
	sq.Fearless = true
	for _, t := range types {
		if !t.Caps.Has(CapFearless) {
			sq.Fearless = false
			break
		}
	}
	if w.Mission != nil && spec.Group != "" {
		w.Mission.TrackGroup(spec.Group, sq.ID)
	}
	w.SimLog.Add(w.Tick, "--", side.String(), "squad", "spawn",
		fmt.Sprintf("%s x%d (%s) at (%.1f,%.1f)", spec.Name, len(ids), spec.Type, spec.Position.X, spec.Position.Y), float64(len(ids)))
	w.emit(Event{Kind: EventSquadSpawned, Squad: sq.ID, Pos: spec.Position, Detail: spec.Name})
	return sq, nil
}

// IssueOrder replaces a squad's current order. A squad whose anchor has died
// promotes its healthiest survivor to anchor first.
func (w *World) IssueOrder(id SquadID, o Order) error {
	sq, ok := w.Squads.Get(id)
	if !ok {
		return fmt.Errorf("issue order to squad %d: %w", id, ErrUnknownSquad)
	}
	if sq.Disbanded() {
		return fmt.Errorf("issue order to squad %d: %w", id, ErrSquadDisbanded)
	}
	switch o.Kind {
	case OrderHold:
	case OrderMoveTo:
		if !o.Target.IsFinite() {
			return fmt.Errorf("issue order to squad %d: non-finite target: %w", id, ErrInvalidOrder)
		}
	case OrderAttack:
		if _, ok := w.Squads.Get(o.TargetSquad); !ok {
			return fmt.Errorf("issue order to squad %d: attack target %d: %w", id, o.TargetSquad, ErrUnknownSquad)
		}
	default:
		return fmt.Errorf("issue order to squad %d: kind %d: %w", id, o.Kind, ErrInvalidOrder)
	}
	if !sq.anchorAlive(w.Units) {
		sq.reassignAnchor(w.Units)
	}
	prev := sq.Order
	sq.Order = o
	for _, u := range sq.Alive(w.Units) {
		u.status &^= StatusHolding
		u.stallTicks = 0
		u.clearPath()
	}
	w.SimLog.Add(w.Tick, sq.Name, sq.Side.String(), "squad", "order",
		fmt.Sprintf("%s → %s", prev, o), 0)
	return nil
}

// SetFormation changes a squad's formation; slots are recomputed next tick.
func (w *World) SetFormation(id SquadID, ft FormationType) error {
	sq, ok := w.Squads.Get(id)
	if !ok {
		return fmt.Errorf("set formation of squad %d: %w", id, ErrUnknownSquad)
	}
	if sq.Disbanded() {
		return fmt.Errorf("set formation of squad %d: %w", id, ErrSquadDisbanded)
	}
	sq.Formation = ft
	sq.slotsDirty = true
	return nil
}

// FormationSlotFor returns the world-space offset of a unit's formation slot
// from its squad anchor.
func (w *World) FormationSlotFor(id UnitID) (Vec2, bool) {
	u := w.Units.Unit(id)
	if u == nil || !u.Alive() {
		return Vec2{}, false
	}
	sq, ok := w.Squads.Get(u.squad)
	if !ok || sq.Disbanded() {
		return Vec2{}, false
	}
	sq.refreshSlots(w.Units)
	return sq.slotOffset(id, w.Tuning.SlotSpacing)
}

// hostilesOf returns living units hostile to side in ID order.
func (w *World) hostilesOf(side Side) []*Unit {
	var out []*Unit
	for _, u := range w.Units.All() {
		if u.Alive() && u.side.Hostile(side) {
			out = append(out, u)
		}
	}
	return out
}

// hasLivingSquad reports whether side still fields an active squad.
func (w *World) hasLivingSquad(side Side) bool {
	for _, sq := range w.Squads.Active() {
		if sq.Side == side && sq.LivingCount(w.Units) > 0 {
			return true
		}
	}
	return false
}
