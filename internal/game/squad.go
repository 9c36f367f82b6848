package game

import (
	"fmt"
	"math"
)

// SquadID identifies a squad. IDs are never reused.
type SquadID int

// SquadState is the squad's behavioural state.
type SquadState int

const (
	SquadActive SquadState = iota
	SquadRetreating
	SquadDisbanded
)

func (ss SquadState) String() string {
	switch ss {
	case SquadActive:
		return "active"
	case SquadRetreating:
		return "retreating"
	case SquadDisbanded:
		return "disbanded"
	default:
		return "unknown"
	}
}

// OrderKind is the squad-level command.
type OrderKind int

const (
	OrderHold OrderKind = iota
	OrderMoveTo
	OrderAttack
)

func (ok OrderKind) String() string {
	switch ok {
	case OrderHold:
		return "hold"
	case OrderMoveTo:
		return "move_to"
	case OrderAttack:
		return "attack"
	default:
		return "unknown"
	}
}

// Order is a squad's current command.
type Order struct {
	Kind        OrderKind
	Target      Vec2    // OrderMoveTo
	TargetSquad SquadID // OrderAttack
}

// HoldOrder keeps the squad where it is.
func HoldOrder() Order { return Order{Kind: OrderHold} }

// MoveOrder sends the squad's anchor to p.
func MoveOrder(p Vec2) Order { return Order{Kind: OrderMoveTo, Target: p} }

// AttackOrder closes on and engages another squad.
func AttackOrder(target SquadID) Order { return Order{Kind: OrderAttack, TargetSquad: target} }

func (o Order) String() string {
	switch o.Kind {
	case OrderMoveTo:
		return fmt.Sprintf("move_to(%.1f,%.1f)", o.Target.X, o.Target.Y)
	case OrderAttack:
		return fmt.Sprintf("attack(%d)", o.TargetSquad)
	default:
		return o.Kind.String()
	}
}

// Squad groups units under a formation anchor. Members are weak references
// into the UnitArena.
type Squad struct {
	ID        SquadID
	Name      string
	Side      Side
	Kind      string // composition type from the mission definition
	Group     string // tactical group tag for defeat_all objectives
	Members   []UnitID
	Formation FormationType

	Anchor    UnitID
	AnchorPos Vec2
	Facing    float64

	Order  Order
	Morale float64
	State  SquadState

	Fearless    bool
	Veteran     bool
	InitialSize int
	Kills       int
	PriorKills  int // kills carried over from earlier missions

	livingAtEval  int
	slots         map[UnitID]int
	slotCount     int
	slotsDirty    bool
	disbandedTick int
}

func newSquad(id SquadID, name string, side Side, kind string, members []UnitID, ft FormationType) *Squad {
	sq := &Squad{
		ID:            id,
		Name:          name,
		Side:          side,
		Kind:          kind,
		Members:       members,
		Formation:     ft,
		Anchor:        -1,
		Order:         HoldOrder(),
		Morale:        1.0,
		InitialSize:   len(members),
		livingAtEval:  len(members),
		slotsDirty:    true,
		disbandedTick: -1,
	}
	if len(members) > 0 {
		sq.Anchor = members[0]
	}
	return sq
}

// Alive returns the living members in member order.
func (sq *Squad) Alive(arena *UnitArena) []*Unit {
	var alive []*Unit
	for _, id := range sq.Members {
		if u := arena.Unit(id); u != nil && u.Alive() {
			alive = append(alive, u)
		}
	}
	return alive
}

// LivingCount is the number of living members.
func (sq *Squad) LivingCount(arena *UnitArena) int {
	n := 0
	for _, id := range sq.Members {
		if u := arena.Unit(id); u != nil && u.Alive() {
			n++
		}
	}
	return n
}

// CasualtyCount returns how many members are dead.
func (sq *Squad) CasualtyCount(arena *UnitArena) int {
	return len(sq.Members) - sq.LivingCount(arena)
}

// LossRatio is casualties over starting strength.
func (sq *Squad) LossRatio(arena *UnitArena) float64 {
	if sq.InitialSize == 0 {
		return 0
	}
	return float64(sq.CasualtyCount(arena)) / float64(sq.InitialSize)
}

// Disbanded reports whether the squad has been removed from play.
func (sq *Squad) Disbanded() bool { return sq.State == SquadDisbanded }

// DisbandedTick is the tick of disbandment, or -1.
func (sq *Squad) DisbandedTick() int { return sq.disbandedTick }

// centroid returns the mean position of living members, or the anchor
// position when none are alive.
func (sq *Squad) centroid(arena *UnitArena) Vec2 {
	alive := sq.Alive(arena)
	if len(alive) == 0 {
		return sq.AnchorPos
	}
	var sum Vec2
	for _, u := range alive {
		sum = sum.Add(u.pos)
	}
	return sum.Scale(1 / float64(len(alive)))
}

// spread returns the max distance of any living member from the anchor.
func (sq *Squad) spread(arena *UnitArena) float64 {
	max2 := 0.0
	for _, u := range sq.Alive(arena) {
		if d2 := u.pos.DistSq(sq.AnchorPos); d2 > max2 {
			max2 = d2
		}
	}
	return math.Sqrt(max2)
}

// moveSpeed is the pace of the slowest mobile member so the formation holds.
func (sq *Squad) moveSpeed(arena *UnitArena) float64 {
	speed := math.Inf(1)
	for _, u := range sq.Alive(arena) {
		if u.kind.Immobile {
			continue
		}
		speed = math.Min(speed, u.kind.Speed)
	}
	if math.IsInf(speed, 1) {
		return 0
	}
	return speed
}

// anchorAlive reports whether the anchor unit is still alive.
func (sq *Squad) anchorAlive(arena *UnitArena) bool {
	u := arena.Unit(sq.Anchor)
	return u != nil && u.Alive() && u.squad == sq.ID
}

// reassignAnchor picks the highest-health living member (earliest member on
// ties) as the new anchor and adopts its position.
func (sq *Squad) reassignAnchor(arena *UnitArena) bool {
	var best *Unit
	for _, u := range sq.Alive(arena) {
		if best == nil || u.health > best.health {
			best = u
		}
	}
	if best == nil {
		return false
	}
	sq.Anchor = best.id
	sq.AnchorPos = best.pos
	sq.slotsDirty = true
	return true
}

// refreshSlots recomputes slot indices when membership, anchor or formation
// changed. Slot 0 is the anchor; the rest follow member order.
func (sq *Squad) refreshSlots(arena *UnitArena) {
	living := sq.LivingCount(arena)
	if !sq.slotsDirty && living == sq.slotCount {
		return
	}
	sq.slots = make(map[UnitID]int, living)
	idx := 0
	if sq.anchorAlive(arena) {
		sq.slots[sq.Anchor] = 0
		idx = 1
	}
	for _, u := range sq.Alive(arena) {
		if _, done := sq.slots[u.id]; done {
			continue
		}
		sq.slots[u.id] = idx
		idx++
	}
	sq.slotCount = living
	sq.slotsDirty = false
}

// slotOffset returns the world-space offset of a member's slot from the
// anchor. Callers must refresh slots first.
func (sq *Squad) slotOffset(id UnitID, spacing float64) (Vec2, bool) {
	return sq.slotOffsetAt(id, sq.Facing, spacing)
}

// slotOffsetAt is slotOffset for an explicit heading.
func (sq *Squad) slotOffsetAt(id UnitID, heading, spacing float64) (Vec2, bool) {
	idx, ok := sq.slots[id]
	if !ok {
		return Vec2{}, false
	}
	offs := formationOffsets(sq.Formation, sq.slotCount, spacing)
	if idx >= len(offs) {
		return Vec2{}, false
	}
	return SlotOffset(heading, offs[idx][0], offs[idx][1]), true
}

// SquadRoster holds every squad. Active squads are iterated in creation order.
type SquadRoster struct {
	byID      map[SquadID]*Squad
	active    []*Squad
	disbanded []*Squad
	nextID    SquadID
	spawned   map[Side]int
}

// NewSquadRoster returns an empty roster.
func NewSquadRoster() *SquadRoster {
	return &SquadRoster{
		byID:    make(map[SquadID]*Squad),
		spawned: make(map[Side]int),
	}
}

// Create registers a squad for the given members.
func (r *SquadRoster) Create(name string, side Side, kind string, members []UnitID, ft FormationType) *Squad {
	sq := newSquad(r.nextID, name, side, kind, members, ft)
	r.nextID++
	r.byID[sq.ID] = sq
	r.active = append(r.active, sq)
	r.spawned[side]++
	return sq
}

// Get returns a squad by ID, active or disbanded.
func (r *SquadRoster) Get(id SquadID) (*Squad, bool) {
	sq, ok := r.byID[id]
	return sq, ok
}

// Active returns the active squads in creation order.
func (r *SquadRoster) Active() []*Squad { return r.active }

// Disbanded returns disbanded squads in disbandment order.
func (r *SquadRoster) Disbanded() []*Squad { return r.disbanded }

// ActiveBySide returns the active squads of one side.
func (r *SquadRoster) ActiveBySide(side Side) []*Squad {
	var out []*Squad
	for _, sq := range r.active {
		if sq.Side == side {
			out = append(out, sq)
		}
	}
	return out
}

// All returns every squad ever created, in ID order.
func (r *SquadRoster) All() []*Squad {
	out := make([]*Squad, 0, len(r.byID))
	for id := SquadID(0); id < r.nextID; id++ {
		if sq, ok := r.byID[id]; ok {
			out = append(out, sq)
		}
	}
	return out
}

// Spawned is the number of squads ever created for a side.
func (r *SquadRoster) Spawned(side Side) int { return r.spawned[side] }

// Propagate removes squads with no living members from the active roster,
// reassigns dead anchors and marks slot layouts stale. It returns the squads
// disbanded this tick.
func (r *SquadRoster) Propagate(w *World) []*Squad {
	var gone []*Squad
	kept := r.active[:0]
	for _, sq := range r.active {
		living := sq.LivingCount(w.Units)
		if living == 0 {
			sq.State = SquadDisbanded
			sq.disbandedTick = w.Tick
			r.disbanded = append(r.disbanded, sq)
			gone = append(gone, sq)
			continue
		}
		if !sq.anchorAlive(w.Units) {
			sq.reassignAnchor(w.Units)
		} else if a := w.Units.Unit(sq.Anchor); a != nil {
			sq.AnchorPos = a.pos
		}
		if living != sq.slotCount {
			sq.slotsDirty = true
		}
		kept = append(kept, sq)
	}
	for i := len(kept); i < len(r.active); i++ {
		r.active[i] = nil
	}
	r.active = kept
	return gone
}
