package game

// UnitArena owns every unit of a simulation. Squads, projectiles and events
// hold UnitIDs, never pointers, so deaths and disbandment cannot dangle.
// Dead units stay in the arena as tombstones for kill and loss accounting.
type UnitArena struct {
	units  map[UnitID]*Unit
	order  []*Unit // spawn order, which is ascending ID order
	nextID UnitID
}

// NewUnitArena returns an empty arena.
func NewUnitArena() *UnitArena {
	return &UnitArena{units: make(map[UnitID]*Unit)}
}

// Spawn creates a unit and returns it.
func (a *UnitArena) Spawn(t *UnitType, side Side, squad SquadID, pos Vec2) *Unit {
	u := newUnit(a.nextID, t, side, squad, pos)
	a.nextID++
	a.units[u.id] = u
	a.order = append(a.order, u)
	return u
}

// Get returns the unit with the given ID.
func (a *UnitArena) Get(id UnitID) (*Unit, bool) {
	u, ok := a.units[id]
	return u, ok
}

// Unit returns the unit with the given ID or nil.
func (a *UnitArena) Unit(id UnitID) *Unit {
	return a.units[id]
}

// All returns every unit, dead or alive, in ID order.
func (a *UnitArena) All() []*Unit { return a.order }

// Living returns the living units in ID order.
func (a *UnitArena) Living() []*Unit {
	out := make([]*Unit, 0, len(a.order))
	for _, u := range a.order {
		if u.Alive() {
			out = append(out, u)
		}
	}
	return out
}

// LivingBySide returns the living units of one side in ID order.
func (a *UnitArena) LivingBySide(side Side) []*Unit {
	var out []*Unit
	for _, u := range a.order {
		if u.Alive() && u.side == side {
			out = append(out, u)
		}
	}
	return out
}

// Len is the number of units ever spawned.
func (a *UnitArena) Len() int { return len(a.order) }
