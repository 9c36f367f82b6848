package game

import "math"

// UnitView is a unit as seen by renderers.
type UnitView struct {
	ID        UnitID  `json:"id"`
	Label     string  `json:"label"`
	Type      string  `json:"type"`
	Side      string  `json:"side"`
	Squad     SquadID `json:"squad"`
	Pos       Vec2    `json:"pos"`
	Elevation float64 `json:"elevation"`
	Facing    float64 `json:"facing"`
	Health    int     `json:"health"`
	MaxHealth int     `json:"max_health"`
	State     string  `json:"state"`
	Anim      string  `json:"anim"`
	Status    string  `json:"status,omitempty"`
	Ammo      int     `json:"ammo"`
	Kills     int     `json:"kills"`
}

// SquadView summarises a squad.
type SquadView struct {
	ID        SquadID  `json:"id"`
	Name      string   `json:"name"`
	Side      string   `json:"side"`
	Group     string   `json:"group,omitempty"`
	Formation string   `json:"formation"`
	Order     string   `json:"order"`
	Target    *Vec2    `json:"target,omitempty"`       // move_to destination
	TargetSq  SquadID  `json:"target_squad,omitempty"` // attack target
	State     string   `json:"state"`
	Morale    float64  `json:"morale"`
	Anchor    UnitID   `json:"anchor"`
	AnchorPos Vec2     `json:"anchor_pos"`
	Facing    float64  `json:"facing"`
	Living    int      `json:"living"`
	Initial   int      `json:"initial"`
	Kills     int      `json:"kills"`
	Veteran   bool     `json:"veteran,omitempty"`
	Members   []UnitID `json:"members"`
}

// ProjectileView is a projectile in flight.
type ProjectileView struct {
	ID    int    `json:"id"`
	Kind  string `json:"kind"`
	Owner UnitID `json:"owner"`
	Pos   Vec3   `json:"pos"`
	Vel   Vec3   `json:"vel"`
}

// DebrisView is a corpse body.
type DebrisView struct {
	ID     int    `json:"id"`
	Source UnitID `json:"source"`
	Pos    Vec3   `json:"pos"`
	AtRest bool   `json:"at_rest"`
}

// ObjectiveView is an objective's status line.
type ObjectiveView struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	Description string  `json:"description,omitempty"`
	Mandatory   bool    `json:"mandatory"`
	Status      string  `json:"status"`
	CompletedAt float64 `json:"completed_at,omitempty"`
	Position    *Vec2   `json:"position,omitempty"` // reach_position only
	Radius      float64 `json:"radius,omitempty"`
}

// MissionView is the mission's status. Remaining is -1 without a time limit.
type MissionView struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Status     string          `json:"status"`
	Reason     string          `json:"reason,omitempty"`
	Elapsed    float64         `json:"elapsed"`
	Remaining  float64         `json:"remaining"`
	Objectives []ObjectiveView `json:"objectives"`
	WavesLeft  int             `json:"waves_left"`
}

// Snapshot is the read-only state published at the end of every tick. It
// shares nothing with the live world.
type Snapshot struct {
	Tick        int              `json:"tick"`
	Time        float64          `json:"time"`
	Bounds      Rect             `json:"bounds"`
	Units       []UnitView       `json:"units"`
	Squads      []SquadView      `json:"squads"`
	Projectiles []ProjectileView `json:"projectiles"`
	Debris      []DebrisView     `json:"debris"`
	Ordnance    []Vec3           `json:"ordnance,omitempty"`
	Craters     []Vec3           `json:"craters,omitempty"`
	Mission     *MissionView     `json:"mission,omitempty"`
	Events      []Event          `json:"events"`
}

// Unit looks up a unit view by ID.
func (s *Snapshot) Unit(id UnitID) (UnitView, bool) {
	for _, u := range s.Units {
		if u.ID == id {
			return u, true
		}
	}
	return UnitView{}, false
}

// Squad looks up a squad view by ID.
func (s *Snapshot) Squad(id SquadID) (SquadView, bool) {
	for _, sq := range s.Squads {
		if sq.ID == id {
			return sq, true
		}
	}
	return SquadView{}, false
}

// EventsOf filters the tick's events by kind.
func (s *Snapshot) EventsOf(kind EventKind) []Event {
	var out []Event
	for _, e := range s.Events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func buildSnapshot(w *World) *Snapshot {
	s := &Snapshot{
		Tick:   w.Tick,
		Time:   w.Time,
		Bounds: w.Terrain.Bounds(),
		Events: append([]Event(nil), w.events...),
	}

	all := w.Units.All()
	s.Units = make([]UnitView, 0, len(all))
	for _, u := range all {
		s.Units = append(s.Units, UnitView{
			ID:        u.id,
			Label:     u.label,
			Type:      u.kind.Name,
			Side:      u.side.String(),
			Squad:     u.squad,
			Pos:       u.pos,
			Elevation: w.Terrain.Elevation(u.pos),
			Facing:    u.facing,
			Health:    u.health,
			MaxHealth: u.maxHealth,
			State:     u.state.String(),
			Anim:      u.anim.String(),
			Status:    u.status.String(),
			Ammo:      u.ammo,
			Kills:     u.kills,
		})
	}

	for _, sq := range w.Squads.All() {
		sv := SquadView{
			ID:        sq.ID,
			Name:      sq.Name,
			Side:      sq.Side.String(),
			Group:     sq.Group,
			Formation: sq.Formation.String(),
			Order:     sq.Order.String(),
			State:     sq.State.String(),
			Morale:    sq.Morale,
			Anchor:    sq.Anchor,
			AnchorPos: sq.AnchorPos,
			Facing:    sq.Facing,
			Living:    sq.LivingCount(w.Units),
			Initial:   sq.InitialSize,
			Kills:     sq.Kills,
			Veteran:   sq.Veteran,
			Members:   append([]UnitID(nil), sq.Members...),
		}
		switch sq.Order.Kind {
		case OrderMoveTo:
			target := sq.Order.Target
			sv.Target = &target
		case OrderAttack:
			sv.TargetSq = sq.Order.TargetSquad
		}
		s.Squads = append(s.Squads, sv)
	}

	for _, p := range w.Physics.Projectiles() {
		s.Projectiles = append(s.Projectiles, ProjectileView{
			ID: p.ID, Kind: p.Kind.String(), Owner: p.Owner, Pos: p.Pos, Vel: p.Vel,
		})
	}
	for _, b := range w.Physics.Debris() {
		s.Debris = append(s.Debris, DebrisView{ID: b.ID, Source: b.Source, Pos: b.Pos, AtRest: b.AtRest})
	}
	for _, o := range w.Physics.Ordnance() {
		if !o.Detonated {
			s.Ordnance = append(s.Ordnance, o.Pos)
		}
	}
	s.Craters = append([]Vec3(nil), w.Physics.Craters()...)

	if m := w.Mission; m != nil {
		mv := &MissionView{
			ID:        m.ID(),
			Name:      m.Name(),
			Status:    m.Status().String(),
			Reason:    m.Reason(),
			Elapsed:   m.Elapsed(),
			Remaining: m.Remaining(),
		}
		if math.IsInf(mv.Remaining, 1) {
			mv.Remaining = -1
		}
		if m.Waves() != nil {
			mv.WavesLeft = m.Waves().Pending()
		}
		for _, o := range m.Objectives() {
			ov := ObjectiveView{
				ID:          o.ID,
				Kind:        o.Kind.String(),
				Description: o.Description,
				Mandatory:   o.Mandatory,
				Status:      o.Status.String(),
				CompletedAt: o.CompletedAt,
			}
			if o.Kind == ObjectiveReachPosition {
				pos := o.Position
				ov.Position = &pos
				ov.Radius = o.Radius
			}
			mv.Objectives = append(mv.Objectives, ov)
		}
		s.Mission = mv
	}
	return s
}
