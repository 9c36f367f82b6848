package game

import (
	"fmt"
	"strings"
)

// UnitID identifies a unit in the arena. IDs are never reused.
type UnitID int

// Side distinguishes the player's force from the enemy.
type Side int

const (
	SidePlayer Side = iota
	SideEnemy
)

func (s Side) String() string {
	switch s {
	case SidePlayer:
		return "player"
	case SideEnemy:
		return "enemy"
	default:
		return "unknown"
	}
}

// Hostile reports whether o fights against s.
func (s Side) Hostile(o Side) bool { return s != o }

func (s Side) prefix() string {
	if s == SidePlayer {
		return "P"
	}
	return "E"
}

// UnitState is the gameplay state. A unit is Dead exactly when its health is 0.
type UnitState int

const (
	UnitActive UnitState = iota
	UnitDead
)

func (us UnitState) String() string {
	switch us {
	case UnitActive:
		return "active"
	case UnitDead:
		return "dead"
	default:
		return "unknown"
	}
}

// AnimState is the animation tag handed to renderers. Dying is cosmetic: the
// unit is already Dead in gameplay terms while the tag plays out.
type AnimState int

const (
	AnimIdle AnimState = iota
	AnimMoving
	AnimAttacking
	AnimHealing
	AnimFleeing
	AnimDying
	AnimDead
)

func (a AnimState) String() string {
	switch a {
	case AnimIdle:
		return "idle"
	case AnimMoving:
		return "moving"
	case AnimAttacking:
		return "attacking"
	case AnimHealing:
		return "healing"
	case AnimFleeing:
		return "fleeing"
	case AnimDying:
		return "dying"
	case AnimDead:
		return "dead"
	default:
		return "unknown"
	}
}

// StatusTag is a bit set of transient unit conditions.
type StatusTag uint8

const (
	StatusStunned StatusTag = 1 << iota
	StatusFleeing
	StatusKnockedBack
	StatusHolding
)

// Has reports whether all bits of f are set.
func (s StatusTag) Has(f StatusTag) bool { return s&f == f }

func (s StatusTag) String() string {
	if s == 0 {
		return "-"
	}
	var parts []string
	for _, f := range []struct {
		bit  StatusTag
		name string
	}{
		{StatusStunned, "stunned"},
		{StatusFleeing, "fleeing"},
		{StatusKnockedBack, "knocked_back"},
		{StatusHolding, "holding"},
	} {
		if s.Has(f.bit) {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, ",")
}

// Unit is one trooper. Units live in the UnitArena; squads refer to them by ID.
type Unit struct {
	id    UnitID
	label string
	squad SquadID
	side  Side
	kind  *UnitType

	pos    Vec2
	vel    Vec2 // steering velocity committed by the squad AI
	facing float64

	health    int
	maxHealth int
	armor     float64
	state     UnitState
	anim      AnimState
	animTimer float64
	status    StatusTag

	cooldown    float64
	ammo        int
	healCharges int
	kills       int

	knockVel   Vec2
	knockTimer float64

	lastAttacker UnitID

	// Navigation
	path       []Vec2
	pathIndex  int
	pathGoal   Vec2
	stallTicks int
	lastPos    Vec2
	expected   float64 // distance the last committed velocity should cover in one tick
}

func newUnit(id UnitID, t *UnitType, side Side, squad SquadID, pos Vec2) *Unit {
	return &Unit{
		id:           id,
		label:        fmt.Sprintf("%s%d", side.prefix(), id),
		squad:        squad,
		side:         side,
		kind:         t,
		pos:          pos,
		lastPos:      pos,
		health:       t.MaxHealth,
		maxHealth:    t.MaxHealth,
		armor:        t.Armor,
		ammo:         t.Ammo,
		healCharges:  t.HealCharges,
		lastAttacker: -1,
	}
}

func (u *Unit) ID() UnitID            { return u.id }
func (u *Unit) Label() string         { return u.label }
func (u *Unit) SquadID() SquadID      { return u.squad }
func (u *Unit) Side() Side            { return u.side }
func (u *Unit) Type() *UnitType       { return u.kind }
func (u *Unit) Position() Vec2        { return u.pos }
func (u *Unit) Velocity() Vec2        { return u.vel.Add(u.knockVel) }
func (u *Unit) Facing() float64       { return u.facing }
func (u *Unit) Health() int           { return u.health }
func (u *Unit) MaxHealth() int        { return u.maxHealth }
func (u *Unit) Armor() float64        { return u.armor }
func (u *Unit) State() UnitState      { return u.state }
func (u *Unit) Anim() AnimState       { return u.anim }
func (u *Unit) Status() StatusTag     { return u.status }
func (u *Unit) Ammo() int             { return u.ammo }
func (u *Unit) HealCharges() int      { return u.healCharges }
func (u *Unit) Kills() int            { return u.kills }
func (u *Unit) LastAttacker() UnitID  { return u.lastAttacker }
func (u *Unit) Alive() bool           { return u.state != UnitDead }
func (u *Unit) Has(c Capability) bool { return u.kind.Caps.Has(c) }

// healthFrac is health as a fraction of max.
func (u *Unit) healthFrac() float64 {
	if u.maxHealth <= 0 {
		return 0
	}
	return float64(u.health) / float64(u.maxHealth)
}

func (u *Unit) clearPath() {
	u.path = nil
	u.pathIndex = 0
}
