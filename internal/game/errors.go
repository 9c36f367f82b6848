package game

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPayload rejects a projectile or ordnance payload at creation.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrOrderUnreachable reports a unit that stalled on the way to its goal.
	ErrOrderUnreachable = errors.New("order unreachable")
	// ErrMissionConfig marks a malformed mission definition.
	ErrMissionConfig = errors.New("mission config error")
	// ErrResourceExhausted marks an attack or heal skipped for lack of ammo
	// or charges. It is logged, never returned from the attack/heal calls.
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrHalted is returned by every Tick after a fatal failure.
	ErrHalted = errors.New("simulation halted")

	ErrUnknownSquad   = errors.New("unknown squad")
	ErrSquadDisbanded = errors.New("squad disbanded")
	ErrInvalidOrder   = errors.New("invalid order")
	ErrUnknownType    = errors.New("unknown unit type")
)

// OrderUnreachableError carries the unit and goal of a stalled order.
type OrderUnreachableError struct {
	Tick    int
	SquadID SquadID
	UnitID  UnitID
	Goal    Vec2
	Stalled int
}

func (e *OrderUnreachableError) Error() string {
	return fmt.Sprintf("squad %d unit %d: goal (%.1f,%.1f) not reached after %d stalled ticks",
		e.SquadID, e.UnitID, e.Goal.X, e.Goal.Y, e.Stalled)
}

func (e *OrderUnreachableError) Unwrap() error { return ErrOrderUnreachable }

// MissionConfigError points at the offending field of a mission definition.
type MissionConfigError struct {
	Mission string
	Field   string
	Reason  string
}

func (e *MissionConfigError) Error() string {
	if e.Mission == "" {
		return fmt.Sprintf("mission config: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("mission %q config: %s: %s", e.Mission, e.Field, e.Reason)
}

func (e *MissionConfigError) Unwrap() error { return ErrMissionConfig }
