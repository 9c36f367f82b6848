package game

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intentFor(t *testing.T, intents []Intent, id UnitID) Intent {
	t.Helper()
	for _, in := range intents {
		if in.Unit == id {
			return in
		}
	}
	t.Fatalf("no intent for unit %d", id)
	return Intent{}
}

func think(t *testing.T, ai *SquadAI, w *World) []Intent {
	t.Helper()
	intents, err := ai.Think(w)
	require.NoError(t, err)
	return intents
}

func spawnTypes(t *testing.T, w *World, side Side, spec SquadSpec, types ...string) *Squad {
	t.Helper()
	uts := make([]*UnitType, 0, len(types))
	for _, name := range types {
		ut, ok := LookupUnitType(name)
		require.True(t, ok, name)
		uts = append(uts, ut)
	}
	spec.Size = len(uts)
	sq, err := w.SpawnSquadOf(spec, side, uts)
	require.NoError(t, err)
	return sq
}

func TestFriendlyInLine(t *testing.T) {
	w := newTestWorld(t)
	ai := NewSquadAI(w.Tuning)
	archer := spawnUnit(t, w, "portal_archer", SidePlayer, V2(10, 50))
	ally := spawnUnit(t, w, "dimensioneer", SidePlayer, V2(15, 50.5))
	allies := []*Unit{archer, ally}

	assert.True(t, ai.friendlyInLine(archer, V2(20, 50), allies), "ally inside the safety margin of the line")
	ally.pos = V2(15, 55)
	assert.False(t, ai.friendlyInLine(archer, V2(20, 50), allies))
	ally.pos = V2(5, 50)
	assert.False(t, ai.friendlyInLine(archer, V2(20, 50), allies), "behind the shooter is safe")

	gren := spawnUnit(t, w, "tech_grenadier", SidePlayer, V2(10, 60))
	ally.pos = V2(22, 63)
	allies = []*Unit{gren, ally}
	assert.True(t, ai.friendlyInLine(gren, V2(20, 60), allies), "ally inside blast radius plus margin of the aim point")

	gren.health = 30 // 0.25 of max, under duress
	assert.False(t, ai.friendlyInLine(gren, V2(20, 60), allies), "a grenadier under duress fires regardless")
}

func TestThink_WithholdsFireWhileAllyInLine(t *testing.T) {
	w := newTestWorld(t)
	ai := NewSquadAI(w.Tuning)
	sq := spawnTypes(t, w, SidePlayer,
		SquadSpec{Type: "mixed", Name: "Alpha", Position: V2(50, 50), Formation: FormationColumn, Facing: math.Pi},
		"portal_archer", "dimensioneer")
	archer := w.Units.Unit(sq.Members[0])
	melee := w.Units.Unit(sq.Members[1])
	require.InDelta(t, 52.5, melee.Position().X, 1e-9, "column trails the anchor")
	enemy := spawnUnit(t, w, "gromflomite", SideEnemy, V2(60, 50))

	in := intentFor(t, think(t, ai, w), archer.ID())
	assert.NotEqual(t, IntentFire, in.Kind)

	melee.pos = V2(52.5, 58)
	in = intentFor(t, think(t, ai, w), archer.ID())
	require.Equal(t, IntentFire, in.Kind)
	assert.Equal(t, enemy.ID(), in.Target)
	assert.Equal(t, enemy.Position(), in.Aim)
}

func TestThink_MeleeStrikeAndChase(t *testing.T) {
	w := newTestWorld(t)
	ai := NewSquadAI(w.Tuning)
	sq := spawnTypes(t, w, SidePlayer, SquadSpec{Type: "melee", Name: "Blades", Position: V2(50, 50)}, "dimensioneer")
	d := w.Units.Unit(sq.Members[0])
	enemy := spawnUnit(t, w, "gromflomite", SideEnemy, V2(56, 50))

	in := intentFor(t, think(t, ai, w), d.ID())
	require.Equal(t, IntentMove, in.Kind, "hostile inside the engage radius is chased")
	assert.Greater(t, in.Velocity.X, 0.0)

	enemy.pos = V2(51.5, 50)
	in = intentFor(t, think(t, ai, w), d.ID())
	require.Equal(t, IntentMelee, in.Kind)
	assert.Equal(t, enemy.ID(), in.Target)

	enemy.pos = V2(70, 50)
	in = intentFor(t, think(t, ai, w), d.ID())
	assert.Equal(t, IntentIdle, in.Kind, "beyond the engage radius a holding squad stays put")
}

func TestThink_AggressiveUnitsPursueEvenInRetreat(t *testing.T) {
	w := newTestWorld(t)
	ai := NewSquadAI(w.Tuning)
	sq := spawnTypes(t, w, SideEnemy, SquadSpec{Type: "cronenberg", Name: "Flesh", Position: V2(50, 50)}, "cronenberg")
	c := w.Units.Unit(sq.Members[0])
	spawnUnit(t, w, "portal_archer", SidePlayer, V2(90, 50))

	sq.State = SquadRetreating
	in := intentFor(t, think(t, ai, w), c.ID())
	require.Equal(t, IntentMove, in.Kind)
	assert.Greater(t, in.Velocity.X, 0.0, "toward the hostile, not away")
	assert.False(t, c.Status().Has(StatusFleeing))
}

func TestThink_SupportHealsWoundedAlly(t *testing.T) {
	w := newTestWorld(t)
	ai := NewSquadAI(w.Tuning)
	sq := spawnTypes(t, w, SidePlayer, SquadSpec{Type: "mixed", Name: "Aid", Position: V2(50, 50)}, "field_medic", "portal_archer")
	medic := w.Units.Unit(sq.Members[0])
	patient := w.Units.Unit(sq.Members[1])
	patient.health = 50

	in := intentFor(t, think(t, ai, w), medic.ID())
	require.Equal(t, IntentHeal, in.Kind)
	assert.Equal(t, patient.ID(), in.Target)

	medic.healCharges = 0
	in = intentFor(t, think(t, ai, w), medic.ID())
	assert.NotEqual(t, IntentHeal, in.Kind, "no charges, no heal")
}

func TestThink_SupportHealsLowestHealthNotLowestFraction(t *testing.T) {
	w := newTestWorld(t)
	ai := NewSquadAI(w.Tuning)
	sq := spawnTypes(t, w, SidePlayer, SquadSpec{Type: "mixed", Name: "Aid", Position: V2(50, 50)},
		"field_medic", "dimensioneer", "portal_archer")
	medic := w.Units.Unit(sq.Members[0])
	tank := w.Units.Unit(sq.Members[1])
	archer := w.Units.Unit(sq.Members[2])
	tank.pos, archer.pos = medic.pos.Add(V2(2, 0)), medic.pos.Add(V2(-2, 0))
	tank.health = 40   // 40/150
	archer.health = 27 // 27/90

	in := intentFor(t, think(t, ai, w), medic.ID())
	require.Equal(t, IntentHeal, in.Kind)
	assert.Equal(t, archer.ID(), in.Target, "fewest hit points first, whatever the max")

	archer.health = 40
	in = intentFor(t, think(t, ai, w), medic.ID())
	assert.Equal(t, tank.ID(), in.Target, "ties go to the lower fraction")
}

func TestThink_RetreatingSquadFallsBackWithoutFiring(t *testing.T) {
	w := newTestWorld(t)
	ai := NewSquadAI(w.Tuning)
	sq := spawnTypes(t, w, SidePlayer, SquadSpec{Type: "archer", Name: "Bows", Position: V2(50, 50)}, "portal_archer")
	a := w.Units.Unit(sq.Members[0])
	spawnUnit(t, w, "gromflomite", SideEnemy, V2(60, 50))

	sq.State = SquadRetreating
	in := intentFor(t, think(t, ai, w), a.ID())
	require.Equal(t, IntentMove, in.Kind)
	assert.Less(t, in.Velocity.X, 0.0, "away from the threat")
	assert.Equal(t, AnimFleeing, a.Anim())
	assert.True(t, a.Status().Has(StatusFleeing))
}

func TestStalledOrder_ReportsUnreachableAndRevertsToHold(t *testing.T) {
	ts := NewTestSim(
		WithBuilding(80, 80, 40, 40),
		WithTuningFn(func(t *Tuning) { t.StallTicks = 10 }),
		WithPlayerSquad("Alpha", "archer", 1, 20, 100),
	)
	require.NoError(t, ts.Order("Alpha", MoveOrder(V2(100, 100))))
	require.NoError(t, ts.RunTicks(30))

	failures := ts.Engine.OrderFailures()
	require.Len(t, failures, 1)
	assert.True(t, errors.Is(failures[0], ErrOrderUnreachable))
	assert.Equal(t, ts.Squad("Alpha").ID, failures[0].SquadID)
	assert.Equal(t, V2(100, 100), failures[0].Goal)
	assert.Empty(t, ts.Engine.OrderFailures(), "failures are drained")

	assert.Equal(t, OrderHold, ts.Squad("Alpha").Order.Kind)
	assert.True(t, ts.SimLog.HasEntry("order", "revert_hold", "move_to"))
	assert.True(t, ts.Members("Alpha")[0].Status().Has(StatusHolding))
}

func TestMoveOrder_ReachesTargetAroundWall(t *testing.T) {
	ts := NewTestSim(
		WithBuilding(60, 70, 4, 60),
		WithPlayerSquad("Alpha", "archer", 1, 40, 100),
	)
	require.NoError(t, ts.Order("Alpha", MoveOrder(V2(90, 100))))
	tick := ts.RunUntil(func(ts *TestSim) bool {
		return ts.Members("Alpha")[0].Position().Dist(V2(90, 100)) < 1
	}, 60*30)
	assert.Greater(t, tick, 0, "the anchor should path around the wall")
	assert.Empty(t, ts.Engine.OrderFailures())
}

func TestMorale_HeavyLossesBreakSquadSameTick(t *testing.T) {
	ts := NewTestSim(WithPlayerSquad("Alpha", "archer", 10, 100, 100))
	for _, u := range ts.Members("Alpha")[:6] {
		killUnit(u)
	}
	require.NoError(t, ts.RunTicks(1))

	sq := ts.Squad("Alpha")
	assert.Equal(t, SquadRetreating, sq.State)
	assert.InDelta(t, 0.4, sq.Morale, 1e-9)
	assert.Len(t, ts.Engine.Snapshot().EventsOf(EventRetreat), 1)
	assert.True(t, ts.SimLog.HasEntry("morale", "retreat", "losing 6"))
}

func TestMorale_HalfLossDoesNotBreak(t *testing.T) {
	ts := NewTestSim(WithPlayerSquad("Alpha", "archer", 10, 100, 100))
	for _, u := range ts.Members("Alpha")[:5] {
		killUnit(u)
	}
	require.NoError(t, ts.RunTicks(1))
	assert.Equal(t, SquadActive, ts.Squad("Alpha").State, "morale 0.5 is not below the threshold")
}

func TestMorale_FearlessSquadNeverRetreats(t *testing.T) {
	types := make([]string, 10)
	for i := range types {
		types[i] = "turret"
	}
	ts := NewTestSim(WithSquadOf("Guns", SidePlayer, 100, 100, types...))
	for _, u := range ts.Members("Guns")[:8] {
		killUnit(u)
	}
	require.NoError(t, ts.RunTicks(1))

	sq := ts.Squad("Guns")
	assert.True(t, sq.Fearless)
	assert.Equal(t, SquadActive, sq.State)
	assert.Less(t, sq.Morale, ts.World.Tuning.MoraleThreshold)
}

func TestMorale_RecoveredSquadRallies(t *testing.T) {
	ts := NewTestSim(
		WithTuningFn(func(t *Tuning) { t.MoraleRecovery = 1 }),
		WithPlayerSquad("Alpha", "archer", 10, 100, 100),
	)
	for _, u := range ts.Members("Alpha")[:6] {
		killUnit(u)
	}
	require.NoError(t, ts.RunTicks(1))
	require.Equal(t, SquadRetreating, ts.Squad("Alpha").State)

	tick := ts.RunUntil(func(ts *TestSim) bool { return ts.Squad("Alpha").State == SquadActive }, 120)
	require.Greater(t, tick, 0)
	assert.GreaterOrEqual(t, ts.Squad("Alpha").Morale, ts.World.Tuning.RallyThreshold)
	assert.True(t, ts.SimLog.HasEntry("morale", "rally", ""))
}
