package game

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faultyTerrain panics on Walkable once armed.
type faultyTerrain struct {
	*ObstacleTerrain
	armed bool
}

func (f *faultyTerrain) Walkable(p Vec2) bool {
	if f.armed {
		panic("terrain query failed")
	}
	return f.ObstacleTerrain.Walkable(p)
}

func TestNewSandbox_Rejections(t *testing.T) {
	_, err := NewSandbox(nil)
	require.Error(t, err)

	bad := DefaultTuning()
	bad.TickRate = 0
	_, err = NewSandbox(NewObstacleTerrain(Rect{W: 10, H: 10}, nil), WithTuning(bad))
	require.Error(t, err)
}

func TestTick_HaltsOnBrokenInvariant(t *testing.T) {
	ts := NewTestSim(WithPlayerSquad("Alpha", "archer", 2, 100, 100))
	require.NoError(t, ts.RunTicks(3))

	u := ts.Members("Alpha")[1]
	u.health = u.maxHealth + 5
	err := ts.Engine.Tick()
	require.ErrorIs(t, err, ErrHalted)
	assert.Contains(t, err.Error(), "above max")
	assert.Equal(t, err, ts.Engine.Halted())
	assert.True(t, ts.Engine.Done())
	assert.True(t, ts.SimLog.HasEntry("engine", "halt", "invariant"))

	tick := ts.CurrentTick()
	again := ts.Engine.Tick()
	assert.Equal(t, err, again, "every later tick returns the same error")
	assert.Equal(t, tick, ts.CurrentTick())
}

func TestTick_HaltsOnPlannerPanic(t *testing.T) {
	terrain := &faultyTerrain{ObstacleTerrain: NewObstacleTerrain(Rect{W: 100, H: 100}, nil)}
	e, err := NewSandbox(terrain)
	require.NoError(t, err)
	_, err = e.SpawnSquad(SquadSpec{Type: "archer", Name: "Alpha", Position: V2(50, 50), Size: 3}, SidePlayer)
	require.NoError(t, err)
	require.NoError(t, e.Tick())

	terrain.armed = true
	err = e.Tick()
	require.ErrorIs(t, err, ErrHalted)
	assert.Contains(t, err.Error(), "terrain query failed")
	require.NotNil(t, e.Snapshot(), "the halted state is still published")
	assert.Equal(t, 2, e.Snapshot().Tick)
}

func TestAdvance_FixedStepAccumulator(t *testing.T) {
	ts := NewTestSim(WithPlayerSquad("Alpha", "archer", 1, 100, 100))
	e := ts.Engine
	dt := e.Tuning().Dt()

	n, err := e.Advance(2.5 * dt)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = e.Advance(0.5 * dt)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "the leftover half step carries over")

	n, err = e.Advance(1.0)
	require.NoError(t, err)
	assert.Equal(t, e.Tuning().MaxStepsPerFrame, n, "a long frame is capped")
	n, err = e.Advance(0.5 * dt)
	require.NoError(t, err)
	assert.Zero(t, n, "backlog beyond the cap is dropped")

	n, err = e.Advance(-1)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 3+e.Tuning().MaxStepsPerFrame, ts.CurrentTick())
}

func TestObserver_SeesEveryTick(t *testing.T) {
	var ticks []int
	e, err := NewSandbox(NewObstacleTerrain(Rect{W: 100, H: 100}, nil),
		WithObserver(func(s *Snapshot) { ticks = append(ticks, s.Tick) }))
	require.NoError(t, err)
	_, err = e.SpawnSquad(SquadSpec{Type: "archer", Name: "Alpha", Position: V2(50, 50), Size: 2}, SidePlayer)
	require.NoError(t, err)

	n, err := e.Advance(3.2 * e.Tuning().Dt())
	require.NoError(t, err)
	require.Equal(t, 3, n)
	assert.Equal(t, []int{0, 0, 1, 2, 3}, ticks, "construction and spawn publish too")
}

func TestSnapshot_SharesNothingWithWorld(t *testing.T) {
	ts := NewTestSim(WithPlayerSquad("Alpha", "archer", 3, 100, 100))
	require.NoError(t, ts.RunTicks(1))
	snap := ts.Engine.Snapshot()

	u := ts.Members("Alpha")[0]
	view, ok := snap.Unit(u.ID())
	require.True(t, ok)
	require.Equal(t, u.Health(), view.Health)

	u.health -= 10
	ts.Squad("Alpha").Members[0] = 999
	again, _ := snap.Unit(u.ID())
	assert.Equal(t, view.Health, again.Health)
	sv, ok := snap.Squad(ts.Squad("Alpha").ID)
	require.True(t, ok)
	assert.Equal(t, u.ID(), sv.Members[0])
	assert.Nil(t, snap.Mission, "sandboxes have no mission view")
}

func TestSnapshot_JSON(t *testing.T) {
	def := testDef(longHold())
	e, _ := newMissionEngine(t, def)
	data, err := json.Marshal(e.Snapshot())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"squad_spawned"`)
	assert.Contains(t, string(data), `"remaining":-1`)
	assert.Contains(t, string(data), `"status":"in_progress"`)
}

func TestTick_DisbandIsReportedTheSameTick(t *testing.T) {
	ts := NewTestSim(
		WithPlayerSquad("Alpha", "archer", 2, 50, 100),
		WithEnemySquad("Husk", "gromflomite", 1, 150, 100),
	)
	killUnit(ts.Members("Husk")[0])
	require.NoError(t, ts.RunTicks(1))

	husk := ts.Squad("Husk")
	assert.True(t, husk.Disbanded())
	assert.Equal(t, 1, husk.DisbandedTick())
	ev := ts.Engine.Snapshot().EventsOf(EventSquadDisbanded)
	require.Len(t, ev, 1)
	assert.Equal(t, husk.ID, ev[0].Squad)
	assert.True(t, ts.SimLog.HasEntry("squad", "disband", "1/1 lost"))

	err := ts.Engine.IssueOrder(husk.ID, HoldOrder())
	assert.True(t, errors.Is(err, ErrSquadDisbanded))
}

func TestCombatRoundTrip_ArcherKillsTarget(t *testing.T) {
	ts := NewTestSim(
		WithPlayerSquad("Bows", "archer", 3, 80, 100),
		WithEnemySquad("Drone", "gromflomite", 1, 95, 100),
	)
	drone := ts.Members("Drone")[0]
	tick := ts.RunUntil(func(ts *TestSim) bool { return !drone.Alive() }, 60*60)
	require.Greater(t, tick, 0, "three archers in range should kill a lone target")

	assert.Equal(t, 1, ts.World.Deaths(SideEnemy))
	assert.Equal(t, 1, ts.Squad("Bows").Kills)
	assert.True(t, ts.Squad("Drone").Disbanded())
	assert.GreaterOrEqual(t, len(ts.World.Physics.Debris()), 1)
}
