package hud

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Garsondee/Squad-Tactics/internal/game"
)

func TestThoughtLog_RingOrder(t *testing.T) {
	tl := NewThoughtLog(3)
	for i := 1; i <= 5; i++ {
		tl.Add(ThoughtEntry{Tick: i, Label: "P1", Message: "m"})
	}
	require.Equal(t, 3, tl.Len())
	got := tl.Recent()
	assert.Equal(t, []int{3, 4, 5}, []int{got[0].Tick, got[1].Tick, got[2].Tick})

	tail := tl.Tail(2)
	require.Len(t, tail, 2)
	assert.Equal(t, 4, tail[0].Tick)
	assert.Equal(t, "    5 [P1] m", got[2].Line())
}

func TestThoughtLog_FeedSimLogIsIncremental(t *testing.T) {
	sl := game.NewSimLog(false)
	tl := NewThoughtLog(10)

	sl.Add(1, "Bows", "player", "squad", "order", "hold", 0)
	sl.Add(2, "E4", "enemy", "combat", "kill", "P1 by arrow", 0)
	assert.Equal(t, 2, tl.FeedSimLog(sl))
	assert.Equal(t, 0, tl.FeedSimLog(sl))

	sl.Add(3, "--", "--", "mission", "victory", "all mandatory objectives complete", 3)
	assert.Equal(t, 1, tl.FeedSimLog(sl))

	recent := tl.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, "kill P1 by arrow", recent[1].Message)
	assert.Equal(t, "mission", recent[2].Category)
	assert.Equal(t, 0, tl.FeedSimLog(nil))
}

func TestCamera_RoundTrip(t *testing.T) {
	bounds := game.Rect{W: 200, H: 100}
	c := NewCamera(bounds, 800, 600)
	assert.InDelta(t, 4.0, c.PixelsPerUnit, 1e-9)

	sx, sy := c.WorldToScreen(bounds.Center())
	assert.InDelta(t, 400, sx, 1e-9)
	assert.InDelta(t, 300, sy, 1e-9)

	c.ZoomBy(2)
	c.Pan(40, -80)
	p := game.V2(37, 81)
	sx, sy = c.WorldToScreen(p)
	back := c.ScreenToWorld(sx, sy)
	assert.InDelta(t, p.X, back.X, 1e-9)
	assert.InDelta(t, p.Y, back.Y, 1e-9)

	c.ZoomBy(1000)
	assert.Equal(t, ZoomMax, c.Zoom)
	c.ZoomBy(0.0001)
	assert.Equal(t, ZoomMin, c.Zoom)

	c.X, c.Y = -50, 500
	c.Clamp(bounds)
	assert.Equal(t, 0.0, c.X)
	assert.Equal(t, 100.0, c.Y)
}

func TestSpeedSteps(t *testing.T) {
	assert.Equal(t, 2.0, Faster(1))
	assert.Equal(t, 4.0, Faster(4))
	assert.Equal(t, 0.5, Faster(0))
	assert.Equal(t, 0.5, Slower(1))
	assert.Equal(t, 0.0, Slower(0))
	assert.Equal(t, 2.0, Slower(3))
	assert.Equal(t, 0.0, TogglePause(2))
	assert.Equal(t, 1.0, TogglePause(0))
	assert.Equal(t, "PAUSED", SpeedLabel(0))
	assert.Equal(t, "0.5x", SpeedLabel(0.5))
	assert.Equal(t, "4x", SpeedLabel(4))
}

func TestPickAndInspect(t *testing.T) {
	ts := game.NewTestSim(
		game.WithBuilding(90, 10, 10, 10),
		game.WithPlayerSquad("Bows", "archer", 2, 40, 100),
		game.WithEnemySquad("Grom", "gromflomite", 1, 160, 100),
	)
	snap := ts.Engine.Snapshot()
	target := ts.Members("Grom")[0]

	id, ok := Pick(snap, target.Position().Add(game.V2(0.5, 0)), 2)
	require.True(t, ok)
	assert.Equal(t, target.ID(), id)

	_, ok = Pick(snap, game.V2(100, 180), 2)
	assert.False(t, ok)

	lines := strings.Join(UnitLines(snap, id), "\n")
	assert.Contains(t, lines, "ENEMY "+target.Label()+" gromflomite")
	assert.Contains(t, lines, "squad Grom")
	assert.Contains(t, lines, "living 1/1")

	assert.Equal(t, []string{"unit 9999: gone"}, UnitLines(snap, 9999))
	assert.Len(t, Obstacles(ts.World.Terrain), 1)
}

func TestStatusLines_Mission(t *testing.T) {
	assert.Contains(t, StatusLines(nil, 1, 1), "sandbox")

	snap := &game.Snapshot{
		Tick: 120,
		Time: 2,
		Mission: &game.MissionView{
			Name: "Citadel", Status: "in_progress", Elapsed: 2, Remaining: 298, WavesLeft: 2,
			Objectives: []game.ObjectiveView{
				{ID: "hold", Kind: "survive_time", Mandatory: true, Status: "pending"},
				{ID: "purge", Kind: "defeat_all", Mandatory: false, Status: "complete"},
			},
		},
	}
	text := strings.Join(StatusLines(snap, 0, 2), "\n")
	assert.Contains(t, text, "SIM: PAUSED")
	assert.Contains(t, text, "Citadel: IN_PROGRESS  2s (298s left)  waves=2")
	assert.Contains(t, text, "[ ] hold survive_time")
	assert.Contains(t, text, "[+] purge defeat_all (optional)")
	assert.Contains(t, text, "zoom: 2.0x")
}

func TestDebugReport(t *testing.T) {
	ts := game.NewTestSim(
		game.WithPlayerSquad("Bows", "archer", 2, 40, 100),
		game.WithPlayerSquad("Other", "archer", 1, 40, 160),
	)
	require.NoError(t, ts.Order("Bows", game.MoveOrder(game.V2(60, 100))))
	require.NoError(t, ts.Order("Other", game.MoveOrder(game.V2(60, 160))))
	require.NoError(t, ts.RunTicks(5))

	snap := ts.Engine.Snapshot()
	report := DebugReport(snap, ts.SimLog, ts.Members("Bows")[0].ID(), 0)
	assert.Contains(t, report, "--- Squad Tactics debug report ---")
	assert.Contains(t, report, "squad Bows")
	assert.Contains(t, report, "order")
	assert.NotContains(t, report, "Other ")
	assert.Contains(t, report, "counts: squad/order=1")

	none := DebugReport(snap, ts.SimLog, 9999, 10)
	assert.Contains(t, none, "(no unit selected)")
	assert.Contains(t, none, "Other")
	assert.Empty(t, DebugReport(nil, ts.SimLog, 1, 10))
}

func TestCommandAt(t *testing.T) {
	ts := game.NewTestSim(
		game.WithPlayerSquad("Bows", "archer", 2, 40, 100),
		game.WithEnemySquad("Grom", "gromflomite", 1, 160, 100),
	)
	snap := ts.Engine.Snapshot()
	bow := ts.Members("Bows")[0]
	grom := ts.Members("Grom")[0]

	sq, ok := PlayerSquadOf(snap, bow.ID())
	require.True(t, ok)
	assert.Equal(t, ts.Squad("Bows").ID, sq.ID)
	_, ok = PlayerSquadOf(snap, grom.ID())
	assert.False(t, ok, "enemy squads take no orders")
	_, ok = PlayerSquadOf(nil, bow.ID())
	assert.False(t, ok)

	assert.Equal(t, game.AttackOrder(ts.Squad("Grom").ID), CommandAt(snap, grom.Position(), 2))
	assert.Equal(t, game.MoveOrder(game.V2(100, 50)), CommandAt(snap, game.V2(100, 50), 2))
	assert.Equal(t, game.MoveOrder(bow.Position()), CommandAt(snap, bow.Position(), 2),
		"clicking a friendly unit is a move")
}
