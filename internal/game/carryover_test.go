package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCarryover(t *testing.T) {
	ts := NewTestSim(
		WithPlayerSquad("Alpha", "archer", 4, 50, 50),
		WithPlayerSquad("Bravo", "archer", 4, 50, 120),
		WithPlayerSquad("Charlie", "archer", 1, 50, 180),
		WithEnemySquad("Husk", "gromflomite", 2, 180, 50),
	)
	killUnit(ts.Members("Bravo")[0])
	killUnit(ts.Members("Charlie")[0])
	ts.Squad("Alpha").Kills = 3
	ts.Squad("Alpha").PriorKills = 2
	require.NoError(t, ts.RunTicks(1))

	recs := ts.Engine.Carryover()
	require.Len(t, recs, 2, "disbanded and enemy squads carry nothing")

	alpha, bravo := recs[0], recs[1]
	assert.Equal(t, "Alpha", alpha.SquadName)
	assert.Equal(t, "archer", alpha.Kind)
	assert.Zero(t, alpha.LossRatio)
	assert.True(t, alpha.Veteran)
	assert.Equal(t, 5, alpha.Kills, "prior kills are included")

	assert.Equal(t, "Bravo", bravo.SquadName)
	assert.InDelta(t, 0.25, bravo.LossRatio, 1e-9)
	assert.False(t, bravo.Veteran, "a quarter lost is not below the threshold")
}

func TestWithCarryover_VeteransStartAboveFullMorale(t *testing.T) {
	def := testDef(longHold())
	def.PlayerSquads[0].Size = 4
	records := []CarryoverRecord{
		{SquadName: "Alpha", Kind: "archer", Kills: 7, Veteran: true},
		{SquadName: "Ghost", Kind: "archer", Kills: 1, Veteran: true},
	}
	e, sl := newMissionEngine(t, def,
		WithCarryover(records),
		WithTuning(func() Tuning { tu := DefaultTuning(); tu.MoraleRecovery = 10; return tu }()))

	alpha := e.World().Squads.ActiveBySide(SidePlayer)[0]
	require.True(t, alpha.Veteran)
	assert.InDelta(t, 1+e.Tuning().VeteranMoraleBonus, alpha.Morale, 1e-9)
	assert.Equal(t, 7, alpha.PriorKills)
	assert.Equal(t, 1, sl.CountCategory("squad", "carryover"))

	require.NoError(t, runTicks(e, 5))
	assert.InDelta(t, 1.2, alpha.Morale, 1e-9, "the bonus does not decay on its own")

	killUnit(e.World().Units.Unit(alpha.Members[3]))
	require.NoError(t, e.Tick())
	assert.InDelta(t, 0.95, alpha.Morale, 1e-9)
	require.NoError(t, runTicks(e, 60))
	assert.Equal(t, 1.0, alpha.Morale, "recovery stops at full morale")

	next := e.Carryover()
	require.Len(t, next, 1)
	assert.Equal(t, 7, next[0].Kills)
	assert.Equal(t, 0.25, next[0].LossRatio)
}
