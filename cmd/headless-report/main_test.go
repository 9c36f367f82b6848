package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Garsondee/Squad-Tactics/internal/game"
)

func skirmishDef() *game.MissionDef {
	return &game.MissionDef{
		MissionID: "skirmish",
		TimeLimit: 90,
		Objectives: []game.ObjectiveDef{
			{ID: "clear", Type: "defeat_all"},
		},
		PlayerSquads: []game.SquadDef{
			{Name: "Bows", Type: "archer", Size: 3, Position: []float64{20, 50}},
		},
		EnemyWaves: []game.WaveDef{{
			Trigger: "time",
			Squads: []game.SquadDef{
				{Name: "Grom", Type: "gromflomite", Size: 2, Position: []float64{60, 50}},
			},
		}},
	}
}

func TestTeamSurvivalCounts(t *testing.T) {
	grades := []game.SquadGrade{
		{Side: "player", Survived: true},
		{Side: "player", Survived: false},
		{Side: "enemy", Survived: true},
		{Side: "enemy", Survived: true},
	}

	playerTotal, enemyTotal, playerSurvivors, enemySurvivors := teamSurvivalCounts(grades)
	if playerTotal != 2 || enemyTotal != 2 {
		t.Fatalf("expected totals player=2 enemy=2, got player=%d enemy=%d", playerTotal, enemyTotal)
	}
	if playerSurvivors != 1 || enemySurvivors != 2 {
		t.Fatalf("expected survivors player=1 enemy=2, got player=%d enemy=%d", playerSurvivors, enemySurvivors)
	}
}

func TestDetectStalemate_TrueWhenMutualSurvivalHigh(t *testing.T) {
	rs := runStats{
		outcome: game.MissionOutcome{
			Outcome:         game.OutcomeInconclusive,
			PlayerTotal:     6,
			PlayerSurvivors: 5,
			EnemyTotal:      6,
			EnemySurvivors:  4,
		},
		unreachable: 2,
	}

	isStalemate, reason := detectStalemate(rs)
	if !isStalemate {
		t.Fatalf("expected stalemate=true, got false (reason=%s)", reason)
	}
	if !strings.Contains(reason, "high_mutual_survival") || !strings.Contains(reason, "orders_stalled") {
		t.Fatalf("expected reason to name survival and stalled orders, got: %s", reason)
	}
}

func TestDetectStalemate_FalseWhenResolved(t *testing.T) {
	rs := runStats{
		outcome: game.MissionOutcome{
			Outcome:         game.OutcomeVictory,
			Description:     "decisive_victory",
			PlayerTotal:     6,
			PlayerSurvivors: 6,
			EnemyTotal:      6,
			EnemySurvivors:  6,
		},
	}

	isStalemate, reason := detectStalemate(rs)
	if isStalemate {
		t.Fatalf("expected stalemate=false for a resolved mission (reason=%s)", reason)
	}
	if reason != "resolved:decisive_victory" {
		t.Fatalf("unexpected reason %q", reason)
	}
}

func TestDetectStalemate_FalseWhenAttritionDecisive(t *testing.T) {
	rs := runStats{
		outcome: game.MissionOutcome{
			Outcome:         game.OutcomeInconclusive,
			PlayerTotal:     6,
			PlayerSurvivors: 2,
			EnemyTotal:      6,
			EnemySurvivors:  5,
		},
	}

	isStalemate, reason := detectStalemate(rs)
	if isStalemate {
		t.Fatalf("expected stalemate=false under decisive attrition (reason=%s)", reason)
	}
}

func TestRunMission_ResolvesSkirmish(t *testing.T) {
	rs, eng, err := runMission(skirmishDef(), 1, 7, 20000)
	require.NoError(t, err)
	require.NotNil(t, eng)

	assert.True(t, eng.Status().Terminal(), "time limit bounds the run")
	assert.NotEqual(t, game.OutcomeInconclusive, rs.outcome.Outcome)
	assert.Equal(t, 1, rs.waves)
	assert.Equal(t, 1, rs.firstWaveTick, "time-zero waves fire on the first tick")
	assert.Equal(t, 2, rs.outcome.EnemyTotal)
	assert.Len(t, rs.grades, 2)
	require.NotNil(t, rs.windowSummary)
	assert.Equal(t, rs.outcome.Ticks, rs.windowSummary.ToTick)

	stalemate, _ := detectStalemate(rs)
	assert.False(t, stalemate)
}

func TestRunMission_SameSeedSameRun(t *testing.T) {
	a, _, err := runMission(skirmishDef(), 1, 99, 20000)
	require.NoError(t, err)
	b, _, err := runMission(skirmishDef(), 2, 99, 20000)
	require.NoError(t, err)

	assert.Equal(t, a.ticksRun, b.ticksRun)
	assert.Equal(t, a.kills, b.kills)
	assert.Equal(t, a.shots, b.shots)
	assert.Equal(t, a.outcome.Description, b.outcome.Description)
}

func TestAggregateHelpers(t *testing.T) {
	assert.Equal(t, 2.5, avg(5, 2))
	assert.Equal(t, 0.0, avg(5, 0))
	assert.Equal(t, "n/a", avgTickString(nil))
	assert.Equal(t, "15.0", avgTickString([]int{10, 20}))
	assert.Equal(t, "broke(2)", topTrait(map[string]int{"broke": 2, "stalled": 1}))
	assert.Equal(t, "defeat=1 victory=2", countsString(map[string]int{"victory": 2, "defeat": 1}))
	assert.Equal(t, "P1,P2", joinSet(map[string]struct{}{"P2": {}, "P1": {}}))
}
