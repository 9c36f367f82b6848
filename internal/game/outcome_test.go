package game

import (
	"strings"
	"testing"
)

func TestDetermineOutcome_DecisiveVictory(t *testing.T) {
	def := testDef(ObjectiveDef{ID: "hold", Type: "survive_time", Time: 1})
	e, _ := newMissionEngine(t, def)
	if _, err := e.RunUntilDone(200); err != nil {
		t.Fatalf("run: %v", err)
	}

	mo := DetermineOutcome(e)
	if mo.Outcome != OutcomeVictory || mo.Description != "decisive_victory" {
		t.Fatalf("expected decisive victory, got %s (%s)", mo.Outcome, mo.Description)
	}
	if mo.PlayerSurvivors != 3 || mo.PlayerTotal != 3 {
		t.Errorf("expected 3/3 survivors, got %d/%d", mo.PlayerSurvivors, mo.PlayerTotal)
	}
	if mo.ObjectivesComplete != 1 || mo.ObjectivesTotal != 1 {
		t.Errorf("expected 1/1 objectives, got %d/%d", mo.ObjectivesComplete, mo.ObjectivesTotal)
	}
	if mo.Reason != "all mandatory objectives complete" {
		t.Errorf("unexpected reason %q", mo.Reason)
	}
	if mo.MissionID != "test_op" || mo.Ticks != e.World().Tick {
		t.Errorf("unexpected identity: %q at T=%d", mo.MissionID, mo.Ticks)
	}
}

func TestDetermineOutcome_CostlyVictory(t *testing.T) {
	def := testDef(ObjectiveDef{ID: "hold", Type: "survive_time", Time: 1})
	e, _ := newMissionEngine(t, def)
	alpha := e.World().Squads.ActiveBySide(SidePlayer)[0]
	killUnit(e.World().Units.Unit(alpha.Members[0]))
	killUnit(e.World().Units.Unit(alpha.Members[1]))
	if _, err := e.RunUntilDone(200); err != nil {
		t.Fatalf("run: %v", err)
	}

	mo := DetermineOutcome(e)
	if mo.Description != "costly_victory" {
		t.Fatalf("two of three lost should be costly, got %s", mo.Description)
	}
	if got := mo.PlayerCasualtyRate(); got < 0.66 || got > 0.67 {
		t.Errorf("casualty rate %.3f", got)
	}
}

func TestDetermineOutcome_Defeats(t *testing.T) {
	def := testDef(longHold())
	e, _ := newMissionEngine(t, def)
	killSide(e.World(), SidePlayer)
	if err := e.Tick(); err != nil {
		t.Fatalf("tick: %v", err)
	}
	mo := DetermineOutcome(e)
	if mo.Outcome != OutcomeDefeat || mo.Description != "defeat_force_destroyed" {
		t.Fatalf("expected force destroyed, got %s (%s)", mo.Outcome, mo.Description)
	}
	if mo.PlayerSquadsLost != 1 || mo.ObjectivesFailed != 1 {
		t.Errorf("expected 1 squad lost and 1 objective failed, got %d and %d", mo.PlayerSquadsLost, mo.ObjectivesFailed)
	}

	def = testDef(ObjectiveDef{ID: "evac", Type: "reach_position", Position: []float64{250, 250}, Radius: 5})
	def.TimeLimit = 1
	e, _ = newMissionEngine(t, def)
	if _, err := e.RunUntilDone(200); err != nil {
		t.Fatalf("run: %v", err)
	}
	if mo := DetermineOutcome(e); mo.Description != "defeat_time_limit" {
		t.Fatalf("expected time limit defeat, got %s", mo.Description)
	}
}

func TestDetermineOutcome_SandboxStates(t *testing.T) {
	ts := NewTestSim(
		WithPlayerSquad("Alpha", "archer", 2, 20, 20),
		WithEnemySquad("Husk", "gromflomite", 2, 180, 180),
	)
	if err := ts.RunTicks(2); err != nil {
		t.Fatalf("run: %v", err)
	}
	mo := DetermineOutcome(ts.Engine)
	if mo.Outcome != OutcomeInconclusive {
		t.Fatalf("a running sandbox is inconclusive, got %s", mo.Outcome)
	}
	if mo.EnemyTotal != 2 || mo.EnemySquadsTotal != 1 {
		t.Errorf("expected 2 enemies in 1 squad, got %d in %d", mo.EnemyTotal, mo.EnemySquadsTotal)
	}

	u := ts.Members("Alpha")[0]
	u.health = u.maxHealth + 1
	if err := ts.Engine.Tick(); err == nil {
		t.Fatal("expected a halt")
	}
	mo = DetermineOutcome(ts.Engine)
	if mo.Outcome != OutcomeHalted || !strings.Contains(mo.Reason, "above max") {
		t.Fatalf("expected halted with the cause, got %s %q", mo.Outcome, mo.Reason)
	}
	text := mo.Format()
	for _, want := range []string{"Debrief: sandbox", "outcome=halted", "enemy:  2/2 alive"} {
		if !strings.Contains(text, want) {
			t.Errorf("debrief missing %q:\n%s", want, text)
		}
	}
}
