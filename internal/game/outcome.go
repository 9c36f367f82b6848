package game

import (
	"fmt"
	"strings"
)

// Outcome is the coarse result of a run, as graded after the fact.
type Outcome int

const (
	OutcomeInconclusive Outcome = iota
	OutcomeVictory
	OutcomeDefeat
	OutcomeHalted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeVictory:
		return "victory"
	case OutcomeDefeat:
		return "defeat"
	case OutcomeHalted:
		return "halted"
	case OutcomeInconclusive:
		return "inconclusive"
	default:
		return "unknown"
	}
}

// Casualty rate bands used to qualify the debrief description.
const (
	outcomeDecisiveLoss = 0.25
	outcomeCostlyLoss   = 0.60
)

// MissionOutcome is the debrief of a run.
type MissionOutcome struct {
	MissionID string
	Outcome   Outcome
	Reason    string
	Ticks     int
	Elapsed   float64

	PlayerSurvivors int
	PlayerTotal     int
	EnemySurvivors  int
	EnemyTotal      int

	PlayerSquadsLost  int
	PlayerSquadsTotal int
	EnemySquadsLost   int
	EnemySquadsTotal  int
	PlayerRetreating  int

	ObjectivesComplete int
	ObjectivesFailed   int
	ObjectivesTotal    int

	Description string
}

// PlayerCasualtyRate is the fraction of player units lost.
func (mo MissionOutcome) PlayerCasualtyRate() float64 {
	return perfFrac(mo.PlayerTotal-mo.PlayerSurvivors, mo.PlayerTotal)
}

// EnemyCasualtyRate is the fraction of enemy units lost.
func (mo MissionOutcome) EnemyCasualtyRate() float64 {
	return perfFrac(mo.EnemyTotal-mo.EnemySurvivors, mo.EnemyTotal)
}

// DetermineOutcome grades the engine's current state. It can be called on a
// running engine; the result is then Inconclusive.
func DetermineOutcome(e *Engine) MissionOutcome {
	w := e.w
	mo := MissionOutcome{Ticks: w.Tick}

	for _, u := range w.Units.All() {
		switch u.side {
		case SidePlayer:
			mo.PlayerTotal++
			if u.Alive() {
				mo.PlayerSurvivors++
			}
		case SideEnemy:
			mo.EnemyTotal++
			if u.Alive() {
				mo.EnemySurvivors++
			}
		}
	}
	for _, sq := range w.Squads.All() {
		lost := 0
		if sq.Disbanded() {
			lost = 1
		}
		switch sq.Side {
		case SidePlayer:
			mo.PlayerSquadsTotal++
			mo.PlayerSquadsLost += lost
			if sq.State == SquadRetreating {
				mo.PlayerRetreating++
			}
		case SideEnemy:
			mo.EnemySquadsTotal++
			mo.EnemySquadsLost += lost
		}
	}

	if m := w.Mission; m != nil {
		mo.MissionID = m.ID()
		mo.Elapsed = m.Elapsed()
		mo.Reason = m.Reason()
		for _, o := range m.Objectives() {
			mo.ObjectivesTotal++
			switch o.Status {
			case ObjectiveComplete:
				mo.ObjectivesComplete++
			case ObjectiveFailed:
				mo.ObjectivesFailed++
			}
		}
	} else {
		mo.Elapsed = w.Time
	}

	switch {
	case e.halted != nil:
		mo.Outcome = OutcomeHalted
		mo.Reason = e.halted.Error()
		mo.Description = "halted"
	case e.Status() == MissionVictory:
		mo.Outcome = OutcomeVictory
		switch loss := mo.PlayerCasualtyRate(); {
		case loss < outcomeDecisiveLoss:
			mo.Description = "decisive_victory"
		case loss >= outcomeCostlyLoss:
			mo.Description = "costly_victory"
		default:
			mo.Description = "victory"
		}
	case e.Status() == MissionDefeat:
		mo.Outcome = OutcomeDefeat
		if mo.PlayerSurvivors == 0 {
			mo.Description = "defeat_force_destroyed"
		} else {
			mo.Description = "defeat_time_limit"
		}
	default:
		mo.Description = "inconclusive_in_progress"
	}
	return mo
}

// Format renders the debrief as a short block of text.
func (mo MissionOutcome) Format() string {
	var sb strings.Builder
	id := mo.MissionID
	if id == "" {
		id = "sandbox"
	}
	fmt.Fprintf(&sb, "=== Debrief: %s ===\n", id)
	fmt.Fprintf(&sb, "  outcome=%s (%s)  T=%d  elapsed=%.1fs\n", mo.Outcome, mo.Description, mo.Ticks, mo.Elapsed)
	if mo.Reason != "" {
		fmt.Fprintf(&sb, "  reason: %s\n", mo.Reason)
	}
	fmt.Fprintf(&sb, "  player: %d/%d alive  squads lost %d/%d  retreating %d\n",
		mo.PlayerSurvivors, mo.PlayerTotal, mo.PlayerSquadsLost, mo.PlayerSquadsTotal, mo.PlayerRetreating)
	fmt.Fprintf(&sb, "  enemy:  %d/%d alive  squads lost %d/%d\n",
		mo.EnemySurvivors, mo.EnemyTotal, mo.EnemySquadsLost, mo.EnemySquadsTotal)
	if mo.ObjectivesTotal > 0 {
		fmt.Fprintf(&sb, "  objectives: %d complete, %d failed, %d total\n",
			mo.ObjectivesComplete, mo.ObjectivesFailed, mo.ObjectivesTotal)
	}
	return sb.String()
}
