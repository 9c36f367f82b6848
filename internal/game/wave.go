package game

import "fmt"

// TriggerKind is the condition that releases a wave.
type TriggerKind int

const (
	TriggerTime TriggerKind = iota
	TriggerObjectiveComplete
	TriggerEnemiesDefeated
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerTime:
		return "time"
	case TriggerObjectiveComplete:
		return "objective_complete"
	case TriggerEnemiesDefeated:
		return "enemies_defeated"
	default:
		return "unknown"
	}
}

// ParseTriggerKind maps a definition string onto a TriggerKind. Empty means time.
func ParseTriggerKind(s string) (TriggerKind, error) {
	switch s {
	case "", "time":
		return TriggerTime, nil
	case "objective_complete":
		return TriggerObjectiveComplete, nil
	case "enemies_defeated":
		return TriggerEnemiesDefeated, nil
	default:
		return 0, fmt.Errorf("unknown trigger %q", s)
	}
}

// WaveTrigger releases its squads once when its condition holds.
type WaveTrigger struct {
	Index     int
	Kind      TriggerKind
	Time      float64 // TriggerTime
	Objective string  // TriggerObjectiveComplete
	Squads    []SquadSpec

	Fired   bool
	FiredAt int // tick
}

// WaveDirector spawns scripted enemy waves.
type WaveDirector struct {
	triggers []*WaveTrigger
}

// NewWaveDirector keeps the triggers in declaration order.
func NewWaveDirector(triggers []*WaveTrigger) *WaveDirector {
	return &WaveDirector{triggers: triggers}
}

// Triggers returns all triggers in declaration order.
func (wd *WaveDirector) Triggers() []*WaveTrigger { return wd.triggers }

// Pending counts triggers that have not fired.
func (wd *WaveDirector) Pending() int {
	n := 0
	for _, t := range wd.triggers {
		if !t.Fired {
			n++
		}
	}
	return n
}

// pendingFor reports whether an unfired time or enemies_defeated trigger
// will spawn into group. Any enemy group counts when group is empty.
// Objective triggers are left out since they may wait on the very objective
// asking.
func (wd *WaveDirector) pendingFor(group string) bool {
	for _, t := range wd.triggers {
		if t.Fired || t.Kind == TriggerObjectiveComplete {
			continue
		}
		for _, s := range t.Squads {
			if group == "" || s.Group == group {
				return true
			}
		}
	}
	return false
}

// Update fires every trigger whose condition holds. Conditions are sampled
// before any squad spawns, so triggers satisfied in the same tick all fire,
// in declaration order. Spawned squads are ordered to attack the nearest
// player squad.
func (wd *WaveDirector) Update(w *World) ([]*Squad, error) {
	var ready []*WaveTrigger
	for _, t := range wd.triggers {
		if !t.Fired && wd.satisfied(w, t) {
			ready = append(ready, t)
		}
	}
	var spawned []*Squad
	for _, t := range ready {
		t.Fired = true
		t.FiredAt = w.Tick
		for _, spec := range t.Squads {
			sq, err := w.SpawnSquad(spec, SideEnemy)
			if err != nil {
				return spawned, fmt.Errorf("wave %d squad %q: %w", t.Index, spec.Name, err)
			}
			if target := nearestSquad(w, sq, SidePlayer); target != nil {
				sq.Order = AttackOrder(target.ID)
			}
			spawned = append(spawned, sq)
		}
		w.SimLog.Add(w.Tick, "--", SideEnemy.String(), "wave", "fired",
			fmt.Sprintf("wave %d (%s) with %d squad(s)", t.Index, t.Kind, len(t.Squads)), float64(len(t.Squads)))
		w.Log.Info().Int("wave", t.Index).Str("trigger", t.Kind.String()).Int("squads", len(t.Squads)).Msg("wave fired")
		w.emit(Event{Kind: EventWaveFired, Unit: -1, Squad: -1, Value: float64(t.Index), Detail: t.Kind.String()})
	}
	return spawned, nil
}

func (wd *WaveDirector) satisfied(w *World, t *WaveTrigger) bool {
	switch t.Kind {
	case TriggerTime:
		elapsed := w.Time
		if w.Mission != nil {
			elapsed = w.Mission.Elapsed()
		}
		return elapsed >= t.Time
	case TriggerObjectiveComplete:
		if w.Mission == nil {
			return false
		}
		o, ok := w.Mission.Objective(t.Objective)
		return ok && o.Status == ObjectiveComplete
	case TriggerEnemiesDefeated:
		return w.Squads.Spawned(SideEnemy) > 0 && len(w.Squads.ActiveBySide(SideEnemy)) == 0
	}
	return false
}
