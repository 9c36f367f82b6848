package game

import (
	"fmt"
	"math"
)

// MissionStatus is the mission state machine's state.
type MissionStatus int

const (
	MissionLoading MissionStatus = iota
	MissionInProgress
	MissionVictory
	MissionDefeat
)

func (s MissionStatus) String() string {
	switch s {
	case MissionLoading:
		return "loading"
	case MissionInProgress:
		return "in_progress"
	case MissionVictory:
		return "victory"
	case MissionDefeat:
		return "defeat"
	default:
		return "unknown"
	}
}

// Terminal reports whether the mission has ended.
func (s MissionStatus) Terminal() bool { return s == MissionVictory || s == MissionDefeat }

// ObjectiveKind selects an objective's completion predicate.
type ObjectiveKind int

const (
	ObjectiveDefeatAll ObjectiveKind = iota
	ObjectiveSurviveTime
	ObjectiveReachPosition
)

func (k ObjectiveKind) String() string {
	switch k {
	case ObjectiveDefeatAll:
		return "defeat_all"
	case ObjectiveSurviveTime:
		return "survive_time"
	case ObjectiveReachPosition:
		return "reach_position"
	default:
		return "unknown"
	}
}

// ParseObjectiveKind maps a definition string onto an ObjectiveKind.
func ParseObjectiveKind(s string) (ObjectiveKind, error) {
	switch s {
	case "defeat_all":
		return ObjectiveDefeatAll, nil
	case "survive_time":
		return ObjectiveSurviveTime, nil
	case "reach_position":
		return ObjectiveReachPosition, nil
	default:
		return 0, fmt.Errorf("unknown objective type %q", s)
	}
}

// ObjectiveStatus is the objective lifecycle. Complete and Failed are final.
type ObjectiveStatus int

const (
	ObjectivePending ObjectiveStatus = iota
	ObjectiveComplete
	ObjectiveFailed
)

func (s ObjectiveStatus) String() string {
	switch s {
	case ObjectivePending:
		return "pending"
	case ObjectiveComplete:
		return "complete"
	case ObjectiveFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Objective is one mission goal.
type Objective struct {
	ID          string
	Description string
	Kind        ObjectiveKind
	Mandatory   bool

	Group    string  // defeat_all; empty means every enemy squad
	Duration float64 // survive_time, seconds
	Position Vec2    // reach_position
	Radius   float64 // reach_position

	Status      ObjectiveStatus
	CompletedAt float64 // mission seconds; valid when Complete
}

// Mission tracks objectives and decides victory or defeat.
type Mission struct {
	id        string
	name      string
	status    MissionStatus
	elapsed   float64
	timeLimit float64 // 0 means none

	objectives []*Objective
	groups     map[string][]SquadID
	waves      *WaveDirector
	endedAt    int
	reason     string
}

// NewMission builds the state machine from a validated definition.
func NewMission(def *MissionDef) (*Mission, error) {
	m := &Mission{
		id:        def.MissionID,
		name:      def.Name,
		status:    MissionLoading,
		timeLimit: def.TimeLimit,
		groups:    make(map[string][]SquadID),
		endedAt:   -1,
	}
	for i, od := range def.Objectives {
		kind, err := ParseObjectiveKind(od.Type)
		if err != nil {
			return nil, &MissionConfigError{Mission: def.MissionID, Field: fmt.Sprintf("objectives[%d].type", i), Reason: err.Error()}
		}
		o := &Objective{
			ID:          od.ID,
			Description: od.Description,
			Kind:        kind,
			Mandatory:   od.IsMandatory(),
			Group:       od.TargetGroup,
			Duration:    od.Time,
			Radius:      od.Radius,
		}
		if len(od.Position) >= 2 {
			o.Position = Vec2{od.Position[0], od.Position[1]}
		}
		m.objectives = append(m.objectives, o)
	}
	return m, nil
}

// Start moves the mission from Loading to InProgress.
func (m *Mission) Start() {
	if m.status == MissionLoading {
		m.status = MissionInProgress
	}
}

func (m *Mission) ID() string                { return m.id }
func (m *Mission) Name() string              { return m.name }
func (m *Mission) Status() MissionStatus     { return m.status }
func (m *Mission) Elapsed() float64          { return m.elapsed }
func (m *Mission) TimeLimit() float64        { return m.timeLimit }
func (m *Mission) Objectives() []*Objective  { return m.objectives }
func (m *Mission) EndedAtTick() int          { return m.endedAt }
func (m *Mission) Reason() string            { return m.reason }
func (m *Mission) Waves() *WaveDirector      { return m.waves }
func (m *Mission) setWaves(wd *WaveDirector) { m.waves = wd }

// Remaining is the time left before the limit, or +Inf without one.
func (m *Mission) Remaining() float64 {
	if m.timeLimit <= 0 {
		return math.Inf(1)
	}
	return math.Max(0, m.timeLimit-m.elapsed)
}

// Objective returns the objective with the given ID.
func (m *Mission) Objective(id string) (*Objective, bool) {
	for _, o := range m.objectives {
		if o.ID == id {
			return o, true
		}
	}
	return nil, false
}

// TrackGroup binds a spawned squad to a tactical group tag.
func (m *Mission) TrackGroup(group string, id SquadID) {
	m.groups[group] = append(m.groups[group], id)
}

// GroupSquads returns the squads ever tagged with group.
func (m *Mission) GroupSquads(group string) []SquadID { return m.groups[group] }

// Evaluate advances the clock and re-checks objectives. Objectives that are
// already Complete are never re-evaluated.
func (m *Mission) Evaluate(w *World, dt float64) {
	if m.status != MissionInProgress {
		return
	}
	m.elapsed += dt

	for _, o := range m.objectives {
		if o.Status != ObjectivePending || !m.satisfied(w, o) {
			continue
		}
		o.Status = ObjectiveComplete
		o.CompletedAt = m.elapsed
		w.SimLog.Add(w.Tick, "--", "--", "mission", "objective_complete",
			fmt.Sprintf("%s (%s)", o.ID, o.Kind), m.elapsed)
		w.Log.Info().Str("mission", m.id).Str("objective", o.ID).Float64("elapsed", m.elapsed).Msg("objective complete")
		w.emit(Event{Kind: EventObjectiveComplete, Unit: -1, Squad: -1, Detail: o.ID})
	}

	if m.allMandatoryComplete() {
		m.end(w, MissionVictory, "all mandatory objectives complete")
		return
	}
	switch {
	case !w.hasLivingSquad(SidePlayer):
		m.end(w, MissionDefeat, "player force destroyed")
	case m.timeLimit > 0 && m.elapsed >= m.timeLimit:
		m.end(w, MissionDefeat, "time limit reached")
	}
}

func (m *Mission) allMandatoryComplete() bool {
	found := false
	for _, o := range m.objectives {
		if !o.Mandatory {
			continue
		}
		found = true
		if o.Status != ObjectiveComplete {
			return false
		}
	}
	return found
}

func (m *Mission) end(w *World, status MissionStatus, reason string) {
	m.status = status
	m.endedAt = w.Tick
	m.reason = reason
	if status == MissionDefeat {
		for _, o := range m.objectives {
			if o.Mandatory && o.Status == ObjectivePending {
				o.Status = ObjectiveFailed
				w.emit(Event{Kind: EventObjectiveFailed, Unit: -1, Squad: -1, Detail: o.ID})
			}
		}
	}
	w.SimLog.Add(w.Tick, "--", "--", "mission", status.String(), reason, m.elapsed)
	w.Log.Info().Str("mission", m.id).Str("status", status.String()).Str("reason", reason).
		Float64("elapsed", m.elapsed).Msg("mission ended")
	w.emit(Event{Kind: EventMissionEnded, Unit: -1, Squad: -1, Detail: status.String()})
}

func (m *Mission) satisfied(w *World, o *Objective) bool {
	switch o.Kind {
	case ObjectiveDefeatAll:
		return m.groupDefeated(w, o.Group)
	case ObjectiveSurviveTime:
		return m.elapsed >= o.Duration && w.hasLivingSquad(SidePlayer)
	case ObjectiveReachPosition:
		for _, u := range w.Units.LivingBySide(SidePlayer) {
			if u.pos.Dist(o.Position) <= o.Radius {
				return true
			}
		}
	}
	return false
}

// groupDefeated holds once at least one squad of the group has been spawned,
// every such squad has disbanded and no pending time or enemies_defeated wave
// will add to the group. An empty group stands for every enemy squad.
func (m *Mission) groupDefeated(w *World, group string) bool {
	if m.waves != nil && m.waves.pendingFor(group) {
		return false
	}
	if group == "" {
		if w.Squads.Spawned(SideEnemy) == 0 {
			return false
		}
		return len(w.Squads.ActiveBySide(SideEnemy)) == 0
	}
	ids := m.groups[group]
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if sq, ok := w.Squads.Get(id); !ok || !sq.Disbanded() {
			return false
		}
	}
	return true
}
