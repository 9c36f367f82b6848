package game

// EventKind classifies a presentation event.
type EventKind int

const (
	EventSquadSpawned EventKind = iota
	EventSquadDisbanded
	EventUnitKilled
	EventProjectileFired
	EventTerrainImpact
	EventUnitHit
	EventExplosion
	EventCrater
	EventHeal
	EventRetreat
	EventRally
	EventOrderUnreachable
	EventWaveFired
	EventObjectiveComplete
	EventObjectiveFailed
	EventMissionEnded
	EventAnomaly
)

var eventKindNames = [...]string{
	EventSquadSpawned:      "squad_spawned",
	EventSquadDisbanded:    "squad_disbanded",
	EventUnitKilled:        "unit_killed",
	EventProjectileFired:   "projectile_fired",
	EventTerrainImpact:     "terrain_impact",
	EventUnitHit:           "unit_hit",
	EventExplosion:         "explosion",
	EventCrater:            "crater",
	EventHeal:              "heal",
	EventRetreat:           "retreat",
	EventRally:             "rally",
	EventOrderUnreachable:  "order_unreachable",
	EventWaveFired:         "wave_fired",
	EventObjectiveComplete: "objective_complete",
	EventObjectiveFailed:   "objective_failed",
	EventMissionEnded:      "mission_ended",
	EventAnomaly:           "anomaly",
}

func (k EventKind) String() string {
	if int(k) < 0 || int(k) >= len(eventKindNames) {
		return "unknown"
	}
	return eventKindNames[k]
}

// MarshalText renders the kind by name in snapshots.
func (k EventKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Event is something renderers, audio or UI may want to react to. Events are
// collected per tick and published with the snapshot.
type Event struct {
	Tick   int       `json:"tick"`
	Kind   EventKind `json:"kind"`
	Unit   UnitID    `json:"unit"`
	Squad  SquadID   `json:"squad"`
	Pos    Vec2      `json:"pos"`
	Value  float64   `json:"value,omitempty"`
	Detail string    `json:"detail,omitempty"`
}
