package game

import (
	"fmt"
	"math"
)

// TestSim is a headless sandbox harness used by tests. It wraps an Engine
// with no mission so scenarios can place squads directly and drive ticks.
type TestSim struct {
	Width     float64
	Height    float64
	buildings []Rect
	seed      int64
	tuning    Tuning
	squads    []pendingSquad

	Engine *Engine
	World  *World
	SimLog *SimLog

	byName map[string]*Squad
}

type pendingSquad struct {
	spec  SquadSpec
	side  Side
	types []string // explicit composition; empty means spec.Type
}

// simOptionKind controls the pass in which an option is applied.
type simOptionKind int

const (
	simOptInfra simOptionKind = iota // map size, buildings, seed, verbose, tuning
	simOptSquad                      // squads, spawned after the engine exists
)

// SimOption is a builder function applied to a TestSim during construction.
type SimOption struct {
	kind simOptionKind
	fn   func(*TestSim)
}

// WithMapSize sets the playfield dimensions.
func WithMapSize(w, h float64) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) {
		ts.Width = w
		ts.Height = h
	}}
}

// WithBuilding adds an obstacle.
func WithBuilding(x, y, w, h float64) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) {
		ts.buildings = append(ts.buildings, Rect{X: x, Y: y, W: w, H: h})
	}}
}

// WithSimSeed sets the RNG seed for deterministic runs.
func WithSimSeed(seed int64) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) { ts.seed = seed }}
}

// WithVerbose enables verbose SimLog entries.
func WithVerbose(v bool) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) { ts.SimLog = NewSimLog(v) }}
}

// WithTuningFn tweaks the tuning before the engine is built.
func WithTuningFn(fn func(*Tuning)) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) { fn(&ts.tuning) }}
}

// WithPlayerSquad adds a player squad of a mission composition type facing +X.
func WithPlayerSquad(name, kind string, size int, x, y float64) SimOption {
	return SimOption{simOptSquad, func(ts *TestSim) {
		ts.squads = append(ts.squads, pendingSquad{
			spec: SquadSpec{Type: kind, Name: name, Position: V2(x, y), Size: size, Formation: FormationLine},
			side: SidePlayer,
		})
	}}
}

// WithEnemySquad adds an enemy squad facing -X.
func WithEnemySquad(name, kind string, size int, x, y float64) SimOption {
	return SimOption{simOptSquad, func(ts *TestSim) {
		ts.squads = append(ts.squads, pendingSquad{
			spec: SquadSpec{Type: kind, Name: name, Position: V2(x, y), Size: size, Formation: FormationLine, Facing: math.Pi},
			side: SideEnemy,
		})
	}}
}

// WithSquadOf adds a squad with one member per listed unit type.
func WithSquadOf(name string, side Side, x, y float64, types ...string) SimOption {
	return SimOption{simOptSquad, func(ts *TestSim) {
		facing := 0.0
		if side == SideEnemy {
			facing = math.Pi
		}
		ts.squads = append(ts.squads, pendingSquad{
			spec:  SquadSpec{Type: "mixed", Name: name, Position: V2(x, y), Size: len(types), Formation: FormationLine, Facing: facing},
			side:  side,
			types: types,
		})
	}}
}

// NewTestSim constructs a TestSim in two ordered passes:
//  1. Infrastructure (map size, buildings, seed, verbose, tuning), then the engine
//  2. Squads, in option order
//
// Setup errors panic; a broken fixture is a bug in the test.
func NewTestSim(opts ...SimOption) *TestSim {
	ts := &TestSim{
		Width:  200,
		Height: 200,
		seed:   1,
		tuning: DefaultTuning(),
		SimLog: NewSimLog(false),
		byName: make(map[string]*Squad),
	}
	for _, o := range opts {
		if o.kind == simOptInfra {
			o.fn(ts)
		}
	}
	terrain := NewObstacleTerrain(Rect{W: ts.Width, H: ts.Height}, ts.buildings)
	eng, err := NewSandbox(terrain, WithTuning(ts.tuning), WithSeed(ts.seed), WithSimLog(ts.SimLog))
	if err != nil {
		panic(fmt.Sprintf("test sim: %v", err))
	}
	ts.Engine = eng
	ts.World = eng.World()

	for _, o := range opts {
		if o.kind == simOptSquad {
			o.fn(ts)
		}
	}
	for _, p := range ts.squads {
		sq, err := ts.spawn(p)
		if err != nil {
			panic(fmt.Sprintf("test sim: squad %q: %v", p.spec.Name, err))
		}
		ts.byName[sq.Name] = sq
	}
	ts.squads = nil
	return ts
}

func (ts *TestSim) spawn(p pendingSquad) (*Squad, error) {
	if len(p.types) == 0 {
		return ts.Engine.SpawnSquad(p.spec, p.side)
	}
	types := make([]*UnitType, 0, len(p.types))
	for _, name := range p.types {
		t, ok := LookupUnitType(name)
		if !ok {
			return nil, fmt.Errorf("unit type %q: %w", name, ErrUnknownType)
		}
		types = append(types, t)
	}
	return ts.World.SpawnSquadOf(p.spec, p.side, types)
}

// Squad returns a squad by name; nil when absent.
func (ts *TestSim) Squad(name string) *Squad { return ts.byName[name] }

// Members returns every member of the named squad, dead or alive.
func (ts *TestSim) Members(name string) []*Unit {
	sq := ts.byName[name]
	if sq == nil {
		return nil
	}
	out := make([]*Unit, 0, len(sq.Members))
	for _, id := range sq.Members {
		out = append(out, ts.World.Units.Unit(id))
	}
	return out
}

// Order issues an order to the named squad.
func (ts *TestSim) Order(name string, o Order) error {
	sq := ts.byName[name]
	if sq == nil {
		return fmt.Errorf("squad %q: %w", name, ErrUnknownSquad)
	}
	return ts.Engine.IssueOrder(sq.ID, o)
}

// RunTicks advances the simulation n ticks. It stops at the first error.
func (ts *TestSim) RunTicks(n int) error {
	for i := 0; i < n; i++ {
		if err := ts.Engine.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// RunUntil advances the simulation up to maxTicks, stopping early if predicate
// returns true. Returns the tick at which the predicate was satisfied, or -1.
func (ts *TestSim) RunUntil(predicate func(*TestSim) bool, maxTicks int) int {
	for i := 0; i < maxTicks; i++ {
		if err := ts.Engine.Tick(); err != nil {
			return -1
		}
		if predicate(ts) {
			return ts.World.Tick
		}
	}
	return -1
}

// CurrentTick returns the current simulation tick.
func (ts *TestSim) CurrentTick() int { return ts.World.Tick }
