package game

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Option configures an Engine.
type Option func(*engineConfig)

type engineConfig struct {
	tuning    Tuning
	log       zerolog.Logger
	simLog    *SimLog
	seed      int64
	carryover []CarryoverRecord
	observers []func(*Snapshot)
}

// WithTuning replaces DefaultTuning.
func WithTuning(t Tuning) Option { return func(c *engineConfig) { c.tuning = t } }

// WithLogger sets the operational logger. The default discards.
func WithLogger(l zerolog.Logger) Option { return func(c *engineConfig) { c.log = l } }

// WithSimLog records engine events into sl.
func WithSimLog(sl *SimLog) Option { return func(c *engineConfig) { c.simLog = sl } }

// WithSeed fixes the combat RNG seed.
func WithSeed(seed int64) Option { return func(c *engineConfig) { c.seed = seed } }

// WithCarryover applies records from a previous mission to matching player squads.
func WithCarryover(records []CarryoverRecord) Option {
	return func(c *engineConfig) { c.carryover = records }
}

// WithObserver calls fn with every published snapshot, on the goroutine
// that ticks. fn must not call back into the engine.
func WithObserver(fn func(*Snapshot)) Option {
	return func(c *engineConfig) { c.observers = append(c.observers, fn) }
}

// Engine runs the fixed-step simulation. Tick, Advance and the command
// methods must be called from one goroutine; Snapshot may be called from any.
type Engine struct {
	w      *World
	tuning Tuning
	ai     *SquadAI
	combat *CombatResolver
	waves  *WaveDirector

	acc       float64
	halted    error
	snap      atomic.Pointer[Snapshot]
	observers []func(*Snapshot)
}

func newEngine(terrain Terrain, opts []Option) (*Engine, engineConfig, error) {
	cfg := engineConfig{
		tuning: DefaultTuning(),
		log:    zerolog.Nop(),
		seed:   1,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.simLog == nil {
		cfg.simLog = NewSimLog(false)
	}
	if err := cfg.tuning.Validate(); err != nil {
		return nil, cfg, err
	}
	e := &Engine{tuning: cfg.tuning, observers: cfg.observers}
	e.w = newWorld(&e.tuning, terrain, cfg.log, cfg.simLog)
	metrics, err := newSimMetrics()
	if err != nil {
		return nil, cfg, err
	}
	e.w.metrics = metrics
	e.ai = NewSquadAI(&e.tuning)
	e.combat = NewCombatResolver(&e.tuning, cfg.seed)
	return e, cfg, nil
}

// NewSandbox creates an engine with no mission. Squads are added with
// SpawnSquad; the simulation runs until the caller stops ticking.
func NewSandbox(terrain Terrain, opts ...Option) (*Engine, error) {
	if terrain == nil {
		return nil, errors.New("sandbox: nil terrain")
	}
	e, _, err := newEngine(terrain, opts)
	if err != nil {
		return nil, err
	}
	e.publish()
	return e, nil
}

// NewEngine loads a mission definition, spawns the player force and places
// ordnance. The mission starts InProgress; the first waves spawn on the
// first tick. def itself is not modified.
func NewEngine(def *MissionDef, opts ...Option) (*Engine, error) {
	if def == nil {
		return nil, &MissionConfigError{Field: "mission", Reason: "definition is nil"}
	}
	def = def.clone()
	def.applyDefaults()
	if err := def.Validate(); err != nil {
		return nil, err
	}
	terrain := def.Terrain()
	e, cfg, err := newEngine(terrain, opts)
	if err != nil {
		return nil, err
	}
	w := e.w

	m, err := NewMission(def)
	if err != nil {
		return nil, err
	}
	w.Mission = m
	center := terrain.Bounds().Center()
	triggers, err := wavesFromDef(def, center)
	if err != nil {
		return nil, err
	}
	e.waves = NewWaveDirector(triggers)
	m.setWaves(e.waves)

	for i, od := range def.Ordnance {
		pos, _ := parsePosition(od.Position)
		payload := Payload{Damage: od.Damage, BlastRadius: od.BlastRadius, Impulse: od.Impulse}
		if _, err := w.Physics.PlaceOrdnance(pos.Lift(terrain.Elevation(pos)), payload); err != nil {
			return nil, def.configErr(fmt.Sprintf("ordnance[%d]", i), "%v", err)
		}
	}
	for i, sd := range def.PlayerSquads {
		if _, err := w.SpawnSquad(sd.spec(center), SidePlayer); err != nil {
			return nil, def.configErr(fmt.Sprintf("player_squads[%d]", i), "%v", err)
		}
	}
	if n := applyCarryover(w, cfg.carryover, e.tuning.VeteranMoraleBonus); n > 0 {
		w.Log.Info().Int("squads", n).Msg("carryover applied")
	}

	m.Start()
	w.Log.Info().Str("mission", m.ID()).Str("name", m.Name()).
		Int("player_squads", len(def.PlayerSquads)).Int("waves", len(triggers)).Msg("mission loaded")
	e.publish()
	return e, nil
}

// World exposes the live simulation context. It must not be touched while a
// tick is running.
func (e *Engine) World() *World { return e.w }

// Tuning returns the engine's tuning values.
func (e *Engine) Tuning() Tuning { return e.tuning }

// Halted returns the error that stopped the engine, or nil.
func (e *Engine) Halted() error { return e.halted }

// Snapshot returns the state published by the last completed tick.
func (e *Engine) Snapshot() *Snapshot { return e.snap.Load() }

// Status returns the mission status; sandboxes are always InProgress.
func (e *Engine) Status() MissionStatus {
	if e.w.Mission == nil {
		return MissionInProgress
	}
	return e.w.Mission.Status()
}

// Done reports whether there is nothing left to simulate.
func (e *Engine) Done() bool {
	return e.halted != nil || e.Status().Terminal()
}

// Tick advances the simulation by one fixed step. Once the mission has ended
// it is a no-op. A panic or a broken invariant halts the engine; the state
// is left as it was for inspection and every later call returns the same
// ErrHalted error.
func (e *Engine) Tick() (err error) {
	if e.halted != nil {
		return e.halted
	}
	if e.Status().Terminal() {
		return nil
	}
	w := e.w
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = e.halt(fmt.Errorf("panic: %v", r))
		}
	}()

	dt := e.tuning.Dt()
	w.Tick++
	w.Time += dt
	w.events = w.events[:0]

	if e.waves != nil {
		if _, err := e.waves.Update(w); err != nil {
			return e.halt(err)
		}
	}
	intents, err := e.ai.Think(w)
	if err != nil {
		return e.halt(err)
	}
	e.combat.Execute(w, intents)
	events, err := w.Physics.Step(w, dt)
	if err != nil {
		return e.halt(err)
	}
	e.combat.ResolvePhysics(w, events)
	e.combat.Update(w, dt)

	for _, sq := range w.Squads.Propagate(w) {
		w.SimLog.Add(w.Tick, sq.Name, sq.Side.String(), "squad", "disband",
			fmt.Sprintf("%d/%d lost, %d kills", sq.CasualtyCount(w.Units), sq.InitialSize, sq.Kills), float64(sq.Kills))
		w.Log.Info().Str("squad", sq.Name).Str("side", sq.Side.String()).Int("tick", w.Tick).Msg("squad disbanded")
		w.emit(Event{Kind: EventSquadDisbanded, Unit: -1, Squad: sq.ID, Pos: sq.AnchorPos, Detail: sq.Name})
	}
	e.ai.EvaluateMorale(w, dt)
	if err := checkInvariants(w); err != nil {
		return e.halt(err)
	}

	if w.Mission != nil {
		w.Mission.Evaluate(w, dt)
	}

	e.publish()
	w.metrics.tick(float64(time.Since(started).Microseconds()) / 1000)
	return nil
}

func (e *Engine) halt(cause error) error {
	w := e.w
	e.halted = fmt.Errorf("tick %d: %w: %w", w.Tick, ErrHalted, cause)
	w.Log.Error().Err(cause).Int("tick", w.Tick).Msg("simulation halted")
	w.SimLog.Add(w.Tick, "--", "--", "engine", "halt", cause.Error(), 0)
	e.publish()
	return e.halted
}

func (e *Engine) publish() {
	s := buildSnapshot(e.w)
	e.snap.Store(s)
	for _, fn := range e.observers {
		fn(s)
	}
}

// Advance feeds frameDt seconds of wall time into the accumulator and runs
// as many fixed steps as fit, up to MaxStepsPerFrame. Backlog beyond the cap
// is dropped so a slow frame cannot snowball.
func (e *Engine) Advance(frameDt float64) (int, error) {
	if !(frameDt > 0) || math.IsInf(frameDt, 0) {
		return 0, nil
	}
	dt := e.tuning.Dt()
	e.acc += frameDt
	steps := 0
	for e.acc+1e-9 >= dt && steps < e.tuning.MaxStepsPerFrame {
		if err := e.Tick(); err != nil {
			return steps, err
		}
		e.acc -= dt
		steps++
	}
	if e.acc >= dt {
		e.w.Log.Debug().Float64("dropped", e.acc).Msg("frame backlog dropped")
		e.acc = 0
	}
	e.acc = math.Max(0, e.acc)
	return steps, nil
}

// RunUntilDone ticks until the mission ends, the engine halts or maxTicks
// ticks have run. It returns the number of ticks executed.
func (e *Engine) RunUntilDone(maxTicks int) (int, error) {
	n := 0
	for n < maxTicks && !e.Done() {
		if err := e.Tick(); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// SpawnSquad adds a squad outside of any wave, e.g. in a sandbox.
func (e *Engine) SpawnSquad(spec SquadSpec, side Side) (*Squad, error) {
	sq, err := e.w.SpawnSquad(spec, side)
	if err != nil {
		return nil, err
	}
	e.publish()
	return sq, nil
}

// IssueOrder replaces a squad's order.
func (e *Engine) IssueOrder(id SquadID, o Order) error { return e.w.IssueOrder(id, o) }

// SetFormation changes a squad's formation.
func (e *Engine) SetFormation(id SquadID, ft FormationType) error {
	return e.w.SetFormation(id, ft)
}

// OrderFailures drains the unreachable-order reports collected since the
// last call.
func (e *Engine) OrderFailures() []*OrderUnreachableError {
	out := e.w.orderFailures
	e.w.orderFailures = nil
	return out
}

// Carryover builds the records for the next mission from the current state.
func (e *Engine) Carryover() []CarryoverRecord {
	return BuildCarryover(e.w, e.tuning.VeteranThreshold)
}

// checkInvariants verifies the model after death propagation.
func checkInvariants(w *World) error {
	for _, u := range w.Units.All() {
		switch {
		case u.Alive() && u.health <= 0:
			return fmt.Errorf("invariant: unit %s alive with health %d", u.label, u.health)
		case !u.Alive() && u.health != 0:
			return fmt.Errorf("invariant: unit %s dead with health %d", u.label, u.health)
		case u.health > u.maxHealth:
			return fmt.Errorf("invariant: unit %s health %d above max %d", u.label, u.health, u.maxHealth)
		case u.Alive() && !u.pos.IsFinite():
			return fmt.Errorf("invariant: unit %s has non-finite position", u.label)
		}
	}
	for _, sq := range w.Squads.Active() {
		if sq.LivingCount(w.Units) == 0 {
			return fmt.Errorf("invariant: active squad %q has no living members", sq.Name)
		}
		if a := w.Units.Unit(sq.Anchor); a == nil || !a.Alive() || a.squad != sq.ID {
			return fmt.Errorf("invariant: squad %q anchor %d is not a living member", sq.Name, sq.Anchor)
		}
	}
	return nil
}
