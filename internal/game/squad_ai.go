package game

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// IntentKind is what a unit wants to do this tick.
type IntentKind int

const (
	IntentIdle IntentKind = iota
	IntentMove
	IntentMelee
	IntentFire
	IntentHeal
	IntentHold
)

func (k IntentKind) String() string {
	switch k {
	case IntentIdle:
		return "idle"
	case IntentMove:
		return "move"
	case IntentMelee:
		return "melee"
	case IntentFire:
		return "fire"
	case IntentHeal:
		return "heal"
	case IntentHold:
		return "hold"
	default:
		return "unknown"
	}
}

// Intent is one unit's decision for the tick. Velocity is committed to the
// unit for the physics step; the action is executed by the combat resolver.
type Intent struct {
	Unit     UnitID
	Kind     IntentKind
	Velocity Vec2
	Target   UnitID // melee or heal target
	Aim      Vec2   // fire target position
}

const (
	stallProgressFrac = 0.25 // moving less than this share of the expected distance is a stalled tick
	slotArriveDist    = 0.25 // close enough to a slot to stop
	attackStandoff    = 0.8  // anchors stop at this fraction of weapon range from an attack target
	slotProbeSteps    = 4
)

// SquadAI decides per-unit intents once per tick for every active squad.
type SquadAI struct {
	tuning *Tuning
}

// NewSquadAI creates the squad AI.
func NewSquadAI(t *Tuning) *SquadAI {
	return &SquadAI{tuning: t}
}

// unitPlan is the per-unit state change produced by planning and applied at
// commit. Planning never mutates the world.
type unitPlan struct {
	u        *Unit
	intent   Intent
	path     []Vec2
	pathIdx  int
	pathGoal Vec2
	stall    int
	holding  bool
	anim     AnimState
	facing   float64
	fleeing  bool
	expected float64
	withheld string // target label when friendly fire held the shot
}

type squadPlan struct {
	sq         *Squad
	facing     float64
	units      []unitPlan
	failures   []*OrderUnreachableError
	revertHold bool
}

// sideView is the read-only per-side unit list shared by planners.
type sideView struct {
	allies   map[Side][]*Unit
	hostiles map[Side][]*Unit
}

// Think plans every active squad in parallel and commits the results in
// squad order. It returns the intents for the combat resolver. A planner
// that panics is reported as an error and nothing is committed.
func (ai *SquadAI) Think(w *World) ([]Intent, error) {
	ai.retarget(w)

	squads := w.Squads.Active()
	for _, sq := range squads {
		sq.refreshSlots(w.Units)
	}
	view := sideView{
		allies:   map[Side][]*Unit{SidePlayer: w.Units.LivingBySide(SidePlayer), SideEnemy: w.Units.LivingBySide(SideEnemy)},
		hostiles: map[Side][]*Unit{SidePlayer: w.hostilesOf(SidePlayer), SideEnemy: w.hostilesOf(SideEnemy)},
	}

	plans := make([]squadPlan, len(squads))
	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, sq := range squads {
		eg.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("planning squad %q: panic: %v", sq.Name, r)
				}
			}()
			plans[i] = ai.planSquad(w, sq, view)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var intents []Intent
	for i := range plans {
		intents = append(intents, ai.commit(w, &plans[i])...)
	}
	return intents, nil
}

// retarget points enemy attack orders whose target has disbanded at the
// nearest remaining player squad.
func (ai *SquadAI) retarget(w *World) {
	for _, sq := range w.Squads.ActiveBySide(SideEnemy) {
		if sq.Order.Kind != OrderAttack {
			continue
		}
		if t, ok := w.Squads.Get(sq.Order.TargetSquad); ok && !t.Disbanded() {
			continue
		}
		if next := nearestSquad(w, sq, SidePlayer); next != nil {
			sq.Order = AttackOrder(next.ID)
		} else {
			sq.Order = HoldOrder()
		}
	}
}

// nearestSquad returns the closest active squad of side to sq's anchor.
func nearestSquad(w *World, sq *Squad, side Side) *Squad {
	var best *Squad
	bestD := math.Inf(1)
	for _, o := range w.Squads.ActiveBySide(side) {
		if d := o.centroid(w.Units).Dist(sq.AnchorPos); d < bestD {
			best, bestD = o, d
		}
	}
	return best
}

func (ai *SquadAI) planSquad(w *World, sq *Squad, view sideView) squadPlan {
	t := ai.tuning
	plan := squadPlan{sq: sq, facing: sq.Facing}
	alive := sq.Alive(w.Units)
	if len(alive) == 0 {
		return plan
	}
	hostiles := view.hostiles[sq.Side]
	allies := view.allies[sq.Side]
	retreating := sq.State == SquadRetreating

	// Anchor goal.
	anchorGoal, hasGoal := sq.AnchorPos, false
	switch {
	case retreating:
		if threat, _ := nearestHostileTo(sq.AnchorPos, hostiles); threat != nil {
			away := sq.AnchorPos.Sub(threat.pos).Normalize()
			if away.LenSq() == 0 {
				away = FromHeading(sq.Facing + math.Pi)
			}
			anchorGoal, hasGoal = sq.AnchorPos.Add(away.Scale(t.RetreatDistance)), true
		}
	case sq.Order.Kind == OrderMoveTo:
		anchorGoal, hasGoal = sq.Order.Target, true
	case sq.Order.Kind == OrderAttack:
		if target, ok := w.Squads.Get(sq.Order.TargetSquad); ok && !target.Disbanded() {
			c := target.centroid(w.Units)
			plan.facing = c.Sub(sq.AnchorPos).Heading()
			anchor := w.Units.Unit(sq.Anchor)
			standoff := 1.0
			if anchor != nil {
				standoff = math.Max(1, anchor.kind.Weapon.Range*attackStandoff)
			}
			if sq.AnchorPos.Dist(c) > standoff {
				anchorGoal, hasGoal = c, true
			}
		}
	}
	if hasGoal && anchorGoal.Dist(sq.AnchorPos) > t.ArriveRadius && !(sq.Order.Kind == OrderAttack && !retreating) {
		plan.facing = anchorGoal.Sub(sq.AnchorPos).Heading()
	}

	pace := sq.moveSpeed(w.Units)
	for _, u := range alive {
		up := unitPlan{
			u:        u,
			path:     u.path,
			pathIdx:  u.pathIndex,
			pathGoal: u.pathGoal,
			stall:    u.stallTicks,
			holding:  u.status.Has(StatusHolding),
			facing:   u.facing,
			fleeing:  retreating && !u.Has(CapAggressive),
		}
		up.intent = Intent{Unit: u.id, Kind: IntentIdle, Target: -1}

		// Progress check for last tick's committed motion.
		if u.expected > 0 {
			if u.pos.Dist(u.lastPos) < stallProgressFrac*u.expected {
				up.stall++
			} else {
				up.stall = 0
			}
		}

		if u.status.Has(StatusKnockedBack) || u.status.Has(StatusStunned) {
			up.anim = AnimIdle
			plan.units = append(plan.units, up)
			continue
		}

		acted := false
		if u.Has(CapSupport) && u.healCharges > 0 {
			acted = ai.planHeal(u, allies, &up)
		}
		if !acted && u.Has(CapAggressive) {
			acted = ai.planPursuit(w, u, hostiles, &up, &plan)
		}
		if !acted && !up.fleeing {
			acted = ai.planAttack(w, sq, u, hostiles, allies, &up, &plan)
		}
		if !acted {
			var goal Vec2
			speed := u.kind.Speed
			if u.id == sq.Anchor {
				goal = anchorGoal
				speed = pace
			} else {
				off, ok := sq.slotOffsetAt(u.id, plan.facing, t.SlotSpacing)
				if !ok {
					off = u.pos.Sub(sq.AnchorPos)
				}
				goal = ai.walkableSlot(w, sq.AnchorPos, sq.AnchorPos.Add(off))
			}
			ai.planMove(w, sq, u, goal, speed, &up, &plan)
		}
		plan.units = append(plan.units, up)
	}
	return plan
}

// planHeal heals the lowest-health wounded ally within range.
func (ai *SquadAI) planHeal(u *Unit, allies []*Unit, up *unitPlan) bool {
	var best *Unit
	for _, a := range allies {
		if a.health >= a.maxHealth || a.pos.Dist(u.pos) > u.kind.HealRange {
			continue
		}
		if best == nil || a.health < best.health ||
			(a.health == best.health && a.healthFrac() < best.healthFrac()) {
			best = a
		}
	}
	if best == nil {
		return false
	}
	up.intent.Kind = IntentHeal
	up.intent.Target = best.id
	up.anim = AnimHealing
	up.facing = best.pos.Sub(u.pos).Heading()
	return true
}

// planPursuit sends an aggressive unit straight at the nearest hostile and
// strikes once it is in reach.
func (ai *SquadAI) planPursuit(w *World, u *Unit, hostiles []*Unit, up *unitPlan, plan *squadPlan) bool {
	target, dist := nearestHostileTo(u.pos, hostiles)
	if target == nil {
		return false
	}
	if ai.planStrike(u, target, dist, up) {
		return true
	}
	up.holding = false
	ai.planMove(w, plan.sq, u, target.pos, u.kind.Speed, up, plan)
	return true
}

// planStrike issues a melee or ranged attack on target if it is in reach.
func (ai *SquadAI) planStrike(u, target *Unit, dist float64, up *unitPlan) bool {
	wpn := u.kind.Weapon
	if wpn.Kind != WeaponMelee || dist > wpn.Range {
		return false
	}
	up.intent.Kind = IntentMelee
	up.intent.Target = target.id
	up.anim = AnimAttacking
	up.facing = target.pos.Sub(u.pos).Heading()
	return true
}

// planAttack handles non-aggressive units: melee in reach, chasing within
// the engage radius, or firing at the nearest visible hostile in range when
// no ally is in the way.
func (ai *SquadAI) planAttack(w *World, sq *Squad, u *Unit, hostiles, allies []*Unit, up *unitPlan, plan *squadPlan) bool {
	wpn := u.kind.Weapon
	if wpn.Kind == WeaponMelee {
		target, dist := nearestHostileTo(u.pos, hostiles)
		if target == nil {
			return false
		}
		if ai.planStrike(u, target, dist, up) {
			return true
		}
		if dist <= ai.tuning.MeleeEngageRadius && !u.kind.Immobile {
			ai.planMove(w, sq, u, target.pos, u.kind.Speed, up, plan)
			return true
		}
		return false
	}

	target := ai.visibleTarget(w, u, hostiles)
	if target == nil {
		return false
	}
	if ai.friendlyInLine(u, target.pos, allies) {
		up.withheld = target.label
		return false
	}
	up.intent.Kind = IntentFire
	up.intent.Target = target.id
	up.intent.Aim = target.pos
	up.anim = AnimAttacking
	up.facing = target.pos.Sub(u.pos).Heading()
	return true
}

// visibleTarget is the nearest hostile within weapon range and sight.
func (ai *SquadAI) visibleTarget(w *World, u *Unit, hostiles []*Unit) *Unit {
	var best *Unit
	bestD := math.Inf(1)
	r := u.kind.Weapon.Range
	for _, h := range hostiles {
		d := u.pos.Dist(h.pos)
		if d > r || d >= bestD {
			continue
		}
		if w.Terrain.Occluded(u.pos, h.pos) {
			continue
		}
		best, bestD = h, d
	}
	return best
}

// friendlyInLine reports whether firing at aim would endanger an ally: one
// within the safety margin of the firing line, or for blast weapons within
// the blast radius of the aim point. A blast-weapon unit under duress fires
// regardless.
func (ai *SquadAI) friendlyInLine(u *Unit, aim Vec2, allies []*Unit) bool {
	wpn := u.kind.Weapon
	blast := wpn.Projectile.Explosive() && wpn.BlastRadius > 0
	if blast && u.healthFrac() < ai.tuning.DuressThreshold {
		return false
	}
	for _, a := range allies {
		if a.id == u.id || !a.Alive() {
			continue
		}
		if d, t := segmentPointDist(u.pos, aim, a.pos); t > 0 && d < ai.tuning.SafetyMargin {
			return true
		}
		if blast && a.pos.Dist(aim) <= wpn.BlastRadius+ai.tuning.SafetyMargin {
			return true
		}
	}
	return false
}

// walkableSlot pulls a slot that lies inside an obstacle back toward the
// anchor until it is standable.
func (ai *SquadAI) walkableSlot(w *World, anchor, slot Vec2) Vec2 {
	if w.Terrain.Walkable(slot) {
		return slot
	}
	for i := 1; i <= slotProbeSteps; i++ {
		p := slot.Add(anchor.Sub(slot).Scale(float64(i) / slotProbeSteps))
		if w.Terrain.Walkable(p) {
			return p
		}
	}
	return anchor
}

// planMove steers u toward goal: straight seek with arrive slow-down when
// the line is clear, otherwise along an A* path. A unit that keeps stalling
// gives up and holds.
func (ai *SquadAI) planMove(w *World, sq *Squad, u *Unit, goal Vec2, speed float64, up *unitPlan, plan *squadPlan) {
	t := ai.tuning
	if up.holding || u.kind.Immobile || speed <= 0 {
		up.intent.Kind = IntentHold
		up.anim = AnimIdle
		up.stall = 0
		return
	}
	d := u.pos.Dist(goal)
	if d <= slotArriveDist {
		up.stall, up.path, up.pathIdx = 0, nil, 0
		up.anim = AnimIdle
		return
	}

	waypoint := goal
	if !segmentWalkable(w.Terrain, u.pos, goal, t.NavCellSize*0.25) {
		if up.path == nil || up.pathGoal.Dist(goal) > t.NavCellSize {
			up.path = w.Nav.FindPath(u.pos, goal)
			up.pathIdx = 0
			up.pathGoal = goal
		}
		if up.path == nil {
			up.stall++
			ai.checkStall(w, sq, u, goal, up, plan)
			return
		}
		for up.pathIdx < len(up.path)-1 && u.pos.Dist(up.path[up.pathIdx]) < t.NavCellSize*0.5 {
			up.pathIdx++
		}
		waypoint = up.path[up.pathIdx]
	} else {
		up.path, up.pathIdx = nil, 0
	}

	dir := waypoint.Sub(u.pos).Normalize()
	v := speed
	if waypoint == goal && d < t.ArriveRadius {
		v *= d / t.ArriveRadius
	}
	up.intent.Kind = IntentMove
	up.intent.Velocity = dir.Scale(v)
	up.expected = v * t.Dt()
	up.facing = dir.Heading()
	up.anim = AnimMoving
	if up.fleeing {
		up.anim = AnimFleeing
	}
	ai.checkStall(w, sq, u, goal, up, plan)
}

func (ai *SquadAI) checkStall(w *World, sq *Squad, u *Unit, goal Vec2, up *unitPlan, plan *squadPlan) {
	if up.stall < ai.tuning.StallTicks {
		return
	}
	plan.failures = append(plan.failures, &OrderUnreachableError{
		Tick:    w.Tick,
		SquadID: sq.ID,
		UnitID:  u.id,
		Goal:    goal,
		Stalled: up.stall,
	})
	if u.id == sq.Anchor {
		plan.revertHold = true
	}
	up.holding = true
	up.stall = 0
	up.path, up.pathIdx = nil, 0
	up.intent.Kind = IntentHold
	up.intent.Velocity = Vec2{}
	up.expected = 0
	up.anim = AnimIdle
}

// commit applies a squad plan to the world and returns its intents.
func (ai *SquadAI) commit(w *World, plan *squadPlan) []Intent {
	sq := plan.sq
	if plan.facing != sq.Facing {
		sq.Facing = plan.facing
	}
	intents := make([]Intent, 0, len(plan.units))
	for i := range plan.units {
		up := &plan.units[i]
		u := up.u
		u.path, u.pathIndex, u.pathGoal = up.path, up.pathIdx, up.pathGoal
		u.stallTicks = up.stall
		u.lastPos = u.pos
		u.expected = up.expected
		u.vel = up.intent.Velocity
		u.facing = up.facing
		u.anim = up.anim
		if up.holding {
			u.status |= StatusHolding
		} else {
			u.status &^= StatusHolding
		}
		if up.fleeing {
			u.status |= StatusFleeing
		} else {
			u.status &^= StatusFleeing
		}
		if up.withheld != "" {
			w.SimLog.AddVerbose(w.Tick, u.label, u.side.String(), "combat", "withhold",
				"ally in line to "+up.withheld, 0)
		}
		intents = append(intents, up.intent)
	}
	for _, f := range plan.failures {
		w.orderFailures = append(w.orderFailures, f)
		label := "--"
		if u := w.Units.Unit(f.UnitID); u != nil {
			label = u.label
		}
		w.Log.Info().Err(f).Str("squad", sq.Name).Msg("order unreachable")
		w.SimLog.Add(w.Tick, label, sq.Side.String(), "order", "unreachable", f.Error(), float64(f.Stalled))
		w.emit(Event{Kind: EventOrderUnreachable, Unit: f.UnitID, Squad: sq.ID, Pos: f.Goal})
	}
	if plan.revertHold && sq.Order.Kind != OrderHold {
		w.SimLog.Add(w.Tick, sq.Name, sq.Side.String(), "order", "revert_hold", sq.Order.String(), 0)
		sq.Order = HoldOrder()
	}
	return intents
}

// nearestHostileTo returns the closest unit of hostiles to p.
func nearestHostileTo(p Vec2, hostiles []*Unit) (*Unit, float64) {
	var best *Unit
	bestD := math.Inf(1)
	for _, h := range hostiles {
		if d := p.Dist(h.pos); d < bestD {
			best, bestD = h, d
		}
	}
	return best, bestD
}

// EvaluateMorale charges each squad's losses since the last evaluation
// against its morale and flips it into or out of retreat. It runs after
// death propagation so a squad breaks in the same tick as its losses.
func (ai *SquadAI) EvaluateMorale(w *World, dt float64) {
	t := ai.tuning
	for _, sq := range w.Squads.Active() {
		living := sq.LivingCount(w.Units)
		lost := sq.livingAtEval - living
		if lost > 0 && sq.livingAtEval > 0 {
			sq.Morale = math.Max(0, sq.Morale-float64(lost)/float64(sq.livingAtEval))
		} else if sq.Morale < 1 {
			sq.Morale = math.Min(1, sq.Morale+t.MoraleRecovery*dt)
		}
		sq.livingAtEval = living

		switch {
		case sq.State == SquadActive && !sq.Fearless && sq.Morale < t.MoraleThreshold:
			sq.State = SquadRetreating
			w.SimLog.Add(w.Tick, sq.Name, sq.Side.String(), "morale", "retreat",
				fmt.Sprintf("morale %.2f after losing %d", sq.Morale, lost), sq.Morale)
			w.Log.Info().Str("squad", sq.Name).Float64("morale", sq.Morale).Msg("squad retreating")
			w.emit(Event{Kind: EventRetreat, Unit: -1, Squad: sq.ID, Pos: sq.AnchorPos, Value: sq.Morale})
		case sq.State == SquadRetreating && sq.Morale >= t.RallyThreshold:
			sq.State = SquadActive
			w.SimLog.Add(w.Tick, sq.Name, sq.Side.String(), "morale", "rally",
				fmt.Sprintf("morale %.2f", sq.Morale), sq.Morale)
			w.emit(Event{Kind: EventRally, Unit: -1, Squad: sq.ID, Pos: sq.AnchorPos, Value: sq.Morale})
		}
	}
}
