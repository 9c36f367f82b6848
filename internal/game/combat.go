package game

import (
	"fmt"
	"math"
	"math/rand"
)

// --- Combat constants ---

const (
	muzzleHeightFrac   = 0.75 // launch point as a fraction of unit height
	torsoHeightFrac    = 0.5  // aim point on a standing target
	meleeKnockRangeMul = 1.2  // knockback travel per unit of strength, in weapon ranges
	blastKnockTime     = 0.2  // seconds a blast impulse keeps pushing a unit
	corpseLift         = 1.5  // upward velocity given to every fresh corpse
	corpseJitter       = 0.6  // random lateral velocity on a fresh corpse
	healInterval       = 1.0  // seconds between heals from one medic
)

// DamageKind names what dealt a hit.
type DamageKind int

const (
	DamageMelee DamageKind = iota
	DamageProjectile
	DamageExplosion
)

func (k DamageKind) String() string {
	switch k {
	case DamageMelee:
		return "melee"
	case DamageProjectile:
		return "projectile"
	case DamageExplosion:
		return "explosion"
	default:
		return "unknown"
	}
}

// DamageSource attributes damage for kill credit and corpse motion.
type DamageSource struct {
	Attacker UnitID // -1 when unattributed
	Kind     DamageKind
	Impulse  Vec2
}

// CombatResolver turns intents and physics events into health, knockback
// and death. It applies damage to any unit regardless of side; avoiding
// friendly fire is the squad AI's job.
type CombatResolver struct {
	tuning *Tuning
	rng    *rand.Rand
}

// NewCombatResolver creates a resolver with its own deterministic RNG.
func NewCombatResolver(t *Tuning, seed int64) *CombatResolver {
	return &CombatResolver{
		tuning: t,
		rng:    rand.New(rand.NewSource(seed)), // #nosec G404 -- simulation only
	}
}

// Execute runs the squad AI's intents in order.
func (cr *CombatResolver) Execute(w *World, intents []Intent) {
	for _, in := range intents {
		u := w.Units.Unit(in.Unit)
		if u == nil || !u.Alive() {
			continue
		}
		switch in.Kind {
		case IntentMelee:
			if t := w.Units.Unit(in.Target); t != nil {
				cr.ExecuteMeleeAttack(w, u, t)
			}
		case IntentFire:
			if _, err := cr.ExecuteRangedAttack(w, u, in.Aim); err != nil {
				w.Log.Warn().Err(err).Str("unit", u.label).Msg("ranged attack rejected")
			}
		case IntentHeal:
			if t := w.Units.Unit(in.Target); t != nil {
				cr.ApplyHeal(w, u, t, u.kind.HealAmount)
			}
		}
	}
}

// ExecuteMeleeAttack strikes target if it is within melee range and the
// attacker's cooldown has elapsed. No physics object is created.
func (cr *CombatResolver) ExecuteMeleeAttack(w *World, attacker, target *Unit) bool {
	wpn := attacker.kind.Weapon
	if !attacker.Alive() || !target.Alive() || attacker.id == target.id {
		return false
	}
	if wpn.Kind != WeaponMelee || attacker.cooldown > 0 || attacker.status.Has(StatusStunned) {
		return false
	}
	dist := attacker.pos.Dist(target.pos)
	if dist > wpn.Range {
		return false
	}

	attacker.cooldown = wpn.Cooldown()
	attacker.anim = AnimAttacking
	attacker.facing = target.pos.Sub(attacker.pos).Heading()

	dmg := int(math.Floor(float64(wpn.Damage) * armorMitigation(target.armor)))
	dir := target.pos.Sub(attacker.pos).Normalize()
	if dir.LenSq() == 0 {
		dir = FromHeading(attacker.facing)
	}

	strength := math.Max(0, attacker.kind.KnockbackPower-target.kind.KnockbackResistance)
	var knock Vec2
	if rec := target.kind.KnockbackRecovery; strength > 0 && rec > 0 && !target.kind.Immobile {
		knock = dir.Scale(wpn.Range * meleeKnockRangeMul * strength / rec)
	}

	cr.ApplyDamage(w, target, dmg, DamageSource{Attacker: attacker.id, Kind: DamageMelee, Impulse: knock})
	if target.Alive() && knock.LenSq() > 0 {
		target.knockVel = knock
		target.knockTimer = target.kind.KnockbackRecovery
		target.status |= StatusKnockedBack | StatusStunned
		target.clearPath()
	}
	w.SimLog.AddVerbose(w.Tick, attacker.label, attacker.side.String(), "combat", "melee",
		fmt.Sprintf("%s hits %s for %d", attacker.label, target.label, dmg), float64(dmg))
	return true
}

// ExecuteRangedAttack launches the attacker's projectile at aim. It needs
// line of sight, range and ammo; a target the fixed arc cannot reach is a
// miss without effect. Only a rejected payload returns an error.
func (cr *CombatResolver) ExecuteRangedAttack(w *World, attacker *Unit, aim Vec2) (bool, error) {
	wpn := attacker.kind.Weapon
	if !attacker.Alive() || wpn.Kind != WeaponProjectile || attacker.cooldown > 0 || attacker.status.Has(StatusStunned) {
		return false, nil
	}
	if attacker.pos.Dist(aim) > wpn.Range || w.Terrain.Occluded(attacker.pos, aim) {
		return false, nil
	}
	if attacker.kind.Ammo > 0 && attacker.ammo <= 0 {
		cr.exhausted(w, attacker, "ammo")
		return false, nil
	}

	from := attacker.pos.Lift(w.Terrain.Elevation(attacker.pos) + cr.tuning.UnitHeight*muzzleHeightFrac)
	toZ := w.Terrain.Elevation(aim)
	if !wpn.Projectile.Explosive() {
		toZ += cr.tuning.UnitHeight * torsoHeightFrac
	}
	vel, ok := ballisticVelocity(from, aim.Lift(toZ), wpn.ArcAngle, cr.tuning.Gravity)
	if !ok {
		return false, nil
	}

	p, err := w.Physics.SpawnProjectile(ProjectileSpec{
		Owner:      attacker.id,
		OwnerSide:  attacker.side,
		Kind:       wpn.Projectile,
		Pos:        from,
		Vel:        vel,
		FlightTime: wpn.FlightTime,
		Payload: Payload{
			Damage:      wpn.Damage,
			BlastRadius: wpn.BlastRadius,
			Impulse:     wpn.Impulse,
			Fuse:        wpn.Fuse,
		},
	})
	if err != nil {
		return false, fmt.Errorf("unit %s: %w", attacker.label, err)
	}
	if attacker.kind.Ammo > 0 {
		attacker.ammo--
	}
	attacker.cooldown = wpn.Cooldown()
	attacker.anim = AnimAttacking
	attacker.facing = aim.Sub(attacker.pos).Heading()
	w.emit(Event{Kind: EventProjectileFired, Unit: attacker.id, Squad: attacker.squad, Pos: attacker.pos, Value: float64(p.ID), Detail: p.Kind.String()})
	w.SimLog.AddVerbose(w.Tick, attacker.label, attacker.side.String(), "combat", "fire",
		fmt.Sprintf("%s at (%.1f,%.1f)", p.Kind, aim.X, aim.Y), float64(p.ID))
	return true, nil
}

// ballisticVelocity solves the launch velocity for a fixed elevation angle:
//
//	v² = g·R² / (2·cos²θ·(R·tanθ − dz))
//
// It fails when the target is at zero range or above the reachable arc.
func ballisticVelocity(from, to Vec3, angle, g float64) (Vec3, bool) {
	flat := to.XY().Sub(from.XY())
	r := flat.Len()
	if r < 1e-6 {
		return Vec3{}, false
	}
	dz := to.Z - from.Z
	cos := math.Cos(angle)
	denom := 2 * cos * cos * (r*math.Tan(angle) - dz)
	if denom <= 0 {
		return Vec3{}, false
	}
	v := math.Sqrt(g * r * r / denom)
	if !finite(v) {
		return Vec3{}, false
	}
	dir := flat.Scale(1 / r)
	return dir.Scale(v * cos).Lift(v * math.Sin(angle)), true
}

// armorMitigation is the fraction of damage that gets through armor.
func armorMitigation(armor float64) float64 { return clamp01(1 - armor) }

// ApplyDamage removes health from u. Reaching zero kills the unit at once;
// the dying animation is cosmetic. It returns the damage actually taken.
func (cr *CombatResolver) ApplyDamage(w *World, u *Unit, amount int, src DamageSource) int {
	if !u.Alive() || amount <= 0 {
		return 0
	}
	if amount > u.health {
		amount = u.health
	}
	u.health -= amount
	if src.Attacker >= 0 && src.Attacker != u.id {
		u.lastAttacker = src.Attacker
	}
	if u.health == 0 {
		cr.kill(w, u, src)
	}
	return amount
}

func (cr *CombatResolver) kill(w *World, u *Unit, src DamageSource) {
	u.state = UnitDead
	u.anim = AnimDying
	u.animTimer = cr.tuning.DyingWindow
	u.status = 0
	u.vel = Vec2{}
	u.knockVel = Vec2{}
	u.knockTimer = 0
	u.clearPath()

	push := src.Impulse.Add(Vec2{
		X: (cr.rng.Float64()*2 - 1) * corpseJitter,
		Y: (cr.rng.Float64()*2 - 1) * corpseJitter,
	})
	lift := corpseLift + src.Impulse.Len()*0.5
	w.Physics.SpawnDebris(u.id, u.pos.Lift(w.Terrain.Elevation(u.pos)), push.Lift(lift))

	w.deaths[u.side]++
	w.metrics.kill(u.side)

	killer := "--"
	if k := w.Units.Unit(src.Attacker); k != nil && k.id != u.id {
		k.kills++
		killer = k.label
		if sq, ok := w.Squads.Get(k.squad); ok {
			sq.Kills++
		}
	}
	w.SimLog.Add(w.Tick, u.label, u.side.String(), "combat", "kill",
		fmt.Sprintf("%s (%s) killed by %s via %s", u.label, u.kind.Name, killer, src.Kind), 0)
	w.emit(Event{Kind: EventUnitKilled, Unit: u.id, Squad: u.squad, Pos: u.pos, Detail: src.Kind.String()})
}

// ApplyHeal restores up to amount health on target, clamped to its max. The
// healer must be alive with charges left; a medic out of charges no-ops.
func (cr *CombatResolver) ApplyHeal(w *World, healer, target *Unit, amount int) bool {
	if !healer.Alive() || !target.Alive() || amount <= 0 || healer.cooldown > 0 {
		return false
	}
	if healer.healCharges <= 0 {
		cr.exhausted(w, healer, "heal_charges")
		return false
	}
	if target.health >= target.maxHealth {
		return false
	}
	if r := healer.kind.HealRange; r > 0 && healer.pos.Dist(target.pos) > r {
		return false
	}
	before := target.health
	target.health = min(target.maxHealth, target.health+amount)
	healer.healCharges--
	healer.cooldown = healInterval
	healer.anim = AnimHealing
	healer.facing = target.pos.Sub(healer.pos).Heading()
	w.emit(Event{Kind: EventHeal, Unit: target.id, Squad: target.squad, Pos: target.pos, Value: float64(target.health - before)})
	w.SimLog.Add(w.Tick, healer.label, healer.side.String(), "combat", "heal",
		fmt.Sprintf("%s heals %s +%d (%d charges left)", healer.label, target.label, target.health-before, healer.healCharges),
		float64(target.health-before))
	return true
}

func (cr *CombatResolver) exhausted(w *World, u *Unit, what string) {
	w.metrics.exhaust(what)
	w.Log.Debug().Err(ErrResourceExhausted).Str("unit", u.label).Str("resource", what).Msg("action skipped")
}

// applyImpulse knocks a living unit back, reduced by its resistance.
func (cr *CombatResolver) applyImpulse(u *Unit, imp Vec2) {
	if !u.Alive() || u.kind.Immobile || imp.LenSq() == 0 {
		return
	}
	imp = imp.Scale(clamp01(1 - u.kind.KnockbackResistance))
	if imp.LenSq() == 0 {
		return
	}
	u.knockVel = u.knockVel.Add(imp).ClampLen(cr.tuning.MaxImpulse)
	u.knockTimer = math.Max(u.knockTimer, blastKnockTime)
	u.status |= StatusKnockedBack
	u.clearPath()
}

// ResolvePhysics applies the step's collision and explosion events.
func (cr *CombatResolver) ResolvePhysics(w *World, events []PhysicsEvent) {
	for _, ev := range events {
		switch ev.Kind {
		case PhysUnitHit:
			w.emit(Event{Kind: EventUnitHit, Unit: ev.Unit, Pos: ev.Pos.XY(), Detail: ev.ProjKind.String()})
			if ev.ProjKind.Explosive() {
				continue // the blast does the damage
			}
			u := w.Units.Unit(ev.Unit)
			if u == nil {
				continue
			}
			dmg := int(math.Floor(float64(ev.Payload.Damage) * armorMitigation(u.armor)))
			cr.ApplyDamage(w, u, dmg, DamageSource{Attacker: ev.Owner, Kind: DamageProjectile})
		case PhysTerrainImpact:
			w.emit(Event{Kind: EventTerrainImpact, Unit: -1, Pos: ev.Pos.XY(), Detail: ev.ProjKind.String()})
		case PhysExplosion:
			cr.resolveExplosion(w, ev)
		case PhysCrater:
			w.emit(Event{Kind: EventCrater, Unit: -1, Pos: ev.Pos.XY(), Value: ev.Payload.BlastRadius})
		case PhysAnomaly:
			w.emit(Event{Kind: EventAnomaly, Unit: ev.Unit, Pos: ev.Pos.XY(), Detail: ev.Detail})
		}
	}
}

func (cr *CombatResolver) resolveExplosion(w *World, ev PhysicsEvent) {
	total := 0
	for _, h := range ev.Hits {
		u := w.Units.Unit(h.Unit)
		if u == nil {
			continue
		}
		total += cr.ApplyDamage(w, u, h.Damage, DamageSource{Attacker: ev.Owner, Kind: DamageExplosion, Impulse: h.Impulse})
		cr.applyImpulse(u, h.Impulse)
	}
	w.emit(Event{Kind: EventExplosion, Unit: ev.Owner, Pos: ev.Pos.XY(), Value: ev.Payload.BlastRadius,
		Detail: fmt.Sprintf("depth %d", ev.Depth)})
	w.SimLog.Add(w.Tick, "--", ev.OwnerSide.String(), "physics", "explosion",
		fmt.Sprintf("r=%.1f at (%.1f,%.1f) depth=%d hits=%d", ev.Payload.BlastRadius, ev.Pos.X, ev.Pos.Y, ev.Depth, len(ev.Hits)),
		float64(total))
}

// Update ticks attack cooldowns and plays out the dying animation tag.
func (cr *CombatResolver) Update(w *World, dt float64) {
	for _, u := range w.Units.All() {
		if !u.Alive() {
			if u.anim == AnimDying {
				u.animTimer -= dt
				if u.animTimer <= 0 {
					u.animTimer = 0
					u.anim = AnimDead
				}
			}
			continue
		}
		if u.cooldown > 0 {
			u.cooldown = math.Max(0, u.cooldown-dt)
		}
	}
}
