package game

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(w *World) *CombatResolver { return NewCombatResolver(w.Tuning, 7) }

func TestMelee_ArmorMitigatedWithKnockback(t *testing.T) {
	w := newTestWorld(t)
	cr := newResolver(w)
	atk := spawnUnit(t, w, "dimensioneer", SidePlayer, V2(10, 10))
	tgt := spawnUnit(t, w, "gromflomite", SideEnemy, V2(11.5, 10))

	require.True(t, cr.ExecuteMeleeAttack(w, atk, tgt))
	// 25 * (1 - 0.1) floors to 22.
	assert.Equal(t, 78, tgt.Health())
	assert.True(t, tgt.Status().Has(StatusKnockedBack))
	assert.True(t, tgt.Status().Has(StatusStunned))
	assert.Greater(t, tgt.knockVel.X, 0.0, "knockback pushes away from the attacker")
	assert.InDelta(t, atk.kind.Weapon.Cooldown(), atk.cooldown, 1e-9)
	assert.Equal(t, AnimAttacking, atk.Anim())

	assert.False(t, cr.ExecuteMeleeAttack(w, atk, tgt), "cooldown blocks a second swing")
	assert.Equal(t, 78, tgt.Health())
}

func TestMelee_RangeAndStun(t *testing.T) {
	w := newTestWorld(t)
	cr := newResolver(w)
	atk := spawnUnit(t, w, "dimensioneer", SidePlayer, V2(10, 10))
	far := spawnUnit(t, w, "gromflomite", SideEnemy, V2(13, 10))

	assert.False(t, cr.ExecuteMeleeAttack(w, atk, far), "3 units is beyond melee range 2")
	assert.Equal(t, 100, far.Health())

	near := spawnUnit(t, w, "gromflomite", SideEnemy, V2(11, 10))
	atk.status |= StatusStunned
	assert.False(t, cr.ExecuteMeleeAttack(w, atk, near), "stunned units cannot attack")
	assert.Equal(t, 100, near.Health())

	ranged := spawnUnit(t, w, "portal_archer", SidePlayer, V2(10, 11))
	assert.False(t, cr.ExecuteMeleeAttack(w, ranged, near), "projectile weapons do not melee")
}

func TestMelee_ImmobileTargetIsNotKnockedBack(t *testing.T) {
	w := newTestWorld(t)
	cr := newResolver(w)
	atk := spawnUnit(t, w, "dimensioneer", SidePlayer, V2(10, 10))
	turret := spawnUnit(t, w, "turret", SideEnemy, V2(11, 10))

	require.True(t, cr.ExecuteMeleeAttack(w, atk, turret))
	assert.Equal(t, 250-12, turret.Health())
	assert.Equal(t, StatusTag(0), turret.Status())
	assert.Equal(t, Vec2{}, turret.knockVel)
}

func TestRanged_LaunchesProjectileAndSpendsAmmo(t *testing.T) {
	w := newTestWorld(t)
	cr := newResolver(w)
	archer := spawnUnit(t, w, "portal_archer", SidePlayer, V2(10, 50))
	spawnUnit(t, w, "gromflomite", SideEnemy, V2(20, 50))

	ok, err := cr.ExecuteRangedAttack(w, archer, V2(20, 50))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 39, archer.Ammo())
	require.Len(t, w.Physics.Projectiles(), 1)

	p := w.Physics.Projectiles()[0]
	assert.Equal(t, archer.ID(), p.Owner)
	assert.Equal(t, ProjectileArrow, p.Kind)
	assert.InDelta(t, 1.5, p.Pos.Z, 1e-9, "launched from muzzle height")
	assert.Greater(t, p.Vel.X, 0.0)
	assert.Greater(t, p.Vel.Z, 0.0, "fired on an upward arc")
	require.Len(t, w.events, 1)
	assert.Equal(t, EventProjectileFired, w.events[0].Kind)
}

func TestRanged_Rejections(t *testing.T) {
	t.Run("out of range", func(t *testing.T) {
		w := newTestWorld(t)
		archer := spawnUnit(t, w, "portal_archer", SidePlayer, V2(10, 50))
		ok, err := newResolver(w).ExecuteRangedAttack(w, archer, V2(35, 50))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 40, archer.Ammo())
	})
	t.Run("no line of sight", func(t *testing.T) {
		w := newTestWorld(t, Rect{X: 14, Y: 45, W: 2, H: 10})
		archer := spawnUnit(t, w, "portal_archer", SidePlayer, V2(10, 50))
		ok, err := newResolver(w).ExecuteRangedAttack(w, archer, V2(20, 50))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, w.Physics.Projectiles())
	})
	t.Run("out of ammo", func(t *testing.T) {
		w := newTestWorld(t)
		archer := spawnUnit(t, w, "portal_archer", SidePlayer, V2(10, 50))
		archer.ammo = 0
		ok, err := newResolver(w).ExecuteRangedAttack(w, archer, V2(20, 50))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, w.Physics.Projectiles())
	})
	t.Run("melee weapon", func(t *testing.T) {
		w := newTestWorld(t)
		d := spawnUnit(t, w, "dimensioneer", SidePlayer, V2(10, 50))
		ok, err := newResolver(w).ExecuteRangedAttack(w, d, V2(12, 50))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestRanged_ArrowHitIsArmorMitigated(t *testing.T) {
	w := newTestWorld(t)
	cr := newResolver(w)
	archer := spawnUnit(t, w, "portal_archer", SidePlayer, V2(10, 50))
	tgt := spawnUnit(t, w, "gromflomite", SideEnemy, V2(20, 50))

	ok, err := cr.ExecuteRangedAttack(w, archer, tgt.Position())
	require.NoError(t, err)
	require.True(t, ok)

	dt := w.Tuning.Dt()
	for i := 0; i < 120 && len(w.Physics.Projectiles()) > 0; i++ {
		cr.ResolvePhysics(w, stepPhysics(t, w, dt))
	}
	// 15 * (1 - 0.1) floors to 13.
	assert.Equal(t, 87, tgt.Health())
	assert.Equal(t, archer.ID(), tgt.LastAttacker())
	assert.Empty(t, w.Physics.Projectiles())
}

func TestBallisticVelocity(t *testing.T) {
	g := 9.8
	from := Vec3{0, 0, 0}
	to := Vec3{10, 0, 0}
	vel, ok := ballisticVelocity(from, to, math.Pi/4, g)
	require.True(t, ok)
	assert.InDelta(t, vel.X, vel.Z, 1e-9, "45 degrees splits the speed evenly")

	flight := to.X / vel.X
	assert.InDelta(t, 0, vel.Z*flight-0.5*g*flight*flight, 1e-9, "lands at the target height")

	_, ok = ballisticVelocity(from, Vec3{0, 0, 1}, math.Pi/4, g)
	assert.False(t, ok, "zero horizontal range")
	_, ok = ballisticVelocity(from, Vec3{10, 0, 50}, math.Pi/8, g)
	assert.False(t, ok, "target above the arc")
}

func TestApplyDamage_DeathIsImmediate(t *testing.T) {
	w := newTestWorld(t)
	cr := newResolver(w)
	sq, err := w.SpawnSquad(SquadSpec{Type: "dimensioneer", Name: "Alpha", Position: V2(10, 10), Size: 1}, SidePlayer)
	require.NoError(t, err)
	killer := w.Units.Unit(sq.Members[0])
	victim := spawnUnit(t, w, "gromflomite", SideEnemy, V2(12, 10))

	taken := cr.ApplyDamage(w, victim, 500, DamageSource{Attacker: killer.ID(), Kind: DamageMelee})
	assert.Equal(t, 100, taken, "overkill clamps to remaining health")
	assert.Equal(t, 0, victim.Health())
	assert.Equal(t, UnitDead, victim.State())
	assert.Equal(t, AnimDying, victim.Anim())
	assert.False(t, victim.Alive())

	assert.Equal(t, 1, killer.Kills())
	assert.Equal(t, 1, sq.Kills)
	assert.Equal(t, 1, w.Deaths(SideEnemy))
	require.Len(t, w.Physics.Debris(), 1)
	assert.Equal(t, victim.ID(), w.Physics.Debris()[0].Source)
	assert.True(t, w.SimLog.HasEntry("combat", "kill", "killed by "+killer.Label()))

	var killed int
	for _, e := range w.events {
		if e.Kind == EventUnitKilled {
			killed++
		}
	}
	assert.Equal(t, 1, killed)

	assert.Zero(t, cr.ApplyDamage(w, victim, 10, DamageSource{Attacker: -1}), "the dead take no damage")
	assert.Len(t, w.Physics.Debris(), 1)

	cr.Update(w, w.Tuning.DyingWindow+0.01)
	assert.Equal(t, AnimDead, victim.Anim())
}

func TestResolvePhysics_ExplosionIgnoresArmor(t *testing.T) {
	w := newTestWorld(t)
	cr := newResolver(w)
	tgt := spawnUnit(t, w, "gromflomite", SideEnemy, V2(50, 50))

	cr.ResolvePhysics(w, []PhysicsEvent{{
		Kind:  PhysExplosion,
		Owner: -1,
		Pos:   Vec3{48, 50, 0},
		Hits:  []ExplosionHit{{Unit: tgt.ID(), Distance: 2, Damage: 30, Impulse: V2(4, 0)}},
		Depth: 1,
	}})
	assert.Equal(t, 70, tgt.Health())
	assert.True(t, tgt.Status().Has(StatusKnockedBack))
	assert.InDelta(t, 4, tgt.knockVel.X, 1e-9, "no resistance, full impulse")
}

func TestResolvePhysics_ProjectileHits(t *testing.T) {
	w := newTestWorld(t)
	cr := newResolver(w)
	tgt := spawnUnit(t, w, "gromflomite", SideEnemy, V2(50, 50))

	cr.ResolvePhysics(w, []PhysicsEvent{{
		Kind: PhysUnitHit, Owner: -1, Unit: tgt.ID(), ProjKind: ProjectileArrow, Payload: Payload{Damage: 15},
	}})
	assert.Equal(t, 87, tgt.Health())

	cr.ResolvePhysics(w, []PhysicsEvent{{
		Kind: PhysUnitHit, Owner: -1, Unit: tgt.ID(), ProjKind: ProjectileGrenade, Payload: Payload{Damage: 40, BlastRadius: 3},
	}})
	assert.Equal(t, 87, tgt.Health(), "a grenade's contact does nothing; its blast does the damage")
}

func TestApplyHeal_Rules(t *testing.T) {
	w := newTestWorld(t)
	cr := newResolver(w)
	medic := spawnUnit(t, w, "field_medic", SidePlayer, V2(10, 10))
	patient := spawnUnit(t, w, "portal_archer", SidePlayer, V2(12, 10))
	patient.health = 80

	require.True(t, cr.ApplyHeal(w, medic, patient, 25))
	assert.Equal(t, 90, patient.Health(), "clamped to max")
	assert.Equal(t, 5, medic.HealCharges())

	patient.health = 40
	assert.False(t, cr.ApplyHeal(w, medic, patient, 25), "heal interval not elapsed")
	medic.cooldown = 0

	far := spawnUnit(t, w, "portal_archer", SidePlayer, V2(30, 10))
	far.health = 10
	assert.False(t, cr.ApplyHeal(w, medic, far, 25), "beyond heal range")

	require.True(t, cr.ApplyHeal(w, medic, patient, 25))
	assert.Equal(t, 65, patient.Health())
	medic.cooldown = 0

	patient.health = patient.maxHealth
	assert.False(t, cr.ApplyHeal(w, medic, patient, 25), "nothing to heal")

	patient.health = 10
	medic.healCharges = 0
	assert.False(t, cr.ApplyHeal(w, medic, patient, 25), "out of charges")
	assert.Equal(t, 10, patient.Health())

	medic.healCharges = 3
	cr.ApplyDamage(w, patient, 100, DamageSource{Attacker: -1})
	assert.False(t, cr.ApplyHeal(w, medic, patient, 25), "the dead cannot be healed")
	assert.Equal(t, 0, patient.Health())
}

func TestUpdate_TicksCooldowns(t *testing.T) {
	w := newTestWorld(t)
	cr := newResolver(w)
	u := spawnUnit(t, w, "gromflomite", SideEnemy, V2(10, 10))
	u.cooldown = 0.05

	cr.Update(w, 0.02)
	assert.InDelta(t, 0.03, u.cooldown, 1e-9)
	cr.Update(w, 0.1)
	assert.Zero(t, u.cooldown)
}
