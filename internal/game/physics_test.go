package game

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestWorld builds a bare world on a 100x100 flat field.
func newTestWorld(t *testing.T, obstacles ...Rect) *World {
	t.Helper()
	tuning := DefaultTuning()
	return newWorld(&tuning, NewObstacleTerrain(Rect{W: 100, H: 100}, obstacles), zerolog.Nop(), NewSimLog(false))
}

func spawnUnit(t *testing.T, w *World, typ string, side Side, pos Vec2) *Unit {
	t.Helper()
	ut, ok := LookupUnitType(typ)
	require.True(t, ok, "unit type %s", typ)
	return w.Units.Spawn(ut, side, -1, pos)
}

func stepPhysics(t *testing.T, w *World, dt float64) []PhysicsEvent {
	t.Helper()
	events, err := w.Physics.Step(w, dt)
	require.NoError(t, err)
	return events
}

func eventsFor(events []PhysicsEvent, projectile int) []PhysicsEvent {
	var out []PhysicsEvent
	for _, e := range events {
		if e.Projectile == projectile && e.Kind != PhysCrater {
			out = append(out, e)
		}
	}
	return out
}

func TestSpawnProjectile_RejectsInvalidPayload(t *testing.T) {
	w := newTestWorld(t)
	cases := map[string]Payload{
		"negative damage":  {Damage: -1},
		"NaN radius":       {Damage: 10, BlastRadius: math.NaN()},
		"negative radius":  {Damage: 10, BlastRadius: -2},
		"negative impulse": {Damage: 10, Impulse: -1},
		"infinite fuse":    {Damage: 10, Fuse: math.Inf(1)},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := w.Physics.SpawnProjectile(ProjectileSpec{
				Owner: -1, Kind: ProjectileGrenade, Pos: Vec3{10, 10, 1}, FlightTime: 1, Payload: p,
			})
			require.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
	assert.Empty(t, w.Physics.Projectiles(), "rejected projectiles must not be added")

	_, err := w.Physics.PlaceOrdnance(Vec3{1, 1, 0}, Payload{Damage: 10, BlastRadius: math.Inf(1)})
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestProjectile_HitOnLastTickIsNotAlsoExpired(t *testing.T) {
	w := newTestWorld(t)
	target := spawnUnit(t, w, "gromflomite", SideEnemy, V2(11, 10))
	dt := w.Tuning.Dt()

	// One unit of travel per tick with exactly one tick of flight left.
	p, err := w.Physics.SpawnProjectile(ProjectileSpec{
		Owner: -1, OwnerSide: SidePlayer, Kind: ProjectileArrow,
		Pos: Vec3{10, 10, 1}, Vel: Vec3{60, 0, 0}, FlightTime: dt,
		Payload: Payload{Damage: 15},
	})
	require.NoError(t, err)

	events := eventsFor(stepPhysics(t, w, dt), p.ID)
	require.Len(t, events, 1)
	assert.Equal(t, PhysUnitHit, events[0].Kind)
	assert.Equal(t, target.ID(), events[0].Unit)
	assert.Empty(t, w.Physics.Projectiles())
}

func TestProjectile_ExpiresInFlight(t *testing.T) {
	w := newTestWorld(t)
	dt := w.Tuning.Dt()
	p, err := w.Physics.SpawnProjectile(ProjectileSpec{
		Owner: -1, Kind: ProjectileEnergyBolt,
		Pos: Vec3{10, 10, 20}, Vel: Vec3{5, 0, 0}, FlightTime: 3 * dt,
		Payload: Payload{Damage: 12},
	})
	require.NoError(t, err)

	var all []PhysicsEvent
	for i := 0; i < 5; i++ {
		all = append(all, eventsFor(stepPhysics(t, w, dt), p.ID)...)
	}
	require.Len(t, all, 1, "a projectile ends exactly once")
	assert.Equal(t, PhysExpired, all[0].Kind)
}

func TestProjectile_OwnerNeverHit(t *testing.T) {
	w := newTestWorld(t)
	owner := spawnUnit(t, w, "portal_archer", SidePlayer, V2(10.5, 10))
	dt := w.Tuning.Dt()
	p, err := w.Physics.SpawnProjectile(ProjectileSpec{
		Owner: owner.ID(), OwnerSide: SidePlayer, Kind: ProjectileArrow,
		Pos: Vec3{10, 10, 1}, Vel: Vec3{60, 0, 0}, FlightTime: 1,
		Payload: Payload{Damage: 15},
	})
	require.NoError(t, err)
	for _, e := range eventsFor(stepPhysics(t, w, dt), p.ID) {
		assert.NotEqual(t, PhysUnitHit, e.Kind)
	}
}

func TestProjectile_TerrainImpact(t *testing.T) {
	w := newTestWorld(t, Rect{X: 20, Y: 0, W: 5, H: 100})
	dt := w.Tuning.Dt()
	p, err := w.Physics.SpawnProjectile(ProjectileSpec{
		Owner: -1, Kind: ProjectileArrow,
		Pos: Vec3{19.5, 10, 1}, Vel: Vec3{60, 0, 0}, FlightTime: 1,
		Payload: Payload{Damage: 15},
	})
	require.NoError(t, err)
	events := eventsFor(stepPhysics(t, w, dt), p.ID)
	require.Len(t, events, 1)
	assert.Equal(t, PhysTerrainImpact, events[0].Kind, "entering an obstacle column below its height is an impact")
}

func TestExplosionDamage_Falloff(t *testing.T) {
	assert.Equal(t, 50, explosionDamage(100, 5, 10))
	assert.Equal(t, 100, explosionDamage(100, 0, 10))
	assert.Equal(t, 0, explosionDamage(100, 10, 10))
	assert.Equal(t, 0, explosionDamage(100, 10.01, 10))

	prev := math.MaxInt
	for d := 0.0; d <= 10; d += 0.1 {
		dmg := explosionDamage(87, d, 10)
		require.LessOrEqual(t, dmg, prev, "damage must not increase with distance (d=%.1f)", d)
		prev = dmg
	}
}

func TestExplosionImpulse(t *testing.T) {
	imp := explosionImpulse(V2(0, 0), V2(5, 0), 20, 10, 40)
	assert.InDelta(t, 10, imp.X, 1e-9)
	assert.InDelta(t, 0, imp.Y, 1e-9)

	clamped := explosionImpulse(V2(0, 0), V2(0, 1), 1000, 10, 40)
	assert.InDelta(t, 40, clamped.Len(), 1e-9)

	centre := explosionImpulse(V2(3, 3), V2(3, 3), 10, 5, 40)
	assert.Equal(t, V2(10, 0), centre, "a unit at the centre is pushed along +X")
}

func TestGrenade_BlastAtHalfRadius(t *testing.T) {
	w := newTestWorld(t)
	cr := NewCombatResolver(w.Tuning, 1)
	ally := spawnUnit(t, w, "tech_grenadier", SidePlayer, V2(55, 50))
	ally.health = 60
	dt := w.Tuning.Dt()

	_, err := w.Physics.SpawnProjectile(ProjectileSpec{
		Owner: -1, OwnerSide: SidePlayer, Kind: ProjectileGrenade,
		Pos: Vec3{50, 50, 0}, FlightTime: 1,
		Payload: Payload{Damage: 100, BlastRadius: 10, Impulse: 5, Fuse: 3},
	})
	require.NoError(t, err)

	events := stepPhysics(t, w, dt)
	var blast *PhysicsEvent
	for i := range events {
		if events[i].Kind == PhysExplosion {
			blast = &events[i]
		}
	}
	require.NotNil(t, blast)
	require.Len(t, blast.Hits, 1)
	assert.Equal(t, 50, blast.Hits[0].Damage)

	cr.ResolvePhysics(w, events)
	assert.Equal(t, 10, ally.Health(), "explosions ignore armor")
	assert.True(t, ally.Alive())
	assert.True(t, ally.Status().Has(StatusKnockedBack))
	assert.Len(t, w.Physics.Craters(), 1)
}

func TestChainReaction_DepthCap(t *testing.T) {
	w := newTestWorld(t)
	dt := w.Tuning.Dt()
	// Twelve markers two units apart; each blast reaches only its neighbour.
	for i := 0; i < 12; i++ {
		_, err := w.Physics.PlaceOrdnance(Vec3{10 + float64(i)*2, 50, 0},
			Payload{Damage: 10, BlastRadius: 3})
		require.NoError(t, err)
	}
	_, err := w.Physics.SpawnProjectile(ProjectileSpec{
		Owner: -1, Kind: ProjectileGrenade, Pos: Vec3{10, 50, 0}, FlightTime: 1,
		Payload: Payload{Damage: 10, BlastRadius: 1, Fuse: 2},
	})
	require.NoError(t, err)

	events := stepPhysics(t, w, dt)
	explosions := 0
	for _, e := range events {
		if e.Kind == PhysExplosion {
			explosions++
			assert.LessOrEqual(t, e.Depth, w.Tuning.ChainDepthCap)
		}
	}
	assert.Equal(t, w.Tuning.ChainDepthCap, explosions)
	assert.Equal(t, w.Tuning.ChainDepthCap, w.Physics.MaxChainDepth())
	assert.Equal(t, 1, w.Physics.DroppedDetonations())
	assert.True(t, w.SimLog.HasEntry("physics", "chain_capped", "ordnance"))

	live := 0
	for _, o := range w.Physics.Ordnance() {
		if !o.Detonated {
			live++
		}
	}
	assert.Equal(t, 12-(w.Tuning.ChainDepthCap-1), live, "capped links stay live")
}

func TestChainReaction_CappedLinkCountedOnce(t *testing.T) {
	w := newTestWorld(t)
	w.Tuning.ChainDepthCap = 1
	dt := w.Tuning.Dt()
	// One marker inside the radius of two root grenades that miss each other.
	_, err := w.Physics.PlaceOrdnance(Vec3{50, 50, 0}, Payload{Damage: 10, BlastRadius: 3})
	require.NoError(t, err)
	for _, x := range []float64{48, 52} {
		_, err := w.Physics.SpawnProjectile(ProjectileSpec{
			Owner: -1, Kind: ProjectileGrenade, Pos: Vec3{x, 50, 0}, FlightTime: 1,
			Payload: Payload{Damage: 10, BlastRadius: 3, Fuse: 2},
		})
		require.NoError(t, err)
	}

	explosions := 0
	for _, e := range stepPhysics(t, w, dt) {
		if e.Kind == PhysExplosion {
			explosions++
		}
	}
	assert.Equal(t, 2, explosions)
	assert.Equal(t, 1, w.Physics.DroppedDetonations())
	assert.Equal(t, 1, w.SimLog.CountCategory("physics", "chain_capped"))
	require.Len(t, w.Physics.Ordnance(), 1)
	assert.False(t, w.Physics.Ordnance()[0].Detonated)
}

func TestStep_IntegrationPanicIsReturned(t *testing.T) {
	w := newTestWorld(t)
	w.Physics.projectiles = append(w.Physics.projectiles, nil)

	_, err := w.Physics.Step(w, w.Tuning.Dt())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
}

func TestChainReaction_EachSourceOnce(t *testing.T) {
	w := newTestWorld(t)
	dt := w.Tuning.Dt()
	// Three markers all within each other's radius.
	for _, x := range []float64{50, 51, 52} {
		_, err := w.Physics.PlaceOrdnance(Vec3{x, 50, 0}, Payload{Damage: 10, BlastRadius: 5})
		require.NoError(t, err)
	}
	_, err := w.Physics.SpawnProjectile(ProjectileSpec{
		Owner: -1, Kind: ProjectileGrenade, Pos: Vec3{50, 50, 0}, FlightTime: 1,
		Payload: Payload{Damage: 10, BlastRadius: 5, Fuse: 2},
	})
	require.NoError(t, err)

	explosions := 0
	for _, e := range stepPhysics(t, w, dt) {
		if e.Kind == PhysExplosion {
			explosions++
		}
	}
	assert.Equal(t, 4, explosions)
	assert.Equal(t, 2, w.Physics.MaxChainDepth())
}

func TestGrenade_FuseExpiryDetonatesMidAir(t *testing.T) {
	w := newTestWorld(t)
	dt := w.Tuning.Dt()
	_, err := w.Physics.SpawnProjectile(ProjectileSpec{
		Owner: -1, Kind: ProjectileGrenade, Pos: Vec3{50, 50, 30}, Vel: Vec3{1, 0, 0},
		Payload: Payload{Damage: 40, BlastRadius: 3, Fuse: 2 * dt},
	})
	require.NoError(t, err)

	var kinds []PhysicsEventKind
	for i := 0; i < 3; i++ {
		for _, e := range stepPhysics(t, w, dt) {
			kinds = append(kinds, e.Kind)
		}
	}
	assert.Equal(t, []PhysicsEventKind{PhysExplosion, PhysCrater}, kinds)
}

func TestProjectile_NonFiniteStateClamped(t *testing.T) {
	w := newTestWorld(t)
	dt := w.Tuning.Dt()
	p, err := w.Physics.SpawnProjectile(ProjectileSpec{
		Owner: -1, Kind: ProjectileArrow, Pos: Vec3{10, 10, 20}, Vel: Vec3{1, 0, 0}, FlightTime: 1,
		Payload: Payload{Damage: 1},
	})
	require.NoError(t, err)
	stepPhysics(t, w, dt)
	good := p.Pos

	p.Vel.X = math.Inf(1)
	events := stepPhysics(t, w, dt)
	require.NotEmpty(t, events)
	assert.Equal(t, PhysAnomaly, events[0].Kind)
	assert.True(t, p.Pos.IsFinite())
	assert.Equal(t, good, p.Pos)
	assert.True(t, w.SimLog.HasEntry("physics", "anomaly", "clamped"))
}

func TestDebris_SettlesAndWakes(t *testing.T) {
	w := newTestWorld(t)
	dt := w.Tuning.Dt()
	b := w.Physics.SpawnDebris(-1, Vec3{50, 50, 0}, Vec3{2, 0, 3})

	for i := 0; i < 600 && !b.AtRest; i++ {
		stepPhysics(t, w, dt)
	}
	require.True(t, b.AtRest, "debris should come to rest")
	assert.LessOrEqual(t, b.Bounces, w.Tuning.DebrisMaxBounces)
	assert.Equal(t, 0.0, b.Pos.Z)
	rest := b.Pos

	stepPhysics(t, w, dt)
	assert.Equal(t, rest, b.Pos, "resting bodies are static")

	_, err := w.Physics.PlaceOrdnance(Vec3{rest.X - 1, rest.Y, 0}, Payload{Damage: 1, BlastRadius: 4, Impulse: 10})
	require.NoError(t, err)
	_, err = w.Physics.SpawnProjectile(ProjectileSpec{
		Owner: -1, Kind: ProjectileGrenade, Pos: Vec3{rest.X - 1, rest.Y, 0}, FlightTime: 1,
		Payload: Payload{Damage: 1, BlastRadius: 4, Impulse: 10, Fuse: 1},
	})
	require.NoError(t, err)
	stepPhysics(t, w, dt)
	assert.False(t, b.AtRest && b.Pos == rest, "a blast wakes resting debris")
}
