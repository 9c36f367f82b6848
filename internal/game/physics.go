package game

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Payload is what a projectile or ordnance marker delivers.
type Payload struct {
	Damage      int     `json:"damage"`
	BlastRadius float64 `json:"blast_radius"`
	Impulse     float64 `json:"impulse"`
	Fuse        float64 `json:"fuse"`
}

// Validate rejects negative or non-finite payload fields.
func (p Payload) Validate() error {
	switch {
	case p.Damage < 0:
		return fmt.Errorf("damage %d: %w", p.Damage, ErrInvalidPayload)
	case !finite(p.BlastRadius) || p.BlastRadius < 0:
		return fmt.Errorf("blast radius %v: %w", p.BlastRadius, ErrInvalidPayload)
	case !finite(p.Impulse) || p.Impulse < 0:
		return fmt.Errorf("impulse %v: %w", p.Impulse, ErrInvalidPayload)
	case !finite(p.Fuse) || p.Fuse < 0:
		return fmt.Errorf("fuse %v: %w", p.Fuse, ErrInvalidPayload)
	}
	return nil
}

// Projectile is an arrow, bolt or grenade in flight.
type Projectile struct {
	ID         int
	Owner      UnitID
	OwnerSide  Side
	Kind       ProjectileKind
	Pos        Vec3
	Vel        Vec3
	FlightTime float64 // seconds remaining; never increases
	Payload    Payload

	prev     Vec3
	goodPos  Vec3
	goodVel  Vec3
	finished bool
}

// Body is a debris or ragdoll body. Resting bodies cost nothing per tick
// until a blast wakes them.
type Body struct {
	ID      int
	Source  UnitID
	Pos     Vec3
	Vel     Vec3
	Bounces int
	AtRest  bool

	goodPos Vec3
}

// Ordnance is an unexploded marker that only detonates when caught in a blast.
type Ordnance struct {
	ID        int
	Pos       Vec3
	Payload   Payload
	Detonated bool
}

// PhysicsEventKind classifies what the physics step observed.
type PhysicsEventKind int

const (
	PhysTerrainImpact PhysicsEventKind = iota
	PhysUnitHit
	PhysExplosion
	PhysCrater
	PhysExpired
	PhysAnomaly
)

func (k PhysicsEventKind) String() string {
	switch k {
	case PhysTerrainImpact:
		return "terrain_impact"
	case PhysUnitHit:
		return "unit_hit"
	case PhysExplosion:
		return "explosion"
	case PhysCrater:
		return "crater"
	case PhysExpired:
		return "expired"
	case PhysAnomaly:
		return "anomaly"
	default:
		return "unknown"
	}
}

// ExplosionHit is one unit inside a blast.
type ExplosionHit struct {
	Unit     UnitID
	Distance float64
	Damage   int
	Impulse  Vec2
}

// PhysicsEvent is reported by Step for the combat resolver to apply.
type PhysicsEvent struct {
	Kind       PhysicsEventKind
	Projectile int // -1 for ordnance-sourced explosions
	ProjKind   ProjectileKind
	Owner      UnitID
	OwnerSide  Side
	Unit       UnitID // PhysUnitHit target
	Pos        Vec3
	Payload    Payload
	Hits       []ExplosionHit // PhysExplosion
	Depth      int            // chain depth, 1 for the initiating blast
	Detail     string
}

// ProjectileSpec describes a projectile to launch.
type ProjectileSpec struct {
	Owner      UnitID
	OwnerSide  Side
	Kind       ProjectileKind
	Pos        Vec3
	Vel        Vec3
	FlightTime float64
	Payload    Payload
}

// PhysicsWorld integrates projectiles and debris and moves units.
type PhysicsWorld struct {
	tuning      *Tuning
	grid        *SpatialGrid
	projectiles []*Projectile
	debris      []*Body
	ordnance    []*Ordnance

	nextProjectile int
	nextBody       int
	nextOrdnance   int

	maxChainDepth int
	dropped       int
	craters       []Vec3
}

// NewPhysicsWorld creates an empty physics world over bounds.
func NewPhysicsWorld(t *Tuning, bounds Rect) *PhysicsWorld {
	return &PhysicsWorld{
		tuning: t,
		grid:   NewSpatialGrid(bounds, t.GridCellSize),
	}
}

// SpawnProjectile validates and launches a projectile.
func (pw *PhysicsWorld) SpawnProjectile(s ProjectileSpec) (*Projectile, error) {
	if err := s.Payload.Validate(); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", s.Kind, err)
	}
	if !s.Pos.IsFinite() || !s.Vel.IsFinite() {
		return nil, fmt.Errorf("spawn %s: non-finite launch state: %w", s.Kind, ErrInvalidPayload)
	}
	ft := s.FlightTime
	if s.Kind.Explosive() && s.Payload.Fuse > 0 {
		ft = s.Payload.Fuse
	}
	if !(ft > 0) || !finite(ft) {
		return nil, fmt.Errorf("spawn %s: flight time %v: %w", s.Kind, ft, ErrInvalidPayload)
	}
	p := &Projectile{
		ID:         pw.nextProjectile,
		Owner:      s.Owner,
		OwnerSide:  s.OwnerSide,
		Kind:       s.Kind,
		Pos:        s.Pos,
		Vel:        s.Vel,
		FlightTime: ft,
		Payload:    s.Payload,
		prev:       s.Pos,
		goodPos:    s.Pos,
		goodVel:    s.Vel,
	}
	pw.nextProjectile++
	pw.projectiles = append(pw.projectiles, p)
	return p, nil
}

// SpawnDebris drops a body at pos with the given velocity.
func (pw *PhysicsWorld) SpawnDebris(source UnitID, pos, vel Vec3) *Body {
	if !pos.IsFinite() {
		pos = Vec3{}
	}
	if !vel.IsFinite() {
		vel = Vec3{}
	}
	b := &Body{ID: pw.nextBody, Source: source, Pos: pos, Vel: vel, goodPos: pos}
	pw.nextBody++
	pw.debris = append(pw.debris, b)
	return b
}

// PlaceOrdnance adds an unexploded ordnance marker.
func (pw *PhysicsWorld) PlaceOrdnance(pos Vec3, p Payload) (*Ordnance, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("place ordnance: %w", err)
	}
	if !pos.IsFinite() {
		return nil, fmt.Errorf("place ordnance: non-finite position: %w", ErrInvalidPayload)
	}
	o := &Ordnance{ID: pw.nextOrdnance, Pos: pos, Payload: p}
	pw.nextOrdnance++
	pw.ordnance = append(pw.ordnance, o)
	return o, nil
}

// Projectiles returns live projectiles in ID order.
func (pw *PhysicsWorld) Projectiles() []*Projectile { return pw.projectiles }

// Debris returns every debris body.
func (pw *PhysicsWorld) Debris() []*Body { return pw.debris }

// Ordnance returns every ordnance marker, detonated or not.
func (pw *PhysicsWorld) Ordnance() []*Ordnance { return pw.ordnance }

// Craters returns blast positions, oldest first.
func (pw *PhysicsWorld) Craters() []Vec3 { return pw.craters }

// RestingDebris counts bodies that have come to rest.
func (pw *PhysicsWorld) RestingDebris() int {
	n := 0
	for _, b := range pw.debris {
		if b.AtRest {
			n++
		}
	}
	return n
}

// MaxChainDepth is the deepest chain reaction resolved so far.
func (pw *PhysicsWorld) MaxChainDepth() int { return pw.maxChainDepth }

// DroppedDetonations counts chain links cut off by the depth cap.
func (pw *PhysicsWorld) DroppedDetonations() int { return pw.dropped }

// Step advances units, projectiles and debris by dt and returns what
// happened, in deterministic order. A panic while integrating projectiles
// is returned as an error.
func (pw *PhysicsWorld) Step(w *World, dt float64) ([]PhysicsEvent, error) {
	var events []PhysicsEvent
	events = pw.moveUnits(w, dt, events)
	pw.grid.Rebuild(w.Units.All())

	if err := pw.integrateProjectiles(dt); err != nil {
		return events, err
	}

	var roots []detonation
	for _, p := range pw.projectiles {
		if p.finished {
			continue
		}
		if ev, ok := pw.sanitizeProjectile(w, p); ok {
			events = append(events, ev)
		}
		events, roots = pw.collide(w, p, events, roots)
	}

	events = pw.resolveDetonations(w, roots, events)
	pw.compactProjectiles()
	events = pw.integrateDebris(w, dt, events)
	return events, nil
}

// moveUnits applies committed steering velocity and knockback to every
// living unit. Units slide along obstacles instead of entering them.
func (pw *PhysicsWorld) moveUnits(w *World, dt float64, events []PhysicsEvent) []PhysicsEvent {
	for _, u := range w.Units.All() {
		if !u.Alive() {
			continue
		}
		v := u.knockVel
		if !u.status.Has(StatusKnockedBack) && !u.kind.Immobile {
			v = v.Add(u.vel)
		}
		if u.knockTimer > 0 {
			u.knockTimer -= dt
			if u.knockTimer <= 0 {
				u.knockTimer = 0
				u.knockVel = Vec2{}
				u.status &^= StatusKnockedBack | StatusStunned
			}
		}
		if v.LenSq() == 0 {
			continue
		}
		next := u.pos.Add(v.Scale(dt))
		if !next.IsFinite() {
			w.Log.Warn().Str("unit", u.label).Msg("non-finite unit motion clamped")
			u.vel, u.knockVel = Vec2{}, Vec2{}
			w.metrics.anomaly("unit")
			events = append(events, PhysicsEvent{Kind: PhysAnomaly, Projectile: -1, Unit: u.id, Pos: u.pos.Lift(0), Detail: "unit"})
			continue
		}
		switch {
		case w.Terrain.Walkable(next):
			u.pos = next
		case w.Terrain.Walkable(Vec2{next.X, u.pos.Y}):
			u.pos = Vec2{next.X, u.pos.Y}
		case w.Terrain.Walkable(Vec2{u.pos.X, next.Y}):
			u.pos = Vec2{u.pos.X, next.Y}
		default:
			u.knockVel = Vec2{}
		}
	}
	return events
}

const integrateChunk = 64

// integrateProjectiles advances every live projectile one semi-implicit
// Euler step. Projectiles are independent, so chunks run in parallel; the
// results are committed before collision handling starts. A chunk that
// panics is reported as an error.
func (pw *PhysicsWorld) integrateProjectiles(dt float64) error {
	n := len(pw.projectiles)
	if n == 0 {
		return nil
	}
	g := pw.tuning.Gravity
	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for start := 0; start < n; start += integrateChunk {
		chunk := pw.projectiles[start:min(start+integrateChunk, n)]
		eg.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("integrating projectiles %d-%d: panic: %v", start, start+len(chunk)-1, r)
				}
			}()
			for _, p := range chunk {
				if p.finished {
					continue
				}
				p.prev = p.Pos
				p.Vel.Z -= g * dt
				p.Pos = p.Pos.Add(p.Vel.Scale(dt))
				p.FlightTime = math.Max(0, p.FlightTime-dt)
			}
			return nil
		})
	}
	return eg.Wait()
}

// sanitizeProjectile restores the last finite state of a projectile whose
// position or velocity went NaN or infinite.
func (pw *PhysicsWorld) sanitizeProjectile(w *World, p *Projectile) (PhysicsEvent, bool) {
	if p.Pos.IsFinite() && p.Vel.IsFinite() && finite(p.FlightTime) {
		p.goodPos, p.goodVel = p.Pos, p.Vel
		return PhysicsEvent{}, false
	}
	w.Log.Warn().Int("projectile", p.ID).Str("kind", p.Kind.String()).
		Msg("non-finite projectile state clamped")
	w.SimLog.Add(w.Tick, "--", "--", "physics", "anomaly",
		fmt.Sprintf("projectile %d (%s) clamped", p.ID, p.Kind), 0)
	w.metrics.anomaly("projectile")
	p.Pos, p.Vel, p.prev = p.goodPos, p.goodVel, p.goodPos
	if !finite(p.FlightTime) {
		p.FlightTime = 0
	}
	return PhysicsEvent{Kind: PhysAnomaly, Projectile: p.ID, ProjKind: p.Kind, Owner: p.Owner, Pos: p.Pos, Detail: "projectile"}, true
}

// collide resolves unit contact, terrain contact and expiry for p. At most
// one of them applies and every one finishes the projectile.
func (pw *PhysicsWorld) collide(w *World, p *Projectile, events []PhysicsEvent, roots []detonation) ([]PhysicsEvent, []detonation) {
	if u, at, ok := pw.sweepUnits(w, p); ok {
		p.finished = true
		p.Pos = at
		events = append(events, PhysicsEvent{
			Kind: PhysUnitHit, Projectile: p.ID, ProjKind: p.Kind,
			Owner: p.Owner, OwnerSide: p.OwnerSide, Unit: u.id, Pos: at, Payload: p.Payload,
		})
		if p.Kind.Explosive() {
			roots = append(roots, pw.projectileDetonation(p))
		}
		return events, roots
	}

	ground := w.Terrain.Elevation(p.Pos.XY())
	inObstacle := !w.Terrain.Walkable(p.Pos.XY()) && p.Pos.Z < ground+pw.tuning.ObstacleHeight
	if p.Pos.Z <= ground || inObstacle {
		p.finished = true
		if p.Pos.Z < ground {
			p.Pos.Z = ground
		}
		events = append(events, PhysicsEvent{
			Kind: PhysTerrainImpact, Projectile: p.ID, ProjKind: p.Kind,
			Owner: p.Owner, OwnerSide: p.OwnerSide, Unit: -1, Pos: p.Pos, Payload: p.Payload,
		})
		if p.Kind.Explosive() {
			roots = append(roots, pw.projectileDetonation(p))
		}
		return events, roots
	}

	if p.FlightTime <= 0 {
		p.finished = true
		if p.Kind.Explosive() {
			roots = append(roots, pw.projectileDetonation(p))
			return events, roots
		}
		events = append(events, PhysicsEvent{
			Kind: PhysExpired, Projectile: p.ID, ProjKind: p.Kind,
			Owner: p.Owner, OwnerSide: p.OwnerSide, Unit: -1, Pos: p.Pos,
		})
	}
	return events, roots
}

// sweepUnits finds the first unit cylinder the projectile's path crossed
// this step. The owner is never hit by its own projectile.
func (pw *PhysicsWorld) sweepUnits(w *World, p *Projectile) (*Unit, Vec3, bool) {
	reach := pw.tuning.UnitRadius + pw.tuning.ProjectileRadius
	a, b := p.prev.XY(), p.Pos.XY()
	var (
		hit   *Unit
		bestT = math.Inf(1)
	)
	for _, id := range pw.grid.QuerySegment(a, b, reach) {
		if id == p.Owner {
			continue
		}
		u := w.Units.Unit(id)
		if u == nil || !u.Alive() {
			continue
		}
		d, t := segmentPointDist(a, b, u.pos)
		if d > reach || t >= bestT {
			continue
		}
		z := p.prev.Z + (p.Pos.Z-p.prev.Z)*t
		base := w.Terrain.Elevation(u.pos)
		if z < base-pw.tuning.ProjectileRadius || z > base+pw.tuning.UnitHeight+pw.tuning.ProjectileRadius {
			continue
		}
		hit, bestT = u, t
	}
	if hit == nil {
		return nil, Vec3{}, false
	}
	at := p.prev.Add(p.Pos.Sub(p.prev).Scale(bestT))
	return hit, at, true
}

// detonation is one pending entry of the chain-reaction worklist.
type detonation struct {
	source    detonationKey
	pos       Vec3
	payload   Payload
	owner     UnitID
	ownerSide Side
	kind      ProjectileKind
	depth     int
}

type detonationKey struct {
	ordnance bool
	id       int
}

func (pw *PhysicsWorld) projectileDetonation(p *Projectile) detonation {
	return detonation{
		source:    detonationKey{id: p.ID},
		pos:       p.Pos,
		payload:   p.Payload,
		owner:     p.Owner,
		ownerSide: p.OwnerSide,
		kind:      p.Kind,
		depth:     1,
	}
}

// resolveDetonations processes the explosion worklist breadth first. Each
// source detonates at most once per tick and chains stop at the depth cap,
// so resolution always terminates.
func (pw *PhysicsWorld) resolveDetonations(w *World, roots []detonation, events []PhysicsEvent) []PhysicsEvent {
	if len(roots) == 0 {
		return events
	}
	visited := make(map[detonationKey]bool, len(roots))
	dropped := make(map[detonationKey]bool)
	queue := make([]detonation, 0, len(roots))
	for _, r := range roots {
		if visited[r.source] {
			continue
		}
		visited[r.source] = true
		queue = append(queue, r)
	}

	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]
		if d.depth > pw.maxChainDepth {
			pw.maxChainDepth = d.depth
		}
		w.metrics.explosion(d.depth)
		events = append(events, pw.explode(w, d), PhysicsEvent{
			Kind: PhysCrater, Projectile: -1, Unit: -1, Pos: d.pos, Payload: d.payload, Depth: d.depth,
		})

		center := d.pos.XY()
		r := d.payload.BlastRadius
		for _, p := range pw.projectiles {
			if p.finished || !p.Kind.Explosive() || p.Pos.XY().Dist(center) > r {
				continue
			}
			key := detonationKey{id: p.ID}
			if visited[key] {
				continue
			}
			if d.depth >= pw.tuning.ChainDepthCap {
				if !dropped[key] {
					dropped[key] = true
					pw.dropChain(w, d, fmt.Sprintf("projectile %d", p.ID))
				}
				continue
			}
			visited[key] = true
			p.finished = true
			next := pw.projectileDetonation(p)
			next.depth = d.depth + 1
			queue = append(queue, next)
		}
		for _, o := range pw.ordnance {
			if o.Detonated || o.Pos.XY().Dist(center) > r {
				continue
			}
			key := detonationKey{ordnance: true, id: o.ID}
			if visited[key] {
				continue
			}
			if d.depth >= pw.tuning.ChainDepthCap {
				if !dropped[key] {
					dropped[key] = true
					pw.dropChain(w, d, fmt.Sprintf("ordnance %d", o.ID))
				}
				continue
			}
			visited[key] = true
			o.Detonated = true
			queue = append(queue, detonation{
				source:    key,
				pos:       o.Pos,
				payload:   o.Payload,
				owner:     d.owner,
				ownerSide: d.ownerSide,
				kind:      ProjectileGrenade,
				depth:     d.depth + 1,
			})
		}
	}
	return events
}

func (pw *PhysicsWorld) dropChain(w *World, d detonation, what string) {
	pw.dropped++
	w.Log.Warn().Int("depth", d.depth).Str("source", what).Msg("chain detonation dropped at depth cap")
	w.SimLog.Add(w.Tick, "--", "--", "physics", "chain_capped",
		fmt.Sprintf("%s not detonated at depth %d", what, d.depth), float64(d.depth))
}

// explode computes blast effects on units and wakes debris in range. Damage
// and knockback are applied by the combat resolver.
func (pw *PhysicsWorld) explode(w *World, d detonation) PhysicsEvent {
	center := d.pos.XY()
	r := d.payload.BlastRadius
	ev := PhysicsEvent{
		Kind: PhysExplosion, Projectile: -1, ProjKind: d.kind,
		Owner: d.owner, OwnerSide: d.ownerSide, Unit: -1,
		Pos: d.pos, Payload: d.payload, Depth: d.depth,
	}
	if !d.source.ordnance {
		ev.Projectile = d.source.id
	}
	for _, id := range pw.grid.QueryRadius(center, r) {
		u := w.Units.Unit(id)
		if u == nil || !u.Alive() {
			continue
		}
		dist := u.pos.Dist(center)
		if dist > r {
			continue
		}
		ev.Hits = append(ev.Hits, ExplosionHit{
			Unit:     id,
			Distance: dist,
			Damage:   explosionDamage(d.payload.Damage, dist, r),
			Impulse:  explosionImpulse(center, u.pos, d.payload.Impulse, r, pw.tuning.MaxImpulse),
		})
	}
	for _, b := range pw.debris {
		dist := b.Pos.XY().Dist(center)
		if dist > r {
			continue
		}
		imp := explosionImpulse(center, b.Pos.XY(), d.payload.Impulse, r, pw.tuning.MaxImpulse)
		b.Vel = b.Vel.Add(imp.Lift(imp.Len() * 0.5))
		b.AtRest = false
		b.Bounces = 0
	}
	pw.craters = append(pw.craters, d.pos)
	return ev
}

// explosionDamage is floor(damage × (1 − d/r)) inside the radius and 0
// outside. It never increases with distance.
func explosionDamage(damage int, dist, radius float64) int {
	if damage <= 0 || dist > radius || !finite(dist) {
		return 0
	}
	if radius <= 0 {
		return damage
	}
	return int(math.Floor(float64(damage) * (1 - dist/radius)))
}

// explosionImpulse points away from center, scaled by (1 − d/r) and clamped
// to maxImpulse. A unit at the exact center is pushed along +X.
func explosionImpulse(center, at Vec2, impulse, radius, maxImpulse float64) Vec2 {
	if impulse <= 0 {
		return Vec2{}
	}
	dist := at.Dist(center)
	scale := 1.0
	if radius > 0 {
		scale = clamp01(1 - dist/radius)
	}
	dir := at.Sub(center).Normalize()
	if dir.LenSq() == 0 {
		dir = Vec2{1, 0}
	}
	return dir.Scale(math.Min(impulse*scale, maxImpulse))
}

func (pw *PhysicsWorld) compactProjectiles() {
	live := pw.projectiles[:0]
	for _, p := range pw.projectiles {
		if !p.finished {
			live = append(live, p)
		}
	}
	for i := len(live); i < len(pw.projectiles); i++ {
		pw.projectiles[i] = nil
	}
	pw.projectiles = live
}

// integrateDebris moves awake bodies with gravity, drag and damped bounces
// until they settle.
func (pw *PhysicsWorld) integrateDebris(w *World, dt float64, events []PhysicsEvent) []PhysicsEvent {
	t := pw.tuning
	for _, b := range pw.debris {
		if b.AtRest {
			continue
		}
		prev := b.Pos
		b.Vel.Z -= t.Gravity * dt
		b.Vel.X *= t.DebrisDrag
		b.Vel.Y *= t.DebrisDrag
		b.Pos = b.Pos.Add(b.Vel.Scale(dt))

		if !b.Pos.IsFinite() || !b.Vel.IsFinite() {
			w.Log.Warn().Int("body", b.ID).Msg("non-finite debris state clamped")
			w.metrics.anomaly("debris")
			b.Pos, b.Vel, b.AtRest = b.goodPos, Vec3{}, true
			events = append(events, PhysicsEvent{Kind: PhysAnomaly, Projectile: -1, Unit: b.Source, Pos: b.Pos, Detail: "debris"})
			continue
		}

		ground := w.Terrain.Elevation(b.Pos.XY())
		if !w.Terrain.Walkable(b.Pos.XY()) && b.Pos.Z < ground+t.ObstacleHeight {
			b.Pos.X, b.Pos.Y = prev.X, prev.Y
			b.Vel.X, b.Vel.Y = -b.Vel.X*t.DebrisBounce, -b.Vel.Y*t.DebrisBounce
			ground = w.Terrain.Elevation(b.Pos.XY())
		}
		if b.Pos.Z <= ground {
			b.Pos.Z = ground
			if b.Vel.Z < 0 && b.Bounces < t.DebrisMaxBounces && -b.Vel.Z > t.DebrisRestSpeed {
				b.Vel.Z = -b.Vel.Z * t.DebrisBounce
				b.Vel.X *= t.DebrisBounce
				b.Vel.Y *= t.DebrisBounce
				b.Bounces++
			} else {
				b.Vel = Vec3{}
				b.AtRest = true
			}
		}
		b.goodPos = b.Pos
	}
	return events
}
