package game

// Terrain is the opaque map collaborator. The engine only ever asks it for
// height, walkability and sight occlusion.
type Terrain interface {
	Bounds() Rect
	Elevation(p Vec2) float64
	Walkable(p Vec2) bool
	Occluded(a, b Vec2) bool
}

// Rect is an axis-aligned rectangle in world units.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Contains reports whether p lies inside r (edges inclusive).
func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// Center returns the midpoint of r.
func (r Rect) Center() Vec2 { return Vec2{r.X + r.W/2, r.Y + r.H/2} }

// ObstacleTerrain is a bounded field with rectangular solid obstacles and an
// optional elevation function. Missions and tests build one from their
// definitions; real maps plug in their own Terrain.
type ObstacleTerrain struct {
	bounds    Rect
	obstacles []Rect
	height    func(Vec2) float64
}

// NewObstacleTerrain builds a flat terrain with the given obstacles.
func NewObstacleTerrain(bounds Rect, obstacles []Rect) *ObstacleTerrain {
	obs := make([]Rect, len(obstacles))
	copy(obs, obstacles)
	return &ObstacleTerrain{bounds: bounds, obstacles: obs}
}

// WithElevation sets the height function and returns t.
func (t *ObstacleTerrain) WithElevation(fn func(Vec2) float64) *ObstacleTerrain {
	t.height = fn
	return t
}

func (t *ObstacleTerrain) Bounds() Rect { return t.bounds }

// Obstacles returns the obstacle list; callers must not modify it.
func (t *ObstacleTerrain) Obstacles() []Rect { return t.obstacles }

func (t *ObstacleTerrain) Elevation(p Vec2) float64 {
	if t.height == nil {
		return 0
	}
	return t.height(p)
}

func (t *ObstacleTerrain) Walkable(p Vec2) bool {
	if !t.bounds.Contains(p) {
		return false
	}
	for _, o := range t.obstacles {
		if o.Contains(p) {
			return false
		}
	}
	return true
}

func (t *ObstacleTerrain) Occluded(a, b Vec2) bool {
	return !HasLineOfSight(a, b, t.obstacles)
}

// segmentWalkable samples a→b at step intervals and reports whether every
// sample is walkable.
func segmentWalkable(t Terrain, a, b Vec2, step float64) bool {
	d := a.Dist(b)
	if step <= 0 {
		step = 0.5
	}
	n := int(d/step) + 1
	for i := 1; i <= n; i++ {
		p := a.Add(b.Sub(a).Scale(float64(i) / float64(n)))
		if !t.Walkable(p) {
			return false
		}
	}
	return true
}
