package game

import "math"

// Vec2 is a position or direction on the ground plane.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// V2 is shorthand for Vec2{x, y}.
func V2(x, y float64) Vec2 { return Vec2{X: x, Y: y} }

func (a Vec2) Add(b Vec2) Vec2         { return Vec2{a.X + b.X, a.Y + b.Y} }
func (a Vec2) Sub(b Vec2) Vec2         { return Vec2{a.X - b.X, a.Y - b.Y} }
func (a Vec2) Scale(s float64) Vec2    { return Vec2{a.X * s, a.Y * s} }
func (a Vec2) Dot(b Vec2) float64      { return a.X*b.X + a.Y*b.Y }
func (a Vec2) LenSq() float64          { return a.X*a.X + a.Y*a.Y }
func (a Vec2) Len() float64            { return math.Hypot(a.X, a.Y) }
func (a Vec2) Dist(b Vec2) float64     { return math.Hypot(a.X-b.X, a.Y-b.Y) }
func (a Vec2) DistSq(b Vec2) float64   { return a.Sub(b).LenSq() }
func (a Vec2) Heading() float64        { return math.Atan2(a.Y, a.X) }
func (a Vec2) Perp() Vec2              { return Vec2{-a.Y, a.X} }
func (a Vec2) Lift(z float64) Vec3     { return Vec3{a.X, a.Y, z} }
func (a Vec2) IsFinite() bool          { return finite(a.X) && finite(a.Y) }
func (a Vec2) ClampLen(m float64) Vec2 { return clampLen2(a, m) }

// Normalize returns the unit vector of a, or the zero vector when a is zero.
func (a Vec2) Normalize() Vec2 {
	l := a.Len()
	if l < 1e-12 {
		return Vec2{}
	}
	return Vec2{a.X / l, a.Y / l}
}

func clampLen2(a Vec2, m float64) Vec2 {
	l := a.Len()
	if l <= m || l == 0 {
		return a
	}
	return a.Scale(m / l)
}

// FromHeading returns the unit vector pointing along heading (radians).
func FromHeading(h float64) Vec2 { return Vec2{math.Cos(h), math.Sin(h)} }

// Vec3 is a world position with height on Z.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (a Vec3) Add(b Vec3) Vec3      { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3      { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Scale(s float64) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }
func (a Vec3) XY() Vec2             { return Vec2{a.X, a.Y} }
func (a Vec3) Len() float64         { return math.Sqrt(a.X*a.X + a.Y*a.Y + a.Z*a.Z) }
func (a Vec3) IsFinite() bool       { return finite(a.X) && finite(a.Y) && finite(a.Z) }

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// normalizeAngle wraps a to (-π, π].
func normalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
