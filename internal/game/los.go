package game

import "math"

// HasLineOfSight returns true if the segment a→b does not cross any
// obstacle rectangle. Uses simple ray-vs-AABB tests.
func HasLineOfSight(a, b Vec2, obstacles []Rect) bool {
	for _, o := range obstacles {
		if rayIntersectsAABB(a.X, a.Y, b.X, b.Y, o.X, o.Y, o.X+o.W, o.Y+o.H) {
			return false
		}
	}
	return true
}

// rayAABBHitT returns the first segment parameter t in [0,1] where the line
// from (ox,oy)->(ex,ey) enters the AABB. The bool is false when no hit exists.
func rayAABBHitT(ox, oy, ex, ey, minX, minY, maxX, maxY float64) (float64, bool) {
	dx := ex - ox
	dy := ey - oy

	tMin := 0.0
	tMax := 1.0

	// X slab
	if math.Abs(dx) < 1e-12 {
		if ox < minX || ox > maxX {
			return 0, false
		}
	} else {
		invD := 1.0 / dx
		t1 := (minX - ox) * invD
		t2 := (maxX - ox) * invD
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return 0, false
		}
	}

	// Y slab
	if math.Abs(dy) < 1e-12 {
		if oy < minY || oy > maxY {
			return 0, false
		}
	} else {
		invD := 1.0 / dy
		t1 := (minY - oy) * invD
		t2 := (maxY - oy) * invD
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return 0, false
		}
	}

	if tMax < 0 || tMin > 1 {
		return 0, false
	}
	return math.Max(tMin, 0), true
}

// rayIntersectsAABB checks if the line segment from (ox,oy)->(ex,ey)
// intersects the axis-aligned bounding box defined by (minX,minY)-(maxX,maxY).
func rayIntersectsAABB(ox, oy, ex, ey, minX, minY, maxX, maxY float64) bool {
	_, hit := rayAABBHitT(ox, oy, ex, ey, minX, minY, maxX, maxY)
	return hit
}

// segmentPointDist returns the distance from p to the closest point on a→b,
// and the segment parameter of that point.
func segmentPointDist(a, b, p Vec2) (float64, float64) {
	ab := b.Sub(a)
	l2 := ab.LenSq()
	if l2 < 1e-12 {
		return p.Dist(a), 0
	}
	t := clamp01(p.Sub(a).Dot(ab) / l2)
	return p.Dist(a.Add(ab.Scale(t))), t
}
