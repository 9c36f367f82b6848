package game

import "testing"

func TestLOS_ClearLine(t *testing.T) {
	if !HasLineOfSight(V2(0, 0), V2(100, 100), nil) {
		t.Fatal("expected clear LOS with no obstacles")
	}
}

func TestLOS_BlockedByObstacle(t *testing.T) {
	obstacles := []Rect{{X: 40, Y: 0, W: 20, H: 200}}
	if HasLineOfSight(V2(0, 100), V2(200, 100), obstacles) {
		t.Fatal("expected LOS blocked by obstacle")
	}
}

func TestLOS_ObstacleBeyondEndpoint_NotBlocked(t *testing.T) {
	obstacles := []Rect{{X: 300, Y: 0, W: 64, H: 64}}
	if !HasLineOfSight(V2(0, 32), V2(200, 32), obstacles) {
		t.Fatal("obstacle beyond endpoint should not block LOS")
	}
}

func TestLOS_VerticalRay_Blocked(t *testing.T) {
	obstacles := []Rect{{X: 0, Y: 40, W: 200, H: 20}}
	if HasLineOfSight(V2(100, 0), V2(100, 200), obstacles) {
		t.Fatal("expected vertical ray blocked by horizontal obstacle")
	}
}

func TestLOS_HorizontalRay_ClearAbove(t *testing.T) {
	obstacles := []Rect{{X: 40, Y: 50, W: 20, H: 100}}
	if !HasLineOfSight(V2(0, 10), V2(200, 10), obstacles) {
		t.Fatal("ray above obstacle should have clear LOS")
	}
}

func TestLOS_DiagonalRay_Blocked(t *testing.T) {
	obstacles := []Rect{{X: 80, Y: 80, W: 40, H: 40}}
	if HasLineOfSight(V2(0, 0), V2(200, 200), obstacles) {
		t.Fatal("diagonal ray should be blocked by obstacle")
	}
}

func TestLOS_ZeroLength(t *testing.T) {
	obstacles := []Rect{{X: 0, Y: 0, W: 100, H: 100}}
	// A point inside a box must not panic.
	_ = HasLineOfSight(V2(50, 50), V2(50, 50), obstacles)
}

func TestRayIntersectsAABB_InsideBox(t *testing.T) {
	if !rayIntersectsAABB(10, 10, 20, 20, 0, 0, 100, 100) {
		t.Fatal("ray with both endpoints inside AABB should intersect")
	}
}

func TestRayIntersectsAABB_Miss(t *testing.T) {
	if rayIntersectsAABB(0, 0, 0, 100, 50, 0, 150, 100) {
		t.Fatal("ray to the left of AABB should not intersect")
	}
}

func TestSegmentPointDist(t *testing.T) {
	d, u := segmentPointDist(V2(0, 0), V2(10, 0), V2(5, 3))
	if d != 3 || u != 0.5 {
		t.Fatalf("expected (3, 0.5), got (%v, %v)", d, u)
	}
	d, u = segmentPointDist(V2(0, 0), V2(10, 0), V2(-4, 3))
	if d != 5 || u != 0 {
		t.Fatalf("point behind the start should clamp to t=0, got (%v, %v)", d, u)
	}
}

func TestObstacleTerrain_Occluded(t *testing.T) {
	terrain := NewObstacleTerrain(Rect{W: 100, H: 100}, []Rect{{X: 40, Y: 40, W: 20, H: 20}})
	if !terrain.Occluded(V2(10, 50), V2(90, 50)) {
		t.Fatal("sight through the obstacle should be occluded")
	}
	if terrain.Walkable(V2(50, 50)) || !terrain.Walkable(V2(10, 10)) || terrain.Walkable(V2(-1, 10)) {
		t.Fatal("walkability should exclude obstacles and out-of-bounds points")
	}
}
