package game

import (
	"fmt"
	"math"
)

// FormationType identifies the shape of a squad formation.
type FormationType int

const (
	FormationLine   FormationType = iota // side-by-side perpendicular to heading
	FormationWedge                       // V-shape, anchor at the point
	FormationColumn                      // single file behind the anchor
)

func (ft FormationType) String() string {
	switch ft {
	case FormationLine:
		return "line"
	case FormationWedge:
		return "wedge"
	case FormationColumn:
		return "column"
	default:
		return "unknown"
	}
}

// ParseFormation maps a definition string onto a FormationType. Empty means wedge.
func ParseFormation(s string) (FormationType, error) {
	switch s {
	case "line":
		return FormationLine, nil
	case "", "wedge":
		return FormationWedge, nil
	case "column":
		return FormationColumn, nil
	default:
		return 0, fmt.Errorf("unknown formation %q", s)
	}
}

// formationOffsets returns the local (forward, right) offsets for each slot
// in a formation of `count` members (slot 0 is the anchor).
// Forward is along the facing; right is 90° clockwise.
func formationOffsets(ft FormationType, count int, spacing float64) [][2]float64 {
	offsets := make([][2]float64, count)
	if count == 0 {
		return offsets
	}
	offsets[0] = [2]float64{0, 0}

	switch ft {
	case FormationLine:
		// Spread symmetrically: ...-2,-1,0,+1,+2,...
		for i := 1; i < count; i++ {
			side := float64((i+1)/2) * spacing
			if i%2 == 1 {
				side = -side
			}
			offsets[i] = [2]float64{0, side}
		}

	case FormationWedge:
		// Alternate flanks, each rank one step further back.
		for i := 1; i < count; i++ {
			rank := float64((i + 1) / 2)
			side := rank * spacing
			if i%2 == 1 {
				side = -side
			}
			offsets[i] = [2]float64{-rank * spacing * 0.8, side}
		}

	case FormationColumn:
		for i := 1; i < count; i++ {
			offsets[i] = [2]float64{-float64(i) * spacing, 0}
		}
	}
	return offsets
}

// SlotOffset rotates a local (forward, right) offset into world space for the
// given heading.
func SlotOffset(heading, fwd, right float64) Vec2 {
	fx := math.Cos(heading)
	fy := math.Sin(heading)
	// Right unit vector (90° clockwise from forward).
	rx := -fy
	ry := fx
	return Vec2{fx*fwd + rx*right, fy*fwd + ry*right}
}

// SlotWorld converts a local offset into a world position relative to anchor.
func SlotWorld(anchor Vec2, heading, fwd, right float64) Vec2 {
	return anchor.Add(SlotOffset(heading, fwd, right))
}
