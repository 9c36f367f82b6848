package game

import (
	"math"
	"sort"
)

// SpatialGrid is a dense uniform grid over the terrain bounds used as the
// physics broad phase. It is rebuilt from unit positions every tick.
type SpatialGrid struct {
	origin   Vec2
	cellSize float64
	cols     int
	rows     int
	cells    [][]UnitID // index = y*cols + x
}

// NewSpatialGrid creates a grid covering bounds with square cells.
func NewSpatialGrid(bounds Rect, cellSize float64) *SpatialGrid {
	if cellSize <= 0 {
		cellSize = 4
	}
	cols := int(math.Ceil(bounds.W/cellSize)) + 1
	rows := int(math.Ceil(bounds.H/cellSize)) + 1
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return &SpatialGrid{
		origin:   Vec2{bounds.X, bounds.Y},
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		cells:    make([][]UnitID, cols*rows),
	}
}

// cellOf clamps p into the grid so units pushed off the map stay queryable.
func (g *SpatialGrid) cellOf(p Vec2) (int, int) {
	cx := int(math.Floor((p.X - g.origin.X) / g.cellSize))
	cy := int(math.Floor((p.Y - g.origin.Y) / g.cellSize))
	return clampInt(cx, 0, g.cols-1), clampInt(cy, 0, g.rows-1)
}

// Add inserts a unit at p.
func (g *SpatialGrid) Add(id UnitID, p Vec2) {
	if !p.IsFinite() {
		return
	}
	cx, cy := g.cellOf(p)
	idx := cy*g.cols + cx
	g.cells[idx] = append(g.cells[idx], id)
}

// Clear empties every cell and keeps the backing arrays.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Rebuild clears the grid and inserts every living unit.
func (g *SpatialGrid) Rebuild(units []*Unit) {
	g.Clear()
	for _, u := range units {
		if u.Alive() {
			g.Add(u.id, u.pos)
		}
	}
}

// QueryRect returns candidate IDs in cells overlapping [min, max], ascending.
func (g *SpatialGrid) QueryRect(min, max Vec2) []UnitID {
	x0, y0 := g.cellOf(min)
	x1, y1 := g.cellOf(max)
	var out []UnitID
	for cy := y0; cy <= y1; cy++ {
		for cx := x0; cx <= x1; cx++ {
			out = append(out, g.cells[cy*g.cols+cx]...)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// QueryRadius returns candidate IDs whose cells overlap the circle.
func (g *SpatialGrid) QueryRadius(c Vec2, r float64) []UnitID {
	return g.QueryRect(Vec2{c.X - r, c.Y - r}, Vec2{c.X + r, c.Y + r})
}

// QuerySegment returns candidate IDs near the segment a→b, padded by pad.
func (g *SpatialGrid) QuerySegment(a, b Vec2, pad float64) []UnitID {
	min := Vec2{math.Min(a.X, b.X) - pad, math.Min(a.Y, b.Y) - pad}
	max := Vec2{math.Max(a.X, b.X) + pad, math.Max(a.Y, b.Y) + pad}
	return g.QueryRect(min, max)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
