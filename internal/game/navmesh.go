package game

import (
	"container/heap"
	"math"
)

// NavGrid is a coarse 2D walkability grid sampled from a Terrain, where
// true = blocked.
type NavGrid struct {
	origin   Vec2
	cellSize float64
	cols     int
	rows     int
	blocked  []bool
}

// NewNavGrid samples terrain walkability over its bounds. A cell is blocked
// when its centre, or any point clearance away from it, is not walkable.
func NewNavGrid(t Terrain, cellSize, clearance float64) *NavGrid {
	b := t.Bounds()
	cols := max(1, int(math.Ceil(b.W/cellSize)))
	rows := max(1, int(math.Ceil(b.H/cellSize)))
	ng := &NavGrid{
		origin:   Vec2{b.X, b.Y},
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		blocked:  make([]bool, cols*rows),
	}
	probes := []Vec2{{0, 0}, {clearance, 0}, {-clearance, 0}, {0, clearance}, {0, -clearance}}
	for cy := 0; cy < rows; cy++ {
		for cx := 0; cx < cols; cx++ {
			c := ng.CellToWorld(cx, cy)
			for _, p := range probes {
				if !t.Walkable(c.Add(p)) {
					ng.blocked[cy*cols+cx] = true
					break
				}
			}
		}
	}
	return ng
}

// IsBlocked returns true if the cell at (cx, cy) is not walkable.
func (ng *NavGrid) IsBlocked(cx, cy int) bool {
	if cx < 0 || cy < 0 || cx >= ng.cols || cy >= ng.rows {
		return true
	}
	return ng.blocked[cy*ng.cols+cx]
}

// WorldToCell converts a world position to grid cell coordinates.
func (ng *NavGrid) WorldToCell(p Vec2) (int, int) {
	return int(math.Floor((p.X - ng.origin.X) / ng.cellSize)), int(math.Floor((p.Y - ng.origin.Y) / ng.cellSize))
}

// CellToWorld converts grid cell coordinates to the world-space cell centre.
func (ng *NavGrid) CellToWorld(cx, cy int) Vec2 {
	return Vec2{
		ng.origin.X + (float64(cx)+0.5)*ng.cellSize,
		ng.origin.Y + (float64(cy)+0.5)*ng.cellSize,
	}
}

// --- A* pathfinding ---

type pathNode struct {
	cx, cy int
	g, h   float64
	parent *pathNode
	index  int // heap index
}

type openList []*pathNode

func (ol openList) Len() int           { return len(ol) }
func (ol openList) Less(i, j int) bool { return (ol[i].g + ol[i].h) < (ol[j].g + ol[j].h) }
func (ol openList) Swap(i, j int)      { ol[i], ol[j] = ol[j], ol[i]; ol[i].index = i; ol[j].index = j }
func (ol *openList) Push(x any)        { n := x.(*pathNode); n.index = len(*ol); *ol = append(*ol, n) }
func (ol *openList) Pop() any {
	old := *ol
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*ol = old[:len(old)-1]
	return n
}

var dirs = [8][2]int{
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
	{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
}

// FindPath returns world-space waypoints from one position to another, with
// the exact goal as the final waypoint. Returns nil if no path exists.
func (ng *NavGrid) FindPath(from, to Vec2) []Vec2 {
	scx, scy := ng.WorldToCell(from)
	gcx, gcy := ng.WorldToCell(to)

	if ng.IsBlocked(gcx, gcy) {
		return nil
	}
	// A unit pressed against an obstacle may sit in a blocked cell; start
	// from the nearest open neighbour instead.
	if ng.IsBlocked(scx, scy) {
		var ok bool
		scx, scy, ok = ng.nearestOpen(scx, scy)
		if !ok {
			return nil
		}
	}

	key := func(cx, cy int) int { return cy*ng.cols + cx }
	heuristic := func(ax, ay, bx, by int) float64 {
		dx := math.Abs(float64(ax - bx))
		dy := math.Abs(float64(ay - by))
		return dx + dy + (math.Sqrt2-2)*math.Min(dx, dy)
	}

	start := &pathNode{cx: scx, cy: scy, g: 0, h: heuristic(scx, scy, gcx, gcy)}
	ol := &openList{start}
	heap.Init(ol)

	closed := make(map[int]bool)
	best := make(map[int]*pathNode)
	best[key(scx, scy)] = start

	for ol.Len() > 0 {
		cur := heap.Pop(ol).(*pathNode)
		if cur.cx == gcx && cur.cy == gcy {
			path := ng.buildPath(cur)
			path[len(path)-1] = to
			return path
		}
		k := key(cur.cx, cur.cy)
		if closed[k] {
			continue
		}
		closed[k] = true

		for _, d := range dirs {
			nx, ny := cur.cx+d[0], cur.cy+d[1]
			if ng.IsBlocked(nx, ny) {
				continue
			}
			// No diagonal corner-cutting through blocked cells.
			if d[0] != 0 && d[1] != 0 {
				if ng.IsBlocked(cur.cx+d[0], cur.cy) || ng.IsBlocked(cur.cx, cur.cy+d[1]) {
					continue
				}
			}
			nk := key(nx, ny)
			if closed[nk] {
				continue
			}
			cost := 1.0
			if d[0] != 0 && d[1] != 0 {
				cost = math.Sqrt2
			}
			g := cur.g + cost
			if prev, ok := best[nk]; ok && g >= prev.g {
				continue
			}
			node := &pathNode{cx: nx, cy: ny, g: g, h: heuristic(nx, ny, gcx, gcy), parent: cur}
			best[nk] = node
			heap.Push(ol, node)
		}
	}
	return nil
}

func (ng *NavGrid) nearestOpen(cx, cy int) (int, int, bool) {
	for _, d := range dirs {
		if !ng.IsBlocked(cx+d[0], cy+d[1]) {
			return cx + d[0], cy + d[1], true
		}
	}
	return 0, 0, false
}

func (ng *NavGrid) buildPath(end *pathNode) []Vec2 {
	var cells [][2]int
	for n := end; n != nil; n = n.parent {
		cells = append(cells, [2]int{n.cx, n.cy})
	}
	for i, j := 0, len(cells)-1; i < j; i, j = i+1, j-1 {
		cells[i], cells[j] = cells[j], cells[i]
	}
	path := make([]Vec2, len(cells))
	for i, c := range cells {
		path[i] = ng.CellToWorld(c[0], c[1])
	}
	return path
}
