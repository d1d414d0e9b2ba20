// Package spatial implements the uniform-grid broad-phase index described in
// spec.md §4.2, adapted from the cell-bucketed grid in
// internal/game/spatial/grid.go: entities are bucketed into fixed-size cells
// each tick, and queries scan only overlapping cells rather than the full
// entity set.
package spatial

import (
	"math"

	"fight-club/internal/ecs"
)

// DefaultCellSize is the spec's design target (~256 world units).
const DefaultCellSize = 256.0

// entry is one entity's record inside a cell bucket.
type entry struct {
	entity ecs.Entity
	x, y   float64
}

// Grid is a uniform grid over one arena. Every entity with a Physical
// component is inserted into every cell overlapping its bounding square each
// tick (spec §4.2).
type Grid struct {
	cellSize    float64
	invCellSize float64
	cols, rows  int
	width, height float64
	cells       [][]entry

	// visitGen + visited implement the "visit-generation counter" so
	// QueryRect visits each entity exactly once per call even when it
	// straddles multiple cells.
	visitGen uint32
	visited  map[uint16]uint32
}

// New creates a grid over [0,width)x[0,height) with the given cell size.
func New(width, height, cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	cols := int(math.Ceil(width / cellSize))
	rows := int(math.Ceil(height / cellSize))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return &Grid{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		width:       width,
		height:      height,
		cells:       make([][]entry, cols*rows),
		visited:     make(map[uint16]uint32),
	}
}

// Clear empties every cell bucket, retaining backing arrays.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

func (g *Grid) clampCol(c int) int {
	if c < 0 {
		return 0
	}
	if c >= g.cols {
		return g.cols - 1
	}
	return c
}

func (g *Grid) clampRow(r int) int {
	if r < 0 {
		return 0
	}
	if r >= g.rows {
		return g.rows - 1
	}
	return r
}

// Insert adds an entity's bounding square (center x,y, half-extent radius)
// into every overlapping cell.
func (g *Grid) Insert(e ecs.Entity, x, y, radius float64) {
	minCol := g.clampCol(int((x - radius) * g.invCellSize))
	maxCol := g.clampCol(int((x + radius) * g.invCellSize))
	minRow := g.clampRow(int((y - radius) * g.invCellSize))
	maxRow := g.clampRow(int((y + radius) * g.invCellSize))

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			idx := row*g.cols + col
			g.cells[idx] = append(g.cells[idx], entry{entity: e, x: x, y: y})
		}
	}
}

// QueryRect visits every entity in cells overlapping the rectangle
// [x,x+w)x[y,y+h), exactly once per call, via the visit-generation counter.
func (g *Grid) QueryRect(x, y, w, h float64, visit func(ecs.Entity, float64, float64)) {
	g.visitGen++
	gen := g.visitGen

	minCol := g.clampCol(int(x * g.invCellSize))
	maxCol := g.clampCol(int((x + w) * g.invCellSize))
	minRow := g.clampRow(int(y * g.invCellSize))
	maxRow := g.clampRow(int((y + h) * g.invCellSize))

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			idx := row*g.cols + col
			for _, en := range g.cells[idx] {
				if g.visited[en.entity.Index] == gen {
					continue
				}
				g.visited[en.entity.Index] = gen
				visit(en.entity, en.x, en.y)
			}
		}
	}
}

// QueryRadius visits every entity in cells overlapping a bounding box around
// (cx, cy) of the given radius, deduplicated like QueryRect. Callers perform
// their own precise distance check (narrow phase).
func (g *Grid) QueryRadius(cx, cy, radius float64, visit func(ecs.Entity, float64, float64)) {
	g.QueryRect(cx-radius, cy-radius, radius*2, radius*2, visit)
}

// FindNearest returns the nearest entity passing filter within radius of
// (cx, cy), ties broken by entity index (spec §4.2).
func (g *Grid) FindNearest(cx, cy, radius float64, filter func(ecs.Entity) bool) (ecs.Entity, bool) {
	best := ecs.Null
	bestDist := math.MaxFloat64
	found := false

	g.QueryRadius(cx, cy, radius, func(e ecs.Entity, ex, ey float64) {
		if !filter(e) {
			return
		}
		dx, dy := ex-cx, ey-cy
		d := dx*dx + dy*dy
		if d > radius*radius {
			return
		}
		if !found || d < bestDist || (d == bestDist && e.Index < best.Index) {
			best = e
			bestDist = d
			found = true
		}
	})

	return best, found
}

// Dimensions returns the grid's column/row count and cell size.
func (g *Grid) Dimensions() (cols, rows int, cellSize float64) {
	return g.cols, g.rows, g.cellSize
}
