// Package maze implements the arena grid and mob spawner described in
// spec.md §4.3: an N×N grid of walkable cells driving collision queries,
// mob spawning pacing, difficulty scaling, and despawn logic. There is no
// direct teacher analogue (fight-club-go has no mob/arena concept), so the
// per-tick bookkeeping style (reused slices, in-place filtering, clamped
// accumulators) is grounded on internal/game/engine.go's tick() and
// updateParticles()-style patterns, generalized to the spec's formulas.
package maze

import "math"

// MaxPlayerProximity is the clamp on a cell's player-proximity counter.
const MaxPlayerProximity = 12

// MaxDespawnTicks is the despawn countdown cap: 30 seconds at 25 Hz.
const MaxDespawnTicks = 30 * 25

// FOVRadius is the range within which a live, non-bubbling flower marks
// nearby cells with player presence (spec §4.3 step 2).
const FOVRadius = 3072.0

// Cell is one grid cell's spawner bookkeeping.
type Cell struct {
	Walkable        bool
	WallBit8        bool // secondary wall flag (spec §4.6 wall-grid rule)
	BaseDifficulty  float64
	PlayerCount     int
	LocalDifficulty float64
	Overload        float64
	SpawnTimer      float64
	GridPoints      float64
	ZoneSpawnFunc   string // optional biome-specific override, resolved by name
}

// Grid is the N×N maze grid for one arena.
type Grid struct {
	Dimension int // N
	CellSize  float64
	Cells     []Cell // row-major, len == Dimension*Dimension
	BiomeID   int
}

// NewGrid allocates a walkable-by-default N×N grid.
func NewGrid(dimension int, cellSize float64, biomeID int) *Grid {
	g := &Grid{
		Dimension: dimension,
		CellSize:  cellSize,
		Cells:     make([]Cell, dimension*dimension),
		BiomeID:   biomeID,
	}
	for i := range g.Cells {
		g.Cells[i].Walkable = true
		g.Cells[i].BaseDifficulty = 1
	}
	return g
}

// At returns a pointer to the cell at grid coordinates (col, row), or nil if
// out of bounds.
func (g *Grid) At(col, row int) *Cell {
	if col < 0 || row < 0 || col >= g.Dimension || row >= g.Dimension {
		return nil
	}
	return &g.Cells[row*g.Dimension+col]
}

// CellOf returns the cell containing world position (x, y), or nil if out
// of bounds.
func (g *Grid) CellOf(x, y float64) *Cell {
	col := int(x / g.CellSize)
	row := int(y / g.CellSize)
	return g.At(col, row)
}

// ForEachInRadius invokes fn for every cell whose center lies within radius
// of (x, y), used by the per-tick player-proximity marking pass.
func (g *Grid) ForEachInRadius(x, y, radius float64, fn func(*Cell)) {
	cellsRadius := int(math.Ceil(radius / g.CellSize))
	centerCol := int(x / g.CellSize)
	centerRow := int(y / g.CellSize)

	for dr := -cellsRadius; dr <= cellsRadius; dr++ {
		for dc := -cellsRadius; dc <= cellsRadius; dc++ {
			cell := g.At(centerCol+dc, centerRow+dr)
			if cell == nil {
				continue
			}
			cx := float64(centerCol+dc)*g.CellSize + g.CellSize/2
			cy := float64(centerRow+dr)*g.CellSize + g.CellSize/2
			dx, dy := cx-x, cy-y
			if dx*dx+dy*dy <= radius*radius {
				fn(cell)
			}
		}
	}
}

// ResetTickCounters clears per-tick accumulators before the proximity pass
// re-marks them (spec §4.3 step 1).
func (g *Grid) ResetTickCounters() {
	for i := range g.Cells {
		g.Cells[i].PlayerCount = 0
		g.Cells[i].LocalDifficulty = 0
	}
}

// MarkPlayerProximity applies one flower's presence to cells in its FOV
// (spec §4.3 step 2): player_count += 1 (clamped), local_difficulty +=
// clamp((flowerLevel - (baseDifficulty-1)*2.1)/10, -1, 1).
func (g *Grid) MarkPlayerProximity(flowerX, flowerY float64, flowerLevel int) {
	g.ForEachInRadius(flowerX, flowerY, FOVRadius, func(c *Cell) {
		if c.PlayerCount < MaxPlayerProximity {
			c.PlayerCount++
		}
		delta := (float64(flowerLevel) - (c.BaseDifficulty-1)*2.1) / 10
		c.LocalDifficulty += clamp(delta, -1, 1)
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// UpdateOverload decays or grows a cell's overload factor toward the spec's
// bound [0, 1.5*local_difficulty] (spec §4.3 step 5).
func (c *Cell) UpdateOverload(deltaTime float64) {
	bound := 1.5 * c.LocalDifficulty
	if bound < 0 {
		bound = 0
	}

	if c.PlayerCount == 0 {
		c.Overload -= deltaTime * 0.1
	} else if c.LocalDifficulty > 0.3 {
		c.Overload += deltaTime * 0.05
	}

	if c.Overload < 0 {
		c.Overload = 0
	}
	if c.Overload > bound {
		c.Overload = bound
	}
}

// MaxOverallPoints computes a macro-cell's spawn budget (spec §4.3 step 4):
// max_points = 3*(0.2 + 1.2*player_count)*1.1^overload.
func MaxOverallPoints(playerCount int, overload float64) float64 {
	return 3 * (0.2 + 1.2*float64(playerCount)) * math.Pow(1.1, overload)
}

// SpawnPaceThreshold computes a cell's spawn_at threshold (spec §4.3 step 4):
// spawn_at = base * difficulty_mod * 1.2^(local_difficulty+overload) / player_mod.
func SpawnPaceThreshold(base, difficultyMod, playerMod float64, c *Cell) float64 {
	if playerMod <= 0 {
		playerMod = 1
	}
	return base * difficultyMod * math.Pow(1.2, c.LocalDifficulty+c.Overload) / playerMod
}
