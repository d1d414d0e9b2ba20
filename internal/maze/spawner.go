package maze

import (
	"math/rand"

	"fight-club/internal/ecs"
	"fight-club/internal/spatial"
)

// BiomeTable supplies the balance-data lookups the spawner needs without
// coupling this package to internal/balance's concrete format.
type BiomeTable interface {
	// PickMobID chooses a mob species for a cell, honoring a zone override
	// name when non-empty.
	PickMobID(rng *rand.Rand, zoneOverride string) ecs.MobID
	// PickRarity rolls a rarity from a cumulative table seeded by difficulty.
	PickRarity(rng *rand.Rand, difficulty float64) ecs.Rarity
	// DifficultyWeight returns the spawn-budget weight a mob of this
	// id/rarity contributes once spawned.
	DifficultyWeight(id ecs.MobID, rarity ecs.Rarity) float64
	// SpawnBase returns the base spawn-pace constant for this biome.
	SpawnBase() float64
}

// Spawner runs the per-tick maze/mob-spawner pass described in spec §4.3.
type Spawner struct {
	grid  *Grid
	world *ecs.World
	index *spatial.Grid
	table BiomeTable
	rng   *rand.Rand

	// RejectRadius is the minimum clearance from any existing non-mob entity
	// required before a spawn attempt succeeds (broad-phase rejection).
	RejectRadius float64

	// OnSpawn, if set, runs once after a new mob entity is fully populated,
	// letting the caller wire up bookkeeping the spawner itself doesn't own
	// (e.g. the AI package's per-mob anchor point).
	OnSpawn func(ecs.Entity)
}

// NewSpawner wires a Spawner to its grid, world, spatial index, and balance
// table.
func NewSpawner(grid *Grid, world *ecs.World, index *spatial.Grid, table BiomeTable, rng *rand.Rand) *Spawner {
	return &Spawner{
		grid:         grid,
		world:        world,
		index:        index,
		table:        table,
		rng:          rng,
		RejectRadius: 48,
	}
}

// FlowerView is the minimal per-flower data the proximity pass needs; the
// caller collects live, non-bubbling flowers once per tick to avoid this
// package depending on the petal/player packages.
type FlowerView struct {
	X, Y  float64
	Level int
}

// Tick runs the full per-tick spawner pass (spec §4.3 steps 1-5).
func (s *Spawner) Tick(deltaTime float64, flowers []FlowerView, nonPlayerSpawnedMobUpdate func(func(e ecs.Entity, m *ecs.Mob, p *ecs.Physical))) {
	s.grid.ResetTickCounters()

	for _, f := range flowers {
		s.grid.MarkPlayerProximity(f.X, f.Y, f.Level)
	}

	s.despawnIdleMobs(nonPlayerSpawnedMobUpdate)
	s.spawnPass(deltaTime)
}

// despawnIdleMobs counts ticks_to_despawn up for non-player-spawned mobs
// whose cell has zero players, deleting with no-drop once it reaches
// MaxDespawnTicks; a mob in a cell with players has the counter reset to
// zero (spec §4.3 step 3).
func (s *Spawner) despawnIdleMobs(forEachMob func(func(e ecs.Entity, m *ecs.Mob, p *ecs.Physical))) {
	if forEachMob == nil {
		return
	}
	forEachMob(func(e ecs.Entity, m *ecs.Mob, p *ecs.Physical) {
		if m.PlayerSpawned {
			return
		}
		cell := s.grid.CellOf(p.X, p.Y)
		if cell == nil || cell.PlayerCount > 0 {
			m.TicksUntilDespawn = 0
			return
		}
		if m.TicksUntilDespawn < MaxDespawnTicks {
			m.TicksUntilDespawn++
		}
		if m.TicksUntilDespawn >= MaxDespawnTicks {
			m.NoDrop = true
			s.world.RequestDeletion(e)
		}
	})
}

// spawnPass walks 2x2 macro-cells and attempts pacing-gated spawns into each
// sub-cell (spec §4.3 step 4), updating overload as it goes (step 5).
func (s *Spawner) spawnPass(deltaTime float64) {
	n := s.grid.Dimension
	for macroRow := 0; macroRow < n; macroRow += 2 {
		for macroCol := 0; macroCol < n; macroCol += 2 {
			s.spawnMacroCell(macroCol, macroRow, deltaTime)
		}
	}
}

func (s *Spawner) spawnMacroCell(macroCol, macroRow int, deltaTime float64) {
	coords := [4][2]int{
		{macroCol, macroRow}, {macroCol + 1, macroRow},
		{macroCol, macroRow + 1}, {macroCol + 1, macroRow + 1},
	}

	totalPoints := 0.0
	totalPlayers := 0
	cells := make([]*Cell, 0, 4)
	for _, c := range coords {
		cell := s.grid.At(c[0], c[1])
		if cell == nil {
			continue
		}
		cells = append(cells, cell)
		totalPoints += cell.GridPoints
		if cell.PlayerCount > totalPlayers {
			totalPlayers = cell.PlayerCount
		}
	}
	if len(cells) == 0 {
		return
	}

	maxOverall := 0.0
	for _, cell := range cells {
		maxOverall += MaxOverallPoints(cell.PlayerCount, cell.Overload)
	}

	for _, cell := range cells {
		cell.UpdateOverload(deltaTime)
	}

	if totalPoints >= maxOverall {
		return
	}

	for _, cell := range cells {
		s.attemptSpawn(cell, deltaTime)
	}
}

func (s *Spawner) attemptSpawn(cell *Cell, deltaTime float64) {
	if !cell.Walkable {
		return
	}

	playerMod := 1.0 + float64(cell.PlayerCount)*0.15
	spawnAt := SpawnPaceThreshold(s.table.SpawnBase(), cell.BaseDifficulty, playerMod, cell)

	cell.SpawnTimer += deltaTime
	if cell.SpawnTimer < spawnAt {
		return
	}
	cell.SpawnTimer = 0

	mobID := s.table.PickMobID(s.rng, cell.ZoneSpawnFunc)
	difficulty := cell.BaseDifficulty + cell.LocalDifficulty
	rarity := s.table.PickRarity(s.rng, difficulty)

	x, y := s.cellCenter(cell)

	// Broad-phase rejection: too close to any existing non-mob entity.
	if _, found := s.index.FindNearest(x, y, s.RejectRadius, func(e ecs.Entity) bool {
		return !s.world.Mob.Has(e)
	}); found {
		return
	}

	entity, err := s.world.Alloc()
	if err != nil {
		return // spec §7: table exhausted -> drop the spawn
	}

	phys, _ := s.world.Physical.Add(entity)
	phys.X, phys.Y = x, y
	phys.Radius = 30

	mob, _ := s.world.Mob.Add(entity)
	mob.ID = mobID
	mob.Rarity = rarity

	rel, _ := s.world.Relations.Add(entity)
	rel.Team = ecs.TeamMobs

	s.world.Health.Add(entity)
	s.world.AI.Add(entity)

	cell.GridPoints += s.table.DifficultyWeight(mobID, rarity)

	if s.OnSpawn != nil {
		s.OnSpawn(entity)
	}
}

func (s *Spawner) cellCenter(cell *Cell) (float64, float64) {
	for i := range s.grid.Cells {
		if &s.grid.Cells[i] == cell {
			col := i % s.grid.Dimension
			row := i / s.grid.Dimension
			return float64(col)*s.grid.CellSize + s.grid.CellSize/2,
				float64(row)*s.grid.CellSize + s.grid.CellSize/2
		}
	}
	return 0, 0
}
