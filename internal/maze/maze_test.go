package maze

import (
	"math/rand"
	"testing"

	"fight-club/internal/ecs"
	"fight-club/internal/spatial"
)

func TestAtReturnsNilOutOfBounds(t *testing.T) {
	g := NewGrid(4, 256, 0)
	if g.At(-1, 0) != nil {
		t.Fatalf("At(-1, 0) must be nil")
	}
	if g.At(4, 0) != nil {
		t.Fatalf("At(4, 0) must be nil, dimension is 4")
	}
	if g.At(0, 0) == nil {
		t.Fatalf("At(0, 0) must be a live cell")
	}
}

func TestCellOfMapsWorldCoordinatesToGridCell(t *testing.T) {
	g := NewGrid(4, 256, 0)
	cell := g.CellOf(300, 10)
	if cell == nil {
		t.Fatalf("CellOf(300, 10) must resolve to a live cell")
	}
	if cell != g.At(1, 0) {
		t.Fatalf("CellOf(300, 10) must resolve to column 1, row 0")
	}
}

// TestMarkPlayerProximityClampsPlayerCount covers spec §4.3 step 2's
// MaxPlayerProximity clamp: repeated marking from the same cell's radius
// must not push player_count past the cap.
func TestMarkPlayerProximityClampsPlayerCount(t *testing.T) {
	g := NewGrid(4, 256, 0)
	for i := 0; i < MaxPlayerProximity+10; i++ {
		g.MarkPlayerProximity(128, 128, 1)
	}
	cell := g.At(0, 0)
	if cell.PlayerCount != MaxPlayerProximity {
		t.Fatalf("PlayerCount = %d, want clamped to %d", cell.PlayerCount, MaxPlayerProximity)
	}
}

// TestResetTickCountersClearsPerTickAccumulators verifies step 1 zeroes
// PlayerCount/LocalDifficulty without touching standing state like
// BaseDifficulty or Overload.
func TestResetTickCountersClearsPerTickAccumulators(t *testing.T) {
	g := NewGrid(4, 256, 0)
	g.MarkPlayerProximity(128, 128, 1)
	cell := g.At(0, 0)
	cell.Overload = 0.5

	g.ResetTickCounters()

	if cell.PlayerCount != 0 {
		t.Fatalf("PlayerCount = %d, want 0 after reset", cell.PlayerCount)
	}
	if cell.LocalDifficulty != 0 {
		t.Fatalf("LocalDifficulty = %v, want 0 after reset", cell.LocalDifficulty)
	}
	if cell.Overload != 0.5 {
		t.Fatalf("Overload = %v, reset must not touch overload", cell.Overload)
	}
}

// TestUpdateOverloadDecaysWithNoPlayers verifies a cell with zero players
// decays its overload toward 0 rather than climbing.
func TestUpdateOverloadDecaysWithNoPlayers(t *testing.T) {
	c := &Cell{PlayerCount: 0, LocalDifficulty: 1, Overload: 0.2}
	c.UpdateOverload(1.0)
	if c.Overload >= 0.2 {
		t.Fatalf("Overload = %v, want decayed below 0.2 with no players present", c.Overload)
	}
	if c.Overload < 0 {
		t.Fatalf("Overload must clamp at 0, got %v", c.Overload)
	}
}

func TestMaxOverallPointsScalesWithPlayerCountAndOverload(t *testing.T) {
	low := MaxOverallPoints(0, 0)
	high := MaxOverallPoints(3, 2)
	if high <= low {
		t.Fatalf("MaxOverallPoints must grow with player count and overload: low=%v high=%v", low, high)
	}
}

// fakeTable is a minimal BiomeTable stub for spawner tests.
type fakeTable struct {
	mobID ecs.MobID
}

func (f fakeTable) PickMobID(rng *rand.Rand, zoneOverride string) ecs.MobID { return f.mobID }
func (f fakeTable) PickRarity(rng *rand.Rand, difficulty float64) ecs.Rarity {
	return ecs.RarityCommon
}
func (f fakeTable) DifficultyWeight(id ecs.MobID, rarity ecs.Rarity) float64 { return 1 }
func (f fakeTable) SpawnBase() float64                                      { return 1 }

// TestAttemptSpawnRejectsWhenTooCloseToExistingEntity covers the spawner's
// broad-phase rejection radius.
func TestAttemptSpawnRejectsWhenTooCloseToExistingEntity(t *testing.T) {
	grid := NewGrid(4, 256, 0)
	world := ecs.NewWorld()
	index := spatial.New(1024, 1024, spatial.DefaultCellSize)
	sp := NewSpawner(grid, world, index, fakeTable{mobID: 1}, rand.New(rand.NewSource(1)))

	cell := grid.At(0, 0)
	x, y := sp.cellCenter(cell)
	blocker, _ := world.Alloc()
	world.Physical.Add(blocker)
	index.Insert(blocker, x, y, 10)

	before := countMobs(world)
	sp.attemptSpawn(cell, 1000)
	after := countMobs(world)

	if after != before {
		t.Fatalf("attemptSpawn must reject a spawn too close to an existing entity, mob count changed from %d to %d", before, after)
	}
}

// TestAttemptSpawnSucceedsWhenClearAndPacingElapsed verifies a spawn lands
// once the pacing timer clears spawnAt and no entity blocks the cell.
func TestAttemptSpawnSucceedsWhenClearAndPacingElapsed(t *testing.T) {
	grid := NewGrid(4, 256, 0)
	world := ecs.NewWorld()
	index := spatial.New(1024, 1024, spatial.DefaultCellSize)
	sp := NewSpawner(grid, world, index, fakeTable{mobID: 3}, rand.New(rand.NewSource(1)))

	cell := grid.At(0, 0)
	sp.attemptSpawn(cell, 1000)

	if countMobs(world) != 1 {
		t.Fatalf("expected exactly 1 mob spawned, got %d", countMobs(world))
	}
	if cell.GridPoints == 0 {
		t.Fatalf("GridPoints must be credited after a successful spawn")
	}
}

// TestDespawnIdleMobsDeletesOnceDespawnTimerElapses covers step 3: a
// non-player-spawned mob whose cell stays empty of players accumulates
// ticks_to_despawn and is deleted with NoDrop once the cap is hit.
func TestDespawnIdleMobsDeletesOnceDespawnTimerElapses(t *testing.T) {
	grid := NewGrid(4, 256, 0)
	world := ecs.NewWorld()
	index := spatial.New(1024, 1024, spatial.DefaultCellSize)
	sp := NewSpawner(grid, world, index, fakeTable{mobID: 1}, rand.New(rand.NewSource(1)))

	mob, _ := world.Alloc()
	phys, _ := world.Physical.Add(mob)
	phys.X, phys.Y = 10, 10
	mobComp, _ := world.Mob.Add(mob)
	mobComp.TicksUntilDespawn = MaxDespawnTicks - 1

	forEach := func(fn func(e ecs.Entity, m *ecs.Mob, p *ecs.Physical)) {
		world.Mob.ForEach(func(e ecs.Entity, m *ecs.Mob) {
			fn(e, m, world.Physical.Get(e))
		})
	}

	sp.despawnIdleMobs(forEach)

	if world.Alive(mob) {
		t.Fatalf("mob must be deleted once ticks_to_despawn reaches the cap")
	}
	if !mobComp.NoDrop {
		t.Fatalf("mob must be marked NoDrop on idle despawn")
	}
}

// TestDespawnIdleMobsResetsTimerWhenPlayersPresent verifies a mob in a cell
// with players present never accumulates despawn ticks.
func TestDespawnIdleMobsResetsTimerWhenPlayersPresent(t *testing.T) {
	grid := NewGrid(4, 256, 0)
	world := ecs.NewWorld()
	index := spatial.New(1024, 1024, spatial.DefaultCellSize)
	sp := NewSpawner(grid, world, index, fakeTable{mobID: 1}, rand.New(rand.NewSource(1)))

	mob, _ := world.Alloc()
	phys, _ := world.Physical.Add(mob)
	phys.X, phys.Y = 10, 10
	mobComp, _ := world.Mob.Add(mob)
	mobComp.TicksUntilDespawn = 50

	grid.At(0, 0).PlayerCount = 1

	forEach := func(fn func(e ecs.Entity, m *ecs.Mob, p *ecs.Physical)) {
		world.Mob.ForEach(func(e ecs.Entity, m *ecs.Mob) {
			fn(e, m, world.Physical.Get(e))
		})
	}
	sp.despawnIdleMobs(forEach)

	if mobComp.TicksUntilDespawn != 0 {
		t.Fatalf("TicksUntilDespawn = %d, want reset to 0 while players are present", mobComp.TicksUntilDespawn)
	}
}

func countMobs(world *ecs.World) int {
	count := 0
	world.Mob.ForEach(func(e ecs.Entity, m *ecs.Mob) { count++ })
	return count
}
