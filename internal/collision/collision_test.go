package collision

import (
	"testing"

	"fight-club/internal/ecs"
	"fight-club/internal/spatial"
)

func newTestSystem() (*System, *ecs.World, *spatial.Grid) {
	world := ecs.NewWorld()
	index := spatial.New(2048, 2048, spatial.DefaultCellSize)
	return NewSystem(world, index, nil), world, index
}

func addPhysical(world *ecs.World, x, y, radius float64) ecs.Entity {
	e, _ := world.Alloc()
	phys, _ := world.Physical.Add(e)
	phys.X, phys.Y, phys.Radius = x, y, radius
	return e
}

func TestRebuildIndexInsertsEveryPhysicalEntity(t *testing.T) {
	sys, world, index := newTestSystem()
	e := addPhysical(world, 10, 10, 5)

	sys.RebuildIndex()

	found := false
	index.QueryRadius(10, 10, 1, func(other ecs.Entity, ox, oy float64) {
		if other == e {
			found = true
		}
	})
	if !found {
		t.Fatalf("RebuildIndex must insert every Physical entity into the spatial index")
	}
}

// TestDetectPetalVsEnemyFiresOnlyForOpposingTeamOverlap verifies a petal
// only damages entities on the opposing team that it physically overlaps.
func TestDetectPetalVsEnemyFiresOnlyForOpposingTeamOverlap(t *testing.T) {
	sys, world, index := newTestSystem()

	petal := addPhysical(world, 0, 0, 10)
	world.Petal.Add(petal)
	petalRel, _ := world.Relations.Add(petal)
	petalRel.Team = ecs.TeamPlayers

	enemy := addPhysical(world, 5, 0, 10)
	world.Mob.Add(enemy)
	enemyRel, _ := world.Relations.Add(enemy)
	enemyRel.Team = ecs.TeamMobs

	ally := addPhysical(world, 5, 5, 10)
	world.Mob.Add(ally)
	allyRel, _ := world.Relations.Add(ally)
	allyRel.Team = ecs.TeamPlayers

	index.Insert(petal, 0, 0, 10)
	index.Insert(enemy, 5, 0, 10)
	index.Insert(ally, 5, 5, 10)

	var hits []ecs.Entity
	sys.DetectPetalVsEnemy(func(p, target ecs.Entity) {
		hits = append(hits, target)
	})

	if len(hits) != 1 || hits[0] != enemy {
		t.Fatalf("hits = %v, want exactly the opposing-team overlapping entity %v", hits, enemy)
	}
}

// TestDetectPetalVsEnemySkipsDetachedPetal verifies a detached petal never
// registers a hit, even while overlapping an enemy.
func TestDetectPetalVsEnemySkipsDetachedPetal(t *testing.T) {
	sys, world, index := newTestSystem()

	petal := addPhysical(world, 0, 0, 10)
	petalComp, _ := world.Petal.Add(petal)
	petalComp.Detached = true
	petalRel, _ := world.Relations.Add(petal)
	petalRel.Team = ecs.TeamPlayers

	enemy := addPhysical(world, 5, 0, 10)
	world.Mob.Add(enemy)
	enemyRel, _ := world.Relations.Add(enemy)
	enemyRel.Team = ecs.TeamMobs

	index.Insert(petal, 0, 0, 10)
	index.Insert(enemy, 5, 0, 10)

	hit := false
	sys.DetectPetalVsEnemy(func(p, target ecs.Entity) { hit = true })

	if hit {
		t.Fatalf("a detached petal must never register a contact hit")
	}
}

func TestDetectMobVsFlowerFiresOnOverlap(t *testing.T) {
	sys, world, index := newTestSystem()

	mob := addPhysical(world, 0, 0, 20)
	world.Mob.Add(mob)

	flower := addPhysical(world, 10, 0, 20)
	world.PlayerInfo.Add(flower)

	index.Insert(mob, 0, 0, 20)
	index.Insert(flower, 10, 0, 20)

	var hit ecs.Entity
	sys.DetectMobVsFlower(func(m, f ecs.Entity) { hit = f })

	if hit != flower {
		t.Fatalf("hit flower = %v, want %v", hit, flower)
	}
}

// TestResolveSameTeamPushSeparatesOverlappingAllies verifies two
// overlapping same-team entities are pushed apart symmetrically.
func TestResolveSameTeamPushSeparatesOverlappingAllies(t *testing.T) {
	sys, world, index := newTestSystem()

	a := addPhysical(world, 0, 0, 10)
	aRel, _ := world.Relations.Add(a)
	aRel.Team = ecs.TeamPlayers

	b := addPhysical(world, 5, 0, 10)
	bRel, _ := world.Relations.Add(b)
	bRel.Team = ecs.TeamPlayers

	index.Insert(a, 0, 0, 10)
	index.Insert(b, 5, 0, 10)

	aPhys := world.Physical.Get(a)
	bPhys := world.Physical.Get(b)

	sys.ResolveSameTeamPush()

	if aPhys.X >= 0 {
		t.Fatalf("a.X = %v, want pushed to a negative x", aPhys.X)
	}
	if bPhys.X <= 5 {
		t.Fatalf("b.X = %v, want pushed further positive", bPhys.X)
	}
}

// TestResolveSameTeamPushIgnoresOpposingTeams verifies overlapping entities
// on different teams are left untouched by the same-team push pass.
func TestResolveSameTeamPushIgnoresOpposingTeams(t *testing.T) {
	sys, world, index := newTestSystem()

	a := addPhysical(world, 0, 0, 10)
	aRel, _ := world.Relations.Add(a)
	aRel.Team = ecs.TeamPlayers

	b := addPhysical(world, 5, 0, 10)
	bRel, _ := world.Relations.Add(b)
	bRel.Team = ecs.TeamMobs

	index.Insert(a, 0, 0, 10)
	index.Insert(b, 5, 0, 10)

	aPhys := world.Physical.Get(a)
	bPhys := world.Physical.Get(b)

	sys.ResolveSameTeamPush()

	if aPhys.X != 0 || bPhys.X != 5 {
		t.Fatalf("opposing-team overlap must not be separated by ResolveSameTeamPush")
	}
}

func TestApplyWebSlowScalesVelocityByRarity(t *testing.T) {
	sys, world, index := newTestSystem()

	web, _ := world.Alloc()
	webPhys, _ := world.Physical.Add(web)
	webPhys.X, webPhys.Y = 0, 0
	webComp, _ := world.Web.Add(web)
	webComp.Radius = 50

	target := addPhysical(world, 10, 0, 5)
	targetPhys := world.Physical.Get(target)
	targetPhys.VX = 10

	index.Insert(web, 0, 0, 50)
	index.Insert(target, 10, 0, 5)

	sys.ApplyWebSlow(func(e ecs.Entity) ecs.Rarity { return ecs.RarityCommon + 1 })

	if targetPhys.VX >= 10 || targetPhys.VX <= 0 {
		t.Fatalf("VX = %v, want slowed into (0, 10) by the web factor", targetPhys.VX)
	}
}
