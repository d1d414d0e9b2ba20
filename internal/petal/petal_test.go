package petal

import (
	"math"
	"math/rand"
	"testing"

	"fight-club/internal/balance"
	"fight-club/internal/combat"
	"fight-club/internal/ecs"
)

func newTestSystem(t *testing.T) (*System, *ecs.World, *balance.Tables) {
	t.Helper()
	tables, err := balance.Load()
	if err != nil {
		t.Fatalf("balance.Load: %v", err)
	}
	world := ecs.NewWorld()
	combatSys := combat.NewSystem(world, nil)
	rng := rand.New(rand.NewSource(1))
	return NewSystem(world, tables, combatSys, rng), world, tables
}

// TestGravelKnocksBackNearbyEnemyAndResetsCooldown covers spec's petal-slot
// cooldown reset testable property: an expired ability cooldown fires
// exactly once and is reloaded from the balance table, not left at zero.
func TestGravelKnocksBackNearbyEnemyAndResetsCooldown(t *testing.T) {
	sys, world, tables := newTestSystem(t)

	owner, _ := world.Alloc()
	ownerPhys, _ := world.Physical.Add(owner)
	ownerPhys.X, ownerPhys.Y = 0, 0
	ownerRel, _ := world.Relations.Add(owner)
	ownerRel.Team = ecs.TeamPlayers
	info, _ := world.PlayerInfo.Add(owner)

	petalEntity, _ := world.Alloc()
	world.Physical.Add(petalEntity)
	petalRel, _ := world.Relations.Add(petalEntity)
	petalRel.Team = ecs.TeamPlayers
	petalComp, _ := world.Petal.Add(petalEntity)
	petalComp.ID = 8 // gravel
	petalComp.Slot = 0

	info.Slots[0].ID = 8
	info.Slots[0].Petals = []ecs.Entity{petalEntity}
	info.Slots[0].CooldownTicks = 0

	deltaTime := 1.0 / 30.0
	// The orbit pass runs before the effect pass within the same Tick call,
	// so the petal's position by the time effectGravel reads it is already
	// at its first orbit step (idle radius, since no attack/defend input bit
	// is set), not still at the owner's position. The enemy sits a few units
	// past that point: at zero distance there is no direction to push along.
	orbitX := ownerPhys.X + math.Cos(deltaTime)*idleOrbitRadius
	orbitY := ownerPhys.Y + math.Sin(deltaTime)*idleOrbitRadius

	enemy, _ := world.Alloc()
	enemyPhys, _ := world.Physical.Add(enemy)
	enemyPhys.X, enemyPhys.Y = orbitX+5, orbitY
	enemyPhys.KnockbackScale = 1
	enemyRel, _ := world.Relations.Add(enemy)
	enemyRel.Team = ecs.TeamMobs

	sys.Tick(deltaTime, 1)

	if enemyPhys.VX == 0 && enemyPhys.VY == 0 {
		t.Fatalf("expected gravel to impart outward velocity on the enemy, got zero")
	}

	stats := tables.Petals[8]
	if info.Slots[0].CooldownTicks != stats.CooldownTicks {
		t.Fatalf("cooldown not reset after firing: got %d, want %d", info.Slots[0].CooldownTicks, stats.CooldownTicks)
	}
}

// TestAbilityPetalDoesNothingWhileOnCooldown ensures a non-expired cooldown
// suppresses the ability entirely rather than firing every tick.
func TestAbilityPetalDoesNothingWhileOnCooldown(t *testing.T) {
	sys, world, _ := newTestSystem(t)

	owner, _ := world.Alloc()
	ownerPhys, _ := world.Physical.Add(owner)
	ownerRel, _ := world.Relations.Add(owner)
	ownerRel.Team = ecs.TeamPlayers
	info, _ := world.PlayerInfo.Add(owner)
	_ = ownerPhys

	petalEntity, _ := world.Alloc()
	world.Physical.Add(petalEntity)
	petalRel, _ := world.Relations.Add(petalEntity)
	petalRel.Team = ecs.TeamPlayers
	petalComp, _ := world.Petal.Add(petalEntity)
	petalComp.ID = 6 // nest
	petalComp.Slot = 0

	info.Slots[0].ID = 6
	info.Slots[0].Petals = []ecs.Entity{petalEntity}
	info.Slots[0].CooldownTicks = 50

	before := world.Table.LiveCount()
	sys.Tick(1.0/30, 1)
	after := world.Table.LiveCount()

	if after != before {
		t.Fatalf("nest must not spawn while its cooldown is still counting down: live count %d -> %d", before, after)
	}
	if info.Slots[0].CooldownTicks != 49 {
		t.Fatalf("cooldown must still count down by one even while above zero: got %d, want 49", info.Slots[0].CooldownTicks)
	}
}

// TestNestSpawnsFriendlyMobAndResetsCooldown exercises the active-ability
// dispatch path end to end.
func TestNestSpawnsFriendlyMobAndResetsCooldown(t *testing.T) {
	sys, world, tables := newTestSystem(t)

	owner, _ := world.Alloc()
	ownerPhys, _ := world.Physical.Add(owner)
	ownerPhys.X, ownerPhys.Y = 100, 100
	ownerRel, _ := world.Relations.Add(owner)
	ownerRel.Team = ecs.TeamPlayers
	info, _ := world.PlayerInfo.Add(owner)

	petalEntity, _ := world.Alloc()
	world.Physical.Add(petalEntity)
	petalRel, _ := world.Relations.Add(petalEntity)
	petalRel.Team = ecs.TeamPlayers
	petalComp, _ := world.Petal.Add(petalEntity)
	petalComp.ID = 6 // nest
	petalComp.Slot = 0

	info.Slots[0].ID = 6
	info.Slots[0].Petals = []ecs.Entity{petalEntity}
	info.Slots[0].CooldownTicks = 0

	mobsBefore := world.Mob.Len()
	sys.Tick(1.0/30, 1)
	mobsBefore2 := world.Mob.Len()

	if mobsBefore2 != mobsBefore+1 {
		t.Fatalf("nest must spawn exactly one mob when its cooldown expires: %d -> %d", mobsBefore, mobsBefore2)
	}

	var spawned *ecs.Mob
	world.Mob.ForEach(func(e ecs.Entity, m *ecs.Mob) { spawned = m })
	if spawned == nil || !spawned.PlayerSpawned || !spawned.NoDrop {
		t.Fatalf("nest-spawned mob must be marked PlayerSpawned and NoDrop, got %+v", spawned)
	}

	stats := tables.Petals[6]
	if info.Slots[0].CooldownTicks != stats.CooldownTicks {
		t.Fatalf("cooldown not reset after spawning: got %d, want %d", info.Slots[0].CooldownTicks, stats.CooldownTicks)
	}
}
