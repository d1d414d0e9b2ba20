package combat

import (
	"testing"

	"fight-club/internal/ecs"
)

// TestApplyDamageCreditsAttackerSquadSlot covers spec's per-squad
// damage-sum invariant: total SquadDamage across all slots must equal the
// total (post-reduction) damage actually applied to the target.
func TestApplyDamageCreditsAttackerSquadSlot(t *testing.T) {
	world := ecs.NewWorld()
	sys := NewSystem(world, nil)

	attackerOwner, _ := world.Alloc()
	ownerInfo, _ := world.PlayerInfo.Add(attackerOwner)
	ownerInfo.SquadPosition = 2

	attacker, _ := world.Alloc()
	attackerRel, _ := world.Relations.Add(attacker)
	attackerRel.Owner = attackerOwner

	mob, _ := world.Alloc()
	world.Mob.Add(mob)
	health, _ := world.Health.Add(mob)
	health.HP, health.MaxHP = 100, 100

	sys.ApplyDamage(attacker, mob, 30, 1)

	if health.HP != 70 {
		t.Fatalf("HP = %v, want 70", health.HP)
	}
	var total float64
	for _, d := range health.SquadDamage {
		total += d
	}
	if total != 30 {
		t.Fatalf("SquadDamage total = %v, want 30", total)
	}
	if health.SquadDamage[2] != 30 {
		t.Fatalf("SquadDamage[2] = %v, want 30 (squad slot 2 dealt the damage)", health.SquadDamage[2])
	}
}

// TestApplyDamageAppliesFlatThenPercentReduction mirrors the teacher's
// TakeDamage flat-then-percent order.
func TestApplyDamageAppliesFlatThenPercentReduction(t *testing.T) {
	world := ecs.NewWorld()
	sys := NewSystem(world, nil)

	target, _ := world.Alloc()
	health, _ := world.Health.Add(target)
	health.HP, health.MaxHP = 100, 100
	health.DamageReduction = 5
	health.DamageReductionPct = 0.5

	attacker, _ := world.Alloc()

	sys.ApplyDamage(attacker, target, 25, 1)

	// (25 - 5) * (1 - 0.5) = 10
	if health.HP != 90 {
		t.Fatalf("HP = %v, want 90 after flat-then-percent reduction", health.HP)
	}
}

// TestDeathBelowZeroHPRequestsDeletionForNonFlowerMob verifies a mob dying
// is marked for deletion rather than left alive at non-positive HP.
func TestDeathBelowZeroHPRequestsDeletionForNonFlowerMob(t *testing.T) {
	world := ecs.NewWorld()
	sys := NewSystem(world, nil)

	mob, _ := world.Alloc()
	mobComp, _ := world.Mob.Add(mob)
	mobComp.NoDrop = true
	health, _ := world.Health.Add(mob)
	health.HP, health.MaxHP = 10, 10

	attacker, _ := world.Alloc()
	sys.ApplyDamage(attacker, mob, 50, 1)

	if world.Alive(mob) {
		t.Fatalf("mob must be marked for deletion once HP drops to or below zero")
	}
}

// TestDeathMarksFlowerDeadInsteadOfDeleting verifies a player's flower is
// marked Dead rather than deleted outright, so the session layer can run
// its respawn/grace-window flow.
func TestDeathMarksFlowerDeadInsteadOfDeleting(t *testing.T) {
	world := ecs.NewWorld()
	sys := NewSystem(world, nil)

	flowerEntity, _ := world.Alloc()
	flower, _ := world.Flower.Add(flowerEntity)
	health, _ := world.Health.Add(flowerEntity)
	health.HP, health.MaxHP = 10, 10

	attacker, _ := world.Alloc()
	sys.ApplyDamage(attacker, flowerEntity, 50, 1)

	if !flower.Dead {
		t.Fatalf("flower must be marked Dead on lethal damage")
	}
	if !world.Alive(flowerEntity) {
		t.Fatalf("flower entity must not be deleted, only marked Dead")
	}
}
