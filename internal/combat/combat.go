// Package combat implements damage application, armor/reduction, per-squad
// damage crediting, and the death/drop flow of spec.md §4.7. The tick-based
// timer bookkeeping style (decrement-then-branch, deterministic for replay)
// is grounded on internal/game/combat.go's CombatState.UpdateTimers; the
// damage-reduction math generalizes TakeDamage's flat-then-percent order
// from internal/game/player.go to the spec's squad-slotted Health.SquadDamage
// accumulator.
package combat

import (
	"fight-club/internal/ecs"
)

// MinShareForLoot is the fraction of a mob's total damage dealt that a squad
// must have contributed to be eligible for its loot drop (spec §4.7).
const MinShareForLoot = 0.20

// DropFunc is invoked once per squad slot meeting the loot-share threshold
// when a mob dies, so the caller (maze/spawner or session) can spawn its
// ground-item drop.
type DropFunc func(mob ecs.Entity, squadSlot int, mobID ecs.MobID, rarity ecs.Rarity)

// System applies damage and resolves deaths.
type System struct {
	world *ecs.World
	onDrop DropFunc
}

// NewSystem wires a combat.System to the world and its drop callback.
func NewSystem(world *ecs.World, onDrop DropFunc) *System {
	return &System{world: world, onDrop: onDrop}
}

// ApplyDamage subtracts amount from target's Health after flat-then-percent
// reduction, crediting attacker's squad slot if target is a Mob (spec's
// per-squad damage-sum invariant). currentTick stamps LastDamagedTick for
// regen-suppression elsewhere in the tick pipeline.
func (s *System) ApplyDamage(attacker, target ecs.Entity, amount float64, currentTick uint64) {
	health := s.world.Health.Get(target)
	if health == nil || amount <= 0 {
		return
	}

	reduced := amount - health.DamageReduction
	if reduced < 0 {
		reduced = 0
	}
	reduced *= (1 - health.DamageReductionPct)
	if reduced <= 0 {
		return
	}

	health.HP -= reduced
	health.LastDamagedTick = currentTick

	if mob := s.world.Mob.Get(target); mob != nil {
		if slot := s.squadSlotOf(attacker); slot >= 0 && slot < len(health.SquadDamage) {
			health.SquadDamage[slot] += reduced
		}
	}

	if health.HP <= 0 {
		s.resolveDeath(target, health)
	}
}

// squadSlotOf resolves an attacking entity back to its root owner's squad
// position, or -1 if it has none (e.g. a mob attacking another mob).
func (s *System) squadSlotOf(attacker ecs.Entity) int {
	root := s.world.ResolveRootOwner(attacker)
	if root.IsNull() {
		return -1
	}
	info := s.world.PlayerInfo.Get(root)
	if info == nil {
		return -1
	}
	return info.SquadPosition
}

// resolveDeath runs the death/drop flow: a mob with no-drop unset splits its
// loot across every squad slot meeting MinShareForLoot; a flower (player
// avatar) is marked dead rather than deleted outright so the session layer
// can run its respawn/grace-window flow (spec §4.7, §6).
func (s *System) resolveDeath(e ecs.Entity, health *ecs.Health) {
	if mob := s.world.Mob.Get(e); mob != nil {
		if !mob.NoDrop {
			s.publishLootShares(e, mob, health)
		}
		s.world.RequestDeletion(e)
		return
	}

	if flower := s.world.Flower.Get(e); flower != nil {
		flower.Dead = true
		health.HP = 0
		return
	}

	s.world.RequestDeletion(e)
}

func (s *System) publishLootShares(mobEntity ecs.Entity, mob *ecs.Mob, health *ecs.Health) {
	total := 0.0
	for _, d := range health.SquadDamage {
		total += d
	}
	if total <= 0 || s.onDrop == nil {
		return
	}
	for slot, dealt := range health.SquadDamage {
		if dealt/total >= MinShareForLoot {
			s.onDrop(mobEntity, slot, mob.ID, mob.Rarity)
		}
	}
}

// ApplyRegen heals every Flower entity by its owner's HealOverTime modifier,
// the passive azalea/mint regen pass (spec §4.5 step 1, §4.7).
func (s *System) ApplyRegen(deltaTime float64) {
	s.world.PlayerInfo.ForEach(func(e ecs.Entity, info *ecs.PlayerInfo) {
		health := s.world.Health.Get(e)
		if health == nil || info.Modifiers.HealOverTime <= 0 {
			return
		}
		health.HP += info.Modifiers.HealOverTime * health.MaxHP * deltaTime
		if health.HP > health.MaxHP {
			health.HP = health.MaxHP
		}
	})
}
