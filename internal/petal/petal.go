// Package petal implements per-tick petal behavior (spec §4.5): slot
// rotation, reload/cooldown countdown, and the id-specific effect passes
// (shell block, peas projectile, azalea heal, web slow-field, meat
// aggro-draw, nest spawn, seed bind, gravel knockback, mint cleanse,
// bubble float, egg hatch, fireball/meteor area damage, uranium decay
// damage). The id -> behavior-function registry is grounded on
// internal/game/weapons.go's id-keyed Weapons map and GetWeapon lookup,
// generalized from static stat lookup to a dispatched per-tick effect.
//
// Petals with a pure standing stat bonus (mint's heal-over-time, bubble's
// FOV boost) are folded into recomputeModifiers and have no-op entries
// here. Shell and azalea also contribute a standing modifier; shell, peas,
// and azalea are, per spec §4.5 step 4, additionally active abilities:
// shell aim-locks and launches itself on attack, peas spawns three
// projectile siblings on attack, and azalea continuously seeks out and heals
// the nearest damaged ally. The remaining active-ability petals (web, meat,
// nest, seed, gravel, egg, fireball, uranium) run their ability once their
// slot's CooldownTicks reaches zero, then reset it from the balance table
// (egg instead deletes itself when it hatches), matching
// PetalStats.CooldownTicks as the single source of timing for every
// cooldown-gated ability petal.
package petal

import (
	"math"
	"math/rand"

	"fight-club/internal/balance"
	"fight-club/internal/combat"
	"fight-club/internal/ecs"
)

// Context bundles the per-tick dependencies an effect function needs.
type Context struct {
	World     *ecs.World
	Tables    *balance.Tables
	Combat    *combat.System
	RNG       *rand.Rand
	Owner     ecs.Entity // the PlayerInfo entity this petal is slotted to
	Self      ecs.Entity // the live petal entity
	Slot      *ecs.Slot
	DeltaTime float64
	TickCount uint64
}

// EffectFunc runs one petal id's per-tick behavior pass.
type EffectFunc func(ctx Context)

// registry maps petal id to its effect function. Populated top-to-bottom
// like the source's Weapons map.
var registry = map[ecs.PetalID]EffectFunc{
	0:  effectBasic,
	1:  effectShell,
	2:  effectPeas,
	3:  effectAzalea,
	4:  effectWeb,
	5:  effectMeat,
	6:  effectNest,
	7:  effectSeed,
	8:  effectGravel,
	9:  effectMint,
	10: effectBubble,
	11: effectEgg,
	12: effectFireball,
	13: effectUranium,
}

// System runs the full per-tick petal pass (spec §4.5 steps 1-4): recompute
// aggregate modifiers, rotate slots, count down cooldowns, then dispatch
// each live petal's effect function.
type System struct {
	world  *ecs.World
	tables *balance.Tables
	combat *combat.System
	rng    *rand.Rand
}

// NewSystem wires a petal.System to the world, its balance tables, the
// combat system (ability petals that deal area damage credit squads the
// same way contact damage does), and the rng used for the nest and egg
// spawn rolls.
func NewSystem(world *ecs.World, tables *balance.Tables, combatSys *combat.System, rng *rand.Rand) *System {
	return &System{world: world, tables: tables, combat: combatSys, rng: rng}
}

// Tick advances every player's equipped petals by one tick.
func (s *System) Tick(deltaTime float64, tickCount uint64) {
	s.world.PlayerInfo.ForEach(func(owner ecs.Entity, info *ecs.PlayerInfo) {
		s.recomputeModifiers(info)
		s.rotateSlots(owner, info, deltaTime)

		for i := range info.Slots {
			slot := &info.Slots[i]
			if slot.CooldownTicks > 0 {
				slot.CooldownTicks--
			}
			for _, petalEntity := range slot.Petals {
				petal := s.world.Petal.Get(petalEntity)
				if petal == nil {
					continue
				}
				fn, ok := registry[petal.ID]
				if !ok {
					continue
				}
				fn(Context{
					World:     s.world,
					Tables:    s.tables,
					Combat:    s.combat,
					RNG:       s.rng,
					Owner:     owner,
					Self:      petalEntity,
					Slot:      slot,
					DeltaTime: deltaTime,
					TickCount: tickCount,
				})
			}
		}
	})

	s.despawnOrphanPetals()
}

// despawnOrphanPetals counts down DespawnTicks on petal entities with no
// owning slot (Slot < 0), e.g. peas' spawned siblings, deleting each once
// its timer reaches zero. Slot-bound petals manage their own lifecycle
// through their effect function instead (e.g. egg's hatch-and-delete).
func (s *System) despawnOrphanPetals() {
	s.world.Petal.ForEach(func(e ecs.Entity, p *ecs.Petal) {
		if p.Slot >= 0 || p.DespawnTicks <= 0 {
			return
		}
		p.DespawnTicks--
		if p.DespawnTicks == 0 {
			s.world.RequestDeletion(e)
		}
	})
}

// recomputeModifiers folds every equipped petal's rarity and id into the
// owner's aggregate stat bonuses (spec §4.5 step 1).
func (s *System) recomputeModifiers(info *ecs.PlayerInfo) {
	mods := ecs.Modifiers{FOVMinimum: 2048, ReloadSpeed: 1, RotationRate: 1, PickupRadius: 60, PetalExtension: 80}

	for i := range info.Slots {
		slot := &info.Slots[i]
		if len(slot.Petals) == 0 {
			continue
		}
		stats, ok := s.tables.Petals[slot.ID]
		if !ok {
			continue
		}
		scale := stats.RarityScale * s.tables.RarityMultiplier[slot.Rarity]

		switch slot.ID {
		case 9: // mint
			mods.HealOverTime += 0.02 * scale
		case 3: // azalea
			mods.HealOverTime += 0.05 * scale
		case 10: // bubble
			mods.FOVMinimum += 200 * scale
		case 1: // shell
			mods.DamageReductionRatio += 0.01 * scale
		}
	}

	info.Modifiers = mods
}

// rotateSlots advances each slot's petals around the owner in a fixed
// circular orbit, the spec's "petals rotate around the flower" visual rule.
func (s *System) rotateSlots(owner ecs.Entity, info *ecs.PlayerInfo, deltaTime float64) {
	info.RotationCounter += deltaTime * info.Modifiers.RotationRate
	if info.RotationCounter > 2*math.Pi {
		info.RotationCounter -= 2 * math.Pi
	}

	ownerPhys := s.world.Physical.Get(owner)
	if ownerPhys == nil {
		return
	}

	active := 0
	for i := range info.Slots {
		active += len(info.Slots[i].Petals)
	}
	if active == 0 {
		return
	}

	// Radius selects between defend/idle/attack off the owner's input
	// bitmask (spec §4.5 step 3); idle is the default when neither bit is
	// set.
	radius := idleOrbitRadius
	switch {
	case info.InputBitmask&ecs.InputDefend != 0:
		radius = defendOrbitRadius
	case info.InputBitmask&ecs.InputAttack != 0:
		radius = attackOrbitRadius + info.Modifiers.PetalExtension
	}

	idx := 0
	for i := range info.Slots {
		for _, petalEntity := range info.Slots[i].Petals {
			petal := s.world.Petal.Get(petalEntity)
			petalPhys := s.world.Physical.Get(petalEntity)
			if petal == nil || petalPhys == nil || petal.Detached {
				idx++
				continue
			}
			angle := info.RotationCounter + float64(idx)*(2*math.Pi/float64(active))*petal.SpinDir
			petalPhys.X = ownerPhys.X + math.Cos(angle)*radius
			petalPhys.Y = ownerPhys.Y + math.Sin(angle)*radius

			// Facing rotates independently of orbital position. No petal in
			// this port sets a no_rotation flag, so this always advances.
			petalPhys.Angle += facingSpinRate
			if petalPhys.Angle > 2*math.Pi {
				petalPhys.Angle -= 2 * math.Pi
			}
			idx++
		}
	}
}

// Orbit radii and facing-spin rate for rotateSlots (spec §4.5 step 3).
const (
	defendOrbitRadius = 20.0
	idleOrbitRadius   = 50.0
	attackOrbitRadius = 125.0
	facingSpinRate    = 0.04
)

// effectBasic is the plain contact-damage petal: collision.DetectPetalVsEnemy
// already applies its balance-table damage on overlap, nothing further to do
// per tick.
func effectBasic(ctx Context) {}

// Shell aim-lock-and-launch tuning (spec §4.5 "shell").
const (
	shellAimRange     = 750.0
	shellAimHalfAngle = 1.0 // ±1 rad cone
	shellLaunchSpeed  = 15.0
	shellLaunchTicks  = 75
)

// effectShell fires on attack: it aim-locks the nearest enemy within range
// and cone of the owner's facing, detaches from orbit, and launches itself
// at a constant velocity for a fixed duration before rejoining orbit (spec
// §4.5 "shell"). Its standing damage-reduction contribution is unrelated
// and still handled by recomputeModifiers.
func effectShell(ctx Context) {
	petal := ctx.World.Petal.Get(ctx.Self)
	selfPhys := ctx.World.Physical.Get(ctx.Self)
	if petal == nil || selfPhys == nil {
		return
	}

	if petal.Detached {
		if petal.EffectDelay > 0 {
			petal.EffectDelay--
			return
		}
		petal.Detached = false
		selfPhys.VX, selfPhys.VY = 0, 0
		selfPhys.Friction = 0
		return
	}

	ownerInfo := ctx.World.PlayerInfo.Get(ctx.Owner)
	ownerPhys := ctx.World.Physical.Get(ctx.Owner)
	if ownerInfo == nil || ownerPhys == nil || ownerInfo.InputBitmask&ecs.InputAttack == 0 {
		return
	}

	target := nearestEnemyInCone(ctx, selfPhys, ownerPhys.Angle, shellAimRange, shellAimHalfAngle)
	if target.IsNull() {
		return
	}
	targetPhys := ctx.World.Physical.Get(target)
	if targetPhys == nil {
		return
	}
	dx, dy := targetPhys.X-selfPhys.X, targetPhys.Y-selfPhys.Y
	dist := math.Hypot(dx, dy)
	if dist < 0.001 {
		return
	}

	petal.Detached = true
	petal.EffectDelay = shellLaunchTicks
	selfPhys.Friction = 1 // constant-velocity launch, no drag
	selfPhys.VX = (dx / dist) * shellLaunchSpeed
	selfPhys.VY = (dy / dist) * shellLaunchSpeed
}

// Peas sibling-spawn tuning (spec §4.5 "peas").
const (
	peasSiblingCount     = 3
	peasInitialVelocity  = 50.0
	peasSiblingLifetimeTicks = 25
)

// effectPeas fires on attack: once off cooldown it spawns 3 sibling petal
// entities at even angles, each carrying the same id/rarity so they deal
// the usual contact damage through the collision package's petal-vs-enemy
// pass, then despawn after a short lifetime (spec §4.5 "peas").
func effectPeas(ctx Context) {
	if ctx.Slot.CooldownTicks > 0 {
		return
	}
	ownerInfo := ctx.World.PlayerInfo.Get(ctx.Owner)
	if ownerInfo == nil || ownerInfo.InputBitmask&ecs.InputAttack == 0 {
		return
	}
	petal := ctx.World.Petal.Get(ctx.Self)
	selfPhys := ctx.World.Physical.Get(ctx.Self)
	if petal == nil || selfPhys == nil {
		return
	}
	stats, ok := ctx.Tables.Petals[petal.ID]
	if !ok {
		return
	}
	ownerTeam := teamOf(ctx, ctx.Owner)

	for i := 0; i < peasSiblingCount; i++ {
		angle := float64(i) * (2 * math.Pi / peasSiblingCount)
		entity, err := ctx.World.Alloc()
		if err != nil {
			continue
		}
		phys, _ := ctx.World.Physical.Add(entity)
		phys.X, phys.Y = selfPhys.X, selfPhys.Y
		phys.Radius = 8
		phys.Friction = 1 // siblings travel straight, no drag
		phys.VX = math.Cos(angle) * peasInitialVelocity
		phys.VY = math.Sin(angle) * peasInitialVelocity

		rel, _ := ctx.World.Relations.Add(entity)
		rel.Team = ownerTeam
		rel.Owner = ctx.Owner
		rel.RootOwner = ctx.World.ResolveRootOwner(ctx.Owner)
		if rel.RootOwner.IsNull() {
			rel.RootOwner = ctx.Owner
		}

		sibling, _ := ctx.World.Petal.Add(entity)
		sibling.ID = petal.ID
		sibling.Rarity = petal.Rarity
		sibling.Slot = -1 // no owning slot; despawnOrphanPetals reaps it
		sibling.DespawnTicks = peasSiblingLifetimeTicks
	}

	ctx.Slot.CooldownTicks = stats.CooldownTicks
}

// Azalea seek-and-heal tuning (spec §4.5 "azalea").
const (
	azaleaSeekSpeed     = 3.0
	azaleaContactRadius = 20.0
	azaleaHealPerRarity = 9.0
)

// effectAzalea seeks the nearest damaged ally flower within range and heals
// it on contact (spec §4.5 "azalea"), detaching from orbit while it pursues
// a target and rejoining once it heals, loses its target, or the target is
// no longer damaged.
func effectAzalea(ctx Context) {
	petal := ctx.World.Petal.Get(ctx.Self)
	selfPhys := ctx.World.Physical.Get(ctx.Self)
	if petal == nil || selfPhys == nil {
		return
	}
	stats, ok := ctx.Tables.Petals[petal.ID]
	if !ok {
		return
	}

	if petal.Detached {
		target := petal.BindTarget
		targetPhys := ctx.World.Physical.Get(target)
		targetHealth := ctx.World.Health.Get(target)
		if target.IsNull() || !ctx.World.Alive(target) || targetPhys == nil || targetHealth == nil || targetHealth.HP >= targetHealth.MaxHP {
			petal.Detached = false
			petal.BindTarget = ecs.Null
			selfPhys.VX, selfPhys.VY = 0, 0
			return
		}

		dx, dy := targetPhys.X-selfPhys.X, targetPhys.Y-selfPhys.Y
		dist := math.Hypot(dx, dy)
		if dist <= azaleaContactRadius {
			heal := azaleaHealPerRarity * stats.RarityScale * ctx.Tables.RarityMultiplier[petal.Rarity]
			targetHealth.HP += heal
			if targetHealth.HP > targetHealth.MaxHP {
				targetHealth.HP = targetHealth.MaxHP
			}
			petal.Detached = false
			petal.BindTarget = ecs.Null
			selfPhys.VX, selfPhys.VY = 0, 0
			return
		}
		nx, ny := dx/dist, dy/dist
		selfPhys.X += nx * azaleaSeekSpeed
		selfPhys.Y += ny * azaleaSeekSpeed
		return
	}

	if target := nearestDamagedAlly(ctx, selfPhys, stats.Radius); !target.IsNull() {
		petal.Detached = true
		petal.BindTarget = target
	}
}

// effectMint's cleanse/heal-over-time is a standing modifier; see
// recomputeModifiers.
func effectMint(ctx Context) {}

// effectBubble's FOV boost is a standing modifier; see recomputeModifiers.
func effectBubble(ctx Context) {}

// webDespawnFactor scales a deployed web's lifetime off its own cooldown, so
// a slower-reloading web also lingers longer.
const webDespawnFactor = 2

// effectWeb deploys a slow-field Web entity at the petal's current position
// once its cooldown expires (spec §4.5/§4.6 "web slow-field").
func effectWeb(ctx Context) {
	if ctx.Slot.CooldownTicks > 0 {
		return
	}
	petal := ctx.World.Petal.Get(ctx.Self)
	selfPhys := ctx.World.Physical.Get(ctx.Self)
	if petal == nil || selfPhys == nil {
		return
	}
	stats, ok := ctx.Tables.Petals[petal.ID]
	if !ok {
		return
	}

	entity, err := ctx.World.Alloc()
	if err == nil {
		phys, _ := ctx.World.Physical.Add(entity)
		phys.X, phys.Y = selfPhys.X, selfPhys.Y

		web, _ := ctx.World.Web.Add(entity)
		web.Radius = stats.Radius
		web.TicksUntilDespawn = stats.CooldownTicks * webDespawnFactor
	}

	ctx.Slot.CooldownTicks = stats.CooldownTicks
}

// meatAggroCap bounds the threat value a single meat petal accumulates, so a
// long-equipped petal doesn't overflow the field or dominate aggro forever.
const meatAggroCap = 100

// effectMeat periodically raises the petal's accumulated aggro count, up to
// meatAggroCap (spec §4.5 "meat aggro-draw"). The AI package's targeting
// does not read AggroCount; mobs pick the nearest player regardless of meat.
func effectMeat(ctx Context) {
	if ctx.Slot.CooldownTicks > 0 {
		return
	}
	petal := ctx.World.Petal.Get(ctx.Self)
	if petal == nil {
		return
	}
	stats, ok := ctx.Tables.Petals[petal.ID]
	if !ok {
		return
	}
	if petal.AggroCount < meatAggroCap {
		petal.AggroCount++
	}
	ctx.Slot.CooldownTicks = stats.CooldownTicks
}

// nestSpawnDifficulty is the fixed, low difficulty weight nest-spawned pets
// roll their rarity against (spec §4.5: a player's own nest pet should skew
// common, not match the arena's ambient difficulty curve).
const nestSpawnDifficulty = 0.0

// effectNest spawns a friendly helper mob near the owner once its cooldown
// expires, owned by and fighting alongside the flower wearing it (spec §4.5
// "nest spawn"). The spawned mob never drops loot; it is the player's own
// pet, not a kill target.
func effectNest(ctx Context) {
	if ctx.Slot.CooldownTicks > 0 {
		return
	}
	petal := ctx.World.Petal.Get(ctx.Self)
	ownerPhys := ctx.World.Physical.Get(ctx.Owner)
	if petal == nil || ownerPhys == nil {
		return
	}
	stats, ok := ctx.Tables.Petals[petal.ID]
	if !ok {
		return
	}

	mobID := ctx.Tables.PickMobID(ctx.RNG, "")
	rarity := ctx.Tables.PickRarity(ctx.RNG, nestSpawnDifficulty)
	mobStats, ok := ctx.Tables.Mobs[mobID]
	if ok {
		entity, err := ctx.World.Alloc()
		if err == nil {
			phys, _ := ctx.World.Physical.Add(entity)
			phys.X = ownerPhys.X + ctx.RNG.Float64()*64 - 32
			phys.Y = ownerPhys.Y + ctx.RNG.Float64()*64 - 32
			phys.Radius = 20
			phys.Friction = 0.85
			phys.Mass = 1

			health, _ := ctx.World.Health.Add(entity)
			health.MaxHP = mobStats.BaseHP * ctx.Tables.RarityMultiplier[rarity]
			health.HP = health.MaxHP

			rel, _ := ctx.World.Relations.Add(entity)
			rel.Team = ecs.TeamPlayers
			rel.Owner = ctx.Owner
			rel.RootOwner = ctx.World.ResolveRootOwner(ctx.Owner)
			if rel.RootOwner.IsNull() {
				rel.RootOwner = ctx.Owner
			}

			mob, _ := ctx.World.Mob.Add(entity)
			mob.ID = mobID
			mob.Rarity = rarity
			mob.PlayerSpawned = true
			mob.NoDrop = true
		}
	}

	ctx.Slot.CooldownTicks = stats.CooldownTicks
}

// seedPullStrength scales how hard a bound target is pulled toward the seed
// petal holding it each tick.
const seedPullStrength = 0.04

// effectSeed roots an enemy once acquired, continuously pulling it toward
// the petal's position until it dies or drifts out of range, then releasing
// it and becoming eligible to acquire a new target (spec §4.5 "seed bind").
func effectSeed(ctx Context) {
	petal := ctx.World.Petal.Get(ctx.Self)
	selfPhys := ctx.World.Physical.Get(ctx.Self)
	if petal == nil || selfPhys == nil {
		return
	}

	if !petal.BindTarget.IsNull() {
		targetPhys := ctx.World.Physical.Get(petal.BindTarget)
		if !ctx.World.Alive(petal.BindTarget) || targetPhys == nil {
			petal.BindTarget = ecs.Null
		} else {
			dx, dy := selfPhys.X-targetPhys.X, selfPhys.Y-targetPhys.Y
			targetPhys.VX += dx * seedPullStrength
			targetPhys.VY += dy * seedPullStrength
			return
		}
	}

	if ctx.Slot.CooldownTicks > 0 {
		return
	}
	stats, ok := ctx.Tables.Petals[petal.ID]
	if !ok {
		return
	}
	if target := nearestEnemy(ctx, selfPhys, stats.Radius); !target.IsNull() {
		petal.BindTarget = target
	}
	ctx.Slot.CooldownTicks = stats.CooldownTicks
}

// gravelKnockbackImpulse scales the outward velocity gravel's knockback
// burst imparts, before the target's own KnockbackScale resistance is
// applied.
const gravelKnockbackImpulse = 6.0

// effectGravel knocks back every enemy within range once its cooldown
// expires (spec §4.5 "gravel knockback").
func effectGravel(ctx Context) {
	if ctx.Slot.CooldownTicks > 0 {
		return
	}
	petal := ctx.World.Petal.Get(ctx.Self)
	selfPhys := ctx.World.Physical.Get(ctx.Self)
	if petal == nil || selfPhys == nil {
		return
	}
	stats, ok := ctx.Tables.Petals[petal.ID]
	if !ok {
		return
	}
	ownerTeam := teamOf(ctx, ctx.Owner)

	ctx.World.Relations.ForEach(func(e ecs.Entity, rel *ecs.Relations) {
		if rel.Team == ownerTeam {
			return
		}
		otherPhys := ctx.World.Physical.Get(e)
		if otherPhys == nil {
			return
		}
		dx, dy := otherPhys.X-selfPhys.X, otherPhys.Y-selfPhys.Y
		dist := math.Hypot(dx, dy)
		if dist > stats.Radius || dist < 0.001 {
			return
		}
		nx, ny := dx/dist, dy/dist
		impulse := gravelKnockbackImpulse * otherPhys.KnockbackScale
		otherPhys.VX += nx * impulse
		otherPhys.VY += ny * impulse
	})

	ctx.Slot.CooldownTicks = stats.CooldownTicks
}

// effectEgg counts down to a single hatch: once its cooldown (the egg's
// incubation timer) reaches zero, it hatches into a friendly mob and the
// petal entity itself is deleted, the slot left empty for the player to
// re-equip (spec §4.5 "egg hatch").
//
// The source's egg-hatch path left its spawned mob's id/rarity variables
// uninitialized on a branch that could never actually be taken (the egg
// slot is always populated by the time the hatch timer fires); this port
// always resolves mobID/rarity up front, treating that branch as
// unreachable rather than reproducing the gap (spec §9 open question).
func effectEgg(ctx Context) {
	if ctx.Slot.CooldownTicks > 0 {
		return
	}
	petal := ctx.World.Petal.Get(ctx.Self)
	selfPhys := ctx.World.Physical.Get(ctx.Self)
	if petal == nil || selfPhys == nil {
		return
	}
	if _, ok := ctx.Tables.Petals[petal.ID]; !ok {
		return
	}

	mobID := ctx.Tables.PickMobID(ctx.RNG, "")
	rarity := petal.Rarity

	mobStats, ok := ctx.Tables.Mobs[mobID]
	if ok {
		entity, err := ctx.World.Alloc()
		if err == nil {
			phys, _ := ctx.World.Physical.Add(entity)
			phys.X, phys.Y = selfPhys.X, selfPhys.Y
			phys.Radius = 20
			phys.Friction = 0.85
			phys.Mass = 1

			health, _ := ctx.World.Health.Add(entity)
			health.MaxHP = mobStats.BaseHP * ctx.Tables.RarityMultiplier[rarity]
			health.HP = health.MaxHP

			rel, _ := ctx.World.Relations.Add(entity)
			rel.Team = ecs.TeamPlayers
			rel.Owner = ctx.Owner
			rel.RootOwner = ctx.World.ResolveRootOwner(ctx.Owner)
			if rel.RootOwner.IsNull() {
				rel.RootOwner = ctx.Owner
			}

			mob, _ := ctx.World.Mob.Add(entity)
			mob.ID = mobID
			mob.Rarity = rarity
			mob.PlayerSpawned = true
			mob.NoDrop = true
		}
	}

	for i, bound := range ctx.Slot.Petals {
		if bound == ctx.Self {
			ctx.Slot.Petals = append(ctx.Slot.Petals[:i], ctx.Slot.Petals[i+1:]...)
			break
		}
	}
	if len(ctx.Slot.Petals) == 0 {
		ctx.Slot.ID = 0
		ctx.Slot.Rarity = 0
	}
	ctx.World.RequestDeletion(ctx.Self)
}

// effectFireball deals a single burst of area damage to every enemy within
// range once its long cooldown expires, crediting squads through the same
// combat path contact damage uses (spec §4.5 "fireball/meteor area damage").
func effectFireball(ctx Context) {
	areaDamage(ctx)
}

// effectUranium deals the same area-damage burst as fireball, off its own
// (typically shorter, weaker) balance-table row (spec §4.5 "uranium decay
// damage").
func effectUranium(ctx Context) {
	areaDamage(ctx)
}

// areaDamage is effectFireball/effectUranium's shared cooldown-gated
// area-damage burst: both petals differ only in their balance-table
// Damage/Radius/CooldownTicks row, not in behavior.
func areaDamage(ctx Context) {
	if ctx.Slot.CooldownTicks > 0 {
		return
	}
	petal := ctx.World.Petal.Get(ctx.Self)
	selfPhys := ctx.World.Physical.Get(ctx.Self)
	if petal == nil || selfPhys == nil || ctx.Combat == nil {
		return
	}
	stats, ok := ctx.Tables.Petals[petal.ID]
	if !ok {
		return
	}
	dmg := stats.Damage * ctx.Tables.RarityMultiplier[petal.Rarity]
	ownerTeam := teamOf(ctx, ctx.Owner)

	ctx.World.Relations.ForEach(func(e ecs.Entity, rel *ecs.Relations) {
		if rel.Team == ownerTeam {
			return
		}
		otherPhys := ctx.World.Physical.Get(e)
		if otherPhys == nil {
			return
		}
		dx, dy := otherPhys.X-selfPhys.X, otherPhys.Y-selfPhys.Y
		if dx*dx+dy*dy > stats.Radius*stats.Radius {
			return
		}
		ctx.Combat.ApplyDamage(ctx.Self, e, dmg, ctx.TickCount)
	})

	ctx.Slot.CooldownTicks = stats.CooldownTicks
}

// teamOf resolves an entity's team, defaulting to TeamPlayers if it somehow
// has no Relations component (it always should; this only guards a nil map
// lookup during startup ordering).
func teamOf(ctx Context, e ecs.Entity) ecs.Team {
	if rel := ctx.World.Relations.Get(e); rel != nil {
		return rel.Team
	}
	return ecs.TeamPlayers
}

// nearestEnemy finds the closest entity of the opposing team to origin
// within radius, or ecs.Null if none. Used by effectSeed to acquire a bind
// target; a plain O(n) scan over Relations since petal.Context carries no
// spatial index (unlike the collision package, which rebuilds one every
// tick for the much hotter petal-vs-enemy contact pass).
func nearestEnemy(ctx Context, origin *ecs.Physical, radius float64) ecs.Entity {
	ownerTeam := teamOf(ctx, ctx.Owner)
	best := ecs.Null
	bestDist := radius * radius

	ctx.World.Relations.ForEach(func(e ecs.Entity, rel *ecs.Relations) {
		if rel.Team == ownerTeam {
			return
		}
		phys := ctx.World.Physical.Get(e)
		if phys == nil {
			return
		}
		dx, dy := phys.X-origin.X, phys.Y-origin.Y
		d2 := dx*dx + dy*dy
		if d2 <= bestDist {
			bestDist = d2
			best = e
		}
	})
	return best
}

// nearestEnemyInCone finds the closest opposing-team entity to origin
// within radius and within halfAngle radians of facing. Used by effectShell
// to aim-lock its launch target.
func nearestEnemyInCone(ctx Context, origin *ecs.Physical, facing, radius, halfAngle float64) ecs.Entity {
	ownerTeam := teamOf(ctx, ctx.Owner)
	best := ecs.Null
	bestDist := radius * radius

	ctx.World.Relations.ForEach(func(e ecs.Entity, rel *ecs.Relations) {
		if rel.Team == ownerTeam {
			return
		}
		phys := ctx.World.Physical.Get(e)
		if phys == nil {
			return
		}
		dx, dy := phys.X-origin.X, phys.Y-origin.Y
		d2 := dx*dx + dy*dy
		if d2 > bestDist {
			return
		}
		if angleDiff(math.Atan2(dy, dx), facing) > halfAngle {
			return
		}
		bestDist = d2
		best = e
	})
	return best
}

// nearestDamagedAlly finds the closest same-team entity to origin, within
// radius, whose Health is below its max. Used by effectAzalea to pick a
// heal target.
func nearestDamagedAlly(ctx Context, origin *ecs.Physical, radius float64) ecs.Entity {
	ownerTeam := teamOf(ctx, ctx.Owner)
	best := ecs.Null
	bestDist := radius * radius

	ctx.World.Health.ForEach(func(e ecs.Entity, health *ecs.Health) {
		if health.HP >= health.MaxHP || health.HP <= 0 {
			return
		}
		rel := ctx.World.Relations.Get(e)
		if rel == nil || rel.Team != ownerTeam {
			return
		}
		phys := ctx.World.Physical.Get(e)
		if phys == nil {
			return
		}
		dx, dy := phys.X-origin.X, phys.Y-origin.Y
		d2 := dx*dx + dy*dy
		if d2 <= bestDist {
			bestDist = d2
			best = e
		}
	})
	return best
}

// angleDiff returns the absolute minimal angular distance between a and b,
// in [0, pi].
func angleDiff(a, b float64) float64 {
	d := a - b
	for d > math.Pi {
		d -= 2 * math.Pi
	}
	for d < -math.Pi {
		d += 2 * math.Pi
	}
	if d < 0 {
		d = -d
	}
	return d
}
