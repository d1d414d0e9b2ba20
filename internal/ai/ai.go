// Package ai implements the mob behavior state machine from spec.md §4.4:
// each mob cycles idle -> wander -> chase -> attack -> return -> bounce
// depending on distance to its aggro target and its spawn anchor. The
// per-entity update loop and "find nearest then steer" structure are
// grounded on internal/game/player.go's Update/findTarget/combatBehavior/
// wander, generalized from a flat player slice to the ECS World + spatial
// grid and re-expressed as an explicit state enum rather than the source's
// implicit Target-is-nil branch.
package ai

import (
	"math"
	"math/rand"

	"fight-club/internal/ecs"
	"fight-club/internal/spatial"
)

// Tuning constants mirrored from the per-species balance table's aggro
// range, with fixed fallbacks used when a mob has no balance row.
const (
	DefaultAggroRange  = 260.0
	AttackRange        = 40.0
	LeashRange         = 500.0 // distance from anchor that forces a return
	BounceRange        = 520.0 // distance beyond which a returning mob snaps home
	WanderChangeChance = 0.04
	ChaseSpeed         = 3.2
	WanderSpeed        = 1.0
	ReturnSpeed        = 3.6
	AttackCooldownTicks = 30
)

// Anchor is a mob's spawn point, the center its leash and return behavior
// orbit around.
type Anchor struct {
	X, Y float64
}

// System drives the per-tick AI pass over every entity with an AI
// component (spec §5 step 2, run after collision detection so aggro can
// react to this tick's contact events).
type System struct {
	world   *ecs.World
	index   *spatial.Grid
	anchors map[uint16]Anchor
	rng     *rand.Rand

	// cooldown tracks per-mob attack cooldown ticks; kept outside the AI
	// component since it is pure bookkeeping, not state-machine state.
	cooldown map[uint16]int
}

// NewSystem wires an ai.System to the world and its broad-phase index.
func NewSystem(world *ecs.World, index *spatial.Grid, rng *rand.Rand) *System {
	return &System{
		world:    world,
		index:    index,
		anchors:  make(map[uint16]Anchor),
		rng:      rng,
		cooldown: make(map[uint16]int),
	}
}

// SetAnchor records e's spawn point, used by the return/bounce states. Call
// once when a mob entity is created.
func (s *System) SetAnchor(e ecs.Entity, x, y float64) {
	s.anchors[e.Index] = Anchor{X: x, Y: y}
}

// DropAnchor releases bookkeeping for a freed entity. The spawner's Mob
// free hook should call this alongside any loot-drop publication.
func (s *System) DropAnchor(e ecs.Entity) {
	delete(s.anchors, e.Index)
	delete(s.cooldown, e.Index)
}

// AttackFunc is invoked when a mob lands on its attack state with a valid,
// in-range target; the combat package supplies the actual damage
// application so this package stays decoupled from Health semantics.
type AttackFunc func(attacker, target ecs.Entity)

// Tick advances every live mob's state machine by one tick.
func (s *System) Tick(deltaTime float64, onAttack AttackFunc) {
	s.world.AI.ForEach(func(e ecs.Entity, ai *ecs.AI) {
		phys := s.world.Physical.Get(e)
		if phys == nil {
			return
		}

		if s.cooldown[e.Index] > 0 {
			s.cooldown[e.Index]--
		}

		s.retarget(e, ai, phys)

		switch ai.State {
		case ecs.AIIdle:
			s.tickIdle(ai)
		case ecs.AIWander:
			s.tickWander(e, ai, phys, deltaTime)
		case ecs.AIChase:
			s.tickChase(e, ai, phys, deltaTime, onAttack)
		case ecs.AIAttack:
			s.tickAttack(e, ai, phys, onAttack)
		case ecs.AIReturn:
			s.tickReturn(e, ai, phys, deltaTime)
		case ecs.AIBounce:
			s.tickBounce(e, ai, phys)
		}
	})
}

// retarget resolves ai.Target, clearing it if the current target is no
// longer alive, moves idle or wandering mobs that acquire a target into
// chase, and drops the target of a mob that strayed past LeashRange.
func (s *System) retarget(e ecs.Entity, ai *ecs.AI, phys *ecs.Physical) {
	if !ai.Target.IsNull() && !s.world.Alive(ai.Target) {
		ai.Target = ecs.Null
	}

	if ai.Type == ecs.AIPassive {
		return
	}

	aggro := ai.AggroRange
	if aggro <= 0 {
		aggro = DefaultAggroRange
	}

	if ai.Target.IsNull() {
		target, found := s.index.FindNearest(phys.X, phys.Y, aggro, func(cand ecs.Entity) bool {
			return s.world.PlayerInfo.Has(cand)
		})
		if found {
			ai.Target = target
			if ai.State == ecs.AIIdle || ai.State == ecs.AIWander {
				ai.State = ecs.AIChase
			}
		}
	}

	if anchor, ok := s.anchors[e.Index]; ok {
		dx, dy := phys.X-anchor.X, phys.Y-anchor.Y
		if !ai.Target.IsNull() && math.Hypot(dx, dy) > LeashRange {
			ai.Target = ecs.Null
			ai.State = ecs.AIReturn
		}
	}
}

func (s *System) tickIdle(ai *ecs.AI) {
	if ai.TicksUntilNext > 0 {
		ai.TicksUntilNext--
		return
	}
	ai.State = ecs.AIWander
	ai.TicksUntilNext = 50 + s.rng.Intn(100)
}

func (s *System) tickWander(e ecs.Entity, ai *ecs.AI, phys *ecs.Physical, deltaTime float64) {
	anchor, hasAnchor := s.anchors[e.Index]
	if hasAnchor {
		dx, dy := anchor.X-phys.X, anchor.Y-phys.Y
		dist := math.Hypot(dx, dy)
		if dist > 200 {
			phys.VX += (dx / dist) * 0.3
			phys.VY += (dy / dist) * 0.3
		}
	}

	if s.rng.Float64() < WanderChangeChance {
		angle := s.rng.Float64() * 2 * math.Pi
		phys.VX += math.Cos(angle) * WanderSpeed
		phys.VY += math.Sin(angle) * WanderSpeed
	}

	if ai.TicksUntilNext > 0 {
		ai.TicksUntilNext--
		return
	}
	ai.State = ecs.AIIdle
	ai.TicksUntilNext = 25 + s.rng.Intn(75)
}

func (s *System) tickChase(e ecs.Entity, ai *ecs.AI, phys *ecs.Physical, deltaTime float64, onAttack AttackFunc) {
	if ai.Target.IsNull() {
		ai.State = ecs.AIReturn
		return
	}
	targetPhys := s.world.Physical.Get(ai.Target)
	if targetPhys == nil {
		ai.Target = ecs.Null
		ai.State = ecs.AIReturn
		return
	}

	dx, dy := targetPhys.X-phys.X, targetPhys.Y-phys.Y
	dist := math.Hypot(dx, dy)
	if dist > 0 {
		dx, dy = dx/dist, dy/dist
	}
	phys.Angle = math.Atan2(dy, dx)

	if dist <= AttackRange {
		ai.State = ecs.AIAttack
		return
	}

	phys.VX += dx * ChaseSpeed
	phys.VY += dy * ChaseSpeed
}

func (s *System) tickAttack(e ecs.Entity, ai *ecs.AI, phys *ecs.Physical, onAttack AttackFunc) {
	if ai.Target.IsNull() {
		ai.State = ecs.AIReturn
		return
	}
	targetPhys := s.world.Physical.Get(ai.Target)
	if targetPhys == nil {
		ai.Target = ecs.Null
		ai.State = ecs.AIReturn
		return
	}

	dist := math.Hypot(targetPhys.X-phys.X, targetPhys.Y-phys.Y)
	if dist > AttackRange*1.3 {
		ai.State = ecs.AIChase
		return
	}

	if s.cooldown[e.Index] <= 0 {
		if onAttack != nil {
			onAttack(e, ai.Target)
		}
		s.cooldown[e.Index] = AttackCooldownTicks
	}
}

func (s *System) tickReturn(e ecs.Entity, ai *ecs.AI, phys *ecs.Physical, deltaTime float64) {
	anchor, ok := s.anchors[e.Index]
	if !ok {
		ai.State = ecs.AIIdle
		return
	}

	dx, dy := anchor.X-phys.X, anchor.Y-phys.Y
	dist := math.Hypot(dx, dy)

	if dist > BounceRange {
		ai.State = ecs.AIBounce
		return
	}
	if dist < 20 {
		ai.State = ecs.AIIdle
		ai.TicksUntilNext = 25 + s.rng.Intn(50)
		return
	}

	phys.VX += (dx / dist) * ReturnSpeed
	phys.VY += (dy / dist) * ReturnSpeed
}

// tickBounce snaps a mob that overshot its leash straight back to its
// anchor, the spec's hard recovery for runaway chases.
func (s *System) tickBounce(e ecs.Entity, ai *ecs.AI, phys *ecs.Physical) {
	anchor, ok := s.anchors[e.Index]
	if !ok {
		ai.State = ecs.AIIdle
		return
	}
	phys.X, phys.Y = anchor.X, anchor.Y
	phys.VX, phys.VY = 0, 0
	ai.State = ecs.AIIdle
}
