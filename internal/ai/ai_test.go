package ai

import (
	"math/rand"
	"testing"

	"fight-club/internal/ecs"
	"fight-club/internal/spatial"
)

func newTestSystem() (*System, *ecs.World) {
	world := ecs.NewWorld()
	index := spatial.New(2048, 2048, spatial.DefaultCellSize)
	return NewSystem(world, index, rand.New(rand.NewSource(1))), world
}

func spawnMob(world *ecs.World, x, y float64, aiType ecs.AIType) ecs.Entity {
	e, _ := world.Alloc()
	phys, _ := world.Physical.Add(e)
	phys.X, phys.Y = x, y
	ai, _ := world.AI.Add(e)
	ai.Type = aiType
	return e
}

func spawnPlayer(world *ecs.World, index *spatial.Grid, x, y float64) ecs.Entity {
	e, _ := world.Alloc()
	phys, _ := world.Physical.Add(e)
	phys.X, phys.Y = x, y
	world.PlayerInfo.Add(e)
	index.Insert(e, x, y, phys.Radius)
	return e
}

// TestRetargetAcquiresNearestPlayerAndEntersChase covers the idle/wander ->
// chase transition once a player enters aggro range.
func TestRetargetAcquiresNearestPlayerAndEntersChase(t *testing.T) {
	sys, world := newTestSystem()
	mob := spawnMob(world, 0, 0, ecs.AIAggro)
	sys.SetAnchor(mob, 0, 0)
	player := spawnPlayer(world, sys.index, 100, 0)

	sys.Tick(1.0/25.0, nil)

	ai := world.AI.Get(mob)
	if ai.Target != player {
		t.Fatalf("Target = %v, want %v", ai.Target, player)
	}
	if ai.State != ecs.AIChase {
		t.Fatalf("State = %v, want AIChase", ai.State)
	}
}

// TestPassiveMobNeverAcquiresTarget verifies ai.AIPassive mobs are excluded
// from the retarget pass entirely, regardless of nearby players.
func TestPassiveMobNeverAcquiresTarget(t *testing.T) {
	sys, world := newTestSystem()
	mob := spawnMob(world, 0, 0, ecs.AIPassive)
	sys.SetAnchor(mob, 0, 0)
	spawnPlayer(world, sys.index, 10, 0)

	sys.Tick(1.0/25.0, nil)

	ai := world.AI.Get(mob)
	if !ai.Target.IsNull() {
		t.Fatalf("passive mob must never acquire a target, got %v", ai.Target)
	}
	if ai.State != ecs.AIWander {
		t.Fatalf("State = %v, want AIWander (idle timer elapsed; a passive mob never enters chase)", ai.State)
	}
}

// TestChaseEntersAttackWithinRange verifies a chasing mob switches to
// AIAttack once within AttackRange of its target.
func TestChaseEntersAttackWithinRange(t *testing.T) {
	sys, world := newTestSystem()
	mob := spawnMob(world, 0, 0, ecs.AIAggro)
	sys.SetAnchor(mob, 0, 0)
	player := spawnPlayer(world, sys.index, 20, 0)

	ai := world.AI.Get(mob)
	*ai = ecs.AI{Type: ecs.AIAggro, State: ecs.AIChase, Target: player}

	sys.Tick(1.0/25.0, nil)

	if ai.State != ecs.AIAttack {
		t.Fatalf("State = %v, want AIAttack once within range", ai.State)
	}
}

// TestAttackFiresOnAttackOnceThenRespectsCooldown verifies the attack state
// invokes onAttack exactly once until AttackCooldownTicks elapses.
func TestAttackFiresOnAttackOnceThenRespectsCooldown(t *testing.T) {
	sys, world := newTestSystem()
	mob := spawnMob(world, 0, 0, ecs.AIAggro)
	player := spawnPlayer(world, sys.index, 10, 0)

	ai := world.AI.Get(mob)
	*ai = ecs.AI{Type: ecs.AIAggro, State: ecs.AIAttack, Target: player}

	fireCount := 0
	onAttack := func(attacker, target ecs.Entity) { fireCount++ }

	sys.Tick(1.0/25.0, onAttack)
	sys.Tick(1.0/25.0, onAttack)
	sys.Tick(1.0/25.0, onAttack)

	if fireCount != 1 {
		t.Fatalf("fireCount = %d, want exactly 1 within the cooldown window", fireCount)
	}
}

// TestLeashRangeForcesReturn verifies a mob that strays beyond LeashRange
// from its anchor drops its target and begins returning home.
func TestLeashRangeForcesReturn(t *testing.T) {
	sys, world := newTestSystem()
	mob := spawnMob(world, LeashRange+10, 0, ecs.AIAggro)
	sys.SetAnchor(mob, 0, 0)
	player := spawnPlayer(world, sys.index, LeashRange+20, 0)

	ai := world.AI.Get(mob)
	*ai = ecs.AI{Type: ecs.AIAggro, State: ecs.AIChase, Target: player}

	sys.Tick(1.0/25.0, nil)

	if ai.State != ecs.AIReturn {
		t.Fatalf("State = %v, want AIReturn once beyond LeashRange", ai.State)
	}
	if !ai.Target.IsNull() {
		t.Fatalf("Target must be cleared on leash, got %v", ai.Target)
	}
}

// TestReturnSettlesIntoIdleNearAnchor verifies a returning mob that reaches
// its anchor settles back into AIIdle.
func TestReturnSettlesIntoIdleNearAnchor(t *testing.T) {
	sys, world := newTestSystem()
	mob := spawnMob(world, 5, 0, ecs.AIAggro)
	sys.SetAnchor(mob, 0, 0)

	ai := world.AI.Get(mob)
	ai.State = ecs.AIReturn

	sys.Tick(1.0/25.0, nil)

	if ai.State != ecs.AIIdle {
		t.Fatalf("State = %v, want AIIdle once within the anchor's settle radius", ai.State)
	}
}

// TestDropAnchorClearsBookkeeping verifies DropAnchor removes both the
// anchor and cooldown entries so a freed entity's index isn't reused stale.
func TestDropAnchorClearsBookkeeping(t *testing.T) {
	sys, world := newTestSystem()
	mob := spawnMob(world, 0, 0, ecs.AIAggro)
	sys.SetAnchor(mob, 5, 5)
	sys.cooldown[mob.Index] = 10

	sys.DropAnchor(mob)

	if _, ok := sys.anchors[mob.Index]; ok {
		t.Fatalf("anchor entry must be removed after DropAnchor")
	}
	if _, ok := sys.cooldown[mob.Index]; ok {
		t.Fatalf("cooldown entry must be removed after DropAnchor")
	}
}
