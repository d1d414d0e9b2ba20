package systems

import (
	"math"
	"testing"

	"fight-club/internal/ecs"
)

// TestIntegrateClampsSpeedAtMax verifies velocity magnitude never exceeds
// MaxSpeed after acceleration is applied (spec §4.8 step 1 hard clamp).
func TestIntegrateClampsSpeedAtMax(t *testing.T) {
	world := ecs.NewWorld()
	e, _ := world.Alloc()
	phys, _ := world.Physical.Add(e)
	phys.AX = 1000
	phys.Friction = 1 // isolate the pre-friction speed clamp

	Integrate(world, 1.0)

	speed := math.Hypot(phys.VX, phys.VY)
	if speed > MaxSpeed+1e-9 {
		t.Fatalf("speed = %v, must not exceed MaxSpeed %v", speed, MaxSpeed)
	}
}

// TestIntegrateResetsAccelerationEachTick verifies acceleration is consumed
// every tick rather than accumulating (force must be reapplied by input
// each tick, not carried over).
func TestIntegrateResetsAccelerationEachTick(t *testing.T) {
	world := ecs.NewWorld()
	e, _ := world.Alloc()
	phys, _ := world.Physical.Add(e)
	phys.AX, phys.AY = 1, 1

	Integrate(world, 1.0)

	if phys.AX != 0 || phys.AY != 0 {
		t.Fatalf("AX/AY = %v/%v, want reset to 0 after integration", phys.AX, phys.AY)
	}
}

// TestIntegrateAppliesDefaultFrictionWhenUnset verifies an entity with no
// explicit Friction set falls back to the spec's default damping rather
// than multiplying velocity by zero.
func TestIntegrateAppliesDefaultFrictionWhenUnset(t *testing.T) {
	world := ecs.NewWorld()
	e, _ := world.Alloc()
	phys, _ := world.Physical.Add(e)
	phys.VX = 10

	Integrate(world, 1.0)

	if phys.VX == 0 {
		t.Fatalf("VX must not be zeroed by a missing Friction value")
	}
	if phys.VX >= 10 {
		t.Fatalf("VX = %v, friction must still damp velocity below its pre-tick value", phys.VX)
	}
}

// TestTickStunCountsDownToZeroAndStops verifies StunTicks decrements but
// never goes negative.
func TestTickStunCountsDownToZeroAndStops(t *testing.T) {
	world := ecs.NewWorld()
	e, _ := world.Alloc()
	phys, _ := world.Physical.Add(e)
	phys.StunTicks = 1

	TickStun(world)
	if phys.StunTicks != 0 {
		t.Fatalf("StunTicks = %d, want 0", phys.StunTicks)
	}

	TickStun(world)
	if phys.StunTicks != 0 {
		t.Fatalf("StunTicks = %d, must not go negative", phys.StunTicks)
	}
}

// TestUpdateCamerasConvergesTowardPlayerPosition verifies the camera lerps
// toward (not snaps to) the player's actual position each tick.
func TestUpdateCamerasConvergesTowardPlayerPosition(t *testing.T) {
	world := ecs.NewWorld()
	e, _ := world.Alloc()
	phys, _ := world.Physical.Add(e)
	phys.X, phys.Y = 1000, 0
	info, _ := world.PlayerInfo.Add(e)

	UpdateCameras(world)

	want := 1000 * CameraLerpRate
	if math.Abs(info.CameraX-want) > 1e-9 {
		t.Fatalf("CameraX = %v, want %v after one lerp step", info.CameraX, want)
	}
	if info.CameraX == 1000 {
		t.Fatalf("camera must not snap directly to the player position in one tick")
	}
}

// TestUpdateCamerasUsesDefaultFOVWhenModifierUnset verifies a player with no
// FOVMinimum modifier set converges toward the design-default FOV.
func TestUpdateCamerasUsesDefaultFOVWhenModifierUnset(t *testing.T) {
	world := ecs.NewWorld()
	e, _ := world.Alloc()
	world.Physical.Add(e)
	info, _ := world.PlayerInfo.Add(e)
	info.CameraFOV = 0

	UpdateCameras(world)

	if info.CameraTargetFOV != 2048 {
		t.Fatalf("CameraTargetFOV = %v, want default 2048", info.CameraTargetFOV)
	}
}

// TestUpdateCentipedesFollowsParentBeyondFollowDistance verifies a segment
// only moves once it drifts past the fixed follow distance from its parent.
func TestUpdateCentipedesFollowsParentBeyondFollowDistance(t *testing.T) {
	world := ecs.NewWorld()

	parent, _ := world.Alloc()
	parentPhys, _ := world.Physical.Add(parent)
	parentPhys.X, parentPhys.Y = 100, 0

	segment, _ := world.Alloc()
	segPhys, _ := world.Physical.Add(segment)
	segPhys.X, segPhys.Y = 0, 0
	centipede, _ := world.Centipede.Add(segment)
	centipede.ParentNode = parent

	UpdateCentipedes(world)

	if segPhys.X == 0 {
		t.Fatalf("segment beyond follow distance must move toward its parent")
	}
	dist := math.Hypot(parentPhys.X-segPhys.X, parentPhys.Y-segPhys.Y)
	if math.Abs(dist-36.0) > 1e-6 {
		t.Fatalf("distance to parent after following = %v, want settled at the 36-unit follow distance", dist)
	}
}

// TestUpdateCentipedesIgnoresSegmentWithinFollowDistance verifies a segment
// already within the follow distance does not move.
func TestUpdateCentipedesIgnoresSegmentWithinFollowDistance(t *testing.T) {
	world := ecs.NewWorld()

	parent, _ := world.Alloc()
	parentPhys, _ := world.Physical.Add(parent)
	parentPhys.X, parentPhys.Y = 10, 0

	segment, _ := world.Alloc()
	segPhys, _ := world.Physical.Add(segment)
	segPhys.X, segPhys.Y = 0, 0
	centipede, _ := world.Centipede.Add(segment)
	centipede.ParentNode = parent

	UpdateCentipedes(world)

	if segPhys.X != 0 || segPhys.Y != 0 {
		t.Fatalf("segment within the follow distance must not move, got (%v, %v)", segPhys.X, segPhys.Y)
	}
}

// TestUpdateCentipedesIgnoresSegmentWithNoParent verifies a root segment
// (no ParentNode) is left untouched.
func TestUpdateCentipedesIgnoresSegmentWithNoParent(t *testing.T) {
	world := ecs.NewWorld()
	segment, _ := world.Alloc()
	segPhys, _ := world.Physical.Add(segment)
	segPhys.X, segPhys.Y = 5, 5
	world.Centipede.Add(segment)

	UpdateCentipedes(world)

	if segPhys.X != 5 || segPhys.Y != 5 {
		t.Fatalf("segment with no parent must not move")
	}
}
