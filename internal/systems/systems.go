// Package systems implements the per-tick misc passes of spec.md §4.8:
// velocity integration, friction, stun-tick countdown, camera smoothing,
// and the centipede segment chain. The per-tick update/decay style (timer
// decrements guarding a state flip, smoothed lerp toward a target) is
// grounded on internal/game/effects.go's ScreenShake.Update/WeaponTrail.Update
// and internal/game/player.go's friction/speed-clamp block in Update.
package systems

import (
	"math"

	"fight-club/internal/ecs"
)

// MaxSpeed is the design-target hard speed cap applied after integration
// (spec §4.8, mirroring the source's maxSpeed clamp in Player.Update).
const MaxSpeed = 10.0

// CameraLerpRate controls how quickly a player's camera target converges to
// its actual position/FOV each tick.
const CameraLerpRate = 0.12

// Integrate applies acceleration, clamps to MaxSpeed, advances position by
// velocity, then applies per-entity friction (spec §4.8 step 1).
func Integrate(world *ecs.World, deltaTime float64) {
	world.Physical.ForEach(func(e ecs.Entity, p *ecs.Physical) {
		p.VX += p.AX * deltaTime
		p.VY += p.AY * deltaTime

		speed := math.Hypot(p.VX, p.VY)
		if speed > MaxSpeed {
			p.VX = (p.VX / speed) * MaxSpeed
			p.VY = (p.VY / speed) * MaxSpeed
		}

		p.X += p.VX * deltaTime * 60
		p.Y += p.VY * deltaTime * 60

		friction := p.Friction
		if friction <= 0 {
			friction = 0.85
		}
		p.VX *= friction
		p.VY *= friction
		p.AX, p.AY = 0, 0
	})
}

// TickStun counts down every entity's stun timer, the spec's shared
// stun-tick mechanism. No system in this port sets StunTicks.
func TickStun(world *ecs.World) {
	world.Physical.ForEach(func(e ecs.Entity, p *ecs.Physical) {
		if p.StunTicks > 0 {
			p.StunTicks--
		}
	})
}

// UpdateCameras smooths each player's camera toward its actual position and
// FOV target (spec §4.8 step 3), mirroring the effects-ring-buffer idiom of
// decaying a value a fixed fraction toward its target each tick.
func UpdateCameras(world *ecs.World) {
	world.PlayerInfo.ForEach(func(e ecs.Entity, info *ecs.PlayerInfo) {
		phys := world.Physical.Get(e)
		if phys == nil {
			return
		}
		info.CameraTargetX = phys.X
		info.CameraTargetY = phys.Y

		info.CameraX += (info.CameraTargetX - info.CameraX) * CameraLerpRate
		info.CameraY += (info.CameraTargetY - info.CameraY) * CameraLerpRate

		target := info.Modifiers.FOVMinimum
		if target <= 0 {
			target = 2048
		}
		info.CameraTargetFOV = target
		info.CameraFOV += (info.CameraTargetFOV - info.CameraFOV) * CameraLerpRate
	})
}

// UpdateCentipedes pulls each segment to a fixed follow distance from its
// parent node, the chain-follow rule for centipede mobs (spec §4.8 step 4,
// §3 Centipede component).
func UpdateCentipedes(world *ecs.World) {
	world.Centipede.ForEach(func(e ecs.Entity, c *ecs.Centipede) {
		if c.ParentNode.IsNull() {
			return
		}
		parentPhys := world.Physical.Get(c.ParentNode)
		selfPhys := world.Physical.Get(e)
		if parentPhys == nil || selfPhys == nil {
			return
		}
		dx, dy := parentPhys.X-selfPhys.X, parentPhys.Y-selfPhys.Y
		dist := math.Hypot(dx, dy)
		const followDistance = 36.0
		if dist <= followDistance {
			return
		}
		nx, ny := dx/dist, dy/dist
		selfPhys.X += nx * (dist - followDistance)
		selfPhys.Y += ny * (dist - followDistance)
		selfPhys.Angle = math.Atan2(dy, dx)
	})
}
