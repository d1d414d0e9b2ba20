// Package collision implements the contact-resolution rules of spec.md
// §4.6: broad-phase pairing via the spatial grid, then narrow-phase circle
// overlap tests feeding petal-vs-enemy damage, mob-vs-flower damage,
// same-team push-apart, wall collision, and the web slow-field. The
// circle-overlap math is grounded on internal/game/hitbox.go's O(1)
// distance-based CheckHit, generalized from weapon-vs-player range checks
// to pairwise entity-vs-entity circle overlap tests driven by the spatial
// grid instead of a full O(n^2) scan.
package collision

import (
	"math"

	"fight-club/internal/ecs"
	"fight-club/internal/maze"
	"fight-club/internal/spatial"
)

// DamageFunc applies damage from attacker to target, crediting squads as
// the combat package defines; collision only decides WHO hits WHOM.
type DamageFunc func(attacker, target ecs.Entity, amount float64)

// System runs the per-tick collision pass (spec §5 step 1 detection,
// step 6 resolution).
type System struct {
	world *ecs.World
	index *spatial.Grid
	maze  *maze.Grid
}

// NewSystem wires a collision.System to the world, its broad-phase index,
// and the maze grid used for wall collision.
func NewSystem(world *ecs.World, index *spatial.Grid, mazeGrid *maze.Grid) *System {
	return &System{world: world, index: index, maze: mazeGrid}
}

// RebuildIndex clears and repopulates the spatial grid from every entity
// with a Physical component. Must run once at the start of each tick before
// any detection pass (spec §4.2: "rebuilt every tick").
func (s *System) RebuildIndex() {
	s.index.Clear()
	s.world.Physical.ForEach(func(e ecs.Entity, p *ecs.Physical) {
		s.index.Insert(e, p.X, p.Y, p.Radius)
	})
}

// overlap reports whether two circles (a at ax,ay radius ar; b at bx,by
// radius br) intersect, and the penetration depth if so.
func overlap(ax, ay, ar, bx, by, br float64) (depth float64, hit bool) {
	dx, dy := bx-ax, by-ay
	dist := math.Hypot(dx, dy)
	sumR := ar + br
	if dist >= sumR {
		return 0, false
	}
	return sumR - dist, true
}

// DetectPetalVsEnemy finds every (petal, enemy) pair in contact and invokes
// applyDamage once per pair; petal-side damage values come from the
// owner's equipped slot via the balance package, resolved by the caller
// (internal/combat) so this package stays free of balance-table coupling.
func (s *System) DetectPetalVsEnemy(applyDamage func(petal, target ecs.Entity)) {
	s.world.Petal.ForEach(func(petalEntity ecs.Entity, petal *ecs.Petal) {
		if petal.Detached {
			return
		}
		petalPhys := s.world.Physical.Get(petalEntity)
		if petalPhys == nil {
			return
		}
		rel := s.world.Relations.Get(petalEntity)
		ownerTeam := ecs.TeamPlayers
		if rel != nil {
			ownerTeam = rel.Team
		}

		s.index.QueryRadius(petalPhys.X, petalPhys.Y, petalPhys.Radius+64, func(other ecs.Entity, ox, oy float64) {
			if other == petalEntity {
				return
			}
			otherPhys := s.world.Physical.Get(other)
			otherRel := s.world.Relations.Get(other)
			if otherPhys == nil || otherRel == nil || otherRel.Team == ownerTeam {
				return
			}
			if !s.world.Mob.Has(other) && !s.world.PlayerInfo.Has(other) {
				return
			}
			if _, hit := overlap(petalPhys.X, petalPhys.Y, petalPhys.Radius, otherPhys.X, otherPhys.Y, otherPhys.Radius); hit {
				applyDamage(petalEntity, other)
			}
		})
	})
}

// DetectMobVsFlower finds every (mob, flower) contact pair and invokes
// applyDamage once per pair, direction mob-to-flower always.
func (s *System) DetectMobVsFlower(applyDamage func(mob, flower ecs.Entity)) {
	s.world.Mob.ForEach(func(mobEntity ecs.Entity, mob *ecs.Mob) {
		mobPhys := s.world.Physical.Get(mobEntity)
		if mobPhys == nil {
			return
		}
		s.index.QueryRadius(mobPhys.X, mobPhys.Y, mobPhys.Radius+64, func(other ecs.Entity, ox, oy float64) {
			if !s.world.PlayerInfo.Has(other) {
				return
			}
			otherPhys := s.world.Physical.Get(other)
			if otherPhys == nil {
				return
			}
			if _, hit := overlap(mobPhys.X, mobPhys.Y, mobPhys.Radius, otherPhys.X, otherPhys.Y, otherPhys.Radius); hit {
				applyDamage(mobEntity, other)
			}
		})
	})
}

// ResolveSameTeamPush pushes apart any two overlapping same-team entities
// (player-vs-player, mob-vs-mob) so live bodies never fully stack, splitting
// the separation evenly between the pair (spec §4.6).
func (s *System) ResolveSameTeamPush() {
	s.world.Relations.ForEach(func(e ecs.Entity, rel *ecs.Relations) {
		phys := s.world.Physical.Get(e)
		if phys == nil {
			return
		}
		s.index.QueryRadius(phys.X, phys.Y, phys.Radius+64, func(other ecs.Entity, ox, oy float64) {
			if other == e || other.Index < e.Index {
				return // each pair resolved once, from the lower index
			}
			otherRel := s.world.Relations.Get(other)
			otherPhys := s.world.Physical.Get(other)
			if otherRel == nil || otherPhys == nil || otherRel.Team != rel.Team {
				return
			}
			depth, hit := overlap(phys.X, phys.Y, phys.Radius, otherPhys.X, otherPhys.Y, otherPhys.Radius)
			if !hit {
				return
			}
			dx, dy := otherPhys.X-phys.X, otherPhys.Y-phys.Y
			dist := math.Hypot(dx, dy)
			if dist < 0.001 {
				dx, dy, dist = 1, 0, 1
			}
			nx, ny := dx/dist, dy/dist
			half := depth / 2
			phys.X -= nx * half
			phys.Y -= ny * half
			otherPhys.X += nx * half
			otherPhys.Y += ny * half
		})
	})
}

// ResolveWalls moves every entity with a Physical component that ended up
// inside a non-walkable maze cell back by one velocity step and zeroes both
// velocity components (spec §4.6 wall-grid rule).
func (s *System) ResolveWalls() {
	if s.maze == nil {
		return
	}
	s.world.Physical.ForEach(func(e ecs.Entity, phys *ecs.Physical) {
		cell := s.maze.CellOf(phys.X, phys.Y)
		if cell == nil || cell.Walkable {
			return
		}
		// Pushed into a wall cell: revert along the velocity direction.
		phys.X -= phys.VX
		phys.Y -= phys.VY
		phys.VX, phys.VY = 0, 0
	})
}

// ApplyWebSlow scales the velocity of every entity standing inside a
// deployed web's radius by 0.56^rarity, matching the spec's compounding
// rarity-scaled slow factor (spec §4.6, §9 glossary "web slow").
func (s *System) ApplyWebSlow(rarityOf func(ecs.Entity) ecs.Rarity) {
	s.world.Web.ForEach(func(webEntity ecs.Entity, web *ecs.Web) {
		webPhys := s.world.Physical.Get(webEntity)
		if webPhys == nil {
			return
		}
		s.index.QueryRadius(webPhys.X, webPhys.Y, web.Radius, func(other ecs.Entity, ox, oy float64) {
			if other == webEntity {
				return
			}
			otherPhys := s.world.Physical.Get(other)
			if otherPhys == nil {
				return
			}
			dx, dy := ox-webPhys.X, oy-webPhys.Y
			if dx*dx+dy*dy > web.Radius*web.Radius {
				return
			}
			factor := math.Pow(0.56, float64(rarityOf(webEntity)))
			otherPhys.VX *= factor
			otherPhys.VY *= factor
		})
	})
}
