package session

import (
	"fight-club/internal/ecs"
	"fight-club/internal/wire"
)

// componentKind enumerates the delta-snapshot's component sections, in wire
// order. Only client-relevant state is serialized: AI's internal target/
// state machine never reaches the wire (clients render mobs from Physical +
// Mob alone), and Relations stays server-side since ownership is only
// surfaced indirectly through squad membership.
type componentKind uint8

const (
	kindPhysical componentKind = iota
	kindHealth
	kindMob
	kindFlower
	kindPetal
	kindCount
)

// fieldBit names the per-field dirty bits within each component kind's
// state-bitmask (spec §4.7: "state-bitmask, per-field value").
const (
	bitPhysX uint16 = 1 << iota
	bitPhysY
	bitPhysAngle
	bitPhysRadius
)

const (
	bitHealthHP uint16 = 1 << iota
	bitHealthMaxHP
)

const (
	bitMobID uint16 = 1 << iota
	bitMobRarity
)

const (
	bitFlowerLevel uint16 = 1 << iota
	bitFlowerDead
	bitFlowerFace
)

const (
	bitPetalID uint16 = 1 << iota
	bitPetalRarity
	bitPetalDetached
)

// lastSeen remembers a viewer's last-serialized field values for one
// remote entity, so the next tick's pass can compute a per-field dirty
// bitmask instead of resending everything (spec §4.7 delta encoding).
type lastSeen struct {
	physX, physY, physAngle, physRadius float32
	healthHP, healthMaxHP               float32
	mobID                               int32
	mobRarity                           int32
	flowerLevel                         int32
	flowerDead                          bool
	flowerFace                          uint8
	petalID                             int32
	petalRarity                         int32
	petalDetached                       bool
}

// ViewState holds one client's per-entity delta-tracking and view-filter
// bitset (spec §4.7: "each PlayerInfo maintains an entities_in_view
// bitset").
type ViewState struct {
	seen map[uint16]*lastSeen
	inView map[uint16]bool
}

// NewViewState creates an empty per-client view/delta tracker.
func NewViewState() *ViewState {
	return &ViewState{seen: make(map[uint16]*lastSeen), inView: make(map[uint16]bool)}
}

// RecomputeView adds/removes entities from the view bitset based on
// distance from (camX, camY): an entity is in view when it lies within fov
// plus a fixed 256-unit margin of the camera, with fov used directly as a
// radius (spec §4.7).
func (v *ViewState) RecomputeView(world *ecs.World, camX, camY, fov float64) {
	margin := 256.0
	radius := fov + margin

	next := make(map[uint16]bool, len(v.inView))
	world.Physical.ForEach(func(e ecs.Entity, p *ecs.Physical) {
		dx, dy := p.X-camX, p.Y-camY
		if dx*dx+dy*dy <= radius*radius {
			next[e.Index] = true
		}
	})
	v.inView = next
}

// InView reports whether entity index i is currently in the client's view.
func (v *ViewState) InView(i uint16) bool { return v.inView[i] }

// WriteDeltaSnapshot serializes, for each component kind, a varuint count
// followed by (entity-hash, bitmask, changed fields) for every in-view
// entity whose tracked fields changed since the last call (or that just
// entered view, which always serializes the full bitmask).
func WriteDeltaSnapshot(w *wire.Writer, world *ecs.World, view *ViewState) {
	writePhysicalDeltas(w, world, view)
	writeHealthDeltas(w, world, view)
	writeMobDeltas(w, world, view)
	writeFlowerDeltas(w, world, view)
	writePetalDeltas(w, world, view)
}

func (v *ViewState) entryFor(idx uint16) (*lastSeen, bool) {
	entry, existed := v.seen[idx]
	if !existed {
		entry = &lastSeen{}
		v.seen[idx] = entry
	}
	return entry, existed
}

func writePhysicalDeltas(w *wire.Writer, world *ecs.World, view *ViewState) {
	type pending struct {
		e    ecs.Entity
		mask uint16
		p    *ecs.Physical
	}
	var entries []pending

	world.Physical.ForEach(func(e ecs.Entity, p *ecs.Physical) {
		if !view.InView(e.Index) {
			return
		}
		entry, existed := view.entryFor(e.Index)
		var mask uint16
		if !existed || float32(p.X) != entry.physX {
			mask |= bitPhysX
		}
		if !existed || float32(p.Y) != entry.physY {
			mask |= bitPhysY
		}
		if !existed || float32(p.Angle) != entry.physAngle {
			mask |= bitPhysAngle
		}
		if !existed || float32(p.Radius) != entry.physRadius {
			mask |= bitPhysRadius
		}
		if mask == 0 {
			return
		}
		entry.physX, entry.physY, entry.physAngle, entry.physRadius =
			float32(p.X), float32(p.Y), float32(p.Angle), float32(p.Radius)
		entries = append(entries, pending{e: e, mask: mask, p: p})
	})

	w.Varuint(uint64(len(entries)))
	for _, pe := range entries {
		w.EntityHash(pe.e.Index, pe.e.Generation)
		w.Uint16(pe.mask)
		if pe.mask&bitPhysX != 0 {
			w.Float32(float32(pe.p.X))
		}
		if pe.mask&bitPhysY != 0 {
			w.Float32(float32(pe.p.Y))
		}
		if pe.mask&bitPhysAngle != 0 {
			w.Float32(float32(pe.p.Angle))
		}
		if pe.mask&bitPhysRadius != 0 {
			w.Float32(float32(pe.p.Radius))
		}
	}
}

func writeHealthDeltas(w *wire.Writer, world *ecs.World, view *ViewState) {
	type pending struct {
		e    ecs.Entity
		mask uint16
		h    *ecs.Health
	}
	var entries []pending

	world.Health.ForEach(func(e ecs.Entity, h *ecs.Health) {
		if !view.InView(e.Index) {
			return
		}
		entry, existed := view.entryFor(e.Index)
		var mask uint16
		if !existed || float32(h.HP) != entry.healthHP {
			mask |= bitHealthHP
		}
		if !existed || float32(h.MaxHP) != entry.healthMaxHP {
			mask |= bitHealthMaxHP
		}
		if mask == 0 {
			return
		}
		entry.healthHP, entry.healthMaxHP = float32(h.HP), float32(h.MaxHP)
		entries = append(entries, pending{e: e, mask: mask, h: h})
	})

	w.Varuint(uint64(len(entries)))
	for _, pe := range entries {
		w.EntityHash(pe.e.Index, pe.e.Generation)
		w.Uint16(pe.mask)
		if pe.mask&bitHealthHP != 0 {
			w.Float32(float32(pe.h.HP))
		}
		if pe.mask&bitHealthMaxHP != 0 {
			w.Float32(float32(pe.h.MaxHP))
		}
	}
}

func writeMobDeltas(w *wire.Writer, world *ecs.World, view *ViewState) {
	type pending struct {
		e    ecs.Entity
		mask uint16
		m    *ecs.Mob
	}
	var entries []pending

	world.Mob.ForEach(func(e ecs.Entity, m *ecs.Mob) {
		if !view.InView(e.Index) {
			return
		}
		entry, existed := view.entryFor(e.Index)
		var mask uint16
		if !existed || int32(m.ID) != entry.mobID {
			mask |= bitMobID
		}
		if !existed || int32(m.Rarity) != entry.mobRarity {
			mask |= bitMobRarity
		}
		if mask == 0 {
			return
		}
		entry.mobID, entry.mobRarity = int32(m.ID), int32(m.Rarity)
		entries = append(entries, pending{e: e, mask: mask, m: m})
	})

	w.Varuint(uint64(len(entries)))
	for _, pe := range entries {
		w.EntityHash(pe.e.Index, pe.e.Generation)
		w.Uint16(pe.mask)
		if pe.mask&bitMobID != 0 {
			w.Varuint(uint64(pe.m.ID))
		}
		if pe.mask&bitMobRarity != 0 {
			w.Uint8(uint8(pe.m.Rarity))
		}
	}
}

func writeFlowerDeltas(w *wire.Writer, world *ecs.World, view *ViewState) {
	type pending struct {
		e    ecs.Entity
		mask uint16
		f    *ecs.Flower
	}
	var entries []pending

	world.Flower.ForEach(func(e ecs.Entity, f *ecs.Flower) {
		if !view.InView(e.Index) {
			return
		}
		entry, existed := view.entryFor(e.Index)
		var mask uint16
		if !existed || int32(f.Level) != entry.flowerLevel {
			mask |= bitFlowerLevel
		}
		if !existed || f.Dead != entry.flowerDead {
			mask |= bitFlowerDead
		}
		if !existed || uint8(f.Face) != entry.flowerFace {
			mask |= bitFlowerFace
		}
		if mask == 0 {
			return
		}
		entry.flowerLevel, entry.flowerDead, entry.flowerFace = int32(f.Level), f.Dead, uint8(f.Face)
		entries = append(entries, pending{e: e, mask: mask, f: f})
	})

	w.Varuint(uint64(len(entries)))
	for _, pe := range entries {
		w.EntityHash(pe.e.Index, pe.e.Generation)
		w.Uint16(pe.mask)
		if pe.mask&bitFlowerLevel != 0 {
			w.Varuint(uint64(pe.f.Level))
		}
		if pe.mask&bitFlowerDead != 0 {
			w.Bool(pe.f.Dead)
		}
		if pe.mask&bitFlowerFace != 0 {
			w.Uint8(uint8(pe.f.Face))
		}
	}
}

func writePetalDeltas(w *wire.Writer, world *ecs.World, view *ViewState) {
	type pending struct {
		e    ecs.Entity
		mask uint16
		p    *ecs.Petal
	}
	var entries []pending

	world.Petal.ForEach(func(e ecs.Entity, p *ecs.Petal) {
		if !view.InView(e.Index) {
			return
		}
		entry, existed := view.entryFor(e.Index)
		var mask uint16
		if !existed || int32(p.ID) != entry.petalID {
			mask |= bitPetalID
		}
		if !existed || int32(p.Rarity) != entry.petalRarity {
			mask |= bitPetalRarity
		}
		if !existed || p.Detached != entry.petalDetached {
			mask |= bitPetalDetached
		}
		if mask == 0 {
			return
		}
		entry.petalID, entry.petalRarity, entry.petalDetached = int32(p.ID), int32(p.Rarity), p.Detached
		entries = append(entries, pending{e: e, mask: mask, p: p})
	})

	w.Varuint(uint64(len(entries)))
	for _, pe := range entries {
		w.EntityHash(pe.e.Index, pe.e.Generation)
		w.Uint16(pe.mask)
		if pe.mask&bitPetalID != 0 {
			w.Varuint(uint64(pe.p.ID))
		}
		if pe.mask&bitPetalRarity != 0 {
			w.Uint8(uint8(pe.p.Rarity))
		}
		if pe.mask&bitPetalDetached != 0 {
			w.Bool(pe.p.Detached)
		}
	}
}
