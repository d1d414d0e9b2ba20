package ecs

// World aggregates the entity table with one Store per component type,
// replacing the source's RR_FOR_EACH_COMPONENT macro with an explicit,
// compile-time-typed registry (spec §9 design notes). Systems take a *World
// and operate on the Stores they need directly.
type World struct {
	Table *Table

	Physical   *Store[Physical]
	Health     *Store[Health]
	Relations  *Store[Relations]
	Mob        *Store[Mob]
	Petal      *Store[Petal]
	Flower     *Store[Flower]
	Drop       *Store[Drop]
	PlayerInfo *Store[PlayerInfo]
	AI         *Store[AI]
	Arena      *Store[Arena]
	Nest       *Store[Nest]
	Web        *Store[Web]
	Centipede  *Store[Centipede]

	// onMobFree is invoked by the Mob store's free hook during World.Sweep
	// (spec §4.1: "the sweep invokes each component's free hook"). The
	// server wires it to ai.System.DropAnchor; loot drops are published by
	// the combat package when a mob dies, not from this hook.
	onMobFree func(Entity, *Mob)
}

// NewWorld creates an empty World with a fresh entity table and one store per
// component type. onMobFree may be nil; set it via SetMobFreeHook before the
// first Sweep if loot publication is needed.
func NewWorld() *World {
	w := &World{Table: NewTable()}
	w.Physical = NewStore[Physical](nil)
	w.Health = NewStore[Health](nil)
	w.Relations = NewStore[Relations](nil)
	w.Mob = NewStore[Mob](func(e Entity, m *Mob) {
		if w.onMobFree != nil {
			w.onMobFree(e, m)
		}
	})
	w.Petal = NewStore[Petal](nil)
	w.Flower = NewStore[Flower](nil)
	w.Drop = NewStore[Drop](nil)
	w.PlayerInfo = NewStore[PlayerInfo](nil)
	w.AI = NewStore[AI](nil)
	w.Arena = NewStore[Arena](nil)
	w.Nest = NewStore[Nest](nil)
	w.Web = NewStore[Web](nil)
	w.Centipede = NewStore[Centipede](nil)
	return w
}

// SetMobFreeHook registers the callback run when a Mob component is freed
// during Sweep, e.g. to publish its loot drops.
func (w *World) SetMobFreeHook(fn func(Entity, *Mob)) { w.onMobFree = fn }

// Alive reports whether e is a currently live, non-deleted entity.
func (w *World) Alive(e Entity) bool { return w.Table.Alive(e) }

// RequestDeletion marks e for deletion; it stays resolvable until Sweep.
func (w *World) RequestDeletion(e Entity) { w.Table.RequestDeletion(e) }

// Alloc allocates a new entity or returns ErrTableFull.
func (w *World) Alloc() (Entity, error) { return w.Table.Alloc() }

// Sweep frees every entity marked for deletion this tick, running each
// component store's free hook, then returns the freed entity list. Call
// exactly once at the end of the tick's system pipeline (spec §4.1, §5).
func (w *World) Sweep() []Entity {
	freed := w.Table.Sweep()
	if len(freed) == 0 {
		return freed
	}
	w.Physical.FreeAll(freed)
	w.Health.FreeAll(freed)
	w.Relations.FreeAll(freed)
	w.Mob.FreeAll(freed)
	w.Petal.FreeAll(freed)
	w.Flower.FreeAll(freed)
	w.Drop.FreeAll(freed)
	w.PlayerInfo.FreeAll(freed)
	w.AI.FreeAll(freed)
	w.Arena.FreeAll(freed)
	w.Nest.FreeAll(freed)
	w.Web.FreeAll(freed)
	w.Centipede.FreeAll(freed)
	return freed
}

// ResolveRootOwner walks the owner chain of e's Relations component to the
// terminal PlayerInfo entity, per the invariant that root_owner is either
// null or a PlayerInfo entity id. Caps at depth 8 to tolerate a malformed
// cycle without looping forever.
func (w *World) ResolveRootOwner(e Entity) Entity {
	cur := e
	for i := 0; i < 8; i++ {
		rel := w.Relations.Get(cur)
		if rel == nil || rel.Owner.IsNull() {
			if w.PlayerInfo.Has(cur) {
				return cur
			}
			return Null
		}
		cur = rel.Owner
	}
	return Null
}
