package ecs

import "testing"

func TestAllocAssignsDistinctLiveEntities(t *testing.T) {
	table := NewTable()

	a, err := table.Alloc()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	b, err := table.Alloc()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	if a == b {
		t.Fatalf("Alloc returned the same handle twice: %+v", a)
	}
	if !table.Alive(a) || !table.Alive(b) {
		t.Fatalf("freshly allocated entities must be alive")
	}
}

func TestRequestDeletionIsVisibleBeforeSweepButFreedAfter(t *testing.T) {
	table := NewTable()
	e, _ := table.Alloc()

	table.RequestDeletion(e)
	if table.Alive(e) {
		t.Fatalf("entity marked for deletion must report not alive immediately")
	}
	if !table.Exists(e) {
		t.Fatalf("entity marked for deletion must still Exist until Sweep")
	}

	freed := table.Sweep()
	if len(freed) != 1 || freed[0] != e {
		t.Fatalf("Sweep returned %+v, want [%+v]", freed, e)
	}
	if table.Exists(e) {
		t.Fatalf("entity must not Exist after Sweep")
	}
}

func TestSweptSlotGenerationPreventsStaleHandleReuse(t *testing.T) {
	table := NewTable()
	e, _ := table.Alloc()
	table.RequestDeletion(e)
	table.Sweep()

	reused, err := table.Alloc()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if reused.Index != e.Index {
		// Not guaranteed by the free-list order, but if it is the same
		// slot its generation must have advanced.
		return
	}
	if reused.Generation == e.Generation {
		t.Fatalf("reused slot must bump generation so the old handle is rejected")
	}
	if table.Alive(e) {
		t.Fatalf("the old, pre-sweep handle must not be Alive after its slot is reused")
	}
}

func TestStoreAddGetRemove(t *testing.T) {
	table := NewTable()
	store := NewStore[Health](nil)

	e, _ := table.Alloc()
	health, ok := store.Add(e)
	if !ok || health == nil {
		t.Fatalf("Add failed on a fresh entity")
	}
	health.HP = 42

	if got := store.Get(e); got == nil || got.HP != 42 {
		t.Fatalf("Get returned %+v, want HP=42", got)
	}

	if _, ok := store.Add(e); ok {
		t.Fatalf("Add must fail for an entity that already has the component")
	}

	store.Remove(e)
	if store.Get(e) != nil {
		t.Fatalf("Get must return nil after Remove")
	}
}

func TestStoreFreeAllRunsOnFreeHook(t *testing.T) {
	var freedEntities []Entity
	store := NewStore[Mob](func(e Entity, m *Mob) {
		freedEntities = append(freedEntities, e)
	})

	table := NewTable()
	a, _ := table.Alloc()
	b, _ := table.Alloc()
	store.Add(a)
	store.Add(b)

	store.FreeAll([]Entity{a})

	if len(freedEntities) != 1 || freedEntities[0] != a {
		t.Fatalf("onFree hook ran for %+v, want [%+v]", freedEntities, a)
	}
	if store.Get(a) != nil {
		t.Fatalf("freed entity must no longer resolve")
	}
	if store.Get(b) == nil {
		t.Fatalf("untouched entity must still resolve")
	}
}
