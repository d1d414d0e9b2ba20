package ecs

// Store holds one component type as a dense slice plus a sparse index map,
// mirroring the "dense vector<Entity> + sparse index" layout called for in
// spec §4.1. Iteration via ForEach walks the dense slice in insertion order;
// Get/Add are O(1) via the sparse map.
type Store[T any] struct {
	dense    []T
	entities []Entity       // dense[i] belongs to entities[i]
	sparse   map[uint16]int // entity index -> position in dense
	onFree   func(Entity, *T)
}

// NewStore creates an empty component store. onFree, if non-nil, runs once
// per component during Sweep's free pass (e.g. Mob-free publishing loot).
func NewStore[T any](onFree func(Entity, *T)) *Store[T] {
	return &Store[T]{
		sparse: make(map[uint16]int),
		onFree: onFree,
	}
}

// Has reports whether e has this component attached.
func (s *Store[T]) Has(e Entity) bool {
	_, ok := s.sparse[e.Index]
	return ok
}

// Add attaches a zero-initialized component to e and returns a pointer to it.
// Returns (nil, false) if e already has this component (spec: "fails if
// duplicate").
func (s *Store[T]) Add(e Entity) (*T, bool) {
	if _, exists := s.sparse[e.Index]; exists {
		return nil, false
	}
	var zero T
	s.dense = append(s.dense, zero)
	s.entities = append(s.entities, e)
	pos := len(s.dense) - 1
	s.sparse[e.Index] = pos
	return &s.dense[pos], true
}

// Get returns a pointer to e's component. The caller must have checked Has;
// Get returns nil rather than panicking when missing, which is friendlier to
// production call sites than the source's documented panic-on-misuse design.
func (s *Store[T]) Get(e Entity) *T {
	pos, ok := s.sparse[e.Index]
	if !ok {
		return nil
	}
	return &s.dense[pos]
}

// Remove detaches e's component immediately (used for voluntary detachment,
// e.g. a petal's slot back-pointer clearing, as opposed to entity deletion
// which goes through Sweep). Runs onFree if set.
func (s *Store[T]) Remove(e Entity) {
	pos, ok := s.sparse[e.Index]
	if !ok {
		return
	}
	if s.onFree != nil {
		s.onFree(e, &s.dense[pos])
	}
	last := len(s.dense) - 1
	movedEntity := s.entities[last]
	s.dense[pos] = s.dense[last]
	s.entities[pos] = movedEntity
	s.dense = s.dense[:last]
	s.entities = s.entities[:last]
	if pos != last {
		s.sparse[movedEntity.Index] = pos
	}
	delete(s.sparse, e.Index)
}

// ForEach visits every (entity, component) pair in the dense array in
// insertion order. The spec explicitly allows requesting deletions during
// iteration; since Remove is only actually invoked at Sweep time (via
// FreeAll) for entity-driven deletion, it is always safe to call
// RequestDeletion on the owning ecs.Table mid-iteration.
func (s *Store[T]) ForEach(visit func(Entity, *T)) {
	for i := range s.dense {
		visit(s.entities[i], &s.dense[i])
	}
}

// Len returns the number of live components in the dense array.
func (s *Store[T]) Len() int { return len(s.dense) }

// FreeAll removes every component belonging to one of the given entities,
// running onFree for each. Called once per component type during the
// end-of-tick sweep in World.Sweep.
func (s *Store[T]) FreeAll(freed []Entity) {
	for _, e := range freed {
		s.Remove(e)
	}
}
