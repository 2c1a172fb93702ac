package ir

// ID is the arena identifier shared by every pooled entity kind in the
// code container: instructions, blocks, phi nodes, call sites and
// inline-assembly sites each draw from their own monotonically increasing
// counter, so an ID is only meaningful together with the entity kind it
// was allocated for.
type ID uint64

// NoRef is the reserved sentinel meaning "no reference" (KEFIR_ID_NONE in
// the original container). Zero is never handed out by an allocator.
const NoRef ID = 0

// idAllocator hands out dense, strictly increasing, never-reused IDs.
// Deleting an entity does not return its ID to the pool: invariant 7
// requires that identifiers are never reused after deletion so that a
// stale reference can always be detected as "not found" rather than
// silently resolving to a different, later entity.
type idAllocator struct {
	next uint64
}

func (a *idAllocator) alloc() ID {
	a.next++
	return ID(a.next)
}

func (a *idAllocator) peek() ID {
	return ID(a.next + 1)
}
