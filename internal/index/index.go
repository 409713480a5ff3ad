package index

import "github.com/orneryd/vectordb/internal/vector"

// Result is one entry of a search, carrying the numeric handle the store
// maps back to an external ID, and the distance reported to clients (the
// raw metric value, not the internal comparator score).
type Result struct {
	Handle   uint64
	Distance float64
}

// Index is the uniform contract the vector store dispatches to. Both Flat
// and HNSW satisfy it, so the store is parameterized over its index choice
// at construction rather than going through a registry.
type Index interface {
	// Add inserts or overwrites the vector for handle.
	Add(handle uint64, v vector.Vector) error
	// Remove is idempotent: removing an absent handle is a no-op.
	Remove(handle uint64)
	// Search returns at most k results ordered best-first. ef is an
	// optional search-width override; 0 means "use the index default".
	Search(query vector.Vector, k int, ef int) ([]Result, error)
	// Len reports the number of indexed handles.
	Len() int
	// Contains reports whether handle is indexed.
	Contains(handle uint64) bool
}
