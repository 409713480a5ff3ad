// Package storage implements the write-ahead log and snapshot durability
// layer beneath the vector store: append-only logging of mutations with
// integrity checks, full-state checkpoints with atomic replace, and
// crash-consistent recovery on open.
package storage

// Record is the durable, wire-level shape of one (id, vector, metadata)
// record — distinct from the store's own Record type so that this package
// has no dependency on the store package; the store adapts between the
// two at its boundary.
type Record struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
}

// Target is what the storage engine replays mutations into and reads
// full state from when it needs to write a snapshot. The vector store
// implements this interface; the engine never reaches into the store's
// internals directly.
type Target interface {
	// ApplyInsert mutates in-memory state only — no further WAL write.
	// Used both for live mutations (after the engine has already logged
	// them) and for WAL/snapshot replay during recovery.
	ApplyInsert(id string, v []float32, metadata map[string]any) error
	// ApplyDelete mutates in-memory state only, symmetric with ApplyInsert.
	ApplyDelete(id string) error
	// State returns the full logical state for snapshotting.
	State() (dimension int, metric string, records []Record)
}
