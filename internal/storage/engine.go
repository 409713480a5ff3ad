package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

const (
	walFileName      = "wal.log"
	snapshotFileName = "snapshot.bin"
	lockFileName     = ".vectordb.lock"

	// defaultSnapshotEvery is the number of WAL entries that accumulate
	// before the engine checkpoints and truncates the log (§4.7).
	defaultSnapshotEvery = 1000
)

// Options configures an Engine.
type Options struct {
	// SnapshotEvery is the WAL entry count that triggers a checkpoint. Zero
	// selects defaultSnapshotEvery.
	SnapshotEvery int
}

// Engine is the durability orchestrator sitting beneath a vector store: it
// owns the data directory, the advisory cross-process lock on it, the WAL,
// and periodic snapshotting. Callers log a mutation through Insert/Delete;
// Engine applies it to the Target only after the WAL append has been
// fsynced, so the two are never out of sync across a crash.
type Engine struct {
	dir  string
	lock *flock.Flock
	wal  *wal
	opts Options

	mu      sync.Mutex
	target  Target
	entries int
}

// Open acquires the advisory lock on dir, loads snapshot.bin (if present)
// and replays wal.log into target, then leaves the WAL open for further
// appends. It returns an error if another process already holds the lock.
func Open(dir string, target Target, opts Options) (*Engine, error) {
	if opts.SnapshotEvery <= 0 {
		opts.SnapshotEvery = defaultSnapshotEvery
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}

	fl := flock.New(filepath.Join(dir, lockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("storage: acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("storage: data dir %s is locked by another process", dir)
	}

	e := &Engine{dir: dir, lock: fl, target: target, opts: opts}

	if err := e.recover(); err != nil {
		_ = fl.Unlock()
		return nil, err
	}

	w, err := openWAL(filepath.Join(dir, walFileName))
	if err != nil {
		_ = fl.Unlock()
		return nil, err
	}
	e.wal = w

	return e, nil
}

// recover loads the snapshot (if any) and replays the WAL on top of it.
// Because the engine always truncates wal.log to empty immediately after a
// successful snapshot, "replay everything currently in wal.log" is always
// correct — there is no separate cursor to reconcile against the
// snapshot's boundary.
func (e *Engine) recover() error {
	snapPath := filepath.Join(e.dir, snapshotFileName)
	sf, ok, err := readSnapshot(snapPath)
	if err != nil {
		return err
	}
	if ok {
		for _, r := range sf.Records {
			if err := e.target.ApplyInsert(r.ID, r.Vector, r.Metadata); err != nil {
				return fmt.Errorf("storage: apply snapshot record %q: %w", r.ID, err)
			}
		}
	}

	walPath := filepath.Join(e.dir, walFileName)
	var replayed int
	err = replayWAL(walPath, func(p walPayload) error {
		replayed++
		switch p.Op {
		case opInsert:
			return e.target.ApplyInsert(p.ID, p.Vector, p.Metadata)
		case opDelete:
			return e.target.ApplyDelete(p.ID)
		default:
			return fmt.Errorf("storage: unknown wal op %q", p.Op)
		}
	})
	if err != nil {
		return err
	}
	e.entries = replayed
	return nil
}

// Insert logs and applies an insert (or overwrite) of id.
func (e *Engine) Insert(id string, v []float32, metadata map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.wal.Append(walPayload{Op: opInsert, ID: id, Vector: v, Metadata: metadata}); err != nil {
		return err
	}
	if err := e.target.ApplyInsert(id, v, metadata); err != nil {
		return err
	}
	e.entries++
	return e.maybeSnapshot()
}

// Delete logs and applies a delete of id.
func (e *Engine) Delete(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.wal.Append(walPayload{Op: opDelete, ID: id}); err != nil {
		return err
	}
	if err := e.target.ApplyDelete(id); err != nil {
		return err
	}
	e.entries++
	return e.maybeSnapshot()
}

// maybeSnapshot checkpoints and truncates the WAL once entries has
// reached the configured threshold. Called with mu held.
func (e *Engine) maybeSnapshot() error {
	if e.entries < e.opts.SnapshotEvery {
		return nil
	}
	dimension, metric, records := e.target.State()
	if err := writeSnapshot(filepath.Join(e.dir, snapshotFileName), snapshotFile{
		Dimension: dimension,
		Metric:    metric,
		Records:   records,
	}); err != nil {
		return err
	}
	if err := e.wal.Truncate(); err != nil {
		return err
	}
	e.entries = 0
	return nil
}

// Snapshot forces an immediate checkpoint regardless of the entry
// threshold, truncating the WAL on success.
func (e *Engine) Snapshot() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = e.opts.SnapshotEvery
	return e.maybeSnapshot()
}

// Close closes the WAL and releases the lock. It does not force a
// snapshot: whatever has not reached the snapshot threshold stays in
// wal.log and is replayed on the next Open, exactly as a crash would
// leave it (§4.7's crash-consistency property makes no distinction
// between an orderly close and a crash for WAL replay purposes).
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	if err := e.wal.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.lock.Unlock(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("storage: close engine: %v", errs)
	}
	return nil
}
