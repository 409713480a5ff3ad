// Package store implements the Vector Store: the component that owns the
// ID<->vector and ID<->metadata maps, dispatches mutations and queries to
// a pluggable index (Flat or HNSW), and — if configured with a data
// directory — durably logs every mutation through the storage engine
// before applying it in memory.
package store

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/orneryd/vectordb/internal/filter"
	"github.com/orneryd/vectordb/internal/index"
	"github.com/orneryd/vectordb/internal/storage"
	"github.com/orneryd/vectordb/internal/vector"
)

// Kind names the seven error kinds the store surfaces. The HTTP adapter
// maps these onto status codes; the CLI maps them onto exit codes.
type Kind string

const (
	KindDimensionMismatch Kind = "dimension_mismatch"
	KindInvalidVector     Kind = "invalid_vector"
	KindNotFound          Kind = "not_found"
	KindSerializationError Kind = "serialization_error"
	KindIOError           Kind = "io_error"
	KindInvalidFilter     Kind = "invalid_filter"
	KindInvalidParameter  Kind = "invalid_parameter"
)

// Error is the store-level error taxonomy every public method returns, so
// callers (the HTTP adapter, the CLI) can dispatch on Kind without
// string-matching or type-asserting the wrapped cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("store: %s: %v", e.Kind, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, err error) *Error { return &Error{Kind: kind, Err: err} }

// IndexKind selects which Index implementation a Store is built around.
type IndexKind string

const (
	IndexFlat IndexKind = "flat"
	IndexHNSW IndexKind = "hnsw"
)

// Record is the full (id, vector, metadata) triple: what Get returns and
// what BatchInsert accepts. List returns bare IDs and Search returns
// SearchResult values.
type Record struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
}

// SearchResult is one ranked hit from Search/BatchSearch.
type SearchResult struct {
	ID       string
	Distance float64
	Metadata map[string]any
}

// Options configures a new Store.
type Options struct {
	Metric    vector.Metric
	IndexKind IndexKind
	HNSW      index.Config // only consulted when IndexKind == IndexHNSW
	// DataDir, if non-empty, enables persistence: a storage.Engine is
	// opened over this directory and every mutation is durably logged
	// before being applied in memory.
	DataDir       string
	SnapshotEvery int
}

// Store is the Vector Store: the single logical object the HTTP adapter
// and CLI operate on. All exported methods are safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	metric   vector.Metric
	idx      index.Index
	vectors  map[string]vector.Vector
	metadata map[string]map[string]any
	handles  map[string]uint64
	ids      map[uint64]string
	nextH    uint64
	dim      int
	dimSet   bool

	engine *storage.Engine
}

// Open constructs a Store per opts. If opts.DataDir is set, it opens the
// storage engine over that directory and replays any prior WAL/snapshot
// state into the new store before returning, per §4.7.
func Open(opts Options) (*Store, error) {
	s := &Store{
		metric:   opts.Metric,
		vectors:  make(map[string]vector.Vector),
		metadata: make(map[string]map[string]any),
		handles:  make(map[string]uint64),
		ids:      make(map[uint64]string),
	}

	switch opts.IndexKind {
	case IndexHNSW:
		cfg := opts.HNSW
		if cfg == (index.Config{}) {
			cfg = index.DefaultConfig()
		}
		s.idx = index.New(opts.Metric, cfg)
	default:
		s.idx = index.NewFlat(opts.Metric)
	}

	if opts.DataDir == "" {
		return s, nil
	}

	engine, err := storage.Open(opts.DataDir, (*engineTarget)(s), storage.Options{SnapshotEvery: opts.SnapshotEvery})
	if err != nil {
		return nil, newError(KindIOError, err)
	}
	s.engine = engine
	return s, nil
}

// Close closes the WAL and releases the data-directory lock (if
// persistence is enabled). It does not write a snapshot: entries logged
// since the last checkpoint stay in wal.log and are replayed on Open.
func (s *Store) Close() error {
	if s.engine == nil {
		return nil
	}
	if err := s.engine.Close(); err != nil {
		return newError(KindIOError, err)
	}
	return nil
}

// Insert validates and stores (id, v, metadata), overwriting any prior
// record under the same id. If persistence is enabled, the mutation is
// WAL-logged and fsynced before it is applied in memory (§4.4).
func (s *Store) Insert(id string, raw []float32, metadata map[string]any) error {
	if id == "" {
		return newError(KindInvalidParameter, fmt.Errorf("id must not be empty"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkDimension(len(raw)); err != nil {
		return err
	}

	v, err := vector.New(raw)
	if err != nil {
		return newError(KindInvalidVector, err)
	}
	if s.metric == vector.Cosine && v.IsZero() {
		return newError(KindInvalidVector, vector.ErrZeroVector)
	}

	if s.engine != nil {
		if err := s.engine.Insert(id, raw, metadata); err != nil {
			return newError(KindIOError, err)
		}
		return nil
	}
	return s.applyInsertLocked(id, v, metadata)
}

// Delete removes id if present. Idempotent: deleting an absent id
// succeeds and, when persistence is enabled, still appends a WAL entry
// so replay ordering is preserved (§4.4).
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil {
		if err := s.engine.Delete(id); err != nil {
			return newError(KindIOError, err)
		}
		return nil
	}
	return s.applyDeleteLocked(id)
}

// Get reads through the maps for id.
func (s *Store) Get(id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vectors[id]
	if !ok {
		return Record{}, newError(KindNotFound, fmt.Errorf("id %q not found", id))
	}
	return Record{ID: id, Vector: []float32(v), Metadata: s.metadata[id]}, nil
}

// List returns a snapshot of current IDs, in no particular order.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.vectors))
	for id := range s.vectors {
		out = append(out, id)
	}
	return out
}

// Search dispatches query to the index, applies f (if non-nil), and
// truncates to the k best matches. Per §4.3, the index is asked for
// max(k, ef_search) candidates so filtering has room to work with before
// truncation.
func (s *Store) Search(query []float32, k int, f *filter.Filter, efSearch int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, newError(KindInvalidParameter, fmt.Errorf("k must be > 0"))
	}
	if f != nil {
		if err := f.Validate(); err != nil {
			return nil, newError(KindInvalidFilter, err)
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkDimension(len(query)); err != nil {
		return nil, err
	}
	qv, err := vector.New(query)
	if err != nil {
		return nil, newError(KindInvalidVector, err)
	}

	width := k
	if efSearch > width {
		width = efSearch
	}

	results, err := s.idx.Search(qv, width, efSearch)
	if err != nil {
		return nil, newError(KindInvalidParameter, err)
	}

	out := make([]SearchResult, 0, k)
	for _, r := range results {
		id, ok := s.ids[r.Handle]
		if !ok {
			continue
		}
		md := s.metadata[id]
		if f != nil {
			match, err := filter.Evaluate(*f, md)
			if err != nil {
				return nil, newError(KindInvalidFilter, err)
			}
			if !match {
				continue
			}
		}
		out = append(out, SearchResult{ID: id, Distance: r.Distance, Metadata: md})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// BatchInsert applies entries sequentially, in request order, so
// durability order matches request order (§5). The first failing entry
// stops the batch and is returned with its index.
func (s *Store) BatchInsert(entries []Record) (inserted int, err error) {
	for i, e := range entries {
		if insertErr := s.Insert(e.ID, e.Vector, e.Metadata); insertErr != nil {
			return i, insertErr
		}
	}
	return len(entries), nil
}

// BatchSearch runs each query concurrently over a worker pool sized to
// available cores, writing results into a preallocated slice by index so
// response order matches request order regardless of completion order
// (§5).
func (s *Store) BatchSearch(queries [][]float32, k int, f *filter.Filter, efSearch int) ([][]SearchResult, error) {
	out := make([][]SearchResult, len(queries))

	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			results, err := s.Search(q, k, f, efSearch)
			if err != nil {
				return err
			}
			out[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) checkDimension(n int) error {
	if n == 0 {
		return newError(KindInvalidVector, fmt.Errorf("vector must not be empty"))
	}
	if !s.dimSet {
		return nil
	}
	if n != s.dim {
		return newError(KindDimensionMismatch, fmt.Errorf("expected dimension %d, got %d", s.dim, n))
	}
	return nil
}

// applyInsertLocked performs the in-memory half of an insert: map and
// index updates. Called with mu held, either directly (no persistence)
// or via engineTarget during a logged mutation or WAL/snapshot replay.
func (s *Store) applyInsertLocked(id string, v vector.Vector, metadata map[string]any) error {
	if !s.dimSet {
		s.dim = len(v)
		s.dimSet = true
	}

	handle, exists := s.handles[id]
	if !exists {
		handle = s.nextH
		s.nextH++
		s.handles[id] = handle
		s.ids[handle] = id
	}

	if err := s.idx.Add(handle, v); err != nil {
		return newError(KindInvalidVector, err)
	}
	s.vectors[id] = v
	if metadata != nil {
		s.metadata[id] = metadata
	} else {
		delete(s.metadata, id)
	}
	return nil
}

func (s *Store) applyDeleteLocked(id string) error {
	handle, ok := s.handles[id]
	if !ok {
		return nil
	}
	s.idx.Remove(handle)
	delete(s.vectors, id)
	delete(s.metadata, id)
	delete(s.handles, id)
	delete(s.ids, handle)
	return nil
}

// engineTarget adapts *Store to storage.Target without exposing the
// locked-application methods on Store's public surface.
type engineTarget Store

func (t *engineTarget) ApplyInsert(id string, raw []float32, metadata map[string]any) error {
	s := (*Store)(t)
	v, err := vector.New(raw)
	if err != nil {
		return err
	}
	return s.applyInsertLocked(id, v, metadata)
}

func (t *engineTarget) ApplyDelete(id string) error {
	s := (*Store)(t)
	return s.applyDeleteLocked(id)
}

func (t *engineTarget) State() (dimension int, metric string, records []storage.Record) {
	s := (*Store)(t)
	records = make([]storage.Record, 0, len(s.vectors))
	for id, v := range s.vectors {
		records = append(records, storage.Record{ID: id, Vector: []float32(v), Metadata: s.metadata[id]})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return s.dim, s.metric.String(), records
}
