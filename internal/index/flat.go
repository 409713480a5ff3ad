package index

import (
	"container/heap"
	"sort"

	"github.com/orneryd/vectordb/internal/vector"
)

// Flat is the exact, O(N) reference implementation of Index. It is the
// ground truth Search results and HNSW recall are measured against.
type Flat struct {
	metric  vector.Metric
	vectors map[uint64]vector.Vector
	// order records insertion order so that ties are broken the same way
	// across repeated invocations with identical input (§4.2 Flat index).
	order map[uint64]int
	seq   int
}

// NewFlat creates an empty Flat index for the given metric.
func NewFlat(metric vector.Metric) *Flat {
	return &Flat{
		metric:  metric,
		vectors: make(map[uint64]vector.Vector),
		order:   make(map[uint64]int),
	}
}

// Add inserts or overwrites the vector for handle.
func (f *Flat) Add(handle uint64, v vector.Vector) error {
	if _, exists := f.vectors[handle]; !exists {
		f.order[handle] = f.seq
		f.seq++
	}
	f.vectors[handle] = v
	return nil
}

// Remove deletes handle from the index. A no-op if handle is absent.
func (f *Flat) Remove(handle uint64) {
	delete(f.vectors, handle)
	delete(f.order, handle)
}

// Len reports the number of indexed vectors.
func (f *Flat) Len() int { return len(f.vectors) }

// Contains reports whether handle is indexed.
func (f *Flat) Contains(handle uint64) bool {
	_, ok := f.vectors[handle]
	return ok
}

// Search computes the comparator score against every stored vector and
// keeps the k best in a bounded max-heap: push, then pop the worst once
// the heap exceeds k. ef is accepted for interface parity with HNSW and
// ignored — Flat has no approximate search width to tune.
func (f *Flat) Search(query vector.Vector, k int, ef int) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}
	best := newMaxResultHeap(k)
	// Visit handles in insertion order so that which of several tied
	// candidates the bounded heap keeps does not depend on map iteration.
	handles := make([]uint64, 0, len(f.vectors))
	for h := range f.vectors {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return f.order[handles[i]] < f.order[handles[j]] })
	for _, h := range handles {
		v := f.vectors[h]
		score, err := f.metric.Comparator(query, v)
		if err != nil {
			return nil, err
		}
		best.Push(candidate{id: h, score: score})
	}

	entries := best.Slice()
	// Stable tie-break: entries with equal score sort by insertion order,
	// independent of map iteration order.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score < entries[j].score
		}
		return f.order[entries[i].id] < f.order[entries[j].id]
	})

	out := make([]Result, len(entries))
	for i, c := range entries {
		d, err := f.metric.Distance(query, f.vectors[c.id])
		if err != nil {
			return nil, err
		}
		out[i] = Result{Handle: c.id, Distance: d}
	}
	return out, nil
}

var _ heap.Interface = (*candidateHeap)(nil)
