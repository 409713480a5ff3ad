// Package index provides the Index contract consumed by the vector store,
// plus two implementations: an exact Flat index and an approximate HNSW
// index. Both return results best-first by ascending comparator score:
// ascending distance for Euclidean and Cosine, descending dot product for Dot.
package index

import "container/heap"

// candidate is a single (id, score) pair produced during a search. score is
// always the internal "smaller is better" comparator value, never the raw
// metric distance reported to clients.
type candidate struct {
	id    uint64
	score float64
}

// candidateHeap is a min-heap of candidates ordered by ascending score. It
// backs the HNSW frontier: the next node worth exploring is always the
// cheapest peek.
type candidateHeap []candidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[i].score < h[j].score }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// minCandidateQueue is a thin wrapper around candidateHeap giving it
// peek-without-pop, which is the operation the search loop's termination
// test needs to stay cheap.
type minCandidateQueue struct {
	h candidateHeap
}

func newMinCandidateQueue(capHint int) *minCandidateQueue {
	return &minCandidateQueue{h: make(candidateHeap, 0, capHint)}
}

func (q *minCandidateQueue) Push(c candidate) { heap.Push(&q.h, c) }
func (q *minCandidateQueue) Len() int          { return len(q.h) }
func (q *minCandidateQueue) Pop() candidate    { return heap.Pop(&q.h).(candidate) }
func (q *minCandidateQueue) Peek() candidate   { return q.h[0] }

// maxResultHeap is a bounded max-heap ordered by descending score, used as
// a "best-so-far" set of capacity cap. When full, pushing a better
// candidate evicts the current worst. Peek-without-pop exposes the worst
// element so the caller can cheaply test "is this better than our worst?".
type maxResultHeap struct {
	h   candidateHeap
	cap int
}

func newMaxResultHeap(capacity int) *maxResultHeap {
	return &maxResultHeap{h: make(candidateHeap, 0, capacity), cap: capacity}
}

func (r *maxResultHeap) Len() int { return len(r.h) }
func (r *maxResultHeap) Full() bool { return len(r.h) >= r.cap }

// Worst returns the element with the largest score (the first to be
// evicted), or the zero value and false if the heap is empty.
func (r *maxResultHeap) Worst() (candidate, bool) {
	if len(r.h) == 0 {
		return candidate{}, false
	}
	return r.worstMax(), true
}

// worstMax returns the root of the underlying min-heap with its score
// un-negated. To keep a single heap type simple, maxResultHeap stores
// entries with negated scores internally, so that root is the entry with
// the largest true score.
func (r *maxResultHeap) worstMax() candidate {
	c := r.h[0]
	c.score = -c.score
	return c
}

// Push adds c to the result set, evicting the current worst if the set is
// over capacity afterward. Scores are stored negated so the underlying
// min-heap's root is always the worst (largest true score) entry.
func (r *maxResultHeap) Push(c candidate) {
	neg := c
	neg.score = -c.score
	heap.Push(&r.h, neg)
	if len(r.h) > r.cap {
		heap.Pop(&r.h)
	}
}

// Slice drains the heap into a slice ordered best-first (ascending score).
func (r *maxResultHeap) Slice() []candidate {
	out := make([]candidate, len(r.h))
	tmp := make(candidateHeap, len(r.h))
	copy(tmp, r.h)
	h := &tmp
	for i := len(out) - 1; i >= 0; i-- {
		c := heap.Pop(h).(candidate)
		c.score = -c.score
		out[i] = c
	}
	return out
}
