package index

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/vectordb/internal/vector"
)

func mustVec(t *testing.T, values ...float32) vector.Vector {
	t.Helper()
	v, err := vector.New(values)
	require.NoError(t, err)
	return v
}

func TestFlatSearchEuclideanScenario(t *testing.T) {
	f := NewFlat(vector.Euclidean)
	require.NoError(t, f.Add(0, mustVec(t, 1, 0, 0)))
	require.NoError(t, f.Add(1, mustVec(t, 0, 1, 0)))
	require.NoError(t, f.Add(2, mustVec(t, 0, 0, 1)))

	results, err := f.Search(mustVec(t, 1, 0, 0), 2, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, uint64(0), results[0].Handle)
	assert.InDelta(t, 0, results[0].Distance, 1e-9)
	assert.InDelta(t, math.Sqrt2, results[1].Distance, 1e-9)
}

func TestFlatRemoveAndContains(t *testing.T) {
	f := NewFlat(vector.Euclidean)
	require.NoError(t, f.Add(0, mustVec(t, 1, 2)))
	assert.True(t, f.Contains(0))
	assert.Equal(t, 1, f.Len())

	f.Remove(0)
	assert.False(t, f.Contains(0))
	assert.Equal(t, 0, f.Len())
	f.Remove(0) // idempotent
}

func TestFlatOverwriteReplacesInPlace(t *testing.T) {
	f := NewFlat(vector.Euclidean)
	require.NoError(t, f.Add(0, mustVec(t, 1, 2)))
	require.NoError(t, f.Add(0, mustVec(t, 9, 9)))
	assert.Equal(t, 1, f.Len())

	results, err := f.Search(mustVec(t, 9, 9), 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0, results[0].Distance, 1e-9)
}

func TestFlatIsExactAgainstBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	f := NewFlat(vector.Euclidean)

	n, dim := 200, 16
	vecs := make([]vector.Vector, n)
	for i := 0; i < n; i++ {
		raw := make([]float32, dim)
		for j := range raw {
			raw[j] = float32(rng.NormFloat64())
		}
		vecs[i] = mustVec(t, raw...)
		require.NoError(t, f.Add(uint64(i), vecs[i]))
	}

	query := vecs[0]
	k := 10

	type scored struct {
		handle uint64
		dist   float64
	}
	want := make([]scored, n)
	for i, v := range vecs {
		d, err := vector.Euclidean.Distance(query, v)
		require.NoError(t, err)
		want[i] = scored{handle: uint64(i), dist: d}
	}
	sort.Slice(want, func(i, j int) bool { return want[i].dist < want[j].dist })
	want = want[:k]

	got, err := f.Search(query, k, 0)
	require.NoError(t, err)
	require.Len(t, got, k)
	for i := range got {
		assert.InDelta(t, want[i].dist, got[i].Distance, 1e-9)
	}
}

func TestHNSWInsertSearchRemove(t *testing.T) {
	h := New(vector.Euclidean, DefaultConfig())
	require.NoError(t, h.Add(0, mustVec(t, 1, 0, 0)))
	require.NoError(t, h.Add(1, mustVec(t, 0, 1, 0)))
	require.NoError(t, h.Add(2, mustVec(t, 0, 0, 1)))

	assert.Equal(t, 3, h.Len())
	assert.True(t, h.Contains(1))

	results, err := h.Search(mustVec(t, 1, 0, 0), 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(0), results[0].Handle)

	h.Remove(0)
	assert.Equal(t, 2, h.Len())
	assert.False(t, h.Contains(0))

	results, err = h.Search(mustVec(t, 1, 0, 0), 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NotEqual(t, uint64(0), results[0].Handle)
}

func TestHNSWEmptyIndexSearchReturnsNothing(t *testing.T) {
	h := New(vector.Euclidean, DefaultConfig())
	results, err := h.Search(mustVec(t, 1, 2), 5, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWSearchRespectsK(t *testing.T) {
	h := New(vector.Euclidean, DefaultConfig())
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		h.Add(uint64(i), mustVec(t, float32(rng.NormFloat64()), float32(rng.NormFloat64())))
	}
	results, err := h.Search(mustVec(t, 0, 0), 5, 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 5)
}

func TestHNSWDistancesAreNonDecreasing(t *testing.T) {
	h := New(vector.Euclidean, DefaultConfig())
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 200; i++ {
		h.Add(uint64(i), mustVec(t, float32(rng.NormFloat64()), float32(rng.NormFloat64()), float32(rng.NormFloat64())))
	}
	results, err := h.Search(mustVec(t, 0, 0, 0), 20, 50)
	require.NoError(t, err)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
}

func TestMaxResultHeapEvictsWorstOnOverflow(t *testing.T) {
	h := newMaxResultHeap(2)
	h.Push(candidate{id: 1, score: 5})
	h.Push(candidate{id: 2, score: 1})
	h.Push(candidate{id: 3, score: 3})

	assert.Equal(t, 2, h.Len())
	worst, ok := h.Worst()
	require.True(t, ok)
	assert.Equal(t, uint64(3), worst.id)

	entries := h.Slice()
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(2), entries[0].id)
	assert.Equal(t, uint64(3), entries[1].id)
}

func TestMinCandidateQueueOrdersAscending(t *testing.T) {
	q := newMinCandidateQueue(4)
	q.Push(candidate{id: 1, score: 5})
	q.Push(candidate{id: 2, score: 1})
	q.Push(candidate{id: 3, score: 3})

	assert.Equal(t, uint64(2), q.Peek().id)
	assert.Equal(t, uint64(2), q.Pop().id)
	assert.Equal(t, uint64(3), q.Pop().id)
	assert.Equal(t, uint64(1), q.Pop().id)
}
