package index

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/orneryd/vectordb/internal/vector"
)

// Config holds the tunable HNSW parameters.
type Config struct {
	// M is the max edges per node per layer on layers >= 1. Layer 0 gets
	// 2*M, which is the standard HNSW over-provisioning for the base layer.
	M int
	// EfConstruction is the search width used while inserting.
	EfConstruction int
	// EfSearch is the default search width used while querying.
	EfSearch int
	// MaxLayers bounds how many layers a node's sampled level may reach.
	MaxLayers int
}

// DefaultConfig returns the parameters used when a caller does not override
// them: M=16, efConstruction=200, efSearch=100, maxLayers=16.
func DefaultConfig() Config {
	return Config{
		M:              16,
		EfConstruction: 200,
		EfSearch:       100,
		MaxLayers:      16,
	}
}

// node is one record's representation inside the graph. Nodes are looked
// up by the integer handle the vector store assigns, keeping the graph
// free of ownership cycles: adjacency is a list of handles, not pointers.
type node struct {
	v         vector.Vector
	layer     int
	neighbors [][]uint64 // neighbors[l] holds this node's edges on layer l
}

// HNSW is a layered proximity graph supporting incremental insertion,
// deletion, and approximate k-NN search with tunable recall/latency.
//
// A single coarse RWMutex guards the whole graph: searches take the reader
// (so they run concurrently with each other), inserts and deletes take the
// writer. This is the simple option the design deliberately picks over
// finer-grained per-node locking.
type HNSW struct {
	cfg    Config
	metric vector.Metric

	mu         sync.RWMutex
	nodes      map[uint64]*node
	entryPoint uint64
	hasEntry   bool

	rng *rand.Rand
}

// New creates an empty HNSW index for the given metric and configuration.
func New(metric vector.Metric, cfg Config) *HNSW {
	if cfg.M < 2 {
		cfg.M = 2
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = DefaultConfig().EfConstruction
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = DefaultConfig().EfSearch
	}
	if cfg.MaxLayers <= 0 {
		cfg.MaxLayers = DefaultConfig().MaxLayers
	}
	return &HNSW{
		cfg:    cfg,
		metric: metric,
		nodes:  make(map[uint64]*node),
		rng:    rand.New(rand.NewSource(1)),
	}
}

// Len reports the number of indexed handles.
func (h *HNSW) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.nodes)
}

// Contains reports whether handle is indexed.
func (h *HNSW) Contains(handle uint64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.nodes[handle]
	return ok
}

func (h *HNSW) layerCapacity(layer int) int {
	if layer == 0 {
		return 2 * h.cfg.M
	}
	return h.cfg.M
}

// sampleLevel draws L = floor(-ln(U) * (1/ln(m))), U uniform on (0,1],
// clamped to maxLayers-1.
func (h *HNSW) sampleLevel() int {
	u := h.rng.Float64()
	if u <= 0 {
		u = 1e-12
	}
	level := int(math.Floor(-math.Log(u) / math.Log(float64(h.cfg.M))))
	if level > h.cfg.MaxLayers-1 {
		level = h.cfg.MaxLayers - 1
	}
	if level < 0 {
		level = 0
	}
	return level
}

// Add inserts or overwrites the vector for handle. Overwrite is implemented
// as remove-then-reinsert, matching the Vector Store's "re-insertion
// replaces in place" contract.
func (h *HNSW) Add(handle uint64, v vector.Vector) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.nodes[handle]; exists {
		h.removeLocked(handle)
	}

	level := h.sampleLevel()
	n := &node{v: v, layer: level, neighbors: make([][]uint64, level+1)}
	h.nodes[handle] = n

	if !h.hasEntry {
		h.entryPoint = handle
		h.hasEntry = true
		return nil
	}

	epHandle := h.entryPoint
	epLayer := h.nodes[epHandle].layer

	cur := epHandle
	if epLayer > level {
		cur = h.greedyDescend(v, epHandle, epLayer, level)
	}

	top := level
	if epLayer < top {
		top = epLayer
	}
	for l := top; l >= 0; l-- {
		results := h.searchLayer(v, cur, h.cfg.EfConstruction, l)
		capacity := h.layerCapacity(l)
		selected := h.selectNeighbors(v, results, capacity)
		n.neighbors[l] = selected
		for _, nbHandle := range selected {
			h.addBacklink(nbHandle, handle, l, h.layerCapacity(l))
		}
		if len(results) > 0 {
			cur = results[0].id
		}
	}

	if level > epLayer {
		h.entryPoint = handle
	}
	return nil
}

// greedyDescend repeatedly moves to the neighbor closest to query until no
// neighbor improves distance, on each layer from fromLayer down to (but
// excluding) toLayer. Used for the coarse routing portion of both insert
// and search.
func (h *HNSW) greedyDescend(query vector.Vector, entry uint64, fromLayer, toLayer int) uint64 {
	current := entry
	for l := fromLayer; l > toLayer; l-- {
		for {
			n := h.nodes[current]
			if l >= len(n.neighbors) {
				break
			}
			currentScore, _ := h.metric.Comparator(query, n.v)
			improved := false
			for _, nb := range n.neighbors[l] {
				score, _ := h.metric.Comparator(query, h.nodes[nb].v)
				if score < currentScore {
					current = nb
					currentScore = score
					improved = true
				}
			}
			if !improved {
				break
			}
		}
	}
	return current
}

// searchLayer performs the layer-local best-first search: a min-heap of
// candidates to explore, seeded with entry, and a max-heap of up to ef
// nearest found so far. It returns the result set ordered best-first.
func (h *HNSW) searchLayer(query vector.Vector, entry uint64, ef int, layer int) []candidate {
	visited := map[uint64]bool{entry: true}
	entryScore, _ := h.metric.Comparator(query, h.nodes[entry].v)

	candidates := newMinCandidateQueue(ef)
	candidates.Push(candidate{id: entry, score: entryScore})

	results := newMaxResultHeap(ef)
	results.Push(candidate{id: entry, score: entryScore})

	for candidates.Len() > 0 {
		c := candidates.Pop()
		if worst, ok := results.Worst(); ok && results.Full() && c.score > worst.score {
			break
		}

		n := h.nodes[c.id]
		if layer >= len(n.neighbors) {
			continue
		}
		for _, nb := range n.neighbors[layer] {
			if visited[nb] {
				continue
			}
			visited[nb] = true

			nbNode := h.nodes[nb]
			score, _ := h.metric.Comparator(query, nbNode.v)

			worst, full := results.Worst()
			if !full || score < worst.score {
				candidates.Push(candidate{id: nb, score: score})
				results.Push(candidate{id: nb, score: score})
			}
		}
	}

	return results.Slice()
}

// selectNeighbors implements the heuristic neighbor pruning pass: iterate
// candidates from best to worst and accept one only if it is closer to the
// new node than to any already-accepted neighbor. This diversifies edges,
// which is what gives the graph its long-range shortcuts. If the heuristic
// leaves fewer than m accepted, the remaining slots are filled from the
// best unaccepted candidates so nodes do not end up under-connected.
func (h *HNSW) selectNeighbors(newVec vector.Vector, cands []candidate, m int) []uint64 {
	if len(cands) <= m {
		out := make([]uint64, len(cands))
		for i, c := range cands {
			out[i] = c.id
		}
		return out
	}

	accepted := make([]candidate, 0, m)
	var rejected []candidate
	for _, c := range cands {
		if len(accepted) >= m {
			rejected = append(rejected, c)
			continue
		}
		good := true
		for _, a := range accepted {
			distToAccepted, _ := h.metric.Comparator(h.nodes[c.id].v, h.nodes[a.id].v)
			if distToAccepted <= c.score {
				good = false
				break
			}
		}
		if good {
			accepted = append(accepted, c)
		} else {
			rejected = append(rejected, c)
		}
	}
	for i := 0; len(accepted) < m && i < len(rejected); i++ {
		accepted = append(accepted, rejected[i])
	}

	out := make([]uint64, len(accepted))
	for i, c := range accepted {
		out[i] = c.id
	}
	return out
}

// addBacklink adds a bidirectional edge from nb to newHandle on layer, and
// re-runs neighbor pruning on nb if its adjacency list now exceeds
// capacity.
func (h *HNSW) addBacklink(nb, newHandle uint64, layer, capacity int) {
	nbNode := h.nodes[nb]
	if layer >= len(nbNode.neighbors) {
		return
	}
	nbNode.neighbors[layer] = append(nbNode.neighbors[layer], newHandle)
	if len(nbNode.neighbors[layer]) <= capacity {
		return
	}

	cands := make([]candidate, 0, len(nbNode.neighbors[layer]))
	for _, other := range nbNode.neighbors[layer] {
		score, _ := h.metric.Comparator(nbNode.v, h.nodes[other].v)
		cands = append(cands, candidate{id: other, score: score})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].score < cands[j].score })
	nbNode.neighbors[layer] = h.selectNeighbors(nbNode.v, cands, capacity)
}

// Search returns at most k results ordered best-first: greedy descent from
// the top layer to layer 1, then a layer-0 best-first search with width
// max(ef, k).
func (h *HNSW) Search(query vector.Vector, k int, ef int) ([]Result, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.hasEntry || k <= 0 {
		return nil, nil
	}

	width := ef
	if width <= 0 {
		width = h.cfg.EfSearch
	}
	if width < k {
		width = k
	}

	epLayer := h.nodes[h.entryPoint].layer
	cur := h.greedyDescend(query, h.entryPoint, epLayer, 0)
	results := h.searchLayer(query, cur, width, 0)
	if len(results) > k {
		results = results[:k]
	}

	out := make([]Result, len(results))
	for i, c := range results {
		d, err := h.metric.Distance(query, h.nodes[c.id].v)
		if err != nil {
			return nil, err
		}
		out[i] = Result{Handle: c.id, Distance: d}
	}
	return out, nil
}

// Remove deletes handle from every neighbor's adjacency list on every
// layer, then deletes the node itself. If handle was the entry point, the
// highest-layer surviving node is promoted, ties broken by smallest
// handle for determinism. This performs no global graph repair: deletion
// is O(degree) per layer, and accumulated deletions degrade recall
// gradually (§9, open question: "Deletion in HNSW").
func (h *HNSW) Remove(handle uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(handle)
}

func (h *HNSW) removeLocked(handle uint64) {
	n, ok := h.nodes[handle]
	if !ok {
		return
	}

	for l := 0; l <= n.layer; l++ {
		for _, nb := range n.neighbors[l] {
			nbNode, ok := h.nodes[nb]
			if !ok || l >= len(nbNode.neighbors) {
				continue
			}
			nbNode.neighbors[l] = removeHandle(nbNode.neighbors[l], handle)
		}
	}

	delete(h.nodes, handle)

	if h.entryPoint == handle {
		h.promoteEntryPoint()
	}
}

func (h *HNSW) promoteEntryPoint() {
	h.hasEntry = false
	bestLayer := -1
	var bestHandle uint64
	for handle, n := range h.nodes {
		if n.layer > bestLayer || (n.layer == bestLayer && (!h.hasEntry || handle < bestHandle)) {
			bestLayer = n.layer
			bestHandle = handle
			h.hasEntry = true
		}
	}
	h.entryPoint = bestHandle
}

func removeHandle(list []uint64, target uint64) []uint64 {
	out := list[:0]
	for _, h := range list {
		if h != target {
			out = append(out, h)
		}
	}
	return out
}

var _ Index = (*HNSW)(nil)
var _ Index = (*Flat)(nil)
