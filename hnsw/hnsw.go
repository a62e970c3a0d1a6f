// Package hnsw implements a Hierarchical Navigable Small World graph for
// approximate nearest neighbour search over float32 vectors.
//
// Node ids are dense: the id returned by Insert is the number of prior
// insertions, starting at zero. Level draws come from a graph-local source
// with a fixed seed, so rebuilding a graph from the same vector sequence
// reproduces the same structure and the same search results.
//
// A Graph is not safe for concurrent use; callers synchronize access.
package hnsw

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand"

	"github.com/bits-and-blooms/bitset"

	"github.com/aimdisk/aimdisk/metric"
)

// ErrDimensionMismatch reports a vector whose length differs from the
// dimensionality fixed by the graph's first insertion.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("hnsw: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Options configures graph construction.
type Options struct {
	// M is the number of connections established for every inserted element
	// per layer. The bottom layer allows 2*M.
	M int

	// EFConstruction is the size of the dynamic candidate list while
	// inserting. Larger values build a better graph at higher cost.
	EFConstruction int

	// Heuristic selects the spread-aware neighbour selection algorithm
	// instead of plain nearest-M.
	Heuristic bool

	// Distance is the metric nodes are compared with.
	Distance metric.DistanceFunction

	// Seed feeds the level generator.
	Seed int64
}

// DefaultOptions match the construction parameters the disk format was
// tuned with.
var DefaultOptions = Options{
	M:              16,
	EFConstruction: 200,
	Heuristic:      true,
	Distance:       metric.DistanceFunctionCosine,
	Seed:           1,
}

type node struct {
	connections [][]uint32 // neighbour ids per layer, best match first
	vector      []float32
	magnitude   float32 // cached norm for the cosine kernel
	layer       int
}

// Candidate is one search hit.
type Candidate struct {
	ID       uint32
	Distance float32
}

// Graph is an in-memory HNSW index. The vector dimensionality is fixed by
// the first inserted element.
type Graph struct {
	dimension int
	mmax      int     // max connections per element per layer
	mmax0     int     // max for the bottom layer
	ml        float64 // normalization factor for level generation
	ep        uint32  // entry point, the node on the highest layer
	maxLevel  int

	nodes []*node

	rng    *rand.Rand
	distFn metric.DistanceFunc
	opts   Options
}

// New creates an empty graph.
func New(optFns ...func(o *Options)) *Graph {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.M < 2 {
		// M == 1 would make ml divide by log(1)
		opts.M = 2
	}

	distFn := opts.Distance.Function()
	if distFn == nil {
		distFn = metric.CosineDistance
	}

	return &Graph{
		mmax:   opts.M,
		mmax0:  2 * opts.M,
		ml:     1 / math.Log(float64(opts.M)),
		rng:    rand.New(rand.NewSource(opts.Seed)),
		distFn: distFn,
		opts:   opts,
	}
}

// Len returns the number of inserted elements.
func (g *Graph) Len() int { return len(g.nodes) }

// Dimension returns the vector dimensionality, or 0 before the first insert.
func (g *Graph) Dimension() int { return g.dimension }

// Options returns the resolved construction options.
func (g *Graph) Options() Options { return g.opts }

// Insert adds v to the graph and returns its id, which equals the number of
// elements inserted before it.
func (g *Graph) Insert(v []float32) (uint32, error) {
	if len(v) == 0 {
		return 0, fmt.Errorf("hnsw: cannot insert empty vector")
	}
	if len(g.nodes) > 0 && len(v) != g.dimension {
		return 0, &ErrDimensionMismatch{Expected: g.dimension, Actual: len(v)}
	}

	vec := make([]float32, len(v))
	copy(vec, v)

	id := uint32(len(g.nodes))
	n := &node{
		vector:    vec,
		magnitude: metric.Magnitude(vec),
		layer:     g.randLevel(),
	}
	n.connections = make([][]uint32, n.layer+1)

	if len(g.nodes) == 0 {
		g.dimension = len(vec)
		g.nodes = append(g.nodes, n)
		g.ep = id
		g.maxLevel = n.layer
		return id, nil
	}

	// Greedy descent through the layers above the new node's top layer.
	currID, currDist := g.descend(vec, n.magnitude, n.layer)

	for level := min(n.layer, g.maxLevel); level >= 0; level-- {
		results := g.searchLayer(vec, n.magnitude, currID, currDist, g.opts.EFConstruction, level)
		g.selectNeighbours(results, g.mmax)

		neighbours := make([]uint32, results.Len())
		for i := results.Len() - 1; i >= 0; i-- {
			neighbours[i] = heap.Pop(results).(queueItem).id
		}
		n.connections[level] = neighbours

		// The closest match carries down as the next layer's entry point.
		if len(neighbours) > 0 {
			currID = neighbours[0]
			currDist = g.distanceToQuery(vec, n.magnitude, currID)
		}
	}

	g.nodes = append(g.nodes, n)

	// Reverse links make the new node visible.
	for level := min(n.layer, g.maxLevel); level >= 0; level-- {
		for _, neighbour := range n.connections[level] {
			g.link(neighbour, id, level)
		}
	}

	if n.layer > g.maxLevel {
		g.ep = id
		g.maxLevel = n.layer
	}

	return id, nil
}

// Search returns the k nearest neighbours of q ordered by increasing
// distance. The beam keeps at least ef candidates on the bottom layer; ef
// values below k are raised to k. An empty graph yields no results.
func (g *Graph) Search(q []float32, k, ef int) ([]Candidate, error) {
	if k <= 0 {
		return nil, fmt.Errorf("hnsw: k must be positive, got %d", k)
	}
	if len(g.nodes) == 0 {
		return nil, nil
	}
	if len(q) != g.dimension {
		return nil, &ErrDimensionMismatch{Expected: g.dimension, Actual: len(q)}
	}
	if ef < k {
		ef = k
	}

	qmag := metric.Magnitude(q)
	currID, currDist := g.descend(q, qmag, 0)

	results := g.searchLayer(q, qmag, currID, currDist, ef, 0)

	for results.Len() > k {
		heap.Pop(results)
	}

	out := make([]Candidate, results.Len())
	for i := results.Len() - 1; i >= 0; i-- {
		item := heap.Pop(results).(queueItem)
		out[i] = Candidate{ID: item.id, Distance: item.distance}
	}

	return out, nil
}

// BruteSearch exhaustively scans every node. It exists to verify the
// approximate results and for tiny graphs where the beam overhead is not
// worth paying.
func (g *Graph) BruteSearch(q []float32, k int) ([]Candidate, error) {
	if k <= 0 {
		return nil, fmt.Errorf("hnsw: k must be positive, got %d", k)
	}
	if len(g.nodes) == 0 {
		return nil, nil
	}
	if len(q) != g.dimension {
		return nil, &ErrDimensionMismatch{Expected: g.dimension, Actual: len(q)}
	}

	qmag := metric.Magnitude(q)

	results := newMaxQueue()
	for id := range g.nodes {
		d := g.distanceToQuery(q, qmag, uint32(id))

		if results.Len() < k {
			heap.Push(results, queueItem{id: uint32(id), distance: d})
			continue
		}
		if d < results.top().distance {
			heap.Pop(results)
			heap.Push(results, queueItem{id: uint32(id), distance: d})
		}
	}

	out := make([]Candidate, results.Len())
	for i := results.Len() - 1; i >= 0; i-- {
		item := heap.Pop(results).(queueItem)
		out[i] = Candidate{ID: item.id, Distance: item.distance}
	}

	return out, nil
}

// descend greedily walks the layers above target toward q and returns the
// closest node seen with its distance.
func (g *Graph) descend(q []float32, qmag float32, target int) (uint32, float32) {
	currID := g.ep
	currDist := g.distanceToQuery(q, qmag, currID)

	for level := g.maxLevel; level > target; level-- {
		changed := true
		for changed {
			changed = false

			for _, nid := range g.connectionsAt(currID, level) {
				d := g.distanceToQuery(q, qmag, nid)
				if d < currDist {
					currID = nid
					currDist = d
					changed = true
				}
			}
		}
	}

	return currID, currDist
}

// searchLayer runs the beam search of a single layer starting from the
// given entry point. It returns a max-heap of at most ef candidates,
// farthest on top.
func (g *Graph) searchLayer(q []float32, qmag float32, epID uint32, epDist float32, ef, level int) *priorityQueue {
	var visited bitset.BitSet
	visited.Set(uint(epID))

	candidates := newMinQueue()
	heap.Push(candidates, queueItem{id: epID, distance: epDist})

	results := newMaxQueue()
	heap.Push(results, queueItem{id: epID, distance: epDist})

	for candidates.Len() > 0 {
		curr := heap.Pop(candidates).(queueItem)
		if curr.distance > results.top().distance {
			break
		}

		for _, nid := range g.connectionsAt(curr.id, level) {
			if visited.Test(uint(nid)) {
				continue
			}
			visited.Set(uint(nid))

			d := g.distanceToQuery(q, qmag, nid)
			item := queueItem{id: nid, distance: d}

			if results.Len() < ef {
				heap.Push(results, item)
				heap.Push(candidates, item)
			} else if d < results.top().distance {
				heap.Pop(results)
				heap.Push(results, item)
				heap.Push(candidates, item)
			}
		}
	}

	return results
}

// link adds a reverse edge from id to target at the given level, pruning
// the neighbour list back to the per-level cap when it overflows.
func (g *Graph) link(id, target uint32, level int) {
	maxConnections := g.mmax
	if level == 0 {
		maxConnections = g.mmax0
	}

	n := g.nodes[id]
	n.connections[level] = append(n.connections[level], target)

	if len(n.connections[level]) <= maxConnections {
		return
	}

	results := newMaxQueue()
	for _, cid := range n.connections[level] {
		heap.Push(results, queueItem{id: cid, distance: g.distance(n, g.nodes[cid])})
	}

	g.selectNeighbours(results, maxConnections)

	pruned := make([]uint32, results.Len())
	for i := results.Len() - 1; i >= 0; i-- {
		pruned[i] = heap.Pop(results).(queueItem).id
	}
	n.connections[level] = pruned
}

func (g *Graph) selectNeighbours(results *priorityQueue, m int) {
	if g.opts.Heuristic {
		g.selectNeighboursHeuristic(results, m)
		return
	}

	for results.Len() > m {
		heap.Pop(results)
	}
}

// selectNeighboursHeuristic keeps up to m candidates that sit closer to the
// query than to any already kept candidate, favouring spread over raw
// proximity, then tops up with the nearest discarded ones. When called with
// more than m candidates it leaves exactly m in results.
func (g *Graph) selectNeighboursHeuristic(results *priorityQueue, m int) {
	if results.Len() <= m {
		return
	}

	byDistance := newMinQueue()
	for results.Len() > 0 {
		heap.Push(byDistance, heap.Pop(results).(queueItem))
	}

	kept := make([]queueItem, 0, m)
	discarded := newMinQueue()

	for byDistance.Len() > 0 && len(kept) < m {
		item := heap.Pop(byDistance).(queueItem)

		closerToKept := false
		for _, k := range kept {
			if g.distance(g.nodes[k.id], g.nodes[item.id]) < item.distance {
				closerToKept = true
				break
			}
		}

		if closerToKept {
			heap.Push(discarded, item)
		} else {
			kept = append(kept, item)
		}
	}

	for len(kept) < m && discarded.Len() > 0 {
		kept = append(kept, heap.Pop(discarded).(queueItem))
	}

	for _, item := range kept {
		heap.Push(results, item)
	}
}

func (g *Graph) connectionsAt(id uint32, level int) []uint32 {
	n := g.nodes[id]
	if level >= len(n.connections) {
		return nil
	}
	return n.connections[level]
}

func (g *Graph) distance(a, b *node) float32 {
	return g.distFn(a.vector, b.vector, a.magnitude, b.magnitude)
}

func (g *Graph) distanceToQuery(q []float32, qmag float32, id uint32) float32 {
	n := g.nodes[id]
	return g.distFn(q, n.vector, qmag, n.magnitude)
}

func (g *Graph) randLevel() int {
	r := g.rng.Float64()
	for r == 0 {
		r = g.rng.Float64()
	}
	return int(math.Floor(-math.Log(r) * g.ml))
}
