package dataset

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/clinfold/pkg/errors"
)

// GraphView is a k-nearest-neighbour similarity graph built over a
// Dataset's current continuous features. It is composed with the Dataset
// rather than layered onto it: after UpdateMasks, callers rebuild the view
// explicitly.
//
// Edges never point outside the training partition from the perspective of
// validation and test nodes, so no label information can travel backwards
// through the graph: training nodes link to other training nodes, while
// validation and test nodes link into the training partition only.
type GraphView struct {
	// K is the number of neighbours per node.
	K int
	// ConditionalColumn optionally restricts edges to rows sharing the
	// same raw label of this categorical column (e.g. sex).
	ConditionalColumn string
	// Weighted toggles similarity weights (1/(1+distance)); otherwise all
	// edges weigh 1.
	Weighted bool

	neighbors [][]int
	weights   [][]float64
}

// NewGraphView configures a view; Rebuild populates it.
func NewGraphView(k int, conditionalColumn string, weighted bool) *GraphView {
	return &GraphView{K: k, ConditionalColumn: conditionalColumn, Weighted: weighted}
}

// Neighbors returns the neighbour row indices of row i. Rows outside every
// mask have no neighbours.
func (g *GraphView) Neighbors(i int) []int { return g.neighbors[i] }

// Weights returns the edge weights of row i, aligned with Neighbors.
func (g *GraphView) Weights(i int) []float64 { return g.weights[i] }

// NumEdges returns the total directed edge count.
func (g *GraphView) NumEdges() int {
	n := 0
	for _, nb := range g.neighbors {
		n += len(nb)
	}
	return n
}

// Rebuild recomputes the graph from the dataset's current masks and
// feature matrix.
func (g *GraphView) Rebuild(ds *Dataset) error {
	if g.K <= 0 {
		return errors.NewConfigurationError("k", "number of neighbours must be positive", g.K)
	}
	if ds.XCont() == nil {
		return errors.NewConfigurationError("continuous columns", "graph view requires continuous features", nil)
	}

	var condition []string
	if g.ConditionalColumn != "" {
		values, err := ds.Frame().Categorical(g.ConditionalColumn)
		if err != nil {
			return err
		}
		condition = values
	}

	n := ds.Len()
	g.neighbors = make([][]int, n)
	g.weights = make([][]float64, n)

	train := ds.TrainMask()
	inTrain := make(map[int]bool, len(train))
	for _, idx := range train {
		inTrain[idx] = true
	}

	link := func(node int, candidates []int) {
		g.neighbors[node], g.weights[node] = g.nearest(ds, node, candidates, condition)
	}

	for _, idx := range train {
		link(idx, train)
	}
	for _, idx := range ds.ValidMask() {
		link(idx, train)
	}
	for _, idx := range ds.TestMask() {
		link(idx, train)
	}
	return nil
}

// nearest returns up to K candidate rows closest to node in the current
// standardized feature space.
func (g *GraphView) nearest(ds *Dataset, node int, candidates []int, condition []string) ([]int, []float64) {
	x := ds.XCont()
	_, cols := x.Dims()

	type scored struct {
		idx  int
		dist float64
	}
	scoredCandidates := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		if c == node {
			continue
		}
		if condition != nil && condition[c] != condition[node] {
			continue
		}
		d := 0.0
		for j := 0; j < cols; j++ {
			diff := x.At(node, j) - x.At(c, j)
			d += diff * diff
		}
		scoredCandidates = append(scoredCandidates, scored{idx: c, dist: math.Sqrt(d)})
	}

	sort.Slice(scoredCandidates, func(a, b int) bool {
		if scoredCandidates[a].dist != scoredCandidates[b].dist {
			return scoredCandidates[a].dist < scoredCandidates[b].dist
		}
		return scoredCandidates[a].idx < scoredCandidates[b].idx
	})

	k := g.K
	if k > len(scoredCandidates) {
		k = len(scoredCandidates)
	}
	neighbors := make([]int, k)
	weights := make([]float64, k)
	for i := 0; i < k; i++ {
		neighbors[i] = scoredCandidates[i].idx
		if g.Weighted {
			weights[i] = 1 / (1 + scoredCandidates[i].dist)
		} else {
			weights[i] = 1
		}
	}
	return neighbors, weights
}
