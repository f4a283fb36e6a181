package models

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/clinfold/core/parallel"
	"github.com/YuminosukeSato/clinfold/hyperparams"
	"github.com/YuminosukeSato/clinfold/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// RandomForestRegressor averages an ensemble of variance-reducing
// regression trees, each grown on a bootstrap sample over a random feature
// subset. Fit is one synchronous call; there is no epoch loop.
type RandomForestRegressor struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	// MaxFeatures is the share of features examined per split (0 < f <= 1).
	MaxFeatures float64
	// MaxSamples is the bootstrap share of training rows (0 < f <= 1).
	MaxSamples float64
	Seed       uint64

	trees     []*regressionTree
	nFeatures int
}

// NewRandomForestRegressor builds the adapter from hyperparameters.
// Recognized entries: "n_estimators" (default 100), "max_depth" (default
// 10), "min_samples_split" (default 2), "max_features" (default 1.0),
// "max_samples" (default 1.0), "seed".
func NewRandomForestRegressor(hp hyperparams.Values) (Adapter, error) {
	rf := &RandomForestRegressor{
		NEstimators:     hp.Int("n_estimators", 100),
		MaxDepth:        hp.Int("max_depth", 10),
		MinSamplesSplit: hp.Int("min_samples_split", 2),
		MaxFeatures:     hp.Float("max_features", 1.0),
		MaxSamples:      hp.Float("max_samples", 1.0),
		Seed:            uint64(hp.Int("seed", 0)),
	}
	if rf.NEstimators <= 0 {
		return nil, errors.NewConfigurationError("n_estimators", "must be positive", rf.NEstimators)
	}
	if rf.MaxFeatures <= 0 || rf.MaxFeatures > 1 {
		return nil, errors.NewConfigurationError("max_features", "must be in (0, 1]", rf.MaxFeatures)
	}
	if rf.MaxSamples <= 0 || rf.MaxSamples > 1 {
		return nil, errors.NewConfigurationError("max_samples", "must be in (0, 1]", rf.MaxSamples)
	}
	return rf, nil
}

// Name implements Adapter.
func (rf *RandomForestRegressor) Name() string { return "RandomForestRegressor" }

// Fit implements Adapter.
func (rf *RandomForestRegressor) Fit(train Inputs) error {
	X := train.Combined()
	if X == nil || train.Len() == 0 {
		return errors.Wrap(errors.ErrEmptyData, "RandomForestRegressor.Fit")
	}
	rows, cols := X.Dims()
	rf.nFeatures = cols

	sampleSize := int(math.Ceil(rf.MaxSamples * float64(rows)))
	featureSubset := int(math.Ceil(rf.MaxFeatures * float64(cols)))

	rf.trees = make([]*regressionTree, rf.NEstimators)
	// Trees are independent; one deterministic stream per tree keeps the
	// ensemble reproducible under parallel construction.
	parallel.Parallelize(rf.NEstimators, func(start, end int) {
		for t := start; t < end; t++ {
			rng := rand.New(rand.NewPCG(rf.Seed, uint64(t)))
			sample := make([]int, sampleSize)
			for i := range sample {
				sample[i] = rng.IntN(rows)
			}
			tree := &regressionTree{
				maxDepth:        rf.MaxDepth,
				minSamplesSplit: rf.MinSamplesSplit,
				featureSubset:   featureSubset,
				rng:             rng,
				imp:             make([]float64, cols),
			}
			tree.root = tree.grow(X, train.Y, sample, 0)
			rf.trees[t] = tree
		}
	})
	return nil
}

// Predict implements Adapter.
func (rf *RandomForestRegressor) Predict(in Inputs) ([]float64, error) {
	if rf.trees == nil {
		return nil, errors.NewNotFittedError("RandomForestRegressor", "Predict")
	}
	X := in.Combined()
	if X == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "RandomForestRegressor.Predict")
	}
	rows, cols := X.Dims()
	if cols != rf.nFeatures {
		return nil, errors.NewDimensionError("RandomForestRegressor.Predict", rf.nFeatures, cols, 1)
	}
	pred := make([]float64, rows)
	for i := 0; i < rows; i++ {
		var sum float64
		for _, tree := range rf.trees {
			sum += tree.predictRow(X, i)
		}
		pred[i] = sum / float64(len(rf.trees))
	}
	return pred, nil
}

// FeatureImportances returns one impurity-decrease share per feature of
// the fitted ensemble, in [XCont | XCat] column order, summing to one
// unless no split ever reduced the variance.
func (rf *RandomForestRegressor) FeatureImportances() ([]float64, error) {
	if rf.trees == nil {
		return nil, errors.NewNotFittedError("RandomForestRegressor", "FeatureImportances")
	}
	imp := make([]float64, rf.nFeatures)
	var total float64
	for _, tree := range rf.trees {
		for f, v := range tree.imp {
			imp[f] += v
			total += v
		}
	}
	if total > 0 {
		for f := range imp {
			imp[f] /= total
		}
	}
	return imp, nil
}

type treeNode struct {
	feature   int
	threshold float64
	value     float64
	left      *treeNode
	right     *treeNode
}

func (n *treeNode) isLeaf() bool { return n.left == nil }

type regressionTree struct {
	maxDepth        int
	minSamplesSplit int
	featureSubset   int
	rng             *rand.Rand
	root            *treeNode
	imp             []float64
}

func (t *regressionTree) predictRow(X *mat.Dense, row int) float64 {
	node := t.root
	for !node.isLeaf() {
		if X.At(row, node.feature) <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.value
}

func (t *regressionTree) grow(X *mat.Dense, y []float64, rows []int, depth int) *treeNode {
	leaf := &treeNode{value: meanAt(y, rows)}
	if depth >= t.maxDepth || len(rows) < t.minSamplesSplit {
		return leaf
	}

	feature, threshold, score, ok := t.bestSplit(X, y, rows)
	if !ok {
		return leaf
	}

	var left, right []int
	for _, r := range rows {
		if X.At(r, feature) <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return leaf
	}
	t.imp[feature] += sseAt(y, rows) - score

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		value:     leaf.value,
		left:      t.grow(X, y, left, depth+1),
		right:     t.grow(X, y, right, depth+1),
	}
}

// bestSplit scans a random feature subset for the threshold minimizing the
// summed child squared error, returned alongside the split.
func (t *regressionTree) bestSplit(X *mat.Dense, y []float64, rows []int) (int, float64, float64, bool) {
	_, cols := X.Dims()
	features := t.rng.Perm(cols)
	if t.featureSubset < len(features) {
		features = features[:t.featureSubset]
	}

	bestScore := math.Inf(1)
	bestFeature, bestThreshold := -1, 0.0

	for _, f := range features {
		for _, r := range rows {
			threshold := X.At(r, f)

			var nL, nR float64
			var sumL, sumR, sqL, sqR float64
			for _, q := range rows {
				v := y[q]
				if X.At(q, f) <= threshold {
					nL++
					sumL += v
					sqL += v * v
				} else {
					nR++
					sumR += v
					sqR += v * v
				}
			}
			if nL == 0 || nR == 0 {
				continue
			}
			score := (sqL - sumL*sumL/nL) + (sqR - sumR*sumR/nR)
			if score < bestScore {
				bestScore = score
				bestFeature, bestThreshold = f, threshold
			}
		}
	}
	return bestFeature, bestThreshold, bestScore, bestFeature >= 0
}

func meanAt(y []float64, rows []int) float64 {
	if len(rows) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rows {
		sum += y[r]
	}
	return sum / float64(len(rows))
}

func sseAt(y []float64, rows []int) float64 {
	m := meanAt(y, rows)
	var sse float64
	for _, r := range rows {
		d := y[r] - m
		sse += d * d
	}
	return sse
}
