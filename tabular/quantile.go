package tabular

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/clinfold/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// QuantileBuckets assigns each value to one of bins quantile groups,
// labelled 0..bins-1 from lowest to highest. Missing values (NaN) receive
// the label -1 and do not influence the bucket edges.
func QuantileBuckets(values []float64, bins int) ([]int, error) {
	if bins < 2 {
		return nil, errors.NewConfigurationError("bins", "must be at least 2", bins)
	}

	observed := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			observed = append(observed, v)
		}
	}
	if len(observed) < bins {
		return nil, errors.NewConfigurationError("bins", "more bins than observed values", bins)
	}
	sort.Float64s(observed)

	// Interior quantile edges; the outermost edges are -Inf/+Inf.
	edges := make([]float64, bins-1)
	for i := 1; i < bins; i++ {
		edges[i-1] = stat.Quantile(float64(i)/float64(bins), stat.LinInterp, observed, nil)
	}

	labels := make([]int, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			labels[i] = -1
			continue
		}
		b := bins - 1
		for j, e := range edges {
			if v <= e {
				b = j
				break
			}
		}
		labels[i] = b
	}
	return labels, nil
}
