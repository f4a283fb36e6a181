// Package sampling implements stratified train/test resampling and the
// two-level fold hierarchy (outer evaluation folds, inner tuning folds)
// consumed by the evaluation loop.
package sampling

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/clinfold/pkg/errors"
	"github.com/YuminosukeSato/clinfold/tabular"
)

// continuousThreshold is the number of distinct target values above which
// the target is treated as continuous and bucketed into quantile groups
// before stratification.
const continuousThreshold = 10

// DefaultQuantileBins is the number of quantile groups used for continuous
// targets when no explicit value is given.
const DefaultQuantileBins = 4

// StratifiedSample draws a sample of the frame's rows stratified on the
// target column and returns the selected row indices, globally shuffled.
//
// n is an absolute row count when n >= 1 and a fraction of the frame when
// 0 < n < 1. Within each stratum, round(n*stratumSize/total) rows are drawn
// without replacement; a stratum small enough to round to zero contributes
// no rows. When the target has more than 10 distinct values it is bucketed
// into bins quantile groups first.
//
// A nil rng draws from the process-wide random source.
func StratifiedSample(f *tabular.Frame, target string, n float64, bins int, rng *rand.Rand) ([]int, error) {
	if !f.Has(target) {
		return nil, errors.NewConfigurationError(target, "target column not part of the frame", nil)
	}
	if n < 0 {
		return nil, errors.NewConfigurationError("n", "sample size must be greater than 0", n)
	}
	if bins <= 0 {
		bins = DefaultQuantileBins
	}

	total := f.NumRows()
	size := n
	if n > 0 && n < 1 {
		size = math.Floor(n * float64(total))
	}

	strata, err := stratumLabels(f, target, bins)
	if err != nil {
		return nil, err
	}

	// Group row indices per stratum, keeping first-appearance order of the
	// labels so that identical seeds give identical samples.
	groups := make(map[string][]int)
	order := make([]string, 0)
	for i, label := range strata {
		if _, seen := groups[label]; !seen {
			order = append(order, label)
		}
		groups[label] = append(groups[label], i)
	}

	sample := make([]int, 0, int(size))
	for _, label := range order {
		rows := groups[label]
		take := int(math.RoundToEven(size * float64(len(rows)) / float64(total)))
		if take > len(rows) {
			take = len(rows)
		}
		if take == 0 {
			continue
		}
		for _, p := range perm(rng, len(rows))[:take] {
			sample = append(sample, rows[p])
		}
	}

	shuffle(rng, sample)
	return sample, nil
}

// SplitTrainTest partitions the frame's rows into a training part and a
// stratified test part of the requested size.
func SplitTrainTest(f *tabular.Frame, target string, testSize float64, bins int, rng *rand.Rand) (train, test []int, err error) {
	test, err = StratifiedSample(f, target, testSize, bins, rng)
	if err != nil {
		return nil, nil, err
	}
	inTest := make(map[int]bool, len(test))
	for _, i := range test {
		inTest[i] = true
	}
	train = make([]int, 0, f.NumRows()-len(test))
	for i := 0; i < f.NumRows(); i++ {
		if !inTest[i] {
			train = append(train, i)
		}
	}
	return train, test, nil
}

// stratumLabels computes the stratification label of every row.
func stratumLabels(f *tabular.Frame, target string, bins int) ([]string, error) {
	distinct, err := f.DistinctCount(target)
	if err != nil {
		return nil, err
	}

	col, err := f.Column(target)
	if err != nil {
		return nil, err
	}

	labels := make([]string, f.NumRows())
	switch {
	case col.Kind == tabular.Numeric && distinct > continuousThreshold:
		buckets, err := tabular.QuantileBuckets(col.Floats, bins)
		if err != nil {
			return nil, err
		}
		for i, b := range buckets {
			labels[i] = fmt.Sprintf("q%d", b)
		}
	case col.Kind == tabular.Numeric:
		for i, v := range col.Floats {
			labels[i] = fmt.Sprintf("%g", v)
		}
	default:
		copy(labels, col.Strings)
	}
	return labels, nil
}

func perm(rng *rand.Rand, n int) []int {
	if rng != nil {
		return rng.Perm(n)
	}
	return rand.Perm(n)
}

func shuffle(rng *rand.Rand, s []int) {
	swap := func(i, j int) { s[i], s[j] = s[j], s[i] }
	if rng != nil {
		rng.Shuffle(len(s), swap)
		return
	}
	rand.Shuffle(len(s), swap)
}
