// Package metrics implements the evaluation metrics applied to fold
// predictions, each carrying the direction its optimizer should pursue.
package metrics

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/clinfold/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// Direction indicates whether larger or smaller metric values are better.
type Direction int

const (
	// Minimize marks loss-like metrics.
	Minimize Direction = iota
	// Maximize marks score-like metrics.
	Maximize
)

// Metric scores predictions against true targets.
type Metric interface {
	Name() string
	Direction() Direction
	Compute(pred, target []float64) (float64, error)
}

func validate(name string, pred, target []float64) error {
	if len(target) == 0 {
		return errors.Wrap(errors.ErrEmptyData, name)
	}
	if len(pred) != len(target) {
		return errors.NewDimensionError(name, len(target), len(pred), 0)
	}
	return nil
}

// MAE is the mean absolute error.
type MAE struct{}

func (MAE) Name() string         { return "mean_absolute_error" }
func (MAE) Direction() Direction { return Minimize }

func (m MAE) Compute(pred, target []float64) (float64, error) {
	if err := validate(m.Name(), pred, target); err != nil {
		return 0, err
	}
	var sum float64
	for i := range target {
		sum += math.Abs(target[i] - pred[i])
	}
	return sum / float64(len(target)), nil
}

// MSE is the mean squared error.
type MSE struct{}

func (MSE) Name() string         { return "mean_squared_error" }
func (MSE) Direction() Direction { return Minimize }

func (m MSE) Compute(pred, target []float64) (float64, error) {
	if err := validate(m.Name(), pred, target); err != nil {
		return 0, err
	}
	var sum float64
	for i := range target {
		diff := target[i] - pred[i]
		sum += diff * diff
	}
	return sum / float64(len(target)), nil
}

// RMSE is the root mean squared error.
type RMSE struct{}

func (RMSE) Name() string         { return "root_mean_squared_error" }
func (RMSE) Direction() Direction { return Minimize }

func (m RMSE) Compute(pred, target []float64) (float64, error) {
	mse, err := MSE{}.Compute(pred, target)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// R2 is the coefficient of determination.
type R2 struct{}

func (R2) Name() string         { return "r2_score" }
func (R2) Direction() Direction { return Maximize }

func (m R2) Compute(pred, target []float64) (float64, error) {
	if err := validate(m.Name(), pred, target); err != nil {
		return 0, err
	}
	mean := stat.Mean(target, nil)
	var ssRes, ssTot float64
	for i := range target {
		r := target[i] - pred[i]
		t := target[i] - mean
		ssRes += r * r
		ssTot += t * t
	}
	if ssTot == 0 {
		return 0, errors.NewUndefinedMetricError(m.Name(), "target has zero variance")
	}
	return 1 - ssRes/ssTot, nil
}

// Pearson is the Pearson correlation between predictions and targets.
type Pearson struct{}

func (Pearson) Name() string         { return "pearson" }
func (Pearson) Direction() Direction { return Maximize }

func (m Pearson) Compute(pred, target []float64) (float64, error) {
	if err := validate(m.Name(), pred, target); err != nil {
		return 0, err
	}
	r := stat.Correlation(pred, target, nil)
	if math.IsNaN(r) {
		return 0, errors.NewUndefinedMetricError(m.Name(), "constant predictions or targets")
	}
	return r, nil
}

// Accuracy is the share of correct binary predictions, thresholding
// predictions at 0.5.
type Accuracy struct{}

func (Accuracy) Name() string         { return "accuracy" }
func (Accuracy) Direction() Direction { return Maximize }

func (m Accuracy) Compute(pred, target []float64) (float64, error) {
	if err := validate(m.Name(), pred, target); err != nil {
		return 0, err
	}
	correct := 0
	for i := range target {
		p := 0.0
		if pred[i] > 0.5 {
			p = 1.0
		}
		if p == target[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(target)), nil
}

// AUC is the area under the ROC curve for binary targets, computed from
// the Mann-Whitney rank statistic. It is undefined when the fold holds a
// single class, which flows through the recoverable fold-failure path.
type AUC struct{}

func (AUC) Name() string         { return "auc" }
func (AUC) Direction() Direction { return Maximize }

func (m AUC) Compute(pred, target []float64) (float64, error) {
	if err := validate(m.Name(), pred, target); err != nil {
		return 0, err
	}

	nPos, nNeg := 0, 0
	for _, t := range target {
		if t == 1 {
			nPos++
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0, errors.NewUndefinedMetricError(m.Name(), "only one class present")
	}

	type pair struct {
		score float64
		label float64
	}
	pairs := make([]pair, len(pred))
	for i := range pred {
		pairs[i] = pair{score: pred[i], label: target[i]}
	}
	sort.Slice(pairs, func(a, b int) bool { return pairs[a].score < pairs[b].score })

	// Mid-ranks over tied scores.
	ranks := make([]float64, len(pairs))
	for i := 0; i < len(pairs); {
		j := i
		for j < len(pairs) && pairs[j].score == pairs[i].score {
			j++
		}
		mid := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[k] = mid
		}
		i = j
	}

	var rankSum float64
	for i, p := range pairs {
		if p.label == 1 {
			rankSum += ranks[i]
		}
	}
	u := rankSum - float64(nPos)*float64(nPos+1)/2
	return u / (float64(nPos) * float64(nNeg)), nil
}
