// Package models defines the uniform capability surface every model family
// implements, so the trainer, tuner and evaluator stay model-agnostic, and
// provides the built-in tabular families (linear, random forest, MLP).
// Heavier neural architectures plug in behind the same interface.
package models

import (
	"github.com/YuminosukeSato/clinfold/dataset"
	"github.com/YuminosukeSato/clinfold/hyperparams"
	"github.com/YuminosukeSato/clinfold/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Inputs is one partition's model-ready data: continuous block, categorical
// block (nil when the dataset has no categorical columns) and targets, all
// row-aligned.
type Inputs struct {
	XCont *mat.Dense
	XCat  *mat.Dense
	Y     []float64
	IDs   []string
}

// Len returns the number of rows.
func (in Inputs) Len() int { return len(in.Y) }

// Subset returns the rows at the given positions (relative to in). IDs,
// XCont and XCat may each be nil and stay nil in the result.
func (in Inputs) Subset(rows []int) Inputs {
	out := Inputs{Y: make([]float64, len(rows))}
	if in.IDs != nil {
		out.IDs = make([]string, len(rows))
	}
	for i, r := range rows {
		out.Y[i] = in.Y[r]
		if in.IDs != nil {
			out.IDs[i] = in.IDs[r]
		}
	}
	out.XCont = subsetMatrix(in.XCont, rows)
	out.XCat = subsetMatrix(in.XCat, rows)
	return out
}

// Combined returns the horizontal concatenation [XCont | XCat] for model
// families that treat every feature numerically.
func (in Inputs) Combined() *mat.Dense {
	switch {
	case in.XCont == nil:
		return in.XCat
	case in.XCat == nil:
		return in.XCont
	}
	r, c1 := in.XCont.Dims()
	_, c2 := in.XCat.Dims()
	out := mat.NewDense(r, c1+c2, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c1; j++ {
			out.Set(i, j, in.XCont.At(i, j))
		}
		for j := 0; j < c2; j++ {
			out.Set(i, c1+j, in.XCat.At(i, j))
		}
	}
	return out
}

func subsetMatrix(m *mat.Dense, rows []int) *mat.Dense {
	if m == nil || len(rows) == 0 {
		return nil
	}
	_, cols := m.Dims()
	out := mat.NewDense(len(rows), cols, nil)
	for i, r := range rows {
		for j := 0; j < cols; j++ {
			out.Set(i, j, m.At(r, j))
		}
	}
	return out
}

// ExtractInputs materializes the rows of mask from the dataset's current
// fold-derived features.
func ExtractInputs(ds *dataset.Dataset, mask []int) (Inputs, error) {
	n := ds.Len()
	for _, idx := range mask {
		if idx < 0 || idx >= n {
			return Inputs{}, errors.NewDataIntegrityError("models.ExtractInputs", "mask references an out-of-range row index")
		}
	}
	in := Inputs{
		Y:   make([]float64, len(mask)),
		IDs: make([]string, len(mask)),
	}
	y, ids := ds.Y(), ds.IDs()
	for i, idx := range mask {
		in.Y[i] = y[idx]
		in.IDs[i] = ids[idx]
	}
	in.XCont = subsetMatrix(ds.XCont(), mask)
	in.XCat = subsetMatrix(ds.XCat(), mask)
	return in, nil
}

// Adapter is the capability surface common to every model family.
type Adapter interface {
	// Name identifies the model family in logs and records.
	Name() string
	// Fit trains the model on the given partition in one synchronous call.
	Fit(train Inputs) error
	// Predict returns one prediction per row. It never mutates model
	// state and is safe to call repeatedly and concurrently.
	Predict(in Inputs) ([]float64, error)
}

// GradientAdapter extends Adapter for families trained by an epoch loop.
// The trainer owns the loop; the adapter exposes the per-batch step and
// the weight snapshot used for early-stopping restore.
type GradientAdapter interface {
	Adapter
	// BeginFit initializes weights and optimizer state for a fresh run.
	BeginFit(train Inputs) error
	// TrainBatch performs one optimization step and returns the batch loss.
	TrainBatch(batch Inputs) (float64, error)
	// ValidationLoss evaluates the loss over the full partition without
	// updating any state.
	ValidationLoss(valid Inputs) (float64, error)
	// Weights returns a flat snapshot of all trainable parameters.
	Weights() []float64
	// SetWeights restores a snapshot previously taken with Weights.
	SetWeights(w []float64) error
}

// Constructor builds a fresh adapter from hyperparameter assignments. The
// evaluator calls it once per outer fold and the tuner once per trial and
// inner fold, so parameters and weights never leak between folds.
type Constructor func(hp hyperparams.Values) (Adapter, error)
