package models

import (
	"github.com/YuminosukeSato/clinfold/core/parallel"
	"github.com/YuminosukeSato/clinfold/hyperparams"
	"github.com/YuminosukeSato/clinfold/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// LinearRegressor solves the (optionally ridge-regularized) normal
// equations w = (X^T X + alpha*I)^-1 X^T y over the combined feature
// block.
type LinearRegressor struct {
	// Alpha is the L2 penalty; zero gives ordinary least squares.
	Alpha float64

	weights   *mat.VecDense
	intercept float64
	nFeatures int
	fitted    bool
}

// NewLinearRegressor builds the adapter from hyperparameters. Recognized
// entries: "alpha" (float, default 0).
func NewLinearRegressor(hp hyperparams.Values) (Adapter, error) {
	alpha := hp.Float("alpha", 0)
	if alpha < 0 {
		return nil, errors.NewConfigurationError("alpha", "L2 penalty must not be negative", alpha)
	}
	return &LinearRegressor{Alpha: alpha}, nil
}

// Name implements Adapter.
func (lr *LinearRegressor) Name() string { return "LinearRegressor" }

// Fit implements Adapter.
func (lr *LinearRegressor) Fit(train Inputs) error {
	X := train.Combined()
	if X == nil || train.Len() == 0 {
		return errors.Wrap(errors.ErrEmptyData, "LinearRegressor.Fit")
	}
	r, c := X.Dims()
	if len(train.Y) != r {
		return errors.NewDimensionError("LinearRegressor.Fit", r, len(train.Y), 0)
	}
	lr.nFeatures = c

	// Prepend the intercept column of ones.
	XI := mat.NewDense(r, c+1, nil)
	const parallelThreshold = 1000
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			XI.Set(i, 0, 1.0)
			for j := 0; j < c; j++ {
				XI.Set(i, j+1, X.At(i, j))
			}
		}
	})

	var XT mat.Dense
	XT.CloneFrom(XI.T())

	var XTX mat.Dense
	XTX.Mul(&XT, XI)

	// The intercept is left unpenalized.
	if lr.Alpha > 0 {
		for j := 1; j <= c; j++ {
			XTX.Set(j, j, XTX.At(j, j)+lr.Alpha)
		}
	}

	var inv mat.Dense
	if err := inv.Inverse(&XTX); err != nil {
		return errors.Wrap(errors.ErrSingularMatrix, "LinearRegressor.Fit")
	}

	yVec := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		yVec.SetVec(i, train.Y[i])
	}
	var XTy mat.VecDense
	XTy.MulVec(&XT, yVec)

	var w mat.VecDense
	w.MulVec(&inv, &XTy)

	lr.intercept = w.AtVec(0)
	lr.weights = mat.NewVecDense(c, nil)
	for j := 0; j < c; j++ {
		lr.weights.SetVec(j, w.AtVec(j+1))
	}
	lr.fitted = true
	return nil
}

// Predict implements Adapter.
func (lr *LinearRegressor) Predict(in Inputs) ([]float64, error) {
	if !lr.fitted {
		return nil, errors.NewNotFittedError("LinearRegressor", "Predict")
	}
	X := in.Combined()
	if X == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "LinearRegressor.Predict")
	}
	r, c := X.Dims()
	if c != lr.nFeatures {
		return nil, errors.NewDimensionError("LinearRegressor.Predict", lr.nFeatures, c, 1)
	}
	pred := make([]float64, r)
	for i := 0; i < r; i++ {
		v := lr.intercept
		for j := 0; j < c; j++ {
			v += lr.weights.AtVec(j) * X.At(i, j)
		}
		pred[i] = v
	}
	return pred, nil
}
