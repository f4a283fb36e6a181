package models

import (
	"math/rand/v2"
	"testing"

	"github.com/YuminosukeSato/clinfold/hyperparams"
	"github.com/YuminosukeSato/clinfold/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// stepInputs builds a dataset whose target jumps at x = 0.5, the easiest
// shape for an axis-aligned tree ensemble.
func stepInputs(n int, seed uint64) Inputs {
	rng := rand.New(rand.NewPCG(seed, seed))
	x := mat.NewDense(n, 1, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		v := rng.Float64()
		x.Set(i, 0, v)
		if v > 0.5 {
			y[i] = 10
		}
	}
	return Inputs{XCont: x, Y: y}
}

func TestRandomForestRegressor(t *testing.T) {
	t.Run("learns a step function", func(t *testing.T) {
		rf := &RandomForestRegressor{
			NEstimators:     30,
			MaxDepth:        4,
			MinSamplesSplit: 2,
			MaxFeatures:     1,
			MaxSamples:      1,
			Seed:            42,
		}
		require.NoError(t, rf.Fit(stepInputs(200, 1)))

		pred, err := rf.Predict(Inputs{XCont: mat.NewDense(2, 1, []float64{0.1, 0.9})})
		require.NoError(t, err)
		assert.InDelta(t, 0.0, pred[0], 1.0)
		assert.InDelta(t, 10.0, pred[1], 1.0)
	})

	t.Run("same seed same forest", func(t *testing.T) {
		train := stepInputs(100, 2)
		test := Inputs{XCont: mat.NewDense(5, 1, []float64{0.1, 0.3, 0.5, 0.7, 0.9})}

		a := &RandomForestRegressor{NEstimators: 10, MaxDepth: 3, MinSamplesSplit: 2, MaxFeatures: 1, MaxSamples: 0.8, Seed: 7}
		require.NoError(t, a.Fit(train))
		pa, err := a.Predict(test)
		require.NoError(t, err)

		b := &RandomForestRegressor{NEstimators: 10, MaxDepth: 3, MinSamplesSplit: 2, MaxFeatures: 1, MaxSamples: 0.8, Seed: 7}
		require.NoError(t, b.Fit(train))
		pb, err := b.Predict(test)
		require.NoError(t, err)

		assert.Equal(t, pa, pb)
	})

	t.Run("predict before fit", func(t *testing.T) {
		rf := &RandomForestRegressor{NEstimators: 5, MaxFeatures: 1, MaxSamples: 1}
		_, err := rf.Predict(stepInputs(5, 3))
		var notFitted *errors.NotFittedError
		assert.True(t, errors.As(err, &notFitted))
	})
}

func TestRandomForestFeatureImportances(t *testing.T) {
	t.Run("signal feature dominates", func(t *testing.T) {
		// Column 0 carries the step; column 1 is pure noise.
		base := stepInputs(200, 4)
		rng := rand.New(rand.NewPCG(9, 9))
		n, _ := base.XCont.Dims()
		x := mat.NewDense(n, 2, nil)
		for i := 0; i < n; i++ {
			x.Set(i, 0, base.XCont.At(i, 0))
			x.Set(i, 1, rng.Float64())
		}
		train := Inputs{XCont: x, Y: base.Y}

		rf := &RandomForestRegressor{NEstimators: 30, MaxDepth: 4, MinSamplesSplit: 2, MaxFeatures: 1, MaxSamples: 1, Seed: 11}
		require.NoError(t, rf.Fit(train))

		imp, err := rf.FeatureImportances()
		require.NoError(t, err)
		require.Len(t, imp, 2)
		assert.InDelta(t, 1.0, imp[0]+imp[1], 1e-9)
		assert.Greater(t, imp[0], imp[1])
		assert.Greater(t, imp[0], 0.5)
	})

	t.Run("before fit", func(t *testing.T) {
		rf := &RandomForestRegressor{NEstimators: 5, MaxFeatures: 1, MaxSamples: 1}
		_, err := rf.FeatureImportances()
		var notFitted *errors.NotFittedError
		assert.True(t, errors.As(err, &notFitted))
	})
}

func TestNewRandomForestRegressor(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		a, err := NewRandomForestRegressor(hyperparams.Values{})
		require.NoError(t, err)
		rf := a.(*RandomForestRegressor)
		assert.Equal(t, 100, rf.NEstimators)
		assert.Equal(t, 1.0, rf.MaxFeatures)
	})

	t.Run("invalid shares", func(t *testing.T) {
		_, err := NewRandomForestRegressor(hyperparams.Values{"max_features": 1.5})
		assert.Error(t, err)
		_, err = NewRandomForestRegressor(hyperparams.Values{"max_samples": 0.0})
		assert.Error(t, err)
		_, err = NewRandomForestRegressor(hyperparams.Values{"n_estimators": 0})
		assert.Error(t, err)
	})
}
