package sampling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStratifierMasks(t *testing.T) {
	f := continuousFrame(t, 100)
	seed := uint64(42)
	s := &Stratifier{TestSize: 0.2, ValidSize: 0.2, QuantileBins: 4, Seed: &seed}

	masks, err := s.Masks(f, "target", 3, 2)
	require.NoError(t, err)
	require.Len(t, masks, 3)

	for k, fold := range masks {
		assert.Len(t, fold.Test, 20, "outer fold %d", k)
		assert.Len(t, fold.Valid, 16, "outer fold %d", k)
		assert.Len(t, fold.Train, 64, "outer fold %d", k)
		require.Len(t, fold.Inner, 2, "outer fold %d", k)

		inTrain := make(map[int]bool)
		for _, i := range fold.Train {
			inTrain[i] = true
		}

		// Inner folds only redistribute the outer training rows.
		for j, inner := range fold.Inner {
			for _, part := range [][]int{inner.Train, inner.Valid, inner.Test} {
				for _, i := range part {
					assert.True(t, inTrain[i], "fold %d inner %d row %d escapes the outer training set", k, j, i)
				}
			}
		}
	}
}

func TestStratifierReproducible(t *testing.T) {
	f := continuousFrame(t, 60)
	seed := uint64(7)

	a, err := (&Stratifier{TestSize: 0.2, ValidSize: 0.2, QuantileBins: 4, Seed: &seed}).Masks(f, "target", 2, 2)
	require.NoError(t, err)
	b, err := (&Stratifier{TestSize: 0.2, ValidSize: 0.2, QuantileBins: 4, Seed: &seed}).Masks(f, "target", 2, 2)
	require.NoError(t, err)

	for k := range a {
		assert.Equal(t, a[k].Train, b[k].Train, "fold %d", k)
		assert.Equal(t, a[k].Test, b[k].Test, "fold %d", k)
		for j := range a[k].Inner {
			assert.Equal(t, a[k].Inner[j].Train, b[k].Inner[j].Train, "fold %d inner %d", k, j)
		}
	}
}

func TestStratifierNoValidation(t *testing.T) {
	f := continuousFrame(t, 50)
	seed := uint64(3)
	s := &Stratifier{TestSize: 0.2, QuantileBins: 4, Seed: &seed}

	masks, err := s.Masks(f, "target", 2, 0)
	require.NoError(t, err)
	for _, fold := range masks {
		assert.Empty(t, fold.Valid)
		assert.Empty(t, fold.Inner)
		assert.Len(t, fold.Train, 40)
	}
}

func TestStratifierInvalidArgs(t *testing.T) {
	f := continuousFrame(t, 20)
	s := NewStratifier()

	_, err := s.Masks(f, "target", 0, 2)
	assert.Error(t, err)

	_, err = s.Masks(f, "target", 2, -1)
	assert.Error(t, err)
}
