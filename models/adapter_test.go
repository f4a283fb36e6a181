package models

import (
	"testing"

	"github.com/YuminosukeSato/clinfold/dataset"
	"github.com/YuminosukeSato/clinfold/tabular"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func testInputs() Inputs {
	return Inputs{
		XCont: mat.NewDense(4, 2, []float64{
			1, 2,
			3, 4,
			5, 6,
			7, 8,
		}),
		XCat: mat.NewDense(4, 1, []float64{0, 1, 0, 1}),
		Y:    []float64{10, 20, 30, 40},
		IDs:  []string{"P001", "P002", "P003", "P004"},
	}
}

func TestInputsSubset(t *testing.T) {
	in := testInputs()
	sub := in.Subset([]int{2, 0})

	assert.Equal(t, 2, sub.Len())
	assert.Equal(t, []float64{30, 10}, sub.Y)
	assert.Equal(t, []string{"P003", "P001"}, sub.IDs)
	assert.Equal(t, 5.0, sub.XCont.At(0, 0))
	assert.Equal(t, 1.0, sub.XCont.At(1, 0))
	assert.Equal(t, 0.0, sub.XCat.At(0, 0))
}

func TestInputsSubsetWithoutIDs(t *testing.T) {
	// Mini-batch slicing must work on inputs assembled without
	// participant identifiers.
	in := Inputs{
		XCont: mat.NewDense(3, 1, []float64{1, 2, 3}),
		Y:     []float64{10, 20, 30},
	}
	sub := in.Subset([]int{0, 2})

	assert.Equal(t, 2, sub.Len())
	assert.Equal(t, []float64{10, 30}, sub.Y)
	assert.Nil(t, sub.IDs)
	assert.Equal(t, 3.0, sub.XCont.At(1, 0))
}

func TestInputsCombined(t *testing.T) {
	t.Run("continuous and categorical side by side", func(t *testing.T) {
		x := testInputs().Combined()
		r, c := x.Dims()
		assert.Equal(t, 4, r)
		assert.Equal(t, 3, c)
		assert.Equal(t, 2.0, x.At(0, 1))
		assert.Equal(t, 1.0, x.At(1, 2))
	})

	t.Run("continuous only", func(t *testing.T) {
		in := testInputs()
		in.XCat = nil
		_, c := in.Combined().Dims()
		assert.Equal(t, 2, c)
	})
}

func TestExtractInputs(t *testing.T) {
	f, err := tabular.NewFrame(
		[]string{"P001", "P002", "P003", "P004"},
		tabular.NumericColumn("age", []float64{10, 12, 14, 16}),
		tabular.NumericColumn("outcome", []float64{1, 2, 3, 4}),
	)
	require.NoError(t, err)
	ds, err := dataset.New(f, "outcome", []string{"age"}, nil)
	require.NoError(t, err)

	in, err := ExtractInputs(ds, []int{1, 3})
	require.NoError(t, err)
	assert.Equal(t, 2, in.Len())
	assert.Equal(t, []float64{2, 4}, in.Y)
	assert.Equal(t, []string{"P002", "P004"}, in.IDs)

	_, err = ExtractInputs(ds, []int{9})
	assert.Error(t, err)
}
