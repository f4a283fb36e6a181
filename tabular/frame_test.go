package tabular

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFrame(t *testing.T) *Frame {
	t.Helper()
	f, err := NewFrame(
		[]string{"P001", "P002", "P003", "P004"},
		NumericColumn("age", []float64{10, 12, math.NaN(), 9}),
		CategoricalColumn("sex", []string{"M", "F", "F", ""}),
		NumericColumn("outcome", []float64{1.5, 2.0, 2.5, 3.0}),
	)
	require.NoError(t, err)
	return f
}

func TestNewFrame(t *testing.T) {
	t.Run("valid frame", func(t *testing.T) {
		f := sampleFrame(t)
		assert.Equal(t, 4, f.NumRows())
		assert.Equal(t, []string{"age", "sex", "outcome"}, f.ColumnNames())
		assert.True(t, f.Has("age"))
		assert.False(t, f.Has("height"))
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := NewFrame(
			[]string{"P001", "P002"},
			NumericColumn("age", []float64{10}),
		)
		assert.Error(t, err)
	})

	t.Run("duplicate column", func(t *testing.T) {
		_, err := NewFrame(
			[]string{"P001"},
			NumericColumn("age", []float64{10}),
			NumericColumn("age", []float64{11}),
		)
		assert.Error(t, err)
	})

	t.Run("duplicate id", func(t *testing.T) {
		_, err := NewFrame(
			[]string{"P001", "P001"},
			NumericColumn("age", []float64{10, 11}),
		)
		assert.Error(t, err)
	})
}

func TestFrameAccessors(t *testing.T) {
	f := sampleFrame(t)

	t.Run("numeric column", func(t *testing.T) {
		age, err := f.Numeric("age")
		require.NoError(t, err)
		assert.Equal(t, 10.0, age[0])
		assert.True(t, math.IsNaN(age[2]))
	})

	t.Run("kind mismatch", func(t *testing.T) {
		_, err := f.Numeric("sex")
		assert.Error(t, err)
		_, err = f.Categorical("age")
		assert.Error(t, err)
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := f.Column("height")
		assert.Error(t, err)
	})
}

func TestFrameSubset(t *testing.T) {
	f := sampleFrame(t)

	sub, err := f.Subset([]int{2, 0})
	require.NoError(t, err)
	assert.Equal(t, 2, sub.NumRows())
	assert.Equal(t, []string{"P003", "P001"}, sub.IDs())

	outcome, err := sub.Numeric("outcome")
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5, 1.5}, outcome)

	_, err = f.Subset([]int{7})
	assert.Error(t, err)
}

func TestDistinctCountAndCategories(t *testing.T) {
	f := sampleFrame(t)

	n, err := f.DistinctCount("outcome")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// Missing markers do not count as a category.
	cats, err := f.Categories("sex")
	require.NoError(t, err)
	assert.Equal(t, []string{"F", "M"}, cats)
}

func TestQuantileBuckets(t *testing.T) {
	t.Run("even split", func(t *testing.T) {
		values := make([]float64, 100)
		for i := range values {
			values[i] = float64(i)
		}
		buckets, err := QuantileBuckets(values, 4)
		require.NoError(t, err)

		counts := make(map[int]int)
		for _, b := range buckets {
			counts[b]++
		}
		assert.Len(t, counts, 4)
		for b, c := range counts {
			assert.InDelta(t, 25, c, 1, "bucket %d", b)
		}
		// Buckets follow value order.
		assert.Equal(t, 0, buckets[0])
		assert.Equal(t, 3, buckets[99])
	})

	t.Run("missing values get sentinel bucket", func(t *testing.T) {
		buckets, err := QuantileBuckets([]float64{1, math.NaN(), 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, 3)
		require.NoError(t, err)
		assert.Equal(t, -1, buckets[1])
	})
}
