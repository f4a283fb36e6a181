package sampling

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/YuminosukeSato/clinfold/tabular"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// binaryFrame builds n rows whose class column is 1 for the first
// positives rows and 0 elsewhere.
func binaryFrame(t *testing.T, n, positives int) *tabular.Frame {
	t.Helper()
	ids := make([]string, n)
	class := make([]float64, n)
	for i := 0; i < n; i++ {
		ids[i] = fmt.Sprintf("P%03d", i)
		if i < positives {
			class[i] = 1
		}
	}
	f, err := tabular.NewFrame(ids, tabular.NumericColumn("class", class))
	require.NoError(t, err)
	return f
}

func continuousFrame(t *testing.T, n int) *tabular.Frame {
	t.Helper()
	ids := make([]string, n)
	target := make([]float64, n)
	for i := 0; i < n; i++ {
		ids[i] = fmt.Sprintf("P%03d", i)
		target[i] = float64(i) * 1.3
	}
	f, err := tabular.NewFrame(ids, tabular.NumericColumn("target", target))
	require.NoError(t, err)
	return f
}

func TestStratifiedSample(t *testing.T) {
	t.Run("preserves class proportions", func(t *testing.T) {
		// 100 rows, 30% positive; a 50-row sample keeps the ratio.
		f := binaryFrame(t, 100, 30)
		rng := rand.New(rand.NewPCG(42, 42))

		sample, err := StratifiedSample(f, "class", 50, 0, rng)
		require.NoError(t, err)
		assert.Len(t, sample, 50)

		class, _ := f.Numeric("class")
		positives := 0
		for _, i := range sample {
			if class[i] == 1 {
				positives++
			}
		}
		assert.Equal(t, 15, positives)
	})

	t.Run("fraction size", func(t *testing.T) {
		f := binaryFrame(t, 100, 30)
		rng := rand.New(rand.NewPCG(1, 1))

		sample, err := StratifiedSample(f, "class", 0.2, 0, rng)
		require.NoError(t, err)
		assert.Len(t, sample, 20)
	})

	t.Run("no duplicate rows", func(t *testing.T) {
		f := binaryFrame(t, 60, 20)
		rng := rand.New(rand.NewPCG(3, 3))

		sample, err := StratifiedSample(f, "class", 30, 0, rng)
		require.NoError(t, err)
		seen := make(map[int]bool)
		for _, i := range sample {
			assert.False(t, seen[i], "row %d sampled twice", i)
			seen[i] = true
		}
	})

	t.Run("same seed same sample", func(t *testing.T) {
		f := continuousFrame(t, 80)

		a, err := StratifiedSample(f, "target", 40, 4, rand.New(rand.NewPCG(9, 9)))
		require.NoError(t, err)
		b, err := StratifiedSample(f, "target", 40, 4, rand.New(rand.NewPCG(9, 9)))
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("continuous target covers all quantile groups", func(t *testing.T) {
		f := continuousFrame(t, 100)
		rng := rand.New(rand.NewPCG(5, 5))

		sample, err := StratifiedSample(f, "target", 40, 4, rng)
		require.NoError(t, err)
		assert.Len(t, sample, 40)

		// Each quartile of row indices contributes a quarter of the sample.
		counts := make([]int, 4)
		for _, i := range sample {
			counts[i/25]++
		}
		for q, c := range counts {
			assert.Equal(t, 10, c, "quartile %d", q)
		}
	})

	t.Run("unknown target column", func(t *testing.T) {
		f := binaryFrame(t, 10, 5)
		_, err := StratifiedSample(f, "missing", 5, 0, nil)
		assert.Error(t, err)
	})
}

func TestSplitTrainTest(t *testing.T) {
	f := binaryFrame(t, 100, 40)
	rng := rand.New(rand.NewPCG(11, 11))

	train, test, err := SplitTrainTest(f, "class", 0.2, 0, rng)
	require.NoError(t, err)
	assert.Len(t, test, 20)
	assert.Len(t, train, 80)

	inTest := make(map[int]bool)
	for _, i := range test {
		inTest[i] = true
	}
	for _, i := range train {
		assert.False(t, inTest[i], "row %d in both partitions", i)
	}
}
