package dataset

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/clinfold/pkg/errors"
	"github.com/YuminosukeSato/clinfold/tabular"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cohortFrame(t *testing.T) *tabular.Frame {
	t.Helper()
	f, err := tabular.NewFrame(
		[]string{"P001", "P002", "P003", "P004", "P005", "P006"},
		tabular.NumericColumn("age", []float64{10, 12, 14, math.NaN(), 8, 16}),
		tabular.CategoricalColumn("sex", []string{"M", "F", "F", "M", "", "F"}),
		tabular.NumericColumn("outcome", []float64{1, 2, 3, 4, 5, 6}),
	)
	require.NoError(t, err)
	return f
}

func newCohort(t *testing.T) *Dataset {
	t.Helper()
	ds, err := New(cohortFrame(t), "outcome", []string{"age"}, []string{"sex"})
	require.NoError(t, err)
	return ds
}

func TestNew(t *testing.T) {
	t.Run("unknown column", func(t *testing.T) {
		_, err := New(cohortFrame(t), "outcome", []string{"height"}, nil)
		assert.Error(t, err)
	})

	t.Run("non-numeric continuous column", func(t *testing.T) {
		_, err := New(cohortFrame(t), "outcome", []string{"sex"}, nil)
		assert.Error(t, err)
	})

	t.Run("no feature columns", func(t *testing.T) {
		_, err := New(cohortFrame(t), "outcome", nil, nil)
		var cfg *errors.ConfigurationError
		assert.True(t, errors.As(err, &cfg))
	})

	t.Run("initial mask covers all rows", func(t *testing.T) {
		ds := newCohort(t)
		assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, ds.TrainMask())
		assert.Empty(t, ds.TestMask())
	})
}

func TestStatisticsFromTrainOnly(t *testing.T) {
	ds := newCohort(t)

	// Train on rows whose ages are 10, 12 and 14.
	require.NoError(t, ds.UpdateMasks([]int{0, 1, 2}, []int{3}, []int{4, 5}))

	mu, sigma, modes := ds.TrainStats()
	assert.InDelta(t, 12.0, mu[0], 1e-12)
	assert.InDelta(t, 2.0, sigma[0], 1e-12) // sample std over {10,12,14}
	assert.Equal(t, []string{"F"}, modes)

	// Row 5 (age 16, a test row) is standardized with training statistics.
	assert.InDelta(t, 2.0, ds.XCont().At(5, 0), 1e-12)
}

func TestMissingValueImputation(t *testing.T) {
	ds := newCohort(t)
	require.NoError(t, ds.UpdateMasks([]int{0, 1, 2}, nil, []int{3, 4, 5}))

	// Row 3's missing age becomes the training mean, i.e. zero after
	// standardization.
	assert.InDelta(t, 0.0, ds.XCont().At(3, 0), 1e-12)

	// Row 4's missing sex becomes the training mode "F" (code 0).
	assert.InDelta(t, 0.0, ds.XCat().At(4, 0), 1e-12)
}

func TestUpdateMasksIdempotent(t *testing.T) {
	ds := newCohort(t)

	require.NoError(t, ds.UpdateMasks([]int{0, 2, 4}, []int{1}, []int{3, 5}))
	first := matValues(t, ds)

	require.NoError(t, ds.UpdateMasks([]int{1, 3, 5}, nil, []int{0, 2, 4}))
	require.NoError(t, ds.UpdateMasks([]int{0, 2, 4}, []int{1}, []int{3, 5}))
	second := matValues(t, ds)

	assert.Equal(t, first, second)
}

func matValues(t *testing.T, ds *Dataset) []float64 {
	t.Helper()
	var out []float64
	for i := 0; i < ds.Len(); i++ {
		out = append(out, ds.XCont().At(i, 0), ds.XCat().At(i, 0))
	}
	return out
}

func TestEncodingsFixedAcrossFolds(t *testing.T) {
	ds := newCohort(t)
	before := ds.Encodings()["sex"]

	require.NoError(t, ds.UpdateMasks([]int{0, 3}, nil, []int{1, 2, 4, 5}))
	after := ds.Encodings()["sex"]

	assert.Equal(t, before, after)
	assert.Equal(t, map[string]int{"F": 0, "M": 1}, after)

	// Fold trained on male-only rows still encodes "F" with its fixed code.
	assert.InDelta(t, 0.0, ds.XCat().At(1, 0), 1e-12)
}

func TestUpdateMasksValidation(t *testing.T) {
	ds := newCohort(t)

	cases := []struct {
		name              string
		train, valid, tst []int
	}{
		{"empty train", nil, nil, []int{0}},
		{"out of range", []int{0, 9}, nil, []int{1}},
		{"train test overlap", []int{0, 1}, nil, []int{1, 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ds.UpdateMasks(tc.train, tc.valid, tc.tst)
			var integrity *errors.DataIntegrityError
			assert.True(t, errors.As(err, &integrity))
		})
	}
}

func TestClone(t *testing.T) {
	ds := newCohort(t)
	require.NoError(t, ds.UpdateMasks([]int{0, 1, 2}, nil, []int{3, 4, 5}))

	cp := ds.Clone()
	require.NoError(t, cp.UpdateMasks([]int{3, 4, 5}, nil, []int{0, 1, 2}))

	// The original keeps its masks and statistics.
	assert.Equal(t, []int{0, 1, 2}, ds.TrainMask())
	mu, _, _ := ds.TrainStats()
	assert.InDelta(t, 12.0, mu[0], 1e-12)
	assert.NotEqual(t, ds.TrainMask(), cp.TrainMask())
}

func TestGraphView(t *testing.T) {
	ds := newCohort(t)
	require.NoError(t, ds.UpdateMasks([]int{0, 1, 2, 3}, []int{4}, []int{5}))

	t.Run("valid and test nodes link into train only", func(t *testing.T) {
		g := NewGraphView(2, "", false)
		require.NoError(t, g.Rebuild(ds))

		inTrain := map[int]bool{0: true, 1: true, 2: true, 3: true}
		for _, node := range []int{0, 1, 2, 3, 4, 5} {
			for _, nb := range g.Neighbors(node) {
				assert.True(t, inTrain[nb], "node %d links to non-training row %d", node, nb)
				assert.NotEqual(t, node, nb)
			}
		}
		assert.Len(t, g.Neighbors(4), 2)
		assert.Len(t, g.Neighbors(5), 2)
	})

	t.Run("conditional column restricts edges", func(t *testing.T) {
		g := NewGraphView(3, "sex", false)
		require.NoError(t, g.Rebuild(ds))

		sex, _ := ds.Frame().Categorical("sex")
		for _, node := range []int{0, 1, 2, 3} {
			for _, nb := range g.Neighbors(node) {
				assert.Equal(t, sex[node], sex[nb])
			}
		}
	})

	t.Run("weighted edges", func(t *testing.T) {
		g := NewGraphView(2, "", true)
		require.NoError(t, g.Rebuild(ds))

		for _, w := range g.Weights(5) {
			assert.Greater(t, w, 0.0)
			assert.LessOrEqual(t, w, 1.0)
		}
	})

	t.Run("rebuild follows mask updates", func(t *testing.T) {
		g := NewGraphView(1, "", false)
		require.NoError(t, g.Rebuild(ds))
		require.NoError(t, ds.UpdateMasks([]int{3, 4, 5}, nil, []int{0, 1, 2}))
		require.NoError(t, g.Rebuild(ds))

		inTrain := map[int]bool{3: true, 4: true, 5: true}
		for _, node := range []int{0, 1, 2} {
			for _, nb := range g.Neighbors(node) {
				assert.True(t, inTrain[nb])
			}
		}
	})
}
