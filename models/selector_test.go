package models

import (
	"encoding/json"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/clinfold/dataset"
	"github.com/YuminosukeSato/clinfold/pkg/errors"
	"github.com/YuminosukeSato/clinfold/tabular"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// selectorCohort carries one informative column, one noise column and one
// constant categorical column.
func selectorCohort(t *testing.T, n int) *dataset.Dataset {
	t.Helper()
	rng := rand.New(rand.NewPCG(3, 3))
	ids := make([]string, n)
	signal := make([]float64, n)
	noise := make([]float64, n)
	sex := make([]string, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		ids[i] = "P" + string(rune('A'+i/26)) + string(rune('A'+i%26))
		signal[i] = rng.Float64()
		noise[i] = rng.Float64()
		sex[i] = "F"
		if signal[i] > 0.5 {
			y[i] = 10
		}
	}
	f, err := tabular.NewFrame(ids,
		tabular.NumericColumn("signal", signal),
		tabular.NumericColumn("noise", noise),
		tabular.CategoricalColumn("sex", sex),
		tabular.NumericColumn("outcome", y),
	)
	require.NoError(t, err)
	ds, err := dataset.New(f, "outcome", []string{"signal", "noise"}, []string{"sex"})
	require.NoError(t, err)
	return ds
}

func TestFeatureSelector(t *testing.T) {
	ds := selectorCohort(t, 120)

	selector, err := NewFeatureSelector(0.8, 17)
	require.NoError(t, err)

	sel, err := selector.Select(ds)
	require.NoError(t, err)

	// The step column carries nearly all the signal; the rest is trimmed.
	assert.Equal(t, []string{"signal"}, sel.ContCols)
	assert.Empty(t, sel.CatCols)

	require.Len(t, sel.Records, 3)
	assert.Equal(t, "signal", sel.Records[0].Feature)
	assert.True(t, sel.Records[0].Selected)
	for _, r := range sel.Records[1:] {
		assert.False(t, r.Selected)
		assert.LessOrEqual(t, r.Importance, sel.Records[0].Importance)
	}

	imp := sel.Importance()
	assert.Len(t, imp, 3)
	assert.Greater(t, imp["signal"], 0.8)
}

func TestFeatureSelectorKeepsEverythingUnderThresholdOne(t *testing.T) {
	ds := selectorCohort(t, 60)

	selector, err := NewFeatureSelector(1.0, 17)
	require.NoError(t, err)

	sel, err := selector.Select(ds)
	require.NoError(t, err)
	assert.Equal(t, []string{"signal", "noise"}, sel.ContCols)
	assert.Equal(t, []string{"sex"}, sel.CatCols)
}

func TestFeatureSelectionSave(t *testing.T) {
	ds := selectorCohort(t, 60)
	selector, err := NewFeatureSelector(0.8, 17)
	require.NoError(t, err)
	sel, err := selector.Select(ds)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, sel.Save(dir))

	data, err := os.ReadFile(filepath.Join(dir, FeatureSelectionFileName))
	require.NoError(t, err)
	var records []FeatureImportanceRecord
	require.NoError(t, json.Unmarshal(data, &records))
	assert.Equal(t, sel.Records, records)
}

func TestNewFeatureSelectorValidation(t *testing.T) {
	for _, threshold := range []float64{0, -0.5, 1.5} {
		_, err := NewFeatureSelector(threshold, 0)
		var cfg *errors.ConfigurationError
		assert.True(t, errors.As(err, &cfg))
	}
}
