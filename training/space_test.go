package training

import (
	"testing"

	"github.com/YuminosukeSato/clinfold/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpace(t *testing.T) {
	t.Run("valid space", func(t *testing.T) {
		s, err := NewSpace(
			Fixed("weight_decay", 1e-4),
			Categorical("activation", "relu", "tanh"),
			LogFloatRange("lr", 1e-4, 1e-1),
			IntRange("n_units", 4, 32),
		)
		require.NoError(t, err)
		assert.Equal(t, []string{"weight_decay", "activation", "lr", "n_units"}, s.Names())
		assert.True(t, s.Tunable())
	})

	t.Run("all fixed is not tunable", func(t *testing.T) {
		s, err := NewSpace(Fixed("alpha", 0.5))
		require.NoError(t, err)
		assert.False(t, s.Tunable())
	})

	invalid := []struct {
		name  string
		param Param
	}{
		{"empty name", Fixed("", 1)},
		{"no choices", Categorical("act")},
		{"inverted float range", FloatRange("lr", 1, 0.1)},
		{"log range with zero bound", LogFloatRange("lr", 0, 1)},
		{"inverted int range", IntRange("n", 5, 2)},
		{"fixed without value", Fixed("x", nil)},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSpace(tc.param)
			var cfg *errors.ConfigurationError
			assert.True(t, errors.As(err, &cfg))
		})
	}

	t.Run("duplicate name", func(t *testing.T) {
		_, err := NewSpace(Fixed("alpha", 1), FloatRange("alpha", 0, 1))
		assert.Error(t, err)
	})
}

func TestSpaceWith(t *testing.T) {
	base := MustSpace(Fixed("alpha", 0.5), IntRange("n_units", 4, 8))

	derived, err := base.With(Fixed("n_units", 6), Fixed("seed", 1))
	require.NoError(t, err)

	assert.False(t, derived.Tunable())
	assert.Equal(t, []string{"alpha", "n_units", "seed"}, derived.Names())

	// The base space is unchanged.
	assert.True(t, base.Tunable())
	assert.Equal(t, []string{"alpha", "n_units"}, base.Names())
}

func TestFixedValues(t *testing.T) {
	s := MustSpace(
		Fixed("alpha", 0.5),
		Categorical("activation", "relu", "tanh"),
		FloatRange("lr", 0.0, 1.0),
		IntRange("n_units", 4, 8),
	)

	v := s.FixedValues()
	assert.Equal(t, 0.5, v.Float("alpha", 0))
	assert.Equal(t, "relu", v.String("activation", ""))
	assert.Equal(t, 0.5, v.Float("lr", 0))
	assert.Equal(t, 6, v.Int("n_units", 0))
}

func TestFixedValuesLogRange(t *testing.T) {
	// Log-scaled ranges get their midpoint on the log scale: the
	// arithmetic midpoint of [1e-4, 1] would sit at the very top of it.
	s := MustSpace(LogFloatRange("lr", 1e-4, 1.0))
	assert.InDelta(t, 1e-2, s.FixedValues().Float("lr", 0), 1e-12)
}
