// Package hyperparams defines the concrete hyperparameter assignments
// passed to model constructors.
package hyperparams

// Values maps hyperparameter names to concrete assignments. A Values is
// produced either by a tuner trial or from the fixed entries of a search
// space; consumers read it through the typed getters and never mutate it.
type Values map[string]interface{}

// Float returns the named value as float64, accepting ints, or def when
// the name is absent.
func (v Values) Float(name string, def float64) float64 {
	raw, ok := v[name]
	if !ok {
		return def
	}
	switch x := raw.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	}
	return def
}

// Int returns the named value as int, truncating floats, or def when the
// name is absent.
func (v Values) Int(name string, def int) int {
	raw, ok := v[name]
	if !ok {
		return def
	}
	switch x := raw.(type) {
	case int:
		return x
	case float64:
		return int(x)
	}
	return def
}

// String returns the named value as a string, or def when absent.
func (v Values) String(name string, def string) string {
	if raw, ok := v[name]; ok {
		if s, ok := raw.(string); ok {
			return s
		}
	}
	return def
}

// Clone returns an independent copy.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Merge returns a new Values holding v overlaid with overrides.
func (v Values) Merge(overrides Values) Values {
	out := v.Clone()
	for k, val := range overrides {
		out[k] = val
	}
	return out
}
