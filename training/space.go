// Package training owns the inner loop of the experiment: hyperparameter
// search over the inner folds, model training with early stopping, and the
// outer-fold evaluation that ties tuning, training and recording together.
package training

import (
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/clinfold/hyperparams"
	"github.com/YuminosukeSato/clinfold/pkg/errors"
	"github.com/c-bata/goptuna"
)

// ParamKind discriminates the four kinds of search-space entries.
type ParamKind int

const (
	// KindFixed pins a hyperparameter to a single value.
	KindFixed ParamKind = iota
	// KindCategorical searches over a finite set of string choices.
	KindCategorical
	// KindFloat searches a continuous range, optionally on a log scale.
	KindFloat
	// KindInt searches an integer range.
	KindInt
)

// Param is one entry of a hyperparameter search space.
type Param struct {
	Name    string
	Kind    ParamKind
	Value   interface{} // KindFixed
	Choices []string    // KindCategorical
	Low     float64     // KindFloat / KindInt
	High    float64
	Log     bool // KindFloat only
}

// Fixed pins name to value.
func Fixed(name string, value interface{}) Param {
	return Param{Name: name, Kind: KindFixed, Value: value}
}

// Categorical searches name over choices.
func Categorical(name string, choices ...string) Param {
	return Param{Name: name, Kind: KindCategorical, Choices: choices}
}

// FloatRange searches name over [low, high].
func FloatRange(name string, low, high float64) Param {
	return Param{Name: name, Kind: KindFloat, Low: low, High: high}
}

// LogFloatRange searches name over [low, high] on a log scale.
func LogFloatRange(name string, low, high float64) Param {
	return Param{Name: name, Kind: KindFloat, Low: low, High: high, Log: true}
}

// IntRange searches name over the integers of [low, high].
func IntRange(name string, low, high int) Param {
	return Param{Name: name, Kind: KindInt, Low: float64(low), High: float64(high)}
}

// Space is an immutable hyperparameter search space. Construct it once per
// model family; With derives variants without mutating the receiver.
type Space struct {
	params []Param
	byName map[string]int
}

// NewSpace validates the entries and builds the space. Duplicate names,
// empty categorical choices and inverted ranges are configuration errors.
func NewSpace(params ...Param) (*Space, error) {
	byName := make(map[string]int, len(params))
	for i, p := range params {
		if p.Name == "" {
			return nil, errors.NewConfigurationError("space", "hyperparameter name is empty", nil)
		}
		if _, dup := byName[p.Name]; dup {
			return nil, errors.NewConfigurationError(p.Name, "duplicate hyperparameter entry", nil)
		}
		switch p.Kind {
		case KindFixed:
			if p.Value == nil {
				return nil, errors.NewConfigurationError(p.Name, "fixed hyperparameter has no value", nil)
			}
		case KindCategorical:
			if len(p.Choices) == 0 {
				return nil, errors.NewConfigurationError(p.Name, "categorical hyperparameter has no choices", nil)
			}
		case KindFloat:
			if !(p.Low < p.High) {
				return nil, errors.NewConfigurationError(p.Name, "float range is empty or inverted", fmt.Sprintf("[%g, %g]", p.Low, p.High))
			}
			if p.Log && p.Low <= 0 {
				return nil, errors.NewConfigurationError(p.Name, "log-scaled range requires a positive lower bound", p.Low)
			}
		case KindInt:
			if !(p.Low <= p.High) {
				return nil, errors.NewConfigurationError(p.Name, "integer range is empty or inverted", fmt.Sprintf("[%g, %g]", p.Low, p.High))
			}
		default:
			return nil, errors.NewConfigurationError(p.Name, "unknown hyperparameter kind", p.Kind)
		}
		byName[p.Name] = i
	}
	return &Space{params: append([]Param(nil), params...), byName: byName}, nil
}

// MustSpace is NewSpace for spaces known valid at compile time.
func MustSpace(params ...Param) *Space {
	s, err := NewSpace(params...)
	if err != nil {
		panic(err)
	}
	return s
}

// Names returns the hyperparameter names in declaration order.
func (s *Space) Names() []string {
	names := make([]string, len(s.params))
	for i, p := range s.params {
		names[i] = p.Name
	}
	return names
}

// Tunable reports whether any entry is not fixed.
func (s *Space) Tunable() bool {
	for _, p := range s.params {
		if p.Kind != KindFixed {
			return true
		}
	}
	return false
}

// With returns a new space in which the given entries replace or extend the
// receiver's. The receiver is left untouched.
func (s *Space) With(overrides ...Param) (*Space, error) {
	merged := append([]Param(nil), s.params...)
	for _, o := range overrides {
		if i, ok := s.byName[o.Name]; ok {
			merged[i] = o
		} else {
			merged = append(merged, o)
		}
	}
	return NewSpace(merged...)
}

// Suggest draws one configuration from the trial, fixed entries included.
func (s *Space) Suggest(trial goptuna.Trial) (hyperparams.Values, error) {
	values := make(hyperparams.Values, len(s.params))
	for _, p := range s.params {
		switch p.Kind {
		case KindFixed:
			values[p.Name] = p.Value
		case KindCategorical:
			v, err := trial.SuggestCategorical(p.Name, p.Choices)
			if err != nil {
				return nil, errors.Wrapf(err, "suggesting %q", p.Name)
			}
			values[p.Name] = v
		case KindFloat:
			var v float64
			var err error
			if p.Log {
				v, err = trial.SuggestLogFloat(p.Name, p.Low, p.High)
			} else {
				v, err = trial.SuggestFloat(p.Name, p.Low, p.High)
			}
			if err != nil {
				return nil, errors.Wrapf(err, "suggesting %q", p.Name)
			}
			values[p.Name] = v
		case KindInt:
			v, err := trial.SuggestInt(p.Name, int(p.Low), int(p.High))
			if err != nil {
				return nil, errors.Wrapf(err, "suggesting %q", p.Name)
			}
			values[p.Name] = v
		}
	}
	return values, nil
}

// FixedValues returns the configuration used when no search runs: every
// fixed entry, plus the midpoint or first choice of tunable entries so the
// result is always complete.
func (s *Space) FixedValues() hyperparams.Values {
	values := make(hyperparams.Values, len(s.params))
	for _, p := range s.params {
		switch p.Kind {
		case KindFixed:
			values[p.Name] = p.Value
		case KindCategorical:
			values[p.Name] = p.Choices[0]
		case KindFloat:
			if p.Log {
				// Midpoint on the scale the range is searched on.
				values[p.Name] = math.Sqrt(p.Low * p.High)
			} else {
				values[p.Name] = (p.Low + p.High) / 2
			}
		case KindInt:
			values[p.Name] = int((p.Low + p.High) / 2)
		}
	}
	return values
}

// sortedNames returns the names of the tunable entries, sorted. Importance
// reports follow this order so output is deterministic across runs.
func (s *Space) sortedNames() []string {
	names := make([]string, 0, len(s.params))
	for _, p := range s.params {
		if p.Kind != KindFixed {
			names = append(names, p.Name)
		}
	}
	sort.Strings(names)
	return names
}
