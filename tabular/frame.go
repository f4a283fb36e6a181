// Package tabular implements the small column-oriented frame the pipeline
// works with after extraction. Numeric columns use NaN for missing values,
// categorical columns use the empty string.
package tabular

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/clinfold/pkg/errors"
)

// Kind distinguishes the two column families.
type Kind int

const (
	// Numeric columns hold float64 values, NaN meaning missing.
	Numeric Kind = iota
	// Categorical columns hold string labels, "" meaning missing.
	Categorical
)

// Column is one named column of a Frame.
type Column struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Strings []string
}

// NumericColumn builds a numeric column.
func NumericColumn(name string, values []float64) Column {
	return Column{Name: name, Kind: Numeric, Floats: values}
}

// CategoricalColumn builds a categorical column.
func CategoricalColumn(name string, values []string) Column {
	return Column{Name: name, Kind: Categorical, Strings: values}
}

func (c Column) len() int {
	if c.Kind == Numeric {
		return len(c.Floats)
	}
	return len(c.Strings)
}

// Frame is a fixed-schema table of participant rows. Row order is the row
// index used by masks; it never changes after construction.
type Frame struct {
	ids   []string
	cols  []Column
	index map[string]int
}

// NewFrame builds a frame from row IDs and columns. All columns must have
// exactly one value per ID; column names and row IDs must be unique.
func NewFrame(ids []string, cols ...Column) (*Frame, error) {
	f := &Frame{
		ids:   append([]string(nil), ids...),
		cols:  make([]Column, 0, len(cols)),
		index: make(map[string]int, len(cols)),
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, errors.NewConfigurationError(id, "duplicate row identifier", nil)
		}
		seen[id] = struct{}{}
	}
	for _, c := range cols {
		if c.len() != len(ids) {
			return nil, errors.NewDimensionError("tabular.NewFrame", len(ids), c.len(), 0)
		}
		if _, dup := f.index[c.Name]; dup {
			return nil, errors.NewConfigurationError(c.Name, "duplicate column name", nil)
		}
		f.index[c.Name] = len(f.cols)
		f.cols = append(f.cols, c)
	}
	return f, nil
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int { return len(f.ids) }

// IDs returns the row identifiers in row order.
func (f *Frame) IDs() []string { return f.ids }

// ColumnNames returns all column names in schema order.
func (f *Frame) ColumnNames() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Has reports whether the frame contains the named column.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the named column.
func (f *Frame) Column(name string) (Column, error) {
	i, ok := f.index[name]
	if !ok {
		return Column{}, errors.NewConfigurationError(name, "column not part of the frame", nil)
	}
	return f.cols[i], nil
}

// Numeric returns the values of a numeric column.
func (f *Frame) Numeric(name string) ([]float64, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind != Numeric {
		return nil, errors.NewConfigurationError(name, "column is not numeric", nil)
	}
	return c.Floats, nil
}

// Categorical returns the values of a categorical column.
func (f *Frame) Categorical(name string) ([]string, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind != Categorical {
		return nil, errors.NewConfigurationError(name, "column is not categorical", nil)
	}
	return c.Strings, nil
}

// Subset returns a new frame holding only the given rows, in the given order.
func (f *Frame) Subset(rows []int) (*Frame, error) {
	for _, r := range rows {
		if r < 0 || r >= len(f.ids) {
			return nil, errors.NewDataIntegrityError("tabular.Subset", "row index out of range")
		}
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = f.ids[r]
	}
	cols := make([]Column, len(f.cols))
	for j, c := range f.cols {
		sub := Column{Name: c.Name, Kind: c.Kind}
		if c.Kind == Numeric {
			sub.Floats = make([]float64, len(rows))
			for i, r := range rows {
				sub.Floats[i] = c.Floats[r]
			}
		} else {
			sub.Strings = make([]string, len(rows))
			for i, r := range rows {
				sub.Strings[i] = c.Strings[r]
			}
		}
		cols[j] = sub
	}
	return NewFrame(ids, cols...)
}

// DistinctCount counts the distinct non-missing values of a column.
func (f *Frame) DistinctCount(name string) (int, error) {
	c, err := f.Column(name)
	if err != nil {
		return 0, err
	}
	if c.Kind == Numeric {
		seen := make(map[float64]struct{})
		for _, v := range c.Floats {
			if !math.IsNaN(v) {
				seen[v] = struct{}{}
			}
		}
		return len(seen), nil
	}
	seen := make(map[string]struct{})
	for _, v := range c.Strings {
		if v != "" {
			seen[v] = struct{}{}
		}
	}
	return len(seen), nil
}

// Categories returns the sorted distinct non-missing labels of a categorical
// column. The order is stable and is what ordinal encodings are built from.
func (f *Frame) Categories(name string) ([]string, error) {
	values, err := f.Categorical(name)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, v := range values {
		if v != "" {
			seen[v] = struct{}{}
		}
	}
	cats := make([]string, 0, len(seen))
	for v := range seen {
		cats = append(cats, v)
	}
	sort.Strings(cats)
	return cats, nil
}
