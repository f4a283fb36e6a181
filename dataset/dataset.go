// Package dataset wraps a tabular frame and maintains the fold-dependent
// feature matrices exposed to models. Imputation and normalization
// statistics are always recomputed from the current training mask only, so
// validation and test rows can never leak into the features a model sees.
package dataset

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/clinfold/pkg/errors"
	"github.com/YuminosukeSato/clinfold/tabular"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Dataset couples the raw frame with the derived, fold-dependent feature
// matrices. It is constructed once per experiment and mutated in place by
// successive UpdateMasks calls, one per fold.
type Dataset struct {
	frame  *tabular.Frame
	target string

	contCols []string
	catCols  []string

	ids []string
	y   []float64

	// Ordinal encodings are fixed at construction; only imputation values
	// change across folds.
	encodings map[string]map[string]int

	train []int
	valid []int
	test  []int

	mu    []float64
	sigma []float64
	modes []string

	xCont *mat.Dense
	xCat  *mat.Dense
}

// New builds a Dataset over the frame. The target column must be numeric
// and every listed column must exist with the matching kind; violations are
// configuration errors raised here, never lazily. The initial training mask
// covers all rows.
func New(f *tabular.Frame, target string, contCols, catCols []string) (*Dataset, error) {
	if len(contCols) == 0 && len(catCols) == 0 {
		return nil, errors.NewConfigurationError("columns", "at least one continuous or categorical column is required", nil)
	}

	y, err := f.Numeric(target)
	if err != nil {
		return nil, err
	}
	for _, c := range contCols {
		if _, err := f.Numeric(c); err != nil {
			return nil, err
		}
	}

	encodings := make(map[string]map[string]int, len(catCols))
	for _, c := range catCols {
		cats, err := f.Categories(c)
		if err != nil {
			return nil, err
		}
		enc := make(map[string]int, len(cats))
		for code, v := range cats {
			enc[v] = code
		}
		encodings[c] = enc
	}

	ds := &Dataset{
		frame:     f,
		target:    target,
		contCols:  append([]string(nil), contCols...),
		catCols:   append([]string(nil), catCols...),
		ids:       f.IDs(),
		y:         append([]float64(nil), y...),
		encodings: encodings,
	}

	all := make([]int, f.NumRows())
	for i := range all {
		all[i] = i
	}
	if err := ds.UpdateMasks(all, nil, nil); err != nil {
		return nil, err
	}
	return ds, nil
}

// Len returns the number of rows.
func (ds *Dataset) Len() int { return ds.frame.NumRows() }

// IDs returns the participant identifiers in row order.
func (ds *Dataset) IDs() []string { return ds.ids }

// Target returns the name of the target column.
func (ds *Dataset) Target() string { return ds.target }

// Y returns the raw target values in row order.
func (ds *Dataset) Y() []float64 { return ds.y }

// ContinuousColumns returns the continuous feature column names.
func (ds *Dataset) ContinuousColumns() []string { return ds.contCols }

// CategoricalColumns returns the categorical feature column names.
func (ds *Dataset) CategoricalColumns() []string { return ds.catCols }

// Encodings returns the fixed ordinal encoding of each categorical column.
func (ds *Dataset) Encodings() map[string]map[string]int { return ds.encodings }

// CategorySizes returns the number of categories per categorical column,
// in column order.
func (ds *Dataset) CategorySizes() []int {
	sizes := make([]int, len(ds.catCols))
	for i, c := range ds.catCols {
		sizes[i] = len(ds.encodings[c])
	}
	return sizes
}

// TrainMask returns the current training row indices.
func (ds *Dataset) TrainMask() []int { return ds.train }

// ValidMask returns the current validation row indices (possibly empty).
func (ds *Dataset) ValidMask() []int { return ds.valid }

// TestMask returns the current test row indices.
func (ds *Dataset) TestMask() []int { return ds.test }

// Frame returns the backing frame.
func (ds *Dataset) Frame() *tabular.Frame { return ds.frame }

// XCont returns the derived continuous feature matrix (rows × continuous
// columns), imputed and standardized with the current training statistics.
func (ds *Dataset) XCont() *mat.Dense { return ds.xCont }

// XCat returns the derived categorical feature matrix (rows × categorical
// columns) with ordinal codes, or nil when no categorical column exists.
func (ds *Dataset) XCat() *mat.Dense { return ds.xCat }

// TrainStats returns the statistics of the current training mask: mean and
// standard deviation per continuous column, mode per categorical column.
func (ds *Dataset) TrainStats() (mu, sigma []float64, modes []string) {
	return ds.mu, ds.sigma, ds.modes
}

// UpdateMasks replaces the fold partitions and recomputes every derived
// statistic and feature matrix from the new training mask. The
// recomputation is total and idempotent: the same training mask always
// yields bit-identical features.
func (ds *Dataset) UpdateMasks(train, valid, test []int) error {
	n := ds.Len()
	for _, partition := range [][]int{train, valid, test} {
		for _, idx := range partition {
			if idx < 0 || idx >= n {
				return errors.NewDataIntegrityError("Dataset.UpdateMasks", "mask references an out-of-range row index")
			}
		}
	}
	if len(train) == 0 {
		return errors.NewDataIntegrityError("Dataset.UpdateMasks", "training mask is empty")
	}
	inTrain := make(map[int]bool, len(train))
	for _, idx := range train {
		inTrain[idx] = true
	}
	for _, idx := range test {
		if inTrain[idx] {
			return errors.NewDataIntegrityError("Dataset.UpdateMasks", "train and test masks overlap")
		}
	}

	ds.train = append([]int(nil), train...)
	ds.valid = append([]int(nil), valid...)
	ds.test = append([]int(nil), test...)

	ds.refreshNumerical()
	ds.refreshCategorical()
	return nil
}

// refreshNumerical recomputes train mean/std per continuous column and
// rebuilds the imputed, standardized continuous matrix.
func (ds *Dataset) refreshNumerical() {
	if len(ds.contCols) == 0 {
		ds.xCont = nil
		ds.mu, ds.sigma = nil, nil
		return
	}

	n := ds.Len()
	ds.mu = make([]float64, len(ds.contCols))
	ds.sigma = make([]float64, len(ds.contCols))
	ds.xCont = mat.NewDense(n, len(ds.contCols), nil)

	for j, name := range ds.contCols {
		values, _ := ds.frame.Numeric(name)

		observed := make([]float64, 0, len(ds.train))
		for _, idx := range ds.train {
			if !math.IsNaN(values[idx]) {
				observed = append(observed, values[idx])
			}
		}

		mu, sigma := 0.0, 1.0
		if len(observed) > 0 {
			mu = stat.Mean(observed, nil)
		}
		if len(observed) > 1 {
			sigma = stat.StdDev(observed, nil)
		}
		// A constant column has zero spread; scaling is a no-op then.
		if sigma == 0 || math.IsNaN(sigma) {
			sigma = 1
		}
		ds.mu[j], ds.sigma[j] = mu, sigma

		for i := 0; i < n; i++ {
			v := values[i]
			if math.IsNaN(v) {
				v = mu
			}
			ds.xCont.Set(i, j, (v-mu)/sigma)
		}
	}
}

// refreshCategorical recomputes train modes per categorical column and
// rebuilds the imputed, ordinal-encoded categorical matrix.
func (ds *Dataset) refreshCategorical() {
	if len(ds.catCols) == 0 {
		ds.xCat = nil
		ds.modes = nil
		return
	}

	n := ds.Len()
	ds.modes = make([]string, len(ds.catCols))
	ds.xCat = mat.NewDense(n, len(ds.catCols), nil)

	for j, name := range ds.catCols {
		values, _ := ds.frame.Categorical(name)
		ds.modes[j] = trainMode(values, ds.train)

		enc := ds.encodings[name]
		for i := 0; i < n; i++ {
			v := values[i]
			if v == "" {
				v = ds.modes[j]
			}
			ds.xCat.Set(i, j, float64(enc[v]))
		}
	}
}

// trainMode returns the most frequent non-missing label among the training
// rows, ties broken by lexicographic order.
func trainMode(values []string, train []int) string {
	counts := make(map[string]int)
	for _, idx := range train {
		if values[idx] != "" {
			counts[values[idx]]++
		}
	}
	labels := make([]string, 0, len(counts))
	for v := range counts {
		labels = append(labels, v)
	}
	sort.Strings(labels)

	mode, best := "", -1
	for _, v := range labels {
		if counts[v] > best {
			mode, best = v, counts[v]
		}
	}
	return mode
}

// Clone returns an independent copy sharing only the immutable backing
// frame. Concurrent fold workers each receive their own clone so that
// UpdateMasks on one can never race a feature read on another.
func (ds *Dataset) Clone() *Dataset {
	cp := &Dataset{
		frame:     ds.frame,
		target:    ds.target,
		contCols:  append([]string(nil), ds.contCols...),
		catCols:   append([]string(nil), ds.catCols...),
		ids:       ds.ids,
		y:         append([]float64(nil), ds.y...),
		encodings: ds.encodings,
		train:     append([]int(nil), ds.train...),
		valid:     append([]int(nil), ds.valid...),
		test:      append([]int(nil), ds.test...),
		mu:        append([]float64(nil), ds.mu...),
		sigma:     append([]float64(nil), ds.sigma...),
		modes:     append([]string(nil), ds.modes...),
	}
	if ds.xCont != nil {
		cp.xCont = mat.DenseCopyOf(ds.xCont)
	}
	if ds.xCat != nil {
		cp.xCat = mat.DenseCopyOf(ds.xCat)
	}
	return cp
}
