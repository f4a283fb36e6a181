package sampling

import (
	"math/rand/v2"

	"github.com/YuminosukeSato/clinfold/pkg/errors"
	"github.com/YuminosukeSato/clinfold/tabular"
)

// Stratifier builds the nested fold hierarchy by repeated stratified
// resampling: each outer fold draws a test partition from the full learning
// set, and each inner fold resamples the outer training partition again.
type Stratifier struct {
	// TestSize is the test share of each split (fraction when < 1,
	// absolute count otherwise).
	TestSize float64
	// ValidSize is the validation share drawn from what remains after the
	// test partition. Zero disables validation partitions.
	ValidSize float64
	// QuantileBins is the number of quantile groups used to stratify
	// continuous targets.
	QuantileBins int
	// Seed makes the produced hierarchy reproducible. Nil draws from the
	// process-wide random source.
	Seed *uint64
}

// NewStratifier returns a Stratifier with the defaults used by the
// experiment scripts: 20% test, 20% validation, 4 quantile bins.
func NewStratifier() *Stratifier {
	return &Stratifier{TestSize: 0.20, ValidSize: 0.20, QuantileBins: DefaultQuantileBins}
}

// Masks draws k outer folds with l inner folds each over the frame's rows,
// stratified on the target column.
func (s *Stratifier) Masks(f *tabular.Frame, target string, k, l int) (Masks, error) {
	if k <= 0 {
		return nil, errors.NewConfigurationError("k", "number of outer folds must be positive", k)
	}
	if l < 0 {
		return nil, errors.NewConfigurationError("l", "number of inner folds must not be negative", l)
	}

	var rng *rand.Rand
	if s.Seed != nil {
		rng = rand.New(rand.NewPCG(*s.Seed, *s.Seed))
	}

	all := make([]int, f.NumRows())
	for i := range all {
		all[i] = i
	}

	masks := make(Masks, k)
	for i := 0; i < k; i++ {
		outer, err := s.split(f, target, all, rng)
		if err != nil {
			return nil, err
		}
		fold := &FoldMask{MaskSet: outer, Inner: make(map[int]*MaskSet, l)}
		for j := 0; j < l; j++ {
			inner, err := s.split(f, target, outer.Train, rng)
			if err != nil {
				return nil, err
			}
			fold.Inner[j] = &inner
		}
		masks[i] = fold
	}

	if err := masks.Validate(f.NumRows()); err != nil {
		return nil, err
	}
	return masks, nil
}

// split draws one stratified (train, valid, test) partition of the given
// rows, mapping sampled positions back to original row indices.
func (s *Stratifier) split(f *tabular.Frame, target string, rows []int, rng *rand.Rand) (MaskSet, error) {
	sub, err := f.Subset(rows)
	if err != nil {
		return MaskSet{}, err
	}

	remaining, test, err := SplitTrainTest(sub, target, s.TestSize, s.QuantileBins, rng)
	if err != nil {
		return MaskSet{}, err
	}

	valid := []int{}
	train := remaining
	if s.ValidSize > 0 {
		remSub, err := sub.Subset(remaining)
		if err != nil {
			return MaskSet{}, err
		}
		trainPos, validPos, err := SplitTrainTest(remSub, target, s.ValidSize, s.QuantileBins, rng)
		if err != nil {
			return MaskSet{}, err
		}
		train = gather(remaining, trainPos)
		valid = gather(remaining, validPos)
	}

	return MaskSet{
		Train: gather(rows, train),
		Valid: gather(rows, valid),
		Test:  gather(rows, test),
	}, nil
}

// gather maps subset positions back to the indices they were drawn from.
func gather(base []int, positions []int) []int {
	out := make([]int, len(positions))
	for i, p := range positions {
		out[i] = base[p]
	}
	return out
}
