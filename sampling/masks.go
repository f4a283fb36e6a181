package sampling

import (
	"encoding/json"
	"os"

	"github.com/YuminosukeSato/clinfold/pkg/errors"
)

// MaskSet is an immutable record of the row-index partitions of one fold.
// An empty Valid partition means the fold carries no validation set.
type MaskSet struct {
	Train []int `json:"train"`
	Valid []int `json:"valid"`
	Test  []int `json:"test"`
}

// FoldMask is one outer fold together with its nested inner folds.
type FoldMask struct {
	MaskSet
	Inner map[int]*MaskSet `json:"inner,omitempty"`
}

// Masks is the full two-level fold hierarchy, keyed by outer-fold index.
type Masks map[int]*FoldMask

// Validate checks that every index of every partition is a valid row
// position in a table of n rows and that test partitions are disjoint from
// train and validation partitions.
func (m Masks) Validate(n int) error {
	for k, fold := range m {
		if err := fold.MaskSet.validate(n); err != nil {
			return errors.Wrapf(err, "outer fold %d", k)
		}
		for j, inner := range fold.Inner {
			if err := inner.validate(n); err != nil {
				return errors.Wrapf(err, "outer fold %d, inner fold %d", k, j)
			}
		}
	}
	return nil
}

func (ms *MaskSet) validate(n int) error {
	for _, partition := range [][]int{ms.Train, ms.Valid, ms.Test} {
		for _, idx := range partition {
			if idx < 0 || idx >= n {
				return errors.NewDataIntegrityError("masks", "row index out of range")
			}
		}
	}
	inTest := intSet(ms.Test)
	for _, idx := range ms.Train {
		if inTest[idx] {
			return errors.NewDataIntegrityError("masks", "train and test masks overlap")
		}
	}
	if len(ms.Valid) > 0 {
		inValid := intSet(ms.Valid)
		for _, idx := range ms.Train {
			if inValid[idx] {
				return errors.NewDataIntegrityError("masks", "train and valid masks overlap")
			}
		}
		for _, idx := range ms.Valid {
			if inTest[idx] {
				return errors.NewDataIntegrityError("masks", "valid and test masks overlap")
			}
		}
	}
	return nil
}

// PushValidToTrain returns a deep copy of the hierarchy in which every
// validation partition has been merged into its training partition. Used
// for model families that train without a validation set.
func (m Masks) PushValidToTrain() Masks {
	out := make(Masks, len(m))
	for k, fold := range m {
		merged := &FoldMask{
			MaskSet: mergeValid(fold.MaskSet),
		}
		if fold.Inner != nil {
			merged.Inner = make(map[int]*MaskSet, len(fold.Inner))
			for j, inner := range fold.Inner {
				ms := mergeValid(*inner)
				merged.Inner[j] = &ms
			}
		}
		out[k] = merged
	}
	return out
}

func mergeValid(ms MaskSet) MaskSet {
	train := make([]int, 0, len(ms.Train)+len(ms.Valid))
	train = append(train, ms.Train...)
	train = append(train, ms.Valid...)
	return MaskSet{
		Train: train,
		Valid: []int{},
		Test:  append([]int(nil), ms.Test...),
	}
}

// Save writes the hierarchy as JSON, keyed by outer-fold index, each fold
// holding train/valid/test index arrays and an inner object of the same
// shape. The format round-trips losslessly through Load.
func (m Masks) Save(path string) error {
	normalized := make(Masks, len(m))
	for k, fold := range m {
		nf := &FoldMask{MaskSet: normalizeMaskSet(fold.MaskSet)}
		if fold.Inner != nil {
			nf.Inner = make(map[int]*MaskSet, len(fold.Inner))
			for j, inner := range fold.Inner {
				ms := normalizeMaskSet(*inner)
				nf.Inner[j] = &ms
			}
		}
		normalized[k] = nf
	}

	data, err := json.MarshalIndent(normalized, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling masks")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "writing mask file")
	}
	return nil
}

func normalizeMaskSet(ms MaskSet) MaskSet {
	out := MaskSet{Train: ms.Train, Valid: ms.Valid, Test: ms.Test}
	if out.Train == nil {
		out.Train = []int{}
	}
	if out.Valid == nil {
		out.Valid = []int{}
	}
	if out.Test == nil {
		out.Test = []int{}
	}
	return out
}

// LoadMasks reads a mask hierarchy previously written by Save.
func LoadMasks(path string) (Masks, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading mask file")
	}
	var m Masks
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "unmarshaling masks")
	}
	return m, nil
}

// ExtractMasks loads a mask file keeping only the first k outer folds and,
// within each, the first l inner folds.
func ExtractMasks(path string, k, l int) (Masks, error) {
	m, err := LoadMasks(path)
	if err != nil {
		return nil, err
	}
	out := make(Masks, k)
	for i := 0; i < k; i++ {
		fold, ok := m[i]
		if !ok {
			return nil, errors.NewConfigurationError("k", "mask file holds fewer outer folds than requested", k)
		}
		trimmed := &FoldMask{MaskSet: fold.MaskSet, Inner: make(map[int]*MaskSet, l)}
		for j := 0; j < l; j++ {
			inner, ok := fold.Inner[j]
			if !ok {
				return nil, errors.NewConfigurationError("l", "mask file holds fewer inner folds than requested", l)
			}
			trimmed.Inner[j] = inner
		}
		out[i] = trimmed
	}
	return out, nil
}

func intSet(s []int) map[int]bool {
	set := make(map[int]bool, len(s))
	for _, v := range s {
		set[v] = true
	}
	return set
}
