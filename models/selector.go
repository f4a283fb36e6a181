package models

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/YuminosukeSato/clinfold/dataset"
	"github.com/YuminosukeSato/clinfold/pkg/errors"
)

// FeatureSelectionFileName is the name of the per-fold selection record.
const FeatureSelectionFileName = "feature_selection_records.json"

// FeatureSelector trims the feature set to the columns carrying most of the
// predictive signal, ranked by a random forest fit on the current training
// partition only.
type FeatureSelector struct {
	// Threshold is the cumulative importance the kept features must reach,
	// in (0, 1]. Features are taken in decreasing importance order until
	// the running total first exceeds it.
	Threshold float64
	Seed      uint64
}

// NewFeatureSelector validates the threshold.
func NewFeatureSelector(threshold float64, seed uint64) (*FeatureSelector, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, errors.NewConfigurationError("importance_threshold", "must be in (0, 1]", threshold)
	}
	return &FeatureSelector{Threshold: threshold, Seed: seed}, nil
}

// FeatureImportanceRecord is one feature's ranking entry.
type FeatureImportanceRecord struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
	Selected   bool    `json:"selected"`
}

// FeatureSelection is the outcome of one selection pass: the column lists
// to rebuild the dataset with, plus the full ranking for the records.
type FeatureSelection struct {
	ContCols []string
	CatCols  []string
	Records  []FeatureImportanceRecord
}

// Importance returns the ranking as a name-to-share map.
func (sel *FeatureSelection) Importance() map[string]float64 {
	imp := make(map[string]float64, len(sel.Records))
	for _, r := range sel.Records {
		imp[r.Feature] = r.Importance
	}
	return imp
}

// Save writes the ranking into dir.
func (sel *FeatureSelection) Save(dir string) error {
	data, err := json.MarshalIndent(sel.Records, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling feature selection records")
	}
	if err := os.WriteFile(filepath.Join(dir, FeatureSelectionFileName), data, 0o644); err != nil {
		return errors.Wrap(err, "writing feature selection records")
	}
	return nil
}

// Select fits a default random forest on the dataset's training partition
// and keeps the top features whose cumulative importance share first
// exceeds the threshold. At least one feature is always kept; when no
// split carries any signal every feature is.
func (s *FeatureSelector) Select(ds *dataset.Dataset) (*FeatureSelection, error) {
	if s.Threshold <= 0 || s.Threshold > 1 {
		return nil, errors.NewConfigurationError("importance_threshold", "must be in (0, 1]", s.Threshold)
	}

	train, err := ExtractInputs(ds, ds.TrainMask())
	if err != nil {
		return nil, err
	}
	forest := &RandomForestRegressor{
		NEstimators:     100,
		MaxDepth:        10,
		MinSamplesSplit: 2,
		MaxFeatures:     1.0,
		MaxSamples:      1.0,
		Seed:            s.Seed,
	}
	if err := forest.Fit(train); err != nil {
		return nil, err
	}
	imp, err := forest.FeatureImportances()
	if err != nil {
		return nil, err
	}

	// Feature order matches the [XCont | XCat] layout of Combined.
	names := append(append([]string(nil), ds.ContinuousColumns()...), ds.CategoricalColumns()...)
	records := make([]FeatureImportanceRecord, len(names))
	for i, name := range names {
		records[i] = FeatureImportanceRecord{Feature: name, Importance: imp[i]}
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Importance != records[j].Importance {
			return records[i].Importance > records[j].Importance
		}
		return records[i].Feature < records[j].Feature
	})

	var cumulative float64
	for i := range records {
		cumulative += records[i].Importance
		records[i].Selected = true
		if cumulative > s.Threshold {
			break
		}
	}

	keep := make(map[string]bool, len(records))
	for _, r := range records {
		if r.Selected {
			keep[r.Feature] = true
		}
	}
	sel := &FeatureSelection{Records: records}
	for _, c := range ds.ContinuousColumns() {
		if keep[c] {
			sel.ContCols = append(sel.ContCols, c)
		}
	}
	for _, c := range ds.CategoricalColumns() {
		if keep[c] {
			sel.CatCols = append(sel.CatCols, c)
		}
	}
	return sel, nil
}
