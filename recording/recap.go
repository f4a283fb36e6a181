package recording

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/YuminosukeSato/clinfold/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// RecapFileName is the name of the evaluation-level summary file.
const RecapFileName = "summary.json"

// MetricRecap aggregates one metric over the completed folds.
type MetricRecap struct {
	Values map[string]float64 `json:"values"`
	Mean   float64            `json:"mean"`
	Std    float64            `json:"std"`
}

// Recap is the evaluation-level summary written next to the fold
// directories.
type Recap struct {
	Name    string                 `json:"name"`
	Metrics map[string]MetricRecap `json:"metrics"`
}

// GenerateRecap walks the Split_<k> directories of one evaluation, gathers
// every recorded score and writes a per-metric mean and sample standard
// deviation to summary.json. Folds without a record file are skipped; an
// evaluation with none is a configuration error.
func GenerateRecap(root, evaluation string) (*Recap, error) {
	evalDir := filepath.Join(root, evaluation)
	entries, err := os.ReadDir(evalDir)
	if err != nil {
		return nil, errors.Wrap(err, "reading evaluation directory")
	}

	perMetric := make(map[string]map[string]float64)
	found := false
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		var k int
		if _, err := fmt.Sscanf(entry.Name(), "Split_%d", &k); err != nil {
			continue
		}
		rec, err := LoadRecords(filepath.Join(evalDir, entry.Name()))
		if err != nil {
			continue
		}
		found = true
		for metric, score := range rec.Scores {
			if perMetric[metric] == nil {
				perMetric[metric] = make(map[string]float64)
			}
			perMetric[metric][entry.Name()] = score
		}
	}
	if !found {
		return nil, errors.NewConfigurationError("evaluation", "no fold records found", evaluation)
	}

	recap := &Recap{Name: evaluation, Metrics: make(map[string]MetricRecap, len(perMetric))}
	for metric, values := range perMetric {
		folds := make([]string, 0, len(values))
		for f := range values {
			folds = append(folds, f)
		}
		sort.Strings(folds)
		ordered := make([]float64, len(folds))
		for i, f := range folds {
			ordered[i] = values[f]
		}

		std := 0.0
		if len(ordered) > 1 {
			std = stat.StdDev(ordered, nil)
		}
		recap.Metrics[metric] = MetricRecap{
			Values: values,
			Mean:   stat.Mean(ordered, nil),
			Std:    std,
		}
	}

	data, err := json.MarshalIndent(recap, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshaling recap")
	}
	if err := os.WriteFile(filepath.Join(evalDir, RecapFileName), data, 0o644); err != nil {
		return nil, errors.Wrap(err, "writing recap")
	}
	return recap, nil
}
