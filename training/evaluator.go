package training

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/YuminosukeSato/clinfold/dataset"
	"github.com/YuminosukeSato/clinfold/metrics"
	"github.com/YuminosukeSato/clinfold/models"
	"github.com/YuminosukeSato/clinfold/pkg/errors"
	"github.com/YuminosukeSato/clinfold/pkg/log"
	"github.com/YuminosukeSato/clinfold/recording"
	"github.com/YuminosukeSato/clinfold/sampling"
)

// Evaluator runs one model family through the full nested cross-validation:
// per outer fold it tunes on the inner folds, retrains on the outer
// training partition and scores the held-out test partition, recording
// everything under RecordsRoot/<Name>/Split_<k>.
type Evaluator struct {
	// Name identifies the evaluation on disk. Reusing the name of an
	// existing evaluation under RecordsRoot is a configuration error.
	Name string

	Dataset     *dataset.Dataset
	Masks       sampling.Masks
	Constructor models.Constructor
	Space       *Space

	// TuningMetric drives the hyperparameter search.
	TuningMetric metrics.Metric
	// EvalMetrics are scored on each outer test partition.
	EvalMetrics []metrics.Metric

	// Selector, when set, reruns feature selection on each outer fold's
	// training partition and the fold proceeds on the reduced columns.
	Selector *models.FeatureSelector

	NTrials int
	Trainer TrainerConfig

	RecordsRoot string
	// PlotImportance renders a bar chart of hyperparameter importance in
	// each fold directory when a search ran.
	PlotImportance bool

	// NewRecorder builds the recorder for one outer fold. Nil means a
	// FileRecorder under RecordsRoot/<Name>/Split_<fold>.
	NewRecorder func(fold int) (recording.Recorder, error)
}

// FoldResult is the outcome of one outer fold.
type FoldResult struct {
	Fold      int
	Completed bool
	Scores    map[string]float64
	Err       error
}

// Summary lists every outer fold as completed or failed, in fold order.
type Summary struct {
	Name  string
	Folds []FoldResult
	Recap *recording.Recap
}

// Completed returns the number of folds that finished.
func (s *Summary) Completed() int {
	n := 0
	for _, f := range s.Folds {
		if f.Completed {
			n++
		}
	}
	return n
}

// Failed returns the number of folds that did not finish.
func (s *Summary) Failed() int { return len(s.Folds) - s.Completed() }

// Evaluate runs every outer fold. Setup problems (invalid configuration,
// corrupt masks, a name collision on disk) abort before any fold runs; a
// failure inside a fold is wrapped in a FoldExecutionError, reported in the
// summary and the remaining folds still run. Context cancellation aborts
// the evaluation.
func (e *Evaluator) Evaluate(ctx context.Context) (*Summary, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	if err := e.Masks.Validate(e.Dataset.Len()); err != nil {
		return nil, err
	}

	logger := log.Logger("evaluator")

	keys := make([]int, 0, len(e.Masks))
	for k := range e.Masks {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	summary := &Summary{Name: e.Name}
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "evaluation canceled before fold %d", k)
		}

		scores, err := e.evaluateFold(ctx, k, e.Masks[k])
		if err != nil {
			if isFatal(err) || ctx.Err() != nil {
				return nil, err
			}
			var foldErr *errors.FoldExecutionError
			if !errors.As(err, &foldErr) {
				err = errors.NewFoldExecutionError(k, "unknown", err)
				errors.As(err, &foldErr)
			}
			logger.Warn().Object("error", foldErr).Msg("fold failed")
			summary.Folds = append(summary.Folds, FoldResult{Fold: k, Err: err})
			continue
		}
		logger.Info().Int("fold", k).Msg("fold completed")
		summary.Folds = append(summary.Folds, FoldResult{Fold: k, Completed: true, Scores: scores})
	}

	if summary.Completed() > 0 {
		recap, err := recording.GenerateRecap(e.RecordsRoot, e.Name)
		if err != nil {
			return nil, err
		}
		summary.Recap = recap
	}
	return summary, nil
}

// check validates the setup before any fold runs.
func (e *Evaluator) check() error {
	switch {
	case e.Name == "":
		return errors.NewConfigurationError("name", "evaluation name is required", nil)
	case e.Dataset == nil:
		return errors.NewConfigurationError("dataset", "dataset is required", nil)
	case len(e.Masks) == 0:
		return errors.NewConfigurationError("masks", "at least one outer fold is required", nil)
	case e.Constructor == nil:
		return errors.NewConfigurationError("constructor", "model constructor is required", nil)
	case e.Space == nil:
		return errors.NewConfigurationError("space", "hyperparameter space is required", nil)
	case e.TuningMetric == nil:
		return errors.NewConfigurationError("tuning_metric", "tuning metric is required", nil)
	case len(e.EvalMetrics) == 0:
		return errors.NewConfigurationError("eval_metrics", "at least one evaluation metric is required", nil)
	case e.RecordsRoot == "":
		return errors.NewConfigurationError("records_root", "records root directory is required", nil)
	}
	if _, err := os.Stat(filepath.Join(e.RecordsRoot, e.Name)); err == nil {
		return errors.NewConfigurationError("name", "an evaluation with this name already exists", e.Name)
	}
	return nil
}

// evaluateFold runs the tune / train / score / persist pipeline of one
// outer fold. Every returned error is tagged with the fold and the stage
// it failed in.
func (e *Evaluator) evaluateFold(ctx context.Context, k int, fold *sampling.FoldMask) (map[string]float64, error) {
	ds := e.Dataset.Clone()
	if err := ds.UpdateMasks(fold.Train, fold.Valid, fold.Test); err != nil {
		return nil, err
	}

	var selection *models.FeatureSelection
	if e.Selector != nil {
		sel, err := e.Selector.Select(ds)
		if err != nil {
			if isFatal(err) {
				return nil, err
			}
			return nil, errors.NewFoldExecutionError(k, "feature_selection", err)
		}
		reduced, err := dataset.New(ds.Frame(), ds.Target(), sel.ContCols, sel.CatCols)
		if err != nil {
			return nil, err
		}
		if err := reduced.UpdateMasks(fold.Train, fold.Valid, fold.Test); err != nil {
			return nil, err
		}
		ds, selection = reduced, sel
	}

	tuner := &Tuner{
		Space:       e.Space,
		Constructor: e.Constructor,
		Metric:      e.TuningMetric,
		NTrials:     e.NTrials,
		Trainer:     e.Trainer,
	}
	result, err := tuner.Tune(ctx, ds, fold.Inner)
	if err != nil {
		if isFatal(err) {
			return nil, err
		}
		return nil, errors.NewFoldExecutionError(k, "tuning", err)
	}

	recorder, err := e.newRecorder(k)
	if err != nil {
		return nil, errors.NewFoldExecutionError(k, "recording", err)
	}
	recorder.RecordHyperparameters(result.Best)
	recorder.RecordHyperparametersImportance(result.Importance)
	if selection != nil {
		if fr, ok := recorder.(interface{ Dir() string }); ok {
			if err := selection.Save(fr.Dir()); err != nil {
				return nil, errors.NewFoldExecutionError(k, "recording", err)
			}
		}
	}

	adapter, err := e.Constructor(result.Best)
	if err != nil {
		// A configuration the space itself produced must be buildable.
		return nil, err
	}
	trainer := NewTrainer(adapter, e.Trainer)

	train, err := models.ExtractInputs(ds, fold.Train)
	if err != nil {
		return nil, err
	}
	valid, err := models.ExtractInputs(ds, fold.Valid)
	if err != nil {
		return nil, err
	}
	test, err := models.ExtractInputs(ds, fold.Test)
	if err != nil {
		return nil, err
	}
	if _, direct := trainer.(*DirectTrainer); direct && valid.Len() > 0 {
		train = mergeInputs(train, valid)
	}

	if err := trainer.Fit(ctx, train, valid); err != nil {
		if isFatal(err) {
			return nil, err
		}
		return nil, errors.NewFoldExecutionError(k, "training", err)
	}

	pred, err := trainer.Predict(test)
	if err != nil {
		return nil, errors.NewFoldExecutionError(k, "prediction", err)
	}

	artifact := recording.ModelArtifact{
		Name:            adapter.Name(),
		Hyperparameters: result.Best,
	}
	if g, ok := adapter.(models.GradientAdapter); ok {
		artifact.Weights = g.Weights()
	}
	if err := recorder.RecordModel(artifact); err != nil {
		return nil, errors.NewFoldExecutionError(k, "recording", err)
	}

	if err := recorder.RecordPredictions(test.IDs, pred, test.Y); err != nil {
		return nil, errors.NewFoldExecutionError(k, "recording", err)
	}

	scores := make(map[string]float64, len(e.EvalMetrics))
	for _, metric := range e.EvalMetrics {
		score, err := metric.Compute(pred, test.Y)
		if err != nil {
			return nil, errors.NewFoldExecutionError(k, "scoring", err)
		}
		scores[metric.Name()] = score
		recorder.RecordScores(score, metric.Name())
	}

	if err := recorder.GenerateFile(); err != nil {
		return nil, errors.NewFoldExecutionError(k, "recording", err)
	}

	if e.PlotImportance && len(result.Importance) > 0 {
		if fr, ok := recorder.(interface{ Dir() string }); ok {
			chart := filepath.Join(fr.Dir(), "hyperparameter_importance.png")
			if err := recording.PlotHyperparameterImportance(result.Importance, e.Name, chart); err != nil {
				return nil, errors.NewFoldExecutionError(k, "recording", err)
			}
		}
	}
	return scores, nil
}

// newRecorder builds the fold recorder, defaulting to a FileRecorder.
func (e *Evaluator) newRecorder(fold int) (recording.Recorder, error) {
	if e.NewRecorder != nil {
		return e.NewRecorder(fold)
	}
	return recording.NewFileRecorder(e.RecordsRoot, e.Name, fold)
}

// isFatal reports whether the error must abort the whole evaluation rather
// than fail a single fold.
func isFatal(err error) bool {
	var cfg *errors.ConfigurationError
	var integrity *errors.DataIntegrityError
	return errors.As(err, &cfg) || errors.As(err, &integrity)
}
