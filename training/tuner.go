package training

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/YuminosukeSato/clinfold/core/parallel"
	"github.com/YuminosukeSato/clinfold/dataset"
	"github.com/YuminosukeSato/clinfold/hyperparams"
	"github.com/YuminosukeSato/clinfold/metrics"
	"github.com/YuminosukeSato/clinfold/models"
	"github.com/YuminosukeSato/clinfold/pkg/errors"
	"github.com/YuminosukeSato/clinfold/pkg/log"
	"github.com/YuminosukeSato/clinfold/sampling"
	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Tuner searches a hyperparameter space with TPE, scoring each candidate
// configuration over the inner folds of one outer fold.
type Tuner struct {
	Space       *Space
	Constructor models.Constructor
	Metric      metrics.Metric
	NTrials     int
	Trainer     TrainerConfig
}

// TuningResult is the outcome of one search.
type TuningResult struct {
	// Best is the selected configuration, fixed entries included.
	Best hyperparams.Values
	// BestValue is the aggregate score of the selected configuration.
	BestValue float64
	// Importance maps each tunable hyperparameter to its normalized share
	// of influence on the trial scores. Empty when no search ran.
	Importance map[string]float64
	// Trials is the number of completed trials.
	Trials int
}

// innerFold is a fully materialized inner fold: feature matrices extracted
// once so trials never touch the shared dataset.
type innerFold struct {
	train models.Inputs
	valid models.Inputs
	test  models.Inputs
}

// Tune runs the search. With NTrials == 0 the space's fixed configuration
// is returned untested, with an empty importance map.
func (t *Tuner) Tune(ctx context.Context, ds *dataset.Dataset, inner map[int]*sampling.MaskSet) (*TuningResult, error) {
	if t.Space == nil || t.Constructor == nil || t.Metric == nil {
		return nil, errors.NewConfigurationError("tuner", "space, constructor and metric are all required", nil)
	}
	if t.NTrials < 0 {
		return nil, errors.NewConfigurationError("n_trials", "trial count must not be negative", t.NTrials)
	}
	if t.NTrials == 0 || !t.Space.Tunable() {
		return &TuningResult{
			Best:       t.Space.FixedValues(),
			Importance: map[string]float64{},
		}, nil
	}
	if len(inner) == 0 {
		return nil, errors.NewConfigurationError("inner", "hyperparameter search requires at least one inner fold", nil)
	}

	folds, err := materializeFolds(ds, inner)
	if err != nil {
		return nil, err
	}

	direction := goptuna.StudyDirectionMinimize
	if t.Metric.Direction() == metrics.Maximize {
		direction = goptuna.StudyDirectionMaximize
	}

	study, err := goptuna.CreateStudy(
		"clinfold-tuning",
		goptuna.StudyOptionSampler(tpe.NewSampler()),
		goptuna.StudyOptionDirection(direction),
		goptuna.StudyOptionLogger(nil),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating study")
	}

	logger := log.Logger("tuner")

	// Track the best configuration ourselves so fixed entries survive.
	var (
		mu        sync.Mutex
		best      hyperparams.Values
		bestValue float64
		hasBest   bool
	)

	objective := func(trial goptuna.Trial) (float64, error) {
		if err := ctx.Err(); err != nil {
			return 0, errors.Wrap(err, "tuning canceled")
		}
		values, err := t.Space.Suggest(trial)
		if err != nil {
			return 0, err
		}
		score, err := t.scoreConfiguration(ctx, values, folds)
		if err != nil {
			return 0, err
		}

		mu.Lock()
		better := !hasBest ||
			(direction == goptuna.StudyDirectionMaximize && score > bestValue) ||
			(direction == goptuna.StudyDirectionMinimize && score < bestValue)
		if better {
			best, bestValue, hasBest = values.Clone(), score, true
		}
		mu.Unlock()

		logger.Debug().Float64("score", score).Interface("values", values).Msg("trial done")
		return score, nil
	}

	if err := study.Optimize(objective, t.NTrials); err != nil {
		return nil, errors.Wrap(err, "optimizing")
	}

	trials, err := study.GetTrials()
	if err != nil {
		return nil, errors.Wrap(err, "collecting trials")
	}

	return &TuningResult{
		Best:       best,
		BestValue:  bestValue,
		Importance: t.importance(trials),
		Trials:     len(trials),
	}, nil
}

// scoreConfiguration trains and scores one configuration on every inner
// fold in parallel, then aggregates the fold scores as mean over standard
// deviation so configurations that score well and consistently win.
func (t *Tuner) scoreConfiguration(ctx context.Context, values hyperparams.Values, folds []innerFold) (float64, error) {
	scores := make([]float64, len(folds))
	foldErrs := make([]error, len(folds))

	parallel.ForEach(len(folds), func(i int) {
		scores[i], foldErrs[i] = t.scoreFold(ctx, values, folds[i])
	})
	for i, err := range foldErrs {
		if err != nil {
			return 0, errors.Wrapf(err, "inner fold %d", i)
		}
	}

	mean := stat.Mean(scores, nil)
	std := 1.0
	if len(scores) > 1 {
		std = stat.PopStdDev(scores, nil)
		if std == 0 {
			std = 1
		}
	}
	return mean / std, nil
}

func (t *Tuner) scoreFold(ctx context.Context, values hyperparams.Values, fold innerFold) (float64, error) {
	adapter, err := t.Constructor(values)
	if err != nil {
		return 0, err
	}
	trainer := NewTrainer(adapter, t.Trainer)

	train := fold.train
	if _, direct := trainer.(*DirectTrainer); direct && fold.valid.Len() > 0 {
		train = mergeInputs(fold.train, fold.valid)
	}
	if err := trainer.Fit(ctx, train, fold.valid); err != nil {
		return 0, err
	}
	pred, err := trainer.Predict(fold.test)
	if err != nil {
		return 0, err
	}
	return t.Metric.Compute(pred, fold.test.Y)
}

// importance attributes a normalized share to each tunable hyperparameter
// from the absolute correlation between its sampled values and the trial
// scores. Zero everywhere when the trials give no signal.
func (t *Tuner) importance(trials []goptuna.FrozenTrial) map[string]float64 {
	names := t.Space.sortedNames()
	raw := make(map[string]float64, len(names))

	for _, name := range names {
		var xs, ys []float64
		for _, trial := range trials {
			if trial.State != goptuna.TrialStateComplete {
				continue
			}
			x, ok := trial.InternalParams[name]
			if !ok {
				continue
			}
			xs = append(xs, x)
			ys = append(ys, trial.Value)
		}
		score := 0.0
		if len(xs) > 1 {
			if r := stat.Correlation(xs, ys, nil); !math.IsNaN(r) {
				score = math.Abs(r)
			}
		}
		raw[name] = score
	}

	var total float64
	for _, v := range raw {
		total += v
	}
	if total > 0 {
		for name := range raw {
			raw[name] /= total
		}
	}
	return raw
}

// materializeFolds clones the dataset once per inner fold, applies the
// fold's masks and extracts the three partitions. Trials then work on
// immutable inputs only, so parallel fold scoring cannot race.
func materializeFolds(ds *dataset.Dataset, inner map[int]*sampling.MaskSet) ([]innerFold, error) {
	keys := make([]int, 0, len(inner))
	for k := range inner {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	folds := make([]innerFold, 0, len(keys))
	for _, k := range keys {
		ms := inner[k]
		clone := ds.Clone()
		if err := clone.UpdateMasks(ms.Train, ms.Valid, ms.Test); err != nil {
			return nil, errors.Wrapf(err, "inner fold %d", k)
		}
		train, err := models.ExtractInputs(clone, ms.Train)
		if err != nil {
			return nil, errors.Wrapf(err, "inner fold %d", k)
		}
		valid, err := models.ExtractInputs(clone, ms.Valid)
		if err != nil {
			return nil, errors.Wrapf(err, "inner fold %d", k)
		}
		test, err := models.ExtractInputs(clone, ms.Test)
		if err != nil {
			return nil, errors.Wrapf(err, "inner fold %d", k)
		}
		folds = append(folds, innerFold{train: train, valid: valid, test: test})
	}
	return folds, nil
}

// mergeInputs concatenates two input sets row-wise. Feature matrices are
// rebuilt, identifiers and targets appended in order.
func mergeInputs(a, b models.Inputs) models.Inputs {
	return models.Inputs{
		XCont: stackDense(a.XCont, b.XCont),
		XCat:  stackDense(a.XCat, b.XCat),
		Y:     append(append([]float64(nil), a.Y...), b.Y...),
		IDs:   append(append([]string(nil), a.IDs...), b.IDs...),
	}
}

func stackDense(a, b *mat.Dense) *mat.Dense {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		return mat.DenseCopyOf(b)
	case b == nil:
		return mat.DenseCopyOf(a)
	}
	ar, c := a.Dims()
	br, _ := b.Dims()
	out := mat.NewDense(ar+br, c, nil)
	for i := 0; i < ar; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, a.At(i, j))
		}
	}
	for i := 0; i < br; i++ {
		for j := 0; j < c; j++ {
			out.Set(ar+i, j, b.At(i, j))
		}
	}
	return out
}
