// Package clinfold implements a nested cross-validation pipeline for
// clinical outcome prediction on small tabular cohorts.
//
// An experiment starts from a study table of participants, builds a
// two-level hierarchy of stratified folds, and for every outer fold tunes
// hyperparameters on the inner folds before retraining and scoring on the
// held-out test partition. Imputation and normalization statistics are
// always recomputed from the current training rows only, so no information
// from validation or test participants ever reaches the features a model
// is fitted on.
//
// # Quick Start
//
//	frame, err := manager.GetTable("STUDY_TABLE")
//	ds, err := dataset.New(frame, "outcome", contCols, catCols)
//
//	strat := sampling.NewStratifier()
//	masks, err := strat.Masks(frame, "outcome", 5, 5)
//
//	ev := &training.Evaluator{
//	    Name:         "linear_baseline",
//	    Dataset:      ds,
//	    Masks:        masks,
//	    Constructor:  models.NewLinearRegressor,
//	    Space:        training.MustSpace(training.LogFloatRange("alpha", 1e-4, 1)),
//	    TuningMetric: metrics.RMSE{},
//	    EvalMetrics:  []metrics.Metric{metrics.MAE{}, metrics.RMSE{}, metrics.Pearson{}},
//	    NTrials:      50,
//	    RecordsRoot:  "records",
//	}
//	summary, err := ev.Evaluate(ctx)
//
// # Packages
//
//   - extraction: read-only SQLite access to the study database
//   - tabular: typed column frames with missing-value markers
//   - sampling: stratified sampling and the nested mask hierarchy
//   - dataset: fold-dependent feature matrices and the similarity graph view
//   - models: model adapters (linear, random forest, MLP)
//   - training: hyperparameter search, training loop and the evaluator
//   - metrics: regression and binary classification scores
//   - recording: per-fold records, model artifacts and the recap
package clinfold
