// Package errors provides the error taxonomy shared by the whole pipeline.
//
// Three categories matter to the orchestration layer:
//   - ConfigurationError: invalid experiment setup, fatal before any fold runs.
//   - DataIntegrityError: masks referencing invalid rows or overlapping
//     partitions, fatal at the offending fold.
//   - FoldExecutionError: a single fold failed (divergence, undefined metric,
//     shape mismatch); recorded and the evaluation continues.
//
// All constructors attach a stack trace via cockroachdb/errors.
package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ConfigurationError reports an invalid experiment setup detected before
// any fold runs: unknown column, malformed hyperparameter-space entry,
// out-of-range sampling size, or an evaluation-name collision on disk.
type ConfigurationError struct {
	Param  string
	Reason string
	Value  interface{}
}

func (e *ConfigurationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("clinfold: invalid configuration for %q: %s (got: %v)", e.Param, e.Reason, e.Value)
	}
	return fmt.Sprintf("clinfold: invalid configuration for %q: %s", e.Param, e.Reason)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *ConfigurationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param", e.Param).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ConfigurationError")
}

// NewConfigurationError creates a ConfigurationError with a stack trace.
func NewConfigurationError(param, reason string, value interface{}) error {
	err := &ConfigurationError{Param: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// DataIntegrityError reports a mask that references an out-of-range row
// index or partitions that overlap where they must be disjoint.
type DataIntegrityError struct {
	Op     string
	Reason string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("clinfold: %s: %s", e.Op, e.Reason)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *DataIntegrityError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("reason", e.Reason).
		Str("type", "DataIntegrityError")
}

// NewDataIntegrityError creates a DataIntegrityError with a stack trace.
func NewDataIntegrityError(op, reason string) error {
	err := &DataIntegrityError{Op: op, Reason: reason}
	return errors.WithStack(err)
}

// FoldExecutionError marks the failure of a single fold. It is caught at the
// Evaluator's per-fold boundary and never aborts the remaining folds.
type FoldExecutionError struct {
	Fold  int
	Stage string
	Err   error
}

func (e *FoldExecutionError) Error() string {
	return fmt.Sprintf("clinfold: fold %d failed during %s: %v", e.Fold, e.Stage, e.Err)
}

func (e *FoldExecutionError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *FoldExecutionError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("fold", e.Fold).
		Str("stage", e.Stage).
		AnErr("cause", e.Err).
		Str("type", "FoldExecutionError")
}

// NewFoldExecutionError creates a FoldExecutionError with a stack trace.
func NewFoldExecutionError(fold int, stage string, err error) error {
	foldErr := &FoldExecutionError{Fold: fold, Stage: stage, Err: err}
	return errors.WithStack(foldErr)
}

// NotFittedError is returned when Predict is called on a model whose Fit
// has not completed.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("clinfold: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with a stack trace.
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DimensionError reports input whose shape differs from what a model or
// metric expects.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("clinfold: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// UndefinedMetricError is returned when a metric cannot be computed for the
// label distribution of a fold, e.g. AUC with a single class in the test set.
// It flows through the recoverable FoldExecutionError path.
type UndefinedMetricError struct {
	Metric    string
	Condition string
}

func (e *UndefinedMetricError) Error() string {
	return fmt.Sprintf("clinfold: %q is undefined: %s", e.Metric, e.Condition)
}

// NewUndefinedMetricError creates an UndefinedMetricError with a stack trace.
func NewUndefinedMetricError(metric, condition string) error {
	err := &UndefinedMetricError{Metric: metric, Condition: condition}
	return errors.WithStack(err)
}

// NumericalInstabilityError signals that training produced NaN or Inf values.
// The Evaluator treats it as a recoverable fold failure.
type NumericalInstabilityError struct {
	Operation string
	Epoch     int
	Value     float64
}

func (e *NumericalInstabilityError) Error() string {
	return fmt.Sprintf("clinfold: numerical instability in %s at epoch %d (value: %g)", e.Operation, e.Epoch, e.Value)
}

// NewNumericalInstabilityError creates a NumericalInstabilityError with a stack trace.
func NewNumericalInstabilityError(operation string, epoch int, value float64) error {
	err := &NumericalInstabilityError{Operation: operation, Epoch: epoch, Value: value}
	return errors.WithStack(err)
}

// Wrappers over cockroachdb/errors so callers need a single import.

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap annotates err with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf annotates err with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates a new error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a new formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack attaches a stack trace to err.
func WithStack(err error) error {
	return errors.WithStack(err)
}

var (
	// ErrEmptyData is returned when a model or metric receives no rows.
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix is returned when a linear system cannot be solved.
	ErrSingularMatrix = New("singular matrix")
)
