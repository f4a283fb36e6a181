// Package recording persists the outcome of an evaluation: one directory
// per outer fold holding the selected hyperparameters, their importance,
// metric scores, per-participant predictions and a compressed model
// artifact, plus an evaluation-level recap and importance chart.
package recording

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/clinfold/hyperparams"
	"github.com/YuminosukeSato/clinfold/pkg/errors"
	"github.com/YuminosukeSato/clinfold/pkg/log"
	"github.com/ulikunitz/xz"
)

// RecordsFileName is the name of the per-fold JSON record.
const RecordsFileName = "records.json"

// ModelFileName is the name of the per-fold compressed model artifact.
const ModelFileName = "model.gob.xz"

// Recorder collects everything one outer fold produces. Record* calls
// accumulate in memory; GenerateFile flushes the JSON record to disk.
type Recorder interface {
	RecordHyperparameters(values hyperparams.Values)
	RecordHyperparametersImportance(importance map[string]float64)
	RecordModel(artifact ModelArtifact) error
	RecordPredictions(ids []string, pred, target []float64) error
	RecordScores(score float64, metricName string)
	GenerateFile() error
}

// ModelArtifact is the persisted form of a trained fold model: enough to
// reload gradient-model weights directly and to retrain any model exactly,
// given the saved masks.
type ModelArtifact struct {
	Name            string
	Hyperparameters hyperparams.Values
	Weights         []float64
}

// PredictionRecord pairs one participant's prediction with its true target.
type PredictionRecord struct {
	Prediction float64 `json:"prediction"`
	Target     float64 `json:"target"`
}

// Records is the JSON shape of one fold's record file.
type Records struct {
	Name                      string                      `json:"name"`
	Index                     int                         `json:"index"`
	Hyperparameters           hyperparams.Values          `json:"hyperparameters,omitempty"`
	HyperparametersImportance map[string]float64          `json:"hyperparameters_importance,omitempty"`
	Scores                    map[string]float64          `json:"scores,omitempty"`
	Predictions               map[string]PredictionRecord `json:"predictions,omitempty"`
}

// FileRecorder writes one outer fold's records under
// <root>/<evaluation>/Split_<index>/.
type FileRecorder struct {
	dir     string
	records Records
}

// NewFileRecorder creates the fold directory and an empty record.
func NewFileRecorder(root, evaluation string, index int) (*FileRecorder, error) {
	dir := filepath.Join(root, evaluation, fmt.Sprintf("Split_%d", index))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating fold directory")
	}
	return &FileRecorder{
		dir: dir,
		records: Records{
			Name:  evaluation,
			Index: index,
		},
	}, nil
}

// Dir returns the fold directory.
func (r *FileRecorder) Dir() string { return r.dir }

// RecordHyperparameters implements Recorder.
func (r *FileRecorder) RecordHyperparameters(values hyperparams.Values) {
	r.records.Hyperparameters = values.Clone()
}

// RecordHyperparametersImportance implements Recorder.
func (r *FileRecorder) RecordHyperparametersImportance(importance map[string]float64) {
	cp := make(map[string]float64, len(importance))
	for k, v := range importance {
		cp[k] = v
	}
	r.records.HyperparametersImportance = cp
}

// RecordModel implements Recorder: the artifact is gob-encoded and
// xz-compressed next to the JSON record.
func (r *FileRecorder) RecordModel(artifact ModelArtifact) error {
	f, err := os.Create(filepath.Join(r.dir, ModelFileName))
	if err != nil {
		return errors.Wrap(err, "creating model artifact")
	}
	defer f.Close()

	w, err := xz.NewWriter(f)
	if err != nil {
		return errors.Wrap(err, "opening xz writer")
	}
	if err := gob.NewEncoder(w).Encode(artifact); err != nil {
		return errors.Wrap(err, "encoding model artifact")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "closing xz writer")
	}
	return nil
}

// RecordPredictions implements Recorder.
func (r *FileRecorder) RecordPredictions(ids []string, pred, target []float64) error {
	if len(ids) != len(pred) || len(ids) != len(target) {
		return errors.NewDimensionError("RecordPredictions", len(ids), len(pred), 0)
	}
	if r.records.Predictions == nil {
		r.records.Predictions = make(map[string]PredictionRecord, len(ids))
	}
	for i, id := range ids {
		r.records.Predictions[id] = PredictionRecord{Prediction: pred[i], Target: target[i]}
	}
	return nil
}

// RecordScores implements Recorder.
func (r *FileRecorder) RecordScores(score float64, metricName string) {
	if r.records.Scores == nil {
		r.records.Scores = make(map[string]float64)
	}
	r.records.Scores[metricName] = score
}

// GenerateFile implements Recorder.
func (r *FileRecorder) GenerateFile() error {
	data, err := json.MarshalIndent(r.records, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling records")
	}
	path := filepath.Join(r.dir, RecordsFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "writing records")
	}
	logger := log.Logger("recording")
	logger.Info().Str("path", path).Msg("fold records written")
	return nil
}

// LoadRecords reads one fold's record file.
func LoadRecords(dir string) (*Records, error) {
	data, err := os.ReadFile(filepath.Join(dir, RecordsFileName))
	if err != nil {
		return nil, errors.Wrap(err, "reading records")
	}
	var rec Records
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(err, "unmarshaling records")
	}
	return &rec, nil
}

// LoadModelArtifact reads a fold's compressed model artifact.
func LoadModelArtifact(dir string) (*ModelArtifact, error) {
	f, err := os.Open(filepath.Join(dir, ModelFileName))
	if err != nil {
		return nil, errors.Wrap(err, "opening model artifact")
	}
	defer f.Close()

	r, err := xz.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "opening xz reader")
	}
	var artifact ModelArtifact
	if err := gob.NewDecoder(r).Decode(&artifact); err != nil {
		return nil, errors.Wrap(err, "decoding model artifact")
	}
	return &artifact, nil
}
