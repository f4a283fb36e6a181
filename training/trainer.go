package training

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand/v2"
	"os"

	"github.com/YuminosukeSato/clinfold/models"
	"github.com/YuminosukeSato/clinfold/pkg/errors"
	"github.com/YuminosukeSato/clinfold/pkg/log"
)

// Trainer fits an adapter on one fold's training partition.
type Trainer interface {
	// Fit trains the adapter. valid may be empty, in which case no early
	// stopping takes place.
	Fit(ctx context.Context, train, valid models.Inputs) error

	// Predict delegates to the fitted adapter.
	Predict(in models.Inputs) ([]float64, error)
}

// TrainerConfig carries the knobs of a gradient training run. The zero
// value means: 200 epochs, full-batch, patience 10, checkpoints under the
// system temp directory.
type TrainerConfig struct {
	MaxEpochs     int
	BatchSize     int
	Patience      int
	CheckpointDir string
	Seed          uint64
}

func (c TrainerConfig) withDefaults() TrainerConfig {
	if c.MaxEpochs <= 0 {
		c.MaxEpochs = 200
	}
	if c.Patience <= 0 {
		c.Patience = 10
	}
	if c.CheckpointDir == "" {
		c.CheckpointDir = os.TempDir()
	}
	return c
}

// NewTrainer picks the training strategy for the adapter: an epoch loop
// with early stopping for gradient models, a single Fit call for the rest.
func NewTrainer(adapter models.Adapter, cfg TrainerConfig) Trainer {
	if g, ok := adapter.(models.GradientAdapter); ok {
		return &GradientTrainer{adapter: g, cfg: cfg.withDefaults()}
	}
	return &DirectTrainer{adapter: adapter}
}

// DirectTrainer fits adapters that own their whole optimization internally.
// Validation rows are of no use to such models, so callers merge them into
// the training partition before extraction.
type DirectTrainer struct {
	adapter models.Adapter
}

// Fit implements Trainer.
func (t *DirectTrainer) Fit(ctx context.Context, train, _ models.Inputs) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "training canceled")
	}
	return t.adapter.Fit(train)
}

// Predict implements Trainer.
func (t *DirectTrainer) Predict(in models.Inputs) ([]float64, error) {
	return t.adapter.Predict(in)
}

// GradientTrainer drives a gradient adapter through shuffled mini-batch
// epochs. The validation partition is scored as one batch after each epoch;
// the weights of the best epoch are checkpointed to disk and restored when
// training ends, whether by exhaustion or by early stopping.
type GradientTrainer struct {
	adapter models.GradientAdapter
	cfg     TrainerConfig
}

// Fit implements Trainer.
func (t *GradientTrainer) Fit(ctx context.Context, train, valid models.Inputs) error {
	logger := log.Logger("trainer")

	n := train.Len()
	if n == 0 {
		return errors.Wrap(errors.ErrEmptyData, "GradientTrainer.Fit")
	}
	batchSize := t.cfg.BatchSize
	if batchSize <= 0 || batchSize > n {
		batchSize = n
	}

	if err := t.adapter.BeginFit(train); err != nil {
		return err
	}

	// One checkpoint file per run; folds may train concurrently, so the
	// name must be unique, not derived from the process.
	ckptFile, err := os.CreateTemp(t.cfg.CheckpointDir, fmt.Sprintf("clinfold-%s-*.ckpt", t.adapter.Name()))
	if err != nil {
		return errors.Wrap(err, "creating checkpoint file")
	}
	checkpoint := ckptFile.Name()
	ckptFile.Close()
	defer os.Remove(checkpoint)

	stopper := newEarlyStopper(t.cfg.Patience)
	rng := rand.New(rand.NewPCG(t.cfg.Seed, t.cfg.Seed))

	for epoch := 0; epoch < t.cfg.MaxEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "training canceled at epoch %d", epoch)
		}

		var epochLoss float64
		batches := 0
		for _, batch := range batchIndices(n, batchSize, rng) {
			loss, err := t.adapter.TrainBatch(train.Subset(batch))
			if err != nil {
				return err
			}
			if math.IsNaN(loss) || math.IsInf(loss, 0) {
				return errors.NewNumericalInstabilityError("training loss", epoch, loss)
			}
			epochLoss += loss
			batches++
		}
		epochLoss /= float64(batches)

		if valid.Len() == 0 {
			logger.Debug().Int("epoch", epoch).Float64("train_loss", epochLoss).Msg("epoch done")
			continue
		}

		vloss, err := t.adapter.ValidationLoss(valid)
		if err != nil {
			return err
		}
		if math.IsNaN(vloss) || math.IsInf(vloss, 0) {
			return errors.NewNumericalInstabilityError("validation loss", epoch, vloss)
		}
		logger.Debug().
			Int("epoch", epoch).
			Float64("train_loss", epochLoss).
			Float64("valid_loss", vloss).
			Msg("epoch done")

		improved, stop := stopper.update(epoch, vloss)
		if improved {
			if err := saveWeights(checkpoint, t.adapter.Weights()); err != nil {
				return err
			}
		}
		if stop {
			logger.Debug().Int("best_epoch", stopper.bestEpoch).Msg("early stopping")
			break
		}
	}

	// Restore the weights of the best validation epoch, when one exists.
	if stopper.bestEpoch >= 0 {
		best, err := loadWeights(checkpoint)
		if err != nil {
			return err
		}
		if err := t.adapter.SetWeights(best); err != nil {
			return err
		}
	}
	return nil
}

// Predict implements Trainer.
func (t *GradientTrainer) Predict(in models.Inputs) ([]float64, error) {
	return t.adapter.Predict(in)
}

// batchIndices shuffles the row indices and chunks them. A trailing chunk
// of a single row is dropped when other batches exist, since one-row
// batches destabilize normalization-style layers and gradient estimates.
func batchIndices(n, batchSize int, rng *rand.Rand) [][]int {
	perm := rng.Perm(n)
	var batches [][]int
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}
		batches = append(batches, perm[start:end])
	}
	if len(batches) > 1 && len(batches[len(batches)-1]) == 1 {
		batches = batches[:len(batches)-1]
	}
	return batches
}

// earlyStopper tracks the best validation loss and the epochs elapsed since
// it last improved.
type earlyStopper struct {
	patience  int
	best      float64
	bestEpoch int
	stale     int
}

func newEarlyStopper(patience int) *earlyStopper {
	return &earlyStopper{patience: patience, best: math.Inf(1), bestEpoch: -1}
}

// update records the epoch's validation loss. It returns whether the loss
// improved and whether training should stop.
func (es *earlyStopper) update(epoch int, loss float64) (improved, stop bool) {
	if loss < es.best {
		es.best = loss
		es.bestEpoch = epoch
		es.stale = 0
		return true, false
	}
	es.stale++
	return false, es.stale >= es.patience
}

func saveWeights(path string, w []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating checkpoint")
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(w); err != nil {
		return errors.Wrap(err, "encoding checkpoint")
	}
	return nil
}

func loadWeights(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening checkpoint")
	}
	defer f.Close()
	var w []float64
	if err := gob.NewDecoder(f).Decode(&w); err != nil {
		return nil, errors.Wrap(err, "decoding checkpoint")
	}
	return w, nil
}
