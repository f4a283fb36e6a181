package models

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/clinfold/hyperparams"
	"github.com/YuminosukeSato/clinfold/pkg/errors"
)

// MLPRegressor is a fully-connected feed-forward regressor trained by
// mini-batch gradient descent with weight decay. It implements
// GradientAdapter, so the epoch loop, early stopping and checkpointing are
// owned by the trainer.
type MLPRegressor struct {
	NLayers     int
	NUnits      int
	Activation  string
	LR          float64
	WeightDecay float64
	Seed        uint64

	sizes   []int
	w       [][]float64 // w[l] is (sizes[l+1] x sizes[l]) row-major
	b       [][]float64
	fitted  bool
	started bool
}

// NewMLPRegressor builds the adapter from hyperparameters. Recognized
// entries: "n_layers" (default 1), "n_units" (default 8), "activation"
// ("relu" or "tanh", default "relu"), "lr" (default 0.01), "weight_decay"
// (default 0), "seed".
func NewMLPRegressor(hp hyperparams.Values) (Adapter, error) {
	m := &MLPRegressor{
		NLayers:     hp.Int("n_layers", 1),
		NUnits:      hp.Int("n_units", 8),
		Activation:  hp.String("activation", "relu"),
		LR:          hp.Float("lr", 0.01),
		WeightDecay: hp.Float("weight_decay", 0),
		Seed:        uint64(hp.Int("seed", 0)),
	}
	if m.NLayers <= 0 || m.NUnits <= 0 {
		return nil, errors.NewConfigurationError("n_layers/n_units", "hidden layout must be positive", nil)
	}
	if m.Activation != "relu" && m.Activation != "tanh" {
		return nil, errors.NewConfigurationError("activation", "must be relu or tanh", m.Activation)
	}
	if m.LR <= 0 {
		return nil, errors.NewConfigurationError("lr", "learning rate must be positive", m.LR)
	}
	return m, nil
}

// Name implements Adapter.
func (m *MLPRegressor) Name() string { return "MLPRegressor" }

// BeginFit implements GradientAdapter.
func (m *MLPRegressor) BeginFit(train Inputs) error {
	X := train.Combined()
	if X == nil || train.Len() == 0 {
		return errors.Wrap(errors.ErrEmptyData, "MLPRegressor.BeginFit")
	}
	_, nFeatures := X.Dims()

	m.sizes = make([]int, 0, m.NLayers+2)
	m.sizes = append(m.sizes, nFeatures)
	for l := 0; l < m.NLayers; l++ {
		m.sizes = append(m.sizes, m.NUnits)
	}
	m.sizes = append(m.sizes, 1)

	rng := rand.New(rand.NewPCG(m.Seed, m.Seed))
	m.w = make([][]float64, len(m.sizes)-1)
	m.b = make([][]float64, len(m.sizes)-1)
	for l := 0; l < len(m.sizes)-1; l++ {
		in, out := m.sizes[l], m.sizes[l+1]
		scale := math.Sqrt(2 / float64(in))
		m.w[l] = make([]float64, out*in)
		for i := range m.w[l] {
			m.w[l][i] = rng.NormFloat64() * scale
		}
		m.b[l] = make([]float64, out)
	}
	m.started = true
	m.fitted = false
	return nil
}

// TrainBatch implements GradientAdapter: one gradient-descent step over
// the batch, returning the batch mean squared error.
func (m *MLPRegressor) TrainBatch(batch Inputs) (float64, error) {
	if !m.started {
		return 0, errors.NewNotFittedError("MLPRegressor", "TrainBatch")
	}
	X := batch.Combined()
	n := batch.Len()
	if X == nil || n == 0 {
		return 0, errors.Wrap(errors.ErrEmptyData, "MLPRegressor.TrainBatch")
	}

	gw := make([][]float64, len(m.w))
	gb := make([][]float64, len(m.b))
	for l := range m.w {
		gw[l] = make([]float64, len(m.w[l]))
		gb[l] = make([]float64, len(m.b[l]))
	}

	var loss float64
	row := make([]float64, m.sizes[0])
	for i := 0; i < n; i++ {
		for j := range row {
			row[j] = X.At(i, j)
		}
		acts, preacts := m.forward(row)
		pred := acts[len(acts)-1][0]
		diff := pred - batch.Y[i]
		loss += diff * diff

		m.backward(acts, preacts, 2*diff/float64(n), gw, gb)
	}
	loss /= float64(n)

	for l := range m.w {
		for i := range m.w[l] {
			m.w[l][i] -= m.LR * (gw[l][i] + m.WeightDecay*m.w[l][i])
		}
		for i := range m.b[l] {
			m.b[l][i] -= m.LR * gb[l][i]
		}
	}
	m.fitted = true
	return loss, nil
}

// ValidationLoss implements GradientAdapter: mean squared error over the
// partition, computed in a single pass without touching any weight.
func (m *MLPRegressor) ValidationLoss(valid Inputs) (float64, error) {
	if !m.started {
		return 0, errors.NewNotFittedError("MLPRegressor", "ValidationLoss")
	}
	X := valid.Combined()
	n := valid.Len()
	if X == nil || n == 0 {
		return 0, errors.Wrap(errors.ErrEmptyData, "MLPRegressor.ValidationLoss")
	}
	var loss float64
	row := make([]float64, m.sizes[0])
	for i := 0; i < n; i++ {
		for j := range row {
			row[j] = X.At(i, j)
		}
		acts, _ := m.forward(row)
		diff := acts[len(acts)-1][0] - valid.Y[i]
		loss += diff * diff
	}
	return loss / float64(n), nil
}

// Fit implements Adapter for standalone use without a trainer: a fixed
// number of full-batch epochs.
func (m *MLPRegressor) Fit(train Inputs) error {
	if err := m.BeginFit(train); err != nil {
		return err
	}
	const epochs = 200
	for e := 0; e < epochs; e++ {
		if _, err := m.TrainBatch(train); err != nil {
			return err
		}
	}
	return nil
}

// Predict implements Adapter.
func (m *MLPRegressor) Predict(in Inputs) ([]float64, error) {
	if !m.fitted {
		return nil, errors.NewNotFittedError("MLPRegressor", "Predict")
	}
	X := in.Combined()
	if X == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "MLPRegressor.Predict")
	}
	rows, cols := X.Dims()
	if cols != m.sizes[0] {
		return nil, errors.NewDimensionError("MLPRegressor.Predict", m.sizes[0], cols, 1)
	}
	pred := make([]float64, rows)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		for j := range row {
			row[j] = X.At(i, j)
		}
		acts, _ := m.forward(row)
		pred[i] = acts[len(acts)-1][0]
	}
	return pred, nil
}

// Weights implements GradientAdapter.
func (m *MLPRegressor) Weights() []float64 {
	var flat []float64
	for l := range m.w {
		flat = append(flat, m.w[l]...)
		flat = append(flat, m.b[l]...)
	}
	return flat
}

// SetWeights implements GradientAdapter.
func (m *MLPRegressor) SetWeights(flat []float64) error {
	if !m.started {
		return errors.NewNotFittedError("MLPRegressor", "SetWeights")
	}
	want := 0
	for l := range m.w {
		want += len(m.w[l]) + len(m.b[l])
	}
	if len(flat) != want {
		return errors.NewDimensionError("MLPRegressor.SetWeights", want, len(flat), 1)
	}
	off := 0
	for l := range m.w {
		copy(m.w[l], flat[off:off+len(m.w[l])])
		off += len(m.w[l])
		copy(m.b[l], flat[off:off+len(m.b[l])])
		off += len(m.b[l])
	}
	m.fitted = true
	return nil
}

// forward returns the activations and pre-activations of every layer for
// one input row. acts[0] is the input itself.
func (m *MLPRegressor) forward(x []float64) (acts, preacts [][]float64) {
	acts = make([][]float64, len(m.sizes))
	preacts = make([][]float64, len(m.sizes))
	acts[0] = x

	for l := 0; l < len(m.w); l++ {
		in, out := m.sizes[l], m.sizes[l+1]
		z := make([]float64, out)
		a := make([]float64, out)
		for o := 0; o < out; o++ {
			sum := m.b[l][o]
			for i := 0; i < in; i++ {
				sum += m.w[l][o*in+i] * acts[l][i]
			}
			z[o] = sum
			if l == len(m.w)-1 {
				a[o] = sum // linear output layer
			} else {
				a[o] = m.activate(sum)
			}
		}
		preacts[l+1] = z
		acts[l+1] = a
	}
	return acts, preacts
}

// backward accumulates the gradients of one sample into gw/gb, given the
// derivative of the loss with respect to the scalar output.
func (m *MLPRegressor) backward(acts, preacts [][]float64, dOut float64, gw, gb [][]float64) {
	delta := []float64{dOut}
	for l := len(m.w) - 1; l >= 0; l-- {
		in, out := m.sizes[l], m.sizes[l+1]
		for o := 0; o < out; o++ {
			gb[l][o] += delta[o]
			for i := 0; i < in; i++ {
				gw[l][o*in+i] += delta[o] * acts[l][i]
			}
		}
		if l == 0 {
			break
		}
		prev := make([]float64, in)
		for i := 0; i < in; i++ {
			var sum float64
			for o := 0; o < out; o++ {
				sum += m.w[l][o*in+i] * delta[o]
			}
			prev[i] = sum * m.activateGrad(preacts[l][i])
		}
		delta = prev
	}
}

func (m *MLPRegressor) activate(z float64) float64 {
	if m.Activation == "tanh" {
		return math.Tanh(z)
	}
	if z > 0 {
		return z
	}
	return 0
}

func (m *MLPRegressor) activateGrad(z float64) float64 {
	if m.Activation == "tanh" {
		t := math.Tanh(z)
		return 1 - t*t
	}
	if z > 0 {
		return 1
	}
	return 0
}
