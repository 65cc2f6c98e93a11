// Package nn implements a small feed-forward regression network over OHLCV
// indicator features: ReLU hidden layers with inverted dropout and L2 weight
// decay, a linear output unit, Adam optimization, a mini-batch training loop
// with seeded validation split and early stopping, min-max normalization, and
// model-directory persistence.
package nn

import (
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Config holds the hyperparameters fixed at construction.
type Config struct {
	LearningRate float64
	DropoutRate  float64
	L2Reg        float64
	// Seed drives weight init, dropout masks, and the default split/shuffle
	// order. Zero picks a time-based seed.
	Seed int64
}

// FeatureInfo names the indicator columns a model was trained on, so
// inference can rebuild the same design matrix.
type FeatureInfo struct {
	Inputs []string `json:"inputs"`
	Target string   `json:"target"`
}

// Network is a feed-forward regression network. A Network and its optimizer
// state are owned by a single Train call at a time; nothing here is safe for
// concurrent mutation.
type Network struct {
	inputSize   int
	hiddenSizes []int
	layerSizes  []int
	weights     []*mat.Dense // [fanIn, fanOut] per layer
	biases      []*mat.Dense // [1, fanOut] per layer

	cfg  Config
	rng  *rand.Rand
	opt  *adam
	norm *Normalizer

	history  History
	features FeatureInfo

	// Forward caches consumed by the next Backward call.
	activations []*mat.Dense
	preacts     []*mat.Dense
	masks       []*mat.Dense

	stop atomic.Bool
}

// New constructs a network with the given input width and hidden layer
// widths; the output layer is a single linear unit. Weights use Xavier
// initialization scaled by sqrt(2/(fanIn+fanOut)); biases start at zero.
func New(inputSize int, hiddenSizes []int, cfg Config) (*Network, error) {
	if inputSize <= 0 {
		return nil, &ConfigError{Param: "inputSize", Msg: "must be positive"}
	}
	for _, h := range hiddenSizes {
		if h <= 0 {
			return nil, &ConfigError{Param: "hiddenSizes", Msg: "layer widths must be positive"}
		}
	}
	if cfg.DropoutRate < 0 || cfg.DropoutRate >= 1 {
		return nil, &ConfigError{Param: "dropoutRate", Msg: "must be in [0, 1)"}
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.001
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	n := &Network{
		inputSize:   inputSize,
		hiddenSizes: append([]int(nil), hiddenSizes...),
		cfg:         cfg,
		rng:         rand.New(rand.NewSource(cfg.Seed)),
	}
	n.layerSizes = append([]int{inputSize}, hiddenSizes...)
	n.layerSizes = append(n.layerSizes, 1)

	for i := 0; i < len(n.layerSizes)-1; i++ {
		fanIn, fanOut := n.layerSizes[i], n.layerSizes[i+1]
		scale := math.Sqrt(2.0 / float64(fanIn+fanOut))
		w := mat.NewDense(fanIn, fanOut, nil)
		for r := 0; r < fanIn; r++ {
			for c := 0; c < fanOut; c++ {
				w.Set(r, c, n.rng.NormFloat64()*scale)
			}
		}
		n.weights = append(n.weights, w)
		n.biases = append(n.biases, mat.NewDense(1, fanOut, nil))
	}

	n.opt = newAdam(n.weights, n.biases)
	n.norm = NewNormalizer()
	return n, nil
}

// LayerSizes returns the full layer width list, input through output.
func (n *Network) LayerSizes() []int {
	return append([]int(nil), n.layerSizes...)
}

// History returns the loss records accumulated by Train calls.
func (n *Network) History() History {
	return append(History(nil), n.history...)
}

// Normalizer exposes the fitted min-max parameters.
func (n *Network) Normalizer() *Normalizer { return n.norm }

// SetFeatureInfo records the feature column names the model consumes; the
// names travel with the saved model.
func (n *Network) SetFeatureInfo(inputs []string, target string) {
	n.features = FeatureInfo{Inputs: append([]string(nil), inputs...), Target: target}
}

// FeatureInfo returns the recorded feature column names, if any.
func (n *Network) FeatureInfo() FeatureInfo { return n.features }

// RequestStop asks a running Train call to stop at the next epoch boundary.
// Safe to call from another goroutine.
func (n *Network) RequestStop() { n.stop.Store(true) }

// Forward runs one pass over the batch. With training true, hidden
// activations pass through inverted dropout and the masks, activations, and
// pre-activations are cached for the next Backward call on the same batch.
func (n *Network) Forward(x *mat.Dense, training bool) *mat.Dense {
	n.activations = []*mat.Dense{x}
	n.preacts = n.preacts[:0]
	n.masks = n.masks[:0]

	a := x
	last := len(n.weights) - 1
	for i := 0; i < last; i++ {
		z := linear(a, n.weights[i], n.biases[i])
		n.preacts = append(n.preacts, z)

		act := mat.DenseCopyOf(z)
		reluInPlace(act)

		if training && n.cfg.DropoutRate > 0 {
			mask := n.dropoutMask(act.Dims())
			act.MulElem(act, mask)
			n.masks = append(n.masks, mask)
		} else {
			n.masks = append(n.masks, nil)
		}

		n.activations = append(n.activations, act)
		a = act
	}

	// Output layer: no activation, no dropout.
	out := linear(a, n.weights[last], n.biases[last])
	n.preacts = append(n.preacts, out)
	n.activations = append(n.activations, out)
	return out
}

// Backward consumes the caches of the immediately preceding Forward call and
// applies one Adam step. Weight gradients carry the L2 term; upstream deltas
// pass back through the ReLU derivative and the cached dropout masks.
func (n *Network) Backward(x, y, output *mat.Dense) error {
	if len(n.activations) == 0 {
		return ErrNoForwardPass
	}
	rows, _ := x.Dims()
	outRows, _ := output.Dims()
	if rows != outRows || n.activations[0] != x {
		return ErrNoForwardPass
	}
	m := float64(rows)

	delta := mat.NewDense(rows, 1, nil)
	delta.Sub(output, y)

	nLayers := len(n.weights)
	dWs := make([]*mat.Dense, nLayers)
	dBs := make([]*mat.Dense, nLayers)

	for i := nLayers - 1; i >= 0; i-- {
		aPrev := n.activations[i]
		fanIn, fanOut := n.weights[i].Dims()

		dW := mat.NewDense(fanIn, fanOut, nil)
		dW.Mul(aPrev.T(), delta)
		dW.Scale(1/m, dW)
		if n.cfg.L2Reg > 0 {
			var reg mat.Dense
			reg.Scale(n.cfg.L2Reg, n.weights[i])
			dW.Add(dW, &reg)
		}
		dWs[i] = dW
		dBs[i] = colMean(delta)

		if i > 0 {
			prev := mat.NewDense(rows, n.layerSizes[i], nil)
			prev.Mul(delta, n.weights[i].T())
			applyReluDeriv(prev, n.preacts[i-1])
			if n.masks[i-1] != nil {
				prev.MulElem(prev, n.masks[i-1])
			}
			delta = prev
		}
	}

	n.opt.Step(n.cfg.LearningRate, n.weights, n.biases, dWs, dBs)

	// Caches are single-use; the next Backward needs a fresh Forward.
	n.activations = nil
	n.preacts = nil
	n.masks = nil
	return nil
}

// Predict normalizes raw feature rows with the fitted parameters and returns
// the network output in the normalized target domain, shape [n, 1].
func (n *Network) Predict(x *mat.Dense) *mat.Dense {
	in := x
	if n.norm.Fitted {
		in = n.norm.TransformX(x)
	}
	return n.Forward(in, false)
}

// DenormalizeTarget maps normalized predictions back to the target's scale.
func (n *Network) DenormalizeTarget(y *mat.Dense) *mat.Dense {
	return n.norm.InverseY(y)
}

func (n *Network) dropoutMask(rows, cols int) *mat.Dense {
	keep := 1 - n.cfg.DropoutRate
	scale := 1 / keep
	mask := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if n.rng.Float64() < keep {
				mask.Set(r, c, scale)
			}
		}
	}
	return mask
}

// linear computes x·w + b with the bias row broadcast over the batch.
func linear(x, w, b *mat.Dense) *mat.Dense {
	rows, _ := x.Dims()
	_, out := w.Dims()
	z := mat.NewDense(rows, out, nil)
	z.Mul(x, w)
	for r := 0; r < rows; r++ {
		for c := 0; c < out; c++ {
			z.Set(r, c, z.At(r, c)+b.At(0, c))
		}
	}
	return z
}

func reluInPlace(m *mat.Dense) {
	raw := m.RawMatrix()
	for i := range raw.Data {
		if raw.Data[i] < 0 {
			raw.Data[i] = 0
		}
	}
}

// applyReluDeriv zeroes dst entries whose pre-activation was not positive.
func applyReluDeriv(dst, z *mat.Dense) {
	d := dst.RawMatrix()
	p := z.RawMatrix()
	for i := range d.Data {
		if p.Data[i] <= 0 {
			d.Data[i] = 0
		}
	}
}

func colMean(m *mat.Dense) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(1, cols, nil)
	for c := 0; c < cols; c++ {
		sum := 0.0
		for r := 0; r < rows; r++ {
			sum += m.At(r, c)
		}
		out.Set(0, c, sum/float64(rows))
	}
	return out
}
