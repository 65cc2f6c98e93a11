package nn

import (
	"math"
	"math/rand"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

// TrainConfig holds the per-call training parameters. A Train call reads
// nothing but this record and the network's construction config.
type TrainConfig struct {
	Epochs          int
	BatchSize       int
	ValidationSplit float64
	// Patience is the number of consecutive epochs without validation
	// improvement tolerated before early stopping. Zero disables it.
	Patience int
	// Seed overrides the network seed for the split and epoch shuffles.
	Seed int64
	// Progress receives one event per epoch; a panicking subscriber is
	// recovered and logged, never aborts training.
	Progress ProgressFunc
}

// ProgressEvent is published after every epoch.
type ProgressEvent struct {
	Epoch     int
	TrainLoss float64
	ValLoss   float64
}

// ProgressFunc consumes the trainer's progress stream.
type ProgressFunc func(ProgressEvent)

// EpochRecord is one entry of the training history.
type EpochRecord struct {
	Epoch     int     `json:"epoch"`
	TrainLoss float64 `json:"train_loss"`
	ValLoss   float64 `json:"val_loss"`
}

// History is the ordered loss record of a training run.
type History []EpochRecord

type checkpoint struct {
	weights []*mat.Dense
	biases  []*mat.Dense
}

// Train fits the network on raw (unnormalized) features and target. It splits
// the rows into train/validation with a seeded shuffle, fits the normalizer
// on the training split only, then runs seeded mini-batch epochs with early
// stopping on validation loss. The returned history covers this call;
// Network.History accumulates across calls.
func (n *Network) Train(x, y *mat.Dense, cfg TrainConfig) (History, error) {
	rows, cols := x.Dims()
	yRows, yCols := y.Dims()
	if yCols != 1 {
		return nil, &DataError{Msg: "target must be a single column"}
	}
	if rows != yRows {
		return nil, &DataError{Msg: "feature and target row counts differ"}
	}
	if cols != n.inputSize {
		return nil, &DataError{Msg: "feature width does not match network input size"}
	}
	if rows < 2 {
		return nil, &DataError{Msg: "need at least two rows to train"}
	}
	if err := checkFinite(x, y); err != nil {
		return nil, err
	}

	if cfg.Epochs <= 0 {
		cfg.Epochs = 100
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = n.cfg.Seed
	}
	rng := rand.New(rand.NewSource(seed))

	trainIdx, valIdx := splitIndices(rows, cfg.ValidationSplit, rng)

	n.norm.Fit(subRows(x, trainIdx), subRows(y, trainIdx))
	trainX := n.norm.TransformX(subRows(x, trainIdx))
	trainY := n.norm.TransformY(subRows(y, trainIdx))
	var valX, valY *mat.Dense
	if len(valIdx) > 0 {
		valX = n.norm.TransformX(subRows(x, valIdx))
		valY = n.norm.TransformY(subRows(y, valIdx))
	}

	nTrain := len(trainIdx)
	batchSize := cfg.BatchSize
	if batchSize > nTrain {
		batchSize = nTrain
	}

	log.Info().
		Int("samples", rows).
		Int("train", nTrain).
		Int("validation", len(valIdx)).
		Int("epochs", cfg.Epochs).
		Int("batch_size", batchSize).
		Msg("training started")

	n.stop.Store(false)
	bestVal := math.Inf(1)
	var best *checkpoint
	patience := 0
	var run History

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		if n.stop.Load() {
			log.Info().Int("epoch", epoch).Msg("stop requested, halting training")
			n.restore(best)
			break
		}

		perm := rng.Perm(nTrain)
		totalLoss := 0.0
		batches := 0
		for start := 0; start < nTrain; start += batchSize {
			end := start + batchSize
			if end > nTrain {
				end = nTrain
			}
			bx := subRows(trainX, perm[start:end])
			by := subRows(trainY, perm[start:end])

			out := n.Forward(bx, true)
			totalLoss += mse(out, by)
			batches++
			if err := n.Backward(bx, by, out); err != nil {
				return run, err
			}
		}
		trainLoss := totalLoss / float64(batches)

		valLoss := trainLoss
		if valX != nil {
			valLoss = mse(n.Forward(valX, false), valY)
		}

		if !isFinite(trainLoss) || !isFinite(valLoss) {
			return run, &NumericInstabilityError{Epoch: epoch, TrainLoss: trainLoss, ValLoss: valLoss}
		}

		rec := EpochRecord{Epoch: epoch, TrainLoss: trainLoss, ValLoss: valLoss}
		run = append(run, rec)
		n.history = append(n.history, rec)
		n.publish(cfg.Progress, ProgressEvent(rec))

		if epoch%10 == 0 || epoch == cfg.Epochs-1 {
			log.Info().Int("epoch", epoch).Float64("train_loss", trainLoss).Float64("val_loss", valLoss).Msg("epoch done")
		} else {
			log.Debug().Int("epoch", epoch).Float64("train_loss", trainLoss).Float64("val_loss", valLoss).Msg("epoch done")
		}

		if valLoss < bestVal {
			bestVal = valLoss
			patience = 0
			best = n.snapshot()
		} else {
			patience++
			if cfg.Patience > 0 && patience >= cfg.Patience {
				log.Info().Int("epoch", epoch).Float64("best_val_loss", bestVal).Msg("early stopping, restoring best weights")
				n.restore(best)
				return run, nil
			}
		}
	}

	return run, nil
}

// publish delivers one progress event, recovering subscriber panics.
func (n *Network) publish(fn ProgressFunc, ev ProgressEvent) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Int("epoch", ev.Epoch).Msg("progress subscriber panicked")
		}
	}()
	fn(ev)
}

func (n *Network) snapshot() *checkpoint {
	cp := &checkpoint{}
	for i := range n.weights {
		cp.weights = append(cp.weights, mat.DenseCopyOf(n.weights[i]))
		cp.biases = append(cp.biases, mat.DenseCopyOf(n.biases[i]))
	}
	return cp
}

func (n *Network) restore(cp *checkpoint) {
	if cp == nil {
		return
	}
	for i := range n.weights {
		n.weights[i].Copy(cp.weights[i])
		n.biases[i].Copy(cp.biases[i])
	}
}

// splitIndices shuffles [0, n) and carves off the validation fraction. The
// validation set holds at least one row whenever the fraction is positive.
func splitIndices(n int, valFraction float64, rng *rand.Rand) (train, val []int) {
	perm := rng.Perm(n)
	if valFraction <= 0 {
		return perm, nil
	}
	nVal := int(valFraction * float64(n))
	if nVal < 1 {
		nVal = 1
	}
	if nVal >= n {
		nVal = n - 1
	}
	return perm[nVal:], perm[:nVal]
}

func subRows(m *mat.Dense, idx []int) *mat.Dense {
	_, cols := m.Dims()
	out := mat.NewDense(len(idx), cols, nil)
	for i, r := range idx {
		for c := 0; c < cols; c++ {
			out.Set(i, c, m.At(r, c))
		}
	}
	return out
}

func mse(pred, target *mat.Dense) float64 {
	rows, cols := pred.Dims()
	sum := 0.0
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			d := pred.At(r, c) - target.At(r, c)
			sum += d * d
		}
	}
	return sum / float64(rows*cols)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func checkFinite(x, y *mat.Dense) error {
	for _, m := range []*mat.Dense{x, y} {
		raw := m.RawMatrix()
		for i := range raw.Data {
			if !isFinite(raw.Data[i]) {
				return &DataError{Msg: "non-finite value in training data; drop unstable indicator rows first"}
			}
		}
	}
	return nil
}
