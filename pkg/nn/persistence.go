package nn

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	manifestName    = "manifest.json"
	manifestVersion = 1
)

// manifest is the single self-describing entry point of a model directory.
// It names its own weight payload and history file, so loading never probes
// candidate filenames.
type manifest struct {
	Version      int          `json:"version"`
	LayerSizes   []int        `json:"layer_sizes"`
	LearningRate float64      `json:"learning_rate"`
	DropoutRate  float64      `json:"dropout_rate"`
	L2Reg        float64      `json:"l2_reg"`
	Seed         int64        `json:"seed"`
	Features     FeatureInfo  `json:"features"`
	Normalizer   *Normalizer  `json:"normalizer"`
	WeightsFile  string       `json:"weights_file"`
	HistoryFile  string       `json:"history_file"`
}

type layerBlob struct {
	Weights [][]float64 `json:"weights"`
	Biases  []float64   `json:"biases"`
}

// Save writes the model directory: manifest.json, the weight payload it
// names, and the training history as CSV.
func (n *Network) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &PersistenceError{Path: dir, Msg: err.Error()}
	}

	m := manifest{
		Version:      manifestVersion,
		LayerSizes:   n.layerSizes,
		LearningRate: n.cfg.LearningRate,
		DropoutRate:  n.cfg.DropoutRate,
		L2Reg:        n.cfg.L2Reg,
		Seed:         n.cfg.Seed,
		Features:     n.features,
		Normalizer:   n.norm,
		WeightsFile:  "weights.json",
		HistoryFile:  "history.csv",
	}

	blobs := make([]layerBlob, len(n.weights))
	for i, w := range n.weights {
		rows, cols := w.Dims()
		blob := layerBlob{Weights: make([][]float64, rows), Biases: make([]float64, cols)}
		for r := 0; r < rows; r++ {
			blob.Weights[r] = make([]float64, cols)
			for c := 0; c < cols; c++ {
				blob.Weights[r][c] = w.At(r, c)
			}
		}
		for c := 0; c < cols; c++ {
			blob.Biases[c] = n.biases[i].At(0, c)
		}
		blobs[i] = blob
	}

	if err := writeJSON(filepath.Join(dir, m.WeightsFile), blobs); err != nil {
		return err
	}
	if err := writeHistoryCSV(filepath.Join(dir, m.HistoryFile), n.history); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, manifestName), m)
}

// Load reconstructs a network from a model directory. Predictions of the
// loaded network match the saved one within floating tolerance. Optimizer
// moments are not persisted; a loaded model starts training with fresh Adam
// state.
func Load(dir string) (*Network, error) {
	var m manifest
	manifestPath := filepath.Join(dir, manifestName)
	if err := readJSON(manifestPath, &m); err != nil {
		return nil, err
	}
	if m.Version != manifestVersion {
		return nil, &PersistenceError{Path: manifestPath, Msg: fmt.Sprintf("unsupported manifest version %d", m.Version)}
	}
	if len(m.LayerSizes) < 2 || m.LayerSizes[len(m.LayerSizes)-1] != 1 {
		return nil, &PersistenceError{Path: manifestPath, Msg: fmt.Sprintf("invalid layer sizes %v", m.LayerSizes)}
	}

	var blobs []layerBlob
	weightsPath := filepath.Join(dir, m.WeightsFile)
	if err := readJSON(weightsPath, &blobs); err != nil {
		return nil, err
	}
	if len(blobs) != len(m.LayerSizes)-1 {
		return nil, &PersistenceError{
			Path: weightsPath,
			Msg:  fmt.Sprintf("config names %d layers but payload has %d", len(m.LayerSizes)-1, len(blobs)),
		}
	}

	n, err := New(m.LayerSizes[0], m.LayerSizes[1:len(m.LayerSizes)-1], Config{
		LearningRate: m.LearningRate,
		DropoutRate:  m.DropoutRate,
		L2Reg:        m.L2Reg,
		Seed:         m.Seed,
	})
	if err != nil {
		return nil, &PersistenceError{Path: manifestPath, Msg: err.Error()}
	}

	for i, blob := range blobs {
		fanIn, fanOut := m.LayerSizes[i], m.LayerSizes[i+1]
		if len(blob.Weights) != fanIn {
			return nil, &PersistenceError{
				Path: weightsPath,
				Msg:  fmt.Sprintf("layer %d: want %d weight rows, payload has %d", i, fanIn, len(blob.Weights)),
			}
		}
		for r, row := range blob.Weights {
			if len(row) != fanOut {
				return nil, &PersistenceError{
					Path: weightsPath,
					Msg:  fmt.Sprintf("layer %d row %d: want %d weight columns, payload has %d", i, r, fanOut, len(row)),
				}
			}
			for c, v := range row {
				n.weights[i].Set(r, c, v)
			}
		}
		if len(blob.Biases) != fanOut {
			return nil, &PersistenceError{
				Path: weightsPath,
				Msg:  fmt.Sprintf("layer %d: want %d biases, payload has %d", i, fanOut, len(blob.Biases)),
			}
		}
		for c, v := range blob.Biases {
			n.biases[i].Set(0, c, v)
		}
	}

	if m.Normalizer != nil {
		if m.Normalizer.Fitted && len(m.Normalizer.XMin) != m.LayerSizes[0] {
			return nil, &PersistenceError{
				Path: manifestPath,
				Msg:  fmt.Sprintf("normalizer covers %d features, network input is %d", len(m.Normalizer.XMin), m.LayerSizes[0]),
			}
		}
		n.norm = m.Normalizer
	}
	n.features = m.Features

	history, err := readHistoryCSV(filepath.Join(dir, m.HistoryFile))
	if err != nil {
		return nil, err
	}
	n.history = history

	return n, nil
}

func writeJSON(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return &PersistenceError{Path: path, Msg: err.Error()}
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return &PersistenceError{Path: path, Msg: err.Error()}
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &PersistenceError{Path: path, Msg: err.Error()}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &PersistenceError{Path: path, Msg: err.Error()}
	}
	return nil
}

func writeHistoryCSV(path string, h History) error {
	f, err := os.Create(path)
	if err != nil {
		return &PersistenceError{Path: path, Msg: err.Error()}
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"epoch", "train_loss", "val_loss"}); err != nil {
		return &PersistenceError{Path: path, Msg: err.Error()}
	}
	for _, rec := range h {
		row := []string{
			strconv.Itoa(rec.Epoch),
			strconv.FormatFloat(rec.TrainLoss, 'g', -1, 64),
			strconv.FormatFloat(rec.ValLoss, 'g', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return &PersistenceError{Path: path, Msg: err.Error()}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &PersistenceError{Path: path, Msg: err.Error()}
	}
	return nil
}

func readHistoryCSV(path string) (History, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &PersistenceError{Path: path, Msg: err.Error()}
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, &PersistenceError{Path: path, Msg: err.Error()}
	}
	var h History
	for i, rec := range records {
		if i == 0 {
			continue // header
		}
		if len(rec) != 3 {
			return nil, &PersistenceError{Path: path, Msg: fmt.Sprintf("history row %d: want 3 fields, got %d", i, len(rec))}
		}
		epoch, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, &PersistenceError{Path: path, Msg: fmt.Sprintf("history row %d: %v", i, err)}
		}
		trainLoss, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, &PersistenceError{Path: path, Msg: fmt.Sprintf("history row %d: %v", i, err)}
		}
		valLoss, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, &PersistenceError{Path: path, Msg: fmt.Sprintf("history row %d: %v", i, err)}
		}
		h = append(h, EpochRecord{Epoch: epoch, TrainLoss: trainLoss, ValLoss: valLoss})
	}
	return h, nil
}
