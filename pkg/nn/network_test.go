package nn

import (
	"errors"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func randomMatrix(rows, cols int, seed int64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out.Set(r, c, rng.Float64())
		}
	}
	return out
}

func TestForwardOutputShape(t *testing.T) {
	cases := []struct {
		name   string
		hidden []int
		batch  int
	}{
		{"single_hidden_single_row", []int{8}, 1},
		{"single_hidden_batch", []int{8}, 5},
		{"two_hidden_batch", []int{16, 8}, 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			net, err := New(4, tc.hidden, Config{Seed: 1})
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			out := net.Forward(randomMatrix(tc.batch, 4, 2), false)
			if r, c := out.Dims(); r != tc.batch || c != 1 {
				t.Fatalf("output dims = [%d, %d], want [%d, 1]", r, c, tc.batch)
			}
		})
	}
}

func TestZeroDropoutDeterministic(t *testing.T) {
	net, err := New(3, []int{8, 4}, Config{DropoutRate: 0, Seed: 7})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	x := randomMatrix(6, 3, 11)

	a := mat.DenseCopyOf(net.Forward(x, true))
	b := net.Forward(x, false)
	if !mat.Equal(a, b) {
		t.Fatal("training and inference outputs differ with dropout disabled")
	}
}

func TestSeedReproducibleInit(t *testing.T) {
	a, err := New(5, []int{10}, Config{Seed: 99})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	b, err := New(5, []int{10}, Config{Seed: 99})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	for i := range a.weights {
		if !mat.Equal(a.weights[i], b.weights[i]) {
			t.Fatalf("layer %d weights differ across same-seed constructions", i)
		}
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	cases := []struct {
		name   string
		input  int
		hidden []int
		cfg    Config
	}{
		{"dropout_one", 4, []int{8}, Config{DropoutRate: 1.0}},
		{"dropout_negative", 4, []int{8}, Config{DropoutRate: -0.1}},
		{"zero_input", 0, []int{8}, Config{}},
		{"zero_hidden_width", 4, []int{0}, Config{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.input, tc.hidden, tc.cfg)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("err = %v, want ConfigError", err)
			}
		})
	}
}

func TestBackwardRequiresForward(t *testing.T) {
	net, err := New(3, []int{4}, Config{Seed: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	x := randomMatrix(4, 3, 3)
	y := randomMatrix(4, 1, 4)
	out := randomMatrix(4, 1, 5)

	if err := net.Backward(x, y, out); !errors.Is(err, ErrNoForwardPass) {
		t.Fatalf("err = %v, want ErrNoForwardPass", err)
	}

	// A cache is single-use: the second Backward on the same batch fails.
	out = net.Forward(x, true)
	if err := net.Backward(x, y, out); err != nil {
		t.Fatalf("first Backward failed: %v", err)
	}
	if err := net.Backward(x, y, out); !errors.Is(err, ErrNoForwardPass) {
		t.Fatalf("second Backward err = %v, want ErrNoForwardPass", err)
	}
}

func TestBackwardRejectsForeignBatch(t *testing.T) {
	net, err := New(3, []int{4}, Config{Seed: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	x := randomMatrix(4, 3, 3)
	y := randomMatrix(4, 1, 4)
	out := net.Forward(x, true)

	other := mat.DenseCopyOf(x)
	if err := net.Backward(other, y, out); !errors.Is(err, ErrNoForwardPass) {
		t.Fatalf("err = %v, want ErrNoForwardPass for a batch the cache does not cover", err)
	}
}

func TestBackwardUpdatesWeights(t *testing.T) {
	net, err := New(2, []int{4}, Config{LearningRate: 0.01, Seed: 5})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	before := make([]*mat.Dense, len(net.weights))
	for i, w := range net.weights {
		before[i] = mat.DenseCopyOf(w)
	}

	x := randomMatrix(8, 2, 6)
	y := randomMatrix(8, 1, 7)
	out := net.Forward(x, true)
	if err := net.Backward(x, y, out); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	changed := false
	for i := range net.weights {
		if !mat.Equal(before[i], net.weights[i]) {
			changed = true
		}
	}
	if !changed {
		t.Fatal("weights unchanged after a gradient step")
	}
}
