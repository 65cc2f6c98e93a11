package nn

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestNormalizerFitTransform(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{
		1, 10,
		3, 20,
		5, 40,
	})
	y := mat.NewDense(3, 1, []float64{100, 150, 200})

	nz := NewNormalizer()
	nz.Fit(x, y)
	if !nz.Fitted {
		t.Fatal("normalizer not marked fitted")
	}

	tx := nz.TransformX(x)
	if got := tx.At(0, 0); got != 0 {
		t.Fatalf("min maps to %f, want 0", got)
	}
	if got := tx.At(2, 0); got != 1 {
		t.Fatalf("max maps to %f, want 1", got)
	}
	if got := tx.At(1, 0); got != 0.5 {
		t.Fatalf("midpoint maps to %f, want 0.5", got)
	}

	ty := nz.TransformY(y)
	if ty.At(0, 0) != 0 || ty.At(2, 0) != 1 {
		t.Fatalf("target range maps to [%f, %f], want [0, 1]", ty.At(0, 0), ty.At(2, 0))
	}
}

func TestNormalizerConstantFeature(t *testing.T) {
	x := mat.NewDense(3, 1, []float64{7, 7, 7})
	y := mat.NewDense(3, 1, []float64{5, 5, 5})

	nz := NewNormalizer()
	nz.Fit(x, y)
	tx := nz.TransformX(x)
	ty := nz.TransformY(y)
	for r := 0; r < 3; r++ {
		if v := tx.At(r, 0); math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("constant feature transformed to %f", v)
		}
		if v := ty.At(r, 0); math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("constant target transformed to %f", v)
		}
	}
}

func TestNormalizerInverseYRoundTrip(t *testing.T) {
	y := mat.NewDense(4, 1, []float64{10, 25, 40, 55})
	nz := NewNormalizer()
	nz.Fit(mat.NewDense(4, 1, []float64{1, 2, 3, 4}), y)

	back := nz.InverseY(nz.TransformY(y))
	for r := 0; r < 4; r++ {
		if math.Abs(back.At(r, 0)-y.At(r, 0)) > 1e-12 {
			t.Fatalf("row %d: round trip %f -> %f", r, y.At(r, 0), back.At(r, 0))
		}
	}
}
