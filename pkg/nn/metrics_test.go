package nn

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestEvaluateRegressionPerfectFit(t *testing.T) {
	y := mat.NewDense(4, 1, []float64{10, 20, 30, 40})
	m := EvaluateRegression(y, mat.DenseCopyOf(y))
	if m.MSE != 0 || m.RMSE != 0 || m.MAE != 0 {
		t.Fatalf("error metrics nonzero on perfect fit: %+v", m)
	}
	if m.R2 < 0.999999 {
		t.Fatalf("R2 = %f, want ~1", m.R2)
	}
	if m.MAPE != 0 {
		t.Fatalf("MAPE = %f, want 0", m.MAPE)
	}
}

func TestEvaluateRegressionKnownValues(t *testing.T) {
	y := mat.NewDense(2, 1, []float64{10, 20})
	pred := mat.NewDense(2, 1, []float64{11, 18})

	m := EvaluateRegression(y, pred)
	if math.Abs(m.MSE-2.5) > 1e-9 {
		t.Fatalf("MSE = %f, want 2.5", m.MSE)
	}
	if math.Abs(m.MAE-1.5) > 1e-9 {
		t.Fatalf("MAE = %f, want 1.5", m.MAE)
	}
	if math.Abs(m.RMSE-math.Sqrt(2.5)) > 1e-9 {
		t.Fatalf("RMSE = %f", m.RMSE)
	}
	// 1 - 2.5/25 = 0.9
	if math.Abs(m.R2-0.9) > 1e-6 {
		t.Fatalf("R2 = %f, want 0.9", m.R2)
	}
}
