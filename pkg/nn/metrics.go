package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// RegressionMetrics summarizes prediction quality on a labeled set.
type RegressionMetrics struct {
	MSE  float64
	RMSE float64
	MAE  float64
	R2   float64
	MAPE float64
}

// EvaluateRegression compares true and predicted target columns.
func EvaluateRegression(yTrue, yPred *mat.Dense) RegressionMetrics {
	rows, _ := yTrue.Dims()
	n := float64(rows)

	var sumSq, sumAbs, sumPct, meanTrue float64
	for r := 0; r < rows; r++ {
		meanTrue += yTrue.At(r, 0)
	}
	meanTrue /= n

	var ssTotal float64
	for r := 0; r < rows; r++ {
		t := yTrue.At(r, 0)
		p := yPred.At(r, 0)
		d := t - p
		sumSq += d * d
		sumAbs += math.Abs(d)
		sumPct += math.Abs(d / (t + divGuard))
		dt := t - meanTrue
		ssTotal += dt * dt
	}

	mseVal := sumSq / n
	return RegressionMetrics{
		MSE:  mseVal,
		RMSE: math.Sqrt(mseVal),
		MAE:  sumAbs / n,
		R2:   1 - sumSq/(ssTotal+divGuard),
		MAPE: sumPct / n * 100,
	}
}

const divGuard = 1e-10
