package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// normEpsilon floors the min-max denominator for constant features.
const normEpsilon = 1e-8

// Normalizer holds per-feature and target min-max parameters. Fit runs over
// the training split only; the parameters persist with the model so inference
// inputs transform identically.
type Normalizer struct {
	XMin   []float64 `json:"x_min"`
	XMax   []float64 `json:"x_max"`
	YMin   float64   `json:"y_min"`
	YMax   float64   `json:"y_max"`
	Fitted bool      `json:"fitted"`
}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Fit computes feature and target ranges from the given rows.
func (nz *Normalizer) Fit(x, y *mat.Dense) {
	rows, cols := x.Dims()
	nz.XMin = make([]float64, cols)
	nz.XMax = make([]float64, cols)
	for c := 0; c < cols; c++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for r := 0; r < rows; r++ {
			v := x.At(r, c)
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		nz.XMin[c], nz.XMax[c] = lo, hi
	}

	yRows, _ := y.Dims()
	nz.YMin, nz.YMax = math.Inf(1), math.Inf(-1)
	for r := 0; r < yRows; r++ {
		v := y.At(r, 0)
		if v < nz.YMin {
			nz.YMin = v
		}
		if v > nz.YMax {
			nz.YMax = v
		}
	}
	nz.Fitted = true
}

// TransformX returns a scaled copy of the feature rows.
func (nz *Normalizer) TransformX(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	for c := 0; c < cols; c++ {
		den := nz.XMax[c] - nz.XMin[c]
		if den < normEpsilon {
			den = normEpsilon
		}
		for r := 0; r < rows; r++ {
			out.Set(r, c, (x.At(r, c)-nz.XMin[c])/den)
		}
	}
	return out
}

// TransformY returns a scaled copy of the target column.
func (nz *Normalizer) TransformY(y *mat.Dense) *mat.Dense {
	rows, _ := y.Dims()
	den := nz.YMax - nz.YMin
	if den < normEpsilon {
		den = normEpsilon
	}
	out := mat.NewDense(rows, 1, nil)
	for r := 0; r < rows; r++ {
		out.Set(r, 0, (y.At(r, 0)-nz.YMin)/den)
	}
	return out
}

// InverseY maps normalized target values back to the original scale.
func (nz *Normalizer) InverseY(y *mat.Dense) *mat.Dense {
	rows, _ := y.Dims()
	den := nz.YMax - nz.YMin
	if den < normEpsilon {
		den = normEpsilon
	}
	out := mat.NewDense(rows, 1, nil)
	for r := 0; r < rows; r++ {
		out.Set(r, 0, y.At(r, 0)*den+nz.YMin)
	}
	return out
}
