package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-8
)

// adam keeps one first/second moment pair per weight tensor and per bias
// tensor. The step counter t increments once per Step call — one call per
// mini-batch — so bias correction is uniform across layers.
type adam struct {
	mW, vW []*mat.Dense
	mB, vB []*mat.Dense
	t      int
}

func newAdam(weights, biases []*mat.Dense) *adam {
	a := &adam{}
	for i := range weights {
		r, c := weights[i].Dims()
		a.mW = append(a.mW, mat.NewDense(r, c, nil))
		a.vW = append(a.vW, mat.NewDense(r, c, nil))
		r, c = biases[i].Dims()
		a.mB = append(a.mB, mat.NewDense(r, c, nil))
		a.vB = append(a.vB, mat.NewDense(r, c, nil))
	}
	return a
}

// Step applies one bias-corrected Adam update to every parameter tensor.
func (a *adam) Step(lr float64, weights, biases, dW, dB []*mat.Dense) {
	a.t++
	corr1 := 1 - math.Pow(adamBeta1, float64(a.t))
	corr2 := 1 - math.Pow(adamBeta2, float64(a.t))

	for i := range weights {
		updateTensor(lr, corr1, corr2, weights[i], dW[i], a.mW[i], a.vW[i])
		updateTensor(lr, corr1, corr2, biases[i], dB[i], a.mB[i], a.vB[i])
	}
}

// StepCount returns the number of optimizer updates applied so far.
func (a *adam) StepCount() int { return a.t }

func updateTensor(lr, corr1, corr2 float64, param, grad, m, v *mat.Dense) {
	p := param.RawMatrix().Data
	g := grad.RawMatrix().Data
	md := m.RawMatrix().Data
	vd := v.RawMatrix().Data
	for i := range p {
		md[i] = adamBeta1*md[i] + (1-adamBeta1)*g[i]
		vd[i] = adamBeta2*vd[i] + (1-adamBeta2)*g[i]*g[i]
		mHat := md[i] / corr1
		vHat := vd[i] / corr2
		p[i] -= lr * mHat / (math.Sqrt(vHat) + adamEpsilon)
	}
}
