package surrogate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	minLengthScale = 0.02
	maxLengthScale = 5.0
	gridSize       = 24
)

var jitters = []float64{0, 1e-10, 1e-8, 1e-6, 1e-4}

// gaussianProcess is a zero-mean GP regressor on standardized targets.
// When lengthScale is zero it is chosen by maximizing the log marginal
// likelihood over a fixed grid.
type gaussianProcess struct {
	noise       float64
	lengthScale float64

	x [][]float64
	y []float64

	ell   float64
	yMean float64
	yStd  float64
	chol  *mat.Cholesky
	alpha *mat.VecDense
}

func newGaussianProcess(noise, lengthScale float64) *gaussianProcess {
	return &gaussianProcess{noise: noise, lengthScale: lengthScale, yStd: 1}
}

func (gp *gaussianProcess) add(x []float64, y float64) {
	gp.x = append(gp.x, append([]float64(nil), x...))
	gp.y = append(gp.y, y)
}

func (gp *gaussianProcess) len() int {
	return len(gp.y)
}

// fit recomputes the factorization for the current data
func (gp *gaussianProcess) fit() error {
	n := len(gp.y)
	gp.chol, gp.alpha = nil, nil
	if n == 0 {
		gp.yMean, gp.yStd = 0, 1
		return nil
	}

	gp.yMean = stat.Mean(gp.y, nil)
	ss := 0.0
	for _, v := range gp.y {
		ss += (v - gp.yMean) * (v - gp.yMean)
	}
	gp.yStd = math.Sqrt(ss / float64(n))
	if gp.yStd < 1e-12 {
		gp.yStd = 1
	}
	ys := mat.NewVecDense(n, nil)
	for i, v := range gp.y {
		ys.SetVec(i, (v-gp.yMean)/gp.yStd)
	}

	candidates := []float64{gp.lengthScale}
	if gp.lengthScale <= 0 {
		candidates = lengthScaleGrid(minLengthScale, maxLengthScale, gridSize)
	}

	bestLML := math.Inf(-1)
	for _, ell := range candidates {
		chol, err := gp.factorize(ell)
		if err != nil {
			continue
		}
		alpha := mat.NewVecDense(n, nil)
		if err := chol.SolveVecTo(alpha, ys); err != nil {
			continue
		}
		lml := -0.5*mat.Dot(ys, alpha) - 0.5*chol.LogDet() - 0.5*float64(n)*math.Log(2*math.Pi)
		if lml > bestLML {
			bestLML = lml
			gp.ell, gp.chol, gp.alpha = ell, chol, alpha
		}
	}
	if gp.chol == nil {
		return fmt.Errorf("covariance matrix is not positive definite for %d observations", n)
	}
	return nil
}

func (gp *gaussianProcess) factorize(ell float64) (*mat.Cholesky, error) {
	n := len(gp.x)
	k := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			k.SetSym(i, j, matern52(gp.x[i], gp.x[j], ell))
		}
	}
	for _, jitter := range jitters {
		kj := mat.NewSymDense(n, nil)
		kj.CopySym(k)
		for i := 0; i < n; i++ {
			kj.SetSym(i, i, k.At(i, i)+gp.noise+jitter)
		}
		var chol mat.Cholesky
		if chol.Factorize(kj) {
			return &chol, nil
		}
	}
	return nil, fmt.Errorf("cholesky failed for length scale %g", ell)
}

// predict returns the posterior mean and standard deviation at x in target units
func (gp *gaussianProcess) predict(x []float64) (float64, float64) {
	n := len(gp.y)
	if n == 0 || gp.chol == nil {
		return 0, 1
	}
	kstar := mat.NewVecDense(n, nil)
	for i := range gp.x {
		kstar.SetVec(i, matern52(x, gp.x[i], gp.ell))
	}
	mean := gp.yMean + gp.yStd*mat.Dot(kstar, gp.alpha)

	v := mat.NewVecDense(n, nil)
	if err := gp.chol.SolveVecTo(v, kstar); err != nil {
		return mean, 0
	}
	variance := 1 - mat.Dot(kstar, v)
	if variance < 0 {
		variance = 0
	}
	return mean, gp.yStd * math.Sqrt(variance)
}
