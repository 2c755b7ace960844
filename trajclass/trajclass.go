// Package trajclass labels future trajectory segments as linear or
// non-linear from the residual of a quadratic least-squares fit.
package trajclass

import (
	"gonum.org/v1/gonum/mat"
)

const (
	// Linear and NonLinear are the two labels returned by Classify.
	Linear    = 0.0
	NonLinear = 1.0

	degree = 2

	// residuals below this are rounding noise from an exact fit
	residualEpsilon = 1e-10
)

// Residual returns the summed squared residuals of independent degree-2 fits
// of x and y against t = 0..n-1. Sequences with no more points than
// coefficients fit exactly and return 0.
func Residual(traj [][2]float64) float64 {
	n := len(traj)
	if n <= degree+1 {
		return 0
	}
	v := vandermonde(n)
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, p := range traj {
		xs[i], ys[i] = p[0], p[1]
	}
	return fitResidual(v, xs) + fitResidual(v, ys)
}

// Classify returns NonLinear when the fit residual of traj reaches threshold
// and Linear otherwise. An exact fit is always Linear.
func Classify(traj [][2]float64, threshold float64) float64 {
	res := Residual(traj)
	if res <= residualEpsilon {
		return Linear
	}
	if res >= threshold {
		return NonLinear
	}
	return Linear
}

// Tail returns the last n points of traj, or all of it when shorter.
func Tail(traj [][2]float64, n int) [][2]float64 {
	if n >= len(traj) {
		return traj
	}
	return traj[len(traj)-n:]
}

// vandermonde builds the n x 3 design matrix with columns t^2, t, 1.
func vandermonde(n int) *mat.Dense {
	v := mat.NewDense(n, degree+1, nil)
	for i := 0; i < n; i++ {
		t := float64(i)
		v.Set(i, 0, t*t)
		v.Set(i, 1, t)
		v.Set(i, 2, 1)
	}
	return v
}

func fitResidual(v *mat.Dense, ys []float64) float64 {
	y := mat.NewVecDense(len(ys), ys)

	var qr mat.QR
	qr.Factorize(v)
	var coef mat.VecDense
	if err := qr.SolveVecTo(&coef, false, y); err != nil {
		// rank deficient design, which cannot happen for distinct t
		return 0
	}

	var fit mat.VecDense
	fit.MulVec(v, &coef)
	fit.SubVec(y, &fit)
	return mat.Dot(&fit, &fit)
}
