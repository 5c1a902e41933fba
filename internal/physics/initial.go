package physics

import (
	"math"

	"github.com/ojrac/opensimplex-go"

	"github.com/san-kum/spiralsim/internal/spectral"
)

// SpiralInitialConditions seeds an m-armed spiral:
//
//	u0 = tanh(r)·cos(mθ - r)
//	v0 = tanh(r)·sin(mθ - r)
//
// tanh(r) vanishes at the core so the phase singularity at r = 0 is smooth.
func SpiralInitialConditions(grid *spectral.Grid, m int) (u0, v0 []float64) {
	u0 = make([]float64, grid.Points)
	v0 = make([]float64, grid.Points)

	arms := float64(m)
	for i := range u0 {
		x, y := grid.X[i], grid.Y[i]
		r := math.Hypot(x, y)
		theta := math.Atan2(y, x)

		amp := math.Tanh(r)
		phase := arms*theta - r
		u0[i] = amp * math.Cos(phase)
		v0[i] = amp * math.Sin(phase)
	}
	return u0, v0
}

// Perturb adds seeded simplex noise of the given amplitude to both fields.
// The noise is smooth on the scale of one length unit and fully determined
// by seed.
func Perturb(grid *spectral.Grid, u, v []float64, amplitude float64, seed int64) {
	if amplitude == 0 {
		return
	}

	nu := opensimplex.New(seed)
	nv := opensimplex.New(seed + 1)
	for i := range u {
		x, y := grid.X[i], grid.Y[i]
		u[i] += amplitude * nu.Eval2(x, y)
		v[i] += amplitude * nv.Eval2(x, y)
	}
}
