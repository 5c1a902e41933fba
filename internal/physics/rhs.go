package physics

import (
	"github.com/san-kum/spiralsim/internal/dynamo"
	"github.com/san-kum/spiralsim/internal/spectral"
)

// ParallelChunk is the smallest slice of grid points worth a goroutine.
const ParallelChunk = 8192

// RHS is the transform-space time derivative of the two-species system.
// Diffusion is applied as -D·K2 in transform space, the reaction in
// physical space. It keeps physical-space scratch between calls and is not
// safe for concurrent use. Evaluation is single-threaded unless
// SetParallel is called.
type RHS struct {
	grid  *spectral.Grid
	kin   Kinetics
	chunk int

	u, v []float64
	f, g []float64
	fHat []complex128
	gHat []complex128
}

func NewRHS(grid *spectral.Grid, kin Kinetics) *RHS {
	n := grid.Points
	return &RHS{
		grid: grid,
		kin:  kin,
		u:    make([]float64, n),
		v:    make([]float64, n),
		f:    make([]float64, n),
		g:    make([]float64, n),
		fHat: make([]complex128, n),
		gHat: make([]complex128, n),
	}
}

// SetParallel splits the pointwise loops of Derive across goroutines in
// chunks of at least minChunk points. minChunk <= 0 restores serial
// evaluation. Results are identical either way.
func (r *RHS) SetParallel(minChunk int) {
	r.chunk = minChunk
}

func (r *RHS) each(n int, fn func(lo, hi int)) {
	if r.chunk <= 0 {
		fn(0, n)
		return
	}
	dynamo.ParallelFor(n, r.chunk, fn)
}

func (r *RHS) Dim() int { return 2 * r.grid.Points }

func (r *RHS) Grid() *spectral.Grid { return r.grid }

func (r *RHS) Kinetics() Kinetics { return r.kin }

// Derive writes d[u_hat|v_hat]/dt into dx. t is unused: the system is
// autonomous.
func (r *RHS) Derive(t float64, x, dx dynamo.State) {
	uHat, vHat := x.Halves()
	duHat, dvHat := dx.Halves()

	r.grid.Inverse(uHat, r.u)
	r.grid.Inverse(vHat, r.v)

	r.each(len(r.u), func(lo, hi int) {
		ReactionField(r.u[lo:hi], r.v[lo:hi], r.kin.Beta, r.f[lo:hi], r.g[lo:hi])
	})

	r.grid.Forward(r.f, r.fHat)
	r.grid.Forward(r.g, r.gHat)

	k2 := r.grid.K2
	d1, d2 := r.kin.D1, r.kin.D2
	r.each(len(k2), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			duHat[i] = complex(-d1*k2[i], 0)*uHat[i] + r.fHat[i]
			dvHat[i] = complex(-d2*k2[i], 0)*vHat[i] + r.gHat[i]
		}
	})
}

// EvaluateRHS is a one-shot, allocating evaluation of the right-hand side.
func EvaluateRHS(stateHat dynamo.State, grid *spectral.Grid, d1, d2, beta float64) dynamo.State {
	dx := make(dynamo.State, len(stateHat))
	NewRHS(grid, Kinetics{D1: d1, D2: d2, Beta: beta}).Derive(0, stateHat, dx)
	return dx
}

// ToSpectral transforms a physical-space pair into a concatenated state.
func ToSpectral(grid *spectral.Grid, u, v []float64) dynamo.State {
	x := make(dynamo.State, 2*grid.Points)
	uHat, vHat := x.Halves()
	grid.Forward(u, uHat)
	grid.Forward(v, vHat)
	return x
}

// ToPhysical transforms a concatenated state back into u and v.
func ToPhysical(grid *spectral.Grid, x dynamo.State) (u, v []float64) {
	uHat, vHat := x.Halves()
	return grid.InverseNew(uHat), grid.InverseNew(vHat)
}
