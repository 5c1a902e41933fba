// Package spectral builds the periodic physical and Fourier grids of the
// pseudo-spectral solver and moves fields between the two spaces.
package spectral

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Grid is an N×N periodic square domain of side L centred on the origin.
// All 2-D fields are flattened row-major: index i*N+j is row i (y) and
// column j (x). A Grid is never modified after NewGrid returns.
type Grid struct {
	L      float64
	N      int
	Points int

	// X1 spans [-L/2, L/2); the point at +L/2 coincides with -L/2 under
	// periodicity and is dropped.
	X1 []float64
	// K1 is in transform order [0, 1, ..., N/2-1, -N/2, ..., -1] * 2π/L.
	K1 []float64

	X, Y   []float64
	KX, KY []float64
	K2     []float64
}

// NewGrid builds the grid for a domain of size L with n points per side.
// L > 0 and n > 0 are the caller's responsibility.
func NewGrid(L float64, n int) *Grid {
	g := &Grid{
		L:      L,
		N:      n,
		Points: n * n,
		X1:     make([]float64, n),
		K1:     Wavenumbers(L, n),
	}

	if n > 1 {
		floats.Span(g.X1, -L/2, L/2-L/float64(n))
	} else {
		g.X1[0] = -L / 2
	}

	g.X = make([]float64, g.Points)
	g.Y = make([]float64, g.Points)
	g.KX = make([]float64, g.Points)
	g.KY = make([]float64, g.Points)
	g.K2 = make([]float64, g.Points)

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			idx := i*n + j
			g.X[idx] = g.X1[j]
			g.Y[idx] = g.X1[i]
			g.KX[idx] = g.K1[j]
			g.KY[idx] = g.K1[i]
			g.K2[idx] = g.K1[j]*g.K1[j] + g.K1[i]*g.K1[i]
		}
	}

	return g
}

// Wavenumbers returns the angular wavenumbers matching the ordering of the
// discrete Fourier transform.
func Wavenumbers(L float64, n int) []float64 {
	k := make([]float64, n)
	scale := 2 * math.Pi / L
	neg := n - n/2
	for i := 0; i < n; i++ {
		m := i
		if i >= neg {
			m = i - n
		}
		k[i] = float64(m) * scale
	}
	return k
}

// Index returns the flat offset of row i, column j.
func (g *Grid) Index(i, j int) int {
	return i*g.N + j
}

// Spacing is the distance between neighbouring grid points.
func (g *Grid) Spacing() float64 {
	return g.L / float64(g.N)
}

// MaxK2 is the largest squared wavenumber resolved by the grid.
func (g *Grid) MaxK2() float64 {
	return floats.Max(g.K2)
}
