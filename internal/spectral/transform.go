package spectral

import (
	"github.com/mjibson/go-dsp/fft"
)

// Forward writes the 2-D discrete Fourier transform of a real field into dst.
func (g *Grid) Forward(field []float64, dst []complex128) {
	n := g.N
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = field[i*n : (i+1)*n]
	}

	out := fft.FFT2Real(rows)
	for i, row := range out {
		copy(dst[i*n:(i+1)*n], row)
	}
}

// Inverse writes the real part of the normalised inverse transform of hat
// into dst. Imaginary round-off is discarded.
func (g *Grid) Inverse(hat []complex128, dst []float64) {
	n := g.N
	rows := make([][]complex128, n)
	for i := range rows {
		rows[i] = hat[i*n : (i+1)*n]
	}

	out := fft.IFFT2(rows)
	for i, row := range out {
		base := i * n
		for j, c := range row {
			dst[base+j] = real(c)
		}
	}
}

// ForwardNew is Forward into a freshly allocated slice.
func (g *Grid) ForwardNew(field []float64) []complex128 {
	dst := make([]complex128, g.Points)
	g.Forward(field, dst)
	return dst
}

// InverseNew is Inverse into a freshly allocated slice.
func (g *Grid) InverseNew(hat []complex128) []float64 {
	dst := make([]float64, g.Points)
	g.Inverse(hat, dst)
	return dst
}
