package spectral

import (
	"math"
	"math/cmplx"
	"math/rand"
	"testing"
)

func TestTransformRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for _, n := range []int{8, 32, 64} {
		g := NewGrid(12, n)
		field := make([]float64, g.Points)
		for i := range field {
			field[i] = rng.NormFloat64()
		}

		back := g.InverseNew(g.ForwardNew(field))
		for i := range field {
			if math.Abs(back[i]-field[i]) > 1e-10 {
				t.Fatalf("n=%d: round trip differs at %d: %v vs %v", n, i, back[i], field[i])
			}
		}
	}
}

func TestForward_ConstantField(t *testing.T) {
	g := NewGrid(10, 16)
	field := make([]float64, g.Points)
	for i := range field {
		field[i] = 2.5
	}

	hat := g.ForwardNew(field)
	if got := real(hat[0]); math.Abs(got-2.5*float64(g.Points)) > 1e-9 {
		t.Errorf("DC coefficient = %v, want %v", got, 2.5*float64(g.Points))
	}
	for i := 1; i < len(hat); i++ {
		if cmplx.Abs(hat[i]) > 1e-9 {
			t.Fatalf("non-DC coefficient %d = %v, want 0", i, hat[i])
		}
	}
}

func TestSpectralLaplacian(t *testing.T) {
	// sin(2πx/L)·cos(4πy/L) is an eigenfunction of the Laplacian with
	// eigenvalue -(k1² + k2²).
	L := 8.0
	g := NewGrid(L, 32)
	k1, k2 := 2*math.Pi/L, 4*math.Pi/L

	field := make([]float64, g.Points)
	for i := range field {
		field[i] = math.Sin(k1*g.X[i]) * math.Cos(k2*g.Y[i])
	}

	hat := g.ForwardNew(field)
	for i := range hat {
		hat[i] *= complex(-g.K2[i], 0)
	}
	lap := g.InverseNew(hat)

	want := -(k1*k1 + k2*k2)
	for i := range field {
		if math.Abs(lap[i]-want*field[i]) > 1e-9 {
			t.Fatalf("laplacian mismatch at %d: %v vs %v", i, lap[i], want*field[i])
		}
	}
}
