package spectral

import (
	"math"
	"testing"
)

func TestWavenumbers(t *testing.T) {
	L := 2 * math.Pi
	tests := []struct {
		n    int
		want []float64
	}{
		{4, []float64{0, 1, -2, -1}},
		{8, []float64{0, 1, 2, 3, -4, -3, -2, -1}},
		{5, []float64{0, 1, 2, -2, -1}},
	}

	for _, tt := range tests {
		got := Wavenumbers(L, tt.n)
		for i := range tt.want {
			if math.Abs(got[i]-tt.want[i]) > 1e-12 {
				t.Errorf("n=%d: k[%d] = %v, want %v", tt.n, i, got[i], tt.want[i])
			}
		}
	}
}

func TestNewGrid_Coordinates(t *testing.T) {
	g := NewGrid(20, 16)

	if g.Points != 256 {
		t.Fatalf("Points = %d, want 256", g.Points)
	}
	if g.X1[0] != -10 {
		t.Errorf("first coordinate = %v, want -10", g.X1[0])
	}
	last := g.X1[len(g.X1)-1]
	if math.Abs(last-(10-20.0/16)) > 1e-12 {
		t.Errorf("last coordinate = %v, want %v", last, 10-20.0/16)
	}
	if math.Abs(g.Spacing()-1.25) > 1e-12 {
		t.Errorf("Spacing() = %v, want 1.25", g.Spacing())
	}

	// meshgrid convention: X varies along columns, Y along rows
	if g.X[g.Index(3, 5)] != g.X1[5] || g.Y[g.Index(3, 5)] != g.X1[3] {
		t.Error("X/Y fields do not follow row=y, column=x layout")
	}
	if g.KX[g.Index(2, 7)] != g.K1[7] || g.KY[g.Index(2, 7)] != g.K1[2] {
		t.Error("KX/KY fields do not follow row=y, column=x layout")
	}
}

func TestNewGrid_K2Symmetry(t *testing.T) {
	for _, n := range []int{16, 32, 64} {
		g := NewGrid(17.5, n)

		if g.K2[0] != 0 {
			t.Errorf("n=%d: K2[0,0] = %v, want 0", n, g.K2[0])
		}

		neg := func(i int) int { return (n - i) % n }
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				k := g.K2[g.Index(i, j)]
				if k < 0 {
					t.Fatalf("n=%d: K2[%d,%d] = %v is negative", n, i, j, k)
				}
				// the Nyquist index maps to itself, where -n/2 is its own alias
				if i == n/2 || j == n/2 {
					continue
				}
				if got := g.K2[g.Index(neg(i), j)]; math.Abs(got-k) > 1e-12 {
					t.Errorf("n=%d: K2 not symmetric in rows at (%d,%d)", n, i, j)
				}
				if got := g.K2[g.Index(i, neg(j))]; math.Abs(got-k) > 1e-12 {
					t.Errorf("n=%d: K2 not symmetric in columns at (%d,%d)", n, i, j)
				}
				if got := g.K2[g.Index(j, i)]; math.Abs(got-k) > 1e-12 {
					t.Errorf("n=%d: K2 not isotropic at (%d,%d)", n, i, j)
				}
			}
		}
	}
}

func TestNewGrid_OriginIsSample(t *testing.T) {
	g := NewGrid(20, 32)
	idx := g.Index(16, 16)
	if math.Abs(g.X[idx]) > 1e-12 || math.Abs(g.Y[idx]) > 1e-12 {
		t.Errorf("point (16,16) = (%v, %v), want origin", g.X[idx], g.Y[idx])
	}
}

func TestMaxK2(t *testing.T) {
	g := NewGrid(2*math.Pi, 8)
	// kx = ky = -4 at the Nyquist corner
	if got := g.MaxK2(); math.Abs(got-32) > 1e-12 {
		t.Errorf("MaxK2() = %v, want 32", got)
	}
}
