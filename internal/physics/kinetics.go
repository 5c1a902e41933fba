// Package physics holds the λ-ω reaction-diffusion model: the cubic
// reaction kinetics, the pseudo-spectral right-hand side and the spiral
// initial conditions.
package physics

// Kinetics are the model coefficients shared by every evaluation of the
// right-hand side.
type Kinetics struct {
	D1   float64
	D2   float64
	Beta float64
}

// Reaction evaluates the cubic kinetics at one point:
//
//	f = u - u³ - u·v² + β(u²·v + v³)
//	g = v - u²·v - v³ - β(u³ + u·v²)
func Reaction(u, v, beta float64) (f, g float64) {
	u2 := u * u
	v2 := v * v
	u3 := u2 * u
	v3 := v2 * v

	f = u - u3 - u*v2 + beta*(u2*v+v3)
	g = v - u2*v - v3 - beta*(u3+u*v2)
	return f, g
}

// ReactionField applies Reaction elementwise, writing into f and g.
func ReactionField(u, v []float64, beta float64, f, g []float64) {
	for i := range u {
		f[i], g[i] = Reaction(u[i], v[i], beta)
	}
}
