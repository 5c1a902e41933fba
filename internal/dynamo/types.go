package dynamo

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
)

// State is a transform-space field state: the row-major flattened u_hat
// followed by v_hat.
type State []complex128

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if cmplx.IsNaN(v) || cmplx.IsInf(v) {
			return false
		}
	}
	return true
}

// Norm is the Euclidean norm over all complex entries.
func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		re, im := real(v), imag(v)
		sum += re*re + im*im
	}
	return math.Sqrt(sum)
}

// Halves splits a concatenated state into its u and v parts without copying.
func (s State) Halves() (State, State) {
	n := len(s) / 2
	return s[:n:n], s[n:]
}

// System is a first-order system dx/dt = f(t, x). Derive writes f(t, x)
// into dx, which has the same length as x.
type System interface {
	Derive(t float64, x, dx State)
	Dim() int
}

// Stepper advances a System from t0 to t1, reporting the state at each of
// the requested output times (all inside [t0, t1], strictly increasing).
type Stepper interface {
	Name() string
	Integrate(ctx context.Context, sys System, x0 State, t0, t1 float64, outputs []float64, opts Options) (*Trajectory, error)
}

// Observer is notified after every accepted internal step.
type Observer interface {
	OnStep(t float64)
}

// Options control an integration call. Zero values select defaults.
type Options struct {
	RelTol    float64
	AbsTol    float64
	FirstStep float64
	MaxStep   float64
	MaxSteps  int
	Observer  Observer
}

func DefaultOptions() Options {
	return Options{
		RelTol: 1e-6,
		AbsTol: 1e-9,
	}
}

// Stats counts the work performed by an integration call.
type Stats struct {
	Steps       int     `json:"steps"`
	Rejected    int     `json:"rejected"`
	Evaluations int     `json:"evaluations"`
	LastStep    float64 `json:"last_step"`
}

func (s *Stats) Add(o Stats) {
	s.Steps += o.Steps
	s.Rejected += o.Rejected
	s.Evaluations += o.Evaluations
	s.LastStep = o.LastStep
}

// Trajectory holds the states at the requested output times plus the exact
// final state at the end of the integrated span.
type Trajectory struct {
	Times  []float64
	States []State
	Final  State
	Stats  Stats
}

// Progress is one observation of a running integration.
type Progress struct {
	T        float64
	Fraction float64
	Rate     float64
}

func (p Progress) String() string {
	return fmt.Sprintf("%5.1f%% | t = %7.2f | rate: %5.2f time units/sec", 100*p.Fraction, p.T, p.Rate)
}

// ProgressSink receives throttled progress reports.
type ProgressSink interface {
	Report(p Progress)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(p Progress)

func (f ProgressFunc) Report(p Progress) { f(p) }
