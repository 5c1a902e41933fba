package integrators

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/spiralsim/internal/dynamo"
)

// RK4 is the classical fixed-step fourth-order method. Each interval between
// consecutive output times is split into equal steps no longer than the
// nominal step, so outputs are hit exactly without interpolation.
type RK4 struct {
	k1, k2, k3, k4 dynamo.State
	scratch        dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Name() string { return "RK4" }

func (r *RK4) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make(dynamo.State, n)
		r.k2 = make(dynamo.State, n)
		r.k3 = make(dynamo.State, n)
		r.k4 = make(dynamo.State, n)
		r.scratch = make(dynamo.State, n)
	}
}

// Step advances x in place by dt.
func (r *RK4) Step(sys dynamo.System, x dynamo.State, t, dt float64) {
	n := len(x)
	r.ensureScratch(n)
	h := complex(dt, 0)
	half := complex(dt*0.5, 0)

	sys.Derive(t, x, r.k1)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + half*r.k1[i]
	}
	sys.Derive(t+dt*0.5, r.scratch, r.k2)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + half*r.k2[i]
	}
	sys.Derive(t+dt*0.5, r.scratch, r.k3)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + h*r.k3[i]
	}
	sys.Derive(t+dt, r.scratch, r.k4)

	h6 := h / 6
	for i := 0; i < n; i++ {
		x[i] += h6 * (r.k1[i] + 2*r.k2[i] + 2*r.k3[i] + r.k4[i])
	}
}

// Integrate uses opts.MaxStep as the nominal step, or a sixteenth of the
// shortest output interval when MaxStep is unset. Tolerances are ignored.
func (r *RK4) Integrate(ctx context.Context, sys dynamo.System, x0 dynamo.State, t0, t1 float64, outputs []float64, opts dynamo.Options) (*dynamo.Trajectory, error) {
	if err := checkSpan(sys, x0, t0, t1, outputs); err != nil {
		return nil, err
	}

	marks := make([]float64, 0, len(outputs)+1)
	for _, t := range outputs {
		if t > t0 {
			marks = append(marks, t)
		}
	}
	if len(marks) == 0 || marks[len(marks)-1] < t1 {
		marks = append(marks, t1)
	}

	nominal := opts.MaxStep
	if nominal <= 0 {
		shortest := marks[0] - t0
		for i := 1; i < len(marks); i++ {
			shortest = math.Min(shortest, marks[i]-marks[i-1])
		}
		nominal = shortest / 16
	}

	traj := &dynamo.Trajectory{
		Times:  make([]float64, 0, len(outputs)),
		States: make([]dynamo.State, 0, len(outputs)),
	}
	x := x0.Clone()
	if len(outputs) > 0 && outputs[0] == t0 {
		traj.Times = append(traj.Times, t0)
		traj.States = append(traj.States, x.Clone())
	}

	fail := func(t float64, err error) (*dynamo.Trajectory, error) {
		return nil, &dynamo.IntegrationError{Method: r.Name(), Step: traj.Stats.Steps, Time: t, Wrapped: err}
	}

	t := t0
	next := len(traj.Times)
	for _, mark := range marks {
		// absorb rounding in (mark - t) / nominal so exact multiples are not split
		steps := int(math.Ceil((mark-t)/nominal - 1e-9))
		if steps < 1 {
			steps = 1
		}
		dt := (mark - t) / float64(steps)
		start := t

		for k := 0; k < steps; k++ {
			select {
			case <-ctx.Done():
				return fail(t, fmt.Errorf("%w: %v", dynamo.ErrContextCanceled, ctx.Err()))
			default:
			}

			r.Step(sys, x, t, dt)
			traj.Stats.Steps++
			traj.Stats.Evaluations += 4
			traj.Stats.LastStep = dt
			t = start + float64(k+1)*dt

			if !x.IsValid() {
				return fail(t, dynamo.ErrInvalidState)
			}
			if opts.Observer != nil {
				opts.Observer.OnStep(t)
			}
			if opts.MaxSteps > 0 && traj.Stats.Steps >= opts.MaxSteps && t < t1 {
				return fail(t, dynamo.ErrMaxSteps)
			}
		}
		t = mark

		if next < len(outputs) && outputs[next] == mark {
			traj.Times = append(traj.Times, mark)
			traj.States = append(traj.States, x.Clone())
			next++
		}
	}

	traj.Final = x
	return traj, nil
}
