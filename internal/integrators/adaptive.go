package integrators

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/san-kum/spiralsim/internal/dynamo"
)

const (
	safety    = 0.9
	minFactor = 0.2
	maxFactor = 10.0
)

// Adaptive integrates with an embedded Runge-Kutta pair, choosing internal
// steps to meet the relative/absolute tolerances and reporting requested
// output times through the pair's continuous extension.
type Adaptive struct {
	tab *Tableau
}

func NewAdaptive(tab *Tableau) *Adaptive {
	return &Adaptive{tab: tab}
}

func NewRK45() *Adaptive { return NewAdaptive(DormandPrince) }

func NewRK23() *Adaptive { return NewAdaptive(BogackiShampine) }

func (a *Adaptive) Name() string { return a.tab.Name }

func (a *Adaptive) Integrate(ctx context.Context, sys dynamo.System, x0 dynamo.State, t0, t1 float64, outputs []float64, opts dynamo.Options) (*dynamo.Trajectory, error) {
	if err := checkSpan(sys, x0, t0, t1, outputs); err != nil {
		return nil, err
	}

	rtol, atol := tolerances(opts)
	maxStep := opts.MaxStep
	if maxStep <= 0 {
		maxStep = math.Inf(1)
	}

	n := len(x0)
	s := a.tab.Stages
	w := &workspace{
		k:    make([]dynamo.State, s+1),
		y:    x0.Clone(),
		yNew: make(dynamo.State, n),
		f:    make(dynamo.State, n),
		tmp:  make(dynamo.State, n),
		wts:  make([]float64, s+1),
	}
	for i := range w.k {
		w.k[i] = make(dynamo.State, n)
	}

	traj := &dynamo.Trajectory{
		Times:  make([]float64, 0, len(outputs)),
		States: make([]dynamo.State, 0, len(outputs)),
	}
	fail := func(step int, t float64, err error) (*dynamo.Trajectory, error) {
		return nil, &dynamo.IntegrationError{Method: a.tab.Name, Step: step, Time: t, Wrapped: err}
	}

	t := t0
	next := 0
	for next < len(outputs) && outputs[next] == t0 {
		traj.Times = append(traj.Times, t0)
		traj.States = append(traj.States, w.y.Clone())
		next++
	}

	sys.Derive(t, w.y, w.f)
	traj.Stats.Evaluations++
	if !w.f.IsValid() {
		return fail(0, t, dynamo.ErrInvalidState)
	}

	hAbs := opts.FirstStep
	if hAbs <= 0 {
		hAbs = a.initialStep(sys, w, t, t1, rtol, atol, maxStep, &traj.Stats)
	}

	for t < t1 {
		select {
		case <-ctx.Done():
			return fail(traj.Stats.Steps, t, fmt.Errorf("%w: %v", dynamo.ErrContextCanceled, ctx.Err()))
		default:
		}

		minStep := 10 * (math.Nextafter(t, math.Inf(1)) - t)
		if hAbs > maxStep {
			hAbs = maxStep
		} else if hAbs < minStep {
			hAbs = minStep
		}

		rejected := false
		var h, tNew float64
		for {
			if hAbs < minStep {
				return fail(traj.Stats.Steps, t, dynamo.ErrStepTooSmall)
			}

			h = hAbs
			tNew = t + h
			if tNew > t1 {
				tNew = t1
				h = tNew - t
				hAbs = h
			}

			a.step(sys, w, t, h)
			traj.Stats.Evaluations += s

			errNorm := a.errorNorm(w, h, rtol, atol)
			if math.IsNaN(errNorm) || math.IsInf(errNorm, 0) {
				hAbs *= minFactor
				rejected = true
				traj.Stats.Rejected++
				continue
			}

			exp := -1 / float64(a.tab.ErrorOrder+1)
			if errNorm < 1 {
				factor := maxFactor
				if errNorm > 0 {
					factor = math.Min(maxFactor, safety*math.Pow(errNorm, exp))
				}
				if rejected {
					factor = math.Min(1, factor)
				}
				hAbs *= factor
				break
			}

			hAbs *= math.Max(minFactor, safety*math.Pow(errNorm, exp))
			rejected = true
			traj.Stats.Rejected++
		}

		for next < len(outputs) && outputs[next] <= tNew {
			traj.Times = append(traj.Times, outputs[next])
			if outputs[next] == tNew {
				traj.States = append(traj.States, w.yNew.Clone())
			} else {
				traj.States = append(traj.States, a.dense(w, h, (outputs[next]-t)/h))
			}
			next++
		}

		t = tNew
		w.y, w.yNew = w.yNew, w.y
		copy(w.f, w.k[s])
		traj.Stats.Steps++
		traj.Stats.LastStep = h

		if opts.Observer != nil {
			opts.Observer.OnStep(t)
		}
		if opts.MaxSteps > 0 && traj.Stats.Steps >= opts.MaxSteps && t < t1 {
			return fail(traj.Stats.Steps, t, dynamo.ErrMaxSteps)
		}
	}

	traj.Final = w.y
	return traj, nil
}

type workspace struct {
	k    []dynamo.State
	y    dynamo.State
	yNew dynamo.State
	f    dynamo.State
	tmp  dynamo.State
	wts  []float64
}

// step fills k[0..s] and yNew for a step of size h from (t, y).
func (a *Adaptive) step(sys dynamo.System, w *workspace, t, h float64) {
	tab := a.tab
	copy(w.k[0], w.f)

	for i := 1; i < tab.Stages; i++ {
		row := tab.A[i]
		for m := range w.tmp {
			var acc complex128
			for j, aij := range row {
				if aij != 0 {
					acc += complex(aij, 0) * w.k[j][m]
				}
			}
			w.tmp[m] = w.y[m] + complex(h, 0)*acc
		}
		sys.Derive(t+tab.C[i]*h, w.tmp, w.k[i])
	}

	for m := range w.yNew {
		var acc complex128
		for j, bj := range tab.B {
			if bj != 0 {
				acc += complex(bj, 0) * w.k[j][m]
			}
		}
		w.yNew[m] = w.y[m] + complex(h, 0)*acc
	}
	sys.Derive(t+h, w.yNew, w.k[tab.Stages])
}

// errorNorm is the RMS of the embedded error estimate scaled by
// atol + rtol·max(|y|, |y_new|).
func (a *Adaptive) errorNorm(w *workspace, h, rtol, atol float64) float64 {
	sum := 0.0
	for m := range w.y {
		var e complex128
		for j, ej := range a.tab.E {
			if ej != 0 {
				e += complex(ej, 0) * w.k[j][m]
			}
		}
		scale := atol + rtol*math.Max(cmplx.Abs(w.y[m]), cmplx.Abs(w.yNew[m]))
		r := h * cmplx.Abs(e) / scale
		sum += r * r
	}
	return math.Sqrt(sum / float64(len(w.y)))
}

func (a *Adaptive) dense(w *workspace, h, theta float64) dynamo.State {
	a.tab.denseWeights(theta, w.wts)
	out := make(dynamo.State, len(w.y))
	for m := range out {
		var acc complex128
		for j, wj := range w.wts {
			if wj != 0 {
				acc += complex(wj, 0) * w.k[j][m]
			}
		}
		out[m] = w.y[m] + complex(h, 0)*acc
	}
	return out
}

// initialStep follows Hairer, Nørsett & Wanner's starting step heuristic.
func (a *Adaptive) initialStep(sys dynamo.System, w *workspace, t0, t1, rtol, atol, maxStep float64, stats *dynamo.Stats) float64 {
	if len(w.y) == 0 {
		return math.Inf(1)
	}

	d0, d1 := 0.0, 0.0
	for m, y := range w.y {
		scale := atol + cmplx.Abs(y)*rtol
		d0 += sq(cmplx.Abs(y) / scale)
		d1 += sq(cmplx.Abs(w.f[m]) / scale)
	}
	size := float64(len(w.y))
	d0 = math.Sqrt(d0 / size)
	d1 = math.Sqrt(d1 / size)

	h0 := 1e-6
	if d0 >= 1e-5 && d1 >= 1e-5 {
		h0 = 0.01 * d0 / d1
	}
	h0 = math.Min(h0, t1-t0)

	for m := range w.tmp {
		w.tmp[m] = w.y[m] + complex(h0, 0)*w.f[m]
	}
	f1 := w.k[0]
	sys.Derive(t0+h0, w.tmp, f1)
	stats.Evaluations++

	d2 := 0.0
	for m, y := range w.y {
		scale := atol + cmplx.Abs(y)*rtol
		d2 += sq(cmplx.Abs(f1[m]-w.f[m]) / scale)
	}
	d2 = math.Sqrt(d2/size) / h0

	var h1 float64
	if d1 <= 1e-15 && d2 <= 1e-15 {
		h1 = math.Max(1e-6, h0*1e-3)
	} else {
		h1 = math.Pow(0.01/math.Max(d1, d2), 1/float64(a.tab.ErrorOrder+1))
	}

	return math.Min(math.Min(100*h0, h1), maxStep)
}

func sq(x float64) float64 { return x * x }

func tolerances(opts dynamo.Options) (rtol, atol float64) {
	def := dynamo.DefaultOptions()
	rtol, atol = opts.RelTol, opts.AbsTol
	if rtol <= 0 {
		rtol = def.RelTol
	}
	if atol <= 0 {
		atol = def.AbsTol
	}
	if floor := 100 * epsilon; rtol < floor {
		rtol = floor
	}
	return rtol, atol
}

const epsilon = 2.220446049250313e-16

func checkSpan(sys dynamo.System, x0 dynamo.State, t0, t1 float64, outputs []float64) error {
	if len(x0) != sys.Dim() {
		return fmt.Errorf("%w: state has %d entries, system expects %d", dynamo.ErrDimensionMismatch, len(x0), sys.Dim())
	}
	if !(t1 > t0) {
		return fmt.Errorf("integration span [%g, %g] is empty", t0, t1)
	}
	prev := math.Inf(-1)
	for _, t := range outputs {
		if t < t0 || t > t1 {
			return fmt.Errorf("%w: %g not in [%g, %g]", dynamo.ErrOutputRange, t, t0, t1)
		}
		if t <= prev {
			return fmt.Errorf("output times must be strictly increasing (%g after %g)", t, prev)
		}
		prev = t
	}
	if !x0.IsValid() {
		return dynamo.ErrInvalidState
	}
	return nil
}
