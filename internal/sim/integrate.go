package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/san-kum/spiralsim/internal/config"
	"github.com/san-kum/spiralsim/internal/dynamo"
	"github.com/san-kum/spiralsim/internal/integrators"
	"github.com/san-kum/spiralsim/internal/physics"
	"github.com/san-kum/spiralsim/internal/spectral"
)

// Integrate advances (u0, v0) through every output time in one call and
// returns the fields at those times. Progress goes to sink through a
// ProgressTracker unless opts already carries an Observer. On failure it
// returns the *dynamo.IntegrationError and no Solution.
func Integrate(ctx context.Context, u0, v0, times []float64, grid *spectral.Grid, kin physics.Kinetics, method string, opts dynamo.Options, sink dynamo.ProgressSink) (*Solution, error) {
	return integrateWith(ctx, physics.NewRHS(grid, kin), u0, v0, times, method, opts, sink)
}

func integrateWith(ctx context.Context, rhs *physics.RHS, u0, v0, times []float64, method string, opts dynamo.Options, sink dynamo.ProgressSink) (*Solution, error) {
	if len(times) < 2 {
		return nil, fmt.Errorf("sim: need at least two output times, got %d", len(times))
	}

	stepper, err := integrators.New(method)
	if err != nil {
		return nil, &config.ValidationError{Field: "method", Reason: err.Error()}
	}

	t0, t1 := times[0], times[len(times)-1]
	if opts.Observer == nil {
		opts.Observer = NewProgressTracker(t0, t1, sink)
	}

	grid := rhs.Grid()
	x0 := physics.ToSpectral(grid, u0, v0)
	traj, err := stepper.Integrate(ctx, rhs, x0, t0, t1, times, opts)
	if err != nil {
		return nil, err
	}
	return toSolution(grid, traj), nil
}

func toSolution(grid *spectral.Grid, traj *dynamo.Trajectory) *Solution {
	sol := &Solution{
		Times: traj.Times,
		U:     make([][]float64, len(traj.States)),
		V:     make([][]float64, len(traj.States)),
		Final: traj.Final,
		Stats: traj.Stats,
	}
	for k, x := range traj.States {
		sol.U[k], sol.V[k] = physics.ToPhysical(grid, x)
	}
	return sol
}

// Segment is one checkpointed sub-interval [Start, End].
type Segment struct {
	Start, End float64
}

// Segments splits [tStart, tEnd] at tStart + k·interval.
func Segments(tStart, tEnd, interval float64) []Segment {
	if interval <= 0 || tEnd <= tStart {
		return []Segment{{tStart, tEnd}}
	}

	var segs []Segment
	a := tStart
	for k := 1; a < tEnd; k++ {
		b := tStart + float64(k)*interval
		if b >= tEnd || tEnd-b < 1e-9*interval {
			b = tEnd
		}
		segs = append(segs, Segment{a, b})
		a = b
	}
	return segs
}

// IntegrateSegmented integrates segment by segment, handing the exact end
// state of each segment to rc.Checkpoints before starting the next. Each
// segment reports the output times in (Start, End], the first one also
// its Start. Step-size control restarts at every boundary.
//
// When a segment fails the returned Solution holds every completed
// segment (possibly none) alongside the error.
func IntegrateSegmented(ctx context.Context, rc *RunContext, u0, v0 []float64) (*Solution, error) {
	times := rc.Times
	t0, t1 := times[0], times[len(times)-1]
	segs := Segments(t0, t1, rc.CheckpointInterval)

	opts := rc.Options
	opts.Observer = rc.tracker(rc.Progress)

	rhs := rc.newRHS()
	x := physics.ToSpectral(rc.Grid, u0, v0)
	sol := &Solution{Final: x.Clone()}

	next := 0
	for i, seg := range segs {
		var outputs []float64
		for next < len(times) && (times[next] <= seg.End || i == len(segs)-1) {
			outputs = append(outputs, times[next])
			next++
		}

		stepper, err := integrators.New(rc.Method)
		if err != nil {
			return sol, &config.ValidationError{Field: "method", Reason: err.Error()}
		}

		started := time.Now()
		traj, err := stepper.Integrate(ctx, rhs, x, seg.Start, seg.End, outputs, opts)
		if err != nil {
			rc.Logger.Error("segment failed",
				"segment", i+1,
				"of", len(segs),
				"start", seg.Start,
				"completed_until", sol.lastTime(t0),
				"err", err,
			)
			return sol, err
		}

		sol.append(toSolution(rc.Grid, traj))
		x = traj.Final

		if rc.Checkpoints != nil {
			cp := Checkpoint{
				Segment: i + 1,
				Start:   seg.Start,
				End:     seg.End,
				State:   x.Clone(),
				Stats:   traj.Stats,
				Created: time.Now(),
			}
			if err := rc.Checkpoints.SaveCheckpoint(ctx, cp); err != nil {
				return sol, fmt.Errorf("sim: saving checkpoint %d: %w", i+1, err)
			}
		}

		rc.Logger.Info("segment complete",
			"segment", i+1,
			"of", len(segs),
			"t", seg.End,
			"steps", traj.Stats.Steps,
			"elapsed", time.Since(started).Round(time.Millisecond),
		)
	}
	return sol, nil
}

func (s *Solution) lastTime(fallback float64) float64 {
	if len(s.Times) == 0 {
		return fallback
	}
	return s.Times[len(s.Times)-1]
}
