package sim

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/san-kum/spiralsim/internal/config"
	"github.com/san-kum/spiralsim/internal/dynamo"
	"github.com/san-kum/spiralsim/internal/integrators"
	"github.com/san-kum/spiralsim/internal/physics"
	"github.com/san-kum/spiralsim/internal/spectral"
)

// RunContext is everything one run needs, built once from a validated
// Config and not modified afterwards.
type RunContext struct {
	Grid     *spectral.Grid
	Kinetics physics.Kinetics
	Times    []float64
	Method   string
	Options  dynamo.Options

	Arms           int
	NoiseAmplitude float64
	Seed           int64

	// ParallelRHS spreads each right-hand-side evaluation over all CPUs.
	ParallelRHS bool

	Segmented          bool
	CheckpointInterval float64

	Logger           *slog.Logger
	Progress         dynamo.ProgressSink
	ProgressInterval time.Duration
	Checkpoints      CheckpointSink
}

// NewRunContext resolves cfg into a RunContext. The method name is checked
// here so an unknown method fails before any work is done.
func NewRunContext(cfg *config.Config, opts RunOptions) (*RunContext, error) {
	if _, err := integrators.New(cfg.Method); err != nil {
		return nil, &config.ValidationError{Field: "method", Reason: err.Error()}
	}

	times := OutputTimes(cfg.TStart, cfg.TEnd, cfg.Dt)
	if len(times) < 2 {
		return nil, &config.ValidationError{Field: "dt", Reason: fmt.Sprintf("%g leaves fewer than two output times in [%g, %g]", cfg.Dt, cfg.TStart, cfg.TEnd)}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &RunContext{
		Grid:     spectral.NewGrid(cfg.L, cfg.N),
		Kinetics: physics.Kinetics{D1: cfg.D1, D2: cfg.D2, Beta: cfg.Beta},
		Times:    times,
		Method:   cfg.Method,
		Options: dynamo.Options{
			RelTol:    cfg.RelTol,
			AbsTol:    cfg.AbsTol,
			MaxStep:   cfg.MaxStep,
			FirstStep: cfg.FirstStep,
		},
		Arms:               cfg.Arms,
		NoiseAmplitude:     cfg.NoiseAmplitude,
		Seed:               cfg.Seed,
		ParallelRHS:        cfg.ParallelRHS,
		Segmented:          cfg.SaveCheckpoints,
		CheckpointInterval: cfg.CheckpointInterval,
		Logger:             logger,
		Progress:           opts.Progress,
		ProgressInterval:   opts.ProgressInterval,
		Checkpoints:        opts.Checkpoints,
	}, nil
}

func (rc *RunContext) tracker(sink dynamo.ProgressSink) *ProgressTracker {
	t := NewProgressTracker(rc.Times[0], rc.Times[len(rc.Times)-1], sink)
	if rc.ProgressInterval > 0 {
		t.Interval = rc.ProgressInterval
	}
	return t
}

func (rc *RunContext) newRHS() *physics.RHS {
	rhs := physics.NewRHS(rc.Grid, rc.Kinetics)
	if rc.ParallelRHS {
		rhs.SetParallel(physics.ParallelChunk)
	}
	return rhs
}

// InitialConditions returns the seeded spiral, perturbed when a noise
// amplitude is set.
func (rc *RunContext) InitialConditions() (u0, v0 []float64) {
	u0, v0 = physics.SpiralInitialConditions(rc.Grid, rc.Arms)
	physics.Perturb(rc.Grid, u0, v0, rc.NoiseAmplitude, rc.Seed)
	return u0, v0
}

// OutputTimes returns t_start, t_start+dt, ... up to t_end. The i-th time
// is computed as t_start + i·dt so rounding does not accumulate, and a last
// time within rounding of t_end is snapped to it.
func OutputTimes(tStart, tEnd, dt float64) []float64 {
	if dt <= 0 || tEnd < tStart {
		return nil
	}

	span := (tEnd - tStart) / dt
	count := int(math.Floor(span+1e-9)) + 1
	times := make([]float64, count)
	for i := range times {
		times[i] = tStart + float64(i)*dt
	}
	if last := times[count-1]; math.Abs(last-tEnd) <= 1e-9*dt || last > tEnd {
		times[count-1] = tEnd
	}
	return times
}
