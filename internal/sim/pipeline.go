package sim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/spiralsim/internal/analysis"
	"github.com/san-kum/spiralsim/internal/config"
	"github.com/san-kum/spiralsim/internal/dynamo"
)

// RunOptions carries the collaborators of a run. All are optional; a zero
// ProgressInterval means DefaultProgressInterval. OpenCheckpoints is used
// only when Checkpoints is nil and the config asks for checkpoints, which
// lets runs that share RunOptions each get their own sink.
type RunOptions struct {
	Logger           *slog.Logger
	Progress         dynamo.ProgressSink
	ProgressInterval time.Duration
	Checkpoints      CheckpointSink
	OpenCheckpoints  CheckpointOpener
	Results          ResultSink
}

type stage struct {
	name    string
	enabled func(cfg *config.Config, opts RunOptions) bool
	run     func(ctx context.Context, rc *RunContext, out *Outcome, opts RunOptions) error
}

func always(*config.Config, RunOptions) bool { return true }

// pipeline is the fixed stage order of every run.
var pipeline = []stage{
	{"integrate", always, integrateStage},
	{"statistics", always, statisticsStage},
	{"classify", func(cfg *config.Config, _ RunOptions) bool { return cfg.CheckEquilibrium }, classifyStage},
	{"persist", func(_ *config.Config, opts RunOptions) bool { return opts.Results != nil }, persistStage},
}

// Run executes one simulation from a validated config. When a checkpointed
// integration fails after completing at least one segment, Run returns the
// partial outcome (solution and statistics of the completed segments,
// Partial set, not persisted) together with the error.
func Run(ctx context.Context, cfg *config.Config, opts RunOptions) (*Outcome, error) {
	if opts.Checkpoints == nil && opts.OpenCheckpoints != nil && cfg.SaveCheckpoints {
		sink, closeSink, err := opts.OpenCheckpoints(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open checkpoints: %w", err)
		}
		if closeSink != nil {
			defer closeSink()
		}
		opts.Checkpoints = sink
	}

	rc, err := NewRunContext(cfg, opts)
	if err != nil {
		return nil, err
	}
	log := rc.Logger

	out := &Outcome{
		Config:     cfg,
		Advisories: cfg.Advisories(),
		Started:    time.Now(),
	}
	for _, adv := range out.Advisories {
		log.Warn("advisory", "msg", string(adv))
	}

	log.Info("initialized solver",
		"name", cfg.Name,
		"d1", cfg.D1,
		"d2", cfg.D2,
		"beta", cfg.Beta,
		"grid", fmt.Sprintf("%dx%d", cfg.N, cfg.N),
		"L", cfg.L,
	)

	for _, st := range pipeline {
		if !st.enabled(cfg, opts) {
			log.Debug("stage skipped", "stage", st.name)
			continue
		}

		started := time.Now()
		if err := st.run(ctx, rc, out, opts); err != nil {
			out.Elapsed = time.Since(out.Started)
			if out.Partial {
				return out, err
			}
			return nil, fmt.Errorf("%s: %w", st.name, err)
		}
		log.Debug("stage complete", "stage", st.name, "elapsed", time.Since(started).Round(time.Millisecond))
	}

	out.Elapsed = time.Since(out.Started)
	log.Info("simulation completed", "elapsed", out.Elapsed.Round(time.Millisecond), "steps", out.Solution.Stats.Steps)
	return out, nil
}

func integrateStage(ctx context.Context, rc *RunContext, out *Outcome, _ RunOptions) error {
	u0, v0 := rc.InitialConditions()
	rc.Logger.Info("initial conditions", "arms", rc.Arms, "noise", rc.NoiseAmplitude)
	rc.Logger.Info("integrating equations",
		"method", rc.Method,
		"outputs", len(rc.Times),
		"dt", rc.Times[1]-rc.Times[0],
		"segmented", rc.Segmented,
		"parallel_rhs", rc.ParallelRHS,
	)

	progress := rc.Progress
	if progress == nil {
		progress = LogProgress(rc.Logger)
	}

	if !rc.Segmented {
		opts := rc.Options
		opts.Observer = rc.tracker(progress)
		sol, err := integrateWith(ctx, rc.newRHS(), u0, v0, rc.Times, rc.Method, opts, nil)
		if err != nil {
			return err
		}
		out.Solution = sol
		return nil
	}

	seg := *rc
	seg.Progress = progress
	sol, err := IntegrateSegmented(ctx, &seg, u0, v0)
	out.Solution = sol
	if err != nil && sol != nil && sol.Len() > 0 {
		out.Partial = true
		out.Table = analysis.Reduce(sol.Times, sol.U, sol.V)
		rc.Logger.Warn("returning partial result", "outputs", sol.Len(), "until", sol.Times[sol.Len()-1])
	}
	return err
}

func statisticsStage(_ context.Context, rc *RunContext, out *Outcome, _ RunOptions) error {
	rc.Logger.Info("computing statistics")
	sol := out.Solution
	out.Table = analysis.Reduce(sol.Times, sol.U, sol.V)
	return nil
}

func classifyStage(_ context.Context, rc *RunContext, out *Outcome, _ RunOptions) error {
	rep := analysis.Classify(out.Table, out.Config.Thresholds)
	out.Report = &rep
	rc.Logger.Info("equilibrium check",
		"window", rep.Window,
		"u_std_mean", rep.Mean,
		"u_std_variation", rep.Std,
		"regime", rep.Regime.String(),
	)
	return nil
}

func persistStage(ctx context.Context, rc *RunContext, out *Outcome, opts RunOptions) error {
	out.Elapsed = time.Since(out.Started)
	if err := opts.Results.Persist(ctx, out); err != nil {
		return err
	}
	rc.Logger.Info("results saved")
	return nil
}
