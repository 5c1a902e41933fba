package sim

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/san-kum/spiralsim/internal/config"
)

// EnsembleResult pairs one configuration with what its run produced.
type EnsembleResult struct {
	Config  *config.Config
	Outcome *Outcome
	Err     error
}

// Ensemble runs independent configurations concurrently, one goroutine per
// run. Each run builds its own grid and scratch, so nothing numerical is
// shared; Results, if set, must tolerate concurrent Persist calls. A single
// Checkpoints sink is never shared between runs: set OpenCheckpoints to give
// each run its own.
type Ensemble struct {
	configs []*config.Config
	base    RunOptions
}

func NewEnsemble(configs []*config.Config, base RunOptions) *Ensemble {
	return &Ensemble{configs: configs, base: base}
}

// Run waits for every run and returns results in input order. Per-run
// failures are reported in EnsembleResult.Err rather than aborting the
// others.
func (e *Ensemble) Run(ctx context.Context) []EnsembleResult {
	results := make([]EnsembleResult, len(e.configs))

	logger := e.base.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var wg sync.WaitGroup
	for i, cfg := range e.configs {
		wg.Add(1)
		go func(idx int, cfg *config.Config) {
			defer wg.Done()

			runLog := logger.With("run", cfg.Name)
			opts := RunOptions{
				Logger:           runLog,
				Progress:         LogProgress(runLog),
				ProgressInterval: e.base.ProgressInterval,
				OpenCheckpoints:  e.base.OpenCheckpoints,
				Results:          e.base.Results,
			}

			out, err := Run(ctx, cfg, opts)
			results[idx] = EnsembleResult{Config: cfg, Outcome: out, Err: err}
		}(i, cfg)
	}

	wg.Wait()
	return results
}
