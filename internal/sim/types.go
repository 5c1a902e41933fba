package sim

import (
	"context"
	"time"

	"github.com/san-kum/spiralsim/internal/analysis"
	"github.com/san-kum/spiralsim/internal/config"
	"github.com/san-kum/spiralsim/internal/dynamo"
)

// Solution holds the physical-space fields at each output time. U[k] and
// V[k] are flat row-major n×n fields.
type Solution struct {
	Times []float64
	U     [][]float64
	V     [][]float64
	Final dynamo.State
	Stats dynamo.Stats
}

func (s *Solution) Len() int { return len(s.Times) }

func (s *Solution) append(o *Solution) {
	s.Times = append(s.Times, o.Times...)
	s.U = append(s.U, o.U...)
	s.V = append(s.V, o.V...)
	s.Final = o.Final
	s.Stats.Add(o.Stats)
}

// Checkpoint is the exact state at the end of one completed segment.
type Checkpoint struct {
	Segment int
	Start   float64
	End     float64
	State   dynamo.State
	Stats   dynamo.Stats
	Created time.Time
}

// CheckpointSink persists checkpoints as segments complete. An error stops
// the run.
type CheckpointSink interface {
	SaveCheckpoint(ctx context.Context, cp Checkpoint) error
}

// CheckpointOpener opens a checkpoint sink for one run. The returned close
// function is called when the run finishes.
type CheckpointOpener func(ctx context.Context, cfg *config.Config) (CheckpointSink, func() error, error)

// Outcome is everything a run produced. Report is nil when the equilibrium
// check is disabled. Partial marks an outcome assembled from the completed
// segments of a failed checkpointed run.
type Outcome struct {
	Config     *config.Config
	Solution   *Solution
	Table      analysis.Table
	Report     *analysis.Report
	Advisories []config.Advisory
	Started    time.Time
	Elapsed    time.Duration
	Partial    bool
}

// ResultSink persists a finished outcome.
type ResultSink interface {
	Persist(ctx context.Context, out *Outcome) error
}
