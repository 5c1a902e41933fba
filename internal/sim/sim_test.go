package sim

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/san-kum/spiralsim/internal/config"
	"github.com/san-kum/spiralsim/internal/dynamo"
	"github.com/san-kum/spiralsim/internal/physics"
	"github.com/san-kum/spiralsim/internal/spectral"
)

func smallConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Name = "small"
	cfg.D1, cfg.D2, cfg.Beta = 0.5, 0.5, 1.0
	cfg.L, cfg.N = 10, 16
	cfg.TStart, cfg.TEnd, cfg.Dt = 0, 4, 0.5
	return cfg
}

func maxAbsDiff(a, b [][]float64) float64 {
	d := 0.0
	for k := range a {
		for i := range a[k] {
			d = math.Max(d, math.Abs(a[k][i]-b[k][i]))
		}
	}
	return d
}

type recordingSink struct {
	mu  sync.Mutex
	cps []Checkpoint
	err error
}

func (r *recordingSink) SaveCheckpoint(_ context.Context, cp Checkpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cps = append(r.cps, cp)
	return r.err
}

type recordingResults struct {
	mu       sync.Mutex
	outcomes []*Outcome
}

func (r *recordingResults) Persist(_ context.Context, out *Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, out)
	return nil
}

func TestOutputTimes(t *testing.T) {
	tests := []struct {
		start, end, dt float64
		count          int
		last           float64
	}{
		{0, 100, 0.1, 1001, 100},
		{0, 10, 0.5, 21, 10},
		{5, 6, 0.25, 5, 6},
		{0, 1, 0.3, 4, 0.9},
		{0, 1, 2, 1, 0},
	}

	for _, tt := range tests {
		times := OutputTimes(tt.start, tt.end, tt.dt)
		if len(times) != tt.count {
			t.Errorf("OutputTimes(%v, %v, %v): %d times, want %d", tt.start, tt.end, tt.dt, len(times), tt.count)
			continue
		}
		if math.Abs(times[len(times)-1]-tt.last) > 1e-12 {
			t.Errorf("OutputTimes(%v, %v, %v): last = %v, want %v", tt.start, tt.end, tt.dt, times[len(times)-1], tt.last)
		}
		for i := 1; i < len(times); i++ {
			if times[i] <= times[i-1] {
				t.Fatalf("times not increasing at %d", i)
			}
		}
	}

	if OutputTimes(0, 1, 0) != nil {
		t.Error("zero dt should give no times")
	}
}

func TestSegments(t *testing.T) {
	segs := Segments(0, 100, 25)
	if len(segs) != 4 {
		t.Fatalf("got %d segments, want 4", len(segs))
	}
	for i, s := range segs {
		if s.Start != float64(25*i) || s.End != float64(25*(i+1)) {
			t.Errorf("segment %d = %+v", i, s)
		}
	}

	segs = Segments(0, 60, 25)
	if len(segs) != 3 || segs[2].End != 60 || segs[2].Start != 50 {
		t.Errorf("uneven split = %+v", segs)
	}

	if segs := Segments(0, 10, 50); len(segs) != 1 || segs[0] != (Segment{0, 10}) {
		t.Errorf("oversized interval = %+v", segs)
	}
}

func TestProgressTracker_Throttles(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }

	var reports []dynamo.Progress
	sink := dynamo.ProgressFunc(func(p dynamo.Progress) { reports = append(reports, p) })
	tr := NewProgressTrackerWithClock(0, 100, sink, clock)

	// eleven steps, one simulated unit and one wall second apart
	for i := 1; i <= 11; i++ {
		now = now.Add(time.Second)
		tr.OnStep(float64(i))
	}

	if len(reports) != 1 {
		t.Fatalf("got %d reports in 11s, want 1", len(reports))
	}
	p := reports[0]
	if p.T != 6 || math.Abs(p.Fraction-0.06) > 1e-12 || math.Abs(p.Rate-1) > 1e-12 {
		t.Errorf("report = %+v", p)
	}

	now = now.Add(10 * time.Second)
	tr.OnStep(30)
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	if math.Abs(reports[1].Rate-24.0/15.0) > 1e-12 {
		t.Errorf("rate = %v, want %v", reports[1].Rate, 24.0/15.0)
	}
}

func TestProgressTracker_NilSink(t *testing.T) {
	tr := NewProgressTracker(0, 1, nil)
	tr.OnStep(0.5)
}

func TestIntegrate_ExactOutputs(t *testing.T) {
	cfg := smallConfig()
	g := spectral.NewGrid(cfg.L, cfg.N)
	u0, v0 := physics.SpiralInitialConditions(g, 1)
	times := OutputTimes(0, 2, 0.5)

	sol, err := Integrate(context.Background(), u0, v0, times, g, physics.Kinetics{D1: 0.5, D2: 0.5, Beta: 1}, "RK45", dynamo.DefaultOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if sol.Len() != len(times) || len(sol.U) != len(times) || len(sol.V) != len(times) {
		t.Fatalf("solution has %d times, %d u, %d v fields", sol.Len(), len(sol.U), len(sol.V))
	}
	for k := range times {
		if sol.Times[k] != times[k] {
			t.Errorf("time %d = %v, want %v", k, sol.Times[k], times[k])
		}
		if len(sol.U[k]) != g.Points {
			t.Fatalf("field %d has %d points", k, len(sol.U[k]))
		}
	}
	for i := range u0 {
		if math.Abs(sol.U[0][i]-u0[i]) > 1e-12 || math.Abs(sol.V[0][i]-v0[i]) > 1e-12 {
			t.Fatalf("first output differs from the initial condition at %d", i)
		}
	}
	if len(sol.Final) != 2*g.Points || sol.Stats.Steps == 0 {
		t.Errorf("final state len %d, stats %+v", len(sol.Final), sol.Stats)
	}
}

func TestIntegrate_UnknownMethod(t *testing.T) {
	g := spectral.NewGrid(10, 16)
	u0, v0 := physics.SpiralInitialConditions(g, 1)

	_, err := Integrate(context.Background(), u0, v0, []float64{0, 1}, g, physics.Kinetics{}, "LSODA", dynamo.DefaultOptions(), nil)
	if !errors.Is(err, config.ErrInvalid) {
		t.Errorf("got %v, want config.ErrInvalid", err)
	}
}

func TestIntegrate_Canceled(t *testing.T) {
	g := spectral.NewGrid(10, 16)
	u0, v0 := physics.SpiralInitialConditions(g, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sol, err := Integrate(ctx, u0, v0, []float64{0, 1}, g, physics.Kinetics{D1: 0.1, D2: 0.1, Beta: 1}, "RK45", dynamo.DefaultOptions(), nil)
	if sol != nil {
		t.Error("failed integration returned a solution")
	}
	var ierr *dynamo.IntegrationError
	if !errors.As(err, &ierr) || !errors.Is(err, dynamo.ErrContextCanceled) {
		t.Errorf("got %v", err)
	}
}

func TestIntegrateSegmented_Checkpoints(t *testing.T) {
	cfg := smallConfig()
	cfg.SaveCheckpoints = true
	cfg.CheckpointInterval = 1.5

	sink := &recordingSink{}
	rc, err := NewRunContext(cfg, RunOptions{Checkpoints: sink})
	if err != nil {
		t.Fatal(err)
	}
	u0, v0 := rc.InitialConditions()

	sol, err := IntegrateSegmented(context.Background(), rc, u0, v0)
	if err != nil {
		t.Fatal(err)
	}
	if sol.Len() != len(rc.Times) {
		t.Fatalf("got %d outputs, want %d", sol.Len(), len(rc.Times))
	}
	for k := range rc.Times {
		if sol.Times[k] != rc.Times[k] {
			t.Fatalf("time %d = %v, want %v", k, sol.Times[k], rc.Times[k])
		}
	}

	// [0, 1.5] [1.5, 3] [3, 4]
	if len(sink.cps) != 3 {
		t.Fatalf("got %d checkpoints, want 3", len(sink.cps))
	}
	last := sink.cps[2]
	if last.Segment != 3 || last.Start != 3 || last.End != 4 {
		t.Errorf("last checkpoint %+v", last)
	}
	for i := range last.State {
		if last.State[i] != sol.Final[i] {
			t.Fatal("last checkpoint state differs from the final state")
		}
	}
}

func TestIntegrateSegmented_PartialOnFailure(t *testing.T) {
	cfg := smallConfig()
	cfg.SaveCheckpoints = true
	cfg.CheckpointInterval = 2

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &cancelAfterFirst{cancel: cancel}

	rc, err := NewRunContext(cfg, RunOptions{Checkpoints: sink})
	if err != nil {
		t.Fatal(err)
	}
	u0, v0 := rc.InitialConditions()

	sol, err := IntegrateSegmented(ctx, rc, u0, v0)
	if !errors.Is(err, dynamo.ErrContextCanceled) {
		t.Fatalf("got %v, want cancellation", err)
	}
	// first segment covers 0, 0.5, ..., 2
	if sol.Len() != 5 || sol.Times[4] != 2 {
		t.Errorf("partial solution has times %v", sol.Times)
	}
}

type cancelAfterFirst struct {
	cancel context.CancelFunc
}

func (c *cancelAfterFirst) SaveCheckpoint(context.Context, Checkpoint) error {
	c.cancel()
	return nil
}

func TestRun_Pipeline(t *testing.T) {
	cfg := smallConfig()
	results := &recordingResults{}

	out, err := Run(context.Background(), cfg, RunOptions{Results: results})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Table) != out.Solution.Len() || len(out.Table) != 9 {
		t.Errorf("table has %d rows for %d outputs", len(out.Table), out.Solution.Len())
	}
	if out.Report == nil {
		t.Fatal("classification stage did not run")
	}
	if out.Report.Window != 9 {
		t.Errorf("window = %d, want 9", out.Report.Window)
	}
	if len(results.outcomes) != 1 || results.outcomes[0] != out {
		t.Error("persist stage did not receive the outcome")
	}
	if out.Partial || out.Elapsed <= 0 {
		t.Errorf("partial=%v elapsed=%v", out.Partial, out.Elapsed)
	}
	// n=16 is below the recommended resolution
	if len(out.Advisories) == 0 {
		t.Error("expected a resolution advisory")
	}
}

func TestRun_SkipsDisabledStages(t *testing.T) {
	cfg := smallConfig()
	cfg.CheckEquilibrium = false

	out, err := Run(context.Background(), cfg, RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Report != nil {
		t.Error("classification ran with check_equilibrium=false")
	}
	if len(out.Table) == 0 {
		t.Error("statistics stage must always run")
	}
}

func TestRun_PartialResult(t *testing.T) {
	cfg := smallConfig()
	cfg.SaveCheckpoints = true
	cfg.CheckpointInterval = 2

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	results := &recordingResults{}

	out, err := Run(ctx, cfg, RunOptions{Checkpoints: &cancelAfterFirst{cancel: cancel}, Results: results})
	if err == nil {
		t.Fatal("expected an error")
	}
	if out == nil || !out.Partial {
		t.Fatalf("expected a partial outcome, got %+v", out)
	}
	if len(out.Table) != out.Solution.Len() {
		t.Errorf("partial statistics have %d rows for %d outputs", len(out.Table), out.Solution.Len())
	}
	if len(results.outcomes) != 0 {
		t.Error("partial outcome must not be persisted by Run")
	}
}

func TestRun_UnknownMethod(t *testing.T) {
	cfg := smallConfig()
	cfg.Method = "euler"
	if _, err := Run(context.Background(), cfg, RunOptions{}); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("got %v, want config.ErrInvalid", err)
	}
}

func TestEnsemble(t *testing.T) {
	a := smallConfig()
	b := smallConfig()
	b.Name = "two_arms"
	b.Arms = 2
	c := smallConfig()
	c.Name = "broken"
	c.Method = "nope"

	results := &recordingResults{}
	got := NewEnsemble([]*config.Config{a, b, c}, RunOptions{Results: results}).Run(context.Background())
	if len(got) != 3 {
		t.Fatalf("got %d results", len(got))
	}
	for i, r := range got[:2] {
		if r.Err != nil || r.Outcome == nil {
			t.Errorf("run %d: %v", i, r.Err)
		}
	}
	if got[2].Err == nil {
		t.Error("broken config did not fail")
	}
	if got[1].Config.Name != "two_arms" {
		t.Error("results out of order")
	}
	if len(results.outcomes) != 2 {
		t.Errorf("persisted %d outcomes, want 2", len(results.outcomes))
	}
	if rep := got[0].Outcome.Report; rep == nil || rep.Regime.String() == "" {
		t.Error("ensemble run was not classified")
	}
}

func TestEnsemble_OpensCheckpointsPerRun(t *testing.T) {
	a := smallConfig()
	a.SaveCheckpoints, a.CheckpointInterval = true, 2
	b := smallConfig()
	b.Name = "two_arms"
	b.Arms = 2
	b.SaveCheckpoints, b.CheckpointInterval = true, 2
	c := smallConfig()
	c.Name = "unsegmented"

	var mu sync.Mutex
	sinks := map[string]*recordingSink{}
	closed := map[string]bool{}
	opener := func(_ context.Context, cfg *config.Config) (CheckpointSink, func() error, error) {
		mu.Lock()
		defer mu.Unlock()
		s := &recordingSink{}
		sinks[cfg.Name] = s
		return s, func() error {
			mu.Lock()
			defer mu.Unlock()
			closed[cfg.Name] = true
			return nil
		}, nil
	}

	got := NewEnsemble([]*config.Config{a, b, c}, RunOptions{OpenCheckpoints: opener}).Run(context.Background())
	for i, r := range got {
		if r.Err != nil {
			t.Fatalf("run %d: %v", i, r.Err)
		}
	}

	if len(sinks) != 2 {
		t.Fatalf("opened %d sinks, want 2", len(sinks))
	}
	if _, ok := sinks["unsegmented"]; ok {
		t.Error("opened a sink for a run without checkpoints")
	}
	for _, name := range []string{"small", "two_arms"} {
		s := sinks[name]
		if s == nil {
			t.Errorf("%s: no sink opened", name)
			continue
		}
		if len(s.cps) != 2 {
			t.Errorf("%s: got %d checkpoints, want 2", name, len(s.cps))
			continue
		}
		if s.cps[1].End != 4 {
			t.Errorf("%s: last checkpoint ends at %v, want 4", name, s.cps[1].End)
		}
		if !closed[name] {
			t.Errorf("%s: sink not closed", name)
		}
	}
}

func TestRun_OpenCheckpointsError(t *testing.T) {
	cfg := smallConfig()
	cfg.SaveCheckpoints, cfg.CheckpointInterval = true, 2
	boom := errors.New("disk full")
	opener := func(context.Context, *config.Config) (CheckpointSink, func() error, error) {
		return nil, nil, boom
	}
	if _, err := Run(context.Background(), cfg, RunOptions{OpenCheckpoints: opener}); !errors.Is(err, boom) {
		t.Errorf("got %v, want %v", err, boom)
	}
}

func TestRun_ParallelRHSMatchesSerial(t *testing.T) {
	serialCfg := smallConfig()
	serial, err := Run(context.Background(), serialCfg, RunOptions{})
	if err != nil {
		t.Fatal(err)
	}

	parallelCfg := smallConfig()
	parallelCfg.ParallelRHS = true
	parallel, err := Run(context.Background(), parallelCfg, RunOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if d := maxAbsDiff(serial.Solution.U, parallel.Solution.U); d != 0 {
		t.Errorf("u differs by %g", d)
	}
	if d := maxAbsDiff(serial.Solution.V, parallel.Solution.V); d != 0 {
		t.Errorf("v differs by %g", d)
	}
	if serial.Solution.Stats.Steps != parallel.Solution.Stats.Steps {
		t.Errorf("steps %d vs %d", serial.Solution.Stats.Steps, parallel.Solution.Stats.Steps)
	}
}
