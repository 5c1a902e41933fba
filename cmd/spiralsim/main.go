package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/san-kum/spiralsim/internal/analysis"
	"github.com/san-kum/spiralsim/internal/checkpoint"
	"github.com/san-kum/spiralsim/internal/config"
	"github.com/san-kum/spiralsim/internal/integrators"
	"github.com/san-kum/spiralsim/internal/sim"
	"github.com/san-kum/spiralsim/internal/storage"
	"github.com/san-kum/spiralsim/internal/sweep"
	"github.com/san-kum/spiralsim/internal/viz"
)

var version = "dev"

var (
	outputDir   string
	logDir      string
	preset      string
	d1          float64
	d2          float64
	beta        float64
	domain      float64
	gridN       int
	tEnd        float64
	dt          float64
	method      string
	arms        int
	checkpoints bool
	interval    float64
	parallelRHS bool
	live        bool
	quiet       bool
	verbose     bool
	showField   bool
	columns     []string
	axes        []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "spiralsim",
		Short:         "spiral wave reaction-diffusion solver",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&outputDir, "out", config.DefaultOutputDir, "output directory")
	rootCmd.PersistentFlags().StringVar(&logDir, "logs", config.DefaultLogDir, "log directory")

	runCmd := &cobra.Command{
		Use:   "run [config]",
		Short: "run a simulation from a config file, preset or flags",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	runCmd.Flags().StringVar(&preset, "preset", "", "start from a preset (see presets)")
	runCmd.Flags().Float64Var(&d1, "d1", 0, "diffusion coefficient of u")
	runCmd.Flags().Float64Var(&d2, "d2", 0, "diffusion coefficient of v")
	runCmd.Flags().Float64Var(&beta, "beta", 0, "reaction coupling")
	runCmd.Flags().Float64Var(&domain, "L", 0, "domain side length")
	runCmd.Flags().IntVar(&gridN, "n", 0, "grid points per side")
	runCmd.Flags().Float64Var(&tEnd, "t-end", 0, "end time")
	runCmd.Flags().Float64Var(&dt, "dt", 0, "output interval")
	runCmd.Flags().StringVar(&method, "method", "", "integrator ("+strings.Join(integrators.Methods(), ", ")+")")
	runCmd.Flags().IntVar(&arms, "arms", 0, "number of spiral arms")
	runCmd.Flags().BoolVar(&checkpoints, "checkpoints", false, "integrate in checkpointed segments")
	runCmd.Flags().Float64Var(&interval, "interval", 0, "checkpoint interval")
	runCmd.Flags().BoolVar(&parallelRHS, "parallel-rhs", false, "spread each right-hand-side evaluation over all CPUs")
	runCmd.Flags().BoolVar(&live, "live", false, "show a live progress view")
	runCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "log to file only")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run]",
		Short: "summarize a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}
	showCmd.Flags().BoolVar(&showField, "field", false, "draw the zero contour of the final u field")

	plotCmd := &cobra.Command{
		Use:   "plot [run]",
		Short: "plot statistics over time",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&columns, "columns", []string{"u_std", "u_mean"}, "columns to plot ("+strings.Join(analysis.Columns[1:], ", ")+")")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run]",
		Short: "rotation period and regime of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run]",
		Short: "export metadata and statistics as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storage.New(outputDir).ExportJSON(os.Stdout, args[0])
		},
	}

	compareCmd := &cobra.Command{
		Use:   "compare [config] [config] ...",
		Short: "run several configs concurrently and compare them",
		Args:  cobra.MinimumNArgs(2),
		RunE:  compareRuns,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Printf("  %-18s d1=%g d2=%g beta=%g L=%g n=%d t_end=%g arms=%d\n",
					name, p.D1, p.D2, p.Beta, p.L, p.N, p.TEnd, p.Arms)
			}
			return nil
		},
	}

	resumeCmd := &cobra.Command{
		Use:   "resume [run]",
		Short: "show the checkpoints of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  showCheckpoints,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep [config]",
		Short: "map regimes over a grid of parameter values",
		Args:  cobra.MaximumNArgs(1),
		RunE:  sweepRuns,
	}
	sweepCmd.Flags().StringVar(&preset, "preset", "", "base preset")
	sweepCmd.Flags().BoolVar(&parallelRHS, "parallel-rhs", false, "spread each right-hand-side evaluation over all CPUs")
	sweepCmd.Flags().StringArrayVarP(&axes, "param", "p", nil, "swept parameter as key=v1,v2,... (repeatable)")

	rootCmd.AddCommand(runCmd, listCmd, showCmd, plotCmd, analyzeCmd, exportJSONCmd, compareCmd, presetsCmd, resumeCmd, sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, viz.Failure.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

// resolveConfig layers a preset or config file under any flags the user
// set explicitly.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	switch {
	case len(args) == 1:
		loaded, err := config.Load(args[0])
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case preset != "":
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	flags := cmd.Flags()
	if flags.Changed("d1") {
		cfg.D1 = d1
	}
	if flags.Changed("d2") {
		cfg.D2 = d2
	}
	if flags.Changed("beta") {
		cfg.Beta = beta
	}
	if flags.Changed("L") {
		cfg.L = domain
	}
	if flags.Changed("n") {
		cfg.N = gridN
	}
	if flags.Changed("t-end") {
		cfg.TEnd = tEnd
	}
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("method") {
		cfg.Method = method
	}
	if flags.Changed("arms") {
		cfg.Arms = arms
	}
	if flags.Changed("checkpoints") {
		cfg.SaveCheckpoints = checkpoints
	}
	if flags.Changed("interval") {
		cfg.CheckpointInterval = interval
	}
	if flags.Changed("parallel-rhs") {
		cfg.ParallelRHS = parallelRHS
	}
	if cmd.Flags().Changed("out") || cfg.OutputDir == "" {
		cfg.OutputDir = outputDir
	}
	if cmd.Flags().Changed("logs") || cfg.LogDir == "" {
		cfg.LogDir = logDir
	}

	return cfg, cfg.Validate()
}

// newLogger writes text logs to <log_dir>/<name>/simulation.log and, unless
// silenced, to stderr.
func newLogger(cfg *config.Config, toStderr bool) (*slog.Logger, func() error, error) {
	dir := filepath.Join(cfg.LogDir, cfg.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, "simulation.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer = f
	if toStderr {
		w = io.MultiWriter(os.Stderr, f)
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), f.Close, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	st := storage.New(cfg.OutputDir)
	if err := st.Init(); err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg, !quiet && !live)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := sim.RunOptions{
		Logger:   logger,
		Progress: sim.LogProgress(logger),
		Results:  st,
	}

	if cfg.SaveCheckpoints {
		cps, closeCps, err := openCheckpoints(ctx, st, cfg)
		if err != nil {
			return err
		}
		defer closeCps()
		opts.Checkpoints = cps
	}

	var out *sim.Outcome
	if live {
		out, err = runLive(ctx, cfg, opts)
	} else {
		out, err = sim.Run(ctx, cfg, opts)
	}
	if err != nil {
		if out != nil && out.Partial {
			if perr := st.Persist(context.WithoutCancel(ctx), out); perr != nil {
				logger.Error("saving partial result failed", "err", perr)
			} else {
				logger.Warn("partial result saved", "outputs", out.Solution.Len(), "dir", filepath.Join(cfg.OutputDir, cfg.Name))
			}
		}
		return err
	}

	meta, err := st.Load(cfg.Name)
	if err != nil {
		return err
	}
	fmt.Println(viz.RenderSummary(meta, time.Now()))
	return nil
}

// openCheckpoints opens the run's checkpoint database and clears whatever an
// earlier run of the same name left there.
func openCheckpoints(ctx context.Context, st *storage.Store, cfg *config.Config) (sim.CheckpointSink, func() error, error) {
	dir, err := st.RunDir(cfg.Name)
	if err != nil {
		return nil, nil, err
	}
	cps, err := checkpoint.Open(filepath.Join(dir, checkpoint.FileName))
	if err != nil {
		return nil, nil, err
	}
	if err := cps.Reset(ctx); err != nil {
		cps.Close()
		return nil, nil, fmt.Errorf("reset checkpoints: %w", err)
	}
	if err := cps.SetMeta(ctx, "started", time.Now().Format(time.RFC3339)); err != nil {
		cps.Close()
		return nil, nil, err
	}
	return cps, cps.Close, nil
}

func checkpointOpener(st *storage.Store) sim.CheckpointOpener {
	return func(ctx context.Context, cfg *config.Config) (sim.CheckpointSink, func() error, error) {
		return openCheckpoints(ctx, st, cfg)
	}
}

// runLive drives the run from a goroutine while the progress view owns the
// terminal. Quitting the view cancels the run.
func runLive(ctx context.Context, cfg *config.Config, opts sim.RunOptions) (*sim.Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(viz.NewLive(cfg.Name, time.Now()))
	opts.Progress = viz.Sender(p)
	opts.ProgressInterval = 250 * time.Millisecond
	opts.Checkpoints = viz.NotifyCheckpoints(p, opts.Checkpoints)

	var out *sim.Outcome
	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		out, runErr = sim.Run(ctx, cfg, opts)
		p.Send(viz.DoneMsg{Err: runErr})
	}()

	final, err := p.Run()
	if m, ok := final.(viz.Live); err != nil || (ok && m.Canceled()) {
		cancel()
	}
	<-done
	if err != nil {
		return out, err
	}
	return out, runErr
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(outputDir).List()
	if err != nil {
		return err
	}
	fmt.Print(viz.RenderRunList(runs, time.Now()))
	return nil
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(outputDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	fmt.Println(viz.RenderSummary(meta, time.Now()))

	if !showField {
		return nil
	}
	hdr, u, _, err := st.LoadFields(args[0])
	if err != nil {
		return fmt.Errorf("no field archive: %w", err)
	}
	k := len(u) - 1
	fmt.Println(viz.FieldView(u[k], hdr.N, 40, 20, fmt.Sprintf("u = 0 at t = %.2f", hdr.Times[k])))
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	table, err := storage.New(outputDir).LoadStats(args[0])
	if err != nil {
		return err
	}

	graph, err := viz.PlotColumns(table, columns, 80, 12)
	if err != nil {
		return err
	}
	fmt.Println(graph)
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	st := storage.New(outputDir)
	table, err := st.LoadStats(args[0])
	if err != nil {
		return err
	}
	if len(table) < 4 {
		return errors.New("too few output times to analyze")
	}

	graph, err := viz.PlotSpectrum(table, "u_mean", 80, 12)
	if err != nil {
		return err
	}
	fmt.Println(graph)
	fmt.Println()

	uMean, _ := table.Column("u_mean")
	step := table[1].Time - table[0].Time
	if period := analysis.DominantPeriod(uMean, step); period > 0 {
		fmt.Printf("dominant period: %.3f time units\n", period)
	} else {
		fmt.Println("no dominant period")
	}

	thr := analysis.DefaultThresholds()
	if meta, err := st.Load(args[0]); err == nil {
		if cfg, err := config.Load(filepath.Join(outputDir, meta.Name, storage.ConfigFile)); err == nil {
			thr = cfg.Thresholds
		}
	}
	rep := analysis.Classify(table, thr)
	fmt.Printf("regime: %s\n  %s\n", viz.RegimeBadge(rep.Regime), rep.Regime.Description())
	fmt.Printf("  %s\n", rep)
	return nil
}

func compareRuns(cmd *cobra.Command, args []string) error {
	configs := make([]*config.Config, len(args))
	for i, path := range args {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg.OutputDir = outputDir
		configs[i] = cfg
	}

	st := storage.New(outputDir)
	if err := st.Init(); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results := sim.NewEnsemble(configs, sim.RunOptions{
		Logger:          logger,
		OpenCheckpoints: checkpointOpener(st),
		Results:         st,
	}).Run(ctx)

	var metas []*storage.RunMetadata
	var failed []error
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", r.Config.Name, r.Err))
			continue
		}
		meta, err := st.Load(r.Config.Name)
		if err != nil {
			failed = append(failed, err)
			continue
		}
		metas = append(metas, meta)
	}

	if len(metas) > 0 {
		fmt.Println(viz.RenderComparison(metas, time.Now()))
	}
	return errors.Join(failed...)
}

func showCheckpoints(cmd *cobra.Command, args []string) error {
	path := filepath.Join(outputDir, args[0], checkpoint.FileName)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("run %s has no checkpoints", args[0])
	}

	cps, err := checkpoint.Open(path)
	if err != nil {
		return err
	}
	defer cps.Close()

	ctx := context.Background()
	list, err := cps.List(ctx)
	if err != nil {
		return err
	}
	if started, err := cps.Meta(ctx, "started"); err == nil {
		fmt.Printf("started: %s\n", started)
	}
	for _, s := range list {
		fmt.Printf("  segment %-3d t = [%g, %g]  %s steps  %s  %s\n", s.Segment, s.Start, s.End,
			humanize.Comma(int64(s.Steps)), humanize.Bytes(uint64(s.Bytes)), humanize.Time(s.Created))
	}

	latest, err := cps.Latest(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("latest: segment %d, t = %g (%d values)\n", latest.Segment, latest.End, len(latest.State))
	return nil
}

func sweepRuns(cmd *cobra.Command, args []string) error {
	if len(axes) == 0 {
		return errors.New("no --param given")
	}
	parsed := make([]sweep.Axis, len(axes))
	for i, spec := range axes {
		ax, err := sweep.ParseAxis(spec)
		if err != nil {
			return err
		}
		parsed[i] = ax
	}

	base, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st := storage.New(base.OutputDir)
	if err := st.Init(); err != nil {
		return err
	}

	points, err := sweep.New(base, parsed).Run(ctx, sim.RunOptions{
		Logger:          logger,
		OpenCheckpoints: checkpointOpener(st),
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, ax := range parsed {
		fmt.Fprintf(w, "%s\t", strings.ToUpper(ax.Key))
	}
	fmt.Fprintln(w, "REGIME\tU_STD MEAN\tVARIATION")
	for _, p := range points {
		for _, ax := range parsed {
			fmt.Fprintf(w, "%s\t", p.Params[ax.Key])
		}
		if p.Err != nil {
			fmt.Fprintf(w, "failed\t-\t%v\n", p.Err)
			continue
		}
		fmt.Fprintf(w, "%s\t%.4g\t%.3g\n", p.Report.Regime, p.Report.Mean, p.Report.Std)
	}
	return w.Flush()
}
