package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/spiralsim/internal/analysis"
	"github.com/san-kum/spiralsim/internal/dynamo"
	"github.com/san-kum/spiralsim/internal/sim"
	"github.com/san-kum/spiralsim/internal/spectral"
)

const (
	StatsFile    = "stats.csv"
	ConfigFile   = "config.txt"
	FieldsFile   = "solution.bin.gz"
	SnapshotFile = "snapshot.png"
	MetaFile     = "metadata.json"
)

// Store lays out one directory per run name under baseDir.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunDir returns the directory of a run, creating it if needed.
func (s *Store) RunDir(name string) (string, error) {
	dir := filepath.Join(s.baseDir, name)
	return dir, os.MkdirAll(dir, 0755)
}

type RunMetadata struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Timestamp   time.Time         `json:"timestamp"`
	WallSeconds float64           `json:"wall_seconds"`
	Outputs     int               `json:"outputs"`
	Partial     bool              `json:"partial,omitempty"`
	Regime      string            `json:"regime,omitempty"`
	Window      int               `json:"window,omitempty"`
	WindowMean  float64           `json:"window_mean,omitempty"`
	WindowStd   float64           `json:"window_std,omitempty"`
	Stats       dynamo.Stats      `json:"stats"`
	Params      map[string]string `json:"params"`
	Advisories  []string          `json:"advisories,omitempty"`
	Files       map[string]int64  `json:"files"`
}

// TotalBytes is the summed size of the run's files.
func (m *RunMetadata) TotalBytes() uint64 {
	var n uint64
	for _, size := range m.Files {
		n += uint64(size)
	}
	return n
}

// Persist writes every artifact of out into the run directory named after
// the config. It satisfies sim.ResultSink.
// removeStale deletes an output an earlier run of the same name wrote but
// this run does not produce.
func removeStale(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *Store) Persist(ctx context.Context, out *sim.Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := out.Config
	dir, err := s.RunDir(cfg.Name)
	if err != nil {
		return err
	}

	meta := RunMetadata{
		ID:          uuid.New().String(),
		Name:        cfg.Name,
		Timestamp:   out.Started,
		WallSeconds: out.Elapsed.Seconds(),
		Outputs:     out.Solution.Len(),
		Partial:     out.Partial,
		Stats:       out.Solution.Stats,
		Params:      cfg.Params(),
		Files:       make(map[string]int64),
	}
	for _, adv := range out.Advisories {
		meta.Advisories = append(meta.Advisories, string(adv))
	}
	if out.Report != nil {
		meta.Regime = out.Report.Regime.String()
		meta.Window = out.Report.Window
		meta.WindowMean = out.Report.Mean
		meta.WindowStd = out.Report.Std
	}

	if err := writeStats(filepath.Join(dir, StatsFile), out.Table); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}

	cfgFile, err := os.Create(filepath.Join(dir, ConfigFile))
	if err != nil {
		return err
	}
	err = cfg.WriteLegacy(cfgFile, "Simulation parameters for "+cfg.Name)
	if cerr := cfgFile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fieldsPath := filepath.Join(dir, FieldsFile)
	if cfg.SaveFields {
		hdr := FieldHeader{
			RunID:   meta.ID,
			Created: meta.Timestamp,
			D1:      cfg.D1,
			D2:      cfg.D2,
			Beta:    cfg.Beta,
			L:       cfg.L,
			N:       cfg.N,
			Method:  cfg.Method,
			RelTol:  cfg.RelTol,
			AbsTol:  cfg.AbsTol,
			Times:   out.Solution.Times,
		}
		if err := WriteFieldsFile(fieldsPath, hdr, out.Solution.U, out.Solution.V); err != nil {
			return fmt.Errorf("write fields: %w", err)
		}
	} else if err := removeStale(fieldsPath); err != nil {
		return err
	}

	snapshotPath := filepath.Join(dir, SnapshotFile)
	if cfg.SaveSnapshot && out.Solution.Len() > 0 {
		k := out.Solution.Len() - 1
		grid := spectral.NewGrid(cfg.L, cfg.N)
		title := fmt.Sprintf("%s: u at t = %.2f", cfg.Name, out.Solution.Times[k])
		if err := WriteSnapshot(snapshotPath, grid, out.Solution.U[k], title); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	} else if err := removeStale(snapshotPath); err != nil {
		return err
	}

	for _, name := range []string{StatsFile, ConfigFile, FieldsFile, SnapshotFile} {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil {
			meta.Files[name] = info.Size()
		}
	}

	return writeJSON(filepath.Join(dir, MetaFile), meta)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeStats(path string, table analysis.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(analysis.Columns); err != nil {
		return err
	}

	record := make([]string, len(analysis.Columns))
	for _, row := range table {
		for i, v := range row.Values() {
			record[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// List returns the metadata of every run, newest first. Directories
// without readable metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(name string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, name, MetaFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadStats reads a run's statistics table.
func (s *Store) LoadStats(name string) (analysis.Table, error) {
	f, err := os.Open(filepath.Join(s.baseDir, name, StatsFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("%s: empty stats file", name)
	}

	table := make(analysis.Table, 0, len(records)-1)
	values := make([]float64, len(analysis.Columns))
	for i, record := range records[1:] {
		if len(record) != len(values) {
			return nil, fmt.Errorf("%s: row %d has %d columns", name, i+1, len(record))
		}
		for j, field := range record {
			values[j], err = strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: row %d: %w", name, i+1, err)
			}
		}
		row, err := analysis.RowFromValues(values)
		if err != nil {
			return nil, err
		}
		table = append(table, row)
	}
	return table, nil
}

// LoadFields reads a run's field archive.
func (s *Store) LoadFields(name string) (*FieldHeader, [][]float64, [][]float64, error) {
	return ReadFieldsFile(filepath.Join(s.baseDir, name, FieldsFile))
}
