package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/spiralsim/internal/analysis"
)

const (
	DefaultMethod             = "RK45"
	DefaultRelTol             = 1e-6
	DefaultAbsTol             = 1e-9
	DefaultArms               = 1
	DefaultCheckpointInterval = 50.0
	DefaultOutputDir          = "rd_outputs"
	DefaultLogDir             = "rd_logs"

	// MinN is the smallest accepted resolution; RecommendedN is where the
	// spiral core is adequately resolved.
	MinN         = 16
	RecommendedN = 64
)

// Required lists the keys a config file must set explicitly.
var Required = []string{"d1", "d2", "beta", "L", "n", "t_start", "t_end", "dt"}

type Config struct {
	Name string `yaml:"name"`

	D1   float64 `yaml:"d1"`
	D2   float64 `yaml:"d2"`
	Beta float64 `yaml:"beta"`

	L float64 `yaml:"L"`
	N int     `yaml:"n"`

	TStart float64 `yaml:"t_start"`
	TEnd   float64 `yaml:"t_end"`
	Dt     float64 `yaml:"dt"`

	Method    string  `yaml:"method"`
	RelTol    float64 `yaml:"rtol"`
	AbsTol    float64 `yaml:"atol"`
	MaxStep   float64 `yaml:"max_step,omitempty"`
	FirstStep float64 `yaml:"first_step,omitempty"`

	Arms           int     `yaml:"num_spiral_arms"`
	NoiseAmplitude float64 `yaml:"noise_amplitude,omitempty"`
	Seed           int64   `yaml:"seed,omitempty"`

	// ParallelRHS spreads the pointwise work of each right-hand-side
	// evaluation over all CPUs. Off by default.
	ParallelRHS bool `yaml:"parallel_rhs,omitempty"`

	CheckEquilibrium   bool                `yaml:"check_equilibrium"`
	Thresholds         analysis.Thresholds `yaml:"thresholds"`
	SaveCheckpoints    bool                `yaml:"save_checkpoints"`
	CheckpointInterval float64             `yaml:"checkpoint_interval"`

	SaveFields   bool   `yaml:"save_fields"`
	SaveSnapshot bool   `yaml:"save_snapshot"`
	OutputDir    string `yaml:"output_dir"`
	LogDir       string `yaml:"log_dir"`

	ignored []string
}

// DefaultConfig is the stable single-arm spiral with every optional
// parameter at its default.
func DefaultConfig() *Config {
	return &Config{
		Name:               "rd_simulation",
		D1:                 0.1,
		D2:                 0.1,
		Beta:               1.0,
		L:                  20,
		N:                  128,
		TStart:             0,
		TEnd:               200,
		Dt:                 0.5,
		Method:             DefaultMethod,
		RelTol:             DefaultRelTol,
		AbsTol:             DefaultAbsTol,
		Arms:               DefaultArms,
		CheckEquilibrium:   true,
		Thresholds:         analysis.DefaultThresholds(),
		CheckpointInterval: DefaultCheckpointInterval,
		SaveFields:         true,
		SaveSnapshot:       true,
		OutputDir:          DefaultOutputDir,
		LogDir:             DefaultLogDir,
	}
}

// Load reads a YAML file (.yaml, .yml) or a legacy key = value file (any
// other extension). Values not present in the file keep their defaults,
// the keys in Required must be present, and the result is validated. The
// run name defaults to the file's base name.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = parseYAML(data)
	default:
		cfg, err = ParseLegacy(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if cfg.Name == "" || cfg.Name == DefaultConfig().Name {
		cfg.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func parseYAML(data []byte) (*Config, error) {
	var present map[string]any
	if err := yaml.Unmarshal(data, &present); err != nil {
		return nil, err
	}
	if err := checkRequired(func(key string) bool { _, ok := present[key]; return ok }); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func checkRequired(has func(string) bool) error {
	var missing []string
	for _, key := range Required {
		if !has(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required parameters: %s", ErrInvalid, strings.Join(missing, ", "))
	}
	return nil
}

// Save writes YAML, or the legacy format when path ends in .txt or .cfg.
func Save(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".cfg":
		var buf bytes.Buffer
		if err := cfg.WriteLegacy(&buf, ""); err != nil {
			return err
		}
		return os.WriteFile(path, buf.Bytes(), 0644)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Ignored returns the unrecognised keys skipped while parsing.
func (c *Config) Ignored() []string {
	return c.ignored
}

var ErrInvalid = errors.New("config: invalid configuration")

// ValidationError names one out-of-range parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

// Validate reports every out-of-range parameter at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, field, reason string, args ...any) {
		if !ok {
			errs = append(errs, &ValidationError{Field: field, Reason: fmt.Sprintf(reason, args...)})
		}
	}

	check(c.N >= MinN, "n", "must be at least %d, got %d", MinN, c.N)
	check(c.L > 0, "L", "must be positive, got %g", c.L)
	check(c.Dt > 0, "dt", "must be positive, got %g", c.Dt)
	check(c.TEnd > c.TStart, "t_end", "must be greater than t_start (%g <= %g)", c.TEnd, c.TStart)
	check(c.D1 >= 0, "d1", "must be non-negative, got %g", c.D1)
	check(c.D2 >= 0, "d2", "must be non-negative, got %g", c.D2)
	check(c.RelTol > 0, "rtol", "must be positive, got %g", c.RelTol)
	check(c.AbsTol > 0, "atol", "must be positive, got %g", c.AbsTol)
	check(c.Arms >= 1, "num_spiral_arms", "must be at least 1, got %d", c.Arms)
	check(c.MaxStep >= 0, "max_step", "must be non-negative, got %g", c.MaxStep)
	check(c.FirstStep >= 0, "first_step", "must be non-negative, got %g", c.FirstStep)
	check(c.NoiseAmplitude >= 0, "noise_amplitude", "must be non-negative, got %g", c.NoiseAmplitude)
	check(!c.SaveCheckpoints || c.CheckpointInterval > 0, "checkpoint_interval", "must be positive when checkpoints are enabled, got %g", c.CheckpointInterval)
	check(strings.TrimSpace(c.Method) != "", "method", "must not be empty")
	check(c.Thresholds.Homogeneous >= 0 && c.Thresholds.Static >= 0 && c.Thresholds.Dynamic >= 0 && c.Thresholds.Quasi >= 0,
		"thresholds", "must be non-negative")

	return errors.Join(errs...)
}
