package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const legacySample = `# Diffusion coefficients
d1 = 0.1
d2 = 0.05   # slower inhibitor

beta = 1.2
L = 20.0    # Domain size
n = 128     # Grid points
t_start = 0
t_end = 100
dt = 0.1
num_spiral_arms = 2
save_netcdf = no
colormap = viridis
`

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Method != "RK45" {
		t.Errorf("expected method RK45, got %s", cfg.Method)
	}
	if cfg.RelTol != 1e-6 || cfg.AbsTol != 1e-9 {
		t.Errorf("tolerances %g/%g", cfg.RelTol, cfg.AbsTol)
	}
	if cfg.Arms != 1 || !cfg.CheckEquilibrium || cfg.SaveCheckpoints || cfg.CheckpointInterval != 50 {
		t.Errorf("unexpected optional defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestParseLegacy(t *testing.T) {
	cfg, err := ParseLegacy(strings.NewReader(legacySample))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.D1 != 0.1 || cfg.D2 != 0.05 || cfg.Beta != 1.2 {
		t.Errorf("kinetics = %g %g %g", cfg.D1, cfg.D2, cfg.Beta)
	}
	if cfg.L != 20 || cfg.N != 128 || cfg.TEnd != 100 || cfg.Dt != 0.1 {
		t.Errorf("domain/time = %g %d %g %g", cfg.L, cfg.N, cfg.TEnd, cfg.Dt)
	}
	if cfg.Arms != 2 {
		t.Errorf("arms = %d", cfg.Arms)
	}
	if cfg.SaveFields {
		t.Error("save_netcdf = no should disable field output")
	}
	if cfg.Method != DefaultMethod || cfg.RelTol != DefaultRelTol {
		t.Error("defaults not applied to missing optional keys")
	}
	if got := cfg.Ignored(); len(got) != 1 || got[0] != "colormap" {
		t.Errorf("ignored = %v", got)
	}
}

func TestParseLegacy_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing required", "d1 = 0.1\nd2 = 0.1\n"},
		{"bad number", strings.Replace(legacySample, "beta = 1.2", "beta = strong", 1)},
		{"bad integer", strings.Replace(legacySample, "n = 128", "n = 12.5", 1)},
		{"no equals", legacySample + "just words\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLegacy(strings.NewReader(tt.input))
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("got %v, want ErrInvalid", err)
			}
		})
	}
}

func TestParseLegacy_MissingListsKeys(t *testing.T) {
	_, err := ParseLegacy(strings.NewReader("d1 = 0.1\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, key := range []string{"d2", "beta", "t_end", "dt"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not name %s", err, key)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"coarse grid", func(c *Config) { c.N = 8 }, "n"},
		{"zero domain", func(c *Config) { c.L = 0 }, "L"},
		{"zero dt", func(c *Config) { c.Dt = 0 }, "dt"},
		{"reversed span", func(c *Config) { c.TEnd = c.TStart }, "t_end"},
		{"negative diffusion", func(c *Config) { c.D2 = -1 }, "d2"},
		{"zero rtol", func(c *Config) { c.RelTol = 0 }, "rtol"},
		{"no arms", func(c *Config) { c.Arms = 0 }, "num_spiral_arms"},
		{"zero interval", func(c *Config) { c.SaveCheckpoints = true; c.CheckpointInterval = 0 }, "checkpoint_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("got %v, want ErrInvalid", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("got %v, want field %s", err, tt.field)
			}
		})
	}
}

func TestValidate_ReportsAll(t *testing.T) {
	cfg := DefaultConfig()
	cfg.N = 4
	cfg.Dt = -1

	err := cfg.Validate()
	if !strings.Contains(err.Error(), "n must") || !strings.Contains(err.Error(), "dt must") {
		t.Errorf("expected both fields in %q", err)
	}
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wide.yaml")
	data := `d1: 0.2
d2: 0.2
beta: 0.9
L: 40
n: 64
t_start: 0
t_end: 50
dt: 0.25
method: rk23
parallel_rhs: true
thresholds:
  homogeneous: 0.02
  static: 0.0001
  dynamic: 0.001
  quasi_periodic: 0.01
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "wide" {
		t.Errorf("name = %q, want file base name", cfg.Name)
	}
	if cfg.L != 40 || cfg.N != 64 || cfg.Method != "rk23" {
		t.Errorf("loaded %+v", cfg)
	}
	if cfg.Thresholds.Homogeneous != 0.02 {
		t.Errorf("thresholds = %+v", cfg.Thresholds)
	}
	if !cfg.ParallelRHS {
		t.Error("parallel_rhs not loaded")
	}
	if cfg.AbsTol != DefaultAbsTol || !cfg.CheckEquilibrium {
		t.Error("defaults not kept for keys absent from the file")
	}
}

func TestLoad_YAMLMissingRequired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yml")
	if err := os.WriteFile(path, []byte("d1: 0.1\nn: 64\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrInvalid) {
		t.Errorf("got %v, want ErrInvalid", err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.txt")
	data := strings.Replace(legacySample, "n = 128", "n = 8", 1)
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrInvalid) {
		t.Errorf("got %v, want ErrInvalid", err)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	for _, name := range []string{"run.yaml", "run.txt"} {
		t.Run(name, func(t *testing.T) {
			cfg := GetPreset("triple_spiral")
			cfg.Seed = 7
			cfg.NoiseAmplitude = 0.01
			cfg.Thresholds.Quasi = 0.02

			path := filepath.Join(t.TempDir(), name)
			if err := Save(path, cfg); err != nil {
				t.Fatal(err)
			}
			got, err := Load(path)
			if err != nil {
				t.Fatal(err)
			}
			if got.Name != cfg.Name || got.Arms != 3 || got.Seed != 7 || got.NoiseAmplitude != 0.01 || got.Thresholds != cfg.Thresholds {
				t.Errorf("round trip lost data: %+v", got)
			}
		})
	}
}

func TestWriteLegacy_Header(t *testing.T) {
	var sb strings.Builder
	if err := DefaultConfig().WriteLegacy(&sb, "Simulation parameters"); err != nil {
		t.Fatal(err)
	}
	out := sb.String()
	if !strings.HasPrefix(out, "# Simulation parameters\n# written ") {
		t.Errorf("unexpected header:\n%s", out)
	}
	if !strings.Contains(out, "\nd1 = 0.1\n") || !strings.Contains(out, "\nn = 128\n") {
		t.Errorf("missing parameters:\n%s", out)
	}
}

func TestAdvisories(t *testing.T) {
	cfg := DefaultConfig()
	if adv := cfg.Advisories(); len(adv) != 0 {
		t.Errorf("default config advisories: %v", adv)
	}

	cfg.N = 48
	adv := cfg.Advisories()
	if len(adv) != 2 {
		t.Fatalf("n=48 advisories = %v, want resolution and power-of-two", adv)
	}

	cfg = DefaultConfig()
	cfg.Method = "RK4"
	cfg.MaxStep = 1
	found := false
	for _, a := range cfg.Advisories() {
		if strings.Contains(string(a), "stability") {
			found = true
		}
	}
	if !found {
		t.Error("expected stability advisory for a large RK4 step")
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("triple_spiral")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Arms != 3 {
		t.Errorf("expected 3 arms, got %d", cfg.Arms)
	}
	if cfg.Method != DefaultMethod || cfg.Thresholds.Static != 1e-4 {
		t.Error("preset missing defaults")
	}

	cfg.Arms = 9
	if GetPreset("triple_spiral").Arms != 3 {
		t.Error("GetPreset returned shared state")
	}

	for _, name := range ListPresets() {
		if err := GetPreset(name).Validate(); err != nil {
			t.Errorf("preset %s invalid: %v", name, err)
		}
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets()
	if len(presets) != len(Presets) {
		t.Errorf("got %d presets", len(presets))
	}
	if presets[0] != "quick" {
		t.Errorf("presets not sorted: %v", presets)
	}
}

func TestSet(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Set("beta", "1.25"); err != nil {
		t.Fatal(err)
	}
	if cfg.Beta != 1.25 {
		t.Errorf("Beta = %v, want 1.25", cfg.Beta)
	}
	if cfg.ParallelRHS {
		t.Error("parallel RHS enabled by default")
	}
	if err := cfg.Set("parallel_rhs", "true"); err != nil || !cfg.ParallelRHS {
		t.Errorf("parallel_rhs: err=%v ParallelRHS=%v", err, cfg.ParallelRHS)
	}
	if cfg.Params()["parallel_rhs"] != "true" {
		t.Errorf("Params()[parallel_rhs] = %q", cfg.Params()["parallel_rhs"])
	}
	if err := cfg.Set("save_netcdf", "no"); err != nil || cfg.SaveFields {
		t.Errorf("save_netcdf alias: err=%v SaveFields=%v", err, cfg.SaveFields)
	}

	for _, tc := range []struct{ key, value string }{{"n", "many"}, {"colour", "red"}} {
		var verr *ValidationError
		if err := cfg.Set(tc.key, tc.value); !errors.As(err, &verr) || verr.Field != tc.key {
			t.Errorf("Set(%q, %q) = %v, want ValidationError on %s", tc.key, tc.value, err, tc.key)
		}
	}
}
