package config

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ParseLegacy reads the line-oriented format
//
//	# comment
//	d1 = 0.1   # inline comment
//
// applying values over DefaultConfig. Unknown keys are skipped and reported
// through Ignored and Advisories.
func ParseLegacy(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	seen := make(map[string]bool)

	sc := bufio.NewScanner(r)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("%w: line %d: expected key = value, got %q", ErrInvalid, lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		known, err := cfg.set(key, value)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if !known {
			cfg.ignored = append(cfg.ignored, key)
			continue
		}
		seen[key] = true
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if err := checkRequired(func(key string) bool { return seen[key] }); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) set(key, value string) (bool, error) {
	var err error
	switch key {
	case "name":
		c.Name = value
	case "d1":
		c.D1, err = parseFloat(key, value)
	case "d2":
		c.D2, err = parseFloat(key, value)
	case "beta":
		c.Beta, err = parseFloat(key, value)
	case "L":
		c.L, err = parseFloat(key, value)
	case "n":
		c.N, err = parseInt(key, value)
	case "t_start":
		c.TStart, err = parseFloat(key, value)
	case "t_end":
		c.TEnd, err = parseFloat(key, value)
	case "dt":
		c.Dt, err = parseFloat(key, value)
	case "method":
		c.Method = value
	case "rtol":
		c.RelTol, err = parseFloat(key, value)
	case "atol":
		c.AbsTol, err = parseFloat(key, value)
	case "max_step":
		c.MaxStep, err = parseFloat(key, value)
	case "first_step":
		c.FirstStep, err = parseFloat(key, value)
	case "num_spiral_arms":
		c.Arms, err = parseInt(key, value)
	case "noise_amplitude":
		c.NoiseAmplitude, err = parseFloat(key, value)
	case "seed":
		var s int
		s, err = parseInt(key, value)
		c.Seed = int64(s)
	case "parallel_rhs":
		c.ParallelRHS = parseBool(value)
	case "check_equilibrium":
		c.CheckEquilibrium = parseBool(value)
	case "threshold_homogeneous":
		c.Thresholds.Homogeneous, err = parseFloat(key, value)
	case "threshold_static":
		c.Thresholds.Static, err = parseFloat(key, value)
	case "threshold_dynamic":
		c.Thresholds.Dynamic, err = parseFloat(key, value)
	case "threshold_quasi_periodic":
		c.Thresholds.Quasi, err = parseFloat(key, value)
	case "save_checkpoints":
		c.SaveCheckpoints = parseBool(value)
	case "checkpoint_interval":
		c.CheckpointInterval, err = parseFloat(key, value)
	case "save_fields", "save_netcdf":
		c.SaveFields = parseBool(value)
	case "save_snapshot":
		c.SaveSnapshot = parseBool(value)
	case "output_dir":
		c.OutputDir = value
	case "log_dir":
		c.LogDir = value
	default:
		return false, nil
	}
	return true, err
}

// Set assigns one parameter by its key, with the same parsing as
// ParseLegacy. It does not validate the result.
func (c *Config) Set(key, value string) error {
	ok, err := c.set(key, value)
	if err != nil {
		return err
	}
	if !ok {
		return &ValidationError{Field: key, Reason: "unknown parameter"}
	}
	return nil
}

func parseFloat(key, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, &ValidationError{Field: key, Reason: fmt.Sprintf("must be a number, got %q", value)}
	}
	return f, nil
}

func parseInt(key, value string) (int, error) {
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, &ValidationError{Field: key, Reason: fmt.Sprintf("must be an integer, got %q", value)}
	}
	return i, nil
}

func parseBool(value string) bool {
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// Params returns every parameter as its legacy key and formatted value.
func (c *Config) Params() map[string]string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return map[string]string{
		"name":                     c.Name,
		"d1":                       f(c.D1),
		"d2":                       f(c.D2),
		"beta":                     f(c.Beta),
		"L":                        f(c.L),
		"n":                        strconv.Itoa(c.N),
		"t_start":                  f(c.TStart),
		"t_end":                    f(c.TEnd),
		"dt":                       f(c.Dt),
		"method":                   c.Method,
		"rtol":                     f(c.RelTol),
		"atol":                     f(c.AbsTol),
		"max_step":                 f(c.MaxStep),
		"first_step":               f(c.FirstStep),
		"num_spiral_arms":          strconv.Itoa(c.Arms),
		"noise_amplitude":          f(c.NoiseAmplitude),
		"seed":                     strconv.FormatInt(c.Seed, 10),
		"parallel_rhs":             strconv.FormatBool(c.ParallelRHS),
		"check_equilibrium":        strconv.FormatBool(c.CheckEquilibrium),
		"threshold_homogeneous":    f(c.Thresholds.Homogeneous),
		"threshold_static":         f(c.Thresholds.Static),
		"threshold_dynamic":        f(c.Thresholds.Dynamic),
		"threshold_quasi_periodic": f(c.Thresholds.Quasi),
		"save_checkpoints":         strconv.FormatBool(c.SaveCheckpoints),
		"checkpoint_interval":      f(c.CheckpointInterval),
		"save_fields":              strconv.FormatBool(c.SaveFields),
		"save_snapshot":            strconv.FormatBool(c.SaveSnapshot),
		"output_dir":               c.OutputDir,
		"log_dir":                  c.LogDir,
	}
}

// WriteLegacy writes the parameters as sorted key = value lines, preceded
// by a comment header when header is non-empty. The output parses back
// with ParseLegacy.
func (c *Config) WriteLegacy(w io.Writer, header string) error {
	bw := bufio.NewWriter(w)
	if header != "" {
		for _, line := range strings.Split(header, "\n") {
			fmt.Fprintf(bw, "# %s\n", line)
		}
		fmt.Fprintf(bw, "# written %s\n\n", time.Now().Format(time.RFC3339))
	}

	params := c.Params()
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(bw, "%s = %s\n", k, params[k])
	}
	return bw.Flush()
}
