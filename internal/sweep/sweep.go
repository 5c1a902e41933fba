// Package sweep runs a base configuration over the Cartesian product of
// parameter values and collects the regime of every point.
package sweep

import (
	"context"
	"fmt"
	"strings"

	"github.com/san-kum/spiralsim/internal/analysis"
	"github.com/san-kum/spiralsim/internal/config"
	"github.com/san-kum/spiralsim/internal/sim"
)

// Axis is one swept parameter, named by its config key.
type Axis struct {
	Key    string
	Values []string
}

// ParseAxis reads "key=v1,v2,...".
func ParseAxis(spec string) (Axis, error) {
	key, list, ok := strings.Cut(spec, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return Axis{}, fmt.Errorf("sweep: %q is not key=v1,v2,...", spec)
	}

	var values []string
	for _, v := range strings.Split(list, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return Axis{}, fmt.Errorf("sweep: no values for %s", key)
	}
	return Axis{Key: key, Values: values}, nil
}

type Sweep struct {
	base *config.Config
	axes []Axis
}

func New(base *config.Config, axes []Axis) *Sweep {
	return &Sweep{base: base, axes: axes}
}

// Point is one combination of axis values and what its run produced.
type Point struct {
	Params map[string]string
	Config *config.Config
	Report *analysis.Report
	Err    error
}

// Points expands the axes into one validated config per combination, in
// row-major order over the axes. Each config is named after its values.
func (s *Sweep) Points() ([]Point, error) {
	var points []Point
	if err := s.expand(0, map[string]string{}, &points); err != nil {
		return nil, err
	}
	return points, nil
}

func (s *Sweep) expand(depth int, current map[string]string, points *[]Point) error {
	if depth == len(s.axes) {
		cfg := *s.base
		name := []string{s.base.Name}
		for _, ax := range s.axes {
			if err := cfg.Set(ax.Key, current[ax.Key]); err != nil {
				return err
			}
			name = append(name, ax.Key+"-"+current[ax.Key])
		}
		cfg.Name = strings.Join(name, "_")
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("sweep point %s: %w", cfg.Name, err)
		}

		params := make(map[string]string, len(current))
		for k, v := range current {
			params[k] = v
		}
		*points = append(*points, Point{Params: params, Config: &cfg})
		return nil
	}

	ax := s.axes[depth]
	for _, val := range ax.Values {
		current[ax.Key] = val
		if err := s.expand(depth+1, current, points); err != nil {
			return err
		}
	}
	delete(current, ax.Key)
	return nil
}

// Run executes every point concurrently. Equilibrium checking is forced on
// so every successful point carries a Report; per-point failures are left
// in Point.Err.
func (s *Sweep) Run(ctx context.Context, opts sim.RunOptions) ([]Point, error) {
	points, err := s.Points()
	if err != nil {
		return nil, err
	}

	configs := make([]*config.Config, len(points))
	for i := range points {
		points[i].Config.CheckEquilibrium = true
		configs[i] = points[i].Config
	}

	for i, res := range sim.NewEnsemble(configs, opts).Run(ctx) {
		points[i].Err = res.Err
		if res.Outcome != nil {
			points[i].Report = res.Outcome.Report
		}
	}
	return points, nil
}
