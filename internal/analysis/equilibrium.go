package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

type Regime int

const (
	NonEquilibrium Regime = iota
	Homogeneous
	StaticEquilibrium
	DynamicEquilibrium
	QuasiPeriodic
)

func (r Regime) String() string {
	switch r {
	case Homogeneous:
		return "homogeneous"
	case StaticEquilibrium:
		return "static_equilibrium"
	case DynamicEquilibrium:
		return "dynamic_equilibrium"
	case QuasiPeriodic:
		return "quasi_periodic"
	case NonEquilibrium:
		return "non_equilibrium"
	}
	return fmt.Sprintf("Regime(%d)", int(r))
}

// ParseRegime is the inverse of String.
func ParseRegime(s string) (Regime, error) {
	for _, r := range []Regime{Homogeneous, StaticEquilibrium, DynamicEquilibrium, QuasiPeriodic, NonEquilibrium} {
		if r.String() == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("analysis: unknown regime %q", s)
}

// Description is a one-line human reading of the regime.
func (r Regime) Description() string {
	switch r {
	case Homogeneous:
		return "pattern decayed to a near-uniform state"
	case StaticEquilibrium:
		return "pattern frozen in place"
	case DynamicEquilibrium:
		return "steady rotation with constant amplitude"
	case QuasiPeriodic:
		return "slowly modulated rotation"
	default:
		return "chaotic or still evolving"
	}
}

// Thresholds are empirical cutoffs for this kinetics; none is derived.
type Thresholds struct {
	Homogeneous float64 `yaml:"homogeneous" json:"homogeneous"`
	Static      float64 `yaml:"static" json:"static"`
	Dynamic     float64 `yaml:"dynamic" json:"dynamic"`
	Quasi       float64 `yaml:"quasi_periodic" json:"quasi_periodic"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Homogeneous: 0.01,
		Static:      1e-4,
		Dynamic:     1e-3,
		Quasi:       1e-2,
	}
}

type Report struct {
	Regime Regime  `json:"regime"`
	Window int     `json:"window"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
}

func (r Report) String() string {
	return fmt.Sprintf("%s (last %d rows: u_std mean %.6f, variation %.6f)", r.Regime, r.Window, r.Mean, r.Std)
}

// WindowSize is max(⌈0.1·rows⌉, 10), never more than rows.
func WindowSize(rows int) int {
	n := int(math.Ceil(0.1 * float64(rows)))
	if n < 10 {
		n = 10
	}
	if n > rows {
		n = rows
	}
	return n
}

// Classify inspects the trailing window of u_std. The mean check comes
// first, so a decayed pattern is Homogeneous however much it fluctuates.
// The window std is the sample (n-1) deviation.
func Classify(table Table, thr Thresholds) Report {
	n := WindowSize(len(table))
	if n == 0 {
		return Report{Regime: NonEquilibrium}
	}

	window := make([]float64, n)
	for i, row := range table[len(table)-n:] {
		window[i] = row.UStd
	}

	mean, std := stat.MeanStdDev(window, nil)
	if n < 2 {
		std = 0
	}

	rep := Report{Window: n, Mean: mean, Std: std}
	switch {
	case mean < thr.Homogeneous:
		rep.Regime = Homogeneous
	case std < thr.Static:
		rep.Regime = StaticEquilibrium
	case std < thr.Dynamic:
		rep.Regime = DynamicEquilibrium
	case std < thr.Quasi:
		rep.Regime = QuasiPeriodic
	default:
		rep.Regime = NonEquilibrium
	}
	return rep
}
