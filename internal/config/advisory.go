package config

import (
	"fmt"
	"math"
	"strings"
)

// Advisory is a non-fatal remark about a configuration.
type Advisory string

// rk4StabilityLimit bounds h·|λ| on the negative real axis for classical RK4.
const rk4StabilityLimit = 2.785

// Advisories lists numerical concerns worth logging before a run. None of
// them prevent the run.
func (c *Config) Advisories() []Advisory {
	var out []Advisory
	add := func(format string, args ...any) {
		out = append(out, Advisory(fmt.Sprintf(format, args...)))
	}

	if c.N < RecommendedN {
		add("grid resolution n=%d is below the recommended minimum of %d", c.N, RecommendedN)
	}
	if c.N > 0 && c.N&(c.N-1) != 0 {
		add("n=%d is not a power of two; transforms will be slower", c.N)
	}

	if strings.EqualFold(c.Method, "RK4") && c.L > 0 {
		kmax := math.Pi * float64(c.N) / c.L
		stiff := math.Max(c.D1, c.D2) * 2 * kmax * kmax
		step := c.MaxStep
		if step <= 0 {
			step = c.Dt / 16
		}
		if stiff > 0 && step*stiff > rk4StabilityLimit {
			add("fixed step %.3g exceeds the diffusion stability limit %.3g for RK4", step, rk4StabilityLimit/stiff)
		}
	}

	if c.SaveCheckpoints && c.CheckpointInterval >= c.TEnd-c.TStart {
		add("checkpoint_interval %.3g covers the whole run; only one segment will be written", c.CheckpointInterval)
	}
	if c.Dt > 0 && c.TEnd > c.TStart {
		span := (c.TEnd - c.TStart) / c.Dt
		if math.Abs(span-math.Round(span)) > 1e-9*math.Max(1, span) {
			add("t_end - t_start is not a multiple of dt; the last output is at t=%.6g", c.TStart+math.Floor(span)*c.Dt)
		}
	}

	for _, key := range c.ignored {
		add("unknown parameter %q ignored", key)
	}
	return out
}
