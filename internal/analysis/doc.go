// Package analysis reduces a field solution to per-time spatial statistics
// and characterizes the long-time regime of a run.
//
//   - [Reduce]: mean, standard deviation, min and max of u and v per output time
//   - [Classify]: equilibrium regime from the trailing window of u_std
//   - [DominantPeriod]: rotation period estimate from a periodic series
//
// # Regime Detection
//
// The classifier looks only at the spatial standard deviation of u, which
// measures how much pattern is left:
//
//	table := analysis.Reduce(sol.Times, sol.U, sol.V)
//	report := analysis.Classify(table, analysis.DefaultThresholds())
//	if report.Regime == analysis.Homogeneous {
//	    // the spiral has decayed
//	}
package analysis
