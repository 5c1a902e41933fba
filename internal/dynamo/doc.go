// Package dynamo provides the shared primitives of the spiral-wave solver.
//
// The package defines the types every numerical stage agrees on:
//
//   - [State]: transform-space field vector [u_hat | v_hat]
//   - [System]: interface for dX/dt = f(t, X) evaluated in place
//   - [Stepper]: time-integration scheme reporting requested output times
//   - [Options], [Stats], [Trajectory]: integration controls and results
//   - [Progress], [ProgressSink]: observational progress reporting
//
// # Example
//
//	grid := spectral.NewGrid(20, 128)
//	rhs := physics.NewRHS(grid, physics.Kinetics{D1: 0.1, D2: 0.1, Beta: 1})
//	stepper, _ := integrators.New("RK45")
//	traj, err := stepper.Integrate(ctx, rhs, x0, 0, 10, outputs, dynamo.DefaultOptions())
//
// # Thread Safety
//
// Systems carry scratch buffers and are NOT safe for concurrent use. Each
// run owns its own System and Stepper.
package dynamo
