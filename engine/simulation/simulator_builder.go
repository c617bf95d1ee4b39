package simulation

import "github.com/hydrosim/hydro-go/engine/profiler"

// SimulatorOption is a functional option for configuring a Simulator.
// Use the With* functions to create options that are applied directly to the simulator instance.
type SimulatorOption func(*simulator, *uint32)

// WithParticleCapacity sets the particle buffer capacity of both stores.
// Values of 0 fall back to particle.DefaultCapacity.
//
// Parameters:
//   - capacity: particle count the buffers are sized for
//
// Returns:
//   - SimulatorOption: option function to apply
func WithParticleCapacity(capacity uint32) SimulatorOption {
	return func(_ *simulator, storeCapacity *uint32) {
		if capacity > 0 {
			*storeCapacity = capacity
		}
	}
}

// WithStageTimer attaches a per-stage timer that records every dispatch
// duration, for profiling summaries.
//
// Parameters:
//   - timer: the stage timer to record into
//
// Returns:
//   - SimulatorOption: option function to apply
func WithStageTimer(timer profiler.StageTimer) SimulatorOption {
	return func(s *simulator, _ *uint32) {
		s.prof = timer
	}
}
