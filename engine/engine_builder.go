package engine

import (
	"time"

	"github.com/hydrosim/hydro-go/engine/profiler"
	"github.com/hydrosim/hydro-go/engine/simulation"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithTickRate sets the simulation tick rate in steps per second.
// The simulator is stepped at this rate.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target steps per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Second / time.Duration(fps)
	}
}

// WithSimulator sets a pre-configured simulator for the engine to drive.
//
// Parameters:
//   - sim: a pre-configured Simulator instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithSimulator(sim simulation.Simulator) EngineBuilderOption {
	return func(e *engine) {
		e.simulator = sim
	}
}

// WithStageProfiler attaches a stage profiler whose summary is logged on shutdown
// when profiling is enabled. Pass the same profiler to the simulator via
// simulation.WithStageTimer to collect per-stage dispatch timings.
//
// Parameters:
//   - sp: the stage profiler to attach
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithStageProfiler(sp *profiler.StageProfiler) EngineBuilderOption {
	return func(e *engine) {
		e.stageProfiler = sp
	}
}
