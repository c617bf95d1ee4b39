package engine

import (
	"log"
	"sync"
	"time"

	"github.com/hydrosim/hydro-go/engine/profiler"
	"github.com/hydrosim/hydro-go/engine/simulation"
)

// engine implements the Engine interface.
// Coordinates the simulation tick loop and profiling.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	simulator simulation.Simulator

	profiler         *profiler.Profiler
	stageProfiler    *profiler.StageProfiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	stepCallback   func(frame uint64, deltaTime float32)

	stepError func(err error)
}

// Engine is the main entry point for the solver runtime.
// It orchestrates the fixed-rate simulation loop and profiling output.
type Engine interface {
	// Simulator returns the underlying simulator, or nil if none was configured.
	//
	// Returns:
	//   - simulation.Simulator: the simulator instance
	Simulator() simulation.Simulator

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the simulation tick rate in steps per second.
	// The simulator is stepped at this rate.
	//
	// Parameters:
	//   - fps: target steps per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers a function called before each simulation step.
	// Use this for spawning particles and adjusting parameters.
	//
	// Parameters:
	//   - callback: function to call each tick, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetStepCallback registers a function called after each completed simulation step.
	// Use this for reading back results or streaming them elsewhere.
	//
	// Parameters:
	//   - callback: function to call after each step, receiving the frame counter and delta time
	SetStepCallback(callback func(frame uint64, deltaTime float32))

	// SetStepErrorHandler registers a function called when a simulation step fails.
	// When no handler is set, a step error is logged and the engine quits.
	//
	// Parameters:
	//   - handler: function receiving the step error
	SetStepErrorHandler(handler func(err error))

	// Run starts the simulation loop and blocks until Quit is called.
	Run()

	// Quit signals all engine goroutines to stop and shuts down the engine.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
// Initializes the quit channel and profiler with sensible defaults.
// Options are applied directly to the engine struct via the option-builder pattern.
//
// Parameters:
//   - options: functional options for engine configuration (simulator, profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel:  make(chan time.Duration, 1),
		quitChannel:      make(chan struct{}),
		running:          false,
		wg:               sync.WaitGroup{},
		profiler:         profiler.NewProfiler(),
		profilingEnabled: false,
		engineTickRate:   time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}

	return e
}

func (e *engine) Simulator() simulation.Simulator {
	return e.simulator
}

func (e *engine) Run() {
	e.running = true
	e.handle()
	e.wg.Wait()
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running = false
		close(e.quitChannel)
	})
}

// handle launches the simulation and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleSimulation()
	go e.handleQuit()
}

// handleSimulation runs the fixed-rate simulation loop in its own goroutine.
// Steps the simulator at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleSimulation() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("simulation goroutine recovered from panic: %v", r)
			e.signalQuit()
		}
	}()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}

			if e.simulator != nil {
				if err := e.simulator.Step(dt); err != nil {
					if e.stepError != nil {
						e.stepError(err)
					} else {
						log.Printf("[Engine] step failed: %v", err)
						e.signalQuit()
						return
					}
				} else if e.stepCallback != nil {
					e.stepCallback(uint64(e.simulator.Frame()), dt)
				}
			}

			if e.profilingEnabled && e.profiler != nil {
				e.profiler.Tick()
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleQuit blocks until the quit channel is closed, then decrements the WaitGroup.
func (e *engine) handleQuit() {
	defer e.wg.Done()
	<-e.quitChannel
	if e.profilingEnabled && e.stageProfiler != nil {
		e.stageProfiler.LogSummary()
	}
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the simulation tick rate in steps per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Second / time.Duration(fps)

	if e.running {
		// Send to channel for immediate update in running simulation loop
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			// Channel has a pending update, drain and send new value
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		// Engine not running, just update the field
		e.engineTickRate = newRate
	}
}

// SetTickCallback registers the function called before each simulation step.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetStepCallback registers the function called after each completed step.
func (e *engine) SetStepCallback(callback func(frame uint64, deltaTime float32)) {
	e.stepCallback = callback
}

// SetStepErrorHandler registers the function called when a step fails.
func (e *engine) SetStepErrorHandler(handler func(err error)) {
	e.stepError = handler
}
