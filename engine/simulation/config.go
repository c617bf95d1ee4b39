// package simulation implements the position-based fluids pipeline: spatial
// hashing, radix sort, cell indexing, neighbor search, density estimation
// and the iterative density constraint solver, orchestrated per frame by the
// Simulator.
package simulation

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hydrosim/hydro-go/common"
)

//go:embed defaults.yaml
var defaultConfigYAML []byte

// Config holds every tunable of the fluid simulation. Values load from YAML
// and are validated before the simulator allocates anything.
type Config struct {
	// Gravity is the constant acceleration applied every frame, in m/s².
	Gravity [3]float32 `yaml:"gravity"`
	// BoundsMin and BoundsMax are the corners of the simulation volume.
	BoundsMin [3]float32 `yaml:"bounds_min"`
	BoundsMax [3]float32 `yaml:"bounds_max"`
	// MinTimeStep and MaxTimeStep bound the per-frame delta in seconds.
	MinTimeStep float32 `yaml:"min_time_step"`
	MaxTimeStep float32 `yaml:"max_time_step"`
	// GridSize is the spatial hash cell edge length in meters.
	GridSize float32 `yaml:"grid_size"`
	// ParticleMass in kg.
	ParticleMass float32 `yaml:"particle_mass"`
	// SmoothingRadius is the SPH kernel support radius in meters.
	SmoothingRadius float32 `yaml:"smoothing_radius"`
	// RestDensity in kg/m³.
	RestDensity float32 `yaml:"rest_density"`
	// Viscosity and SurfaceTension coefficients, reserved for the optional
	// XSPH and surface passes.
	Viscosity      float32 `yaml:"viscosity"`
	SurfaceTension float32 `yaml:"surface_tension"`
	// PBDIterations is the density constraint solver iteration count per
	// frame. Zero disables the solver entirely.
	PBDIterations int `yaml:"pbd_iterations"`
	// ConstraintEpsilon regularizes the constraint denominator.
	ConstraintEpsilon float32 `yaml:"constraint_epsilon"`
	// RelaxationFactor scales the correction displacement per iteration.
	RelaxationFactor float32 `yaml:"relaxation_factor"`
	// MaxNeighbors caps the per-particle contact list length.
	MaxNeighbors uint32 `yaml:"max_neighbors"`
	// SortInterval is how many frames may elapse between full radix sorts.
	// 1 sorts every frame.
	SortInterval uint32 `yaml:"sort_interval"`
}

// ConfigError reports a rejected configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config field %q: %s", e.Field, e.Reason)
}

// DefaultConfig returns the embedded default configuration.
func DefaultConfig() Config {
	var c Config
	// The embedded defaults are part of the build, a decode failure here is
	// a programming error.
	if err := yaml.Unmarshal(defaultConfigYAML, &c); err != nil {
		panic(fmt.Sprintf("decoding embedded defaults: %v", err))
	}
	return c
}

// LoadConfig reads a YAML config file layered over the embedded defaults and
// validates the result.
//
// Parameters:
//   - path: YAML file path
//
// Returns:
//   - Config: the validated configuration
//   - error: read, decode or validation failure
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks every field for physical and structural sanity. It exists
// so a bad config is rejected before any GPU allocation or dispatch happens.
//
// Returns:
//   - error: a *ConfigError naming the first offending field
func (c Config) Validate() error {
	for axis := 0; axis < 3; axis++ {
		if c.BoundsMin[axis] >= c.BoundsMax[axis] {
			return &ConfigError{Field: "bounds_min/bounds_max", Reason: fmt.Sprintf("axis %d: min %v must be below max %v", axis, c.BoundsMin[axis], c.BoundsMax[axis])}
		}
	}
	if c.MinTimeStep <= 0 {
		return &ConfigError{Field: "min_time_step", Reason: "must be positive"}
	}
	if c.MinTimeStep >= c.MaxTimeStep {
		return &ConfigError{Field: "min_time_step", Reason: fmt.Sprintf("%v must be below max_time_step %v", c.MinTimeStep, c.MaxTimeStep)}
	}
	if c.GridSize <= 0 {
		return &ConfigError{Field: "grid_size", Reason: "must be positive"}
	}
	if c.SmoothingRadius <= 0 {
		return &ConfigError{Field: "smoothing_radius", Reason: "must be positive"}
	}
	if c.GridSize > c.SmoothingRadius {
		return &ConfigError{Field: "grid_size", Reason: fmt.Sprintf("%v must not exceed smoothing_radius %v", c.GridSize, c.SmoothingRadius)}
	}
	if c.ParticleMass <= 0 {
		return &ConfigError{Field: "particle_mass", Reason: "must be positive"}
	}
	if c.RestDensity <= 0 {
		return &ConfigError{Field: "rest_density", Reason: "must be positive"}
	}
	if c.Viscosity < 0 {
		return &ConfigError{Field: "viscosity", Reason: "must not be negative"}
	}
	if c.SurfaceTension < 0 {
		return &ConfigError{Field: "surface_tension", Reason: "must not be negative"}
	}
	if c.PBDIterations < 0 {
		return &ConfigError{Field: "pbd_iterations", Reason: "must not be negative"}
	}
	if c.ConstraintEpsilon <= 0 {
		return &ConfigError{Field: "constraint_epsilon", Reason: "must be positive"}
	}
	if c.RelaxationFactor <= 0 || c.RelaxationFactor > 1 {
		return &ConfigError{Field: "relaxation_factor", Reason: "must be in (0, 1]"}
	}
	if c.MaxNeighbors == 0 {
		return &ConfigError{Field: "max_neighbors", Reason: "must be positive"}
	}
	if c.SortInterval == 0 {
		return &ConfigError{Field: "sort_interval", Reason: "must be positive"}
	}
	return nil
}

// ClampTimeStep maps a raw frame delta into [MinTimeStep, MaxTimeStep].
//
// Parameters:
//   - dt: raw delta in seconds
//
// Returns:
//   - float32: the clamped delta
func (c Config) ClampTimeStep(dt float32) float32 {
	if dt < c.MinTimeStep {
		return c.MinTimeStep
	}
	if dt > c.MaxTimeStep {
		return c.MaxTimeStep
	}
	return dt
}

// Bounds returns the simulation volume as an AABB.
func (c Config) Bounds() common.AABB {
	return common.AABB{
		Min: common.Vec3{X: c.BoundsMin[0], Y: c.BoundsMin[1], Z: c.BoundsMin[2]},
		Max: common.Vec3{X: c.BoundsMax[0], Y: c.BoundsMax[1], Z: c.BoundsMax[2]},
	}
}
