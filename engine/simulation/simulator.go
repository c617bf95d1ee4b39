package simulation

import (
	"fmt"
	"time"

	"github.com/hydrosim/hydro-go/common"
	"github.com/hydrosim/hydro-go/engine/compute"
	"github.com/hydrosim/hydro-go/engine/particle"
	"github.com/hydrosim/hydro-go/engine/profiler"
)

// Simulator owns the per-frame fluid pipeline over a front/back particle
// store pair. Each Step runs, in order: gravity, position prediction, the
// spatial stages (Morton hashing, radix sort, cell index rebuild) on sort
// frames, neighbor search, density estimation, the iterative density
// constraint solver, and the position commit. Between sort frames the
// neighbor search reuses the previous sorted order and cell tables, which
// stay mutually consistent because the hash buffer is left untouched.
// Every stage is submitted and blocked individually so a stage always
// observes the previous stage's writes.
type Simulator interface {
	// Step advances the simulation by the given raw frame delta, which is
	// clamped into the configured timestep range. A step over an empty
	// population only advances the frame counter.
	Step(dt float32) error

	// SpawnParticles stages a batch into the back store. Ring semantics
	// apply; a *particle.CapacityError reports overwrite or rejection.
	SpawnParticles(batch []particle.InitData) error

	// CommitSpawns copies the back population into the front at a frame
	// boundary. A no-op when the back store is empty.
	CommitSpawns() error

	// Particles returns the front store for read access by collaborators
	// such as a renderer.
	Particles() particle.Store
	// Count returns the live particle count of the front store.
	Count() uint32
	// Frame returns the number of completed steps.
	Frame() uint32
	// Config returns the active configuration.
	Config() Config

	// Release frees every GPU resource the simulator owns.
	Release()
}

type simulator struct {
	device compute.Device
	cfg    Config
	pair   particle.PingPong
	cache  *bindingCache
	sorter *adaptiveSorter
	prof   profiler.StageTimer

	cellStart     compute.Buffer
	cellEnd       compute.Buffer
	contacts      compute.Buffer
	contactCounts compute.Buffer
	lambdas       compute.Buffer
	deltas        compute.Buffer

	frame    uint32
	needSort bool
}

var _ Simulator = &simulator{}

// NewSimulator validates the configuration and allocates every buffer the
// pipeline needs, sized by the store capacity.
//
// Parameters:
//   - device: the compute device to run on
//   - cfg: the simulation configuration
//   - opts: optional configuration
//
// Returns:
//   - Simulator: the simulator
//   - error: config validation or allocation failure
func NewSimulator(device compute.Device, cfg Config, opts ...SimulatorOption) (Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &simulator{
		device:   device,
		cfg:      cfg,
		cache:    newBindingCache(device),
		needSort: true,
	}
	capacity := uint32(particle.DefaultCapacity)
	for _, opt := range opts {
		opt(s, &capacity)
	}

	pair, err := particle.NewPingPong(device, particle.WithCapacity(capacity))
	if err != nil {
		return nil, err
	}
	s.pair = pair

	sorter, err := newAdaptiveSorter(device, cfg.SortInterval)
	if err != nil {
		s.Release()
		return nil, err
	}
	s.sorter = sorter

	cap64 := uint64(capacity)
	allocs := []struct {
		dst      *compute.Buffer
		name     string
		stride   uint64
		capacity uint64
	}{
		{&s.cellStart, "cell start", particle.HashStride, cellTableSize},
		{&s.cellEnd, "cell end", particle.HashStride, cellTableSize},
		{&s.contacts, "contacts", particle.HashStride, cap64 * uint64(cfg.MaxNeighbors)},
		{&s.contactCounts, "contact counts", particle.HashStride, cap64},
		{&s.lambdas, "lambdas", particle.ScalarStride, cap64},
		{&s.deltas, "delta positions", particle.PositionStride, cap64},
	}
	for _, a := range allocs {
		buf, err := device.NewBuffer(a.name, compute.BufferUsageStorage, a.stride, a.capacity)
		if err != nil {
			s.Release()
			return nil, err
		}
		*a.dst = buf
	}
	return s, nil
}

func (s *simulator) Particles() particle.Store { return s.pair.Front() }
func (s *simulator) Count() uint32             { return s.pair.Front().Count() }
func (s *simulator) Frame() uint32             { return s.frame }
func (s *simulator) Config() Config            { return s.cfg }

func (s *simulator) SpawnParticles(batch []particle.InitData) error {
	return s.pair.Back().AddParticles(batch)
}

func (s *simulator) CommitSpawns() error {
	if err := s.pair.Commit(); err != nil {
		return err
	}
	if err := s.pair.Front().CopyPositionToPredicted(); err != nil {
		return err
	}
	// A committed population invalidates any previous sorted order.
	s.needSort = true
	return nil
}

func (s *simulator) Step(rawDt float32) error {
	dt := s.cfg.ClampTimeStep(rawDt)
	store := s.pair.Front()
	count := store.Count()
	if count == 0 {
		s.frame++
		return nil
	}

	groups := compute.LinearGroups(count)
	bounds := s.cfg.Bounds()
	boundsMin := bounds.Min.Array()
	boundsMax := bounds.Max.Array()

	gravity := applyGravityParams{
		Gravity:       [4]float32{s.cfg.Gravity[0], s.cfg.Gravity[1], s.cfg.Gravity[2], 0},
		ParticleCount: count,
		Dt:            dt,
	}
	if err := s.run(StageApplyGravity, applyGravityKernel, common.StructToBytes(&gravity), groups,
		store.Velocity()); err != nil {
		return err
	}

	predict := predictPositionParams{
		BoundsMin:     boundsMin,
		BoundsMax:     boundsMax,
		ParticleCount: count,
		Dt:            dt,
	}
	if err := s.run(StagePredictPosition, predictPositionKernel, common.StructToBytes(&predict), groups,
		store.Position(), store.Velocity(), store.PredictedPosition()); err != nil {
		return err
	}

	// The hash, sort and cell table stages run together on sort frames.
	// On coherence frames all three are skipped: rehashing without
	// re-sorting would leave the hash buffer unsorted, so the previous
	// frame's tables stay in place instead.
	if s.sorter.due(s.frame, s.needSort) {
		morton := mortonHashParams{ParticleCount: count, GridSize: s.cfg.GridSize}
		if err := s.run(StageMortonHash, mortonHashKernel, common.StructToBytes(&morton), groups,
			store.PredictedPosition(), store.Hash(), store.Index()); err != nil {
			return err
		}

		if _, err := s.sorter.update(store, s.cache, s.frame, true); err != nil {
			return fmt.Errorf("radix sort: %w", err)
		}
		s.needSort = false

		clearCells := clearCellIndexParams{CellCount: cellTableSize, Sentinel: cellSentinel}
		if err := s.run(StageClearCellIndex, clearCellIndexKernel, common.StructToBytes(&clearCells), compute.LinearGroups(cellTableSize),
			s.cellStart, s.cellEnd); err != nil {
			return err
		}

		buildCells := buildCellIndexParams{ParticleCount: count}
		if err := s.run(StageBuildCellIndex, buildCellIndexKernel, common.StructToBytes(&buildCells), groups,
			store.Hash(), s.cellStart, s.cellEnd); err != nil {
			return err
		}
	}

	neighbors := neighborSearchParams{
		ParticleCount:     count,
		MaxNeighbors:      s.cfg.MaxNeighbors,
		GridSize:          s.cfg.GridSize,
		SmoothingRadiusSq: s.cfg.SmoothingRadius * s.cfg.SmoothingRadius,
	}
	if err := s.run(StageNeighborSearch, neighborSearchKernel, common.StructToBytes(&neighbors), groups,
		store.PredictedPosition(), store.Index(), s.cellStart, s.cellEnd, s.contacts, s.contactCounts); err != nil {
		return err
	}

	density := densityParams{
		ParticleCount:     count,
		MaxNeighbors:      s.cfg.MaxNeighbors,
		ParticleMass:      s.cfg.ParticleMass,
		SmoothingRadiusSq: s.cfg.SmoothingRadius * s.cfg.SmoothingRadius,
		Poly6Factor:       poly6Factor(s.cfg.SmoothingRadius),
	}
	if err := s.run(StageDensity, densityKernel, common.StructToBytes(&density), groups,
		store.PredictedPosition(), store.Density(), s.contacts, s.contactCounts); err != nil {
		return err
	}

	// The density is estimated once per frame; solver iterations refine the
	// predicted positions against that single estimate.
	lambda := pbdLambdaParams{
		ParticleCount:     count,
		MaxNeighbors:      s.cfg.MaxNeighbors,
		RestDensity:       s.cfg.RestDensity,
		SmoothingRadius:   s.cfg.SmoothingRadius,
		SpikyGradFactor:   spikyGradFactor(s.cfg.SmoothingRadius),
		ConstraintEpsilon: s.cfg.ConstraintEpsilon,
	}
	displacement := pbdDisplacementParams{
		ParticleCount:    count,
		MaxNeighbors:     s.cfg.MaxNeighbors,
		SmoothingRadius:  s.cfg.SmoothingRadius,
		SpikyGradFactor:  spikyGradFactor(s.cfg.SmoothingRadius),
		RelaxationFactor: s.cfg.RelaxationFactor,
	}
	apply := applyDisplacementParams{ParticleCount: count}
	for iter := 0; iter < s.cfg.PBDIterations; iter++ {
		if err := s.run(StageLambda, pbdLambdaKernel, common.StructToBytes(&lambda), groups,
			store.PredictedPosition(), store.Density(), s.contacts, s.contactCounts, s.lambdas); err != nil {
			return err
		}
		if err := s.run(StageDisplacement, pbdDisplacementKernel, common.StructToBytes(&displacement), groups,
			store.PredictedPosition(), s.lambdas, s.contacts, s.contactCounts, s.deltas); err != nil {
			return err
		}
		if err := s.run(StageApplyDisplacement, applyDisplacementKernel, common.StructToBytes(&apply), groups,
			store.PredictedPosition(), s.deltas); err != nil {
			return err
		}
	}

	update := updatePositionParams{
		BoundsMin:     boundsMin,
		BoundsMax:     boundsMax,
		ParticleCount: count,
		Dt:            dt,
	}
	if err := s.run(StageUpdatePosition, updatePositionKernel, common.StructToBytes(&update), groups,
		store.Velocity(), store.Position(), store.PredictedPosition()); err != nil {
		return err
	}

	s.frame++
	return nil
}

// run dispatches one stage through the binding cache, timing it when a
// stage timer is attached.
func (s *simulator) run(stage Stage, kernel *compute.Kernel, constants []byte, groups [3]uint32, buffers ...compute.Buffer) error {
	bindings, err := s.cache.bindings(stage, kernel, buffers...)
	if err != nil {
		return fmt.Errorf("%s: %w", stage, err)
	}
	start := time.Now()
	err = s.device.Execute(&compute.Task{
		Kernel:    kernel,
		Bindings:  bindings,
		Constants: constants,
		Groups:    groups,
	})
	if s.prof != nil {
		s.prof.Record(stage.String(), time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("%s: %w", stage, err)
	}
	return nil
}

func (s *simulator) Release() {
	s.cache.release()
	if s.sorter != nil {
		s.sorter.release()
	}
	for _, b := range []compute.Buffer{s.cellStart, s.cellEnd, s.contacts, s.contactCounts, s.lambdas, s.deltas} {
		if b != nil {
			b.Release()
		}
	}
	if s.pair != nil {
		s.pair.Release()
	}
}
