package particle

import (
	"fmt"

	"github.com/hydrosim/hydro-go/common"
	"github.com/hydrosim/hydro-go/engine/compute"
)

// DefaultCapacity is the particle buffer capacity when none is configured.
const DefaultCapacity = 0x100000

// Store manages the GPU-resident attribute buffers for one particle
// population. New particles are staged host-side and copied in with ring
// semantics: when a batch runs past the end of the buffer it wraps to the
// front and overwrites the oldest particles.
//
// Buffer accessors hand out the live handles; after SwapHashBuffers or
// SwapIndexBuffers the handles returned by earlier calls describe the other
// role, so callers holding binding sets over them must recreate those sets.
type Store interface {
	// Count returns the live particle count.
	Count() uint32
	// Cursor returns the ring write position for the next batch.
	Cursor() uint32
	// Capacity returns the buffer capacity in particles.
	Capacity() uint32

	// AddParticles stages a batch host-side and copies it into the position
	// and velocity buffers at the cursor. A batch that no longer fits
	// triggers ring wrap and returns a *CapacityError after writing; a batch
	// larger than the whole buffer is rejected outright.
	AddParticles(batch []InitData) error

	// CopyPositionToPredicted seeds the predicted position buffer from the
	// committed positions, device-side.
	CopyPositionToPredicted() error

	// SwapFrom replaces this store's population with other's via a
	// device-side copy of the active region. When other is empty this is a
	// no-op and the receiver keeps its population.
	SwapFrom(other Store) error

	// Position returns the committed position buffer.
	Position() compute.Buffer
	// Velocity returns the velocity buffer.
	Velocity() compute.Buffer
	// PredictedPosition returns the predicted position buffer.
	PredictedPosition() compute.Buffer
	// Density returns the per-particle density buffer.
	Density() compute.Buffer
	// Hash returns the buffer currently holding the live spatial hashes.
	Hash() compute.Buffer
	// HashTemp returns the scratch hash buffer for the current sort round.
	HashTemp() compute.Buffer
	// Index returns the buffer currently holding the live particle indices.
	Index() compute.Buffer
	// IndexTemp returns the scratch index buffer for the current sort round.
	IndexTemp() compute.Buffer

	// SwapHashBuffers exchanges the live and scratch hash buffer roles.
	SwapHashBuffers()
	// SwapIndexBuffers exchanges the live and scratch index buffer roles.
	SwapIndexBuffers()

	// Release frees every attribute buffer.
	Release()
}

type store struct {
	device   compute.Device
	label    string
	capacity uint32
	count    uint32
	cursor   uint32

	position  compute.Buffer
	velocity  compute.Buffer
	predicted compute.Buffer
	density   compute.Buffer
	hash      compute.Buffer
	hashTemp  compute.Buffer
	index     compute.Buffer
	indexTemp compute.Buffer
}

var _ Store = &store{}

// NewStore allocates the attribute buffers for one particle population.
//
// Parameters:
//   - device: the compute device to allocate on
//   - opts: optional configuration
//
// Returns:
//   - Store: the store
//   - error: buffer allocation failure
func NewStore(device compute.Device, opts ...StoreOption) (Store, error) {
	s := &store{
		device:   device,
		label:    "particles",
		capacity: DefaultCapacity,
	}
	for _, opt := range opts {
		opt(s)
	}

	cap64 := uint64(s.capacity)
	allocs := []struct {
		dst    *compute.Buffer
		name   string
		usage  compute.BufferUsage
		stride uint64
	}{
		{&s.position, "Position", compute.BufferUsageVertex, PositionStride},
		{&s.velocity, "Velocity", compute.BufferUsageStorage, VelocityStride},
		{&s.predicted, "Predicted Position", compute.BufferUsageStorage, PositionStride},
		{&s.density, "Density", compute.BufferUsageStorage, ScalarStride},
		{&s.hash, "Hash", compute.BufferUsageStorage, HashStride},
		{&s.hashTemp, "Hash Temp", compute.BufferUsageStorage, HashStride},
		{&s.index, "Index", compute.BufferUsageStorage, HashStride},
		{&s.indexTemp, "Index Temp", compute.BufferUsageStorage, HashStride},
	}
	for _, a := range allocs {
		buf, err := device.NewBuffer(s.label+" "+a.name, a.usage, a.stride, cap64)
		if err != nil {
			s.Release()
			return nil, err
		}
		*a.dst = buf
	}
	return s, nil
}

func (s *store) Count() uint32    { return s.count }
func (s *store) Cursor() uint32   { return s.cursor }
func (s *store) Capacity() uint32 { return s.capacity }

func (s *store) Position() compute.Buffer          { return s.position }
func (s *store) Velocity() compute.Buffer          { return s.velocity }
func (s *store) PredictedPosition() compute.Buffer { return s.predicted }
func (s *store) Density() compute.Buffer           { return s.density }
func (s *store) Hash() compute.Buffer              { return s.hash }
func (s *store) HashTemp() compute.Buffer          { return s.hashTemp }
func (s *store) Index() compute.Buffer             { return s.index }
func (s *store) IndexTemp() compute.Buffer         { return s.indexTemp }

func (s *store) SwapHashBuffers() {
	s.hash, s.hashTemp = s.hashTemp, s.hash
}

func (s *store) SwapIndexBuffers() {
	s.index, s.indexTemp = s.indexTemp, s.index
}

func (s *store) AddParticles(batch []InitData) error {
	n := uint32(len(batch))
	if n == 0 {
		return nil
	}
	if n > s.capacity {
		return &CapacityError{Label: s.label, Requested: n, Count: s.count, Capacity: s.capacity}
	}

	positions := make([]GPUPosition, n)
	velocities := make([]GPUVelocity, n)
	for i, p := range batch {
		positions[i] = GPUPosition{X: p.Position[0], Y: p.Position[1], Z: p.Position[2]}
		velocities[i] = GPUVelocity{X: p.Velocity[0], Y: p.Velocity[1], Z: p.Velocity[2]}
	}

	// The first region runs from the cursor to the end of the buffer, the
	// second wraps to the front when the batch straddles the end.
	first := min(n, s.capacity-s.cursor)
	regions := []compute.CopyRegion{
		{SrcOffset: 0, DstOffset: uint64(s.cursor), Count: uint64(first)},
	}
	if first < n {
		regions = append(regions, compute.CopyRegion{SrcOffset: uint64(first), DstOffset: 0, Count: uint64(n - first)})
	}

	if err := s.stageAndCopy("Position Staging", PositionStride, common.SliceToBytes(positions), s.position, regions); err != nil {
		return err
	}
	if err := s.stageAndCopy("Velocity Staging", VelocityStride, common.SliceToBytes(velocities), s.velocity, regions); err != nil {
		return err
	}

	overwrote := s.count+n > s.capacity
	prevCount := s.count
	s.count = min(s.count+n, s.capacity)
	s.cursor = (s.cursor + n) % s.capacity

	if overwrote {
		return &CapacityError{Label: s.label, Requested: n, Count: prevCount, Capacity: s.capacity}
	}
	return nil
}

// stageAndCopy uploads data into a transient staging buffer and issues the
// device-side copy into dst over the ring regions.
func (s *store) stageAndCopy(name string, stride uint64, data []byte, dst compute.Buffer, regions []compute.CopyRegion) error {
	staging, err := s.device.NewBuffer(s.label+" "+name, compute.BufferUsageStaging, stride, uint64(len(data))/stride)
	if err != nil {
		return err
	}
	defer staging.Release()

	if err := s.device.WriteBuffer(staging, 0, data); err != nil {
		return fmt.Errorf("staging %s: %w", name, err)
	}
	return s.device.CopyBuffer(staging, dst, regions...)
}

func (s *store) CopyPositionToPredicted() error {
	if s.count == 0 {
		return nil
	}
	return s.device.CopyBuffer(s.position, s.predicted, compute.CopyRegion{Count: uint64(s.count)})
}

func (s *store) SwapFrom(other Store) error {
	o, ok := other.(*store)
	if !ok {
		return fmt.Errorf("particle store %q: SwapFrom with a foreign store", s.label)
	}
	if o.count == 0 {
		return nil
	}

	region := compute.CopyRegion{Count: uint64(o.count)}
	if err := s.device.CopyBuffer(o.position, s.position, region); err != nil {
		return err
	}
	if err := s.device.CopyBuffer(o.velocity, s.velocity, region); err != nil {
		return err
	}
	s.count = o.count
	s.cursor = o.cursor
	return nil
}

func (s *store) Release() {
	for _, b := range []compute.Buffer{s.position, s.velocity, s.predicted, s.density, s.hash, s.hashTemp, s.index, s.indexTemp} {
		if b != nil {
			b.Release()
		}
	}
}
