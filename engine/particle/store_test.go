package particle

import (
	"errors"
	"testing"

	"github.com/hydrosim/hydro-go/common"
	"github.com/hydrosim/hydro-go/engine/compute"
)

func readPositions(t *testing.T, dev compute.Device, s Store, n uint32) []GPUPosition {
	t.Helper()
	out := make([]GPUPosition, n)
	if err := dev.ReadBuffer(s.Position(), 0, common.SliceToBytes(out)); err != nil {
		t.Fatalf("reading positions: %v", err)
	}
	return out
}

// TestAddParticlesRoundTrip verifies a spawned batch lands in the buffers.
func TestAddParticlesRoundTrip(t *testing.T) {
	dev := compute.NewHostDevice()
	defer dev.Release()

	s, err := NewStore(dev, WithCapacity(16))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Release()

	batch := []InitData{
		{Position: [3]float32{1, 2, 3}, Velocity: [3]float32{0.1, 0, 0}},
		{Position: [3]float32{-1, 0, 4}, Velocity: [3]float32{0, -0.5, 0}},
	}
	if err := s.AddParticles(batch); err != nil {
		t.Fatalf("AddParticles: %v", err)
	}
	if s.Count() != 2 || s.Cursor() != 2 {
		t.Fatalf("count=%d cursor=%d, want 2 2", s.Count(), s.Cursor())
	}

	positions := readPositions(t, dev, s, 2)
	for i, p := range batch {
		if positions[i].X != p.Position[0] || positions[i].Y != p.Position[1] || positions[i].Z != p.Position[2] {
			t.Errorf("position %d = %+v, want %v", i, positions[i], p.Position)
		}
	}

	velocities := make([]GPUVelocity, 2)
	if err := dev.ReadBuffer(s.Velocity(), 0, common.SliceToBytes(velocities)); err != nil {
		t.Fatalf("reading velocities: %v", err)
	}
	if velocities[1].Y != -0.5 {
		t.Errorf("velocity 1 = %+v", velocities[1])
	}
}

// TestAddParticlesEmptyBatch verifies spawning nothing changes nothing.
func TestAddParticlesEmptyBatch(t *testing.T) {
	dev := compute.NewHostDevice()
	defer dev.Release()

	s, err := NewStore(dev, WithCapacity(4))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Release()

	if err := s.AddParticles(nil); err != nil {
		t.Fatalf("AddParticles(nil): %v", err)
	}
	if s.Count() != 0 || s.Cursor() != 0 {
		t.Errorf("count=%d cursor=%d, want 0 0", s.Count(), s.Cursor())
	}
}

// TestAddParticlesRingWrap verifies a straddling batch wraps to the front and
// reports the overwrite.
func TestAddParticlesRingWrap(t *testing.T) {
	dev := compute.NewHostDevice()
	defer dev.Release()

	s, err := NewStore(dev, WithCapacity(4))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Release()

	first := []InitData{
		{Position: [3]float32{0, 0, 0}},
		{Position: [3]float32{1, 0, 0}},
		{Position: [3]float32{2, 0, 0}},
	}
	if err := s.AddParticles(first); err != nil {
		t.Fatalf("AddParticles: %v", err)
	}

	// Three live at cursor 3; two more straddle the end.
	wrap := []InitData{
		{Position: [3]float32{3, 0, 0}},
		{Position: [3]float32{4, 0, 0}},
	}
	err = s.AddParticles(wrap)
	var ce *CapacityError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want CapacityError", err)
	}

	if s.Count() != 4 {
		t.Errorf("count = %d, want 4 (clamped to capacity)", s.Count())
	}
	if s.Cursor() != 1 {
		t.Errorf("cursor = %d, want 1 (wrapped)", s.Cursor())
	}

	positions := readPositions(t, dev, s, 4)
	want := []float32{4, 1, 2, 3}
	for i := range want {
		if positions[i].X != want[i] {
			t.Errorf("slot %d x = %v, want %v", i, positions[i].X, want[i])
		}
	}
}

// TestAddParticlesOversizedBatch verifies batches larger than the buffer are
// rejected without writing.
func TestAddParticlesOversizedBatch(t *testing.T) {
	dev := compute.NewHostDevice()
	defer dev.Release()

	s, err := NewStore(dev, WithCapacity(2))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Release()

	batch := make([]InitData, 3)
	err = s.AddParticles(batch)
	var ce *CapacityError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want CapacityError", err)
	}
	if s.Count() != 0 || s.Cursor() != 0 {
		t.Errorf("count=%d cursor=%d, want 0 0 (rejected batch must not write)", s.Count(), s.Cursor())
	}
}

// TestCopyPositionToPredicted verifies the predicted buffer is seeded from the
// committed positions.
func TestCopyPositionToPredicted(t *testing.T) {
	dev := compute.NewHostDevice()
	defer dev.Release()

	s, err := NewStore(dev, WithCapacity(8))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Release()

	if err := s.AddParticles([]InitData{{Position: [3]float32{5, 6, 7}}}); err != nil {
		t.Fatalf("AddParticles: %v", err)
	}
	if err := s.CopyPositionToPredicted(); err != nil {
		t.Fatalf("CopyPositionToPredicted: %v", err)
	}

	predicted := make([]GPUPosition, 1)
	if err := dev.ReadBuffer(s.PredictedPosition(), 0, common.SliceToBytes(predicted)); err != nil {
		t.Fatalf("reading predicted: %v", err)
	}
	if predicted[0].X != 5 || predicted[0].Y != 6 || predicted[0].Z != 7 {
		t.Errorf("predicted = %+v, want {5 6 7}", predicted[0])
	}
}

// TestSwapFrom verifies population adoption and the empty-source no-op.
func TestSwapFrom(t *testing.T) {
	dev := compute.NewHostDevice()
	defer dev.Release()

	pair, err := NewPingPong(dev, WithCapacity(8))
	if err != nil {
		t.Fatalf("NewPingPong: %v", err)
	}
	defer pair.Release()

	if err := pair.Back().AddParticles([]InitData{
		{Position: [3]float32{1, 1, 1}},
		{Position: [3]float32{2, 2, 2}},
	}); err != nil {
		t.Fatalf("AddParticles: %v", err)
	}

	if err := pair.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if pair.Front().Count() != 2 {
		t.Fatalf("front count = %d, want 2", pair.Front().Count())
	}
	positions := readPositions(t, dev, pair.Front(), 2)
	if positions[1].X != 2 {
		t.Errorf("front position 1 = %+v", positions[1])
	}

	// Committing an empty back store must keep the front population.
	empty, err := NewStore(dev, WithCapacity(8))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer empty.Release()
	if err := pair.Front().SwapFrom(empty); err != nil {
		t.Fatalf("SwapFrom(empty): %v", err)
	}
	if pair.Front().Count() != 2 {
		t.Errorf("front count after empty swap = %d, want 2", pair.Front().Count())
	}
}

// TestSwapBufferRoles verifies hash and index buffer role exchange.
func TestSwapBufferRoles(t *testing.T) {
	dev := compute.NewHostDevice()
	defer dev.Release()

	s, err := NewStore(dev, WithCapacity(4))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Release()

	hash, temp := s.Hash(), s.HashTemp()
	s.SwapHashBuffers()
	if s.Hash() != temp || s.HashTemp() != hash {
		t.Error("SwapHashBuffers did not exchange roles")
	}

	idx, idxTemp := s.Index(), s.IndexTemp()
	s.SwapIndexBuffers()
	if s.Index() != idxTemp || s.IndexTemp() != idx {
		t.Error("SwapIndexBuffers did not exchange roles")
	}
}
