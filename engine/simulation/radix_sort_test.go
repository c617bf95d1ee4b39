package simulation

import (
	"testing"

	"github.com/hydrosim/hydro-go/common"
	"github.com/hydrosim/hydro-go/engine/compute"
	"github.com/hydrosim/hydro-go/engine/particle"
)

// TestRadixSortOrdersHashes verifies the full four-round sort produces
// non-decreasing hashes with the matching index permutation.
func TestRadixSortOrdersHashes(t *testing.T) {
	dev := compute.NewHostDevice()
	defer dev.Release()

	const count = 300
	s, err := particle.NewStore(dev, particle.WithCapacity(512))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Release()
	if err := s.AddParticles(make([]particle.InitData, count)); err != nil {
		t.Fatalf("AddParticles: %v", err)
	}

	// Deterministic pseudo-random hashes covering all four digit positions.
	orig := make([]uint32, count)
	indices := make([]uint32, count)
	state := uint32(0x12345678)
	for i := range orig {
		state = state*1664525 + 1013904223
		orig[i] = state
		indices[i] = uint32(i)
	}
	if err := dev.WriteBuffer(s.Hash(), 0, common.SliceToBytes(orig)); err != nil {
		t.Fatalf("writing hashes: %v", err)
	}
	if err := dev.WriteBuffer(s.Index(), 0, common.SliceToBytes(indices)); err != nil {
		t.Fatalf("writing indices: %v", err)
	}

	cache := newBindingCache(dev)
	defer cache.release()
	sys, err := newSortSystem(dev)
	if err != nil {
		t.Fatalf("newSortSystem: %v", err)
	}
	defer sys.release()

	if err := sys.sort(s, cache); err != nil {
		t.Fatalf("sort: %v", err)
	}

	sorted := make([]uint32, count)
	perm := make([]uint32, count)
	if err := dev.ReadBuffer(s.Hash(), 0, common.SliceToBytes(sorted)); err != nil {
		t.Fatalf("reading hashes: %v", err)
	}
	if err := dev.ReadBuffer(s.Index(), 0, common.SliceToBytes(perm)); err != nil {
		t.Fatalf("reading indices: %v", err)
	}

	seen := make([]bool, count)
	for i := uint32(0); i < count; i++ {
		if i > 0 && sorted[i-1] > sorted[i] {
			t.Fatalf("hashes out of order at %d: %#x > %#x", i, sorted[i-1], sorted[i])
		}
		j := perm[i]
		if j >= count {
			t.Fatalf("index %d = %d out of range", i, j)
		}
		if seen[j] {
			t.Fatalf("index %d appears twice", j)
		}
		seen[j] = true
		if sorted[i] != orig[j] {
			t.Fatalf("slot %d: hash %#x does not match original %#x at index %d", i, sorted[i], orig[j], j)
		}
	}
}

// TestRadixSortEmptyStore verifies sorting nothing is a no-op.
func TestRadixSortEmptyStore(t *testing.T) {
	dev := compute.NewHostDevice()
	defer dev.Release()

	s, err := particle.NewStore(dev, particle.WithCapacity(8))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Release()

	cache := newBindingCache(dev)
	defer cache.release()
	sys, err := newSortSystem(dev)
	if err != nil {
		t.Fatalf("newSortSystem: %v", err)
	}
	defer sys.release()

	if err := sys.sort(s, cache); err != nil {
		t.Fatalf("sort over empty store: %v", err)
	}
}

// TestAdaptiveSorterInterval verifies sorts run when forced or when the
// interval elapses, and are skipped in between.
func TestAdaptiveSorterInterval(t *testing.T) {
	dev := compute.NewHostDevice()
	defer dev.Release()

	s, err := particle.NewStore(dev, particle.WithCapacity(16))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Release()
	if err := s.AddParticles(make([]particle.InitData, 8)); err != nil {
		t.Fatalf("AddParticles: %v", err)
	}

	cache := newBindingCache(dev)
	defer cache.release()
	sorter, err := newAdaptiveSorter(dev, 3)
	if err != nil {
		t.Fatalf("newAdaptiveSorter: %v", err)
	}
	defer sorter.release()

	tests := []struct {
		frame uint32
		force bool
		want  bool
	}{
		{0, true, true},
		{1, false, false},
		{2, false, false},
		{3, false, true},
		{4, false, false},
		{5, true, true},
	}

	for _, tc := range tests {
		sorted, err := sorter.update(s, cache, tc.frame, tc.force)
		if err != nil {
			t.Fatalf("update(frame=%d): %v", tc.frame, err)
		}
		if sorted != tc.want {
			t.Errorf("update(frame=%d, force=%v) = %v, want %v", tc.frame, tc.force, sorted, tc.want)
		}
	}
}

// TestBlocksPerWorkGroup verifies the histogram block hint thresholds.
func TestBlocksPerWorkGroup(t *testing.T) {
	tests := []struct {
		count uint32
		want  uint32
	}{
		{1, 1},
		{256, 1},
		{257, 2},
		{24999, 98},
		{25000, 25},
		{100000, 98},
	}
	for _, tc := range tests {
		if got := blocksPerWorkGroup(tc.count); got != tc.want {
			t.Errorf("blocksPerWorkGroup(%d) = %d, want %d", tc.count, got, tc.want)
		}
	}
}

// TestBuildCellIndex verifies boundary detection over a sorted hash run.
func TestBuildCellIndex(t *testing.T) {
	hashes := []uint32{5, 5, 5, 9, 9, 0x10003}
	count := uint32(len(hashes))

	start := make([]uint32, cellTableSize)
	end := make([]uint32, cellTableSize)
	clearParams := clearCellIndexParams{CellCount: cellTableSize, Sentinel: cellSentinel}
	buildParams := buildCellIndexParams{ParticleCount: count}

	inv := compute.Invocation{
		Bindings:  [][]byte{common.SliceToBytes(start), common.SliceToBytes(end)},
		Constants: common.StructToBytes(&clearParams),
	}
	for i := uint32(0); i < cellTableSize; i++ {
		inv.Index = i
		clearCellIndexHost(&inv)
	}

	inv = compute.Invocation{
		Bindings:  [][]byte{common.SliceToBytes(hashes), common.SliceToBytes(start), common.SliceToBytes(end)},
		Constants: common.StructToBytes(&buildParams),
	}
	for i := uint32(0); i < count; i++ {
		inv.Index = i
		buildCellIndexHost(&inv)
	}

	wantRanges := map[uint32][2]uint32{
		5: {0, 3},
		9: {3, 5},
		3: {5, 6}, // hash 0x10003 reduces to cell 3
	}
	for cell, r := range wantRanges {
		if start[cell] != r[0] || end[cell] != r[1] {
			t.Errorf("cell %d = [%d, %d), want [%d, %d)", cell, start[cell], end[cell], r[0], r[1])
		}
	}

	covered := uint32(0)
	for cell := uint32(0); cell < cellTableSize; cell++ {
		if _, occupied := wantRanges[cell]; occupied {
			covered += end[cell] - start[cell]
			continue
		}
		if start[cell] != cellSentinel || end[cell] != cellSentinel {
			t.Errorf("empty cell %d = [%d, %d), want sentinel", cell, start[cell], end[cell])
		}
	}
	if covered != count {
		t.Errorf("occupied ranges cover %d particles, want %d", covered, count)
	}
}
