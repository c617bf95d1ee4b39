package simulation

import (
	"github.com/hydrosim/hydro-go/common"
	"github.com/hydrosim/hydro-go/engine/compute"
	"github.com/hydrosim/hydro-go/engine/particle"
)

// sortSystem performs the 4-round 8-bit LSD radix sort over the Morton
// hashes, carrying the identity permutation along in the index buffers. It
// owns the histogram and prefix sum scratch buffers.
type sortSystem struct {
	device     compute.Device
	histograms compute.Buffer
	prefixSums compute.Buffer
}

func newSortSystem(device compute.Device) (*sortSystem, error) {
	histograms, err := device.NewBuffer("radix histograms", compute.BufferUsageStorage, particle.HashStride, radixBins)
	if err != nil {
		return nil, err
	}
	prefixSums, err := device.NewBuffer("radix prefix sums", compute.BufferUsageStorage, particle.HashStride, radixBins)
	if err != nil {
		histograms.Release()
		return nil, err
	}
	return &sortSystem{device: device, histograms: histograms, prefixSums: prefixSums}, nil
}

// sort runs the full sort over the store's hash and index buffers. After
// every round the buffer roles swap, so the binding cache is invalidated
// wholesale; any stage holding hash or index bindings must rebind.
func (s *sortSystem) sort(store particle.Store, cache *bindingCache) error {
	count := store.Count()
	if count == 0 {
		return nil
	}

	workGroupNum := uint32(1)
	blocks := blocksPerWorkGroup(count)

	for pass := uint32(0); pass < radixRounds; pass++ {
		shift := pass * 8

		clearParams := clearHistogramParams{BinCount: radixBins}
		clearBindings, err := cache.bindings(StageClearHistogram, clearHistogramKernel, s.histograms)
		if err != nil {
			return err
		}
		passParams := radixPassParams{
			ParticleCount:      count,
			ShiftBits:          shift,
			NumWorkGroups:      workGroupNum,
			BlocksPerWorkGroup: blocks,
		}
		histBindings, err := cache.bindings(StageRadixHistogram, radixHistogramKernel, store.Hash(), s.histograms)
		if err != nil {
			return err
		}
		prefixParams := radixPrefixSumParams{NumWorkGroups: workGroupNum, BinCount: radixBins}
		prefixBindings, err := cache.bindings(StageRadixPrefixSum, radixPrefixSumKernel, s.histograms, s.prefixSums)
		if err != nil {
			return err
		}
		scatterBindings, err := cache.bindings(StageRadixScatter, radixScatterKernel,
			store.Hash(), store.HashTemp(), store.Index(), store.IndexTemp(), s.prefixSums)
		if err != nil {
			return err
		}

		err = s.device.Execute(
			&compute.Task{
				Kernel:    clearHistogramKernel,
				Bindings:  clearBindings,
				Constants: common.StructToBytes(&clearParams),
				Groups:    compute.LinearGroups(radixBins),
			},
			&compute.Task{
				Kernel:    radixHistogramKernel,
				Bindings:  histBindings,
				Constants: common.StructToBytes(&passParams),
				Groups:    [3]uint32{workGroupNum, 1, 1},
			},
			&compute.Task{
				Kernel:    radixPrefixSumKernel,
				Bindings:  prefixBindings,
				Constants: common.StructToBytes(&prefixParams),
				Groups:    compute.SingleGroup(),
			},
			&compute.Task{
				Kernel:    radixScatterKernel,
				Bindings:  scatterBindings,
				Constants: common.StructToBytes(&passParams),
				Groups:    compute.SingleGroup(),
			},
		)
		if err != nil {
			return err
		}

		// The sorted data now lives in the temp buffers; swap roles and drop
		// every cached binding set that referenced the old roles.
		store.SwapHashBuffers()
		store.SwapIndexBuffers()
		cache.invalidateAll()
	}
	return nil
}

func (s *sortSystem) release() {
	s.histograms.Release()
	s.prefixSums.Release()
}

// adaptiveSorter skips full sorts on frames where spatial coherence from the
// previous sort is still good enough, sorting at a fixed frame interval or
// on demand.
type adaptiveSorter struct {
	sort          *sortSystem
	lastSortFrame uint32
	interval      uint32
}

func newAdaptiveSorter(device compute.Device, interval uint32) (*adaptiveSorter, error) {
	system, err := newSortSystem(device)
	if err != nil {
		return nil, err
	}
	return &adaptiveSorter{sort: system, interval: max(interval, 1)}, nil
}

// due reports whether the next update would sort. Callers that rehash
// before sorting must also gate the hashing and cell table rebuild on
// this, otherwise a skipped sort leaves the rehashed data unsorted while
// the previous tables are discarded.
func (a *adaptiveSorter) due(frame uint32, force bool) bool {
	return force || frame-a.lastSortFrame >= a.interval
}

// update sorts when forced or when the interval has elapsed, reporting
// whether a sort ran.
func (a *adaptiveSorter) update(store particle.Store, cache *bindingCache, frame uint32, force bool) (bool, error) {
	if !a.due(frame, force) {
		return false, nil
	}
	if err := a.sort.sort(store, cache); err != nil {
		return false, err
	}
	a.lastSortFrame = frame
	return true, nil
}

func (a *adaptiveSorter) release() {
	a.sort.release()
}
