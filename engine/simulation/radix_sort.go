package simulation

import (
	"sync/atomic"
	"unsafe"

	"github.com/hydrosim/hydro-go/common"
	"github.com/hydrosim/hydro-go/engine/compute"
)

const (
	// radixBins is the bucket count of one 8-bit sort round.
	radixBins = 256
	// radixRounds covers the full 32-bit hash, 8 bits per round.
	radixRounds = 4
	// radixBlockThreshold is the particle count above which histogram
	// threads batch four elements per block.
	radixBlockThreshold = 25000
)

// clearHistogramParams mirrors the Params block in clear_histogram.wgsl.
type clearHistogramParams struct {
	BinCount uint32
	_        [3]uint32
}

var clearHistogramKernel = &compute.Kernel{
	Name:      "clear_histogram",
	Source:    shaderClearHistogram,
	Entry:     "main",
	Constants: uint64(unsafe.Sizeof(clearHistogramParams{})),
	Host:      clearHistogramHost,
}

func clearHistogramHost(inv *compute.Invocation) {
	p := common.BytesToStruct[clearHistogramParams](inv.Constants)
	i := inv.Index
	if i >= p.BinCount {
		return
	}
	common.BytesToSlice[uint32](inv.Bindings[0])[i] = 0
}

// radixPassParams mirrors the Params blocks in radix_histogram.wgsl and
// radix_scatter.wgsl.
type radixPassParams struct {
	ParticleCount      uint32
	ShiftBits          uint32
	NumWorkGroups      uint32
	BlocksPerWorkGroup uint32
}

var radixHistogramKernel = &compute.Kernel{
	Name:      "radix_histogram",
	Source:    shaderRadixHistogram,
	Entry:     "main",
	Constants: uint64(unsafe.Sizeof(radixPassParams{})),
	Host:      radixHistogramHost,
}

func radixHistogramHost(inv *compute.Invocation) {
	p := common.BytesToStruct[radixPassParams](inv.Constants)
	hashes := common.BytesToSlice[uint32](inv.Bindings[0])
	bins := common.BytesToSlice[uint32](inv.Bindings[1])

	threads := uint32(compute.WorkgroupSize) * p.NumWorkGroups
	perThread := common.DivCeil(p.ParticleCount, threads)
	base := inv.Index * perThread
	for b := uint32(0); b < perThread; b++ {
		idx := base + b
		if idx >= p.ParticleCount {
			break
		}
		digit := (hashes[idx] >> p.ShiftBits) & 0xFF
		atomic.AddUint32(&bins[digit], 1)
	}
}

// radixPrefixSumParams mirrors the Params block in radix_prefix_sum.wgsl.
type radixPrefixSumParams struct {
	NumWorkGroups uint32
	BinCount      uint32
	_             [2]uint32
}

var radixPrefixSumKernel = &compute.Kernel{
	Name:      "radix_prefix_sum",
	Source:    shaderRadixPrefixSum,
	Entry:     "main",
	Constants: uint64(unsafe.Sizeof(radixPrefixSumParams{})),
	Host:      radixPrefixSumHost,
}

func radixPrefixSumHost(inv *compute.Invocation) {
	if inv.Index != 0 {
		return
	}
	p := common.BytesToStruct[radixPrefixSumParams](inv.Constants)
	bins := common.BytesToSlice[uint32](inv.Bindings[0])
	prefix := common.BytesToSlice[uint32](inv.Bindings[1])

	sum := uint32(0)
	for d := uint32(0); d < p.BinCount; d++ {
		prefix[d] = sum
		sum += bins[d]
	}
}

var radixScatterKernel = &compute.Kernel{
	Name:      "radix_scatter",
	Source:    shaderRadixScatter,
	Entry:     "main",
	Constants: uint64(unsafe.Sizeof(radixPassParams{})),
	Host:      radixScatterHost,
}

// radixScatterHost walks the input in order from a single invocation so the
// scatter stays stable across equal digits.
func radixScatterHost(inv *compute.Invocation) {
	if inv.Index != 0 {
		return
	}
	p := common.BytesToStruct[radixPassParams](inv.Constants)
	hashes := common.BytesToSlice[uint32](inv.Bindings[0])
	hashesOut := common.BytesToSlice[uint32](inv.Bindings[1])
	indices := common.BytesToSlice[uint32](inv.Bindings[2])
	indicesOut := common.BytesToSlice[uint32](inv.Bindings[3])
	prefix := common.BytesToSlice[uint32](inv.Bindings[4])

	for i := uint32(0); i < p.ParticleCount; i++ {
		h := hashes[i]
		digit := (h >> p.ShiftBits) & 0xFF
		dst := prefix[digit]
		prefix[digit] = dst + 1
		hashesOut[dst] = h
		indicesOut[dst] = indices[i]
	}
}

// blocksPerWorkGroup picks the histogram block hint the way the dispatch has
// always been tuned: below the threshold one element per thread block, above
// it four.
func blocksPerWorkGroup(count uint32) uint32 {
	if count < radixBlockThreshold {
		return common.DivCeil(count, compute.WorkgroupSize)
	}
	return common.DivCeil(count, compute.WorkgroupSize*4)
}
