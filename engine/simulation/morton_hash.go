package simulation

import (
	"unsafe"

	"github.com/hydrosim/hydro-go/common"
	"github.com/hydrosim/hydro-go/engine/compute"
)

// mortonHashParams mirrors the Params block in morton_hash.wgsl.
type mortonHashParams struct {
	ParticleCount uint32
	GridSize      float32
	_             [2]uint32
}

var mortonHashKernel = &compute.Kernel{
	Name:      "morton_hash",
	Source:    shaderMortonHash,
	Entry:     "main",
	Constants: uint64(unsafe.Sizeof(mortonHashParams{})),
	Host:      mortonHashHost,
}

func mortonHashHost(inv *compute.Invocation) {
	p := common.BytesToStruct[mortonHashParams](inv.Constants)
	i := inv.Index
	if i >= p.ParticleCount {
		return
	}
	predicted := common.BytesToSlice[[4]float32](inv.Bindings[0])
	hashes := common.BytesToSlice[uint32](inv.Bindings[1])
	indices := common.BytesToSlice[uint32](inv.Bindings[2])

	pos := predicted[i]
	hashes[i] = mortonHash(pos[0], pos[1], pos[2], p.GridSize)
	indices[i] = i
}
