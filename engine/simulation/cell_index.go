package simulation

import (
	"unsafe"

	"github.com/hydrosim/hydro-go/common"
	"github.com/hydrosim/hydro-go/engine/compute"
)

// clearCellIndexParams mirrors the Params block in clear_cell_index.wgsl.
type clearCellIndexParams struct {
	CellCount uint32
	Sentinel  uint32
	_         [2]uint32
}

var clearCellIndexKernel = &compute.Kernel{
	Name:      "clear_cell_index",
	Source:    shaderClearCellIndex,
	Entry:     "main",
	Constants: uint64(unsafe.Sizeof(clearCellIndexParams{})),
	Host:      clearCellIndexHost,
}

func clearCellIndexHost(inv *compute.Invocation) {
	p := common.BytesToStruct[clearCellIndexParams](inv.Constants)
	i := inv.Index
	if i >= p.CellCount {
		return
	}
	common.BytesToSlice[uint32](inv.Bindings[0])[i] = p.Sentinel
	common.BytesToSlice[uint32](inv.Bindings[1])[i] = p.Sentinel
}

// buildCellIndexParams mirrors the Params block in build_cell_index.wgsl.
type buildCellIndexParams struct {
	ParticleCount uint32
	_             [3]uint32
}

var buildCellIndexKernel = &compute.Kernel{
	Name:      "build_cell_index",
	Source:    shaderBuildCellIndex,
	Entry:     "main",
	Constants: uint64(unsafe.Sizeof(buildCellIndexParams{})),
	Host:      buildCellIndexHost,
}

func buildCellIndexHost(inv *compute.Invocation) {
	p := common.BytesToStruct[buildCellIndexParams](inv.Constants)
	i := inv.Index
	if i >= p.ParticleCount {
		return
	}
	hashes := common.BytesToSlice[uint32](inv.Bindings[0])
	cellStart := common.BytesToSlice[uint32](inv.Bindings[1])
	cellEnd := common.BytesToSlice[uint32](inv.Bindings[2])

	cell := cellID(hashes[i])
	if i == 0 || cellID(hashes[i-1]) != cell {
		cellStart[cell] = i
	}
	if i == p.ParticleCount-1 || cellID(hashes[i+1]) != cell {
		cellEnd[cell] = i + 1
	}
}
