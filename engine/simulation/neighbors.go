package simulation

import (
	"unsafe"

	"github.com/chewxy/math32"

	"github.com/hydrosim/hydro-go/common"
	"github.com/hydrosim/hydro-go/engine/compute"
)

// neighborSearchParams mirrors the Params block in neighbor_search.wgsl.
type neighborSearchParams struct {
	ParticleCount     uint32
	MaxNeighbors      uint32
	GridSize          float32
	SmoothingRadiusSq float32
}

var neighborSearchKernel = &compute.Kernel{
	Name:      "neighbor_search",
	Source:    shaderNeighborSearch,
	Entry:     "main",
	Constants: uint64(unsafe.Sizeof(neighborSearchParams{})),
	Host:      neighborSearchHost,
}

func neighborSearchHost(inv *compute.Invocation) {
	p := common.BytesToStruct[neighborSearchParams](inv.Constants)
	i := inv.Index
	if i >= p.ParticleCount {
		return
	}
	predicted := common.BytesToSlice[[4]float32](inv.Bindings[0])
	indices := common.BytesToSlice[uint32](inv.Bindings[1])
	cellStart := common.BytesToSlice[uint32](inv.Bindings[2])
	cellEnd := common.BytesToSlice[uint32](inv.Bindings[3])
	contacts := common.BytesToSlice[uint32](inv.Bindings[4])
	contactCounts := common.BytesToSlice[uint32](inv.Bindings[5])

	pos := predicted[i]
	qx := int32(math32.Floor(pos[0] / p.GridSize))
	qy := int32(math32.Floor(pos[1] / p.GridSize))
	qz := int32(math32.Floor(pos[2] / p.GridSize))

	count := uint32(0)
	for dz := int32(-1); dz <= 1; dz++ {
		for dy := int32(-1); dy <= 1; dy++ {
			for dx := int32(-1); dx <= 1; dx++ {
				cell := cellID(mortonEncode(uint32(qx+dx), uint32(qy+dy), uint32(qz+dz)))
				start := cellStart[cell]
				if start == cellSentinel {
					continue
				}
				for s := start; s < cellEnd[cell]; s++ {
					j := indices[s]
					if j == i {
						continue
					}
					dxp := predicted[j][0] - pos[0]
					dyp := predicted[j][1] - pos[1]
					dzp := predicted[j][2] - pos[2]
					distSq := dxp*dxp + dyp*dyp + dzp*dzp
					if distSq <= p.SmoothingRadiusSq && count < p.MaxNeighbors {
						contacts[i*p.MaxNeighbors+count] = j
						count++
					}
				}
			}
		}
	}
	contactCounts[i] = count
}
