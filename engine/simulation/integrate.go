package simulation

import (
	"unsafe"

	"github.com/chewxy/math32"

	"github.com/hydrosim/hydro-go/common"
	"github.com/hydrosim/hydro-go/engine/compute"
)

// updatePositionParams mirrors the Params block in update_position.wgsl.
type updatePositionParams struct {
	BoundsMin     [4]float32
	BoundsMax     [4]float32
	ParticleCount uint32
	Dt            float32
	_             [2]uint32
}

var updatePositionKernel = &compute.Kernel{
	Name:      "update_position",
	Source:    shaderUpdatePosition,
	Entry:     "main",
	Constants: uint64(unsafe.Sizeof(updatePositionParams{})),
	Host:      updatePositionHost,
}

// updatePositionHost commits the frame: velocity derives from the actual
// displacement, then the clamped prediction becomes the committed position.
func updatePositionHost(inv *compute.Invocation) {
	p := common.BytesToStruct[updatePositionParams](inv.Constants)
	i := inv.Index
	if i >= p.ParticleCount {
		return
	}
	velocities := common.BytesToSlice[[4]float32](inv.Bindings[0])
	positions := common.BytesToSlice[[4]float32](inv.Bindings[1])
	predicted := common.BytesToSlice[[4]float32](inv.Bindings[2])

	for k := 0; k < 4; k++ {
		target := math32.Min(math32.Max(predicted[i][k], p.BoundsMin[k]), p.BoundsMax[k])
		if p.Dt > 0 {
			velocities[i][k] = (target - positions[i][k]) / p.Dt
		}
		positions[i][k] = target
	}
}
