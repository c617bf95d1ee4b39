package simulation

import (
	"unsafe"

	"github.com/hydrosim/hydro-go/common"
	"github.com/hydrosim/hydro-go/engine/compute"
)

// applyGravityParams mirrors the Params block in apply_gravity.wgsl.
type applyGravityParams struct {
	Gravity       [4]float32
	ParticleCount uint32
	Dt            float32
	_             [2]uint32
}

var applyGravityKernel = &compute.Kernel{
	Name:      "apply_gravity",
	Source:    shaderApplyGravity,
	Entry:     "main",
	Constants: uint64(unsafe.Sizeof(applyGravityParams{})),
	Host:      applyGravityHost,
}

func applyGravityHost(inv *compute.Invocation) {
	p := common.BytesToStruct[applyGravityParams](inv.Constants)
	i := inv.Index
	if i >= p.ParticleCount {
		return
	}
	velocities := common.BytesToSlice[[4]float32](inv.Bindings[0])
	for k := 0; k < 4; k++ {
		velocities[i][k] += p.Gravity[k] * p.Dt
	}
}
