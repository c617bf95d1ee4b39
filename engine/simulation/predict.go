package simulation

import (
	"unsafe"

	"github.com/chewxy/math32"

	"github.com/hydrosim/hydro-go/common"
	"github.com/hydrosim/hydro-go/engine/compute"
)

// predictPositionParams mirrors the Params block in predict_position.wgsl.
type predictPositionParams struct {
	BoundsMin     [4]float32
	BoundsMax     [4]float32
	ParticleCount uint32
	Dt            float32
	_             [2]uint32
}

var predictPositionKernel = &compute.Kernel{
	Name:      "predict_position",
	Source:    shaderPredictPosition,
	Entry:     "main",
	Constants: uint64(unsafe.Sizeof(predictPositionParams{})),
	Host:      predictPositionHost,
}

func predictPositionHost(inv *compute.Invocation) {
	p := common.BytesToStruct[predictPositionParams](inv.Constants)
	i := inv.Index
	if i >= p.ParticleCount {
		return
	}
	positions := common.BytesToSlice[[4]float32](inv.Bindings[0])
	velocities := common.BytesToSlice[[4]float32](inv.Bindings[1])
	predicted := common.BytesToSlice[[4]float32](inv.Bindings[2])

	for k := 0; k < 4; k++ {
		v := positions[i][k] + velocities[i][k]*p.Dt
		predicted[i][k] = math32.Min(math32.Max(v, p.BoundsMin[k]), p.BoundsMax[k])
	}
}
