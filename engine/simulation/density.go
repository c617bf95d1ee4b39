package simulation

import (
	"unsafe"

	"github.com/hydrosim/hydro-go/common"
	"github.com/hydrosim/hydro-go/engine/compute"
)

// densityParams mirrors the Params block in density.wgsl. The Poly6 factor
// is precomputed host-side, the kernel only evaluates the polynomial.
type densityParams struct {
	ParticleCount     uint32
	MaxNeighbors      uint32
	ParticleMass      float32
	SmoothingRadiusSq float32
	Poly6Factor       float32
	_                 [3]uint32
}

var densityKernel = &compute.Kernel{
	Name:      "density",
	Source:    shaderDensity,
	Entry:     "main",
	Constants: uint64(unsafe.Sizeof(densityParams{})),
	Host:      densityHost,
}

// poly6 evaluates the Poly6 smoothing kernel on a squared distance.
func poly6(distSq, radiusSq, factor float32) float32 {
	if distSq > radiusSq {
		return 0
	}
	t := radiusSq - distSq
	return factor * t * t * t
}

func densityHost(inv *compute.Invocation) {
	p := common.BytesToStruct[densityParams](inv.Constants)
	i := inv.Index
	if i >= p.ParticleCount {
		return
	}
	predicted := common.BytesToSlice[[4]float32](inv.Bindings[0])
	densities := common.BytesToSlice[float32](inv.Bindings[1])
	contacts := common.BytesToSlice[uint32](inv.Bindings[2])
	contactCounts := common.BytesToSlice[uint32](inv.Bindings[3])

	pos := predicted[i]
	// Self contribution keeps the density strictly positive.
	density := p.ParticleMass * poly6(0, p.SmoothingRadiusSq, p.Poly6Factor)
	for n := uint32(0); n < contactCounts[i]; n++ {
		j := contacts[i*p.MaxNeighbors+n]
		dx := predicted[j][0] - pos[0]
		dy := predicted[j][1] - pos[1]
		dz := predicted[j][2] - pos[2]
		density += p.ParticleMass * poly6(dx*dx+dy*dy+dz*dz, p.SmoothingRadiusSq, p.Poly6Factor)
	}
	densities[i] = density
}
