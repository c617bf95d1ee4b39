package simulation

import (
	"unsafe"

	"github.com/chewxy/math32"

	"github.com/hydrosim/hydro-go/common"
	"github.com/hydrosim/hydro-go/engine/compute"
)

// pbdLambdaParams mirrors the Params block in pbd_lambda.wgsl. The Spiky
// gradient factor is precomputed host-side.
type pbdLambdaParams struct {
	ParticleCount     uint32
	MaxNeighbors      uint32
	RestDensity       float32
	SmoothingRadius   float32
	SpikyGradFactor   float32
	ConstraintEpsilon float32
	_                 [2]uint32
}

var pbdLambdaKernel = &compute.Kernel{
	Name:      "pbd_lambda",
	Source:    shaderPbdLambda,
	Entry:     "main",
	Constants: uint64(unsafe.Sizeof(pbdLambdaParams{})),
	Host:      pbdLambdaHost,
}

// spikyGrad evaluates the Spiky kernel gradient for the offset d. Outside
// (0, radius] the gradient is zero; at r == 0 there is no direction.
func spikyGrad(d common.Vec3, radius, factor float32) common.Vec3 {
	r := d.Length()
	if r <= 0 || r > radius {
		return common.Vec3{}
	}
	t := radius - r
	return d.Scale(factor * t * t / r)
}

func pbdLambdaHost(inv *compute.Invocation) {
	p := common.BytesToStruct[pbdLambdaParams](inv.Constants)
	i := inv.Index
	if i >= p.ParticleCount {
		return
	}
	predicted := common.BytesToSlice[[4]float32](inv.Bindings[0])
	densities := common.BytesToSlice[float32](inv.Bindings[1])
	contacts := common.BytesToSlice[uint32](inv.Bindings[2])
	contactCounts := common.BytesToSlice[uint32](inv.Bindings[3])
	lambdas := common.BytesToSlice[float32](inv.Bindings[4])

	constraint := densities[i]/p.RestDensity - 1

	pos := vec3Of(predicted[i])
	var gradSum common.Vec3
	var gradSqSum float32
	for n := uint32(0); n < contactCounts[i]; n++ {
		j := contacts[i*p.MaxNeighbors+n]
		grad := spikyGrad(pos.Sub(vec3Of(predicted[j])), p.SmoothingRadius, p.SpikyGradFactor)
		gradSum = gradSum.Add(grad)
		gradSqSum += grad.LengthSq()
	}

	denom := gradSqSum + gradSum.LengthSq() + p.ConstraintEpsilon
	lambdas[i] = -constraint / denom
}

// pbdDisplacementParams mirrors the Params block in pbd_displacement.wgsl.
type pbdDisplacementParams struct {
	ParticleCount    uint32
	MaxNeighbors     uint32
	SmoothingRadius  float32
	SpikyGradFactor  float32
	RelaxationFactor float32
	_                [3]uint32
}

var pbdDisplacementKernel = &compute.Kernel{
	Name:      "pbd_displacement",
	Source:    shaderPbdDisplacement,
	Entry:     "main",
	Constants: uint64(unsafe.Sizeof(pbdDisplacementParams{})),
	Host:      pbdDisplacementHost,
}

func pbdDisplacementHost(inv *compute.Invocation) {
	p := common.BytesToStruct[pbdDisplacementParams](inv.Constants)
	i := inv.Index
	if i >= p.ParticleCount {
		return
	}
	predicted := common.BytesToSlice[[4]float32](inv.Bindings[0])
	lambdas := common.BytesToSlice[float32](inv.Bindings[1])
	contacts := common.BytesToSlice[uint32](inv.Bindings[2])
	contactCounts := common.BytesToSlice[uint32](inv.Bindings[3])
	deltas := common.BytesToSlice[[4]float32](inv.Bindings[4])

	pos := vec3Of(predicted[i])
	lambdaI := lambdas[i]
	var delta common.Vec3
	for n := uint32(0); n < contactCounts[i]; n++ {
		j := contacts[i*p.MaxNeighbors+n]
		grad := spikyGrad(pos.Sub(vec3Of(predicted[j])), p.SmoothingRadius, p.SpikyGradFactor)
		delta = delta.Add(grad.Scale(lambdaI + lambdas[j]))
	}
	delta = delta.Scale(p.RelaxationFactor)
	deltas[i] = [4]float32{delta.X, delta.Y, delta.Z, 0}
}

// applyDisplacementParams mirrors the Params block in apply_displacement.wgsl.
type applyDisplacementParams struct {
	ParticleCount uint32
	_             [3]uint32
}

var applyDisplacementKernel = &compute.Kernel{
	Name:      "apply_displacement",
	Source:    shaderApplyDisplacement,
	Entry:     "main",
	Constants: uint64(unsafe.Sizeof(applyDisplacementParams{})),
	Host:      applyDisplacementHost,
}

func applyDisplacementHost(inv *compute.Invocation) {
	p := common.BytesToStruct[applyDisplacementParams](inv.Constants)
	i := inv.Index
	if i >= p.ParticleCount {
		return
	}
	predicted := common.BytesToSlice[[4]float32](inv.Bindings[0])
	deltas := common.BytesToSlice[[4]float32](inv.Bindings[1])
	for k := 0; k < 4; k++ {
		predicted[i][k] += deltas[i][k]
	}
}

func vec3Of(a [4]float32) common.Vec3 {
	return common.Vec3{X: a[0], Y: a[1], Z: a[2]}
}

// poly6Factor returns the Poly6 normalization constant 315 / (64 π h⁹).
func poly6Factor(smoothingRadius float32) float32 {
	h3 := smoothingRadius * smoothingRadius * smoothingRadius
	h9 := h3 * h3 * h3
	return 315.0 / (64.0 * math32.Pi * h9)
}

// spikyGradFactor returns the Spiky gradient constant -45 / (π h⁶).
func spikyGradFactor(smoothingRadius float32) float32 {
	h2 := smoothingRadius * smoothingRadius
	h6 := h2 * h2 * h2
	return -45.0 / (math32.Pi * h6)
}
