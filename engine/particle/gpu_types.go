// package particle owns the GPU-resident particle state: the per-attribute
// buffer layouts, the ring-buffer store that manages them, and the
// front/back store pair used to stage wholesale population swaps.
package particle

import "unsafe"

// GPUPosition is the GPU-aligned representation of a particle position.
// Matches the WGSL vec4<f32> layout exactly (16 bytes); the w component is
// unused padding kept for alignment.
type GPUPosition struct {
	X, Y, Z float32 // offset 0: world-space position
	W       float32 // offset 12: padding
}

// GPUVelocity is the GPU-aligned representation of a particle velocity.
// Matches the WGSL vec4<f32> layout exactly (16 bytes).
type GPUVelocity struct {
	X, Y, Z float32 // offset 0: velocity
	W       float32 // offset 12: padding
}

// Strides of the particle attribute buffers in bytes.
const (
	PositionStride = uint64(unsafe.Sizeof(GPUPosition{}))
	VelocityStride = uint64(unsafe.Sizeof(GPUVelocity{}))
	ScalarStride   = uint64(unsafe.Sizeof(float32(0)))
	HashStride     = uint64(unsafe.Sizeof(uint32(0)))
)

// InitData is the host-side description of one particle to spawn. It is
// packed into the position/velocity layouts during staging.
type InitData struct {
	Position [3]float32
	Velocity [3]float32
}
