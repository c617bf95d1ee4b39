// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import "github.com/chewxy/math32"

// Vec3 is a plain three-component float32 vector used host-side by the
// solver configuration and the mirror kernels. GPU-facing layouts pad out to
// four components and live with the packages that own the buffers.
type Vec3 struct {
	X, Y, Z float32
}

// Add returns the component-wise sum v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns the component-wise difference v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v scaled by s.
func (v Vec3) Scale(s float32) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float32 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// LengthSq returns the squared euclidean length of v.
func (v Vec3) LengthSq() float32 {
	return v.Dot(v)
}

// Length returns the euclidean length of v.
func (v Vec3) Length() float32 {
	return math32.Sqrt(v.LengthSq())
}

// Array expands v into a four-component array with a zero w term, matching
// the 16-byte vector layout the compute shaders use.
func (v Vec3) Array() [4]float32 {
	return [4]float32{v.X, v.Y, v.Z, 0}
}

// AABB is an axis-aligned bounding box. The simulation clamps predicted and
// committed particle positions into one of these each frame.
type AABB struct {
	Min Vec3
	Max Vec3
}

// Clamp returns p clamped component-wise into the box.
//
// Parameters:
//   - p: the point to clamp
//
// Returns:
//   - Vec3: the nearest point inside the box
func (b AABB) Clamp(p Vec3) Vec3 {
	return Vec3{
		X: math32.Min(math32.Max(p.X, b.Min.X), b.Max.X),
		Y: math32.Min(math32.Max(p.Y, b.Min.Y), b.Max.Y),
		Z: math32.Min(math32.Max(p.Z, b.Min.Z), b.Max.Z),
	}
}

// Contains reports whether p lies inside the box (inclusive on all faces).
func (b AABB) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}
