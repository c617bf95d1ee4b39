package simulation

import "github.com/chewxy/math32"

const (
	// mortonAxisBits is the per-axis coordinate width. Eleven bits keep the
	// full 32-bit code dense: the x axis contributes bits up to 30, y up to
	// 31, and the z axis' top bit truncates away.
	mortonAxisBits = 11
	mortonAxisMask = (1 << mortonAxisBits) - 1

	// cellTableSize is the fixed cell index table length; cell ids are the
	// low 16 bits of the Morton code.
	cellTableSize = 1 << 16
	cellIDMask    = cellTableSize - 1

	// cellSentinel marks an empty cell in the start/end tables.
	cellSentinel = 0xFFFFFFFF
)

// mortonExpandBits spreads the low 11 bits of v so bit i lands at bit 3i.
func mortonExpandBits(v uint32) uint32 {
	v &= mortonAxisMask
	v = (v | v<<16) & 0xFF0000FF
	v = (v | v<<8) & 0x0F00F00F
	v = (v | v<<4) & 0xC30C30C3
	v = (v | v<<2) & 0x49249249
	return v
}

// mortonEncode interleaves three masked axis coordinates into a 32-bit
// Morton code. x occupies bits 3i, y bits 3i+1, z bits 3i+2; interleaved
// bits past bit 31 truncate.
func mortonEncode(x, y, z uint32) uint32 {
	return mortonExpandBits(x) | mortonExpandBits(y)<<1 | mortonExpandBits(z)<<2
}

// cellCoord quantizes one position axis to a grid coordinate. The floor
// result is reinterpreted through two's complement so negative coordinates
// map deterministically onto the masked axis range.
func cellCoord(p, gridSize float32) uint32 {
	return uint32(int32(math32.Floor(p / gridSize)))
}

// mortonHash computes the spatial hash of a position.
func mortonHash(x, y, z, gridSize float32) uint32 {
	return mortonEncode(cellCoord(x, gridSize), cellCoord(y, gridSize), cellCoord(z, gridSize))
}

// cellID reduces a Morton code to its cell index table slot.
func cellID(hash uint32) uint32 {
	return hash & cellIDMask
}
