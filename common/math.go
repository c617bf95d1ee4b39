package common

import (
	"unsafe"

	"github.com/chewxy/math32"
)

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// BytesToSlice reinterprets a byte slice as a slice of T. The length of the
// result is len(data) divided by the size of T, truncating any partial
// trailing element. The returned slice shares memory with the input.
//
// Parameters:
//   - data: source byte slice
//
// Returns:
//   - []T: typed view of the input data, or nil if input is empty
func BytesToSlice[T any](data []byte) []T {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	return unsafe.Slice((*T)(unsafe.Pointer(&data[0])), len(data)/size)
}

// StructToBytes reinterprets a pointer to a struct as a raw byte slice using unsafe.
// The returned slice has length equal to the struct's size in memory.
//
// Parameters:
//   - v: pointer to the struct to reinterpret
//
// Returns:
//   - []byte: byte slice view of the struct's memory
func StructToBytes[T any](v *T) []byte {
	size := unsafe.Sizeof(*v)
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), int(size))
}

// BytesToStruct reinterprets the head of a byte slice as a value of type T.
// The slice must hold at least unsafe.Sizeof(T) bytes.
//
// Parameters:
//   - data: source byte slice
//
// Returns:
//   - *T: pointer view into the slice's backing memory
func BytesToStruct[T any](data []byte) *T {
	return (*T)(unsafe.Pointer(&data[0]))
}

// ApproxEq reports whether two float32 values are within eps of each other.
//
// Parameters:
//   - a: first value
//   - b: second value
//   - eps: absolute tolerance
//
// Returns:
//   - bool: true when |a-b| <= eps
func ApproxEq(a, b, eps float32) bool {
	return math32.Abs(a-b) <= eps
}

// DivCeil returns the number of groups of size n needed to cover count.
//
// Parameters:
//   - count: total element count
//   - n: group size (must be > 0)
//
// Returns:
//   - uint32: ceil(count / n)
func DivCeil(count, n uint32) uint32 {
	return (count + n - 1) / n
}
