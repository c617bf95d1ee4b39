package compute

import "strings"

// storageBindingCount scans a WGSL module for storage buffer declarations
// and returns how many there are. Uniform declarations (the constants block)
// are not counted; binding sets carry storage buffers only and devices wire
// the constants binding themselves.
//
// The scan is line-oriented and only needs to understand the declarations
// this module's shaders actually use:
//
//	@group(0) @binding(N) var<storage, read_write> name: type;
//	@group(0) @binding(N) var<uniform> params: Params;
func storageBindingCount(source string) int {
	count := 0
	for line := range strings.Lines(source) {
		if !strings.Contains(line, "@binding(") {
			continue
		}
		if strings.Contains(line, "var<storage") {
			count++
		}
	}
	return count
}

// hasUniformBinding reports whether the WGSL module declares a uniform
// constants block.
func hasUniformBinding(source string) bool {
	for line := range strings.Lines(source) {
		if strings.Contains(line, "@binding(") && strings.Contains(line, "var<uniform") {
			return true
		}
	}
	return false
}

// StorageBindings returns the number of storage buffer bindings a kernel's
// WGSL source declares. The host device uses it to validate binding sets,
// the GPU device additionally uses it to build bind group layouts.
//
// Parameters:
//   - k: the kernel to inspect
//
// Returns:
//   - int: declared storage binding count
func StorageBindings(k *Kernel) int {
	return storageBindingCount(k.Source)
}
