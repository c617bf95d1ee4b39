package compute

// WorkgroupSize is the thread count per workgroup every kernel in this
// module is authored against, both in WGSL and in the host mirrors.
const WorkgroupSize = 256

// Invocation carries the state visible to a single host-mirror kernel
// invocation. Bindings and Constants are raw byte views over the underlying
// buffers; kernels reinterpret them with common.BytesToSlice and
// common.BytesToStruct the same way the WGSL side declares its bindings.
type Invocation struct {
	// Index is the global invocation index (workgroup * WorkgroupSize + local).
	Index uint32
	// Group is the workgroup index this invocation belongs to.
	Group uint32
	// Groups is the total number of workgroups in the dispatch.
	Groups uint32
	// Bindings holds one byte view per buffer binding, in binding order.
	Bindings [][]byte
	// Constants holds the raw constants block for this dispatch.
	Constants []byte
}

// HostFunc is the host mirror of a compute kernel. It is called once per
// invocation; invocations within a workgroup run sequentially, workgroups
// may run in parallel. Mirrors that share bins across workgroups must use
// sync/atomic.
type HostFunc func(inv *Invocation)

// Kernel describes a compute kernel in both of its forms: the WGSL source
// a GPU device compiles, and the host mirror a headless device executes.
// Kernels are package-level values; devices key their pipeline caches by
// Name, so names must be unique across the module.
type Kernel struct {
	// Name identifies the kernel in logs, errors and pipeline caches.
	Name string
	// Source is the full WGSL module for this kernel.
	Source string
	// Entry is the WGSL entry point function name.
	Entry string
	// Constants reports the size in bytes of the constants block the kernel
	// expects. Zero means the kernel takes no constants.
	Constants uint64
	// Host is the host mirror of the kernel body.
	Host HostFunc
}

// Task is a single dispatch of a kernel over a binding set.
type Task struct {
	// Kernel to dispatch.
	Kernel *Kernel
	// Bindings must have been created for the same kernel via NewBindingSet.
	Bindings BindingSet
	// Constants is the raw constants block; its length must equal
	// Kernel.Constants.
	Constants []byte
	// Groups is the workgroup count along x, y and z.
	Groups [3]uint32
}

// LinearGroups returns a 1D dispatch size covering count invocations at the
// module workgroup size, always at least one group.
//
// Parameters:
//   - count: number of invocations to cover
//
// Returns:
//   - [3]uint32: dispatch dimensions for Task.Groups
func LinearGroups(count uint32) [3]uint32 {
	return [3]uint32{count/WorkgroupSize + 1, 1, 1}
}

// SingleGroup returns a one-workgroup dispatch, used by kernels that scan or
// scatter sequentially for stability.
func SingleGroup() [3]uint32 {
	return [3]uint32{1, 1, 1}
}
