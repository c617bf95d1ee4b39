// package compute abstracts the GPU capabilities the fluid solver needs:
// buffer allocation, binding set creation, blocking kernel dispatch and
// buffer transfer. Two devices implement it, a WebGPU device for real
// hardware and a headless host device backed by a worker pool, so the same
// simulation code runs in both environments.
package compute

import "time"

// BufferUsage declares how a buffer will be used so devices can pick the
// right allocation flags.
type BufferUsage uint8

const (
	// BufferUsageStorage is a device-local storage buffer bound to kernels.
	BufferUsageStorage BufferUsage = iota
	// BufferUsageVertex is a storage buffer that a renderer may additionally
	// consume as a vertex stream.
	BufferUsageVertex
	// BufferUsageStaging is a host-visible buffer used as a copy source when
	// uploading particle batches.
	BufferUsageStaging
)

// Buffer is a typed handle to device memory. Sizes are expressed in
// elements; Stride is the element size in bytes.
type Buffer interface {
	// Label returns the debug label the buffer was created with.
	Label() string
	// Stride returns the element size in bytes.
	Stride() uint64
	// Cap returns the capacity in elements.
	Cap() uint64
	// Size returns the total byte size (Stride * Cap).
	Size() uint64
	// Release frees the device memory. The handle must not be used after.
	Release()
}

// BindingSet is an immutable association of buffers to a kernel's bindings.
// Sets are cheap to hold and reuse across dispatches; callers cache them per
// pipeline stage and recreate them only after buffer identity changes.
type BindingSet interface {
	// Release frees device binding resources.
	Release()
}

// CopyRegion describes one region of a buffer-to-buffer copy. Offsets and
// Count are in elements; both buffers must share a stride.
type CopyRegion struct {
	SrcOffset uint64
	DstOffset uint64
	Count     uint64
}

// Device is the capability surface the simulation is written against.
// All operations are synchronous: Execute returns only after every task in
// the batch has completed, which is what lets each pipeline stage observe
// the previous stage's writes.
type Device interface {
	// NewBuffer allocates a buffer of capacity elements of stride bytes.
	//
	// Parameters:
	//   - label: debug label used in errors and logs
	//   - usage: intended usage class
	//   - stride: element size in bytes
	//   - capacity: element count
	//
	// Returns:
	//   - Buffer: the allocated handle
	//   - error: an *AllocationError on failure
	NewBuffer(label string, usage BufferUsage, stride, capacity uint64) (Buffer, error)

	// NewBindingSet associates buffers with kernel bindings, in binding
	// order. The buffer count must match the kernel's declared storage
	// binding count.
	NewBindingSet(label string, kernel *Kernel, buffers ...Buffer) (BindingSet, error)

	// Execute runs the tasks in order and blocks until all are complete.
	// A sync timeout is retried a bounded number of times before an
	// *SyncTimeoutError is returned.
	Execute(tasks ...*Task) error

	// WriteBuffer copies host data into dst starting at offset elements.
	WriteBuffer(dst Buffer, offset uint64, data []byte) error

	// CopyBuffer performs device-side copies between two buffers of equal
	// stride and blocks until the copies are visible.
	CopyBuffer(src, dst Buffer, regions ...CopyRegion) error

	// ReadBuffer copies count elements starting at offset from src into out,
	// blocking until the data is host-visible. out must hold at least
	// count*stride bytes.
	ReadBuffer(src Buffer, offset uint64, out []byte) error

	// Release frees all device resources.
	Release()
}

const (
	defaultSyncTimeout = 5 * time.Second
	defaultSyncRetries = 3
)

// awaitDone blocks on done, retrying the wait up to retries times with the
// given timeout per attempt. Both devices funnel their blocking waits
// through this so timeout behavior stays uniform.
func awaitDone(done <-chan struct{}, stage string, bufferBytes uint64, timeout time.Duration, retries int) error {
	for attempt := 1; ; attempt++ {
		select {
		case <-done:
			return nil
		case <-time.After(timeout):
			if attempt >= retries {
				return &SyncTimeoutError{Stage: stage, Attempts: attempt, Timeout: timeout, BufferBytes: bufferBytes}
			}
		}
	}
}
