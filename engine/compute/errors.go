package compute

import (
	"fmt"
	"time"
)

// AllocationError reports a failed device memory allocation.
type AllocationError struct {
	// Label of the buffer that failed to allocate.
	Label string
	// Bytes requested.
	Bytes uint64
	// Err is the underlying device error, if any.
	Err error
}

func (e *AllocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("allocating %q (%d bytes): %v", e.Label, e.Bytes, e.Err)
	}
	return fmt.Sprintf("allocating %q (%d bytes) failed", e.Label, e.Bytes)
}

func (e *AllocationError) Unwrap() error {
	return e.Err
}

// SyncTimeoutError reports that a blocking device wait did not complete
// within the retry budget. It carries enough context to identify the stage
// and the data volume involved.
type SyncTimeoutError struct {
	// Stage names the dispatch or transfer that was being awaited.
	Stage string
	// Attempts is the number of waits performed before giving up.
	Attempts int
	// Timeout is the per-attempt wait duration.
	Timeout time.Duration
	// BufferBytes is the total byte size of the buffers involved, zero when
	// not applicable.
	BufferBytes uint64
}

func (e *SyncTimeoutError) Error() string {
	return fmt.Sprintf("sync timeout in %q after %d attempts of %s (%d buffer bytes)",
		e.Stage, e.Attempts, e.Timeout, e.BufferBytes)
}

// BindingCountError reports a mismatch between a kernel's declared storage
// bindings and the buffers supplied to NewBindingSet.
type BindingCountError struct {
	Kernel string
	Want   int
	Got    int
}

func (e *BindingCountError) Error() string {
	return fmt.Sprintf("kernel %q declares %d storage bindings, got %d buffers", e.Kernel, e.Want, e.Got)
}
