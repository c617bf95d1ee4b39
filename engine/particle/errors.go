package particle

import "fmt"

// CapacityError reports that an AddParticles call ran out of room. When the
// requested batch fits the buffer but not the remaining space, the store
// still performs the write with ring semantics and the oldest particles are
// overwritten; the error is the explicit signal that this happened. When the
// batch is larger than the whole buffer, nothing is written.
type CapacityError struct {
	// Label of the store.
	Label string
	// Requested is the batch size.
	Requested uint32
	// Count is the live particle count before the call.
	Count uint32
	// Capacity is the total buffer capacity.
	Capacity uint32
}

func (e *CapacityError) Error() string {
	if e.Requested > e.Capacity {
		return fmt.Sprintf("particle store %q: batch of %d exceeds total capacity %d, nothing written", e.Label, e.Requested, e.Capacity)
	}
	return fmt.Sprintf("particle store %q: adding %d to %d live particles exceeds capacity %d, oldest overwritten", e.Label, e.Requested, e.Count, e.Capacity)
}
