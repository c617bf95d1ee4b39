package particle

import "github.com/hydrosim/hydro-go/common"

// StoreOption is a functional option for configuring a Store.
// Use the With* functions to create options that are applied directly to the store instance.
type StoreOption func(*store)

// WithCapacity sets the particle buffer capacity. Values of 0 fall back to
// DefaultCapacity.
//
// Parameters:
//   - capacity: particle count the buffers are sized for
//
// Returns:
//   - StoreOption: option function to apply
func WithCapacity(capacity uint32) StoreOption {
	return func(s *store) {
		s.capacity = common.Coalesce(capacity, DefaultCapacity)
	}
}

// WithLabel sets the debug label prefix used for the attribute buffers.
//
// Parameters:
//   - label: debug label
//
// Returns:
//   - StoreOption: option function to apply
func WithLabel(label string) StoreOption {
	return func(s *store) {
		s.label = common.Coalesce(label, s.label)
	}
}
