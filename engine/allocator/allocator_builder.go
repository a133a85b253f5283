package allocator

import "github.com/Carmen-Shannon/chromaviz/engine/renderer"

// AllocatorBuilderOption is a functional option used to configure an Allocator during construction.
type AllocatorBuilderOption func(*allocator)

// WithLabel sets the debug label of the managed buffer.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - AllocatorBuilderOption: a function that sets the label of the allocator
func WithLabel(label string) AllocatorBuilderOption {
	return func(a *allocator) {
		a.label = label
	}
}

// WithCapacity sets the initial capacity in bytes. It is rounded up to the alignment.
//
// Parameters:
//   - capacity: the initial buffer size
//
// Returns:
//   - AllocatorBuilderOption: a function that sets the initial capacity of the allocator
func WithCapacity(capacity uint64) AllocatorBuilderOption {
	return func(a *allocator) {
		a.capacity = capacity
	}
}

// WithAlignment sets the offset alignment of every allocation. It must be a power of two of at least 4.
//
// Parameters:
//   - alignment: the alignment in bytes
//
// Returns:
//   - AllocatorBuilderOption: a function that sets the alignment of the allocator
func WithAlignment(alignment uint64) AllocatorBuilderOption {
	return func(a *allocator) {
		a.alignment = alignment
	}
}

// WithUsage overrides the usage flags of the managed buffer. CopyDst is always added since ranges are
// uploaded with queue writes.
//
// Parameters:
//   - usage: the buffer usage flags
//
// Returns:
//   - AllocatorBuilderOption: a function that sets the buffer usage of the allocator
func WithUsage(usage renderer.BufferUsage) AllocatorBuilderOption {
	return func(a *allocator) {
		a.usage = usage | renderer.BufferUsageCopyDst
	}
}
