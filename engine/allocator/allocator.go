// Package allocator hands out byte ranges of a single GPU buffer that is mirrored in CPU memory.
//
// Objects write their packed properties into the CPU view of their Allocation and schedule an upload of
// that range. When the buffer is exhausted the allocator does not grow on its own: callers either Grow it
// or Compact it and then re-point every relocated owner at its replacement Allocation.
package allocator

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
)

var (
	// ErrOutOfMemory is returned when no free range is large enough for a request.
	ErrOutOfMemory = errors.New("allocator: out of memory")

	// ErrInvalidSize is returned for zero sized requests or capacities below the current one.
	ErrInvalidSize = errors.New("allocator: invalid size")

	// ErrForeignAllocation is returned when an allocation is handed to an allocator that did not create it.
	ErrForeignAllocation = errors.New("allocator: allocation belongs to another allocator")

	// ErrStaleAllocation is returned when an allocation was already freed or replaced.
	ErrStaleAllocation = errors.New("allocator: allocation is no longer valid")
)

const (
	// DefaultAlignment matches the minimum storage buffer offset alignment of WebGPU.
	DefaultAlignment = 256

	// DefaultCapacity is the initial buffer size used when no capacity option is given.
	DefaultCapacity = 64 * 1024
)

// Range is a byte range within the managed buffer.
type Range struct {
	Offset uint64
	Size   uint64
}

// End returns the first byte past the range.
func (r Range) End() uint64 {
	return r.Offset + r.Size
}

// Overlaps reports whether two ranges share at least one byte.
func (r Range) Overlaps(o Range) bool {
	return r.Size > 0 && o.Size > 0 && r.Offset < o.End() && o.Offset < r.End()
}

// Allocation is a reserved range of the allocator's buffer together with its CPU view. It is never moved
// in place: Grow and Compact invalidate it and hand out a replacement through a Relocation.
type Allocation struct {
	id       uint64
	owner    *allocator
	buffer   renderer.Buffer
	cpu      []byte
	rng      Range
	reserved uint64
	valid    bool
}

// ID returns an identifier unique among every allocation of the allocator, replacements included.
func (a *Allocation) ID() uint64 {
	return a.id
}

// CPU returns the CPU mirror of the range. Writes to it become visible on the GPU after an upload.
func (a *Allocation) CPU() []byte {
	return a.cpu
}

// Buffer returns the GPU buffer holding the range.
func (a *Allocation) Buffer() renderer.Buffer {
	return a.buffer
}

// Range returns the byte range requested by the owner.
func (a *Allocation) Range() Range {
	return a.rng
}

// Offset returns the byte offset of the range.
func (a *Allocation) Offset() uint64 {
	return a.rng.Offset
}

// Size returns the requested size in bytes.
func (a *Allocation) Size() uint64 {
	return a.rng.Size
}

// Valid reports whether the allocation is still live. Freed and relocated allocations are invalid.
func (a *Allocation) Valid() bool {
	return a != nil && a.valid
}

// BufferWrite returns the write that uploads the whole CPU view of the allocation.
//
// Returns:
//   - renderer.BufferWrite: the write, padded to a multiple of four bytes
func (a *Allocation) BufferWrite() renderer.BufferWrite {
	n := (a.rng.Size + 3) &^ 3
	return renderer.BufferWrite{
		Buffer: a.buffer,
		Offset: a.rng.Offset,
		Data:   a.owner.mirror[a.rng.Offset : a.rng.Offset+n],
	}
}

// Relocation pairs an invalidated allocation with its replacement.
type Relocation struct {
	Old *Allocation
	New *Allocation
}

// Stats is a snapshot of the allocator's bookkeeping.
type Stats struct {
	Capacity    uint64
	Used        uint64
	Free        uint64
	Live        int
	Fragments   int
	LargestFree uint64
	Generation  uint64
}

// allocator is the implementation of the Allocator interface.
type allocator struct {
	mu     *sync.Mutex
	device renderer.Device

	label     string
	usage     renderer.BufferUsage
	alignment uint64
	capacity  uint64

	buffer renderer.Buffer
	mirror []byte

	// free is sorted by offset and never holds two adjacent ranges
	free []Range
	live map[uint64]*Allocation

	nextID     uint64
	generation uint64
}

// Allocator manages a GPU buffer and its CPU mirror, handing out disjoint byte ranges.
//
// Every live range starts at a multiple of the alignment, so it can be bound as a storage buffer range
// or with a dynamic offset.
type Allocator interface {
	// Buffer returns the GPU buffer currently managed by the allocator. It changes on Grow.
	//
	// Returns:
	//   - renderer.Buffer: the managed buffer
	Buffer() renderer.Buffer

	// Capacity returns the size of the managed buffer in bytes.
	//
	// Returns:
	//   - uint64: the capacity
	Capacity() uint64

	// Alignment returns the alignment of every allocation offset.
	//
	// Returns:
	//   - uint64: the alignment in bytes
	Alignment() uint64

	// Allocate reserves a range of at least size bytes using first fit over the free list.
	//
	// Parameters:
	//   - size: the number of bytes requested
	//
	// Returns:
	//   - *Allocation: the new allocation, its CPU view zeroed
	//   - error: ErrInvalidSize for a zero size, ErrOutOfMemory if no free range fits
	Allocate(size uint64) (*Allocation, error)

	// Deallocate returns ranges to the free list, coalescing neighbours. All allocations are checked before
	// any is freed, so a failing call frees nothing.
	//
	// Parameters:
	//   - allocs: the allocations to free
	//
	// Returns:
	//   - error: ErrForeignAllocation or ErrStaleAllocation
	Deallocate(allocs ...*Allocation) error

	// Upload schedules GPU writes for the CPU views of the given allocations.
	//
	// Parameters:
	//   - allocs: the allocations to upload
	//
	// Returns:
	//   - error: an error from the device or ErrStaleAllocation
	Upload(allocs ...*Allocation) error

	// Grow recreates the buffer with a larger capacity, copies the mirror and uploads every live range.
	// Offsets are preserved but every live allocation is replaced because the buffer changed.
	//
	// Parameters:
	//   - capacity: the new capacity, rounded up to the alignment
	//
	// Returns:
	//   - []Relocation: one entry per live allocation
	//   - error: ErrInvalidSize if capacity does not exceed the current one, or a device error
	Grow(capacity uint64) ([]Relocation, error)

	// Compact slides every live range towards the start of the buffer, leaving a single free range at the
	// end. Only allocations whose offset changed are replaced.
	//
	// Returns:
	//   - []Relocation: one entry per moved allocation, in offset order
	//   - error: a device error from the re-upload
	Compact() ([]Relocation, error)

	// Live returns the live allocations sorted by offset.
	//
	// Returns:
	//   - []*Allocation: the live allocations
	Live() []*Allocation

	// Stats returns a snapshot of the allocator's bookkeeping.
	//
	// Returns:
	//   - Stats: the snapshot
	Stats() Stats

	// Release frees the GPU buffer and invalidates every allocation.
	Release()
}

var _ Allocator = &allocator{}

// NewAllocator creates an allocator and its initial GPU buffer.
//
// Parameters:
//   - device: the device the buffer is created on
//   - opts: builder options
//
// Returns:
//   - Allocator: the allocator
//   - error: an error if the buffer could not be created
func NewAllocator(device renderer.Device, opts ...AllocatorBuilderOption) (Allocator, error) {
	if device == nil {
		panic("allocator: NewAllocator requires a non-nil Device")
	}
	a := &allocator{
		mu:        &sync.Mutex{},
		device:    device,
		label:     "Allocator",
		usage:     renderer.BufferUsageStorage | renderer.BufferUsageCopyDst | renderer.BufferUsageCopySrc,
		alignment: DefaultAlignment,
		capacity:  DefaultCapacity,
		live:      make(map[uint64]*Allocation),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.alignment < 4 || a.alignment&(a.alignment-1) != 0 {
		return nil, fmt.Errorf("%w: alignment %d must be a power of two of at least 4", ErrInvalidSize, a.alignment)
	}
	a.capacity = a.alignUp(max(a.capacity, a.alignment))

	buf, err := device.CreateBuffer(a.label, a.capacity, a.usage)
	if err != nil {
		return nil, fmt.Errorf("allocator %q: %w", a.label, err)
	}
	a.buffer = buf
	a.mirror = make([]byte, a.capacity)
	a.free = []Range{{Offset: 0, Size: a.capacity}}
	return a, nil
}

func (a *allocator) Buffer() renderer.Buffer {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buffer
}

func (a *allocator) Capacity() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.capacity
}

func (a *allocator) Alignment() uint64 {
	return a.alignment
}

func (a *allocator) Allocate(size uint64) (*Allocation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if size == 0 {
		return nil, ErrInvalidSize
	}
	if a.buffer == nil {
		return nil, renderer.ErrReleased
	}
	reserved := a.alignUp(size)
	for i, block := range a.free {
		if block.Size < reserved {
			continue
		}
		if block.Size == reserved {
			a.free = append(a.free[:i], a.free[i+1:]...)
		} else {
			a.free[i] = Range{Offset: block.Offset + reserved, Size: block.Size - reserved}
		}
		alloc := a.newAllocation(block.Offset, size, reserved)
		clear(alloc.cpu)
		common.Logger().Debug("allocation created", "allocator", a.label, "id", alloc.id, "offset", block.Offset, "size", size)
		return alloc, nil
	}
	return nil, fmt.Errorf("%w: %d bytes requested from %q (capacity %d, largest free %d)",
		ErrOutOfMemory, size, a.label, a.capacity, a.largestFree())
}

func (a *allocator) Deallocate(allocs ...*Allocation) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, alloc := range allocs {
		if err := a.check(alloc); err != nil {
			return err
		}
	}
	for _, alloc := range allocs {
		if !alloc.valid {
			// the same allocation listed twice
			continue
		}
		alloc.valid = false
		delete(a.live, alloc.id)
		a.release(Range{Offset: alloc.rng.Offset, Size: alloc.reserved})
		common.Logger().Debug("allocation freed", "allocator", a.label, "id", alloc.id, "offset", alloc.rng.Offset)
	}
	return nil
}

func (a *allocator) Upload(allocs ...*Allocation) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	writes := make([]renderer.BufferWrite, 0, len(allocs))
	for _, alloc := range allocs {
		if err := a.check(alloc); err != nil {
			return err
		}
		writes = append(writes, alloc.BufferWrite())
	}
	if len(writes) == 0 {
		return nil
	}
	return a.device.WriteBuffers(writes)
}

func (a *allocator) Grow(capacity uint64) ([]Relocation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	capacity = a.alignUp(capacity)
	if capacity <= a.capacity {
		return nil, fmt.Errorf("%w: capacity %d does not exceed %d", ErrInvalidSize, capacity, a.capacity)
	}
	buf, err := a.device.CreateBuffer(a.label, capacity, a.usage)
	if err != nil {
		return nil, fmt.Errorf("allocator %q: grow to %d: %w", a.label, capacity, err)
	}
	mirror := make([]byte, capacity)
	copy(mirror, a.mirror)

	old := a.buffer
	oldCapacity := a.capacity
	a.buffer = buf
	a.mirror = mirror
	a.capacity = capacity
	a.release(Range{Offset: oldCapacity, Size: capacity - oldCapacity})

	relocations := a.replace(a.sortedLive(), nil)
	if old != nil {
		old.Release()
	}
	common.Logger().Info("allocator grown", "allocator", a.label, "from", oldCapacity, "to", capacity, "relocated", len(relocations))
	return relocations, a.uploadLive()
}

func (a *allocator) Compact() ([]Relocation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	live := a.sortedLive()
	cursor := uint64(0)
	moved := make([]*Allocation, 0, len(live))
	targets := make(map[uint64]uint64, len(live))
	for _, alloc := range live {
		if alloc.rng.Offset != cursor {
			// ranges only move down, so copying in offset order never clobbers a range not yet moved
			copy(a.mirror[cursor:cursor+alloc.reserved], a.mirror[alloc.rng.Offset:alloc.rng.Offset+alloc.reserved])
			moved = append(moved, alloc)
			targets[alloc.id] = cursor
		}
		cursor += alloc.reserved
	}
	if len(moved) == 0 {
		return nil, nil
	}
	a.free = a.free[:0]
	if cursor < a.capacity {
		a.free = append(a.free, Range{Offset: cursor, Size: a.capacity - cursor})
	}

	relocations := a.replace(moved, targets)
	common.Logger().Debug("allocator compacted", "allocator", a.label, "moved", len(moved), "used", cursor)

	writes := make([]renderer.BufferWrite, 0, len(relocations))
	for _, r := range relocations {
		writes = append(writes, r.New.BufferWrite())
	}
	return relocations, a.device.WriteBuffers(writes)
}

func (a *allocator) Live() []*Allocation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sortedLive()
}

func (a *allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Stats{
		Capacity:    a.capacity,
		Live:        len(a.live),
		Fragments:   len(a.free),
		LargestFree: a.largestFree(),
		Generation:  a.generation,
	}
	for _, f := range a.free {
		s.Free += f.Size
	}
	s.Used = s.Capacity - s.Free
	return s
}

func (a *allocator) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for id, alloc := range a.live {
		alloc.valid = false
		delete(a.live, id)
	}
	if a.buffer != nil {
		a.buffer.Release()
		a.buffer = nil
	}
	a.mirror = nil
	a.free = nil
}

func (a *allocator) alignUp(n uint64) uint64 {
	return (n + a.alignment - 1) &^ (a.alignment - 1)
}

func (a *allocator) newAllocation(offset, size, reserved uint64) *Allocation {
	a.nextID++
	alloc := &Allocation{
		id:       a.nextID,
		owner:    a,
		buffer:   a.buffer,
		cpu:      a.mirror[offset : offset+size : offset+size],
		rng:      Range{Offset: offset, Size: size},
		reserved: reserved,
		valid:    true,
	}
	a.live[alloc.id] = alloc
	return alloc
}

// replace invalidates allocs and creates their successors. An allocation without an entry in targets keeps
// its offset.
func (a *allocator) replace(allocs []*Allocation, targets map[uint64]uint64) []Relocation {
	a.generation++
	relocations := make([]Relocation, 0, len(allocs))
	for _, old := range allocs {
		offset, ok := targets[old.id]
		if !ok {
			offset = old.rng.Offset
		}
		old.valid = false
		delete(a.live, old.id)
		relocations = append(relocations, Relocation{Old: old, New: a.newAllocation(offset, old.rng.Size, old.reserved)})
	}
	return relocations
}

func (a *allocator) check(alloc *Allocation) error {
	if alloc == nil {
		return ErrStaleAllocation
	}
	if alloc.owner != a {
		return ErrForeignAllocation
	}
	if !alloc.valid {
		return fmt.Errorf("%w: id %d", ErrStaleAllocation, alloc.id)
	}
	return nil
}

// release inserts r into the free list, merging it with adjacent free ranges.
func (a *allocator) release(r Range) {
	if r.Size == 0 {
		return
	}
	i := sort.Search(len(a.free), func(i int) bool { return a.free[i].Offset >= r.Offset })
	a.free = append(a.free, Range{})
	copy(a.free[i+1:], a.free[i:])
	a.free[i] = r

	if i+1 < len(a.free) && a.free[i].End() == a.free[i+1].Offset {
		a.free[i].Size += a.free[i+1].Size
		a.free = append(a.free[:i+1], a.free[i+2:]...)
	}
	if i > 0 && a.free[i-1].End() == a.free[i].Offset {
		a.free[i-1].Size += a.free[i].Size
		a.free = append(a.free[:i], a.free[i+1:]...)
	}
}

func (a *allocator) largestFree() uint64 {
	var largest uint64
	for _, f := range a.free {
		largest = max(largest, f.Size)
	}
	return largest
}

func (a *allocator) sortedLive() []*Allocation {
	out := make([]*Allocation, 0, len(a.live))
	for _, alloc := range a.live {
		out = append(out, alloc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].rng.Offset < out[j].rng.Offset })
	return out
}

func (a *allocator) uploadLive() error {
	live := a.sortedLive()
	if len(live) == 0 {
		return nil
	}
	writes := make([]renderer.BufferWrite, 0, len(live))
	for _, alloc := range live {
		writes = append(writes, alloc.BufferWrite())
	}
	return a.device.WriteBuffers(writes)
}
