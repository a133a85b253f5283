package allocator

import (
	"math/rand"
	"testing"

	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAllocator(t *testing.T, capacity uint64) (*renderer.HeadlessDevice, Allocator) {
	t.Helper()
	d := renderer.NewHeadlessDevice()
	a, err := NewAllocator(d, WithLabel("test"), WithCapacity(capacity))
	require.NoError(t, err)
	return d, a
}

func assertDisjoint(t *testing.T, a Allocator) {
	t.Helper()
	live := a.Live()
	for i, x := range live {
		assert.Zero(t, x.Offset()%a.Alignment(), "allocation %d is misaligned", x.ID())
		assert.LessOrEqual(t, x.Range().End(), a.Capacity())
		for _, y := range live[i+1:] {
			assert.False(t, x.Range().Overlaps(y.Range()), "allocations %d and %d overlap", x.ID(), y.ID())
		}
	}
}

func TestAllocateDeallocateDisjoint(t *testing.T) {
	_, a := newTestAllocator(t, 16*1024)
	rng := rand.New(rand.NewSource(7))

	var live []*Allocation
	for step := 0; step < 500; step++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			i := rng.Intn(len(live))
			require.NoError(t, a.Deallocate(live[i]))
			live = append(live[:i], live[i+1:]...)
		} else {
			alloc, err := a.Allocate(uint64(1 + rng.Intn(700)))
			if err != nil {
				assert.ErrorIs(t, err, ErrOutOfMemory)
				continue
			}
			live = append(live, alloc)
		}
		assertDisjoint(t, a)
	}

	stats := a.Stats()
	assert.Equal(t, len(live), stats.Live)
	assert.Equal(t, stats.Capacity, stats.Used+stats.Free)

	require.NoError(t, a.Deallocate(live...))
	stats = a.Stats()
	assert.Equal(t, uint64(0), stats.Used)
	assert.Equal(t, 1, stats.Fragments, "freeing everything coalesces into one range")
}

func TestFirstFitReuseAndCoalescing(t *testing.T) {
	_, a := newTestAllocator(t, 1024)

	x, err := a.Allocate(128)
	require.NoError(t, err)
	y, err := a.Allocate(256)
	require.NoError(t, err)
	z, err := a.Allocate(100)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 256, 512}, []uint64{x.Offset(), y.Offset(), z.Offset()})

	require.NoError(t, a.Deallocate(y))
	reused, err := a.Allocate(200)
	require.NoError(t, err)
	assert.Equal(t, uint64(256), reused.Offset(), "first fit reuses the hole")

	require.NoError(t, a.Deallocate(x, reused))
	assert.Equal(t, 2, a.Stats().Fragments)
	wide, err := a.Allocate(512)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), wide.Offset(), "neighbouring holes are merged")

	_, err = a.Allocate(1024)
	assert.ErrorIs(t, err, ErrOutOfMemory)
	_, err = a.Allocate(0)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestDeallocateErrors(t *testing.T) {
	_, a := newTestAllocator(t, 1024)
	_, other := newTestAllocator(t, 1024)

	mine, err := a.Allocate(64)
	require.NoError(t, err)
	theirs, err := other.Allocate(64)
	require.NoError(t, err)

	tests := []struct {
		name   string
		allocs []*Allocation
		want   error
	}{
		{name: "foreign", allocs: []*Allocation{theirs}, want: ErrForeignAllocation},
		{name: "nil", allocs: []*Allocation{nil}, want: ErrStaleAllocation},
		{name: "mixed batch fails as a whole", allocs: []*Allocation{mine, theirs}, want: ErrForeignAllocation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, a.Deallocate(tt.allocs...), tt.want)
		})
	}
	assert.True(t, mine.Valid(), "a failed batch frees nothing")

	require.NoError(t, a.Deallocate(mine))
	assert.False(t, mine.Valid())
	assert.ErrorIs(t, a.Deallocate(mine), ErrStaleAllocation)
}

func TestUploadMirrorsCPUView(t *testing.T) {
	d, a := newTestAllocator(t, 1024)

	alloc, err := a.Allocate(6)
	require.NoError(t, err)
	copy(alloc.CPU(), []byte{1, 2, 3, 4, 5, 6})
	require.NoError(t, a.Upload(alloc))

	data := d.BufferData(a.Buffer())
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 0, 0}, data[alloc.Offset():alloc.Offset()+8])
	assert.Len(t, alloc.CPU(), 6)
}

func TestGrowRelocatesEveryAllocation(t *testing.T) {
	d, a := newTestAllocator(t, 512)

	x, err := a.Allocate(128)
	require.NoError(t, err)
	y, err := a.Allocate(128)
	require.NoError(t, err)
	copy(x.CPU(), []byte{9, 9, 9, 9})
	copy(y.CPU(), []byte{7, 7, 7, 7})
	_, err = a.Allocate(256)
	require.ErrorIs(t, err, ErrOutOfMemory)

	oldBuffer := a.Buffer()
	relocations, err := a.Grow(2048)
	require.NoError(t, err)
	require.Len(t, relocations, 2)
	assert.True(t, oldBuffer.Released())
	assert.Equal(t, uint64(2048), a.Capacity())

	for _, r := range relocations {
		assert.False(t, r.Old.Valid())
		assert.True(t, r.New.Valid())
		assert.Equal(t, r.Old.Offset(), r.New.Offset())
		assert.Same(t, a.Buffer(), r.New.Buffer())
		assert.Equal(t, r.Old.CPU(), r.New.CPU())
	}
	gpu := d.BufferData(a.Buffer())
	assert.Equal(t, []byte{9, 9, 9, 9}, gpu[0:4], "grow re-uploads live ranges")
	assert.Equal(t, []byte{7, 7, 7, 7}, gpu[256:260])

	big, err := a.Allocate(1024)
	require.NoError(t, err)
	assert.Equal(t, uint64(512), big.Offset())
	assertDisjoint(t, a)

	_, err = a.Grow(1024)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestCompactSlidesRangesDown(t *testing.T) {
	d, a := newTestAllocator(t, 2048)

	allocs := make([]*Allocation, 4)
	for i := range allocs {
		var err error
		allocs[i], err = a.Allocate(64)
		require.NoError(t, err)
		allocs[i].CPU()[0] = byte(i + 1)
	}
	require.NoError(t, a.Deallocate(allocs[0], allocs[2]))

	relocations, err := a.Compact()
	require.NoError(t, err)
	require.Len(t, relocations, 2)
	assert.Same(t, allocs[1], relocations[0].Old)
	assert.Equal(t, uint64(0), relocations[0].New.Offset())
	assert.Same(t, allocs[3], relocations[1].Old)
	assert.Equal(t, uint64(256), relocations[1].New.Offset())

	assert.Equal(t, byte(2), relocations[0].New.CPU()[0])
	assert.Equal(t, byte(4), relocations[1].New.CPU()[0])
	gpu := d.BufferData(a.Buffer())
	assert.Equal(t, byte(2), gpu[0])
	assert.Equal(t, byte(4), gpu[256])

	stats := a.Stats()
	assert.Equal(t, 1, stats.Fragments)
	assert.Equal(t, uint64(512), stats.Used)

	again, err := a.Compact()
	require.NoError(t, err)
	assert.Empty(t, again, "a compact buffer has nothing to move")
}

func TestNewAllocatorOptions(t *testing.T) {
	d := renderer.NewHeadlessDevice()
	_, err := NewAllocator(d, WithAlignment(3))
	assert.ErrorIs(t, err, ErrInvalidSize)

	a, err := NewAllocator(d, WithAlignment(16), WithCapacity(40), WithUsage(renderer.BufferUsageUniform))
	require.NoError(t, err)
	assert.Equal(t, uint64(48), a.Capacity())
	assert.True(t, a.Buffer().Usage().Has(renderer.BufferUsageUniform|renderer.BufferUsageCopyDst))

	a.Release()
	_, err = a.Allocate(16)
	assert.ErrorIs(t, err, renderer.ErrReleased)
	assert.Panics(t, func() { _, _ = NewAllocator(nil) })
}
