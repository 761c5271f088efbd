package memory

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-core/engine/core"
	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
	"github.com/spaghettifunk/anima-core/engine/renderer/gpu/gputest"
)

func newUploadAllocator(t *testing.T, dev *gputest.Device, capacity, alignment uint64) *LinearAllocator {
	t.Helper()
	a, err := NewLinearAllocator(dev, AllocatorDesc{
		Name:      "upload",
		Capacity:  capacity,
		Alignment: alignment,
		Pool:      gpu.MemoryPoolUpload,
	})
	require.NoError(t, err)
	return a
}

func TestSubAllocateAlignsAndAdvances(t *testing.T) {
	dev := gputest.NewDevice()
	a := newUploadAllocator(t, dev, 4096, 256)

	first, err := a.SubAllocate(100)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), first.Offset)
	assert.Equal(t, uint64(256), first.Size)

	second, err := a.SubAllocate(300)
	require.NoError(t, err)
	assert.Equal(t, uint64(256), second.Offset)
	assert.Equal(t, uint64(512), second.Size)
	assert.Equal(t, uint64(768), a.Offset())
	assert.Equal(t, a.Buffer(), second.Buffer)
}

func TestSubAllocationsAreDisjointAndAligned(t *testing.T) {
	dev := gputest.NewDevice()
	a := newUploadAllocator(t, dev, 1<<16, 256)

	var prev SubAllocation
	sizes := []uint64{1, 255, 256, 257, 1000, 4096, 3}
	for i, size := range sizes {
		s, err := a.SubAllocate(size)
		require.NoError(t, err)
		assert.Zero(t, s.Offset%256, "offset %d not aligned", s.Offset)
		assert.GreaterOrEqual(t, s.Size, size)
		assert.LessOrEqual(t, s.End(), a.Capacity())
		if i > 0 {
			assert.GreaterOrEqual(t, s.Offset, prev.End())
		}
		prev = s
	}
}

func TestCapacityIsAlignedUp(t *testing.T) {
	dev := gputest.NewDevice()
	a := newUploadAllocator(t, dev, 1000, 256)
	assert.Equal(t, uint64(1024), a.Capacity())
	assert.Equal(t, uint64(1024), a.Buffer().Size())
}

func TestSubAllocateExactFit(t *testing.T) {
	dev := gputest.NewDevice()
	a := newUploadAllocator(t, dev, 1024, 256)

	s, err := a.SubAllocate(1024)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), s.Offset)
	assert.Equal(t, uint64(0), a.Remaining())
}

func TestOutOfCapacityLeavesOffsetUnchanged(t *testing.T) {
	dev := gputest.NewDevice()
	a := newUploadAllocator(t, dev, 1024, 256)

	_, err := a.SubAllocate(512)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = a.SubAllocate(600)
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrOutOfCapacity))
		assert.Equal(t, uint64(512), a.Offset())
	}

	s, err := a.SubAllocate(512)
	require.NoError(t, err)
	assert.Equal(t, uint64(512), s.Offset)
}

func TestSubAllocateRejectsZeroSize(t *testing.T) {
	dev := gputest.NewDevice()
	a := newUploadAllocator(t, dev, 1024, 256)

	_, err := a.SubAllocate(0)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
	assert.Equal(t, uint64(0), a.Offset())
}

func TestNewLinearAllocatorErrors(t *testing.T) {
	dev := gputest.NewDevice()

	_, err := NewLinearAllocator(dev, AllocatorDesc{Name: "bad", Capacity: 1024, Alignment: 48})
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))

	dev.FailNext(gputest.KindBuffer, 1)
	_, err = NewLinearAllocator(dev, AllocatorDesc{Name: "exhausted", Capacity: 1024})
	assert.True(t, errors.Is(err, core.ErrDeviceResourceExhausted))
	assert.True(t, errors.Is(err, gputest.ErrInjected))
}

func TestDefaults(t *testing.T) {
	dev := gputest.NewDevice()
	a, err := NewLinearAllocator(dev, AllocatorDesc{Name: "defaults", Pool: gpu.MemoryPoolUpload})
	require.NoError(t, err)
	assert.Equal(t, DefaultCapacity, a.Capacity())
	assert.Equal(t, DefaultAlignment, a.Alignment())
}

func TestWriteCopiesIntoRange(t *testing.T) {
	dev := gputest.NewDevice()
	a := newUploadAllocator(t, dev, 1024, 256)

	_, err := a.SubAllocate(10)
	require.NoError(t, err)
	s, err := a.SubAllocate(4)
	require.NoError(t, err)

	require.NoError(t, a.Write(s, []byte{1, 2, 3, 4}))
	buf := a.Buffer().(*gputest.Buffer)
	assert.Equal(t, []byte{1, 2, 3, 4}, buf.Bytes()[256:260])
	assert.False(t, buf.Mapped())

	err = a.Write(s, make([]byte, 257))
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
}

func TestWriteToDeviceLocalFails(t *testing.T) {
	dev := gputest.NewDevice()
	a, err := NewLinearAllocator(dev, AllocatorDesc{Name: "geometry", Capacity: 1024, Pool: gpu.MemoryPoolDefault})
	require.NoError(t, err)

	s, err := a.SubAllocate(4)
	require.NoError(t, err)
	assert.Error(t, a.Write(s, []byte{1}))
}

func TestReleaseDestroysBuffer(t *testing.T) {
	dev := gputest.NewDevice()
	a := newUploadAllocator(t, dev, 1024, 256)
	assert.Equal(t, 1, dev.Live(gputest.KindBuffer))

	a.Release()
	a.Release()
	assert.Equal(t, 0, dev.Live(gputest.KindBuffer))
	assert.Empty(t, dev.Violations())
}
