package memory

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-core/engine/core"
	"github.com/spaghettifunk/anima-core/engine/math"
	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
)

const (
	// Placement alignment of constant buffer data, also safe for vertex and index data.
	DefaultAlignment uint64 = 256
	DefaultCapacity  uint64 = 16 << 20
)

type AllocatorDesc struct {
	Name         string
	Capacity     uint64
	Alignment    uint64
	Pool         gpu.MemoryPool
	InitialState gpu.ResourceState
}

// SubAllocation is a byte range of the allocator's buffer.
type SubAllocation struct {
	Buffer gpu.Buffer
	Offset uint64
	Size   uint64
}

// End is the first byte past the range.
func (s SubAllocation) End() uint64 {
	return s.Offset + s.Size
}

// LinearAllocator bump-allocates aligned ranges out of one committed buffer.
// Ranges are never freed individually; Release destroys the whole buffer.
// Not safe for concurrent use.
type LinearAllocator struct {
	name      string
	buffer    gpu.Buffer
	pool      gpu.MemoryPool
	capacity  uint64
	alignment uint64
	offset    uint64
}

func NewLinearAllocator(device gpu.Device, desc AllocatorDesc) (*LinearAllocator, error) {
	if desc.Alignment == 0 {
		desc.Alignment = DefaultAlignment
	}
	if !math.IsPowerOfTwo(desc.Alignment) {
		return nil, errors.Mark(errors.Newf("alignment %d is not a power of two", desc.Alignment), core.ErrInvalidArgument)
	}
	if desc.Capacity == 0 {
		desc.Capacity = DefaultCapacity
	}
	capacity := math.AlignUp(desc.Capacity, desc.Alignment)

	buffer, err := device.CreateBuffer(gpu.BufferDesc{
		Name:         desc.Name,
		Size:         capacity,
		Pool:         desc.Pool,
		InitialState: desc.InitialState,
	})
	if err != nil {
		err = core.Wrap(err, core.ErrDeviceResourceExhausted, "creating %d byte buffer for allocator %q", capacity, desc.Name)
		core.LogError(err.Error())
		return nil, err
	}
	core.LogDebug("linear allocator %q: %d bytes, alignment %d", desc.Name, capacity, desc.Alignment)

	return &LinearAllocator{
		name:      desc.Name,
		buffer:    buffer,
		pool:      desc.Pool,
		capacity:  capacity,
		alignment: desc.Alignment,
	}, nil
}

// SubAllocate reserves size bytes rounded up to the alignment. On failure the
// offset is left untouched, so a failed request can be repeated with the same result.
func (a *LinearAllocator) SubAllocate(size uint64) (SubAllocation, error) {
	if size == 0 {
		return SubAllocation{}, errors.Mark(errors.Newf("allocator %q: zero sized sub-allocation", a.name), core.ErrInvalidArgument)
	}
	aligned := math.AlignUp(size, a.alignment)
	if aligned < size || a.offset+aligned > a.capacity || a.offset+aligned < a.offset {
		return SubAllocation{}, errors.Mark(
			errors.Newf("allocator %q: %d bytes requested, %d of %d remaining", a.name, aligned, a.capacity-a.offset, a.capacity),
			core.ErrOutOfCapacity)
	}
	s := SubAllocation{
		Buffer: a.buffer,
		Offset: a.offset,
		Size:   aligned,
	}
	a.offset += aligned
	return s, nil
}

// Write copies data into the start of s through a host mapping of the buffer.
func (a *LinearAllocator) Write(s SubAllocation, data []byte) error {
	if s.Buffer != a.buffer {
		return errors.Mark(errors.Newf("allocator %q: sub-allocation belongs to another buffer", a.name), core.ErrInvalidArgument)
	}
	if uint64(len(data)) > s.Size {
		return errors.Mark(errors.Newf("allocator %q: %d bytes do not fit a %d byte range", a.name, len(data), s.Size), core.ErrInvalidArgument)
	}
	mapped, err := a.buffer.Map()
	if err != nil {
		return errors.Wrapf(err, "mapping allocator %q", a.name)
	}
	defer a.buffer.Unmap()
	copy(mapped[s.Offset:s.Offset+uint64(len(data))], data)
	return nil
}

func (a *LinearAllocator) Name() string {
	return a.name
}

func (a *LinearAllocator) Buffer() gpu.Buffer {
	return a.buffer
}

func (a *LinearAllocator) Offset() uint64 {
	return a.offset
}

func (a *LinearAllocator) Capacity() uint64 {
	return a.capacity
}

func (a *LinearAllocator) Alignment() uint64 {
	return a.alignment
}

func (a *LinearAllocator) Remaining() uint64 {
	return a.capacity - a.offset
}

func (a *LinearAllocator) Release() {
	if a.buffer != nil {
		a.buffer.Release()
		a.buffer = nil
	}
}
