package gputest

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
)

type stateful interface {
	currentState() *gpu.ResourceState
}

type Buffer struct {
	d        *Device
	desc     gpu.BufferDesc
	state    gpu.ResourceState
	data     []byte
	mapped   bool
	released bool
}

func (b *Buffer) currentState() *gpu.ResourceState {
	return &b.state
}

func (b *Buffer) Size() uint64 {
	return b.desc.Size
}

func (b *Buffer) Desc() gpu.BufferDesc {
	return b.desc
}

func (b *Buffer) State() gpu.ResourceState {
	return b.state
}

// Bytes exposes the simulated contents, including device-local memory.
func (b *Buffer) Bytes() []byte {
	return b.data
}

func (b *Buffer) Map() ([]byte, error) {
	if b.desc.Pool == gpu.MemoryPoolDefault {
		return nil, errors.Newf("buffer %q is not host visible", b.desc.Name)
	}
	b.mapped = true
	return b.data, nil
}

func (b *Buffer) Unmap() {
	b.mapped = false
}

func (b *Buffer) Mapped() bool {
	return b.mapped
}

func (b *Buffer) Release() {
	b.d.release(KindBuffer, &b.released)
}

type Texture struct {
	d        *Device
	desc     gpu.TextureDesc
	state    gpu.ResourceState
	data     []byte
	owned    bool
	released bool

	Clears int
}

func (t *Texture) currentState() *gpu.ResourceState {
	return &t.state
}

func (t *Texture) Desc() gpu.TextureDesc {
	return t.desc
}

func (t *Texture) State() gpu.ResourceState {
	return t.state
}

func (t *Texture) Bytes() []byte {
	return t.data
}

func (t *Texture) Released() bool {
	return t.released
}

// Release on a swapchain buffer is a no-op; the swapchain owns it.
func (t *Texture) Release() {
	if t.owned {
		return
	}
	t.d.release(KindTexture, &t.released)
}

type Swapchain struct {
	d        *Device
	format   gpu.Format
	dims     gpu.Dimensions
	buffers  []*Texture
	current  int
	presents int
	resizes  int
	released bool
}

func (s *Swapchain) build(dims gpu.Dimensions) {
	s.dims = dims
	for i := range s.buffers {
		if s.buffers[i] != nil {
			s.buffers[i].released = true
		}
		t := newTexture(s.d, gpu.TextureDesc{
			Name:         "backbuffer",
			Width:        dims.Width,
			Height:       dims.Height,
			Format:       s.format,
			Usage:        gpu.TextureUsageRenderTarget,
			InitialState: gpu.ResourceStatePresent,
		})
		t.owned = true
		s.buffers[i] = t
	}
	s.current = 0
}

func (s *Swapchain) BufferCount() int {
	return len(s.buffers)
}

func (s *Swapchain) Buffer(index int) (gpu.Texture, error) {
	if index < 0 || index >= len(s.buffers) {
		return nil, errors.Newf("swapchain buffer %d out of range", index)
	}
	return s.buffers[index], nil
}

func (s *Swapchain) Resize(dims gpu.Dimensions) error {
	if s.d.shouldFail(KindResize) {
		return errors.Wrap(ErrInjected, "resize")
	}
	s.build(dims)
	s.resizes++
	return nil
}

func (s *Swapchain) Acquire() (int, error) {
	return s.current, nil
}

// SetCurrent makes the next Acquire return index, in range or not.
func (s *Swapchain) SetCurrent(index int) {
	s.current = index
}

func (s *Swapchain) Present() error {
	if s.d.shouldFail(KindPresent) {
		return errors.Wrap(ErrInjected, "present")
	}
	s.current = (s.current + 1) % len(s.buffers)
	s.presents++
	return nil
}

func (s *Swapchain) Format() gpu.Format {
	return s.format
}

func (s *Swapchain) Dimensions() gpu.Dimensions {
	return s.dims
}

func (s *Swapchain) Presents() int {
	return s.presents
}

func (s *Swapchain) Resizes() int {
	return s.resizes
}

func (s *Swapchain) Release() {
	s.d.release(KindSwapchain, &s.released)
}
