// Package gpu describes the device capabilities the renderer core relies on.
// Backends implement these interfaces; the core never talks to a graphics API directly.
package gpu

// Resource is anything a transition barrier can target.
type Resource interface {
	Release()
}

type Buffer interface {
	Resource
	Size() uint64
	// Map returns a host view over the whole buffer. Only upload and readback buffers can be mapped.
	Map() ([]byte, error)
	Unmap()
}

type Texture interface {
	Resource
	Desc() TextureDesc
}

// View is a render target or depth stencil view bound to a texture.
type View interface {
	Release()
}

// Fence is a monotonically increasing 64-bit counter advanced by the queue.
type Fence interface {
	// Completed returns the highest value the device has reached.
	Completed() uint64
	// Wait blocks until Completed() >= value.
	Wait(value uint64) error
	Release()
}

// CommandAllocator backs the memory of the command lists recorded from it.
type CommandAllocator interface {
	// Reset reclaims the memory. Every list recorded from it must have finished executing.
	Reset() error
	Release()
}

// CommandList records device work. A list is created open and must be closed before execution.
type CommandList interface {
	Close() error
	TransitionBarrier(r Resource, before, after ResourceState)
	CopyBufferRegion(dst Buffer, dstOffset uint64, src Buffer, srcOffset uint64, size uint64)
	// CopyBufferToTexture copies a tightly laid out RGBA8 image whose rows are rowPitch bytes apart.
	CopyBufferToTexture(dst Texture, src Buffer, srcOffset uint64, rowPitch uint64)
	// ClearTexture fills a texture in the copy destination state with a color.
	ClearTexture(t Texture, color [4]float32)
	Release()
}

type Queue interface {
	Execute(lists ...CommandList) error
	// Signal sets fence to value once all previously executed work has finished.
	Signal(f Fence, value uint64) error
}

// Swapchain is a set of presentable buffers bound to a window surface.
type Swapchain interface {
	BufferCount() int
	Buffer(index int) (Texture, error)
	Resize(dims Dimensions) error
	// Acquire returns the index of the buffer to render into next.
	Acquire() (int, error)
	Present() error
	Format() Format
	Release()
}

type Device interface {
	Queue() Queue
	CreateFence(initial uint64) (Fence, error)
	CreateCommandAllocator() (CommandAllocator, error)
	CreateCommandList(a CommandAllocator) (CommandList, error)
	CreateBuffer(desc BufferDesc) (Buffer, error)
	CreateTexture(desc TextureDesc) (Texture, error)
	CreateSwapchain(dims Dimensions, bufferCount int, format Format) (Swapchain, error)
	CreateRenderTargetView(t Texture, slot int) (View, error)
	CreateDepthStencilView(t Texture) (View, error)
	// TexturePitchAlignment is the row pitch alignment for buffer to texture copies.
	TexturePitchAlignment() uint64
}
