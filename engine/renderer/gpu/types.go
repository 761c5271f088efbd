package gpu

import "fmt"

type Format uint32

const (
	FormatUnknown Format = iota
	FormatR32G32B32Float
	FormatR32G32Float
	FormatR16Uint
	FormatR32Uint
	FormatR8G8B8A8Unorm
	FormatR8G8B8A8UnormSRGB
	FormatB8G8R8A8UnormSRGB
	FormatD32Float
)

// Stride is the size in bytes of one element of the format.
func (f Format) Stride() uint32 {
	switch f {
	case FormatR32G32B32Float:
		return 12
	case FormatR32G32Float:
		return 8
	case FormatR16Uint:
		return 2
	case FormatR32Uint, FormatR8G8B8A8Unorm, FormatR8G8B8A8UnormSRGB, FormatB8G8R8A8UnormSRGB, FormatD32Float:
		return 4
	}
	return 0
}

func (f Format) String() string {
	switch f {
	case FormatR32G32B32Float:
		return "R32G32B32_FLOAT"
	case FormatR32G32Float:
		return "R32G32_FLOAT"
	case FormatR16Uint:
		return "R16_UINT"
	case FormatR32Uint:
		return "R32_UINT"
	case FormatR8G8B8A8Unorm:
		return "R8G8B8A8_UNORM"
	case FormatR8G8B8A8UnormSRGB:
		return "R8G8B8A8_UNORM_SRGB"
	case FormatB8G8R8A8UnormSRGB:
		return "B8G8R8A8_UNORM_SRGB"
	case FormatD32Float:
		return "D32_FLOAT"
	}
	return fmt.Sprintf("Format(%d)", uint32(f))
}

type MemoryPool uint8

const (
	// Device-local memory, not host visible.
	MemoryPoolDefault MemoryPool = iota
	// Host-visible, write-combined memory used as a copy source.
	MemoryPoolUpload
	// Host-visible memory the device writes and the host reads back.
	MemoryPoolReadback
)

type ResourceState uint32

const (
	ResourceStateCommon ResourceState = iota
	ResourceStateCopyDest
	ResourceStateCopySource
	ResourceStateVertexAndConstantBuffer
	ResourceStateIndexBuffer
	ResourceStateGenericRead
	ResourceStateShaderResource
	ResourceStateRenderTarget
	ResourceStateDepthWrite
	ResourceStatePresent
)

func (s ResourceState) String() string {
	switch s {
	case ResourceStateCommon:
		return "COMMON"
	case ResourceStateCopyDest:
		return "COPY_DEST"
	case ResourceStateCopySource:
		return "COPY_SOURCE"
	case ResourceStateVertexAndConstantBuffer:
		return "VERTEX_AND_CONSTANT_BUFFER"
	case ResourceStateIndexBuffer:
		return "INDEX_BUFFER"
	case ResourceStateGenericRead:
		return "GENERIC_READ"
	case ResourceStateShaderResource:
		return "SHADER_RESOURCE"
	case ResourceStateRenderTarget:
		return "RENDER_TARGET"
	case ResourceStateDepthWrite:
		return "DEPTH_WRITE"
	case ResourceStatePresent:
		return "PRESENT"
	}
	return fmt.Sprintf("ResourceState(%d)", uint32(s))
}

type Topology uint8

const (
	TopologyTriangleList Topology = iota
)

type TextureUsage uint8

const (
	TextureUsageSampled TextureUsage = 1 << iota
	TextureUsageRenderTarget
	TextureUsageDepthStencil
)

type Dimensions struct {
	Width  uint32
	Height uint32
}

func (d Dimensions) Aspect() float32 {
	if d.Height == 0 {
		return 1
	}
	return float32(d.Width) / float32(d.Height)
}

func (d Dimensions) Empty() bool {
	return d.Width == 0 || d.Height == 0
}

type BufferDesc struct {
	Name         string
	Size         uint64
	Pool         MemoryPool
	InitialState ResourceState
}

type TextureDesc struct {
	Name         string
	Width        uint32
	Height       uint32
	Format       Format
	Usage        TextureUsage
	InitialState ResourceState
}
