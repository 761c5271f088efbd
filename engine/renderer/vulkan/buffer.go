package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
)

type VulkanBuffer struct {
	context *VulkanContext
	desc    gpu.BufferDesc
	Handle  vk.Buffer
	Memory  vk.DeviceMemory

	// Host visible buffers stay mapped from the first Map until Release.
	mapped []byte
}

func bufferUsage(pool gpu.MemoryPool) (vk.BufferUsageFlagBits, vk.MemoryPropertyFlagBits) {
	switch pool {
	case gpu.MemoryPoolUpload:
		return vk.BufferUsageTransferSrcBit, vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	case gpu.MemoryPoolReadback:
		return vk.BufferUsageTransferDstBit, vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	}
	return vk.BufferUsageTransferDstBit | vk.BufferUsageTransferSrcBit | vk.BufferUsageVertexBufferBit |
		vk.BufferUsageIndexBufferBit | vk.BufferUsageUniformBufferBit, vk.MemoryPropertyDeviceLocalBit
}

func NewVulkanBuffer(context *VulkanContext, desc gpu.BufferDesc) (*VulkanBuffer, error) {
	if desc.Size == 0 {
		return nil, errors.Newf("buffer %q has no size", desc.Name)
	}
	usage, props := bufferUsage(desc.Pool)

	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
		return nil, resultError(res, "creating buffer %q", desc.Name)
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, handle, &reqs)
	reqs.Deref()

	memory, err := context.allocate(reqs, vk.MemoryPropertyFlags(props))
	if err != nil {
		vk.DestroyBuffer(context.Device.LogicalDevice, handle, context.Allocator)
		return nil, err
	}
	if res := vk.BindBufferMemory(context.Device.LogicalDevice, handle, memory, 0); res != vk.Success {
		vk.FreeMemory(context.Device.LogicalDevice, memory, context.Allocator)
		vk.DestroyBuffer(context.Device.LogicalDevice, handle, context.Allocator)
		return nil, resultError(res, "binding memory of buffer %q", desc.Name)
	}

	return &VulkanBuffer{
		context: context,
		desc:    desc,
		Handle:  handle,
		Memory:  memory,
	}, nil
}

func (b *VulkanBuffer) Size() uint64 {
	return b.desc.Size
}

func (b *VulkanBuffer) Map() ([]byte, error) {
	if b.desc.Pool == gpu.MemoryPoolDefault {
		return nil, errors.Newf("buffer %q is not host visible", b.desc.Name)
	}
	if b.mapped != nil {
		return b.mapped, nil
	}
	var ptr unsafe.Pointer
	if res := vk.MapMemory(b.context.Device.LogicalDevice, b.Memory, 0, vk.DeviceSize(b.desc.Size), 0, &ptr); res != vk.Success {
		return nil, resultError(res, "mapping buffer %q", b.desc.Name)
	}
	b.mapped = unsafe.Slice((*byte)(ptr), b.desc.Size)
	return b.mapped, nil
}

// Unmap is a no-op; coherent memory needs no flush and the mapping is kept.
func (b *VulkanBuffer) Unmap() {}

func (b *VulkanBuffer) Release() {
	device := b.context.Device.LogicalDevice
	if b.mapped != nil {
		vk.UnmapMemory(device, b.Memory)
		b.mapped = nil
	}
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(device, b.Handle, b.context.Allocator)
		b.Handle = vk.NullBuffer
	}
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(device, b.Memory, b.context.Allocator)
		b.Memory = vk.NullDeviceMemory
	}
}
