package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_RECORDING VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

// VulkanCommandPool backs the command buffers allocated from it. Resetting it
// recycles all of them at once.
type VulkanCommandPool struct {
	context *VulkanContext
	Handle  vk.CommandPool
}

func NewVulkanCommandPool(context *VulkanContext) (*VulkanCommandPool, error) {
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(context.Device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(context.Device.LogicalDevice, &poolCreateInfo, context.Allocator, &pool); res != vk.Success {
		return nil, resultError(res, "creating command pool")
	}
	return &VulkanCommandPool{context: context, Handle: pool}, nil
}

func (p *VulkanCommandPool) Reset() error {
	if res := vk.ResetCommandPool(p.context.Device.LogicalDevice, p.Handle, 0); res != vk.Success {
		return resultError(res, "resetting command pool")
	}
	return nil
}

func (p *VulkanCommandPool) Release() {
	if p.Handle != nil {
		vk.DestroyCommandPool(p.context.Device.LogicalDevice, p.Handle, p.context.Allocator)
		p.Handle = nil
	}
}

type VulkanCommandBuffer struct {
	context *VulkanContext
	pool    *VulkanCommandPool
	Handle  vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState
	err   error
}

// NewVulkanCommandBuffer allocates a primary command buffer and begins recording.
func NewVulkanCommandBuffer(context *VulkanContext, pool *VulkanCommandPool) (*VulkanCommandBuffer, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool.Handle,
		CommandBufferCount: 1,
		Level:              vk.CommandBufferLevelPrimary,
	}
	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, handles); res != vk.Success {
		return nil, resultError(res, "allocating command buffer")
	}
	cb := &VulkanCommandBuffer{
		context: context,
		pool:    pool,
		Handle:  handles[0],
	}

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(cb.Handle, &beginInfo); res != vk.Success {
		cb.Release()
		return nil, resultError(res, "beginning command buffer")
	}
	cb.State = COMMAND_BUFFER_STATE_RECORDING
	return cb, nil
}

func (v *VulkanCommandBuffer) recording() bool {
	if v.State != COMMAND_BUFFER_STATE_RECORDING {
		if v.err == nil {
			v.err = errors.Newf("command recorded in state %d", v.State)
		}
		return false
	}
	return true
}

func (v *VulkanCommandBuffer) Close() error {
	if v.State != COMMAND_BUFFER_STATE_RECORDING {
		return errors.New("command buffer is not recording")
	}
	if res := vk.EndCommandBuffer(v.Handle); res != vk.Success {
		return resultError(res, "ending command buffer")
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return v.err
}

func (v *VulkanCommandBuffer) TransitionBarrier(r gpu.Resource, before, after gpu.ResourceState) {
	if !v.recording() {
		return
	}
	from, to := stateInfo(before), stateInfo(after)
	srcStage := vk.PipelineStageFlags(from.stage)
	srcAccess := vk.AccessFlags(from.access)

	switch res := r.(type) {
	case *VulkanBuffer:
		barrier := vk.BufferMemoryBarrier{
			SType:               vk.StructureTypeBufferMemoryBarrier,
			SrcAccessMask:       srcAccess,
			DstAccessMask:       vk.AccessFlags(to.access),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Buffer:              res.Handle,
			Offset:              0,
			Size:                vk.DeviceSize(vk.WholeSize),
		}
		vk.CmdPipelineBarrier(v.Handle, srcStage, vk.PipelineStageFlags(to.stage), 0, 0, nil, 1, []vk.BufferMemoryBarrier{barrier}, 0, nil)
	case *VulkanImage:
		oldLayout := res.layout
		if oldLayout == vk.ImageLayoutUndefined {
			// Nothing to preserve or wait for.
			srcStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
			srcAccess = 0
		}
		barrier := vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       srcAccess,
			DstAccessMask:       vk.AccessFlags(to.access),
			OldLayout:           oldLayout,
			NewLayout:           to.layout,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               res.Handle,
			SubresourceRange:    res.subresourceRange(),
		}
		vk.CmdPipelineBarrier(v.Handle, srcStage, vk.PipelineStageFlags(to.stage), 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
		res.layout = to.layout
	default:
		v.err = errors.Newf("barrier on a %T", r)
	}
}

func (v *VulkanCommandBuffer) CopyBufferRegion(dst gpu.Buffer, dstOffset uint64, src gpu.Buffer, srcOffset uint64, size uint64) {
	if !v.recording() {
		return
	}
	d, ok1 := dst.(*VulkanBuffer)
	s, ok2 := src.(*VulkanBuffer)
	if !ok1 || !ok2 {
		v.err = errors.New("buffer copy between foreign buffers")
		return
	}
	region := vk.BufferCopy{
		SrcOffset: vk.DeviceSize(srcOffset),
		DstOffset: vk.DeviceSize(dstOffset),
		Size:      vk.DeviceSize(size),
	}
	vk.CmdCopyBuffer(v.Handle, s.Handle, d.Handle, 1, []vk.BufferCopy{region})
}

func (v *VulkanCommandBuffer) CopyBufferToTexture(dst gpu.Texture, src gpu.Buffer, srcOffset uint64, rowPitch uint64) {
	if !v.recording() {
		return
	}
	img, ok1 := dst.(*VulkanImage)
	s, ok2 := src.(*VulkanBuffer)
	if !ok1 || !ok2 {
		v.err = errors.New("texture copy with foreign resources")
		return
	}
	texel := uint64(img.desc.Format.Stride())
	region := vk.BufferImageCopy{
		BufferOffset:      vk.DeviceSize(srcOffset),
		BufferRowLength:   uint32(rowPitch / texel),
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{},
		ImageExtent: vk.Extent3D{
			Width:  img.desc.Width,
			Height: img.desc.Height,
			Depth:  1,
		},
	}
	vk.CmdCopyBufferToImage(v.Handle, s.Handle, img.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

func (v *VulkanCommandBuffer) ClearTexture(t gpu.Texture, color [4]float32) {
	if !v.recording() {
		return
	}
	img, ok := t.(*VulkanImage)
	if !ok {
		v.err = errors.New("clear of a foreign texture")
		return
	}
	var value vk.ClearColorValue
	*(*[4]float32)(unsafe.Pointer(&value)) = color
	vk.CmdClearColorImage(v.Handle, img.Handle, vk.ImageLayoutTransferDstOptimal, &value, 1, []vk.ImageSubresourceRange{img.subresourceRange()})
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (v *VulkanCommandBuffer) Release() {
	if v.Handle != nil && v.pool.Handle != nil {
		vk.FreeCommandBuffers(v.context.Device.LogicalDevice, v.pool.Handle, 1, []vk.CommandBuffer{v.Handle})
	}
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}
