package vulkan

import (
	"math"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-core/engine/core"
	amath "github.com/spaghettifunk/anima-core/engine/math"
	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
)

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

type VulkanSwapchain struct {
	context *VulkanContext
	queue   *VulkanQueue

	ImageFormat vk.SurfaceFormat
	Handle      vk.Swapchain
	Extent      vk.Extent2D
	Images      []*VulkanImage

	requested     gpu.Format
	bufferCount   int
	frames        [VULKAN_MAX_FRAMES_IN_FLIGHT]frameSync
	currentFrame  int
	acquiredIndex int
}

func SwapchainCreate(context *VulkanContext, queue *VulkanQueue, dims gpu.Dimensions, bufferCount int, format gpu.Format) (*VulkanSwapchain, error) {
	if bufferCount < 1 {
		return nil, core.Fail(core.ErrInvalidArgument, "swapchain needs at least one buffer, got %d", bufferCount)
	}
	sc := &VulkanSwapchain{
		context:       context,
		queue:         queue,
		requested:     format,
		bufferCount:   bufferCount,
		acquiredIndex: -1,
	}
	if err := sc.createSemaphores(); err != nil {
		return nil, err
	}
	if err := sc.create(dims, nil); err != nil {
		sc.destroySemaphores()
		return nil, err
	}
	return sc, nil
}

func (vs *VulkanSwapchain) createSemaphores() error {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	for i := range vs.frames {
		for _, s := range []*vk.Semaphore{&vs.frames[i].imageAvailable, &vs.frames[i].renderComplete} {
			if res := vk.CreateSemaphore(vs.context.Device.LogicalDevice, &semaphoreCreateInfo, vs.context.Allocator, s); res != vk.Success {
				vs.destroySemaphores()
				return resultError(res, "creating swapchain semaphore")
			}
		}
	}
	return nil
}

func (vs *VulkanSwapchain) destroySemaphores() {
	for i := range vs.frames {
		for _, s := range []*vk.Semaphore{&vs.frames[i].imageAvailable, &vs.frames[i].renderComplete} {
			if *s != vk.NullSemaphore {
				vk.DestroySemaphore(vs.context.Device.LogicalDevice, *s, vs.context.Allocator)
				*s = vk.NullSemaphore
			}
		}
	}
}

// chooseFormat prefers the requested format, then sRGB BGRA, then whatever the surface lists first.
func chooseFormat(formats []vk.SurfaceFormat, requested gpu.Format) vk.SurfaceFormat {
	want := toVkFormat(requested)
	for _, f := range formats {
		if f.Format == want && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	for _, f := range formats {
		if f.Format == vk.FormatB8g8r8a8Srgb && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	return formats[0]
}

func (vs *VulkanSwapchain) create(dims gpu.Dimensions, old vk.Swapchain) error {
	context := vs.context
	support := &context.Device.SwapchainSupport
	if len(support.Formats) == 0 {
		return errors.New("surface reports no formats")
	}
	vs.ImageFormat = chooseFormat(support.Formats, vs.requested)

	presentMode := vk.PresentModeFifo
	for _, mode := range support.PresentModes {
		if mode == vk.PresentModeMailbox {
			presentMode = mode
			break
		}
	}

	extent := vk.Extent2D{Width: dims.Width, Height: dims.Height}
	if support.Capabilities.CurrentExtent.Width != math.MaxUint32 {
		extent = support.Capabilities.CurrentExtent
	}
	// Clamp to the value allowed by the GPU.
	minExtent := support.Capabilities.MinImageExtent
	maxExtent := support.Capabilities.MaxImageExtent
	extent.Width = amath.Clamp(extent.Width, minExtent.Width, maxExtent.Width)
	extent.Height = amath.Clamp(extent.Height, minExtent.Height, maxExtent.Height)

	imageCount := max(uint32(vs.bufferCount), support.Capabilities.MinImageCount)
	if support.Capabilities.MaxImageCount > 0 && imageCount > support.Capabilities.MaxImageCount {
		imageCount = support.Capabilities.MaxImageCount
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      vs.ImageFormat.Format,
		ImageColorSpace:  vs.ImageFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}

	// Setup the queue family indices
	if context.Device.GraphicsQueueIndex != context.Device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(context.Device.GraphicsQueueIndex),
			uint32(context.Device.PresentQueueIndex),
		}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(context.Device.LogicalDevice, &swapchainCreateInfo, context.Allocator, &handle); res != vk.Success {
		return resultError(res, "creating swapchain %dx%d", extent.Width, extent.Height)
	}

	var count uint32
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, handle, &count, nil); res != vk.Success {
		vk.DestroySwapchain(context.Device.LogicalDevice, handle, context.Allocator)
		return resultError(res, "counting swapchain images")
	}
	handles := make([]vk.Image, count)
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, handle, &count, handles); res != vk.Success {
		vk.DestroySwapchain(context.Device.LogicalDevice, handle, context.Allocator)
		return resultError(res, "getting swapchain images")
	}
	if int(count) != vs.bufferCount {
		// The presentation engine is free to hand out more images than asked for.
		core.LogWarn("swapchain created %d images, %d requested", count, vs.bufferCount)
	}

	format := fromVkFormat(vs.ImageFormat.Format)
	vs.Images = make([]*VulkanImage, count)
	for i, h := range handles {
		vs.Images[i] = &VulkanImage{
			context: context,
			desc: gpu.TextureDesc{
				Name:   "back buffer",
				Width:  extent.Width,
				Height: extent.Height,
				Format: format,
				Usage:  gpu.TextureUsageRenderTarget,
			},
			Handle: h,
			format: vs.ImageFormat.Format,
			layout: vk.ImageLayoutUndefined,
		}
	}
	vs.Handle = handle
	vs.Extent = extent
	vs.acquiredIndex = -1
	core.LogInfo("Swapchain created: %dx%d, %d images, %s.", extent.Width, extent.Height, count, format)
	return nil
}

func (vs *VulkanSwapchain) BufferCount() int {
	return len(vs.Images)
}

func (vs *VulkanSwapchain) Buffer(index int) (gpu.Texture, error) {
	if index < 0 || index >= len(vs.Images) {
		return nil, core.Fail(core.ErrInvalidArgument, "swapchain buffer %d out of range [0, %d)", index, len(vs.Images))
	}
	return vs.Images[index], nil
}

func (vs *VulkanSwapchain) Format() gpu.Format {
	return fromVkFormat(vs.ImageFormat.Format)
}

// Resize waits for the device, then rebuilds the swapchain at the new size.
// Every texture handed out by Buffer is invalid afterwards.
func (vs *VulkanSwapchain) Resize(dims gpu.Dimensions) error {
	if dims.Empty() {
		return core.Fail(core.ErrInvalidArgument, "resize to %dx%d", dims.Width, dims.Height)
	}
	context := vs.context
	return context.Locks.SafeCall(SwapchainManagement, func() error {
		vk.DeviceWaitIdle(context.Device.LogicalDevice)
		if err := DeviceQuerySwapchainSupport(context.Device.PhysicalDevice, context.Surface, &context.Device.SwapchainSupport); err != nil {
			return err
		}
		old := vs.Handle
		if err := vs.create(dims, old); err != nil {
			return err
		}
		vk.DestroySwapchain(context.Device.LogicalDevice, old, context.Allocator)

		// A pending acquire may have left a semaphore signaled; start over with fresh ones.
		vs.destroySemaphores()
		vs.queue.endAcquire()
		return vs.createSemaphores()
	})
}

func (vs *VulkanSwapchain) Acquire() (int, error) {
	fs := &vs.frames[vs.currentFrame]
	var index uint32
	res := vk.AcquireNextImage(vs.context.Device.LogicalDevice, vs.Handle, vs.context.FenceTimeoutNS, fs.imageAvailable, vk.NullFence, &index)
	switch res {
	case vk.Success, vk.Suboptimal:
	case vk.Timeout, vk.NotReady:
		return -1, core.Fail(core.ErrNotReady, "no swapchain image available")
	default:
		return -1, resultError(res, "acquiring swapchain image")
	}
	vs.queue.beginAcquire(fs)
	vs.acquiredIndex = int(index)
	return int(index), nil
}

func (vs *VulkanSwapchain) Present() error {
	if vs.acquiredIndex < 0 {
		return errors.New("present without an acquired image")
	}
	wait := vs.queue.endAcquire()
	presentInfo := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{vs.Handle},
		PImageIndices:  []uint32{uint32(vs.acquiredIndex)},
	}
	if wait != vk.NullSemaphore {
		presentInfo.WaitSemaphoreCount = 1
		presentInfo.PWaitSemaphores = []vk.Semaphore{wait}
	}
	vs.acquiredIndex = -1
	vs.currentFrame = (vs.currentFrame + 1) % VULKAN_MAX_FRAMES_IN_FLIGHT

	context := vs.context
	return context.Locks.SafeQueueCall(uint32(context.Device.PresentQueueIndex), func() error {
		// Out of date and suboptimal come back marked so the caller rebuilds the swapchain.
		if res := vk.QueuePresent(context.Device.PresentQueue, &presentInfo); res != vk.Success {
			return resultError(res, "presenting swapchain image")
		}
		return nil
	})
}

func (vs *VulkanSwapchain) Release() {
	if vs.Handle == nil {
		return
	}
	vk.DeviceWaitIdle(vs.context.Device.LogicalDevice)
	vs.destroySemaphores()
	// Swapchain images are owned by the swapchain and destroyed with it.
	vk.DestroySwapchain(vs.context.Device.LogicalDevice, vs.Handle, vs.context.Allocator)
	vs.Handle = nil
	vs.Images = nil
}
