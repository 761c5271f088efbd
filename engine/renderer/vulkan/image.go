package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
)

type VulkanImage struct {
	context *VulkanContext
	desc    gpu.TextureDesc
	Handle  vk.Image
	Memory  vk.DeviceMemory
	format  vk.Format
	// Layout the image will be in once recorded barriers have executed.
	layout vk.ImageLayout
	// Swapchain images are destroyed with their swapchain.
	owned bool
}

func (im *VulkanImage) aspect() vk.ImageAspectFlags {
	if im.desc.Usage&gpu.TextureUsageDepthStencil != 0 {
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

func (im *VulkanImage) subresourceRange() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     im.aspect(),
		BaseMipLevel:   0,
		LevelCount:     1,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
}

func imageUsage(u gpu.TextureUsage) vk.ImageUsageFlagBits {
	var usage vk.ImageUsageFlagBits
	if u&gpu.TextureUsageSampled != 0 {
		usage |= vk.ImageUsageSampledBit | vk.ImageUsageTransferDstBit
	}
	if u&gpu.TextureUsageRenderTarget != 0 {
		usage |= vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit
	}
	if u&gpu.TextureUsageDepthStencil != 0 {
		usage |= vk.ImageUsageDepthStencilAttachmentBit
	}
	return usage
}

func ImageCreate(context *VulkanContext, desc gpu.TextureDesc) (*VulkanImage, error) {
	format := toVkFormat(desc.Format)
	if desc.Format == gpu.FormatD32Float {
		format = context.Device.DepthFormat
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  desc.Width,
			Height: desc.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         vk.ImageUsageFlags(imageUsage(desc.Usage)),
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}

	var handle vk.Image
	if res := vk.CreateImage(context.Device.LogicalDevice, &imageCreateInfo, context.Allocator, &handle); res != vk.Success {
		return nil, resultError(res, "creating image %q", desc.Name)
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.Device.LogicalDevice, handle, &reqs)
	reqs.Deref()

	memory, err := context.allocate(reqs, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vk.DestroyImage(context.Device.LogicalDevice, handle, context.Allocator)
		return nil, err
	}
	if res := vk.BindImageMemory(context.Device.LogicalDevice, handle, memory, 0); res != vk.Success {
		vk.FreeMemory(context.Device.LogicalDevice, memory, context.Allocator)
		vk.DestroyImage(context.Device.LogicalDevice, handle, context.Allocator)
		return nil, resultError(res, "binding memory of image %q", desc.Name)
	}

	return &VulkanImage{
		context: context,
		desc:    desc,
		Handle:  handle,
		Memory:  memory,
		format:  format,
		layout:  vk.ImageLayoutUndefined,
		owned:   true,
	}, nil
}

func (im *VulkanImage) Desc() gpu.TextureDesc {
	return im.desc
}

func (im *VulkanImage) Release() {
	if !im.owned {
		return
	}
	device := im.context.Device.LogicalDevice
	if im.Handle != nil {
		vk.DestroyImage(device, im.Handle, im.context.Allocator)
		im.Handle = nil
	}
	if im.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(device, im.Memory, im.context.Allocator)
		im.Memory = vk.NullDeviceMemory
	}
}

// VulkanImageView is the render target or depth view of an image.
type VulkanImageView struct {
	context *VulkanContext
	Handle  vk.ImageView
	Slot    int
}

func NewImageView(context *VulkanContext, im *VulkanImage, slot int) (*VulkanImageView, error) {
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:            vk.StructureTypeImageViewCreateInfo,
		Image:            im.Handle,
		ViewType:         vk.ImageViewType2d,
		Format:           im.format,
		SubresourceRange: im.subresourceRange(),
	}
	var view vk.ImageView
	if res := vk.CreateImageView(context.Device.LogicalDevice, &viewCreateInfo, context.Allocator, &view); res != vk.Success {
		return nil, resultError(res, "creating view of image %q", im.desc.Name)
	}
	return &VulkanImageView{context: context, Handle: view, Slot: slot}, nil
}

func (v *VulkanImageView) Release() {
	if v.Handle != nil {
		vk.DestroyImageView(v.context.Device.LogicalDevice, v.Handle, v.context.Allocator)
		v.Handle = nil
	}
}
