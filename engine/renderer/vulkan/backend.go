package vulkan

import (
	"runtime"
	"time"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-core/engine/core"
	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
)

// SurfaceSource is the window the backend presents into.
type SurfaceSource interface {
	GetRequiredExtensionNames() []string
	CreateWindowSurface(instance interface{}) (uintptr, error)
}

// VulkanBackend implements gpu.Device on top of a single graphics queue.
type VulkanBackend struct {
	context *VulkanContext
	queue   *VulkanQueue
}

var _ gpu.Device = (*VulkanBackend)(nil)

func New(appName string, surface SurfaceSource, validation bool, fenceTimeout time.Duration) (*VulkanBackend, error) {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return nil, errors.New("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "initializing vulkan")
	}

	context := &VulkanContext{
		Allocator:      nil,
		Validation:     validation,
		Locks:          NewVulkanLockPool(),
		FenceTimeoutNS: uint64(fenceTimeout.Nanoseconds()),
	}
	vb := &VulkanBackend{context: context}

	if err := vb.createInstance(appName, surface.GetRequiredExtensionNames()); err != nil {
		return nil, err
	}

	if validation {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(context.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			vb.Shutdown()
			return nil, errors.Wrap(err, "creating debug report callback")
		}
		context.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}

	core.LogDebug("Creating Vulkan surface...")
	handle, err := surface.CreateWindowSurface(context.Instance)
	if err == nil && handle == 0 {
		err = errors.New("platform returned a null surface")
	}
	if err != nil {
		vb.Shutdown()
		return nil, errors.Wrap(err, "creating window surface")
	}
	context.Surface = vk.SurfaceFromPointer(handle)
	core.LogDebug("Vulkan surface created.")

	if err := DeviceCreate(context); err != nil {
		vb.Shutdown()
		return nil, err
	}
	vb.queue = NewVulkanQueue(context)
	core.LogInfo("Vulkan backend initialized.")
	return vb, nil
}

func (vb *VulkanBackend) createInstance(appName string, platformExtensions []string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Anima Core"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := []string{"VK_KHR_surface"}
	requiredExtensions = append(requiredExtensions, platformExtensions...)
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if vb.context.Validation {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		layers = []string{"VK_LAYER_KHRONOS_validation"}
		if err := checkLayers(layers); err != nil {
			return err
		}
		core.LogInfo("All required validation layers are present.")
	}
	for _, ext := range requiredExtensions {
		core.LogDebug("Required extension: %s", ext)
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if res := vk.CreateInstance(&createInfo, vb.context.Allocator, &vb.context.Instance); res != vk.Success {
		return resultError(res, "creating Vulkan instance")
	}
	if err := vk.InitInstance(vb.context.Instance); err != nil {
		return errors.Wrap(err, "loading instance functions")
	}
	core.LogInfo("Vulkan Instance created.")
	return nil
}

func checkLayers(required []string) error {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return resultError(res, "enumerating instance layers")
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return resultError(res, "enumerating instance layers")
	}
	for _, name := range required {
		found := false
		for i := range available {
			available[i].Deref()
			if vkName(available[i].LayerName[:]) == name {
				found = true
				break
			}
		}
		if !found {
			return errors.Newf("required validation layer is missing: %s", name)
		}
	}
	return nil
}

func (vb *VulkanBackend) Queue() gpu.Queue {
	return vb.queue
}

func (vb *VulkanBackend) CreateFence(initial uint64) (gpu.Fence, error) {
	return NewFence(vb.context, initial), nil
}

func (vb *VulkanBackend) CreateCommandAllocator() (gpu.CommandAllocator, error) {
	return NewVulkanCommandPool(vb.context)
}

func (vb *VulkanBackend) CreateCommandList(a gpu.CommandAllocator) (gpu.CommandList, error) {
	pool, ok := a.(*VulkanCommandPool)
	if !ok {
		return nil, core.Fail(core.ErrInvalidArgument, "command list from a %T", a)
	}
	return NewVulkanCommandBuffer(vb.context, pool)
}

func (vb *VulkanBackend) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	return NewVulkanBuffer(vb.context, desc)
}

func (vb *VulkanBackend) CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, core.Fail(core.ErrInvalidArgument, "texture %q is %dx%d", desc.Name, desc.Width, desc.Height)
	}
	return ImageCreate(vb.context, desc)
}

func (vb *VulkanBackend) CreateSwapchain(dims gpu.Dimensions, bufferCount int, format gpu.Format) (gpu.Swapchain, error) {
	var sc *VulkanSwapchain
	err := vb.context.Locks.SafeCall(SwapchainManagement, func() error {
		var err error
		sc, err = SwapchainCreate(vb.context, vb.queue, dims, bufferCount, format)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sc, nil
}

func (vb *VulkanBackend) CreateRenderTargetView(t gpu.Texture, slot int) (gpu.View, error) {
	im, ok := t.(*VulkanImage)
	if !ok {
		return nil, core.Fail(core.ErrInvalidArgument, "render target view of a %T", t)
	}
	return NewImageView(vb.context, im, slot)
}

func (vb *VulkanBackend) CreateDepthStencilView(t gpu.Texture) (gpu.View, error) {
	im, ok := t.(*VulkanImage)
	if !ok || im.desc.Usage&gpu.TextureUsageDepthStencil == 0 {
		return nil, core.Fail(core.ErrInvalidArgument, "depth stencil view of a non depth texture")
	}
	return NewImageView(vb.context, im, 0)
}

func (vb *VulkanBackend) TexturePitchAlignment() uint64 {
	return VULKAN_COPY_PITCH_ALIGNMENT
}

// Shutdown destroys the device, surface, debugger and instance. Every resource
// created from the backend must have been released.
func (vb *VulkanBackend) Shutdown() {
	context := vb.context
	if context.Device != nil && context.Device.LogicalDevice != nil {
		vk.DeviceWaitIdle(context.Device.LogicalDevice)
		core.LogDebug("Destroying Vulkan device...")
		DeviceDestroy(context)
	}

	if context.Surface != vk.NullSurface {
		core.LogDebug("Destroying Vulkan surface...")
		vk.DestroySurface(context.Instance, context.Surface, context.Allocator)
		context.Surface = vk.NullSurface
	}

	if context.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(context.Instance, context.debugMessenger, context.Allocator)
		context.debugMessenger = vk.NullDebugReportCallback
	}

	if context.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(context.Instance, context.Allocator)
		context.Instance = nil
	}
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
