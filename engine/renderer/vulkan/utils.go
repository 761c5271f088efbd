package vulkan

import (
	"fmt"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-core/engine/core"
	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
)

func VulkanResultString(result vk.Result) string {
	switch result {
	case vk.Success:
		return "VK_SUCCESS"
	case vk.NotReady:
		return "VK_NOT_READY"
	case vk.Timeout:
		return "VK_TIMEOUT"
	case vk.Incomplete:
		return "VK_INCOMPLETE"
	case vk.Suboptimal:
		return "VK_SUBOPTIMAL_KHR"
	case vk.ErrorOutOfHostMemory:
		return "VK_ERROR_OUT_OF_HOST_MEMORY"
	case vk.ErrorOutOfDeviceMemory:
		return "VK_ERROR_OUT_OF_DEVICE_MEMORY"
	case vk.ErrorInitializationFailed:
		return "VK_ERROR_INITIALIZATION_FAILED"
	case vk.ErrorDeviceLost:
		return "VK_ERROR_DEVICE_LOST"
	case vk.ErrorMemoryMapFailed:
		return "VK_ERROR_MEMORY_MAP_FAILED"
	case vk.ErrorLayerNotPresent:
		return "VK_ERROR_LAYER_NOT_PRESENT"
	case vk.ErrorExtensionNotPresent:
		return "VK_ERROR_EXTENSION_NOT_PRESENT"
	case vk.ErrorFeatureNotPresent:
		return "VK_ERROR_FEATURE_NOT_PRESENT"
	case vk.ErrorIncompatibleDriver:
		return "VK_ERROR_INCOMPATIBLE_DRIVER"
	case vk.ErrorTooManyObjects:
		return "VK_ERROR_TOO_MANY_OBJECTS"
	case vk.ErrorFormatNotSupported:
		return "VK_ERROR_FORMAT_NOT_SUPPORTED"
	case vk.ErrorSurfaceLost:
		return "VK_ERROR_SURFACE_LOST_KHR"
	case vk.ErrorNativeWindowInUse:
		return "VK_ERROR_NATIVE_WINDOW_IN_USE_KHR"
	case vk.ErrorOutOfDate:
		return "VK_ERROR_OUT_OF_DATE_KHR"
	case vk.ErrorOutOfPoolMemory:
		return "VK_ERROR_OUT_OF_POOL_MEMORY"
	}
	return fmt.Sprintf("VkResult(%d)", int32(result))
}

// resultError wraps a failed VkResult. Allocation failures are marked as
// resource exhaustion so callers can tell them apart from API misuse.
func resultError(res vk.Result, format string, args ...interface{}) error {
	err := errors.Newf("%s: %s", fmt.Sprintf(format, args...), VulkanResultString(res))
	switch res {
	case vk.ErrorOutOfHostMemory, vk.ErrorOutOfDeviceMemory, vk.ErrorTooManyObjects, vk.ErrorOutOfPoolMemory:
		err = errors.Mark(err, core.ErrDeviceResourceExhausted)
	case vk.ErrorOutOfDate, vk.Suboptimal:
		err = errors.Mark(err, core.ErrSwapchainBooting)
	}
	core.LogError(err.Error())
	return err
}

var end = "\x00"
var endChar byte = '\x00'

func VulkanSafeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = VulkanSafeString(list[i])
	}
	return out
}

// vkName converts a fixed size, zero terminated name array to a string.
func vkName(arr []byte) string {
	for i, b := range arr {
		if b == 0 {
			return string(arr[:i])
		}
	}
	return string(arr)
}

var formats = map[gpu.Format]vk.Format{
	gpu.FormatR32G32B32Float:    vk.FormatR32g32b32Sfloat,
	gpu.FormatR32G32Float:       vk.FormatR32g32Sfloat,
	gpu.FormatR16Uint:           vk.FormatR16Uint,
	gpu.FormatR32Uint:           vk.FormatR32Uint,
	gpu.FormatR8G8B8A8Unorm:     vk.FormatR8g8b8a8Unorm,
	gpu.FormatR8G8B8A8UnormSRGB: vk.FormatR8g8b8a8Srgb,
	gpu.FormatB8G8R8A8UnormSRGB: vk.FormatB8g8r8a8Srgb,
	gpu.FormatD32Float:          vk.FormatD32Sfloat,
}

func toVkFormat(f gpu.Format) vk.Format {
	if v, ok := formats[f]; ok {
		return v
	}
	return vk.FormatUndefined
}

func fromVkFormat(v vk.Format) gpu.Format {
	for f, candidate := range formats {
		if candidate == v {
			return f
		}
	}
	return gpu.FormatUnknown
}

// barrierState is what a resource state means to a Vulkan barrier.
type barrierState struct {
	layout vk.ImageLayout
	access vk.AccessFlagBits
	stage  vk.PipelineStageFlagBits
}

func stateInfo(s gpu.ResourceState) barrierState {
	switch s {
	case gpu.ResourceStateCopyDest:
		return barrierState{vk.ImageLayoutTransferDstOptimal, vk.AccessTransferWriteBit, vk.PipelineStageTransferBit}
	case gpu.ResourceStateCopySource:
		return barrierState{vk.ImageLayoutTransferSrcOptimal, vk.AccessTransferReadBit, vk.PipelineStageTransferBit}
	case gpu.ResourceStateVertexAndConstantBuffer:
		return barrierState{vk.ImageLayoutGeneral, vk.AccessVertexAttributeReadBit | vk.AccessUniformReadBit,
			vk.PipelineStageVertexInputBit | vk.PipelineStageVertexShaderBit}
	case gpu.ResourceStateIndexBuffer:
		return barrierState{vk.ImageLayoutGeneral, vk.AccessIndexReadBit, vk.PipelineStageVertexInputBit}
	case gpu.ResourceStateGenericRead:
		return barrierState{vk.ImageLayoutGeneral,
			vk.AccessVertexAttributeReadBit | vk.AccessIndexReadBit | vk.AccessUniformReadBit | vk.AccessShaderReadBit | vk.AccessTransferReadBit,
			vk.PipelineStageAllCommandsBit}
	case gpu.ResourceStateShaderResource:
		return barrierState{vk.ImageLayoutShaderReadOnlyOptimal, vk.AccessShaderReadBit,
			vk.PipelineStageVertexShaderBit | vk.PipelineStageFragmentShaderBit}
	case gpu.ResourceStateRenderTarget:
		return barrierState{vk.ImageLayoutColorAttachmentOptimal, vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit,
			vk.PipelineStageColorAttachmentOutputBit}
	case gpu.ResourceStateDepthWrite:
		return barrierState{vk.ImageLayoutDepthStencilAttachmentOptimal,
			vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit,
			vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit}
	case gpu.ResourceStatePresent:
		return barrierState{vk.ImageLayoutPresentSrc, 0, vk.PipelineStageBottomOfPipeBit}
	}
	return barrierState{vk.ImageLayoutGeneral, vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit, vk.PipelineStageAllCommandsBit}
}
