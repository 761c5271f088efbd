package vulkan

import (
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-core/engine/core"
	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
)

func TestFormatRoundTrip(t *testing.T) {
	for f := range formats {
		assert.Equal(t, f, fromVkFormat(toVkFormat(f)), f.String())
	}
	assert.Equal(t, vk.FormatUndefined, toVkFormat(gpu.FormatUnknown))
	assert.Equal(t, gpu.FormatUnknown, fromVkFormat(vk.FormatR8Unorm))
}

func TestStateInfoLayouts(t *testing.T) {
	assert.Equal(t, vk.ImageLayoutTransferDstOptimal, stateInfo(gpu.ResourceStateCopyDest).layout)
	assert.Equal(t, vk.ImageLayoutShaderReadOnlyOptimal, stateInfo(gpu.ResourceStateShaderResource).layout)
	assert.Equal(t, vk.ImageLayoutPresentSrc, stateInfo(gpu.ResourceStatePresent).layout)
	assert.Equal(t, vk.ImageLayoutColorAttachmentOptimal, stateInfo(gpu.ResourceStateRenderTarget).layout)

	common := stateInfo(gpu.ResourceStateCommon)
	assert.Equal(t, vk.ImageLayoutGeneral, common.layout)
	assert.Equal(t, vk.PipelineStageAllCommandsBit, common.stage)
}

func TestResultErrorMarks(t *testing.T) {
	err := resultError(vk.ErrorOutOfDeviceMemory, "allocating %d bytes", 64)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDeviceResourceExhausted))
	assert.Contains(t, err.Error(), "VK_ERROR_OUT_OF_DEVICE_MEMORY")

	err = resultError(vk.ErrorOutOfDate, "presenting")
	assert.True(t, errors.Is(err, core.ErrSwapchainBooting))

	err = resultError(vk.ErrorDeviceLost, "submitting")
	assert.False(t, errors.Is(err, core.ErrDeviceResourceExhausted))
}

func TestVulkanSafeString(t *testing.T) {
	assert.Equal(t, "\x00", VulkanSafeString(""))
	assert.Equal(t, "abc\x00", VulkanSafeString("abc"))
	assert.Equal(t, "abc\x00", VulkanSafeString("abc\x00"))

	in := []string{"a", "b\x00"}
	out := VulkanSafeStrings(in)
	assert.Equal(t, []string{"a\x00", "b\x00"}, out)
	assert.Equal(t, "a", in[0])
	assert.Equal(t, "abc", vkName([]byte{'a', 'b', 'c', 0, 'x'}))
}

func TestChooseFormat(t *testing.T) {
	surface := []vk.SurfaceFormat{
		{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		{Format: vk.FormatR8g8b8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
	}
	assert.Equal(t, vk.FormatR8g8b8a8Srgb, chooseFormat(surface, gpu.FormatR8G8B8A8UnormSRGB).Format)
	assert.Equal(t, vk.FormatB8g8r8a8Srgb, chooseFormat(surface, gpu.FormatR32Uint).Format)
	assert.Equal(t, vk.FormatB8g8r8a8Unorm, chooseFormat(surface[:1], gpu.FormatB8G8R8A8UnormSRGB).Format)
}
