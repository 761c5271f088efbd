package vulkan

/**
 * @brief Row pitch alignment used for buffer to image copies. Satisfies
 * optimalBufferCopyRowPitchAlignment on every device we run on and the texel size of RGBA8.
 */
const VULKAN_COPY_PITCH_ALIGNMENT uint64 = 256

/** @brief Binary fences kept around for reuse by a timeline fence. */
const VULKAN_FENCE_POOL_SIZE = 8

/** @brief Semaphore pairs used to pace swapchain acquisition. */
const VULKAN_MAX_FRAMES_IN_FLIGHT = 2
