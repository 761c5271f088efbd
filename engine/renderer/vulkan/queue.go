package vulkan

import (
	"sync"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
)

// frameSync is the semaphore pair handed from an acquired swapchain image to
// the next submission and then to presentation.
type frameSync struct {
	imageAvailable vk.Semaphore
	renderComplete vk.Semaphore
	// Set once a submission has waited on imageAvailable.
	consumed bool
}

type VulkanQueue struct {
	context *VulkanContext

	mu      sync.Mutex
	acquire *frameSync
}

func NewVulkanQueue(context *VulkanContext) *VulkanQueue {
	return &VulkanQueue{context: context}
}

func (q *VulkanQueue) family() uint32 {
	return uint32(q.context.Device.GraphicsQueueIndex)
}

// beginAcquire makes the next Execute wait for the acquired image.
func (q *VulkanQueue) beginAcquire(fs *frameSync) {
	q.mu.Lock()
	defer q.mu.Unlock()
	fs.consumed = false
	q.acquire = fs
}

// endAcquire returns the semaphore presentation has to wait on.
func (q *VulkanQueue) endAcquire() vk.Semaphore {
	q.mu.Lock()
	defer q.mu.Unlock()
	fs := q.acquire
	q.acquire = nil
	if fs == nil {
		return vk.NullSemaphore
	}
	if fs.consumed {
		return fs.renderComplete
	}
	return fs.imageAvailable
}

func (q *VulkanQueue) Execute(lists ...gpu.CommandList) error {
	handles := make([]vk.CommandBuffer, 0, len(lists))
	buffers := make([]*VulkanCommandBuffer, 0, len(lists))
	for _, l := range lists {
		cb, ok := l.(*VulkanCommandBuffer)
		if !ok {
			return errors.Newf("cannot execute a %T", l)
		}
		if cb.State != COMMAND_BUFFER_STATE_RECORDING_ENDED {
			return errors.Newf("command buffer executed in state %d", cb.State)
		}
		handles = append(handles, cb.Handle)
		buffers = append(buffers, cb)
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: uint32(len(handles)),
		PCommandBuffers:    handles,
	}

	q.mu.Lock()
	fs := q.acquire
	if fs != nil && !fs.consumed {
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = []vk.Semaphore{fs.imageAvailable}
		submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)}
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = []vk.Semaphore{fs.renderComplete}
		fs.consumed = true
	}
	q.mu.Unlock()

	err := q.context.Locks.SafeQueueCall(q.family(), func() error {
		if res := vk.QueueSubmit(q.context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence); res != vk.Success {
			return resultError(res, "submitting %d command buffers", len(handles))
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, cb := range buffers {
		cb.UpdateSubmitted()
	}
	return nil
}

func (q *VulkanQueue) Signal(f gpu.Fence, value uint64) error {
	vf, ok := f.(*VulkanFence)
	if !ok {
		return errors.Newf("cannot signal a %T", f)
	}
	return q.context.Locks.SafeQueueCall(q.family(), func() error {
		return vf.signal(q.context.Device.GraphicsQueue, value)
	})
}

// WaitIdle blocks until the graphics queue has drained.
func (q *VulkanQueue) WaitIdle() error {
	return q.context.Locks.SafeQueueCall(q.family(), func() error {
		if res := vk.QueueWaitIdle(q.context.Device.GraphicsQueue); res != vk.Success {
			return resultError(res, "waiting for the graphics queue")
		}
		return nil
	})
}
