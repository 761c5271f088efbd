package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-core/engine/core"
)

type pendingSignal struct {
	value  uint64
	handle vk.Fence
}

// VulkanFence is a 64-bit counter built from binary fences. Every Signal submits an
// empty batch with a fresh binary fence; the counter reaches the value once that
// fence is signaled. Signals are retired in submission order.
type VulkanFence struct {
	context   *VulkanContext
	completed uint64
	pending   []pendingSignal
	free      []vk.Fence
	released  bool
}

func NewFence(context *VulkanContext, initial uint64) *VulkanFence {
	return &VulkanFence{
		context:   context,
		completed: initial,
	}
}

func (vf *VulkanFence) acquireHandle() (vk.Fence, error) {
	if n := len(vf.free); n > 0 {
		h := vf.free[n-1]
		vf.free = vf.free[:n-1]
		return h, nil
	}
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	var handle vk.Fence
	if res := vk.CreateFence(vf.context.Device.LogicalDevice, &fenceCreateInfo, vf.context.Allocator, &handle); res != vk.Success {
		return vk.NullFence, resultError(res, "creating fence")
	}
	return handle, nil
}

// signal must be called with the queue lock held.
func (vf *VulkanFence) signal(queue vk.Queue, value uint64) error {
	if n := len(vf.pending); n > 0 && vf.pending[n-1].value >= value {
		return errors.Newf("fence signaled with %d after %d", value, vf.pending[n-1].value)
	}
	handle, err := vf.acquireHandle()
	if err != nil {
		return err
	}
	if res := vk.QueueSubmit(queue, 0, nil, handle); res != vk.Success {
		vf.free = append(vf.free, handle)
		return resultError(res, "submitting fence signal %d", value)
	}
	vf.pending = append(vf.pending, pendingSignal{value: value, handle: handle})
	return nil
}

func (vf *VulkanFence) retire() {
	s := vf.pending[0]
	vf.pending = vf.pending[1:]
	vf.completed = s.value
	if len(vf.free) >= VULKAN_FENCE_POOL_SIZE {
		vk.DestroyFence(vf.context.Device.LogicalDevice, s.handle, vf.context.Allocator)
		return
	}
	vk.ResetFences(vf.context.Device.LogicalDevice, 1, []vk.Fence{s.handle})
	vf.free = append(vf.free, s.handle)
}

func (vf *VulkanFence) poll() {
	for len(vf.pending) > 0 {
		if vk.GetFenceStatus(vf.context.Device.LogicalDevice, vf.pending[0].handle) != vk.Success {
			return
		}
		vf.retire()
	}
}

func (vf *VulkanFence) Completed() uint64 {
	vf.poll()
	return vf.completed
}

func (vf *VulkanFence) Wait(value uint64) error {
	if vf.Completed() >= value {
		return nil
	}
	target := -1
	for i, s := range vf.pending {
		if s.value >= value {
			target = i
			break
		}
	}
	if target < 0 {
		return errors.Newf("waiting for fence value %d that was never signaled", value)
	}

	result := vk.WaitForFences(vf.context.Device.LogicalDevice, 1, []vk.Fence{vf.pending[target].handle}, vk.True, vf.context.FenceTimeoutNS)
	switch result {
	case vk.Success:
		// Queue order means everything before the target is done as well.
		for i := 0; i <= target; i++ {
			vf.retire()
		}
		return nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out waiting for %d", value)
		return errors.Mark(errors.Newf("timed out waiting for fence value %d", value), core.ErrNotReady)
	}
	return resultError(result, "waiting for fence value %d", value)
}

func (vf *VulkanFence) Release() {
	if vf.released {
		return
	}
	device := vf.context.Device.LogicalDevice
	for _, s := range vf.pending {
		vk.DestroyFence(device, s.handle, vf.context.Allocator)
	}
	for _, h := range vf.free {
		vk.DestroyFence(device, h, vf.context.Allocator)
	}
	vf.pending = nil
	vf.free = nil
	vf.released = true
}
