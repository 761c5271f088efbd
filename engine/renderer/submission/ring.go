package submission

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-core/engine/containers"
	"github.com/spaghettifunk/anima-core/engine/core"
	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
)

// Ring recycles submissions once the queue fence shows the device is done with them.
// Outstanding submissions are kept in signal order, so only the front needs checking.
// All methods must be called from the render thread.
type Ring struct {
	device gpu.Device
	queue  gpu.Queue
	fence  gpu.Fence

	counter       uint64
	lastCompleted uint64
	ledger        *containers.RingQueue[*Submission]
	pairs         int
	closed        bool
}

func NewRing(device gpu.Device) (*Ring, error) {
	fence, err := device.CreateFence(0)
	if err != nil {
		err = core.Wrap(err, core.ErrDeviceResourceExhausted, "creating submission fence")
		core.LogError(err.Error())
		return nil, err
	}
	return &Ring{
		device: device,
		queue:  device.Queue(),
		fence:  fence,
		ledger: containers.NewRingQueue[*Submission](4, true),
	}, nil
}

// Acquire returns a submission with an open command list. The oldest outstanding
// submission is reused when its fence value has been reached, otherwise a new pair is created.
func (r *Ring) Acquire() (*Submission, error) {
	if r.closed {
		return nil, errors.New("submission ring is shut down")
	}

	front, err := r.ledger.Peek()
	if err == nil && front.fenceValue > r.lastCompleted {
		r.lastCompleted = r.fence.Completed()
	}
	if err != nil || front.fenceValue > r.lastCompleted {
		return r.create()
	}

	s, _ := r.ledger.Dequeue()
	if err := s.Allocator.Reset(); err != nil {
		s.release()
		r.pairs--
		return nil, errors.Wrapf(err, "resetting command allocator at fence value %d", s.fenceValue)
	}
	s.List.Release()
	s.List = nil
	list, err := r.device.CreateCommandList(s.Allocator)
	if err != nil {
		s.release()
		r.pairs--
		err = core.Wrap(err, core.ErrDeviceResourceExhausted, "creating command list")
		core.LogError(err.Error())
		return nil, err
	}
	s.List = list
	s.fenceValue = 0
	return s, nil
}

func (r *Ring) create() (*Submission, error) {
	alloc, err := r.device.CreateCommandAllocator()
	if err != nil {
		err = core.Wrap(err, core.ErrDeviceResourceExhausted, "creating command allocator")
		core.LogError(err.Error())
		return nil, err
	}
	list, err := r.device.CreateCommandList(alloc)
	if err != nil {
		alloc.Release()
		err = core.Wrap(err, core.ErrDeviceResourceExhausted, "creating command list")
		core.LogError(err.Error())
		return nil, err
	}
	r.pairs++
	core.LogDebug("submission ring grew to %d command allocators", r.pairs)
	return &Submission{Allocator: alloc, List: list}, nil
}

// Submit executes the closed list of s and signals the fence with the next counter value.
func (r *Ring) Submit(s *Submission) error {
	if s == nil || s.List == nil {
		return errors.Mark(errors.New("submit of an empty submission"), core.ErrInvalidArgument)
	}
	if err := r.queue.Execute(s.List); err != nil {
		r.Discard(s)
		return errors.Wrap(err, "executing command list")
	}
	r.counter++
	if err := r.queue.Signal(r.fence, r.counter); err != nil {
		return errors.Wrapf(err, "signaling fence value %d", r.counter)
	}
	s.fenceValue = r.counter
	return r.ledger.Enqueue(s)
}

// Discard releases a submission that was acquired but will not be submitted.
func (r *Ring) Discard(s *Submission) {
	if s == nil {
		return
	}
	s.release()
	r.pairs--
}

// WaitIdle blocks until the device has finished every submitted list.
func (r *Ring) WaitIdle() error {
	if r.lastCompleted >= r.counter {
		return nil
	}
	if r.fence.Completed() < r.counter {
		if err := r.fence.Wait(r.counter); err != nil {
			return errors.Wrapf(err, "waiting for fence value %d", r.counter)
		}
	}
	r.lastCompleted = r.counter
	return nil
}

// Shutdown drains the queue and releases every outstanding pair and the fence.
// It must run before the device is destroyed.
func (r *Ring) Shutdown() error {
	if r.closed {
		return nil
	}
	err := r.WaitIdle()
	if err != nil {
		// The device may still read the pairs, leave them allocated.
		core.LogError("submission ring drain failed: %s", err)
		return err
	}
	for !r.ledger.IsEmpty() {
		s, _ := r.ledger.Dequeue()
		s.release()
		r.pairs--
	}
	r.fence.Release()
	r.closed = true
	core.LogDebug("submission ring shut down at fence value %d", r.counter)
	return nil
}

// Counter is the fence value of the most recent submission.
func (r *Ring) Counter() uint64 {
	return r.counter
}

// Completed refreshes and returns the fence value the device has reached.
func (r *Ring) Completed() uint64 {
	r.lastCompleted = r.fence.Completed()
	return r.lastCompleted
}

// Outstanding is the number of submitted pairs waiting for reuse.
func (r *Ring) Outstanding() int {
	return r.ledger.Len()
}

// Pairs is the number of allocator/list pairs the ring currently owns or has handed out.
func (r *Ring) Pairs() int {
	return r.pairs
}

func (r *Ring) Fence() gpu.Fence {
	return r.fence
}
