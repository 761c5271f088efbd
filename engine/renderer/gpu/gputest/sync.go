package gputest

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
)

type Fence struct {
	d         *Device
	completed uint64
	signaled  uint64
	waits     int
	queries   int
	released  bool
}

func (f *Fence) Completed() uint64 {
	f.queries++
	return f.completed
}

// Queries counts calls to Completed.
func (f *Fence) Queries() int {
	return f.queries
}

// Signaled is the highest value the queue has been asked to signal.
func (f *Fence) Signaled() uint64 {
	return f.signaled
}

// Waits counts calls to Wait that had to advance the fence.
func (f *Fence) Waits() int {
	return f.waits
}

// Complete advances the fence to value, bounded by what has been signaled.
func (f *Fence) Complete(value uint64) {
	if value > f.signaled {
		value = f.signaled
	}
	if value > f.completed {
		f.completed = value
	}
}

func (f *Fence) CompleteAll() {
	f.completed = f.signaled
}

// Wait finishes the simulated work up to value. Waiting for a value nobody will
// ever signal would hang a real device, so it is an error here.
func (f *Fence) Wait(value uint64) error {
	if value <= f.completed {
		return nil
	}
	if value > f.signaled {
		f.d.violate("wait for fence value %d, only %d signaled", value, f.signaled)
		return errors.Newf("fence value %d never signaled", value)
	}
	f.completed = value
	f.waits++
	return nil
}

func (f *Fence) Release() {
	f.d.release(KindFence, &f.released)
}

type Queue struct {
	d          *Device
	unsignaled []*CommandList
	executed   int
	signals    []uint64
}

func (q *Queue) Execute(lists ...gpu.CommandList) error {
	if q.d.shouldFail(KindExecute) {
		return errors.Wrap(ErrInjected, "execute")
	}
	for _, l := range lists {
		cl, ok := l.(*CommandList)
		if !ok {
			return errors.New("execute needs simulated command lists")
		}
		if !cl.closed {
			q.d.violate("executing an open command list")
			return errors.New("command list not closed")
		}
		if cl.released {
			q.d.violate("executing a released command list")
			return errors.New("command list released")
		}
		for _, cmd := range cl.commands {
			cmd()
		}
		cl.executed = true
		q.unsignaled = append(q.unsignaled, cl)
		q.executed++
	}
	return nil
}

func (q *Queue) Signal(f gpu.Fence, value uint64) error {
	fence, ok := f.(*Fence)
	if !ok {
		return errors.New("signal needs a simulated fence")
	}
	if value <= fence.signaled {
		q.d.violate("fence signaled with non increasing value %d after %d", value, fence.signaled)
	}
	fence.signaled = value
	for _, l := range q.unsignaled {
		l.fence = fence
		l.fenceValue = value
	}
	q.unsignaled = nil
	q.signals = append(q.signals, value)
	return nil
}

// Executed is the number of command lists executed so far.
func (q *Queue) Executed() int {
	return q.executed
}

// Signals lists every value passed to Signal in order.
func (q *Queue) Signals() []uint64 {
	return append([]uint64(nil), q.signals...)
}

type CommandAllocator struct {
	d        *Device
	lists    []*CommandList
	resets   int
	released bool
}

func (a *CommandAllocator) Reset() error {
	for _, l := range a.lists {
		if l.inFlight() {
			a.d.violate("allocator reset while a list waits for fence value %d", l.fenceValue)
			return errors.Newf("allocator in use until fence value %d", l.fenceValue)
		}
		if !l.closed && !l.released {
			a.d.violate("allocator reset while a list is recording")
			return errors.New("allocator has an open command list")
		}
	}
	a.lists = nil
	a.resets++
	return nil
}

func (a *CommandAllocator) Resets() int {
	return a.resets
}

func (a *CommandAllocator) Release() {
	for _, l := range a.lists {
		if l.inFlight() {
			a.d.violate("allocator released while a list waits for fence value %d", l.fenceValue)
		}
	}
	a.d.release(KindAllocator, &a.released)
}

type CommandList struct {
	d          *Device
	alloc      *CommandAllocator
	commands   []func()
	err        error
	closed     bool
	executed   bool
	released   bool
	fence      *Fence
	fenceValue uint64
}

func (l *CommandList) inFlight() bool {
	if !l.executed {
		return false
	}
	return l.fence == nil || l.fence.completed < l.fenceValue
}

func (l *CommandList) fail(format string, args ...interface{}) {
	l.d.violate(format, args...)
	if l.err == nil {
		l.err = errors.Newf(format, args...)
	}
}

func (l *CommandList) Close() error {
	if l.closed {
		return errors.New("command list already closed")
	}
	l.closed = true
	return l.err
}

func (l *CommandList) TransitionBarrier(r gpu.Resource, before, after gpu.ResourceState) {
	s, ok := r.(stateful)
	if !ok {
		l.fail("barrier on a non simulated resource")
		return
	}
	cur := s.currentState()
	if *cur != before {
		l.fail("barrier expects %s but resource is %s", before, *cur)
	}
	*cur = after
}

func (l *CommandList) CopyBufferRegion(dst gpu.Buffer, dstOffset uint64, src gpu.Buffer, srcOffset uint64, size uint64) {
	d, ok1 := dst.(*Buffer)
	s, ok2 := src.(*Buffer)
	if !ok1 || !ok2 {
		l.fail("copy between non simulated buffers")
		return
	}
	if dstOffset+size > uint64(len(d.data)) || srcOffset+size > uint64(len(s.data)) {
		l.fail("copy of %d bytes out of bounds", size)
		return
	}
	if d.desc.Pool == gpu.MemoryPoolDefault && d.state != gpu.ResourceStateCopyDest {
		l.fail("copy into buffer %q in state %s", d.desc.Name, d.state)
	}
	l.commands = append(l.commands, func() {
		copy(d.data[dstOffset:dstOffset+size], s.data[srcOffset:srcOffset+size])
	})
}

func (l *CommandList) CopyBufferToTexture(dst gpu.Texture, src gpu.Buffer, srcOffset uint64, rowPitch uint64) {
	t, ok1 := dst.(*Texture)
	s, ok2 := src.(*Buffer)
	if !ok1 || !ok2 {
		l.fail("texture copy with non simulated resources")
		return
	}
	if t.state != gpu.ResourceStateCopyDest {
		l.fail("copy into texture %q in state %s", t.desc.Name, t.state)
	}
	row := uint64(t.desc.Width) * uint64(t.desc.Format.Stride())
	if rowPitch < row || srcOffset+rowPitch*uint64(t.desc.Height-1)+row > uint64(len(s.data)) {
		l.fail("texture copy out of bounds")
		return
	}
	l.commands = append(l.commands, func() {
		for y := uint64(0); y < uint64(t.desc.Height); y++ {
			from := srcOffset + y*rowPitch
			copy(t.data[y*row:(y+1)*row], s.data[from:from+row])
		}
	})
}

func (l *CommandList) ClearTexture(tex gpu.Texture, color [4]float32) {
	t, ok := tex.(*Texture)
	if !ok {
		l.fail("clear of a non simulated texture")
		return
	}
	if t.state != gpu.ResourceStateCopyDest {
		l.fail("clear of texture %q in state %s", t.desc.Name, t.state)
	}
	l.commands = append(l.commands, func() {
		t.Clears++
	})
}

func (l *CommandList) Release() {
	if l.inFlight() {
		l.d.violate("command list released while waiting for fence value %d", l.fenceValue)
	}
	l.d.release(KindList, &l.released)
}
