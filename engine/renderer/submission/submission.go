package submission

import "github.com/spaghettifunk/anima-core/engine/renderer/gpu"

// Submission pairs a recording context with the list recorded from it.
// The list is open when returned by Ring.Acquire.
type Submission struct {
	Allocator gpu.CommandAllocator
	List      gpu.CommandList

	// fence value after which the pair may be reset; 0 while recording
	fenceValue uint64
}

func (s *Submission) FenceValue() uint64 {
	return s.fenceValue
}

func (s *Submission) release() {
	if s.List != nil {
		s.List.Release()
		s.List = nil
	}
	if s.Allocator != nil {
		s.Allocator.Release()
		s.Allocator = nil
	}
}
