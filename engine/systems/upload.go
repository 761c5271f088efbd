package systems

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-core/engine/core"
	"github.com/spaghettifunk/anima-core/engine/math"
	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
	"github.com/spaghettifunk/anima-core/engine/renderer/memory"
	"github.com/spaghettifunk/anima-core/engine/renderer/submission"
)

// Uploader writes host data into a host-visible staging allocator so that it can
// be copied into device memory by a ring submission.
type Uploader struct {
	device  gpu.Device
	ring    *submission.Ring
	desc    memory.AllocatorDesc
	staging *memory.LinearAllocator
}

func NewUploader(device gpu.Device, ring *submission.Ring, capacity, alignment uint64) (*Uploader, error) {
	desc := memory.AllocatorDesc{
		Name:         "staging",
		Capacity:     capacity,
		Alignment:    alignment,
		Pool:         gpu.MemoryPoolUpload,
		InitialState: gpu.ResourceStateGenericRead,
	}
	staging, err := memory.NewLinearAllocator(device, desc)
	if err != nil {
		return nil, err
	}
	return &Uploader{
		device:  device,
		ring:    ring,
		desc:    desc,
		staging: staging,
	}, nil
}

// Stage copies each blob into its own staging range. All ranges come from the
// same buffer; when it cannot hold them all, the device is drained and the
// staging buffer replaced by a fresh one large enough.
func (u *Uploader) Stage(blobs ...[]byte) ([]memory.SubAllocation, error) {
	var total uint64
	for _, b := range blobs {
		if len(b) == 0 {
			return nil, errors.Mark(errors.New("staging an empty blob"), core.ErrInvalidArgument)
		}
		total += math.AlignUp(uint64(len(b)), u.staging.Alignment())
	}
	if total > u.staging.Remaining() {
		if err := u.recycle(total); err != nil {
			return nil, err
		}
	}

	out := make([]memory.SubAllocation, 0, len(blobs))
	for _, b := range blobs {
		s, err := u.staging.SubAllocate(uint64(len(b)))
		if err != nil {
			return nil, err
		}
		if err := u.staging.Write(s, b); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (u *Uploader) recycle(need uint64) error {
	if err := u.ring.WaitIdle(); err != nil {
		return errors.Wrap(err, "draining before staging recycle")
	}
	desc := u.desc
	if need > desc.Capacity {
		desc.Capacity = need
	}
	fresh, err := memory.NewLinearAllocator(u.device, desc)
	if err != nil {
		return err
	}
	core.LogDebug("staging buffer recycled after %d bytes, new capacity %d", u.staging.Offset(), fresh.Capacity())
	u.staging.Release()
	u.staging = fresh
	return nil
}

func (u *Uploader) Staging() *memory.LinearAllocator {
	return u.staging
}

// Release drains the device and destroys the staging buffer.
func (u *Uploader) Release() error {
	if u.staging == nil {
		return nil
	}
	if err := u.ring.WaitIdle(); err != nil {
		return err
	}
	u.staging.Release()
	u.staging = nil
	return nil
}
