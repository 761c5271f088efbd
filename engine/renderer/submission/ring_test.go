package submission

import (
	"math/rand"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-core/engine/core"
	"github.com/spaghettifunk/anima-core/engine/renderer/gpu/gputest"
)

func newRing(t *testing.T) (*Ring, *gputest.Device, *gputest.Fence) {
	t.Helper()
	dev := gputest.NewDevice()
	r, err := NewRing(dev)
	require.NoError(t, err)
	return r, dev, r.Fence().(*gputest.Fence)
}

func submit(t *testing.T, r *Ring) *Submission {
	t.Helper()
	s, err := r.Acquire()
	require.NoError(t, err)
	require.NoError(t, s.List.Close())
	require.NoError(t, r.Submit(s))
	return s
}

func TestFirstAcquireCreatesPair(t *testing.T) {
	r, dev, _ := newRing(t)

	s, err := r.Acquire()
	require.NoError(t, err)
	assert.NotNil(t, s.Allocator)
	assert.NotNil(t, s.List)
	assert.Equal(t, uint64(0), s.FenceValue())
	assert.Equal(t, 1, dev.Created(gputest.KindAllocator))
	assert.Equal(t, 1, dev.Created(gputest.KindList))
}

func TestSubmitSignalsIncreasingValues(t *testing.T) {
	r, dev, fence := newRing(t)

	var values []uint64
	for i := 0; i < 5; i++ {
		s := submit(t, r)
		values = append(values, s.FenceValue())
	}
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, values)
	assert.Equal(t, values, dev.SimQueue().Signals())
	assert.Equal(t, uint64(5), r.Counter())
	assert.Equal(t, uint64(5), fence.Signaled())
	assert.Equal(t, 5, r.Outstanding())
}

func TestAcquireNeverReusesPendingWork(t *testing.T) {
	r, dev, _ := newRing(t)

	submit(t, r)
	submit(t, r)

	// Nothing completed: every acquire must create a fresh pair.
	s, err := r.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 3, dev.Created(gputest.KindAllocator))
	assert.Equal(t, 2, r.Outstanding())
	r.Discard(s)
	assert.Empty(t, dev.Violations())
}

func TestAcquireReusesCompletedFront(t *testing.T) {
	r, dev, fence := newRing(t)

	first := submit(t, r)
	submit(t, r)
	alloc := first.Allocator.(*gputest.CommandAllocator)

	fence.Complete(1)
	s, err := r.Acquire()
	require.NoError(t, err)

	assert.Same(t, first, s)
	assert.Equal(t, uint64(0), s.FenceValue())
	assert.Equal(t, 1, alloc.Resets())
	assert.Equal(t, 2, dev.Created(gputest.KindAllocator))
	assert.Equal(t, 3, dev.Created(gputest.KindList))
	assert.Equal(t, 2, dev.Live(gputest.KindList))
	assert.Equal(t, 1, r.Outstanding())
	assert.Empty(t, dev.Violations())
}

func TestAcquireOnlyQueriesFenceWhenFrontLooksPending(t *testing.T) {
	r, _, fence := newRing(t)

	submit(t, r)
	submit(t, r)
	submit(t, r)
	fence.CompleteAll()

	_, err := r.Acquire()
	require.NoError(t, err)
	queries := fence.Queries()

	// Front is now at value 2, already covered by the cached value 3.
	_, err = r.Acquire()
	require.NoError(t, err)
	assert.Equal(t, queries, fence.Queries())
}

func TestAcquireCreationFailures(t *testing.T) {
	r, dev, _ := newRing(t)

	dev.FailNext(gputest.KindAllocator, 1)
	_, err := r.Acquire()
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDeviceResourceExhausted))

	dev.FailNext(gputest.KindList, 1)
	_, err = r.Acquire()
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDeviceResourceExhausted))
	assert.Equal(t, 0, dev.Live(gputest.KindAllocator))
	assert.Equal(t, 0, r.Pairs())
}

func TestSubmitRejectsEmpty(t *testing.T) {
	r, _, _ := newRing(t)
	err := r.Submit(&Submission{})
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
	assert.Equal(t, uint64(0), r.Counter())
}

func TestSubmitExecuteFailureReleasesPair(t *testing.T) {
	r, dev, _ := newRing(t)

	s, err := r.Acquire()
	require.NoError(t, err)
	require.NoError(t, s.List.Close())

	dev.FailNext(gputest.KindExecute, 1)
	require.Error(t, r.Submit(s))
	assert.Equal(t, uint64(0), r.Counter())
	assert.Equal(t, 0, dev.Live(gputest.KindAllocator))
	assert.Equal(t, 0, dev.Live(gputest.KindList))
}

func TestWaitIdle(t *testing.T) {
	r, _, fence := newRing(t)

	require.NoError(t, r.WaitIdle())
	assert.Equal(t, 0, fence.Waits())

	submit(t, r)
	submit(t, r)
	require.NoError(t, r.WaitIdle())
	assert.Equal(t, uint64(2), fence.Completed())
	assert.Equal(t, 1, fence.Waits())

	require.NoError(t, r.WaitIdle())
	assert.Equal(t, 1, fence.Waits())
}

func TestShutdownDrainsAndReleases(t *testing.T) {
	r, dev, fence := newRing(t)

	for i := 0; i < 4; i++ {
		submit(t, r)
	}
	fence.Complete(1)

	require.NoError(t, r.Shutdown())
	assert.Equal(t, uint64(4), fence.Completed())
	assert.Equal(t, 0, dev.Live(gputest.KindAllocator))
	assert.Equal(t, 0, dev.Live(gputest.KindList))
	assert.Equal(t, 0, dev.Live(gputest.KindFence))
	assert.Empty(t, dev.Violations())

	require.NoError(t, r.Shutdown())
	_, err := r.Acquire()
	assert.Error(t, err)
}

func TestRandomScheduleNeverReusesEarly(t *testing.T) {
	r, dev, fence := newRing(t)
	rng := rand.New(rand.NewSource(7))

	var last uint64
	for i := 0; i < 500; i++ {
		switch rng.Intn(4) {
		case 0:
			fence.Complete(fence.Completed() + uint64(rng.Intn(3)))
		default:
			s := submit(t, r)
			require.Greater(t, s.FenceValue(), last)
			last = s.FenceValue()
		}
	}
	assert.Empty(t, dev.Violations())
	assert.LessOrEqual(t, dev.Created(gputest.KindAllocator), int(r.Counter()))

	require.NoError(t, r.Shutdown())
	assert.Empty(t, dev.Violations())
}
