package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingQueueFixed(t *testing.T) {
	q := NewRingQueue[int](2, false)
	require.NoError(t, q.Enqueue(1))
	require.NoError(t, q.Enqueue(2))
	assert.ErrorIs(t, q.Enqueue(3), ErrQueueFull)

	v, err := q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, q.Enqueue(3))
	v, _ = q.Peek()
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, q.Len())
}

func TestRingQueueGrowsPreservingOrder(t *testing.T) {
	q := NewRingQueue[int](2, true)
	require.NoError(t, q.Enqueue(1))
	require.NoError(t, q.Enqueue(2))
	_, _ = q.Dequeue()
	for i := 3; i <= 7; i++ {
		require.NoError(t, q.Enqueue(i))
	}

	var got []int
	q.Each(func(v int) { got = append(got, v) })
	assert.Equal(t, []int{2, 3, 4, 5, 6, 7}, got)

	for _, want := range got {
		v, err := q.Dequeue()
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
	assert.True(t, q.IsEmpty())
	_, err := q.Dequeue()
	assert.ErrorIs(t, err, ErrQueueEmpty)
}
