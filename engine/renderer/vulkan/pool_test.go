package vulkan

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeQueueCallSerializes(t *testing.T) {
	pool := NewVulkanLockPool()
	pool.SetQueueFamily(0)

	var wg sync.WaitGroup
	inside, maxInside, calls := 0, 0, 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(family uint32) {
			defer wg.Done()
			pool.SafeQueueCall(0, func() error {
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				calls++
				inside--
				return nil
			})
		}(uint32(i))
	}
	wg.Wait()

	assert.Equal(t, 1, maxInside)
	assert.Equal(t, 16, calls)
}

func TestSafeCallReturnsError(t *testing.T) {
	pool := NewVulkanLockPool()
	err := pool.SafeCall(ResourceManagement, func() error { return assert.AnError })
	assert.ErrorIs(t, err, assert.AnError)
	// unknown queue families get a lock on demand
	assert.NoError(t, pool.SafeQueueCall(7, func() error { return nil }))
}
