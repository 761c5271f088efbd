package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusDispatchesOnCaller(t *testing.T) {
	bus := NewEventBus(8)

	var got []uint32
	bus.Register(EVENT_CODE_RESIZED, func(ctx EventContext) {
		se, ok := ctx.Data.(*SystemEvent)
		require.True(t, ok)
		got = append(got, se.WindowWidth)
	})

	var wg sync.WaitGroup
	for i := 1; i <= 3; i++ {
		wg.Add(1)
		go func(w uint32) {
			defer wg.Done()
			bus.Fire(EventContext{Type: EVENT_CODE_RESIZED, Data: &SystemEvent{WindowWidth: w}})
		}(uint32(i))
	}
	wg.Wait()

	assert.Empty(t, got)
	assert.Equal(t, 3, bus.Dispatch())
	assert.ElementsMatch(t, []uint32{1, 2, 3}, got)
	assert.Equal(t, 0, bus.Dispatch())
}

func TestEventBusDropsWhenFull(t *testing.T) {
	bus := NewEventBus(1)
	assert.True(t, bus.Fire(EventContext{Type: EVENT_CODE_APPLICATION_QUIT}))
	assert.False(t, bus.Fire(EventContext{Type: EVENT_CODE_APPLICATION_QUIT}))

	bus.Shutdown()
	assert.Equal(t, 0, bus.Dispatch())
}

func TestFrameMetricsAverage(t *testing.T) {
	m := NewFrameMetrics()
	for i := 0; i < AVG_COUNT; i++ {
		m.Update(0.010)
	}
	assert.InDelta(t, 10.0, m.FrameTime(), 1e-9)
	assert.Equal(t, uint64(AVG_COUNT), m.TotalFrames())

	for i := 0; i < 100; i++ {
		m.Update(0.010)
	}
	assert.InDelta(t, 100.0, m.FPS(), 1)
}
