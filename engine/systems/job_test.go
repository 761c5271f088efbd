package systems

import (
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-core/engine/renderer/metadata"
)

func TestNewJobSystemValidates(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}

func TestJobSystemRunsCallbacks(t *testing.T) {
	js, err := NewJobSystem(3, 4)
	require.NoError(t, err)

	var mu sync.Mutex
	var sum, failures int
	for i := 1; i <= 10; i++ {
		require.NoError(t, js.Submit(metadata.JobTask{
			Name:        "sum",
			InputParams: i,
			OnStart: func(p interface{}) (interface{}, error) {
				n := p.(int)
				if n%5 == 0 {
					return nil, errors.Newf("refusing %d", n)
				}
				return n, nil
			},
			OnComplete: func(r interface{}) {
				mu.Lock()
				sum += r.(int)
				mu.Unlock()
			},
			OnFailure: func(error) {
				mu.Lock()
				failures++
				mu.Unlock()
			},
		}))
	}
	require.NoError(t, js.Shutdown())

	assert.Equal(t, 55-5-10, sum)
	assert.Equal(t, 2, failures)
}

func TestJobSystemRejectsAfterShutdown(t *testing.T) {
	js, err := NewJobSystem(1, 0)
	require.NoError(t, err)
	require.NoError(t, js.Shutdown())
	require.NoError(t, js.Shutdown())

	err = js.Submit(metadata.JobTask{OnStart: func(interface{}) (interface{}, error) { return nil, nil }})
	assert.ErrorIs(t, err, ErrJobSystemClosed)
	assert.Error(t, js.Submit(metadata.JobTask{Name: "empty"}))
}
