package systems

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-core/engine/assets/obj"
	"github.com/spaghettifunk/anima-core/engine/core"
	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
	"github.com/spaghettifunk/anima-core/engine/renderer/gpu/gputest"
)

func TestMeshLoadUploadsGeometry(t *testing.T) {
	f := newFixture(t, 4096)
	ms := f.meshSystem(t, 4096)

	mesh, err := ms.Load("triangle")
	require.NoError(t, err)

	want, err := obj.Load([]byte(triangle), obj.Options{})
	require.NoError(t, err)

	assert.Equal(t, uint32(1), mesh.Generation)
	assert.Equal(t, uint32(3), mesh.IndexCount)
	assert.Equal(t, uint64(0), mesh.Vertices.Offset)
	assert.Equal(t, uint64(256), mesh.Indices.Offset)
	assert.Equal(t, uint32(32), mesh.Vertices.Stride)
	assert.Equal(t, gpu.FormatR16Uint, mesh.Indices.Format)

	geometry := ms.Geometry().Buffer().(*gputest.Buffer)
	assert.Equal(t, want.Vertices, geometry.Bytes()[0:len(want.Vertices)])
	assert.Equal(t, want.Indices, geometry.Bytes()[256:256+len(want.Indices)])
	assert.Equal(t, gpu.ResourceStateGenericRead, geometry.State())

	assert.Equal(t, uint64(1), f.ring.Counter())
	assert.Empty(t, f.dev.Violations())
	assert.EqualValues(t, 1, f.assets.unloads)

	got, ok := ms.Get("triangle")
	require.True(t, ok)
	assert.Same(t, mesh, got)
}

func TestMeshReloadKeepsIdentity(t *testing.T) {
	f := newFixture(t, 4096)
	ms := f.meshSystem(t, 4096)

	first, err := ms.Load("triangle")
	require.NoError(t, err)
	id := first.ID
	firstOffset := first.Vertices.Offset

	second, err := ms.Load("triangle")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, id, second.ID)
	assert.Equal(t, uint32(2), second.Generation)
	assert.Greater(t, second.Vertices.Offset, firstOffset)
	assert.Equal(t, 1, ms.Count())
	assert.Empty(t, f.dev.Violations())
}

func TestMeshGeometryFull(t *testing.T) {
	f := newFixture(t, 4096)
	ms := f.meshSystem(t, 256)

	_, err := ms.Load("triangle")
	assert.True(t, errors.Is(err, core.ErrOutOfCapacity))
	assert.Equal(t, 0, ms.Count())
	assert.Equal(t, uint64(0), f.ring.Counter())
}

func TestMeshLoadUnknownAsset(t *testing.T) {
	f := newFixture(t, 4096)
	ms := f.meshSystem(t, 4096)

	_, err := ms.Load("missing")
	assert.True(t, errors.Is(err, core.ErrIO))
}

func TestMeshLoadAsyncUploadsOnUpdate(t *testing.T) {
	f := newFixture(t, 4096)
	ms := f.meshSystem(t, 4096)

	require.NoError(t, ms.LoadAsync("triangle"))
	require.NoError(t, ms.LoadAsync("missing"))

	uploaded := 0
	require.Eventually(t, func() bool {
		uploaded += ms.Update()
		return !ms.Pending()
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, uploaded)
	_, ok := ms.Get("triangle")
	assert.True(t, ok)
	_, ok = ms.Get("missing")
	assert.False(t, ok)
}

func TestMeshAssetChangeReloadsResidentOnly(t *testing.T) {
	f := newFixture(t, 4096)
	ms := f.meshSystem(t, 4096)

	assert.False(t, ms.OnAssetChanged("triangle"))

	_, err := ms.Load("triangle")
	require.NoError(t, err)
	assert.True(t, ms.OnAssetChanged("triangle"))

	require.Eventually(t, func() bool {
		ms.Update()
		return !ms.Pending()
	}, time.Second, 5*time.Millisecond)

	mesh, _ := ms.Get("triangle")
	assert.Equal(t, uint32(2), mesh.Generation)
}

func TestMeshShutdownDrains(t *testing.T) {
	f := newFixture(t, 4096)
	ms := f.meshSystem(t, 4096)
	_, err := ms.Load("triangle")
	require.NoError(t, err)

	require.NoError(t, ms.Shutdown())
	assert.Equal(t, f.ring.Counter(), f.ring.Fence().Completed())
	assert.Equal(t, 0, ms.Count())
	assert.Empty(t, f.dev.Violations())
}
