package systems

import (
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-core/engine/assets/obj"
	"github.com/spaghettifunk/anima-core/engine/core"
	"github.com/spaghettifunk/anima-core/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/anima-core/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-core/engine/renderer/submission"
	"github.com/stretchr/testify/require"
)

const triangle = `v 0 0 0
v 1 0 0
v 0 1 0
vt 0.5 0.5
vn 0 0 1
f 1/1/1 2/1/1 3/1/1
`

// memAssets serves meshes from OBJ text and images from raw pixels.
type memAssets struct {
	meshes  map[string]string
	images  map[string]*metadata.ImageResourceData
	unloads int32
}

func newMemAssets() *memAssets {
	return &memAssets{
		meshes: map[string]string{"triangle": triangle},
		images: map[string]*metadata.ImageResourceData{},
	}
}

func (a *memAssets) LoadAsset(name string, params interface{}) (*metadata.Resource, error) {
	if src, ok := a.meshes[name]; ok {
		mesh, err := obj.Load([]byte(src), obj.Options{})
		if err != nil {
			return nil, err
		}
		return &metadata.Resource{Name: name, Type: metadata.ResourceTypeMesh, Data: mesh}, nil
	}
	if img, ok := a.images[name]; ok {
		return &metadata.Resource{Name: name, Type: metadata.ResourceTypeImage, Data: img}, nil
	}
	return nil, errors.Mark(errors.Newf("unknown asset %q", name), core.ErrIO)
}

func (a *memAssets) UnloadAsset(r *metadata.Resource) error {
	atomic.AddInt32(&a.unloads, 1)
	return nil
}

type fixture struct {
	dev      *gputest.Device
	ring     *submission.Ring
	uploader *Uploader
	assets   *memAssets
	jobs     *JobSystem
}

func newFixture(t *testing.T, stagingCapacity uint64) *fixture {
	t.Helper()
	dev := gputest.NewDevice()
	ring, err := submission.NewRing(dev)
	require.NoError(t, err)
	up, err := NewUploader(dev, ring, stagingCapacity, 256)
	require.NoError(t, err)
	jobs, err := NewJobSystem(2, 8)
	require.NoError(t, err)
	t.Cleanup(func() { jobs.Shutdown() })
	return &fixture{dev: dev, ring: ring, uploader: up, assets: newMemAssets(), jobs: jobs}
}

func (f *fixture) meshSystem(t *testing.T, geometryCapacity uint64) *MeshSystem {
	t.Helper()
	ms, err := NewMeshSystem(MeshSystemConfig{GeometryCapacity: geometryCapacity, Alignment: 256}, f.dev, f.ring, f.uploader, f.assets, f.jobs)
	require.NoError(t, err)
	return ms
}
