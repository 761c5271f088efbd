package systems

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-core/engine/core"
	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
	"github.com/spaghettifunk/anima-core/engine/renderer/memory"
	"github.com/spaghettifunk/anima-core/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-core/engine/renderer/submission"
)

// AssetSource is the part of the asset manager the systems depend on.
type AssetSource interface {
	LoadAsset(name string, params interface{}) (*metadata.Resource, error)
	UnloadAsset(r *metadata.Resource) error
}

type MeshSystemConfig struct {
	GeometryCapacity uint64
	Alignment        uint64
}

type meshLoadResult struct {
	name string
	mesh *metadata.AssembledMesh
	err  error
}

// MeshSystem owns the device-local geometry buffer. Every loaded mesh gets a
// vertex and an index range in it; ranges of reloaded meshes are not reclaimed.
type MeshSystem struct {
	device   gpu.Device
	ring     *submission.Ring
	uploader *Uploader
	assets   AssetSource
	jobs     *JobSystem

	geometry      *memory.LinearAllocator
	geometryState gpu.ResourceState

	meshes map[string]*metadata.Mesh

	mu       sync.Mutex
	finished []meshLoadResult
	inflight map[string]bool
}

func NewMeshSystem(config MeshSystemConfig, device gpu.Device, ring *submission.Ring, uploader *Uploader, assets AssetSource, jobs *JobSystem) (*MeshSystem, error) {
	geometry, err := memory.NewLinearAllocator(device, memory.AllocatorDesc{
		Name:         "geometry",
		Capacity:     config.GeometryCapacity,
		Alignment:    config.Alignment,
		Pool:         gpu.MemoryPoolDefault,
		InitialState: gpu.ResourceStateCommon,
	})
	if err != nil {
		return nil, err
	}
	return &MeshSystem{
		device:        device,
		ring:          ring,
		uploader:      uploader,
		assets:        assets,
		jobs:          jobs,
		geometry:      geometry,
		geometryState: gpu.ResourceStateCommon,
		meshes:        make(map[string]*metadata.Mesh),
		inflight:      make(map[string]bool),
	}, nil
}

// Load parses the named asset and uploads it on the calling (render) thread.
func (ms *MeshSystem) Load(name string) (*metadata.Mesh, error) {
	assembled, err := ms.parse(name)
	if err != nil {
		return nil, err
	}
	return ms.upload(name, assembled)
}

func (ms *MeshSystem) parse(name string) (*metadata.AssembledMesh, error) {
	res, err := ms.assets.LoadAsset(name, nil)
	if err != nil {
		return nil, err
	}
	defer ms.assets.UnloadAsset(res)

	assembled, ok := res.Data.(*metadata.AssembledMesh)
	if !ok {
		return nil, errors.Mark(errors.Newf("asset %q is a %s, not a mesh", name, res.Type), core.ErrInvalidArgument)
	}
	return assembled, nil
}

// LoadAsync parses the asset on a worker. The upload happens in the next Update.
// A request for a mesh that is already being loaded is ignored.
func (ms *MeshSystem) LoadAsync(name string) error {
	ms.mu.Lock()
	if ms.inflight[name] {
		ms.mu.Unlock()
		return nil
	}
	ms.inflight[name] = true
	ms.mu.Unlock()

	err := ms.jobs.Submit(metadata.JobTask{
		Name:        "mesh:" + name,
		InputParams: metadata.MeshLoadParams{ResourceName: name},
		OnStart: func(params interface{}) (interface{}, error) {
			p := params.(metadata.MeshLoadParams)
			assembled, err := ms.parse(p.ResourceName)
			if err != nil {
				return nil, err
			}
			p.Assembled = assembled
			return p, nil
		},
		OnComplete: func(result interface{}) {
			p := result.(metadata.MeshLoadParams)
			ms.finish(meshLoadResult{name: p.ResourceName, mesh: p.Assembled})
		},
		OnFailure: func(err error) {
			ms.finish(meshLoadResult{name: name, err: err})
		},
	})
	if err != nil {
		ms.mu.Lock()
		delete(ms.inflight, name)
		ms.mu.Unlock()
	}
	return err
}

func (ms *MeshSystem) finish(r meshLoadResult) {
	ms.mu.Lock()
	ms.finished = append(ms.finished, r)
	ms.mu.Unlock()
}

// Update uploads every mesh parsed by the workers since the last call and
// returns how many were uploaded.
func (ms *MeshSystem) Update() int {
	ms.mu.Lock()
	done := ms.finished
	ms.finished = nil
	for _, r := range done {
		delete(ms.inflight, r.name)
	}
	ms.mu.Unlock()

	uploaded := 0
	for _, r := range done {
		if r.err != nil {
			core.LogError("failed to load mesh %q: %s", r.name, r.err)
			continue
		}
		if _, err := ms.upload(r.name, r.mesh); err != nil {
			core.LogError("failed to upload mesh %q: %s", r.name, err)
			continue
		}
		uploaded++
	}
	return uploaded
}

// Pending reports whether any asynchronous load has not been uploaded yet.
func (ms *MeshSystem) Pending() bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.inflight) > 0
}

// OnAssetChanged reloads the mesh if it is resident.
func (ms *MeshSystem) OnAssetChanged(name string) bool {
	if _, ok := ms.meshes[name]; !ok {
		return false
	}
	core.LogInfo("reloading mesh %q", name)
	if err := ms.LoadAsync(name); err != nil {
		core.LogError("failed to queue reload of %q: %s", name, err)
		return false
	}
	return true
}

func (ms *MeshSystem) upload(name string, assembled *metadata.AssembledMesh) (*metadata.Mesh, error) {
	vertexSize := uint64(len(assembled.Vertices))
	indexSize := uint64(len(assembled.Indices))

	// Reserve device space first so a full geometry buffer costs no staging space.
	mark := ms.geometry.Offset()
	vertices, err := ms.geometry.SubAllocate(vertexSize)
	if err != nil {
		return nil, err
	}
	indices, err := ms.geometry.SubAllocate(indexSize)
	if err != nil {
		return nil, errors.Wrapf(err, "mesh %q after %d bytes of vertices at %d", name, vertexSize, mark)
	}

	staged, err := ms.uploader.Stage(assembled.Vertices, assembled.Indices)
	if err != nil {
		return nil, err
	}

	s, err := ms.ring.Acquire()
	if err != nil {
		return nil, err
	}
	cl := s.List
	buffer := ms.geometry.Buffer()
	cl.TransitionBarrier(buffer, ms.geometryState, gpu.ResourceStateCopyDest)
	cl.CopyBufferRegion(buffer, vertices.Offset, staged[0].Buffer, staged[0].Offset, vertexSize)
	cl.CopyBufferRegion(buffer, indices.Offset, staged[1].Buffer, staged[1].Offset, indexSize)
	cl.TransitionBarrier(buffer, gpu.ResourceStateCopyDest, gpu.ResourceStateGenericRead)
	ms.geometryState = gpu.ResourceStateGenericRead
	if err := cl.Close(); err != nil {
		ms.ring.Discard(s)
		return nil, errors.Wrapf(err, "recording upload of mesh %q", name)
	}
	if err := ms.ring.Submit(s); err != nil {
		return nil, errors.Wrapf(err, "submitting upload of mesh %q", name)
	}

	mesh, ok := ms.meshes[name]
	if !ok {
		mesh = &metadata.Mesh{ID: uuid.New(), Name: name}
		ms.meshes[name] = mesh
	}
	mesh.Generation++
	mesh.Vertices = metadata.VertexBufferView{Buffer: buffer, Offset: vertices.Offset, Size: vertexSize, Stride: assembled.Stride}
	mesh.Indices = metadata.IndexBufferView{Buffer: buffer, Offset: indices.Offset, Size: indexSize, Format: assembled.IndexFormat}
	mesh.IndexCount = assembled.IndexCount()
	mesh.Topology = assembled.Topology
	mesh.Attributes = assembled.Attributes
	mesh.Extents = assembled.Extents

	core.LogDebug("mesh %q (generation %d): %d vertices, %d indices at fence %d",
		name, mesh.Generation, assembled.VertexCount, mesh.IndexCount, s.FenceValue())
	return mesh, nil
}

func (ms *MeshSystem) Get(name string) (*metadata.Mesh, bool) {
	m, ok := ms.meshes[name]
	return m, ok
}

func (ms *MeshSystem) Count() int {
	return len(ms.meshes)
}

func (ms *MeshSystem) Geometry() *memory.LinearAllocator {
	return ms.geometry
}

// Shutdown waits for pending uploads and destroys the geometry buffer.
func (ms *MeshSystem) Shutdown() error {
	if err := ms.ring.WaitIdle(); err != nil {
		return err
	}
	ms.meshes = make(map[string]*metadata.Mesh)
	ms.geometry.Release()
	return nil
}
