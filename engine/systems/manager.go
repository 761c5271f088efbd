package systems

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-core/engine/core"
	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
	"github.com/spaghettifunk/anima-core/engine/renderer/submission"
)

type SystemManager struct {
	JobSystem     *JobSystem
	Uploader      *Uploader
	MeshSystem    *MeshSystem
	TextureSystem *TextureSystem
}

func NewSystemManager(config *core.Config, device gpu.Device, ring *submission.Ring, assets AssetSource) (*SystemManager, error) {
	js, err := NewJobSystem(config.Assets.Workers, 64)
	if err != nil {
		return nil, err
	}
	up, err := NewUploader(device, ring, config.Renderer.StagingCapacity, config.Renderer.Alignment)
	if err != nil {
		js.Shutdown()
		return nil, err
	}
	ms, err := NewMeshSystem(MeshSystemConfig{
		GeometryCapacity: config.Renderer.GeometryCapacity,
		Alignment:        config.Renderer.Alignment,
	}, device, ring, up, assets, js)
	if err != nil {
		js.Shutdown()
		up.Release()
		return nil, err
	}
	ts, err := NewTextureSystem(device, ring, up, assets)
	if err != nil {
		js.Shutdown()
		ms.Shutdown()
		up.Release()
		return nil, err
	}
	return &SystemManager{
		JobSystem:     js,
		Uploader:      up,
		MeshSystem:    ms,
		TextureSystem: ts,
	}, nil
}

// OnEvent forwards asset change notifications to the systems owning the asset.
func (sm *SystemManager) OnEvent(context core.EventContext) {
	if context.Type != core.EVENT_CODE_ASSET_CHANGED {
		return
	}
	e, ok := context.Data.(*core.AssetEvent)
	if !ok {
		return
	}
	if !sm.MeshSystem.OnAssetChanged(e.Name) {
		sm.TextureSystem.OnAssetChanged(e.Name)
	}
}

// Update runs once per frame on the render thread.
func (sm *SystemManager) Update() {
	sm.MeshSystem.Update()
}

func (sm *SystemManager) Shutdown() error {
	var errs error
	if err := sm.JobSystem.Shutdown(); err != nil {
		errs = errors.CombineErrors(errs, err)
	}
	if err := sm.TextureSystem.Shutdown(); err != nil {
		errs = errors.CombineErrors(errs, err)
	}
	if err := sm.MeshSystem.Shutdown(); err != nil {
		errs = errors.CombineErrors(errs, err)
	}
	if err := sm.Uploader.Release(); err != nil {
		errs = errors.CombineErrors(errs, err)
	}
	return errs
}
