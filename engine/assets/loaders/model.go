package loaders

import (
	"github.com/spaghettifunk/anima-core/engine/assets/obj"
	"github.com/spaghettifunk/anima-core/engine/renderer/metadata"
)

// ModelLoader reads Wavefront OBJ files into assembled meshes.
type ModelLoader struct {
	// Used when Load is called without *obj.Options.
	Defaults obj.Options
}

func (ml *ModelLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	opts := ml.Defaults
	if p, ok := params.(*obj.Options); ok && p != nil {
		opts = *p
	}

	mesh, err := obj.LoadFile(path, opts)
	if err != nil {
		return nil, err
	}
	return &metadata.Resource{
		Name:     path,
		FullPath: path,
		Type:     metadata.ResourceTypeMesh,
		DataSize: uint64(len(mesh.Vertices) + len(mesh.Indices)),
		Data:     mesh,
	}, nil
}

func (ml *ModelLoader) Unload(r *metadata.Resource) error {
	r.Data = nil
	return nil
}
