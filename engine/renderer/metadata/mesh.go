package metadata

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
)

type Semantic uint8

const (
	SemanticPosition Semantic = iota
	SemanticTexcoord
	SemanticNormal
)

func (s Semantic) String() string {
	switch s {
	case SemanticPosition:
		return "POSITION"
	case SemanticTexcoord:
		return "TEXCOORD"
	case SemanticNormal:
		return "NORMAL"
	}
	return "UNKNOWN"
}

/** @brief One element of an interleaved vertex. */
type Attribute struct {
	Semantic Semantic
	Format   gpu.Format
	/** @brief Byte offset from the start of the vertex. */
	Offset uint32
}

type Extents3D struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

func (e Extents3D) Center() mgl32.Vec3 {
	return e.Min.Add(e.Max).Mul(0.5)
}

/**
 * @brief Host-side geometry ready for upload: interleaved vertices, a sequential
 * index stream and the layout describing them. Never modified after creation.
 */
type AssembledMesh struct {
	Vertices    []byte
	Indices     []byte
	IndexFormat gpu.Format
	Attributes  []Attribute
	/** @brief Size in bytes of one vertex. */
	Stride      uint32
	VertexCount uint32
	Topology    gpu.Topology
	Extents     Extents3D
}

func (m *AssembledMesh) IndexCount() uint32 {
	return uint32(len(m.Indices)) / m.IndexFormat.Stride()
}

type VertexBufferView struct {
	Buffer gpu.Buffer
	Offset uint64
	Size   uint64
	Stride uint32
}

type IndexBufferView struct {
	Buffer gpu.Buffer
	Offset uint64
	Size   uint64
	Format gpu.Format
}

/** @brief A mesh resident in device memory. */
type Mesh struct {
	ID         uuid.UUID
	Name       string
	Generation uint32
	Vertices   VertexBufferView
	Indices    IndexBufferView
	IndexCount uint32
	Topology   gpu.Topology
	Attributes []Attribute
	Extents    Extents3D
}

// Also used as result data from the load job.
type MeshLoadParams struct {
	ResourceName string
	Resource     *Resource
	Assembled    *AssembledMesh
}
