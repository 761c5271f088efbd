// Package obj turns Wavefront OBJ text into interleaved, GPU-ready geometry.
//
// Only v, vt, vn and f records are read. Every face corner becomes its own vertex,
// so the index stream is simply 0..N-1.
package obj

import (
	"encoding/binary"
	m "math"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"

	"github.com/spaghettifunk/anima-core/engine/core"
	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
	"github.com/spaghettifunk/anima-core/engine/renderer/metadata"
)

const (
	positionOffset uint32 = 0
	texcoordOffset uint32 = 12
	normalOffset   uint32 = 20
	// VertexStride is the size of one interleaved position/texcoord/normal vertex.
	VertexStride uint32 = 32

	// Largest vertex count addressable with 16-bit indices.
	maxShortIndexVertices = 0xFFFF
)

// Layout is the attribute layout of every assembled mesh.
var Layout = []metadata.Attribute{
	{Semantic: metadata.SemanticPosition, Format: gpu.FormatR32G32B32Float, Offset: positionOffset},
	{Semantic: metadata.SemanticTexcoord, Format: gpu.FormatR32G32Float, Offset: texcoordOffset},
	{Semantic: metadata.SemanticNormal, Format: gpu.FormatR32G32B32Float, Offset: normalOffset},
}

type Options struct {
	// InvertUVs flips the V axis of texcoords read from the file.
	InvertUVs bool
}

// Streams are the raw coordinate and face streams of one source.
type Streams struct {
	Positions []float32
	Texcoords []float32
	Normals   []float32
	Faces     []FaceVertex
}

// Scan reads the three coordinate streams concurrently while the face stream is
// read on the calling goroutine, and returns once all four are complete.
func Scan(src []byte) (*Streams, error) {
	s := &Streams{}

	var g errgroup.Group
	g.Go(func() error {
		s.Positions = scanCoords(src, "v", 3)
		return nil
	})
	g.Go(func() error {
		s.Texcoords = scanCoords(src, "vt", 2)
		return nil
	})
	g.Go(func() error {
		s.Normals = scanCoords(src, "vn", 3)
		return nil
	})
	s.Faces = scanFaces(src)

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load parses src and assembles it into an interleaved mesh.
func Load(src []byte, opts Options) (*metadata.AssembledMesh, error) {
	streams, err := Scan(src)
	if err != nil {
		return nil, err
	}
	return Assemble(streams, opts)
}

// LoadFile reads path fully and passes it to Load.
func LoadFile(path string, opts Options) (*metadata.AssembledMesh, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, core.Wrap(err, core.ErrIO, "reading mesh %s", path)
	}
	mesh, err := Load(src, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "mesh %s", path)
	}
	return mesh, nil
}

func parseErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), core.ErrParse)
}

// Assemble emits one vertex and one index per face corner, in stream order.
func Assemble(s *Streams, opts Options) (*metadata.AssembledMesh, error) {
	if len(s.Positions) == 0 {
		return nil, parseErrorf("no vertex positions")
	}
	if len(s.Faces) == 0 {
		return nil, parseErrorf("no faces")
	}
	if len(s.Faces)%3 != 0 {
		core.LogWarn("%d face corners do not form whole triangles, trailing corners are dropped by the triangle list", len(s.Faces))
	}

	count := len(s.Faces)
	vertices := make([]byte, count*int(VertexStride))
	extents := metadata.Extents3D{
		Min: mgl32.Vec3{m.MaxFloat32, m.MaxFloat32, m.MaxFloat32},
		Max: mgl32.Vec3{-m.MaxFloat32, -m.MaxFloat32, -m.MaxFloat32},
	}

	for i, fv := range s.Faces {
		pos, ok := fetch(s.Positions, fv.Position, 3)
		if !ok {
			return nil, parseErrorf("face corner %d: position %d out of range (%d positions)", i, fv.Position, len(s.Positions)/3)
		}

		var uv [2]float32
		if len(s.Texcoords) > 0 && fv.Texcoord != NoIndex {
			t, ok := fetch(s.Texcoords, fv.Texcoord, 2)
			if !ok {
				return nil, parseErrorf("face corner %d: texcoord %d out of range (%d texcoords)", i, fv.Texcoord, len(s.Texcoords)/2)
			}
			uv = [2]float32{t[0], t[1]}
			if opts.InvertUVs {
				uv[1] = 1 - uv[1]
			}
		}

		var normal [3]float32
		if fv.Normal != NoIndex {
			n, ok := fetch(s.Normals, fv.Normal, 3)
			if !ok {
				return nil, parseErrorf("face corner %d: normal %d out of range (%d normals)", i, fv.Normal, len(s.Normals)/3)
			}
			normal = [3]float32{n[0], n[1], n[2]}
		}

		v := vertices[i*int(VertexStride):]
		putFloats(v[positionOffset:], pos...)
		putFloats(v[texcoordOffset:], uv[:]...)
		putFloats(v[normalOffset:], normal[:]...)

		for k := 0; k < 3; k++ {
			extents.Min[k] = min(extents.Min[k], pos[k])
			extents.Max[k] = max(extents.Max[k], pos[k])
		}
	}

	indexFormat, indices := buildIndices(count)

	return &metadata.AssembledMesh{
		Vertices:    vertices,
		Indices:     indices,
		IndexFormat: indexFormat,
		Attributes:  append([]metadata.Attribute(nil), Layout...),
		Stride:      VertexStride,
		VertexCount: uint32(count),
		Topology:    gpu.TopologyTriangleList,
		Extents:     extents,
	}, nil
}

// IndexFormatFor picks the narrowest index format able to address count vertices.
func IndexFormatFor(count int) gpu.Format {
	if count <= maxShortIndexVertices {
		return gpu.FormatR16Uint
	}
	return gpu.FormatR32Uint
}

func buildIndices(count int) (gpu.Format, []byte) {
	format := IndexFormatFor(count)
	stride := int(format.Stride())
	out := make([]byte, count*stride)
	for i := 0; i < count; i++ {
		if format == gpu.FormatR16Uint {
			binary.LittleEndian.PutUint16(out[i*stride:], uint16(i))
		} else {
			binary.LittleEndian.PutUint32(out[i*stride:], uint32(i))
		}
	}
	return format, out
}

// fetch returns the arity floats of the 1-based record idx.
func fetch(stream []float32, idx int32, arity int) ([]float32, bool) {
	if idx < 1 {
		return nil, false
	}
	start := int(idx-1) * arity
	if start+arity > len(stream) {
		return nil, false
	}
	return stream[start : start+arity], true
}

func putFloats(b []byte, vals ...float32) {
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[i*4:], m.Float32bits(v))
	}
}
