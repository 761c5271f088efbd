package obj

import (
	"encoding/binary"
	"fmt"
	m "math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-core/engine/core"
	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
	"github.com/spaghettifunk/anima-core/engine/renderer/metadata"
)

const triangle = `# one triangle
v 0 0 0
v 1 0 0
v 0 1 0
vt 0.3 0.25
vn 0 0 1
f 1/1/1 2/1/1 3/1/1
`

type vertex struct {
	pos    [3]float32
	uv     [2]float32
	normal [3]float32
}

func readFloats(b []byte, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = m.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func vertexAt(mesh *metadata.AssembledMesh, i int) vertex {
	b := mesh.Vertices[i*int(mesh.Stride):]
	var v vertex
	copy(v.pos[:], readFloats(b[0:], 3))
	copy(v.uv[:], readFloats(b[12:], 2))
	copy(v.normal[:], readFloats(b[20:], 3))
	return v
}

func TestLoadMinimalTriangle(t *testing.T) {
	mesh, err := Load([]byte(triangle), Options{})
	require.NoError(t, err)

	assert.Equal(t, uint32(3), mesh.VertexCount)
	assert.Equal(t, uint32(32), mesh.Stride)
	assert.Len(t, mesh.Vertices, 3*32)
	assert.Equal(t, gpu.FormatR16Uint, mesh.IndexFormat)
	assert.Equal(t, []byte{0, 0, 1, 0, 2, 0}, mesh.Indices)
	assert.Equal(t, uint32(3), mesh.IndexCount())
	assert.Equal(t, gpu.TopologyTriangleList, mesh.Topology)
	assert.Equal(t, []metadata.Attribute{
		{Semantic: metadata.SemanticPosition, Format: gpu.FormatR32G32B32Float, Offset: 0},
		{Semantic: metadata.SemanticTexcoord, Format: gpu.FormatR32G32Float, Offset: 12},
		{Semantic: metadata.SemanticNormal, Format: gpu.FormatR32G32B32Float, Offset: 20},
	}, mesh.Attributes)

	v := vertexAt(mesh, 1)
	assert.Equal(t, [3]float32{1, 0, 0}, v.pos)
	assert.Equal(t, [2]float32{0.3, 0.25}, v.uv)
	assert.Equal(t, [3]float32{0, 0, 1}, v.normal)

	assert.Equal(t, mgl32.Vec3{0, 0, 0}, mesh.Extents.Min)
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, mesh.Extents.Max)
}

func TestInvertUVs(t *testing.T) {
	mesh, err := Load([]byte(triangle), Options{InvertUVs: true})
	require.NoError(t, err)
	assert.Equal(t, [2]float32{0.3, 0.75}, vertexAt(mesh, 0).uv)

	// flipping twice gives the original back
	flipped := vertexAt(mesh, 0).uv[1]
	assert.Equal(t, float32(0.25), 1-flipped)
}

func TestMissingTexcoordDefaultsToZero(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 0 1 0
vt 0.5 0.5
vn 0 1 0
f 1//1 2//1 3//1
`
	for _, invert := range []bool{false, true} {
		mesh, err := Load([]byte(src), Options{InvertUVs: invert})
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			assert.Equal(t, [2]float32{0, 0}, vertexAt(mesh, i).uv, "invert=%v", invert)
		}
	}
}

func TestNoTexcoordStreamIgnoresReferences(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 0 1 0\nvn 0 0 1\nf 1/5/1 2/6/1 3/7/1\n"
	mesh, err := Load([]byte(src), Options{InvertUVs: true})
	require.NoError(t, err)
	assert.Equal(t, [2]float32{0, 0}, vertexAt(mesh, 2).uv)
}

func TestFaceCornerForms(t *testing.T) {
	tests := []struct {
		corner string
		want   FaceVertex
	}{
		{"4", FaceVertex{4, NoIndex, NoIndex}},
		{"4/2", FaceVertex{4, 2, NoIndex}},
		{"4//3", FaceVertex{4, NoIndex, 3}},
		{"4/2/3", FaceVertex{4, 2, 3}},
		{"12/0/7", FaceVertex{12, 0, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.corner, func(t *testing.T) {
			faces := scanFaces([]byte("f " + tt.corner + "\n"))
			require.Len(t, faces, 1)
			assert.Equal(t, tt.want, faces[0])
		})
	}
}

func TestFaceStreamContinuesAcrossLine(t *testing.T) {
	src := "f 1/1/1 2/2/2 3/3/3\r\nvn 0 0 1\n  f\t4//1  5//1 6//1 # tail\nf 7 8 9 10\n"
	faces := scanFaces([]byte(src))
	require.Len(t, faces, 10)
	assert.Equal(t, FaceVertex{3, 3, 3}, faces[2])
	assert.Equal(t, FaceVertex{4, NoIndex, 1}, faces[3])
	assert.Equal(t, FaceVertex{10, NoIndex, NoIndex}, faces[9])
}

func TestMalformedCornerEndsFaceStream(t *testing.T) {
	src := "f 1 2 3\nf 4 x 6\nf 7 8 9\n"
	faces := scanFaces([]byte(src))
	assert.Len(t, faces, 4)

	faces = scanFaces([]byte("f -1 -2 -3\n"))
	assert.Empty(t, faces)
}

func TestCoordScanner(t *testing.T) {
	src := "vt 0.1 0.2\nv 1 2 3\n\tv -4.5 +5e-1 6E2 extra\nvn 0 0 1\nv 7 8 9 # comment\n"
	assert.Equal(t, []float32{1, 2, 3, -4.5, 0.5, 600, 7, 8, 9}, scanCoords([]byte(src), "v", 3))
	assert.Equal(t, []float32{0.1, 0.2}, scanCoords([]byte(src), "vt", 2))
	assert.Equal(t, []float32{0, 0, 1}, scanCoords([]byte(src), "vn", 3))
}

func TestShortRecordTruncatesStream(t *testing.T) {
	src := "v 1 2 3\nv 4 5\nv 6 7 8\n"
	assert.Equal(t, []float32{1, 2, 3}, scanCoords([]byte(src), "v", 3))

	s := NewCoordScanner([]byte(src), "v", 3)
	assert.True(t, s.Next())
	assert.False(t, s.Next())
	assert.False(t, s.Next(), "scanner is not restartable")
}

func TestMarkerMustLeadTheLine(t *testing.T) {
	src := "o v 9 9 9\nv 1 2 3\nusemtl f 1 2 3\n"
	assert.Equal(t, []float32{1, 2, 3}, scanCoords([]byte(src), "v", 3))
	assert.Empty(t, scanFaces([]byte(src)))
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"no positions", "vn 0 0 1\nf 1//1 1//1 1//1\n"},
		{"no faces", "v 0 0 0\nv 1 0 0\nv 0 1 0\n"},
		{"truncated positions", "v 0 0\nf 1 1 1\n"},
		{"position out of range", "v 0 0 0\nf 1 2 1\n"},
		{"position zero", "v 0 0 0\nf 0 1 1\n"},
		{"texcoord out of range", "v 0 0 0\nvt 0 0\nf 1/2 1/1 1/1\n"},
		{"normal out of range", "v 0 0 0\nvn 0 0 1\nf 1//1 1//2 1//1\n"},
		{"normals missing", "v 0 0 0\nf 1//1 1//1 1//1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.src), Options{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrParse), "got %v", err)
		})
	}
}

func TestMissingNormalIsZero(t *testing.T) {
	mesh, err := Load([]byte("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"), Options{})
	require.NoError(t, err)
	assert.Equal(t, [3]float32{0, 0, 0}, vertexAt(mesh, 0).normal)
}

func TestQuadIsNotTriangulated(t *testing.T) {
	mesh, err := Load([]byte("v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 0\nf 1 2 3 4\n"), Options{})
	require.NoError(t, err)
	assert.Equal(t, uint32(4), mesh.VertexCount)
	assert.Equal(t, [3]float32{0, 1, 0}, vertexAt(mesh, 3).pos)
}

func TestIndexFormatThreshold(t *testing.T) {
	assert.Equal(t, gpu.FormatR16Uint, IndexFormatFor(1))
	assert.Equal(t, gpu.FormatR16Uint, IndexFormatFor(65535))
	assert.Equal(t, gpu.FormatR32Uint, IndexFormatFor(65536))

	for _, count := range []int{65535, 65536} {
		faces := make([]FaceVertex, count)
		for i := range faces {
			faces[i] = FaceVertex{Position: 1, Texcoord: NoIndex, Normal: NoIndex}
		}
		mesh, err := Assemble(&Streams{Positions: []float32{0, 0, 0}, Faces: faces}, Options{})
		require.NoError(t, err)
		assert.Equal(t, uint32(count), mesh.VertexCount)
		assert.Equal(t, IndexFormatFor(count), mesh.IndexFormat)
		assert.Equal(t, uint32(count), mesh.IndexCount())

		last := mesh.Indices[len(mesh.Indices)-int(mesh.IndexFormat.Stride()):]
		if mesh.IndexFormat == gpu.FormatR16Uint {
			assert.Equal(t, uint16(count-1), binary.LittleEndian.Uint16(last))
		} else {
			assert.Equal(t, uint32(count-1), binary.LittleEndian.Uint32(last))
		}
	}
}

func TestConcurrentScanMatchesSequential(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 2000; i++ {
		fmt.Fprintf(&b, "v %d.5 -%d.25 %d\n", i, i, i*2)
		fmt.Fprintf(&b, "vt 0.%d 0.%d\n", i%10, (i+3)%10)
		fmt.Fprintf(&b, "vn 0 %d 1\n", i%2)
		if i >= 2 {
			fmt.Fprintf(&b, "f %d/%d/%d %d/%d/%d %d/%d/%d\n", i-1, i-1, i-1, i, i, i, i+1, i+1, i+1)
		}
	}
	src := []byte(b.String())

	for run := 0; run < 5; run++ {
		s, err := Scan(src)
		require.NoError(t, err)
		assert.Equal(t, scanCoords(src, "v", 3), s.Positions)
		assert.Equal(t, scanCoords(src, "vt", 2), s.Texcoords)
		assert.Equal(t, scanCoords(src, "vn", 3), s.Normals)
		assert.Equal(t, scanFaces(src), s.Faces)
		assert.Len(t, s.Positions, 2000*3)
		assert.Len(t, s.Faces, 1998*3)
	}
}

func TestLoadFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.obj"), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrIO))
}
