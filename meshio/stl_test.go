package meshio

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/soypat/tetramesh"
	"github.com/soypat/tetramesh/mesher"
)

// quadBatch is a unit quad in the XY plane as two indexed triangles
// sharing an edge.
func quadBatch() []mesher.MeshBatch {
	return []mesher.MeshBatch{{
		Positions: []mgl32.Vec3{
			{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
		},
		Normals: []mgl32.Vec3{
			{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}}
}

func TestWriteSTL(t *testing.T) {
	var b bytes.Buffer
	if err := WriteSTL(&b, quadBatch()); err != nil {
		t.Fatal(err)
	}
	want := 84 + 2*stlTriangleSize
	if b.Len() != want {
		t.Fatalf("STL size = %d, want %d", b.Len(), want)
	}
	data := b.Bytes()
	if count := binary.LittleEndian.Uint32(data[80:]); count != 2 {
		t.Errorf("triangle count = %d, want 2", count)
	}
	// First triangle normal is +Z.
	nz := math.Float32frombits(binary.LittleEndian.Uint32(data[84+8:]))
	if nz != 1 {
		t.Errorf("face normal z = %g, want 1", nz)
	}
	// First vertex of the first triangle is the origin.
	for i := 0; i < 3; i++ {
		v := math.Float32frombits(binary.LittleEndian.Uint32(data[84+12+4*i:]))
		if v != 0 {
			t.Errorf("vertex1 component %d = %g, want 0", i, v)
		}
	}
}

func TestWriteSTLEmpty(t *testing.T) {
	var b bytes.Buffer
	if err := WriteSTL(&b, nil); err == nil {
		t.Error("writing zero triangles should error")
	}
}

func TestDirSink(t *testing.T) {
	sink := &DirSink{Dir: t.TempDir()}
	idx := tetramesh.V3i{1, -2, 0}
	if err := sink.UpdateMesh(idx, quadBatch()); err != nil {
		t.Fatal(err)
	}
	path := sink.path(idx)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != int64(84+2*stlTriangleSize) {
		t.Errorf("chunk file size = %d", info.Size())
	}
	if err := sink.RemoveMesh(idx); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("chunk file survives RemoveMesh")
	}
	// Removing an absent chunk is not an error.
	if err := sink.RemoveMesh(tetramesh.V3i{9, 9, 9}); err != nil {
		t.Errorf("removing absent chunk = %v", err)
	}
}

// With Retain set the exported files survive mesh retirement, so a one
// shot export can close its scheduler without losing output.
func TestDirSinkRetain(t *testing.T) {
	sink := &DirSink{Dir: t.TempDir(), Retain: true}
	idx := tetramesh.V3i{0, 0, 0}
	if err := sink.UpdateMesh(idx, quadBatch()); err != nil {
		t.Fatal(err)
	}
	if err := sink.RemoveMesh(idx); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(sink.path(idx)); err != nil {
		t.Errorf("retained chunk file missing: %v", err)
	}
}
