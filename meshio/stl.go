// Package meshio provides mesh consumers for the generation pipeline:
// binary STL export for offline inspection and a websocket broadcaster
// for streaming generated chunks to clients.
package meshio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/soypat/tetramesh"
	"github.com/soypat/tetramesh/mesher"
)

const stlTriangleSize = 50

// WriteSTL writes the triangles of mesh batches to w in binary STL
// format. Face normals are recomputed from vertex positions since STL
// carries no per vertex normals.
func WriteSTL(w io.Writer, batches []mesher.MeshBatch) error {
	nt := 0
	for i := range batches {
		nt += batches[i].TriangleCount()
	}
	if nt == 0 {
		return errors.New("no triangles to write")
	}
	header := stlHeader{Count: uint32(nt)}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return err
	}
	var b [stlTriangleSize]byte
	var d stlTriangle
	for i := range batches {
		batch := &batches[i]
		for t := 0; t+2 < len(batch.Indices); t += 3 {
			d.Vertex1 = batch.Positions[batch.Indices[t]]
			d.Vertex2 = batch.Positions[batch.Indices[t+1]]
			d.Vertex3 = batch.Positions[batch.Indices[t+2]]
			d.Normal = faceNormal(d.Vertex1, d.Vertex2, d.Vertex3)
			d.put(b[:])
			if _, err := w.Write(b[:]); err != nil {
				return err
			}
		}
	}
	return nil
}

// stlHeader defines the STL file header.
type stlHeader struct {
	_     [80]uint8 // Header
	Count uint32    // Number of triangles
}

// stlTriangle defines the triangle data within an STL file.
type stlTriangle struct {
	Normal  mgl32.Vec3
	Vertex1 mgl32.Vec3
	Vertex2 mgl32.Vec3
	Vertex3 mgl32.Vec3
	_       uint16 // Attribute byte count
}

func (t stlTriangle) put(b []byte) {
	if len(b) < stlTriangleSize {
		panic("need length 50 to marshal stlTriangle")
	}
	put3F32(b, t.Normal)
	put3F32(b[12:], t.Vertex1)
	put3F32(b[24:], t.Vertex2)
	put3F32(b[36:], t.Vertex3)
	binary.LittleEndian.PutUint16(b[48:], 0)
}

func put3F32(b []byte, f mgl32.Vec3) {
	_ = b[11] // early bounds check
	binary.LittleEndian.PutUint32(b, math.Float32bits(f[0]))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(f[1]))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(f[2]))
}

func faceNormal(v1, v2, v3 mgl32.Vec3) mgl32.Vec3 {
	n := v2.Sub(v1).Cross(v3.Sub(v1))
	m := math32.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	if m == 0 {
		return mgl32.Vec3{0, 0, 1}
	}
	return mgl32.Vec3{n[0] / m, n[1] / m, n[2] / m}
}

// DirSink is a chunk.Sink writing one STL file per chunk into a
// directory, for offline inspection of streamed output. Chunks without
// geometry have their file removed.
type DirSink struct {
	Dir string
	// Retain keeps files on RemoveMesh. One shot exports set it so the
	// scheduler's shutdown retirement leaves the exported files in
	// place.
	Retain bool
}

func (s *DirSink) path(index tetramesh.V3i) string {
	return filepath.Join(s.Dir, fmt.Sprintf("chunk_%d_%d_%d.stl", index[0], index[1], index[2]))
}

// UpdateMesh writes the chunk's batches to its STL file.
func (s *DirSink) UpdateMesh(index tetramesh.V3i, batches []mesher.MeshBatch) error {
	f, err := os.Create(s.path(index))
	if err != nil {
		return err
	}
	err = WriteSTL(f, batches)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// RemoveMesh deletes the chunk's STL file if present, unless Retain is
// set.
func (s *DirSink) RemoveMesh(index tetramesh.V3i) error {
	if s.Retain {
		return nil
	}
	err := os.Remove(s.path(index))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
