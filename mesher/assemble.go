package mesher

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/soypat/tetramesh/internal/d3"
)

// DefaultMaxVertices is the vertex limit per mesh batch when the
// assembler is not configured otherwise. It stays under the 16 bit
// index limit common to realtime mesh consumers.
const DefaultMaxVertices = 65532

// degenerateTol is the maximum triangle area treated as zero.
const degenerateTol = 1e-12

// MeshBatch is welded, indexed mesh data for one chunk, packed as
// float32 vertex buffers ready for hand off to a mesh consumer.
type MeshBatch struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	Indices   []uint32
	Bounds    d3.Box
}

// VertexCount returns the number of welded vertices in the batch.
func (b *MeshBatch) VertexCount() int { return len(b.Positions) }

// TriangleCount returns the number of indexed triangles in the batch.
func (b *MeshBatch) TriangleCount() int { return len(b.Indices) / 3 }

// Assembler compacts a sparse triangle buffer into welded, indexed
// mesh batches. Corners sharing the exact same position collapse into
// one vertex; exact equality suffices inside one chunk because shared
// edges interpolate identical operands.
type Assembler struct {
	// MaxVertices per batch. When a batch would exceed it the output
	// splits across further batches rather than truncating data.
	// Zero or negative selects DefaultMaxVertices.
	MaxVertices int

	bounds  d3.Box
	batches []MeshBatch
	cur     *MeshBatch
	lookup  map[r3.Vec]uint32
}

// Assemble compacts the valid slots of buf into mesh batches. bounds
// are attached as provided; compute them analytically from the chunk
// dimensions, not from geometry. The returned batches are owned by the
// caller.
func (a *Assembler) Assemble(buf *TriangleBuffer, bounds d3.Box) []MeshBatch {
	a.begin(bounds)
	for ci := 0; ci < buf.Cells(); ci++ {
		for _, t := range buf.Cell(ci) {
			a.addTriangle(&t)
		}
	}
	return a.finish()
}

// AssembleTriangles welds a dense triangle list. Used for re-welding
// already assembled data and by consumers holding raw triangle soup.
func (a *Assembler) AssembleTriangles(tris []Triangle, bounds d3.Box) []MeshBatch {
	a.begin(bounds)
	for i := range tris {
		a.addTriangle(&tris[i])
	}
	return a.finish()
}

func (a *Assembler) begin(bounds d3.Box) {
	a.bounds = bounds
	a.batches = a.batches[:0]
	a.cur = nil
	a.lookup = nil
}

func (a *Assembler) finish() []MeshBatch {
	out := a.batches
	a.batches = nil
	a.cur = nil
	a.lookup = nil
	return out
}

func (a *Assembler) maxVerts() int {
	if a.MaxVertices > 0 {
		return a.MaxVertices
	}
	return DefaultMaxVertices
}

func (a *Assembler) addTriangle(t *Triangle) {
	if t.Degenerate(degenerateTol) {
		return
	}
	// A triangle is never split across batches: close the batch when
	// its three corners might not fit.
	if a.cur == nil || len(a.cur.Positions)+3 > a.maxVerts() {
		a.batches = append(a.batches, MeshBatch{Bounds: a.bounds})
		a.cur = &a.batches[len(a.batches)-1]
		a.lookup = make(map[r3.Vec]uint32)
	}
	for i := 0; i < 3; i++ {
		a.cur.Indices = append(a.cur.Indices, a.weld(t.V[i], t.N[i]))
	}
}

// weld returns the batch vertex index for a position, adding a new
// vertex when the position was not seen in the current batch.
func (a *Assembler) weld(pos, nrm r3.Vec) uint32 {
	if idx, ok := a.lookup[pos]; ok {
		return idx
	}
	idx := uint32(len(a.cur.Positions))
	a.lookup[pos] = idx
	a.cur.Positions = append(a.cur.Positions, mgl32.Vec3{
		float32(pos.X), float32(pos.Y), float32(pos.Z),
	})
	a.cur.Normals = append(a.cur.Normals, packNormal(nrm))
	return idx
}

// packNormal converts a normal to float32, renormalizing to absorb the
// precision loss of the conversion.
func packNormal(n r3.Vec) mgl32.Vec3 {
	x := float32(n.X)
	y := float32(n.Y)
	z := float32(n.Z)
	m := math32.Sqrt(x*x + y*y + z*z)
	if m == 0 {
		return mgl32.Vec3{0, 1, 0}
	}
	return mgl32.Vec3{x / m, y / m, z / m}
}
