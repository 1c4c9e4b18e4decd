package mesher

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/soypat/tetramesh"
)

// Marching tetrahedra over the chunk lattice. Each cubic cell is
// decomposed into the fixed set of 6 tetrahedra sharing the cube's main
// diagonal, the minimal decomposition that tiles space without gaps.

// cellCorners are the 8 cell corner offsets in marching cubes order:
// bottom face counterclockwise then top face counterclockwise.
var cellCorners = [8]tetramesh.V3i{
	{0, 0, 0},
	{1, 0, 0},
	{1, 1, 0},
	{0, 1, 0},
	{0, 0, 1},
	{1, 0, 1},
	{1, 1, 1},
	{0, 1, 1},
}

// tetraTable lists the corner indices of the 6 tetrahedra. Every entry
// contains the main diagonal pair (0,6) so faces between neighboring
// tetrahedra coincide exactly.
var tetraTable = [6][4]int{
	{0, 5, 1, 6},
	{0, 1, 2, 6},
	{0, 2, 3, 6},
	{0, 3, 7, 6},
	{0, 7, 4, 6},
	{0, 4, 5, 6},
}

// TrianglesPerCell is the fixed triangle capacity of one cell:
// 6 tetrahedra emitting at most 2 triangles each.
const TrianglesPerCell = 12

// Triangle is a raw mesh triangle with per corner normals. Triangles
// may be degenerate when interpolation collapses edge crossings onto
// numerically coincident points; the assembler filters those out.
type Triangle struct {
	V [3]r3.Vec
	N [3]r3.Vec
}

// Degenerate reports whether the triangle has an area of tol or less.
func (t *Triangle) Degenerate(tol float64) bool {
	area2 := r3.Norm(r3.Cross(r3.Sub(t.V[1], t.V[0]), r3.Sub(t.V[2], t.V[0])))
	return area2 <= 2*tol
}

// TriangleBuffer is fixed capacity triangle storage for one chunk:
// TrianglesPerCell slots per cell plus a per cell count, letting the
// assembler skip unused slots without scanning full capacity.
type TriangleBuffer struct {
	tris   []Triangle
	counts []uint8
}

// Reset sizes the buffer for the given cell count, reusing storage when
// capacity allows.
func (b *TriangleBuffer) Reset(cells int) {
	n := cells * TrianglesPerCell
	if cap(b.tris) < n {
		b.tris = make([]Triangle, n)
	} else {
		b.tris = b.tris[:n]
	}
	if cap(b.counts) < cells {
		b.counts = make([]uint8, cells)
	} else {
		b.counts = b.counts[:cells]
		for i := range b.counts {
			b.counts[i] = 0
		}
	}
}

// Cells returns the number of cells the buffer is sized for.
func (b *TriangleBuffer) Cells() int { return len(b.counts) }

// Cell returns the valid triangles of one cell.
func (b *TriangleBuffer) Cell(i int) []Triangle {
	return b.tris[i*TrianglesPerCell : i*TrianglesPerCell+int(b.counts[i])]
}

// Total returns the number of valid triangles over all cells.
func (b *TriangleBuffer) Total() int {
	n := 0
	for _, c := range b.counts {
		n += int(c)
	}
	return n
}

// slots returns the full capacity slot region of one cell.
func (b *TriangleBuffer) slots(i int) []Triangle {
	return b.tris[i*TrianglesPerCell : (i+1)*TrianglesPerCell]
}

// Mesher extracts isosurface triangles from a populated lattice.
type Mesher struct {
	// Workers bounds the goroutines of the per cell pass.
	// Zero means GOMAXPROCS.
	Workers int
	// FlipNormals inverts triangle winding and normals globally.
	FlipNormals bool
}

// March triangulates every cell of the lattice into dst. Cells are
// processed in parallel; each cell writes only its own slot region and
// count, and March returns only after all cells completed.
func (m *Mesher) March(l *Lattice, dst *TriangleBuffer) {
	cc := l.CellCount()
	cells := cc.Volume()
	dst.Reset(cells)
	parallelFor(cells, m.Workers, func(start, end int) {
		for ci := start; ci < end; ci++ {
			m.marchCell(l, ci, dst)
		}
	})
}

func (m *Mesher) marchCell(l *Lattice, ci int, dst *TriangleBuffer) {
	cc := l.CellCount()
	cz := ci % cc[2]
	cy := (ci / cc[2]) % cc[1]
	cx := ci / (cc[1] * cc[2])

	var corner [8]*LatticePoint
	allNeg := true
	allPos := true
	for i, off := range cellCorners {
		p := l.At(cx+off[0], cy+off[1], cz+off[2])
		corner[i] = p
		allNeg = allNeg && p.Sign < 0
		allPos = allPos && p.Sign >= 0
	}
	if allNeg || allPos {
		// Cell is fully inside or outside, no crossing possible.
		return
	}
	out := dst.slots(ci)
	n := 0
	for _, tet := range &tetraTable {
		n += m.marchTetra(corner[tet[0]], corner[tet[1]], corner[tet[2]], corner[tet[3]], out[n:])
	}
	dst.counts[ci] = uint8(n)
}

// marchTetra emits the triangles of the zero crossing within one
// tetrahedron. With one corner inside or outside a single triangle is
// emitted; with a 2-2 sign split the crossing is a quad split into two
// triangles.
func (m *Mesher) marchTetra(a, b, c, d *LatticePoint, dst []Triangle) int {
	var in, out [4]*LatticePoint
	ni, no := 0, 0
	for _, p := range [4]*LatticePoint{a, b, c, d} {
		if p.Sign < 0 {
			in[ni] = p
			ni++
		} else {
			out[no] = p
			no++
		}
	}
	switch ni {
	case 0, 4:
		return 0
	case 1:
		v0, n0 := crossEdge(in[0], out[0])
		v1, n1 := crossEdge(in[0], out[1])
		v2, n2 := crossEdge(in[0], out[2])
		dst[0] = m.orient(Triangle{V: [3]r3.Vec{v0, v1, v2}, N: [3]r3.Vec{n0, n1, n2}})
		return 1
	case 3:
		v0, n0 := crossEdge(in[0], out[0])
		v1, n1 := crossEdge(in[1], out[0])
		v2, n2 := crossEdge(in[2], out[0])
		dst[0] = m.orient(Triangle{V: [3]r3.Vec{v0, v1, v2}, N: [3]r3.Vec{n0, n1, n2}})
		return 1
	default: // 2
		v00, n00 := crossEdge(in[0], out[0])
		v01, n01 := crossEdge(in[0], out[1])
		v11, n11 := crossEdge(in[1], out[1])
		v10, n10 := crossEdge(in[1], out[0])
		dst[0] = m.orient(Triangle{V: [3]r3.Vec{v00, v01, v11}, N: [3]r3.Vec{n00, n01, n11}})
		dst[1] = m.orient(Triangle{V: [3]r3.Vec{v00, v11, v10}, N: [3]r3.Vec{n00, n11, n10}})
		return 2
	}
}

// crossEdge interpolates the zero crossing on the edge between an
// inside point a and an outside point b. Passing operands in this fixed
// order makes the result bit-identical for every tetrahedron and cell
// sharing the edge, which the assembler's exact-equality weld needs.
func crossEdge(a, b *LatticePoint) (pos, nrm r3.Vec) {
	den := b.V - a.V
	t := 0.5
	if den > 0 {
		t = -a.V / den
	}
	pos = r3.Add(a.Pos, r3.Scale(t, r3.Sub(b.Pos, a.Pos)))
	nrm = r3.Add(a.N, r3.Scale(t, r3.Sub(b.N, a.N)))
	if r3.Norm2(nrm) < 1e-24 {
		nrm = a.N
	} else {
		nrm = r3.Unit(nrm)
	}
	return pos, nrm
}

// orient fixes the winding so the geometric triangle normal points
// toward the outside of the field (the interpolated field normal
// direction), then applies the global flip.
func (m *Mesher) orient(t Triangle) Triangle {
	geo := r3.Cross(r3.Sub(t.V[1], t.V[0]), r3.Sub(t.V[2], t.V[0]))
	want := r3.Add(t.N[0], r3.Add(t.N[1], t.N[2]))
	flip := r3.Dot(geo, want) < 0
	if m.FlipNormals {
		flip = !flip
		t.N[0] = r3.Scale(-1, t.N[0])
		t.N[1] = r3.Scale(-1, t.N[1])
		t.N[2] = r3.Scale(-1, t.N[2])
	}
	if flip {
		t.V[1], t.V[2] = t.V[2], t.V[1]
		t.N[1], t.N[2] = t.N[2], t.N[1]
	}
	return t
}
