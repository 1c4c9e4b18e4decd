// Package mesher samples blended signed distance fields over a chunk
// lattice and extracts the isosurface with marching tetrahedra.
package mesher

import (
	"math"

	"github.com/soypat/tetramesh"
	"github.com/soypat/tetramesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// LatticePoint is one field sample on the chunk grid.
type LatticePoint struct {
	// Pos is the world space position, cached once per chunk reset.
	Pos r3.Vec
	// V is the accumulated signed field value, positive outside.
	V float64
	// N is the accumulated field normal at the point.
	N r3.Vec
	// Sign caches the sign of V: -1 inside, 0 on surface, 1 outside.
	Sign int8
}

// Lattice holds the field samples of one chunk over a regular grid of
// cellCount cells, which is cellCount+1 sample points per axis. Storage
// is reused across generations when dimensions allow.
type Lattice struct {
	cellCount tetramesh.V3i
	cellScale r3.Vec
	origin    r3.Vec
	pts       []LatticePoint
}

// Reset prepares the lattice for a chunk whose minimum corner sits at
// origin. Point storage is reallocated only when the grid dimensions
// changed; otherwise capacity is preserved. Every point starts fully
// outside with its world position cached.
func (l *Lattice) Reset(origin r3.Vec, cellCount tetramesh.V3i, cellScale r3.Vec) {
	cellCount = cellCount.MaxElem(tetramesh.V3i{1, 1, 1})
	l.cellCount = cellCount
	l.cellScale = cellScale
	l.origin = origin
	n := (cellCount[0] + 1) * (cellCount[1] + 1) * (cellCount[2] + 1)
	if cap(l.pts) < n {
		l.pts = make([]LatticePoint, n)
	} else {
		l.pts = l.pts[:n]
	}
	inf := math.Inf(1)
	up := r3.Vec{Y: 1}
	for x := 0; x <= cellCount[0]; x++ {
		for y := 0; y <= cellCount[1]; y++ {
			for z := 0; z <= cellCount[2]; z++ {
				pos := r3.Add(origin, d3.MulElem(tetramesh.V3i{x, y, z}.ToV3(), cellScale))
				l.pts[l.Index(x, y, z)] = LatticePoint{Pos: pos, V: inf, N: up, Sign: 1}
			}
		}
	}
}

// Index returns the storage index of lattice point (x,y,z).
func (l *Lattice) Index(x, y, z int) int {
	return x*(l.cellCount[1]+1)*(l.cellCount[2]+1) + y*(l.cellCount[2]+1) + z
}

// At returns the lattice point at grid coordinate (x,y,z).
func (l *Lattice) At(x, y, z int) *LatticePoint {
	return &l.pts[l.Index(x, y, z)]
}

// CellCount returns the number of cells per axis.
func (l *Lattice) CellCount() tetramesh.V3i { return l.cellCount }

// CellScale returns the world size of one cell.
func (l *Lattice) CellScale() r3.Vec { return l.cellScale }

// Origin returns the world position of lattice point (0,0,0).
func (l *Lattice) Origin() r3.Vec { return l.origin }

// Points returns the backing point storage. The slice is invalidated
// by the next Reset.
func (l *Lattice) Points() []LatticePoint { return l.pts }

// Bounds returns the chunk's axis aligned bounds computed analytically
// from cell count and scale rather than from generated geometry.
func (l *Lattice) Bounds() d3.Box {
	return d3.Box{
		Min: l.origin,
		Max: r3.Add(l.origin, d3.MulElem(l.cellCount.ToV3(), l.cellScale)),
	}
}

// Builder fills a lattice by folding an ordered shape list into the
// field. Per point sampling within one shape pass runs in parallel;
// the fold across shapes is a sequential dependency chain because each
// blend reads the previous shape's accumulated output.
type Builder struct {
	// Workers bounds the goroutines of one shape pass.
	// Zero means GOMAXPROCS.
	Workers int
}

// Build samples and blends shapes over the lattice in authoring order.
// It reports whether any field was written: an empty shape list leaves
// the lattice all-outside and returns false so callers can skip meshing
// entirely.
func (b *Builder) Build(l *Lattice, shapes []tetramesh.CompiledShape) bool {
	if len(shapes) == 0 {
		return false
	}
	for i := range shapes {
		cs := &shapes[i]
		parallelFor(len(l.pts), b.Workers, func(start, end int) {
			for j := start; j < end; j++ {
				pt := &l.pts[j]
				s := cs.BlendInto(tetramesh.FieldSample{D: pt.V, N: pt.N}, pt.Pos)
				pt.V = s.D
				pt.N = s.N
				pt.Sign = tetramesh.Sign(s.D)
			}
		})
	}
	return true
}
