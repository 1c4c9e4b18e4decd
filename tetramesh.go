// Package tetramesh converts signed distance field shape descriptions into
// triangulated surface meshes. Shapes are sampled over a regular lattice,
// blended with CSG-style operators, and triangulated with marching
// tetrahedra. The chunk package streams generation over a moving window
// of spatial chunks.
package tetramesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Evaluator is the interface to a signed distance shape kernel.
type Evaluator interface {
	// Evaluate takes a point in the shape's local space and returns the
	// signed distance of the shape surface to the point. The distance
	// is negative if the point is contained within the shape.
	Evaluate(p r3.Vec) float64
}

// FieldSample is a scalar field value paired with the field's
// surface normal at the sampled point.
type FieldSample struct {
	D float64
	N r3.Vec
}

// Outside returns a sample infinitely far outside any surface.
// It is the identity element of the Union blend and the initial
// accumulator of a blend fold.
func Outside() FieldSample {
	return FieldSample{D: math.Inf(1), N: r3.Vec{Y: 1}}
}

const (
	epsilon = 1e-12
	// normalEps is the offset used for normal estimation by differencing.
	normalEps = 1e-4
)

// Tetrahedron vertex directions used for four point normal estimation.
// Using a regular tetrahedron stencil avoids the axis-aligned bias of a
// six point central difference at two thirds the evaluation cost.
var tetraDirs = [4]r3.Vec{
	{X: 1, Y: -1, Z: -1},
	{X: -1, Y: 1, Z: -1},
	{X: -1, Y: -1, Z: 1},
	{X: 1, Y: 1, Z: 1},
}

// Clamp x between a and b, assume a <= b.
func Clamp(x, a, b float64) float64 {
	if x < a {
		return a
	}
	if x > b {
		return b
	}
	return x
}

// Mix does a linear interpolation from x to y, a = [0,1].
func Mix(x, y, a float64) float64 {
	return x + (a * (y - x))
}

// Sign returns the sign of x.
func Sign(x float64) int8 {
	if x < 0 {
		return -1
	}
	if x > 0 {
		return 1
	}
	return 0
}
