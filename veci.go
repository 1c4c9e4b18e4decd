/*

Integer 3D vectors, used for lattice and chunk indexing.

*/

package tetramesh

import "gonum.org/v1/gonum/spatial/r3"

// V3i is a 3D integer vector. It is comparable and usable as a map key.
type V3i [3]int

// Add adds two vectors. Return v = a + b.
func (a V3i) Add(b V3i) V3i {
	return V3i{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

// Sub subtracts two vectors. Return v = a - b.
func (a V3i) Sub(b V3i) V3i {
	return V3i{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

// AddScalar adds a scalar to each component of the vector.
func (a V3i) AddScalar(b int) V3i {
	return V3i{a[0] + b, a[1] + b, a[2] + b}
}

// SubScalar subtracts a scalar from each component of the vector.
func (a V3i) SubScalar(b int) V3i {
	return V3i{a[0] - b, a[1] - b, a[2] - b}
}

// MulElem multiplies two vectors element by element.
func (a V3i) MulElem(b V3i) V3i {
	return V3i{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

// Norm2 returns the squared euclidean norm of the vector.
func (a V3i) Norm2() int {
	return a[0]*a[0] + a[1]*a[1] + a[2]*a[2]
}

// Volume returns the product of the vector components.
func (a V3i) Volume() int {
	return a[0] * a[1] * a[2]
}

// ToV3 converts V3i (integer) to r3.Vec (float).
func (a V3i) ToV3() r3.Vec {
	return r3.Vec{X: float64(a[0]), Y: float64(a[1]), Z: float64(a[2])}
}

// MaxElem returns the component wise maximum with b.
func (a V3i) MaxElem(b V3i) V3i {
	for i := range a {
		if b[i] > a[i] {
			a[i] = b[i]
		}
	}
	return a
}
