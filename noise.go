package tetramesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Deterministic 3D value noise. Lattice corner values come from integer
// hashing of the sample coordinates so equal inputs produce equal noise
// on every platform and across chunk seams.

type noiseSource struct {
	seed uint32
}

// hash returns a pseudo random value in [-1,1] for an integer lattice point.
func (n noiseSource) hash(x, y, z int32) float64 {
	h := uint32(x)*0x8da6b343 ^ uint32(y)*0xd8163841 ^ uint32(z)*0xcb1ab31f ^ n.seed*0x9e3779b9
	h ^= h >> 13
	h *= 0x85ebca6b
	h ^= h >> 16
	return float64(h)*(2.0/4294967295.0) - 1
}

// At samples smoothed value noise at p. The result is in [-1,1].
func (n noiseSource) At(p r3.Vec) float64 {
	x0 := math.Floor(p.X)
	y0 := math.Floor(p.Y)
	z0 := math.Floor(p.Z)
	ix := int32(x0)
	iy := int32(y0)
	iz := int32(z0)
	sx := smoothstep(p.X - x0)
	sy := smoothstep(p.Y - y0)
	sz := smoothstep(p.Z - z0)

	// Trilinear interpolation between the 8 cell corners.
	c000 := n.hash(ix, iy, iz)
	c100 := n.hash(ix+1, iy, iz)
	c010 := n.hash(ix, iy+1, iz)
	c110 := n.hash(ix+1, iy+1, iz)
	c001 := n.hash(ix, iy, iz+1)
	c101 := n.hash(ix+1, iy, iz+1)
	c011 := n.hash(ix, iy+1, iz+1)
	c111 := n.hash(ix+1, iy+1, iz+1)

	x00 := Mix(c000, c100, sx)
	x10 := Mix(c010, c110, sx)
	x01 := Mix(c001, c101, sx)
	x11 := Mix(c011, c111, sx)
	y0v := Mix(x00, x10, sy)
	y1v := Mix(x01, x11, sy)
	return Mix(y0v, y1v, sz)
}

func smoothstep(t float64) float64 {
	return t * t * (3 - 2*t)
}

// vecNoiseSource produces a 3-component noise vector by sampling three
// decorrelated scalar sources at the same position.
type vecNoiseSource struct {
	x, y, z noiseSource
}

func newVecNoise(seed uint32) vecNoiseSource {
	return vecNoiseSource{
		x: noiseSource{seed: seed ^ 0xa341316c},
		y: noiseSource{seed: seed ^ 0xc8013ea4},
		z: noiseSource{seed: seed ^ 0xad90777d},
	}
}

// At samples vector noise at p. Each component is in [-1,1].
func (v vecNoiseSource) At(p r3.Vec) r3.Vec {
	return r3.Vec{X: v.x.At(p), Y: v.y.At(p), Z: v.z.At(p)}
}
