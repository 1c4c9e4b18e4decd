package tetramesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Built-in shape kernels. All evaluate in the shape's local space where
// the canonical form is unit sized: a box spanning [-0.5,0.5]^3 and a
// sphere of diameter 1. World size comes from the shape's pose scaling.

// sphere kernel. The world radius is recovered from the shape's own
// pose so non-uniform scaling yields an ellipsoid-like field.
type sphere struct {
	pose   Transform
	center r3.Vec
}

func newSphere(s Shape) Evaluator {
	return &sphere{pose: s.Pose, center: s.Pose.Position()}
}

func (s *sphere) Evaluate(p r3.Vec) float64 {
	dir := p
	if r3.Norm2(dir) < epsilon {
		dir = r3.Vec{Y: 1}
	}
	// Surface point along the local radius, mapped to world space,
	// gives the radius in the sampled direction.
	surf := s.pose.Transform(r3.Scale(0.5, r3.Unit(dir)))
	world := s.pose.Transform(p)
	return r3.Norm(r3.Sub(world, s.center)) - r3.Norm(r3.Sub(surf, s.center))
}

// box kernel, unit box spanning [-0.5,0.5]^3 in local space.
type box struct{}

func newBox(Shape) Evaluator { return box{} }

func (box) Evaluate(p r3.Vec) float64 {
	const half = 0.5
	ax := math.Abs(p.X)
	ay := math.Abs(p.Y)
	az := math.Abs(p.Z)
	if ax <= half && ay <= half && az <= half {
		// Inside: negative distance to the nearest face.
		return math.Max(az, math.Max(ax, ay)) - half
	}
	dx := math.Max(ax-half, 0)
	dy := math.Max(ay-half, 0)
	dz := math.Max(az-half, 0)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// terrain kernel: a ground plane at local Y zero perturbed by fractal
// value noise. The finest octave samples a position offset by the
// coarsest octave's vector noise output, which warps the heightfield
// enough to produce overhangs.
type terrain struct {
	noise   noiseSource
	warp    vecNoiseSource
	octaves []noiseOctave
}

type noiseOctave struct {
	freq, amp float64
}

// defaultTerrainOctaves go coarse to fine with halving amplitude.
var defaultTerrainOctaves = []noiseOctave{
	{freq: 0.25, amp: 2.0},
	{freq: 0.5, amp: 1.0},
	{freq: 1.0, amp: 0.5},
	{freq: 2.0, amp: 0.25},
}

// warpScale is the offset in local units applied to the finest octave's
// sample position per unit of coarse vector noise.
const warpScale = 1.5

// TerrainKernel returns a terrain kernel seeded for reproducible noise.
// DefaultTable registers TerrainKernel(0) for KindTerrain.
func TerrainKernel(seed uint32) Kernel {
	return func(Shape) Evaluator {
		return &terrain{
			noise:   noiseSource{seed: seed},
			warp:    newVecNoise(seed),
			octaves: defaultTerrainOctaves,
		}
	}
}

func newTerrain(s Shape) Evaluator { return TerrainKernel(0)(s) }

func (t *terrain) Evaluate(p r3.Vec) float64 {
	coarse := t.octaves[0]
	warp := t.warp.At(r3.Scale(coarse.freq, p))
	d := p.Y
	last := len(t.octaves) - 1
	for i, o := range t.octaves {
		q := p
		if i == last && last > 0 {
			q = r3.Add(p, r3.Scale(warpScale, warp))
		}
		d -= o.amp * t.noise.At(r3.Scale(o.freq, q))
	}
	return d
}
