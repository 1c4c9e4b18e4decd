package tetramesh

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func fs(d float64) FieldSample {
	return FieldSample{D: d, N: r3.Vec{Y: 1}}
}

var blendPairs = [][2]float64{
	{0, 0},
	{-1, 2},
	{2, -1},
	{0.5, 0.25},
	{-3, -0.1},
	{10, -10},
}

func TestBlendCommutativity(t *testing.T) {
	const k = 0.5
	commutative := map[string]BlendFunc{
		"union":     blendUnion,
		"intersect": blendIntersect,
	}
	for name, blend := range commutative {
		for _, pair := range blendPairs {
			a, b := fs(pair[0]), fs(pair[1])
			ab := blend(a, b, k).D
			ba := blend(b, a, k).D
			if ab != ba {
				t.Errorf("%s not commutative for (%g,%g): %g vs %g", name, a.D, b.D, ab, ba)
			}
		}
	}
	// Subtraction carves the incoming shape out of the accumulator, so
	// swapping operands must change the result.
	a, b := fs(-1), fs(2)
	if blendSubtraction(a, b, 0).D == blendSubtraction(b, a, 0).D {
		t.Error("subtraction should depend on operand order")
	}
	if blendLerp(a, b, 0.25).D == blendLerp(b, a, 0.25).D {
		t.Error("lerp should depend on operand order")
	}
}

func TestBlendUnion(t *testing.T) {
	for _, pair := range blendPairs {
		a, b := fs(pair[0]), fs(pair[1])
		got := blendUnion(a, b, 0).D
		want := math.Min(a.D, b.D)
		if got != want {
			t.Errorf("union(%g,%g) = %g, want %g", a.D, b.D, got, want)
		}
	}
}

func TestBlendSubtraction(t *testing.T) {
	// Inside the subtracted shape the field flips sign.
	got := blendSubtraction(fs(-2), fs(-0.5), 0)
	if got.D != 0.5 {
		t.Errorf("subtraction inside cut = %g, want 0.5", got.D)
	}
	if got.N.Y != -1 {
		t.Errorf("subtraction should flip the cutting normal, got %v", got.N)
	}
	// Outside the subtracted shape the accumulator passes through.
	got = blendSubtraction(fs(-2), fs(3), 0)
	if got.D != -2 {
		t.Errorf("subtraction outside cut = %g, want -2", got.D)
	}
}

func TestBlendSmoothZeroRadius(t *testing.T) {
	for _, pair := range blendPairs {
		a, b := fs(pair[0]), fs(pair[1])
		got := blendSmooth(a, b, 0).D
		want := math.Min(a.D, b.D)
		if got != want {
			t.Errorf("smooth k=0 (%g,%g) = %g, want min %g", a.D, b.D, got, want)
		}
	}
}

func TestBlendSmoothBounds(t *testing.T) {
	const k = 0.5
	for _, pair := range blendPairs {
		a, b := fs(pair[0]), fs(pair[1])
		got := blendSmooth(a, b, k).D
		min := math.Min(a.D, b.D)
		if got > min {
			t.Errorf("smooth(%g,%g) = %g exceeds min %g", a.D, b.D, got, min)
		}
		if got < min-k {
			t.Errorf("smooth(%g,%g) = %g dips more than k below min %g", a.D, b.D, got, min)
		}
	}
	// Far apart samples must reduce to plain union.
	got := blendSmooth(fs(0), fs(10), k).D
	if got != 0 {
		t.Errorf("smooth far apart = %g, want 0", got)
	}
	// Equal samples see the full blend rounding.
	got = blendSmooth(fs(1), fs(1), k).D
	want := 1 - k/6
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("smooth equal samples = %g, want %g", got, want)
	}
}

func TestBlendRepelIdentity(t *testing.T) {
	const k = 0.5
	for _, pair := range blendPairs {
		a, b := fs(pair[0]), fs(pair[1])
		su, _ := smoothUnionDist(a.D, b.D, k)
		want := 2*math.Min(a.D, b.D) - su
		got := blendRepel(a, b, k).D
		if got != want {
			t.Errorf("repel(%g,%g) = %g, want %g", a.D, b.D, got, want)
		}
		// Repel never gets closer than plain union.
		if got < math.Min(a.D, b.D)-1e-12 {
			t.Errorf("repel(%g,%g) = %g below min", a.D, b.D, got)
		}
	}
}

// The fold accumulator starts at +Inf. Every blend must produce a
// finite, meaningful result from it.
func TestBlendEmptyAccumulator(t *testing.T) {
	empty := Outside()
	in := fs(-0.25)
	const k = 0.5
	if got := blendUnion(empty, in, k); got.D != in.D {
		t.Errorf("union from empty = %g, want %g", got.D, in.D)
	}
	if got := blendSubtraction(empty, in, k); !math.IsInf(got.D, 1) {
		t.Errorf("subtraction from empty = %g, want +Inf", got.D)
	}
	if got := blendIntersect(empty, in, k); !math.IsInf(got.D, 1) {
		t.Errorf("intersect from empty = %g, want +Inf", got.D)
	}
	for _, blend := range []BlendFunc{blendSmooth, blendSmoothUnion, blendRepel, blendLerp} {
		got := blend(empty, in, k)
		if got.D != in.D {
			t.Errorf("blend from empty = %g, want %g", got.D, in.D)
		}
		if math.IsNaN(got.N.X) || math.IsNaN(got.N.Y) || math.IsNaN(got.N.Z) {
			t.Errorf("blend from empty produced NaN normal %v", got.N)
		}
	}
}

func TestUnitMix(t *testing.T) {
	a := r3.Vec{X: 1}
	b := r3.Vec{Y: 1}
	got := unitMix(a, b, 0.5)
	if math.Abs(r3.Norm(got)-1) > 1e-12 {
		t.Errorf("unitMix result not unit length: %v", got)
	}
	// Opposing inputs cancel. The result must stay usable.
	got = unitMix(a, r3.Scale(-1, a), 0.5)
	if got != a {
		t.Errorf("unitMix of opposing normals = %v, want %v", got, a)
	}
}
