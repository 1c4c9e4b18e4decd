package tetramesh

import (
	"math"
	"strconv"

	"gonum.org/v1/gonum/spatial/r3"
)

// BlendMode names a field blend operator.
type BlendMode uint8

const (
	BlendUnion BlendMode = iota
	BlendSubtraction
	BlendIntersect
	BlendSmooth
	BlendSmoothUnion
	BlendRepel
	BlendLerp
)

// String returns the name of built-in blend modes.
func (m BlendMode) String() string {
	switch m {
	case BlendUnion:
		return "union"
	case BlendSubtraction:
		return "subtraction"
	case BlendIntersect:
		return "intersect"
	case BlendSmooth:
		return "smooth"
	case BlendSmoothUnion:
		return "smoothUnion"
	case BlendRepel:
		return "repel"
	case BlendLerp:
		return "lerp"
	}
	return "blend(" + strconv.Itoa(int(m)) + ")"
}

// BlendFunc combines an accumulated field sample with an incoming
// shape sample using blend factor k and returns the new accumulation.
// Subtraction, Repel and Lerp are not commutative: folding a shape
// list must apply blends in authoring order, left to right.
type BlendFunc func(acc, in FieldSample, k float64) FieldSample

func blendUnion(a, b FieldSample, k float64) FieldSample {
	if b.D < a.D {
		return b
	}
	return a
}

func blendSubtraction(a, b FieldSample, k float64) FieldSample {
	if -b.D > a.D {
		return FieldSample{D: -b.D, N: r3.Scale(-1, b.N)}
	}
	return a
}

func blendIntersect(a, b FieldSample, k float64) FieldSample {
	if b.D > a.D {
		return b
	}
	return a
}

// blendSmooth is a cubic polynomial smooth minimum with radius k.
func blendSmooth(a, b FieldSample, k float64) FieldSample {
	if k <= 0 || math.IsInf(a.D, 1) {
		return blendUnion(a, b, k)
	}
	h := Clamp(k-math.Abs(a.D-b.D), 0, k) / k
	d := math.Min(a.D, b.D) - h*h*h*k*(1.0/6.0)
	if b.D < a.D {
		a, b = b, a
	}
	return FieldSample{D: d, N: unitMix(a.N, b.N, 0.5*h)}
}

// smoothUnionDist is the quadratic interpolation based smooth minimum.
func smoothUnionDist(da, db, k float64) (d, h float64) {
	h = Clamp(0.5+0.5*(db-da)/k, 0, 1)
	return Mix(db, da, h) - k*h*(1-h), h
}

func blendSmoothUnion(a, b FieldSample, k float64) FieldSample {
	if k <= 0 || math.IsInf(a.D, 1) {
		return blendUnion(a, b, k)
	}
	d, h := smoothUnionDist(a.D, b.D, k)
	return FieldSample{D: d, N: unitMix(b.N, a.N, h)}
}

// blendRepel pushes the two fields apart: 2*min(dA,dB) minus the
// smooth union leaves a gap of width k between the surfaces.
func blendRepel(a, b FieldSample, k float64) FieldSample {
	if k <= 0 || math.IsInf(a.D, 1) {
		return blendUnion(a, b, k)
	}
	su, _ := smoothUnionDist(a.D, b.D, k)
	d := 2*math.Min(a.D, b.D) - su
	n := a.N
	if b.D < a.D {
		n = b.N
	}
	return FieldSample{D: d, N: n}
}

func blendLerp(a, b FieldSample, k float64) FieldSample {
	if math.IsInf(a.D, 1) {
		return b
	}
	return FieldSample{D: Mix(a.D, b.D, k), N: unitMix(a.N, b.N, k)}
}

// unitMix linearly interpolates two unit vectors and renormalizes.
func unitMix(a, b r3.Vec, t float64) r3.Vec {
	n := r3.Add(r3.Scale(1-t, a), r3.Scale(t, b))
	if r3.Norm2(n) < epsilon {
		// Opposing normals cancel out. Either input is as good.
		return a
	}
	return r3.Unit(n)
}
