package tetramesh

import (
	"errors"
	"strconv"

	"gonum.org/v1/gonum/spatial/r3"
)

// Kind identifies a shape distance kernel. Values above KindUser are
// reserved for user registered kernels.
type Kind uint8

const (
	KindSphere Kind = iota
	KindBox
	KindTerrain
	// KindUser is the first Kind value available for user kernels.
	KindUser Kind = 32
)

// String returns the name of built-in kinds.
func (k Kind) String() string {
	switch k {
	case KindSphere:
		return "sphere"
	case KindBox:
		return "box"
	case KindTerrain:
		return "terrain"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Shape is an immutable descriptor of one signed distance shape
// within a generation pass. Shapes are copied by value into the
// pipeline and blended in authoring order.
type Shape struct {
	Kind        Kind
	Blend       BlendMode
	BlendFactor float64
	// Bevel rounds the shape surface outward by the given radius.
	Bevel float64
	// Pose is the local to world transform of the shape.
	Pose   Transform
	Active bool
}

// Kernel constructs the distance evaluator for a shape snapshot.
// The evaluator works in the shape's local space.
type Kernel func(s Shape) Evaluator

// Table maps shape kinds and blend modes to their implementations.
// A Table is resolved once at configuration load, not per sample point.
type Table struct {
	kernels map[Kind]Kernel
	blends  map[BlendMode]BlendFunc
}

// Errors returned when compiling a shape list against a Table.
var (
	ErrUnknownKind  = errors.New("tetramesh: shape kind not registered")
	ErrUnknownBlend = errors.New("tetramesh: blend mode not registered")
	ErrSingularPose = errors.New("tetramesh: shape pose transform is singular")
)

// DefaultTable returns a Table with the built-in shape kernels and
// blend operators registered.
func DefaultTable() *Table {
	t := &Table{
		kernels: make(map[Kind]Kernel),
		blends:  make(map[BlendMode]BlendFunc),
	}
	t.RegisterKernel(KindSphere, newSphere)
	t.RegisterKernel(KindBox, newBox)
	t.RegisterKernel(KindTerrain, newTerrain)
	t.RegisterBlend(BlendUnion, blendUnion)
	t.RegisterBlend(BlendSubtraction, blendSubtraction)
	t.RegisterBlend(BlendIntersect, blendIntersect)
	t.RegisterBlend(BlendSmooth, blendSmooth)
	t.RegisterBlend(BlendSmoothUnion, blendSmoothUnion)
	t.RegisterBlend(BlendRepel, blendRepel)
	t.RegisterBlend(BlendLerp, blendLerp)
	return t
}

// RegisterKernel registers a distance kernel for a shape kind,
// replacing any previous registration. RegisterKernel panics on a
// nil kernel.
func (t *Table) RegisterKernel(k Kind, kern Kernel) {
	if kern == nil {
		panic("nil Kernel argument")
	}
	t.kernels[k] = kern
}

// RegisterBlend registers a blend operator implementation,
// replacing any previous registration. RegisterBlend panics on a
// nil blend function.
func (t *Table) RegisterBlend(m BlendMode, fn BlendFunc) {
	if fn == nil {
		panic("nil BlendFunc argument")
	}
	t.blends[m] = fn
}

// CompiledShape is a shape resolved against a Table: the distance
// kernel, blend operator and world to local transform are looked up
// once so field evaluation does no map accesses.
type CompiledShape struct {
	eval   Evaluator
	blend  BlendFunc
	factor float64
	bevel  float64
	inv    Transform // world to local
}

// Compile resolves active shapes against the table preserving authoring
// order. Inactive shapes are dropped. Blending across the returned list
// is a strict left to right fold: shape i+1 reads the accumulated output
// of shape i, so the order of the result is authoritative.
func (t *Table) Compile(shapes []Shape) ([]CompiledShape, error) {
	out := make([]CompiledShape, 0, len(shapes))
	for _, s := range shapes {
		if !s.Active {
			continue
		}
		kern, ok := t.kernels[s.Kind]
		if !ok {
			return nil, ErrUnknownKind
		}
		blend, ok := t.blends[s.Blend]
		if !ok {
			return nil, ErrUnknownBlend
		}
		inv := s.Pose.Inv()
		if inv == zeroTransform {
			return nil, ErrSingularPose
		}
		out = append(out, CompiledShape{
			eval:   kern(s),
			blend:  blend,
			factor: s.BlendFactor,
			bevel:  s.Bevel,
			inv:    inv,
		})
	}
	return out, nil
}

// Distance returns the signed distance from the shape surface to a
// world space point, negative inside.
func (cs *CompiledShape) Distance(p r3.Vec) float64 {
	return cs.eval.Evaluate(cs.inv.Transform(p)) - cs.bevel
}

// Normal estimates the world space surface normal of the shape field at
// p by four point tetrahedral differencing.
func (cs *CompiledShape) Normal(p r3.Vec) r3.Vec {
	var n r3.Vec
	for _, e := range tetraDirs {
		d := cs.Distance(r3.Add(p, r3.Scale(normalEps, e)))
		n = r3.Add(n, r3.Scale(d, e))
	}
	if r3.Norm2(n) < epsilon {
		return r3.Vec{Y: 1}
	}
	return r3.Unit(n)
}

// Sample evaluates distance and normal of the shape field at a world
// space point.
func (cs *CompiledShape) Sample(p r3.Vec) FieldSample {
	return FieldSample{D: cs.Distance(p), N: cs.Normal(p)}
}

// BlendInto folds the shape's field at p into the accumulated sample
// using the shape's configured blend operator and factor.
func (cs *CompiledShape) BlendInto(acc FieldSample, p r3.Vec) FieldSample {
	return cs.blend(acc, cs.Sample(p), cs.factor)
}
