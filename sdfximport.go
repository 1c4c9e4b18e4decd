package tetramesh

import (
	"github.com/deadsy/sdfx/sdf"
	"gonum.org/v1/gonum/spatial/r3"
)

// sdfxEvaluator wraps an sdfx signed distance field. Both conventions
// agree on negative inside.
type sdfxEvaluator struct {
	s sdf.SDF3
}

func (e sdfxEvaluator) Evaluate(p r3.Vec) float64 {
	return e.s.Evaluate(sdf.V3{X: p.X, Y: p.Y, Z: p.Z})
}

// SDFXKernel adapts a model built with github.com/deadsy/sdfx as a
// shape kernel. The field is sampled in the shape's local space so the
// pose transform applies as usual. Register it on a user kind:
//
//	table.RegisterKernel(tetramesh.KindUser, tetramesh.SDFXKernel(bolt))
//
// Panics if s is nil.
func SDFXKernel(s sdf.SDF3) Kernel {
	if s == nil {
		panic("tetramesh: nil sdfx field")
	}
	return func(Shape) Evaluator { return sdfxEvaluator{s: s} }
}
