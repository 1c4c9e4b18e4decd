package config

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/soypat/tetramesh"
)

// ShapeSpec is the YAML description of one scene shape. Rotation is
// XYZ euler angles in degrees. A nil Active defaults to true and a
// zero Scale axis defaults to 1.
type ShapeSpec struct {
	Kind        string     `yaml:"kind"`
	Blend       string     `yaml:"blend"`
	BlendFactor float64    `yaml:"blend_factor"`
	Bevel       float64    `yaml:"bevel"`
	Position    [3]float64 `yaml:"position"`
	Scale       [3]float64 `yaml:"scale"`
	Rotation    [3]float64 `yaml:"rotation"`
	Active      *bool      `yaml:"active"`
}

// Shape converts the spec to a scene shape.
func (s ShapeSpec) Shape() (tetramesh.Shape, error) {
	kind, err := parseKind(s.Kind)
	if err != nil {
		return tetramesh.Shape{}, err
	}
	blend, err := parseBlend(s.Blend)
	if err != nil {
		return tetramesh.Shape{}, err
	}
	scale := s.Scale
	for i, v := range scale {
		if v == 0 {
			scale[i] = 1
		}
	}
	pose := tetramesh.ComposeTransform(
		r3.Vec{X: s.Position[0], Y: s.Position[1], Z: s.Position[2]},
		r3.Vec{X: scale[0], Y: scale[1], Z: scale[2]},
		eulerRotation(s.Rotation),
	)
	return tetramesh.Shape{
		Kind:        kind,
		Blend:       blend,
		BlendFactor: s.BlendFactor,
		Bevel:       s.Bevel,
		Pose:        pose,
		Active:      s.Active == nil || *s.Active,
	}, nil
}

// SceneShapes converts the configured shape list, preserving order.
func (c *Config) SceneShapes() ([]tetramesh.Shape, error) {
	shapes := make([]tetramesh.Shape, len(c.Shapes))
	for i, spec := range c.Shapes {
		shape, err := spec.Shape()
		if err != nil {
			return nil, fmt.Errorf("shape %d: %w", i, err)
		}
		shapes[i] = shape
	}
	return shapes, nil
}

func parseKind(s string) (tetramesh.Kind, error) {
	switch s {
	case "", "sphere":
		return tetramesh.KindSphere, nil
	case "box":
		return tetramesh.KindBox, nil
	case "terrain":
		return tetramesh.KindTerrain, nil
	}
	return 0, fmt.Errorf("config: unknown shape kind %q", s)
}

func parseBlend(s string) (tetramesh.BlendMode, error) {
	switch s {
	case "", "union":
		return tetramesh.BlendUnion, nil
	case "subtraction":
		return tetramesh.BlendSubtraction, nil
	case "intersect":
		return tetramesh.BlendIntersect, nil
	case "smooth":
		return tetramesh.BlendSmooth, nil
	case "smooth_union":
		return tetramesh.BlendSmoothUnion, nil
	case "repel":
		return tetramesh.BlendRepel, nil
	case "lerp":
		return tetramesh.BlendLerp, nil
	}
	return 0, fmt.Errorf("config: unknown blend mode %q", s)
}

// eulerRotation composes XYZ euler angles in degrees, X applied first.
func eulerRotation(deg [3]float64) r3.Rotation {
	const rad = math.Pi / 180
	rx := r3.NewRotation(deg[0]*rad, r3.Vec{X: 1})
	ry := r3.NewRotation(deg[1]*rad, r3.Vec{Y: 1})
	rz := r3.NewRotation(deg[2]*rad, r3.Vec{Z: 1})
	q := quat.Mul(quat.Number(rz), quat.Mul(quat.Number(ry), quat.Number(rx)))
	return r3.Rotation(q)
}
