package crystal

import (
	"errors"
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"

	"github.com/phoxel/phoxel/pkg/optics"
)

// ErrInvalidFeature is returned when a feature parameter is out of range,
// e.g. a non-positive radius or a fill fraction outside (0, 1).
var ErrInvalidFeature = errors.New("invalid feature parameter")

// Feature is a geometric primitive placed in the unit cell: a shape, a
// fractional-coordinate center, and the material filling the shape. The
// shape is held as a signed distance field evaluated in physical units
// relative to the feature center, so any sdf.SDF2 works as a containment
// test and new primitives need no changes to the classifier.
type Feature struct {
	shape    sdf.SDF2
	center   Frac
	material optics.Material
}

// Center returns the feature center in fractional coordinates.
func (f Feature) Center() Frac { return f.center }

// Material returns the material filling the feature.
func (f Feature) Material() optics.Material { return f.material }

// Circle creates a circular feature with the given radius in physical units.
func Circle(center Frac, radius float64, m optics.Material) (Feature, error) {
	if radius <= 0 || math.IsNaN(radius) {
		return Feature{}, fmt.Errorf("%w: circle radius %g", ErrInvalidFeature, radius)
	}
	s, err := sdf.Circle2D(radius)
	if err != nil {
		return Feature{}, fmt.Errorf("%w: %v", ErrInvalidFeature, err)
	}
	return Feature{shape: s, center: center, material: m}, nil
}

// CircleFromFill creates a circular feature centered at (1/2, 1/2) whose
// area is the given fraction of the lattice primitive cell:
// r = sqrt(fill·area/π). The fill fraction must lie in (0, 1).
func CircleFromFill(fill float64, lat Lattice, m optics.Material) (Feature, error) {
	if fill <= 0 || fill >= 1 || math.IsNaN(fill) {
		return Feature{}, fmt.Errorf("%w: fill fraction %g not in (0, 1)", ErrInvalidFeature, fill)
	}
	radius := math.Sqrt(fill * lat.CellArea() / math.Pi)
	return Circle(Frac{U: 0.5, V: 0.5}, radius, m)
}

// Rectangle creates an axis-aligned rectangular feature with the given
// physical side lengths, optionally rotated by rotDeg degrees about its
// center.
func Rectangle(center Frac, width, height, rotDeg float64, m optics.Material) (Feature, error) {
	if width <= 0 || height <= 0 {
		return Feature{}, fmt.Errorf("%w: rectangle %g x %g", ErrInvalidFeature, width, height)
	}
	s := sdf.Box2D(v2.Vec{X: width, Y: height}, 0)
	if rotDeg != 0 {
		s = sdf.Transform2D(s, sdf.Rotate2d(rotDeg*math.Pi/180))
	}
	return Feature{shape: s, center: center, material: m}, nil
}

// Polygon creates a polygonal feature from vertices given in physical units
// relative to the feature center. At least three vertices are required.
func Polygon(center Frac, verts []v2.Vec, m optics.Material) (Feature, error) {
	if len(verts) < 3 {
		return Feature{}, fmt.Errorf("%w: polygon with %d vertices", ErrInvalidFeature, len(verts))
	}
	s, err := sdf.Polygon2D(verts)
	if err != nil {
		return Feature{}, fmt.Errorf("%w: %v", ErrInvalidFeature, err)
	}
	return Feature{shape: s, center: center, material: m}, nil
}

// Contains reports whether the fractional point lies inside the feature
// under lattice periodicity. The fractional delta to the feature center is
// folded into [-1/2, 1/2) per axis (minimum image), mapped through the
// lattice basis to a physical displacement, and tested against the shape's
// signed distance field. The boundary (distance exactly zero) counts as
// inside. Folding first means a feature overhanging one cell edge is seen
// from the opposite edge as well, with no gap and no double-count.
func (f Feature) Contains(lat Lattice, p Frac) bool {
	du := foldCentered(p.U - f.center.U)
	dv := foldCentered(p.V - f.center.V)
	d := v2.Vec{
		X: du*lat.A1.X + dv*lat.A2.X,
		Y: du*lat.A1.Y + dv*lat.A2.Y,
	}
	return f.shape.Evaluate(d) <= 0
}
