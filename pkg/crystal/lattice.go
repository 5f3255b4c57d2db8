// Package crystal models the in-plane periodic geometry of a photonic
// crystal: a Bravais lattice, a unit cell populated with geometric features,
// and the point classification that maps a physical position to a material.
//
// All constructors validate their parameters and fail with a distinguishable
// sentinel error; objects that exist are always usable. Classification never
// fails at sampling time.
package crystal

import (
	"errors"
	"fmt"
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"
)

// ErrDegenerateLattice is returned when lattice basis vectors are collinear
// or zero, so the primitive cell has no area.
var ErrDegenerateLattice = errors.New("degenerate lattice")

// degenerateAreaTol rejects bases whose cell area is negligible relative to
// the basis vector lengths (catches nearly-collinear vectors, not just
// exactly collinear ones).
const degenerateAreaTol = 1e-12

// LatticeKind discriminates the supported Bravais lattice variants.
type LatticeKind int

const (
	// SquareLattice has orthogonal basis vectors of equal length.
	SquareLattice LatticeKind = iota
	// HexagonalLattice (triangular) has basis vectors at 60° of equal length.
	HexagonalLattice
	// ObliqueLattice is a general lattice with explicit basis vectors.
	ObliqueLattice
)

func (k LatticeKind) String() string {
	switch k {
	case SquareLattice:
		return "square"
	case HexagonalLattice:
		return "hexagonal"
	case ObliqueLattice:
		return "oblique"
	default:
		return fmt.Sprintf("LatticeKind(%d)", int(k))
	}
}

// Frac is a position in fractional (lattice) coordinates. Canonical values
// produced by Lattice.Fractional lie in [0, 1).
type Frac struct {
	U, V float64
}

// Lattice is a 2D Bravais lattice with in-plane basis vectors in physical
// units. The inverse basis matrix is cached at construction, so Fractional
// is two multiply-adds per component in the hot sampling loop.
type Lattice struct {
	Kind     LatticeKind
	A1, A2   v2.Vec
	Constant float64 // lattice constant a; |A1| for the named variants

	// inverse of the column matrix [A1 A2], row-major
	inv [4]float64
}

// Square creates a square lattice with lattice constant a.
func Square(a float64) (Lattice, error) {
	return newLattice(SquareLattice, v2.Vec{X: a, Y: 0}, v2.Vec{X: 0, Y: a}, a)
}

// Hexagonal creates a triangular (hexagonal) lattice with lattice constant a.
// Basis vectors are (a, 0) and (a/2, a·√3/2).
func Hexagonal(a float64) (Lattice, error) {
	return newLattice(HexagonalLattice,
		v2.Vec{X: a, Y: 0},
		v2.Vec{X: a * 0.5, Y: a * math.Sqrt(3) / 2},
		a)
}

// Oblique creates a general lattice from explicit basis vectors. The
// lattice constant is taken as |a1|.
func Oblique(a1, a2 v2.Vec) (Lattice, error) {
	return newLattice(ObliqueLattice, a1, a2, math.Hypot(a1.X, a1.Y))
}

func newLattice(kind LatticeKind, a1, a2 v2.Vec, constant float64) (Lattice, error) {
	det := a1.X*a2.Y - a1.Y*a2.X
	scale := math.Hypot(a1.X, a1.Y) * math.Hypot(a2.X, a2.Y)
	if scale == 0 || math.Abs(det) <= degenerateAreaTol*scale {
		return Lattice{}, fmt.Errorf("%w: a1=(%g, %g) a2=(%g, %g)",
			ErrDegenerateLattice, a1.X, a1.Y, a2.X, a2.Y)
	}
	return Lattice{
		Kind:     kind,
		A1:       a1,
		A2:       a2,
		Constant: constant,
		inv: [4]float64{
			a2.Y / det, -a2.X / det,
			-a1.Y / det, a1.X / det,
		},
	}, nil
}

// CellArea returns the area of the primitive cell, |a1 × a2|.
func (l Lattice) CellArea() float64 {
	return math.Abs(l.A1.X*l.A2.Y - l.A1.Y*l.A2.X)
}

// Fractional maps a physical point to fractional coordinates folded into
// [0, 1). It solves p = u·a1 + v·a2 via the cached inverse basis, then
// applies the half-open fold u - floor(u), so the mapping is periodic:
// adding any integer combination of basis vectors to p leaves the result
// unchanged, and points exactly on a cell boundary land on the lower edge.
func (l Lattice) Fractional(p v2.Vec) Frac {
	u := l.inv[0]*p.X + l.inv[1]*p.Y
	v := l.inv[2]*p.X + l.inv[3]*p.Y
	return Frac{U: fold(u), V: fold(v)}
}

// Cartesian maps fractional coordinates back to a physical point,
// u·a1 + v·a2.
func (l Lattice) Cartesian(f Frac) v2.Vec {
	return v2.Vec{
		X: f.U*l.A1.X + f.V*l.A2.X,
		Y: f.U*l.A1.Y + f.V*l.A2.Y,
	}
}

// boundarySnapTol collapses fold results a few ulps from a cell edge onto
// the lower edge. Without it a lattice point reached from a shifted cell
// can land at 1-ulp instead of 0, and the two images of the same point
// classify against opposite edges.
const boundarySnapTol = 1e-12

// fold wraps x into [0, 1). Points within boundarySnapTol of either edge
// land exactly on 0, so a mathematically-boundary point maps to the lower
// edge no matter which side rounding placed it on.
func fold(x float64) float64 {
	f := x - math.Floor(x)
	if f >= 1-boundarySnapTol || f < boundarySnapTol {
		f = 0
	}
	return f
}

// foldCentered wraps x into [-1/2, 1/2), the minimum-image convention used
// for feature containment.
func foldCentered(x float64) float64 {
	f := x - math.Floor(x+0.5)
	if f >= 0.5 {
		f = -0.5
	}
	return f
}
