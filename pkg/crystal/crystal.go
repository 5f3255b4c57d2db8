package crystal

import (
	v2 "github.com/deadsy/sdfx/vec/v2"

	"github.com/phoxel/phoxel/pkg/optics"
)

// Crystal is one infinite, periodic in-plane pattern: a lattice plus a
// unit cell. It is the unit a patterned waveguide layer refers to.
type Crystal struct {
	Lattice Lattice
	Cell    UnitCell
}

// New creates a photonic crystal from a lattice and a unit cell.
func New(lat Lattice, cell UnitCell) Crystal {
	return Crystal{Lattice: lat, Cell: cell}
}

// MaterialAt returns the material at a physical in-plane point, folding the
// point into the primitive cell and classifying it against the unit cell.
func (c Crystal) MaterialAt(p v2.Vec) optics.Material {
	return c.Cell.Classify(c.Lattice, c.Lattice.Fractional(p))
}

// EpsilonAt returns the in-plane permittivity at a physical point. This is
// the per-voxel fast path used by the rasterizer.
func (c Crystal) EpsilonAt(p v2.Vec) float64 {
	return c.MaterialAt(p).InPlaneEpsilon()
}
