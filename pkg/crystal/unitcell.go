package crystal

import "github.com/phoxel/phoxel/pkg/optics"

// UnitCell is an ordered sequence of features over a background material.
//
// Overlap policy: features added later override features added earlier
// (draw order: the last shape drawn is the one you see). Classify therefore
// walks the feature list in reverse insertion order and returns the first
// match.
type UnitCell struct {
	features   []Feature
	background optics.Material
}

// NewUnitCell creates an empty unit cell with the given background material.
func NewUnitCell(background optics.Material) UnitCell {
	return UnitCell{background: background}
}

// SingleHole creates a unit cell with one centered circular hole whose area
// is the given fraction of the primitive cell.
func SingleHole(fill float64, lat Lattice, hole, background optics.Material) (UnitCell, error) {
	f, err := CircleFromFill(fill, lat, hole)
	if err != nil {
		return UnitCell{}, err
	}
	c := NewUnitCell(background)
	c.Add(f)
	return c, nil
}

// Add appends a feature. Later features take precedence over earlier ones
// where they overlap.
func (c *UnitCell) Add(f Feature) {
	c.features = append(c.features, f)
}

// Features returns the features in insertion order.
func (c UnitCell) Features() []Feature { return c.features }

// Background returns the background material.
func (c UnitCell) Background() optics.Material { return c.background }

// Classify returns the material at the given fractional coordinates:
// the material of the topmost (most recently added) feature containing the
// point, or the background material if no feature contains it.
func (c UnitCell) Classify(lat Lattice, p Frac) optics.Material {
	for i := len(c.features) - 1; i >= 0; i-- {
		if c.features[i].Contains(lat, p) {
			return c.features[i].material
		}
	}
	return c.background
}
