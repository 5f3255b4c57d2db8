package crystal

import (
	"math"
	"testing"

	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSquareLattice(t *testing.T) {
	a := 295e-9
	lat, err := Square(a)
	require.NoError(t, err)

	assert.Equal(t, SquareLattice, lat.Kind)
	assert.Equal(t, v2.Vec{X: a, Y: 0}, lat.A1)
	assert.Equal(t, v2.Vec{X: 0, Y: a}, lat.A2)
	assert.InDelta(t, a*a, lat.CellArea(), 1e-30)
}

func TestHexagonalLattice(t *testing.T) {
	a := 295e-9
	lat, err := Hexagonal(a)
	require.NoError(t, err)

	assert.Equal(t, HexagonalLattice, lat.Kind)
	assert.InDelta(t, a*a*math.Sqrt(3)/2, lat.CellArea(), 1e-28)
}

func TestObliqueLattice(t *testing.T) {
	lat, err := Oblique(v2.Vec{X: 2, Y: 0}, v2.Vec{X: 1, Y: 3})
	require.NoError(t, err)
	assert.Equal(t, ObliqueLattice, lat.Kind)
	assert.InDelta(t, 6.0, lat.CellArea(), 1e-12)
	assert.InDelta(t, 2.0, lat.Constant, 1e-12)
}

func TestDegenerateLattice(t *testing.T) {
	tests := []struct {
		name   string
		a1, a2 v2.Vec
	}{
		{"zero basis", v2.Vec{}, v2.Vec{}},
		{"zero a2", v2.Vec{X: 1}, v2.Vec{}},
		{"collinear", v2.Vec{X: 1, Y: 1}, v2.Vec{X: 2, Y: 2}},
		{"nearly collinear", v2.Vec{X: 1, Y: 0}, v2.Vec{X: 1, Y: 1e-15}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Oblique(tt.a1, tt.a2)
			require.ErrorIs(t, err, ErrDegenerateLattice)
		})
	}
}

func TestFractionalFoldsIntoUnitCell(t *testing.T) {
	lat, err := Square(2.0)
	require.NoError(t, err)

	tests := []struct {
		name string
		p    v2.Vec
		want Frac
	}{
		{"origin", v2.Vec{}, Frac{0, 0}},
		{"interior", v2.Vec{X: 0.5, Y: 1.0}, Frac{0.25, 0.5}},
		{"next cell", v2.Vec{X: 2.5, Y: 3.0}, Frac{0.25, 0.5}},
		{"negative", v2.Vec{X: -0.5, Y: -1.0}, Frac{0.75, 0.5}},
		{"boundary maps to lower edge", v2.Vec{X: 2.0, Y: 4.0}, Frac{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lat.Fractional(tt.p)
			assert.InDelta(t, tt.want.U, got.U, 1e-12)
			assert.InDelta(t, tt.want.V, got.V, 1e-12)
			assert.GreaterOrEqual(t, got.U, 0.0)
			assert.Less(t, got.U, 1.0)
			assert.GreaterOrEqual(t, got.V, 0.0)
			assert.Less(t, got.V, 1.0)
		})
	}
}

// Adding any integer combination of basis vectors must not change the
// fractional image of a point.
func TestFractionalPeriodicity(t *testing.T) {
	lattices := map[string]func() (Lattice, error){
		"square":    func() (Lattice, error) { return Square(295e-9) },
		"hexagonal": func() (Lattice, error) { return Hexagonal(295e-9) },
		"oblique": func() (Lattice, error) {
			return Oblique(v2.Vec{X: 3e-7, Y: 1e-8}, v2.Vec{X: 5e-8, Y: 2.8e-7})
		},
	}
	points := []v2.Vec{
		{X: 0, Y: 0},
		{X: 1.3e-7, Y: -2.7e-8},
		{X: -4.1e-7, Y: 9.9e-8},
	}
	shifts := [][2]int{{1, 0}, {0, 1}, {-3, 2}, {17, -5}}

	for name, mk := range lattices {
		t.Run(name, func(t *testing.T) {
			lat, err := mk()
			require.NoError(t, err)
			for _, p := range points {
				base := lat.Fractional(p)
				for _, k := range shifts {
					q := v2.Vec{
						X: p.X + float64(k[0])*lat.A1.X + float64(k[1])*lat.A2.X,
						Y: p.Y + float64(k[0])*lat.A1.Y + float64(k[1])*lat.A2.Y,
					}
					got := lat.Fractional(q)
					assert.InDelta(t, base.U, got.U, 1e-9, "U for shift %v of %+v", k, p)
					assert.InDelta(t, base.V, got.V, 1e-9, "V for shift %v of %+v", k, p)
				}
			}
		})
	}
}

// A lattice point is on the cell boundary; every periodic image of it must
// land exactly on the lower edge, not at 1-ulp on the opposite one.
func TestFractionalLatticePointsLandOnLowerEdge(t *testing.T) {
	lattices := []struct {
		name string
		mk   func() (Lattice, error)
	}{
		{"square", func() (Lattice, error) { return Square(295e-9) }},
		{"hexagonal", func() (Lattice, error) { return Hexagonal(295e-9) }},
		{"oblique", func() (Lattice, error) {
			return Oblique(v2.Vec{X: 3e-7, Y: 1e-8}, v2.Vec{X: 5e-8, Y: 2.8e-7})
		}},
	}
	for _, tt := range lattices {
		t.Run(tt.name, func(t *testing.T) {
			lat, err := tt.mk()
			require.NoError(t, err)
			for _, k := range [][2]int{{0, 0}, {1, 0}, {0, 1}, {-3, 2}, {17, -5}} {
				p := v2.Vec{
					X: float64(k[0])*lat.A1.X + float64(k[1])*lat.A2.X,
					Y: float64(k[0])*lat.A1.Y + float64(k[1])*lat.A2.Y,
				}
				got := lat.Fractional(p)
				assert.Equal(t, Frac{U: 0, V: 0}, got, "shift %v", k)
			}
		})
	}
}

func TestCartesianRoundTrip(t *testing.T) {
	lat, err := Hexagonal(1.0)
	require.NoError(t, err)

	f := Frac{U: 0.3, V: 0.7}
	got := lat.Fractional(lat.Cartesian(f))
	assert.InDelta(t, f.U, got.U, 1e-12)
	assert.InDelta(t, f.V, got.V, 1e-12)
}

func TestFoldCentered(t *testing.T) {
	tests := []struct {
		x, want float64
	}{
		{0, 0},
		{0.25, 0.25},
		{0.75, -0.25},
		{-0.25, -0.25},
		{0.5, -0.5},
		{-0.5, -0.5},
		{3.1, 0.1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, foldCentered(tt.x), 1e-12, "foldCentered(%g)", tt.x)
	}
}
