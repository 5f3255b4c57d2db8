package waveguide

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoxel/phoxel/pkg/crystal"
	"github.com/phoxel/phoxel/pkg/optics"
)

func testCrystal(t *testing.T) crystal.Crystal {
	t.Helper()
	lat, err := crystal.Square(295e-9)
	require.NoError(t, err)
	cell, err := crystal.SingleHole(0.16, lat, optics.Air(), optics.FromEpsilon(optics.EpsilonGaAs))
	require.NoError(t, err)
	return crystal.New(lat, cell)
}

func TestNewStackValidation(t *testing.T) {
	m := optics.Air()
	tests := []struct {
		name   string
		layers []Layer
	}{
		{"empty", nil},
		{"zero thickness", []Layer{{ZMin: 0, ZMax: 0, Material: m}}},
		{"negative thickness", []Layer{{ZMin: 1, ZMax: 0, Material: m}}},
		{"gap", []Layer{
			{ZMin: 0, ZMax: 1, Material: m},
			{ZMin: 2, ZMax: 3, Material: m},
		}},
		{"overlap", []Layer{
			{ZMin: 0, ZMax: 2, Material: m},
			{ZMin: 1, ZMax: 3, Material: m},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStack(tt.layers)
			require.ErrorIs(t, err, ErrMalformedStack)
		})
	}
}

func TestFromThicknesses(t *testing.T) {
	a := optics.FromEpsilon(2.0)
	b := optics.FromEpsilon(3.0)

	s, err := FromThicknesses([]Layer{
		Uniform("bottom", 1.0, a),
		Uniform("top", 0.5, b),
	})
	require.NoError(t, err)

	assert.Equal(t, 0.0, s.ZMin())
	assert.Equal(t, 1.5, s.ZMax())
	assert.Equal(t, 1.5, s.Thickness())

	layers := s.Layers()
	require.Len(t, layers, 2)
	assert.Equal(t, 0.0, layers[0].ZMin)
	assert.Equal(t, 1.0, layers[0].ZMax)
	assert.Equal(t, 1.0, layers[1].ZMin)
	assert.Equal(t, 1.5, layers[1].ZMax)
}

func TestStackAt(t *testing.T) {
	a := optics.FromEpsilon(2.0)
	b := optics.FromEpsilon(3.0)
	c := optics.FromEpsilon(4.0)

	s, err := FromThicknesses([]Layer{
		Uniform("lo", 1.0, a),
		Uniform("mid", 1.0, b),
		Uniform("hi", 1.0, c),
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		z      float64
		want   string
		wantOK bool
	}{
		{"below stack", -0.1, "", false},
		{"bottom of first", 0.0, "lo", true},
		{"inside first", 0.5, "lo", true},
		{"boundary belongs to upper layer", 1.0, "mid", true},
		{"inside last", 2.7, "hi", true},
		{"top boundary is outside", 3.0, "", false},
		{"above stack", 10, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layer, ok := s.At(tt.z)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.want, layer.Name)
			}
		})
	}
}

func TestWaveguideMaterialAt(t *testing.T) {
	slab := optics.FromEpsilon(5.0)
	clad := optics.Air()

	s, err := FromThicknesses([]Layer{Uniform("core", 1.0, slab)})
	require.NoError(t, err)
	w := Waveguide{Stack: s, Cladding: clad}

	assert.Equal(t, slab, w.MaterialAt(0.5))
	assert.Equal(t, clad, w.MaterialAt(-0.5))
	assert.Equal(t, clad, w.MaterialAt(1.0), "top boundary falls to cladding")
}

func TestCrystalLayer(t *testing.T) {
	pc := testCrystal(t)
	bg := optics.FromEpsilon(optics.EpsilonGaAs)

	s, err := FromThicknesses([]Layer{
		Uniform("clad", 1e-6, optics.Air()),
		Patterned("PC", 1.18e-7, pc, bg),
	})
	require.NoError(t, err)

	layer, ok := s.CrystalLayer()
	require.True(t, ok)
	assert.Equal(t, "PC", layer.Name)
	require.NotNil(t, layer.Crystal)

	uniform, err := FromThicknesses([]Layer{Uniform("only", 1.0, optics.Air())})
	require.NoError(t, err)
	_, ok = uniform.CrystalLayer()
	assert.False(t, ok)
}

func TestFromTable(t *testing.T) {
	pc := testCrystal(t)
	slab := optics.FromEpsilon(optics.EpsilonGaAs)

	w, err := FromTable(pc, slab)
	require.NoError(t, err)

	layers := w.Stack.Layers()
	require.Len(t, layers, 5)
	assert.Equal(t, "PC", layers[2].Name)
	require.NotNil(t, layers[2].Crystal)
	assert.Equal(t, slab, layers[2].Material)
	assert.Equal(t, optics.FromEpsilon(11.0224), layers[0].Material)
	assert.Equal(t, optics.FromEpsilon(12.8603), layers[1].Material)
	assert.InDelta(t, 1.5e-6+0.0885e-6+0.1180e-6+0.0590e-6+1.5e-6, w.Stack.Thickness(), 1e-15)
	assert.Equal(t, optics.Air(), w.Cladding)

	// Boundary between two layers belongs to the upper one.
	boundary := layers[1].ZMax
	l, ok := w.Stack.At(boundary)
	require.True(t, ok)
	assert.Equal(t, "PC", l.Name)
}
