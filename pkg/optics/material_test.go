package optics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromEpsilon(t *testing.T) {
	m := FromEpsilon(12.7449)
	assert.True(t, m.IsIsotropic())
	assert.Equal(t, 12.7449, m.InPlaneEpsilon())
}

func TestFromIndex(t *testing.T) {
	m := FromIndex(3.0)
	assert.Equal(t, FromEpsilon(9.0), m)

	nx, ny, nz := m.Index()
	assert.InDelta(t, 3.0, nx, 1e-12)
	assert.InDelta(t, 3.0, ny, 1e-12)
	assert.InDelta(t, 3.0, nz, 1e-12)
}

func TestAnisotropic(t *testing.T) {
	m := Anisotropic(2.0, 3.0, 4.0)
	assert.False(t, m.IsIsotropic())
	assert.Equal(t, 2.0, m.InPlaneEpsilon())
}

func TestMaterialsAreComparable(t *testing.T) {
	assert.Equal(t, Air(), FromEpsilon(1.0))
	assert.NotEqual(t, Air(), FromEpsilon(EpsilonSilicon))

	// Shared materials compare equal by value, so they can key maps.
	seen := map[Material]int{}
	seen[Air()]++
	seen[FromEpsilon(1.0)]++
	assert.Equal(t, 2, seen[Air()])
}
