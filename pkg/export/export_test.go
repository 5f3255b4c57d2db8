package export

import (
	"bytes"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoxel/phoxel/pkg/crystal"
	"github.com/phoxel/phoxel/pkg/optics"
	"github.com/phoxel/phoxel/pkg/raster"
	"github.com/phoxel/phoxel/pkg/waveguide"
)

func testGrid(t *testing.T) *raster.Grid {
	t.Helper()

	lat, err := crystal.Square(295e-9)
	require.NoError(t, err)
	cell, err := crystal.SingleHole(0.16, lat, optics.Air(), optics.FromEpsilon(optics.EpsilonGaAs))
	require.NoError(t, err)
	pc := crystal.New(lat, cell)

	stack, err := waveguide.FromThicknesses([]waveguide.Layer{
		waveguide.Patterned("slab", 220e-9, pc, optics.FromEpsilon(optics.EpsilonGaAs)),
	})
	require.NoError(t, err)

	g, err := raster.Rasterize(waveguide.Waveguide{Stack: stack, Cladding: optics.Air()}, 16, 16, 4)
	require.NoError(t, err)
	return g
}

func TestGridRoundTrip(t *testing.T) {
	g := testGrid(t)

	data, err := EncodeGrid(g)
	require.NoError(t, err)

	got, err := DecodeGrid(data)
	require.NoError(t, err)

	assert.Equal(t, g.Nx, got.Nx)
	assert.Equal(t, g.Ny, got.Ny)
	assert.Equal(t, g.Nz, got.Nz)
	assert.Equal(t, g.Bounds, got.Bounds)
	assert.Equal(t, g.Eps, got.Eps)
	assert.Equal(t, g.At(3, 5, 1), got.At(3, 5, 1))
}

func TestEncodingIsDeterministic(t *testing.T) {
	g := testGrid(t)

	a, err := EncodeGrid(g)
	require.NoError(t, err)
	b, err := EncodeGrid(g)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a, b))
}

func TestDecodeRejectsCorruptDocuments(t *testing.T) {
	_, err := DecodeGrid([]byte{0xff})
	assert.Error(t, err)

	// Valid CBOR, inconsistent payload length.
	g := testGrid(t)
	doc := docFromGrid(g)
	doc.Eps = doc.Eps[:len(doc.Eps)-1]
	data, err := gridEncMode.Marshal(doc)
	require.NoError(t, err)
	_, err = DecodeGrid(data)
	assert.Error(t, err)
}

func TestWriteGridFile(t *testing.T) {
	g := testGrid(t)
	path := filepath.Join(t.TempDir(), "grid.cbor")

	require.NoError(t, WriteGridFile(path, g))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	got, err := DecodeGrid(data)
	require.NoError(t, err)
	assert.Equal(t, g.Eps, got.Eps)
}

func TestSliceImage(t *testing.T) {
	g := testGrid(t)

	img, err := SliceImage(g, 0)
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 16, img.Bounds().Dy())

	// Hole (low eps) renders dark, background bright. The hole sits at the
	// slice center; remember the image y-axis is flipped.
	center := img.GrayAt(8, 8)
	corner := img.GrayAt(0, 0)
	assert.Less(t, center.Y, corner.Y)
	assert.Equal(t, color.Gray{Y: 0}, center)

	_, err = SliceImage(g, 99)
	assert.Error(t, err)
}

func TestWriteSlicePNGs(t *testing.T) {
	g := testGrid(t)
	dir := t.TempDir()

	require.NoError(t, WriteSlicePNGs(dir, "eps", g))
	for iz := 0; iz < g.Nz; iz++ {
		_, err := os.Stat(filepath.Join(dir, fmt.Sprintf("eps_%03d.png", iz)))
		assert.NoError(t, err, "slice %d", iz)
	}
}
