package export

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/phoxel/phoxel/pkg/raster"
)

// SliceImage renders one z-slice of the grid as a grayscale image:
// the lowest permittivity in the slice maps to black, the highest to white.
// A slice with a single material renders mid-gray.
func SliceImage(g *raster.Grid, iz int) (*image.Gray, error) {
	if iz < 0 || iz >= g.Nz {
		return nil, fmt.Errorf("slice %d out of range [0, %d)", iz, g.Nz)
	}

	lo, hi := g.At(0, 0, iz), g.At(0, 0, iz)
	for ix := 0; ix < g.Nx; ix++ {
		for iy := 0; iy < g.Ny; iy++ {
			eps := g.At(ix, iy, iz)
			if eps < lo {
				lo = eps
			}
			if eps > hi {
				hi = eps
			}
		}
	}

	img := image.NewGray(image.Rect(0, 0, g.Nx, g.Ny))
	span := hi - lo
	for ix := 0; ix < g.Nx; ix++ {
		for iy := 0; iy < g.Ny; iy++ {
			v := uint8(128)
			if span > 0 {
				v = uint8((g.At(ix, iy, iz) - lo) / span * 255)
			}
			// flip y so the image reads with y up
			img.SetGray(ix, g.Ny-1-iy, color.Gray{Y: v})
		}
	}
	return img, nil
}

// WriteSlicePNGs writes one PNG per z-slice into dir, named
// <prefix>_NNN.png. The directory is created if missing.
func WriteSlicePNGs(dir, prefix string, g *raster.Grid) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for iz := 0; iz < g.Nz; iz++ {
		img, err := SliceImage(g, iz)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%03d.png", prefix, iz))
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
