// Package raster converts a waveguide description into a dense 3D grid of
// permittivity values. Each voxel is classified by a single sample at its
// center; voxels are independent, so the fill parallelizes over disjoint
// slabs of the output buffer with no locking and bit-identical results for
// any worker count.
package raster

import "fmt"

// Bounds is the physical domain a grid was sampled over.
type Bounds struct {
	XMin, XMax float64
	YMin, YMax float64
	ZMin, ZMax float64
}

// Grid is a dense 3D array of in-plane permittivity values with the
// resolution and physical bounds it was sampled over. The buffer is flat
// and row-major with ix the slowest and iz the fastest index, so an x-slab
// is one contiguous span, the unit of parallel filling. A Grid is fully
// populated before it is returned and treated as read-only afterwards.
type Grid struct {
	Nx, Ny, Nz int
	Bounds     Bounds
	Eps        []float64 // flat: (ix*Ny + iy)*Nz + iz

	strideX, strideY int
}

func newGrid(nx, ny, nz int, b Bounds) *Grid {
	return &Grid{
		Nx:      nx,
		Ny:      ny,
		Nz:      nz,
		Bounds:  b,
		Eps:     make([]float64, nx*ny*nz),
		strideX: ny * nz,
		strideY: nz,
	}
}

// FromBuffer adopts an existing flat buffer as a Grid, e.g. when decoding
// a persisted grid. The buffer length must equal nx·ny·nz.
func FromBuffer(nx, ny, nz int, b Bounds, eps []float64) (*Grid, error) {
	if len(eps) != nx*ny*nz {
		return nil, fmt.Errorf("buffer has %d values, want %d for (%d, %d, %d)",
			len(eps), nx*ny*nz, nx, ny, nz)
	}
	return &Grid{
		Nx:      nx,
		Ny:      ny,
		Nz:      nz,
		Bounds:  b,
		Eps:     eps,
		strideX: ny * nz,
		strideY: nz,
	}, nil
}

// Index returns the flat buffer index of voxel (ix, iy, iz).
func (g *Grid) Index(ix, iy, iz int) int {
	return ix*g.strideX + iy*g.strideY + iz
}

// At returns the permittivity of voxel (ix, iy, iz).
func (g *Grid) At(ix, iy, iz int) float64 {
	return g.Eps[g.Index(ix, iy, iz)]
}

// VoxelSize returns the physical voxel extents (dx, dy, dz).
func (g *Grid) VoxelSize() (dx, dy, dz float64) {
	dx = (g.Bounds.XMax - g.Bounds.XMin) / float64(g.Nx)
	dy = (g.Bounds.YMax - g.Bounds.YMin) / float64(g.Ny)
	dz = (g.Bounds.ZMax - g.Bounds.ZMin) / float64(g.Nz)
	return
}

// Voxels returns the total voxel count nx·ny·nz.
func (g *Grid) Voxels() int {
	return g.Nx * g.Ny * g.Nz
}
