package raster

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	v2 "github.com/deadsy/sdfx/vec/v2"
	log "github.com/sirupsen/logrus"

	"github.com/phoxel/phoxel/pkg/waveguide"
)

// ErrInvalidResolution is returned when any grid dimension is < 1.
var ErrInvalidResolution = errors.New("invalid resolution")

// Options configures a rasterization run. The zero value is usable.
type Options struct {
	// PeriodsX and PeriodsY set how many lattice periods the in-plane
	// domain spans. Zero means one period.
	PeriodsX, PeriodsY int

	// Workers is the degree of parallelism. Zero means GOMAXPROCS.
	// Results are bit-identical for any value.
	Workers int

	// Bounds overrides the derived physical domain when non-nil.
	Bounds *Bounds
}

// Option mutates Options.
type Option func(*Options)

// WithPeriods sets the number of in-plane lattice periods.
func WithPeriods(px, py int) Option {
	return func(o *Options) { o.PeriodsX, o.PeriodsY = px, py }
}

// WithWorkers sets the degree of parallelism.
func WithWorkers(n int) Option {
	return func(o *Options) { o.Workers = n }
}

// WithBounds overrides the derived physical domain.
func WithBounds(b Bounds) Option {
	return func(o *Options) { o.Bounds = &b }
}

// Rasterize samples the waveguide onto a fresh (nx, ny, nz) grid. For each
// voxel the sample point is the voxel center; the z-coordinate selects the
// layer, and within a patterned layer the (x, y) point is folded into the
// crystal's primitive cell and classified against its unit cell. Geometry
// inputs are read-only throughout and may be shared freely.
func Rasterize(wg waveguide.Waveguide, nx, ny, nz int, opts ...Option) (*Grid, error) {
	if nx < 1 || ny < 1 || nz < 1 {
		return nil, fmt.Errorf("%w: (%d, %d, %d)", ErrInvalidResolution, nx, ny, nz)
	}

	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	bounds := domainBounds(wg, o)
	g := newGrid(nx, ny, nz, bounds)
	dx, dy, dz := g.VoxelSize()

	// Per-z-slice layer resolution: the layer (and its pattern) is constant
	// along z within a slice, so resolve it once per iz instead of per voxel.
	type slab struct {
		eps     float64   // uniform permittivity, used when crystal is nil
		crystal epsAtFunc // nil for uniform slices
	}
	slices := make([]slab, nz)
	for iz := 0; iz < nz; iz++ {
		z := bounds.ZMin + (float64(iz)+0.5)*dz
		layer, ok := wg.Stack.At(z)
		switch {
		case !ok:
			slices[iz] = slab{eps: wg.Cladding.InPlaneEpsilon()}
		case layer.Crystal != nil:
			slices[iz] = slab{crystal: layer.Crystal.EpsilonAt}
		default:
			slices[iz] = slab{eps: layer.Material.InPlaneEpsilon()}
		}
	}

	workers := o.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > nx {
		workers = nx
	}

	start := time.Now()

	// Each worker owns a disjoint range of x-slabs; slab (ix) spans one
	// contiguous region of the flat buffer, so writers never share a slot.
	var waitGroup sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo, hi := slabRange(nx, workers, w)
		if lo >= hi {
			continue
		}
		waitGroup.Add(1)
		go func(lo, hi int) {
			defer waitGroup.Done()
			for ix := lo; ix < hi; ix++ {
				x := bounds.XMin + (float64(ix)+0.5)*dx
				for iy := 0; iy < ny; iy++ {
					y := bounds.YMin + (float64(iy)+0.5)*dy
					base := g.Index(ix, iy, 0)
					for iz := 0; iz < nz; iz++ {
						s := slices[iz]
						if s.crystal != nil {
							g.Eps[base+iz] = s.crystal(v2.Vec{X: x, Y: y})
						} else {
							g.Eps[base+iz] = s.eps
						}
					}
				}
			}
		}(lo, hi)
	}
	waitGroup.Wait()

	log.WithFields(log.Fields{
		"nx":      nx,
		"ny":      ny,
		"nz":      nz,
		"voxels":  g.Voxels(),
		"workers": workers,
		"elapsed": time.Since(start),
	}).Info("rasterized waveguide")

	return g, nil
}

type epsAtFunc func(v2.Vec) float64

// slabRange splits nx slabs evenly over workers, giving worker w the
// half-open index range [lo, hi).
func slabRange(nx, workers, w int) (lo, hi int) {
	per := nx / workers
	rem := nx % workers
	lo = w*per + min(w, rem)
	hi = lo + per
	if w < rem {
		hi++
	}
	return lo, hi
}

// domainBounds derives the physical domain: the stack's z-span out of
// plane, and in plane the axis-aligned bounding box of the requested number
// of lattice periods of the first patterned layer. A waveguide with no
// patterned layer gets a square in-plane domain the size of the z-span, so
// uniform stacks still rasterize.
func domainBounds(wg waveguide.Waveguide, o Options) Bounds {
	if o.Bounds != nil {
		return *o.Bounds
	}

	px := float64(max(o.PeriodsX, 1))
	py := float64(max(o.PeriodsY, 1))

	b := Bounds{ZMin: wg.Stack.ZMin(), ZMax: wg.Stack.ZMax()}
	layer, ok := wg.Stack.CrystalLayer()
	if !ok {
		span := wg.Stack.Thickness()
		b.XMax, b.YMax = span, span
		return b
	}

	// Bounding box of the parallelogram spanned by px·a1 and py·a2.
	lat := layer.Crystal.Lattice
	corners := [3]v2.Vec{
		{X: px * lat.A1.X, Y: px * lat.A1.Y},
		{X: py * lat.A2.X, Y: py * lat.A2.Y},
		{X: px*lat.A1.X + py*lat.A2.X, Y: px*lat.A1.Y + py*lat.A2.Y},
	}
	for _, c := range corners {
		b.XMin = math.Min(b.XMin, c.X)
		b.XMax = math.Max(b.XMax, c.X)
		b.YMin = math.Min(b.YMin, c.Y)
		b.YMax = math.Max(b.YMax, c.Y)
	}
	return b
}
