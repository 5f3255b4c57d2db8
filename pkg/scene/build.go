package scene

import (
	"fmt"

	v2 "github.com/deadsy/sdfx/vec/v2"

	"github.com/phoxel/phoxel/pkg/crystal"
	"github.com/phoxel/phoxel/pkg/optics"
	"github.com/phoxel/phoxel/pkg/waveguide"
)

// Build constructs the waveguide described by the document. All geometry
// validation happens here, through the fallible constructors; the returned
// waveguide is ready to rasterize.
func (d *Document) Build() (waveguide.Waveguide, error) {
	lat, err := d.buildLattice()
	if err != nil {
		return waveguide.Waveguide{}, err
	}

	background, err := d.material(d.Background)
	if err != nil {
		return waveguide.Waveguide{}, fmt.Errorf("background: %w", err)
	}
	cell := crystal.NewUnitCell(background)
	for i, fs := range d.Features {
		f, err := d.buildFeature(fs, lat)
		if err != nil {
			return waveguide.Waveguide{}, fmt.Errorf("feature %d: %w", i, err)
		}
		cell.Add(f)
	}
	pc := crystal.New(lat, cell)

	if len(d.Layers) == 0 {
		return waveguide.Waveguide{}, fmt.Errorf("scene has no layers")
	}
	layers := make([]waveguide.Layer, 0, len(d.Layers))
	for i, ls := range d.Layers {
		m, err := d.material(ls.Material)
		if err != nil {
			return waveguide.Waveguide{}, fmt.Errorf("layer %d: %w", i, err)
		}
		name := ls.Name
		if name == "" {
			name = fmt.Sprintf("layer-%d", i)
		}
		if ls.Patterned {
			layers = append(layers, waveguide.Patterned(name, ls.Thickness, pc, m))
		} else {
			layers = append(layers, waveguide.Uniform(name, ls.Thickness, m))
		}
	}
	stack, err := waveguide.FromThicknesses(layers)
	if err != nil {
		return waveguide.Waveguide{}, err
	}

	cladding := optics.Air()
	if d.Cladding != "" {
		if cladding, err = d.material(d.Cladding); err != nil {
			return waveguide.Waveguide{}, fmt.Errorf("cladding: %w", err)
		}
	}

	return waveguide.Waveguide{Stack: stack, Cladding: cladding}, nil
}

func (d *Document) buildLattice() (crystal.Lattice, error) {
	switch s := d.Lattice.LatticeType.(type) {
	case SquareLatticeSpec:
		return crystal.Square(s.A)
	case HexLatticeSpec:
		return crystal.Hexagonal(s.A)
	case ObliqueLatticeSpec:
		return crystal.Oblique(
			v2.Vec{X: s.A1.X, Y: s.A1.Y},
			v2.Vec{X: s.A2.X, Y: s.A2.Y},
		)
	case nil:
		return crystal.Lattice{}, fmt.Errorf("scene has no lattice")
	default:
		return crystal.Lattice{}, fmt.Errorf("unhandled lattice variant %T", s)
	}
}

func (d *Document) buildFeature(fs FeatureSpec, lat crystal.Lattice) (crystal.Feature, error) {
	switch s := fs.FeatureType.(type) {
	case CircleSpec:
		m, err := d.material(s.Material)
		if err != nil {
			return crystal.Feature{}, err
		}
		if s.Fill != 0 {
			// A fill-fraction circle is always cell-centered.
			if (s.Center != FracPoint{}) {
				return crystal.Feature{}, fmt.Errorf("circle: fill and center are mutually exclusive")
			}
			return crystal.CircleFromFill(s.Fill, lat, m)
		}
		return crystal.Circle(crystal.Frac{U: s.Center.U, V: s.Center.V}, s.Radius, m)
	case RectSpec:
		m, err := d.material(s.Material)
		if err != nil {
			return crystal.Feature{}, err
		}
		return crystal.Rectangle(crystal.Frac{U: s.Center.U, V: s.Center.V},
			s.Width, s.Height, s.Rotation, m)
	case PolygonSpec:
		m, err := d.material(s.Material)
		if err != nil {
			return crystal.Feature{}, err
		}
		verts := make([]v2.Vec, len(s.Vertices))
		for i, v := range s.Vertices {
			verts[i] = v2.Vec{X: v.X, Y: v.Y}
		}
		return crystal.Polygon(crystal.Frac{U: s.Center.U, V: s.Center.V}, verts, m)
	default:
		return crystal.Feature{}, fmt.Errorf("unhandled feature variant %T", s)
	}
}

// material resolves a named material reference.
func (d *Document) material(name string) (optics.Material, error) {
	if name == "" {
		return optics.Material{}, fmt.Errorf("missing material reference")
	}
	spec, ok := d.Materials[name]
	if !ok {
		return optics.Material{}, fmt.Errorf("unknown material %q", name)
	}
	switch {
	case spec.Eps != 0:
		return optics.FromEpsilon(spec.Eps), nil
	case spec.Index != 0:
		return optics.FromIndex(spec.Index), nil
	case spec.Aniso != nil:
		return optics.Anisotropic(spec.Aniso[0], spec.Aniso[1], spec.Aniso[2]), nil
	default:
		return optics.Material{}, fmt.Errorf("material %q has no eps, index, or aniso", name)
	}
}
