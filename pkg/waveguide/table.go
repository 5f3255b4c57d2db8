package waveguide

import (
	"github.com/phoxel/phoxel/pkg/crystal"
	"github.com/phoxel/phoxel/pkg/optics"
)

// Epiwafer layer parameters of the reference AlGaAs/GaAs structure.
const (
	epsAlGaAsClad = 11.0224
	epsActive     = 12.8603
	epsGaAs       = 12.7449

	cladThickness   = 1.5e-6
	activeThickness = 0.0885e-6
	pcThickness     = 0.1180e-6
	gaasThickness   = 0.0590e-6
)

// FromTable builds the reference five-layer epiwafer: n-clad AlGaAs,
// active layer, the photonic-crystal slab with the given in-plane pattern
// and slab (background) material, a thin GaAs layer, and p-clad AlGaAs.
// Cladding outside the stack is air. The stack starts at z = 0.
func FromTable(c crystal.Crystal, slab optics.Material) (Waveguide, error) {
	stack, err := FromThicknesses([]Layer{
		Uniform("n-clad (AlGaAs)", cladThickness, optics.FromEpsilon(epsAlGaAsClad)),
		Uniform("active", activeThickness, optics.FromEpsilon(epsActive)),
		Patterned("PC", pcThickness, c, slab),
		Uniform("GaAs", gaasThickness, optics.FromEpsilon(epsGaAs)),
		Uniform("p-clad (AlGaAs)", cladThickness, optics.FromEpsilon(epsAlGaAsClad)),
	})
	if err != nil {
		return Waveguide{}, err
	}
	return Waveguide{Stack: stack, Cladding: optics.Air()}, nil
}
