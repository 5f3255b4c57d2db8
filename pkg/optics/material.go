// Package optics defines dielectric materials referenced by the crystal
// geometry. Materials are small immutable value objects; the same material
// may be shared by many geometric features without copying.
package optics

import "math"

// Dielectric constants of common materials at telecom wavelengths (~1.55 µm).
const (
	EpsilonVacuum          = 1.0
	EpsilonAir             = 1.0
	EpsilonSilicon         = 11.68
	EpsilonSilica          = 2.1
	EpsilonIndiumPhosphide = 10.0489
	EpsilonGaAs            = 12.7449
)

// Material holds the diagonal elements of the dielectric tensor
// (eps_x, eps_y, eps_z). Isotropic materials carry the same value in all
// three slots. Material is comparable, so it can be used as a map key and
// compared with ==.
type Material struct {
	EpsX, EpsY, EpsZ float64
}

// FromEpsilon creates an isotropic material from a dielectric constant.
func FromEpsilon(eps float64) Material {
	return Material{EpsX: eps, EpsY: eps, EpsZ: eps}
}

// FromIndex creates an isotropic material from a refractive index n,
// using eps = n².
func FromIndex(n float64) Material {
	return FromEpsilon(n * n)
}

// Anisotropic creates a material with a diagonal dielectric tensor.
func Anisotropic(epsX, epsY, epsZ float64) Material {
	return Material{EpsX: epsX, EpsY: epsY, EpsZ: epsZ}
}

// Air is the isotropic air/vacuum material.
func Air() Material {
	return FromEpsilon(EpsilonAir)
}

// IsIsotropic reports whether all diagonal tensor elements are equal.
func (m Material) IsIsotropic() bool {
	return m.EpsX == m.EpsY && m.EpsY == m.EpsZ
}

// InPlaneEpsilon returns the in-plane dielectric constant (eps_x), the
// scalar written into rasterized permittivity grids.
func (m Material) InPlaneEpsilon() float64 {
	return m.EpsX
}

// Index returns the refractive indices (n_x, n_y, n_z) of the material.
func (m Material) Index() (nx, ny, nz float64) {
	return math.Sqrt(m.EpsX), math.Sqrt(m.EpsY), math.Sqrt(m.EpsZ)
}
