// Package waveguide models the vertical structure of a photonic-crystal
// waveguide: a stack of z-slabs, each carrying either a uniform material or
// an in-plane crystal pattern, plus a cladding material outside the stack.
package waveguide

import (
	"errors"
	"fmt"
	"sort"

	"github.com/phoxel/phoxel/pkg/crystal"
	"github.com/phoxel/phoxel/pkg/optics"
)

// ErrMalformedStack is returned when layers are unsorted, overlapping,
// non-contiguous, or have non-positive thickness.
var ErrMalformedStack = errors.New("malformed layer stack")

// Layer is a half-open z-interval [ZMin, ZMax). Material is the slab
// material; when Crystal is non-nil the slab is patterned and Material acts
// as the background the crystal's features are cut into.
type Layer struct {
	Name       string
	ZMin, ZMax float64
	Material   optics.Material
	Crystal    *crystal.Crystal
}

// Thickness returns ZMax - ZMin.
func (l Layer) Thickness() float64 { return l.ZMax - l.ZMin }

// Uniform creates an unpatterned slab of the given thickness. The z-origin
// is assigned when the layer is placed into a stack via NewStack.
func Uniform(name string, thickness float64, m optics.Material) Layer {
	return Layer{Name: name, ZMax: thickness, Material: m}
}

// Patterned creates a crystal-patterned slab of the given thickness with
// the given background material.
func Patterned(name string, thickness float64, c crystal.Crystal, background optics.Material) Layer {
	return Layer{Name: name, ZMax: thickness, Material: background, Crystal: &c}
}

// Stack is an ordered, contiguous, non-overlapping sequence of layers
// covering [ZMin(), ZMax()). Construct with NewStack or FromThicknesses;
// a Stack that exists is always well formed.
type Stack struct {
	layers []Layer
}

// NewStack validates and adopts a sorted layer sequence. Each layer must
// have positive thickness and start exactly where the previous one ends.
func NewStack(layers []Layer) (Stack, error) {
	if len(layers) == 0 {
		return Stack{}, fmt.Errorf("%w: no layers", ErrMalformedStack)
	}
	for i, l := range layers {
		if l.Thickness() <= 0 {
			return Stack{}, fmt.Errorf("%w: layer %d (%s) has thickness %g",
				ErrMalformedStack, i, l.Name, l.Thickness())
		}
		if i > 0 && l.ZMin != layers[i-1].ZMax {
			return Stack{}, fmt.Errorf("%w: gap between layer %d (ends %g) and layer %d (starts %g)",
				ErrMalformedStack, i-1, layers[i-1].ZMax, i, l.ZMin)
		}
	}
	s := Stack{layers: make([]Layer, len(layers))}
	copy(s.layers, layers)
	return s, nil
}

// FromThicknesses stacks layers bottom-up starting at z = 0, assigning each
// layer's z-interval from its thickness (layers built with Uniform or
// Patterned carry thickness in ZMax).
func FromThicknesses(layers []Layer) (Stack, error) {
	placed := make([]Layer, len(layers))
	z := 0.0
	for i, l := range layers {
		t := l.Thickness()
		l.ZMin, l.ZMax = z, z+t
		placed[i] = l
		z += t
	}
	return NewStack(placed)
}

// Layers returns the layers in z order.
func (s Stack) Layers() []Layer { return s.layers }

// ZMin returns the lower bound of the stack.
func (s Stack) ZMin() float64 { return s.layers[0].ZMin }

// ZMax returns the upper bound of the stack.
func (s Stack) ZMax() float64 { return s.layers[len(s.layers)-1].ZMax }

// Thickness returns the full z-span of the stack.
func (s Stack) Thickness() float64 { return s.ZMax() - s.ZMin() }

// At locates the layer containing z by binary search. The interval
// convention is half-open: z exactly on a boundary belongs to the layer
// whose lower bound it is. ok is false for z outside [ZMin, ZMax).
func (s Stack) At(z float64) (layer Layer, ok bool) {
	if len(s.layers) == 0 || z < s.ZMin() || z >= s.ZMax() {
		return Layer{}, false
	}
	// first layer whose upper bound lies above z
	i := sort.Search(len(s.layers), func(i int) bool {
		return z < s.layers[i].ZMax
	})
	return s.layers[i], true
}

// CrystalLayer returns the first patterned layer, if any.
func (s Stack) CrystalLayer() (Layer, bool) {
	for _, l := range s.layers {
		if l.Crystal != nil {
			return l, true
		}
	}
	return Layer{}, false
}

// Waveguide is a layer stack plus the cladding material used outside the
// stack's z-range.
type Waveguide struct {
	Stack    Stack
	Cladding optics.Material
}

// MaterialAt returns the slab material at height z, or the cladding for z
// outside the stack. The in-plane pattern, if any, is resolved by the
// rasterizer per sample point.
func (w Waveguide) MaterialAt(z float64) optics.Material {
	if l, ok := w.Stack.At(z); ok {
		return l.Material
	}
	return w.Cladding
}
