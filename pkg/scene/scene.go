// Package scene defines the JSON scene-description format consumed by the
// CLI and the HTTP service. A Document is pure data; Build constructs the
// validated geometry objects from it, so every error the geometry
// constructors can report surfaces through Build.
//
// Lattice and feature variants are encoded as tagged unions discriminated
// by a "type" field.
package scene

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Vec2 is a 2D point or vector in physical units.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FracPoint is a position in fractional lattice coordinates.
type FracPoint struct {
	U float64 `json:"u"`
	V float64 `json:"v"`
}

// MaterialSpec describes a material. Exactly one of Eps, Index, or the
// anisotropic triple should be set; Eps wins if several are.
type MaterialSpec struct {
	Eps   float64     `json:"eps,omitempty"`
	Index float64     `json:"index,omitempty"`
	Aniso *[3]float64 `json:"aniso,omitempty"`
}

// Lattice variant names used as type discriminators.
var latticeType = struct {
	square    string
	hexagonal string
	oblique   string
}{
	square:    "square",
	hexagonal: "hexagonal",
	oblique:   "oblique",
}

var latticeTypeMapping = map[string]func() interface{}{
	latticeType.square:    func() interface{} { return &SquareLatticeSpec{} },
	latticeType.hexagonal: func() interface{} { return &HexLatticeSpec{} },
	latticeType.oblique:   func() interface{} { return &ObliqueLatticeSpec{} },
}

// SquareLatticeSpec is a square lattice with lattice constant A.
type SquareLatticeSpec struct {
	A float64 `json:"a"`
}

// MarshalJSON implements json.Marshaler.
func (s SquareLatticeSpec) MarshalJSON() ([]byte, error) {
	type Alias SquareLatticeSpec
	return json.Marshal(struct {
		Type string `json:"type"`
		Alias
	}{Type: latticeType.square, Alias: Alias(s)})
}

// HexLatticeSpec is a hexagonal (triangular) lattice with lattice constant A.
type HexLatticeSpec struct {
	A float64 `json:"a"`
}

// MarshalJSON implements json.Marshaler.
func (s HexLatticeSpec) MarshalJSON() ([]byte, error) {
	type Alias HexLatticeSpec
	return json.Marshal(struct {
		Type string `json:"type"`
		Alias
	}{Type: latticeType.hexagonal, Alias: Alias(s)})
}

// ObliqueLatticeSpec is a general lattice with explicit basis vectors.
type ObliqueLatticeSpec struct {
	A1 Vec2 `json:"a1"`
	A2 Vec2 `json:"a2"`
}

// MarshalJSON implements json.Marshaler.
func (s ObliqueLatticeSpec) MarshalJSON() ([]byte, error) {
	type Alias ObliqueLatticeSpec
	return json.Marshal(struct {
		Type string `json:"type"`
		Alias
	}{Type: latticeType.oblique, Alias: Alias(s)})
}

// LatticeSpec wraps one of the lattice variants.
type LatticeSpec struct {
	LatticeType interface{}
}

// MarshalJSON implements json.Marshaler.
func (s LatticeSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.LatticeType)
}

// UnmarshalJSON recognizes the variant by the "type" field.
func (s *LatticeSpec) UnmarshalJSON(b []byte) error {
	v, err := typeBasedUnmarshal(b, latticeTypeMapping)
	if err != nil {
		return fmt.Errorf("lattice: %w", err)
	}
	s.LatticeType = v
	return nil
}

// Feature variant names used as type discriminators.
var featureType = struct {
	circle  string
	rect    string
	polygon string
}{
	circle:  "circle",
	rect:    "rect",
	polygon: "polygon",
}

var featureTypeMapping = map[string]func() interface{}{
	featureType.circle:  func() interface{} { return &CircleSpec{} },
	featureType.rect:    func() interface{} { return &RectSpec{} },
	featureType.polygon: func() interface{} { return &PolygonSpec{} },
}

// CircleSpec is a circular feature. Either Radius (physical units) or Fill
// (fraction of the primitive cell, centered at (1/2, 1/2)) must be set.
type CircleSpec struct {
	Center   FracPoint `json:"center"`
	Radius   float64   `json:"radius,omitempty"`
	Fill     float64   `json:"fill,omitempty"`
	Material string    `json:"material"`
}

// MarshalJSON implements json.Marshaler.
func (s CircleSpec) MarshalJSON() ([]byte, error) {
	type Alias CircleSpec
	return json.Marshal(struct {
		Type string `json:"type"`
		Alias
	}{Type: featureType.circle, Alias: Alias(s)})
}

// RectSpec is a rectangular feature with physical side lengths and an
// optional rotation in degrees.
type RectSpec struct {
	Center   FracPoint `json:"center"`
	Width    float64   `json:"width"`
	Height   float64   `json:"height"`
	Rotation float64   `json:"rotation,omitempty"`
	Material string    `json:"material"`
}

// MarshalJSON implements json.Marshaler.
func (s RectSpec) MarshalJSON() ([]byte, error) {
	type Alias RectSpec
	return json.Marshal(struct {
		Type string `json:"type"`
		Alias
	}{Type: featureType.rect, Alias: Alias(s)})
}

// PolygonSpec is a polygonal feature with vertices in physical units
// relative to the feature center.
type PolygonSpec struct {
	Center   FracPoint `json:"center"`
	Vertices []Vec2    `json:"vertices"`
	Material string    `json:"material"`
}

// MarshalJSON implements json.Marshaler.
func (s PolygonSpec) MarshalJSON() ([]byte, error) {
	type Alias PolygonSpec
	return json.Marshal(struct {
		Type string `json:"type"`
		Alias
	}{Type: featureType.polygon, Alias: Alias(s)})
}

// FeatureSpec wraps one of the feature variants.
type FeatureSpec struct {
	FeatureType interface{}
}

// MarshalJSON implements json.Marshaler.
func (s FeatureSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.FeatureType)
}

// UnmarshalJSON recognizes the variant by the "type" field.
func (s *FeatureSpec) UnmarshalJSON(b []byte) error {
	v, err := typeBasedUnmarshal(b, featureTypeMapping)
	if err != nil {
		return fmt.Errorf("feature: %w", err)
	}
	s.FeatureType = v
	return nil
}

// LayerSpec is one z-slab of the stack, bottom-up. Material names the slab
// material; Patterned marks the slab carrying the document's crystal, with
// Material acting as the pattern background.
type LayerSpec struct {
	Name      string  `json:"name,omitempty"`
	Thickness float64 `json:"thickness"`
	Material  string  `json:"material"`
	Patterned bool    `json:"patterned,omitempty"`
}

// Document is a complete scene description: named materials, one in-plane
// crystal (lattice + features + background), the layer stack bottom-up, and
// the cladding outside the stack.
type Document struct {
	Name       string                  `json:"name,omitempty"`
	Materials  map[string]MaterialSpec `json:"materials"`
	Lattice    LatticeSpec             `json:"lattice"`
	Features   []FeatureSpec           `json:"features"`
	Background string                  `json:"background"`
	Layers     []LayerSpec             `json:"layers"`
	Cladding   string                  `json:"cladding"`
}

// Parse decodes a JSON scene document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// typeBasedUnmarshal decodes b into the concrete type selected by its
// "type" field.
func typeBasedUnmarshal(
	b []byte, mapping map[string]func() interface{},
) (interface{}, error) {
	var raw struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	create, known := mapping[raw.Type]
	if !known {
		return nil, fmt.Errorf("unknown type %q", raw.Type)
	}
	v := create()
	if err := json.Unmarshal(b, v); err != nil {
		return nil, err
	}
	return reflect.ValueOf(v).Elem().Interface(), nil
}
