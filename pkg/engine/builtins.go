package engine

import (
	"fmt"
	"strings"

	v2 "github.com/deadsy/sdfx/vec/v2"
	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/phoxel/phoxel/pkg/crystal"
	"github.com/phoxel/phoxel/pkg/optics"
	"github.com/phoxel/phoxel/pkg/waveguide"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms scene Lisp source code before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: lattice-square -> lattice_square
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpMaterial wraps an optics.Material so it can be passed between builtins.
type sexpMaterial struct {
	m optics.Material
}

func (m *sexpMaterial) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(material :eps %g)", m.m.InPlaneEpsilon())
}
func (m *sexpMaterial) Type() *zygo.RegisteredType { return nil }

// sexpVec2 wraps a physical in-plane vector.
type sexpVec2 struct {
	vec v2.Vec
}

func (v *sexpVec2) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec2 %g %g)", v.vec.X, v.vec.Y)
}
func (v *sexpVec2) Type() *zygo.RegisteredType { return nil }

// sexpFrac wraps fractional unit-cell coordinates.
type sexpFrac struct {
	f crystal.Frac
}

func (f *sexpFrac) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(frac %g %g)", f.f.U, f.f.V)
}
func (f *sexpFrac) Type() *zygo.RegisteredType { return nil }

// sexpLattice wraps a crystal.Lattice.
type sexpLattice struct {
	lat crystal.Lattice
}

func (l *sexpLattice) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(lattice %s :a %g)", l.lat.Kind, l.lat.Constant)
}
func (l *sexpLattice) Type() *zygo.RegisteredType { return nil }

// sexpFeature wraps a crystal.Feature.
type sexpFeature struct {
	f crystal.Feature
}

func (f *sexpFeature) SexpString(ps *zygo.PrintState) string {
	c := f.f.Center()
	return fmt.Sprintf("(feature :center (frac %g %g))", c.U, c.V)
}
func (f *sexpFeature) Type() *zygo.RegisteredType { return nil }

// sexpCrystal wraps a crystal.Crystal.
type sexpCrystal struct {
	c crystal.Crystal
}

func (c *sexpCrystal) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(crystal %s)", c.c.Lattice.Kind)
}
func (c *sexpCrystal) Type() *zygo.RegisteredType { return nil }

// sexpLayer wraps an unplaced waveguide.Layer.
type sexpLayer struct {
	l waveguide.Layer
}

func (l *sexpLayer) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(layer %q :thickness %g)", l.l.Name, l.l.Thickness())
}
func (l *sexpLayer) Type() *zygo.RegisteredType { return nil }

// sexpWaveguide wraps a completed waveguide.Waveguide.
type sexpWaveguide struct {
	wg waveguide.Waveguide
}

func (w *sexpWaveguide) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(waveguide :layers %d)", len(w.wg.Stack.Layers()))
}
func (w *sexpWaveguide) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value, treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toMaterial extracts a Material from a sexpMaterial.
func toMaterial(s zygo.Sexp) (optics.Material, error) {
	if m, ok := s.(*sexpMaterial); ok {
		return m.m, nil
	}
	return optics.Material{}, fmt.Errorf("expected material, got %T (%s)", s, s.SexpString(nil))
}

// toVec2 extracts a physical vector from a sexpVec2.
func toVec2(s zygo.Sexp) (v2.Vec, error) {
	if v, ok := s.(*sexpVec2); ok {
		return v.vec, nil
	}
	return v2.Vec{}, fmt.Errorf("expected vec2, got %T (%s)", s, s.SexpString(nil))
}

// toFrac extracts fractional coordinates from a sexpFrac.
func toFrac(s zygo.Sexp) (crystal.Frac, error) {
	if f, ok := s.(*sexpFrac); ok {
		return f.f, nil
	}
	return crystal.Frac{}, fmt.Errorf("expected frac, got %T (%s)", s, s.SexpString(nil))
}

// toLattice extracts a Lattice from a sexpLattice.
func toLattice(s zygo.Sexp) (crystal.Lattice, error) {
	if l, ok := s.(*sexpLattice); ok {
		return l.lat, nil
	}
	return crystal.Lattice{}, fmt.Errorf("expected lattice, got %T (%s)", s, s.SexpString(nil))
}

// toCrystal extracts a Crystal from a sexpCrystal.
func toCrystal(s zygo.Sexp) (crystal.Crystal, error) {
	if c, ok := s.(*sexpCrystal); ok {
		return c.c, nil
	}
	return crystal.Crystal{}, fmt.Errorf("expected crystal, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// ---------------------------------------------------------------------------
// Design collector
// ---------------------------------------------------------------------------

// design collects the waveguide defined by a script. The last (waveguide ...)
// or (table-waveguide ...) form wins.
type design struct {
	wg *waveguide.Waveguide
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs all scene DSL builtins into a zygomys environment.
// The builtins construct geometry values and record the final waveguide in d.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, d *design) {

	// -----------------------------------------------------------------------
	// (material :eps 12.7449)
	// (material :n 3.57)
	// (material :eps-x 12.6 :eps-y 12.6 :eps-z 12.9)
	// -----------------------------------------------------------------------
	env.AddFunction("material", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)

		if v, ok := pa.kw["eps"]; ok {
			eps, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("material: eps: %w", err)
			}
			return &sexpMaterial{m: optics.FromEpsilon(eps)}, nil
		}
		if v, ok := pa.kw["n"]; ok {
			n, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("material: n: %w", err)
			}
			return &sexpMaterial{m: optics.FromIndex(n)}, nil
		}
		if _, ok := pa.kw["eps-x"]; ok {
			var eps [3]float64
			for i, key := range []string{"eps-x", "eps-y", "eps-z"} {
				v, ok := pa.kw[key]
				if !ok {
					return zygo.SexpNull, fmt.Errorf("material: anisotropic form requires :%s", key)
				}
				f, err := toFloat64(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("material: %s: %w", key, err)
				}
				eps[i] = f
			}
			return &sexpMaterial{m: optics.Anisotropic(eps[0], eps[1], eps[2])}, nil
		}
		return zygo.SexpNull, fmt.Errorf("material requires :eps, :n, or :eps-x/:eps-y/:eps-z")
	})

	// -----------------------------------------------------------------------
	// (air)
	// -----------------------------------------------------------------------
	env.AddFunction("air", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return &sexpMaterial{m: optics.Air()}, nil
	})

	// -----------------------------------------------------------------------
	// (vec2 1.0e-7 2.0e-7)
	// -----------------------------------------------------------------------
	env.AddFunction("vec2", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("vec2 requires exactly 2 arguments, got %d", len(args))
		}
		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec2: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec2: y: %w", err)
		}
		return &sexpVec2{vec: v2.Vec{X: x, Y: y}}, nil
	})

	// -----------------------------------------------------------------------
	// (frac 0.5 0.5)
	// -----------------------------------------------------------------------
	env.AddFunction("frac", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("frac requires exactly 2 arguments, got %d", len(args))
		}
		u, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("frac: u: %w", err)
		}
		v, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("frac: v: %w", err)
		}
		return &sexpFrac{f: crystal.Frac{U: u, V: v}}, nil
	})

	// -----------------------------------------------------------------------
	// (lattice-square :a 295e-9)
	//
	// Note: registered as "lattice_square" because zygomys does not support
	// hyphens in identifiers. The preprocessor converts lattice-square to
	// lattice_square in the source.
	// -----------------------------------------------------------------------
	env.AddFunction("lattice_square", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		v, ok := pa.kw["a"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("lattice-square requires :a")
		}
		a, err := toFloat64(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("lattice-square: a: %w", err)
		}
		lat, err := crystal.Square(a)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("lattice-square: %w", err)
		}
		return &sexpLattice{lat: lat}, nil
	})

	// -----------------------------------------------------------------------
	// (lattice-hex :a 295e-9)
	// -----------------------------------------------------------------------
	env.AddFunction("lattice_hex", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		v, ok := pa.kw["a"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("lattice-hex requires :a")
		}
		a, err := toFloat64(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("lattice-hex: a: %w", err)
		}
		lat, err := crystal.Hexagonal(a)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("lattice-hex: %w", err)
		}
		return &sexpLattice{lat: lat}, nil
	})

	// -----------------------------------------------------------------------
	// (lattice :a1 (vec2 ...) :a2 (vec2 ...))
	// -----------------------------------------------------------------------
	env.AddFunction("lattice", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)

		va1, ok := pa.kw["a1"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("lattice requires :a1")
		}
		a1, err := toVec2(va1)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("lattice: a1: %w", err)
		}
		va2, ok := pa.kw["a2"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("lattice requires :a2")
		}
		a2, err := toVec2(va2)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("lattice: a2: %w", err)
		}

		lat, err := crystal.Oblique(a1, a2)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("lattice: %w", err)
		}
		return &sexpLattice{lat: lat}, nil
	})

	// -----------------------------------------------------------------------
	// (circle :radius 6.6e-8 :center (frac 0.5 0.5) :material air)
	// (circle :fill 0.16 :lattice lat :material air)
	// -----------------------------------------------------------------------
	env.AddFunction("circle", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)

		m := optics.Air()
		if v, ok := pa.kw["material"]; ok {
			var err error
			m, err = toMaterial(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("circle: material: %w", err)
			}
		}

		if v, ok := pa.kw["fill"]; ok {
			fill, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("circle: fill: %w", err)
			}
			vl, ok := pa.kw["lattice"]
			if !ok {
				return zygo.SexpNull, fmt.Errorf("circle: :fill requires :lattice")
			}
			lat, err := toLattice(vl)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("circle: lattice: %w", err)
			}
			f, err := crystal.CircleFromFill(fill, lat, m)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("circle: %w", err)
			}
			return &sexpFeature{f: f}, nil
		}

		v, ok := pa.kw["radius"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("circle requires :radius or :fill")
		}
		r, err := toFloat64(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("circle: radius: %w", err)
		}

		center := crystal.Frac{U: 0.5, V: 0.5}
		if v, ok := pa.kw["center"]; ok {
			center, err = toFrac(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("circle: center: %w", err)
			}
		}

		f, err := crystal.Circle(center, r, m)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("circle: %w", err)
		}
		return &sexpFeature{f: f}, nil
	})

	// -----------------------------------------------------------------------
	// (rect :width 1e-7 :height 5e-8 :rotation 45 :center (frac 0.5 0.5)
	//       :material air)
	// -----------------------------------------------------------------------
	env.AddFunction("rect", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)

		var width, height, rotation float64
		for _, spec := range []struct {
			key string
			dst *float64
			req bool
		}{
			{"width", &width, true},
			{"height", &height, true},
			{"rotation", &rotation, false},
		} {
			v, ok := pa.kw[spec.key]
			if !ok {
				if spec.req {
					return zygo.SexpNull, fmt.Errorf("rect requires :%s", spec.key)
				}
				continue
			}
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("rect: %s: %w", spec.key, err)
			}
			*spec.dst = f
		}

		m := optics.Air()
		if v, ok := pa.kw["material"]; ok {
			var err error
			m, err = toMaterial(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("rect: material: %w", err)
			}
		}
		center := crystal.Frac{U: 0.5, V: 0.5}
		if v, ok := pa.kw["center"]; ok {
			var err error
			center, err = toFrac(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("rect: center: %w", err)
			}
		}

		f, err := crystal.Rectangle(center, width, height, rotation, m)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rect: %w", err)
		}
		return &sexpFeature{f: f}, nil
	})

	// -----------------------------------------------------------------------
	// (polygon :points (list (vec2 ...) ...) :center (frac 0.5 0.5)
	//          :material air)
	// -----------------------------------------------------------------------
	env.AddFunction("polygon", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)

		v, ok := pa.kw["points"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("polygon requires :points")
		}
		items, err := sexpListToSlice(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("polygon: points: %w", err)
		}
		verts := make([]v2.Vec, 0, len(items))
		for i, item := range items {
			p, err := toVec2(item)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("polygon: point %d: %w", i, err)
			}
			verts = append(verts, p)
		}

		m := optics.Air()
		if v, ok := pa.kw["material"]; ok {
			m, err = toMaterial(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("polygon: material: %w", err)
			}
		}
		center := crystal.Frac{U: 0.5, V: 0.5}
		if v, ok := pa.kw["center"]; ok {
			center, err = toFrac(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("polygon: center: %w", err)
			}
		}

		f, err := crystal.Polygon(center, verts, m)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("polygon: %w", err)
		}
		return &sexpFeature{f: f}, nil
	})

	// -----------------------------------------------------------------------
	// (crystal :lattice lat :background slab :features (list hole))
	// -----------------------------------------------------------------------
	env.AddFunction("crystal", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)

		vl, ok := pa.kw["lattice"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("crystal requires :lattice")
		}
		lat, err := toLattice(vl)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("crystal: lattice: %w", err)
		}
		vb, ok := pa.kw["background"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("crystal requires :background")
		}
		background, err := toMaterial(vb)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("crystal: background: %w", err)
		}

		cell := crystal.NewUnitCell(background)
		if v, ok := pa.kw["features"]; ok {
			items, err := sexpListToSlice(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("crystal: features: %w", err)
			}
			for i, item := range items {
				f, ok := item.(*sexpFeature)
				if !ok {
					return zygo.SexpNull, fmt.Errorf("crystal: feature %d: expected feature, got %T (%s)",
						i, item, item.SexpString(nil))
				}
				cell.Add(f.f)
			}
		}

		return &sexpCrystal{c: crystal.New(lat, cell)}, nil
	})

	// -----------------------------------------------------------------------
	// (layer :name "active" :thickness 0.0885e-6 :material active)
	// (layer :name "pc" :thickness 0.1180e-6 :material slab :crystal c)
	// -----------------------------------------------------------------------
	env.AddFunction("layer", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)

		layerName := ""
		if v, ok := pa.kw["name"]; ok {
			var err error
			layerName, err = toString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("layer: name: %w", err)
			}
		}
		vt, ok := pa.kw["thickness"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("layer requires :thickness")
		}
		thickness, err := toFloat64(vt)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("layer: thickness: %w", err)
		}
		vm, ok := pa.kw["material"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("layer requires :material")
		}
		m, err := toMaterial(vm)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("layer: material: %w", err)
		}

		if v, ok := pa.kw["crystal"]; ok {
			c, err := toCrystal(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("layer: crystal: %w", err)
			}
			return &sexpLayer{l: waveguide.Patterned(layerName, thickness, c, m)}, nil
		}
		return &sexpLayer{l: waveguide.Uniform(layerName, thickness, m)}, nil
	})

	// -----------------------------------------------------------------------
	// (waveguide :cladding (air) :layers (list l1 l2 ...))
	// -----------------------------------------------------------------------
	env.AddFunction("waveguide", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)

		cladding := optics.Air()
		if v, ok := pa.kw["cladding"]; ok {
			var err error
			cladding, err = toMaterial(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("waveguide: cladding: %w", err)
			}
		}

		vl, ok := pa.kw["layers"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("waveguide requires :layers")
		}
		items, err := sexpListToSlice(vl)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("waveguide: layers: %w", err)
		}
		layers := make([]waveguide.Layer, 0, len(items))
		for i, item := range items {
			l, ok := item.(*sexpLayer)
			if !ok {
				return zygo.SexpNull, fmt.Errorf("waveguide: layer %d: expected layer, got %T (%s)",
					i, item, item.SexpString(nil))
			}
			layers = append(layers, l.l)
		}

		stack, err := waveguide.FromThicknesses(layers)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("waveguide: %w", err)
		}

		wg := waveguide.Waveguide{Stack: stack, Cladding: cladding}
		d.wg = &wg
		return &sexpWaveguide{wg: wg}, nil
	})

	// -----------------------------------------------------------------------
	// (table-waveguide :crystal c :slab (material :eps 12.2521))
	// -----------------------------------------------------------------------
	env.AddFunction("table_waveguide", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)

		vc, ok := pa.kw["crystal"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("table-waveguide requires :crystal")
		}
		c, err := toCrystal(vc)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("table-waveguide: crystal: %w", err)
		}
		vs, ok := pa.kw["slab"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("table-waveguide requires :slab")
		}
		slab, err := toMaterial(vs)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("table-waveguide: slab: %w", err)
		}

		wg, err := waveguide.FromTable(c, slab)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("table-waveguide: %w", err)
		}
		d.wg = &wg
		return &sexpWaveguide{wg: wg}, nil
	})
}
