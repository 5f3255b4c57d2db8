// Package export persists rasterized permittivity grids. The core only
// guarantees a dense array with known resolution and physical bounds; this
// package is the serialization collaborator sitting on that contract.
package export

import (
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/phoxel/phoxel/pkg/raster"
)

// gridEncMode is the CBOR encoder mode for grids. Canonical sorting and
// forbidden indefinite lengths keep the encoding deterministic, so the same
// grid always produces the same bytes.
var gridEncMode cbor.EncMode

// gridDecMode is the CBOR decoder mode for grids.
var gridDecMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	gridEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("grid CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		IndefLength: cbor.IndefLengthForbidden,
	}
	gridDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("grid CBOR decoder mode: %v", err))
	}
}

// gridDoc is the on-wire grid representation. Short integer keys keep the
// header compact next to the payload array.
type gridDoc struct {
	Nx   int       `cbor:"1,keyasint"`
	Ny   int       `cbor:"2,keyasint"`
	Nz   int       `cbor:"3,keyasint"`
	XMin float64   `cbor:"4,keyasint"`
	XMax float64   `cbor:"5,keyasint"`
	YMin float64   `cbor:"6,keyasint"`
	YMax float64   `cbor:"7,keyasint"`
	ZMin float64   `cbor:"8,keyasint"`
	ZMax float64   `cbor:"9,keyasint"`
	Eps  []float64 `cbor:"10,keyasint"`
}

// EncodeGrid encodes a grid to deterministic CBOR bytes.
func EncodeGrid(g *raster.Grid) ([]byte, error) {
	return gridEncMode.Marshal(docFromGrid(g))
}

// WriteGrid writes the CBOR encoding of a grid to w.
func WriteGrid(w io.Writer, g *raster.Grid) error {
	data, err := EncodeGrid(g)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteGridFile writes the CBOR encoding of a grid to path.
func WriteGridFile(path string, g *raster.Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteGrid(f, g); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// DecodeGrid decodes CBOR bytes produced by EncodeGrid.
func DecodeGrid(data []byte) (*raster.Grid, error) {
	var doc gridDoc
	if err := gridDecMode.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Nx < 1 || doc.Ny < 1 || doc.Nz < 1 {
		return nil, fmt.Errorf("grid document has resolution (%d, %d, %d)", doc.Nx, doc.Ny, doc.Nz)
	}
	if len(doc.Eps) != doc.Nx*doc.Ny*doc.Nz {
		return nil, fmt.Errorf("grid document has %d values, want %d",
			len(doc.Eps), doc.Nx*doc.Ny*doc.Nz)
	}
	return raster.FromBuffer(doc.Nx, doc.Ny, doc.Nz, raster.Bounds{
		XMin: doc.XMin, XMax: doc.XMax,
		YMin: doc.YMin, YMax: doc.YMax,
		ZMin: doc.ZMin, ZMax: doc.ZMax,
	}, doc.Eps)
}

// ReadGrid decodes a grid from r.
func ReadGrid(r io.Reader) (*raster.Grid, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return DecodeGrid(data)
}

func docFromGrid(g *raster.Grid) gridDoc {
	return gridDoc{
		Nx: g.Nx, Ny: g.Ny, Nz: g.Nz,
		XMin: g.Bounds.XMin, XMax: g.Bounds.XMax,
		YMin: g.Bounds.YMin, YMax: g.Bounds.YMax,
		ZMin: g.Bounds.ZMin, ZMax: g.Bounds.ZMax,
		Eps: g.Eps,
	}
}
