// Package feature defines the drawable feature contract consumed by layers and the compositor.
package feature

import (
	"github.com/paulmach/orb"
	"github.com/teris-io/shortid"

	"github.com/Everpoint/sGis-sub002/bounds"
	"github.com/Everpoint/sGis-sub002/crs"
	"github.com/Everpoint/sGis-sub002/render"
)

// Feature is anything a layer can hand to the compositor.
type Feature interface {
	CRS() *crs.CRS
	Bbox() bounds.Box
	// Renders produces primitives in target for the given resolution.
	Renders(resolution float64, target *crs.CRS) []render.Primitive
}

// Revisioned features change their renders without changing identity. The
// compositor redraws a drawn feature whenever its revision moves.
type Revisioned interface {
	Revision() uint64
}

// Positioned features have a single anchor position and can be clustered.
type Positioned interface {
	Feature
	Position() orb.Point
}

// Symbol turns a feature into primitives. The engine never looks inside a symbol.
type Symbol interface {
	Render(f Feature, resolution float64, target *crs.CRS) []render.Primitive
}

// Base carries the state common to the concrete features.
type Base struct {
	id       string
	crs      *crs.CRS
	symbol   Symbol
	revision uint64
}

func newBase(c *crs.CRS, s Symbol) Base {
	id, _ := shortid.Generate()
	return Base{id: id, crs: c, symbol: s}
}

func (b *Base) ID() string       { return b.id }
func (b *Base) CRS() *crs.CRS    { return b.crs }
func (b *Base) Symbol() Symbol   { return b.symbol }
func (b *Base) Revision() uint64 { return b.revision }

// SetSymbol replaces the symbol and marks the feature for redraw.
func (b *Base) SetSymbol(s Symbol) {
	b.symbol = s
	b.revision++
}

// Touch marks the feature for redraw.
func (b *Base) Touch() {
	b.revision++
}

func renderWith(f Feature, s Symbol, resolution float64, target *crs.CRS) []render.Primitive {
	if s == nil {
		return nil
	}
	return s.Render(f, resolution, target)
}

// ProjectPoints converts points from one system to another.
func ProjectPoints(points []orb.Point, from, to *crs.CRS) ([]orb.Point, bool) {
	fn, ok := from.ProjectionTo(to)
	if !ok {
		return nil, false
	}
	out := make([]orb.Point, len(points))
	for i, p := range points {
		out[i] = fn(p)
	}
	return out, true
}

// ProjectRings converts every ring from one system to another.
func ProjectRings(rings [][]orb.Point, from, to *crs.CRS) ([][]orb.Point, bool) {
	out := make([][]orb.Point, len(rings))
	for i, ring := range rings {
		projected, ok := ProjectPoints(ring, from, to)
		if !ok {
			return nil, false
		}
		out[i] = projected
	}
	return out, true
}
