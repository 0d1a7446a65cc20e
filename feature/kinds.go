package feature

import (
	"github.com/paulmach/orb"

	"github.com/Everpoint/sGis-sub002/bounds"
	"github.com/Everpoint/sGis-sub002/crs"
	"github.com/Everpoint/sGis-sub002/render"
	"github.com/Everpoint/sGis-sub002/resource"
)

// Point is a single position.
type Point struct {
	Base
	position orb.Point
}

func NewPoint(p orb.Point, c *crs.CRS, s Symbol) *Point {
	return &Point{Base: newBase(c, s), position: p}
}

func (f *Point) Position() orb.Point { return f.position }

func (f *Point) SetPosition(p orb.Point) {
	f.position = p
	f.Touch()
}

func (f *Point) Bbox() bounds.Box {
	return bounds.New(f.position, f.position, f.crs)
}

func (f *Point) Renders(resolution float64, target *crs.CRS) []render.Primitive {
	return renderWith(f, f.symbol, resolution, target)
}

// Polyline is a set of open paths.
type Polyline struct {
	Base
	rings [][]orb.Point
}

func NewPolyline(rings [][]orb.Point, c *crs.CRS, s Symbol) *Polyline {
	return &Polyline{Base: newBase(c, s), rings: rings}
}

func (f *Polyline) Rings() [][]orb.Point { return f.rings }

func (f *Polyline) Bbox() bounds.Box {
	return ringsBox(f.rings, f.crs)
}

func (f *Polyline) Renders(resolution float64, target *crs.CRS) []render.Primitive {
	return renderWith(f, f.symbol, resolution, target)
}

// Polygon is a set of closed rings, the first one being the outer boundary.
type Polygon struct {
	Base
	rings [][]orb.Point
}

func NewPolygon(rings [][]orb.Point, c *crs.CRS, s Symbol) *Polygon {
	return &Polygon{Base: newBase(c, s), rings: rings}
}

func (f *Polygon) Rings() [][]orb.Point { return f.rings }

func (f *Polygon) Bbox() bounds.Box {
	return ringsBox(f.rings, f.crs)
}

func (f *Polygon) Renders(resolution float64, target *crs.CRS) []render.Primitive {
	return renderWith(f, f.symbol, resolution, target)
}

// Label is text anchored at a position.
type Label struct {
	Base
	position orb.Point
	content  string
}

func NewLabel(p orb.Point, content string, c *crs.CRS, s Symbol) *Label {
	return &Label{Base: newBase(c, s), position: p, content: content}
}

func (f *Label) Position() orb.Point { return f.position }
func (f *Label) Content() string     { return f.content }

func (f *Label) Bbox() bounds.Box {
	return bounds.New(f.position, f.position, f.crs)
}

func (f *Label) Renders(resolution float64, target *crs.CRS) []render.Primitive {
	return renderWith(f, f.symbol, resolution, target)
}

// StaticImage stretches an image resource over a box.
type StaticImage struct {
	Base
	box    bounds.Box
	source *resource.Future
}

func NewStaticImage(box bounds.Box, source *resource.Future, s Symbol) *StaticImage {
	return &StaticImage{Base: newBase(box.CRS, s), box: box, source: source}
}

func (f *StaticImage) Source() *resource.Future { return f.source }

func (f *StaticImage) Bbox() bounds.Box {
	return f.box
}

func (f *StaticImage) Renders(resolution float64, target *crs.CRS) []render.Primitive {
	return renderWith(f, f.symbol, resolution, target)
}

func ringsBox(rings [][]orb.Point, c *crs.CRS) bounds.Box {
	var b orb.Bound
	first := true
	for _, ring := range rings {
		for _, p := range ring {
			if first {
				b = orb.Bound{Min: p, Max: p}
				first = false
				continue
			}
			b = b.Extend(p)
		}
	}
	return bounds.FromBound(b, c)
}
