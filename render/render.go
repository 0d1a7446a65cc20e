// Package render defines the drawable primitives symbols produce.
//
// Positions are world coordinates in the crs a feature was rendered for;
// sizes (radius, stroke width, text offset) are in pixels.
package render

import (
	"image"
	"image/color"

	"github.com/paulmach/orb"

	"github.com/Everpoint/sGis-sub002/bounds"
	"github.com/Everpoint/sGis-sub002/resource"
)

// Primitive is one of *Circle, *Path, *Image or *Text.
type Primitive interface {
	primitive()
}

// Style is shared by vector primitives. A nil color skips that part.
type Style struct {
	Fill        color.Color
	Stroke      color.Color
	StrokeWidth float64
}

type Circle struct {
	Center orb.Point
	Radius float64
	Style
}

// Path is a polyline, or a polygon when Closed is set.
type Path struct {
	Rings  [][]orb.Point
	Closed bool
	Style
}

// Image stretches a loaded image over Box.
type Image struct {
	Box     bounds.Box
	Source  *resource.Future
	Opacity float64
}

type Text struct {
	Position orb.Point
	Offset   image.Point
	Content  string
	Color    color.Color
}

func (*Circle) primitive() {}
func (*Path) primitive()   {}
func (*Image) primitive()  {}
func (*Text) primitive()   {}

// IsVector reports whether p can be drawn without waiting for a resource.
func IsVector(p Primitive) bool {
	_, isImage := p.(*Image)
	return !isImage
}
