package symbol

import (
	"image"
	"image/color"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/Everpoint/sGis-sub002/crs"
	"github.com/Everpoint/sGis-sub002/feature"
	"github.com/Everpoint/sGis-sub002/render"
	"github.com/Everpoint/sGis-sub002/resource"
)

type ringed interface {
	Rings() [][]orb.Point
}

type texted interface {
	Content() string
}

type counted interface {
	Count() int
}

type sourced interface {
	Source() *resource.Future
}

// Point draws a circle of Size pixels at the feature position.
type Point struct {
	Size        float64    `mapstructure:"size" default:"10"`
	Fill        color.RGBA `mapstructure:"fill"`
	Stroke      color.RGBA `mapstructure:"stroke"`
	StrokeWidth float64    `mapstructure:"strokeWidth" default:"1"`
}

func (s *Point) SetDefaults() {
	s.Fill = color.RGBA{R: 0xff, G: 0x8c, A: 0xff}
	s.Stroke = color.RGBA{A: 0xff}
}

func (s *Point) Render(f feature.Feature, _ float64, target *crs.CRS) []render.Primitive {
	p, ok := position(f, target)
	if !ok {
		return nil
	}
	return []render.Primitive{&render.Circle{
		Center: p,
		Radius: s.Size / 2,
		Style:  style(s.Fill, s.Stroke, s.StrokeWidth),
	}}
}

// Polyline strokes every ring of the feature.
type Polyline struct {
	Stroke      color.RGBA `mapstructure:"stroke"`
	StrokeWidth float64    `mapstructure:"strokeWidth" default:"2"`
}

func (s *Polyline) SetDefaults() {
	s.Stroke = color.RGBA{B: 0xcc, A: 0xff}
}

func (s *Polyline) Render(f feature.Feature, _ float64, target *crs.CRS) []render.Primitive {
	rings, ok := rings(f, target)
	if !ok {
		return nil
	}
	return []render.Primitive{&render.Path{
		Rings: rings,
		Style: style(color.RGBA{}, s.Stroke, s.StrokeWidth),
	}}
}

// Polygon fills the rings with the even-odd rule and strokes their outline.
type Polygon struct {
	Fill        color.RGBA `mapstructure:"fill"`
	Stroke      color.RGBA `mapstructure:"stroke"`
	StrokeWidth float64    `mapstructure:"strokeWidth" default:"1"`
}

func (s *Polygon) SetDefaults() {
	s.Fill = color.RGBA{R: 0x40, G: 0x80, B: 0x40, A: 0x80}
	s.Stroke = color.RGBA{A: 0xff}
}

func (s *Polygon) Render(f feature.Feature, _ float64, target *crs.CRS) []render.Primitive {
	rings, ok := rings(f, target)
	if !ok {
		return nil
	}
	return []render.Primitive{&render.Path{
		Rings:  rings,
		Closed: true,
		Style:  style(s.Fill, s.Stroke, s.StrokeWidth),
	}}
}

// Label writes the feature content next to its position.
type Label struct {
	Color   color.RGBA `mapstructure:"color"`
	OffsetX int        `mapstructure:"offsetX" default:"0"`
	OffsetY int        `mapstructure:"offsetY" default:"0"`
}

func (s *Label) SetDefaults() {
	s.Color = color.RGBA{A: 0xff}
}

func (s *Label) Render(f feature.Feature, _ float64, target *crs.CRS) []render.Primitive {
	t, ok := f.(texted)
	if !ok {
		return nil
	}
	p, ok := position(f, target)
	if !ok {
		return nil
	}
	return []render.Primitive{&render.Text{
		Position: p,
		Offset:   image.Pt(s.OffsetX, s.OffsetY),
		Content:  t.Content(),
		Color:    paint(s.Color),
	}}
}

// Cluster draws a circle growing with the member count and writes the count inside.
type Cluster struct {
	Size        float64    `mapstructure:"size" default:"22"`
	Fill        color.RGBA `mapstructure:"fill"`
	Stroke      color.RGBA `mapstructure:"stroke"`
	StrokeWidth float64    `mapstructure:"strokeWidth" default:"2"`
	LabelColor  color.RGBA `mapstructure:"labelColor"`
}

func (s *Cluster) SetDefaults() {
	s.Fill = color.RGBA{R: 0x33, G: 0x66, B: 0xcc, A: 0xff}
	s.Stroke = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	s.LabelColor = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
}

func (s *Cluster) Render(f feature.Feature, _ float64, target *crs.CRS) []render.Primitive {
	p, ok := position(f, target)
	if !ok {
		return nil
	}
	n := 1
	if c, ok := f.(counted); ok {
		n = c.Count()
	}
	radius := s.Size / 2
	if n > 10 {
		radius += float64(len(strconv.Itoa(n))-1) * 3
	}
	out := []render.Primitive{&render.Circle{
		Center: p,
		Radius: radius,
		Style:  style(s.Fill, s.Stroke, s.StrokeWidth),
	}}
	if n > 1 {
		label := strconv.Itoa(n)
		// basicfont glyphs are 7x13
		out = append(out, &render.Text{
			Position: p,
			Offset:   image.Pt(-len(label)*7/2, 4),
			Content:  label,
			Color:    paint(s.LabelColor),
		})
	}
	return out
}

// Image stretches the feature image over its box.
type Image struct {
	Opacity float64 `mapstructure:"opacity" default:"1"`
}

func (s *Image) Render(f feature.Feature, _ float64, target *crs.CRS) []render.Primitive {
	src, ok := f.(sourced)
	if !ok || src.Source() == nil {
		return nil
	}
	box, ok := f.Bbox().Project(target)
	if !ok {
		return nil
	}
	return []render.Primitive{&render.Image{Box: box, Source: src.Source(), Opacity: s.Opacity}}
}

func position(f feature.Feature, target *crs.CRS) (orb.Point, bool) {
	pf, ok := f.(feature.Positioned)
	if !ok {
		return orb.Point{}, false
	}
	return f.CRS().Project(pf.Position(), target)
}

func rings(f feature.Feature, target *crs.CRS) ([][]orb.Point, bool) {
	rf, ok := f.(ringed)
	if !ok {
		return nil, false
	}
	return feature.ProjectRings(rf.Rings(), f.CRS(), target)
}

func style(fill, stroke color.RGBA, width float64) render.Style {
	return render.Style{Fill: paint(fill), Stroke: paint(stroke), StrokeWidth: width}
}
