package surface

import (
	"image"
	"image/color"
	"math"

	"github.com/paulmach/orb"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/Everpoint/sGis-sub002/render"
)

// kappa places cubic control points for a quarter circle.
const kappa = 0.5522847498

type rasterizer struct {
	s *Surface
	z *vector.Rasterizer
}

func newRasterizer(s *Surface) *rasterizer {
	z := vector.NewRasterizer(s.size.X, s.size.Y)
	z.DrawOp = draw.Over
	return &rasterizer{s: s, z: z}
}

// pixel maps a world position onto the raster.
func (r *rasterizer) pixel(p orb.Point) (float32, float32) {
	b := r.s.bbox
	return float32((p[0] - b.Min[0]) / r.s.resolution), float32((b.Max[1] - p[1]) / r.s.resolution)
}

func (r *rasterizer) draw(e *Entry) {
	switch p := e.Primitive.(type) {
	case *render.Circle:
		r.circle(p, e.Opacity)
	case *render.Path:
		r.path(p, e.Opacity)
	case *render.Image:
		r.image(p, e.Opacity)
	case *render.Text:
		r.text(p, e.Opacity)
	}
}

func (r *rasterizer) fill(c color.Color, opacity float64) {
	r.z.Draw(r.s.raster, r.s.raster.Bounds(), image.NewUniform(fade(c, opacity)), image.Point{})
	r.z.Reset(r.s.size.X, r.s.size.Y)
}

func (r *rasterizer) circle(c *render.Circle, opacity float64) {
	x, y := r.pixel(c.Center)
	rad := float32(c.Radius)
	if c.Fill != nil {
		r.ellipse(x, y, rad, false)
		r.fill(c.Fill, opacity)
	}
	if c.Stroke != nil && c.StrokeWidth > 0 {
		half := float32(c.StrokeWidth / 2)
		r.ellipse(x, y, rad+half, false)
		if inner := rad - half; inner > 0 {
			r.ellipse(x, y, inner, true)
		}
		r.fill(c.Stroke, opacity)
	}
}

// ellipse adds a circle of radius rad around (x, y), clockwise on screen
// unless reversed.
func (r *rasterizer) ellipse(x, y, rad float32, reversed bool) {
	k := rad * kappa
	z := r.z
	z.MoveTo(x+rad, y)
	if !reversed {
		z.CubeTo(x+rad, y+k, x+k, y+rad, x, y+rad)
		z.CubeTo(x-k, y+rad, x-rad, y+k, x-rad, y)
		z.CubeTo(x-rad, y-k, x-k, y-rad, x, y-rad)
		z.CubeTo(x+k, y-rad, x+rad, y-k, x+rad, y)
	} else {
		z.CubeTo(x+rad, y-k, x+k, y-rad, x, y-rad)
		z.CubeTo(x-k, y-rad, x-rad, y-k, x-rad, y)
		z.CubeTo(x-rad, y+k, x-k, y+rad, x, y+rad)
		z.CubeTo(x+k, y+rad, x+rad, y+k, x+rad, y)
	}
	z.ClosePath()
}

func (r *rasterizer) path(p *render.Path, opacity float64) {
	rings := make([][][2]float32, len(p.Rings))
	for i, ring := range p.Rings {
		rings[i] = make([][2]float32, len(ring))
		for j, pt := range ring {
			x, y := r.pixel(pt)
			rings[i][j] = [2]float32{x, y}
		}
	}
	if p.Closed && p.Fill != nil {
		// non-zero winding: holes must wind against their outer ring
		for _, ring := range rings {
			if len(ring) < 3 {
				continue
			}
			r.z.MoveTo(ring[0][0], ring[0][1])
			for _, pt := range ring[1:] {
				r.z.LineTo(pt[0], pt[1])
			}
			r.z.ClosePath()
		}
		r.fill(p.Fill, opacity)
	}
	if p.Stroke != nil && p.StrokeWidth > 0 {
		half := float32(p.StrokeWidth / 2)
		for _, ring := range rings {
			r.stroke(ring, half, p.Closed)
		}
		r.fill(p.Stroke, opacity)
	}
}

// stroke outlines a polyline with one quad per segment and round joins. All
// pieces wind the same way so their overlaps do not cancel out.
func (r *rasterizer) stroke(ring [][2]float32, half float32, closed bool) {
	n := len(ring)
	if n == 0 {
		return
	}
	segments := n - 1
	if closed && n > 2 {
		segments = n
	}
	for i := 0; i < segments; i++ {
		a, b := ring[i], ring[(i+1)%n]
		dx, dy := b[0]-a[0], b[1]-a[1]
		l := float32(math.Hypot(float64(dx), float64(dy)))
		if l == 0 {
			continue
		}
		nx, ny := -dy/l*half, dx/l*half
		r.quad([4][2]float32{
			{a[0] + nx, a[1] + ny},
			{b[0] + nx, b[1] + ny},
			{b[0] - nx, b[1] - ny},
			{a[0] - nx, a[1] - ny},
		})
	}
	for _, pt := range ring {
		r.ellipse(pt[0], pt[1], half, false)
	}
}

func (r *rasterizer) quad(q [4][2]float32) {
	var area float32
	for i := range q {
		j := (i + 1) % 4
		area += q[i][0]*q[j][1] - q[j][0]*q[i][1]
	}
	// match the clockwise-on-screen circles, which have positive area here
	if area < 0 {
		q[1], q[3] = q[3], q[1]
	}
	r.z.MoveTo(q[0][0], q[0][1])
	r.z.LineTo(q[1][0], q[1][1])
	r.z.LineTo(q[2][0], q[2][1])
	r.z.LineTo(q[3][0], q[3][1])
	r.z.ClosePath()
}

func (r *rasterizer) image(p *render.Image, opacity float64) {
	if p.Source == nil || p.Source.Image() == nil {
		return
	}
	src := p.Source.Image()
	box, ok := p.Box.Project(r.s.bbox.CRS)
	if !ok {
		return
	}
	x0, y0 := r.pixel(orb.Point{box.Min[0], box.Max[1]})
	x1, y1 := r.pixel(orb.Point{box.Max[0], box.Min[1]})
	sb := src.Bounds()
	if sb.Empty() {
		return
	}
	sx := float64(x1-x0) / float64(sb.Dx())
	sy := float64(y1-y0) / float64(sb.Dy())
	m := f64.Aff3{
		sx, 0, float64(x0) - float64(sb.Min.X)*sx,
		0, sy, float64(y0) - float64(sb.Min.Y)*sy,
	}
	alpha := opacity * p.Opacity
	if alpha <= 0 {
		return
	}
	var opts *draw.Options
	if alpha < 1 {
		opts = &draw.Options{SrcMask: image.NewUniform(color.Alpha16{A: uint16(alpha * 0xffff)})}
	}
	draw.BiLinear.Transform(r.s.raster, m, src, sb, draw.Over, opts)
}

func (r *rasterizer) text(p *render.Text, opacity float64) {
	if p.Color == nil || p.Content == "" {
		return
	}
	x, y := r.pixel(p.Position)
	d := &font.Drawer{
		Dst:  r.s.raster,
		Src:  image.NewUniform(fade(p.Color, opacity)),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(int(x)+p.Offset.X, int(y)+p.Offset.Y),
	}
	d.DrawString(p.Content)
}

// fade scales a color, premultiplied alpha included, by opacity.
func fade(c color.Color, opacity float64) color.Color {
	if opacity >= 1 {
		return c
	}
	opacity = math.Max(opacity, 0)
	r, g, b, a := c.RGBA()
	return color.RGBA64{
		R: uint16(float64(r) * opacity),
		G: uint16(float64(g) * opacity),
		B: uint16(float64(b) * opacity),
		A: uint16(float64(a) * opacity),
	}
}
