// Package bounds implements axis-aligned boxes tagged with a coordinate system.
package bounds

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/Everpoint/sGis-sub002/crs"
	"github.com/Everpoint/sGis-sub002/internal/mathhelp"
)

// Box is an axis-aligned rectangle in CRS. Min <= Max on both axes.
type Box struct {
	Min orb.Point
	Max orb.Point
	CRS *crs.CRS
}

// New builds a normalized box from two opposite corners.
func New(a, b orb.Point, c *crs.CRS) Box {
	return Box{
		Min: orb.Point{math.Min(a[0], b[0]), math.Min(a[1], b[1])},
		Max: orb.Point{math.Max(a[0], b[0]), math.Max(a[1], b[1])},
		CRS: c,
	}
}

// FromBound tags an orb.Bound with a coordinate system.
func FromBound(b orb.Bound, c *crs.CRS) Box {
	return New(b.Min, b.Max, c)
}

// Around returns the box of the given size in units centered on p.
func Around(center orb.Point, width, height float64, c *crs.CRS) Box {
	return New(
		orb.Point{center[0] - width/2, center[1] - height/2},
		orb.Point{center[0] + width/2, center[1] + height/2},
		c,
	)
}

func (b Box) String() string {
	return fmt.Sprintf("[%g %g, %g %g] %v", b.Min[0], b.Min[1], b.Max[0], b.Max[1], b.CRS)
}

func (b Box) IsZero() bool {
	return b.CRS == nil && b.Min == orb.Point{} && b.Max == orb.Point{}
}

func (b Box) Bound() orb.Bound {
	return orb.Bound{Min: b.Min, Max: b.Max}
}

func (b Box) Width() float64 {
	return b.Max[0] - b.Min[0]
}

func (b Box) Height() float64 {
	return b.Max[1] - b.Min[1]
}

func (b Box) Center() orb.Point {
	return orb.Point{(b.Min[0] + b.Max[0]) / 2, (b.Min[1] + b.Max[1]) / 2}
}

// Project re-projects both corners into target and renormalizes.
func (b Box) Project(target *crs.CRS) (Box, bool) {
	if b.CRS.Equals(target) {
		return b, true
	}
	fn, ok := b.CRS.ProjectionTo(target)
	if !ok {
		return Box{}, false
	}
	return New(fn(b.Min), fn(b.Max), target), true
}

// Intersects reports whether b and other overlap, touching edges included.
// Boxes that cannot be brought into one system never intersect.
func (b Box) Intersects(other Box) bool {
	o, ok := other.Project(b.CRS)
	if !ok {
		return false
	}
	return b.Bound().Intersects(o.Bound())
}

// Contains reports whether other lies entirely inside b.
func (b Box) Contains(other Box) bool {
	o, ok := other.Project(b.CRS)
	if !ok {
		return false
	}
	return b.Min[0] <= o.Min[0] && b.Min[1] <= o.Min[1] &&
		o.Max[0] <= b.Max[0] && o.Max[1] <= b.Max[1]
}

// ContainsPoint reports whether p, expressed in c, lies inside b.
func (b Box) ContainsPoint(p orb.Point, c *crs.CRS) bool {
	q, ok := c.Project(p, b.CRS)
	if !ok {
		return false
	}
	return b.Bound().Contains(q)
}

// Equals compares corners after projection with a relative tolerance.
func (b Box) Equals(other Box) bool {
	o, ok := other.Project(b.CRS)
	if !ok {
		return false
	}
	return near(b.Min[0], o.Min[0]) && near(b.Min[1], o.Min[1]) &&
		near(b.Max[0], o.Max[0]) && near(b.Max[1], o.Max[1])
}

// Intersection returns the overlap of b and other in b's system.
func (b Box) Intersection(other Box) (Box, bool) {
	if !b.Intersects(other) {
		return Box{}, false
	}
	o, _ := other.Project(b.CRS)
	return Box{
		Min: orb.Point{math.Max(b.Min[0], o.Min[0]), math.Max(b.Min[1], o.Min[1])},
		Max: orb.Point{math.Min(b.Max[0], o.Max[0]), math.Min(b.Max[1], o.Max[1])},
		CRS: b.CRS,
	}, true
}

// Pad grows the box by dx and dy on every side.
func (b Box) Pad(dx, dy float64) Box {
	return New(
		orb.Point{b.Min[0] - dx, b.Min[1] - dy},
		orb.Point{b.Max[0] + dx, b.Max[1] + dy},
		b.CRS,
	)
}

func near(a, b float64) bool {
	return mathhelp.Equal(a, b, mathhelp.Tolerance)
}
