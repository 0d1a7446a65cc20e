// Package surface implements the compositing surfaces primitives are drawn on.
//
// A surface is a raster snapshot of a bbox at one resolution. It keeps the
// primitives it holds so it can redraw after removals, and it can be
// composited into a view at another resolution with an affine transform
// instead of redrawing every primitive.
package surface

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sort"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/Everpoint/sGis-sub002/bounds"
	"github.com/Everpoint/sGis-sub002/metrics"
	"github.com/Everpoint/sGis-sub002/render"
)

// ErrAllocation is returned when a surface raster cannot be created.
var ErrAllocation = errors.New("surface allocation failed")

// DefaultMaxPixels bounds the raster of a single surface.
const DefaultMaxPixels = 64 << 20

// Entry is one primitive placed on a surface. Entries sort by layer order and
// then by insertion, so later layers always draw above earlier ones.
type Entry struct {
	Primitive render.Primitive
	// Layer is the stacking order of the owning layer.
	Layer   int
	Opacity float64

	seq     uint64
	surface *Surface
}

// Surface returns the surface holding e, or nil.
func (e *Entry) Surface() *Surface { return e.surface }

type Surface struct {
	id         int
	bbox       bounds.Box
	resolution float64
	size       image.Point

	entries []*Entry
	seq     uint64
	raster  *image.RGBA
	// pending entries were appended on top since the last draw
	pending []*Entry
	dirty   bool
}

// New allocates a surface covering bbox at resolution.
func New(id int, bbox bounds.Box, resolution float64, maxPixels int) (*Surface, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if resolution <= 0 || math.IsNaN(resolution) || math.IsInf(resolution, 0) {
		return nil, fmt.Errorf("%w: resolution %v", ErrAllocation, resolution)
	}
	w := int(math.Ceil(bbox.Width() / resolution))
	h := int(math.Ceil(bbox.Height() / resolution))
	if w <= 0 || h <= 0 || w > maxPixels/h {
		return nil, fmt.Errorf("%w: %dx%d pixels for %v", ErrAllocation, w, h, bbox)
	}
	metrics.SurfacesAllocated.Inc()
	return &Surface{
		id:         id,
		bbox:       bbox,
		resolution: resolution,
		size:       image.Pt(w, h),
		raster:     image.NewRGBA(image.Rect(0, 0, w, h)),
	}, nil
}

func (s *Surface) ID() int             { return s.id }
func (s *Surface) Bbox() bounds.Box    { return s.bbox }
func (s *Surface) Resolution() float64 { return s.resolution }
func (s *Surface) Size() image.Point   { return s.size }
func (s *Surface) Len() int            { return len(s.entries) }
func (s *Surface) Empty() bool         { return len(s.entries) == 0 }
func (s *Surface) Entries() []*Entry   { return append([]*Entry(nil), s.entries...) }

// Scale is the factor the raster is stretched by when shown at resolution.
func (s *Surface) Scale(resolution float64) float64 {
	return s.resolution / resolution
}

// Covers reports whether bbox lies inside the surface snapshot.
func (s *Surface) Covers(bbox bounds.Box) bool {
	return s.bbox.Contains(bbox)
}

func less(a, b *Entry) bool {
	if a.Layer != b.Layer {
		return a.Layer < b.Layer
	}
	return a.seq < b.seq
}

// Add places e on the surface, taking it off any other surface first.
func (s *Surface) Add(e *Entry) {
	if e.surface != nil {
		e.surface.Remove(e)
	}
	s.seq++
	e.seq = s.seq
	e.surface = s
	i := sort.Search(len(s.entries), func(i int) bool { return less(e, s.entries[i]) })
	s.entries = append(s.entries, nil)
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = e
	if i == len(s.entries)-1 && !s.dirty {
		s.pending = append(s.pending, e)
	} else {
		s.dirty = true
	}
}

// Remove takes e off the surface. It reports whether e was there.
func (s *Surface) Remove(e *Entry) bool {
	if e.surface != s {
		return false
	}
	for i, x := range s.entries {
		if x == e {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			e.surface = nil
			s.dirty = true
			return true
		}
	}
	return false
}

// Resort restores the entry order after entry Layer values changed.
func (s *Surface) Resort() {
	sort.SliceStable(s.entries, func(i, j int) bool { return less(s.entries[i], s.entries[j]) })
	s.dirty = true
}

// Invalidate forces a full redraw on the next Raster call.
func (s *Surface) Invalidate() {
	s.dirty = true
}

// Raster returns the surface image, drawing what changed since the last call.
func (s *Surface) Raster() *image.RGBA {
	if s.dirty {
		clear(s.raster.Pix)
		s.pending = s.entries
		s.dirty = false
	}
	if len(s.pending) > 0 {
		r := newRasterizer(s)
		for _, e := range s.pending {
			r.draw(e)
		}
		s.pending = nil
	}
	return s.raster
}

// Composite draws the surface into dst, which shows view at resolution.
func (s *Surface) Composite(dst draw.Image, view bounds.Box, resolution float64) {
	src := s.Raster()
	k := s.Scale(resolution)
	tx := (s.bbox.Min[0] - view.Min[0]) / resolution
	ty := (view.Max[1] - s.bbox.Max[1]) / resolution
	if math.Abs(k-1) < 1e-9 && isWhole(tx) && isWhole(ty) {
		r := src.Bounds().Add(image.Pt(int(math.Round(tx)), int(math.Round(ty))))
		draw.Draw(dst, r, src, image.Point{}, draw.Over)
		return
	}
	draw.ApproxBiLinear.Transform(dst, f64.Aff3{k, 0, tx, 0, k, ty}, src, src.Bounds(), draw.Over, nil)
}

func isWhole(v float64) bool {
	return math.Abs(v-math.Round(v)) < 1e-6
}
