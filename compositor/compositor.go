// Package compositor keeps a map drawn. Every tick it reconciles each layer's
// visible features with what is already on the compositing surfaces, drawing
// new features onto the newest surface and removing features that left the
// view. Surfaces are stretched and shifted to follow the view until they drift
// too far from its resolution or stop covering it; a fresh surface is then
// allocated and layers move their drawings onto it.
package compositor

import (
	"context"
	"image"
	"image/color"
	"time"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"

	"github.com/Everpoint/sGis-sub002/bounds"
	"github.com/Everpoint/sGis-sub002/crs"
	"github.com/Everpoint/sGis-sub002/event"
	"github.com/Everpoint/sGis-sub002/internal/mathhelp"
	"github.com/Everpoint/sGis-sub002/layer"
	"github.com/Everpoint/sGis-sub002/logger"
	"github.com/Everpoint/sGis-sub002/metrics"
	"github.com/Everpoint/sGis-sub002/resource"
	"github.com/Everpoint/sGis-sub002/surface"
	"github.com/Everpoint/sGis-sub002/viewport"
)

const (
	DefaultDrift  = 2.0
	DefaultMargin = 0.5
)

type Options struct {
	// Drift bounds the scale a surface is shown at, within [1/Drift, Drift].
	Drift float64
	// Margin is the share of the view added on each side of a new surface.
	Margin     float64
	MaxPixels  int
	Background color.Color
	// Dispatchers settle finished image loads at the start of every tick.
	Dispatchers []resource.Dispatcher
}

// Compositor must be ticked from the goroutine that changes its map.
type Compositor struct {
	m    *viewport.Map
	opts Options

	crs        *crs.CRS
	center     orb.Point
	resolution float64
	size       image.Point
	bbox       bounds.Box

	// surfaces in allocation order, the newest last
	surfaces []*surface.Surface
	nextID   int
	fresh    bool
	reorder  bool
	err      error

	states map[layer.Layer]*layerState
	offs   []func()
}

func New(m *viewport.Map, opts Options) *Compositor {
	if opts.Drift < 1 {
		if opts.Drift > 0 {
			opts.Drift = 1 / opts.Drift
		} else {
			opts.Drift = DefaultDrift
		}
	}
	if opts.Margin <= 0 {
		opts.Margin = DefaultMargin
	}
	c := &Compositor{m: m, opts: opts, states: make(map[layer.Layer]*layerState)}
	ev := m.Events()
	c.offs = append(c.offs,
		ev.On(event.LayerAdded, func(event.Event) { c.reorder = true }),
		ev.On(event.LayerOrderChanged, func(event.Event) { c.reorder = true }),
		ev.On(event.LayerRemoved, func(e event.Event) {
			if l, ok := e.Payload.(layer.Layer); ok {
				c.drop(l)
			}
			c.reorder = true
		}),
		ev.On(event.Settled, func(event.Event) {
			// redraw sharp once a gesture is over
			if top := c.top(); top != nil && !mathhelp.Equal(top.Scale(c.m.Resolution()), 1, mathhelp.Tolerance) {
				c.fresh = true
			}
		}),
	)
	return c
}

// Surfaces returns the live surfaces, the newest last.
func (c *Compositor) Surfaces() []*surface.Surface {
	return append([]*surface.Surface(nil), c.surfaces...)
}

// Bbox is the view as of the last tick.
func (c *Compositor) Bbox() bounds.Box { return c.bbox }

func (c *Compositor) top() *surface.Surface {
	if len(c.surfaces) == 0 {
		return nil
	}
	return c.surfaces[len(c.surfaces)-1]
}

// Tick brings the surfaces up to date with the map. A failed surface
// allocation stops rendering: the error is returned by every later tick.
func (c *Compositor) Tick() error {
	if c.err != nil {
		return c.err
	}
	start := time.Now()
	defer func() { metrics.TickDuration.Observe(float64(time.Since(start).Microseconds()) / 1000) }()

	for _, d := range c.opts.Dispatchers {
		d.Dispatch()
	}

	if !c.m.CRS().Equals(c.crs) {
		c.reset()
		c.crs = c.m.CRS()
		c.bbox = bounds.Box{}
	}
	size, center, res := c.m.Size(), c.m.Center(), c.m.Resolution()
	if size != c.size || c.bbox.IsZero() ||
		!mathhelp.Equal(center[0], c.center[0], mathhelp.Tolerance) ||
		!mathhelp.Equal(center[1], c.center[1], mathhelp.Tolerance) ||
		!mathhelp.Equal(res, c.resolution, mathhelp.Tolerance) {
		c.size, c.center, c.resolution = size, center, res
		c.bbox = c.m.Bbox()
	}

	top := c.top()
	if top == nil || !c.withinDrift(top) || !top.Covers(c.bbox) {
		c.fresh = true
	}
	if c.fresh && !c.m.Suspended() {
		s, err := c.allocate()
		if err != nil {
			c.err = err
			logger.L().WithError(err).Error("compositor stopped")
			return err
		}
		c.fresh = false
		top = s
	}
	if top == nil {
		return nil
	}

	layers := c.m.Layers()
	if c.reorder {
		c.applyOrder(layers)
	}
	for i := len(layers) - 1; i >= 0; i-- {
		c.state(layers[i], i).reconcile(c, top)
	}
	c.prune()
	return nil
}

func (c *Compositor) withinDrift(s *surface.Surface) bool {
	k := s.Scale(c.resolution)
	return k <= c.opts.Drift && k >= 1/c.opts.Drift
}

func (c *Compositor) allocate() (*surface.Surface, error) {
	k := 1 + 2*c.opts.Margin
	w := float64(c.size.X) * c.resolution * k
	h := float64(c.size.Y) * c.resolution * k
	c.nextID++
	s, err := surface.New(c.nextID, bounds.Around(c.center, w, h, c.crs), c.resolution, c.opts.MaxPixels)
	if err != nil {
		return nil, err
	}
	c.surfaces = append(c.surfaces, s)
	metrics.SurfacesLive.Inc()
	logger.L().WithFields(logrus.Fields{
		"id":         s.ID(),
		"resolution": c.resolution,
		"size":       s.Size(),
	}).Debug("surface allocated")
	return s, nil
}

// prune drops empty surfaces but the newest.
func (c *Compositor) prune() {
	kept := c.surfaces[:0]
	for i, s := range c.surfaces {
		if s.Empty() && i < len(c.surfaces)-1 {
			metrics.SurfacesLive.Dec()
			logger.L().WithField("id", s.ID()).Debug("surface released")
			continue
		}
		kept = append(kept, s)
	}
	clear(c.surfaces[len(kept):])
	c.surfaces = kept
}

func (c *Compositor) state(l layer.Layer, order int) *layerState {
	st, ok := c.states[l]
	if !ok {
		st = newLayerState(l, order)
		c.states[l] = st
	}
	return st
}

func (c *Compositor) applyOrder(layers []layer.Layer) {
	c.reorder = false
	changed := false
	for i, l := range layers {
		if st, ok := c.states[l]; ok && st.order != i {
			st.setOrder(i)
			changed = true
		}
	}
	if changed {
		for _, s := range c.surfaces {
			s.Resort()
		}
	}
}

func (c *Compositor) drop(l layer.Layer) {
	if st, ok := c.states[l]; ok {
		st.release()
		delete(c.states, l)
	}
}

// reset forgets everything drawn, as after a crs change.
func (c *Compositor) reset() {
	for l := range c.states {
		c.drop(l)
	}
	metrics.SurfacesLive.Sub(float64(len(c.surfaces)))
	c.surfaces = nil
	c.fresh = true
}

// Frame composes the surfaces into an image of the view.
func (c *Compositor) Frame() *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, c.size.X, c.size.Y))
	if c.opts.Background != nil {
		draw.Draw(dst, dst.Bounds(), image.NewUniform(c.opts.Background), image.Point{}, draw.Src)
	}
	for _, s := range c.surfaces {
		s.Composite(dst, c.bbox, c.resolution)
	}
	return dst
}

// Run ticks every interval until ctx is done or a tick fails. frame, when not
// nil, receives each composed frame and may change the map.
func (c *Compositor) Run(ctx context.Context, interval time.Duration, frame func(*image.RGBA)) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := c.Tick(); err != nil {
				return err
			}
			if frame != nil {
				frame(c.Frame())
			}
		}
	}
}

// Close unsubscribes from the map and releases every surface.
func (c *Compositor) Close() {
	for _, off := range c.offs {
		off()
	}
	c.offs = nil
	c.reset()
}
