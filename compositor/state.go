package compositor

import (
	"image"

	"github.com/sirupsen/logrus"

	"github.com/Everpoint/sGis-sub002/event"
	"github.com/Everpoint/sGis-sub002/feature"
	"github.com/Everpoint/sGis-sub002/layer"
	"github.com/Everpoint/sGis-sub002/logger"
	"github.com/Everpoint/sGis-sub002/render"
	"github.com/Everpoint/sGis-sub002/surface"
)

// drawn is what one feature last put on the surfaces. stale holds the
// drawings it replaces until the loads of stalePass settle.
type drawn struct {
	revision  uint64
	entries   []*surface.Entry
	stale     []*surface.Entry
	stalePass uint64
	queued    bool
	queuedAt  uint64
}

// layerState tracks what a layer has on the surfaces.
type layerState struct {
	layer   layer.Layer
	order   int
	drawn   map[feature.Feature]*drawn
	entries []*surface.Entry // placement order
	surface *surface.Surface

	pass uint64
	// unsettled loads by the pass that started them
	pending map[uint64]int

	restyle  bool
	released bool
	off      func()
}

func newLayerState(l layer.Layer, order int) *layerState {
	st := &layerState{
		layer:   l,
		order:   order,
		drawn:   make(map[feature.Feature]*drawn),
		pending: make(map[uint64]int),
	}
	st.off = l.Events().On(event.Changed, func(event.Event) { st.restyle = true })
	return st
}

func revisionOf(f feature.Feature) uint64 {
	if r, ok := f.(feature.Revisioned); ok {
		return r.Revision()
	}
	return 0
}

func (st *layerState) reconcile(c *Compositor, top *surface.Surface) {
	st.pass++
	if st.surface != top {
		st.moveTo(top)
	}
	if st.restyle {
		st.applyOpacity()
	}

	var visible []feature.Feature
	if st.layer.IsDisplayed(c.resolution) {
		visible = st.layer.Features(c.bbox, c.resolution)
	}
	seen := make(map[feature.Feature]struct{}, len(visible))
	for _, f := range visible {
		seen[f] = struct{}{}
		d, ok := st.drawn[f]
		rev := revisionOf(f)
		switch {
		case !ok:
			st.draw(c, f, rev)
		case d.revision != rev:
			st.redraw(c, f, d, rev)
		case d.queued:
			d.queued = false
		}
	}
	for f, d := range st.drawn {
		if _, ok := seen[f]; !ok && !d.queued {
			d.queued, d.queuedAt = true, st.pass
		}
	}
	st.drain()
}

// redraw replaces d. The old drawing goes at once when the new one is
// complete, otherwise it stays until the loads of this pass settle.
func (st *layerState) redraw(c *Compositor, f feature.Feature, d *drawn, rev uint64) {
	old := append(d.stale, d.entries...)
	nd, waiting := st.draw(c, f, rev)
	if waiting {
		nd.stale, nd.stalePass = old, st.pass
		return
	}
	st.remove(old)
}

// draw places what f renders now and subscribes to its unsettled images. It
// reports whether any image is still loading.
func (st *layerState) draw(c *Compositor, f feature.Feature, rev uint64) (*drawn, bool) {
	d := &drawn{revision: rev}
	st.drawn[f] = d
	waiting := false
	for _, p := range f.Renders(c.resolution, c.crs) {
		p := p // captured by the deferred Then callback below
		img, ok := p.(*render.Image)
		if !ok || img.Source == nil || img.Source.Settled() {
			if !ok || img.Source == nil || img.Source.Err() == nil {
				d.entries = append(d.entries, st.place(c, p))
			}
			continue
		}
		waiting = true
		pass := st.pass
		st.pending[pass]++
		img.Source.Then(func(_ image.Image, err error) {
			if st.released {
				return
			}
			if st.drawn[f] == d && err == nil {
				d.entries = append(d.entries, st.place(c, p))
			}
			if st.pending[pass]--; st.pending[pass] == 0 {
				delete(st.pending, pass)
				st.drain()
			}
		})
	}
	return d, waiting
}

// place puts p on the newest surface.
func (st *layerState) place(c *Compositor, p render.Primitive) *surface.Entry {
	e := &surface.Entry{Primitive: p, Layer: st.order, Opacity: st.layer.Opacity()}
	if top := c.top(); top != nil {
		top.Add(e)
	}
	st.entries = append(st.entries, e)
	return e
}

// drain removes queued features and replaced drawings whose pass has no load
// left in flight.
func (st *layerState) drain() {
	var gone []*surface.Entry
	for f, d := range st.drawn {
		switch {
		case d.queued && st.pending[d.queuedAt] == 0:
			gone = append(gone, d.stale...)
			gone = append(gone, d.entries...)
			delete(st.drawn, f)
		case len(d.stale) > 0 && st.pending[d.stalePass] == 0:
			gone = append(gone, d.stale...)
			d.stale = nil
		}
	}
	st.remove(gone)
}

// remove takes es off their surfaces and out of the placement order.
func (st *layerState) remove(es []*surface.Entry) {
	if len(es) == 0 {
		return
	}
	gone := make(map[*surface.Entry]struct{}, len(es))
	for _, e := range es {
		gone[e] = struct{}{}
	}
	kept := st.entries[:0]
	for _, e := range st.entries {
		if _, ok := gone[e]; ok {
			if s := e.Surface(); s != nil {
				s.Remove(e)
			}
			continue
		}
		kept = append(kept, e)
	}
	clear(st.entries[len(kept):])
	st.entries = kept
}

// moveTo puts every entry of the layer on s, keeping their relative order, so
// layers drawn later stay above this one.
func (st *layerState) moveTo(s *surface.Surface) {
	if len(st.entries) > 0 {
		logger.L().WithFields(logrus.Fields{
			"layer":   st.layer.Name(),
			"entries": len(st.entries),
			"surface": s.ID(),
		}).Debug("layer moved to top surface")
	}
	for _, e := range st.entries {
		s.Add(e)
	}
	st.surface = s
}

func (st *layerState) applyOpacity() {
	st.restyle = false
	o := st.layer.Opacity()
	touched := make(map[*surface.Surface]struct{})
	for _, e := range st.entries {
		if e.Opacity == o {
			continue
		}
		e.Opacity = o
		if s := e.Surface(); s != nil {
			touched[s] = struct{}{}
		}
	}
	for s := range touched {
		s.Invalidate()
	}
}

func (st *layerState) setOrder(i int) {
	st.order = i
	for _, e := range st.entries {
		e.Layer = i
	}
}

// release takes everything the layer drew off the surfaces. Loads still in
// flight settle into nothing.
func (st *layerState) release() {
	st.released = true
	st.off()
	for _, e := range st.entries {
		if s := e.Surface(); s != nil {
			s.Remove(e)
		}
	}
	st.entries = nil
	st.drawn = make(map[feature.Feature]*drawn)
	st.pending = make(map[uint64]int)
}
