// Package viewport holds the map state the compositor follows: center,
// resolution, crs, pixel size and the ordered layer list.
package viewport

import (
	"errors"
	"fmt"
	"image"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"github.com/Everpoint/sGis-sub002/bounds"
	"github.com/Everpoint/sGis-sub002/crs"
	"github.com/Everpoint/sGis-sub002/event"
	"github.com/Everpoint/sGis-sub002/internal/mathhelp"
	"github.com/Everpoint/sGis-sub002/layer"
	"github.com/Everpoint/sGis-sub002/logger"
)

var ErrUnknownLayer = errors.New("layer is not on the map")

// Map is not safe for concurrent use; it belongs to the goroutine that ticks
// the compositor.
type Map struct {
	crs        *crs.CRS
	center     orb.Point
	resolution float64
	size       image.Point
	limits     layer.Limits

	layers    []layer.Layer
	suspended int
	events    event.Emitter
}

func New(c *crs.CRS, center orb.Point, resolution float64, width, height int) *Map {
	return &Map{crs: c, center: center, resolution: resolution, size: image.Pt(width, height)}
}

func (m *Map) CRS() *crs.CRS                  { return m.crs }
func (m *Map) Center() orb.Point              { return m.center }
func (m *Map) Resolution() float64            { return m.resolution }
func (m *Map) Size() image.Point              { return m.size }
func (m *Map) ResolutionLimits() layer.Limits { return m.limits }
func (m *Map) Events() *event.Emitter         { return &m.events }
func (m *Map) Suspended() bool                { return m.suspended > 0 }

// Bbox is the area the viewport shows.
func (m *Map) Bbox() bounds.Box {
	return bounds.Around(m.center, float64(m.size.X)*m.resolution, float64(m.size.Y)*m.resolution, m.crs)
}

// PointAt converts a pixel position into map coordinates.
func (m *Map) PointAt(px image.Point) orb.Point {
	b := m.Bbox()
	return orb.Point{b.Min[0] + float64(px.X)*m.resolution, b.Max[1] - float64(px.Y)*m.resolution}
}

func (m *Map) moved() {
	m.events.Emit(event.Event{Type: event.Moved, Payload: m.Bbox()})
}

func (m *Map) SetCenter(p orb.Point) {
	m.center = p
	m.moved()
}

// Move shifts the center by dx, dy map units.
func (m *Map) Move(dx, dy float64) {
	m.SetCenter(orb.Point{m.center[0] + dx, m.center[1] + dy})
}

// SetResolution keeps the center. The value is clamped into the resolution limits.
func (m *Map) SetResolution(r float64) {
	m.resolution = m.clamp(r)
	m.moved()
}

// ChangeResolution zooms keeping base at the same place on screen.
func (m *Map) ChangeResolution(r float64, base orb.Point) {
	r = m.clamp(r)
	k := r / m.resolution
	m.center = orb.Point{
		base[0] + (m.center[0]-base[0])*k,
		base[1] + (m.center[1]-base[1])*k,
	}
	m.resolution = r
	m.moved()
}

func (m *Map) SetResolutionLimits(l layer.Limits) {
	m.limits = l
	if r := m.clamp(m.resolution); r != m.resolution {
		m.SetResolution(r)
	}
}

func (m *Map) clamp(r float64) float64 {
	lo, hi := m.limits.Min, m.limits.Max
	if hi <= 0 {
		hi = r
	}
	return mathhelp.Clamp(r, lo, max(lo, hi))
}

// SetCRS reprojects the center into c. Resolution is left as is.
func (m *Map) SetCRS(c *crs.CRS) error {
	if m.crs.Equals(c) {
		return nil
	}
	p, ok := m.crs.Project(m.center, c)
	if !ok {
		return fmt.Errorf("map to %v: %w", c, crs.ErrNoProjection)
	}
	logger.L().WithFields(logrus.Fields{"from": m.crs, "to": c}).Debug("map crs changed")
	m.crs = c
	m.center = p
	m.moved()
	return nil
}

func (m *Map) Resize(width, height int) {
	m.size = image.Pt(width, height)
	m.moved()
}

// SuspendUpdates stops the compositor from allocating surfaces until the
// matching ResumeUpdates. Calls nest.
func (m *Map) SuspendUpdates() {
	m.suspended++
}

// ResumeUpdates raises event.Settled once the outermost suspension ends.
func (m *Map) ResumeUpdates() {
	if m.suspended == 0 {
		return
	}
	m.suspended--
	if m.suspended == 0 {
		m.events.Emit(event.Event{Type: event.Settled, Payload: m.Bbox()})
	}
}

// Layers returns the layers bottom first.
func (m *Map) Layers() []layer.Layer {
	return append([]layer.Layer(nil), m.layers...)
}

func (m *Map) IndexOf(l layer.Layer) int {
	for i, x := range m.layers {
		if x == l {
			return i
		}
	}
	return -1
}

// AddLayer puts l on top, moving it there when it is already on the map.
func (m *Map) AddLayer(l layer.Layer) {
	m.InsertLayer(l, len(m.layers))
}

// InsertLayer puts l at index i, clamped to the list. A layer already on the
// map is moved instead.
func (m *Map) InsertLayer(l layer.Layer, i int) {
	if m.IndexOf(l) >= 0 {
		_ = m.MoveLayer(l, i)
		return
	}
	i = min(max(i, 0), len(m.layers))
	m.layers = append(m.layers, nil)
	copy(m.layers[i+1:], m.layers[i:])
	m.layers[i] = l
	m.events.Emit(event.Event{Type: event.LayerAdded, Payload: l})
}

func (m *Map) RemoveLayer(l layer.Layer) error {
	i := m.IndexOf(l)
	if i < 0 {
		return fmt.Errorf("remove %q: %w", l.Name(), ErrUnknownLayer)
	}
	m.layers = append(m.layers[:i], m.layers[i+1:]...)
	m.events.Emit(event.Event{Type: event.LayerRemoved, Payload: l})
	return nil
}

// MoveLayer puts l at index i, clamped to the list.
func (m *Map) MoveLayer(l layer.Layer, i int) error {
	from := m.IndexOf(l)
	if from < 0 {
		return fmt.Errorf("move %q: %w", l.Name(), ErrUnknownLayer)
	}
	i = min(max(i, 0), len(m.layers)-1)
	if i == from {
		return nil
	}
	m.layers = append(m.layers[:from], m.layers[from+1:]...)
	m.layers = append(m.layers, nil)
	copy(m.layers[i+1:], m.layers[i:])
	m.layers[i] = l
	m.events.Emit(event.Event{Type: event.LayerOrderChanged, Payload: l})
	return nil
}
