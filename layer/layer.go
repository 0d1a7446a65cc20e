// Package layer holds the layer variants a map stacks: tiles, plain features,
// server rendered images and clusters. The compositor only sees the Layer
// interface.
package layer

import (
	"github.com/teris-io/shortid"

	"github.com/Everpoint/sGis-sub002/bounds"
	"github.com/Everpoint/sGis-sub002/event"
	"github.com/Everpoint/sGis-sub002/feature"
	"github.com/Everpoint/sGis-sub002/internal/mathhelp"
	"github.com/Everpoint/sGis-sub002/render"
)

// Layer is the capability set the compositor drives.
type Layer interface {
	ID() string
	Name() string
	// Features returns what is visible in bbox at resolution, bottom first.
	Features(bbox bounds.Box, resolution float64) []feature.Feature
	// Renders flattens the renders of Features in the bbox crs.
	Renders(bbox bounds.Box, resolution float64) []render.Primitive
	IsDisplayed(resolution float64) bool
	Opacity() float64
	Events() *event.Emitter
}

// Limits is a resolution window. A zero bound is open.
type Limits struct {
	Min float64 `mapstructure:"min" validate:"gte=0"`
	Max float64 `mapstructure:"max" validate:"gte=0"`
}

func (l Limits) Contains(resolution float64) bool {
	return (l.Min <= 0 || resolution >= l.Min) && (l.Max <= 0 || resolution <= l.Max)
}

// Base is the state shared by every variant. Setters raise event.Changed with
// the layer id as payload.
type Base struct {
	id      string
	name    string
	opacity float64
	hidden  bool
	limits  Limits
	events  event.Emitter
}

func newBase(name string) Base {
	id, _ := shortid.Generate()
	return Base{id: id, name: name, opacity: 1}
}

func (b *Base) ID() string             { return b.id }
func (b *Base) Name() string           { return b.name }
func (b *Base) Opacity() float64       { return b.opacity }
func (b *Base) Limits() Limits         { return b.limits }
func (b *Base) Events() *event.Emitter { return &b.events }

// IsDisplayed reports whether the layer shows anything at resolution.
func (b *Base) IsDisplayed(resolution float64) bool {
	return !b.hidden && b.opacity > 0 && b.limits.Contains(resolution)
}

func (b *Base) SetName(name string) {
	b.name = name
	b.changed()
}

// SetOpacity clamps o into [0, 1].
func (b *Base) SetOpacity(o float64) {
	b.opacity = mathhelp.Clamp(o, 0, 1)
	b.changed()
}

func (b *Base) SetLimits(l Limits) {
	b.limits = l
	b.changed()
}

func (b *Base) SetDisplayed(v bool) {
	b.hidden = !v
	b.changed()
}

func (b *Base) changed() {
	b.events.Emit(event.Event{Type: event.Changed, Payload: b.id})
}

func flatten[F feature.Feature](fs []F, bbox bounds.Box, resolution float64) []render.Primitive {
	var out []render.Primitive
	for _, f := range fs {
		out = append(out, f.Renders(resolution, bbox.CRS)...)
	}
	return out
}
