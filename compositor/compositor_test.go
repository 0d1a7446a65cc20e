package compositor

import (
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Everpoint/sGis-sub002/bounds"
	"github.com/Everpoint/sGis-sub002/crs"
	"github.com/Everpoint/sGis-sub002/feature"
	"github.com/Everpoint/sGis-sub002/layer"
	"github.com/Everpoint/sGis-sub002/render"
	"github.com/Everpoint/sGis-sub002/resource"
	"github.com/Everpoint/sGis-sub002/surface"
	"github.com/Everpoint/sGis-sub002/symbol"
	"github.com/Everpoint/sGis-sub002/tile"
	"github.com/Everpoint/sGis-sub002/viewport"
)

// newMap shows [0, 100] x [0, 100] at one unit per pixel.
func newMap() *viewport.Map {
	return viewport.New(crs.Plain, orb.Point{50, 50}, 1, 100, 100)
}

func pointLayer(name string, ps ...orb.Point) *layer.FeatureLayer {
	l := layer.NewFeatureLayer(name)
	for _, p := range ps {
		l.Add(feature.NewPoint(p, crs.Plain, symbol.MustNew(symbol.KindPoint)))
	}
	return l
}

func entries(c *Compositor) []*surface.Entry {
	var out []*surface.Entry
	for _, s := range c.Surfaces() {
		out = append(out, s.Entries()...)
	}
	return out
}

func ids(c *Compositor) []int {
	var out []int
	for _, s := range c.Surfaces() {
		out = append(out, s.ID())
	}
	return out
}

// urls lists the image sources on the surfaces.
func urls(c *Compositor) []string {
	var out []string
	for _, e := range entries(c) {
		if img, ok := e.Primitive.(*render.Image); ok {
			out = append(out, img.Source.URL())
		}
	}
	return out
}

func TestDrawsVisibleFeatures(t *testing.T) {
	m := newMap()
	m.AddLayer(pointLayer("points", orb.Point{50, 50}, orb.Point{500, 500}))
	c := New(m, Options{Background: color.White})
	require.NoError(t, c.Tick())

	require.Len(t, c.Surfaces(), 1)
	s := c.Surfaces()[0]
	assert.Equal(t, image.Pt(200, 200), s.Size(), "half a view of margin on every side")
	assert.Len(t, s.Entries(), 1)

	frame := c.Frame()
	assert.Equal(t, image.Pt(100, 100), frame.Bounds().Size())
	assert.NotEqual(t, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, frame.RGBAAt(50, 50))
	assert.Equal(t, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, frame.RGBAAt(10, 10))

	require.NoError(t, c.Tick())
	assert.Len(t, entries(c), 1, "nothing changed, nothing redrawn")
}

func TestPanWithinCoverageKeepsSurface(t *testing.T) {
	m := newMap()
	m.AddLayer(pointLayer("points", orb.Point{50, 50}, orb.Point{120, 50}))
	c := New(m, Options{})
	require.NoError(t, c.Tick())
	assert.Equal(t, []int{1}, ids(c))
	assert.Len(t, entries(c), 1)

	m.Move(30, 0)
	require.NoError(t, c.Tick())
	assert.Equal(t, []int{1}, ids(c))
	assert.Len(t, entries(c), 2)

	m.Move(30, 0)
	require.NoError(t, c.Tick())
	assert.Equal(t, []int{2}, ids(c), "uncovered view: new surface, old one emptied and released")
	assert.Len(t, entries(c), 1, "the point at x=50 left the view")
}

func TestScaleDrift(t *testing.T) {
	m := newMap()
	m.AddLayer(pointLayer("points", orb.Point{50, 50}))
	c := New(m, Options{})
	require.NoError(t, c.Tick())

	m.SetResolution(1.5)
	require.NoError(t, c.Tick())
	m.SetResolution(0.9)
	require.NoError(t, c.Tick())
	assert.Equal(t, []int{1}, ids(c))

	m.SetResolution(2.5)
	require.NoError(t, c.Tick())
	assert.Equal(t, []int{2}, ids(c))
	assert.Equal(t, 2.5, c.Surfaces()[0].Resolution())
	assert.Len(t, entries(c), 1)
}

func TestSuspendedUpdatesDeferAllocation(t *testing.T) {
	m := newMap()
	m.AddLayer(pointLayer("points", orb.Point{50, 50}))
	c := New(m, Options{})
	require.NoError(t, c.Tick())

	m.SuspendUpdates()
	m.SetResolution(1.5)
	m.Move(300, 0)
	require.NoError(t, c.Tick())
	assert.Equal(t, []int{1}, ids(c))
	assert.Empty(t, entries(c))

	m.ResumeUpdates()
	require.NoError(t, c.Tick())
	assert.Equal(t, []int{2}, ids(c))
	assert.Equal(t, 1.5, c.Surfaces()[0].Resolution())
}

func TestSettledRedrawsAtCurrentResolution(t *testing.T) {
	m := newMap()
	m.AddLayer(pointLayer("points", orb.Point{50, 50}))
	c := New(m, Options{})
	require.NoError(t, c.Tick())

	m.SuspendUpdates()
	m.SetResolution(1.2)
	require.NoError(t, c.Tick())
	assert.Equal(t, []int{1}, ids(c))
	m.ResumeUpdates()
	require.NoError(t, c.Tick())
	assert.Equal(t, []int{2}, ids(c))
	assert.Equal(t, 1.2, c.Surfaces()[0].Resolution())
}

func TestStackingOrder(t *testing.T) {
	m := newMap()
	bottom := pointLayer("bottom", orb.Point{50, 50}, orb.Point{60, 60})
	top := pointLayer("top", orb.Point{50, 50})
	m.AddLayer(bottom)
	m.AddLayer(top)
	c := New(m, Options{})
	require.NoError(t, c.Tick())

	layerOf := func() []int {
		var out []int
		for _, e := range entries(c) {
			out = append(out, e.Layer)
		}
		return out
	}
	assert.Equal(t, []int{0, 0, 1}, layerOf())

	m.Move(200, 0)
	m.Move(-200, 0)
	m.SetResolution(3)
	require.NoError(t, c.Tick())
	assert.Equal(t, []int{2}, ids(c))
	assert.Equal(t, []int{0, 0, 1}, layerOf(), "both layers moved to the new surface in order")

	require.NoError(t, m.MoveLayer(top, 0))
	require.NoError(t, c.Tick())
	es := entries(c)
	require.Len(t, es, 3)
	assert.Equal(t, []int{0, 1, 1}, layerOf())
	assert.Len(t, top.Features(m.Bbox(), m.Resolution()), 1)
}

func TestDeletionWaitsForReplacement(t *testing.T) {
	m := newMap()
	loader := resource.NewManual()
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	m.AddLayer(layer.NewImageLayer("dynamic", nil, layer.TemplateURL("{minx}"), loader))
	c := New(m, Options{Dispatchers: []resource.Dispatcher{loader}})

	require.NoError(t, c.Tick())
	assert.Empty(t, entries(c), "image still loading")
	loader.Resolve("0", img)
	require.NoError(t, c.Tick())
	require.Len(t, entries(c), 1)

	m.Move(10, 0)
	require.NoError(t, c.Tick())
	require.NoError(t, c.Tick())
	es := entries(c)
	require.Len(t, es, 1, "old image stays while the new one loads")
	assert.Equal(t, "0", es[0].Primitive.(*render.Image).Source.URL())

	loader.Resolve("10", img)
	require.NoError(t, c.Tick())
	es = entries(c)
	require.Len(t, es, 1)
	assert.Equal(t, "10", es[0].Primitive.(*render.Image).Source.URL())
}

func TestReplacementOutlivesLaterLoads(t *testing.T) {
	m := newMap()
	loader := resource.NewManual()
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	sym := symbol.MustNew(symbol.KindImage)
	box := bounds.New(orb.Point{10, 10}, orb.Point{20, 20}, crs.Plain)
	old := feature.NewStaticImage(box, loader.Load("old"), sym)
	l := layer.NewFeatureLayer("images", old)
	m.AddLayer(l)
	c := New(m, Options{Dispatchers: []resource.Dispatcher{loader}})
	require.NoError(t, c.Tick())
	loader.Resolve("old", img)
	require.NoError(t, c.Tick())
	require.Equal(t, []string{"old"}, urls(c))

	l.Remove(old)
	l.Add(feature.NewStaticImage(box, loader.Load("replacement"), sym))
	require.NoError(t, c.Tick())
	l.Add(feature.NewStaticImage(bounds.New(orb.Point{60, 60}, orb.Point{70, 70}, crs.Plain), loader.Load("other"), sym))
	require.NoError(t, c.Tick())

	loader.Resolve("other", img)
	require.NoError(t, c.Tick())
	assert.ElementsMatch(t, []string{"old", "other"}, urls(c), "old stays until its own replacement settles")

	loader.Resolve("replacement", img)
	require.NoError(t, c.Tick())
	assert.ElementsMatch(t, []string{"replacement", "other"}, urls(c))
}

func TestFadingTileNextToPendingTiles(t *testing.T) {
	now := time.Unix(100, 0)
	loader := resource.NewManual()
	s := tile.NewScheme(crs.Plain, orb.Point{0, 120}, 64, 64, []tile.Level{{Resolution: 1}})
	p := tile.NewPyramid(s, tile.Options{
		URL:        "{x}/{y}",
		Loader:     loader,
		CacheSize:  16,
		Transition: 80 * time.Millisecond,
		Clock:      func() time.Time { return now },
	})
	m := newMap()
	m.AddLayer(layer.NewTileLayer("tiles", p))
	c := New(m, Options{Dispatchers: []resource.Dispatcher{loader}})

	require.NoError(t, c.Tick())
	require.Len(t, loader.Requests(), 4)
	assert.Empty(t, entries(c))

	loader.Resolve("0/0", image.NewRGBA(image.Rect(0, 0, 1, 1)))
	for i := 0; i < 10; i++ {
		require.NoError(t, c.Tick())
		require.Equal(t, []string{"0/0"}, urls(c), "tick %d", i)
		now = now.Add(10 * time.Millisecond)
	}
	require.NoError(t, c.Tick())
	es := entries(c)
	require.Len(t, es, 1)
	assert.Equal(t, 1.0, es[0].Primitive.(*render.Image).Opacity)
}

func TestFailedImageIsNotDrawn(t *testing.T) {
	m := newMap()
	loader := resource.NewManual()
	m.AddLayer(layer.NewImageLayer("dynamic", nil, layer.TemplateURL("{minx}"), loader))
	c := New(m, Options{Dispatchers: []resource.Dispatcher{loader}})
	require.NoError(t, c.Tick())
	loader.Fail("0", assert.AnError)
	require.NoError(t, c.Tick())
	assert.Empty(t, entries(c))
}

func TestRevisionRedraws(t *testing.T) {
	m := newMap()
	l := layer.NewFeatureLayer("f")
	p := feature.NewPoint(orb.Point{50, 50}, crs.Plain, symbol.MustNew(symbol.KindPoint))
	l.Add(p)
	m.AddLayer(l)
	c := New(m, Options{})
	require.NoError(t, c.Tick())
	first := entries(c)[0]

	p.SetPosition(orb.Point{40, 40})
	require.NoError(t, c.Tick())
	es := entries(c)
	require.Len(t, es, 1)
	assert.NotSame(t, first, es[0])
	assert.Equal(t, orb.Point{40, 40}, es[0].Primitive.(*render.Circle).Center)
}

func TestHiddenAndRemovedLayers(t *testing.T) {
	m := newMap()
	a := pointLayer("a", orb.Point{50, 50})
	b := pointLayer("b", orb.Point{40, 40})
	m.AddLayer(a)
	m.AddLayer(b)
	c := New(m, Options{})
	require.NoError(t, c.Tick())
	assert.Len(t, entries(c), 2)

	a.SetDisplayed(false)
	require.NoError(t, c.Tick())
	assert.Len(t, entries(c), 1)

	a.SetDisplayed(true)
	a.SetOpacity(0.5)
	require.NoError(t, c.Tick())
	es := entries(c)
	require.Len(t, es, 2)
	assert.Equal(t, 0.5, es[0].Opacity)

	require.NoError(t, m.RemoveLayer(b))
	assert.Len(t, entries(c), 1, "removed right away")
	require.NoError(t, c.Tick())
	assert.Len(t, entries(c), 1)
}

func TestCRSChangeResets(t *testing.T) {
	m := viewport.New(crs.WGS84, orb.Point{0, 0}, 1000, 100, 100)
	l := layer.NewFeatureLayer("geo", feature.NewPoint(orb.Point{0, 0}, crs.WGS84, symbol.MustNew(symbol.KindPoint)))
	m.AddLayer(l)
	c := New(m, Options{})
	require.NoError(t, c.Tick())
	assert.Len(t, entries(c), 1)

	require.NoError(t, m.SetCRS(crs.WebMercator))
	require.NoError(t, c.Tick())
	assert.Equal(t, []int{2}, ids(c))
	assert.Len(t, entries(c), 1)
	assert.Equal(t, crs.WebMercator, c.Bbox().CRS)
}

func TestAllocationFailureIsFinal(t *testing.T) {
	m := newMap()
	m.AddLayer(pointLayer("points", orb.Point{50, 50}))
	c := New(m, Options{MaxPixels: 100})
	err := c.Tick()
	assert.ErrorIs(t, err, surface.ErrAllocation)
	assert.Empty(t, c.Surfaces())
	assert.ErrorIs(t, c.Tick(), surface.ErrAllocation)
}

func TestRun(t *testing.T) {
	m := newMap()
	m.AddLayer(pointLayer("points", orb.Point{50, 50}))
	c := New(m, Options{})
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	frames := 0
	err := c.Run(ctx, time.Millisecond, func(frame *image.RGBA) {
		frames++
		m.Move(1, 0)
		if frames == 3 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, frames)
	assert.Equal(t, orb.Point{53, 50}, m.Center())
}

func TestClose(t *testing.T) {
	m := newMap()
	l := pointLayer("points", orb.Point{50, 50})
	m.AddLayer(l)
	c := New(m, Options{})
	require.NoError(t, c.Tick())
	c.Close()
	assert.Empty(t, c.Surfaces())

	// no longer subscribed
	require.NoError(t, m.RemoveLayer(l))
	assert.Empty(t, c.states)
}
