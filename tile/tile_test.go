package tile

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Everpoint/sGis-sub002/bounds"
	"github.com/Everpoint/sGis-sub002/crs"
	"github.com/Everpoint/sGis-sub002/metrics"
	"github.com/Everpoint/sGis-sub002/render"
	"github.com/Everpoint/sGis-sub002/resource"
)

func TestLevelIndex(t *testing.T) {
	s := NewScheme(crs.Plain, orb.Point{}, 256, 256, []Level{
		{Resolution: 40, Z: 0}, {Resolution: 10, Z: 2}, {Resolution: 20, Z: 1},
	})
	assert.Equal(t, []float64{10, 20, 40}, []float64{
		s.Level(0).Resolution, s.Level(1).Resolution, s.Level(2).Resolution,
	})

	tests := []struct {
		resolution float64
		expected   int
	}{
		{1, 0},
		{10, 0},
		{10.000001, 0},
		{11, 1},
		{20, 1},
		{39, 2},
		{40, 2},
		{45, 2},
		{1e9, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, s.LevelIndex(tt.resolution), "resolution %v", tt.resolution)
	}

	prev := 0
	for r := 0.5; r < 100; r += 0.5 {
		i := s.LevelIndex(r)
		assert.GreaterOrEqual(t, i, prev)
		prev = i
	}

	assert.Equal(t, -1, NewScheme(crs.Plain, orb.Point{}, 256, 256, nil).LevelIndex(1))
}

func TestRange(t *testing.T) {
	s := NewScheme(crs.Plain, orb.Point{0, 100}, 10, 10, []Level{{Resolution: 1}})
	x0, x1, y0, y1 := s.Range(bounds.New(orb.Point{5, 55}, orb.Point{25, 95}, crs.Plain), 0)
	assert.Equal(t, []int{0, 3, 0, 5}, []int{x0, x1, y0, y1})
	assert.True(t, s.Bbox(Key{X: 1, Y: 2}).Equals(bounds.New(orb.Point{10, 70}, orb.Point{20, 80}, crs.Plain)))

	s.Origin = orb.Point{0, 0}
	s.ReversedY = true
	x0, x1, y0, y1 = s.Range(bounds.New(orb.Point{5, 5}, orb.Point{25, 25}, crs.Plain), 0)
	assert.Equal(t, []int{0, 3, 0, 3}, []int{x0, x1, y0, y1})
	assert.True(t, s.Bbox(Key{X: 1, Y: 2}).Equals(bounds.New(orb.Point{10, 20}, orb.Point{20, 30}, crs.Plain)))
}

func TestWebMercatorScheme(t *testing.T) {
	s := WebMercatorScheme(ZoomMin, ZoomMax)
	i := s.LevelIndex(156543.03392804097)
	assert.Equal(t, 0, s.Level(i).Z)
	assert.Equal(t, 20, s.Level(s.LevelIndex(0.01)).Z)

	world := bounds.New(orb.Point{-1e7, -1e7}, orb.Point{1e7, 1e7}, crs.WebMercator)
	p := NewPyramid(s, Options{})
	assert.Equal(t, []Key{{Level: i}}, p.Keys(world, 156543.03392804097))

	beyond := bounds.New(orb.Point{-1e7, 3e7}, orb.Point{1e7, 4e7}, crs.WebMercator)
	assert.Empty(t, p.Keys(beyond, 156543.03392804097), "limits trim the poles")

	geo := bounds.New(orb.Point{-10, -10}, orb.Point{10, 10}, crs.WGS84)
	assert.NotEmpty(t, p.Keys(geo, 10000), "boxes are projected into the scheme crs")
	assert.Empty(t, p.Keys(bounds.New(orb.Point{}, orb.Point{1, 1}, crs.Plain), 10000))
}

func newTile(k Key) *CachedTile { return &CachedTile{key: k} }

func TestCacheFIFO(t *testing.T) {
	c := NewCache(3)
	before := testutil.ToFloat64(metrics.TileCacheEvictions)
	for x := 0; x < 3; x++ {
		assert.Empty(t, c.Add(newTile(Key{X: x})))
	}
	_, ok := c.Get(Key{X: 0})
	require.True(t, ok)

	evicted := c.Add(newTile(Key{X: 3}))
	require.Len(t, evicted, 1)
	assert.Equal(t, Key{X: 0}, evicted[0].key, "hits do not promote")
	assert.Equal(t, []Key{{X: 1}, {X: 2}, {X: 3}}, c.Keys())
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.TileCacheEvictions))

	for x := 4; x < 20; x++ {
		c.Add(newTile(Key{X: x}))
		assert.LessOrEqual(t, c.Len(), c.Capacity())
	}
	assert.Equal(t, []Key{{X: 17}, {X: 18}, {X: 19}}, c.Keys())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 1, NewCache(0).Capacity())
}

func TestTileURLFoldsX(t *testing.T) {
	s := NewScheme(crs.Plain, orb.Point{}, 256, 256, []Level{{Resolution: 1, Z: 2, IndexCount: 4}})
	p := NewPyramid(s, Options{URL: "http://tiles/{z}/{x}/{y}.png"})
	assert.Equal(t, "http://tiles/2/3/1.png", p.TileURL(Key{X: -1, Y: 1}))
	assert.Equal(t, "http://tiles/2/0/1.png", p.TileURL(Key{X: 4, Y: 1}))
	assert.Equal(t, "http://tiles/2/2/1.png", p.TileURL(Key{X: 2, Y: 1}))

	m := resource.NewManual()
	p = NewPyramid(s, Options{URL: "{z}/{x}/{y}", Loader: m, CacheSize: 10})
	box := bounds.New(orb.Point{-256, -256}, orb.Point{0, 0}, crs.Plain)
	tiles := p.Tiles(box, 1)
	require.Len(t, tiles, 1)
	assert.Equal(t, Key{X: -1, Y: 0}, tiles[0].Key(), "cache key keeps the raw index")
	assert.Equal(t, "2/3/0", tiles[0].URL())
}

// plainPyramid has one level of 256 unit tiles with the origin at (0, 256).
func plainPyramid(loader resource.Loader, size int) *Pyramid {
	s := NewScheme(crs.Plain, orb.Point{0, 256}, 256, 256, []Level{{Resolution: 1}, {Resolution: 2, Z: 1}})
	return NewPyramid(s, Options{URL: "{z}/{x}/{y}", Loader: loader, CacheSize: size})
}

func keys(tiles []*CachedTile) []Key {
	out := make([]Key, len(tiles))
	for i, t := range tiles {
		out[i] = t.key
	}
	return out
}

func TestTilesKeepPreviousSetUntilComplete(t *testing.T) {
	m := resource.NewManual()
	p := plainPyramid(m, 16)
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))

	a := bounds.New(orb.Point{0, 0}, orb.Point{512, 256}, crs.Plain)
	assert.Equal(t, []Key{{X: 0}, {X: 1}}, keys(p.Tiles(a, 1)))
	m.Resolve("0/0/0", img)
	m.Resolve("0/1/0", img)
	m.Dispatch()
	assert.Equal(t, []Key{{X: 0}, {X: 1}}, keys(p.Tiles(a, 1)))

	b := bounds.New(orb.Point{256, 0}, orb.Point{768, 256}, crs.Plain)
	got := p.Tiles(b, 1)
	assert.Equal(t, []Key{{X: 0}, {X: 1}, {X: 2}}, keys(got), "old tiles stay beneath while x=2 loads")
	assert.Equal(t, Requested, got[2].State())

	m.Fail("0/2/0", errors.New("404"))
	m.Dispatch()
	got = p.Tiles(b, 1)
	assert.Equal(t, []Key{{X: 1}, {X: 2}}, keys(got), "a failed tile does not block completeness")
	assert.Equal(t, Error, got[1].State())
	assert.Nil(t, got[1].Renders(1, crs.Plain))

	// a new level replaces the retained set only when it is complete
	got = p.Tiles(b, 2)
	assert.Equal(t, []Key{{X: 1}, {X: 2}, {Level: 1, X: 0}, {Level: 1, X: 1}}, keys(got))
	assert.Equal(t, 1, m.Pending("1/0/0"))
}

func TestStaleLoadIsIgnored(t *testing.T) {
	m := resource.NewManual()
	p := plainPyramid(m, 1)
	first := p.Tiles(bounds.New(orb.Point{10, 10}, orb.Point{20, 20}, crs.Plain), 1)[0]
	p.Tiles(bounds.New(orb.Point{300, 10}, orb.Point{310, 20}, crs.Plain), 1)
	_, ok := p.Cache().Get(first.Key())
	assert.False(t, ok, "evicted")

	m.Resolve("0/0/0", image.NewRGBA(image.Rect(0, 0, 1, 1)))
	m.Dispatch()
	assert.Equal(t, Requested, first.State())

	again := p.Tiles(bounds.New(orb.Point{10, 10}, orb.Point{20, 20}, crs.Plain), 1)
	require.Len(t, again, 1)
	assert.NotSame(t, first, again[0])
	assert.Greater(t, again[0].Generation(), first.Generation())
}

func TestFadeTransition(t *testing.T) {
	now := time.Unix(100, 0)
	m := resource.NewManual()
	s := NewScheme(crs.Plain, orb.Point{0, 256}, 256, 256, []Level{{Resolution: 1}})
	p := NewPyramid(s, Options{URL: "{x}", Loader: m, CacheSize: 4, Transition: 100 * time.Millisecond, Clock: func() time.Time { return now }})

	tl := p.Tiles(bounds.New(orb.Point{10, 10}, orb.Point{20, 20}, crs.Plain), 1)[0]
	assert.Equal(t, Requested, tl.State())
	assert.Equal(t, uint64(0), tl.Revision())
	prims := tl.Renders(1, crs.Plain)
	require.Len(t, prims, 1)
	assert.Equal(t, 0.0, prims[0].(*render.Image).Opacity)

	m.Resolve("0", image.NewRGBA(image.Rect(0, 0, 1, 1)))
	m.Dispatch()
	assert.Equal(t, Fading, tl.State())
	assert.Equal(t, uint64(2), tl.Revision())

	now = now.Add(50 * time.Millisecond)
	assert.InDelta(t, 0.5, tl.Opacity(), 1e-9)
	assert.Equal(t, uint64(6), tl.Revision())
	p.Tiles(bounds.New(orb.Point{10, 10}, orb.Point{20, 20}, crs.Plain), 1)
	assert.True(t, p.Animating())

	now = now.Add(100 * time.Millisecond)
	assert.Equal(t, Complete, tl.State())
	assert.Equal(t, uint64(10), tl.Revision())
	assert.Equal(t, 1.0, tl.Renders(1, crs.Plain)[0].(*render.Image).Opacity)
	assert.False(t, p.Animating())
}

func TestPrefetch(t *testing.T) {
	m := resource.NewManual()
	p := plainPyramid(m, 16)
	var calls []int
	n := p.Prefetch(bounds.New(orb.Point{0, -256}, orb.Point{512, 256}, crs.Plain), 1, 0, func(done, total int) {
		assert.Equal(t, 5, total)
		calls = append(calls, done)
	})
	assert.Equal(t, 5, n)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, calls)
	assert.Equal(t, 5, p.Cache().Len())
	assert.Len(t, m.Requests(), 5)
}

func TestWithoutLoaderTilesFail(t *testing.T) {
	p := plainPyramid(nil, 4)
	tiles := p.Tiles(bounds.New(orb.Point{10, 10}, orb.Point{20, 20}, crs.Plain), 1)
	require.Len(t, tiles, 1)
	assert.Equal(t, Error, tiles[0].State())
}

func TestCover(t *testing.T) {
	s := WebMercatorScheme(0, 3)
	require.Equal(t, 2, s.ZoomIndex(1))
	assert.Equal(t, -1, s.ZoomIndex(5))

	got, err := s.Cover(orb.Point{10, 10}, 1)
	require.NoError(t, err)
	assert.Equal(t, []Key{{Level: 2, X: 1, Y: 0}}, got)

	got, err = s.Cover(orb.Bound{Min: orb.Point{-10, -10}, Max: orb.Point{10, 10}}, 1)
	require.NoError(t, err)
	assert.Equal(t, []Key{{2, 0, 0}, {2, 1, 0}, {2, 0, 1}, {2, 1, 1}}, got)

	m := resource.NewManual()
	p := NewPyramid(s, Options{URL: "{z}/{x}/{y}", Loader: m, CacheSize: 8})
	assert.Equal(t, 4, p.PrefetchKeys(got, nil))
	assert.Equal(t, []string{"1/0/0", "1/1/0", "1/0/1", "1/1/1"}, m.Requests())

	_, err = s.Cover(orb.Point{}, 5)
	assert.ErrorIs(t, err, ErrNoLevel)
	_, err = plainPyramid(nil, 1).Scheme().Cover(orb.Point{}, 0)
	assert.ErrorIs(t, err, ErrNotWebMercator)
}
