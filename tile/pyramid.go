package tile

import (
	"image"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Everpoint/sGis-sub002/bounds"
	"github.com/Everpoint/sGis-sub002/internal/mathhelp"
	"github.com/Everpoint/sGis-sub002/logger"
	"github.com/Everpoint/sGis-sub002/metrics"
	"github.com/Everpoint/sGis-sub002/resource"
)

// Options configures a Pyramid.
type Options struct {
	// URL is a template with {x}, {y} and {z} placeholders.
	URL        string
	CacheSize  int
	Transition time.Duration
	Loader     resource.Loader
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Pyramid resolves views to tiles, caches them and keeps the last complete
// tile set on screen while a new one streams in.
type Pyramid struct {
	scheme     *Scheme
	url        string
	cache      *Cache
	loader     resource.Loader
	transition time.Duration
	now        func() time.Time

	gen      uint64
	retained []*CachedTile
}

func NewPyramid(scheme *Scheme, opts Options) *Pyramid {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Pyramid{
		scheme:     scheme,
		url:        opts.URL,
		cache:      NewCache(opts.CacheSize),
		loader:     opts.Loader,
		transition: opts.Transition,
		now:        opts.Clock,
	}
}

func (p *Pyramid) Scheme() *Scheme { return p.scheme }
func (p *Pyramid) Cache() *Cache   { return p.cache }

// SetScheme replaces the scheme and forgets every cached tile.
func (p *Pyramid) SetScheme(s *Scheme) {
	p.scheme = s
	p.cache.Clear()
	p.retained = nil
}

// TileURL fills the template for k, folding x into [0, IndexCount) on cyclic levels.
func (p *Pyramid) TileURL(k Key) string {
	level := p.scheme.Level(k.Level)
	x := k.X
	if level.IndexCount > 0 {
		x = mathhelp.EuclidianMod(x, level.IndexCount)
	}
	url := strings.Replace(p.url, "{x}", strconv.Itoa(x), -1)
	url = strings.Replace(url, "{y}", strconv.Itoa(k.Y), -1)
	url = strings.Replace(url, "{z}", strconv.Itoa(level.Z), -1)
	return url
}

// Keys lists the tile keys covering bbox at the level chosen for resolution.
func (p *Pyramid) Keys(bbox bounds.Box, resolution float64) []Key {
	i := p.scheme.LevelIndex(resolution)
	if i < 0 {
		return nil
	}
	return p.keysAt(bbox, i)
}

func (p *Pyramid) keysAt(bbox bounds.Box, i int) []Key {
	box, ok := p.scheme.Trim(bbox)
	if !ok {
		return nil
	}
	x0, x1, y0, y1 := p.scheme.Range(box, i)
	keys := make([]Key, 0, (x1-x0)*(y1-y0))
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			keys = append(keys, Key{Level: i, X: x, Y: y})
		}
	}
	return keys
}

// Tiles returns the tiles to draw for the view. While some tile of the new set
// is still loading, the previous complete set is returned beneath it.
func (p *Pyramid) Tiles(bbox bounds.Box, resolution float64) []*CachedTile {
	keys := p.Keys(bbox, resolution)
	current := make([]*CachedTile, 0, len(keys))
	complete := true
	for _, k := range keys {
		t := p.tile(k)
		current = append(current, t)
		if !t.Settled() {
			complete = false
		}
	}
	if complete {
		p.retained = current
		return current
	}

	fresh := make(map[Key]bool, len(current))
	for _, t := range current {
		fresh[t.key] = true
	}
	merged := make([]*CachedTile, 0, len(p.retained)+len(current))
	for _, t := range p.retained {
		if !fresh[t.key] {
			merged = append(merged, t)
		}
	}
	return append(merged, current...)
}

// Animating reports whether a tile of the last complete set is still fading in.
func (p *Pyramid) Animating() bool {
	for _, t := range p.retained {
		if t.State() == Fading {
			return true
		}
	}
	return false
}

// Prefetch requests every tile covering bbox on levels from..to (level
// indices, inclusive). progress, when set, is called after each tile.
// The cache is FIFO, so prefetching more than its capacity evicts the
// earliest tiles again.
func (p *Pyramid) Prefetch(bbox bounds.Box, from, to int, progress func(done, total int)) int {
	if from > to {
		from, to = to, from
	}
	from = max(from, 0)
	to = min(to, len(p.scheme.levels)-1)
	var keys []Key
	for i := from; i <= to; i++ {
		keys = append(keys, p.keysAt(bbox, i)...)
	}
	return p.PrefetchKeys(keys, progress)
}

// PrefetchKeys requests the tiles at keys, in order.
func (p *Pyramid) PrefetchKeys(keys []Key, progress func(done, total int)) int {
	for n, k := range keys {
		p.tile(k)
		if progress != nil {
			progress(n+1, len(keys))
		}
	}
	return len(keys)
}

// tile fetches k from the cache or creates it and starts its load.
func (p *Pyramid) tile(k Key) *CachedTile {
	if t, ok := p.cache.Get(k); ok {
		metrics.TileCacheHits.Inc()
		return t
	}
	metrics.TileCacheMisses.Inc()
	p.gen++
	t := &CachedTile{
		key:   k,
		url:   p.TileURL(k),
		bbox:  p.scheme.Bbox(k),
		gen:   p.gen,
		owner: p,
	}
	for _, old := range p.cache.Add(t) {
		logger.L().WithField("key", old.key).Debug("tile evicted")
	}
	if p.loader == nil {
		t.source = resource.Rejected(t.url, resource.ErrEmpty)
	} else {
		t.source = p.loader.Load(t.url)
	}
	gen := t.gen
	t.source.Then(func(_ image.Image, err error) { p.settle(t, gen, err) })
	logger.L().WithFields(logrus.Fields{"key": k, "url": t.url}).Debug("tile requested")
	return t
}

func (p *Pyramid) settle(t *CachedTile, gen uint64, err error) {
	if cur, ok := p.cache.Get(t.key); !ok || cur != t || cur.gen != gen {
		logger.L().WithField("key", t.key).Debug("stale tile load ignored")
		return
	}
	if err != nil {
		t.failed = true
		metrics.TileLoadFailures.Inc()
		logger.L().WithFields(logrus.Fields{"key": t.key, "url": t.url}).Debugf("tile failed: %v", err)
		return
	}
	t.loaded = true
	t.loadedAt = p.now()
}
