package tile

import (
	"time"

	"github.com/Everpoint/sGis-sub002/bounds"
	"github.com/Everpoint/sGis-sub002/crs"
	"github.com/Everpoint/sGis-sub002/internal/mathhelp"
	"github.com/Everpoint/sGis-sub002/render"
	"github.com/Everpoint/sGis-sub002/resource"
)

// State of a cached tile.
type State int

const (
	// Requested tiles wait for their image and draw transparent.
	Requested State = iota
	// Fading tiles have their image and ramp opacity up over the transition.
	Fading
	// Complete tiles are fully opaque.
	Complete
	// Error is terminal for the cache entry.
	Error
)

func (s State) String() string {
	switch s {
	case Requested:
		return "requested"
	case Fading:
		return "fading"
	case Complete:
		return "complete"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// fadeSteps is how many distinct revisions a tile goes through while fading in.
const fadeSteps = 8

// CachedTile is a tile owned by a Pyramid cache. It is drawable as a feature.
type CachedTile struct {
	key    Key
	url    string
	bbox   bounds.Box
	gen    uint64
	source *resource.Future

	loaded   bool
	failed   bool
	loadedAt time.Time

	owner *Pyramid
}

func (t *CachedTile) Key() Key                 { return t.key }
func (t *CachedTile) URL() string              { return t.url }
func (t *CachedTile) Source() *resource.Future { return t.source }
func (t *CachedTile) CRS() *crs.CRS            { return t.bbox.CRS }
func (t *CachedTile) Bbox() bounds.Box         { return t.bbox }
func (t *CachedTile) Generation() uint64       { return t.gen }

// Settled reports whether the tile no longer blocks completeness: it is ready or failed.
func (t *CachedTile) Settled() bool {
	return t.loaded || t.failed
}

func (t *CachedTile) State() State {
	switch {
	case t.failed:
		return Error
	case !t.loaded:
		return Requested
	case t.Opacity() < 1:
		return Fading
	default:
		return Complete
	}
}

// Opacity ramps linearly from 0 to 1 over the transition once the image arrived.
func (t *CachedTile) Opacity() float64 {
	if !t.loaded {
		return 0
	}
	d := t.owner.transition
	if d <= 0 {
		return 1
	}
	return mathhelp.Clamp(float64(t.owner.now().Sub(t.loadedAt))/float64(d), 0, 1)
}

// Revision moves when the image arrives, when the load fails and once per
// opacity step while fading.
func (t *CachedTile) Revision() uint64 {
	switch {
	case t.failed:
		return 1
	case !t.loaded:
		return 0
	default:
		return 2 + uint64(t.Opacity()*fadeSteps)
	}
}

// Renders draws the tile image over its bbox. Failed tiles draw nothing.
func (t *CachedTile) Renders(_ float64, target *crs.CRS) []render.Primitive {
	if t.failed {
		return nil
	}
	box, ok := t.bbox.Project(target)
	if !ok {
		return nil
	}
	return []render.Primitive{&render.Image{Box: box, Source: t.source, Opacity: t.Opacity()}}
}
