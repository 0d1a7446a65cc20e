// Package tile selects, caches and tracks the raster tiles covering a view.
package tile

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/Everpoint/sGis-sub002/bounds"
	"github.com/Everpoint/sGis-sub002/crs"
)

// TileSize default tile edge in pixels
const TileSize = 256

// ZoomMin lowest level of the default scheme
const ZoomMin = 0

// ZoomMax highest level of the default scheme
const ZoomMax = 20

// levelTolerance absorbs floating point noise in configured resolutions.
const levelTolerance = 1e-6

const webMercatorHalf = 20037508.342789244

// Level is one discrete zoom level. IndexCount > 0 makes the x axis cyclic.
type Level struct {
	Resolution float64 `mapstructure:"resolution" validate:"gt=0"`
	Z          int     `mapstructure:"z"`
	IndexCount int     `mapstructure:"indexCount" validate:"gte=0"`
}

// Key addresses a tile: level index in the scheme and raw, unfolded indices.
type Key struct {
	Level, X, Y int
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d/%d", k.Level, k.X, k.Y)
}

// Scheme describes the tiling geometry of a source.
type Scheme struct {
	CRS        *crs.CRS
	Origin     orb.Point
	TileWidth  int
	TileHeight int
	// ReversedY means tile rows grow with northing from a bottom-left origin.
	ReversedY bool
	// Limits trims requested boxes; nil means unlimited.
	Limits *orb.Bound

	levels []Level
}

// NewScheme creates a scheme with the given levels sorted by resolution.
func NewScheme(c *crs.CRS, origin orb.Point, tileWidth, tileHeight int, levels []Level) *Scheme {
	s := &Scheme{CRS: c, Origin: origin, TileWidth: tileWidth, TileHeight: tileHeight}
	s.SetLevels(levels)
	return s
}

// WebMercatorScheme is the usual z/x/y scheme of OSM-like services for zooms minZ..maxZ.
func WebMercatorScheme(minZ, maxZ int) *Scheme {
	levels := make([]Level, 0, maxZ-minZ+1)
	for z := minZ; z <= maxZ; z++ {
		n := 1 << z
		levels = append(levels, Level{
			Resolution: 2 * webMercatorHalf / TileSize / float64(n),
			Z:          z,
			IndexCount: n,
		})
	}
	s := NewScheme(crs.WebMercator, orb.Point{-webMercatorHalf, webMercatorHalf}, TileSize, TileSize, levels)
	s.Limits = &orb.Bound{
		Min: orb.Point{math.Inf(-1), -webMercatorHalf},
		Max: orb.Point{math.Inf(1), webMercatorHalf},
	}
	return s
}

// Levels returns a copy of the levels, finest first.
func (s *Scheme) Levels() []Level {
	return append([]Level(nil), s.levels...)
}

// SetLevels replaces the levels, keeping them sorted ascending by resolution.
func (s *Scheme) SetLevels(levels []Level) {
	s.levels = append([]Level(nil), levels...)
	sort.SliceStable(s.levels, func(i, j int) bool {
		return s.levels[i].Resolution < s.levels[j].Resolution
	})
}

// Level returns the level at index i.
func (s *Scheme) Level(i int) Level {
	return s.levels[i]
}

// LevelIndex returns the index of the level with the smallest resolution not
// below resolution, or the last level when resolution is coarser than all of
// them. It returns -1 for a scheme without levels.
func (s *Scheme) LevelIndex(resolution float64) int {
	if len(s.levels) == 0 {
		return -1
	}
	for i, l := range s.levels {
		if l.Resolution >= resolution*(1-levelTolerance) {
			return i
		}
	}
	return len(s.levels) - 1
}

// Trim clips box to the scheme limits. ok is false when nothing is left.
func (s *Scheme) Trim(box bounds.Box) (bounds.Box, bool) {
	projected, ok := box.Project(s.CRS)
	if !ok {
		return bounds.Box{}, false
	}
	if s.Limits == nil {
		return projected, true
	}
	return projected.Intersection(bounds.FromBound(*s.Limits, s.CRS))
}

// Range returns the half-open index rectangle [x0, x1) x [y0, y1) covering box
// at level i. box must already be in the scheme crs.
func (s *Scheme) Range(box bounds.Box, i int) (x0, x1, y0, y1 int) {
	w, h := s.tileSpan(i)
	x0 = int(math.Floor((box.Min[0] - s.Origin[0]) / w))
	x1 = int(math.Ceil((box.Max[0] - s.Origin[0]) / w))
	if s.ReversedY {
		y0 = int(math.Floor((box.Min[1] - s.Origin[1]) / h))
		y1 = int(math.Ceil((box.Max[1] - s.Origin[1]) / h))
	} else {
		y0 = int(math.Floor((s.Origin[1] - box.Max[1]) / h))
		y1 = int(math.Ceil((s.Origin[1] - box.Min[1]) / h))
	}
	return
}

// Bbox returns the area covered by the tile at k.
func (s *Scheme) Bbox(k Key) bounds.Box {
	w, h := s.tileSpan(k.Level)
	minX := s.Origin[0] + float64(k.X)*w
	var minY float64
	if s.ReversedY {
		minY = s.Origin[1] + float64(k.Y)*h
	} else {
		minY = s.Origin[1] - float64(k.Y+1)*h
	}
	return bounds.New(orb.Point{minX, minY}, orb.Point{minX + w, minY + h}, s.CRS)
}

func (s *Scheme) tileSpan(i int) (w, h float64) {
	res := s.levels[i].Resolution
	return float64(s.TileWidth) * res, float64(s.TileHeight) * res
}
