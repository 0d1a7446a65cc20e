package tile

import (
	"errors"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/maptile/tilecover"

	"github.com/Everpoint/sGis-sub002/crs"
)

var (
	ErrNoLevel        = errors.New("no level for zoom")
	ErrNotWebMercator = errors.New("scheme is not web mercator z/x/y")
)

// ZoomIndex returns the index of the level tagged z, or -1.
func (s *Scheme) ZoomIndex(z int) int {
	for i, l := range s.levels {
		if l.Z == z {
			return i
		}
	}
	return -1
}

// Cover lists the keys of the tiles at zoom z touching g, a WGS84 geometry.
// Only web mercator z/x/y schemes can be covered this way.
func (s *Scheme) Cover(g orb.Geometry, z int) ([]Key, error) {
	if !s.CRS.Equals(crs.WebMercator) || s.ReversedY {
		return nil, ErrNotWebMercator
	}
	i := s.ZoomIndex(z)
	if i < 0 {
		return nil, fmt.Errorf("%w %d", ErrNoLevel, z)
	}
	set, err := tilecover.Geometry(g, maptile.Zoom(z))
	if err != nil {
		return nil, fmt.Errorf("cover zoom %d: %w", z, err)
	}
	keys := make([]Key, 0, len(set))
	for t := range set {
		keys = append(keys, Key{Level: i, X: int(t.X), Y: int(t.Y)})
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].Y != keys[b].Y {
			return keys[a].Y < keys[b].Y
		}
		return keys[a].X < keys[b].X
	})
	return keys, nil
}
