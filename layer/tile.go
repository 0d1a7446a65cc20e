package layer

import (
	"github.com/Everpoint/sGis-sub002/bounds"
	"github.com/Everpoint/sGis-sub002/feature"
	"github.com/Everpoint/sGis-sub002/render"
	"github.com/Everpoint/sGis-sub002/tile"
)

// TileLayer shows a tile pyramid.
type TileLayer struct {
	Base
	pyramid *tile.Pyramid
}

func NewTileLayer(name string, p *tile.Pyramid) *TileLayer {
	return &TileLayer{Base: newBase(name), pyramid: p}
}

func (l *TileLayer) Pyramid() *tile.Pyramid { return l.pyramid }

// Tiles returns the tiles to draw, the retained ones first.
func (l *TileLayer) Tiles(bbox bounds.Box, resolution float64) []*tile.CachedTile {
	if !l.IsDisplayed(resolution) {
		return nil
	}
	return l.pyramid.Tiles(bbox, resolution)
}

func (l *TileLayer) Features(bbox bounds.Box, resolution float64) []feature.Feature {
	tiles := l.Tiles(bbox, resolution)
	out := make([]feature.Feature, len(tiles))
	for i, t := range tiles {
		out[i] = t
	}
	return out
}

func (l *TileLayer) Renders(bbox bounds.Box, resolution float64) []render.Primitive {
	return flatten(l.Tiles(bbox, resolution), bbox, resolution)
}
