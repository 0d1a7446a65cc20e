package main

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/Everpoint/sGis-sub002/config"
	"github.com/Everpoint/sGis-sub002/crs"
	"github.com/Everpoint/sGis-sub002/feature"
	"github.com/Everpoint/sGis-sub002/layer"
	"github.com/Everpoint/sGis-sub002/resource"
	"github.com/Everpoint/sGis-sub002/symbol"
	"github.com/Everpoint/sGis-sub002/tile"
	"github.com/Everpoint/sGis-sub002/viewport"
)

// buildMap creates the map and its layers, tiles at the bottom, then images,
// features and clusters.
func buildMap(cfg *config.Config, loader resource.Loader) (*viewport.Map, error) {
	vc := cfg.Viewport
	c, ok := crs.Lookup(vc.CRS)
	if !ok {
		return nil, fmt.Errorf("unknown crs %q", vc.CRS)
	}
	cc, ok := crs.Lookup(vc.CenterCRS)
	if !ok {
		return nil, fmt.Errorf("unknown crs %q", vc.CenterCRS)
	}
	center, ok := cc.Project(orb.Point(vc.Center), c)
	if !ok {
		return nil, fmt.Errorf("center: %w", crs.ErrNoProjection)
	}
	m := viewport.New(c, center, vc.Resolution, vc.Width, vc.Height)
	if vc.MinResolution > 0 || vc.MaxResolution > 0 {
		m.SetResolutionLimits(layer.Limits{Min: vc.MinResolution, Max: vc.MaxResolution})
	}

	for _, l := range buildTiles(cfg, loader) {
		m.AddLayer(l)
	}
	for _, ic := range cfg.Images {
		var target *crs.CRS
		if ic.CRS != "" {
			target, _ = crs.Lookup(ic.CRS)
		}
		l := layer.NewImageLayer(ic.Name, target, layer.TemplateURL(ic.URL), loader)
		l.SetOpacity(ic.Opacity)
		m.AddLayer(l)
	}
	for _, fc := range cfg.Features {
		l, err := featureLayer(fc)
		if err != nil {
			return nil, err
		}
		m.AddLayer(l)
	}
	for _, cl := range cfg.Clusters {
		l, err := clusterLayer(cl, c)
		if err != nil {
			return nil, err
		}
		m.AddLayer(l)
	}
	return m, nil
}

func buildTiles(cfg *config.Config, loader resource.Loader) []*layer.TileLayer {
	out := make([]*layer.TileLayer, 0, len(cfg.Tiles))
	for _, tc := range cfg.Tiles {
		p := tile.NewPyramid(tile.WebMercatorScheme(tc.MinZ, tc.MaxZ), tile.Options{
			URL:        tc.URL,
			CacheSize:  tc.CacheSize,
			Transition: tc.Transition,
			Loader:     loader,
		})
		l := layer.NewTileLayer(tc.Name, p)
		l.SetOpacity(tc.Opacity)
		out = append(out, l)
	}
	return out
}

func loadCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read file: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("unable to unmarshal %s: %w", path, err)
	}
	return fc, nil
}

// symbolOr decodes desc, or returns the default symbol of k for an empty description.
func symbolOr(desc map[string]any, k symbol.Kind) (feature.Symbol, error) {
	if len(desc) == 0 {
		return symbol.New(k)
	}
	return symbol.Decode(desc)
}

type styles struct {
	point, line, polygon, label feature.Symbol
	labelProp                   string
}

func featureLayer(fc config.Features) (*layer.FeatureLayer, error) {
	collection, err := loadCollection(fc.GeoJSON)
	if err != nil {
		return nil, err
	}
	var st styles
	if st.point, err = symbolOr(fc.Point, symbol.KindPoint); err != nil {
		return nil, err
	}
	if st.line, err = symbolOr(fc.Line, symbol.KindPolyline); err != nil {
		return nil, err
	}
	if st.polygon, err = symbolOr(fc.Polygon, symbol.KindPolygon); err != nil {
		return nil, err
	}
	st.label, st.labelProp = symbol.MustNew(symbol.KindLabel), fc.Label

	l := layer.NewFeatureLayer(fc.Name)
	for _, f := range collection.Features {
		text := ""
		if st.labelProp != "" {
			text = f.Properties.MustString(st.labelProp, "")
		}
		l.Add(toFeatures(f.Geometry, text, st)...)
	}
	return l, nil
}

// toFeatures converts a WGS84 geometry. Points carry a label when text is set.
func toFeatures(g orb.Geometry, text string, st styles) []feature.Feature {
	switch g := g.(type) {
	case orb.Point:
		out := []feature.Feature{feature.NewPoint(g, crs.WGS84, st.point)}
		if text != "" {
			out = append(out, feature.NewLabel(g, text, crs.WGS84, st.label))
		}
		return out
	case orb.MultiPoint:
		var out []feature.Feature
		for _, p := range g {
			out = append(out, toFeatures(p, text, st)...)
		}
		return out
	case orb.LineString:
		return []feature.Feature{feature.NewPolyline([][]orb.Point{g}, crs.WGS84, st.line)}
	case orb.MultiLineString:
		rings := make([][]orb.Point, len(g))
		for i, ls := range g {
			rings[i] = ls
		}
		return []feature.Feature{feature.NewPolyline(rings, crs.WGS84, st.line)}
	case orb.Polygon:
		rings := make([][]orb.Point, len(g))
		for i, r := range g {
			rings[i] = r
		}
		return []feature.Feature{feature.NewPolygon(rings, crs.WGS84, st.polygon)}
	case orb.MultiPolygon:
		var out []feature.Feature
		for _, p := range g {
			out = append(out, toFeatures(p, text, st)...)
		}
		return out
	case orb.Collection:
		var out []feature.Feature
		for _, c := range g {
			out = append(out, toFeatures(c, text, st)...)
		}
		return out
	}
	return nil
}

func clusterLayer(cc config.Clusters, c *crs.CRS) (*layer.ClusterLayer, error) {
	collection, err := loadCollection(cc.GeoJSON)
	if err != nil {
		return nil, err
	}
	point, err := symbolOr(cc.Point, symbol.KindPoint)
	if err != nil {
		return nil, err
	}
	l := layer.NewClusterLayer(cc.Name, cc.Distance, c)
	if len(cc.Symbol) > 0 {
		s, err := symbol.Decode(cc.Symbol)
		if err != nil {
			return nil, err
		}
		l.SetSymbol(s)
	}
	var points []feature.Positioned
	for _, f := range collection.Features {
		for _, ff := range toFeatures(f.Geometry, "", styles{point: point}) {
			if p, ok := ff.(*feature.Point); ok {
				points = append(points, p)
			}
		}
	}
	l.Add(points...)
	return l, nil
}

// regions merges the geometries of a GeoJSON file.
func regions(path string) (orb.Collection, error) {
	fc, err := loadCollection(path)
	if err != nil {
		return nil, err
	}
	var collection orb.Collection
	for _, f := range fc.Features {
		collection = append(collection, f.Geometry)
	}
	return collection, nil
}
