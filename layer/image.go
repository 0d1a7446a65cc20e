package layer

import (
	"math"
	"strconv"
	"strings"

	"github.com/Everpoint/sGis-sub002/bounds"
	"github.com/Everpoint/sGis-sub002/crs"
	"github.com/Everpoint/sGis-sub002/feature"
	"github.com/Everpoint/sGis-sub002/internal/mathhelp"
	"github.com/Everpoint/sGis-sub002/render"
	"github.com/Everpoint/sGis-sub002/resource"
	"github.com/Everpoint/sGis-sub002/symbol"
)

// URLBuilder addresses the image covering bbox at width x height pixels.
type URLBuilder func(bbox bounds.Box, width, height int) string

// TemplateURL fills {minx}, {miny}, {maxx}, {maxy}, {width}, {height} and {crs}.
func TemplateURL(template string) URLBuilder {
	return func(bbox bounds.Box, width, height int) string {
		f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
		return strings.NewReplacer(
			"{minx}", f(bbox.Min[0]),
			"{miny}", f(bbox.Min[1]),
			"{maxx}", f(bbox.Max[0]),
			"{maxy}", f(bbox.Max[1]),
			"{width}", strconv.Itoa(width),
			"{height}", strconv.Itoa(height),
			"{crs}", bbox.CRS.ID(),
		).Replace(template)
	}
}

// ImageLayer asks a server for one image of the whole view. Every new view
// yields a new feature; the compositor keeps the old one on screen until the
// new image settles.
type ImageLayer struct {
	Base
	crs    *crs.CRS
	url    URLBuilder
	loader resource.Loader
	symbol feature.Symbol

	bbox       bounds.Box
	resolution float64
	current    *feature.StaticImage
}

// NewImageLayer requests images in c, or in the view crs when c is nil.
func NewImageLayer(name string, c *crs.CRS, url URLBuilder, loader resource.Loader) *ImageLayer {
	return &ImageLayer{
		Base:   newBase(name),
		crs:    c,
		url:    url,
		loader: loader,
		symbol: symbol.MustNew(symbol.KindImage),
	}
}

// Current is the image of the last requested view, or nil.
func (l *ImageLayer) Current() *feature.StaticImage { return l.current }

func (l *ImageLayer) Features(bbox bounds.Box, resolution float64) []feature.Feature {
	if !l.IsDisplayed(resolution) || l.loader == nil {
		return nil
	}
	w := int(math.Round(bbox.Width() / resolution))
	h := int(math.Round(bbox.Height() / resolution))
	if w <= 0 || h <= 0 {
		return nil
	}
	if l.crs != nil {
		var ok bool
		if bbox, ok = bbox.Project(l.crs); !ok {
			return nil
		}
	}
	if l.current == nil || !l.bbox.Equals(bbox) || !mathhelp.Equal(l.resolution, resolution, mathhelp.Tolerance) {
		l.bbox, l.resolution = bbox, resolution
		l.current = feature.NewStaticImage(bbox, l.loader.Load(l.url(bbox, w, h)), l.symbol)
	}
	return []feature.Feature{l.current}
}

func (l *ImageLayer) Renders(bbox bounds.Box, resolution float64) []render.Primitive {
	return flatten(l.Features(bbox, resolution), bbox, resolution)
}
