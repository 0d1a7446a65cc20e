package layer

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/sirupsen/logrus"

	"github.com/Everpoint/sGis-sub002/bounds"
	"github.com/Everpoint/sGis-sub002/crs"
	"github.com/Everpoint/sGis-sub002/feature"
	"github.com/Everpoint/sGis-sub002/logger"
	"github.com/Everpoint/sGis-sub002/render"
)

// FeatureLayer holds a plain list of features. Queries go through an r-tree
// per requested crs, rebuilt after the list or any feature revision changes.
type FeatureLayer struct {
	Base
	features []feature.Feature
	set      map[feature.Feature]struct{}
	trees    map[*crs.CRS]*index
}

type index struct {
	tree      *rtreego.Rtree
	signature uint64
}

type indexed struct {
	seq  int
	f    feature.Feature
	rect rtreego.Rect
}

func (i *indexed) Bounds() rtreego.Rect { return i.rect }

func NewFeatureLayer(name string, fs ...feature.Feature) *FeatureLayer {
	l := &FeatureLayer{Base: newBase(name), set: make(map[feature.Feature]struct{})}
	l.add(fs)
	return l
}

func (l *FeatureLayer) Len() int { return len(l.features) }

// All returns every feature in insertion order.
func (l *FeatureLayer) All() []feature.Feature {
	return append([]feature.Feature(nil), l.features...)
}

func (l *FeatureLayer) Has(f feature.Feature) bool {
	_, ok := l.set[f]
	return ok
}

// Add appends features not already held.
func (l *FeatureLayer) Add(fs ...feature.Feature) {
	if l.add(fs) {
		l.changed()
	}
}

func (l *FeatureLayer) add(fs []feature.Feature) bool {
	added := false
	for _, f := range fs {
		if _, ok := l.set[f]; ok {
			continue
		}
		l.set[f] = struct{}{}
		l.features = append(l.features, f)
		added = true
	}
	if added {
		l.trees = nil
	}
	return added
}

func (l *FeatureLayer) Remove(fs ...feature.Feature) {
	removed := false
	for _, f := range fs {
		if _, ok := l.set[f]; ok {
			delete(l.set, f)
			removed = true
		}
	}
	if !removed {
		return
	}
	kept := l.features[:0]
	for _, f := range l.features {
		if _, ok := l.set[f]; ok {
			kept = append(kept, f)
		}
	}
	clear(l.features[len(kept):])
	l.features = kept
	l.trees = nil
	l.changed()
}

func (l *FeatureLayer) Clear() {
	l.features = nil
	l.set = make(map[feature.Feature]struct{})
	l.trees = nil
	l.changed()
}

func (l *FeatureLayer) Features(bbox bounds.Box, resolution float64) []feature.Feature {
	if !l.IsDisplayed(resolution) || len(l.features) == 0 {
		return nil
	}
	ix := l.index(bbox.CRS)
	if ix.tree.Size() == 0 {
		return nil
	}
	found := ix.tree.SearchIntersect(rect(bbox.Min, bbox.Max))
	sort.Slice(found, func(i, j int) bool { return found[i].(*indexed).seq < found[j].(*indexed).seq })
	out := make([]feature.Feature, len(found))
	for i, s := range found {
		out[i] = s.(*indexed).f
	}
	return out
}

func (l *FeatureLayer) Renders(bbox bounds.Box, resolution float64) []render.Primitive {
	return flatten(l.Features(bbox, resolution), bbox, resolution)
}

func (l *FeatureLayer) signature() uint64 {
	var sum uint64
	for _, f := range l.features {
		if r, ok := f.(feature.Revisioned); ok {
			sum += r.Revision()
		}
	}
	return sum
}

func (l *FeatureLayer) index(c *crs.CRS) *index {
	sig := l.signature()
	if ix, ok := l.trees[c]; ok && ix.signature == sig {
		return ix
	}
	tree := rtreego.NewTree(2, 25, 50)
	for i, f := range l.features {
		box, ok := f.Bbox().Project(c)
		if !ok {
			logger.L().WithFields(logrus.Fields{"layer": l.name, "from": f.CRS(), "to": c}).Debug("feature not indexed")
			continue
		}
		tree.Insert(&indexed{seq: i, f: f, rect: rect(box.Min, box.Max)})
	}
	if l.trees == nil {
		l.trees = make(map[*crs.CRS]*index)
	}
	ix := &index{tree: tree, signature: sig}
	l.trees[c] = ix
	return ix
}

// rect widens degenerate sides since the tree rejects zero lengths.
func rect(lo, hi [2]float64) rtreego.Rect {
	lengths := []float64{side(lo[0], hi[0]), side(lo[1], hi[1])}
	r, _ := rtreego.NewRect(rtreego.Point{lo[0], lo[1]}, lengths)
	return r
}

func side(lo, hi float64) float64 {
	return math.Max(hi-lo, 1e-9*math.Max(1, math.Abs(lo)))
}
