package layer

import (
	"github.com/paulmach/orb"

	"github.com/Everpoint/sGis-sub002/bounds"
	"github.com/Everpoint/sGis-sub002/cluster"
	"github.com/Everpoint/sGis-sub002/crs"
	"github.com/Everpoint/sGis-sub002/feature"
	"github.com/Everpoint/sGis-sub002/internal/mathhelp"
	"github.com/Everpoint/sGis-sub002/render"
	"github.com/Everpoint/sGis-sub002/symbol"
)

// Aggregate is a cluster of more than one feature, drawn with the layer's
// cluster symbol.
type Aggregate struct {
	*cluster.Cluster
	symbol feature.Symbol
}

func (a *Aggregate) Position() orb.Point { return a.Centroid() }

func (a *Aggregate) Renders(resolution float64, target *crs.CRS) []render.Primitive {
	return a.symbol.Render(a, resolution, target)
}

// aggregateKey identifies a cluster across runs well enough to keep drawn
// aggregates when nothing moved.
type aggregateKey struct {
	first    feature.Positioned
	count    int
	centroid orb.Point
}

// ClusterLayer groups point features. Clusters of one feature come back as the
// feature itself.
type ClusterLayer struct {
	Base
	index  *cluster.Index
	symbol feature.Symbol

	revision   uint64
	memoRev    uint64
	memoBox    bounds.Box
	memoRes    float64
	memo       []feature.Feature
	aggregates map[aggregateKey]*Aggregate
}

// NewClusterLayer clusters features closer than distance pixels in c.
func NewClusterLayer(name string, distance float64, c *crs.CRS) *ClusterLayer {
	return &ClusterLayer{
		Base:   newBase(name),
		index:  cluster.New(distance, c),
		symbol: symbol.MustNew(symbol.KindCluster),
	}
}

func (l *ClusterLayer) Index() *cluster.Index { return l.index }

func (l *ClusterLayer) SetSymbol(s feature.Symbol) {
	l.symbol = s
	l.aggregates = nil
	l.touch()
}

func (l *ClusterLayer) SetDistance(d float64) {
	l.index.SetDistance(d)
	l.touch()
}

func (l *ClusterLayer) Add(fs ...feature.Positioned) {
	l.index.Add(fs...)
	l.touch()
}

func (l *ClusterLayer) Remove(fs ...feature.Positioned) {
	l.index.Remove(fs...)
	l.touch()
}

func (l *ClusterLayer) Has(f feature.Positioned) bool { return l.index.Has(f) }

func (l *ClusterLayer) touch() {
	l.revision++
	l.changed()
}

func (l *ClusterLayer) Features(bbox bounds.Box, resolution float64) []feature.Feature {
	if !l.IsDisplayed(resolution) {
		return nil
	}
	if l.memo != nil && l.memoRev == l.revision && l.memoBox.Equals(bbox) &&
		mathhelp.Equal(l.memoRes, resolution, mathhelp.Tolerance) {
		return l.memo
	}
	clusters := l.index.ClustersIn(bbox, resolution)
	out := make([]feature.Feature, 0, len(clusters))
	seen := make(map[aggregateKey]*Aggregate, len(clusters))
	for _, c := range clusters {
		members := c.Features()
		if len(members) == 1 {
			out = append(out, members[0])
			continue
		}
		k := aggregateKey{first: members[0], count: len(members), centroid: c.Centroid()}
		a, ok := l.aggregates[k]
		if !ok {
			a = &Aggregate{Cluster: c, symbol: l.symbol}
		}
		seen[k] = a
		out = append(out, a)
	}
	l.aggregates = seen
	l.memo, l.memoRev, l.memoBox, l.memoRes = out, l.revision, bbox, resolution
	return out
}

func (l *ClusterLayer) Renders(bbox bounds.Box, resolution float64) []render.Primitive {
	return flatten(l.Features(bbox, resolution), bbox, resolution)
}
