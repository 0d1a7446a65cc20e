// Package cluster groups point features that would overlap on screen.
//
// Features are bucketed into a grid whose cell is distance*resolution wide,
// then clusters closer than one cell are merged until no pair is left. The
// whole computation runs again on every call; nothing survives a change of
// resolution or view.
package cluster

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/quadtree"
	"github.com/sirupsen/logrus"

	"github.com/Everpoint/sGis-sub002/bounds"
	"github.com/Everpoint/sGis-sub002/crs"
	"github.com/Everpoint/sGis-sub002/feature"
	"github.com/Everpoint/sGis-sub002/logger"
	"github.com/Everpoint/sGis-sub002/metrics"
)

// Cluster is a merged group of features with the mean of their positions as centroid.
type Cluster struct {
	crs      *crs.CRS
	members  []feature.Positioned
	points   []orb.Point
	sum      orb.Point
	centroid orb.Point
}

func (c *Cluster) CRS() *crs.CRS                  { return c.crs }
func (c *Cluster) Count() int                     { return len(c.members) }
func (c *Cluster) Centroid() orb.Point            { return c.centroid }
func (c *Cluster) Features() []feature.Positioned { return c.members }

// Bbox covers the positions of every member, in the index crs.
func (c *Cluster) Bbox() bounds.Box {
	return bounds.FromBound(orb.MultiPoint(c.points).Bound(), c.crs)
}

func (c *Cluster) add(f feature.Positioned, p orb.Point) {
	c.members = append(c.members, f)
	c.points = append(c.points, p)
	c.sum[0] += p[0]
	c.sum[1] += p[1]
	c.update()
}

func (c *Cluster) merge(o *Cluster) {
	c.members = append(c.members, o.members...)
	c.points = append(c.points, o.points...)
	c.sum[0] += o.sum[0]
	c.sum[1] += o.sum[1]
	c.update()
}

func (c *Cluster) update() {
	n := float64(len(c.points))
	c.centroid = orb.Point{c.sum[0] / n, c.sum[1] / n}
}

// Index holds the features to cluster. Mutations only take effect on the
// next Clusters call.
type Index struct {
	distance float64
	crs      *crs.CRS
	features []feature.Positioned
	set      map[feature.Positioned]struct{}
}

// New creates an index clustering features closer than distance pixels, measured in c.
func New(distance float64, c *crs.CRS) *Index {
	return &Index{distance: distance, crs: c, set: make(map[feature.Positioned]struct{})}
}

func (ix *Index) CRS() *crs.CRS         { return ix.crs }
func (ix *Index) Distance() float64     { return ix.distance }
func (ix *Index) SetDistance(d float64) { ix.distance = d }
func (ix *Index) Len() int              { return len(ix.features) }

func (ix *Index) Features() []feature.Positioned {
	return append([]feature.Positioned(nil), ix.features...)
}

// Add appends features not already present.
func (ix *Index) Add(fs ...feature.Positioned) {
	for _, f := range fs {
		if _, ok := ix.set[f]; ok {
			continue
		}
		ix.set[f] = struct{}{}
		ix.features = append(ix.features, f)
	}
}

// Remove drops the given features, ignoring unknown ones.
func (ix *Index) Remove(fs ...feature.Positioned) {
	drop := make(map[feature.Positioned]struct{}, len(fs))
	for _, f := range fs {
		if _, ok := ix.set[f]; ok {
			drop[f] = struct{}{}
			delete(ix.set, f)
		}
	}
	if len(drop) == 0 {
		return
	}
	kept := ix.features[:0]
	for _, f := range ix.features {
		if _, ok := drop[f]; !ok {
			kept = append(kept, f)
		}
	}
	ix.features = kept
}

func (ix *Index) Has(f feature.Positioned) bool {
	_, ok := ix.set[f]
	return ok
}

// CellSize is the grid cell edge, and the merge threshold, at resolution.
func (ix *Index) CellSize(resolution float64) float64 {
	return ix.distance * resolution
}

// Clusters groups every feature at resolution.
func (ix *Index) Clusters(resolution float64) []*Cluster {
	return ix.run(ix.project(), resolution)
}

// ClustersIn groups the features whose position falls inside bbox.
func (ix *Index) ClustersIn(bbox bounds.Box, resolution float64) []*Cluster {
	box, ok := bbox.Project(ix.crs)
	if !ok {
		return nil
	}
	all := ix.project()
	if len(all) == 0 {
		return nil
	}
	pts := make(orb.MultiPoint, len(all))
	for i, e := range all {
		pts[i] = e.p
	}
	qt := quadtree.New(pts.Bound())
	for i := range all {
		// the tree bound covers every point, so Add cannot fail
		_ = qt.Add(&all[i])
	}
	found := qt.InBound(nil, box.Bound())
	// keep insertion order so results do not depend on tree layout
	sort.Slice(found, func(i, j int) bool { return found[i].(*entry).seq < found[j].(*entry).seq })
	inside := make([]entry, len(found))
	for i, f := range found {
		inside[i] = *f.(*entry)
	}
	return ix.run(inside, resolution)
}

type entry struct {
	seq int
	f   feature.Positioned
	p   orb.Point
}

func (e *entry) Point() orb.Point { return e.p }

func (ix *Index) project() []entry {
	out := make([]entry, 0, len(ix.features))
	for i, f := range ix.features {
		p, ok := f.CRS().Project(f.Position(), ix.crs)
		if !ok {
			logger.L().WithFields(logrus.Fields{"from": f.CRS(), "to": ix.crs}).Debug("feature skipped by clustering")
			continue
		}
		out = append(out, entry{seq: i, f: f, p: p})
	}
	return out
}

type cellKey struct{ x, y float64 }

func (ix *Index) run(entries []entry, resolution float64) []*Cluster {
	metrics.ClusterRuns.Inc()
	cell := ix.CellSize(resolution)

	cells := make(map[cellKey]*Cluster)
	var order []cellKey
	for _, e := range entries {
		k := cellKey{math.Round(e.p[0] / cell), math.Round(e.p[1] / cell)}
		c, ok := cells[k]
		if !ok {
			c = &Cluster{crs: ix.crs}
			cells[k] = c
			order = append(order, k)
		}
		c.add(e.f, e.p)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].x != order[j].x {
			return order[i].x < order[j].x
		}
		return order[i].y < order[j].y
	})
	clusters := make([]*Cluster, len(order))
	for i, k := range order {
		clusters[i] = cells[k]
	}

	passes := 0
	for merged := true; merged; {
		merged = false
		passes++
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); {
				if planar.Distance(clusters[i].centroid, clusters[j].centroid) < cell {
					clusters[i].merge(clusters[j])
					clusters = append(clusters[:j], clusters[j+1:]...)
					merged = true
					continue
				}
				j++
			}
		}
	}
	metrics.ClusterMergePasses.Observe(float64(passes))
	logger.L().WithFields(logrus.Fields{
		"features": len(entries),
		"clusters": len(clusters),
		"passes":   passes,
	}).Debug("clustered")
	return clusters
}
