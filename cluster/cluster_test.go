package cluster

import (
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Everpoint/sGis-sub002/bounds"
	"github.com/Everpoint/sGis-sub002/crs"
	"github.com/Everpoint/sGis-sub002/feature"
)

func points(c *crs.CRS, ps ...orb.Point) []feature.Positioned {
	out := make([]feature.Positioned, len(ps))
	for i, p := range ps {
		out[i] = feature.NewPoint(p, c, nil)
	}
	return out
}

// nine points in four groups; the last group is two points 300 km apart
func scenario() []feature.Positioned {
	return points(crs.WebMercator,
		orb.Point{0, 0}, orb.Point{1000, 0}, orb.Point{0, 1000},
		orb.Point{10e6, 0}, orb.Point{10e6 + 1000, 0},
		orb.Point{0, 10e6}, orb.Point{1000, 10e6},
		orb.Point{-10e6, -10e6}, orb.Point{-10e6 + 300000, -10e6},
	)
}

func TestClusterCountsByResolution(t *testing.T) {
	ix := New(44, crs.WebMercator)
	ix.Add(scenario()...)
	require.Equal(t, 9, ix.Len())

	assert.Len(t, ix.Clusters(9595), 4)
	assert.Len(t, ix.Clusters(4444), 5)
	assert.Len(t, ix.Clusters(9595), 4, "recomputed from scratch")
}

func checkLossless(t *testing.T, in []feature.Positioned, clusters []*Cluster) {
	t.Helper()
	seen := make(map[feature.Positioned]int)
	for _, c := range clusters {
		for _, f := range c.Features() {
			seen[f]++
		}
	}
	assert.Len(t, seen, len(in))
	for _, f := range in {
		assert.Equal(t, 1, seen[f])
	}
}

func checkFixedPoint(t *testing.T, clusters []*Cluster, cell float64) {
	t.Helper()
	for i := range clusters {
		for j := i + 1; j < len(clusters); j++ {
			d := planar.Distance(clusters[i].Centroid(), clusters[j].Centroid())
			assert.GreaterOrEqual(t, d, cell)
		}
	}
}

func TestClusterProperties(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	var ps []orb.Point
	for i := 0; i < 300; i++ {
		ps = append(ps, orb.Point{r.Float64() * 1e6, r.Float64() * 1e6})
	}
	in := points(crs.WebMercator, ps...)
	ix := New(30, crs.WebMercator)
	ix.Add(in...)

	for _, res := range []float64{1, 10, 100, 500, 2000} {
		clusters := ix.Clusters(res)
		checkLossless(t, in, clusters)
		checkFixedPoint(t, clusters, ix.CellSize(res))
	}
}

func TestCentroidIsMean(t *testing.T) {
	ix := New(10, crs.WebMercator)
	ix.Add(points(crs.WebMercator, orb.Point{0, 0}, orb.Point{4, 0}, orb.Point{2, 6})...)
	clusters := ix.Clusters(1)
	require.Len(t, clusters, 1)
	assert.Equal(t, orb.Point{2, 2}, clusters[0].Centroid())
	assert.Equal(t, 3, clusters[0].Count())
	assert.Equal(t, orb.Point{4, 6}, clusters[0].Bbox().Max)
}

func TestClustersProjectIntoIndexCRS(t *testing.T) {
	ix := New(44, crs.WebMercator)
	in := points(crs.WGS84, orb.Point{10, 10}, orb.Point{10.001, 10})
	ix.Add(in...)
	ix.Add(points(crs.Plain, orb.Point{10, 10})...)

	clusters := ix.Clusters(100)
	require.Len(t, clusters, 1, "the plain point cannot be projected and is skipped")
	checkLossless(t, in, clusters)
	assert.InDelta(t, 1113194.9, clusters[0].Centroid()[0], 200)
}

func TestClustersIn(t *testing.T) {
	ix := New(44, crs.WebMercator)
	in := scenario()
	ix.Add(in...)
	box := bounds.New(orb.Point{-1000, -1000}, orb.Point{11e6, 2000}, crs.WebMercator)
	clusters := ix.ClustersIn(box, 4444)
	require.Len(t, clusters, 2)
	checkLossless(t, in[:5], clusters)

	assert.Empty(t, ix.ClustersIn(bounds.New(orb.Point{}, orb.Point{1, 1}, crs.Plain), 4444))
	assert.Empty(t, New(1, crs.WebMercator).ClustersIn(box, 1))
}

func TestAddRemoveHas(t *testing.T) {
	ix := New(44, crs.WebMercator)
	in := scenario()
	ix.Add(in...)
	ix.Add(in[0])
	assert.Equal(t, 9, ix.Len())
	assert.True(t, ix.Has(in[3]))

	ix.Remove(in[3], in[4])
	ix.Remove(in[3])
	assert.False(t, ix.Has(in[3]))
	assert.Equal(t, 7, ix.Len())
	assert.Equal(t, in[5], ix.Features()[3])
	assert.Len(t, ix.Clusters(4444), 4)

	ix.SetDistance(1)
	assert.Equal(t, 1.0, ix.Distance())
	assert.Equal(t, 4444.0, ix.CellSize(4444))
}
