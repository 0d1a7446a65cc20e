package crs

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

const (
	semiMajorAxis = 6378137.0
	eccentricity  = 0.0818191908426
)

var (
	// Geo holds geographic positions as (latitude, longitude).
	Geo = New("geo", "Geographic coordinates, latitude first")
	// WGS84 holds geographic positions as (longitude, latitude), EPSG:4326 axis order used by GeoJSON.
	WGS84 = New("EPSG:4326", "WGS 84, longitude first")
	// WebMercator is the spherical pseudo-Mercator used by most tile services.
	WebMercator = New("EPSG:3857", "WGS 84 / Pseudo-Mercator")
	// EllipticalMercator is the ellipsoidal World Mercator.
	EllipticalMercator = New("EPSG:3395", "WGS 84 / World Mercator")
	// Plain is a cartesian space that cannot be projected anywhere.
	Plain = New("plain", "Plain cartesian coordinates")
)

func init() {
	Geo.AddProjection(WGS84, swapAxes)
	WGS84.AddProjection(Geo, swapAxes)

	WGS84.AddProjection(WebMercator, project.WGS84.ToMercator)
	WebMercator.AddProjection(WGS84, project.Mercator.ToWGS84)

	WGS84.AddProjection(EllipticalMercator, toEllipticalMercator)
	EllipticalMercator.AddProjection(WGS84, fromEllipticalMercator)
}

func swapAxes(p orb.Point) orb.Point {
	return orb.Point{p[1], p[0]}
}

func toEllipticalMercator(p orb.Point) orb.Point {
	lon := p[0] * math.Pi / 180
	lat := math.Max(-89.5, math.Min(89.5, p[1])) * math.Pi / 180
	es := eccentricity * math.Sin(lat)
	ts := math.Tan(math.Pi/4+lat/2) * math.Pow((1-es)/(1+es), eccentricity/2)
	return orb.Point{semiMajorAxis * lon, semiMajorAxis * math.Log(ts)}
}

func fromEllipticalMercator(p orb.Point) orb.Point {
	lon := p[0] / semiMajorAxis
	ts := math.Exp(-p[1] / semiMajorAxis)
	lat := math.Pi/2 - 2*math.Atan(ts)
	for i := 0; i < 15; i++ {
		es := eccentricity * math.Sin(lat)
		next := math.Pi/2 - 2*math.Atan(ts*math.Pow((1-es)/(1+es), eccentricity/2))
		if math.Abs(next-lat) < 1e-12 {
			lat = next
			break
		}
		lat = next
	}
	return orb.Point{lon * 180 / math.Pi, lat * 180 / math.Pi}
}

// Lookup returns a built-in system by id.
func Lookup(id string) (*CRS, bool) {
	for _, c := range []*CRS{Geo, WGS84, WebMercator, EllipticalMercator, Plain} {
		if c.id == id {
			return c, true
		}
	}
	return nil, false
}
