package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Orb returns the point in orb's [lng, lat] order.
func (p Point) Orb() orb.Point { return orb.Point{p.Lng, p.Lat} }

func FromOrb(p orb.Point) Point { return Point{Lat: p.Lat(), Lng: p.Lon()} }

func (p Point) String() string { return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng) }

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	return orbgeo.DistanceHaversine(a.Orb(), b.Orb())
}

// Within reports whether a and b are at most radius meters apart.
func Within(a, b Point, radius float64) bool {
	return Distance(a, b) <= radius
}

// Lerp interpolates linearly between a and b; frac 0 is a, 1 is b.
func Lerp(a, b Point, frac float64) Point {
	return Point{
		Lat: a.Lat + (b.Lat-a.Lat)*frac,
		Lng: a.Lng + (b.Lng-a.Lng)*frac,
	}
}

// Valid reports whether p holds finite coordinates inside the WGS84 ranges.
func Valid(p Point) bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
