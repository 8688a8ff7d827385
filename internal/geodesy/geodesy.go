package geodesy

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

const (
	// MetersPerDegreeLat is the ground length of one degree of latitude in
	// meters. Near-constant on the WGS84 sphere approximation used here.
	MetersPerDegreeLat = 111320.0

	// EarthRadiusMeters is the mean Earth radius used for spherical
	// distance calculations.
	EarthRadiusMeters = 6371000.0
)

// LatLon is a geographic coordinate in decimal degrees.
//
// All geodesy functions take and return degrees; offsets are in meters.
// The conversions are a local planar (equirectangular) approximation valid
// for mission extents of city scale. Polar and antimeridian-crossing
// regions are not supported.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point returns the coordinate as an orb.Point (lon, lat order per the orb
// convention).
func (c LatLon) Point() orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

// FromPoint converts an orb.Point (lon, lat) back into a LatLon.
func FromPoint(p orb.Point) LatLon {
	return LatLon{Lat: p.Lat(), Lon: p.Lon()}
}

// MetersPerDegreeLon returns the ground length of one degree of longitude
// at the given latitude. Longitude degrees shrink with the cosine of the
// latitude and vanish at the poles.
func MetersPerDegreeLon(latDegrees float64) float64 {
	return MetersPerDegreeLat * math.Cos(latDegrees*math.Pi/180.0)
}

// Offset returns a new coordinate displaced from origin by dNorth meters
// northward and dEast meters eastward. The longitude scale is evaluated at
// refLat, not at the origin: a mission uses a single reference latitude for
// all of its points so that row spacing stays uniform across the grid.
func Offset(origin LatLon, dNorthMeters, dEastMeters, refLatDegrees float64) LatLon {
	return LatLon{
		Lat: origin.Lat + dNorthMeters/MetersPerDegreeLat,
		Lon: origin.Lon + dEastMeters/MetersPerDegreeLon(refLatDegrees),
	}
}

// OffsetAt is Offset with the longitude scale taken at the origin itself.
// Use it for single, self-contained displacements (e.g. building a
// footprint box around one point).
func OffsetAt(origin LatLon, dNorthMeters, dEastMeters float64) LatLon {
	return Offset(origin, dNorthMeters, dEastMeters, origin.Lat)
}

// PlanarOffset is the inverse of Offset: it returns the northward and
// eastward displacement in meters from origin to target, with the
// longitude scale evaluated at refLat.
func PlanarOffset(origin, target LatLon, refLatDegrees float64) (dNorthMeters, dEastMeters float64) {
	dNorthMeters = (target.Lat - origin.Lat) * MetersPerDegreeLat
	dEastMeters = (target.Lon - origin.Lon) * MetersPerDegreeLon(refLatDegrees)
	return dNorthMeters, dEastMeters
}

// Distance returns the great-circle distance between two coordinates in
// meters. Used for reporting and sanity checks, not for grid spacing (the
// planner works in planar offsets).
func Distance(a, b LatLon) float64 {
	pa := s2.PointFromLatLng(s2.LatLngFromDegrees(a.Lat, a.Lon))
	pb := s2.PointFromLatLng(s2.LatLngFromDegrees(b.Lat, b.Lon))
	angle := s1.Angle(s2.ChordAngleBetweenPoints(pa, pb).Angle())
	return angle.Radians() * EarthRadiusMeters
}
