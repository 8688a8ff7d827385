package mission

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"terrainav/internal/camera"
	"terrainav/internal/geodesy"
)

// Error kinds for planning preconditions. Both are precondition violations
// returned synchronously; retrying with the same input cannot succeed.
var (
	// ErrInvalidGeometry covers a malformed bounding box, camera spec or
	// altitude.
	ErrInvalidGeometry = errors.New("invalid mission geometry")

	// ErrInvalidOverlap covers an overlap fraction outside [0, 1).
	ErrInvalidOverlap = errors.New("invalid overlap fraction")
)

// BoundingBox is the survey region, defined by its north-west (top-left)
// and south-east (bottom-right) corners. Immutable once built.
type BoundingBox struct {
	TopLeft     geodesy.LatLon `json:"topLeft"`
	BottomRight geodesy.LatLon `json:"bottomRight"`
}

// NewBoundingBox validates the corner ordering: the top-left corner must be
// strictly north and strictly west of the bottom-right corner (longitude
// increasing eastward).
func NewBoundingBox(topLeft, bottomRight geodesy.LatLon) (BoundingBox, error) {
	if topLeft.Lat <= bottomRight.Lat {
		return BoundingBox{}, fmt.Errorf("%w: top-left latitude %g is not north of bottom-right %g",
			ErrInvalidGeometry, topLeft.Lat, bottomRight.Lat)
	}
	if topLeft.Lon >= bottomRight.Lon {
		return BoundingBox{}, fmt.Errorf("%w: top-left longitude %g is not west of bottom-right %g",
			ErrInvalidGeometry, topLeft.Lon, bottomRight.Lon)
	}
	if topLeft.Lat > 90 || bottomRight.Lat < -90 {
		return BoundingBox{}, fmt.Errorf("%w: latitude out of range [-90, 90]", ErrInvalidGeometry)
	}
	if topLeft.Lon < -180 || bottomRight.Lon > 180 {
		return BoundingBox{}, fmt.Errorf("%w: longitude out of range [-180, 180]", ErrInvalidGeometry)
	}
	return BoundingBox{TopLeft: topLeft, BottomRight: bottomRight}, nil
}

// BoxAround returns the region covered by one camera footprint centered
// on a point. Used when capturing a single location instead of a survey.
func BoxAround(center geodesy.LatLon, fp camera.Footprint) (BoundingBox, error) {
	halfWidth := fp.GroundWidth / 2
	halfHeight := fp.GroundHeight / 2
	topLeft := geodesy.OffsetAt(center, halfHeight, -halfWidth)
	bottomRight := geodesy.OffsetAt(center, -halfHeight, halfWidth)
	return NewBoundingBox(topLeft, bottomRight)
}

// Center returns the geometric center of the box. Its latitude is the
// mission's single reference latitude for longitude scaling.
func (b BoundingBox) Center() geodesy.LatLon {
	return geodesy.LatLon{
		Lat: (b.TopLeft.Lat + b.BottomRight.Lat) / 2,
		Lon: (b.TopLeft.Lon + b.BottomRight.Lon) / 2,
	}
}

// Bound returns the box as an orb.Bound (min/max lon-lat corners).
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.TopLeft.Lon, b.BottomRight.Lat},
		Max: orb.Point{b.BottomRight.Lon, b.TopLeft.Lat},
	}
}

// ExtentMeters returns the north-south and east-west extents of the box in
// meters, with the longitude scale evaluated at the box center latitude.
func (b BoundingBox) ExtentMeters() (northSouth, eastWest float64) {
	northSouth = (b.TopLeft.Lat - b.BottomRight.Lat) * geodesy.MetersPerDegreeLat
	eastWest = (b.BottomRight.Lon - b.TopLeft.Lon) * geodesy.MetersPerDegreeLon(b.Center().Lat)
	return northSouth, eastWest
}

// FlightParams holds the flight-level inputs of a mission. Altitude is in
// meters above ground level; the CLI boundary converts from feet before
// anything reaches this type.
type FlightParams struct {
	AltitudeAGLMeters float64 `json:"altitudeAglMeters"`
	OverlapFraction   float64 `json:"overlapFraction"`
}

// CapturePoint is one geolocated capture of the survey. Points are
// immutable; ownership of the ordered sequence passes to the executor.
type CapturePoint struct {
	SequenceIndex int `json:"sequenceIndex"`

	// Row and Col locate the point on the raster grid. Row 0 is the
	// northern edge, col 0 the western edge (regardless of traversal
	// direction within the row).
	Row int `json:"row"`
	Col int `json:"col"`

	Lat               float64 `json:"lat"`
	Lon               float64 `json:"lon"`
	AltitudeAGLMeters float64 `json:"altitudeAglMeters"`

	// Yaw is always zero: the virtual camera looks straight down with
	// north-up orientation.
	Yaw float64 `json:"yaw"`
}

// LatLon returns the point's coordinate.
func (p CapturePoint) LatLon() geodesy.LatLon {
	return geodesy.LatLon{Lat: p.Lat, Lon: p.Lon}
}

// Steps holds the planned distance between adjacent captures, in meters.
type Steps struct {
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Mission is one planned survey: the inputs that produced it plus the
// ordered capture sequence. Never mutated after planning; a different
// overlap or altitude produces a new Mission.
type Mission struct {
	Box    BoundingBox         `json:"boundingBox"`
	Camera camera.Spec         `json:"camera"`
	Flight FlightParams        `json:"flight"`

	Footprint camera.Footprint `json:"footprint"`
	Steps     Steps            `json:"steps"`
	Rows      int              `json:"rows"`
	Cols      int              `json:"cols"`

	Points []CapturePoint `json:"points"`
}
