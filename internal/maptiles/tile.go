package maptiles

import (
	"fmt"
	"image"
	"math"

	"terrainav/internal/geodesy"
)

const (
	// TileSize is the pixel size of one slippy map tile.
	TileSize = 256

	// MaxZoom is the deepest level served for satellite and roadmap.
	MaxZoom = 22

	// staticMapMaxPixels is the largest image side the free static
	// endpoint serves, used when fitting a zoom level to a box.
	staticMapMaxPixels = 640
)

// Layer identifies a map rendering style.
type Layer string

const (
	LayerSatellite Layer = "satellite"
	LayerRoadmap   Layer = "roadmap"
	LayerTerrain   Layer = "terrain"
)

// ParseLayer validates a layer name from config or flags.
func ParseLayer(s string) (Layer, error) {
	switch Layer(s) {
	case LayerSatellite, LayerRoadmap, LayerTerrain:
		return Layer(s), nil
	}
	return "", fmt.Errorf("unknown map layer %q (want satellite, roadmap or terrain)", s)
}

// Code returns the single-letter layer code used by the tile endpoint.
func (l Layer) Code() string {
	switch l {
	case LayerRoadmap:
		return "m"
	case LayerTerrain:
		return "t"
	default:
		return "s"
	}
}

// Tile addresses one slippy map tile in XYZ scheme.
type Tile struct {
	X    int
	Y    int
	Zoom int
}

// URL returns the tile image URL for a layer.
func (t Tile) URL(layer Layer) string {
	return fmt.Sprintf("https://mt.google.com/vt/lyrs=%s&x=%d&y=%d&z=%d",
		layer.Code(), t.X, t.Y, t.Zoom)
}

// Project converts a coordinate to fractional tile coordinates at a
// zoom level. The integer parts address the containing tile, the
// fractions the position inside it.
func Project(c geodesy.LatLon, zoom int) (x, y float64) {
	n := float64(int(1) << zoom)
	latRad := c.Lat * math.Pi / 180
	x = (c.Lon + 180) / 360 * n
	y = (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n
	return x, y
}

// TileAt returns the tile containing a coordinate, plus the pixel
// offset of the coordinate inside that tile.
func TileAt(c geodesy.LatLon, zoom int) (Tile, image.Point) {
	x, y := Project(c, zoom)
	tile := Tile{X: int(x), Y: int(y), Zoom: zoom}
	px := int(x*TileSize) - tile.X*TileSize
	py := int(y*TileSize) - tile.Y*TileSize
	return tile, image.Point{X: px, Y: py}
}

// TopLeft returns the coordinate of the tile's north-west corner.
func (t Tile) TopLeft() geodesy.LatLon {
	n := float64(int(1) << t.Zoom)
	lon := float64(t.X)/n*360 - 180
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*float64(t.Y)/n)))
	return geodesy.LatLon{Lat: latRad * 180 / math.Pi, Lon: lon}
}

// ZoomForBounds picks the deepest zoom level at which the box still
// fits inside one maximum-size static image, and returns the pixel
// dimensions the box occupies at that level. zoomBound caps the
// result; pass MaxZoom for satellite and roadmap.
func ZoomForBounds(topLeft, bottomRight geodesy.LatLon, zoomBound int) (zoom, width, height int, err error) {
	tlX, tlY := worldPixel(topLeft)
	brX, brY := worldPixel(bottomRight)

	halfW := (brX - tlX) / 2
	halfH := (brY - tlY) / 2
	if halfW <= 0 || halfH <= 0 {
		return 0, 0, 0, fmt.Errorf("bounds are not top-left / bottom-right ordered")
	}

	zoom = int(-math.Log2(math.Max(halfW, halfH)/staticMapMaxPixels) - 1)
	if zoom > zoomBound {
		return 0, 0, 0, fmt.Errorf("zoom level %d exceeds bound %d", zoom, zoomBound)
	}
	if zoom < 0 {
		zoom = 0
	}

	scale := math.Pow(2, float64(zoom+1))
	width = int(halfW * scale)
	height = int(halfH * scale)

	return zoom, width, height, nil
}

// ApplyResolution raises a zoom level by the configured extra detail
// steps, clamped to the provider maximum.
func ApplyResolution(zoom, resLevel int) int {
	z := zoom + resLevel
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// worldPixel converts a coordinate to global Web Mercator pixel
// coordinates at zoom 0, where the world spans one 256px tile.
func worldPixel(c geodesy.LatLon) (x, y float64) {
	siny := math.Sin(c.Lat * math.Pi / 180)
	siny = math.Min(math.Max(siny, -(1-1e-15)), 1-1e-15)

	x = TileSize/2 + c.Lon*(TileSize/360.0)
	y = TileSize/2 - 0.5*math.Log((1+siny)/(1-siny))*(TileSize/(2*math.Pi))
	return x, y
}
