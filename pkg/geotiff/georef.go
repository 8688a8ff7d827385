package geotiff

import (
	"fmt"
	"image"
	"os"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// GeoKeysWebMercator is the GeoKey directory for EPSG:3857 with
// area-convention pixels and meter units.
var GeoKeysWebMercator = []uint16{
	1, 1, 0, 4,
	1024, 0, 1, 1, // GTModelTypeGeoKey: projected
	1025, 0, 1, 1, // GTRasterTypeGeoKey: PixelIsArea
	3072, 0, 1, 3857, // ProjectedCSTypeGeoKey
	3076, 0, 1, 9001, // ProjLinearUnitsGeoKey: meter
}

// WriteWebMercator saves img to path as a GeoTIFF georeferenced in
// EPSG:3857. topLeft and bottomRight are the WGS84 corners of the image
// in (lon, lat) order; description, if non-empty, is stored as the TIFF
// image description.
func WriteWebMercator(path string, img image.Image, topLeft, bottomRight orb.Point, description string) error {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return fmt.Errorf("geotiff: empty image")
	}

	tl := project.WGS84.ToMercator(topLeft)
	br := project.WGS84.ToMercator(bottomRight)
	if br[0] <= tl[0] || br[1] >= tl[1] {
		return fmt.Errorf("geotiff: corners not in top-left/bottom-right order")
	}

	scaleX := (br[0] - tl[0]) / float64(width)
	scaleY := (tl[1] - br[1]) / float64(height)

	extraTags := map[uint16]interface{}{
		TagGeoKeyDirectory: GeoKeysWebMercator,
		TagModelPixelScale: []float64{scaleX, scaleY, 0},
		// Pixel (0,0) maps to the top-left mercator corner.
		TagModelTiepoint: []float64{0, 0, 0, tl[0], tl[1], 0},
		TagDateTime:      time.Now().UTC().Format("2006:01:02 15:04:05"),
	}
	if description != "" {
		extraTags[TagImageDescription] = description
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("geotiff: create %s: %w", path, err)
	}
	if err := Encode(f, img, extraTags); err != nil {
		f.Close()
		return fmt.Errorf("geotiff: encode %s: %w", path, err)
	}
	return f.Close()
}
