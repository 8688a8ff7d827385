package executor

import (
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"terrainav/internal/camera"
	"terrainav/internal/dataset"
	"terrainav/internal/maptiles"
	"terrainav/internal/mission"
	"terrainav/pkg/geotiff"
)

// jpegQuality matches the provider's own tile encoding closely enough
// that re-encoding stays visually lossless.
const jpegQuality = 90

// CaptureSaver fetches the stitched image for a capture point and
// writes it into the raster directory under the standard filename.
// With GeoTIFF set it also writes a georeferenced .tif sidecar next
// to each capture.
type CaptureSaver struct {
	Stitcher  *maptiles.Stitcher
	Footprint camera.Footprint
	Zoom      int
	RasterDir string
	GeoTIFF   bool
}

// FetchPoint implements PointFetcher.
func (s *CaptureSaver) FetchPoint(ctx context.Context, p mission.CapturePoint) error {
	box, err := mission.BoxAround(p.LatLon(), s.Footprint)
	if err != nil {
		return fmt.Errorf("footprint box for point %d: %w", p.SequenceIndex, err)
	}

	capture, err := s.Stitcher.Capture(ctx, box.TopLeft, box.BottomRight, s.Zoom)
	if err != nil {
		return err
	}

	path := filepath.Join(s.RasterDir, dataset.CaptureFilename(p, s.Zoom))
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create capture file: %w", err)
	}
	if err := jpeg.Encode(f, capture.Image, &jpeg.Options{Quality: jpegQuality}); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode capture: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close capture file: %w", err)
	}

	if s.GeoTIFF {
		tifPath := strings.TrimSuffix(path, ".jpg") + ".tif"
		desc := fmt.Sprintf("%s capture %d_%d", s.Stitcher.Source().Layer(), p.Col, p.Row)
		if err := writeCaptureTIFF(tifPath, capture, desc); err != nil {
			os.Remove(tmpPath)
			return err
		}
	}

	// Rename last so resume scanning never sees half-written captures.
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize capture file: %w", err)
	}

	return nil
}

// writeCaptureTIFF georeferences a stitched capture in web mercator.
func writeCaptureTIFF(path string, capture *maptiles.Capture, description string) error {
	err := geotiff.WriteWebMercator(path, capture.Image,
		capture.TopLeft.Point(), capture.BottomRight.Point(), description)
	if err != nil {
		return fmt.Errorf("failed to write geotiff: %w", err)
	}
	return nil
}
