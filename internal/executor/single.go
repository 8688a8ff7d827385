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
	"terrainav/internal/geodesy"
	"terrainav/internal/maptiles"
	"terrainav/internal/mission"
)

// SaveSingleCapture fetches one capture centered on a coordinate and
// writes it into dir as {lat}_{lon}_{aglMeters}_{zoom}.jpg, returning
// the written path. With geoTIFF set a georeferenced .tif sidecar is
// written as well.
func SaveSingleCapture(ctx context.Context, st *maptiles.Stitcher, center geodesy.LatLon, fp camera.Footprint, aglMeters float64, zoom int, dir string, geoTIFF bool) (string, error) {
	box, err := mission.BoxAround(center, fp)
	if err != nil {
		return "", err
	}

	capture, err := st.Capture(ctx, box.TopLeft, box.BottomRight, zoom)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s_%s_%s_%d.jpg",
		dataset.FormatCoord(center.Lat),
		dataset.FormatCoord(center.Lon),
		dataset.FormatCoord(aglMeters),
		zoom)
	path := filepath.Join(dir, name)

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to create capture file: %w", err)
	}
	if err := jpeg.Encode(f, capture.Image, &jpeg.Options{Quality: jpegQuality}); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to encode capture: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close capture file: %w", err)
	}

	if geoTIFF {
		tifPath := strings.TrimSuffix(path, ".jpg") + ".tif"
		desc := fmt.Sprintf("%s capture at %s, %s",
			st.Source().Layer(), dataset.FormatCoord(center.Lat), dataset.FormatCoord(center.Lon))
		if err := writeCaptureTIFF(tifPath, capture, desc); err != nil {
			os.Remove(tmpPath)
			return "", err
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to finalize capture file: %w", err)
	}
	return path, nil
}
