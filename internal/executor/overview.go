package executor

import (
	"context"
	"fmt"
	"image/jpeg"
	"log"
	"os"

	"terrainav/internal/maptiles"
	"terrainav/internal/mission"
)

// SaveOverview stitches one image of the whole mission bounding box at a
// zoom that fits the static-map pixel bound and writes it to path. An
// existing overview is kept as-is so reruns stay cheap.
func SaveOverview(ctx context.Context, st *maptiles.Stitcher, m *mission.Mission, path string) error {
	if _, err := os.Stat(path); err == nil {
		log.Printf("[Overview] Keeping existing overview %s", path)
		return nil
	}

	zoom, _, _, err := maptiles.ZoomForBounds(m.Box.TopLeft, m.Box.BottomRight, maptiles.MaxZoom)
	if err != nil {
		return fmt.Errorf("overview zoom: %w", err)
	}

	capture, err := st.Capture(ctx, m.Box.TopLeft, m.Box.BottomRight, zoom)
	if err != nil {
		return fmt.Errorf("overview capture: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create overview file: %w", err)
	}
	if err := jpeg.Encode(f, capture.Image, &jpeg.Options{Quality: jpegQuality}); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode overview: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close overview file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize overview file: %w", err)
	}

	log.Printf("[Overview] Saved %s (zoom %d, %dx%d px)",
		path, zoom, capture.Image.Bounds().Dx(), capture.Image.Bounds().Dy())
	return nil
}
