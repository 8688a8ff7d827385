package dataset

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"terrainav/internal/mission"
)

// Layout fixes where a mission's artifacts live on disk:
//
//	{dataDir}/{layer}/                                  dataset root
//	{dataDir}/{layer}/{label}.jpg                       overview map
//	{dataDir}/{layer}/raster_images_{overlap}_{label}/  capture images
//	{dataDir}/{layer}/meta_data.csv                     capture metadata
//	{dataDir}/{layer}/logs/                             mission manifests
//
// The label encodes the mission parameters so differently configured
// missions over the same area never collide.
type Layout struct {
	Root  string
	Label string

	rasterDirName string
}

// NewLayout derives the dataset layout for a mission.
func NewLayout(dataDir, layer string, m *mission.Mission) Layout {
	label := Label(m)
	return Layout{
		Root:          filepath.Join(dataDir, layer),
		Label:         label,
		rasterDirName: fmt.Sprintf("raster_images_%s_%s", FormatCoord(m.Flight.OverlapFraction), label),
	}
}

// RasterDir returns the directory holding the capture images.
func (l Layout) RasterDir() string {
	return filepath.Join(l.Root, l.rasterDirName)
}

// LogsDir returns the directory holding mission manifests.
func (l Layout) LogsDir() string {
	return filepath.Join(l.Root, "logs")
}

// MetaCSVPath returns the capture metadata file path.
func (l Layout) MetaCSVPath() string {
	return filepath.Join(l.Root, "meta_data.csv")
}

// OverviewPath returns the path of the stitched overview map.
func (l Layout) OverviewPath() string {
	return filepath.Join(l.Root, l.Label+".jpg")
}

// Ensure creates the raster and logs directories.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.RasterDir(), l.LogsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create dataset directory %s: %w", dir, err)
		}
	}
	return nil
}

// SinglesDir creates and returns the directory single captures are
// saved into: {dataDir}/{layer}/singles/.
func SinglesDir(dataDir, layer string) (string, error) {
	dir := filepath.Join(dataDir, layer, "singles")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create singles directory %s: %w", dir, err)
	}
	return dir, nil
}

// Label builds the mission label:
// {centerLat}_{centerLon}_{agl}_{fov}_{aspectW}_{aspectH}, coordinates
// rounded to 7 decimal places.
func Label(m *mission.Mission) string {
	center := m.Box.Center()
	parts := []string{
		FormatCoord(center.Lat),
		FormatCoord(center.Lon),
		FormatCoord(m.Flight.AltitudeAGLMeters),
		FormatCoord(m.Camera.DiagonalFOVDegrees),
		FormatCoord(m.Camera.AspectW),
		FormatCoord(m.Camera.AspectH),
	}
	return strings.Join(parts, "_")
}

// CaptureFilename names one capture image:
// {col}_{row}_{lat}_{lon}_{zoom}.jpg with coordinates rounded to 7
// decimal places. Col and row identify the grid cell, so resuming can
// tell which captures already exist without re-deriving coordinates.
func CaptureFilename(p mission.CapturePoint, zoom int) string {
	return fmt.Sprintf("%d_%d_%s_%s_%d.jpg",
		p.Col, p.Row, FormatCoord(p.Lat), FormatCoord(p.Lon), zoom)
}

// CaptureInfo is the metadata recoverable from a capture filename.
type CaptureInfo struct {
	Col  int
	Row  int
	Lat  float64
	Lon  float64
	Zoom int
}

// ParseCaptureFilename inverts CaptureFilename.
func ParseCaptureFilename(name string) (CaptureInfo, error) {
	base := strings.TrimSuffix(name, ".jpg")
	if base == name {
		return CaptureInfo{}, fmt.Errorf("capture filename %q is not a .jpg", name)
	}

	parts := strings.Split(base, "_")
	if len(parts) != 5 {
		return CaptureInfo{}, fmt.Errorf("capture filename %q has %d fields, want 5", name, len(parts))
	}

	col, err := strconv.Atoi(parts[0])
	if err != nil {
		return CaptureInfo{}, fmt.Errorf("capture filename %q: bad column: %w", name, err)
	}
	row, err := strconv.Atoi(parts[1])
	if err != nil {
		return CaptureInfo{}, fmt.Errorf("capture filename %q: bad row: %w", name, err)
	}
	lat, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return CaptureInfo{}, fmt.Errorf("capture filename %q: bad latitude: %w", name, err)
	}
	lon, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return CaptureInfo{}, fmt.Errorf("capture filename %q: bad longitude: %w", name, err)
	}
	zoom, err := strconv.Atoi(parts[4])
	if err != nil {
		return CaptureInfo{}, fmt.Errorf("capture filename %q: bad zoom: %w", name, err)
	}

	return CaptureInfo{Col: col, Row: row, Lat: lat, Lon: lon, Zoom: zoom}, nil
}

// ScanCompleted returns the grid cells already present in the raster
// directory, keyed by [col, row]. A missing directory is an empty
// mission, not an error.
func ScanCompleted(rasterDir string) (map[[2]int]bool, error) {
	entries, err := os.ReadDir(rasterDir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[[2]int]bool{}, nil
		}
		return nil, fmt.Errorf("failed to scan raster directory: %w", err)
	}

	completed := make(map[[2]int]bool, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := ParseCaptureFilename(entry.Name())
		if err != nil {
			continue
		}
		completed[[2]int{info.Col, info.Row}] = true
	}

	return completed, nil
}

// FormatCoord renders a number the way labels and filenames expect:
// rounded to 7 decimal places with trailing zeros trimmed.
func FormatCoord(v float64) string {
	rounded := math.Round(v*1e7) / 1e7
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}
