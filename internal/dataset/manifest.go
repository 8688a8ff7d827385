package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"terrainav/internal/camera"
	"terrainav/internal/geodesy"
	"terrainav/internal/mission"
)

// GroundStats summarizes the physical ground coverage of a mission,
// written alongside every manifest so a dataset is self-describing.
type GroundStats struct {
	MapWidthMeters    float64 `json:"mapWidthMeters"`
	MapHeightMeters   float64 `json:"mapHeightMeters"`
	MapDiagonalMeters float64 `json:"mapDiagonalMeters"`
	MapAreaM2         float64 `json:"mapAreaM2"`

	ImageWidthMeters  float64 `json:"imageWidthMeters"`
	ImageHeightMeters float64 `json:"imageHeightMeters"`
	ImageAreaM2       float64 `json:"imageAreaM2"`

	ImageWidthPixels  int `json:"imageWidthPixels"`
	ImageHeightPixels int `json:"imageHeightPixels"`

	Rows  int `json:"rows"`
	Cols  int `json:"cols"`
	Total int `json:"total"`
	Zoom  int `json:"zoom"`
}

// ComputeGroundStats derives coverage statistics from a planned
// mission and the zoom and pixel dimensions chosen for its captures.
// The map figures are geodesic distances between the box corners, so
// they stay honest on boxes large enough for planar spacing to drift.
func ComputeGroundStats(m *mission.Mission, zoom, pxWidth, pxHeight int) GroundStats {
	bound := m.Box.Bound()
	topLeft := geodesy.FromPoint(bound.LeftTop())
	ew := geodesy.Distance(topLeft, geodesy.FromPoint(bound.Max))
	ns := geodesy.Distance(topLeft, geodesy.FromPoint(bound.Min))
	diag := geodesy.Distance(topLeft, geodesy.FromPoint(bound.RightBottom()))
	return GroundStats{
		MapWidthMeters:    round3(ew),
		MapHeightMeters:   round3(ns),
		MapDiagonalMeters: round3(diag),
		MapAreaM2:         round3(ew * ns),
		ImageWidthMeters:  round3(m.Footprint.GroundWidth),
		ImageHeightMeters: round3(m.Footprint.GroundHeight),
		ImageAreaM2:       round3(m.Footprint.AreaM2()),
		ImageWidthPixels:  pxWidth,
		ImageHeightPixels: pxHeight,
		Rows:              m.Rows,
		Cols:              m.Cols,
		Total:             len(m.Points),
		Zoom:              zoom,
	}
}

// Report tallies the outcome of one mission run.
type Report struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

// Manifest is the run record written under logs/. One file per run;
// resumes of the same mission produce new manifests.
type Manifest struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	Layer           string               `json:"layer"`
	Box             mission.BoundingBox  `json:"boundingBox"`
	Camera          camera.Spec          `json:"camera"`
	Flight          mission.FlightParams `json:"flight"`
	ResolutionLevel int                  `json:"resolutionLevel"`

	Stats  GroundStats `json:"stats"`
	Report *Report     `json:"report,omitempty"`
}

// NewManifest creates a manifest for a planned mission run.
func NewManifest(m *mission.Mission, layer string, resLevel int, stats GroundStats) *Manifest {
	return &Manifest{
		ID:              uuid.NewString(),
		CreatedAt:       time.Now().UTC(),
		Layer:           layer,
		Box:             m.Box,
		Camera:          m.Camera,
		Flight:          m.Flight,
		ResolutionLevel: resLevel,
		Stats:           stats,
	}
}

// Filename returns the manifest filename:
// mission_{timestamp}_{short-id}.json.
func (mf *Manifest) Filename() string {
	short := mf.ID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("mission_%s_%s.json",
		mf.CreatedAt.Format("2006-01-02_15-04-05"), short)
}

// Write persists the manifest into logsDir and returns the full path.
func (mf *Manifest) Write(logsDir string) (string, error) {
	data, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}

	path := filepath.Join(logsDir, mf.Filename())
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return path, nil
}

// ReadManifest loads a manifest from disk.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var mf Manifest
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &mf, nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
