package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"terrainav/internal/camera"
	"terrainav/internal/geodesy"
	"terrainav/internal/mission"
)

func testMission(t *testing.T) *mission.Mission {
	t.Helper()
	box, err := mission.NewBoundingBox(
		geodesy.LatLon{Lat: 35.16, Lon: -89.90},
		geodesy.LatLon{Lat: 35.115, Lon: -89.823},
	)
	if err != nil {
		t.Fatalf("NewBoundingBox: %v", err)
	}
	cam := camera.Spec{DiagonalFOVDegrees: 78.8, AspectW: 4, AspectH: 3}
	m, err := mission.Plan(box, cam, mission.FlightParams{
		AltitudeAGLMeters: 120,
		OverlapFraction:   0.25,
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	return m
}

func TestLabel(t *testing.T) {
	m := testMission(t)

	want := "35.1375_-89.8615_120_78.8_4_3"
	if got := Label(m); got != want {
		t.Errorf("Label = %q, want %q", got, want)
	}
}

func TestLayoutPaths(t *testing.T) {
	m := testMission(t)
	l := NewLayout("/data/memphis", "satellite", m)

	if got, want := l.Root, filepath.Join("/data/memphis", "satellite"); got != want {
		t.Errorf("Root = %q, want %q", got, want)
	}
	wantRaster := filepath.Join(l.Root, "raster_images_0.25_"+l.Label)
	if got := l.RasterDir(); got != wantRaster {
		t.Errorf("RasterDir = %q, want %q", got, wantRaster)
	}
	if got, want := l.MetaCSVPath(), filepath.Join(l.Root, "meta_data.csv"); got != want {
		t.Errorf("MetaCSVPath = %q, want %q", got, want)
	}
	if got, want := l.OverviewPath(), filepath.Join(l.Root, l.Label+".jpg"); got != want {
		t.Errorf("OverviewPath = %q, want %q", got, want)
	}
	if got, want := l.LogsDir(), filepath.Join(l.Root, "logs"); got != want {
		t.Errorf("LogsDir = %q, want %q", got, want)
	}
}

func TestCaptureFilename_RoundTrip(t *testing.T) {
	tests := []struct {
		point mission.CapturePoint
		zoom  int
		want  string
	}{
		{mission.CapturePoint{Col: 0, Row: 0, Lat: 35.16, Lon: -89.9}, 18, "0_0_35.16_-89.9_18.jpg"},
		{mission.CapturePoint{Col: 12, Row: 7, Lat: 35.1234567, Lon: -89.87654321}, 19, "12_7_35.1234567_-89.8765432_19.jpg"},
	}

	for _, tt := range tests {
		got := CaptureFilename(tt.point, tt.zoom)
		if got != tt.want {
			t.Errorf("CaptureFilename = %q, want %q", got, tt.want)
		}

		info, err := ParseCaptureFilename(got)
		if err != nil {
			t.Fatalf("ParseCaptureFilename(%q): %v", got, err)
		}
		if info.Col != tt.point.Col || info.Row != tt.point.Row || info.Zoom != tt.zoom {
			t.Errorf("parsed %+v does not match point %+v zoom %d", info, tt.point, tt.zoom)
		}
	}
}

func TestParseCaptureFilename_Invalid(t *testing.T) {
	for _, name := range []string{
		"notajpg.png",
		"0_0_35.16_-89.9.jpg",
		"a_0_35.16_-89.9_18.jpg",
		"0_0_north_-89.9_18.jpg",
		"meta_data.csv",
	} {
		if _, err := ParseCaptureFilename(name); err == nil {
			t.Errorf("ParseCaptureFilename(%q): expected error", name)
		}
	}
}

func TestScanCompleted(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{
		"0_0_35.16_-89.9_18.jpg",
		"1_0_35.16_-89.898_18.jpg",
		"0_3_35.15_-89.9_18.jpg",
		"stray.txt",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	completed, err := ScanCompleted(dir)
	if err != nil {
		t.Fatalf("ScanCompleted: %v", err)
	}

	if len(completed) != 3 {
		t.Fatalf("found %d completed cells, want 3", len(completed))
	}
	for _, cell := range [][2]int{{0, 0}, {1, 0}, {0, 3}} {
		if !completed[cell] {
			t.Errorf("cell %v missing from completed set", cell)
		}
	}
}

func TestScanCompleted_MissingDir(t *testing.T) {
	completed, err := ScanCompleted(filepath.Join(t.TempDir(), "never-created"))
	if err != nil {
		t.Fatalf("ScanCompleted on missing dir: %v", err)
	}
	if len(completed) != 0 {
		t.Errorf("expected empty set, got %d entries", len(completed))
	}
}

func TestFormatCoord(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{35.16, "35.16"},
		{-89.9, "-89.9"},
		{35.12345678, "35.1234568"},
		{120, "120"},
		{0.25, "0.25"},
	}

	for _, tt := range tests {
		if got := FormatCoord(tt.in); got != tt.want {
			t.Errorf("FormatCoord(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
