package dataset

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"

	"terrainav/internal/geodesy"
)

func TestWriteReadMetaCSV(t *testing.T) {
	m := testMission(t)
	path := filepath.Join(t.TempDir(), "meta_data.csv")

	if err := WriteMetaCSV(path, m, 18); err != nil {
		t.Fatalf("WriteMetaCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	records, err := csv.NewReader(f).ReadAll()
	f.Close()
	if err != nil {
		t.Fatalf("reading csv: %v", err)
	}

	if len(records) != len(m.Points)+1 {
		t.Fatalf("csv has %d rows, want %d", len(records), len(m.Points)+1)
	}
	wantHeader := []string{"img_names", "columns", "row", "Lat", "Lon", "Alt"}
	for i, col := range wantHeader {
		if records[0][i] != col {
			t.Errorf("header[%d] = %q, want %q", i, records[0][i], col)
		}
	}
	if records[1][0] != CaptureFilename(m.Points[0], 18) {
		t.Errorf("first row names %q, want %q", records[1][0], CaptureFilename(m.Points[0], 18))
	}

	infos, err := ReadMetaCSV(path)
	if err != nil {
		t.Fatalf("ReadMetaCSV: %v", err)
	}
	if len(infos) != len(m.Points) {
		t.Fatalf("read %d records, want %d", len(infos), len(m.Points))
	}
	for _, info := range infos {
		if info.Zoom != 18 {
			t.Fatalf("record zoom = %d, want 18", info.Zoom)
		}
	}
}

func TestReadMetaCSV_Missing(t *testing.T) {
	if _, err := ReadMetaCSV(filepath.Join(t.TempDir(), "meta_data.csv")); err == nil {
		t.Fatal("expected error for missing metadata file")
	}
}

func TestManifest_WriteRead(t *testing.T) {
	m := testMission(t)
	stats := ComputeGroundStats(m, 18, 512, 384)
	mf := NewManifest(m, "satellite", 2, stats)
	mf.Report = &Report{Succeeded: 10, Failed: 1, Skipped: 2, Errors: []string{"point 4: timeout"}}

	dir := t.TempDir()
	path, err := mf.Write(dir)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	loaded, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}

	if loaded.ID != mf.ID {
		t.Errorf("id %q != %q", loaded.ID, mf.ID)
	}
	if loaded.Layer != "satellite" || loaded.ResolutionLevel != 2 {
		t.Errorf("layer/res = %q/%d", loaded.Layer, loaded.ResolutionLevel)
	}
	if loaded.Stats != stats {
		t.Errorf("stats %+v != %+v", loaded.Stats, stats)
	}
	if loaded.Report == nil || loaded.Report.Failed != 1 {
		t.Errorf("report not preserved: %+v", loaded.Report)
	}
}

func TestManifestFilename(t *testing.T) {
	m := testMission(t)
	mf := NewManifest(m, "satellite", 0, GroundStats{})

	name := mf.Filename()
	if filepath.Ext(name) != ".json" {
		t.Errorf("manifest name %q not a .json", name)
	}
	if len(name) < len("mission_2006-01-02_15-04-05_xxxxxxxx.json") {
		t.Errorf("manifest name %q shorter than expected pattern", name)
	}
}

func TestComputeGroundStats(t *testing.T) {
	m := testMission(t)

	stats := ComputeGroundStats(m, 18, 512, 384)

	if stats.Rows != m.Rows || stats.Cols != m.Cols || stats.Total != len(m.Points) {
		t.Errorf("grid stats %+v disagree with mission %dx%d", stats, m.Rows, m.Cols)
	}
	if stats.Zoom != 18 {
		t.Errorf("zoom = %d, want 18", stats.Zoom)
	}
	if stats.ImageAreaM2 <= 0 || stats.MapAreaM2 <= stats.ImageAreaM2 {
		t.Errorf("implausible areas: image %g m2, map %g m2", stats.ImageAreaM2, stats.MapAreaM2)
	}
}

func TestComputeGroundStats_GeodesicDistances(t *testing.T) {
	m := testMission(t)
	tl := m.Box.TopLeft
	br := m.Box.BottomRight
	tr := geodesy.LatLon{Lat: tl.Lat, Lon: br.Lon}
	bl := geodesy.LatLon{Lat: br.Lat, Lon: tl.Lon}

	stats := ComputeGroundStats(m, 18, 512, 384)

	if want := geodesy.Distance(tl, tr); math.Abs(stats.MapWidthMeters-want) > 0.001 {
		t.Errorf("map width = %g m, want geodesic corner distance %g m", stats.MapWidthMeters, want)
	}
	if want := geodesy.Distance(tl, bl); math.Abs(stats.MapHeightMeters-want) > 0.001 {
		t.Errorf("map height = %g m, want geodesic corner distance %g m", stats.MapHeightMeters, want)
	}
	if want := geodesy.Distance(tl, br); math.Abs(stats.MapDiagonalMeters-want) > 0.001 {
		t.Errorf("map diagonal = %g m, want geodesic corner distance %g m", stats.MapDiagonalMeters, want)
	}

	// The diagonal must close the corner triangle on a box this small.
	hyp := math.Hypot(stats.MapWidthMeters, stats.MapHeightMeters)
	if math.Abs(stats.MapDiagonalMeters-hyp)/hyp > 0.01 {
		t.Errorf("diagonal %g m far from hypotenuse %g m", stats.MapDiagonalMeters, hyp)
	}
	if stats.MapDiagonalMeters <= stats.MapWidthMeters || stats.MapDiagonalMeters <= stats.MapHeightMeters {
		t.Errorf("diagonal %g m not longer than sides %g x %g",
			stats.MapDiagonalMeters, stats.MapWidthMeters, stats.MapHeightMeters)
	}
}
