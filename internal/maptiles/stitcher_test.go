package maptiles

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"

	"terrainav/internal/geodesy"
)

// fakeSource serves solid-color tiles and records what was asked for.
type fakeSource struct {
	mu      sync.Mutex
	fetched []Tile
	fail    func(tile Tile) bool
}

func (f *fakeSource) FetchTile(_ context.Context, tile Tile) ([]byte, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, tile)
	f.mu.Unlock()

	if f.fail != nil && f.fail(tile) {
		return nil, fmt.Errorf("simulated fetch failure")
	}

	img := image.NewRGBA(image.Rect(0, 0, TileSize, TileSize))
	c := color.RGBA{R: uint8(tile.X % 256), G: uint8(tile.Y % 256), B: 200, A: 255}
	for y := 0; y < TileSize; y++ {
		for x := 0; x < TileSize; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *fakeSource) Layer() Layer { return LayerSatellite }

func TestCapture_Dimensions(t *testing.T) {
	tl := geodesy.LatLon{Lat: 35.16, Lon: -89.90}
	br := geodesy.LatLon{Lat: 35.115, Lon: -89.823}
	const zoom = 15

	source := &fakeSource{}
	stitcher := NewStitcher(source, 4)

	capture, err := stitcher.Capture(context.Background(), tl, br, zoom)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	// The crop spans exactly the pixel distance between the two
	// projected corners.
	xTL, yTL := Project(tl, zoom)
	xBR, yBR := Project(br, zoom)
	wantW := int(xBR*TileSize) - int(xTL*TileSize)
	wantH := int(yBR*TileSize) - int(yTL*TileSize)

	bounds := capture.Image.Bounds()
	if bounds.Dx() != wantW || bounds.Dy() != wantH {
		t.Errorf("capture is %dx%d px, want %dx%d", bounds.Dx(), bounds.Dy(), wantW, wantH)
	}
	if capture.Zoom != zoom {
		t.Errorf("zoom = %d, want %d", capture.Zoom, zoom)
	}
	if capture.FailedTiles != 0 {
		t.Errorf("failed tiles = %d, want 0", capture.FailedTiles)
	}
	if capture.TotalTiles != len(source.fetched) {
		t.Errorf("fetched %d tiles, capture reports %d", len(source.fetched), capture.TotalTiles)
	}
}

func TestCapture_RequestsEveryOverlappingTile(t *testing.T) {
	tl := geodesy.LatLon{Lat: 35.16, Lon: -89.90}
	br := geodesy.LatLon{Lat: 35.115, Lon: -89.823}
	const zoom = 14

	source := &fakeSource{}
	stitcher := NewStitcher(source, 2)

	if _, err := stitcher.Capture(context.Background(), tl, br, zoom); err != nil {
		t.Fatalf("Capture: %v", err)
	}

	tlTile, _ := TileAt(tl, zoom)
	brTile, _ := TileAt(br, zoom)

	want := make(map[Tile]bool)
	for y := tlTile.Y; y <= brTile.Y; y++ {
		for x := tlTile.X; x <= brTile.X; x++ {
			want[Tile{X: x, Y: y, Zoom: zoom}] = true
		}
	}

	got := make(map[Tile]bool)
	for _, tile := range source.fetched {
		got[tile] = true
	}

	if len(got) != len(want) {
		t.Fatalf("fetched %d distinct tiles, want %d", len(got), len(want))
	}
	for tile := range want {
		if !got[tile] {
			t.Errorf("tile %+v never requested", tile)
		}
	}
}

func TestCapture_PartialFailureTolerated(t *testing.T) {
	tl := geodesy.LatLon{Lat: 35.16, Lon: -89.90}
	br := geodesy.LatLon{Lat: 35.115, Lon: -89.823}

	failed := false
	var mu sync.Mutex
	source := &fakeSource{
		fail: func(Tile) bool {
			mu.Lock()
			defer mu.Unlock()
			if !failed {
				failed = true
				return true
			}
			return false
		},
	}
	stitcher := NewStitcher(source, 1)

	capture, err := stitcher.Capture(context.Background(), tl, br, 15)
	if err != nil {
		t.Fatalf("one failed tile should not fail the capture: %v", err)
	}
	if capture.FailedTiles != 1 {
		t.Errorf("failed tiles = %d, want 1", capture.FailedTiles)
	}
}

func TestCapture_AllTilesFailed(t *testing.T) {
	tl := geodesy.LatLon{Lat: 35.16, Lon: -89.90}
	br := geodesy.LatLon{Lat: 35.115, Lon: -89.823}

	source := &fakeSource{fail: func(Tile) bool { return true }}
	stitcher := NewStitcher(source, 4)

	if _, err := stitcher.Capture(context.Background(), tl, br, 15); err == nil {
		t.Fatal("expected error when every tile fails")
	}
}

func TestCapture_CancelledContext(t *testing.T) {
	tl := geodesy.LatLon{Lat: 35.16, Lon: -89.90}
	br := geodesy.LatLon{Lat: 35.115, Lon: -89.823}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stitcher := NewStitcher(&fakeSource{}, 4)
	if _, err := stitcher.Capture(ctx, tl, br, 15); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestCapture_BadOrdering(t *testing.T) {
	tl := geodesy.LatLon{Lat: 35.115, Lon: -89.823}
	br := geodesy.LatLon{Lat: 35.16, Lon: -89.90}

	stitcher := NewStitcher(&fakeSource{}, 4)
	if _, err := stitcher.Capture(context.Background(), tl, br, 15); err == nil {
		t.Fatal("expected ordering error")
	}
}
