package maptiles

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"log"
	"sync"

	_ "image/jpeg"
	_ "image/png"

	"terrainav/internal/geodesy"
)

// TileSource abstracts tile fetching so the stitcher can be fed from
// the network client or a fake in tests.
type TileSource interface {
	FetchTile(ctx context.Context, tile Tile) ([]byte, error)
	Layer() Layer
}

// Capture is one stitched, pixel-exact image of a bounding box.
type Capture struct {
	Image       *image.RGBA
	Zoom        int
	TopLeft     geodesy.LatLon
	BottomRight geodesy.LatLon
	TotalTiles  int
	FailedTiles int
}

// Stitcher assembles tile grids into cropped images using a worker
// pool.
type Stitcher struct {
	source  TileSource
	workers int
}

// NewStitcher creates a stitcher. workers <= 0 selects the default of
// 10 concurrent tile downloads.
func NewStitcher(source TileSource, workers int) *Stitcher {
	if workers <= 0 {
		workers = 10
	}
	return &Stitcher{source: source, workers: workers}
}

// Source returns the tile source captures are fetched from.
func (s *Stitcher) Source() TileSource {
	return s.source
}

type tileResult struct {
	tile Tile
	data []byte
	ok   bool
}

// Capture downloads every tile overlapping the box at the given zoom,
// stitches them into a mosaic and crops to the exact pixel bounds of
// the box. Individual tile failures leave black patches; the capture
// fails only when no tile at all could be fetched.
func (s *Stitcher) Capture(ctx context.Context, topLeft, bottomRight geodesy.LatLon, zoom int) (*Capture, error) {
	tlTile, tlPx := TileAt(topLeft, zoom)
	brTile, brPx := TileAt(bottomRight, zoom)

	if brTile.X < tlTile.X || brTile.Y < tlTile.Y {
		return nil, fmt.Errorf("bounds are not top-left / bottom-right ordered")
	}

	nTilesX := brTile.X - tlTile.X + 1
	nTilesY := brTile.Y - tlTile.Y + 1

	width := brPx.X + TileSize*(nTilesX-1) - tlPx.X
	height := brPx.Y + TileSize*(nTilesY-1) - tlPx.Y
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	tiles := make([]Tile, 0, nTilesX*nTilesY)
	for y := tlTile.Y; y <= brTile.Y; y++ {
		for x := tlTile.X; x <= brTile.X; x++ {
			tiles = append(tiles, Tile{X: x, Y: y, Zoom: zoom})
		}
	}

	total := len(tiles)
	workerCount := s.workers
	if total < workerCount {
		workerCount = total
	}

	tileChan := make(chan Tile, total)
	resultChan := make(chan tileResult, total)

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tile := range tileChan {
				if ctx.Err() != nil {
					resultChan <- tileResult{tile: tile}
					continue
				}
				data, err := s.source.FetchTile(ctx, tile)
				if err != nil {
					log.Printf("[Stitcher] tile %d/%d/%d: %v", tile.Zoom, tile.X, tile.Y, err)
					resultChan <- tileResult{tile: tile}
					continue
				}
				resultChan <- tileResult{tile: tile, data: data, ok: true}
			}
		}()
	}

	go func() {
		for _, tile := range tiles {
			tileChan <- tile
		}
		close(tileChan)
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	mosaic := image.NewRGBA(image.Rect(0, 0, nTilesX*TileSize, nTilesY*TileSize))

	succeeded := 0
	for result := range resultChan {
		if !result.ok {
			continue
		}

		img, _, err := image.Decode(bytes.NewReader(result.data))
		if err != nil {
			log.Printf("[Stitcher] tile %d/%d/%d: decode failed: %v",
				result.tile.Zoom, result.tile.X, result.tile.Y, err)
			continue
		}

		xOffset := (result.tile.X - tlTile.X) * TileSize
		yOffset := (result.tile.Y - tlTile.Y) * TileSize
		destRect := image.Rect(xOffset, yOffset, xOffset+TileSize, yOffset+TileSize)
		draw.Draw(mosaic, destRect, img, image.Point{}, draw.Src)

		succeeded++
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if succeeded == 0 {
		return nil, fmt.Errorf("no tiles downloaded for %d tile capture at zoom %d", total, zoom)
	}

	cropped := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(cropped, cropped.Bounds(), mosaic, image.Point{X: tlPx.X, Y: tlPx.Y}, draw.Src)

	return &Capture{
		Image:       cropped,
		Zoom:        zoom,
		TopLeft:     topLeft,
		BottomRight: bottomRight,
		TotalTiles:  total,
		FailedTiles: total - succeeded,
	}, nil
}
