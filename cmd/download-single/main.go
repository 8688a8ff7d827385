// Command download-single fetches one bird's-eye capture centered on a
// coordinate.
//
//	download-single --coords 35.16_-89.90_400
//
// The coords argument is lat_lon_AGLfeet.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"terrainav/internal/cache"
	"terrainav/internal/camera"
	"terrainav/internal/config"
	"terrainav/internal/dataset"
	"terrainav/internal/executor"
	"terrainav/internal/maptiles"
	"terrainav/internal/mission"
	"terrainav/internal/ratelimit"
)

func main() {
	flags := pflag.NewFlagSet("download-single", pflag.ExitOnError)
	flags.String("coords", "", "center point lat_lon_AGLfeet")
	flags.Float64("fov", 78.8, "camera diagonal field of view in degrees")
	flags.Float64Slice("aspect_ratio", []float64{4, 3}, "camera aspect ratio w,h")
	flags.String("map_type", "satellite", "map layer: satellite, roadmap or terrain")
	flags.String("data_dir", "dataset/Memphis", "output directory")
	flags.Int("res_level", 2, "zoom levels added above the footprint-fitting zoom")
	flags.Int("workers", 10, "concurrent tile downloads")
	writeGeoTIFF := flags.Bool("geotiff", false, "write a georeferenced .tif next to the capture")
	if err := flags.Parse(os.Args[1:]); err != nil {
		log.Fatalf("[Single] %v", err)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatalf("[Single] %v", err)
	}

	input, err := config.ParseCoords(cfg.Coords)
	if err != nil {
		log.Fatalf("[Single] %v", err)
	}
	if input.Box != nil {
		log.Fatal("[Single] coords must be a center point (lat_lon_AGLfeet); use download-raster for a bounding box")
	}
	if len(input.Points) != 1 {
		log.Fatalf("[Single] coords resolved to %d points; use download-list for coordinate files", len(input.Points))
	}
	point := input.Points[0]

	layer, err := maptiles.ParseLayer(cfg.MapType)
	if err != nil {
		log.Fatalf("[Single] %v", err)
	}
	cam := camera.Spec{
		DiagonalFOVDegrees: cfg.FOV,
		AspectW:            cfg.AspectRatio[0],
		AspectH:            cfg.AspectRatio[1],
	}
	fp, err := cam.FootprintAt(point.AltitudeAGLMeters)
	if err != nil {
		log.Fatalf("[Single] %v", err)
	}

	box, err := mission.BoxAround(point.Center, fp)
	if err != nil {
		log.Fatalf("[Single] %v", err)
	}
	baseZoom, _, _, err := maptiles.ZoomForBounds(box.TopLeft, box.BottomRight, maptiles.MaxZoom)
	if err != nil {
		log.Fatalf("[Single] %v", err)
	}
	zoom := maptiles.ApplyResolution(baseZoom, cfg.ResLevel)

	outDir, stitcher, cleanup, err := buildPipeline(cfg, layer)
	if err != nil {
		log.Fatalf("[Single] %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path, err := executor.SaveSingleCapture(ctx, stitcher, point.Center, fp, point.AltitudeAGLMeters, zoom, outDir, *writeGeoTIFF)
	if err != nil {
		log.Fatalf("[Single] %v", err)
	}
	log.Printf("[Single] Saved %s (zoom %d)", path, zoom)
}

// buildPipeline assembles the output directory, optional tile cache and
// stitcher for a single-capture run.
func buildPipeline(cfg *config.Config, layer maptiles.Layer) (string, *maptiles.Stitcher, func(), error) {
	outDir, err := dataset.SinglesDir(cfg.DataDir, string(layer))
	if err != nil {
		return "", nil, nil, err
	}

	var tileCache *cache.TileCache
	cleanup := func() {}
	if cfg.Cache.Enabled {
		tileCache, err = cache.NewTileCache(cfg.Cache.Dir, cfg.Cache.MaxSizeMB, cfg.Cache.TTLDays)
		if err != nil {
			return "", nil, nil, err
		}
		cleanup = func() { tileCache.Close() }
	}

	client := maptiles.NewClient(layer, tileCache, ratelimit.NewHandler(nil))
	return outDir, maptiles.NewStitcher(client, cfg.Workers), cleanup, nil
}
