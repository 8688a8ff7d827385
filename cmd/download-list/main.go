// Command download-list fetches one bird's-eye capture per row of a
// coordinate file.
//
//	download-list --coords targets.txt
//
// Each row is "lat lon AGLfeet"; blank lines and # comments are skipped.
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
	flags := pflag.NewFlagSet("download-list", pflag.ExitOnError)
	flags.String("coords", "", "path to a coordinate file of \"lat lon AGLfeet\" rows")
	flags.Float64("fov", 78.8, "camera diagonal field of view in degrees")
	flags.Float64Slice("aspect_ratio", []float64{4, 3}, "camera aspect ratio w,h")
	flags.String("map_type", "satellite", "map layer: satellite, roadmap or terrain")
	flags.String("data_dir", "dataset/Memphis", "output directory")
	flags.Int("res_level", 2, "zoom levels added above the footprint-fitting zoom")
	flags.Int("workers", 10, "concurrent tile downloads")
	writeGeoTIFF := flags.Bool("geotiff", false, "write a georeferenced .tif next to each capture")
	if err := flags.Parse(os.Args[1:]); err != nil {
		log.Fatalf("[List] %v", err)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatalf("[List] %v", err)
	}

	input, err := config.ParseCoords(cfg.Coords)
	if err != nil {
		log.Fatalf("[List] %v", err)
	}
	if input.Box != nil || len(input.Points) == 0 {
		log.Fatal("[List] coords must be a coordinate file of \"lat lon AGLfeet\" rows")
	}

	layer, err := maptiles.ParseLayer(cfg.MapType)
	if err != nil {
		log.Fatalf("[List] %v", err)
	}
	cam := camera.Spec{
		DiagonalFOVDegrees: cfg.FOV,
		AspectW:            cfg.AspectRatio[0],
		AspectH:            cfg.AspectRatio[1],
	}

	outDir, err := dataset.SinglesDir(cfg.DataDir, string(layer))
	if err != nil {
		log.Fatalf("[List] %v", err)
	}

	var tileCache *cache.TileCache
	if cfg.Cache.Enabled {
		tileCache, err = cache.NewTileCache(cfg.Cache.Dir, cfg.Cache.MaxSizeMB, cfg.Cache.TTLDays)
		if err != nil {
			log.Fatalf("[List] tile cache: %v", err)
		}
		defer tileCache.Close()
	}
	client := maptiles.NewClient(layer, tileCache, ratelimit.NewHandler(nil))
	stitcher := maptiles.NewStitcher(client, cfg.Workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	failed := 0
	for i, point := range input.Points {
		if ctx.Err() != nil {
			log.Printf("[List] Interrupted after %d of %d captures", i, len(input.Points))
			break
		}

		fp, err := cam.FootprintAt(point.AltitudeAGLMeters)
		if err != nil {
			log.Printf("[List] Row %d: %v", i+1, err)
			failed++
			continue
		}
		box, err := mission.BoxAround(point.Center, fp)
		if err != nil {
			log.Printf("[List] Row %d: %v", i+1, err)
			failed++
			continue
		}
		baseZoom, _, _, err := maptiles.ZoomForBounds(box.TopLeft, box.BottomRight, maptiles.MaxZoom)
		if err != nil {
			log.Printf("[List] Row %d: %v", i+1, err)
			failed++
			continue
		}
		zoom := maptiles.ApplyResolution(baseZoom, cfg.ResLevel)

		path, err := executor.SaveSingleCapture(ctx, stitcher, point.Center, fp, point.AltitudeAGLMeters, zoom, outDir, *writeGeoTIFF)
		if err != nil {
			log.Printf("[List] Row %d: %v", i+1, err)
			failed++
			continue
		}
		log.Printf("[List] %d/%d saved %s", i+1, len(input.Points), path)
	}

	if failed > 0 {
		log.Printf("[List] Done with %d of %d rows failed", failed, len(input.Points))
		if failed == len(input.Points) {
			os.Exit(1)
		}
	}
}
