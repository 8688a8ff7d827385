// Command download-raster plans a raster survey mission over a bounding
// box and downloads a bird's-eye capture for every point of the grid.
//
//	download-raster --coords 35.22_-90.07_35.06_-89.73_400 --overlap 0.3
//
// The coords argument is TLlat_TLlon_BRlat_BRlon_AGLfeet. Interrupted
// runs resume: captures already on disk are skipped.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"terrainav/internal/cache"
	"terrainav/internal/camera"
	"terrainav/internal/config"
	"terrainav/internal/dataset"
	"terrainav/internal/executor"
	"terrainav/internal/maptiles"
	"terrainav/internal/metrics"
	"terrainav/internal/mission"
	"terrainav/internal/ratelimit"
)

func main() {
	flags := pflag.NewFlagSet("download-raster", pflag.ExitOnError)
	flags.String("coords", "", "bounding box TLlat_TLlon_BRlat_BRlon_AGLfeet")
	flags.Float64("fov", 78.8, "camera diagonal field of view in degrees")
	flags.Float64Slice("aspect_ratio", []float64{4, 3}, "camera aspect ratio w,h")
	flags.String("map_type", "satellite", "map layer: satellite, roadmap or terrain")
	flags.String("data_dir", "dataset/Memphis", "dataset output directory")
	flags.Float64("overlap", 0, "fractional overlap between adjacent captures [0,1)")
	flags.Int("res_level", 2, "zoom levels added above the footprint-fitting zoom")
	flags.Int("workers", 10, "concurrent capture downloads")
	assumeYes := flags.BoolP("yes", "y", false, "skip the confirmation prompt")
	writeGeoTIFF := flags.Bool("geotiff", false, "write a georeferenced .tif next to each capture")
	if err := flags.Parse(os.Args[1:]); err != nil {
		log.Fatalf("[Raster] %v", err)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatalf("[Raster] %v", err)
	}

	input, err := config.ParseCoords(cfg.Coords)
	if err != nil {
		log.Fatalf("[Raster] %v", err)
	}
	if input.Box == nil {
		log.Fatal("[Raster] coords must be a bounding box (TLlat_TLlon_BRlat_BRlon_AGLfeet); use download-single for a center point")
	}

	box, err := mission.NewBoundingBox(input.Box.TopLeft, input.Box.BottomRight)
	if err != nil {
		log.Fatalf("[Raster] %v", err)
	}
	cam := camera.Spec{
		DiagonalFOVDegrees: cfg.FOV,
		AspectW:            cfg.AspectRatio[0],
		AspectH:            cfg.AspectRatio[1],
	}
	m, err := mission.Plan(box, cam, mission.FlightParams{
		AltitudeAGLMeters: input.Box.AltitudeAGLMeters,
		OverlapFraction:   cfg.Overlap,
	})
	if err != nil {
		log.Fatalf("[Raster] %v", err)
	}

	layer, err := maptiles.ParseLayer(cfg.MapType)
	if err != nil {
		log.Fatalf("[Raster] %v", err)
	}

	// One capture zoom for the whole mission, derived from a footprint
	// box at the mission center the same way every point's box is built.
	sampleBox, err := mission.BoxAround(box.Center(), m.Footprint)
	if err != nil {
		log.Fatalf("[Raster] %v", err)
	}
	baseZoom, pxW, pxH, err := maptiles.ZoomForBounds(sampleBox.TopLeft, sampleBox.BottomRight, maptiles.MaxZoom)
	if err != nil {
		log.Fatalf("[Raster] %v", err)
	}
	zoom := maptiles.ApplyResolution(baseZoom, cfg.ResLevel)
	// Pixel dimensions double with each added zoom level.
	pxW <<= uint(zoom - baseZoom)
	pxH <<= uint(zoom - baseZoom)

	stats := dataset.ComputeGroundStats(m, zoom, pxW, pxH)
	printPlan(m, stats, string(layer))

	if !*assumeYes && !confirm(os.Stdin) {
		fmt.Println("Aborted.")
		return
	}

	layout := dataset.NewLayout(cfg.DataDir, string(layer), m)
	if err := layout.Ensure(); err != nil {
		log.Fatalf("[Raster] %v", err)
	}
	if err := dataset.WriteMetaCSV(layout.MetaCSVPath(), m, zoom); err != nil {
		log.Fatalf("[Raster] %v", err)
	}

	var tileCache *cache.TileCache
	if cfg.Cache.Enabled {
		tileCache, err = cache.NewTileCache(cfg.Cache.Dir, cfg.Cache.MaxSizeMB, cfg.Cache.TTLDays)
		if err != nil {
			log.Fatalf("[Raster] tile cache: %v", err)
		}
		defer tileCache.Close()
	}

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Addr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := maptiles.NewClient(layer, tileCache, ratelimit.NewHandler(nil))
	stitcher := maptiles.NewStitcher(client, cfg.Workers)

	completed, err := dataset.ScanCompleted(layout.RasterDir())
	if err != nil {
		log.Fatalf("[Raster] resume scan: %v", err)
	}
	if len(completed) > 0 {
		log.Printf("[Raster] Resuming: %d of %d captures already on disk", len(completed), len(m.Points))
	}

	saver := &executor.CaptureSaver{
		Stitcher:  stitcher,
		Footprint: m.Footprint,
		Zoom:      zoom,
		RasterDir: layout.RasterDir(),
		GeoTIFF:   *writeGeoTIFF,
	}

	total := len(m.Points)
	report, runErr := executor.Run(ctx, m, saver, executor.Options{
		Workers:   cfg.Workers,
		Completed: completed,
		OnProgress: func(done, _ int) {
			if done%25 == 0 || done == total {
				log.Printf("[Raster] Progress: %d/%d", done, total)
			}
		},
	})

	if err := executor.SaveOverview(ctx, stitcher, m, layout.OverviewPath()); err != nil {
		log.Printf("[Raster] Overview skipped: %v", err)
	}

	manifest := dataset.NewManifest(m, string(layer), cfg.ResLevel, stats)
	manifest.Report = report
	if path, err := manifest.Write(layout.LogsDir()); err != nil {
		log.Printf("[Raster] Failed to write manifest: %v", err)
	} else {
		log.Printf("[Raster] Manifest written to %s", path)
	}

	log.Printf("[Raster] Done: %d succeeded, %d failed, %d skipped",
		report.Succeeded, report.Failed, report.Skipped)
	if runErr != nil {
		log.Printf("[Raster] Run ended early: %v", runErr)
	}
	if report.Succeeded == 0 && report.Failed > 0 {
		os.Exit(1)
	}
}

func printPlan(m *mission.Mission, stats dataset.GroundStats, layer string) {
	fmt.Printf("Mission plan (%s)\n", layer)
	fmt.Printf("  Grid:      %d rows x %d cols = %d captures\n", m.Rows, m.Cols, len(m.Points))
	fmt.Printf("  Footprint: %.1f m x %.1f m per capture (%d x %d px, zoom %d)\n",
		stats.ImageWidthMeters, stats.ImageHeightMeters,
		stats.ImageWidthPixels, stats.ImageHeightPixels, stats.Zoom)
	fmt.Printf("  Coverage:  %.1f m x %.1f m (%.3f km2)\n",
		stats.MapWidthMeters, stats.MapHeightMeters, stats.MapAreaM2/1e6)
	fmt.Printf("  Steps:     %.1f m east, %.1f m north (overlap %g)\n",
		m.Steps.East, m.Steps.North, m.Flight.OverlapFraction)
}

func confirm(in *os.File) bool {
	fmt.Print("Proceed with download? [y/N]: ")
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	log.Printf("[Metrics] Listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("[Metrics] Server stopped: %v", err)
	}
}
