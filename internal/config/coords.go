package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"terrainav/internal/geodesy"
)

// feetToMeters converts the CLI's altitude unit to the meters used
// everywhere else. Altitudes are in feet only at this boundary.
const feetToMeters = 0.3048

// BoxCoords is a parsed bounding-box mission input.
type BoxCoords struct {
	TopLeft           geodesy.LatLon
	BottomRight       geodesy.LatLon
	AltitudeAGLMeters float64
}

// PointCoords is a parsed single-capture input.
type PointCoords struct {
	Center            geodesy.LatLon
	AltitudeAGLMeters float64
}

// CoordsInput holds the result of parsing the coords argument. Exactly
// one of Box or Points is set.
type CoordsInput struct {
	Box    *BoxCoords
	Points []PointCoords
}

// ParseCoords interprets the coords argument, which takes one of three
// forms:
//
//  1. a path to a file of whitespace-separated rows "lat lon agl",
//  2. a bounding box "tlLat_tlLon_brLat_brLon_agl",
//  3. a center point "lat_lon_agl".
//
// Altitudes are above ground level in feet.
func ParseCoords(raw string) (*CoordsInput, error) {
	if raw == "" {
		return nil, fmt.Errorf("coords is empty")
	}

	if info, err := os.Stat(raw); err == nil && !info.IsDir() {
		points, err := parseCoordsFile(raw)
		if err != nil {
			return nil, err
		}
		return &CoordsInput{Points: points}, nil
	}

	parts := strings.Split(raw, "_")
	values := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("coords field %d (%q) is not a number: %w", i+1, part, err)
		}
		values[i] = v
	}

	switch len(values) {
	case 5:
		box := &BoxCoords{
			TopLeft:           geodesy.LatLon{Lat: values[0], Lon: values[1]},
			BottomRight:       geodesy.LatLon{Lat: values[2], Lon: values[3]},
			AltitudeAGLMeters: values[4] * feetToMeters,
		}
		return &CoordsInput{Box: box}, nil
	case 3:
		point := PointCoords{
			Center:            geodesy.LatLon{Lat: values[0], Lon: values[1]},
			AltitudeAGLMeters: values[2] * feetToMeters,
		}
		return &CoordsInput{Points: []PointCoords{point}}, nil
	default:
		return nil, fmt.Errorf("coords %q has %d fields, want 5 (bounding box) or 3 (center point)", raw, len(values))
	}
}

// parseCoordsFile reads "lat lon agl" rows. Blank lines and lines
// starting with # are skipped.
func parseCoordsFile(path string) ([]PointCoords, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open coords file: %w", err)
	}
	defer f.Close()

	var points []PointCoords
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("coords file %s line %d: %d fields, want 3 (lat lon agl)", path, lineNo, len(fields))
		}

		lat, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("coords file %s line %d: bad latitude: %w", path, lineNo, err)
		}
		lon, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("coords file %s line %d: bad longitude: %w", path, lineNo, err)
		}
		agl, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("coords file %s line %d: bad altitude: %w", path, lineNo, err)
		}

		points = append(points, PointCoords{
			Center:            geodesy.LatLon{Lat: lat, Lon: lon},
			AltitudeAGLMeters: agl * feetToMeters,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read coords file: %w", err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("coords file %s has no coordinate rows", path)
	}

	return points, nil
}
