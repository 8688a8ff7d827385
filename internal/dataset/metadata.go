package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"

	"terrainav/internal/mission"
)

// metaHeader matches the column order downstream training pipelines
// consume.
var metaHeader = []string{"img_names", "columns", "row", "Lat", "Lon", "Alt"}

// WriteMetaCSV writes the capture metadata for a mission. Every planned
// point is listed with its image filename, grid cell, coordinate and
// altitude, ordered by sequence.
func WriteMetaCSV(path string, m *mission.Mission, zoom int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metadata file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(metaHeader); err != nil {
		return fmt.Errorf("failed to write metadata header: %w", err)
	}

	for _, p := range m.Points {
		record := []string{
			CaptureFilename(p, zoom),
			strconv.Itoa(p.Col),
			strconv.Itoa(p.Row),
			FormatCoord(p.Lat),
			FormatCoord(p.Lon),
			FormatCoord(p.AltitudeAGLMeters),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write metadata record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush metadata: %w", err)
	}
	return nil
}

// ReadMetaCSV loads capture metadata back from disk, ordered by grid
// cell.
func ReadMetaCSV(path string) ([]CaptureInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("metadata file %s is empty", path)
	}

	infos := make([]CaptureInfo, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) != len(metaHeader) {
			return nil, fmt.Errorf("metadata record has %d fields, want %d", len(record), len(metaHeader))
		}
		info, err := ParseCaptureFilename(record[0])
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}

	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].Row != infos[j].Row {
			return infos[i].Row < infos[j].Row
		}
		return infos[i].Col < infos[j].Col
	})

	return infos, nil
}
