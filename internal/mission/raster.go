package mission

import (
	"fmt"
	"log"
	"math"

	"terrainav/internal/camera"
	"terrainav/internal/geodesy"
)

// PlanarExtentWarnMeters is the box extent beyond which the equirectangular
// approximation starts to visibly distort spacing. Crossing it is logged,
// not rejected: large boxes plan fine, their rows just drift slightly.
const PlanarExtentWarnMeters = 100_000

// PlanSteps derives the capture-to-capture step distances from a footprint
// and the desired overlap fraction. An overlap of 0 tiles edge to edge; an
// overlap at or above 1 would collapse the step and never terminate the
// raster, so it is rejected.
func PlanSteps(fp camera.Footprint, overlapFraction float64) (Steps, error) {
	if overlapFraction < 0 || overlapFraction >= 1 {
		return Steps{}, fmt.Errorf("%w: %g not in [0, 1)", ErrInvalidOverlap, overlapFraction)
	}
	return Steps{
		East:  fp.GroundWidth * (1 - overlapFraction),
		North: fp.GroundHeight * (1 - overlapFraction),
	}, nil
}

// Plan generates the full raster survey for a bounding box: footprint,
// step sizes and the ordered boustrophedon capture sequence.
//
// The traversal runs row by row from the northern edge southward,
// alternating direction each row (even rows west→east, odd rows
// east→west) so the aircraft never crosses the whole box between rows.
// The last row and column are clamped exactly onto the southern and
// eastern edges so the far corner is itself captured. Identical inputs
// always produce an identical sequence.
func Plan(box BoundingBox, cam camera.Spec, flight FlightParams) (*Mission, error) {
	fp, err := cam.FootprintAt(flight.AltitudeAGLMeters)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}

	steps, err := PlanSteps(fp, flight.OverlapFraction)
	if err != nil {
		return nil, err
	}

	nsMeters, ewMeters := box.ExtentMeters()
	if nsMeters > PlanarExtentWarnMeters || ewMeters > PlanarExtentWarnMeters {
		log.Printf("[Mission] box extent %.0f x %.0f m exceeds %.0f m; planar spacing will drift",
			ewMeters, nsMeters, float64(PlanarExtentWarnMeters))
	}

	rows := gridCount(nsMeters, fp.GroundHeight, steps.North)
	cols := gridCount(ewMeters, fp.GroundWidth, steps.East)
	refLat := box.Center().Lat

	points := make([]CapturePoint, 0, rows*cols)
	seq := 0
	for r := 0; r < rows; r++ {
		dNorth := -float64(r) * steps.North
		if dNorth < -nsMeters {
			dNorth = -nsMeters // clamp the last row onto the southern edge
		}

		for k := 0; k < cols; k++ {
			c := k
			if r%2 == 1 {
				c = cols - 1 - k
			}

			dEast := float64(c) * steps.East
			if dEast > ewMeters {
				dEast = ewMeters // clamp the last column onto the eastern edge
			}

			loc := geodesy.Offset(box.TopLeft, dNorth, dEast, refLat)
			points = append(points, CapturePoint{
				SequenceIndex:     seq,
				Row:               r,
				Col:               c,
				Lat:               loc.Lat,
				Lon:               loc.Lon,
				AltitudeAGLMeters: flight.AltitudeAGLMeters,
				Yaw:               0,
			})
			seq++
		}
	}

	return &Mission{
		Box:       box,
		Camera:    cam,
		Flight:    flight,
		Footprint: fp,
		Steps:     steps,
		Rows:      rows,
		Cols:      cols,
		Points:    points,
	}, nil
}

// gridCount returns the number of capture positions along one axis.
// A degenerate axis (extent within a single footprint) takes exactly one
// capture; otherwise one capture per step plus one more so the far edge is
// captured rather than merely approached.
func gridCount(extentMeters, footprintMeters, stepMeters float64) int {
	if extentMeters <= footprintMeters {
		return 1
	}
	return int(math.Ceil(extentMeters/stepMeters)) + 1
}
