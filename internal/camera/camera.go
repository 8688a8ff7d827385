package camera

import (
	"fmt"
	"math"
)

// Spec describes the virtual camera carried by the simulated aircraft.
// The diagonal field of view together with the aspect ratio fully
// determines the per-axis view angles; no focal length is needed.
type Spec struct {
	// DiagonalFOVDegrees is the full diagonal field of view. Must be in
	// the open interval (0, 180).
	DiagonalFOVDegrees float64 `json:"diagonalFovDegrees"`

	// AspectW and AspectH are the width:height aspect ratio components.
	// Both must be positive; only their ratio matters.
	AspectW float64 `json:"aspectW"`
	AspectH float64 `json:"aspectH"`
}

// Footprint is the ground rectangle visible in a single capture, in the
// same linear unit as the altitude it was derived from (meters throughout
// this codebase).
type Footprint struct {
	GroundWidth  float64 `json:"groundWidth"`
	GroundHeight float64 `json:"groundHeight"`
}

// Validate checks the camera parameters.
func (s Spec) Validate() error {
	if s.DiagonalFOVDegrees <= 0 || s.DiagonalFOVDegrees >= 180 {
		return fmt.Errorf("diagonal FOV %g° out of range (0, 180)", s.DiagonalFOVDegrees)
	}
	if s.AspectW <= 0 || s.AspectH <= 0 {
		return fmt.Errorf("aspect ratio components must be positive, got %g:%g", s.AspectW, s.AspectH)
	}
	return nil
}

// FootprintAt computes the ground footprint at the given altitude above
// ground level (meters).
//
// The diagonal ground length is 2·alt·tan(fov/2); it is distributed to the
// two axes as the legs of a right triangle whose hypotenuse is the
// diagonal and whose legs scale as AspectW:AspectH.
func (s Spec) FootprintAt(altitudeAGLMeters float64) (Footprint, error) {
	if err := s.Validate(); err != nil {
		return Footprint{}, err
	}
	if altitudeAGLMeters <= 0 {
		return Footprint{}, fmt.Errorf("altitude AGL must be positive, got %g", altitudeAGLMeters)
	}

	halfFOVRad := s.DiagonalFOVDegrees / 2 * math.Pi / 180.0
	diagonal := 2 * altitudeAGLMeters * math.Tan(halfFOVRad)
	hyp := math.Hypot(s.AspectW, s.AspectH)

	return Footprint{
		GroundWidth:  diagonal * s.AspectW / hyp,
		GroundHeight: diagonal * s.AspectH / hyp,
	}, nil
}

// Diagonal returns the diagonal ground length of the footprint.
func (f Footprint) Diagonal() float64 {
	return math.Hypot(f.GroundWidth, f.GroundHeight)
}

// AreaM2 returns the footprint area in square meters.
func (f Footprint) AreaM2() float64 {
	return f.GroundWidth * f.GroundHeight
}
