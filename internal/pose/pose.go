package pose

import "math"

// Precision is the number of decimal places a pose field is rounded to
// before it participates in a content key. Camera poses arrive with UI
// drag noise well below this precision.
const Precision = 6

const scale = 1e6

// Pose is a five-field virtual camera position.
type Pose struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Heading float64 `json:"heading"`
	Pitch   float64 `json:"pitch"`
	Fov     float64 `json:"fov"`
}

// round rounds to 6 decimal places, half away from zero (math.Round
// semantics). This is the documented tie-breaking rule for the pose key;
// two raw poses are the same miniature iff all five rounded fields match.
func round(v float64) float64 {
	return math.Round(v*scale) / scale
}

// Quantize returns the canonical content key for the pose.
func (p Pose) Quantize() Pose {
	return Pose{
		Lat:     round(p.Lat),
		Lng:     round(p.Lng),
		Heading: round(p.Heading),
		Pitch:   round(p.Pitch),
		Fov:     round(p.Fov),
	}
}
