package gauge

import (
	"fmt"
	"math"
)

// Profile is the calibration of a reader: which needle color to isolate and
// how needle angles map onto physical values.
//
// MinAngle is where the needle rests at MinValue and MaxAngle where it sits
// at MaxValue. The needle always travels clockwise from MinAngle to MaxAngle,
// so MinValue > MaxValue is allowed.
type Profile struct {
	NeedleColor NeedleColor `json:"needle_color"`
	MinAngle    float64     `json:"min_angle"`
	MaxAngle    float64     `json:"max_angle"`
	MinValue    float64     `json:"min_val"`
	MaxValue    float64     `json:"max_val"`
}

// DefaultProfile returns the calibration used when nothing has been
// persisted yet.
func DefaultProfile() Profile {
	return Profile{
		NeedleColor: NeedleRed,
		MinAngle:    190.6,
		MaxAngle:    310.6,
		MinValue:    0,
		MaxValue:    100,
	}
}

// Validate checks the profile invariants.
func (p Profile) Validate() error {
	if !p.NeedleColor.Valid() {
		return fmt.Errorf("invalid needle color %d", int(p.NeedleColor))
	}
	for name, a := range map[string]float64{"min_angle": p.MinAngle, "max_angle": p.MaxAngle} {
		if math.IsNaN(a) || a < 0 || a >= 360 {
			return fmt.Errorf("%s must be in [0, 360), got %v", name, a)
		}
	}
	for name, v := range map[string]float64{"min_val": p.MinValue, "max_val": p.MaxValue} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be a finite number, got %v", name, v)
		}
	}
	return nil
}

// Span returns the clockwise angular distance from MinAngle to MaxAngle.
func (p Profile) Span() float64 {
	return ClockwiseDistance(p.MinAngle, p.MaxAngle)
}
