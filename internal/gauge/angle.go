package gauge

import (
	"math"

	"gauge-telemetry/pkg/geometry"
)

// NeedleAngle returns the orientation of the needle tip around center in
// degrees, normalized to [0, 360). 0 points right and 90 points up. The
// endpoint farther from center is the tip; the other one is the hub.
// ok is false only when seg is nil.
func NeedleAngle(seg *geometry.Segment, center geometry.Point2D) (angle float64, ok bool) {
	if seg == nil {
		return 0, false
	}
	tip := seg.Tip(center)

	// Image rows grow downward, so Y is inverted to make "up" positive.
	dy := center.Y - tip.Y
	dx := tip.X - center.X

	return NormalizeAngle(math.Atan2(dy, dx) * 180 / math.Pi), true
}

// NormalizeAngle folds any angle in degrees into [0, 360).
func NormalizeAngle(deg float64) float64 {
	a := math.Mod(deg, 360)
	if a < 0 {
		a += 360
	}
	// -1e-15 + 360 rounds to 360.
	if a >= 360 {
		a = 0
	}
	return a
}

// ClockwiseDistance returns how many degrees a needle travels clockwise
// (decreasing angle) to get from `from` to `to`, in [0, 360).
func ClockwiseDistance(from, to float64) float64 {
	return NormalizeAngle(from - to)
}
