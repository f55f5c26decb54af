package gauge

import "math"

// MapAngle converts a needle angle into a physical value under p.
//
// The dial sweeps clockwise from p.MinAngle (p.MinValue) to p.MaxAngle
// (p.MaxValue). Angles outside that sweep lie in the mechanical dead zone
// and clamp to whichever bound is nearer: the first half of the dead zone
// past the ceiling reads MaxValue, the rest reads MinValue.
func MapAngle(angle float64, p Profile) float64 {
	total := p.Span()
	current := ClockwiseDistance(p.MinAngle, angle)

	if total == 0 {
		return p.MinValue
	}

	if current > total {
		deadZone := 360 - total
		overshoot := current - total
		if overshoot < deadZone/2 {
			return p.MaxValue
		}
		return p.MinValue
	}

	return Round1(p.MinValue + (current/total)*(p.MaxValue-p.MinValue))
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
