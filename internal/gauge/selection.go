package gauge

import "gauge-telemetry/pkg/geometry"

// SelectOptions tunes needle candidate filtering.
type SelectOptions struct {
	// LineTolerance is the largest perpendicular distance, in pixels,
	// between the gauge center and a candidate's infinite line.
	LineTolerance float64
	// HubFraction bounds how far from the center, as a fraction of the
	// radius, the nearer endpoint may lie.
	HubFraction float64
}

// DefaultSelectOptions returns the standard filter settings.
func DefaultSelectOptions() SelectOptions {
	return SelectOptions{
		LineTolerance: 15,
		HubFraction:   0.3,
	}
}

// SelectNeedle picks the needle among line segment candidates found inside
// the gauge face. A candidate survives only if its line passes within
// LineTolerance of the center and its nearer endpoint sits within
// HubFraction of the radius. The survivor whose far endpoint reaches
// furthest wins; on ties the earlier candidate is kept.
func SelectNeedle(candidates []geometry.Segment, circle geometry.Circle, opts SelectOptions) (geometry.Segment, bool) {
	center := circle.Center()
	hubLimit := opts.HubFraction * float64(circle.Radius)

	var best geometry.Segment
	bestReach := -1.0
	found := false

	for _, seg := range candidates {
		if seg.LineDistance(center) > opts.LineTolerance {
			continue
		}
		near, far := seg.NearFar(center)
		if near > hubLimit {
			continue
		}
		if far > bestReach {
			best = seg
			bestReach = far
			found = true
		}
	}

	return best, found
}
