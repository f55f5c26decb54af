// Package vision locates a dial gauge and its needle in camera frames using
// OpenCV.
package vision

import (
	"gauge-telemetry/internal/gauge"
	"gauge-telemetry/pkg/colorutil"
)

// HSVRange is an inclusive HSV box in OpenCV's 8-bit convention.
type HSVRange struct {
	Lower colorutil.HSV
	Upper colorutil.HSV
}

// Contains reports whether c falls inside the box.
func (r HSVRange) Contains(c colorutil.HSV) bool {
	return c.H >= r.Lower.H && c.H <= r.Upper.H &&
		c.S >= r.Lower.S && c.S <= r.Upper.S &&
		c.V >= r.Lower.V && c.V <= r.Upper.V
}

// Params holds gauge and needle detection tuning.
type Params struct {
	// Preprocessing
	BlurKernel int
	BlurSigma  float64

	// Gauge face (Hough circles). Distances are fractions of frame width.
	HoughDP             float64
	CircleMinDistFrac   float64
	CircleMinRadiusFrac float64
	HoughParam1         float64 // Canny upper threshold
	HoughParam2         float64 // accumulator threshold

	// Needle region of interest, as a fraction of the detected radius.
	ROIFraction float64

	// Needle color classes.
	RedLow       HSVRange
	RedHigh      HSVRange
	Blue         HSVRange
	BlackMaxLuma float64

	// Needle segments (probabilistic Hough). Lengths are fractions of the radius.
	LineThreshold     int
	LineMinLengthFrac float64
	LineMaxGapFrac    float64

	Select gauge.SelectOptions
}

// DefaultParams returns detection parameters tuned for a single dial gauge
// filling a good part of a 720p frame.
func DefaultParams() Params {
	return Params{
		BlurKernel: 9,
		BlurSigma:  2,

		HoughDP:             1,
		CircleMinDistFrac:   0.25,
		CircleMinRadiusFrac: 0.15,
		HoughParam1:         80,
		HoughParam2:         90,

		// 0.8 keeps the rim shadow out of the needle mask.
		ROIFraction: 0.8,

		RedLow: HSVRange{
			Lower: colorutil.HSV{H: 0, S: 100, V: 100},
			Upper: colorutil.HSV{H: 10, S: 255, V: 255},
		},
		RedHigh: HSVRange{
			Lower: colorutil.HSV{H: 170, S: 100, V: 100},
			Upper: colorutil.HSV{H: 180, S: 255, V: 255},
		},
		Blue: HSVRange{
			Lower: colorutil.HSV{H: 100, S: 100, V: 50},
			Upper: colorutil.HSV{H: 130, S: 255, V: 255},
		},
		BlackMaxLuma: 100,

		LineThreshold:     15,
		LineMinLengthFrac: 0.2,
		LineMaxGapFrac:    0.1,

		Select: gauge.DefaultSelectOptions(),
	}
}

// WithLineTolerance returns a copy of p with the pivot distance tolerance
// for needle candidates set to px pixels.
func (p Params) WithLineTolerance(px float64) Params {
	if px > 0 {
		p.Select.LineTolerance = px
	}
	return p
}

// WithROIFraction returns a copy of p with a different needle mask radius.
func (p Params) WithROIFraction(f float64) Params {
	if f > 0 && f <= 1 {
		p.ROIFraction = f
	}
	return p
}

// WithCircleSensitivity returns a copy of p with a different minimum gauge
// radius. Lower values find smaller gauges at the cost of more false
// positives on round clutter.
func (p Params) WithCircleSensitivity(minRadiusFrac float64) Params {
	if minRadiusFrac > 0 {
		p.CircleMinRadiusFrac = minRadiusFrac
	}
	return p
}
