package vision

import (
	"image/color"

	"gauge-telemetry/internal/gauge"
	"gauge-telemetry/pkg/colorutil"
)

// ClassifyPixel reports which needle color class a pixel belongs to under
// p's thresholds, using the same HSV boxes and luminance cutoff the needle
// masks use. Saturated classes win over black.
func ClassifyPixel(c color.RGBA, p Params) (gauge.NeedleColor, bool) {
	hsv := colorutil.FromRGBA(c)

	switch {
	case p.RedLow.Contains(hsv) || p.RedHigh.Contains(hsv):
		return gauge.NeedleRed, true
	case p.Blue.Contains(hsv):
		return gauge.NeedleBlue, true
	case colorutil.Luma(c) <= p.BlackMaxLuma:
		return gauge.NeedleBlack, true
	}
	return gauge.NeedleRed, false
}
