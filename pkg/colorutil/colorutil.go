// Package colorutil provides shared color utilities for overlays and needle
// color classification.
package colorutil

import (
	"image/color"
	"math"
)

// Overlay colors drawn onto annotated frames.
var (
	Black  = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Red    = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	Green  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	Blue   = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	Yellow = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	Cyan   = color.RGBA{R: 0, G: 255, B: 255, A: 255}
)

// HSV is a color in OpenCV's 8-bit HSV convention: H 0-180, S 0-255, V 0-255.
type HSV struct {
	H, S, V float64
}

// RGBToHSV converts RGB (0-255) to HSV (OpenCV convention: H 0-180, S 0-255, V 0-255).
func RGBToHSV(r, g, b float64) HSV {
	r /= 255.0
	g /= 255.0
	b /= 255.0

	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	diff := maxC - minC

	var h, s float64
	if maxC > 0 {
		s = (diff / maxC) * 255.0
	}

	switch {
	case diff == 0:
		h = 0
	case maxC == r:
		h = 60 * math.Mod((g-b)/diff, 6)
	case maxC == g:
		h = 60 * ((b-r)/diff + 2)
	default:
		h = 60 * ((r-g)/diff + 4)
	}
	if h < 0 {
		h += 360
	}

	return HSV{H: h / 2, S: s, V: maxC * 255.0}
}

// FromRGBA converts a color.RGBA to HSV.
func FromRGBA(c color.RGBA) HSV {
	return RGBToHSV(float64(c.R), float64(c.G), float64(c.B))
}

// Luma returns the BT.601 grayscale value OpenCV uses for BGR→GRAY.
func Luma(c color.RGBA) float64 {
	return 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
}
