package vision

import (
	"math"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"gauge-telemetry/internal/gauge"
	"gauge-telemetry/pkg/colorutil"
	"gauge-telemetry/pkg/geometry"
)

// maskFunc builds a binary needle mask (255 = needle) from a BGR frame,
// restricted to the circular roi mask.
type maskFunc func(frame, roi gocv.Mat, p Params) gocv.Mat

// needleMasks dispatches needle isolation by color class.
var needleMasks = map[gauge.NeedleColor]maskFunc{
	gauge.NeedleRed:   redMask,
	gauge.NeedleBlack: blackMask,
	gauge.NeedleBlue:  blueMask,
}

// DetectNeedle isolates the needle of the given color inside the gauge face
// and returns the selected segment.
func DetectNeedle(frame gocv.Mat, circle geometry.Circle, c gauge.NeedleColor, p Params) (geometry.Segment, bool) {
	candidates := NeedleCandidates(frame, circle, c, p)
	seg, ok := gauge.SelectNeedle(candidates, circle, p.Select)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"color":      c,
			"candidates": len(candidates),
		}).Trace("no needle survived filtering")
	}
	return seg, ok
}

// NeedleCandidates returns every line segment found in the needle mask, in
// detector order, before pivot filtering.
func NeedleCandidates(frame gocv.Mat, circle geometry.Circle, c gauge.NeedleColor, p Params) []geometry.Segment {
	if frame.Empty() || circle.Radius <= 0 {
		return nil
	}
	build, ok := needleMasks[c]
	if !ok {
		return nil
	}

	roi := CircleMask(frame.Rows(), frame.Cols(), circle, p.ROIFraction)
	defer roi.Close()

	mask := build(frame, roi, p)
	defer mask.Close()

	return findSegments(mask, float64(circle.Radius), p)
}

// NeedleMask returns the binary mask DetectNeedle runs line detection on.
// The caller must close the result.
func NeedleMask(frame gocv.Mat, circle geometry.Circle, c gauge.NeedleColor, p Params) gocv.Mat {
	build, ok := needleMasks[c]
	if !ok || frame.Empty() {
		return gocv.NewMat()
	}
	roi := CircleMask(frame.Rows(), frame.Cols(), circle, p.ROIFraction)
	defer roi.Close()
	return build(frame, roi, p)
}

// CircleMask returns a single-channel mask with a filled disc of
// fraction*radius at the circle center.
func CircleMask(rows, cols int, circle geometry.Circle, fraction float64) gocv.Mat {
	mask := gocv.Zeros(rows, cols, gocv.MatTypeCV8U)
	r := int(float64(circle.Radius) * fraction)
	gocv.Circle(&mask, circle.Center().Image(), r, colorutil.White, -1)
	return mask
}

func redMask(frame, roi gocv.Mat, p Params) gocv.Mat {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)

	low := hsvInRange(hsv, p.RedLow)
	defer low.Close()
	high := hsvInRange(hsv, p.RedHigh)
	defer high.Close()

	both := gocv.NewMat()
	defer both.Close()
	gocv.BitwiseOr(low, high, &both)

	return intersect(both, roi)
}

func blueMask(frame, roi gocv.Mat, p Params) gocv.Mat {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)

	blue := hsvInRange(hsv, p.Blue)
	defer blue.Close()

	return intersect(blue, roi)
}

func blackMask(frame, roi gocv.Mat, p Params) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	dark := gocv.NewMat()
	defer dark.Close()
	gocv.Threshold(gray, &dark, float32(p.BlackMaxLuma), 255, gocv.ThresholdBinaryInv)

	return intersect(dark, roi)
}

func hsvInRange(hsv gocv.Mat, r HSVRange) gocv.Mat {
	mask := gocv.NewMat()
	gocv.InRangeWithScalar(hsv,
		gocv.NewScalar(r.Lower.H, r.Lower.S, r.Lower.V, 0),
		gocv.NewScalar(r.Upper.H, r.Upper.S, r.Upper.V, 0),
		&mask)
	return mask
}

func intersect(mask, roi gocv.Mat) gocv.Mat {
	out := gocv.NewMat()
	gocv.BitwiseAnd(mask, roi, &out)
	return out
}

// findSegments runs the probabilistic Hough transform over a binary mask.
// Minimum length and gap tolerance scale with the gauge radius.
func findSegments(mask gocv.Mat, radius float64, p Params) []geometry.Segment {
	lines := gocv.NewMat()
	defer lines.Close()

	gocv.HoughLinesPWithParams(mask, &lines,
		1, float32(math.Pi/180), p.LineThreshold,
		float32(p.LineMinLengthFrac*radius), float32(p.LineMaxGapFrac*radius))

	if lines.Empty() {
		return nil
	}

	segs := make([]geometry.Segment, 0, lines.Rows())
	for i := 0; i < lines.Rows(); i++ {
		v := lines.GetVeciAt(i, 0)
		if len(v) < 4 {
			continue
		}
		segs = append(segs, geometry.Segment{
			X1: int(v[0]), Y1: int(v[1]),
			X2: int(v[2]), Y2: int(v[3]),
		})
	}
	return segs
}
