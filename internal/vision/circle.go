package vision

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"gauge-telemetry/pkg/geometry"
)

// Preprocess converts a BGR frame to a blurred grayscale image suitable for
// circle detection. The caller must close the result.
func Preprocess(frame gocv.Mat, p Params) gocv.Mat {
	gray := gocv.NewMat()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	k := p.BlurKernel
	if k < 1 {
		k = 1
	}
	if k%2 == 0 {
		k++
	}
	gocv.GaussianBlur(gray, &gray, image.Point{k, k}, p.BlurSigma, p.BlurSigma, gocv.BorderDefault)
	return gray
}

// FindCircle runs the gauge face detector on a preprocessed grayscale image.
// The first candidate in detector order is taken as the strongest; no
// rescoring is done here.
func FindCircle(gray gocv.Mat, p Params) (geometry.Circle, bool) {
	if gray.Empty() {
		return geometry.Circle{}, false
	}
	w := float64(gray.Cols())

	circles := gocv.NewMat()
	defer circles.Close()

	gocv.HoughCirclesWithParams(gray, &circles, gocv.HoughGradient,
		p.HoughDP, p.CircleMinDistFrac*w,
		p.HoughParam1, p.HoughParam2,
		int(p.CircleMinRadiusFrac*w), 0)

	if circles.Empty() || circles.Cols() == 0 {
		return geometry.Circle{}, false
	}

	return geometry.Circle{
		X:      int(math.Round(float64(circles.GetFloatAt(0, 0)))),
		Y:      int(math.Round(float64(circles.GetFloatAt(0, 1)))),
		Radius: int(math.Round(float64(circles.GetFloatAt(0, 2)))),
	}, true
}

// LocateGauge finds the gauge face in a BGR frame.
func LocateGauge(frame gocv.Mat, p Params) (geometry.Circle, bool) {
	if frame.Empty() {
		return geometry.Circle{}, false
	}
	gray := Preprocess(frame, p)
	defer gray.Close()
	return FindCircle(gray, p)
}
