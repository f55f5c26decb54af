package vision

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"gauge-telemetry/internal/gauge"
	"gauge-telemetry/pkg/colorutil"
	"gauge-telemetry/pkg/geometry"
)

// Overlay is everything drawn onto an annotated frame.
type Overlay struct {
	Circle *geometry.Circle
	Needle *geometry.Segment
	Angle  *float64
	Value  *float64
	Unit   string

	// Calibrating switches the readout from value to live angle.
	Calibrating bool
	Prompt      string

	// Reference draws rays at the profile's floor and ceiling angles.
	Reference bool
	Profile   gauge.Profile
}

// Annotate draws o onto dst in place. dst must be a private copy of the
// frame.
func Annotate(dst *gocv.Mat, o Overlay) {
	if dst.Empty() {
		return
	}

	if o.Prompt != "" {
		putLabel(dst, o.Prompt, image.Pt(10, 30), 0.7, colorutil.Yellow, 2)
	}

	if o.Circle == nil {
		putLabel(dst, "No gauge", image.Pt(10, dst.Rows()-20), 0.8, colorutil.Red, 2)
		return
	}
	c := *o.Circle
	center := c.Center().Image()

	gocv.Circle(dst, center, c.Radius, colorutil.Green, 3)
	gocv.Circle(dst, center, 5, colorutil.Red, -1)

	if o.Reference {
		drawRay(dst, c, o.Profile.MinAngle, "MIN", colorutil.Cyan)
		drawRay(dst, c, o.Profile.MaxAngle, "MAX", colorutil.Blue)
	}

	if o.Needle != nil {
		gocv.Line(dst, image.Pt(o.Needle.X1, o.Needle.Y1), image.Pt(o.Needle.X2, o.Needle.Y2), colorutil.Red, 3)
	}

	textAt := image.Pt(c.X-40, c.Y+c.Radius/2)
	switch {
	case o.Calibrating && o.Angle != nil:
		putLabel(dst, fmt.Sprintf("%.1f deg", *o.Angle), textAt, 1.2, colorutil.Yellow, 3)
	case o.Value != nil:
		putLabel(dst, fmt.Sprintf("%.1f %s", *o.Value, o.Unit), textAt, 1.5, colorutil.Red, 3)
	}
}

func drawRay(dst *gocv.Mat, c geometry.Circle, angle float64, label string, col color.RGBA) {
	end := c.PointAt(angle, float64(c.Radius))
	gocv.Line(dst, c.Center().Image(), end.Image(), col, 2)
	putLabel(dst, label, image.Pt(end.X-20, end.Y), 0.5, col, 1)
}

func putLabel(dst *gocv.Mat, text string, at image.Point, scale float64, col color.RGBA, thickness int) {
	gocv.PutText(dst, text, at, gocv.FontHersheySimplex, scale, col, thickness)
}
