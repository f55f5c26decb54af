// Package geometry provides basic geometric types used throughout the application.
package geometry

import (
	"image"
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Sub returns the difference of two points.
func (p Point2D) Sub(other Point2D) Point2D {
	return Point2D{X: p.X - other.X, Y: p.Y - other.Y}
}

// Image rounds to the nearest pixel for drawing.
func (p Point2D) Image() image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}

// PointInt represents a 2D point with integer coordinates.
type PointInt struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ToFloat converts to Point2D.
func (p PointInt) ToFloat() Point2D {
	return Point2D{X: float64(p.X), Y: float64(p.Y)}
}

// Image converts to an image.Point for drawing.
func (p PointInt) Image() image.Point {
	return image.Pt(p.X, p.Y)
}

// RectInt represents a rectangle with integer coordinates.
type RectInt struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Image converts to an image.Rectangle.
func (r RectInt) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Circle is a detected circle in pixel coordinates. It is only meaningful
// for the frame that produced it.
type Circle struct {
	X      int `json:"center_x"`
	Y      int `json:"center_y"`
	Radius int `json:"radius"`
}

// Center returns the circle center.
func (c Circle) Center() Point2D {
	return Point2D{X: float64(c.X), Y: float64(c.Y)}
}

// Bounds returns the square enclosing the circle.
func (c Circle) Bounds() RectInt {
	return RectInt{X: c.X - c.Radius, Y: c.Y - c.Radius, Width: 2 * c.Radius, Height: 2 * c.Radius}
}

// PointAt returns the pixel position at distance r from the center along the
// given angle. Angles follow the gauge convention: 0 points right, 90 points
// up, measured counter-clockwise, so image Y is inverted.
func (c Circle) PointAt(angleDeg, r float64) PointInt {
	rad := angleDeg * math.Pi / 180
	return PointInt{
		X: c.X + int(math.Round(r*math.Cos(rad))),
		Y: c.Y - int(math.Round(r*math.Sin(rad))),
	}
}

// Segment is a straight line segment between two pixel endpoints.
type Segment struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// P1 returns the first endpoint.
func (s Segment) P1() Point2D {
	return Point2D{X: float64(s.X1), Y: float64(s.Y1)}
}

// P2 returns the second endpoint.
func (s Segment) P2() Point2D {
	return Point2D{X: float64(s.X2), Y: float64(s.Y2)}
}

// Length returns the segment length in pixels.
func (s Segment) Length() float64 {
	return s.P1().Distance(s.P2())
}

// LineDistance returns the perpendicular distance from p to the infinite
// line through the segment. A degenerate segment has no direction, so the
// result is +Inf.
func (s Segment) LineDistance(p Point2D) float64 {
	dx := float64(s.X2 - s.X1)
	dy := float64(s.Y2 - s.Y1)
	den := math.Sqrt(dx*dx + dy*dy)
	if den == 0 {
		return math.Inf(1)
	}
	num := math.Abs(dy*p.X - dx*p.Y + float64(s.X2*s.Y1) - float64(s.Y2*s.X1))
	return num / den
}

// NearFar returns the endpoint distances from p, nearer first.
func (s Segment) NearFar(p Point2D) (near, far float64) {
	d1 := s.P1().Distance(p)
	d2 := s.P2().Distance(p)
	if d1 <= d2 {
		return d1, d2
	}
	return d2, d1
}

// Tip returns the endpoint farther from p. Ties resolve to the second
// endpoint.
func (s Segment) Tip(p Point2D) Point2D {
	if s.P1().Distance(p) > s.P2().Distance(p) {
		return s.P1()
	}
	return s.P2()
}
