package nn

import (
	"github.com/chewxy/math32"
)

// Point is an integer pixel coordinate
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) Distance(b Point) float32 {
	return math32.Sqrt(float32((p.X-b.X)*(p.X-b.X) + (p.Y-b.Y)*(p.Y-b.Y)))
}

func (p Point) Float() PointF {
	return PointF{X: float32(p.X), Y: float32(p.Y)}
}

// PointF is a continuous coordinate, used for display space and for intermediate rotation results
type PointF struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

func (p PointF) Add(b PointF) PointF {
	return PointF{X: p.X + b.X, Y: p.Y + b.Y}
}

func (p PointF) Sub(b PointF) PointF {
	return PointF{X: p.X - b.X, Y: p.Y - b.Y}
}

func (p PointF) Scale(s float32) PointF {
	return PointF{X: p.X * s, Y: p.Y * s}
}

func (p PointF) Distance(b PointF) float32 {
	return math32.Hypot(p.X-b.X, p.Y-b.Y)
}

// Truncate converts to integer pixels by truncating toward zero
func (p PointF) Truncate() Point {
	return Point{X: int(p.X), Y: int(p.Y)}
}

// Round converts to integer pixels by rounding to the nearest integer
func (p PointF) Round() Point {
	return Point{X: int(math32.Round(p.X)), Y: int(math32.Round(p.Y))}
}

// Rotate rotates the vector p about the origin by 'degrees'.
// Positive angles are clockwise in image coordinates (Y pointing down).
func (p PointF) Rotate(degrees float32) PointF {
	sin, cos := math32.Sincos(Radians(degrees))
	return PointF{
		X: p.X*cos - p.Y*sin,
		Y: p.X*sin + p.Y*cos,
	}
}

// RotateAbout rotates p around center by 'degrees'
func (p PointF) RotateAbout(center PointF, degrees float32) PointF {
	return p.Sub(center).Rotate(degrees).Add(center)
}

// Angle returns the direction of the vector from 'from' to p, in degrees, in the range (-180, 180]
func (p PointF) Angle(from PointF) float32 {
	return Degrees(math32.Atan2(p.Y-from.Y, p.X-from.X))
}

func Radians(degrees float32) float32 {
	return degrees * math32.Pi / 180
}

func Degrees(radians float32) float32 {
	return radians * 180 / math32.Pi
}

// Points that are closer than this to a polygon edge are considered to lie on the edge
const edgeEpsilon = 1e-3

// PolygonContains returns true if p is inside the polygon or on its boundary.
// The polygon may be wound in either direction.
func PolygonContains(poly []PointF, p PointF) bool {
	n := len(poly)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a := poly[j]
		b := poly[i]
		if onSegment(a, b, p) {
			return true
		}
		if (b.Y > p.Y) != (a.Y > p.Y) {
			x := (a.X-b.X)*(p.Y-b.Y)/(a.Y-b.Y) + b.X
			if p.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

func onSegment(a, b, p PointF) bool {
	ab := b.Sub(a)
	ap := p.Sub(a)
	length := math32.Hypot(ab.X, ab.Y)
	if length == 0 {
		return ap.X == 0 && ap.Y == 0
	}
	cross := ab.X*ap.Y - ab.Y*ap.X
	if math32.Abs(cross)/length > edgeEpsilon {
		return false
	}
	dot := ab.X*ap.X + ab.Y*ap.Y
	return dot >= -edgeEpsilon*length && dot <= length*length+edgeEpsilon*length
}

type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Create a rect from two corner points, in any order
func RectFromCorners(a, b Point) Rect {
	x1, x2 := min(a.X, b.X), max(a.X, b.X)
	y1, y2 := min(a.Y, b.Y), max(a.Y, b.Y)
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

func (r Rect) X2() int {
	return r.X + r.Width
}

func (r Rect) Y2() int {
	return r.Y + r.Height
}

func (r Rect) Area() int {
	return r.Width * r.Height
}

// Contains returns true if p lies inside r, or on its edge
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X2() && p.Y >= r.Y && p.Y <= r.Y2()
}

// Normalize flips a rectangle with negative width or height so that both are positive,
// keeping the same covered region.
func (r Rect) Normalize() Rect {
	if r.Width < 0 {
		r.X += r.Width
		r.Width = -r.Width
	}
	if r.Height < 0 {
		r.Y += r.Height
		r.Height = -r.Height
	}
	return r
}

func (r Rect) Intersection(b Rect) Rect {
	x1 := max(r.X, b.X)
	y1 := max(r.Y, b.Y)
	x2 := min(r.X2(), b.X2())
	y2 := min(r.Y2(), b.Y2())
	return Rect{
		X:      x1,
		Y:      y1,
		Width:  max(0, x2-x1),
		Height: max(0, y2-y1),
	}
}

// Intersection over Union
func (r Rect) IOU(b Rect) float32 {
	intersection := r.Intersection(b)
	union := r.Area() + b.Area() - intersection.Area()
	if union <= 0 {
		return 0
	}
	return float32(intersection.Area()) / float32(union)
}

func (r Rect) Center() Point {
	return Point{
		X: r.X + r.Width/2,
		Y: r.Y + r.Height/2,
	}
}

// CenterF returns the exact center, which may lie between pixels
func (r Rect) CenterF() PointF {
	return PointF{
		X: float32(r.X) + float32(r.Width)/2,
		Y: float32(r.Y) + float32(r.Height)/2,
	}
}
