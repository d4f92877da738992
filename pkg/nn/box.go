package nn

import (
	"github.com/chewxy/math32"
)

// Confidence given to a box that was drawn by hand, and never scored
const ConfidenceManual = -1.0

// Confidence given to a box that the user has drawn interactively
const ConfidenceUser = 1.0

// VisualState is only of interest to renderers. It has no effect on geometry.
type VisualState int

const (
	StateNormal VisualState = iota
	StateSelected
)

func (s VisualState) String() string {
	if s == StateSelected {
		return "selected"
	}
	return "normal"
}

// Corner identifies one of the four corners of a box.
// The numeric values are indices into the array returned by RotatedCorners.
type Corner int

const (
	CornerNone        Corner = -1
	CornerTopLeft     Corner = 0
	CornerTopRight    Corner = 1
	CornerBottomRight Corner = 2
	CornerBottomLeft  Corner = 3
)

// Opposite returns the corner diagonally across from c
func (c Corner) Opposite() Corner {
	if c == CornerNone {
		return CornerNone
	}
	return (c + 2) % 4
}

func (c Corner) String() string {
	switch c {
	case CornerTopLeft:
		return "top_left"
	case CornerTopRight:
		return "top_right"
	case CornerBottomRight:
		return "bottom_right"
	case CornerBottomLeft:
		return "bottom_left"
	}
	return "none"
}

// BoundingBox is one annotated region of an image.
// X, Y, Width, Height are in original image pixels, and describe the box before rotation.
// Angle is in degrees, clockwise, about the center of the box, and is always in [0, 360).
type BoundingBox struct {
	X          int         `json:"x"`
	Y          int         `json:"y"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Label      string      `json:"label"`
	Confidence float32     `json:"confidence"`
	Angle      float32     `json:"angle"`
	State      VisualState `json:"state"`
}

// Create a new axis-aligned box with manual confidence
func NewBoundingBox(x, y, width, height int, label string) BoundingBox {
	return BoundingBox{
		X:          x,
		Y:          y,
		Width:      width,
		Height:     height,
		Label:      label,
		Confidence: ConfidenceManual,
	}
}

// NormalizeAngle maps any angle (in degrees) into [0, 360)
func NormalizeAngle(degrees float32) float32 {
	a := math32.Mod(degrees, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		// -tiny + 360 can round up to exactly 360 in float32
		a = 0
	}
	return a
}

func (b *BoundingBox) SetAngle(degrees float32) {
	b.Angle = NormalizeAngle(degrees)
}

func (b BoundingBox) IsRotated() bool {
	return b.Angle != 0
}

// IsValid is true for a box that may be committed to an annotation set
func (b BoundingBox) IsValid() bool {
	return b.Width > 0 && b.Height > 0
}

// Rect returns the unrotated extents of the box
func (b BoundingBox) Rect() Rect {
	return Rect{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}
}

func (b *BoundingBox) SetRect(r Rect) {
	b.X = r.X
	b.Y = r.Y
	b.Width = r.Width
	b.Height = r.Height
}

// Normalize flips a box with negative width or height into positive extents
func (b *BoundingBox) Normalize() {
	b.SetRect(b.Rect().Normalize())
}

func (b BoundingBox) Center() PointF {
	return b.Rect().CenterF()
}

// RotatedCorners returns the four corners of the box after rotation, in the order
// top left, top right, bottom right, bottom left. Index i corresponds to Corner(i).
func (b BoundingBox) RotatedCorners() [4]PointF {
	hw := float32(b.Width) / 2
	hh := float32(b.Height) / 2
	offsets := [4]PointF{
		{-hw, -hh},
		{hw, -hh},
		{hw, hh},
		{-hw, hh},
	}
	center := b.Center()
	corners := [4]PointF{}
	for i, off := range offsets {
		corners[i] = off.Rotate(b.Angle).Add(center)
	}
	return corners
}

// Bounds returns the axis-aligned extents of the rotated box
func (b BoundingBox) Bounds() (minX, minY, maxX, maxY float32) {
	corners := b.RotatedCorners()
	minX, minY = corners[0].X, corners[0].Y
	maxX, maxY = minX, minY
	for _, c := range corners[1:] {
		minX = min(minX, c.X)
		minY = min(minY, c.Y)
		maxX = max(maxX, c.X)
		maxY = max(maxY, c.Y)
	}
	return
}
