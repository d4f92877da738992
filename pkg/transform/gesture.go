package transform

import (
	"github.com/cyclopcam/boxlabel/pkg/gen"
	"github.com/cyclopcam/boxlabel/pkg/nn"
)

// Gesture is the interactive state of the engine. Exactly one gesture is active at a time.
// The concrete types are Idle, Drawing, Resizing and Rotating.
type Gesture interface {
	Name() string
	isGesture()
}

// Idle means no pointer button is held
type Idle struct{}

// Drawing is a new box being dragged out. Points are in display space.
type Drawing struct {
	Start nn.PointF `json:"start"`
	End   nn.PointF `json:"end"`
}

// Resizing is a drag on one corner of an existing box
type Resizing struct {
	Index    int       `json:"index"`
	Corner   nn.Corner `json:"corner"`
	Snapshot nn.Rect   `json:"snapshot"` // Box extents when the drag started
	Start    nn.Point  `json:"start"`    // Original-space pointer position when the drag started
	Fixed    nn.PointF `json:"fixed"`    // Rotated boxes only: the corner that stays put
}

// Rotating is a drag on the rotation handle of an existing box
type Rotating struct {
	Index         int     `json:"index"`
	OriginalAngle float32 `json:"originalAngle"` // Box angle when the drag started
	StartAngle    float32 `json:"startAngle"`    // Direction from box center to pointer when the drag started
}

func (Idle) Name() string     { return "idle" }
func (Drawing) Name() string  { return "drawing" }
func (Resizing) Name() string { return "resizing" }
func (Rotating) Name() string { return "rotating" }

func (Idle) isGesture()     {}
func (Drawing) isGesture()  {}
func (Resizing) isGesture() {}
func (Rotating) isGesture() {}

// Rect returns the display-space rectangle being drawn, with the first corner at the minimum
func (d Drawing) Rect() (x1, y1, x2, y2 float32) {
	x1, x2 = gen.MinMax(d.Start.X, d.End.X)
	y1, y2 = gen.MinMax(d.Start.Y, d.End.Y)
	return
}

// Cursor is the pointer shape a UI should show
type Cursor int

const (
	CursorArrow     Cursor = iota
	CursorCross            // Over a rotation handle
	CursorSizeFDiag        // Over a top left or bottom right corner
	CursorSizeBDiag        // Over a top right or bottom left corner
)

func (c Cursor) String() string {
	switch c {
	case CursorCross:
		return "cross"
	case CursorSizeFDiag:
		return "size_fdiag"
	case CursorSizeBDiag:
		return "size_bdiag"
	}
	return "arrow"
}

func (c Cursor) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func cursorForCorner(c nn.Corner) Cursor {
	switch c {
	case nn.CornerTopLeft, nn.CornerBottomRight:
		return CursorSizeFDiag
	case nn.CornerTopRight, nn.CornerBottomLeft:
		return CursorSizeBDiag
	}
	return CursorArrow
}
