// Package hittest classifies an original-space point against annotation boxes:
// rotation handle, resize corner, or area.
package hittest

import (
	"github.com/chewxy/math32"
	"github.com/cyclopcam/boxlabel/pkg/gen"
	"github.com/cyclopcam/boxlabel/pkg/nn"
)

const (
	CornerSize             = 10 // Half the side of the square that grabs an unrotated corner
	RotationHandleRadius   = 6  // Radius of the rotation handle circle
	RotationHandleDistance = 30 // Distance of the rotation handle above the top edge of the box
)

type Kind int

const (
	KindNone Kind = iota
	KindRotationHandle
	KindCorner
	KindArea
)

func (k Kind) String() string {
	switch k {
	case KindRotationHandle:
		return "rotation_handle"
	case KindCorner:
		return "corner"
	case KindArea:
		return "area"
	}
	return "none"
}

// Hit is the result of testing a point against a list of boxes
type Hit struct {
	Kind   Kind      `json:"kind"`
	Index  int       `json:"index"`  // Index of the box in the list, or -1 if Kind is KindNone
	Corner nn.Corner `json:"corner"` // Only valid if Kind is KindCorner
}

var Miss = Hit{Kind: KindNone, Index: -1, Corner: nn.CornerNone}

// RotationHandle returns the position of the box's rotation handle in original pixels.
// Unrotated, it sits RotationHandleDistance above the middle of the top edge.
func RotationHandle(box nn.BoundingBox) nn.Point {
	offset := nn.PointF{X: 0, Y: -(float32(box.Height)/2 + RotationHandleDistance)}
	return offset.Rotate(box.Angle).Add(box.Center()).Truncate()
}

// IsInArea returns true if p lies inside the box, or on its edge
func IsInArea(p nn.Point, box nn.BoundingBox) bool {
	if box.Angle == 0 {
		return box.Rect().Normalize().Contains(p)
	}
	corners := box.RotatedCorners()
	return nn.PolygonContains(corners[:], p.Float())
}

// CornerUnder returns the corner of the box that p is grabbing, or CornerNone
func CornerUnder(p nn.Point, box nn.BoundingBox) nn.Corner {
	if box.Angle == 0 {
		x1, y1 := box.X, box.Y
		x2, y2 := box.X+box.Width, box.Y+box.Height
		corners := []struct {
			corner nn.Corner
			x, y   int
		}{
			{nn.CornerTopLeft, x1, y1},
			{nn.CornerTopRight, x2, y1},
			{nn.CornerBottomLeft, x1, y2},
			{nn.CornerBottomRight, x2, y2},
		}
		for _, c := range corners {
			if gen.Abs(p.X-c.x) <= CornerSize && gen.Abs(p.Y-c.y) <= CornerSize {
				return c.corner
			}
		}
		return nn.CornerNone
	}

	pf := p.Float()
	for i, c := range box.RotatedCorners() {
		if pf.Distance(c) <= CornerSize*2 {
			return nn.Corner(i)
		}
	}
	return nn.CornerNone
}

// IsOnRotationHandle returns true if p is within grabbing distance of the box's rotation handle
func IsOnRotationHandle(p nn.Point, box nn.BoundingBox) bool {
	return p.Distance(RotationHandle(box)) <= RotationHandleRadius*2
}

// HitAt tests p against boxes in list order. For each box, the rotation handle is
// tested before the corners, and the first match wins. If no handle or corner matches,
// the first box whose area contains p is returned as an area hit.
func HitAt(p nn.Point, boxes []nn.BoundingBox) Hit {
	return hitCandidates(p, boxes, allIndices(len(boxes)))
}

// TopmostAt returns the index of the last box in the list whose area contains p, or -1
func TopmostAt(p nn.Point, boxes []nn.BoundingBox) int {
	for i := len(boxes) - 1; i >= 0; i-- {
		if IsInArea(p, boxes[i]) {
			return i
		}
	}
	return -1
}

// candidates must be sorted ascending
func hitCandidates(p nn.Point, boxes []nn.BoundingBox, candidates []int) Hit {
	for _, i := range candidates {
		if IsOnRotationHandle(p, boxes[i]) {
			return Hit{Kind: KindRotationHandle, Index: i, Corner: nn.CornerNone}
		}
		if c := CornerUnder(p, boxes[i]); c != nn.CornerNone {
			return Hit{Kind: KindCorner, Index: i, Corner: c}
		}
	}
	for _, i := range candidates {
		if IsInArea(p, boxes[i]) {
			return Hit{Kind: KindArea, Index: i, Corner: nn.CornerNone}
		}
	}
	return Miss
}

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// reach is how far outside a box's rotated bounds a point can be, and still hit something
func reach(box nn.BoundingBox) (minX, minY, maxX, maxY int32) {
	x1, y1, x2, y2 := box.Bounds()
	h := RotationHandle(box).Float()
	x1 = min(x1, h.X)
	y1 = min(y1, h.Y)
	x2 = max(x2, h.X)
	y2 = max(y2, h.Y)
	const pad = CornerSize * 2
	return int32(math32.Floor(x1)) - pad, int32(math32.Floor(y1)) - pad, int32(math32.Ceil(x2)) + pad, int32(math32.Ceil(y2)) + pad
}
