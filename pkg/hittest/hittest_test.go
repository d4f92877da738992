package hittest

import (
	"math/rand"
	"testing"

	"github.com/cyclopcam/boxlabel/pkg/nn"
	"github.com/stretchr/testify/require"
)

func rotated(x, y, w, h int, angle float32) nn.BoundingBox {
	b := nn.NewBoundingBox(x, y, w, h, "obj")
	b.SetAngle(angle)
	return b
}

func TestRotationHandle(t *testing.T) {
	b := nn.NewBoundingBox(100, 100, 200, 100, "a")
	require.Equal(t, nn.Point{X: 200, Y: 70}, RotationHandle(b))

	// At 90 degrees clockwise, "up" points to the right
	b.SetAngle(90)
	require.Equal(t, nn.Point{X: 280, Y: 150}, RotationHandle(b))

	require.True(t, IsOnRotationHandle(nn.Point{X: 280, Y: 150}, b))
	require.True(t, IsOnRotationHandle(nn.Point{X: 280, Y: 162}, b))
	require.False(t, IsOnRotationHandle(nn.Point{X: 280, Y: 163}, b))
}

func TestIsInArea(t *testing.T) {
	b := nn.NewBoundingBox(100, 100, 200, 100, "a")
	require.True(t, IsInArea(nn.Point{X: 200, Y: 150}, b))
	require.True(t, IsInArea(nn.Point{X: 100, Y: 100}, b))
	require.False(t, IsInArea(nn.Point{X: 99, Y: 150}, b))

	// Rotated 90 degrees, the box covers x in [150,250], y in [50,250]
	b.SetAngle(90)
	require.True(t, IsInArea(nn.Point{X: 200, Y: 60}, b))
	require.True(t, IsInArea(nn.Point{X: 150, Y: 150}, b)) // on the boundary
	require.False(t, IsInArea(nn.Point{X: 120, Y: 150}, b))
	require.False(t, IsInArea(nn.Point{X: 280, Y: 150}, b))
}

func TestCenterAlwaysInside(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		b := rotated(rng.Intn(1000), rng.Intn(1000), 2+rng.Intn(500), 2+rng.Intn(500), rng.Float32()*720-360)
		c := b.Center().Round()
		require.True(t, IsInArea(c, b), "%+v", b)
		radius := max(b.Width, b.Height)
		far := nn.Point{X: c.X + radius*2, Y: c.Y - radius*2}
		require.False(t, IsInArea(far, b), "%+v", b)
	}
}

func TestCornerUnderUnrotated(t *testing.T) {
	b := nn.NewBoundingBox(100, 100, 200, 100, "a")
	require.Equal(t, nn.CornerTopLeft, CornerUnder(nn.Point{X: 95, Y: 108}, b))
	require.Equal(t, nn.CornerTopRight, CornerUnder(nn.Point{X: 310, Y: 90}, b))
	require.Equal(t, nn.CornerBottomLeft, CornerUnder(nn.Point{X: 100, Y: 200}, b))
	require.Equal(t, nn.CornerBottomRight, CornerUnder(nn.Point{X: 300, Y: 205}, b))
	require.Equal(t, nn.CornerNone, CornerUnder(nn.Point{X: 200, Y: 150}, b))
	require.Equal(t, nn.CornerNone, CornerUnder(nn.Point{X: 89, Y: 100}, b))

	// With a tiny box, the squares overlap and the order decides
	tiny := nn.NewBoundingBox(0, 0, 4, 4, "a")
	require.Equal(t, nn.CornerTopLeft, CornerUnder(nn.Point{X: 2, Y: 2}, tiny))
	require.Equal(t, nn.CornerBottomLeft, CornerUnder(nn.Point{X: -5, Y: 12}, tiny))
}

func TestCornerUnderRotated(t *testing.T) {
	b := rotated(100, 100, 200, 200, 90)
	// Rotated corners: TL (300,100), TR (300,300), BR (100,300), BL (100,100)
	require.Equal(t, nn.CornerTopLeft, CornerUnder(nn.Point{X: 310, Y: 110}, b))
	require.Equal(t, nn.CornerTopRight, CornerUnder(nn.Point{X: 300, Y: 315}, b))
	require.Equal(t, nn.CornerBottomRight, CornerUnder(nn.Point{X: 100, Y: 300}, b))
	require.Equal(t, nn.CornerBottomLeft, CornerUnder(nn.Point{X: 90, Y: 90}, b))
	require.Equal(t, nn.CornerNone, CornerUnder(nn.Point{X: 200, Y: 200}, b))
	// Distance 20 is inclusive, but the square test no longer applies
	require.Equal(t, nn.CornerNone, CornerUnder(nn.Point{X: 85, Y: 85}, b))
}

func TestHitAtPriority(t *testing.T) {
	boxes := []nn.BoundingBox{
		nn.NewBoundingBox(0, 0, 100, 100, "big"),
		nn.NewBoundingBox(20, 20, 60, 60, "small"),
		nn.NewBoundingBox(300, 300, 100, 100, "other"),
	}

	// Inside both 0 and 1: area hit on the first in list order
	require.Equal(t, Hit{Kind: KindArea, Index: 0, Corner: nn.CornerNone}, HitAt(nn.Point{X: 50, Y: 50}, boxes))

	// On the corner of box 1, inside the area of box 0: corners beat areas
	require.Equal(t, Hit{Kind: KindCorner, Index: 1, Corner: nn.CornerTopLeft}, HitAt(nn.Point{X: 21, Y: 21}, boxes))

	// On box 2's rotation handle
	require.Equal(t, Hit{Kind: KindRotationHandle, Index: 2, Corner: nn.CornerNone}, HitAt(nn.Point{X: 350, Y: 270}, boxes))

	require.Equal(t, Miss, HitAt(nn.Point{X: 200, Y: 200}, boxes))
	require.Equal(t, Miss, HitAt(nn.Point{X: 200, Y: 200}, nil))
}

func TestHandleBeatsCornerOfLaterBox(t *testing.T) {
	// Box 1's top-left corner sits on box 0's rotation handle. Box 0 is first, so its handle wins.
	boxes := []nn.BoundingBox{
		nn.NewBoundingBox(0, 100, 100, 100, "a"),
		nn.NewBoundingBox(50, 70, 100, 100, "b"),
	}
	require.Equal(t, KindRotationHandle, HitAt(nn.Point{X: 50, Y: 70}, boxes).Kind)
	require.Equal(t, 0, HitAt(nn.Point{X: 50, Y: 70}, boxes).Index)
}

func TestTopmostAt(t *testing.T) {
	boxes := []nn.BoundingBox{
		nn.NewBoundingBox(0, 0, 100, 100, "a"),
		nn.NewBoundingBox(50, 50, 100, 100, "b"),
	}
	require.Equal(t, 1, TopmostAt(nn.Point{X: 75, Y: 75}, boxes))
	require.Equal(t, 0, TopmostAt(nn.Point{X: 10, Y: 10}, boxes))
	require.Equal(t, -1, TopmostAt(nn.Point{X: 500, Y: 10}, boxes))
}

func TestIndexMatchesLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	boxes := []nn.BoundingBox{}
	for i := 0; i < 60; i++ {
		angle := float32(0)
		if i%2 == 0 {
			angle = rng.Float32() * 360
		}
		boxes = append(boxes, rotated(rng.Intn(900), rng.Intn(900), 10+rng.Intn(200), 10+rng.Intn(200), angle))
	}
	ix := NewIndex(boxes)
	require.Equal(t, len(boxes), ix.Len())
	for i := 0; i < 3000; i++ {
		p := nn.Point{X: rng.Intn(1200) - 100, Y: rng.Intn(1200) - 100}
		require.Equal(t, HitAt(p, boxes), ix.HitAt(p), "%v", p)
		require.Equal(t, TopmostAt(p, boxes), ix.TopmostAt(p), "%v", p)
	}

	empty := NewIndex(nil)
	require.Equal(t, Miss, empty.HitAt(nn.Point{}))
	require.Equal(t, -1, empty.TopmostAt(nn.Point{}))
}
