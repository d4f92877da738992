package nn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIOU(t *testing.T) {
	a := Rect{
		X:      0,
		Y:      0,
		Width:  10,
		Height: 10,
	}
	b := Rect{
		X:      5,
		Y:      5,
		Width:  10,
		Height: 10,
	}
	require.InDelta(t, 25.0/175.0, a.IOU(b), 1e-6)
	require.Equal(t, float32(0), a.IOU(Rect{}))
}

func TestRectNormalize(t *testing.T) {
	r := Rect{X: 50, Y: 60, Width: -20, Height: -10}.Normalize()
	require.Equal(t, Rect{X: 30, Y: 50, Width: 20, Height: 10}, r)
	require.Equal(t, Rect{X: 1, Y: 2, Width: 3, Height: 4}, Rect{X: 1, Y: 2, Width: 3, Height: 4}.Normalize())
	require.Equal(t, Rect{X: 10, Y: 5, Width: 20, Height: 15}, RectFromCorners(Point{30, 5}, Point{10, 20}))
}

func TestRectContains(t *testing.T) {
	r := Rect{X: 10, Y: 10, Width: 20, Height: 20}
	require.True(t, r.Contains(Point{10, 10}))
	require.True(t, r.Contains(Point{30, 30}))
	require.True(t, r.Contains(Point{20, 15}))
	require.False(t, r.Contains(Point{31, 20}))
	require.False(t, r.Contains(Point{9, 20}))
}

func TestRotate(t *testing.T) {
	p := PointF{X: 10, Y: 0}.Rotate(90)
	require.InDelta(t, 0, p.X, 1e-4)
	require.InDelta(t, 10, p.Y, 1e-4)

	// Rotating about a center and back again returns to the start
	c := PointF{X: 5, Y: 7}
	q := PointF{X: 31, Y: -12}
	r := q.RotateAbout(c, 37).RotateAbout(c, -37)
	require.InDelta(t, q.X, r.X, 1e-3)
	require.InDelta(t, q.Y, r.Y, 1e-3)

	require.InDelta(t, 90, PointF{X: 0, Y: 10}.Angle(PointF{}), 1e-4)
	require.InDelta(t, 180, PointF{X: -10, Y: 0}.Angle(PointF{}), 1e-4)
}

func TestPolygonContains(t *testing.T) {
	// A diamond
	poly := []PointF{{0, -10}, {10, 0}, {0, 10}, {-10, 0}}
	require.True(t, PolygonContains(poly, PointF{0, 0}))
	require.True(t, PolygonContains(poly, PointF{5, 5}))  // on an edge
	require.True(t, PolygonContains(poly, PointF{10, 0})) // on a vertex
	require.False(t, PolygonContains(poly, PointF{6, 6}))
	require.False(t, PolygonContains(poly, PointF{-20, 0}))
	require.False(t, PolygonContains(poly[:2], PointF{0, 0}))
}
