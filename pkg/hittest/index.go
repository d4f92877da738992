package hittest

import (
	"sort"

	flatbush "github.com/bmharper/flatbush-go"
	"github.com/cyclopcam/boxlabel/pkg/nn"
)

// Index is a spatial index over a snapshot of a box list. It produces the same
// answers as HitAt and TopmostAt, but only tests boxes that are near the point.
// The index must be rebuilt whenever the boxes change.
type Index struct {
	boxes   []nn.BoundingBox
	search  func(minX, minY, maxX, maxY int32, results []int) []int
	scratch []int
}

// NewIndex builds an index over boxes. The slice is retained, not copied.
func NewIndex(boxes []nn.BoundingBox) *Index {
	ix := &Index{boxes: boxes}
	if len(boxes) == 0 {
		return ix
	}
	fb := flatbush.NewFlatbush[int32]()
	fb.Reserve(len(boxes))
	for _, b := range boxes {
		fb.Add(reach(b))
	}
	fb.Finish()
	ix.search = fb.SearchFast
	return ix
}

func (ix *Index) Len() int {
	return len(ix.boxes)
}

// Candidates returns the indices of boxes that might be hit by p, in ascending order
func (ix *Index) Candidates(p nn.Point) []int {
	if ix.search == nil {
		return nil
	}
	ix.scratch = ix.search(int32(p.X), int32(p.Y), int32(p.X), int32(p.Y), ix.scratch[:0])
	sort.Ints(ix.scratch)
	return ix.scratch
}

// HitAt is equivalent to the package-level HitAt on the indexed boxes
func (ix *Index) HitAt(p nn.Point) Hit {
	return hitCandidates(p, ix.boxes, ix.Candidates(p))
}

// TopmostAt is equivalent to the package-level TopmostAt on the indexed boxes
func (ix *Index) TopmostAt(p nn.Point) int {
	c := ix.Candidates(p)
	for i := len(c) - 1; i >= 0; i-- {
		if IsInArea(p, ix.boxes[c[i]]) {
			return c[i]
		}
	}
	return -1
}
