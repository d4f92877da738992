package transform

import (
	"github.com/bmharper/ringbuffer"
	"github.com/cyclopcam/boxlabel/pkg/gen"
	"github.com/cyclopcam/boxlabel/pkg/nn"
)

// Must be a power of 2
const DefaultHistorySize = 64

// History is a bounded list of committed annotation snapshots.
// Undo walks backwards through it. Committing after an undo first records the restored
// snapshot, so an undo can itself be undone, and nothing is ever lost except by age.
type History struct {
	size   int
	ring   ringbuffer.RingP[[]nn.BoundingBox]
	undone int // Number of steps we have walked back from the newest snapshot
}

func NewHistory(size int) *History {
	h := &History{size: size}
	h.Reset(nil)
	return h
}

// Reset discards all snapshots, and starts again from 'initial'
func (h *History) Reset(initial []nn.BoundingBox) {
	h.ring = ringbuffer.NewRingP[[]nn.BoundingBox](h.size)
	h.undone = 0
	h.ring.Add(gen.CopySlice(initial))
}

// Push records a newly committed state
func (h *History) Push(boxes []nn.BoundingBox) {
	if h.undone > 0 {
		h.ring.Add(h.ring.Peek(h.ring.Len() - 1 - h.undone))
		h.undone = 0
	}
	h.ring.Add(gen.CopySlice(boxes))
}

// Undo returns the snapshot before the current one, or false if there is none
func (h *History) Undo() ([]nn.BoundingBox, bool) {
	idx := h.ring.Len() - 2 - h.undone
	if idx < 0 {
		return nil, false
	}
	h.undone++
	return gen.CopySlice(h.ring.Peek(idx)), true
}

// Len is the number of snapshots held
func (h *History) Len() int {
	return h.ring.Len()
}
