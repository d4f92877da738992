// Package transform is the interactive editing state machine for the boxes of one image.
// It turns a stream of display-space pointer events into drawn, resized, rotated and
// deleted boxes.
package transform

import (
	"fmt"
	"strings"

	"github.com/chewxy/math32"
	"github.com/cyclopcam/boxlabel/pkg/gen"
	"github.com/cyclopcam/boxlabel/pkg/hittest"
	"github.com/cyclopcam/boxlabel/pkg/nn"
	"github.com/cyclopcam/boxlabel/pkg/viewport"
	"github.com/cyclopcam/logs"
)

// Smallest width or height that a rotated resize can produce
const MinRotatedSize = 10

// State is the application state that the engine reads and updates
type State interface {
	LastUsedLabel() string
	SetLastUsedLabel(label string)
	MinBoxSize() int // Drawn boxes smaller than this (in either space) are discarded
	MarkEdited()     // Called whenever the user has changed the annotations
}

// Engine owns the annotation set of one image, and the gesture in progress.
// Engine is not safe for concurrent use.
type Engine struct {
	Log logs.Log

	mapper      *viewport.Mapper
	state       State
	boxes       []nn.BoundingBox
	focus       int
	gesture     Gesture
	index       *hittest.Index // nil when the boxes have changed since it was built
	history     *History
	subscribers []chan Event
}

func NewEngine(log logs.Log, mapper *viewport.Mapper, state State) *Engine {
	return &Engine{
		Log:     log,
		mapper:  mapper,
		state:   state,
		focus:   -1,
		gesture: Idle{},
		history: NewHistory(DefaultHistorySize),
	}
}

func (e *Engine) Mapper() *viewport.Mapper {
	return e.mapper
}

// Boxes returns a copy of the annotation set
func (e *Engine) Boxes() []nn.BoundingBox {
	return gen.CopySlice(e.boxes)
}

func (e *Engine) Len() int {
	return len(e.boxes)
}

func (e *Engine) Box(i int) (nn.BoundingBox, bool) {
	if i < 0 || i >= len(e.boxes) {
		return nn.BoundingBox{}, false
	}
	return e.boxes[i], true
}

// Focus is the index of the box whose rotation handle should be shown, or -1
func (e *Engine) Focus() int {
	return e.focus
}

func (e *Engine) Gesture() Gesture {
	return e.gesture
}

func (e *Engine) IsIdle() bool {
	_, idle := e.gesture.(Idle)
	return idle
}

// Subscribe returns a channel that receives every event the engine produces.
// If the channel is full, events are dropped rather than blocking the engine.
func (e *Engine) Subscribe(buffer int) chan Event {
	ch := make(chan Event, buffer)
	e.subscribers = append(e.subscribers, ch)
	return ch
}

func (e *Engine) Unsubscribe(ch chan Event) {
	for i, s := range e.subscribers {
		if s == ch {
			e.subscribers = gen.DeleteIndex(e.subscribers, i)
			return
		}
	}
}

// Replace discards the current set and gesture, and starts afresh with boxes.
// This is used when a new image is loaded, or a detector has produced new boxes.
func (e *Engine) Replace(boxes []nn.BoundingBox) Event {
	e.boxes = gen.CopySlice(boxes)
	for i := range e.boxes {
		e.boxes[i].State = nn.StateNormal
		e.boxes[i].Angle = nn.NormalizeAngle(e.boxes[i].Angle)
	}
	e.focus = -1
	e.gesture = Idle{}
	e.invalidate()
	e.history.Reset(e.boxes)
	return e.emit(Event{Kind: EventReplaced, Index: -1})
}

// Press starts a gesture at display point p.
// Rotation handles are tested before corners, box by box in list order. If neither is hit,
// a new box starts drawing, and the first box containing p (if any) becomes selected.
func (e *Engine) Press(p nn.PointF) Event {
	if !e.IsIdle() {
		// We missed a release
		e.Release(p)
	}
	op := e.mapper.ToOriginal(p)
	hit := e.hitIndex().HitAt(op)
	switch hit.Kind {
	case hittest.KindRotationHandle:
		b := &e.boxes[hit.Index]
		b.State = nn.StateSelected
		e.focus = hit.Index
		e.gesture = Rotating{
			Index:         hit.Index,
			OriginalAngle: b.Angle,
			StartAngle:    op.Float().Angle(b.Center()),
		}
		return e.emit(Event{Kind: EventRotateStarted, Index: hit.Index, Box: *b})
	case hittest.KindCorner:
		b := &e.boxes[hit.Index]
		b.State = nn.StateSelected
		e.focus = hit.Index
		r := Resizing{
			Index:    hit.Index,
			Corner:   hit.Corner,
			Snapshot: b.Rect(),
			Start:    op,
		}
		if b.IsRotated() {
			r.Fixed = b.RotatedCorners()[hit.Corner.Opposite()]
		}
		e.gesture = r
		return e.emit(Event{Kind: EventResizeStarted, Index: hit.Index, Box: *b})
	}

	e.gesture = Drawing{Start: p, End: p}
	if hit.Kind == hittest.KindArea {
		b := &e.boxes[hit.Index]
		b.State = nn.StateSelected
		e.focus = hit.Index
		return e.emit(Event{Kind: EventSelected, Index: hit.Index, Box: *b})
	}
	return e.emit(Event{Kind: EventDrawStarted, Index: -1})
}

// Move continues the current gesture with display point p
func (e *Engine) Move(p nn.PointF) Event {
	if e.IsIdle() {
		return noEvent
	}
	return e.emit(e.apply(p))
}

// Release ends the current gesture at display point p.
// A drawn box is committed if it is large enough. All selection highlights are cleared,
// and the edited flag is raised.
func (e *Engine) Release(p nn.PointF) Event {
	if e.IsIdle() {
		return e.emit(Event{Kind: EventReleased, Index: -1})
	}
	e.apply(p)
	var ev Event
	switch g := e.gesture.(type) {
	case Drawing:
		ev = e.commitDraw(g)
	case Resizing:
		b := &e.boxes[g.Index]
		b.Normalize()
		// A corner dragged exactly onto its opposite edge collapses that axis
		b.Width = max(b.Width, 1)
		b.Height = max(b.Height, 1)
		ev = Event{Kind: EventResized, Index: g.Index}
		e.history.Push(e.boxes)
	case Rotating:
		ev = Event{Kind: EventRotated, Index: g.Index}
		e.history.Push(e.boxes)
	}
	e.gesture = Idle{}
	for i := range e.boxes {
		e.boxes[i].State = nn.StateNormal
	}
	if ev.Index >= 0 {
		ev.Box = e.boxes[ev.Index]
	}
	e.invalidate()
	e.state.MarkEdited()
	return e.emit(ev)
}

// DeleteAt removes the last box in the list whose area (taking rotation into account)
// contains display point p.
func (e *Engine) DeleteAt(p nn.PointF) Event {
	i := e.hitIndex().TopmostAt(e.mapper.ToOriginal(p))
	if i < 0 {
		return noEvent
	}
	return e.Delete(i)
}

// Delete removes the box at index i
func (e *Engine) Delete(i int) Event {
	if i < 0 || i >= len(e.boxes) {
		return noEvent
	}
	removed := e.boxes[i]
	removed.State = nn.StateNormal
	e.boxes = gen.DeleteIndex(e.boxes, i)
	if e.focus == i {
		e.focus = -1
	} else if e.focus > i {
		e.focus--
	}
	// The gesture may refer to a box index that no longer exists
	e.gesture = Idle{}
	e.invalidate()
	e.history.Push(e.boxes)
	e.state.MarkEdited()
	return e.emit(Event{Kind: EventDeleted, Index: i, Box: removed})
}

// SetLabel relabels box i, and remembers the label as the last used one
func (e *Engine) SetLabel(i int, label string) (Event, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return noEvent, fmt.Errorf("Label may not be empty")
	}
	if i < 0 || i >= len(e.boxes) {
		return noEvent, fmt.Errorf("Box index %v out of range (%v boxes)", i, len(e.boxes))
	}
	e.boxes[i].Label = label
	e.state.SetLastUsedLabel(label)
	e.history.Push(e.boxes)
	e.state.MarkEdited()
	return e.emit(Event{Kind: EventLabelChanged, Index: i, Box: e.boxes[i]}), nil
}

// Undo restores the previously committed snapshot. Returns false if there is nothing to undo.
func (e *Engine) Undo() (Event, bool) {
	boxes, ok := e.history.Undo()
	if !ok {
		return noEvent, false
	}
	e.boxes = boxes
	e.focus = -1
	e.gesture = Idle{}
	e.invalidate()
	e.state.MarkEdited()
	return e.emit(Event{Kind: EventUndone, Index: -1}), true
}

// Hover returns the cursor to show at display point p
func (e *Engine) Hover(p nn.PointF) Cursor {
	switch g := e.gesture.(type) {
	case Rotating:
		return CursorCross
	case Resizing:
		return cursorForCorner(g.Corner)
	case Drawing:
		return CursorArrow
	}
	hit := e.hitIndex().HitAt(e.mapper.ToOriginal(p))
	switch hit.Kind {
	case hittest.KindRotationHandle:
		return CursorCross
	case hittest.KindCorner:
		return cursorForCorner(hit.Corner)
	}
	return CursorArrow
}

// apply updates the geometry of the gesture in progress, without emitting anything
func (e *Engine) apply(p nn.PointF) Event {
	switch g := e.gesture.(type) {
	case Drawing:
		g.End = p
		e.gesture = g
		return Event{Kind: EventDrawUpdated, Index: -1}
	case Resizing:
		b := &e.boxes[g.Index]
		op := e.mapper.ToOriginal(p)
		if b.IsRotated() {
			resizeRotated(b, g, op)
		} else {
			resizeAxisAligned(b, g, op)
		}
		e.invalidate()
		return Event{Kind: EventResized, Index: g.Index, Box: *b}
	case Rotating:
		b := &e.boxes[g.Index]
		current := e.mapper.ToOriginal(p).Float().Angle(b.Center())
		b.SetAngle(g.OriginalAngle + current - g.StartAngle)
		e.invalidate()
		return Event{Kind: EventRotated, Index: g.Index, Box: *b}
	}
	return noEvent
}

func (e *Engine) commitDraw(g Drawing) Event {
	minSize := e.state.MinBoxSize()
	x1, y1, x2, y2 := g.Rect()
	if x2-x1 < float32(minSize) || y2-y1 < float32(minSize) {
		return Event{Kind: EventDiscarded, Index: -1}
	}
	r := nn.RectFromCorners(e.mapper.ToOriginal(nn.PointF{X: x1, Y: y1}), e.mapper.ToOriginal(nn.PointF{X: x2, Y: y2}))
	if r.Width < minSize || r.Height < minSize || r.Width <= 0 || r.Height <= 0 {
		return Event{Kind: EventDiscarded, Index: -1}
	}
	box := nn.BoundingBox{
		X:          r.X,
		Y:          r.Y,
		Width:      r.Width,
		Height:     r.Height,
		Label:      e.state.LastUsedLabel(),
		Confidence: nn.ConfidenceUser,
	}
	e.boxes = append(e.boxes, box)
	e.focus = len(e.boxes) - 1
	e.history.Push(e.boxes)
	return Event{Kind: EventCreated, Index: e.focus}
}

// resizeAxisAligned applies the pointer delta to the snapshot, according to which corner is held.
// Width and height may become negative here. Release normalizes them.
func resizeAxisAligned(b *nn.BoundingBox, g Resizing, p nn.Point) {
	dx := p.X - g.Start.X
	dy := p.Y - g.Start.Y
	s := g.Snapshot
	r := s
	switch g.Corner {
	case nn.CornerTopLeft:
		r.X = s.X + dx
		r.Y = s.Y + dy
		r.Width = s.Width - dx
		r.Height = s.Height - dy
	case nn.CornerTopRight:
		r.Y = s.Y + dy
		r.Width = s.Width + dx
		r.Height = s.Height - dy
	case nn.CornerBottomLeft:
		r.X = s.X + dx
		r.Width = s.Width - dx
		r.Height = s.Height + dy
	case nn.CornerBottomRight:
		r.Width = s.Width + dx
		r.Height = s.Height + dy
	}
	b.SetRect(r)
}

// resizeRotated keeps the corner opposite the dragged one fixed in place.
// The fixed corner and the pointer are taken into the box's unrotated frame around the
// pre-drag center, where the new size and center are simple to find.
func resizeRotated(b *nn.BoundingBox, g Resizing, p nn.Point) {
	center := g.Snapshot.CenterF()
	localFixed := g.Fixed.Sub(center).Rotate(-b.Angle)
	localMouse := p.Float().Sub(center).Rotate(-b.Angle)

	width := max(math32.Abs(localMouse.X-localFixed.X), MinRotatedSize)
	height := max(math32.Abs(localMouse.Y-localFixed.Y), MinRotatedSize)

	localCenter := localMouse.Add(localFixed).Scale(0.5)
	newCenter := localCenter.Rotate(b.Angle).Add(center)

	b.Width = int(width)
	b.Height = int(height)
	b.X = int(newCenter.X - width/2)
	b.Y = int(newCenter.Y - height/2)
}

func (e *Engine) invalidate() {
	e.index = nil
}

func (e *Engine) hitIndex() *hittest.Index {
	if e.index == nil {
		e.index = hittest.NewIndex(e.boxes)
	}
	return e.index
}

func (e *Engine) emit(ev Event) Event {
	if ev.Kind == EventNone {
		return ev
	}
	for _, ch := range e.subscribers {
		select {
		case ch <- ev:
		default:
			e.Log.Warnf("Engine event subscriber is full, dropping %v event", ev.Kind)
		}
	}
	return ev
}
