package transform

import "github.com/cyclopcam/boxlabel/pkg/nn"

type EventKind int

const (
	EventNone          EventKind = iota // Nothing happened
	EventDrawStarted                    // Press on empty space
	EventSelected                       // Press inside a box. Drawing has also started.
	EventDrawUpdated                    // Rubber band moved
	EventCreated                        // A drawn box was committed
	EventDiscarded                      // A drawn box was too small
	EventResizeStarted                  // Press on a corner
	EventResized                        // Box extents changed
	EventRotateStarted                  // Press on a rotation handle
	EventRotated                        // Box angle changed
	EventReleased                       // Release with nothing in progress
	EventDeleted                        // A box was removed
	EventLabelChanged                   // A box was relabeled
	EventReplaced                       // The whole set was replaced (new image, detection)
	EventUndone                         // The previous snapshot was restored
)

var eventNames = map[EventKind]string{
	EventNone:          "none",
	EventDrawStarted:   "draw_started",
	EventSelected:      "selected",
	EventDrawUpdated:   "draw_updated",
	EventCreated:       "created",
	EventDiscarded:     "discarded",
	EventResizeStarted: "resize_started",
	EventResized:       "resized",
	EventRotateStarted: "rotate_started",
	EventRotated:       "rotated",
	EventReleased:      "released",
	EventDeleted:       "deleted",
	EventLabelChanged:  "label_changed",
	EventReplaced:      "replaced",
	EventUndone:        "undone",
}

func (k EventKind) String() string {
	if s, ok := eventNames[k]; ok {
		return s
	}
	return "unknown"
}

func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event describes the effect of one engine operation.
// Index is the affected box, or -1. Box is a copy of that box after the operation
// (for EventDeleted, the box that was removed).
type Event struct {
	Kind  EventKind      `json:"kind"`
	Index int            `json:"index"`
	Box   nn.BoundingBox `json:"box"`
}

// Changed is true for events that alter the committed annotation set
func (e Event) Changed() bool {
	switch e.Kind {
	case EventCreated, EventResized, EventRotated, EventDeleted, EventLabelChanged, EventReplaced, EventUndone:
		return true
	}
	return false
}

var noEvent = Event{Kind: EventNone, Index: -1}
