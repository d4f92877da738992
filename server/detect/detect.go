// Package detect provides object detectors that pre-populate an image with boxes
package detect

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/cyclopcam/boxlabel/pkg/nn"
	"github.com/cyclopcam/boxlabel/server/config"
	"github.com/cyclopcam/logs"
)

// New creates the detector described by cfg. Returns nil, nil if no detector is configured.
// If classes is empty, an HTTP detector is asked for its class list. Failing that,
// labels are whatever the detector reports.
func New(ctx context.Context, log logs.Log, cfg config.Detector, classes []string) (nn.ObjectDetector, error) {
	switch cfg.Kind {
	case "":
		return nil, nil
	case "http":
		h := NewHTTP(cfg.URL, classes)
		if len(classes) == 0 {
			fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			fetched, err := h.FetchClasses(fetchCtx)
			if err != nil {
				log.Warnf("Detector at %v did not report its classes, using the labels it returns: %v", cfg.URL, err)
			} else {
				log.Infof("Detector at %v has %v classes", cfg.URL, len(fetched))
			}
		}
		return h, nil
	case "ollama":
		return NewOllama(cfg.URL, cfg.Model, classes)
	}
	return nil, fmt.Errorf("Unknown detector kind '%v'", cfg.Kind)
}

// Boxes runs the detector, suppresses overlapping and weak detections, and returns the survivors
// as annotation boxes (angle 0, confidence = detector score).
func Boxes(ctx context.Context, log logs.Log, det nn.ObjectDetector, img image.Image, params *nn.DetectionParams) ([]nn.BoundingBox, error) {
	raw, err := det.DetectObjects(ctx, img, params)
	if err != nil {
		return nil, err
	}
	merged := nn.MergeDetections(raw, params)
	boxes := nn.DetectionsToBoxes(clip(merged, img.Bounds()))
	log.Infof("Detector found %v objects (%v before merging)", len(boxes), len(raw))
	return boxes, nil
}

// clip limits detections to the image
func clip(dets []nn.ObjectDetection, bounds image.Rectangle) []nn.ObjectDetection {
	frame := nn.Rect{X: bounds.Min.X, Y: bounds.Min.Y, Width: bounds.Dx(), Height: bounds.Dy()}
	out := make([]nn.ObjectDetection, 0, len(dets))
	for _, d := range dets {
		d.Box = d.Box.Normalize().Intersection(frame)
		out = append(out, d)
	}
	return out
}

// labelFor fills in whichever of class and label the detector left out
func labelFor(classes []string, index map[string]int, class int, label string) (int, string) {
	if label == "" && class >= 0 && class < len(classes) {
		return class, classes[class]
	}
	if i, ok := index[label]; ok {
		return i, label
	}
	if label == "" {
		return class, fmt.Sprintf("class%v", class)
	}
	return -1, label
}
