// Package nn holds the annotation geometry, and the interface to object detectors
// that can pre-populate an image with boxes.
package nn

import (
	"bufio"
	"context"
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"strings"
)

const DefaultProbabilityThreshold = 0.5
const DefaultNmsIouThreshold = 0.45

// Object detection parameters
type DetectionParams struct {
	ProbabilityThreshold float32 // Value between 0 and 1. Lower values will find more objects. Zero value will use the default.
	NmsIouThreshold      float32 // Value between 0 and 1. Lower values will merge more objects together into one. Zero value will use the default.
}

// Create a default DetectionParams object
func NewDetectionParams() *DetectionParams {
	return &DetectionParams{
		ProbabilityThreshold: DefaultProbabilityThreshold,
		NmsIouThreshold:      DefaultNmsIouThreshold,
	}
}

func (p *DetectionParams) probabilityThreshold() float32 {
	if p == nil || p.ProbabilityThreshold == 0 {
		return DefaultProbabilityThreshold
	}
	return p.ProbabilityThreshold
}

func (p *DetectionParams) nmsIouThreshold() float32 {
	if p == nil || p.NmsIouThreshold == 0 {
		return DefaultNmsIouThreshold
	}
	return p.NmsIouThreshold
}

// ObjectDetection is an object that a detector has found in an image.
// Box is in original image pixels.
type ObjectDetection struct {
	Class      int     `json:"class"`
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
	Box        Rect    `json:"box"`
}

// ToBoundingBox converts a detection into an axis-aligned annotation box
func (d ObjectDetection) ToBoundingBox() BoundingBox {
	return BoundingBox{
		X:          d.Box.X,
		Y:          d.Box.Y,
		Width:      d.Box.Width,
		Height:     d.Box.Height,
		Label:      d.Label,
		Confidence: d.Confidence,
	}
}

// Convert a list of detections into annotation boxes, dropping degenerate boxes
func DetectionsToBoxes(dets []ObjectDetection) []BoundingBox {
	boxes := make([]BoundingBox, 0, len(dets))
	for _, d := range dets {
		b := d.ToBoundingBox()
		if b.IsValid() {
			boxes = append(boxes, b)
		}
	}
	return boxes
}

// ObjectDetector is given an image, and returns zero or more detected objects
type ObjectDetector interface {
	// Close releases any resources held by the detector
	Close()

	// DetectObjects returns a list of objects detected in the image.
	// You can create a default DetectionParams with NewDetectionParams()
	DetectObjects(ctx context.Context, img image.Image, params *DetectionParams) ([]ObjectDetection, error)
}

// ModelConfig is saved in a JSON file along with the weights of a detection model
type ModelConfig struct {
	Architecture string   `json:"architecture"` // eg "yolov8"
	Width        int      `json:"width"`        // eg 320
	Height       int      `json:"height"`       // eg 256
	Classes      []string `json:"classes"`      // eg ["person", "bicycle", "car", ...]
}

// Load model config from a JSON file
func LoadModelConfig(filename string) (*ModelConfig, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	config := &ModelConfig{}
	err = json.Unmarshal(b, config)
	if err != nil {
		return nil, err
	}
	return config, nil
}

// LoadClasses reads the class list from a model config (.json) or a plain class file
func LoadClasses(filename string) ([]string, error) {
	if strings.EqualFold(filepath.Ext(filename), ".json") {
		cfg, err := LoadModelConfig(filename)
		if err != nil {
			return nil, err
		}
		return cfg.Classes, nil
	}
	return LoadClassFile(filename)
}

// Load a text file with class names on each line
func LoadClassFile(filename string) ([]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	classes := []string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			classes = append(classes, line)
		}
	}
	return classes, scanner.Err()
}

// ClassIndex maps each class name to its position in the list
func ClassIndex(classes []string) map[string]int {
	m := make(map[string]int, len(classes))
	for i, c := range classes {
		if _, exists := m[c]; !exists {
			m[c] = i
		}
	}
	return m
}
