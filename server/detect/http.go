package detect

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strconv"

	"github.com/cyclopcam/boxlabel/pkg/nn"
	"github.com/cyclopcam/boxlabel/pkg/requests"
	"github.com/disintegration/imaging"
)

// HTTP posts the image as a JPEG multipart upload (field "image") to a detection service,
// which replies with {"detections": [{"class", "label", "confidence", "box": {"x", "y", "width", "height"}}]}
type HTTP struct {
	URL     string
	Quality int // JPEG quality of the upload
	classes []string
	index   map[string]int
}

type httpResponse struct {
	Detections []nn.ObjectDetection `json:"detections"`
}

func NewHTTP(url string, classes []string) *HTTP {
	return &HTTP{
		URL:     url,
		Quality: 90,
		classes: classes,
		index:   nn.ClassIndex(classes),
	}
}

func (h *HTTP) Close() {
}

func (h *HTTP) DetectObjects(ctx context.Context, img image.Image, params *nn.DetectionParams) ([]nn.ObjectDetection, error) {
	buf := bytes.Buffer{}
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(h.Quality)); err != nil {
		return nil, err
	}
	fields := map[string]string{}
	if params != nil && params.ProbabilityThreshold != 0 {
		fields["threshold"] = strconv.FormatFloat(float64(params.ProbabilityThreshold), 'f', -1, 32)
	}
	resp, err := requests.PostMultipart[httpResponse](ctx, h.URL, "image", "image.jpg", buf.Bytes(), fields)
	if err != nil {
		return nil, fmt.Errorf("Detector at %v failed: %w", h.URL, err)
	}
	dets := resp.Detections
	for i := range dets {
		dets[i].Class, dets[i].Label = labelFor(h.classes, h.index, dets[i].Class, dets[i].Label)
	}
	return dets, nil
}

// FetchClasses asks the service for its model config, at URL + "/config"
func (h *HTTP) FetchClasses(ctx context.Context) ([]string, error) {
	cfg, err := requests.RequestJSON[nn.ModelConfig](ctx, "GET", h.URL+"/config", nil)
	if err != nil {
		return nil, err
	}
	h.classes = cfg.Classes
	h.index = nn.ClassIndex(cfg.Classes)
	return cfg.Classes, nil
}
