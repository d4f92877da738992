package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chewxy/math32"
	"github.com/cyclopcam/boxlabel/pkg/nn"
	"github.com/disintegration/imaging"
	"github.com/ollama/ollama/api"
)

const ollamaTimeout = 5 * time.Minute

// Ollama asks a vision language model to list the objects in an image.
// Coordinates come back as fractions of the image size.
type Ollama struct {
	Model   string
	client  *api.Client
	classes []string
	index   map[string]int
}

type ollamaObject struct {
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
	Box        struct {
		X float32 `json:"x"`
		Y float32 `json:"y"`
		W float32 `json:"w"`
		H float32 `json:"h"`
	} `json:"box"`
}

type ollamaReply struct {
	Objects []ollamaObject `json:"objects"`
}

func NewOllama(ollamaURL, model string, classes []string) (*Ollama, error) {
	parsed, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("Invalid Ollama URL '%v': %w", ollamaURL, err)
	}
	// Drop any path such as /api/chat
	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	return &Ollama{
		Model:   model,
		client:  api.NewClient(base, http.DefaultClient),
		classes: classes,
		index:   nn.ClassIndex(classes),
	}, nil
}

func (o *Ollama) Close() {
}

func (o *Ollama) prompt() string {
	p := strings.Builder{}
	p.WriteString("Find every distinct object in this image. ")
	if len(o.classes) != 0 {
		fmt.Fprintf(&p, "Only report objects of these kinds: %v. ", strings.Join(o.classes, ", "))
	}
	p.WriteString(`Reply with JSON only, in the form {"objects": [{"label": "car", "confidence": 0.9, "box": {"x": 0.1, "y": 0.2, "w": 0.3, "h": 0.4}}]}. `)
	p.WriteString("x, y is the top left corner, and all box values are fractions of the image width and height, between 0 and 1.")
	return p.String()
}

func (o *Ollama) DetectObjects(ctx context.Context, img image.Image, params *nn.DetectionParams) ([]nn.ObjectDetection, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ollamaTimeout)
		defer cancel()
	}

	buf := bytes.Buffer{}
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	stream := false
	req := &api.ChatRequest{
		Model: o.Model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: o.prompt(),
				Images:  []api.ImageData{api.ImageData(buf.Bytes())},
			},
		},
		Stream: &stream,
		Format: json.RawMessage(`"json"`),
	}
	content := strings.Builder{}
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Ollama chat error: %w", err)
	}
	return o.parse(content.String(), img.Bounds().Dx(), img.Bounds().Dy())
}

// parse extracts the JSON object from a model reply, which may be wrapped in prose or code fences
func (o *Ollama) parse(raw string, width, height int) ([]nn.ObjectDetection, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("No JSON found in model reply: %v", raw)
	}
	reply := ollamaReply{}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &reply); err != nil {
		return nil, fmt.Errorf("Invalid JSON in model reply: %w", err)
	}
	fw := float32(width)
	fh := float32(height)
	dets := []nn.ObjectDetection{}
	for _, obj := range reply.Objects {
		label := strings.TrimSpace(obj.Label)
		if label == "" {
			continue
		}
		class, label := labelFor(o.classes, o.index, -1, label)
		conf := obj.Confidence
		if conf <= 0 || conf > 1 {
			// Models often omit this
			conf = 1
		}
		dets = append(dets, nn.ObjectDetection{
			Class:      class,
			Label:      label,
			Confidence: conf,
			Box: nn.Rect{
				X:      int(math32.Round(obj.Box.X * fw)),
				Y:      int(math32.Round(obj.Box.Y * fh)),
				Width:  int(math32.Round(obj.Box.W * fw)),
				Height: int(math32.Round(obj.Box.H * fh)),
			},
		})
	}
	return dets, nil
}
