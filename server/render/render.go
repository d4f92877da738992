// Package render draws annotation boxes onto an image, for previews and for checking exported datasets
package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"github.com/chai2010/webp"
	"github.com/cyclopcam/boxlabel/pkg/hittest"
	"github.com/cyclopcam/boxlabel/pkg/nn"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

var (
	colorNormal   = color.NRGBA{0, 220, 0, 255}
	colorSelected = color.NRGBA{255, 60, 60, 255}
	colorHandle   = color.NRGBA{0, 160, 255, 255}
	colorText     = color.NRGBA{255, 255, 255, 255}
	colorTextBack = color.NRGBA{0, 0, 0, 160}
)

type Options struct {
	Focus      int     // Index of the box whose rotation handle is drawn, or -1
	LineWidth  float64 // Zero means 2
	ShowLabels bool
}

// Draw returns a copy of img with the boxes drawn on top.
// Boxes are drawn as their rotated outline, in original image coordinates.
func Draw(img image.Image, boxes []nn.BoundingBox, opt Options) image.Image {
	dc := gg.NewContextForImage(img)
	lineWidth := opt.LineWidth
	if lineWidth <= 0 {
		lineWidth = 2
	}
	dc.SetLineWidth(lineWidth)

	for i, b := range boxes {
		c := colorNormal
		if b.State == nn.StateSelected || i == opt.Focus {
			c = colorSelected
		}
		corners := b.RotatedCorners()
		dc.SetColor(c)
		dc.MoveTo(float64(corners[0].X), float64(corners[0].Y))
		for _, p := range corners[1:] {
			dc.LineTo(float64(p.X), float64(p.Y))
		}
		dc.ClosePath()
		dc.Stroke()

		if i == opt.Focus {
			center := b.Center()
			handle := hittest.RotationHandle(b)
			dc.SetColor(colorHandle)
			dc.DrawLine(float64(center.X), float64(center.Y), float64(handle.X), float64(handle.Y))
			dc.Stroke()
			dc.DrawCircle(float64(handle.X), float64(handle.Y), hittest.RotationHandleRadius)
			dc.Fill()
		}

		if opt.ShowLabels && b.Label != "" {
			text := b.Label
			if b.Confidence >= 0 {
				text = fmt.Sprintf("%v %.2f", b.Label, b.Confidence)
			}
			tw, th := dc.MeasureString(text)
			x := float64(corners[0].X)
			y := float64(corners[0].Y) - 2
			dc.SetColor(colorTextBack)
			dc.DrawRectangle(x, y-th-2, tw+4, th+4)
			dc.Fill()
			dc.SetColor(colorText)
			dc.DrawStringAnchored(text, x+2, y, 0, 0)
		}
	}
	return dc.Image()
}

type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
)

// FormatFromName picks a format from a file extension or a format name
func FormatFromName(name string) (Format, error) {
	n := strings.TrimPrefix(strings.ToLower(name), ".")
	if i := strings.LastIndex(n, "."); i >= 0 {
		n = n[i+1:]
	}
	switch n {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "webp":
		return FormatWebP, nil
	}
	return "", fmt.Errorf("Unsupported image format '%v'", name)
}

func (f Format) ContentType() string {
	return "image/" + string(f)
}

// Encode writes img in the given format. quality applies to JPEG and lossy WebP. A quality
// of zero with WebP means lossless.
func Encode(w io.Writer, img image.Image, format Format, quality int) error {
	switch format {
	case FormatPNG:
		return imaging.Encode(w, img, imaging.PNG)
	case FormatJPEG:
		if quality <= 0 {
			quality = 90
		}
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case FormatWebP:
		opts := &webp.Options{Lossless: quality <= 0, Quality: float32(quality)}
		return webp.Encode(w, img, opts)
	}
	return fmt.Errorf("Unsupported image format '%v'", format)
}
