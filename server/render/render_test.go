package render

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/cyclopcam/boxlabel/pkg/nn"
	"github.com/stretchr/testify/require"
)

func TestDraw(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 200, 200))
	box := nn.NewBoundingBox(50, 60, 100, 80, "cat")
	out := Draw(src, []nn.BoundingBox{box}, Options{Focus: 0, LineWidth: 2, ShowLabels: true})
	require.Equal(t, src.Bounds(), out.Bounds())

	// The outline passes through the middle of the left edge
	r, g, _, a := out.At(50, 100).RGBA()
	require.NotZero(t, a)
	require.Greater(t, r, g)
	// The interior is untouched
	require.Equal(t, color.RGBA{}, color.RGBAModel.Convert(out.At(70, 120)))
	// The source is not modified
	require.Equal(t, color.NRGBA{}, src.NRGBAAt(50, 100))

	// Unfocused boxes are green
	out = Draw(src, []nn.BoundingBox{box}, Options{Focus: -1})
	r, g, _, _ = out.At(50, 100).RGBA()
	require.Greater(t, g, r)
}

func TestEncode(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 8))
	for _, f := range []Format{FormatPNG, FormatJPEG, FormatWebP} {
		buf := bytes.Buffer{}
		require.NoError(t, Encode(&buf, img, f, 0), "%v", f)
		cfg, name, err := image.DecodeConfig(&buf)
		require.NoError(t, err, "%v", f)
		require.Equal(t, string(f), name)
		require.Equal(t, 16, cfg.Width)
	}
	require.Error(t, Encode(&bytes.Buffer{}, img, Format("gif"), 0))
}

func TestFormatFromName(t *testing.T) {
	for name, expect := range map[string]Format{"PNG": FormatPNG, ".jpg": FormatJPEG, "out/preview.webp": FormatWebP, "jpeg": FormatJPEG} {
		f, err := FormatFromName(name)
		require.NoError(t, err)
		require.Equal(t, expect, f)
	}
	_, err := FormatFromName("bmp")
	require.Error(t, err)
	require.Equal(t, "image/webp", FormatWebP.ContentType())
}
