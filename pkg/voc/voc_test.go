package voc

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cyclopcam/boxlabel/pkg/nn"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func TestXMLRoundTrip(t *testing.T) {
	b1 := nn.NewBoundingBox(10, 20, 30, 40, "cat")
	b2 := nn.BoundingBox{X: 100, Y: 100, Width: 200, Height: 50, Label: "dog", Confidence: 0.75, Angle: 45.9}
	d := NewDocument("images", "a.jpg", 640, 480, []nn.BoundingBox{b1, b2})

	fn := filepath.Join(t.TempDir(), "a.xml")
	require.NoError(t, d.WriteFile(fn))
	raw, err := os.ReadFile(fn)
	require.NoError(t, err)
	text := string(raw)
	require.True(t, strings.HasPrefix(text, "<annotation>\n    <folder>images</folder>"))
	require.Contains(t, text, "<xmax>40</xmax>")
	require.Contains(t, text, "<ymax>150</ymax>")
	require.Contains(t, text, "<confidence>-1</confidence>")
	require.Contains(t, text, "<confidence>0.75</confidence>")
	require.Contains(t, text, "<angle>45</angle>")

	back, err := ReadFile(fn)
	require.NoError(t, err)
	require.Equal(t, "images", back.Folder)
	require.Equal(t, "a.jpg", back.Filename)
	require.True(t, back.HasSize)
	require.Equal(t, 640, back.Width)
	require.Equal(t, 480, back.Height)
	require.Len(t, back.Boxes, 2)
	require.Equal(t, b1, back.Boxes[0])
	require.Equal(t, nn.Rect{X: 100, Y: 100, Width: 200, Height: 50}, back.Boxes[1].Rect())
	require.EqualValues(t, 45, back.Boxes[1].Angle)
	require.EqualValues(t, 0.75, back.Boxes[1].Confidence)
}

func TestDecodeOptionalFields(t *testing.T) {
	d, err := Unmarshal([]byte(`<annotation>
	<filename>x.png</filename>
	<object><name>car</name><bndbox><xmin>1</xmin><ymin>2</ymin><xmax>11.0</xmax><ymax>22</ymax></bndbox></object>
</annotation>`))
	require.NoError(t, err)
	require.False(t, d.HasSize)
	require.Len(t, d.Boxes, 1)
	b := d.Boxes[0]
	require.Equal(t, nn.Rect{X: 1, Y: 2, Width: 10, Height: 20}, b.Rect())
	require.EqualValues(t, 0, b.Angle)
	require.EqualValues(t, nn.ConfidenceManual, b.Confidence)
}

func TestDecodePartial(t *testing.T) {
	d, err := Unmarshal([]byte(`<annotation>
	<size><width>100</width><height>100</height></size>
	<object><name>a</name><bndbox><xmin>1</xmin><ymin>1</ymin><xmax>5</xmax><ymax>5</ymax></bndbox></object>
	<object><name>b</name><bndbox><xmin>one</xmin><ymin>1</ymin><xmax>5</xmax><ymax>5</ymax></bndbox></object>
	<object><name>c</name><bndbox><xmin>1</xmin><ymin>1</ymin><xmax>5</xmax><ymax>5</ymax></bndbox></object>
</annotation>`))
	require.Error(t, err)
	require.Len(t, d.Boxes, 1)
	require.Equal(t, "a", d.Boxes[0].Label)

	_, err = Unmarshal([]byte("<annotation><object>"))
	require.Error(t, err)
}

func TestFormatAxisAligned(t *testing.T) {
	b := nn.NewBoundingBox(100, 100, 200, 200, "cat")
	require.Equal(t, "0 0.312500 0.416667 0.312500 0.416667", FormatAxisAligned(0, b, 640, 480))
}

func TestFormatOBB(t *testing.T) {
	b := nn.NewBoundingBox(100, 100, 200, 200, "cat")
	b.Angle = 90
	require.Equal(t, "0 0.468750 0.208333 0.468750 0.625000 0.156250 0.625000 0.156250 0.208333", FormatOBB(0, b, 640, 480))
}

func TestYOLOLines(t *testing.T) {
	log := logs.NewTestingLog(t)
	rotated := nn.NewBoundingBox(100, 100, 200, 200, "dog")
	rotated.Angle = 90
	d := NewDocument("", "", 640, 480, []nn.BoundingBox{
		nn.NewBoundingBox(100, 100, 200, 200, "cat"),
		nn.NewBoundingBox(0, 0, 10, 10, "unknown"),
		rotated,
	})
	cats := CategoryMap{"cat": 0, "dog": 1}

	lines, skipped := YOLOLines(log, d, cats, false)
	require.Equal(t, 1, skipped)
	require.Equal(t, []string{
		"0 0.312500 0.416667 0.312500 0.416667",
		"1 0.312500 0.416667 0.312500 0.416667",
	}, lines)

	lines, _ = YOLOLines(log, d, cats, true)
	require.Equal(t, []string{
		"0 0.312500 0.416667 0.312500 0.416667",
		"1 0.468750 0.208333 0.468750 0.625000 0.156250 0.625000 0.156250 0.208333",
	}, lines)
}

func TestCategories(t *testing.T) {
	m := CategoriesFromClasses([]string{"person", "car", "person", "dog"})
	require.Equal(t, CategoryMap{"person": 0, "car": 1, "dog": 3}, m)
	require.Equal(t, []string{"person", "car", "dog"}, m.Classes())
}

func writeDoc(t *testing.T, fn string, d *Document) {
	require.NoError(t, d.WriteFile(fn))
}

func TestConvertFolder(t *testing.T) {
	log := logs.NewTestingLog(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "labels")
	cats := CategoryMap{"cat": 0, "dog": 1}

	writeDoc(t, filepath.Join(dir, "a.xml"), NewDocument("", "a.jpg", 640, 480, []nn.BoundingBox{
		nn.NewBoundingBox(100, 100, 200, 200, "cat"),
		nn.NewBoundingBox(0, 0, 64, 48, "dog"),
		nn.NewBoundingBox(0, 0, 64, 48, "bird"),
	}))
	writeDoc(t, filepath.Join(dir, "b.xml"), NewDocument("", "b.jpg", 640, 480, nil))
	// No size
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.xml"), []byte("<annotation><filename>c.jpg</filename></annotation>"), 0644))
	// Broken
	require.NoError(t, os.WriteFile(filepath.Join(dir, "d.xml"), []byte("<annotation><size>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0644))

	summary, err := ConvertFolder(context.Background(), log, dir, out, cats, ConvertOptions{Workers: 2})
	require.NoError(t, err)
	require.Equal(t, 2, summary.Converted)
	require.Equal(t, 1, summary.Skipped)
	require.Len(t, summary.Failed, 1)
	require.Contains(t, summary.Failed, filepath.Join(dir, "d.xml"))
	require.Equal(t, 2, summary.Lines)
	require.Equal(t, 1, summary.SkippedObjects)

	a, err := os.ReadFile(filepath.Join(out, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "0 0.312500 0.416667 0.312500 0.416667\n1 0.050000 0.050000 0.100000 0.100000", string(a))
	b, err := os.ReadFile(filepath.Join(out, "b.txt"))
	require.NoError(t, err)
	require.Equal(t, "", string(b))
	_, err = os.Stat(filepath.Join(out, "c.txt"))
	require.True(t, os.IsNotExist(err))
}

func TestConvertFolderDefaultsToInput(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, filepath.Join(dir, "x.xml"), NewDocument("", "x.jpg", 100, 100, []nn.BoundingBox{nn.NewBoundingBox(0, 0, 50, 50, "cat")}))
	summary, err := ConvertFolder(context.Background(), logs.NewTestingLog(t), dir, "", CategoryMap{"cat": 0}, ConvertOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Converted)
	_, err = os.Stat(filepath.Join(dir, "x.txt"))
	require.NoError(t, err)
}

func TestConvertFolderCancelled(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, filepath.Join(dir, "x.xml"), NewDocument("", "x.jpg", 100, 100, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ConvertFolder(ctx, logs.NewTestingLog(t), dir, "", CategoryMap{}, ConvertOptions{})
	require.Error(t, err)
}
