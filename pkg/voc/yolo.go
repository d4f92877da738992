package voc

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/cyclopcam/boxlabel/pkg/iox"
	"github.com/cyclopcam/boxlabel/pkg/nn"
	"github.com/cyclopcam/logs"
	"golang.org/x/sync/errgroup"
)

// CategoryMap maps a label to its YOLO class index
type CategoryMap map[string]int

// CategoriesFromClasses assigns class indices in list order. Duplicates keep their first index.
func CategoriesFromClasses(classes []string) CategoryMap {
	m := CategoryMap{}
	for i, c := range classes {
		if _, ok := m[c]; !ok {
			m[c] = i
		}
	}
	return m
}

// Classes returns the labels ordered by class index
func (m CategoryMap) Classes() []string {
	classes := make([]string, 0, len(m))
	for c := range m {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool {
		if m[classes[i]] != m[classes[j]] {
			return m[classes[i]] < m[classes[j]]
		}
		return classes[i] < classes[j]
	})
	return classes
}

type ConvertOptions struct {
	OBB     bool // Write rotated boxes as four normalized corners
	Workers int  // Files converted concurrently by ConvertFolder. Zero means GOMAXPROCS.
}

// FileResult describes the conversion of one XML file
type FileResult struct {
	Input          string
	Output         string // Empty if the file was skipped
	Lines          int
	SkippedObjects int
	Skipped        bool // No <size> element, so nothing could be normalized
}

// Summary describes the conversion of a folder
type Summary struct {
	Converted      int
	Skipped        int
	Lines          int
	SkippedObjects int
	Failed         map[string]error // Keyed by XML path
}

// FormatAxisAligned returns a YOLO line "class cx cy w h", normalized by the image size
func FormatAxisAligned(class int, b nn.BoundingBox, imgWidth, imgHeight int) string {
	xmin, ymin := float64(b.X), float64(b.Y)
	xmax, ymax := float64(b.X+b.Width), float64(b.Y+b.Height)
	iw, ih := float64(imgWidth), float64(imgHeight)
	cx := (xmin + xmax) / 2 / iw
	cy := (ymin + ymax) / 2 / ih
	w := (xmax - xmin) / iw
	h := (ymax - ymin) / ih
	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f", class, cx, cy, w, h)
}

// FormatOBB returns a YOLO OBB line "class x1 y1 x2 y2 x3 y3 x4 y4", with the rotated corners
// in the order top left, top right, bottom right, bottom left, normalized by the image size.
func FormatOBB(class int, b nn.BoundingBox, imgWidth, imgHeight int) string {
	w := float64(b.Width)
	h := float64(b.Height)
	cx := float64(b.X) + w/2
	cy := float64(b.Y) + h/2
	offsets := [4][2]float64{
		{-w / 2, -h / 2},
		{w / 2, -h / 2},
		{w / 2, h / 2},
		{-w / 2, h / 2},
	}
	sin, cos := math.Sincos(float64(b.Angle) * math.Pi / 180)
	sb := strings.Builder{}
	fmt.Fprintf(&sb, "%d", class)
	for _, off := range offsets {
		x := cx + off[0]*cos - off[1]*sin
		y := cy + off[0]*sin + off[1]*cos
		fmt.Fprintf(&sb, " %.6f %.6f", x/float64(imgWidth), y/float64(imgHeight))
	}
	return sb.String()
}

// YOLOLines converts the boxes of a document into YOLO lines.
// Boxes whose label is not in categories are skipped with a warning.
// Returns the lines and the number of skipped boxes.
func YOLOLines(log logs.Log, d *Document, categories CategoryMap, obb bool) ([]string, int) {
	lines := []string{}
	skipped := 0
	for _, b := range d.Boxes {
		class, ok := categories[b.Label]
		if !ok {
			log.Warnf("Label '%v' not in categories, skipping", b.Label)
			skipped++
			continue
		}
		// Angles are stored as integers in the XML
		b.Angle = float32(int(b.Angle))
		if obb && b.IsRotated() {
			lines = append(lines, FormatOBB(class, b, d.Width, d.Height))
		} else {
			lines = append(lines, FormatAxisAligned(class, b, d.Width, d.Height))
		}
	}
	return lines, skipped
}

// YOLOFilename returns the label file name for an annotation file: the same stem with .txt
func YOLOFilename(xmlPath, outFolder string) string {
	base := filepath.Base(xmlPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outFolder, stem+".txt")
}

// ConvertFile converts one VOC XML file into a YOLO label file in outFolder.
// A file without a <size> element is skipped with a warning, and is not an error.
func ConvertFile(log logs.Log, xmlPath, outFolder string, categories CategoryMap, obb bool) (FileResult, error) {
	res := FileResult{Input: xmlPath}
	d, err := ReadFile(xmlPath)
	if err != nil {
		return res, err
	}
	if !d.HasSize || d.Width <= 0 || d.Height <= 0 {
		log.Warnf("No size element found in %v, skipping", xmlPath)
		res.Skipped = true
		return res, nil
	}
	lines, skipped := YOLOLines(log, d, categories, obb)
	res.Lines = len(lines)
	res.SkippedObjects = skipped
	res.Output = YOLOFilename(xmlPath, outFolder)
	if err := iox.WriteFileAtomic(res.Output, []byte(strings.Join(lines, "\n"))); err != nil {
		return res, fmt.Errorf("Error writing %v: %w", res.Output, err)
	}
	return res, nil
}

// ListXML returns the *.xml files directly inside folder, sorted
func ListXML(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}
	files := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".xml") {
			files = append(files, filepath.Join(folder, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// ConvertFolder converts every VOC XML file in folder. If outFolder is empty, label files
// are written next to the XML files. A bad file is recorded in the summary and does not
// stop the others.
func ConvertFolder(ctx context.Context, log logs.Log, folder, outFolder string, categories CategoryMap, opt ConvertOptions) (*Summary, error) {
	if outFolder == "" {
		outFolder = folder
	}
	if err := os.MkdirAll(outFolder, 0755); err != nil {
		return nil, err
	}
	files, err := ListXML(folder)
	if err != nil {
		return nil, err
	}
	workers := opt.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	summary := &Summary{Failed: map[string]error{}}
	var lock sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, fn := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := ConvertFile(log, fn, outFolder, categories, opt.OBB)
			lock.Lock()
			defer lock.Unlock()
			if err != nil {
				log.Errorf("%v", err)
				summary.Failed[fn] = err
			} else if res.Skipped {
				summary.Skipped++
			} else {
				summary.Converted++
				summary.Lines += res.Lines
				summary.SkippedObjects += res.SkippedObjects
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	log.Infof("Converted %v xml files (%v skipped, %v failed)", summary.Converted, summary.Skipped, len(summary.Failed))
	return summary, nil
}
