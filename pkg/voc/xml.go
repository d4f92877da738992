// Package voc reads and writes Pascal VOC annotation files, and converts them to YOLO label files.
package voc

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cyclopcam/boxlabel/pkg/iox"
	"github.com/cyclopcam/boxlabel/pkg/nn"
)

// Document is the content of one VOC annotation file
type Document struct {
	Folder   string
	Filename string
	Width    int
	Height   int
	HasSize  bool // False if the file had no <size> element
	Boxes    []nn.BoundingBox
}

func NewDocument(folder, filename string, width, height int, boxes []nn.BoundingBox) *Document {
	return &Document{
		Folder:   folder,
		Filename: filename,
		Width:    width,
		Height:   height,
		HasSize:  true,
		Boxes:    boxes,
	}
}

// Numbers are kept as strings so that a bad value in one object does not
// prevent us from returning the objects before it.
type xmlAnnotation struct {
	XMLName  xml.Name    `xml:"annotation"`
	Folder   string      `xml:"folder"`
	Filename string      `xml:"filename"`
	Size     *xmlSize    `xml:"size"`
	Objects  []xmlObject `xml:"object"`
}

type xmlSize struct {
	Width  string `xml:"width"`
	Height string `xml:"height"`
}

type xmlObject struct {
	Name   string    `xml:"name"`
	BndBox xmlBndBox `xml:"bndbox"`
}

type xmlBndBox struct {
	XMin       string  `xml:"xmin"`
	YMin       string  `xml:"ymin"`
	XMax       string  `xml:"xmax"`
	YMax       string  `xml:"ymax"`
	Confidence *string `xml:"confidence"`
	Angle      *string `xml:"angle"`
}

// Marshal produces the XML text of the document
func (d *Document) Marshal() ([]byte, error) {
	a := xmlAnnotation{
		Folder:   d.Folder,
		Filename: d.Filename,
		Size: &xmlSize{
			Width:  strconv.Itoa(d.Width),
			Height: strconv.Itoa(d.Height),
		},
	}
	for _, b := range d.Boxes {
		b.Normalize()
		conf := strconv.FormatFloat(float64(b.Confidence), 'f', -1, 32)
		angle := strconv.Itoa(int(b.Angle))
		a.Objects = append(a.Objects, xmlObject{
			Name: b.Label,
			BndBox: xmlBndBox{
				XMin:       strconv.Itoa(b.X),
				YMin:       strconv.Itoa(b.Y),
				XMax:       strconv.Itoa(b.X + b.Width),
				YMax:       strconv.Itoa(b.Y + b.Height),
				Confidence: &conf,
				Angle:      &angle,
			},
		})
	}
	out, err := xml.MarshalIndent(&a, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// WriteFile replaces filename with the document
func (d *Document) WriteFile(filename string) error {
	b, err := d.Marshal()
	if err != nil {
		return err
	}
	if err := iox.WriteFileAtomic(filename, b); err != nil {
		return fmt.Errorf("Error writing %v: %w", filename, err)
	}
	return nil
}

// Unmarshal parses a VOC document.
// If the document is well formed but an object has a bad number, the returned document
// holds the objects before the bad one, and the error describes the bad one.
func Unmarshal(data []byte) (*Document, error) {
	return Decode(bytes.NewReader(data))
}

// Decode parses a VOC document. See Unmarshal for the behaviour on bad objects.
func Decode(r io.Reader) (*Document, error) {
	a := xmlAnnotation{}
	if err := xml.NewDecoder(r).Decode(&a); err != nil {
		return &Document{}, fmt.Errorf("Invalid VOC XML: %w", err)
	}
	d := &Document{
		Folder:   strings.TrimSpace(a.Folder),
		Filename: strings.TrimSpace(a.Filename),
	}
	if a.Size != nil {
		w, errW := parseInt(a.Size.Width)
		h, errH := parseInt(a.Size.Height)
		if errW != nil || errH != nil {
			return d, fmt.Errorf("Invalid <size> element: '%v' x '%v'", a.Size.Width, a.Size.Height)
		}
		d.Width = w
		d.Height = h
		d.HasSize = true
	}
	for i, obj := range a.Objects {
		b, err := obj.toBox()
		if err != nil {
			return d, fmt.Errorf("Object %v ('%v'): %w", i, obj.Name, err)
		}
		d.Boxes = append(d.Boxes, b)
	}
	return d, nil
}

// ReadFile loads a VOC document from disk. See Unmarshal for partial results.
func ReadFile(filename string) (*Document, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	d, err := Decode(f)
	if err != nil {
		return d, fmt.Errorf("Error reading %v: %w", filename, err)
	}
	return d, nil
}

func (o *xmlObject) toBox() (nn.BoundingBox, error) {
	bb := &o.BndBox
	xmin, err := parseInt(bb.XMin)
	if err != nil {
		return nn.BoundingBox{}, fmt.Errorf("Invalid xmin: %w", err)
	}
	ymin, err := parseInt(bb.YMin)
	if err != nil {
		return nn.BoundingBox{}, fmt.Errorf("Invalid ymin: %w", err)
	}
	xmax, err := parseInt(bb.XMax)
	if err != nil {
		return nn.BoundingBox{}, fmt.Errorf("Invalid xmax: %w", err)
	}
	ymax, err := parseInt(bb.YMax)
	if err != nil {
		return nn.BoundingBox{}, fmt.Errorf("Invalid ymax: %w", err)
	}
	b := nn.NewBoundingBox(xmin, ymin, xmax-xmin, ymax-ymin, strings.TrimSpace(o.Name))
	if bb.Confidence != nil {
		c, err := parseFloat(*bb.Confidence)
		if err != nil {
			return nn.BoundingBox{}, fmt.Errorf("Invalid confidence: %w", err)
		}
		b.Confidence = c
	}
	if bb.Angle != nil {
		a, err := parseFloat(*bb.Angle)
		if err != nil {
			return nn.BoundingBox{}, fmt.Errorf("Invalid angle: %w", err)
		}
		b.SetAngle(a)
	}
	return b, nil
}

// Some tools write pixel coordinates as "12.0"
func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func parseFloat(s string) (float32, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
	return float32(f), err
}
