// Package dataset walks the media files of an annotation folder, and loads and saves their annotations
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cyclopcam/boxlabel/pkg/gen"
	"github.com/cyclopcam/boxlabel/pkg/imagex"
	"github.com/cyclopcam/boxlabel/pkg/nn"
	"github.com/cyclopcam/boxlabel/pkg/voc"
	"github.com/cyclopcam/logs"
)

type Cmd string

const (
	CmdNext      Cmd = "next"
	CmdPrev      Cmd = "prev"
	CmdFirst     Cmd = "first"
	CmdLast      Cmd = "last"
	CmdSameIndex Cmd = "same" // Clamp the index after the file list shrank
)

var ErrEmpty = errors.New("No media files in folder")

// Dataset is the sorted list of media files in one folder, and a cursor into it.
// It is not safe for concurrent use.
type Dataset struct {
	Folder     string
	SaveFolder string // Where annotations go. Empty means next to the media.
	Files      []string
	Index      int
}

// Open lists the media in folder and positions the cursor at index (clamped)
func Open(folder, saveFolder string, index int) (*Dataset, error) {
	d := &Dataset{
		Folder:     folder,
		SaveFolder: saveFolder,
		Index:      index,
	}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload re-reads the folder, keeping the index if it is still in range
func (d *Dataset) Reload() error {
	files, err := imagex.ListMedia(d.Folder)
	if err != nil {
		return fmt.Errorf("Error listing %v: %w", d.Folder, err)
	}
	d.Files = files
	d.clamp()
	return nil
}

func (d *Dataset) clamp() {
	if len(d.Files) == 0 {
		d.Index = 0
		return
	}
	d.Index = gen.Clamp(d.Index, 0, len(d.Files)-1)
}

func (d *Dataset) Len() int {
	return len(d.Files)
}

// Navigate moves the cursor, and returns true if the current file should be (re)loaded
func (d *Dataset) Navigate(cmd Cmd) bool {
	if len(d.Files) == 0 {
		return false
	}
	switch cmd {
	case CmdNext:
		if d.Index < len(d.Files)-1 {
			d.Index++
			return true
		}
	case CmdPrev:
		if d.Index > 0 {
			d.Index--
			return true
		}
	case CmdFirst:
		if d.Index != 0 {
			d.Index = 0
			return true
		}
	case CmdLast:
		if d.Index != len(d.Files)-1 {
			d.Index = len(d.Files) - 1
			return true
		}
	case CmdSameIndex:
		d.clamp()
		return true
	}
	return false
}

// Remove drops a file from the list (eg after it was deleted on disk) and clamps the cursor
func (d *Dataset) Remove(name string) bool {
	for i, f := range d.Files {
		if f == name {
			d.Files = append(d.Files[:i], d.Files[i+1:]...)
			if i < d.Index {
				d.Index--
			}
			d.Navigate(CmdSameIndex)
			return true
		}
	}
	return false
}

// Current returns the full path of the current media file, or "" if the folder is empty
func (d *Dataset) Current() string {
	if len(d.Files) == 0 {
		return ""
	}
	return filepath.Join(d.Folder, d.Files[d.Index])
}

// AnnotationPath returns where the annotations of the current file live
func (d *Dataset) AnnotationPath() string {
	cur := d.Current()
	if cur == "" {
		return ""
	}
	return imagex.AnnotationPath(cur, d.SaveFolder)
}

// LoadAnnotations reads the VOC file at xmlPath. A missing file is an empty set.
// If the file is partially broken, the boxes that could be read are returned with the error.
func LoadAnnotations(log logs.Log, xmlPath string) ([]nn.BoundingBox, error) {
	doc, err := voc.ReadFile(xmlPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if doc == nil {
		return nil, err
	}
	if err != nil {
		log.Warnf("%v (kept %v boxes)", err, len(doc.Boxes))
	}
	return doc.Boxes, err
}

// SaveAnnotations writes boxes for mediaPath to xmlPath.
// width and height are the content size. If they are unknown (zero), the image header is read.
func SaveAnnotations(mediaPath, xmlPath string, width, height int, boxes []nn.BoundingBox) error {
	if width <= 0 || height <= 0 {
		var err error
		width, height, err = imagex.Size(mediaPath)
		if err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(xmlPath), 0755); err != nil {
		return err
	}
	folder := filepath.Base(filepath.Dir(mediaPath))
	doc := voc.NewDocument(folder, filepath.Base(mediaPath), width, height, boxes)
	return doc.WriteFile(xmlPath)
}
