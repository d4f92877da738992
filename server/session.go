package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/cyclopcam/boxlabel/pkg/hittest"
	"github.com/cyclopcam/boxlabel/pkg/imagex"
	"github.com/cyclopcam/boxlabel/pkg/nn"
	"github.com/cyclopcam/boxlabel/pkg/transform"
	"github.com/cyclopcam/boxlabel/pkg/viewport"
	"github.com/cyclopcam/boxlabel/server/config"
	"github.com/cyclopcam/boxlabel/server/dataset"
	"github.com/cyclopcam/boxlabel/server/detect"
	"github.com/cyclopcam/boxlabel/server/render"
)

var errNoMedia = errors.New("No media file is loaded")
var errNoDetector = errors.New("No detector is configured")

// SessionState is what a client needs to draw the current file
type SessionState struct {
	Folder    string             `json:"folder"`
	Files     int                `json:"files"`
	Index     int                `json:"index"`
	File      string             `json:"file"`
	IsVideo   bool               `json:"isVideo"`
	Mapper    viewport.Mapper    `json:"mapper"`
	Boxes     []nn.BoundingBox   `json:"boxes"`
	Focus     int                `json:"focus"`
	Gesture   string             `json:"gesture"`
	Edited    bool               `json:"edited"`
	Flags     config.Snapshot    `json:"flags"`
	Rotations []rotationHandleUI `json:"rotationHandles"`
}

type rotationHandleUI struct {
	Index int       `json:"index"`
	At    nn.PointF `json:"at"` // Display space
}

// openFolder lists the media of folder and loads the file at index. Caller must hold the lock,
// or be the constructor.
func (s *Server) openFolder(folder string, index int) error {
	ds, err := dataset.Open(folder, s.Settings.SaveFolder, index)
	if err != nil {
		return err
	}
	s.dataset = ds
	s.Settings.FolderPath = folder
	s.Settings.FileIndex = ds.Index
	s.Log.Infof("Opened %v (%v media files)", folder, ds.Len())
	return s.loadCurrentLocked(context.Background())
}

// loadCurrentLocked loads the annotations of the dataset's current file into the engine.
// If there are none, and auto detect is on, the detector seeds the set.
func (s *Server) loadCurrentLocked(ctx context.Context) error {
	for {
		s.current = s.dataset.Current()
		if s.current == "" {
			break
		}
		if _, err := os.Stat(s.current); !errors.Is(err, os.ErrNotExist) {
			break
		}
		s.Log.Warnf("%v was deleted, dropping it from the list", s.current)
		s.dataset.Remove(filepath.Base(s.current))
	}
	s.Settings.FileIndex = s.dataset.Index
	if s.current == "" {
		s.mapper.Clear()
		s.engine.Replace(nil)
		return nil
	}
	s.sessionLog.SetPrefix(filepath.Base(s.current) + ":")
	if imagex.IsImage(s.current) {
		w, h, err := imagex.Size(s.current)
		if err != nil {
			s.sessionLog.Warnf("%v", err)
			s.mapper.Clear()
		} else {
			s.mapper.SetContent(w, h)
		}
	} else {
		// Video frames are decoded by the client, which reports the frame size with the viewport
		s.mapper.Clear()
	}

	xmlPath := s.dataset.AnnotationPath()
	boxes, err := dataset.LoadAnnotations(s.sessionLog, xmlPath)
	if err != nil && len(boxes) == 0 {
		s.sessionLog.Errorf("Failed to load annotations: %v", err)
	}
	s.engine.Replace(boxes)
	s.State.ClearEdited(s.State.EditGeneration())

	if len(boxes) == 0 && err == nil && s.State.AutoDetect() && s.detector != nil && imagex.IsImage(s.current) {
		if err := s.detectLocked(ctx); err != nil {
			s.sessionLog.Warnf("Auto detect failed: %v", err)
		}
	}
	s.sessionLog.Infof("Loaded %v boxes", s.engine.Len())
	return nil
}

// saveLocked writes the current set to its VOC file
func (s *Server) saveLocked() error {
	if s.current == "" {
		return errNoMedia
	}
	gen := s.State.EditGeneration()
	err := dataset.SaveAnnotations(s.current, s.dataset.AnnotationPath(), s.mapper.ContentWidth, s.mapper.ContentHeight, s.engine.Boxes())
	if err != nil {
		return err
	}
	s.State.ClearEdited(gen)
	s.sessionLog.Infof("Saved %v boxes to %v", s.engine.Len(), s.dataset.AnnotationPath())
	return nil
}

// navigateLocked saves pending edits, moves the cursor, and loads the new file
func (s *Server) navigateLocked(ctx context.Context, cmd dataset.Cmd) (bool, error) {
	if s.dataset == nil {
		return false, errNoMedia
	}
	if s.State.IsEdited() && s.current != "" {
		if err := s.saveLocked(); err != nil {
			return false, err
		}
	}
	if cmd == dataset.CmdSameIndex {
		if err := s.dataset.Reload(); err != nil {
			return false, err
		}
	}
	if !s.dataset.Navigate(cmd) {
		return false, nil
	}
	s.Settings.FileIndex = s.dataset.Index
	return true, s.loadCurrentLocked(ctx)
}

func (s *Server) loadImageLocked() (image.Image, error) {
	if s.current == "" {
		return nil, errNoMedia
	}
	return imagex.Load(s.current)
}

// detectLocked replaces the current set with the detector's output
func (s *Server) detectLocked(ctx context.Context) error {
	if s.detector == nil {
		return errNoDetector
	}
	img, err := s.loadImageLocked()
	if err != nil {
		return err
	}
	params := nn.NewDetectionParams()
	if s.Settings.Detector.Threshold > 0 {
		params.ProbabilityThreshold = s.Settings.Detector.Threshold
	}
	boxes, err := detect.Boxes(ctx, s.sessionLog, s.detector, img, params)
	if err != nil {
		return err
	}
	s.engine.Replace(boxes)
	// Detected boxes are a change that should be persisted
	s.State.MarkEdited()
	return nil
}

func (s *Server) previewLocked(format render.Format, quality int, labels bool) ([]byte, error) {
	img, err := s.loadImageLocked()
	if err != nil {
		return nil, err
	}
	out := render.Draw(img, s.engine.Boxes(), render.Options{Focus: s.engine.Focus(), ShowLabels: labels})
	buf := bytes.Buffer{}
	if err := render.Encode(&buf, out, format, quality); err != nil {
		return nil, fmt.Errorf("Error encoding preview: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Server) stateLocked() SessionState {
	st := SessionState{
		Mapper:  *s.mapper,
		Boxes:   s.engine.Boxes(),
		Focus:   s.engine.Focus(),
		Gesture: s.engine.Gesture().Name(),
		Edited:  s.State.IsEdited(),
		Flags:   s.State.Snapshot(),
	}
	if s.dataset != nil {
		st.Folder = s.dataset.Folder
		st.Files = s.dataset.Len()
		st.Index = s.dataset.Index
	}
	if s.current != "" {
		st.File = filepath.Base(s.current)
		st.IsVideo = imagex.IsVideo(s.current)
	}
	if f := s.engine.Focus(); f >= 0 {
		if b, ok := s.engine.Box(f); ok {
			h := rotationHandleDisplay(s.mapper, b)
			st.Rotations = append(st.Rotations, rotationHandleUI{Index: f, At: h})
		}
	}
	return st
}

func rotationHandleDisplay(m *viewport.Mapper, b nn.BoundingBox) nn.PointF {
	return m.ToDisplay(hittest.RotationHandle(b))
}

// pointer applies one pointer action to the engine
func (s *Server) pointerLocked(action string, p nn.PointF) (any, error) {
	switch action {
	case "press":
		return s.engine.Press(p), nil
	case "move":
		return s.engine.Move(p), nil
	case "release":
		return s.engine.Release(p), nil
	case "delete":
		return s.engine.DeleteAt(p), nil
	case "hover":
		return map[string]transform.Cursor{"cursor": s.engine.Hover(p)}, nil
	}
	return nil, fmt.Errorf("Unknown pointer action '%v'", action)
}
