package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cyclopcam/boxlabel/pkg/iox"
	"gopkg.in/yaml.v3"
)

const DefaultFilename = "boxlabel.yaml"

// Detector describes how to reach an object detector.
// Kind is "" (none), "http" (multipart POST to URL) or "ollama" (vision model at URL).
type Detector struct {
	Kind      string  `yaml:"kind"`
	URL       string  `yaml:"url"`
	Model     string  `yaml:"model"`     // Ollama model name, eg "llava"
	Threshold float32 `yaml:"threshold"` // Minimum confidence. Zero means the detector default.
}

type Settings struct {
	ModelPath         string         `yaml:"model_path"`           // Class list or model config of the detector
	FolderPath        string         `yaml:"folder_path"`          // Folder of images being annotated
	FileIndex         int            `yaml:"file_index"`           // Current position in FolderPath
	Categories        map[string]int `yaml:"categories"`           // Label to YOLO class index
	Labels            map[int]string `yaml:"labels"`               // Shortcut key (0..9) to label
	DefaultLabel      string         `yaml:"default_label"`        // Label of new boxes before any label has been used
	LastUsedLabel     string         `yaml:"last_used_label"`      // Label of new boxes
	AutoSave          *bool          `yaml:"auto_save,omitempty"`  // Auto save on/off. If missing, on when AutoSavePerSecond is positive.
	AutoSavePerSecond float64        `yaml:"auto_save_per_second"` // Auto save period in seconds. Zero or negative means DefaultAutoSavePeriod.
	ShowFPS           bool           `yaml:"show_fps"`
	SaveFolder        string         `yaml:"save_folder"`     // Where XML files go. Empty means next to the image.
	MinBoxSize        int            `yaml:"min_box_size"`    // Smallest drawn box, in pixels
	YOLOOBBFormat     bool           `yaml:"yolo_obb_format"` // Convert rotated boxes to OBB lines
	AutoDetect        bool           `yaml:"auto_detect"`     // Run the detector on images that have no XML
	Detector          Detector       `yaml:"detector"`
}

func DefaultSettings() *Settings {
	return &Settings{
		Categories:        map[string]int{},
		Labels:            map[int]string{},
		DefaultLabel:      "object",
		LastUsedLabel:     "object",
		AutoSavePerSecond: -1,
		MinBoxSize:        5,
	}
}

// LoadSettings reads a YAML settings file. If the file does not exist, the defaults are returned.
// Paths that no longer exist are cleared, and a negative file index is reset to zero.
func LoadSettings(filename string) (*Settings, error) {
	if filename == "" {
		filename = DefaultFilename
	}
	s := DefaultSettings()
	raw, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	} else if err != nil {
		return nil, fmt.Errorf("Error loading %v: %w", filename, err)
	}
	if err := yaml.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("Error loading as YAML %v: %w", filename, err)
	}
	s.sanitize()
	return s, nil
}

func (s *Settings) sanitize() {
	if s.ModelPath != "" && !isFile(s.ModelPath) {
		s.ModelPath = ""
	}
	if s.FolderPath != "" && !isDir(s.FolderPath) {
		s.FolderPath = ""
	}
	if s.FileIndex < 0 {
		s.FileIndex = 0
	}
	if s.Categories == nil {
		s.Categories = map[string]int{}
	}
	if s.Labels == nil {
		s.Labels = map[int]string{}
	}
	if strings.TrimSpace(s.DefaultLabel) == "" {
		s.DefaultLabel = "object"
	}
	if strings.TrimSpace(s.LastUsedLabel) == "" {
		s.LastUsedLabel = s.DefaultLabel
	}
	if s.MinBoxSize <= 0 {
		s.MinBoxSize = 5
	}
}

// Validate reports settings that cannot be used as given
func (s *Settings) Validate() error {
	seen := map[int]string{}
	for label, id := range s.Categories {
		if id < 0 {
			return fmt.Errorf("Category '%v' has negative class index %v", label, id)
		}
		if other, ok := seen[id]; ok {
			return fmt.Errorf("Categories '%v' and '%v' share class index %v", label, other, id)
		}
		seen[id] = label
	}
	for key := range s.Labels {
		if key < 0 || key > 9 {
			return fmt.Errorf("Label shortcut key %v must be between 0 and 9", key)
		}
	}
	switch s.Detector.Kind {
	case "":
	case "http", "ollama":
		if s.Detector.URL == "" {
			return fmt.Errorf("Detector '%v' needs a url", s.Detector.Kind)
		}
		if s.Detector.Kind == "ollama" && s.Detector.Model == "" {
			return fmt.Errorf("Ollama detector needs a model")
		}
	default:
		return fmt.Errorf("Unknown detector kind '%v'", s.Detector.Kind)
	}
	return nil
}

func (s *Settings) Save(filename string) error {
	if filename == "" {
		filename = DefaultFilename
	}
	raw, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	if err := iox.WriteFileAtomic(filename, raw); err != nil {
		return fmt.Errorf("Error saving %v: %w", filename, err)
	}
	return nil
}

func isFile(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

func isDir(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}
