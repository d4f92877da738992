// Package imagex lists and loads the media files of an annotation folder
package imagex

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".gif", ".tif", ".tiff", ".webp"}
var VideoExtensions = []string{".mp4", ".avi", ".mov", ".wmv", ".mkv", ".webm"}

func hasExt(filename string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func IsImage(filename string) bool {
	return hasExt(filename, ImageExtensions)
}

func IsVideo(filename string) bool {
	return hasExt(filename, VideoExtensions)
}

func IsMedia(filename string) bool {
	return IsImage(filename) || IsVideo(filename)
}

// ListMedia returns the names (not full paths) of the images and videos directly inside folder, sorted
func ListMedia(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}
	files := []string{}
	for _, e := range entries {
		if e.Type().IsRegular() && IsMedia(e.Name()) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// AnnotationPath returns the path of the VOC file that belongs to a media file.
// If saveFolder is empty, the annotation lives next to the media file.
func AnnotationPath(mediaPath, saveFolder string) string {
	dir := filepath.Dir(mediaPath)
	if saveFolder != "" {
		dir = saveFolder
	}
	base := filepath.Base(mediaPath)
	return filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+".xml")
}

// Size reads only the header of an image to find its dimensions
func Size(filename string) (width, height int, err error) {
	f, err := os.Open(filename)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("Error reading image size of %v: %w", filename, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Load decodes an image file
func Load(filename string) (image.Image, error) {
	if !IsImage(filename) {
		return nil, fmt.Errorf("%v is not an image", filename)
	}
	img, err := imaging.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("Error loading %v: %w", filename, err)
	}
	return img, nil
}
