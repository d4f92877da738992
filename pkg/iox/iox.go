package iox

import (
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to a temporary file in the same directory, and then renames it
// over dstFilename. A reader never sees a half written file.
func WriteFileAtomic(dstFilename string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dstFilename), "."+filepath.Base(dstFilename)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dstFilename); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
