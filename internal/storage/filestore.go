// Package storage keeps reference face images on the local filesystem.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrResourceMissing is returned for absent or zero-length reference images.
	ErrResourceMissing = errors.New("reference image missing")
	// ErrInvalidLocator is returned for locators that escape the store directory.
	ErrInvalidLocator = errors.New("invalid image locator")
)

// FileStore stores images under a single directory. Locators are file names
// relative to that directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("image directory not configured")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the store directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Put writes data under a new unique locator with the given extension and returns the locator.
// The file appears atomically.
func (s *FileStore) Put(data []byte, ext string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("refusing to store empty image")
	}
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" || strings.ContainsAny(ext, `/\.`) {
		ext = "img"
	}
	locator := uuid.NewString() + "." + ext

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close image: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, locator)); err != nil {
		return "", fmt.Errorf("failed to move image into place: %w", err)
	}
	return locator, nil
}

// Get reads the image behind locator. Missing and empty files both report ErrResourceMissing.
func (s *FileStore) Get(locator string) ([]byte, error) {
	path, err := s.path(locator)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrResourceMissing, locator)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", locator, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrResourceMissing, locator)
	}
	return data, nil
}

// Delete removes the image behind locator. Deleting a missing image is not an error.
func (s *FileStore) Delete(locator string) error {
	path, err := s.path(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", locator, err)
	}
	return nil
}

func (s *FileStore) path(locator string) (string, error) {
	if locator == "" || !filepath.IsLocal(locator) || filepath.Base(locator) != locator {
		return "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	return filepath.Join(s.dir, locator), nil
}
