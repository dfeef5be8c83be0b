// Package fswatch provides the file-system operations the ingestion
// controller consumes: existence checks, whole-file reads, directory
// listings and recursive change notification.
package fswatch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/charliek/m3tail/internal/domain"
)

// FS implements read, list and exists on an afero file system and watch
// on top of fsnotify
type FS struct {
	fs     afero.Fs
	logger *slog.Logger
}

// New creates an FS backed by fsys
func New(fsys afero.Fs, logger *slog.Logger) *FS {
	if logger == nil {
		logger = slog.Default()
	}
	return &FS{fs: fsys, logger: logger}
}

// NewOS creates an FS backed by the operating system
func NewOS(logger *slog.Logger) *FS {
	return New(afero.NewOsFs(), logger)
}

// Afero returns the underlying file system
func (f *FS) Afero() afero.Fs {
	return f.fs
}

// Exists reports whether path exists
func (f *FS) Exists(path string) (bool, error) {
	ok, err := afero.Exists(f.fs, path)
	if err != nil {
		return false, fmt.Errorf("%w: stat %s: %v", domain.ErrIO, path, err)
	}
	return ok, nil
}

// ReadFile returns the full content of the file at path
func (f *FS) ReadFile(path string) (string, error) {
	info, err := f.fs.Stat(path)
	if err != nil {
		return "", classify(path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s", domain.ErrIsDirectory, path)
	}

	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		return "", classify(path, err)
	}
	return string(data), nil
}

// ListDirectory returns the entries of the directory at path, sorted by name
func (f *FS) ListDirectory(path string) ([]domain.DirEntry, error) {
	infos, err := afero.ReadDir(f.fs, path)
	if err != nil {
		return nil, classify(path, err)
	}

	entries := make([]domain.DirEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, domain.DirEntry{
			Name:        info.Name(),
			IsDirectory: info.IsDir(),
			IsFile:      info.Mode().IsRegular(),
		})
	}
	return entries, nil
}

func classify(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrIO, path, err)
}
