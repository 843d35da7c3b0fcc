package settings

import (
	"errors"
	"path/filepath"
	"slices"

	"media-indexer/internal/workers"
)

const (
	// DefaultThumbnailSize is the default square thumbnail edge in pixels.
	DefaultThumbnailSize = 256
	// DefaultThumbnailQuality is the default WebP encoding quality.
	DefaultThumbnailQuality = 80

	// ThumbnailDBName is the thumbnail database file inside ThumbnailDir.
	ThumbnailDBName = "thumbnails.db"
)

var (
	// ErrMissingPaths is returned when the index path or thumbnail directory is unset.
	ErrMissingPaths = errors.New("index database path and thumbnail directory are required")
	// ErrNoSourceDirs is returned when no source directory is configured.
	ErrNoSourceDirs = errors.New("at least one source directory is required")
)

// Settings is the configuration snapshot for one build.
type Settings struct {
	SourceDirs          []string
	ExcludeDirKeywords  []string
	ExcludeFileKeywords []string

	// MinFileSize and MaxFileSize bound accepted file sizes in bytes,
	// inclusive. Zero means the bound is not set.
	MinFileSize int64
	MaxFileSize int64

	// WorkerCount below 1 is treated as 1.
	WorkerCount        int
	ThumbnailSize      int
	ThumbnailQuality   int
	IgnoreLocationData bool

	IndexDBPath  string
	ThumbnailDir string
	TmpDir       string
}

// Default returns the settings used when nothing is configured. Paths and
// source directories are left empty.
func Default() Settings {
	return Settings{
		WorkerCount:        workers.Default(),
		ThumbnailSize:      DefaultThumbnailSize,
		ThumbnailQuality:   DefaultThumbnailQuality,
		IgnoreLocationData: true,
	}
}

// Clone returns a deep copy of s.
func (s Settings) Clone() Settings {
	s.SourceDirs = slices.Clone(s.SourceDirs)
	s.ExcludeDirKeywords = slices.Clone(s.ExcludeDirKeywords)
	s.ExcludeFileKeywords = slices.Clone(s.ExcludeFileKeywords)
	return s
}

// Validate reports whether s has everything a build needs.
func (s Settings) Validate() error {
	if s.IndexDBPath == "" || s.ThumbnailDir == "" {
		return ErrMissingPaths
	}
	if len(s.SourceDirs) == 0 {
		return ErrNoSourceDirs
	}
	return nil
}

// Workers returns the effective worker pool size.
func (s Settings) Workers() int {
	return workers.Clamp(s.WorkerCount)
}

// ThumbnailDBPath returns the path of the thumbnail database.
func (s Settings) ThumbnailDBPath() string {
	return filepath.Join(s.ThumbnailDir, ThumbnailDBName)
}

// ScratchDir returns TmpDir, or a directory under ThumbnailDir when unset.
func (s Settings) ScratchDir() string {
	if s.TmpDir != "" {
		return s.TmpDir
	}
	return filepath.Join(s.ThumbnailDir, "tmp")
}
