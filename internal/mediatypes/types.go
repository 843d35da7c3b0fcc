package mediatypes

import (
	"path/filepath"
	"strings"
)

// FileType represents the type of a media file.
type FileType string

const (
	// FileTypeImage represents an image file.
	FileTypeImage FileType = "image"
	// FileTypeVideo represents a video file.
	FileTypeVideo FileType = "video"
	// FileTypeOther represents an unknown or unsupported file type.
	FileTypeOther FileType = "other"
)

// ImageExtensions maps file extensions to whether they are indexed as images.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".heic": true,
	".heif": true,
	".avif": true,
	".tif":  true,
	".tiff": true,
}

// VideoExtensions maps file extensions to whether they are indexed as videos.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".flv":  true,
	".3gp":  true,
	".mkv":  true,
	".avi":  true,
	".wmv":  true,
	".m4v":  true,
	".webm": true,
}

// GetFileType returns the FileType for a lowercase extension including the
// leading dot (e.g. ".jpg").
func GetFileType(ext string) FileType {
	if ImageExtensions[ext] {
		return FileTypeImage
	}
	if VideoExtensions[ext] {
		return FileTypeVideo
	}
	return FileTypeOther
}

// Extension returns the lowercase extension of path, including the dot.
func Extension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// Detect returns the FileType of path, matching its extension
// case-insensitively.
func Detect(path string) FileType {
	return GetFileType(Extension(path))
}

// IsMediaFile returns true if path has an image or video extension.
func IsMediaFile(path string) bool {
	return Detect(path) != FileTypeOther
}
