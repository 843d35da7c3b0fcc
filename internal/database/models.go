package database

import (
	"time"

	"media-indexer/internal/mediatypes"
)

// Stage names the pipeline step a per-file failure happened in.
type Stage string

const (
	StageScan      Stage = "scan"
	StageMetadata  Stage = "metadata"
	StageThumbnail Stage = "thumbnail"
	StageDB        Stage = "db"
)

// MediaRecord is what a build writes for one successfully processed file.
type MediaRecord struct {
	FilePath     string              `json:"filePath"`
	FileName     string              `json:"fileName"`
	MediaType    mediatypes.FileType `json:"mediaType"`
	Extension    string              `json:"extension"`
	SizeBytes    int64               `json:"sizeBytes"`
	Width        *int                `json:"width"`
	Height       *int                `json:"height"`
	DurationMs   *int64              `json:"durationMs"`
	CapturedAt   time.Time           `json:"capturedAt"`
	ModTime      time.Time           `json:"modTime"`
	DeviceModel  *string             `json:"deviceModel"`
	GPSLat       *float64            `json:"gpsLat"`
	GPSLng       *float64            `json:"gpsLng"`
	ThumbnailKey string              `json:"thumbnailKey"`
}

type MediaItem struct {
	ID int64 `json:"id"`
	MediaRecord
	IsFavorite bool      `json:"isFavorite"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type BuildError struct {
	ID        int64     `json:"id,omitempty"`
	BuildID   string    `json:"buildId"`
	FilePath  string    `json:"filePath"`
	Stage     Stage     `json:"stage"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// MediaQuery filters QueryMedia. Zero values disable a filter; a Limit
// of zero uses DefaultQueryLimit.
type MediaQuery struct {
	Keyword       string
	Start         time.Time
	End           time.Time
	FavoritesOnly bool
	Offset        int
	Limit         int
}

type MediaPage struct {
	Total int         `json:"total"`
	Items []MediaItem `json:"items"`
}

type StorageStats struct {
	IndexPath      string    `json:"indexPath"`
	Index          FileSizes `json:"index"`
	ThumbnailsPath string    `json:"thumbnailsPath"`
	Thumbnails     FileSizes `json:"thumbnails"`
}
