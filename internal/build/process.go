package build

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"media-indexer/internal/database"
	"media-indexer/internal/filesystem"
	"media-indexer/internal/logging"
	"media-indexer/internal/media"
	"media-indexer/internal/mediatypes"
	"media-indexer/internal/metrics"
)

// Processor turns one Task into one Result. Implementations must be safe
// for concurrent use; the worker pool calls Process from several
// goroutines.
type Processor interface {
	Process(ctx context.Context, task Task) Result
}

// MediaProcessor is the production Processor: it reads metadata and renders
// a thumbnail for each file.
type MediaProcessor struct {
	thumbnailer *media.Thumbnailer
	retry       filesystem.RetryConfig
}

// NewMediaProcessor returns a MediaProcessor rendering with thumbnailer.
func NewMediaProcessor(thumbnailer *media.Thumbnailer) *MediaProcessor {
	return &MediaProcessor{
		thumbnailer: thumbnailer,
		retry:       filesystem.DefaultRetryConfig(),
	}
}

// Process implements Processor.
func (p *MediaProcessor) Process(ctx context.Context, task Task) Result {
	start := time.Now()

	path, err := filepath.Abs(task.FilePath)
	if err != nil {
		return failedAt(database.StageMetadata, fmt.Sprintf("failed to resolve path: %v", err))
	}

	info, err := filesystem.StatWithRetry(path, p.retry)
	if err != nil {
		return failedAt(database.StageMetadata, fmt.Sprintf("failed to stat file: %v", err))
	}

	mediaType := mediatypes.Detect(path)
	if mediaType == mediatypes.FileTypeOther {
		return failedAt(database.StageMetadata, fmt.Sprintf("unsupported file type %q", filepath.Ext(path)))
	}

	meta, err := media.ReadMetadata(ctx, path, mediaType, task.IgnoreLocationData)
	if err != nil {
		logging.Debug("No metadata for %s: %v", path, err)
		meta = media.Metadata{}
	}

	capturedAt := media.ResolveCapturedAt(meta, info.ModTime())
	key := media.ThumbnailKey(path)

	thumb, err := p.thumbnailer.Generate(ctx, path, mediaType, media.Options{
		Size:    task.ThumbnailSize,
		Quality: task.ThumbnailQuality,
		TmpDir:  task.TmpDir,
	})
	if err != nil {
		return failedAt(database.StageThumbnail, err.Error())
	}

	record := database.MediaRecord{
		FilePath:     path,
		FileName:     filepath.Base(path),
		MediaType:    mediaType,
		Extension:    mediatypes.Extension(path),
		SizeBytes:    info.Size(),
		Width:        positive(thumb.Width),
		Height:       positive(thumb.Height),
		DurationMs:   meta.DurationMs,
		CapturedAt:   capturedAt,
		ModTime:      info.ModTime(),
		ThumbnailKey: key,
	}
	if meta.Model != "" {
		model := meta.Model
		record.DeviceModel = &model
	}
	if !task.IgnoreLocationData && meta.Latitude != nil && meta.Longitude != nil {
		record.GPSLat, record.GPSLng = meta.Latitude, meta.Longitude
	}

	metrics.WorkerProcessDuration.WithLabelValues(string(mediaType)).Observe(time.Since(start).Seconds())
	return succeeded(record, key, thumb.Data)
}

func positive(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}
