package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP decoding for the pure-Go path

	"media-indexer/internal/logging"
	"media-indexer/internal/mediatypes"
	"media-indexer/internal/metrics"
)

// Options controls thumbnail rendering.
type Options struct {
	Size    int
	Quality int
	// TmpDir receives intermediate files (converted images, video
	// frames). They are removed before Generate returns.
	TmpDir string
}

// Thumbnail is an encoded WebP thumbnail together with the dimensions of
// the source image or video frame.
type Thumbnail struct {
	Data   []byte
	Width  int
	Height int
}

type cropFocus int

const (
	focusAttention cropFocus = iota
	focusCentre
)

// Thumbnailer renders thumbnails. It is safe for concurrent use.
type Thumbnailer struct {
	useVips bool
}

// NewThumbnailer returns a Thumbnailer that uses libvips when InitVips has
// been called and the pure-Go decoders otherwise.
func NewThumbnailer() *Thumbnailer {
	return &Thumbnailer{useVips: IsVipsAvailable()}
}

// Backend names the image backend, "vips" or "imaging".
func (t *Thumbnailer) Backend() string {
	if t.useVips {
		return "vips"
	}
	return "imaging"
}

// Generate renders the thumbnail for path. The context bounds the ffmpeg
// processes it starts.
func (t *Thumbnailer) Generate(ctx context.Context, path string, mediaType mediatypes.FileType, opts Options) (thumb Thumbnail, err error) {
	start := time.Now()
	backend := t.Backend()
	if mediaType == mediatypes.FileTypeVideo {
		backend = "ffmpeg"
	}
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		} else {
			metrics.ThumbnailBytes.Observe(float64(len(thumb.Data)))
		}
		metrics.ThumbnailGenerationsTotal.WithLabelValues(string(mediaType), status).Inc()
		metrics.ThumbnailGenerationDuration.WithLabelValues(string(mediaType), backend).Observe(time.Since(start).Seconds())
	}()

	switch mediaType {
	case mediatypes.FileTypeImage:
		thumb, err = t.imageThumbnail(ctx, path, opts)
	case mediatypes.FileTypeVideo:
		thumb, err = t.videoThumbnail(ctx, path, opts)
	default:
		return Thumbnail{}, fmt.Errorf("unsupported media type %q", mediaType)
	}
	if err != nil {
		return Thumbnail{}, err
	}

	if len(thumb.Data) == 0 {
		return Thumbnail{}, fmt.Errorf("empty thumbnail for %s", filepath.Base(path))
	}
	return thumb, nil
}

func (t *Thumbnailer) imageThumbnail(ctx context.Context, path string, opts Options) (Thumbnail, error) {
	thumb, err := t.render(path, opts, focusAttention)
	if err == nil {
		return thumb, nil
	}
	logging.Debug("Direct decode failed for %s: %v, trying ffmpeg conversion", path, err)

	thumb, fallbackErr := t.renderConverted(ctx, path, opts)
	if fallbackErr == nil {
		return thumb, nil
	}

	return Thumbnail{}, fmt.Errorf("image thumbnail failed for %s: %w", filepath.Base(path),
		errors.Join(fmt.Errorf("decode: %w", err), fmt.Errorf("ffmpeg fallback: %w", fallbackErr)))
}

// renderConverted has ffmpeg convert path to PNG and renders that instead.
// This covers containers the decoders cannot read, such as some HEIC files.
func (t *Thumbnailer) renderConverted(ctx context.Context, path string, opts Options) (Thumbnail, error) {
	tmp, err := scratchFile(opts.TmpDir, "convert-*.png")
	if err != nil {
		return Thumbnail{}, err
	}
	defer removeScratch(tmp)

	if _, err := runTool(ctx, "ffmpeg", "convert",
		"-hide_banner",
		"-y",
		"-i", path,
		"-frames:v", "1",
		tmp,
	); err != nil {
		return Thumbnail{}, err
	}

	return t.render(tmp, opts, focusAttention)
}

func (t *Thumbnailer) videoThumbnail(ctx context.Context, path string, opts Options) (Thumbnail, error) {
	frame, err := scratchFile(opts.TmpDir, "frame-*.png")
	if err != nil {
		return Thumbnail{}, err
	}
	defer removeScratch(frame)

	if _, err := runTool(ctx, "ffmpeg", "frame",
		"-hide_banner",
		"-y",
		"-i", path,
		"-vf", `select=eq(pict_type\,I)`,
		"-frames:v", "1",
		frame,
	); err != nil {
		return Thumbnail{}, fmt.Errorf("failed to extract frame from %s: %w", filepath.Base(path), err)
	}

	thumb, err := t.render(frame, opts, focusCentre)
	if err != nil {
		return Thumbnail{}, fmt.Errorf("video thumbnail failed for %s: %w", filepath.Base(path), err)
	}
	return thumb, nil
}

func (t *Thumbnailer) render(path string, opts Options, focus cropFocus) (Thumbnail, error) {
	if t.useVips {
		return vipsThumbnail(path, opts, focus)
	}
	return imagingThumbnail(path, opts)
}

// imagingThumbnail is the pure-Go path. imaging has no saliency detection,
// so every crop is centred.
func imagingThumbnail(path string, opts Options) (Thumbnail, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return Thumbnail{}, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	cropped := imaging.Fill(img, opts.Size, opts.Size, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, cropped, &webp.Options{Quality: float32(opts.Quality)}); err != nil {
		return Thumbnail{}, fmt.Errorf("failed to encode webp: %w", err)
	}

	return Thumbnail{Data: buf.Bytes(), Width: bounds.Dx(), Height: bounds.Dy()}, nil
}

func scratchFile(dir, pattern string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}

	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create scratch file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		removeScratch(name)
		return "", err
	}
	return name, nil
}

func removeScratch(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Warn("Failed to remove scratch file %s: %v", path, err)
	}
}
