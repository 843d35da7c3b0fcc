package media

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/chai2010/webp"

	"media-indexer/internal/mediatypes"
)

func decodeWebPSize(t *testing.T, data []byte) (int, int) {
	t.Helper()

	cfg, err := webp.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not WebP: %v", err)
	}
	return cfg.Width, cfg.Height
}

func TestGenerateImageThumbnail(t *testing.T) {
	dir := t.TempDir()
	path := writeJPEG(t, dir, "wide.jpg", 64, 32)

	tests := []struct {
		name string
		size int
	}{
		{"downscale", 16},
		{"upscale", 96},
	}

	tn := &Thumbnailer{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thumb, err := tn.Generate(context.Background(), path, mediatypes.FileTypeImage,
				Options{Size: tt.size, Quality: 80, TmpDir: dir})
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}

			if thumb.Width != 64 || thumb.Height != 32 {
				t.Errorf("source size = %dx%d, want 64x32", thumb.Width, thumb.Height)
			}
			w, h := decodeWebPSize(t, thumb.Data)
			if w != tt.size || h != tt.size {
				t.Errorf("thumbnail size = %dx%d, want %dx%d", w, h, tt.size, tt.size)
			}
		})
	}
}

func TestGenerateCorruptImageReportsBothFailures(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.jpg")
	if err := os.WriteFile(path, []byte("not really a jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	calls := mockTool(t, "fail", "")

	_, err := (&Thumbnailer{}).Generate(context.Background(), path, mediatypes.FileTypeImage,
		Options{Size: 32, Quality: 80, TmpDir: dir})
	if err == nil {
		t.Fatal("Generate() should fail for a corrupt image")
	}

	msg := err.Error()
	for _, want := range []string{"decode:", "ffmpeg fallback:", "Invalid data found"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not contain %q", msg, want)
		}
	}
	if len(*calls) != 1 || (*calls)[0].name != "ffmpeg" {
		t.Errorf("calls = %+v, want one ffmpeg conversion", *calls)
	}
	if left := dirEntries(t, dir); !slices.Equal(left, []string{"broken.jpg"}) {
		t.Errorf("scratch files left behind: %v", left)
	}
}

func TestGenerateImageFallsBackToConversion(t *testing.T) {
	dir := t.TempDir()
	scratch := filepath.Join(dir, "tmp")
	path := filepath.Join(dir, "photo.heic")
	if err := os.WriteFile(path, []byte("ftypheic"), 0o644); err != nil {
		t.Fatal(err)
	}
	mockTool(t, "png", "")

	thumb, err := (&Thumbnailer{}).Generate(context.Background(), path, mediatypes.FileTypeImage,
		Options{Size: 24, Quality: 70, TmpDir: scratch})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if thumb.Width != 40 || thumb.Height != 20 {
		t.Errorf("source size = %dx%d, want 40x20", thumb.Width, thumb.Height)
	}
	if left := dirEntries(t, scratch); len(left) != 0 {
		t.Errorf("scratch files left behind: %v", left)
	}
}

func TestGenerateVideoThumbnail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("keyframe", func(t *testing.T) {
		calls := mockTool(t, "png", "")
		scratch := t.TempDir()

		thumb, err := (&Thumbnailer{}).Generate(context.Background(), path, mediatypes.FileTypeVideo,
			Options{Size: 16, Quality: 80, TmpDir: scratch})
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if thumb.Width != 40 || thumb.Height != 20 {
			t.Errorf("frame size = %dx%d, want 40x20", thumb.Width, thumb.Height)
		}
		if w, h := decodeWebPSize(t, thumb.Data); w != 16 || h != 16 {
			t.Errorf("thumbnail size = %dx%d", w, h)
		}

		if len(*calls) != 1 || !slices.Contains((*calls)[0].args, `select=eq(pict_type\,I)`) {
			t.Errorf("ffmpeg was not asked for a keyframe: %+v", *calls)
		}
		if left := dirEntries(t, scratch); len(left) != 0 {
			t.Errorf("frame not removed: %v", left)
		}
	})

	t.Run("extraction fails", func(t *testing.T) {
		mockTool(t, "fail", "")
		scratch := t.TempDir()

		_, err := (&Thumbnailer{}).Generate(context.Background(), path, mediatypes.FileTypeVideo,
			Options{Size: 16, Quality: 80, TmpDir: scratch})
		if err == nil || !strings.Contains(err.Error(), "failed to extract frame") {
			t.Errorf("Generate() error = %v", err)
		}
		if left := dirEntries(t, scratch); len(left) != 0 {
			t.Errorf("frame not removed: %v", left)
		}
	})
}

func TestGenerateUnsupportedType(t *testing.T) {
	_, err := (&Thumbnailer{}).Generate(context.Background(), "notes.txt", mediatypes.FileTypeOther, Options{Size: 16})
	if err == nil {
		t.Error("Generate() should reject unsupported media types")
	}
}

func TestBackend(t *testing.T) {
	if got := (&Thumbnailer{}).Backend(); got != "imaging" {
		t.Errorf("Backend() = %q, want imaging", got)
	}
	if got := (&Thumbnailer{useVips: true}).Backend(); got != "vips" {
		t.Errorf("Backend() = %q, want vips", got)
	}
}
