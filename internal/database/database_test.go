package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"media-indexer/internal/mediatypes"
)

func setupIndexDB(t testing.TB) *IndexDB {
	t.Helper()

	db, err := NewIndexDB(context.Background(), filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("NewIndexDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func setupThumbnailDB(t testing.TB) *ThumbnailDB {
	t.Helper()

	db, err := NewThumbnailDB(context.Background(), filepath.Join(t.TempDir(), "thumbs", "thumbnails.db"))
	if err != nil {
		t.Fatalf("NewThumbnailDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func intPtr(n int) *int { return &n }

func testRecord(path string, captured time.Time) MediaRecord {
	return MediaRecord{
		FilePath:     path,
		FileName:     filepath.Base(path),
		MediaType:    mediatypes.FileTypeImage,
		Extension:    filepath.Ext(path),
		SizeBytes:    1024,
		Width:        intPtr(640),
		Height:       intPtr(480),
		CapturedAt:   captured,
		ModTime:      captured,
		ThumbnailKey: "key-" + filepath.Base(path),
	}
}

func TestSaveMediaBatchUpsertsByPath(t *testing.T) {
	db := setupIndexDB(t)
	ctx := context.Background()
	when := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)

	first := []MediaRecord{testRecord("/photos/a.jpg", when), testRecord("/photos/b.jpg", when)}
	if err := db.SaveMediaBatch(ctx, first); err != nil {
		t.Fatalf("SaveMediaBatch() error = %v", err)
	}

	updated := testRecord("/photos/a.jpg", when)
	updated.SizeBytes = 4096
	if err := db.SaveMediaBatch(ctx, []MediaRecord{updated}); err != nil {
		t.Fatalf("SaveMediaBatch() error = %v", err)
	}

	page, err := db.QueryMedia(ctx, MediaQuery{})
	if err != nil {
		t.Fatalf("QueryMedia() error = %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("Total = %d, want 2", page.Total)
	}

	for _, item := range page.Items {
		if item.FilePath == "/photos/a.jpg" && item.SizeBytes != 4096 {
			t.Errorf("a.jpg SizeBytes = %d, want 4096", item.SizeBytes)
		}
	}
}

func TestSaveMediaBatchRoundTripsOptionalFields(t *testing.T) {
	db := setupIndexDB(t)
	ctx := context.Background()
	when := time.Date(2022, 1, 2, 3, 4, 5, 0, time.UTC)

	model := "Pixel 7"
	lat, lng := 48.8584, 2.2945
	duration := int64(12_500)
	video := MediaRecord{
		FilePath:     "/videos/clip.mp4",
		FileName:     "clip.mp4",
		MediaType:    mediatypes.FileTypeVideo,
		Extension:    ".mp4",
		SizeBytes:    2048,
		Width:        intPtr(1920),
		Height:       intPtr(1080),
		DurationMs:   &duration,
		CapturedAt:   when,
		ModTime:      when.Add(time.Hour),
		DeviceModel:  &model,
		GPSLat:       &lat,
		GPSLng:       &lng,
		ThumbnailKey: "abc",
	}
	bare := testRecord("/photos/bare.png", when)
	bare.Width, bare.Height = nil, nil

	if err := db.SaveMediaBatch(ctx, []MediaRecord{video, bare}); err != nil {
		t.Fatalf("SaveMediaBatch() error = %v", err)
	}

	page, err := db.QueryMedia(ctx, MediaQuery{})
	if err != nil {
		t.Fatalf("QueryMedia() error = %v", err)
	}

	byPath := map[string]MediaItem{}
	for _, item := range page.Items {
		byPath[item.FilePath] = item
	}

	got := byPath["/videos/clip.mp4"]
	if got.MediaType != mediatypes.FileTypeVideo {
		t.Errorf("MediaType = %q", got.MediaType)
	}
	if got.DurationMs == nil || *got.DurationMs != duration {
		t.Errorf("DurationMs = %v", got.DurationMs)
	}
	if got.DeviceModel == nil || *got.DeviceModel != model {
		t.Errorf("DeviceModel = %v", got.DeviceModel)
	}
	if got.GPSLat == nil || *got.GPSLat != lat || got.GPSLng == nil || *got.GPSLng != lng {
		t.Errorf("GPS = %v, %v", got.GPSLat, got.GPSLng)
	}
	if !got.CapturedAt.Equal(when) {
		t.Errorf("CapturedAt = %v, want %v", got.CapturedAt, when)
	}
	if !got.ModTime.Equal(when.Add(time.Hour)) {
		t.Errorf("ModTime = %v", got.ModTime)
	}

	b := byPath["/photos/bare.png"]
	if b.Width != nil || b.Height != nil || b.DeviceModel != nil || b.GPSLat != nil || b.DurationMs != nil {
		t.Errorf("optional fields not nil: %+v", b)
	}
}

func TestSaveMediaBatchEmpty(t *testing.T) {
	db := setupIndexDB(t)
	if err := db.SaveMediaBatch(context.Background(), nil); err != nil {
		t.Errorf("SaveMediaBatch(nil) error = %v", err)
	}
}

func TestQueryMediaFilters(t *testing.T) {
	db := setupIndexDB(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var records []MediaRecord
	for i := 0; i < 5; i++ {
		records = append(records, testRecord(fmt.Sprintf("/photos/IMG_%d.jpg", i), base.AddDate(0, 0, i)))
	}
	records = append(records, testRecord("/photos/holiday.jpg", base.AddDate(0, 0, 10)))
	if err := db.SaveMediaBatch(ctx, records); err != nil {
		t.Fatal(err)
	}

	t.Run("ordered newest first", func(t *testing.T) {
		page, err := db.QueryMedia(ctx, MediaQuery{Limit: 3})
		if err != nil {
			t.Fatal(err)
		}
		if page.Total != 6 || len(page.Items) != 3 {
			t.Fatalf("Total=%d len=%d", page.Total, len(page.Items))
		}
		if page.Items[0].FileName != "holiday.jpg" || page.Items[1].FileName != "IMG_4.jpg" {
			t.Errorf("order = %s, %s", page.Items[0].FileName, page.Items[1].FileName)
		}
	})

	t.Run("offset", func(t *testing.T) {
		page, err := db.QueryMedia(ctx, MediaQuery{Offset: 5, Limit: 3})
		if err != nil {
			t.Fatal(err)
		}
		if len(page.Items) != 1 || page.Items[0].FileName != "IMG_0.jpg" {
			t.Errorf("items = %+v", page.Items)
		}
	})

	t.Run("keyword", func(t *testing.T) {
		page, err := db.QueryMedia(ctx, MediaQuery{Keyword: " holi "})
		if err != nil {
			t.Fatal(err)
		}
		if page.Total != 1 {
			t.Errorf("Total = %d, want 1", page.Total)
		}
	})

	t.Run("time range", func(t *testing.T) {
		page, err := db.QueryMedia(ctx, MediaQuery{Start: base.AddDate(0, 0, 1), End: base.AddDate(0, 0, 3)})
		if err != nil {
			t.Fatal(err)
		}
		if page.Total != 3 {
			t.Errorf("Total = %d, want 3", page.Total)
		}
	})

	t.Run("favorites", func(t *testing.T) {
		all, err := db.QueryMedia(ctx, MediaQuery{Keyword: "IMG_2"})
		if err != nil || len(all.Items) != 1 {
			t.Fatalf("lookup: %v %+v", err, all)
		}
		if err := db.ToggleFavorite(ctx, all.Items[0].ID, true); err != nil {
			t.Fatalf("ToggleFavorite() error = %v", err)
		}

		page, err := db.QueryMedia(ctx, MediaQuery{FavoritesOnly: true})
		if err != nil {
			t.Fatal(err)
		}
		if page.Total != 1 || !page.Items[0].IsFavorite {
			t.Errorf("favorites page = %+v", page)
		}

		if err := db.ClearAllFavorites(ctx); err != nil {
			t.Fatal(err)
		}
		page, err = db.QueryMedia(ctx, MediaQuery{FavoritesOnly: true})
		if err != nil {
			t.Fatal(err)
		}
		if page.Total != 0 {
			t.Errorf("favorites after clear = %d", page.Total)
		}
	})
}

func TestToggleFavoriteNotFound(t *testing.T) {
	db := setupIndexDB(t)

	err := db.ToggleFavorite(context.Background(), 999, true)
	if !errors.Is(err, ErrMediaNotFound) {
		t.Errorf("ToggleFavorite(999) error = %v, want ErrMediaNotFound", err)
	}
}

func TestBuildErrors(t *testing.T) {
	db := setupIndexDB(t)
	ctx := context.Background()

	for i, stage := range []Stage{StageMetadata, StageThumbnail, StageDB} {
		item, err := db.AddBuildError(ctx, BuildError{
			BuildID:  "build-1",
			FilePath: fmt.Sprintf("/photos/%d.jpg", i),
			Stage:    stage,
			Message:  "boom",
		})
		if err != nil {
			t.Fatalf("AddBuildError() error = %v", err)
		}
		if item.ID == 0 || item.CreatedAt.IsZero() {
			t.Errorf("AddBuildError() = %+v, want id and timestamp", item)
		}
	}

	items, err := db.QueryErrors(ctx, 2)
	if err != nil {
		t.Fatalf("QueryErrors() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("QueryErrors(2) returned %d", len(items))
	}
	if items[0].Stage != StageDB || items[1].Stage != StageThumbnail {
		t.Errorf("QueryErrors order = %s, %s", items[0].Stage, items[1].Stage)
	}

	if err := db.ClearBuildErrors(ctx); err != nil {
		t.Fatal(err)
	}
	if items, _ := db.QueryErrors(ctx, 10); len(items) != 0 {
		t.Errorf("errors after clear = %d", len(items))
	}
}

func TestClearMediaAndErrors(t *testing.T) {
	db := setupIndexDB(t)
	ctx := context.Background()

	if err := db.SaveMediaBatch(ctx, []MediaRecord{testRecord("/a.jpg", time.Now())}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddBuildError(ctx, BuildError{BuildID: "b", FilePath: "/b.jpg", Stage: StageThumbnail, Message: "x"}); err != nil {
		t.Fatal(err)
	}

	if err := db.ClearMediaAndErrors(ctx); err != nil {
		t.Fatalf("ClearMediaAndErrors() error = %v", err)
	}

	counts, err := db.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts != (Counts{}) {
		t.Errorf("Counts() after clear = %+v", counts)
	}
}

func TestCounts(t *testing.T) {
	db := setupIndexDB(t)
	ctx := context.Background()

	video := testRecord("/v.mp4", time.Now())
	video.MediaType = mediatypes.FileTypeVideo
	if err := db.SaveMediaBatch(ctx, []MediaRecord{testRecord("/a.jpg", time.Now()), testRecord("/b.jpg", time.Now()), video}); err != nil {
		t.Fatal(err)
	}

	counts, err := db.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts.Images != 2 || counts.Videos != 1 {
		t.Errorf("Counts() = %+v", counts)
	}
}

func TestThumbnailDB(t *testing.T) {
	db := setupThumbnailDB(t)
	ctx := context.Background()

	if err := db.UpsertThumbnail(ctx, "k1", []byte("first")); err != nil {
		t.Fatalf("UpsertThumbnail() error = %v", err)
	}
	if err := db.UpsertThumbnail(ctx, "k1", []byte("second")); err != nil {
		t.Fatalf("UpsertThumbnail() error = %v", err)
	}

	data, err := db.GetThumbnail(ctx, "k1")
	if err != nil {
		t.Fatalf("GetThumbnail() error = %v", err)
	}
	if string(data) != "second" {
		t.Errorf("GetThumbnail() = %q, want second", data)
	}

	if n, _ := db.Count(ctx); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}

	if _, err := db.GetThumbnail(ctx, "missing"); !errors.Is(err, ErrThumbnailNotFound) {
		t.Errorf("GetThumbnail(missing) error = %v", err)
	}

	if err := db.UpsertThumbnail(ctx, "", []byte("x")); err == nil {
		t.Error("UpsertThumbnail with empty key should fail")
	}

	if err := db.ClearThumbnails(ctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := db.Count(ctx); n != 0 {
		t.Errorf("Count() after clear = %d", n)
	}
}

func TestFileSizes(t *testing.T) {
	db := setupIndexDB(t)
	if err := db.SaveMediaBatch(context.Background(), []MediaRecord{testRecord("/a.jpg", time.Now())}); err != nil {
		t.Fatal(err)
	}

	sizes := db.FileSizes()
	if sizes.Main <= 0 {
		t.Errorf("Main = %d, want > 0", sizes.Main)
	}
	if sizes.Total() < sizes.Main {
		t.Errorf("Total() = %d < Main", sizes.Total())
	}
}
