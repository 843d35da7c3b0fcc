package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrThumbnailNotFound is returned by GetThumbnail for an unknown key.
var ErrThumbnailNotFound = errors.New("thumbnail not found")

const thumbnailSchema = `
CREATE TABLE IF NOT EXISTS thumbnails (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	thumbnail_key TEXT NOT NULL UNIQUE,
	image_webp BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// ThumbnailDB stores encoded thumbnails keyed by thumbnail key.
type ThumbnailDB struct {
	db   *sql.DB
	path string
}

// NewThumbnailDB opens or creates the thumbnail database at path.
func NewThumbnailDB(ctx context.Context, path string) (*ThumbnailDB, error) {
	db, err := openSQLite(ctx, "thumbnails", path, thumbnailSchema)
	if err != nil {
		return nil, err
	}
	return &ThumbnailDB{db: db, path: path}, nil
}

// Path returns the database file path.
func (t *ThumbnailDB) Path() string {
	return t.path
}

// Close closes the database connection.
func (t *ThumbnailDB) Close() error {
	return t.db.Close()
}

// UpsertThumbnail stores data under key, replacing any previous image.
func (t *ThumbnailDB) UpsertThumbnail(ctx context.Context, key string, data []byte) (err error) {
	start := time.Now()
	defer func() { recordQuery("upsert_thumbnail", start, err) }()

	if key == "" || len(data) == 0 {
		err = fmt.Errorf("thumbnail key and data are required")
		return err
	}

	_, err = t.db.ExecContext(ctx, `
		INSERT INTO thumbnails (thumbnail_key, image_webp, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(thumbnail_key) DO UPDATE SET
			image_webp = excluded.image_webp,
			updated_at = excluded.updated_at`,
		key, data, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to store thumbnail %s: %w", key, err)
	}
	return nil
}

// GetThumbnail returns the stored image for key.
func (t *ThumbnailDB) GetThumbnail(ctx context.Context, key string) (_ []byte, err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, ErrThumbnailNotFound) {
			recordQuery("get_thumbnail", start, nil)
			return
		}
		recordQuery("get_thumbnail", start, err)
	}()

	var data []byte
	err = t.db.QueryRowContext(ctx, "SELECT image_webp FROM thumbnails WHERE thumbnail_key = ?", key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("thumbnail %s: %w", key, ErrThumbnailNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read thumbnail %s: %w", key, err)
	}
	return data, nil
}

// ClearThumbnails deletes every stored thumbnail.
func (t *ThumbnailDB) ClearThumbnails(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { recordQuery("clear_thumbnails", start, err) }()

	if _, err = t.db.ExecContext(ctx, "DELETE FROM thumbnails"); err != nil {
		return fmt.Errorf("failed to clear thumbnails: %w", err)
	}
	return nil
}

// Count returns the number of stored thumbnails.
func (t *ThumbnailDB) Count(ctx context.Context) (n int, err error) {
	start := time.Now()
	defer func() { recordQuery("stats", start, err) }()

	if err = t.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM thumbnails").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count thumbnails: %w", err)
	}
	return n, nil
}

// FileSizes returns the on-disk size of the thumbnail database.
func (t *ThumbnailDB) FileSizes() FileSizes {
	return updateSizeMetrics("thumbnails", t.path)
}
