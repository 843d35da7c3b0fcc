package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"media-indexer/internal/logging"
	"media-indexer/internal/mediatypes"
)

const (
	// DefaultQueryLimit is the page size used when MediaQuery.Limit is zero.
	DefaultQueryLimit = 100
	// MaxQueryLimit caps MediaQuery.Limit and QueryErrors.
	MaxQueryLimit = 1000
)

// ErrMediaNotFound is returned by ToggleFavorite for an unknown id.
var ErrMediaNotFound = errors.New("media not found")

const indexSchema = `
CREATE TABLE IF NOT EXISTS media (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_path TEXT NOT NULL UNIQUE,
	file_name TEXT NOT NULL,
	media_type TEXT NOT NULL,
	extension TEXT NOT NULL,
	size_bytes INTEGER NOT NULL,
	width INTEGER,
	height INTEGER,
	duration_ms INTEGER,
	captured_at INTEGER NOT NULL,
	mtime_ms INTEGER NOT NULL,
	device_model TEXT,
	gps_lat REAL,
	gps_lng REAL,
	thumbnail_key TEXT NOT NULL,
	is_favorite INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_media_captured_at ON media(captured_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_media_file_name ON media(file_name);
CREATE INDEX IF NOT EXISTS idx_media_favorite ON media(is_favorite);

CREATE TABLE IF NOT EXISTS build_errors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	build_id TEXT NOT NULL,
	file_path TEXT NOT NULL,
	stage TEXT NOT NULL,
	message TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_build_errors_build ON build_errors(build_id);
`

const upsertMediaSQL = `
INSERT INTO media (
	file_path, file_name, media_type, extension, size_bytes, width, height, duration_ms,
	captured_at, mtime_ms, device_model, gps_lat, gps_lng, thumbnail_key, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(file_path) DO UPDATE SET
	file_name = excluded.file_name,
	media_type = excluded.media_type,
	extension = excluded.extension,
	size_bytes = excluded.size_bytes,
	width = excluded.width,
	height = excluded.height,
	duration_ms = excluded.duration_ms,
	captured_at = excluded.captured_at,
	mtime_ms = excluded.mtime_ms,
	device_model = excluded.device_model,
	gps_lat = excluded.gps_lat,
	gps_lng = excluded.gps_lng,
	thumbnail_key = excluded.thumbnail_key,
	updated_at = excluded.updated_at
`

const selectMediaColumns = `
	id, file_path, file_name, media_type, extension, size_bytes, width, height, duration_ms,
	captured_at, mtime_ms, device_model, gps_lat, gps_lng, thumbnail_key, is_favorite, updated_at`

// IndexDB is the SQLite index of media records and build errors.
type IndexDB struct {
	db   *sql.DB
	path string
}

// NewIndexDB opens or creates the index database at path.
func NewIndexDB(ctx context.Context, path string) (*IndexDB, error) {
	db, err := openSQLite(ctx, "index", path, indexSchema)
	if err != nil {
		return nil, err
	}
	return &IndexDB{db: db, path: path}, nil
}

// Path returns the database file path.
func (d *IndexDB) Path() string {
	return d.path
}

// Close closes the database connection.
func (d *IndexDB) Close() error {
	return d.db.Close()
}

// ClearMediaAndErrors deletes every media row and build error in one transaction.
func (d *IndexDB) ClearMediaAndErrors(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { recordQuery("clear_media_and_errors", start, err) }()

	tx, txStart, err := beginBatch(ctx, d.db)
	if err != nil {
		return fmt.Errorf("failed to begin clear: %w", err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM media"); err == nil {
		_, err = tx.ExecContext(ctx, "DELETE FROM build_errors")
	}
	if err = endBatch(tx, txStart, err); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	return nil
}

// SaveMediaBatch upserts records by file path in a single transaction.
// Either every record is written or none is.
func (d *IndexDB) SaveMediaBatch(ctx context.Context, records []MediaRecord) (err error) {
	if len(records) == 0 {
		return nil
	}

	start := time.Now()
	defer func() { recordQuery("upsert_media", start, err) }()

	tx, txStart, err := beginBatch(ctx, d.db)
	if err != nil {
		return fmt.Errorf("failed to begin batch: %w", err)
	}

	err = func() error {
		stmt, err := tx.PrepareContext(ctx, upsertMediaSQL)
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := time.Now().UnixMilli()
		for i := range records {
			r := &records[i]
			if _, err := stmt.ExecContext(ctx,
				r.FilePath, r.FileName, string(r.MediaType), r.Extension, r.SizeBytes,
				r.Width, r.Height, r.DurationMs,
				r.CapturedAt.UnixMilli(), r.ModTime.UnixMilli(),
				r.DeviceModel, r.GPSLat, r.GPSLng, r.ThumbnailKey, now,
			); err != nil {
				return fmt.Errorf("upsert %s: %w", r.FilePath, err)
			}
		}
		return nil
	}()

	if err = endBatch(tx, txStart, err); err != nil {
		return fmt.Errorf("failed to save %d media records: %w", len(records), err)
	}

	updateSizeMetrics("index", d.path)
	return nil
}

// AddBuildError appends one build error and returns it with its id set.
func (d *IndexDB) AddBuildError(ctx context.Context, item BuildError) (_ BuildError, err error) {
	start := time.Now()
	defer func() { recordQuery("add_build_error", start, err) }()

	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	res, err := d.db.ExecContext(ctx,
		"INSERT INTO build_errors (build_id, file_path, stage, message, created_at) VALUES (?, ?, ?, ?, ?)",
		item.BuildID, item.FilePath, string(item.Stage), item.Message, item.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return item, fmt.Errorf("failed to record build error for %s: %w", item.FilePath, err)
	}

	if item.ID, err = res.LastInsertId(); err != nil {
		return item, fmt.Errorf("failed to read build error id: %w", err)
	}
	return item, nil
}

// QueryErrors returns up to limit build errors, newest first.
func (d *IndexDB) QueryErrors(ctx context.Context, limit int) (_ []BuildError, err error) {
	start := time.Now()
	defer func() { recordQuery("query_build_errors", start, err) }()

	limit = clampLimit(limit)

	rows, err := d.db.QueryContext(ctx,
		"SELECT id, build_id, file_path, stage, message, created_at FROM build_errors ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query build errors: %w", err)
	}
	defer rows.Close()

	var items []BuildError
	for rows.Next() {
		var (
			item      BuildError
			stage     string
			createdAt int64
		)
		if err = rows.Scan(&item.ID, &item.BuildID, &item.FilePath, &stage, &item.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan build error: %w", err)
		}
		item.Stage = Stage(stage)
		item.CreatedAt = time.UnixMilli(createdAt)
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate build errors: %w", err)
	}
	return items, nil
}

// ClearBuildErrors deletes every build error.
func (d *IndexDB) ClearBuildErrors(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { recordQuery("clear_build_errors", start, err) }()

	if _, err = d.db.ExecContext(ctx, "DELETE FROM build_errors"); err != nil {
		return fmt.Errorf("failed to clear build errors: %w", err)
	}
	return nil
}

// QueryMedia returns one page of media ordered by capture time, newest
// first, together with the number of rows matching the filters.
func (d *IndexDB) QueryMedia(ctx context.Context, q MediaQuery) (_ MediaPage, err error) {
	start := time.Now()
	defer func() { recordQuery("query_media", start, err) }()

	var (
		conditions []string
		args       []any
	)
	if kw := strings.TrimSpace(q.Keyword); kw != "" {
		conditions = append(conditions, "file_name LIKE ?")
		args = append(args, "%"+kw+"%")
	}
	if !q.Start.IsZero() {
		conditions = append(conditions, "captured_at >= ?")
		args = append(args, q.Start.UnixMilli())
	}
	if !q.End.IsZero() {
		conditions = append(conditions, "captured_at <= ?")
		args = append(args, q.End.UnixMilli())
	}
	if q.FavoritesOnly {
		conditions = append(conditions, "is_favorite = 1")
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var page MediaPage
	if err = d.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM media "+where, args...).Scan(&page.Total); err != nil {
		return MediaPage{}, fmt.Errorf("failed to count media: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	limit = clampLimit(limit)
	offset := max(q.Offset, 0)

	rows, err := d.db.QueryContext(ctx,
		"SELECT "+selectMediaColumns+" FROM media "+where+" ORDER BY captured_at DESC, id DESC LIMIT ? OFFSET ?",
		append(args, limit, offset)...,
	)
	if err != nil {
		return MediaPage{}, fmt.Errorf("failed to query media: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, scanErr := scanMediaItem(rows)
		if scanErr != nil {
			err = scanErr
			return MediaPage{}, fmt.Errorf("failed to scan media: %w", err)
		}
		page.Items = append(page.Items, item)
	}
	if err = rows.Err(); err != nil {
		return MediaPage{}, fmt.Errorf("failed to iterate media: %w", err)
	}
	return page, nil
}

func scanMediaItem(rows *sql.Rows) (MediaItem, error) {
	var (
		item       MediaItem
		mediaType  string
		width      sql.NullInt64
		height     sql.NullInt64
		durationMs sql.NullInt64
		capturedAt int64
		mtime      int64
		model      sql.NullString
		lat        sql.NullFloat64
		lng        sql.NullFloat64
		favorite   int
		updatedAt  int64
	)

	if err := rows.Scan(
		&item.ID, &item.FilePath, &item.FileName, &mediaType, &item.Extension, &item.SizeBytes,
		&width, &height, &durationMs, &capturedAt, &mtime, &model, &lat, &lng,
		&item.ThumbnailKey, &favorite, &updatedAt,
	); err != nil {
		return MediaItem{}, err
	}

	item.MediaType = mediatypes.FileType(mediaType)
	item.Width = nullInt(width)
	item.Height = nullInt(height)
	if durationMs.Valid {
		item.DurationMs = &durationMs.Int64
	}
	item.CapturedAt = time.UnixMilli(capturedAt)
	item.ModTime = time.UnixMilli(mtime)
	if model.Valid {
		item.DeviceModel = &model.String
	}
	if lat.Valid && lng.Valid {
		item.GPSLat = &lat.Float64
		item.GPSLng = &lng.Float64
	}
	item.IsFavorite = favorite != 0
	item.UpdatedAt = time.UnixMilli(updatedAt)
	return item, nil
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	return min(limit, MaxQueryLimit)
}

// ToggleFavorite sets the favorite flag of one media row.
func (d *IndexDB) ToggleFavorite(ctx context.Context, id int64, favorite bool) (err error) {
	start := time.Now()
	defer func() { recordQuery("toggle_favorite", start, err) }()

	flag := 0
	if favorite {
		flag = 1
	}

	res, err := d.db.ExecContext(ctx, "UPDATE media SET is_favorite = ? WHERE id = ?", flag, id)
	if err != nil {
		return fmt.Errorf("failed to update favorite %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update favorite %d: %w", id, err)
	}
	if n == 0 {
		err = fmt.Errorf("favorite %d: %w", id, ErrMediaNotFound)
		return err
	}

	logging.Debug("Media %d favorite=%v", id, favorite)
	return nil
}

// ClearAllFavorites resets the favorite flag on every row.
func (d *IndexDB) ClearAllFavorites(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { recordQuery("toggle_favorite", start, err) }()

	if _, err = d.db.ExecContext(ctx, "UPDATE media SET is_favorite = 0"); err != nil {
		return fmt.Errorf("failed to clear favorites: %w", err)
	}
	return nil
}

// Counts holds row totals from the index.
type Counts struct {
	Images    int
	Videos    int
	Favorites int
	Errors    int
}

// Counts returns per-type media totals and the number of build errors.
func (d *IndexDB) Counts(ctx context.Context) (_ Counts, err error) {
	start := time.Now()
	defer func() { recordQuery("stats", start, err) }()

	var c Counts
	err = d.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN media_type = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN media_type = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(is_favorite), 0),
			(SELECT COUNT(1) FROM build_errors)
		FROM media`,
		string(mediatypes.FileTypeImage), string(mediatypes.FileTypeVideo),
	).Scan(&c.Images, &c.Videos, &c.Favorites, &c.Errors)
	if err != nil {
		return Counts{}, fmt.Errorf("failed to count media: %w", err)
	}
	return c, nil
}

// FileSizes returns the on-disk size of the index database.
func (d *IndexDB) FileSizes() FileSizes {
	return updateSizeMetrics("index", d.path)
}
