package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-indexer/internal/logging"
	"media-indexer/internal/metrics"
)

// Default timeout for single-statement operations
const defaultTimeout = 5 * time.Second

// openSQLite opens the database file at path, creating its parent
// directory, and applies schema. The store label ("index" or
// "thumbnails") is used in logs and metrics.
func openSQLite(ctx context.Context, store, path, schema string) (*sql.DB, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("initialize_schema", start, err) }()

	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s database directory: %w", store, err)
	}

	if diagErr := diagnoseDatabasePermissions(path); diagErr != nil {
		logging.Warn("%s database permission diagnostics: %v", store, diagErr)
	}

	// busy_timeout avoids "database is locked" while a reader holds the WAL.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", path)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", store, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err = db.PingContext(pingCtx); err != nil {
		closeQuietly(db, store)
		return nil, fmt.Errorf("failed to connect to %s database: %w", store, err)
	}

	// The dispatcher is the only writer; a few connections serve readers.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if _, err = db.ExecContext(ctx, schema); err != nil {
		closeQuietly(db, store)
		return nil, fmt.Errorf("failed to initialize %s database schema: %w", store, err)
	}

	updateSizeMetrics(store, path)
	logging.Info("%s database ready at %s", store, path)
	return db, nil
}

func closeQuietly(db *sql.DB, store string) {
	if err := db.Close(); err != nil {
		logging.Error("failed to close %s database: %v", store, err)
	}
}

// beginBatch starts a transaction whose lifetime is bounded by ctx.
func beginBatch(ctx context.Context, db *sql.DB) (*sql.Tx, time.Time, error) {
	start := time.Now()
	tx, err := db.BeginTx(ctx, nil)
	recordQuery("begin_transaction", start, err)
	return tx, start, err
}

// endBatch commits tx, or rolls it back when err is non-nil. A failed
// rollback is joined with the original error.
func endBatch(tx *sql.Tx, start time.Time, err error) error {
	if err != nil {
		rbStart := time.Now()
		rbErr := tx.Rollback()
		recordQuery("rollback", rbStart, rbErr)
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(time.Since(start).Seconds())
		if rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	commitStart := time.Now()
	err = tx.Commit()
	recordQuery("commit", commitStart, err)
	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(time.Since(start).Seconds())
	return err
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// FileSizes holds the on-disk size of a SQLite database and its WAL files.
type FileSizes struct {
	Main int64 `json:"main"`
	WAL  int64 `json:"wal"`
	SHM  int64 `json:"shm"`
}

// Total returns the combined size.
func (s FileSizes) Total() int64 {
	return s.Main + s.WAL + s.SHM
}

func fileSizes(path string) FileSizes {
	size := func(p string) int64 {
		info, err := os.Stat(p)
		if err != nil {
			return 0
		}
		return info.Size()
	}
	return FileSizes{
		Main: size(path),
		WAL:  size(path + "-wal"),
		SHM:  size(path + "-shm"),
	}
}

func updateSizeMetrics(store, path string) FileSizes {
	sizes := fileSizes(path)
	metrics.DBSizeBytes.WithLabelValues(store, "main").Set(float64(sizes.Main))
	metrics.DBSizeBytes.WithLabelValues(store, "wal").Set(float64(sizes.WAL))
	metrics.DBSizeBytes.WithLabelValues(store, "shm").Set(float64(sizes.SHM))
	return sizes
}

// diagnoseDatabasePermissions reports read-only database files before
// they surface as write failures in the middle of a build.
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}
	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", p, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 != 0 {
			continue
		}
		logging.Warn("Database file %s is read-only (mode: %v), writes will fail", p, info.Mode())
		if chmodErr := os.Chmod(p, 0o600); chmodErr != nil {
			logging.Error("Failed to fix permissions on %s: %v", p, chmodErr)
		} else {
			logging.Info("Fixed permissions on %s", p)
		}
	}

	return nil
}
