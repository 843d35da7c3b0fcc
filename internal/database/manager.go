package database

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"media-indexer/internal/logging"
	"media-indexer/internal/metrics"
)

// ErrNotConnected is returned when the stores have not been opened yet.
var ErrNotConnected = errors.New("stores are not connected")

// IndexStore is the part of the index a build writes to.
type IndexStore interface {
	ClearMediaAndErrors(ctx context.Context) error
	SaveMediaBatch(ctx context.Context, records []MediaRecord) error
	AddBuildError(ctx context.Context, item BuildError) (BuildError, error)
}

// ThumbnailStore is the part of the thumbnail database a build writes to.
type ThumbnailStore interface {
	UpsertThumbnail(ctx context.Context, key string, data []byte) error
	ClearThumbnails(ctx context.Context) error
}

// connState is either disconnected or connected.
type connState interface {
	isConnState()
}

type disconnected struct{}

type connected struct {
	index  *IndexDB
	thumbs *ThumbnailDB
}

func (disconnected) isConnState() {}
func (connected) isConnState()    {}

// Manager owns the index and thumbnail databases. It starts disconnected
// and connects on the first call to Stores; asking for different paths
// later closes the open databases and reconnects.
type Manager struct {
	mu    sync.Mutex
	state connState
}

// NewManager returns a disconnected Manager.
func NewManager() *Manager {
	return &Manager{state: disconnected{}}
}

// Stores returns stores for the given index database file and thumbnail
// database file, opening them when needed.
func (m *Manager) Stores(ctx context.Context, indexPath, thumbnailPath string) (IndexStore, ThumbnailStore, error) {
	index, thumbs, err := m.connect(ctx, indexPath, thumbnailPath)
	if err != nil {
		return nil, nil, err
	}
	return index, thumbs, nil
}

func (m *Manager) connect(ctx context.Context, indexPath, thumbnailPath string) (*IndexDB, *ThumbnailDB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.state.(connected); ok {
		if c.index.Path() == indexPath && c.thumbs.Path() == thumbnailPath {
			return c.index, c.thumbs, nil
		}
		logging.Info("Store paths changed, reconnecting")
		if err := c.close(); err != nil {
			logging.Warn("Failed to close previous stores: %v", err)
		}
		m.state = disconnected{}
	}

	index, err := NewIndexDB(ctx, indexPath)
	if err != nil {
		return nil, nil, err
	}
	thumbs, err := NewThumbnailDB(ctx, thumbnailPath)
	if err != nil {
		closeQuietly(index.db, "index")
		return nil, nil, err
	}

	m.state = connected{index: index, thumbs: thumbs}
	return index, thumbs, nil
}

// Index returns the connected index database.
func (m *Manager) Index() (*IndexDB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch s := m.state.(type) {
	case connected:
		return s.index, nil
	default:
		return nil, ErrNotConnected
	}
}

// Thumbnails returns the connected thumbnail database.
func (m *Manager) Thumbnails() (*ThumbnailDB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch s := m.state.(type) {
	case connected:
		return s.thumbs, nil
	default:
		return nil, ErrNotConnected
	}
}

// Stats returns the on-disk sizes of both databases.
func (m *Manager) Stats() (StorageStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.state.(connected)
	if !ok {
		return StorageStats{}, ErrNotConnected
	}
	return StorageStats{
		IndexPath:      c.index.Path(),
		Index:          c.index.FileSizes(),
		ThumbnailsPath: c.thumbs.Path(),
		Thumbnails:     c.thumbs.FileSizes(),
	}, nil
}

// LibraryStats implements metrics.StatsProvider.
func (m *Manager) LibraryStats() (metrics.LibraryStats, error) {
	m.mu.Lock()
	c, ok := m.state.(connected)
	m.mu.Unlock()
	if !ok {
		return metrics.LibraryStats{}, ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	counts, err := c.index.Counts(ctx)
	if err != nil {
		return metrics.LibraryStats{}, err
	}
	thumbs, err := c.thumbs.Count(ctx)
	if err != nil {
		return metrics.LibraryStats{}, err
	}

	return metrics.LibraryStats{
		Images:     counts.Images,
		Videos:     counts.Videos,
		Favorites:  counts.Favorites,
		Thumbnails: thumbs,
	}, nil
}

// Close closes both databases and returns the Manager to disconnected.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.state.(connected)
	if !ok {
		return nil
	}
	m.state = disconnected{}
	return c.close()
}

func (c connected) close() error {
	var errs []error
	if err := c.index.Close(); err != nil {
		errs = append(errs, fmt.Errorf("index: %w", err))
	}
	if err := c.thumbs.Close(); err != nil {
		errs = append(errs, fmt.Errorf("thumbnails: %w", err))
	}
	return errors.Join(errs...)
}
