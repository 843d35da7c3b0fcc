package build

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"media-indexer/internal/database"
	"media-indexer/internal/media"
	"media-indexer/internal/mediatypes"
	"media-indexer/internal/settings"
)

const testTimeout = 10 * time.Second

type processorFunc func(ctx context.Context, task Task) Result

func (f processorFunc) Process(ctx context.Context, task Task) Result {
	return f(ctx, task)
}

// okResult is what a healthy worker returns for task.
func okResult(task Task) Result {
	now := time.Now()
	record := database.MediaRecord{
		FilePath:     task.FilePath,
		FileName:     filepath.Base(task.FilePath),
		MediaType:    mediatypes.Detect(task.FilePath),
		Extension:    mediatypes.Extension(task.FilePath),
		SizeBytes:    1,
		CapturedAt:   now,
		ModTime:      now,
		ThumbnailKey: media.ThumbnailKey(task.FilePath),
	}
	return succeeded(record, record.ThumbnailKey, []byte("webp"))
}

var instantProcessor = processorFunc(func(_ context.Context, task Task) Result {
	return okResult(task)
})

// recorder collects notifications and checks the counter invariant on
// every status it sees.
type recorder struct {
	t *testing.T

	mu       sync.Mutex
	statuses []Status
	errors   []database.BuildError
	fatals   []string
}

func newRecorder(t *testing.T, d *Dispatcher) *recorder {
	r := &recorder{t: t}
	unsubscribe := d.Subscribe(r)
	t.Cleanup(unsubscribe)
	return r
}

func (r *recorder) OnStatus(s Status) {
	if s.Processed != s.Succeeded+s.Failed {
		r.t.Errorf("status %+v breaks processed == succeeded + failed", s)
	}
	if s.State == StateRunning && s.Processed > s.Total {
		r.t.Errorf("status %+v has processed > total", s)
	}
	r.mu.Lock()
	r.statuses = append(r.statuses, s)
	r.mu.Unlock()
}

func (r *recorder) OnFatal(message string) {
	r.mu.Lock()
	r.fatals = append(r.fatals, message)
	r.mu.Unlock()
}

func (r *recorder) OnErrorItem(item database.BuildError) {
	r.mu.Lock()
	r.errors = append(r.errors, item)
	r.mu.Unlock()
}

func (r *recorder) errorItems() []database.BuildError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]database.BuildError(nil), r.errors...)
}

func (r *recorder) fatalMessages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fatals...)
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []State
	for _, s := range r.statuses {
		if len(out) == 0 || out[len(out)-1] != s.State {
			out = append(out, s.State)
		}
	}
	return out
}

// testEnv is a Dispatcher over real SQLite stores in a temp directory.
type testEnv struct {
	manager  *database.Manager
	settings settings.Settings
	root     string
}

func newTestEnv(t *testing.T, workers int) *testEnv {
	t.Helper()

	root := t.TempDir()
	s := settings.Default()
	s.IndexDBPath = filepath.Join(root, "data", "index.db")
	s.ThumbnailDir = filepath.Join(root, "thumbs")
	s.WorkerCount = workers

	m := database.NewManager()
	t.Cleanup(func() { m.Close() })

	return &testEnv{manager: m, settings: s, root: root}
}

// addSource creates a source directory holding empty files with the given
// names and adds it to the settings.
func (e *testEnv) addSource(t *testing.T, name string, files ...string) string {
	t.Helper()

	dir := filepath.Join(e.root, "src", name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, f := range files {
		path := filepath.Join(dir, f)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	e.settings.SourceDirs = append(e.settings.SourceDirs, dir)
	return dir
}

func (e *testEnv) index(t *testing.T) *database.IndexDB {
	t.Helper()
	idx, err := e.manager.Index()
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func (e *testEnv) thumbnails(t *testing.T) *database.ThumbnailDB {
	t.Helper()
	th, err := e.manager.Thumbnails()
	if err != nil {
		t.Fatal(err)
	}
	return th
}

func (e *testEnv) indexedPaths(t *testing.T) []string {
	t.Helper()

	page, err := e.index(t).QueryMedia(context.Background(), database.MediaQuery{Limit: database.MaxQueryLimit})
	if err != nil {
		t.Fatal(err)
	}
	paths := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		paths = append(paths, item.FilePath)
	}
	return paths
}

func waitBuild(t *testing.T, d *Dispatcher) Status {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	s, err := d.Wait(ctx)
	if err != nil {
		t.Fatalf("build did not finish: %v (status %+v)", err, s)
	}
	return s
}

// waitFor polls cond until it holds or the test timeout passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(testTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// wrappedStores lets a test intercept store calls.
type wrappedStores struct {
	manager    *database.Manager
	wrapIndex  func(database.IndexStore) database.IndexStore
	wrapThumbs func(database.ThumbnailStore) database.ThumbnailStore
}

func (w wrappedStores) Stores(ctx context.Context, indexPath, thumbnailPath string) (database.IndexStore, database.ThumbnailStore, error) {
	idx, th, err := w.manager.Stores(ctx, indexPath, thumbnailPath)
	if err != nil {
		return nil, nil, err
	}
	if w.wrapIndex != nil {
		idx = w.wrapIndex(idx)
	}
	if w.wrapThumbs != nil {
		th = w.wrapThumbs(th)
	}
	return idx, th, nil
}

type batchRecorder struct {
	database.IndexStore

	mu      sync.Mutex
	batches []int
	saveErr error
}

func (b *batchRecorder) SaveMediaBatch(ctx context.Context, records []database.MediaRecord) error {
	b.mu.Lock()
	b.batches = append(b.batches, len(records))
	err := b.saveErr
	b.mu.Unlock()

	if err != nil {
		return err
	}
	return b.IndexStore.SaveMediaBatch(ctx, records)
}

func (b *batchRecorder) sizes() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.batches...)
}

type failingThumbnails struct {
	database.ThumbnailStore
	failKey string
}

func (f failingThumbnails) UpsertThumbnail(ctx context.Context, key string, data []byte) error {
	if key == f.failKey {
		return os.ErrPermission
	}
	return f.ThumbnailStore.UpsertThumbnail(ctx, key, data)
}

// writeJPEG writes a small gradient JPEG to path.
func writeJPEG(t *testing.T, path string) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 128, A: 255})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, nil); err != nil {
		t.Fatal(err)
	}
}
