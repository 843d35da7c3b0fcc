package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

type recordingObserver struct {
	mu        sync.Mutex
	ops       []string
	attempts  int
	successes int
	failures  int
	stale     int
}

func (r *recordingObserver) ObserveOperation(volume, operation string, _ float64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.ops = append(r.ops, volume+"/"+operation+"/"+status)
}

func (r *recordingObserver) ObserveRetryAttempt(string, string) { r.attempts++ }
func (r *recordingObserver) ObserveRetrySuccess(string, string) { r.successes++ }
func (r *recordingObserver) ObserveRetryFailure(string, string) { r.failures++ }
func (r *recordingObserver) ObserveStaleError(string, string)   { r.stale++ }

func useObserver(t *testing.T) *recordingObserver {
	t.Helper()
	rec := &recordingObserver{}
	SetObserver(rec)
	t.Cleanup(func() { SetObserver(nil) })
	return rec
}

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
	if config.VolumeResolver != nil {
		t.Error("VolumeResolver should be nil by default")
	}
}

func TestIsStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ESTALE", syscall.ESTALE, true},
		{"wrapped ESTALE", &os.PathError{Op: "stat", Path: "/x", Err: syscall.ESTALE}, true},
		{"ENOENT", syscall.ENOENT, false},
		{"not exist", os.ErrNotExist, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isStaleError(tt.err); got != tt.want {
				t.Errorf("isStaleError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve(t *testing.T) {
	vr := NewVolumeResolver(map[string][]string{
		"source":     {"/photos", "/videos"},
		"thumbnails": {"/photos/.thumbs"},
		"database":   {"/data"},
	})

	tests := []struct {
		path string
		want string
	}{
		{"/photos/2023/a.jpg", "source"},
		{"/videos/clip.mp4", "source"},
		{"/photos", "source"},
		{"/photos/.thumbs/thumbnails.db", "thumbnails"},
		{"/data/index.db", "database"},
		{"/photosphere/a.jpg", "unknown"},
		{"/tmp/x", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_NilResolver(t *testing.T) {
	var vr *VolumeResolver
	if got := vr.Resolve("/anything"); got != "unknown" {
		t.Errorf("nil resolver Resolve() = %q, want unknown", got)
	}
}

func TestRetryConfig_ResolveVolume(t *testing.T) {
	SetDefaultVolumeResolver(NewVolumeResolver(map[string][]string{"source": {"/library"}}))
	t.Cleanup(func() { SetDefaultVolumeResolver(nil) })

	config := DefaultRetryConfig()
	if got := config.resolveVolume("/library/a.jpg"); got != "source" {
		t.Errorf("default resolver = %q, want source", got)
	}

	config.VolumeResolver = NewVolumeResolver(map[string][]string{"tmp": {"/library"}})
	if got := config.resolveVolume("/library/a.jpg"); got != "tmp" {
		t.Errorf("config resolver = %q, want tmp", got)
	}
}

func TestWithRetry_RecoversFromStaleHandle(t *testing.T) {
	rec := useObserver(t)

	calls := 0
	got, err := withRetry("stat", "/library/a.jpg", fastRetry(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, syscall.ESTALE
		}
		return 42, nil
	})

	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if got != 42 {
		t.Errorf("withRetry() = %d, want 42", got)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
	if rec.stale != 2 || rec.attempts != 2 || rec.successes != 1 || rec.failures != 0 {
		t.Errorf("observer stale=%d attempts=%d successes=%d failures=%d",
			rec.stale, rec.attempts, rec.successes, rec.failures)
	}
}

func TestWithRetry_GivesUp(t *testing.T) {
	rec := useObserver(t)

	calls := 0
	_, err := withRetry("readdir", "/library", fastRetry(), func() (struct{}, error) {
		calls++
		return struct{}{}, syscall.ESTALE
	})

	if !errors.Is(err, syscall.ESTALE) {
		t.Fatalf("withRetry() error = %v, want ESTALE", err)
	}
	if calls != 4 {
		t.Errorf("fn called %d times, want 4", calls)
	}
	if rec.failures != 1 {
		t.Errorf("failures = %d, want 1", rec.failures)
	}
}

func TestWithRetry_OtherErrorsNotRetried(t *testing.T) {
	useObserver(t)

	calls := 0
	_, err := withRetry("open", "/library/a.jpg", fastRetry(), func() (int, error) {
		calls++
		return 0, os.ErrPermission
	})

	if !errors.Is(err, os.ErrPermission) {
		t.Fatalf("withRetry() error = %v, want permission error", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestStatWithRetry(t *testing.T) {
	rec := useObserver(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	if err := os.WriteFile(path, []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := StatWithRetry(path, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("StatWithRetry() error = %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("Size() = %d, want 4", info.Size())
	}

	if _, err := StatWithRetry(filepath.Join(dir, "missing.jpg"), DefaultRetryConfig()); !os.IsNotExist(err) {
		t.Errorf("StatWithRetry(missing) error = %v, want not exist", err)
	}

	if len(rec.ops) != 2 || rec.ops[0] != "unknown/stat/ok" || rec.ops[1] != "unknown/stat/error" {
		t.Errorf("observed ops = %v", rec.ops)
	}
}

func TestOpenWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("mp4"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := OpenWithRetry(path, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v", err)
	}
	defer f.Close()

	buf := make([]byte, 3)
	if _, err := f.Read(buf); err != nil || string(buf) != "mp4" {
		t.Errorf("Read() = %q, %v", buf, err)
	}
}

func TestReadDirWithRetry(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.jpg", "a.jpg", "sub"} {
		if name == "sub" {
			if err := os.Mkdir(filepath.Join(dir, name), 0o755); err != nil {
				t.Fatal(err)
			}
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := ReadDirWithRetry(dir, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("ReadDirWithRetry() error = %v", err)
	}

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	want := []string{"a.jpg", "b.jpg", "sub"}
	if len(names) != len(want) {
		t.Fatalf("entries = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("entries[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func BenchmarkVolumeResolver_Resolve(b *testing.B) {
	vr := NewVolumeResolver(map[string][]string{
		"source":     {"/photos", "/videos"},
		"thumbnails": {"/cache/thumbs"},
	})
	for i := 0; i < b.N; i++ {
		vr.Resolve("/photos/2024/05/holiday/IMG_0001.jpg")
	}
}
