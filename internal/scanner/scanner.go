package scanner

import (
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"media-indexer/internal/filesystem"
	"media-indexer/internal/logging"
	"media-indexer/internal/mediatypes"
	"media-indexer/internal/metrics"
	"media-indexer/internal/settings"
)

// ProgressFunc is called for every visited entry before it is filtered.
type ProgressFunc func(dir, name string)

// Scanner applies the exclusion rules of one settings snapshot.
type Scanner struct {
	excludeDirs  []string
	excludeFiles []string
	minSize      int64
	maxSize      int64
	retry        filesystem.RetryConfig
}

// New returns a Scanner using the filters in s.
func New(s settings.Settings) *Scanner {
	return &Scanner{
		excludeDirs:  lowerAll(s.ExcludeDirKeywords),
		excludeFiles: lowerAll(s.ExcludeFileKeywords),
		minSize:      s.MinFileSize,
		maxSize:      s.MaxFileSize,
		retry:        filesystem.DefaultRetryConfig(),
	}
}

func lowerAll(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Scan walks roots in order and returns eligible file paths in discovery
// order. When isCancelled reports true the files collected so far are
// returned; callers must treat that list as partial.
func (s *Scanner) Scan(roots []string, onProgress ProgressFunc, isCancelled func() bool) []string {
	start := time.Now()
	if onProgress == nil {
		onProgress = func(string, string) {}
	}
	if isCancelled == nil {
		isCancelled = func() bool { return false }
	}

	var files []string
	for _, root := range roots {
		var done bool
		files, done = s.walk(root, files, onProgress, isCancelled)
		if done {
			logging.Debug("Scan cancelled after %d files", len(files))
			break
		}
	}

	metrics.ScannerDuration.Observe(time.Since(start).Seconds())
	logging.Debug("Scanned %d roots in %v, %d files accepted", len(roots), time.Since(start), len(files))
	return files
}

// walk runs the breadth-first traversal of one root. It reports true when
// the scan was cancelled.
func (s *Scanner) walk(root string, files []string, onProgress ProgressFunc, isCancelled func() bool) ([]string, bool) {
	queue := []string{root}

	for len(queue) > 0 {
		if isCancelled() {
			return files, true
		}

		dir := queue[0]
		queue = queue[1:]

		if s.excludedDir(root, dir) {
			logging.Debug("Skipping excluded directory %s", dir)
			continue
		}

		entries, err := filesystem.ReadDirWithRetry(dir, s.retry)
		if err != nil {
			logging.Debug("Skipping unreadable directory %s: %v", dir, err)
			continue
		}
		metrics.ScannerDirectoriesTotal.Inc()

		for _, entry := range entries {
			if isCancelled() {
				return files, true
			}

			name := entry.Name()
			path := filepath.Join(dir, name)
			onProgress(dir, name)

			switch {
			case entry.Type()&fs.ModeSymlink != 0:
				continue
			case entry.IsDir():
				queue = append(queue, path)
				continue
			case !entry.Type().IsRegular():
				continue
			}

			if reason, ok := s.accept(entry); !ok {
				metrics.ScannerFilesSkipped.WithLabelValues(reason).Inc()
				continue
			}

			metrics.ScannerFilesDiscovered.Inc()
			files = append(files, path)
		}
	}

	return files, false
}

// excludedDir matches keywords against dir relative to the parent of root,
// so the root's own name counts and its ancestors do not.
func (s *Scanner) excludedDir(root, dir string) bool {
	if len(s.excludeDirs) == 0 {
		return false
	}
	name := filepath.Base(root)
	if rel, err := filepath.Rel(root, dir); err == nil && rel != "." {
		name = filepath.Join(name, rel)
	}
	return containsAny(strings.ToLower(name), s.excludeDirs)
}

// accept reports whether a regular file entry is eligible, and if not,
// which filter rejected it.
func (s *Scanner) accept(entry fs.DirEntry) (string, bool) {
	name := entry.Name()
	if !mediatypes.IsMediaFile(name) {
		return "extension", false
	}
	if containsAny(strings.ToLower(name), s.excludeFiles) {
		return "keyword", false
	}

	if s.minSize <= 0 && s.maxSize <= 0 {
		return "", true
	}

	info, err := entry.Info()
	if err != nil {
		return "unreadable", false
	}
	if !s.sizeInRange(info.Size()) {
		return "size", false
	}
	return "", true
}

func (s *Scanner) sizeInRange(size int64) bool {
	if s.minSize > 0 && size < s.minSize {
		return false
	}
	if s.maxSize > 0 && size > s.maxSize {
		return false
	}
	return true
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
