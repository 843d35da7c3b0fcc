package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"media-indexer/internal/logging"
)

// LoadFromEnv builds Settings from environment variables and logs the
// resolved configuration. Paths are made absolute. An invalid size bound
// or an inverted size range is an error; other invalid values fall back
// to their defaults with a warning.
func LoadFromEnv() (Settings, error) {
	s := Default()

	s.SourceDirs = splitList(os.Getenv("SOURCE_DIRS"), string(os.PathListSeparator))
	s.ExcludeDirKeywords = splitList(os.Getenv("EXCLUDE_DIR_KEYWORDS"), ",")
	s.ExcludeFileKeywords = splitList(os.Getenv("EXCLUDE_FILE_KEYWORDS"), ",")

	var err error
	if s.MinFileSize, err = getEnvSize("MIN_FILE_SIZE"); err != nil {
		return Settings{}, err
	}
	if s.MaxFileSize, err = getEnvSize("MAX_FILE_SIZE"); err != nil {
		return Settings{}, err
	}
	if s.MinFileSize > 0 && s.MaxFileSize > 0 && s.MinFileSize > s.MaxFileSize {
		return Settings{}, fmt.Errorf("MIN_FILE_SIZE (%s) exceeds MAX_FILE_SIZE (%s)",
			humanize.IBytes(uint64(s.MinFileSize)), humanize.IBytes(uint64(s.MaxFileSize)))
	}

	s.WorkerCount = getEnvInt("WORKER_COUNT", s.WorkerCount)
	s.ThumbnailSize = getEnvInt("THUMBNAIL_SIZE", s.ThumbnailSize)
	s.ThumbnailQuality = getEnvInt("THUMBNAIL_QUALITY", s.ThumbnailQuality)
	if s.ThumbnailQuality < 1 || s.ThumbnailQuality > 100 {
		logging.Warn("  THUMBNAIL_QUALITY %d out of range (1-100), using default: %d", s.ThumbnailQuality, DefaultThumbnailQuality)
		s.ThumbnailQuality = DefaultThumbnailQuality
	}
	if s.ThumbnailSize < 16 {
		logging.Warn("  THUMBNAIL_SIZE %d too small, using default: %d", s.ThumbnailSize, DefaultThumbnailSize)
		s.ThumbnailSize = DefaultThumbnailSize
	}
	s.IgnoreLocationData = getEnvBool("IGNORE_LOCATION_DATA", s.IgnoreLocationData)

	s.IndexDBPath = absPath(getEnv("INDEX_DB_PATH", ""))
	s.ThumbnailDir = absPath(getEnv("THUMBNAIL_DIR", ""))
	s.TmpDir = absPath(getEnv("TMP_DIR", ""))
	for i, dir := range s.SourceDirs {
		s.SourceDirs[i] = absPath(dir)
	}

	s.Log()

	return s, nil
}

// Log writes the configuration section of the startup banner.
func (s Settings) Log() {
	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  SOURCE_DIRS:           %s", strings.Join(s.SourceDirs, string(os.PathListSeparator)))
	logging.Info("  EXCLUDE_DIR_KEYWORDS:  %s", strings.Join(s.ExcludeDirKeywords, ","))
	logging.Info("  EXCLUDE_FILE_KEYWORDS: %s", strings.Join(s.ExcludeFileKeywords, ","))
	logging.Info("  MIN_FILE_SIZE:         %s", sizeString(s.MinFileSize))
	logging.Info("  MAX_FILE_SIZE:         %s", sizeString(s.MaxFileSize))
	logging.Info("  WORKER_COUNT:          %d", s.Workers())
	logging.Info("  THUMBNAIL_SIZE:        %d", s.ThumbnailSize)
	logging.Info("  THUMBNAIL_QUALITY:     %d", s.ThumbnailQuality)
	logging.Info("  IGNORE_LOCATION_DATA:  %v", s.IgnoreLocationData)
	logging.Info("  INDEX_DB_PATH:         %s", s.IndexDBPath)
	logging.Info("  THUMBNAIL_DIR:         %s", s.ThumbnailDir)
	logging.Info("  TMP_DIR:               %s", s.ScratchDir())
	logging.Info("  LOG_LEVEL:             %s", logging.GetLevel())
}

func sizeString(n int64) string {
	if n <= 0 {
		return "(none)"
	}
	return humanize.IBytes(uint64(n))
}

func absPath(p string) string {
	if p == "" {
		return ""
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}

func splitList(value, sep string) []string {
	var out []string
	for _, part := range strings.Split(value, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvSize parses a human readable byte size such as "512KB" or "2GiB".
// An unset variable yields 0.
func getEnvSize(key string) (int64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if n > 1<<62 {
		return 0, fmt.Errorf("invalid %s %q: too large", key, value)
	}
	return int64(n), nil
}
