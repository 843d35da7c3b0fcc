package media

import (
	"strings"
	"time"
)

// Layouts tried, in order, for tag dates without an explicit zone or with
// an RFC 3339 one. EXIF dates are local wall-clock time.
var captureLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006:01:02 15:04:05",
	"2006:01:02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05-0700",
	"2006-01-02",
}

// ResolveCapturedAt returns the first parseable date among, in order, the
// original, create, creation, creation_time and modify tags. When none
// parses it returns modTime.
func ResolveCapturedAt(meta Metadata, modTime time.Time) time.Time {
	for _, candidate := range []string{
		meta.DateTimeOriginal,
		meta.CreateDate,
		meta.CreationDate,
		meta.CreationTime,
		meta.ModifyDate,
	} {
		if t, ok := parseDate(candidate); ok {
			return t
		}
	}
	return modTime
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range captureLayouts {
		t, err := time.ParseInLocation(layout, s, time.Local)
		if err != nil {
			continue
		}
		// Cameras write zero dates when the clock was never set.
		if t.Year() <= 1 {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}
