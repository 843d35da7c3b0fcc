package media

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/rwcarlsen/goexif/exif"

	"media-indexer/internal/logging"
	"media-indexer/internal/mediatypes"
)

// Metadata holds the raw tags a build uses. Date fields keep the tag text
// as found; ResolveCapturedAt decides which one wins.
type Metadata struct {
	DateTimeOriginal string
	CreateDate       string
	CreationDate     string
	CreationTime     string
	ModifyDate       string

	Model      string
	Latitude   *float64
	Longitude  *float64
	DurationMs *int64
}

// ReadMetadata reads the tags of path. Location is not requested when
// ignoreLocation is set. Errors are informational: callers may continue
// with the zero Metadata.
func ReadMetadata(ctx context.Context, path string, mediaType mediatypes.FileType, ignoreLocation bool) (Metadata, error) {
	switch mediaType {
	case mediatypes.FileTypeImage:
		return readImageMetadata(path, ignoreLocation)
	case mediatypes.FileTypeVideo:
		return readVideoMetadata(ctx, path, ignoreLocation)
	default:
		return Metadata{}, fmt.Errorf("unsupported media type %q", mediaType)
	}
}

func readImageMetadata(path string, ignoreLocation bool) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to decode exif: %w", err)
	}

	var meta Metadata
	meta.DateTimeOriginal = exifString(x, exif.DateTimeOriginal)
	meta.CreateDate = exifString(x, exif.DateTimeDigitized)
	meta.ModifyDate = exifString(x, exif.DateTime)
	meta.Model = exifString(x, exif.Model)

	if !ignoreLocation {
		if lat, lng, err := x.LatLong(); err == nil && validCoordinate(lat, lng) {
			meta.Latitude, meta.Longitude = &lat, &lng
		}
	}

	return meta, nil
}

func exifString(x *exif.Exif, field exif.FieldName) string {
	tag, err := x.Get(field)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

func validCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

type ffprobeOutput struct {
	Format struct {
		Duration string            `json:"duration"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
	Streams []struct {
		CodecType string            `json:"codec_type"`
		Tags      map[string]string `json:"tags"`
	} `json:"streams"`
}

func readVideoMetadata(ctx context.Context, path string, ignoreLocation bool) (Metadata, error) {
	out, err := runTool(ctx, "ffprobe", "probe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return Metadata{}, err
	}
	return parseFFprobe(out, ignoreLocation)
}

func parseFFprobe(data []byte, ignoreLocation bool) (Metadata, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	tags := lowerKeys(probe.Format.Tags)
	for _, s := range probe.Streams {
		if s.CodecType != "video" {
			continue
		}
		for k, v := range lowerKeys(s.Tags) {
			if _, ok := tags[k]; !ok {
				tags[k] = v
			}
		}
	}

	var meta Metadata
	meta.CreationDate = tags["com.apple.quicktime.creationdate"]
	meta.CreationTime = tags["creation_time"]
	meta.Model = firstNonEmpty(tags["com.apple.quicktime.model"], tags["model"])

	if seconds, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil && seconds > 0 {
		ms := int64(math.Round(seconds * 1000))
		meta.DurationMs = &ms
	}

	if !ignoreLocation {
		loc := firstNonEmpty(tags["com.apple.quicktime.location.iso6709"], tags["location"])
		if lat, lng, ok := parseISO6709(loc); ok {
			meta.Latitude, meta.Longitude = &lat, &lng
		}
	}

	return meta, nil
}

func lowerKeys(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = strings.TrimSpace(v)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var iso6709Pattern = regexp.MustCompile(`^([+-]\d+(?:\.\d+)?)([+-]\d+(?:\.\d+)?)`)

// parseISO6709 reads the decimal-degree form used by phones, for example
// "+37.7858-122.4064+012.000/".
func parseISO6709(s string) (lat, lng float64, ok bool) {
	m := iso6709Pattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, false
	}

	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, false
	}
	lng, err = strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, 0, false
	}
	if !validCoordinate(lat, lng) {
		logging.Debug("Ignoring out of range location %q", s)
		return 0, 0, false
	}
	return lat, lng, true
}
