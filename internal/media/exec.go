package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"media-indexer/internal/logging"
	"media-indexer/internal/metrics"
)

// execCommand is replaced in tests.
var execCommand = exec.CommandContext

// runTool runs ffmpeg or ffprobe and returns its stdout. The process is
// killed when ctx is cancelled. operation labels the duration metric.
func runTool(ctx context.Context, tool, operation string, args ...string) ([]byte, error) {
	start := time.Now()
	defer func() {
		metrics.ThumbnailFFmpegDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	cmd := execCommand(ctx, tool, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s %s: %w", tool, operation, ctx.Err())
		}
		msg := lastLine(stderr.String())
		logging.Debug("%s %s failed: %v, stderr: %s", tool, operation, err, stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("%s %s failed: %w", tool, operation, err)
		}
		return nil, fmt.Errorf("%s %s failed: %w: %s", tool, operation, err, msg)
	}

	return stdout.Bytes(), nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
