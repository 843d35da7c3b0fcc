/*
Package filesystem wraps the filesystem calls made during a build with
retry logic for stale NFS file handles.

Media libraries commonly live on network mounts. A directory listing or a
stat that races with a server-side change can fail with ESTALE even though
the path is still valid. [StatWithRetry], [OpenWithRetry] and
[ReadDirWithRetry] retry only that error, with exponential backoff capped
at RetryConfig.MaxBackoff. Every other error is returned on the first
attempt.

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

# Metrics

Each call reports its duration and retries to the package [Observer],
labelled with the volume returned by the [VolumeResolver]. main wires the
Prometheus observer and a resolver built from the configured source,
database, thumbnail and temp directories:

	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string][]string{
	    "source":     cfg.SourceDirs,
	    "thumbnails": {cfg.ThumbnailDir},
	}))

Without an observer nothing is recorded, which keeps tests free of global
metric state.
*/
package filesystem
