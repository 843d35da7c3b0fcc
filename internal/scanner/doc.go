// Package scanner walks source directories and returns the media files a
// build should process.
//
// Each root is traversed breadth-first with an explicit queue, so deep
// trees cost heap rather than stack. Directories whose path contains an
// excluded keyword are never read. Files are kept when their extension is
// a known image or video type, their name contains no excluded keyword and
// their size lies within the configured bounds.
//
// Unreadable directories are skipped with a debug log; they are not build
// errors. Symbolic links are neither followed nor returned.
//
// Example:
//
//	s := scanner.New(cfg)
//	files := s.Scan(cfg.SourceDirs, func(dir, name string) {
//		status.Update(dir, name)
//	}, cancelled.Load)
package scanner
