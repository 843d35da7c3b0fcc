// Package database stores build output in two SQLite databases.
//
// [IndexDB] holds one row per indexed file in the media table, keyed
// uniquely by absolute file path, and an append-only build_errors table.
// [ThumbnailDB] holds encoded WebP thumbnails keyed by thumbnail key in a
// separate file (thumbnails.db inside the thumbnail directory) so the
// index stays small enough to query quickly.
//
// Both databases are opened in WAL mode with a busy timeout. During a
// build the dispatcher is the only writer; readers such as the status API
// and the buildlog command may query concurrently.
//
// [Manager] owns the connection state. It starts disconnected and opens
// both databases the first time a build asks for its stores, so nothing
// touches the disk until the paths are known.
package database
