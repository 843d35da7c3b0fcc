// Package media extracts metadata from media files and renders WebP
// thumbnails for them.
//
// Metadata comes from EXIF for images and from ffprobe for videos. A
// missing or unreadable tag is never an error for the caller: the capture
// time falls back to the file modification time.
//
// Thumbnails are square WebP images cropped to cover the requested size:
//   - Images: libvips with attention-based cropping when it has been
//     initialised with [InitVips], otherwise a pure-Go decode with a centre
//     crop. If the file cannot be decoded directly it is converted to PNG
//     with ffmpeg and decoded again.
//   - Videos: one keyframe is extracted with ffmpeg into the scratch
//     directory and cropped around its centre.
package media
