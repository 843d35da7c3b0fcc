// Package workers sizes the build worker pool.
//
// Each build worker decodes, resizes and encodes one file at a time, and
// video frames are extracted by an ffmpeg child process that may use more
// than one core on its own. [Default] therefore starts from half of
// GOMAXPROCS, which Go derives from the container CPU quota. A configured
// WORKER_COUNT replaces the default; [Clamp] keeps any configured value at
// one worker or more.
package workers
