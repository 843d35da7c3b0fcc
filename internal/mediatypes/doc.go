// Package mediatypes holds the fixed extension tables that decide which
// files the scanner accepts and whether the worker treats them as images
// or videos.
//
// Matching is case-insensitive: IMG_0001.JPG and clip.MOV are media
// files. Anything not listed is [FileTypeOther] and never becomes a task.
package mediatypes
