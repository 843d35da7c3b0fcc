package media

import (
	"crypto/sha1"
	"encoding/hex"
)

// ThumbnailKey derives the thumbnail store key from an absolute file path.
func ThumbnailKey(absPath string) string {
	sum := sha1.Sum([]byte(absPath))
	return hex.EncodeToString(sum[:])
}
