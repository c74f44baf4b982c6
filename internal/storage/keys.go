package storage

import (
	"fmt"
	"strings"
	"time"
)

// ImageKey builds the object key for a generated image: {userID}/{jobID}/{unixMillis}.{ext}.
// A non-negative index is appended as -{index} so multi-image jobs get distinct keys.
func ImageKey(userID, jobID string, at time.Time, index int, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = "png"
	}
	if index < 0 {
		return fmt.Sprintf("%s/%s/%d.%s", userID, jobID, at.UnixMilli(), ext)
	}
	return fmt.Sprintf("%s/%s/%d-%d.%s", userID, jobID, at.UnixMilli(), index, ext)
}

// ContentType maps an image format to its MIME type.
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
