// Package storage persists uploaded avatar images. Two backends exist: the
// local disk (files served by the HTTP server under /uploads/) and an
// S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AvatarStore saves an image under name and returns the URL clients use to
// fetch it.
type AvatarStore interface {
	Save(ctx context.Context, name, contentType string, body io.Reader, size int64) (string, error)
}

// extensions lists the accepted image types.
var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Extension returns the file extension for an accepted image MIME type.
func Extension(contentType string) (string, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	ext, ok := extensions[ct]
	return ext, ok
}

// ObjectName builds a unique file name for a user's avatar. Nothing from the
// client-supplied file name is kept.
func ObjectName(userID uint64, ext string, now time.Time) string {
	return fmt.Sprintf("logo-%d-%d-%s%s", userID, now.Unix(), uuid.NewString()[:8], ext)
}
