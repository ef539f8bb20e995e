package storage

import (
	"context"
	"io"
	"path"
	"strings"
)

// BlobStore durably persists raw recording bytes and returns a location
// reference: an object URL for remote stores, an absolute path for local
// disk. The blob write must complete before any metadata row references it.
type BlobStore interface {
	// Save streams body to durable storage under the given name and returns
	// the location reference.
	Save(ctx context.Context, name, contentType string, body io.Reader, size int64) (string, error)
	// Delete removes a previously saved blob by its location reference.
	Delete(ctx context.Context, location string) error
}

// URLSigner is implemented by stores whose blobs are fetched via URL rather
// than streamed from local disk.
type URLSigner interface {
	// PresignURL returns a time-limited download URL for the blob at location.
	PresignURL(ctx context.Context, location string) (string, error)
}

// Known video MIME types by extension.
var videoContentTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
}

// ContentTypeForFilename returns the MIME type for a video filename
// extension, defaulting to video/mp4.
func ContentTypeForFilename(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ct, ok := videoContentTypes[ext]; ok {
		return ct
	}
	return "video/mp4"
}
