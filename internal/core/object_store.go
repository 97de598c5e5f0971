package core

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ObjectInfo describes a stored blob after a put.
type ObjectInfo struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
	ETag string `json:"etag"`
}

// Object is a blob read back from the store.
type Object struct {
	Data         []byte    `json:"-"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// ObjectStore is the gateway to the blob store holding archived import files.
// Delete of a missing key is not an error. Get of a missing key returns an
// error matching ErrNotFound.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (ObjectInfo, error)
	Get(ctx context.Context, key string) (Object, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// ObjectKey builds a unique object key for an uploaded file:
// prefix/<unix millis>_<uuid without dashes>_<sanitized base name><ext>.
func ObjectKey(prefix, filename string, now time.Time) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filepath.Base(filename), ext)
	if base == "" || base == "." {
		base = "file"
	}
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	name := fmt.Sprintf("%d_%s_%s%s", now.UnixMilli(), id,
		unsafeKeyChars.ReplaceAllString(base, "_"),
		unsafeKeyChars.ReplaceAllString(ext, "_"))
	if prefix == "" {
		return name
	}
	return strings.TrimSuffix(prefix, "/") + "/" + name
}

var contentTypes = map[string]string{
	".csv":  "text/csv",
	".txt":  "text/plain",
	".json": "application/json",
	".xml":  "application/xml",
}

// DetectContentType maps well-known extensions directly and sniffs the
// content for anything else.
func DetectContentType(filename string, data []byte) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	if len(data) == 0 {
		return "application/octet-stream"
	}
	return mimetype.Detect(data).String()
}
