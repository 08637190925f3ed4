// Package archive keeps a copy of every uploaded invoice document.
package archive

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Document is one uploaded original.
type Document struct {
	SessionID   string
	Filename    string
	ContentType string
	Data        []byte
}

// Archiver stores originals and reads them back by URI.
type Archiver interface {
	Store(ctx context.Context, doc Document) (string, error)
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Nop discards documents. It is used when no bucket is configured.
type Nop struct{}

func (Nop) Store(ctx context.Context, doc Document) (string, error) { return "", nil }

func (Nop) Fetch(ctx context.Context, uri string) ([]byte, error) {
	return nil, fmt.Errorf("Fetch: archive disabled, cannot read %s", uri)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectName builds the object path for a document:
// invoices/<session>/<uuid>-<sanitized filename>.
func ObjectName(sessionID, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = unsafeChars.ReplaceAllString(base, "_")
	if base == "" || base == "." || base == "/" {
		base = "document"
	}
	session := unsafeChars.ReplaceAllString(sessionID, "_")
	if session == "" {
		session = "unknown"
	}
	return fmt.Sprintf("invoices/%s/%s-%s", session, uuid.NewString(), base)
}

// ParseURI splits gs://bucket/object into its parts.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("ParseURI: invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("ParseURI: invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// FilenameFromURI returns the last path element of a GCS URI,
// e.g. "gs://bucket/invoices/x/file.pdf" gives "file.pdf".
func FilenameFromURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}
