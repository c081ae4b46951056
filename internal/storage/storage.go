// Package storage holds the blob backends attachments are written to: a Google
// Drive backend and a local filesystem backend, chosen once per process by
// Selector.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
)

var (
	// ErrInvalidRef is returned for a folder or file reference the backend did not issue.
	ErrInvalidRef = errors.New("invalid storage reference")
	// ErrOutsideRoot is returned when a local path would escape the storage root.
	ErrOutsideRoot = errors.New("path escapes storage root")
)

// Backend stores attachment blobs in one folder per request.
type Backend interface {
	// EnsureFolder returns the folder reference for requestID, creating it when missing.
	EnsureFolder(ctx context.Context, requestID uint) (string, error)
	// Upload streams r into folderRef under name and returns the file reference.
	Upload(ctx context.Context, folderRef, name string, r io.Reader, size int64, contentType string) (string, error)
	// Download opens the blob behind fileRef. The caller closes the reader.
	Download(ctx context.Context, fileRef string) (io.ReadCloser, error)
	Delete(ctx context.Context, fileRef string) error
}

const (
	localFolderPrefix = "folder:"
	localFilePrefix   = "file:"
)

// IsLocalRef reports whether ref was issued by the local backend.
func IsLocalRef(ref string) bool {
	return strings.HasPrefix(ref, localFolderPrefix) || strings.HasPrefix(ref, localFilePrefix)
}
