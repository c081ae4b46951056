package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LocalBackend keeps blobs under a fixed root directory, one subdirectory per
// request. References are tagged strings: "folder:<id>" and "file:<id>/<name>".
type LocalBackend struct {
	root string
}

func NewLocalBackend(root string) (*LocalBackend, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve local storage root: %w", err)
	}
	return &LocalBackend{root: filepath.Clean(abs)}, nil
}

// Root returns the canonical storage root.
func (l *LocalBackend) Root() string {
	return l.root
}

func (l *LocalBackend) EnsureFolder(_ context.Context, requestID uint) (string, error) {
	id := strconv.FormatUint(uint64(requestID), 10)
	dir, err := l.resolve(id)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create local folder: %w", err)
	}
	return localFolderPrefix + id, nil
}

func (l *LocalBackend) Upload(_ context.Context, folderRef, name string, r io.Reader, _ int64, _ string) (string, error) {
	id, err := parseLocalFolderRef(folderRef)
	if err != nil {
		return "", err
	}
	dir, err := l.resolve(id)
	if err != nil {
		return "", err
	}
	target, err := l.resolve(filepath.Join(id, name))
	if err != nil {
		return "", err
	}
	if filepath.Dir(target) != dir {
		return "", ErrOutsideRoot
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create local folder: %w", err)
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create local file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(target)
		return "", fmt.Errorf("write local file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(target)
		return "", fmt.Errorf("close local file: %w", err)
	}
	return localFilePrefix + id + "/" + name, nil
}

func (l *LocalBackend) Download(_ context.Context, fileRef string) (io.ReadCloser, error) {
	path, err := l.resolveFile(fileRef)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open local file: %w", err)
	}
	return f, nil
}

func (l *LocalBackend) Delete(_ context.Context, fileRef string) error {
	path, err := l.resolveFile(fileRef)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove local file: %w", err)
	}
	return nil
}

func (l *LocalBackend) resolveFile(fileRef string) (string, error) {
	if !strings.HasPrefix(fileRef, localFilePrefix) {
		return "", ErrInvalidRef
	}
	rel := strings.TrimPrefix(fileRef, localFilePrefix)
	if strings.TrimSpace(rel) == "" {
		return "", ErrInvalidRef
	}
	path, err := l.resolve(rel)
	if err != nil {
		return "", err
	}
	if path == l.root {
		return "", ErrInvalidRef
	}
	return path, nil
}

// resolve joins rel onto the root and fails closed when the cleaned result
// is not the root or below it.
func (l *LocalBackend) resolve(rel string) (string, error) {
	path := filepath.Join(l.root, filepath.FromSlash(rel))
	inside, err := filepath.Rel(l.root, path)
	if err != nil {
		return "", ErrOutsideRoot
	}
	if inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return path, nil
}

func parseLocalFolderRef(folderRef string) (string, error) {
	if !strings.HasPrefix(folderRef, localFolderPrefix) {
		return "", ErrInvalidRef
	}
	id := strings.TrimSpace(strings.TrimPrefix(folderRef, localFolderPrefix))
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return "", ErrInvalidRef
	}
	return id, nil
}
