package archive

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	reports "metering-dashboard/internal/reports/domain"
)

// Store persists rendered artifacts and returns a link to them.
type Store interface {
	Put(ctx context.Context, scheduleID string, artifact reports.Artifact) (string, error)
}

// FileStore writes artifacts under <root>/<scheduleID>/<filename>.
type FileStore struct {
	root          string
	publicBaseURL string
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithPublicBaseURL makes Put return "<base>/<scheduleID>/<filename>".
func WithPublicBaseURL(base string) FileStoreOption {
	return func(s *FileStore) {
		s.publicBaseURL = strings.TrimRight(base, "/")
	}
}

// NewFileStore constructs a filesystem archive.
func NewFileStore(root string, opts ...FileStoreOption) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("archive: empty root")
	}
	store := &FileStore{root: root}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// Put writes the artifact atomically.
func (s *FileStore) Put(ctx context.Context, scheduleID string, artifact reports.Artifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir, name, err := s.paths(scheduleID, artifact.Filename)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("archive: mkdir: %w", err)
	}
	target := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("archive: create: %w", err)
	}
	if _, err := tmp.Write(artifact.Data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("archive: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("archive: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("archive: rename: %w", err)
	}
	if s.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, url.PathEscape(scheduleID), url.PathEscape(name)), nil
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(target)}).String(), nil
}

func (s *FileStore) paths(scheduleID, filename string) (string, string, error) {
	if scheduleID == "" || filename == "" {
		return "", "", errors.New("archive: empty schedule id or filename")
	}
	for _, part := range []string{scheduleID, filename} {
		if part != filepath.Base(part) || part == "." || part == ".." {
			return "", "", fmt.Errorf("archive: invalid path component %q", part)
		}
	}
	return filepath.Join(s.root, scheduleID), filename, nil
}

// ObjectKey is the storage key shared by the archive backends.
func ObjectKey(prefix, scheduleID, filename string) string {
	key := scheduleID + "/" + filename
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		key = prefix + "/" + key
	}
	return key
}
