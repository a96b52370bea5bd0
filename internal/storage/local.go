package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps objects as files under root/<bucket>. The media server
// publishes root under publicBase.
type LocalStore struct {
	root       string
	bucket     string
	publicBase string
}

func NewLocalStore(root, bucket, publicBase string) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Join(root, bucket), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}

	return &LocalStore{
		root:       root,
		bucket:     bucket,
		publicBase: strings.TrimRight(publicBase, "/"),
	}, nil
}

func (s *LocalStore) Bucket() string {
	return s.bucket
}

// Root is the directory served as the public media tree.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) Upload(_ context.Context, path string, data []byte, _ string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create object dir: %w", err)
	}

	tmp := full + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec // media files are public
		return fmt.Errorf("failed to write %q: %w", path, err)
	}

	if err := os.Rename(tmp, full); err != nil {
		return fmt.Errorf("failed to commit %q: %w", path, err)
	}

	return nil
}

func (s *LocalStore) Download(_ context.Context, path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, path)
		}

		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}

	return data, nil
}

func (s *LocalStore) Remove(_ context.Context, paths ...string) ([]string, error) {
	removed := make([]string, 0, len(paths))

	var errs []error

	for _, p := range paths {
		full, err := s.resolve(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to remove %q: %w", p, err))
			continue
		}

		removed = append(removed, p)
	}

	return removed, errors.Join(errs...)
}

func (s *LocalStore) PublicURL(path string) string {
	return s.publicBase + "/" + escapePath(path)
}

// resolve maps an object path below root, rejecting anything that escapes it.
func (s *LocalStore) resolve(path string) (string, error) {
	clean := filepath.FromSlash(strings.TrimLeft(path, "/"))
	if clean == "" || !filepath.IsLocal(clean) {
		return "", fmt.Errorf("invalid object path %q", path)
	}

	return filepath.Join(s.root, clean), nil
}
