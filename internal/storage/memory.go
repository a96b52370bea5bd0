package storage

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// MemoryStore is an in-process ObjectStore for tests and dry runs.
type MemoryStore struct {
	bucket string

	mu          sync.Mutex
	objects     map[string][]byte
	types       map[string]string
	failUploads int
	uploads     int
}

func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{
		bucket:      bucket,
		mu:          sync.Mutex{},
		objects:     map[string][]byte{},
		types:       map[string]string{},
		failUploads: 0,
		uploads:     0,
	}
}

// FailNextUploads makes the next n Upload calls return an error.
func (s *MemoryStore) FailNextUploads(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failUploads = n
}

// Uploads counts the Upload calls that succeeded.
func (s *MemoryStore) Uploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.uploads
}

// Paths lists the stored object paths in order.
func (s *MemoryStore) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Sorted(maps.Keys(s.objects))
}

func (s *MemoryStore) ContentType(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.types[path]
}

func (s *MemoryStore) Bucket() string {
	return s.bucket
}

func (s *MemoryStore) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failUploads > 0 {
		s.failUploads--
		return fmt.Errorf("failed to upload %q: storage unavailable", path)
	}

	s.objects[path] = slices.Clone(data)
	s.types[path] = contentType
	s.uploads++

	return nil
}

func (s *MemoryStore) Download(_ context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, path)
	}

	return slices.Clone(data), nil
}

func (s *MemoryStore) Remove(_ context.Context, paths ...string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make([]string, 0, len(paths))

	for _, p := range paths {
		if _, ok := s.objects[p]; ok {
			delete(s.objects, p)
			delete(s.types, p)
			removed = append(removed, p)
		}
	}

	return removed, nil
}

func (s *MemoryStore) PublicURL(path string) string {
	return "memory://" + s.bucket + "/" + path
}
