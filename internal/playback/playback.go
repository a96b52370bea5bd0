// Package playback plays audio cards, at most one at a time.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/alkime/practice/internal/storage"
	"github.com/alkime/practice/internal/visualizer"
)

var (
	ErrNoSource = errors.New("audio has no playable source")
	ErrNotReady = errors.New("player not ready")
)

// Item is one playable audio card.
type Item struct {
	ID       string
	URL      string
	MimeType string
	// Data is set for takes that only exist locally, such as the recorder
	// preview or a pending upload.
	Data []byte
}

// Source is a resolved item: either bytes in memory or a remote URL.
type Source struct {
	URL      string
	Data     []byte
	MimeType string
}

// Loader returns a visualizer loader over the source. Remote sources are
// fetched with client.
func (s Source) Loader(client *http.Client) visualizer.Loader {
	return func(ctx context.Context) ([]byte, string, error) {
		if len(s.Data) > 0 {
			return s.Data, s.MimeType, nil
		}

		return Fetch(ctx, client, s.URL)
	}
}

// Fetch downloads url and returns the body and its content type.
func Fetch(ctx context.Context, client *http.Client, url string) ([]byte, string, error) {
	if url == "" {
		return nil, "", ErrNoSource
	}

	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to fetch audio: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read audio body: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || strings.HasPrefix(mimeType, "application/octet-stream") {
		mimeType = storage.MimeForExtension(path.Ext(url))
	}

	return data, mimeType, nil
}

// Resolver turns an item into a playable source.
type Resolver interface {
	Resolve(ctx context.Context, item Item) (Source, error)
}

// StorageResolver downloads stored objects. External http URLs are played
// from the URL.
type StorageResolver struct {
	objects storage.ObjectStore
}

func NewStorageResolver(objects storage.ObjectStore) *StorageResolver {
	return &StorageResolver{objects: objects}
}

func (r *StorageResolver) Resolve(ctx context.Context, item Item) (Source, error) {
	if len(item.Data) > 0 {
		return Source{URL: "", Data: item.Data, MimeType: item.MimeType}, nil
	}

	raw := strings.TrimSpace(item.URL)
	if raw == "" {
		return Source{}, fmt.Errorf("%w: %s", ErrNoSource, item.ID)
	}

	normalized := storage.NormalizePath(raw, r.objects.Bucket())
	if storage.IsHTTPURL(normalized) {
		return Source{URL: normalized, Data: nil, MimeType: item.MimeType}, nil
	}

	candidates := []string{normalized}
	if plain := strings.TrimLeft(raw, "/"); plain != normalized && !storage.IsHTTPURL(plain) {
		candidates = append(candidates, plain)
	}

	var lastErr error

	for _, p := range candidates {
		data, err := r.objects.Download(ctx, p)
		if err != nil {
			lastErr = err
			continue
		}

		mimeType := item.MimeType
		if mimeType == "" {
			mimeType = storage.MimeForExtension(path.Ext(p))
		}

		return Source{URL: "", Data: data, MimeType: mimeType}, nil
	}

	return Source{}, fmt.Errorf("failed to download audio %s: %w", item.ID, lastErr)
}

// Handlers are the player events the controller listens to. They may be
// called from any goroutine.
type Handlers struct {
	OnEnded func()
}

// Player is one loaded audio source.
type Player interface {
	Play() error
	Pause()
	Paused() bool
	Position() time.Duration
	// Duration is the total length, false while still unknown.
	Duration() (time.Duration, bool)
	// Ready is closed once Duration is known.
	Ready() <-chan struct{}
	Seek(pos time.Duration) error
	Close() error
}

// Factory builds a player for a resolved source.
type Factory interface {
	NewPlayer(ctx context.Context, src Source, h Handlers) (Player, error)
}

type FactoryFunc func(ctx context.Context, src Source, h Handlers) (Player, error)

func (f FactoryFunc) NewPlayer(ctx context.Context, src Source, h Handlers) (Player, error) {
	return f(ctx, src, h)
}
