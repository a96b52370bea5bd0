package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Change announces that a song's audio list changed.
type Change struct {
	SongID  string `json:"songId"`
	AudioID int64  `json:"audioId"`
}

// Notifier carries change events between writers and list views.
type Notifier interface {
	Publish(ctx context.Context, c Change) error
	// Subscribe delivers changes for songID until ctx is done, then closes
	// the returned channel.
	Subscribe(ctx context.Context, songID string) (<-chan Change, error)
}

// ChannelName is the pub/sub channel for a song's audio list.
func ChannelName(songID string) string {
	return "audios_song_" + songID
}

// NopNotifier drops every change.
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, Change) error { return nil }

func (NopNotifier) Subscribe(ctx context.Context, _ string) (<-chan Change, error) {
	ch := make(chan Change)

	go func() {
		<-ctx.Done()
		close(ch)
	}()

	return ch, nil
}

// RedisNotifier publishes the audio id on the song's channel.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Publish(ctx context.Context, c Change) error {
	if err := n.client.Publish(ctx, ChannelName(c.SongID), strconv.FormatInt(c.AudioID, 10)).Err(); err != nil {
		return fmt.Errorf("failed to publish audio change: %w", err)
	}

	return nil
}

func (n *RedisNotifier) Subscribe(ctx context.Context, songID string) (<-chan Change, error) {
	sub := n.client.Subscribe(ctx, ChannelName(songID))

	// Receive blocks until the subscription is confirmed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", ChannelName(songID), err)
	}

	out := make(chan Change, 8)

	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				id, err := strconv.ParseInt(msg.Payload, 10, 64)
				if err != nil {
					slog.Debug("ignoring malformed audio change", "payload", msg.Payload)
				}

				select {
				case out <- Change{SongID: songID, AudioID: id}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// LocalNotifier fans changes out to in-process subscribers.
type LocalNotifier struct {
	mu   sync.Mutex
	subs map[string][]chan Change
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{mu: sync.Mutex{}, subs: map[string][]chan Change{}}
}

func (n *LocalNotifier) Publish(_ context.Context, c Change) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs[c.SongID] {
		select {
		case ch <- c:
		case <-time.After(50 * time.Millisecond):
			slog.Debug("dropped audio change for slow subscriber", "songId", c.SongID)
		}
	}

	return nil
}

func (n *LocalNotifier) Subscribe(ctx context.Context, songID string) (<-chan Change, error) {
	ch := make(chan Change, 8)

	n.mu.Lock()
	n.subs[songID] = append(n.subs[songID], ch)
	n.mu.Unlock()

	go func() {
		<-ctx.Done()

		n.mu.Lock()
		defer n.mu.Unlock()

		subs := n.subs[songID]
		for i, c := range subs {
			if c == ch {
				n.subs[songID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}

		close(ch)
	}()

	return ch, nil
}
