package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/alkime/practice/pkg/channels"
	"github.com/alkime/practice/pkg/collections"
	"golang.org/x/sync/errgroup"
)

// Deliverer performs one delivery attempt. checkpoint persists progress
// (allocated id, uploaded object) so the next attempt can pick it up; it
// fails with ErrNotFound once the upload has been discarded.
type Deliverer interface {
	Deliver(ctx context.Context, u *Upload, checkpoint func(*Upload) error) error
}

// Preparer fills in catalog details at save time when they are reachable.
// Missing details are allocated later by the Deliverer.
type Preparer interface {
	Prepare(ctx context.Context, u *Upload)
}

type EventKind int

const (
	EventQueued EventKind = iota
	EventAttempt
	EventRetrying
	EventFailed
	EventDelivered
	EventDiscarded
)

func (k EventKind) String() string {
	switch k {
	case EventQueued:
		return "queued"
	case EventAttempt:
		return "attempt"
	case EventRetrying:
		return "retrying"
	case EventFailed:
		return "failed"
	case EventDelivered:
		return "delivered"
	case EventDiscarded:
		return "discarded"
	}

	return "unknown"
}

type Event struct {
	Kind   EventKind
	Upload Upload
	Err    error
}

type Option func(*Queue)

// WithClock overrides the time source used for CreatedAt and LastAttempt.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithSleep overrides the wait between attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(q *Queue) { q.sleep = sleep }
}

func WithPreparer(p Preparer) Option {
	return func(q *Queue) { q.preparer = p }
}

// WithKey changes the storage key, mostly to isolate tests.
func WithKey(key string) Option {
	return func(q *Queue) { q.key = key }
}

// Queue is the durable list of pending uploads. It is safe for concurrent
// use; at most one delivery cycle runs per upload.
type Queue struct {
	kv        KV
	key       string
	deliverer Deliverer
	preparer  Preparer
	policy    Policy
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	inflight map[string]bool

	events   *channels.Broadcaster[Event]
	eventsIn chan<- Event
	eventsMu sync.RWMutex
}

func NewQueue(kv KV, deliverer Deliverer, policy Policy, opts ...Option) *Queue {
	q := &Queue{
		kv:        kv,
		key:       StorageKey,
		deliverer: deliverer,
		preparer:  nil,
		policy:    policy,
		now:       time.Now,
		sleep:     sleepCtx,
		mu:        sync.Mutex{},
		inflight:  map[string]bool{},
		events:    channels.NewBroadcaster[Event](),
		eventsIn:  nil,
		eventsMu:  sync.RWMutex{},
	}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers ch for queue events. Must be called before Start.
func (q *Queue) Subscribe(ch chan<- Event) error {
	return q.events.SubscribeWithTimeout(ch, 100*time.Millisecond)
}

// Start begins publishing events to subscribers until ctx is done.
func (q *Queue) Start(ctx context.Context) error {
	in, err := q.events.Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to start queue events: %w", err)
	}

	q.eventsMu.Lock()
	q.eventsIn = in
	q.eventsMu.Unlock()

	return nil
}

func (q *Queue) emit(kind EventKind, u Upload, err error) {
	q.eventsMu.RLock()
	in := q.eventsIn
	q.eventsMu.RUnlock()

	if in == nil {
		return
	}

	if sendErr := channels.SendWithTimeout(in, Event{Kind: kind, Upload: u, Err: err}, 100*time.Millisecond); sendErr != nil {
		slog.Debug("dropped queue event", "kind", kind, "tempId", u.TempID, "error", sendErr)
	}
}

// Submit persists a new upload for the draft and returns it. Nothing is sent
// over the network except the optional preparer lookups.
func (q *Queue) Submit(ctx context.Context, d Draft) (Upload, error) {
	if len(d.Data) == 0 {
		return Upload{}, ErrEmptyPayload
	}

	u := newUpload(d, q.now())

	if q.preparer != nil {
		q.preparer.Prepare(ctx, &u)
	}

	if err := q.Enqueue(ctx, u); err != nil {
		return Upload{}, err
	}

	return u, nil
}

// Enqueue appends u, or replaces the entry with the same temp id in place.
func (q *Queue) Enqueue(ctx context.Context, u Upload) error {
	err := q.mutate(ctx, func(list []Upload) ([]Upload, error) {
		if i := indexOf(list, u.TempID); i >= 0 {
			list[i] = u
			return list, nil
		}

		return append(list, u), nil
	})
	if err != nil {
		return fmt.Errorf("failed to persist pending upload: %w", err)
	}

	slog.Debug("pending upload queued", "tempId", u.TempID, "songId", u.SongID)
	q.emit(EventQueued, u, nil)

	return nil
}

// List returns the uploads for songID in append order, or every upload when
// songID is empty.
func (q *Queue) List(ctx context.Context, songID string) ([]Upload, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	list, err := q.load(ctx)
	if err != nil {
		return nil, err
	}

	if songID == "" {
		return list, nil
	}

	return collections.Filter(list, func(u Upload) bool { return u.SongID == songID }), nil
}

func (q *Queue) Get(ctx context.Context, tempID string) (Upload, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	list, err := q.load(ctx)
	if err != nil {
		return Upload{}, err
	}

	i := indexOf(list, tempID)
	if i < 0 {
		return Upload{}, fmt.Errorf("%w: %s", ErrNotFound, tempID)
	}

	return list[i], nil
}

// InFlight reports whether a delivery cycle is running for tempID.
func (q *Queue) InFlight(tempID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.inflight[tempID]
}

// Deliver runs one bounded delivery cycle. It returns nil once the upload is
// confirmed and removed, ErrRetriesExhausted after the last failed attempt
// (the entry stays as failed), or the context error.
func (q *Queue) Deliver(ctx context.Context, tempID string) error {
	if !q.claim(tempID) {
		return ErrInFlight
	}
	defer q.release(tempID)

	return q.cycle(ctx, tempID)
}

// cycle runs the attempts of one delivery cycle. The caller holds the claim.
func (q *Queue) cycle(ctx context.Context, tempID string) error {
	attempts := q.policy.attempts()

	for attempt := 1; ; attempt++ {
		u, err := q.update(ctx, tempID, func(u *Upload) {
			u.Status = StatusUploading
			u.LastAttempt = q.now().UnixMilli()
		})
		if err != nil {
			return err
		}

		q.emit(EventAttempt, u, nil)

		deliverErr := q.deliverer.Deliver(ctx, &u, q.checkpoint(ctx))
		if deliverErr == nil {
			if err := q.remove(ctx, tempID); err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}

			slog.Info("pending upload delivered", "tempId", tempID, "audioId", u.NextAudioID, "attempt", attempt)
			q.emit(EventDelivered, u, nil)

			return nil
		}

		if errors.Is(deliverErr, ErrNotFound) {
			return deliverErr
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		last := attempt >= attempts

		u, err = q.update(ctx, tempID, func(u *Upload) {
			u.RetryCount++
			u.Error = deliverErr.Error()
			if last {
				u.Status = StatusFailed
			}
		})
		if err != nil {
			return err
		}

		if last {
			slog.Warn("pending upload failed", "tempId", tempID, "attempts", attempt, "error", deliverErr)
			q.emit(EventFailed, u, deliverErr)

			return fmt.Errorf("%w: %w", ErrRetriesExhausted, deliverErr)
		}

		delay := q.policy.Delay(attempt)
		slog.Debug("pending upload retrying", "tempId", tempID, "attempt", attempt, "delay", delay, "error", deliverErr)
		q.emit(EventRetrying, u, deliverErr)

		if err := q.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// Retry starts a fresh delivery cycle for a failed upload.
func (q *Queue) Retry(ctx context.Context, tempID string) error {
	if !q.claim(tempID) {
		return ErrInFlight
	}
	defer q.release(tempID)

	if _, err := q.update(ctx, tempID, func(u *Upload) {
		u.RetryCount = 0
		u.Error = ""
		u.Status = StatusUploading
	}); err != nil {
		return err
	}

	return q.cycle(ctx, tempID)
}

// Resume delivers every upload for songID that is not already in flight.
// It is called once at startup; uploads left as uploading by a crash are
// retried the same way as failed ones.
func (q *Queue) Resume(ctx context.Context, songID string) error {
	list, err := q.List(ctx, songID)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)

	for _, u := range list {
		if q.InFlight(u.TempID) {
			continue
		}

		g.Go(func() error {
			err := q.Retry(gctx, u.TempID)
			if errors.Is(err, ErrInFlight) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrRetriesExhausted) {
				return nil
			}

			return err
		})
	}

	return g.Wait()
}

// Discard drops an upload. An in-flight cycle notices at its next checkpoint.
func (q *Queue) Discard(ctx context.Context, tempID string) error {
	u, err := q.Get(ctx, tempID)
	if err != nil {
		return err
	}

	if err := q.remove(ctx, tempID); err != nil {
		return err
	}

	slog.Info("pending upload discarded", "tempId", tempID)
	q.emit(EventDiscarded, u, nil)

	return nil
}

func (q *Queue) checkpoint(ctx context.Context) func(*Upload) error {
	return func(u *Upload) error {
		_, err := q.update(ctx, u.TempID, func(stored *Upload) {
			stored.SongColumn = u.SongColumn
			stored.NextAudioID = u.NextAudioID
			stored.ObjectPath = u.ObjectPath
			stored.Uploaded = u.Uploaded
		})

		return err
	}
}

func (q *Queue) claim(tempID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.inflight[tempID] {
		return false
	}

	q.inflight[tempID] = true

	return true
}

func (q *Queue) release(tempID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.inflight, tempID)
}

func (q *Queue) update(ctx context.Context, tempID string, fn func(*Upload)) (Upload, error) {
	var out Upload

	err := q.mutate(ctx, func(list []Upload) ([]Upload, error) {
		i := indexOf(list, tempID)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, tempID)
		}

		fn(&list[i])
		out = list[i]

		return list, nil
	})

	return out, err
}

func (q *Queue) remove(ctx context.Context, tempID string) error {
	return q.mutate(ctx, func(list []Upload) ([]Upload, error) {
		i := indexOf(list, tempID)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, tempID)
		}

		return slices.Delete(list, i, i+1), nil
	})
}

// mutate is a locked read-modify-write of the stored list.
func (q *Queue) mutate(ctx context.Context, fn func([]Upload) ([]Upload, error)) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	list, err := q.load(ctx)
	if err != nil {
		return err
	}

	list, err = fn(list)
	if err != nil {
		return err
	}

	return q.save(ctx, list)
}

func (q *Queue) load(ctx context.Context) ([]Upload, error) {
	data, err := q.kv.Get(ctx, q.key)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending uploads: %w", err)
	}

	if len(data) == 0 {
		return []Upload{}, nil
	}

	var list []Upload
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse pending uploads: %w", err)
	}

	return list, nil
}

func (q *Queue) save(ctx context.Context, list []Upload) error {
	if list == nil {
		list = []Upload{}
	}

	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to marshal pending uploads: %w", err)
	}

	if err := q.kv.Set(ctx, q.key, data); err != nil {
		return fmt.Errorf("failed to write pending uploads: %w", err)
	}

	return nil
}

func indexOf(list []Upload, tempID string) int {
	return slices.IndexFunc(list, func(u Upload) bool { return u.TempID == tempID })
}
