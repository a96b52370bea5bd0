package channels_test

import (
	"context"
	"testing"
	"time"

	"github.com/alkime/practice/pkg/channels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const idle = 20 * time.Millisecond

func TestBroadcaster_SubscribeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(b *channels.Broadcaster[string]) error
		wantErr string
	}{
		{
			name:    "nil channel",
			setup:   func(b *channels.Broadcaster[string]) error { return b.Subscribe(nil) },
			wantErr: "cannot be nil",
		},
		{
			name: "nil channel with timeout",
			setup: func(b *channels.Broadcaster[string]) error {
				return b.SubscribeWithTimeout(nil, time.Second)
			},
			wantErr: "cannot be nil",
		},
		{
			name: "non-positive timeout",
			setup: func(b *channels.Broadcaster[string]) error {
				return b.SubscribeWithTimeout(make(chan string, 1), 0)
			},
			wantErr: "must be positive",
		},
		{
			name: "after run",
			setup: func(b *channels.Broadcaster[string]) error {
				if err := b.Subscribe(make(chan string, 1)); err != nil {
					return err
				}

				ctx, cancel := context.WithCancel(context.Background())
				t.Cleanup(cancel)

				if _, err := b.Run(ctx); err != nil {
					return err
				}

				return b.Subscribe(make(chan string, 1))
			},
			wantErr: "after broadcaster started",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.setup(channels.NewBroadcaster[string]())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBroadcaster_RunErrors(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := channels.NewBroadcaster[string]()

	_, err := b.Run(ctx)
	require.ErrorContains(t, err, "no subscribers")

	require.NoError(t, b.Subscribe(make(chan string, 1)))

	_, err = b.Run(ctx)
	require.NoError(t, err)

	_, err = b.Run(ctx)
	require.ErrorContains(t, err, "already started")
}

func TestBroadcaster_FanOut(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := channels.NewBroadcaster[string]()
	queued := make(chan string, 8)
	ui := make(chan string, 8)

	require.NoError(t, b.Subscribe(queued))
	require.NoError(t, b.SubscribeWithTimeout(ui, time.Second))

	input, err := b.Run(ctx)
	require.NoError(t, err)

	for _, kind := range []string{"queued", "attempt", "delivered"} {
		input <- kind
	}

	want := []string{"queued", "attempt", "delivered"}
	assert.Equal(t, want, channels.ReceiveAll(queued, idle, len(want)))
	assert.Equal(t, want, channels.ReceiveAll(ui, idle, len(want)))
}

func TestBroadcaster_SlowSubscriberDrops(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := channels.NewBroadcaster[int]()
	full := make(chan int, 1)
	ready := make(chan int, 8)
	slow := make(chan int)

	require.NoError(t, b.Subscribe(full))
	require.NoError(t, b.Subscribe(ready))
	require.NoError(t, b.SubscribeWithTimeout(slow, 5*time.Millisecond))

	input, err := b.Run(ctx)
	require.NoError(t, err)

	for i := range 3 {
		input <- i
	}

	assert.Equal(t, []int{0, 1, 2}, channels.ReceiveAll(ready, idle, 3))
	assert.Equal(t, []int{0}, channels.ReceiveAll(full, idle, 0))

	assert.Eventually(t, func() bool {
		stats := b.Stats()
		return stats[0].Dropped == 2 && stats[1].Dropped == 0 && stats[2].Dropped == 3
	}, time.Second, 5*time.Millisecond)
}

func TestBroadcaster_ClosedSubscriberGoesInactive(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := channels.NewBroadcaster[int]()
	gone := make(chan int, 4)
	live := make(chan int, 4)

	require.NoError(t, b.Subscribe(gone))
	require.NoError(t, b.Subscribe(live))
	close(gone)

	input, err := b.Run(ctx)
	require.NoError(t, err)

	input <- 1
	input <- 2

	assert.Equal(t, []int{1, 2}, channels.ReceiveAll(live, idle, 2))

	assert.Eventually(t, func() bool {
		stats := b.Stats()
		return stats[0].Inactive && stats[0].Dropped == 2 && !stats[1].Inactive
	}, time.Second, 5*time.Millisecond)
}

func TestBroadcaster_DrainsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	b := channels.NewBroadcaster[int]()
	sub := make(chan int, 16)
	require.NoError(t, b.Subscribe(sub))

	input, err := b.Run(ctx)
	require.NoError(t, err)

	input <- 1
	input <- 2
	cancel()

	done := make(chan struct{})

	go func() {
		b.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcaster did not shut down")
	}

	assert.Equal(t, []int{1, 2}, channels.ReceiveAll(sub, idle, 0))
}
