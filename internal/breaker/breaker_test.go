package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	b := New(Settings{MinRequestsToTrip: 3, ErrorThreshold: 0.5, Cooldown: time.Minute})

	failing := func(ctx context.Context) error { return errors.New("boom") }

	for i := 0; i < 3; i++ {
		err := b.Fire(context.Background(), failing)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrOpen)
	}

	err := b.Fire(context.Background(), failing)
	assert.ErrorIs(t, err, ErrOpen)
}

func TestBreaker_ClosedPassesThroughSuccess(t *testing.T) {
	b := New(Settings{})

	err := b.Fire(context.Background(), func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestBreaker_CallTimeoutCountsAsFailure(t *testing.T) {
	b := New(Settings{Timeout: 10 * time.Millisecond, MinRequestsToTrip: 1, ErrorThreshold: 0.1, Cooldown: time.Minute})

	slow := func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	err := b.Fire(context.Background(), slow)
	require.Error(t, err)

	err = b.Fire(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrOpen)
}
