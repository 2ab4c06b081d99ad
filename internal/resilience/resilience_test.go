package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestRetryEventuallySucceeds(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 2, time.Millisecond, func() error {
		calls++
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 2, calls)
}

func TestRetryStopsOnPermanent(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 5, time.Millisecond, func() error {
		calls++
		return Permanent(errBoom)
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, 5, time.Hour, func() error {
		calls++
		cancel()
		return errBoom
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestCircuitBreakerLifecycle(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, time.Minute)
	now := time.Now()
	cb.now = func() time.Time { return now }

	fail := func() (any, error) { return nil, errBoom }
	ok := func() (any, error) { return "ok", nil }

	_, err := cb.Execute(fail)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, StateClosed, cb.State())

	_, err = cb.Execute(fail)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, StateOpen, cb.State())

	_, err = cb.Execute(ok)
	assert.ErrorIs(t, err, ErrCircuitOpen)

	// Trial after the timeout fails and re-opens.
	now = now.Add(2 * time.Minute)
	_, err = cb.Execute(fail)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, StateOpen, cb.State())

	// Successful trial closes.
	now = now.Add(2 * time.Minute)
	res, err := cb.Execute(ok)
	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerRejectsDuringTrial(t *testing.T) {
	cb := NewCircuitBreaker("trial", 1, time.Millisecond)
	now := time.Now()
	cb.now = func() time.Time { return now }

	_, _ = cb.Execute(func() (any, error) { return nil, errBoom })
	now = now.Add(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = cb.Execute(func() (any, error) {
			close(started)
			<-release
			return nil, nil
		})
	}()

	<-started
	_, err := cb.Execute(func() (any, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)

	close(release)
	<-done
	assert.Equal(t, StateClosed, cb.State())
}
