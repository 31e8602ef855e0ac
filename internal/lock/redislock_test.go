package lock_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bazaar/internal/lock"
)

func newLocker(t *testing.T) lock.Locker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}
}

func TestWithLockSerializesSameKey(t *testing.T) {
	locker := newLocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	const key = "order:create:user-1"
	var inFlight, overlapped atomic.Int32
	done := make(chan error, 2)

	body := func(context.Context) error {
		if inFlight.Add(1) > 1 {
			overlapped.Store(1)
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}
	go func() { done <- locker.WithLock(ctx, key, time.Second, body) }()
	go func() { done <- locker.WithLock(ctx, key, time.Second, body) }()

	require.NoError(t, <-done)
	require.NoError(t, <-done)
	require.Zero(t, overlapped.Load(), "both holders ran concurrently")
}

func TestWithLockReleasesOnError(t *testing.T) {
	locker := newLocker(t)
	ctx := context.Background()

	wantErr := context.DeadlineExceeded
	err := locker.WithLock(ctx, "order:create:user-2", time.Second, func(context.Context) error {
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)

	// The failed run must not keep the key; a second attempt acquires at once.
	quick, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	require.NoError(t, locker.WithLock(quick, "order:create:user-2", time.Second, func(context.Context) error {
		return nil
	}))
}

func TestWithLockHonorsContextWhileWaiting(t *testing.T) {
	locker := newLocker(t)
	ctx := context.Background()

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = locker.WithLock(ctx, "order:create:user-3", time.Second, func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	err := locker.WithLock(waitCtx, "order:create:user-3", time.Second, func(context.Context) error {
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
