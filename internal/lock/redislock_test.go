package lock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/paystack-provider/internal/lock"
)

func newLocker(t *testing.T) (lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{R: client, Prefix: "lock:refund:", RetryBackoff: 5 * time.Millisecond}, mr
}

func TestWithLockReleasesAfterCallback(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	err := locker.WithLock(ctx, "42", time.Second, func(context.Context) error {
		require.True(t, mr.Exists("lock:refund:42"))
		return errors.New("refund rejected")
	})
	require.EqualError(t, err, "refund rejected")
	require.False(t, mr.Exists("lock:refund:42"))
}

func TestWithLockReturnsBusyWhenHeld(t *testing.T) {
	locker, mr := newLocker(t)
	locker.MaxWait = 30 * time.Millisecond
	require.NoError(t, mr.Set("lock:refund:42", "someone-else"))

	called := false
	err := locker.WithLock(context.Background(), "42", time.Second, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, lock.ErrBusy)
	require.False(t, called)

	got, err := mr.Get("lock:refund:42")
	require.NoError(t, err)
	require.Equal(t, "someone-else", got)
}

func TestWithLockWaitsForRelease(t *testing.T) {
	locker, mr := newLocker(t)
	require.NoError(t, mr.Set("lock:refund:7", "other"))
	go func() {
		time.Sleep(20 * time.Millisecond)
		mr.Del("lock:refund:7")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ran := false
	require.NoError(t, locker.WithLock(ctx, "7", time.Second, func(context.Context) error {
		ran = true
		return nil
	}))
	require.True(t, ran)
}

func TestWithLockWithoutRedis(t *testing.T) {
	err := lock.Locker{}.WithLock(context.Background(), "k", 0, func(context.Context) error { return nil })
	require.Error(t, err)
}
