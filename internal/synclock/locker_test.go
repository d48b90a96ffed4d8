package synclock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilLockerIsNoop(t *testing.T) {
	var l *Locker
	assert.False(t, l.Enabled())

	release, err := l.Acquire(context.Background(), "invoice:1", time.Second)
	require.NoError(t, err)
	release()
	release()
}

func TestNewLockerWithoutClient(t *testing.T) {
	assert.Nil(t, NewLocker(nil))
}

func TestAcquireValidatesArguments(t *testing.T) {
	var l *Locker
	_, err := l.Acquire(context.Background(), " ", time.Second)
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = l.Acquire(context.Background(), "key", 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestAcquireSurfacesRedisErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	l := NewLocker(client)
	require.True(t, l.Enabled())

	_, err := l.Acquire(context.Background(), "invoice:1", time.Second)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotObtained)
}

func newRedisLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client), mr
}

func TestAcquireRejectsHeldKey(t *testing.T) {
	l, _ := newRedisLocker(t)

	release, err := l.Acquire(context.Background(), "invoice:1", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(context.Background(), "invoice:1", time.Minute)
	assert.ErrorIs(t, err, ErrNotObtained)

	release()
	release2, err := l.Acquire(context.Background(), "invoice:1", time.Minute)
	require.NoError(t, err)
	release2()
}

func TestHoldKeepsLockAlivePastTTL(t *testing.T) {
	l, mr := newRedisLocker(t)
	l.WithRefreshInterval(10 * time.Millisecond)

	ctx, release, err := l.Hold(context.Background(), "invoice:1", time.Minute)
	require.NoError(t, err)
	defer release()

	for i := 0; i < 3; i++ {
		time.Sleep(50 * time.Millisecond)
		mr.FastForward(40 * time.Second)
	}

	_, err = l.Acquire(context.Background(), "invoice:1", time.Minute)
	assert.ErrorIs(t, err, ErrNotObtained)
	assert.NoError(t, ctx.Err())
}

func TestHoldCancelsWorkWhenLockIsLost(t *testing.T) {
	l, mr := newRedisLocker(t)
	l.WithRefreshInterval(20 * time.Millisecond)

	ctx, release, err := l.Hold(context.Background(), "invoice:1", time.Minute)
	require.NoError(t, err)
	defer release()

	mr.Del("caskr:lock:invoice:1")

	select {
	case <-ctx.Done():
		assert.ErrorIs(t, context.Cause(ctx), ErrLockLost)
	case <-time.After(2 * time.Second):
		t.Fatal("work context was not cancelled")
	}
}

func TestHoldWaitObtainsAfterRelease(t *testing.T) {
	l, _ := newRedisLocker(t)

	_, release, err := l.Hold(context.Background(), "refresh:1", time.Minute)
	require.NoError(t, err)
	time.AfterFunc(100*time.Millisecond, release)

	_, release2, err := l.HoldWait(context.Background(), "refresh:1", time.Minute, 2*time.Second)
	require.NoError(t, err)
	release2()

	_, release3, err := l.Hold(context.Background(), "refresh:1", time.Minute)
	require.NoError(t, err)
	_, _, err = l.HoldWait(context.Background(), "refresh:1", time.Minute, 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrNotObtained)
	release3()
}
