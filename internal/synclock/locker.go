package synclock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bsm/redislock"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/caskr/pkg/log/ctxlogger"
	"go.uber.org/zap"
)

var (
	ErrNotObtained = errors.New("lock_not_obtained")
	ErrLockLost    = errors.New("lock_lost")
	ErrInvalidKey  = errors.New("lock_key_empty")
	ErrInvalidTTL  = errors.New("lock_ttl_must_be_positive")
)

const waitBackoff = 50 * time.Millisecond

// Locker serializes work on a key across processes. A nil *Locker is valid and
// acquires every lock immediately, which is how the service runs without Redis.
type Locker struct {
	client *redislock.Client
	prefix string
	// refreshEvery overrides the keepalive period of Hold; zero means ttl/3.
	refreshEvery time.Duration
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: redislock.New(client),
		prefix: "caskr:lock:",
	}
}

// WithRefreshInterval sets the keepalive period used by Hold.
func (l *Locker) WithRefreshInterval(d time.Duration) *Locker {
	if l != nil {
		l.refreshEvery = d
	}
	return l
}

// Acquire obtains the lock once, without retrying. The returned release func
// is safe to call multiple times.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	_, release, err := l.hold(ctx, key, ttl, 0, false)
	return release, err
}

// Hold obtains the lock without retrying and keeps it alive until release.
// The returned context is cancelled with ErrLockLost as its cause if a
// refresh fails, so work stops once another holder could take over.
func (l *Locker) Hold(ctx context.Context, key string, ttl time.Duration) (context.Context, func(), error) {
	return l.hold(ctx, key, ttl, 0, true)
}

// HoldWait is Hold, retrying for up to wait while the key is held elsewhere.
func (l *Locker) HoldWait(ctx context.Context, key string, ttl, wait time.Duration) (context.Context, func(), error) {
	return l.hold(ctx, key, ttl, wait, true)
}

// Enabled reports whether locks are backed by Redis.
func (l *Locker) Enabled() bool {
	return l != nil && l.client != nil
}

func (l *Locker) hold(ctx context.Context, key string, ttl, wait time.Duration, keepAlive bool) (context.Context, func(), error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil, ErrInvalidKey
	}
	if ttl <= 0 {
		return nil, nil, ErrInvalidTTL
	}
	if !l.Enabled() {
		return ctx, func() {}, nil
	}

	var opts *redislock.Options
	if wait > 0 {
		opts = &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(waitBackoff), int(wait/waitBackoff)),
		}
	}
	lock, err := l.client.Obtain(ctx, l.prefix+key, ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, nil, ErrNotObtained
	}
	if err != nil {
		return nil, nil, err
	}

	workCtx, cancel := context.WithCancelCause(ctx)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	if keepAlive {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.keepAlive(workCtx, lock, key, ttl, stop, cancel)
		}()
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			cancel(nil)
			// The lock expires on its own if release fails.
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				ctxlogger.FromContext(ctx).Warn("release sync lock", zap.String("key", key), zap.Error(err))
			}
		})
	}
	return workCtx, release, nil
}

func (l *Locker) keepAlive(ctx context.Context, lock *redislock.Lock, key string, ttl time.Duration, stop <-chan struct{}, cancel context.CancelCauseFunc) {
	every := l.refreshEvery
	if every <= 0 {
		every = ttl / 3
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lock.Refresh(context.WithoutCancel(ctx), ttl, nil); err != nil {
				ctxlogger.FromContext(ctx).Warn("sync lock lost", zap.String("key", key), zap.Error(err))
				cancel(fmt.Errorf("%w: %s", ErrLockLost, key))
				return
			}
		}
	}
}
