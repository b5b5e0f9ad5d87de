package casework

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockHeld = errors.New("officer lock held by another assignment")

// Locker serializes assignments per officer across service replicas.
// The store's conditional update is the primary guarantee; a Locker is an
// extra guard for deployments that point several replicas at one store.
type Locker interface {
	// Lock blocks until the officer lock is acquired or ctx ends. The
	// returned func releases it.
	Lock(ctx context.Context, officerID uuid.UUID) (unlock func(), err error)
}

// Token-checked release: only the holder may delete the key.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a SET NX PX lock keyed by officer id.
type RedisLocker struct {
	Client *redis.Client
	TTL    time.Duration
	Prefix string
	Retry  time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{
		Client: client,
		TTL:    ttl,
		Prefix: "casework:officer-lock:",
		Retry:  25 * time.Millisecond,
	}
}

func (l *RedisLocker) key(officerID uuid.UUID) string {
	return l.Prefix + officerID.String()
}

// TryLock makes a single acquisition attempt.
func (l *RedisLocker) TryLock(ctx context.Context, officerID uuid.UUID) (func(), error) {
	token := uuid.NewString()
	key := l.key(officerID)

	ok, err := l.Client.SetNX(ctx, key, token, l.TTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire officer lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	return func() {
		// Release must not depend on the request context, which may be done.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.Client, []string{key}, token).Err(); err != nil {
			logf("release officer lock %s: %v", officerID, err)
		}
	}, nil
}

func (l *RedisLocker) Lock(ctx context.Context, officerID uuid.UUID) (func(), error) {
	for {
		unlock, err := l.TryLock(ctx, officerID)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, ErrLockHeld) {
			return nil, err
		}

		t := time.NewTimer(l.Retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}
