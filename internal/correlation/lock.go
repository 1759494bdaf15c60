package correlation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRunInProgress is returned when another run holds the dataset's lock
var ErrRunInProgress = errors.New("correlation already running for dataset")

// Locker serializes correlation runs per dataset
type Locker interface {
	// Acquire takes the lock for datasetID or fails with ErrRunInProgress.
	// The returned release func is safe to call once.
	Acquire(ctx context.Context, datasetID string) (release func(), err error)
}

// LocalLocker serializes runs inside one process
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

// Acquire implements Locker
func (l *LocalLocker) Acquire(_ context.Context, datasetID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[datasetID]; busy {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, datasetID)
	}
	l.held[datasetID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, datasetID)
			l.mu.Unlock()
		})
	}, nil
}

// releaseScript deletes the lock only if it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes runs across processes sharing a Redis.
// The TTL bounds how long a crashed run can block its dataset.
type RedisLocker struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisLocker creates a Redis-backed locker
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisLocker{redis: client, ttl: ttl}
}

// Acquire implements Locker
func (l *RedisLocker) Acquire(ctx context.Context, datasetID string) (func(), error) {
	key := lockKey(datasetID)
	token := uuid.NewString()

	ok, err := l.redis.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire dataset lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, datasetID)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// the run's context may already be cancelled
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, l.redis, []string{key}, token).Err()
		})
	}, nil
}

func lockKey(datasetID string) string {
	return fmt.Sprintf("correlate:lock:%s", datasetID)
}
