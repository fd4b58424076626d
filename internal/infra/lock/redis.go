package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/boddenberg/agent-ledger-go/internal/domain"
	"github.com/boddenberg/agent-ledger-go/internal/infra/resilience"
	"github.com/boddenberg/agent-ledger-go/internal/port"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

var errLockHeld = errors.New("lock held by another owner")

// Redis is a distributed keyed lock built on SET NX PX with a per-call
// owner token.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
	poll   resilience.Config
	logger *zap.Logger
}

var _ port.Locker = (*Redis)(nil)

// NewRedis returns a Redis lock. ttl bounds how long a crashed owner can
// hold a key; wait bounds how long Lock polls before ErrLockTimeout.
func NewRedis(client *redis.Client, ttl, wait time.Duration, logger *zap.Logger) *Redis {
	return &Redis{
		client: client,
		prefix: "ledger:lock:",
		ttl:    ttl,
		wait:   wait,
		poll:   pollConfig(wait),
		logger: logger,
	}
}

const (
	pollInitial = 10 * time.Millisecond
	pollMax     = 50 * time.Millisecond
)

// pollConfig retries SET NX at most pollMax apart until wait runs out.
func pollConfig(wait time.Duration) resilience.Config {
	attempts := 16
	if wait > 0 {
		attempts = int(wait/pollInitial) + 1
	}
	return resilience.Config{MaxRetries: attempts, InitialBackoff: pollInitial, MaxBackoff: pollMax}
}

func (r *Redis) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)
	token := uuid.NewString()

	held := make([]string, 0, len(keys))
	release := func() {
		// the request context may already be cancelled
		relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			if err := releaseScript.Run(relCtx, r.client, []string{held[i]}, token).Err(); err != nil {
				r.logger.Warn("lock: release failed", zap.String("key", held[i]), zap.Error(err))
			}
		}
	}

	for _, k := range keys {
		full := r.prefix + k
		if err := r.acquire(ctx, full, token); err != nil {
			release()
			if errors.Is(err, errLockHeld) || errors.Is(err, context.DeadlineExceeded) {
				return nil, &domain.ErrLockTimeout{Key: k}
			}
			return nil, &domain.ErrExternalService{Service: "redis/lock", Err: err}
		}
		held = append(held, full)
	}

	r.logger.Debug("lock acquired", zap.Strings("keys", keys), zap.Duration("ttl", r.ttl))

	var once sync.Once
	return func() { once.Do(release) }, nil
}

func (r *Redis) acquire(ctx context.Context, key, token string) error {
	if r.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.wait)
		defer cancel()
	}

	err := resilience.RetryWithBackoff(ctx, r.poll, func() error {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return resilience.Permanent(fmt.Errorf("acquire %s: %w", key, err))
		}
		if !ok {
			return errLockHeld
		}
		return nil
	})
	return err
}
