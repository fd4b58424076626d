package lock_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/agent-ledger-go/internal/domain"
	"github.com/boddenberg/agent-ledger-go/internal/infra/lock"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocal_SerialisesSameKey(t *testing.T) {
	l := lock.NewLocal(0)

	var mu sync.Mutex
	active, maxActive := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), lock.ClientKey("c1"))
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive)
}

func TestLocal_DifferentKeysDoNotBlock(t *testing.T) {
	l := lock.NewLocal(50 * time.Millisecond)

	unlockA, err := l.Lock(context.Background(), lock.WalletKey("w1"))
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := l.Lock(context.Background(), lock.WalletKey("w2"))
	require.NoError(t, err)
	unlockB()
}

func TestLocal_TimeoutReturnsLockTimeout(t *testing.T) {
	l := lock.NewLocal(30 * time.Millisecond)

	unlock, err := l.Lock(context.Background(), lock.ClientKey("c1"))
	require.NoError(t, err)
	defer unlock()

	_, err = l.Lock(context.Background(), lock.WalletKey("w1"), lock.ClientKey("c1"))

	var timeout *domain.ErrLockTimeout
	require.True(t, errors.As(err, &timeout))
	assert.Equal(t, "client:c1", timeout.Key)

	// the wallet key taken before the failure was released
	unlockW, err := l.Lock(context.Background(), lock.WalletKey("w1"))
	require.NoError(t, err)
	unlockW()
}

func TestLocal_DuplicateAndEmptyKeys(t *testing.T) {
	l := lock.NewLocal(30 * time.Millisecond)

	unlock, err := l.Lock(context.Background(), "wallet:w1", "", "wallet:w1")
	require.NoError(t, err)
	unlock()
	unlock() // idempotent

	unlock, err = l.Lock(context.Background(), "wallet:w1")
	require.NoError(t, err)
	unlock()
}

func TestRedis_AcquireAndRelease(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	l := lock.NewRedis(client, 5*time.Second, 100*time.Millisecond, zap.NewNop())
	key := lock.ClientKey("test-" + time.Now().Format("150405.000000"))

	unlock, err := l.Lock(context.Background(), key)
	require.NoError(t, err)

	_, err = l.Lock(context.Background(), key)
	var timeout *domain.ErrLockTimeout
	require.True(t, errors.As(err, &timeout), "expected lock timeout, got %v", err)

	unlock()

	unlock, err = l.Lock(context.Background(), key)
	require.NoError(t, err)
	unlock()
}
