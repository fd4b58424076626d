// Package lock serialises ledger writes per wallet and per client.
//
// Keys are acquired in sorted order so two writers that need overlapping
// key sets cannot deadlock. Local is an in-process keyed mutex; Redis
// extends the same guarantee across replicas.
package lock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/boddenberg/agent-ledger-go/internal/domain"
	"github.com/boddenberg/agent-ledger-go/internal/port"
)

// WalletKey and ClientKey build the lock keys used by the services.
func WalletKey(id string) string { return "wallet:" + id }
func ClientKey(id string) string { return "client:" + id }

// normalize drops empty keys, sorts and de-duplicates.
func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// Local keyed mutex
// =============================================================================

// Local is an in-process keyed mutex. It is not reentrant.
type Local struct {
	mu    sync.Mutex
	locks map[string]*keyLock
	wait  time.Duration
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

var _ port.Locker = (*Local)(nil)

// NewLocal returns a keyed mutex. A positive wait bounds how long Lock
// blocks before failing with ErrLockTimeout.
func NewLocal(wait time.Duration) *Local {
	return &Local{locks: make(map[string]*keyLock), wait: wait}
}

func (l *Local) Lock(ctx context.Context, keys ...string) (func(), error) {
	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	keys = normalize(keys)
	held := make([]*keyLock, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.release(keys[i], held[i])
		}
	}

	for _, k := range keys {
		kl, err := l.acquire(ctx, k)
		if err != nil {
			release()
			return nil, &domain.ErrLockTimeout{Key: k}
		}
		held = append(held, kl)
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

func (l *Local) acquire(ctx context.Context, key string) (*keyLock, error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
		return kl, nil
	case <-ctx.Done():
		l.drop(key, kl)
		return nil, ctx.Err()
	}
}

func (l *Local) release(key string, kl *keyLock) {
	<-kl.ch
	l.drop(key, kl)
}

// drop forgets one reference and removes the entry once nobody holds or
// waits for it.
func (l *Local) drop(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}
