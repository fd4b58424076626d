package cache_test

import (
	"testing"
	"time"

	"github.com/boddenberg/agent-ledger-go/internal/domain"
	"github.com/boddenberg/agent-ledger-go/internal/infra/cache"
	"github.com/boddenberg/agent-ledger-go/internal/port"
)

var _ port.Cache[*domain.DashboardKPIs] = (*cache.InMemory[*domain.DashboardKPIs])(nil)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	val, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "value1" {
		t.Errorf("expected 'value1', got '%s'", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	_, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)
	defer c.Close()

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	c.Delete("key1")

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestCache_DeleteEmptyKeyFlushes(t *testing.T) {
	c := cache.New[int](5 * time.Minute)
	defer c.Close()

	c.Set("dashboard:2025-01-01", 1)
	c.Set("dashboard:2025-01-02", 2)
	c.Delete("")

	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d entries", c.Len())
	}
}

func TestCache_ZeroTTLDisables(t *testing.T) {
	c := cache.New[string](0)
	defer c.Close()

	c.Set("key1", "value1")
	if _, ok := c.Get("key1"); ok {
		t.Fatal("expected zero TTL cache to store nothing")
	}
}
