package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/buyback-backend/pkg/config"
)

func TestSetGetDel(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	if err := client.Set(ctx, "bb:k", "v", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, err := client.Get(ctx, "bb:k")
	if err != nil || got != "v" {
		t.Fatalf("expected stored value, got %q err=%v", got, err)
	}
	if mock.ttls["bb:k"] != time.Minute {
		t.Fatalf("expected ttl to be forwarded, got %s", mock.ttls["bb:k"])
	}
	if err := client.Del(ctx, "bb:k"); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, "bb:k"); !errors.Is(err, Nil) {
		t.Fatalf("expected Nil after delete, got %v", err)
	}
}

func TestSetNXOnlyFirstWins(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	ok, err := client.SetNX(ctx, "bb:lock:job", "a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first setnx should win, ok=%v err=%v", ok, err)
	}
	ok, err = client.SetNX(ctx, "bb:lock:job", "b", time.Minute)
	if err != nil || ok {
		t.Fatalf("second setnx should lose, ok=%v err=%v", ok, err)
	}
	if got, _ := client.Get(ctx, "bb:lock:job"); got != "a" {
		t.Fatalf("owner should remain a, got %q", got)
	}
}

func TestZeroClientReportsNotInitialized(t *testing.T) {
	ctx := context.Background()
	client := &Client{}
	if err := client.Ping(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if _, err := client.Get(ctx, "x"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on zero client should be a noop: %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("inventory.receive", "abc"); got != "bb:idempotency:inventory.receive:abc" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.PriceSnapshotKey(4242); got != "bb:price_snapshot:4242" {
		t.Fatalf("unexpected snapshot key %s", got)
	}
	if got := client.LockKey("ledger-reconcile"); got != "bb:lock:ledger-reconcile" {
		t.Fatalf("unexpected lock key %s", got)
	}
	if got := client.IdempotencyKey("scope", " "); got != "bb:idempotency:scope" {
		t.Fatalf("blank parts should be skipped, got %s", got)
	}
}

func TestOptionsFromConfigRequiresTarget(t *testing.T) {
	if _, err := optionsFromConfig(configWith("", "")); err == nil {
		t.Fatal("expected error without url or address")
	}
	opts, err := optionsFromConfig(configWith("redis://localhost:6379/3", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 3 || opts.PoolSize != 10 {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func configWith(url, addr string) config.RedisConfig {
	return config.RedisConfig{URL: url, Address: addr, PoolSize: 10, MinIdleConns: 2}
}

type mockCmdable struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		ttls: make(map[string]time.Duration),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = toString(value)
	m.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	value, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = toString(value)
	m.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var removed int64
	for _, key := range keys {
		if _, ok := m.data[key]; ok {
			delete(m.data, key)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}
