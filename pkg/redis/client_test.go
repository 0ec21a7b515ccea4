package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestIncrWithTTL(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	count, err := client.IncrWithTTL(ctx, "counter-key", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected counter 1 got %d", count)
	}
	if len(mock.expireCalls) != 1 {
		t.Fatalf("expected expire on first increment")
	}

	count, err = client.IncrWithTTL(ctx, "counter-key", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected counter 2 got %d", count)
	}
	if len(mock.expireCalls) != 1 {
		t.Fatalf("expire should only be set once per window")
	}
}

func TestSetNXSkipsExistingValue(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	created, err := client.SetNX(ctx, "record", "first", time.Minute)
	if err != nil || !created {
		t.Fatalf("expected first write to win, created=%v err=%v", created, err)
	}
	created, err = client.SetNX(ctx, "record", "second", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Fatalf("expected second write to be rejected")
	}
	value, err := client.Get(ctx, "record")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if value != "first" {
		t.Fatalf("expected original value, got %q", value)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("scope", "id"); got != "stockroom:idempotency:scope:id" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.AccessSessionKey("abc"); got != "stockroom:session:access:abc" {
		t.Fatalf("unexpected session key %s", got)
	}
	if got := client.UnreadCountKey("user-1"); got != "stockroom:counter:unread:user-1" {
		t.Fatalf("unexpected unread key %s", got)
	}
}

func TestUnreadCountCache(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}
	recipient := uuid.New()

	if _, ok, err := client.GetUnreadCount(ctx, recipient); err != nil || ok {
		t.Fatalf("expected cache miss, ok=%v err=%v", ok, err)
	}
	if err := client.SetUnreadCount(ctx, recipient, 4); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	count, ok, err := client.GetUnreadCount(ctx, recipient)
	if err != nil || !ok {
		t.Fatalf("expected cache hit, ok=%v err=%v", ok, err)
	}
	if count != 4 {
		t.Fatalf("expected count 4, got %d", count)
	}
	if err := client.InvalidateUnreadCount(ctx, recipient); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if _, ok, _ := client.GetUnreadCount(ctx, recipient); ok {
		t.Fatalf("expected miss after invalidation")
	}
}

type mockCmdable struct {
	data        map[string]string
	incr        map[string]int64
	expireCalls []expireCall
}

type expireCall struct {
	key string
	ttl time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		incr: make(map[string]int64),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.incr[key]++
	return redis.NewIntResult(m.incr[key], nil)
}

func (m *mockCmdable) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: expiration})
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
