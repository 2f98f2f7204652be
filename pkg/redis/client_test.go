package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockCmdable struct {
	values map[string]string
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{values: map[string]string{}}
}

func (m *mockCmdable) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("PONG")
	return cmd
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if val, ok := m.values[key]; ok {
		cmd.SetVal(val)
	} else {
		cmd.SetErr(redis.Nil)
	}
	return cmd
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	if _, exists := m.values[key]; exists {
		cmd.SetVal(false)
		return cmd
	}
	str, ok := value.(string)
	if !ok {
		cmd.SetErr(errors.New("mock only stores strings"))
		return cmd
	}
	m.values[key] = str
	cmd.SetVal(true)
	return cmd
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	var removed int64
	for _, key := range keys {
		if _, ok := m.values[key]; ok {
			delete(m.values, key)
			removed++
		}
	}
	cmd.SetVal(removed)
	return cmd
}

func TestSetNXOnlySetsOnce(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	ok, err := client.SetNX(ctx, "lock", "owner-a", time.Minute)
	if err != nil {
		t.Fatalf("SetNX: %v", err)
	}
	if !ok {
		t.Fatal("first SetNX should win")
	}

	ok, err = client.SetNX(ctx, "lock", "owner-b", time.Minute)
	if err != nil {
		t.Fatalf("SetNX: %v", err)
	}
	if ok {
		t.Fatal("second SetNX should lose")
	}

	val, err := client.Get(ctx, "lock")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if val != "owner-a" {
		t.Fatalf("expected owner-a to hold the lock, got %q", val)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	client := &Client{store: newMockCmdable()}
	_, err := client.Get(context.Background(), "absent")
	if !errors.Is(err, Nil) {
		t.Fatalf("expected Nil sentinel, got %v", err)
	}
}

func TestKeyNamespacing(t *testing.T) {
	client := &Client{}
	if got := client.Key("cron-worker", "lock", "dev"); got != "dispatch:cron-worker:lock:dev" {
		t.Fatalf("unexpected key: %s", got)
	}
}
