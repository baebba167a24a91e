package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestIsNilError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{redis.Nil, true},
		{fmt.Errorf("get: %w", redis.Nil), true},
		{errors.New("connection refused"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsNilError(tt.err); got != tt.want {
			t.Errorf("IsNilError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

// testClient connects to RTD_TEST_REDIS_ADDR (default localhost:6379) and
// skips when no server answers.
func testClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("RTD_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		t.Skipf("redis not available at %s: %v", addr, err)
	}
	c := Wrap(rdb)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestFlushByPattern(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	prefix := fmt.Sprintf("rtd-test-%d:", time.Now().UnixNano())
	for i := 0; i < 250; i++ {
		if err := c.Set(ctx, fmt.Sprintf("%s%d", prefix, i), "v", time.Minute); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	other := prefix[:len(prefix)-1] + "-other"
	if err := c.Set(ctx, other, "v", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	defer c.Del(ctx, other)

	n, err := c.FlushByPattern(ctx, prefix+"*")
	if err != nil {
		t.Fatalf("FlushByPattern: %v", err)
	}
	if n != 250 {
		t.Errorf("deleted %d keys, want 250", n)
	}
	if _, err := c.Get(ctx, prefix+"0"); !IsNilError(err) {
		t.Errorf("key survived flush: err = %v", err)
	}
	if v, err := c.Get(ctx, other); err != nil || v != "v" {
		t.Errorf("unrelated key = %q, %v", v, err)
	}
}
