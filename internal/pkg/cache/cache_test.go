package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/domainwatch/internal/pkg/logger"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

type payload struct {
	Nameservers []string `json:"nameservers"`
}

func TestCache_SetGet(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := New(client, time.Minute, logger.Nop())
	ctx := context.Background()

	c.Set(ctx, SectionKey("example.com", "dns"), payload{Nameservers: []string{"ns1.example.net"}})

	var got payload
	require.True(t, c.Get(ctx, SectionKey("example.com", "dns"), &got))
	assert.Equal(t, []string{"ns1.example.net"}, got.Nameservers)

	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"section:example.com:dns"))

	c.Delete(ctx, SectionKey("example.com", "dns"))
	assert.False(t, c.Get(ctx, SectionKey("example.com", "dns"), &got))
}

func TestCache_Miss(t *testing.T) {
	_, client := setupTestRedis(t)
	c := New(client, time.Minute, logger.Nop())
	var got payload
	assert.False(t, c.Get(context.Background(), "absent", &got))
}

func TestCache_FailOpenWhenRedisDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := New(client, time.Minute, logger.Nop())
	mr.Close()

	ctx := context.Background()
	c.Set(ctx, "k", payload{})
	var got payload
	assert.False(t, c.Get(ctx, "k", &got))
}

func TestCache_NilIsNoop(t *testing.T) {
	var c *Cache = New(nil, time.Minute, nil)
	assert.Nil(t, c)
	c.Set(context.Background(), "k", 1)
	var v int
	assert.False(t, c.Get(context.Background(), "k", &v))
}

func TestCache_OverwriteIsDeterministic(t *testing.T) {
	_, client := setupTestRedis(t)
	c := New(client, time.Minute, logger.Nop())
	ctx := context.Background()

	c.Set(ctx, "k", payload{Nameservers: []string{"a"}})
	c.Set(ctx, "k", payload{Nameservers: []string{"b"}})

	var got payload
	require.True(t, c.Get(ctx, "k", &got))
	assert.Equal(t, []string{"b"}, got.Nameservers)
}
