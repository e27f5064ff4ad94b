package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*CacheManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheManager(client, "test:"), mr
}

func TestSetAndGetJSON(t *testing.T) {
	ctx := context.Background()
	cm, mr := newTestCache(t)

	var got []string
	hit, err := cm.GetJSON(ctx, DictOptionsKey("gender"), &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cm.SetJSON(ctx, DictOptionsKey("gender"), []string{"male", "female"}, time.Minute))
	assert.True(t, mr.Exists("test:dict:options:gender"))

	hit, err = cm.GetJSON(ctx, DictOptionsKey("gender"), &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"male", "female"}, got)

	mr.FastForward(2 * time.Minute)
	hit, err = cm.GetJSON(ctx, DictOptionsKey("gender"), &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestInvalidateByPattern(t *testing.T) {
	ctx := context.Background()
	cm, mr := newTestCache(t)

	require.NoError(t, cm.SetJSON(ctx, RegionLevelKey(0), 1, 0))
	require.NoError(t, cm.SetJSON(ctx, RegionLevelKey(7), 1, 0))
	require.NoError(t, cm.SetJSON(ctx, DictOptionsKey("status"), 1, 0))

	require.NoError(t, cm.Invalidate(ctx, "region:level:*"))

	assert.False(t, mr.Exists("test:region:level:0"))
	assert.False(t, mr.Exists("test:region:level:7"))
	assert.True(t, mr.Exists("test:dict:options:status"))
}

func TestCorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	cm, mr := newTestCache(t)
	require.NoError(t, mr.Set("test:dict:options:bad", "{not json"))

	var got map[string]any
	hit, err := cm.GetJSON(ctx, DictOptionsKey("bad"), &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestNilManagerIsNoop(t *testing.T) {
	var cm *CacheManager
	ctx := context.Background()

	hit, err := cm.GetJSON(ctx, "k", &struct{}{})
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, cm.SetJSON(ctx, "k", 1, time.Second))
	assert.NoError(t, cm.Invalidate(ctx, "*"))
	assert.Error(t, cm.Ping(ctx))
}
