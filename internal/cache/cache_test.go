package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })
	return mr
}

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestCacheAside_MissThenHit(t *testing.T) {
	withMiniRedis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *payload) func() error {
		return func() error {
			calls++
			*dest = payload{Name: "trending", Count: 3}
			return nil
		}
	}

	var first payload
	require.NoError(t, CacheAside(ctx, "k", &first, time.Minute, fetch(&first)))
	assert.Equal(t, 1, calls)
	assert.Equal(t, "trending", first.Name)

	var second payload
	require.NoError(t, CacheAside(ctx, "k", &second, time.Minute, fetch(&second)))
	assert.Equal(t, 1, calls, "second read must be served from cache")
	assert.Equal(t, first, second)
}

func TestCacheAside_ExpiresWithTTL(t *testing.T) {
	mr := withMiniRedis(t)
	ctx := context.Background()

	calls := 0
	var dest payload
	fetch := func() error { calls++; return nil }

	require.NoError(t, CacheAside(ctx, "ttl", &dest, time.Second, fetch))
	mr.FastForward(2 * time.Second)
	require.NoError(t, CacheAside(ctx, "ttl", &dest, time.Second, fetch))
	assert.Equal(t, 2, calls)
}

func TestCacheAside_FetchErrorNotCached(t *testing.T) {
	mr := withMiniRedis(t)

	var dest payload
	err := CacheAside(context.Background(), "bad", &dest, time.Minute, func() error {
		return errors.New("db down")
	})
	assert.Error(t, err)
	assert.False(t, mr.Exists("bad"))
}

func TestCacheAside_NoClientCallsFetch(t *testing.T) {
	SetClient(nil)

	calls := 0
	var dest payload
	require.NoError(t, CacheAside(context.Background(), "k", &dest, time.Minute, func() error {
		calls++
		return nil
	}))
	assert.Equal(t, 1, calls)
}

func TestInvalidateTrending(t *testing.T) {
	mr := withMiniRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(TrendingKey(10, 7), "[1]"))
	require.NoError(t, mr.Set(TrendingKey(5, 1), "[2]"))
	require.NoError(t, mr.Set(AccountKey(9), "{}"))

	InvalidateTrending(ctx)

	assert.False(t, mr.Exists(TrendingKey(10, 7)))
	assert.False(t, mr.Exists(TrendingKey(5, 1)))
	assert.True(t, mr.Exists(AccountKey(9)))
}

func TestCacheAside_CorruptEntryFallsBackToFetch(t *testing.T) {
	mr := withMiniRedis(t)
	require.NoError(t, mr.Set("account:9", "{not json"))

	var dest payload
	err := CacheAside(context.Background(), "account:9", &dest, time.Minute, func() error {
		dest = payload{Name: "fresh"}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", dest.Name)

	stored, err := mr.Get("account:9")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"fresh","count":0}`, stored)
}

func TestFamily(t *testing.T) {
	assert.Equal(t, "feed", family("feed:trending:10:7"))
	assert.Equal(t, "plain", family("plain"))
}

func TestParseOptions(t *testing.T) {
	opts, err := parseOptions("localhost:6379")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)

	opts, err = parseOptions("redis://:secret@cache.internal:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	_, err = parseOptions("  ")
	assert.Error(t, err)
	_, err = parseOptions("redis://host:6379/notadb")
	assert.Error(t, err)
}

func TestInitRedis_UnreachableLeavesClientNil(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	InitRedis(addr)
	assert.Nil(t, GetClient())

	mr2 := miniredis.RunT(t)
	InitRedis(mr2.Addr())
	t.Cleanup(func() { SetClient(nil) })
	require.NotNil(t, GetClient())
	assert.NoError(t, GetClient().Ping(context.Background()).Err())
}
