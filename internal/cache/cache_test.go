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

type profile struct {
	Username string `json:"username"`
	Bio      string `json:"bio"`
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestAsideLoadsOnceThenServesFromCache(t *testing.T) {
	mr, rdb := setupRedis(t)
	ctx := context.Background()
	calls := 0
	load := func(context.Context) (profile, error) {
		calls++
		return profile{Username: "ada", Bio: "math"}, nil
	}

	first, err := Aside(ctx, rdb, ProfileKey("ada"), ProfileTTL, load)
	require.NoError(t, err)
	second, err := Aside(ctx, rdb, ProfileKey("ada"), ProfileTTL, load)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists("profile:ada"))

	Invalidate(ctx, rdb, ProfileKey("ada"))
	_, err = Aside(ctx, rdb, ProfileKey("ada"), ProfileTTL, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestAsideDoesNotCacheErrors(t *testing.T) {
	mr, rdb := setupRedis(t)
	boom := errors.New("boom")

	_, err := Aside(context.Background(), rdb, "k", time.Minute, func(context.Context) (profile, error) {
		return profile{}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("k"))
}

func TestAsideWithoutRedis(t *testing.T) {
	got, err := Aside(context.Background(), nil, "k", time.Minute, func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestUsernameIndex(t *testing.T) {
	idx := NewUsernameIndex(4, time.Minute)
	idx.Remember("alice", 1)
	idx.Remember("bob", 2)

	found, missing := idx.Lookup([]string{"alice", "carol", "bob"})
	assert.Equal(t, map[string]uint{"alice": 1, "bob": 2}, found)
	assert.Equal(t, []string{"carol"}, missing)
	assert.Equal(t, 2, idx.Len())

	var nilIndex *UsernameIndex
	found, missing = nilIndex.Lookup([]string{"alice"})
	assert.Empty(t, found)
	assert.Equal(t, []string{"alice"}, missing)
	nilIndex.Remember("alice", 1)
	assert.Zero(t, nilIndex.Len())
}
