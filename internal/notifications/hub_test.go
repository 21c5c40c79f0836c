package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func recv(t *testing.T, c *Client) string {
	t.Helper()
	select {
	case msg := <-c.Send:
		return string(msg)
	case <-time.After(testEventuallyTimeout):
		t.Fatal("no message delivered")
		return ""
	}
}

func TestHub_RegisterAndBroadcast(t *testing.T) {
	hub := NewHub()

	a1, err := hub.Register(1, nil)
	require.NoError(t, err)
	a2, err := hub.Register(1, nil)
	require.NoError(t, err)
	b, err := hub.Register(2, nil)
	require.NoError(t, err)

	hub.Broadcast(1, `{"type":"friend_added"}`)
	assert.Equal(t, `{"type":"friend_added"}`, recv(t, a1))
	assert.Equal(t, `{"type":"friend_added"}`, recv(t, a2))
	assert.Len(t, b.Send, 0)

	hub.BroadcastAll("all")
	assert.Equal(t, "all", recv(t, b))

	assert.True(t, hub.IsOnline(1))
	assert.Equal(t, 3, hub.ConnectionCount())

	hub.UnregisterClient(a1)
	hub.UnregisterClient(a1)
	hub.UnregisterClient(a2)
	assert.False(t, hub.IsOnline(1))
	assert.Equal(t, 1, hub.ConnectionCount())

	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Equal(t, 0, hub.ConnectionCount())
	_, err = hub.Register(3, nil)
	assert.ErrorIs(t, err, ErrServerConnLimit)
}

func TestHub_PerUserLimit(t *testing.T) {
	hub := NewHub()
	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(7, nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(7, nil)
	assert.ErrorIs(t, err, ErrUserConnLimit)
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(9, nil)
	require.NoError(t, err)

	for i := 0; i < sendBufferSize+5; i++ {
		c.TrySend([]byte("x"))
	}
	assert.Len(t, c.Send, sendBufferSize)

	close(c.Send)
	assert.NotPanics(t, func() { c.TrySend([]byte("late")) })
}

func TestHub_StartWiringDeliversPublishedEvents(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	notifier := NewNotifier(rdb)
	require.NoError(t, hub.StartWiring(ctx, notifier))

	client, err := hub.Register(42, nil)
	require.NoError(t, err)

	require.NoError(t, notifier.PublishUser(ctx, 42, `{"type":"notification_created"}`))
	assert.Equal(t, `{"type":"notification_created"}`, recv(t, client))

	require.NoError(t, notifier.PublishBroadcast(ctx, "hello"))
	assert.Equal(t, "hello", recv(t, client))

	require.NoError(t, notifier.PublishUser(ctx, 43, "not yours"))
	assert.Never(t, func() bool { return len(client.Send) > 0 }, 10*testPollInterval, testPollInterval)
}
