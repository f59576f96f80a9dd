//go:build integration

package web

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	rediscontainer "github.com/testcontainers/testcontainers-go/modules/redis"
	"golang.org/x/oauth2"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := rediscontainer.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisSessionStore(t *testing.T) {
	ctx := context.Background()
	client := newTestRedis(t)
	store := NewRedisSessionStore(client, nil)

	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	session, err := store.Create(ctx, &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: expiry}, 7, "Alex Runner")
	require.NoError(t, err)

	ttl, err := client.TTL(ctx, redisSessionPrefix+session.ID).Result()
	require.NoError(t, err)
	assert.InDelta(t, sessionTTL.Seconds(), ttl.Seconds(), 5)

	got := store.Get(ctx, session.ID)
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.AthleteID)
	assert.Equal(t, "Alex Runner", got.AthleteName)
	assert.Equal(t, "a", got.Token.AccessToken)
	assert.True(t, expiry.Equal(got.Token.Expiry))

	store.UpdateToken(ctx, session.ID, &oauth2.Token{AccessToken: "b", RefreshToken: "r2", Expiry: expiry.Add(time.Hour)})
	got = store.Get(ctx, session.ID)
	require.NotNil(t, got)
	assert.Equal(t, "b", got.Token.AccessToken)

	ttl, err = client.TTL(ctx, redisSessionPrefix+session.ID).Result()
	require.NoError(t, err)
	assert.Positive(t, ttl.Seconds(), "token refresh keeps the expiry")

	store.Delete(ctx, session.ID)
	assert.Nil(t, store.Get(ctx, session.ID))
	assert.Nil(t, store.Get(ctx, "missing"))
}
