package redisrepo_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-authenticator/authcodes"
	"github.com/jrsteele09/go-authenticator/authcodes/authcodestest"
	"github.com/jrsteele09/go-authenticator/authcodes/redisrepo"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) (*redisrepo.RedisCodeRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisrepo.NewWithClient(client, "test:"), mr
}

func TestRedisRepoConformance(t *testing.T) {
	authcodestest.RunRepoConformance(t, func(t *testing.T) authcodes.Repo {
		repo, _ := newRepo(t)
		return repo
	})
}

func TestRedisKeysExpireWithCode(t *testing.T) {
	repo, mr := newRepo(t)
	now := time.Now().UTC()
	store, err := authcodes.NewStore(repo, authcodes.WithTTL(30*time.Second), authcodes.WithNowTime(func() time.Time { return now }))
	require.NoError(t, err)

	ac, err := store.Issue(context.Background(), "t1", "c1", "k1", "https://app/cb", "alice")
	require.NoError(t, err)

	key := "test:authcode:t1:" + ac.Code
	require.True(t, mr.Exists(key))
	require.Equal(t, 30*time.Second, mr.TTL(key))

	_, err = store.ValidateAndConsume(context.Background(), "t1", ac.Code, "c1", "k1")
	require.NoError(t, err)
	require.Greater(t, mr.TTL(key), time.Duration(0))

	mr.FastForward(31 * time.Second)
	require.False(t, mr.Exists(key))
}

func TestNewFailsWithoutServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := redisrepo.New(ctx, redisrepo.Config{Addr: "127.0.0.1:1"})
	require.Error(t, err)
}
