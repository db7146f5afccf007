package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-authenticator/sessions/redisstore"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisstore.New(client, "test:"), mr
}

func TestSaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	s, mr := newStore(t)

	values, err := s.Load(ctx, "sid")
	require.NoError(t, err)
	require.Empty(t, values)

	require.NoError(t, s.Save(ctx, "sid", map[string]string{"tenant_id": "t1", "username": "alice"}, time.Minute))
	require.True(t, mr.Exists("test:session:sid"))
	require.Equal(t, time.Minute, mr.TTL("test:session:sid"))

	values, err = s.Load(ctx, "sid")
	require.NoError(t, err)
	require.Equal(t, "alice", values["username"])

	// Save replaces rather than merges.
	require.NoError(t, s.Save(ctx, "sid", map[string]string{"tenant_id": "t1"}, time.Minute))
	values, err = s.Load(ctx, "sid")
	require.NoError(t, err)
	require.NotContains(t, values, "username")

	require.NoError(t, s.Delete(ctx, "sid"))
	require.False(t, mr.Exists("test:session:sid"))
}

func TestSessionExpires(t *testing.T) {
	ctx := context.Background()
	s, mr := newStore(t)

	require.NoError(t, s.Save(ctx, "sid", map[string]string{"username": "alice"}, time.Minute))
	mr.FastForward(2 * time.Minute)

	values, err := s.Load(ctx, "sid")
	require.NoError(t, err)
	require.Empty(t, values)
}
