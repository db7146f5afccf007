package memory_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-authenticator/directory"
	"github.com/jrsteele09/go-authenticator/directory/memory"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T) *memory.Directory {
	t.Helper()
	d := memory.New()
	for _, name := range []string{"carol", "alice", "bob"} {
		require.NoError(t, d.AddUser("t1", directory.User{Username: name}, name+"-pw"))
	}
	return d
}

func TestAuthenticate(t *testing.T) {
	d := seeded(t)
	ctx := context.Background()

	require.NoError(t, d.Authenticate(ctx, "t1", "alice", "alice-pw"))
	require.True(t, errors.Is(d.Authenticate(ctx, "t1", "alice", "nope"), directory.ErrInvalidCredentials))
	require.True(t, errors.Is(d.Authenticate(ctx, "t1", "mallory", "x"), directory.ErrInvalidCredentials))
	require.True(t, errors.Is(d.Authenticate(ctx, "t2", "alice", "alice-pw"), directory.ErrInvalidCredentials))
}

func TestListUsersPaginates(t *testing.T) {
	d := seeded(t)
	ctx := context.Background()

	page, next, err := d.ListUsers(ctx, "t1", 2, 0)
	require.NoError(t, err)
	require.Equal(t, 2, next)
	require.Equal(t, "alice", page[0].Username)
	require.Equal(t, "bob", page[1].Username)

	page, next, err = d.ListUsers(ctx, "t1", 2, next)
	require.NoError(t, err)
	require.Equal(t, 3, next)
	require.Len(t, page, 1)

	page, _, err = d.ListUsers(ctx, "t1", 0, 0)
	require.NoError(t, err)
	require.Len(t, page, 3)

	page, next, err = d.ListUsers(ctx, "t1", 10, 50)
	require.NoError(t, err)
	require.Empty(t, page)
	require.Equal(t, 3, next)
}

func TestGetUser(t *testing.T) {
	d := seeded(t)
	u, err := d.GetUser(context.Background(), "t1", "bob")
	require.NoError(t, err)
	require.Equal(t, "bob", u.Username)

	_, err = d.GetUser(context.Background(), "t1", "zed")
	require.True(t, errors.Is(err, directory.ErrUserNotFound))
}

func TestLoad(t *testing.T) {
	hash, err := directory.HashPassword("s3cret")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "users.yaml")
	content := "tenants:\n  t1:\n    - username: alice\n      email: alice@example.org\n      password_hash: '" + hash + "'\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	d, err := memory.Load(path)
	require.NoError(t, err)
	require.NoError(t, d.Authenticate(context.Background(), "t1", "alice", "s3cret"))
	u, err := d.GetUser(context.Background(), "t1", "alice")
	require.NoError(t, err)
	require.Equal(t, "alice@example.org", u.Email)
}
