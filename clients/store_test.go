package clients_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-authenticator/clients"
	fakeclientrepo "github.com/jrsteele09/go-authenticator/clients/fakerepo"
	"github.com/jrsteele09/go-authenticator/internal/errors"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *clients.Store {
	t.Helper()
	s, err := clients.NewStore(fakeclientrepo.NewFakeClientRepo(), clients.WithNowTime(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return s
}

func TestCreateGeneratesCredentials(t *testing.T) {
	s := newStore(t)
	c, err := s.Create(context.Background(), "t1", "alice", clients.Registration{CallbackURL: "https://app/cb"})
	require.NoError(t, err)
	require.NotEmpty(t, c.ClientID)
	require.GreaterOrEqual(t, len(c.ClientKey), 43)
	require.Equal(t, "alice", c.Owner)
	require.Equal(t, fixedNow, c.CreateTime)
	require.Equal(t, c.ClientID, c.DisplayName)
}

func TestCreateValidation(t *testing.T) {
	s := newStore(t)
	tests := []struct {
		name string
		reg  clients.Registration
	}{
		{"missing callback", clients.Registration{ClientID: "c1"}},
		{"relative callback", clients.Registration{ClientID: "c1", CallbackURL: "/cb"}},
		{"bad scheme", clients.Registration{ClientID: "c1", CallbackURL: "ftp://app/cb"}},
		{"bad client id", clients.Registration{ClientID: "c 1", CallbackURL: "https://app/cb"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Create(context.Background(), "t1", "alice", tc.reg)
			require.True(t, errors.Is(err, errors.ErrValidation), err)
		})
	}

	_, err := s.Create(context.Background(), "t1", "alice", clients.Registration{ClientID: "c1", CallbackURL: "https://app/cb"})
	require.NoError(t, err)
	_, err = s.Create(context.Background(), "t1", "bob", clients.Registration{ClientID: "c1", CallbackURL: "https://app/cb"})
	require.True(t, errors.Is(err, errors.ErrValidation))
}

func TestTenantIsolation(t *testing.T) {
	s := newStore(t)
	_, err := s.Create(context.Background(), "t1", "alice", clients.Registration{ClientID: "c1", ClientKey: "k1", CallbackURL: "https://app/cb"})
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "t2", "c1")
	require.True(t, errors.Is(err, errors.ErrNotFound))

	err = s.Delete(context.Background(), "t2", "c1", "alice")
	require.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = s.Authenticate(context.Background(), "t2", "c1", "k1")
	require.True(t, errors.Is(err, errors.ErrInvalidClient))

	list, err := s.List(context.Background(), "t2", "alice")
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestOwnership(t *testing.T) {
	s := newStore(t)
	_, err := s.Create(context.Background(), "t1", "alice", clients.Registration{ClientID: "c1", CallbackURL: "https://app/cb"})
	require.NoError(t, err)

	_, err = s.GetOwned(context.Background(), "t1", "c1", "bob")
	require.True(t, errors.Is(err, errors.ErrPermissionDenied))

	err = s.Delete(context.Background(), "t1", "c1", "bob")
	require.True(t, errors.Is(err, errors.ErrPermissionDenied))

	require.NoError(t, s.Delete(context.Background(), "t1", "c1", "alice"))
	_, err = s.Get(context.Background(), "t1", "c1")
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestAuthenticate(t *testing.T) {
	s := newStore(t)
	_, err := s.Create(context.Background(), "t1", "alice", clients.Registration{ClientID: "c1", ClientKey: "k1", CallbackURL: "https://app/cb"})
	require.NoError(t, err)

	c, err := s.Authenticate(context.Background(), "t1", "c1", "k1")
	require.NoError(t, err)
	require.Equal(t, "https://app/cb", c.CallbackURL)

	for _, creds := range [][2]string{{"c1", "wrong"}, {"unknown", "k1"}, {"c1", ""}, {"", ""}} {
		_, err := s.Authenticate(context.Background(), "t1", creds[0], creds[1])
		require.True(t, errors.Is(err, errors.ErrInvalidClient))
	}
}
