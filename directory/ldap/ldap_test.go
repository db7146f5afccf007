package ldap

import (
	"context"
	"errors"
	"testing"
	"time"

	goldap "github.com/go-ldap/ldap/v3"
	"github.com/jrsteele09/go-authenticator/directory"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{BaseDN: "ou=tenants.{tenant},dc=example"})
	require.Error(t, err)

	_, err = New(Config{URL: "ldap://localhost", BaseDN: "dc=example"})
	require.Error(t, err)
}

func TestDistinguishedNames(t *testing.T) {
	d, err := New(Config{URL: "ldap://localhost", BaseDN: "ou=tenants.{tenant},dc=example,dc=org"})
	require.NoError(t, err)

	require.Equal(t, "ou=tenants.t1,dc=example,dc=org", d.baseDN("t1"))
	require.Equal(t, `uid=a\,b,ou=tenants.t1,dc=example,dc=org`, d.userDN("t1", "a,b"))
}

func TestToUser(t *testing.T) {
	e := goldap.NewEntry("uid=alice,ou=tenants.t1,dc=example", map[string][]string{
		"uid":       {"alice"},
		"givenName": {"Alice"},
		"sn":        {"Liddell"},
		"mail":      {"alice@example.org"},
		"uidNumber": {"1001"},
	})
	u := toUser(e, "uid")
	require.Equal(t, "alice", u.Username)
	require.Equal(t, "Liddell", u.LastName)
	require.Equal(t, 1001, u.UID)
}

func TestUnreachableServerIsUnavailable(t *testing.T) {
	d, err := New(Config{URL: "ldap://127.0.0.1:1", BaseDN: "ou=tenants.{tenant},dc=example", Timeout: time.Second})
	require.NoError(t, err)

	err = d.Authenticate(context.Background(), "t1", "alice", "secret")
	require.True(t, errors.Is(err, directory.ErrUnavailable), err)

	err = d.Authenticate(context.Background(), "t1", "alice", "")
	require.True(t, errors.Is(err, directory.ErrInvalidCredentials))
}
