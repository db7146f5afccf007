package authcodes_test

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/jrsteele09/go-authenticator/authcodes"
	"github.com/jrsteele09/go-authenticator/authcodes/authcodestest"
	authcoderepofakes "github.com/jrsteele09/go-authenticator/authcodes/repofakes"
	"github.com/jrsteele09/go-authenticator/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestFakeRepoConformance(t *testing.T) {
	authcodestest.RunRepoConformance(t, func(t *testing.T) authcodes.Repo {
		return authcoderepofakes.NewFakeCodeRepo()
	})
}

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		code, err := authcodes.GenerateCode()
		require.NoError(t, err)
		raw, err := base64.RawURLEncoding.DecodeString(code)
		require.NoError(t, err)
		require.Len(t, raw, 32)
		_, dup := seen[code]
		require.False(t, dup)
		seen[code] = struct{}{}
	}
}

func TestComputeExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s, err := authcodes.NewStore(authcoderepofakes.NewFakeCodeRepo())
	require.NoError(t, err)
	require.Equal(t, now.Add(authcodes.DefaultCodeTTL), s.ComputeExpiry(now))

	s, err = authcodes.NewStore(authcoderepofakes.NewFakeCodeRepo(), authcodes.WithTTL(90*time.Second))
	require.NoError(t, err)
	require.Equal(t, now.Add(90*time.Second), s.ComputeExpiry(now))
}

func TestIssueRequiresBinding(t *testing.T) {
	s, err := authcodes.NewStore(authcoderepofakes.NewFakeCodeRepo())
	require.NoError(t, err)
	_, err = s.Issue(context.Background(), "t1", "c1", "k1", "", "alice")
	require.True(t, errors.Is(err, errors.ErrValidation))

	_, err = s.ValidateAndConsume(context.Background(), "t1", "", "c1", "k1")
	require.True(t, errors.Is(err, errors.ErrInvalidGrant))

	_, err = authcodes.NewStore(nil)
	require.Error(t, err)
}
