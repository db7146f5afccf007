package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/jrsteele09/go-authenticator/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestErrorMatchesKindAndCause(t *testing.T) {
	cause := stderrors.New("dial tcp: connection refused")
	err := errors.WithCause(errors.ErrServiceUnavailable, "directory unavailable", cause)

	require.True(t, errors.Is(err, errors.ErrServiceUnavailable))
	require.True(t, errors.Is(err, cause))
	require.False(t, errors.Is(err, errors.ErrInvalidCredentials))
	require.Equal(t, "directory unavailable", errors.Message(err, "fallback"))
}

func TestWrappedErrorKeepsKind(t *testing.T) {
	err := errors.Wrapf(errors.New(errors.ErrInvalidGrant, "code already used"), "[Token] exchange failed")

	require.True(t, errors.Is(err, errors.ErrInvalidGrant))
	require.Equal(t, "code already used", errors.Message(err, "fallback"))
	require.Equal(t, "fallback", errors.Message(stderrors.New("plain"), "fallback"))
}

func TestWrapfNil(t *testing.T) {
	require.NoError(t, errors.Wrapf(nil, "ignored"))
}
