package token_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-authenticator/internal/errors"
	"github.com/jrsteele09/go-authenticator/token"
	"github.com/stretchr/testify/require"
)

func testGrant() token.Grant {
	return token.Grant{
		TenantID:       "t1",
		Username:       "alice",
		AccountType:    token.ServiceAccountType,
		ClientID:       "c1",
		AccessTokenTTL: time.Hour,
	}
}

func TestHTTPIssuerPostsGrantAndReturnsResult(t *testing.T) {
	var (
		got                  map[string]any
		method, path, header string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path, header = r.Method, r.URL.Path, r.Header.Get("X-Tapis-Token")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","message":"ok","result":{"access_token":{"access_token":"abc","expires_in":3600}}}`))
	}))
	defer srv.Close()

	issuer, err := token.NewHTTPIssuer(srv.URL+"/", token.WithServiceToken("svc-token"))
	require.NoError(t, err)

	resp, err := issuer.Issue(context.Background(), testGrant())
	require.NoError(t, err)
	require.Equal(t, http.MethodPost, method)
	require.Equal(t, "/v3/tokens", path)
	require.Equal(t, "svc-token", header)
	require.Equal(t, "t1", got["token_tenant_id"])
	require.Equal(t, "alice", got["token_username"])
	require.Equal(t, "service", got["account_type"])
	require.EqualValues(t, 3600, got["access_token_ttl"])

	at, ok := resp["access_token"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "abc", at["access_token"])
}

func TestHTTPIssuerNon2xxIsServiceUnavailable(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusForbidden, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))

		issuer, err := token.NewHTTPIssuer(srv.URL)
		require.NoError(t, err)
		_, err = issuer.Issue(context.Background(), testGrant())
		require.True(t, errors.Is(err, errors.ErrServiceUnavailable), status)
		require.False(t, errors.Is(err, errors.ErrValidation), status)
		srv.Close()
	}
}

func TestHTTPIssuerTimeoutIsServiceUnavailable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	issuer, err := token.NewHTTPIssuer(srv.URL, token.WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	require.NoError(t, err)
	_, err = issuer.Issue(context.Background(), testGrant())
	require.True(t, errors.Is(err, errors.ErrServiceUnavailable))
}

func TestHTTPIssuerMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	issuer, err := token.NewHTTPIssuer(srv.URL)
	require.NoError(t, err)
	_, err = issuer.Issue(context.Background(), testGrant())
	require.True(t, errors.Is(err, errors.ErrServiceUnavailable))
}

func TestNewHTTPIssuerRequiresURL(t *testing.T) {
	_, err := token.NewHTTPIssuer(" ")
	require.Error(t, err)
}
