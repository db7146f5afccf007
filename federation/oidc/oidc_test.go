package oidc_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-authenticator/federation/oidc"
	"github.com/stretchr/testify/require"
)

type issuer struct {
	srv      *httptest.Server
	key      *rsa.PrivateKey
	requests atomic.Int32
	username string
}

func newIssuer(t *testing.T, username string) *issuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	iss := &issuer{key: key, username: username}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"issuer":                                iss.srv.URL,
			"authorization_endpoint":                iss.srv.URL + "/authorize",
			"token_endpoint":                        iss.srv.URL + "/token",
			"jwks_uri":                              iss.srv.URL + "/keys",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"keys": []map[string]string{{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"kid": "k1",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		claims := jwtlib.MapClaims{
			"iss": iss.srv.URL,
			"aud": "oidc-client",
			"sub": "subject-1",
			"iat": time.Now().Unix(),
			"exp": time.Now().Add(time.Hour).Unix(),
		}
		if iss.username != "" {
			claims["preferred_username"] = iss.username
		}
		tok := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
		tok.Header["kid"] = "k1"
		signed, _ := tok.SignedString(key)
		writeJSON(w, map[string]any{"access_token": "at", "token_type": "Bearer", "id_token": signed})
	})
	iss.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		iss.requests.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(iss.srv.Close)
	return iss
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newProvider(t *testing.T, iss *issuer) *oidc.Provider {
	t.Helper()
	p, err := oidc.New(oidc.Config{Issuer: iss.srv.URL, ClientID: "oidc-client", ClientSecret: "s"}, "https://t1.example.org/v3/oauth2/extensions/oa2/callback", nil)
	require.NoError(t, err)
	return p
}

func TestNewMakesNoNetworkCalls(t *testing.T) {
	iss := newIssuer(t, "alice")
	p := newProvider(t, iss)
	require.Equal(t, "oidc-client", p.Settings().ClientID)
	require.Zero(t, iss.requests.Load())
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := oidc.New(oidc.Config{Issuer: "not a url", ClientID: "c", ClientSecret: "s"}, "", nil)
	require.Error(t, err)
	_, err = oidc.New(oidc.Config{Issuer: "https://idp.example.org"}, "", nil)
	require.Error(t, err)
}

func TestLoginFlow(t *testing.T) {
	ctx := context.Background()
	iss := newIssuer(t, "alice")
	p := newProvider(t, iss)

	target, err := p.AuthorizeURL(ctx, "st")
	require.NoError(t, err)
	u, err := url.Parse(target)
	require.NoError(t, err)
	require.Equal(t, "/authorize", u.Path)
	require.Equal(t, "st", u.Query().Get("state"))
	require.Contains(t, u.Query().Get("scope"), "openid")

	tok, err := p.ExchangeCodeForToken(ctx, "code")
	require.NoError(t, err)
	username, err := p.ResolveIdentity(ctx, tok)
	require.NoError(t, err)
	require.Equal(t, "alice@127.0.0.1", username)
	require.Equal(t, iss.srv.URL+"/token", p.Settings().TokenURL)
}

func TestResolveIdentityFallsBackToSubject(t *testing.T) {
	ctx := context.Background()
	iss := newIssuer(t, "")
	p := newProvider(t, iss)

	tok, err := p.ExchangeCodeForToken(ctx, "code")
	require.NoError(t, err)
	username, err := p.ResolveIdentity(ctx, tok)
	require.NoError(t, err)
	require.Equal(t, "subject-1@127.0.0.1", username)
}

func TestResolveIdentityRequiresIDToken(t *testing.T) {
	iss := newIssuer(t, "alice")
	p := newProvider(t, iss)
	tok, err := p.ExchangeCodeForToken(context.Background(), "code")
	require.NoError(t, err)

	_, err = p.ResolveIdentity(context.Background(), tok.WithExtra(map[string]any{}))
	require.Error(t, err)
}
